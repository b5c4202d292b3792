package ledger

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
)

// Event is a typed notification emitted by a component during a transaction.
type Event interface {
	EventName() string
}

// Log is an event tagged with the address of the component that emitted it.
type Log struct {
	Address common.Address
	Event   Event
}

func (l Log) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Address string `json:"address"`
		Event   string `json:"event"`
		Data    Event  `json:"data"`
	}{l.Address.Hex(), l.Event.EventName(), l.Event})
}

// NativeTransfer is emitted by the ledger itself for value movements.
type NativeTransfer struct {
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount amount.Int     `json:"amount"`
}

func (NativeTransfer) EventName() string { return "NativeTransfer" }
