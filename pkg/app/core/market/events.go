package market

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
)

type BookOpened struct {
	Book   common.Address `json:"book"`
	Expiry time.Time      `json:"expiry"`
	Strike amount.Int     `json:"strike"`
}

func (BookOpened) EventName() string { return "BookOpened" }

// CallEmission and PutEmission report each primary issuance.
type CallEmission struct {
	Option   common.Address `json:"option"`
	Writer   common.Address `json:"writer"`
	Quantity amount.Int     `json:"quantity"`
}

func (CallEmission) EventName() string { return "CallEmission" }

type PutEmission struct {
	Option   common.Address `json:"option"`
	Writer   common.Address `json:"writer"`
	Quantity amount.Int     `json:"quantity"`
}

func (PutEmission) EventName() string { return "PutEmission" }

type FeesCollected struct {
	To     common.Address `json:"to"`
	Amount amount.Int     `json:"amount"`
}

func (FeesCollected) EventName() string { return "FeesCollected" }
