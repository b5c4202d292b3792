package option

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
)

// Transfer covers mint (zero From) and burn (zero To).
type Transfer struct {
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount amount.Int     `json:"amount"`
}

func (Transfer) EventName() string { return "Transfer" }

type Approval struct {
	Owner   common.Address `json:"owner"`
	Spender common.Address `json:"spender"`
	Amount  amount.Int     `json:"amount"`
}

func (Approval) EventName() string { return "Approval" }

type Written struct {
	Writer   common.Address `json:"writer"`
	Holder   common.Address `json:"holder"`
	Quantity amount.Int     `json:"quantity"`
}

func (Written) EventName() string { return "Written" }

type Activated struct {
	Written    amount.Int `json:"written"`
	Collateral amount.Int `json:"collateral"`
}

func (Activated) EventName() string { return "Activated" }

// Exercised reports what the holder paid and received, in base units.
type Exercised struct {
	Holder   common.Address `json:"holder"`
	Quantity amount.Int     `json:"quantity"`
	Paid     amount.Int     `json:"paid"`
	Received amount.Int     `json:"received"`
}

func (Exercised) EventName() string { return "Exercised" }

// WriterSettled is emitted once per writer, by settle or liquidate.
type WriterSettled struct {
	Writer     common.Address `json:"writer"`
	Collateral amount.Int     `json:"collateral"`
	Proceeds   amount.Int     `json:"proceeds"`
}

func (WriterSettled) EventName() string { return "Settled" }

// ContractLiquidated closes the contract for every writer still unsettled.
type ContractLiquidated struct {
	By      common.Address `json:"by"`
	Writers int            `json:"writers"`
}

func (ContractLiquidated) EventName() string { return "Liquidated" }
