package orderbook

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
)

type BuyOrder struct {
	OrderID  OrderID        `json:"orderId"`
	Issuer   common.Address `json:"issuer"`
	Price    amount.Int     `json:"price"`
	Quantity amount.Int     `json:"quantity"`
}

func (BuyOrder) EventName() string { return "BuyOrder" }

type SellOrder struct {
	OrderID  OrderID        `json:"orderId"`
	Issuer   common.Address `json:"issuer"`
	Price    amount.Int     `json:"price"`
	Quantity amount.Int     `json:"quantity"`
}

func (SellOrder) EventName() string { return "SellOrder" }

type Cancelled struct {
	OrderID OrderID `json:"orderId"`
}

func (Cancelled) EventName() string { return "Cancelled" }

type Expired struct {
	OrderID OrderID `json:"orderId"`
}

func (Expired) EventName() string { return "Expired" }

// Hit reports one consumed resting order. UserData is the sell side's.
type Hit struct {
	OrderID  OrderID        `json:"orderId"`
	Buyer    common.Address `json:"buyer"`
	Seller   common.Address `json:"seller"`
	Price    amount.Int     `json:"price"`
	Quantity amount.Int     `json:"quantity"`
	UserData common.Address `json:"userData"`
}

func (Hit) EventName() string { return "Hit" }
