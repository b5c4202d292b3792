package orderbook

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
)

type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// OrderID is book-scoped and increases monotonically from 1.
type OrderID uint64

// Order is an entry in the book arena. Only Quantity and Alive change after
// submission; Quantity is what is left to fill.
type Order struct {
	ID        OrderID        `json:"id"`
	Issuer    common.Address `json:"issuer"`
	Side      Side           `json:"side"`
	Price     amount.Int     `json:"price"`
	Quantity  amount.Int     `json:"quantity"`
	Timestamp time.Time      `json:"timestamp"`
	UserData  common.Address `json:"userData"`
	Alive     bool           `json:"alive"`
}

// ExpiredAt reports whether the order outlived lifetime at now.
func (o *Order) ExpiredAt(now time.Time, lifetime time.Duration) bool {
	return now.Sub(o.Timestamp) >= lifetime
}

// LiveAt reports whether the order can still be matched or cancelled at now.
func (o *Order) LiveAt(now time.Time, lifetime time.Duration) bool {
	return o.Alive && !o.ExpiredAt(now, lifetime)
}

// Fill is one resting order consumed (fully or partly) by an incoming order.
// It always executes at the maker's price.
type Fill struct {
	MakerID        OrderID
	TakerID        OrderID
	Maker          common.Address
	Taker          common.Address
	MakerSide      Side
	Price          amount.Int
	Quantity       amount.Int
	MakerRemaining amount.Int
	MakerUserData  common.Address
	TakerUserData  common.Address
}

func (f Fill) Buyer() common.Address {
	if f.MakerSide == Buy {
		return f.Maker
	}
	return f.Taker
}

func (f Fill) Seller() common.Address {
	if f.MakerSide == Sell {
		return f.Maker
	}
	return f.Taker
}

// SellUserData is the user data of whichever side sold.
func (f Fill) SellUserData() common.Address {
	if f.MakerSide == Sell {
		return f.MakerUserData
	}
	return f.TakerUserData
}

// SellOrderID is the id of whichever side sold.
func (f Fill) SellOrderID() OrderID {
	if f.MakerSide == Sell {
		return f.MakerID
	}
	return f.TakerID
}

// BuyOrderID is the id of whichever side bought.
func (f Fill) BuyOrderID() OrderID {
	if f.MakerSide == Buy {
		return f.MakerID
	}
	return f.TakerID
}

// Result is what Submit reports back to the owner.
type Result struct {
	OrderID   OrderID
	Fills     []Fill
	Remaining amount.Int
	// Expired resting orders collected while matching. The owner releases
	// whatever it escrowed for them.
	Expired []Order
}

// Filled is the quantity matched across all fills. It never exceeds the
// submitted quantity, so the sum cannot overflow.
func (r Result) Filled() amount.Int {
	var n amount.Int
	for _, f := range r.Fills {
		n, _ = n.Add(f.Quantity)
	}
	return n
}

// PriceLevel is an aggregated view of one level.
type PriceLevel struct {
	Price  amount.Int `json:"price"`
	Qty    amount.Int `json:"qty"`
	Orders int        `json:"orders"`
}

// Execution is kept for display only; matching never reads it.
type Execution struct {
	Price     amount.Int `json:"price"`
	Quantity  amount.Int `json:"quantity"`
	Timestamp time.Time  `json:"timestamp"`
}
