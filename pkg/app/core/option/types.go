package option

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
)

// Kind selects which side of the trade the collateral backs.
type Kind uint8

const (
	// Call writers post native value; holders buy it at strike.
	Call Kind = iota + 1
	// Put writers post quantity*strike of the settlement asset; holders sell native value at strike.
	Put
)

func (k Kind) String() string {
	switch k {
	case Call:
		return "call"
	case Put:
		return "put"
	default:
		return "unknown"
	}
}

// Status codes are stable; dashboards display the numeric value.
type Status uint8

const (
	Waiting    Status = 0
	Running    Status = 1
	Expired    Status = 2
	Settled    Status = 3
	Liquidated Status = 4
)

func (s Status) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Running:
		return "running"
	case Expired:
		return "expired"
	case Settled:
		return "settled"
	case Liquidated:
		return "liquidated"
	default:
		return "unknown"
	}
}

// Terms are fixed when the contract is created.
type Terms struct {
	Kind             Kind
	Strike           amount.Int
	Expiry           time.Time
	ExerciseWindow   time.Duration
	LiquidationGrace time.Duration
}

// WindowClose is the end of the exercise window.
func (t Terms) WindowClose() time.Time { return t.Expiry.Add(t.ExerciseWindow) }

// LiquidationOpen is the first instant liquidate may run.
func (t Terms) LiquidationOpen() time.Time { return t.WindowClose().Add(t.LiquidationGrace) }

// Info is a read-only summary for queries and state hashing.
type Info struct {
	Address    common.Address `json:"address"`
	Owner      common.Address `json:"owner"`
	Kind       string         `json:"kind"`
	Status     Status         `json:"status"`
	Strike     amount.Int     `json:"strike"`
	Expiry     time.Time      `json:"expiry"`
	Supply     amount.Int     `json:"supply"`
	Written    amount.Int     `json:"written"`
	Exercised  amount.Int     `json:"exercised"`
	Collateral amount.Int     `json:"collateral"`
	Proceeds   amount.Int     `json:"proceeds"`
	Writers    int            `json:"writers"`
}
