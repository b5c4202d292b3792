package market

import (
	"time"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/errs"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/orderbook"
)

// Params configures one market side. Amounts are base units.
type Params struct {
	// OpeningFee is charged in native value by OpenBook; excess is refunded.
	// Default 1e15 (one finney at 18 decimals).
	OpeningFee amount.Int

	// ExerciseWindow: holders may exercise in [expiry, expiry+window).
	ExerciseWindow time.Duration
	// LiquidationGrace is added after the window before liquidate opens.
	LiquidationGrace time.Duration

	// Matching limits handed to every book.
	MaxMatches  int
	HistorySize int

	// Expiries must sit on ExpiryBase + k*ExpiryStep.
	// Default base 2019-01-01 14:00 UTC, daily step.
	ExpiryBase time.Time
	ExpiryStep time.Duration
}

func DefaultParams() Params {
	return Params{
		OpeningFee:       amount.Ether("0.001"),
		ExerciseWindow:   24 * time.Hour,
		LiquidationGrace: 7 * 24 * time.Hour,
		MaxMatches:       orderbook.DefaultMaxMatches,
		HistorySize:      orderbook.DefaultHistorySize,
		ExpiryBase:       time.Date(2019, 1, 1, 14, 0, 0, 0, time.UTC),
		ExpiryStep:       24 * time.Hour,
	}
}

func (p Params) Validate() error {
	switch {
	case p.ExerciseWindow <= 0:
		return errs.Wrap(ErrBadParams, "exercise window %s", p.ExerciseWindow)
	case p.LiquidationGrace < 0:
		return errs.Wrap(ErrBadParams, "liquidation grace %s", p.LiquidationGrace)
	case p.MaxMatches < 0 || p.HistorySize < 0:
		return errs.Wrap(ErrBadParams, "negative matching limits")
	case p.ExpiryBase.IsZero() || p.ExpiryStep <= 0:
		return errs.Wrap(ErrBadParams, "expiry grid base %s step %s", p.ExpiryBase, p.ExpiryStep)
	}
	return nil
}

// ExpiryOffset returns k for expiry = ExpiryBase + k*ExpiryStep.
func (p Params) ExpiryOffset(expiry time.Time) (int64, error) {
	d := expiry.Sub(p.ExpiryBase)
	if d < 0 || d%p.ExpiryStep != 0 {
		return 0, errs.Wrap(ErrOffGrid, "%s", expiry.UTC().Format(time.RFC3339))
	}
	return int64(d / p.ExpiryStep), nil
}

// ExpiryAt is the inverse of ExpiryOffset.
func (p Params) ExpiryAt(offset int64) time.Time {
	return p.ExpiryBase.Add(time.Duration(offset) * p.ExpiryStep)
}
