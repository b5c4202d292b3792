package orderbook

import (
	"time"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/errs"
)

// BidSize is the number of bid price levels.
func (b *Book) BidSize() int { return b.bids.len() }

// AskSize is the number of ask price levels.
func (b *Book) AskSize() int { return b.asks.len() }

// BidEntries returns the price and queue length of the i-th best bid level.
func (b *Book) BidEntries(i int) (price amount.Int, entries int, err error) {
	return levelEntries(b.bids, i)
}

// AskEntries returns the price and queue length of the i-th best ask level.
func (b *Book) AskEntries(i int) (price amount.Int, entries int, err error) {
	return levelEntries(b.asks, i)
}

func levelEntries(ld ladder, i int) (amount.Int, int, error) {
	lvl, ok := ld.at(i)
	if !ok {
		return amount.Zero, 0, errs.Wrap(ErrNoSuchLevel, "level %d", i)
	}
	return lvl.price, len(lvl.queue), nil
}

// BidOrder returns the id of the i-th order queued at the given bid level.
func (b *Book) BidOrder(levelIdx, i int) (OrderID, error) {
	return orderAt(b.bids, levelIdx, i)
}

// AskOrder returns the id of the i-th order queued at the given ask level.
func (b *Book) AskOrder(levelIdx, i int) (OrderID, error) {
	return orderAt(b.asks, levelIdx, i)
}

func orderAt(ld ladder, levelIdx, i int) (OrderID, error) {
	lvl, ok := ld.at(levelIdx)
	if !ok {
		return 0, errs.Wrap(ErrNoSuchLevel, "level %d", levelIdx)
	}
	if i < 0 || i >= len(lvl.queue) {
		return 0, errs.Wrap(ErrUnknownOrder, "entry %d of level %d", i, levelIdx)
	}
	return lvl.queue[i], nil
}

// Order returns a copy of the order with id.
func (b *Book) Order(id OrderID) (Order, error) {
	o, err := b.lookup(id)
	if err != nil {
		return Order{}, err
	}
	return *o, nil
}

// OrderCount is the number of orders ever submitted.
func (b *Book) OrderCount() int { return len(b.orders) }

// IsLive reports whether order id can still trade at now.
func (b *Book) IsLive(id OrderID, now time.Time) bool {
	o, err := b.lookup(id)
	return err == nil && o.LiveAt(now, b.cfg.MaxOrderLifetime)
}

// GetBidLevels returns live bid depth sorted high to low.
// Used for state hashing and the depth endpoint.
func (b *Book) GetBidLevels(now time.Time) []PriceLevel {
	return b.bids.depth(b.liveQty(now))
}

// GetAskLevels returns live ask depth sorted low to high.
func (b *Book) GetAskLevels(now time.Time) []PriceLevel {
	return b.asks.depth(b.liveQty(now))
}

func (b *Book) liveQty(now time.Time) func(OrderID) (amount.Int, bool) {
	return func(id OrderID) (amount.Int, bool) {
		o := b.orders[id-1]
		if !o.LiveAt(now, b.cfg.MaxOrderLifetime) {
			return amount.Zero, false
		}
		return o.Quantity, true
	}
}

// GetBestBid returns the highest bid level price, live or not yet collected.
func (b *Book) GetBestBid() (amount.Int, bool) {
	lvl, ok := b.bids.best()
	if !ok {
		return amount.Zero, false
	}
	return lvl.price, true
}

// GetBestAsk returns the lowest ask level price.
func (b *Book) GetBestAsk() (amount.Int, bool) {
	lvl, ok := b.asks.best()
	if !ok {
		return amount.Zero, false
	}
	return lvl.price, true
}

// GetMidPrice averages the best bid and ask. Returns 0 if one side is empty.
func (b *Book) GetMidPrice() amount.Int {
	bid, okBid := b.GetBestBid()
	ask, okAsk := b.GetBestAsk()
	if !okBid || !okAsk {
		return amount.Zero
	}
	two := amount.New(2)
	sum, err := bid.Add(ask)
	if err != nil {
		sum, _ = bid.Div(two).Add(ask.Div(two))
		return sum
	}
	return sum.Div(two)
}

// GetLastPrice returns the price of the most recent fill, 0 before any.
func (b *Book) GetLastPrice() amount.Int { return b.lastPrice }

// Executions returns retained executions, newest first.
func (b *Book) Executions() []Execution {
	out := make([]Execution, len(b.executions))
	for i, e := range b.executions {
		out[len(out)-1-i] = e
	}
	return out
}
