// Package orderbook is a price-time priority limit order book for one
// (expiry, strike) pair. Only its owner may submit, cancel or sweep; the
// owner is responsible for whatever collateral backs the orders.
package orderbook

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/errs"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/ledger"
)

const (
	DefaultMaxMatches  = 128
	DefaultHistorySize = 32
)

type Config struct {
	Owner            common.Address
	Expiry           time.Time
	Strike           amount.Int
	MinimumQuantity  amount.Int
	TickSize         amount.Int
	MaxOrderLifetime time.Duration
	// MaxMatches caps the resting orders one Submit may touch, expired ones included.
	MaxMatches int
	// HistorySize is the number of executions kept for display.
	HistorySize int
}

func (c Config) Validate() error {
	switch {
	case c.Strike.IsZero():
		return errs.Wrap(ErrBadConfig, "strike must be positive")
	case c.MinimumQuantity.IsZero():
		return errs.Wrap(ErrBadConfig, "minimum quantity must be positive")
	case c.TickSize.IsZero():
		return errs.Wrap(ErrBadConfig, "tick size must be positive")
	case c.MaxOrderLifetime <= 0:
		return errs.Wrap(ErrBadConfig, "max order lifetime must be positive, got %s", c.MaxOrderLifetime)
	case c.MaxMatches < 0 || c.HistorySize < 0:
		return errs.Wrap(ErrBadConfig, "limits must not be negative")
	}
	return nil
}

// Book is not safe for concurrent use; the ledger serializes access.
type Book struct {
	addr common.Address
	cfg  Config

	orders []*Order // arena, orders[id-1]
	bids   ladder
	asks   ladder

	executions []Execution
	lastPrice  amount.Int
}

func New(addr common.Address, cfg Config) (*Book, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxMatches == 0 {
		cfg.MaxMatches = DefaultMaxMatches
	}
	if cfg.HistorySize == 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	return &Book{
		addr: addr,
		cfg:  cfg,
		bids: newLadder(Buy),
		asks: newLadder(Sell),
	}, nil
}

func (b *Book) Address() common.Address { return b.addr }

func (b *Book) Config() Config { return b.cfg }

// Validate checks order granularity without touching the book.
func (b *Book) Validate(price, qty amount.Int) error {
	if qty.IsZero() || !qty.MultipleOf(b.cfg.MinimumQuantity) {
		return errs.Wrap(ErrBadQuantity, "quantity=%s minimum=%s", qty, b.cfg.MinimumQuantity)
	}
	if price.IsZero() || !price.MultipleOf(b.cfg.TickSize) {
		return errs.Wrap(ErrBadPrice, "price=%s tick=%s", price, b.cfg.TickSize)
	}
	return nil
}

func (b *Book) checkOwner(tx *ledger.Tx) error {
	if tx.Sender != b.cfg.Owner {
		return errs.Wrap(ErrNotOwner, "%s", tx.Sender.Hex())
	}
	return nil
}

func (b *Book) side(s Side) ladder {
	if s == Buy {
		return b.bids
	}
	return b.asks
}

// Submit enters an order for issuer and matches it against the opposite side
// at the resting orders' prices. Any remainder rests at price. A call that
// would touch more than MaxMatches resting orders fails with no state change.
func (b *Book) Submit(tx *ledger.Tx, issuer common.Address, side Side, price, qty amount.Int, userData common.Address) (Result, error) {
	if err := b.checkOwner(tx); err != nil {
		return Result{}, err
	}
	now := tx.Now()
	if !now.Before(b.cfg.Expiry) {
		return Result{}, errs.Wrap(ErrBookExpired, "expiry %s", b.cfg.Expiry.UTC().Format(time.RFC3339))
	}
	if side != Buy && side != Sell {
		return Result{}, errs.Wrap(ErrBadConfig, "unknown side %d", side)
	}
	if err := b.Validate(price, qty); err != nil {
		return Result{}, err
	}

	snap := tx.Snapshot()

	o := &Order{
		ID:        OrderID(len(b.orders) + 1),
		Issuer:    issuer,
		Side:      side,
		Price:     price,
		Quantity:  qty,
		Timestamp: now,
		UserData:  userData,
	}
	b.appendOrder(tx, o)
	if side == Buy {
		tx.Emit(b.addr, BuyOrder{OrderID: o.ID, Issuer: issuer, Price: price, Quantity: qty})
	} else {
		tx.Emit(b.addr, SellOrder{OrderID: o.ID, Issuer: issuer, Price: price, Quantity: qty})
	}

	res, err := b.match(tx, o)
	if err != nil {
		tx.RevertToSnapshot(snap)
		return Result{}, err
	}

	if !o.Quantity.IsZero() {
		b.setAlive(tx, o, true)
		b.side(side).push(tx, price, o.ID)
	}
	res.OrderID = o.ID
	res.Remaining = o.Quantity
	return res, nil
}

func (b *Book) match(tx *ledger.Tx, taker *Order) (Result, error) {
	var res Result
	now := tx.Now()
	opposite := b.side(-taker.Side)
	touched := 0

	for !taker.Quantity.IsZero() {
		lvl, ok := opposite.best()
		if !ok || !crosses(taker, lvl.price) {
			break
		}
		if touched == b.cfg.MaxMatches {
			return Result{}, errs.Wrap(ErrTooManyMatches, "limit %d", b.cfg.MaxMatches)
		}
		touched++

		maker := b.orders[lvl.queue[0]-1]
		if maker.ExpiredAt(now, b.cfg.MaxOrderLifetime) {
			b.setAlive(tx, maker, false)
			opposite.popFront(tx, lvl)
			res.Expired = append(res.Expired, *maker)
			tx.Emit(b.addr, Expired{OrderID: maker.ID})
			continue
		}

		qty := amount.Min(taker.Quantity, maker.Quantity)
		takerLeft, err := taker.Quantity.Sub(qty)
		if err != nil {
			return Result{}, err
		}
		makerLeft, err := maker.Quantity.Sub(qty)
		if err != nil {
			return Result{}, err
		}
		b.setQuantity(tx, taker, takerLeft)
		b.setQuantity(tx, maker, makerLeft)
		if makerLeft.IsZero() {
			b.setAlive(tx, maker, false)
			opposite.popFront(tx, lvl)
		}

		f := Fill{
			MakerID:        maker.ID,
			TakerID:        taker.ID,
			Maker:          maker.Issuer,
			Taker:          taker.Issuer,
			MakerSide:      maker.Side,
			Price:          maker.Price,
			Quantity:       qty,
			MakerRemaining: maker.Quantity,
			MakerUserData:  maker.UserData,
			TakerUserData:  taker.UserData,
		}
		res.Fills = append(res.Fills, f)
		b.recordExecution(tx, Execution{Price: f.Price, Quantity: qty, Timestamp: now})
		tx.Emit(b.addr, Hit{
			OrderID:  maker.ID,
			Buyer:    f.Buyer(),
			Seller:   f.Seller(),
			Price:    f.Price,
			Quantity: qty,
			UserData: f.SellUserData(),
		})
	}
	return res, nil
}

func crosses(taker *Order, restingPrice amount.Int) bool {
	if taker.Side == Buy {
		return !restingPrice.Gt(taker.Price)
	}
	return !restingPrice.Lt(taker.Price)
}

// Cancel kills a live order on behalf of issuer and returns it as it was
// just before cancellation.
func (b *Book) Cancel(tx *ledger.Tx, issuer common.Address, id OrderID) (Order, error) {
	if err := b.checkOwner(tx); err != nil {
		return Order{}, err
	}
	o, err := b.lookup(id)
	if err != nil {
		return Order{}, err
	}
	if o.Issuer != issuer {
		return Order{}, errs.Wrap(ErrNotIssuer, "order %d", id)
	}
	if !o.LiveAt(tx.Now(), b.cfg.MaxOrderLifetime) {
		return Order{}, errs.Wrap(ErrOrderNotAlive, "order %d", id)
	}
	out := *o
	b.unlink(tx, o)
	tx.Emit(b.addr, Cancelled{OrderID: id})
	return out, nil
}

// Expire collects one resting order that outlived its lifetime.
func (b *Book) Expire(tx *ledger.Tx, id OrderID) (Order, error) {
	if err := b.checkOwner(tx); err != nil {
		return Order{}, err
	}
	o, err := b.lookup(id)
	if err != nil {
		return Order{}, err
	}
	if !o.Alive {
		return Order{}, errs.Wrap(ErrOrderNotAlive, "order %d", id)
	}
	if !o.ExpiredAt(tx.Now(), b.cfg.MaxOrderLifetime) {
		return Order{}, errs.Wrap(ErrOrderNotExpired, "order %d", id)
	}
	out := *o
	b.unlink(tx, o)
	tx.Emit(b.addr, Expired{OrderID: id})
	return out, nil
}

// Sweep collects expired orders, inspecting at most limit resting orders from
// the best prices of each side outward (asks first). limit is clamped to
// MaxMatches so one call stays as bounded as a Submit.
func (b *Book) Sweep(tx *ledger.Tx, limit int) ([]Order, error) {
	if err := b.checkOwner(tx); err != nil {
		return nil, err
	}
	now := tx.Now()
	budget := b.SweepLimit(limit)
	var out []Order

	for _, ld := range []ladder{b.asks, b.bids} {
		var levels []*level
		seen := 0
		ld.tree.Ascend(func(l *level) bool {
			if seen >= budget {
				return false
			}
			levels = append(levels, l)
			seen += len(l.queue)
			return true
		})

		for _, lvl := range levels {
			n := min(len(lvl.queue), budget)
			budget -= n
			gone := make(map[OrderID]bool)
			for _, id := range lvl.queue[:n] {
				o := b.orders[id-1]
				if o.ExpiredAt(now, b.cfg.MaxOrderLifetime) {
					gone[id] = true
					out = append(out, *o)
					b.setAlive(tx, o, false)
					tx.Emit(b.addr, Expired{OrderID: id})
				}
			}
			if len(gone) > 0 {
				ld.drop(tx, lvl, func(id OrderID) bool { return gone[id] })
			}
		}
		if budget <= 0 {
			break
		}
	}
	return out, nil
}

// SweepLimit is the number of resting orders Sweep inspects for a requested
// limit: MaxMatches when limit is out of (0, MaxMatches].
func (b *Book) SweepLimit(limit int) int {
	if limit <= 0 || limit > b.cfg.MaxMatches {
		return b.cfg.MaxMatches
	}
	return limit
}

func (b *Book) lookup(id OrderID) (*Order, error) {
	if id == 0 || int(id) > len(b.orders) {
		return nil, errs.Wrap(ErrUnknownOrder, "order %d", id)
	}
	return b.orders[id-1], nil
}

// unlink marks o dead and removes it from its level.
func (b *Book) unlink(tx *ledger.Tx, o *Order) {
	b.setAlive(tx, o, false)
	ld := b.side(o.Side)
	if lvl, ok := ld.get(o.Price); ok {
		ld.drop(tx, lvl, func(id OrderID) bool { return id == o.ID })
	}
}

func (b *Book) appendOrder(tx *ledger.Tx, o *Order) {
	n := len(b.orders)
	b.orders = append(b.orders, o)
	tx.Journal(func() {
		b.orders[n] = nil
		b.orders = b.orders[:n]
	})
}

func (b *Book) setQuantity(tx *ledger.Tx, o *Order, qty amount.Int) {
	prev := o.Quantity
	o.Quantity = qty
	tx.Journal(func() { o.Quantity = prev })
}

func (b *Book) setAlive(tx *ledger.Tx, o *Order, alive bool) {
	prev := o.Alive
	o.Alive = alive
	tx.Journal(func() { o.Alive = prev })
}

func (b *Book) recordExecution(tx *ledger.Tx, e Execution) {
	prevExec, prevLast := b.executions, b.lastPrice
	next := append(prevExec, e)
	if len(next) > b.cfg.HistorySize {
		next = next[len(next)-b.cfg.HistorySize:]
	}
	b.executions = next
	b.lastPrice = e.Price
	tx.Journal(func() {
		b.executions = prevExec
		b.lastPrice = prevLast
	})
}
