// Package market is the public entry point for one option side. A Market
// owns one order book per (expiry, strike), escrows premiums and collateral
// for resting orders, and turns fills into option issuance or transfer.
package market

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/errs"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/option"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/orderbook"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/token"
)

// Listing is everything the market keeps per (expiry, strike). Option stays
// nil until the first primary sell is matched.
type Listing struct {
	Index  int
	Expiry time.Time
	Strike amount.Int
	Book   *orderbook.Book
	Option *option.Contract

	// escrow held by the market per resting order: premium for buys,
	// collateral for primary sells. Secondary sells lock option balance instead.
	escrow map[orderbook.OrderID]amount.Int
}

// Escrow is what the market holds for a resting order.
func (l *Listing) Escrow(id orderbook.OrderID) amount.Int { return l.escrow[id] }

type bookKey struct {
	offset int64
	strike amount.Int
}

// Market is not safe for concurrent use; the ledger serializes access.
type Market struct {
	addr    common.Address
	admin   common.Address
	kind    option.Kind
	asset   token.Asset
	params  Params
	factory orderbook.Factory

	listings []*Listing
	byKey    map[bookKey]*Listing
	byBook   map[common.Address]*Listing
	byOption map[common.Address]*Listing
	fees     amount.Int

	guard ledger.Guard
}

// New creates a market for kind. A nil factory uses orderbook.AddressFactory.
func New(addr, admin common.Address, kind option.Kind, asset token.Asset, params Params, factory orderbook.Factory) (*Market, error) {
	if kind != option.Call && kind != option.Put {
		return nil, errs.Wrap(ErrBadParams, "kind %d", kind)
	}
	if asset == nil {
		return nil, errs.Wrap(ErrBadParams, "missing settlement asset")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		factory = orderbook.AddressFactory{}
	}
	return &Market{
		addr:     addr,
		admin:    admin,
		kind:     kind,
		asset:    asset,
		params:   params,
		factory:  factory,
		byKey:    make(map[bookKey]*Listing),
		byBook:   make(map[common.Address]*Listing),
		byOption: make(map[common.Address]*Listing),
	}, nil
}

func (m *Market) Address() common.Address { return m.addr }
func (m *Market) Admin() common.Address   { return m.admin }
func (m *Market) Kind() option.Kind       { return m.kind }
func (m *Market) Asset() token.Asset      { return m.asset }
func (m *Market) Params() Params          { return m.params }

// Fees is the accrued, uncollected opening fees.
func (m *Market) Fees() amount.Int { return m.fees }

// OpenBook creates the book for (expiry, strike). tx.Value pays the opening
// fee; any excess is sent back to the caller.
func (m *Market) OpenBook(tx *ledger.Tx, expiry time.Time, strike, minQty, tick amount.Int, lifetime time.Duration) (*Listing, error) {
	release, err := m.guard.Enter()
	if err != nil {
		return nil, err
	}
	defer release()

	if tx.Value.Lt(m.params.OpeningFee) {
		return nil, errs.Wrap(ErrFeeTooLow, "attached %s, fee %s", tx.Value, m.params.OpeningFee)
	}
	if !expiry.After(tx.Now()) {
		return nil, errs.Wrap(ErrPastExpiry, "%s", expiry.UTC().Format(time.RFC3339))
	}
	offset, err := m.params.ExpiryOffset(expiry)
	if err != nil {
		return nil, err
	}
	key := bookKey{offset: offset, strike: strike}
	if _, ok := m.byKey[key]; ok {
		return nil, errs.Wrap(ErrBookExists, "expiry %s strike %s", expiry.UTC().Format(time.RFC3339), strike)
	}

	mtx := tx.As(m.addr)
	book, err := m.factory.NewBook(mtx, orderbook.Config{
		Expiry:           expiry,
		Strike:           strike,
		MinimumQuantity:  minQty,
		TickSize:         tick,
		MaxOrderLifetime: lifetime,
		MaxMatches:       m.params.MaxMatches,
		HistorySize:      m.params.HistorySize,
	})
	if err != nil {
		return nil, err
	}

	l := &Listing{
		Index:  len(m.listings),
		Expiry: expiry,
		Strike: strike,
		Book:   book,
		escrow: make(map[orderbook.OrderID]amount.Int),
	}
	m.listings = append(m.listings, l)
	m.byKey[key] = l
	m.byBook[book.Address()] = l
	tx.Journal(func() {
		m.listings = m.listings[:l.Index]
		delete(m.byKey, key)
		delete(m.byBook, book.Address())
	})
	m.setFees(tx, mustAdd(m.fees, m.params.OpeningFee))
	tx.Emit(m.addr, BookOpened{Book: book.Address(), Expiry: expiry, Strike: strike})

	if excess := mustSub(tx.Value, m.params.OpeningFee); !excess.IsZero() {
		if err := mtx.TransferNative(tx.Sender, excess); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Buy pulls qty*price of the settlement asset from the caller and bids for
// qty options at price. Price improvement on fills is refunded at once; the
// premium of the resting remainder stays in escrow.
func (m *Market) Buy(tx *ledger.Tx, book common.Address, qty, price amount.Int) (orderbook.Result, error) {
	release, err := m.guard.Enter()
	if err != nil {
		return orderbook.Result{}, err
	}
	defer release()

	l, err := m.listing(book)
	if err != nil {
		return orderbook.Result{}, err
	}
	if !tx.Value.IsZero() {
		return orderbook.Result{}, errs.Wrap(ErrUnexpectedVal, "%s", tx.Value)
	}
	if err := l.Book.Validate(price, qty); err != nil {
		return orderbook.Result{}, err
	}
	premium, err := qty.Mul(price)
	if err != nil {
		return orderbook.Result{}, err
	}

	buyer, mtx := tx.Sender, tx.As(m.addr)
	if err := m.asset.TransferFrom(mtx, buyer, m.addr, premium); err != nil {
		return orderbook.Result{}, err
	}
	res, err := l.Book.Submit(mtx, buyer, orderbook.Buy, price, qty, common.Address{})
	if err != nil {
		return orderbook.Result{}, err
	}
	if !res.Remaining.IsZero() {
		m.setEscrow(tx, l, res.OrderID, mustMul(res.Remaining, price))
	}
	return res, m.settle(tx, l, buyer, price, res)
}

// Sell writes qty new options at price. The full collateral is escrowed up
// front: a Call attaches exactly qty native units, a Put has qty*strike of the
// settlement asset pulled from the caller.
func (m *Market) Sell(tx *ledger.Tx, book common.Address, qty, price amount.Int) (orderbook.Result, error) {
	release, err := m.guard.Enter()
	if err != nil {
		return orderbook.Result{}, err
	}
	defer release()

	l, err := m.listing(book)
	if err != nil {
		return orderbook.Result{}, err
	}
	if err := l.Book.Validate(price, qty); err != nil {
		return orderbook.Result{}, err
	}
	collateral, err := m.collateralFor(l, qty)
	if err != nil {
		return orderbook.Result{}, err
	}

	seller, mtx := tx.Sender, tx.As(m.addr)
	switch m.kind {
	case option.Call:
		if tx.Value != qty {
			return orderbook.Result{}, errs.Wrap(ErrValueMismatch, "attached %s, quantity %s", tx.Value, qty)
		}
	default:
		if !tx.Value.IsZero() {
			return orderbook.Result{}, errs.Wrap(ErrUnexpectedVal, "%s", tx.Value)
		}
		if err := m.asset.TransferFrom(mtx, seller, m.addr, collateral); err != nil {
			return orderbook.Result{}, err
		}
	}

	res, err := l.Book.Submit(mtx, seller, orderbook.Sell, price, qty, common.Address{})
	if err != nil {
		return orderbook.Result{}, err
	}
	if !res.Remaining.IsZero() {
		m.setEscrow(tx, l, res.OrderID, m.mustCollateral(l, res.Remaining))
	}
	return res, m.settle(tx, l, seller, price, res)
}

// SellSecondary offers qty already-issued options of the book's contract.
// The seller's balance is locked until the order fills, is cancelled or expires.
func (m *Market) SellSecondary(tx *ledger.Tx, book common.Address, qty, price amount.Int, opt common.Address) (orderbook.Result, error) {
	release, err := m.guard.Enter()
	if err != nil {
		return orderbook.Result{}, err
	}
	defer release()

	l, err := m.listing(book)
	if err != nil {
		return orderbook.Result{}, err
	}
	if l.Option == nil || l.Option.Address() != opt {
		return orderbook.Result{}, errs.Wrap(ErrWrongOption, "%s on book %s", opt.Hex(), book.Hex())
	}
	if !tx.Value.IsZero() {
		return orderbook.Result{}, errs.Wrap(ErrUnexpectedVal, "%s", tx.Value)
	}
	if err := l.Book.Validate(price, qty); err != nil {
		return orderbook.Result{}, err
	}

	seller, mtx := tx.Sender, tx.As(m.addr)
	if err := l.Option.Lock(mtx, seller, qty); err != nil {
		return orderbook.Result{}, err
	}
	res, err := l.Book.Submit(mtx, seller, orderbook.Sell, price, qty, opt)
	if err != nil {
		return orderbook.Result{}, err
	}
	return res, m.settle(tx, l, seller, price, res)
}

// Cancel kills one of the caller's resting orders and releases its escrow.
func (m *Market) Cancel(tx *ledger.Tx, book common.Address, id orderbook.OrderID) error {
	release, err := m.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	l, err := m.listing(book)
	if err != nil {
		return err
	}
	o, err := l.Book.Cancel(tx.As(m.addr), tx.Sender, id)
	if err != nil {
		return err
	}
	return m.release(tx, l, o)
}

// Sweep collects up to maxOrders expired orders of book and refunds their
// issuers. maxOrders is clamped to the book's MaxMatches. Anyone may call it.
func (m *Market) Sweep(tx *ledger.Tx, book common.Address, maxOrders int) (int, error) {
	release, err := m.guard.Enter()
	if err != nil {
		return 0, err
	}
	defer release()

	l, err := m.listing(book)
	if err != nil {
		return 0, err
	}
	orders, err := l.Book.Sweep(tx.As(m.addr), l.Book.SweepLimit(maxOrders))
	if err != nil {
		return 0, err
	}
	for _, o := range orders {
		if err := m.release(tx, l, o); err != nil {
			return 0, err
		}
	}
	return len(orders), nil
}

// ExpireOrder collects one expired order and refunds its issuer.
func (m *Market) ExpireOrder(tx *ledger.Tx, book common.Address, id orderbook.OrderID) error {
	release, err := m.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	l, err := m.listing(book)
	if err != nil {
		return err
	}
	o, err := l.Book.Expire(tx.As(m.addr), id)
	if err != nil {
		return err
	}
	return m.release(tx, l, o)
}

// CollectFees sends every accrued opening fee to to. Admin only.
func (m *Market) CollectFees(tx *ledger.Tx, to common.Address) (amount.Int, error) {
	release, err := m.guard.Enter()
	if err != nil {
		return amount.Zero, err
	}
	defer release()

	if tx.Sender != m.admin {
		return amount.Zero, errs.Wrap(ErrNotAdmin, "%s", tx.Sender.Hex())
	}
	amt := m.fees
	if amt.IsZero() {
		return amount.Zero, ErrNoFees
	}
	m.setFees(tx, amount.Zero)
	tx.Emit(m.addr, FeesCollected{To: to, Amount: amt})
	if err := tx.As(m.addr).TransferNative(to, amt); err != nil {
		return amount.Zero, err
	}
	return amt, nil
}

// Liquidate forces settlement of opt as the market. Admin only; writers can
// call the contract directly.
func (m *Market) Liquidate(tx *ledger.Tx, opt common.Address) error {
	release, err := m.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	if tx.Sender != m.admin {
		return errs.Wrap(ErrNotAdmin, "%s", tx.Sender.Hex())
	}
	l, ok := m.byOption[opt]
	if !ok {
		return errs.Wrap(ErrUnknownBook, "option %s", opt.Hex())
	}
	return l.Option.Liquidate(tx.As(m.addr))
}

// settle books the fills and expired orders that Submit reported for the
// incoming order of taker at limit price.
func (m *Market) settle(tx *ledger.Tx, l *Listing, taker common.Address, price amount.Int, res orderbook.Result) error {
	mtx := tx.As(m.addr)
	var improvement amount.Int
	for _, f := range res.Fills {
		notional := mustMul(f.Quantity, f.Price)
		if f.MakerSide == orderbook.Buy {
			m.debitEscrow(tx, l, f.MakerID, notional)
		} else {
			improvement = mustAdd(improvement, mustSub(mustMul(f.Quantity, price), notional))
		}

		if sold := f.SellUserData(); sold == (common.Address{}) {
			if f.MakerSide == orderbook.Sell {
				m.debitEscrow(tx, l, f.MakerID, m.mustCollateral(l, f.Quantity))
			}
			if err := m.issue(tx, l, f.Seller(), f.Buyer(), f.Quantity); err != nil {
				return err
			}
		} else {
			invariant(sold == l.Option.Address(), "fill for foreign option %s", sold.Hex())
			mustSucceed(l.Option.Unlock(mtx, f.Seller(), f.Quantity), "unlock %s for %s", f.Quantity, f.Seller().Hex())
			mustSucceed(l.Option.TransferFrom(mtx, f.Seller(), f.Buyer(), f.Quantity), "deliver %s to %s", f.Quantity, f.Buyer().Hex())
		}

		if err := m.asset.Transfer(mtx, f.Seller(), notional); err != nil {
			return err
		}
	}
	if !improvement.IsZero() {
		if err := m.asset.Transfer(mtx, taker, improvement); err != nil {
			return err
		}
	}
	for _, o := range res.Expired {
		if err := m.release(tx, l, o); err != nil {
			return err
		}
	}
	return nil
}

// issue moves the collateral for qty into the listing's option and writes it.
func (m *Market) issue(tx *ledger.Tx, l *Listing, writer, holder common.Address, qty amount.Int) error {
	opt, err := m.optionFor(tx, l)
	if err != nil {
		return err
	}
	mtx := tx.As(m.addr)
	collateral := m.mustCollateral(l, qty)
	if m.kind == option.Call {
		mustSucceed(mtx.TransferNative(opt.Address(), collateral), "move call collateral %s", collateral)
	} else if err := m.asset.Transfer(mtx, opt.Address(), collateral); err != nil {
		return err
	}
	if err := opt.Write(mtx, writer, holder, qty); err != nil {
		return err
	}
	if opt.Status(tx.Now()) == option.Waiting {
		if err := opt.Activate(mtx); err != nil {
			return err
		}
	}
	if m.kind == option.Call {
		tx.Emit(m.addr, CallEmission{Option: opt.Address(), Writer: writer, Quantity: qty})
	} else {
		tx.Emit(m.addr, PutEmission{Option: opt.Address(), Writer: writer, Quantity: qty})
	}
	return nil
}

func (m *Market) optionFor(tx *ledger.Tx, l *Listing) (*option.Contract, error) {
	if l.Option != nil {
		return l.Option, nil
	}
	mtx := tx.As(m.addr)
	opt, err := option.New(mtx.CreateAddress(), m.addr, m.asset, option.Terms{
		Kind:             m.kind,
		Strike:           l.Strike,
		Expiry:           l.Expiry,
		ExerciseWindow:   m.params.ExerciseWindow,
		LiquidationGrace: m.params.LiquidationGrace,
	})
	if err != nil {
		return nil, err
	}
	l.Option = opt
	m.byOption[opt.Address()] = l
	tx.Journal(func() {
		l.Option = nil
		delete(m.byOption, opt.Address())
	})
	return opt, nil
}

// release refunds whatever backed a dead order: premium for a buy, collateral
// for a primary sell, locked balance for a secondary sell.
func (m *Market) release(tx *ledger.Tx, l *Listing, o orderbook.Order) error {
	mtx := tx.As(m.addr)
	if o.Side == orderbook.Sell && o.UserData != (common.Address{}) {
		invariant(l.Option != nil, "secondary order %d without option", o.ID)
		mustSucceed(l.Option.Unlock(mtx, o.Issuer, o.Quantity), "unlock %s for %s", o.Quantity, o.Issuer.Hex())
		return nil
	}

	want := mustMul(o.Quantity, o.Price)
	if o.Side == orderbook.Sell {
		want = m.mustCollateral(l, o.Quantity)
	}
	held := l.escrow[o.ID]
	invariant(held == want, "order %d escrow %s, expected %s", o.ID, held, want)
	m.setEscrow(tx, l, o.ID, amount.Zero)

	if o.Side == orderbook.Sell && m.kind == option.Call {
		mustSucceed(mtx.TransferNative(o.Issuer, held), "refund %s native to %s", held, o.Issuer.Hex())
		return nil
	}
	if held.IsZero() {
		return nil
	}
	return m.asset.Transfer(mtx, o.Issuer, held)
}

func (m *Market) listing(book common.Address) (*Listing, error) {
	l, ok := m.byBook[book]
	if !ok {
		return nil, errs.Wrap(ErrUnknownBook, "%s", book.Hex())
	}
	return l, nil
}

// collateralFor is what backs qty options: qty native units for a Call,
// qty*strike of the settlement asset for a Put.
func (m *Market) collateralFor(l *Listing, qty amount.Int) (amount.Int, error) {
	if m.kind == option.Call {
		return qty, nil
	}
	return qty.Mul(l.Strike)
}

func (m *Market) mustCollateral(l *Listing, qty amount.Int) amount.Int {
	c, err := m.collateralFor(l, qty)
	invariant(err == nil, "collateral for %s: %v", qty, err)
	return c
}

func (m *Market) setEscrow(tx *ledger.Tx, l *Listing, id orderbook.OrderID, v amount.Int) {
	prev, had := l.escrow[id]
	if v.IsZero() {
		delete(l.escrow, id)
	} else {
		l.escrow[id] = v
	}
	tx.Journal(func() {
		if had {
			l.escrow[id] = prev
		} else {
			delete(l.escrow, id)
		}
	})
}

func (m *Market) debitEscrow(tx *ledger.Tx, l *Listing, id orderbook.OrderID, v amount.Int) {
	held := l.escrow[id]
	invariant(!held.Lt(v), "order %d escrow %s, debit %s", id, held, v)
	m.setEscrow(tx, l, id, mustSub(held, v))
}

func (m *Market) setFees(tx *ledger.Tx, v amount.Int) {
	prev := m.fees
	m.fees = v
	tx.Journal(func() { m.fees = prev })
}

func mustMul(a, b amount.Int) amount.Int {
	p, err := a.Mul(b)
	invariant(err == nil, "%s*%s overflows", a, b)
	return p
}

func mustAdd(a, b amount.Int) amount.Int {
	s, err := a.Add(b)
	invariant(err == nil, "%s+%s overflows", a, b)
	return s
}

func mustSub(a, b amount.Int) amount.Int {
	d, err := a.Sub(b)
	invariant(err == nil, "%s-%s underflows", a, b)
	return d
}

// invariant panics inside the transaction; the ledger reverts it and reports
// an invariant error.
func invariant(ok bool, format string, args ...any) {
	if !ok {
		panic(fmt.Sprintf("market: "+format, args...))
	}
}

func mustSucceed(err error, format string, args ...any) {
	if err != nil {
		panic(fmt.Sprintf("market: "+format+": %v", append(args, err)...))
	}
}
