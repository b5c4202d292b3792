package option

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/errs"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/ledger"
)

// Status reads the lifecycle state at now. Running turns into Expired as soon
// as now reaches expiry.
func (c *Contract) Status(now time.Time) Status {
	if c.status == Running && !now.Before(c.terms.Expiry) {
		return Expired
	}
	return c.status
}

// Write records qty written by writer and mints it to holder. The owner must
// have delivered the collateral to the contract address beforehand.
func (c *Contract) Write(tx *ledger.Tx, writer, holder common.Address, qty amount.Int) error {
	release, err := c.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	if err := c.checkOwner(tx); err != nil {
		return err
	}
	if qty.IsZero() {
		return errs.Wrap(ErrBadQuantity, "write 0")
	}
	if writer == (common.Address{}) || holder == (common.Address{}) {
		return errs.Wrap(ErrZeroAddress, "writer %s holder %s", writer.Hex(), holder.Hex())
	}
	if !tx.Now().Before(c.terms.Expiry) {
		return errs.Wrap(ErrExpired, "expiry %s", c.terms.Expiry.UTC().Format(time.RFC3339))
	}
	if c.status == Settled || c.status == Liquidated {
		return errs.Wrap(ErrBadStatus, "%s", c.status)
	}

	need, err := c.collateralFor(qty)
	if err != nil {
		return err
	}
	total, err := c.collateral.Add(need)
	if err != nil {
		return err
	}
	if held := c.held(tx); held.Lt(total) {
		return errs.Wrap(ErrMissingCollateral, "holding %s, need %s", held, total)
	}

	if _, ok := c.positions[writer]; !ok {
		n := len(c.writers)
		c.writers = append(c.writers, writer)
		tx.Journal(func() {
			c.writers = c.writers[:n]
			delete(c.positions, writer)
		})
	}
	if err := credit(tx, c.positions, writer, qty); err != nil {
		return err
	}
	if err := inc(tx, &c.written, qty); err != nil {
		return err
	}
	if err := inc(tx, &c.unsettled, qty); err != nil {
		return err
	}
	set(tx, &c.collateral, total)
	if err := c.mint(tx, holder, qty); err != nil {
		return err
	}
	if c.terms.Kind == Call && c.status == Waiting {
		set(tx, &c.status, Running)
	}
	tx.Emit(c.addr, Written{Writer: writer, Holder: holder, Quantity: qty})
	c.checkBacked()
	return nil
}

// Activate starts a Put once its posted collateral covers everything written.
func (c *Contract) Activate(tx *ledger.Tx) error {
	if c.terms.Kind != Put {
		return errs.Wrap(ErrWrongKind, "activate on %s", c.terms.Kind)
	}
	if c.status != Waiting {
		return errs.Wrap(ErrBadStatus, "%s", c.status)
	}
	need, err := c.collateralFor(c.written)
	if err != nil {
		return err
	}
	if c.written.IsZero() || c.collateral.Lt(need) {
		return errs.Wrap(ErrMissingCollateral, "written %s, collateral %s", c.written, c.collateral)
	}
	set(tx, &c.status, Running)
	tx.Emit(c.addr, Activated{Written: c.written, Collateral: c.collateral})
	return nil
}

// Exercise burns qty of the caller's free balance during the exercise window.
// A Call holder pays qty*strike of the settlement asset (approved to the
// contract) and receives qty native units. A Put holder attaches exactly qty
// native units and receives qty*strike of the settlement asset.
func (c *Contract) Exercise(tx *ledger.Tx, qty amount.Int) error {
	release, err := c.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	holder := tx.Sender
	now := tx.Now()
	switch {
	case now.Before(c.terms.Expiry):
		return errs.Wrap(ErrNotExpired, "expiry %s", c.terms.Expiry.UTC().Format(time.RFC3339))
	case !now.Before(c.terms.WindowClose()):
		return errs.Wrap(ErrWindowClosed, "closed at %s", c.terms.WindowClose().UTC().Format(time.RFC3339))
	case c.status != Running:
		return errs.Wrap(ErrBadStatus, "%s", c.Status(now))
	}
	if qty.IsZero() {
		return errs.Wrap(ErrBadQuantity, "exercise 0")
	}
	if free := c.FreeBalanceOf(holder); free.Lt(qty) {
		return errs.Wrap(ErrInsufficientFree, "%s has %s free, need %s", holder.Hex(), free, qty)
	}
	notional, err := qty.Mul(c.terms.Strike)
	if err != nil {
		return err
	}

	self := tx.As(c.addr)
	switch c.terms.Kind {
	case Call:
		if !tx.Value.IsZero() {
			return errs.Wrap(ErrExcessValue, "call exercise takes no value, got %s", tx.Value)
		}
		if err := c.book(tx, holder, qty, qty, notional); err != nil {
			return err
		}
		tx.Emit(c.addr, Exercised{Holder: holder, Quantity: qty, Paid: notional, Received: qty})
		c.checkBacked()
		if err := c.asset.TransferFrom(self, holder, c.addr, notional); err != nil {
			return err
		}
		return self.TransferNative(holder, qty)
	default:
		if tx.Value.Lt(qty) {
			return errs.Wrap(ErrMissingValue, "attached %s, need %s", tx.Value, qty)
		}
		if tx.Value.Gt(qty) {
			return errs.Wrap(ErrExcessValue, "attached %s, need %s", tx.Value, qty)
		}
		if err := c.book(tx, holder, qty, notional, qty); err != nil {
			return err
		}
		tx.Emit(c.addr, Exercised{Holder: holder, Quantity: qty, Paid: qty, Received: notional})
		c.checkBacked()
		return c.asset.Transfer(self, holder, notional)
	}
}

// book burns an exercised quantity and moves released collateral into proceeds.
func (c *Contract) book(tx *ledger.Tx, holder common.Address, qty, released, received amount.Int) error {
	if err := c.burn(tx, holder, qty); err != nil {
		return err
	}
	if err := dec(tx, &c.collateral, released); err != nil {
		return err
	}
	if err := inc(tx, &c.proceeds, received); err != nil {
		return err
	}
	return inc(tx, &c.exercised, qty)
}

// Settle pays the calling writer its share of what is left in the pool once
// the exercise window has closed.
func (c *Contract) Settle(tx *ledger.Tx) error {
	release, err := c.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	writer := tx.Sender
	if c.positions[writer].IsZero() {
		return errs.Wrap(ErrNotWriter, "%s", writer.Hex())
	}
	if tx.Now().Before(c.terms.WindowClose()) {
		return errs.Wrap(ErrWindowOpen, "closes at %s", c.terms.WindowClose().UTC().Format(time.RFC3339))
	}
	if c.status == Liquidated {
		return errs.Wrap(ErrBadStatus, "%s", c.status)
	}
	if c.settled[writer] {
		return errs.Wrap(ErrAlreadySettled, "%s", writer.Hex())
	}

	p, err := c.release(tx, writer)
	if err != nil {
		return err
	}
	if c.unsettled.IsZero() {
		set(tx, &c.status, Settled)
	}
	return c.pay(tx, p)
}

// CanLiquidate reports whether Liquidate would be accepted at now.
func (c *Contract) CanLiquidate(now time.Time) bool {
	return !c.unsettled.IsZero() &&
		c.status != Settled && c.status != Liquidated &&
		!now.Before(c.terms.LiquidationOpen())
}

// Liquidate settles every remaining writer after the grace period. The owner
// or any writer may call it.
func (c *Contract) Liquidate(tx *ledger.Tx) error {
	release, err := c.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	by := tx.Sender
	if by != c.owner && c.positions[by].IsZero() {
		return errs.Wrap(ErrNotAuthorized, "%s", by.Hex())
	}
	now := tx.Now()
	if !c.CanLiquidate(now) {
		if c.status == Settled || c.status == Liquidated || c.unsettled.IsZero() {
			return errs.Wrap(ErrBadStatus, "%s", c.Status(now))
		}
		return errs.Wrap(ErrGracePending, "opens at %s", c.terms.LiquidationOpen().UTC().Format(time.RFC3339))
	}

	var payouts []payout
	for _, w := range c.writers {
		if c.settled[w] {
			continue
		}
		p, err := c.release(tx, w)
		if err != nil {
			return err
		}
		payouts = append(payouts, p)
	}
	set(tx, &c.status, Liquidated)
	tx.Emit(c.addr, ContractLiquidated{By: by, Writers: len(payouts)})
	return c.pay(tx, payouts...)
}

type payout struct {
	writer     common.Address
	collateral amount.Int
	proceeds   amount.Int
}

// release books writer's share of the remaining pool. Shares are computed
// against the unsettled quantity, so the last writer takes any remainder.
func (c *Contract) release(tx *ledger.Tx, writer common.Address) (payout, error) {
	w := c.positions[writer]
	p := payout{writer: writer, collateral: c.collateral, proceeds: c.proceeds}
	if w.Lt(c.unsettled) {
		p.collateral = c.collateral.MulDiv(w, c.unsettled)
		p.proceeds = c.proceeds.MulDiv(w, c.unsettled)
	}
	if err := dec(tx, &c.collateral, p.collateral); err != nil {
		return payout{}, err
	}
	if err := dec(tx, &c.proceeds, p.proceeds); err != nil {
		return payout{}, err
	}
	if err := dec(tx, &c.unsettled, w); err != nil {
		return payout{}, err
	}
	c.settled[writer] = true
	tx.Journal(func() { delete(c.settled, writer) })
	tx.Emit(c.addr, WriterSettled{Writer: writer, Collateral: p.collateral, Proceeds: p.proceeds})
	return p, nil
}

func (c *Contract) pay(tx *ledger.Tx, payouts ...payout) error {
	self := tx.As(c.addr)
	for _, p := range payouts {
		native, asset := p.collateral, p.proceeds
		if c.terms.Kind == Put {
			native, asset = p.proceeds, p.collateral
		}
		if err := self.TransferNative(p.writer, native); err != nil {
			return err
		}
		if !asset.IsZero() {
			if err := c.asset.Transfer(self, p.writer, asset); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Contract) collateralFor(qty amount.Int) (amount.Int, error) {
	if c.terms.Kind == Call {
		return qty, nil
	}
	return qty.Mul(c.terms.Strike)
}

func (c *Contract) held(tx *ledger.Tx) amount.Int {
	if c.terms.Kind == Call {
		return tx.NativeBalance(c.addr)
	}
	return c.asset.BalanceOf(c.addr)
}

// checkBacked panics when outstanding supply is no longer fully collateralized.
func (c *Contract) checkBacked() {
	need, err := c.collateralFor(c.supply)
	outstanding, subErr := c.written.Sub(c.exercised)
	if err != nil || subErr != nil || c.supply.Gt(outstanding) || c.collateral.Lt(need) {
		panic(fmt.Sprintf("option %s: supply %s not backed by collateral %s", c.addr.Hex(), c.supply, c.collateral))
	}
}
