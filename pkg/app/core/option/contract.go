// Package option implements covered call and put contracts. A contract is
// both the collateral pool for its writers and the fungible token its holders
// trade; the market that creates it is its owner.
package option

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/errs"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/token"
)

// Contract is not safe for concurrent use; the ledger serializes access.
type Contract struct {
	addr  common.Address
	owner common.Address
	terms Terms
	asset token.Asset

	// Expired is never stored; Status derives it from the clock.
	status Status

	balances   map[common.Address]amount.Int // locked included
	locked     map[common.Address]amount.Int
	allowances map[common.Address]map[common.Address]amount.Int
	supply     amount.Int

	positions map[common.Address]amount.Int
	writers   []common.Address // in first-write order
	settled   map[common.Address]bool

	written    amount.Int
	unsettled  amount.Int
	exercised  amount.Int
	collateral amount.Int // Call: native units. Put: settlement asset.
	proceeds   amount.Int // Call: settlement asset. Put: native units.

	guard ledger.Guard
}

func New(addr, owner common.Address, asset token.Asset, terms Terms) (*Contract, error) {
	switch {
	case terms.Kind != Call && terms.Kind != Put:
		return nil, errs.Wrap(ErrBadTerms, "kind %d", terms.Kind)
	case terms.Strike.IsZero():
		return nil, errs.Wrap(ErrBadTerms, "strike must be positive")
	case terms.Expiry.IsZero():
		return nil, errs.Wrap(ErrBadTerms, "missing expiry")
	case terms.ExerciseWindow <= 0 || terms.LiquidationGrace < 0:
		return nil, errs.Wrap(ErrBadTerms, "window %s grace %s", terms.ExerciseWindow, terms.LiquidationGrace)
	case asset == nil:
		return nil, errs.Wrap(ErrBadTerms, "missing settlement asset")
	}
	return &Contract{
		addr:       addr,
		owner:      owner,
		terms:      terms,
		asset:      asset,
		balances:   make(map[common.Address]amount.Int),
		locked:     make(map[common.Address]amount.Int),
		allowances: make(map[common.Address]map[common.Address]amount.Int),
		positions:  make(map[common.Address]amount.Int),
		settled:    make(map[common.Address]bool),
	}, nil
}

func NewCall(addr, owner common.Address, asset token.Asset, strike amount.Int, expiry time.Time, window, grace time.Duration) (*Contract, error) {
	return New(addr, owner, asset, Terms{Kind: Call, Strike: strike, Expiry: expiry, ExerciseWindow: window, LiquidationGrace: grace})
}

func NewPut(addr, owner common.Address, asset token.Asset, strike amount.Int, expiry time.Time, window, grace time.Duration) (*Contract, error) {
	return New(addr, owner, asset, Terms{Kind: Put, Strike: strike, Expiry: expiry, ExerciseWindow: window, LiquidationGrace: grace})
}

func (c *Contract) Address() common.Address { return c.addr }
func (c *Contract) Owner() common.Address   { return c.owner }
func (c *Contract) Terms() Terms            { return c.terms }
func (c *Contract) Kind() Kind              { return c.terms.Kind }
func (c *Contract) Asset() token.Asset      { return c.asset }

func (c *Contract) TotalSupply() amount.Int { return c.supply }
func (c *Contract) Written() amount.Int     { return c.written }
func (c *Contract) Exercised() amount.Int   { return c.exercised }
func (c *Contract) Collateral() amount.Int  { return c.collateral }
func (c *Contract) Proceeds() amount.Int    { return c.proceeds }

// WrittenBy is the quantity writer has written in total.
func (c *Contract) WrittenBy(writer common.Address) amount.Int { return c.positions[writer] }

// Writers returns every writer in first-write order.
func (c *Contract) Writers() []common.Address {
	return append([]common.Address(nil), c.writers...)
}

func (c *Contract) HasSettled(writer common.Address) bool { return c.settled[writer] }

// Info summarizes the contract as of now.
func (c *Contract) Info(now time.Time) Info {
	return Info{
		Address:    c.addr,
		Owner:      c.owner,
		Kind:       c.terms.Kind.String(),
		Status:     c.Status(now),
		Strike:     c.terms.Strike,
		Expiry:     c.terms.Expiry,
		Supply:     c.supply,
		Written:    c.written,
		Exercised:  c.exercised,
		Collateral: c.collateral,
		Proceeds:   c.proceeds,
		Writers:    len(c.writers),
	}
}

// BalanceOf includes balance locked behind open sell orders.
func (c *Contract) BalanceOf(holder common.Address) amount.Int { return c.balances[holder] }

func (c *Contract) LockedOf(holder common.Address) amount.Int { return c.locked[holder] }

// FreeBalanceOf is what holder can transfer, exercise or lock.
func (c *Contract) FreeBalanceOf(holder common.Address) amount.Int {
	free, err := c.balances[holder].Sub(c.locked[holder])
	if err != nil {
		panic(err)
	}
	return free
}

func (c *Contract) Allowance(holder, spender common.Address) amount.Int {
	return c.allowances[holder][spender]
}

// Holders lists addresses with a non-zero balance.
func (c *Contract) Holders() []common.Address {
	out := make([]common.Address, 0, len(c.balances))
	for addr, bal := range c.balances {
		if !bal.IsZero() {
			out = append(out, addr)
		}
	}
	return out
}

func (c *Contract) Transfer(tx *ledger.Tx, to common.Address, v amount.Int) error {
	return c.move(tx, tx.Sender, to, v)
}

// TransferFrom moves holder tokens on behalf of tx.Sender. The owner needs no
// allowance.
func (c *Contract) TransferFrom(tx *ledger.Tx, from, to common.Address, v amount.Int) error {
	spender := tx.Sender
	if spender != from && spender != c.owner {
		have := c.Allowance(from, spender)
		if have.Lt(v) {
			return errs.Wrap(ErrAllowance, "%s allows %s %s, need %s", from.Hex(), spender.Hex(), have, v)
		}
		left, err := have.Sub(v)
		if err != nil {
			return err
		}
		c.setAllowance(tx, from, spender, left)
	}
	return c.move(tx, from, to, v)
}

func (c *Contract) Approve(tx *ledger.Tx, spender common.Address, v amount.Int) error {
	c.setAllowance(tx, tx.Sender, spender, v)
	tx.Emit(c.addr, Approval{Owner: tx.Sender, Spender: spender, Amount: v})
	return nil
}

// Lock reserves free balance of holder for an open sell order.
func (c *Contract) Lock(tx *ledger.Tx, holder common.Address, v amount.Int) error {
	if err := c.checkOwner(tx); err != nil {
		return err
	}
	if v.IsZero() {
		return errs.Wrap(ErrBadQuantity, "lock 0")
	}
	if free := c.FreeBalanceOf(holder); free.Lt(v) {
		return errs.Wrap(ErrInsufficientFree, "%s has %s free, need %s", holder.Hex(), free, v)
	}
	return credit(tx, c.locked, holder, v)
}

// Unlock releases balance previously locked for holder.
func (c *Contract) Unlock(tx *ledger.Tx, holder common.Address, v amount.Int) error {
	if err := c.checkOwner(tx); err != nil {
		return err
	}
	if v.IsZero() {
		return errs.Wrap(ErrBadQuantity, "unlock 0")
	}
	if have := c.locked[holder]; have.Lt(v) {
		return errs.Wrap(ErrInsufficientLocked, "%s has %s locked, need %s", holder.Hex(), have, v)
	}
	return debit(tx, c.locked, holder, v)
}

func (c *Contract) checkOwner(tx *ledger.Tx) error {
	if tx.Sender != c.owner {
		return errs.Wrap(ErrNotOwner, "%s", tx.Sender.Hex())
	}
	return nil
}

func (c *Contract) move(tx *ledger.Tx, from, to common.Address, v amount.Int) error {
	if to == (common.Address{}) {
		return errs.Wrap(ErrZeroAddress, "transfer to zero address")
	}
	if free := c.FreeBalanceOf(from); free.Lt(v) {
		return errs.Wrap(ErrInsufficientFree, "%s has %s free, need %s", from.Hex(), free, v)
	}
	if err := debit(tx, c.balances, from, v); err != nil {
		return err
	}
	if err := credit(tx, c.balances, to, v); err != nil {
		return err
	}
	tx.Emit(c.addr, Transfer{From: from, To: to, Amount: v})
	return nil
}

func (c *Contract) mint(tx *ledger.Tx, to common.Address, v amount.Int) error {
	if err := credit(tx, c.balances, to, v); err != nil {
		return err
	}
	if err := inc(tx, &c.supply, v); err != nil {
		return err
	}
	tx.Emit(c.addr, Transfer{To: to, Amount: v})
	return nil
}

func (c *Contract) burn(tx *ledger.Tx, from common.Address, v amount.Int) error {
	if err := debit(tx, c.balances, from, v); err != nil {
		return err
	}
	if err := dec(tx, &c.supply, v); err != nil {
		return err
	}
	tx.Emit(c.addr, Transfer{From: from, Amount: v})
	return nil
}

func (c *Contract) setAllowance(tx *ledger.Tx, holder, spender common.Address, v amount.Int) {
	byHolder, ok := c.allowances[holder]
	if !ok {
		byHolder = make(map[common.Address]amount.Int)
		c.allowances[holder] = byHolder
	}
	prev, had := byHolder[spender]
	byHolder[spender] = v
	tx.Journal(func() {
		if had {
			byHolder[spender] = prev
		} else {
			delete(byHolder, spender)
		}
	})
}

func credit(tx *ledger.Tx, m map[common.Address]amount.Int, k common.Address, v amount.Int) error {
	prev := m[k]
	next, err := prev.Add(v)
	if err != nil {
		return err
	}
	m[k] = next
	tx.Journal(func() { m[k] = prev })
	return nil
}

func debit(tx *ledger.Tx, m map[common.Address]amount.Int, k common.Address, v amount.Int) error {
	prev := m[k]
	next, err := prev.Sub(v)
	if err != nil {
		return err
	}
	m[k] = next
	tx.Journal(func() { m[k] = prev })
	return nil
}

func inc(tx *ledger.Tx, p *amount.Int, v amount.Int) error {
	next, err := p.Add(v)
	if err != nil {
		return err
	}
	set(tx, p, next)
	return nil
}

func dec(tx *ledger.Tx, p *amount.Int, v amount.Int) error {
	next, err := p.Sub(v)
	if err != nil {
		return err
	}
	set(tx, p, next)
	return nil
}

func set[T any](tx *ledger.Tx, p *T, v T) {
	prev := *p
	*p = v
	tx.Journal(func() { *p = prev })
}
