// Package token implements the fungible settlement asset the markets trade
// against. The core only depends on the Asset interface.
package token

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/errs"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/ledger"
)

var (
	ErrInsufficientBalance   = errs.New(errs.KindInsufficient, "insufficient token balance")
	ErrInsufficientAllowance = errs.New(errs.KindInsufficient, "insufficient allowance")
	ErrNotMinter             = errs.New(errs.KindAuthorization, "caller is not the minter")
)

// Asset is the standard transferable-balance interface consumed by markets
// and option contracts. The spender of TransferFrom is tx.Sender.
type Asset interface {
	Address() common.Address
	BalanceOf(owner common.Address) amount.Int
	Allowance(owner, spender common.Address) amount.Int
	Transfer(tx *ledger.Tx, to common.Address, v amount.Int) error
	TransferFrom(tx *ledger.Tx, from, to common.Address, v amount.Int) error
	Approve(tx *ledger.Tx, spender common.Address, v amount.Int) error
}

// TransferHook runs after a transfer is booked. It stands in for receiver
// code a real token may call into, and may itself call other components.
type TransferHook func(tx *ledger.Tx, from, to common.Address, v amount.Int) error

// Token is a journaled ERC-20 style ledger.
type Token struct {
	addr     common.Address
	minter   common.Address
	Symbol   string
	Decimals int32

	balances   map[common.Address]amount.Int
	allowances map[common.Address]map[common.Address]amount.Int
	supply     amount.Int

	hook TransferHook
}

func New(addr, minter common.Address, symbol string, decimals int32) *Token {
	return &Token{
		addr:       addr,
		minter:     minter,
		Symbol:     symbol,
		Decimals:   decimals,
		balances:   make(map[common.Address]amount.Int),
		allowances: make(map[common.Address]map[common.Address]amount.Int),
	}
}

// SetTransferHook installs h; nil removes it.
func (t *Token) SetTransferHook(h TransferHook) { t.hook = h }

func (t *Token) Address() common.Address { return t.addr }

func (t *Token) TotalSupply() amount.Int { return t.supply }

func (t *Token) BalanceOf(owner common.Address) amount.Int { return t.balances[owner] }

func (t *Token) Allowance(owner, spender common.Address) amount.Int {
	return t.allowances[owner][spender]
}

// Holders lists addresses with a non-zero balance.
func (t *Token) Holders() []common.Address {
	out := make([]common.Address, 0, len(t.balances))
	for addr, bal := range t.balances {
		if !bal.IsZero() {
			out = append(out, addr)
		}
	}
	return out
}

func (t *Token) Transfer(tx *ledger.Tx, to common.Address, v amount.Int) error {
	return t.move(tx, tx.Sender, to, v)
}

func (t *Token) TransferFrom(tx *ledger.Tx, from, to common.Address, v amount.Int) error {
	spender := tx.Sender
	if spender != from {
		have := t.Allowance(from, spender)
		if have.Lt(v) {
			return errs.Wrap(ErrInsufficientAllowance, "%s allows %s %s, need %s", from.Hex(), spender.Hex(), have, v)
		}
		left, err := have.Sub(v)
		if err != nil {
			return err
		}
		t.setAllowance(tx, from, spender, left)
	}
	return t.move(tx, from, to, v)
}

func (t *Token) Approve(tx *ledger.Tx, spender common.Address, v amount.Int) error {
	t.setAllowance(tx, tx.Sender, spender, v)
	tx.Emit(t.addr, Approval{Owner: tx.Sender, Spender: spender, Amount: v})
	return nil
}

// Mint creates v for to. Only the minter may call it.
func (t *Token) Mint(tx *ledger.Tx, to common.Address, v amount.Int) error {
	if tx.Sender != t.minter {
		return errs.Wrap(ErrNotMinter, "%s", tx.Sender.Hex())
	}
	prev := t.supply
	supply, err := prev.Add(v)
	if err != nil {
		return err
	}
	if err := t.add(tx, to, v); err != nil {
		return err
	}
	t.supply = supply
	tx.Journal(func() { t.supply = prev })
	tx.Emit(t.addr, Transfer{To: to, Amount: v})
	return nil
}

func (t *Token) move(tx *ledger.Tx, from, to common.Address, v amount.Int) error {
	if have := t.balances[from]; have.Lt(v) {
		return errs.Wrap(ErrInsufficientBalance, "%s has %s, need %s", from.Hex(), have, v)
	}
	if err := t.sub(tx, from, v); err != nil {
		return err
	}
	if err := t.add(tx, to, v); err != nil {
		return err
	}
	tx.Emit(t.addr, Transfer{From: from, To: to, Amount: v})
	if t.hook != nil {
		return t.hook(tx, from, to, v)
	}
	return nil
}

func (t *Token) add(tx *ledger.Tx, addr common.Address, v amount.Int) error {
	prev := t.balances[addr]
	bal, err := prev.Add(v)
	if err != nil {
		return err
	}
	t.set(tx, addr, prev, bal)
	return nil
}

func (t *Token) sub(tx *ledger.Tx, addr common.Address, v amount.Int) error {
	prev := t.balances[addr]
	bal, err := prev.Sub(v)
	if err != nil {
		return err
	}
	t.set(tx, addr, prev, bal)
	return nil
}

func (t *Token) set(tx *ledger.Tx, addr common.Address, prev, bal amount.Int) {
	t.balances[addr] = bal
	tx.Journal(func() { t.balances[addr] = prev })
}

func (t *Token) setAllowance(tx *ledger.Tx, owner, spender common.Address, v amount.Int) {
	byOwner, ok := t.allowances[owner]
	if !ok {
		byOwner = make(map[common.Address]amount.Int)
		t.allowances[owner] = byOwner
	}
	prev, had := byOwner[spender]
	byOwner[spender] = v
	tx.Journal(func() {
		if had {
			byOwner[spender] = prev
		} else {
			delete(byOwner, spender)
		}
	})
}

// Transfer is emitted on every balance movement; mint has a zero From.
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

var _ Asset = (*Token)(nil)
