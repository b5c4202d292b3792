package ledger

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/errs"
)

// txState is shared by every call frame of one transaction.
type txState struct {
	ledger  *Ledger
	now     time.Time
	journal journal
	logs    []Log
}

// Tx is one call frame. Sender is the immediate caller of the component
// receiving the Tx; components calling other components hand over a frame
// created with As so the callee sees them as the sender.
type Tx struct {
	state  *txState
	Sender common.Address
	Value  amount.Int
}

// As returns a frame for a call made by the component at sender.
// No value is attached to nested frames.
func (tx *Tx) As(sender common.Address) *Tx {
	return &Tx{state: tx.state, Sender: sender}
}

// Now is the transaction timestamp. It does not move during the transaction.
func (tx *Tx) Now() time.Time { return tx.state.now }

// Journal records an undo closure for a mutation that was just applied.
func (tx *Tx) Journal(undo func()) { tx.state.journal.append(undo) }

// Snapshot returns an id that RevertToSnapshot can roll back to.
func (tx *Tx) Snapshot() int { return tx.state.journal.length() }

// RevertToSnapshot undoes everything journaled after id, including events.
func (tx *Tx) RevertToSnapshot(id int) { tx.state.journal.revert(id) }

// Emit buffers an event from the component at addr.
func (tx *Tx) Emit(addr common.Address, ev Event) {
	st := tx.state
	n := len(st.logs)
	st.logs = append(st.logs, Log{Address: addr, Event: ev})
	tx.Journal(func() { st.logs = st.logs[:n] })
}

// Logs returns the events buffered so far.
func (tx *Tx) Logs() []Log { return tx.state.logs }

// NativeBalance reads a native balance as of this point in the transaction.
func (tx *Tx) NativeBalance(addr common.Address) amount.Int {
	return tx.state.ledger.native[addr]
}

// TransferNative moves v of the sender's native balance to to.
func (tx *Tx) TransferNative(to common.Address, v amount.Int) error {
	if v.IsZero() {
		return nil
	}
	native := tx.state.ledger.native
	from := tx.Sender
	fromBal, toBal := native[from], native[to]
	if fromBal.Lt(v) {
		return errs.Wrap(ErrInsufficientEth, "have %s, need %s", fromBal, v)
	}
	newFrom, err := fromBal.Sub(v)
	if err != nil {
		return err
	}
	native[from] = newFrom
	newTo, err := native[to].Add(v)
	if err != nil {
		native[from] = fromBal
		return err
	}
	native[to] = newTo
	tx.Journal(func() {
		native[to] = toBal
		native[from] = fromBal
	})
	tx.Emit(common.Address{}, NativeTransfer{From: from, To: to, Amount: v})
	return nil
}

// CreditNative mints native value to to. Only genesis and the devnet faucet use it.
func (tx *Tx) CreditNative(to common.Address, v amount.Int) error {
	native := tx.state.ledger.native
	prev := native[to]
	bal, err := prev.Add(v)
	if err != nil {
		return err
	}
	native[to] = bal
	tx.Journal(func() { native[to] = prev })
	tx.Emit(common.Address{}, NativeTransfer{To: to, Amount: v})
	return nil
}

// CreateAddress derives a fresh component address from the sender and its
// creation nonce, the way contract addresses are derived on Ethereum.
func (tx *Tx) CreateAddress() common.Address {
	nonces := tx.state.ledger.nonces
	creator := tx.Sender
	n := nonces[creator]
	nonces[creator] = n + 1
	tx.Journal(func() { nonces[creator] = n })
	return crypto.CreateAddress(creator, n)
}
