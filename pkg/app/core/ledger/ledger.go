// Package ledger runs transactions against the in-memory world state one at a
// time. Every mutation made through a Tx is journaled, so a failing
// transaction leaves no observable effect, and events reach subscribers only
// after commit.
package ledger

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/errs"
	"github.com/uhyunpark/hyperoptions/pkg/util"
)

var ErrInsufficientEth = errs.New(errs.KindInsufficient, "insufficient native balance")

// ReceiptStatus reports whether a transaction committed.
type ReceiptStatus uint8

const (
	ReceiptFailed ReceiptStatus = iota
	ReceiptSuccess
)

func (s ReceiptStatus) String() string {
	if s == ReceiptSuccess {
		return "success"
	}
	return "failed"
}

// Receipt is the auditable outcome of one Exec call.
type Receipt struct {
	Index     uint64         `json:"index"`
	Caller    common.Address `json:"caller"`
	Target    common.Address `json:"target"`
	Value     amount.Int     `json:"value"`
	Time      time.Time      `json:"time"`
	Status    ReceiptStatus  `json:"status"`
	Error     string         `json:"error,omitempty"`
	ErrorKind string         `json:"errorKind,omitempty"`
	Logs      []Log          `json:"logs"`
}

// Ledger owns native balances, contract-creation nonces and the transaction
// lock. Components keep their own state but mutate it only inside Exec.
type Ledger struct {
	mu     sync.RWMutex
	clock  util.Clock
	logger *zap.Logger

	native map[common.Address]amount.Int
	nonces map[common.Address]uint64
	seq    uint64

	subscribers []func(*Receipt)
}

func New(clock util.Clock, logger *zap.Logger) *Ledger {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Ledger{
		clock:  clock,
		logger: util.OrNop(logger),
		native: make(map[common.Address]amount.Int),
		nonces: make(map[common.Address]uint64),
	}
}

// Subscribe registers fn to receive every committed receipt. fn runs while
// the ledger lock is held and must not call back into the ledger.
func (l *Ledger) Subscribe(fn func(*Receipt)) {
	l.mu.Lock()
	l.subscribers = append(l.subscribers, fn)
	l.mu.Unlock()
}

// Exec runs fn as one atomic transaction sent by caller. value native units
// move from caller to target before fn runs. If fn fails or panics, every
// journaled mutation is undone and the receipt is marked failed.
func (l *Ledger) Exec(caller, target common.Address, value amount.Int, fn func(tx *Tx) error) (*Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := &txState{ledger: l, now: l.clock.Now()}
	tx := &Tx{state: st, Sender: caller, Value: value}

	err := l.run(tx, target, value, fn)

	l.seq++
	r := &Receipt{
		Index:  l.seq,
		Caller: caller,
		Target: target,
		Value:  value,
		Time:   st.now,
	}
	if err != nil {
		st.journal.revert(0)
		r.Status = ReceiptFailed
		r.Error = err.Error()
		r.ErrorKind = errs.KindOf(err).String()
		if errs.Is(err, errs.KindInvariant) {
			l.logger.Error("invariant_violation", zap.Uint64("tx", r.Index), zap.Error(err))
		}
		return r, err
	}

	r.Status = ReceiptSuccess
	r.Logs = st.logs
	for _, fn := range l.subscribers {
		fn(r)
	}
	return r, nil
}

func (l *Ledger) run(tx *Tx, target common.Address, value amount.Int, fn func(tx *Tx) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &errs.InvariantError{Value: rec}
		}
	}()
	if !value.IsZero() {
		if err := tx.TransferNative(target, value); err != nil {
			return err
		}
	}
	return fn(tx)
}

// View runs fn under the read lock. Reads of component state from other
// goroutines go through View.
func (l *Ledger) View(fn func()) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fn()
}

// Now reads the ledger clock.
func (l *Ledger) Now() time.Time { return l.clock.Now() }

// Height is the number of transactions executed so far.
func (l *Ledger) Height() uint64 { return l.seq }

// NativeBalance reads a native balance. Call inside View or Exec.
func (l *Ledger) NativeBalance(addr common.Address) amount.Int { return l.native[addr] }

// Credit adds native value outside any transaction (genesis allocation).
func (l *Ledger) Credit(addr common.Address, v amount.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal, err := l.native[addr].Add(v)
	if err != nil {
		return err
	}
	l.native[addr] = bal
	return nil
}

// NativeHolders lists every address with a non-zero native balance.
func (l *Ledger) NativeHolders() []common.Address {
	out := make([]common.Address, 0, len(l.native))
	for addr, bal := range l.native {
		if !bal.IsZero() {
			out = append(out, addr)
		}
	}
	return out
}
