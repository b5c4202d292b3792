package options

import (
	"encoding/binary"
	"hash"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/market"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/orderbook"
	"github.com/uhyunpark/hyperoptions/pkg/consensus"
)

// computeStateHash computes a deterministic keccak digest of the application
// state after a block.
//
// State components hashed (in order):
//  1. Block height and timestamp
//  2. Per market (sorted by address): accrued fees, then per listing in
//     opening order the book address, live bid and ask depth, and the option
//     contract totals and holder balances if one was issued
//  3. Native balances (sorted by address)
//  4. Settlement token balances (sorted by address)
//
// Order escrow is not hashed: it follows from resting orders and book terms.
func (a *App) computeStateHash(height uint64, at time.Time) consensus.Hash {
	w := stateWriter{h: sha3.NewLegacyKeccak256()}
	w.u64(height)
	w.i64(at.UnixNano())

	markets := a.registry.List()
	slices.SortFunc(markets, func(x, y *market.Market) int { return x.Address().Cmp(y.Address()) })
	for _, m := range markets {
		w.addr(m.Address())
		w.amt(m.Fees())
		for _, l := range m.Listings() {
			w.addr(l.Book.Address())
			w.levels(l.Book.GetBidLevels(at))
			w.levels(l.Book.GetAskLevels(at))
			w.u64(uint64(l.Book.OrderCount()))

			c := l.Option
			if c == nil {
				continue
			}
			w.addr(c.Address())
			w.u64(uint64(c.Status(at)))
			for _, v := range []amount.Int{c.TotalSupply(), c.Written(), c.Exercised(), c.Collateral(), c.Proceeds()} {
				w.amt(v)
			}
			for _, holder := range sorted(c.Holders()) {
				w.addr(holder)
				w.amt(c.BalanceOf(holder))
				w.amt(c.LockedOf(holder))
			}
			// writer order decides who gets the settlement remainder
			for _, writer := range c.Writers() {
				w.addr(writer)
				w.amt(c.WrittenBy(writer))
				w.flag(c.HasSettled(writer))
			}
		}
	}

	for _, holder := range sorted(a.ledger.NativeHolders()) {
		w.addr(holder)
		w.amt(a.ledger.NativeBalance(holder))
	}
	for _, holder := range sorted(a.token.Holders()) {
		w.addr(holder)
		w.amt(a.token.BalanceOf(holder))
	}

	var out consensus.Hash
	w.h.Sum(out[:0])
	return out
}

type stateWriter struct {
	h   hash.Hash
	buf [8]byte
}

func (w *stateWriter) u64(v uint64) {
	binary.BigEndian.PutUint64(w.buf[:], v)
	w.h.Write(w.buf[:])
}

func (w *stateWriter) i64(v int64) { w.u64(uint64(v)) }

// amt writes v as 32 big-endian bytes.
func (w *stateWriter) amt(v amount.Int) {
	b := v.Bytes32()
	w.h.Write(b[:])
}

func (w *stateWriter) flag(b bool) {
	if b {
		w.h.Write([]byte{1})
	} else {
		w.h.Write([]byte{0})
	}
}

func (w *stateWriter) addr(a common.Address) { w.h.Write(a.Bytes()) }

func (w *stateWriter) levels(levels []orderbook.PriceLevel) {
	w.u64(uint64(len(levels)))
	for _, lv := range levels {
		w.amt(lv.Price)
		w.amt(lv.Qty)
	}
}

func sorted(addrs []common.Address) []common.Address {
	out := slices.Clone(addrs)
	slices.SortFunc(out, func(x, y common.Address) int { return x.Cmp(y) })
	return out
}
