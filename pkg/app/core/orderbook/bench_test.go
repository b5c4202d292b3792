package orderbook

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperoptions/pkg/util"
)

func benchBook(b *testing.B) (*Book, *ledger.Ledger) {
	b.Helper()
	book, err := New(common.HexToAddress("0xB00C"), Config{
		Owner:            owner,
		Expiry:           start.Add(365 * 24 * time.Hour),
		Strike:           n(100),
		MinimumQuantity:  n(1),
		TickSize:         n(1),
		MaxOrderLifetime: 24 * time.Hour,
	})
	if err != nil {
		b.Fatal(err)
	}
	return book, ledger.New(util.NewManualClock(start), nil)
}

func benchSubmit(b *testing.B, l *ledger.Ledger, book *Book, side Side, price, qty uint64) Result {
	var res Result
	_, err := l.Exec(owner, owner, amount.Zero, func(tx *ledger.Tx) error {
		var err error
		res, err = book.Submit(tx, alice, side, n(price), n(qty), common.Address{})
		return err
	})
	if err != nil {
		b.Fatalf("submit %s %d@%d: %v", side, qty, price, err)
	}
	return res
}

// BenchmarkSubmit places alternating orders at mid price over 100 levels per side.
func BenchmarkSubmit(b *testing.B) {
	book, l := benchBook(b)
	for i := uint64(0); i < 100; i++ {
		benchSubmit(b, l, book, Buy, 1000-i, 100)
		benchSubmit(b, l, book, Sell, 1100+i, 100)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		side := Buy
		if i%2 == 0 {
			side = Sell
		}
		benchSubmit(b, l, book, side, 1050, 10)
	}
}

// BenchmarkCancel removes resting orders spread over 1000 levels.
func BenchmarkCancel(b *testing.B) {
	book, l := benchBook(b)
	ids := make([]OrderID, 0, b.N)
	for i := 0; i < b.N; i++ {
		ids = append(ids, benchSubmit(b, l, book, Buy, uint64(1000+i%1000), 10).OrderID)
	}

	b.ResetTimer()
	for _, id := range ids {
		_, err := l.Exec(owner, owner, amount.Zero, func(tx *ledger.Tx) error {
			_, err := book.Cancel(tx, alice, id)
			return err
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSweepThrough fills one taker against 50 resting makers.
func BenchmarkSweepThrough(b *testing.B) {
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		book, l := benchBook(b)
		for j := uint64(0); j < 50; j++ {
			benchSubmit(b, l, book, Sell, 1000+j, 10)
		}
		b.StartTimer()
		if res := benchSubmit(b, l, book, Buy, 1049, 500); res.Filled() != n(500) {
			b.Fatalf("filled %s", res.Filled())
		}
	}
}
