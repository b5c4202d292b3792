package orderbook

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/errs"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperoptions/pkg/util"
)

var (
	owner   = common.HexToAddress("0x0000000000000000000000000000000000000A11")
	alice   = common.HexToAddress("0xAA00000000000000000000000000000000000001")
	bob     = common.HexToAddress("0xBB00000000000000000000000000000000000002")
	carol   = common.HexToAddress("0xCC00000000000000000000000000000000000003")
	optAddr = common.HexToAddress("0x0F00000000000000000000000000000000000004")
	start   = time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC)
)

var n = amount.New

type fixture struct {
	t     *testing.T
	l     *ledger.Ledger
	clock *util.ManualClock
	book  *Book
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	cfg := Config{
		Owner:            owner,
		Expiry:           start.Add(30 * 24 * time.Hour),
		Strike:           n(100),
		MinimumQuantity:  n(10),
		TickSize:         n(1),
		MaxOrderLifetime: time.Hour,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	b, err := New(common.HexToAddress("0xB00C"), cfg)
	if err != nil {
		t.Fatalf("new book: %v", err)
	}
	clock := util.NewManualClock(start)
	return &fixture{t: t, l: ledger.New(clock, nil), clock: clock, book: b}
}

func (f *fixture) submit(issuer common.Address, side Side, price, qty uint64) (Result, error) {
	var res Result
	_, err := f.l.Exec(owner, owner, amount.Zero, func(tx *ledger.Tx) error {
		var err error
		res, err = f.book.Submit(tx, issuer, side, n(price), n(qty), common.Address{})
		return err
	})
	return res, err
}

func (f *fixture) mustSubmit(issuer common.Address, side Side, price, qty uint64) Result {
	f.t.Helper()
	res, err := f.submit(issuer, side, price, qty)
	if err != nil {
		f.t.Fatalf("submit %s %d@%d: %v", side, qty, price, err)
	}
	return res
}

func (f *fixture) cancel(sender, issuer common.Address, id OrderID) error {
	_, err := f.l.Exec(sender, sender, amount.Zero, func(tx *ledger.Tx) error {
		_, err := f.book.Cancel(tx, issuer, id)
		return err
	})
	return err
}

type snapshot struct {
	Bids, Asks []PriceLevel
	Orders     []Order
}

func (f *fixture) snapshot() snapshot {
	now := f.clock.Now()
	s := snapshot{Bids: f.book.GetBidLevels(now), Asks: f.book.GetAskLevels(now)}
	for id := 1; id <= f.book.OrderCount(); id++ {
		o, _ := f.book.Order(OrderID(id))
		s.Orders = append(s.Orders, o)
	}
	return s
}

func TestPartialFillAtMakerPrice(t *testing.T) {
	f := newFixture(t, nil)

	ask := f.mustSubmit(alice, Sell, 2, 200)
	if ask.Remaining != n(200) || len(ask.Fills) != 0 {
		t.Fatalf("ask result = %+v", ask)
	}

	res := f.mustSubmit(bob, Buy, 3, 100)
	if len(res.Fills) != 1 {
		t.Fatalf("fills = %d, want 1", len(res.Fills))
	}
	fill := res.Fills[0]
	if fill.Price != n(2) || fill.Quantity != n(100) || fill.MakerID != ask.OrderID || fill.MakerRemaining != n(100) {
		t.Errorf("fill = %+v", fill)
	}
	if fill.Buyer() != bob || fill.Seller() != alice {
		t.Errorf("buyer/seller = %s/%s", fill.Buyer().Hex(), fill.Seller().Hex())
	}
	if !res.Remaining.IsZero() || f.book.BidSize() != 0 {
		t.Errorf("remaining=%s bidSize=%d, want 0 and 0", res.Remaining, f.book.BidSize())
	}
	resting, _ := f.book.Order(ask.OrderID)
	if resting.Quantity != n(100) || !resting.Alive {
		t.Errorf("resting ask = %+v", resting)
	}
	if f.book.GetLastPrice() != n(2) {
		t.Errorf("last price = %s, want 2", f.book.GetLastPrice())
	}
}

func TestTwoSellersThenRestingRemainder(t *testing.T) {
	f := newFixture(t, nil)
	f.mustSubmit(alice, Sell, 2, 100)
	f.mustSubmit(carol, Sell, 3, 100)

	res := f.mustSubmit(bob, Buy, 3, 300)
	if len(res.Fills) != 2 {
		t.Fatalf("fills = %d, want 2", len(res.Fills))
	}
	var paid amount.Int
	for _, fl := range res.Fills {
		notional, err := fl.Price.Mul(fl.Quantity)
		if err != nil {
			t.Fatal(err)
		}
		paid, _ = paid.Add(notional)
	}
	if paid != n(100*2+100*3) {
		t.Errorf("paid = %s, want %d", paid, 100*2+100*3)
	}
	if res.Filled() != n(200) || res.Remaining != n(100) {
		t.Errorf("filled=%s remaining=%s", res.Filled(), res.Remaining)
	}
	if f.book.AskSize() != 0 || f.book.BidSize() != 1 {
		t.Fatalf("askSize=%d bidSize=%d", f.book.AskSize(), f.book.BidSize())
	}
	price, entries, err := f.book.BidEntries(0)
	if err != nil || price != n(3) || entries != 1 {
		t.Errorf("BidEntries(0) = %s, %d, %v", price, entries, err)
	}
}

func TestPriceTimePriority(t *testing.T) {
	tests := []struct {
		name   string
		side   Side
		rest   []uint64 // prices of resting orders, submitted in this order
		price  uint64
		wantID []OrderID
	}{
		{"buy walks cheapest ask first", Buy, []uint64{3, 2, 2}, 3, []OrderID{2, 3, 1}},
		{"sell walks richest bid first", Sell, []uint64{4, 5, 5}, 4, []OrderID{2, 3, 1}},
		{"fifo within a level", Buy, []uint64{2, 2, 2}, 2, []OrderID{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			issuers := []common.Address{alice, bob, carol}
			for i, p := range tt.rest {
				f.mustSubmit(issuers[i], -tt.side, p, 10)
			}
			res := f.mustSubmit(alice, tt.side, tt.price, 30)
			var got []OrderID
			for _, fl := range res.Fills {
				got = append(got, fl.MakerID)
				if fl.Price != n(tt.rest[fl.MakerID-1]) {
					t.Errorf("order %d executed at %s, want its own price %d", fl.MakerID, fl.Price, tt.rest[fl.MakerID-1])
				}
			}
			if !reflect.DeepEqual(got, tt.wantID) {
				t.Errorf("maker order = %v, want %v", got, tt.wantID)
			}
		})
	}
}

func TestNonCrossingOrderRests(t *testing.T) {
	f := newFixture(t, nil)
	f.mustSubmit(alice, Sell, 5, 10)
	res := f.mustSubmit(bob, Buy, 4, 10)
	if len(res.Fills) != 0 || res.Remaining != n(10) {
		t.Fatalf("res = %+v", res)
	}
	bid, _ := f.book.GetBestBid()
	ask, _ := f.book.GetBestAsk()
	if bid != n(4) || ask != n(5) || f.book.GetMidPrice() != n(4) {
		t.Errorf("bid=%s ask=%s mid=%s", bid, ask, f.book.GetMidPrice())
	}
}

func TestSelfCrossAllowed(t *testing.T) {
	f := newFixture(t, nil)
	f.mustSubmit(alice, Sell, 2, 10)
	res := f.mustSubmit(alice, Buy, 2, 10)
	if len(res.Fills) != 1 || res.Fills[0].Buyer() != alice || res.Fills[0].Seller() != alice {
		t.Fatalf("self cross = %+v", res)
	}
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name  string
		price uint64
		qty   uint64
		want  error
	}{
		{"zero quantity", 5, 0, ErrBadQuantity},
		{"quantity below minimum", 5, 5, ErrBadQuantity},
		{"quantity off grid", 5, 15, ErrBadQuantity},
		{"zero price", 0, 10, ErrBadPrice},
		{"price off tick", 7, 10, ErrBadPrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(c *Config) { c.TickSize = n(5) })
			before := f.snapshot()
			_, err := f.submit(alice, Buy, tt.price, tt.qty)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if !errs.Is(err, errs.KindValidation) {
				t.Errorf("kind = %v, want validation", errs.KindOf(err))
			}
			if after := f.snapshot(); !reflect.DeepEqual(before, after) {
				t.Errorf("book changed on rejected submit")
			}
		})
	}
}

func TestOnlyOwnerSubmits(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.l.Exec(alice, alice, amount.Zero, func(tx *ledger.Tx) error {
		_, err := f.book.Submit(tx, alice, Buy, n(1), n(10), common.Address{})
		return err
	})
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}
}

func TestSubmitAfterBookExpiry(t *testing.T) {
	f := newFixture(t, nil)
	f.clock.Set(f.book.Config().Expiry)
	_, err := f.submit(alice, Buy, 1, 10)
	if !errors.Is(err, ErrBookExpired) || !errs.Is(err, errs.KindState) {
		t.Fatalf("err = %v, want ErrBookExpired", err)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	f.mustSubmit(alice, Sell, 2, 10)
	res := f.mustSubmit(alice, Sell, 2, 20)

	if err := f.cancel(owner, alice, res.OrderID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	afterFirst := f.snapshot()
	price, entries, _ := f.book.AskEntries(0)
	if price != n(2) || entries != 1 {
		t.Errorf("AskEntries(0) = %s, %d, want 2, 1", price, entries)
	}

	err := f.cancel(owner, alice, res.OrderID)
	if !errors.Is(err, ErrOrderNotAlive) {
		t.Fatalf("second cancel err = %v, want ErrOrderNotAlive", err)
	}
	if !reflect.DeepEqual(afterFirst, f.snapshot()) {
		t.Errorf("second cancel changed the book")
	}
}

func TestCancelRemovesEmptyLevel(t *testing.T) {
	f := newFixture(t, nil)
	res := f.mustSubmit(alice, Buy, 7, 10)
	if err := f.cancel(owner, alice, res.OrderID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if f.book.BidSize() != 0 {
		t.Errorf("bid size = %d, want 0", f.book.BidSize())
	}
	o, _ := f.book.Order(res.OrderID)
	if o.Alive {
		t.Errorf("cancelled order still alive")
	}
}

func TestCancelAuthorization(t *testing.T) {
	f := newFixture(t, nil)
	res := f.mustSubmit(alice, Buy, 7, 10)

	tests := []struct {
		name   string
		sender common.Address
		issuer common.Address
		id     OrderID
		want   error
	}{
		{"not the owner", bob, alice, res.OrderID, ErrNotOwner},
		{"not the issuer", owner, bob, res.OrderID, ErrNotIssuer},
		{"unknown order", owner, alice, 99, ErrUnknownOrder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.cancel(tt.sender, tt.issuer, tt.id); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if f.book.BidSize() != 1 {
		t.Errorf("rejected cancels removed the order")
	}
}

func TestExpiredOrdersSkippedWhileMatching(t *testing.T) {
	f := newFixture(t, nil)
	stale := f.mustSubmit(alice, Sell, 2, 10)
	f.clock.Advance(30 * time.Minute)
	fresh := f.mustSubmit(carol, Sell, 3, 10)
	f.clock.Advance(45 * time.Minute) // stale is 75m old, fresh 45m

	if f.book.IsLive(stale.OrderID, f.clock.Now()) {
		t.Fatalf("stale order should read as dead")
	}
	if got := f.book.GetAskLevels(f.clock.Now()); len(got) != 1 || got[0].Price != n(3) {
		t.Errorf("ask depth = %+v, want only the fresh level", got)
	}

	res := f.mustSubmit(bob, Buy, 3, 10)
	if len(res.Expired) != 1 || res.Expired[0].ID != stale.OrderID || res.Expired[0].Quantity != n(10) {
		t.Fatalf("expired = %+v", res.Expired)
	}
	if len(res.Fills) != 1 || res.Fills[0].MakerID != fresh.OrderID || res.Fills[0].Price != n(3) {
		t.Fatalf("fills = %+v", res.Fills)
	}
	if f.book.AskSize() != 0 {
		t.Errorf("ask size = %d, want 0", f.book.AskSize())
	}
	if err := f.cancel(owner, alice, stale.OrderID); !errors.Is(err, ErrOrderNotAlive) {
		t.Errorf("cancel of expired order err = %v", err)
	}
}

func TestTooManyMatchesRejectsWithoutChange(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.MaxMatches = 2 })
	for i := 0; i < 3; i++ {
		f.mustSubmit(alice, Sell, 1, 10)
	}
	before := f.snapshot()

	_, err := f.submit(bob, Buy, 1, 30)
	if !errors.Is(err, ErrTooManyMatches) {
		t.Fatalf("err = %v, want ErrTooManyMatches", err)
	}
	if !reflect.DeepEqual(before, f.snapshot()) {
		t.Errorf("book changed after rejected submit")
	}

	res := f.mustSubmit(bob, Buy, 1, 20)
	if len(res.Fills) != 2 {
		t.Errorf("fills = %d, want 2", len(res.Fills))
	}
}

func TestFailedTransactionRestoresBook(t *testing.T) {
	f := newFixture(t, nil)
	f.mustSubmit(alice, Sell, 2, 100)
	f.mustSubmit(carol, Sell, 3, 100)
	before := f.snapshot()
	history := f.book.Executions()

	downstream := errs.New(errs.KindInsufficient, "settlement failed")
	_, err := f.l.Exec(owner, owner, amount.Zero, func(tx *ledger.Tx) error {
		if _, err := f.book.Submit(tx, bob, Buy, n(3), n(150), common.Address{}); err != nil {
			return err
		}
		return downstream
	})
	if !errors.Is(err, downstream) {
		t.Fatalf("err = %v", err)
	}
	if !reflect.DeepEqual(before, f.snapshot()) {
		t.Errorf("book not restored:\nbefore %+v\nafter  %+v", before, f.snapshot())
	}
	if !reflect.DeepEqual(history, f.book.Executions()) || !f.book.GetLastPrice().IsZero() {
		t.Errorf("execution history not restored")
	}

	// The arena slot is reused by the next order.
	res := f.mustSubmit(bob, Buy, 1, 10)
	if res.OrderID != 3 {
		t.Errorf("next order id = %d, want 3", res.OrderID)
	}
}

func TestSweepCollectsExpired(t *testing.T) {
	f := newFixture(t, nil)
	f.mustSubmit(alice, Sell, 5, 10)
	f.mustSubmit(alice, Sell, 6, 10)
	f.mustSubmit(bob, Buy, 1, 10)
	f.clock.Advance(2 * time.Hour)
	live := f.mustSubmit(carol, Sell, 5, 10)

	var swept []Order
	_, err := f.l.Exec(owner, owner, amount.Zero, func(tx *ledger.Tx) error {
		var err error
		swept, err = f.book.Sweep(tx, 2)
		return err
	})
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(swept) != 1 || swept[0].ID != 1 {
		t.Fatalf("swept = %+v, want order 1 only (budget 2 covers the level at 5)", swept)
	}

	_, err = f.l.Exec(owner, owner, amount.Zero, func(tx *ledger.Tx) error {
		var err error
		swept, err = f.book.Sweep(tx, 10)
		return err
	})
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(swept) != 2 {
		t.Fatalf("second sweep = %+v, want orders 2 and 3", swept)
	}
	if f.book.AskSize() != 1 || f.book.BidSize() != 0 {
		t.Errorf("askSize=%d bidSize=%d, want 1 and 0", f.book.AskSize(), f.book.BidSize())
	}
	if id, _ := f.book.AskOrder(0, 0); id != live.OrderID {
		t.Errorf("AskOrder(0,0) = %d, want %d", id, live.OrderID)
	}
}

func TestExpireSingleOrder(t *testing.T) {
	f := newFixture(t, nil)
	res := f.mustSubmit(alice, Buy, 3, 10)
	expire := func() error {
		_, err := f.l.Exec(owner, owner, amount.Zero, func(tx *ledger.Tx) error {
			_, err := f.book.Expire(tx, res.OrderID)
			return err
		})
		return err
	}
	if err := expire(); !errors.Is(err, ErrOrderNotExpired) {
		t.Fatalf("early expire err = %v", err)
	}
	f.clock.Advance(time.Hour)
	if err := expire(); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if err := expire(); !errors.Is(err, ErrOrderNotAlive) {
		t.Fatalf("second expire err = %v", err)
	}
}

func TestReadAccessors(t *testing.T) {
	f := newFixture(t, nil)
	f.mustSubmit(alice, Buy, 4, 10)
	f.mustSubmit(bob, Buy, 5, 20)
	f.mustSubmit(carol, Buy, 5, 30)

	if f.book.BidSize() != 2 {
		t.Fatalf("bid size = %d", f.book.BidSize())
	}
	price, entries, _ := f.book.BidEntries(0)
	if price != n(5) || entries != 2 {
		t.Errorf("BidEntries(0) = %s, %d", price, entries)
	}
	id, _ := f.book.BidOrder(0, 1)
	o, err := f.book.Order(id)
	if err != nil || o.Issuer != carol || o.Quantity != n(30) || !o.Alive {
		t.Errorf("BidOrder(0,1) -> %+v, %v", o, err)
	}
	if _, _, err := f.book.BidEntries(2); !errors.Is(err, ErrNoSuchLevel) {
		t.Errorf("BidEntries(2) err = %v", err)
	}
	if _, err := f.book.BidOrder(1, 1); !errors.Is(err, ErrUnknownOrder) {
		t.Errorf("BidOrder(1,1) err = %v", err)
	}
	want := []PriceLevel{{Price: n(5), Qty: n(50), Orders: 2}, {Price: n(4), Qty: n(10), Orders: 1}}
	if got := f.book.GetBidLevels(f.clock.Now()); !reflect.DeepEqual(got, want) {
		t.Errorf("bid levels = %+v, want %+v", got, want)
	}
}

func TestExecutionHistoryIsBounded(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.HistorySize = 2 })
	for p := uint64(1); p <= 3; p++ {
		f.mustSubmit(alice, Sell, p, 10)
		f.mustSubmit(bob, Buy, p, 10)
	}
	got := f.book.Executions()
	if len(got) != 2 || got[0].Price != n(3) || got[1].Price != n(2) {
		t.Errorf("executions = %+v, want prices [3 2]", got)
	}
}

func TestFactoryAssignsOwnerAndAddress(t *testing.T) {
	clock := util.NewManualClock(start)
	l := ledger.New(clock, nil)
	var first, second *Book
	_, err := l.Exec(owner, owner, amount.Zero, func(tx *ledger.Tx) error {
		cfg := Config{Owner: alice, Expiry: start.Add(time.Hour), Strike: n(1), MinimumQuantity: n(1), TickSize: n(1), MaxOrderLifetime: time.Minute}
		var err error
		if first, err = (AddressFactory{}).NewBook(tx, cfg); err != nil {
			return err
		}
		second, err = (AddressFactory{}).NewBook(tx, cfg)
		return err
	})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if first.Config().Owner != owner {
		t.Errorf("owner = %s, want the creating caller", first.Config().Owner.Hex())
	}
	if first.Address() == second.Address() || first.Address() == (common.Address{}) {
		t.Errorf("addresses not distinct: %s %s", first.Address().Hex(), second.Address().Hex())
	}
	if first.Config().MaxMatches != DefaultMaxMatches {
		t.Errorf("max matches default not applied")
	}

	_, err = l.Exec(owner, owner, amount.Zero, func(tx *ledger.Tx) error {
		_, err := (AddressFactory{}).NewBook(tx, Config{Strike: n(1)})
		return err
	})
	if !errors.Is(err, ErrBadConfig) {
		t.Errorf("bad config err = %v", err)
	}
}

func TestHitCarriesSellUserData(t *testing.T) {
	f := newFixture(t, nil)
	var logs []ledger.Log
	f.l.Subscribe(func(r *ledger.Receipt) { logs = append(logs, r.Logs...) })

	_, err := f.l.Exec(owner, owner, amount.Zero, func(tx *ledger.Tx) error {
		if _, err := f.book.Submit(tx, alice, Sell, n(2), n(10), optAddr); err != nil {
			return err
		}
		_, err := f.book.Submit(tx, bob, Buy, n(2), n(10), common.Address{})
		return err
	})
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	var hits []Hit
	for _, lg := range logs {
		if h, ok := lg.Event.(Hit); ok {
			hits = append(hits, h)
		}
	}
	want := Hit{OrderID: 1, Buyer: bob, Seller: alice, Price: n(2), Quantity: n(10), UserData: optAddr}
	if len(hits) != 1 || hits[0] != want {
		t.Errorf("hits = %+v, want %+v", hits, want)
	}
}

func TestSweepLimitClampedToMaxMatches(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.MaxMatches = 2 })
	for p := uint64(5); p < 9; p++ {
		f.mustSubmit(alice, Sell, p, 10)
	}
	f.clock.Advance(2 * time.Hour)

	for _, limit := range []int{-1, 0, 3, 1 << 30} {
		if got := f.book.SweepLimit(limit); got != 2 {
			t.Errorf("SweepLimit(%d) = %d, want 2", limit, got)
		}
	}
	if got := f.book.SweepLimit(1); got != 1 {
		t.Errorf("SweepLimit(1) = %d, want 1", got)
	}

	var swept []Order
	_, err := f.l.Exec(owner, owner, amount.Zero, func(tx *ledger.Tx) error {
		var err error
		swept, err = f.book.Sweep(tx, 1<<30)
		return err
	})
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(swept) != 2 || swept[0].ID != 1 || swept[1].ID != 2 {
		t.Fatalf("swept = %+v, want the two best asks", swept)
	}
	if f.book.AskSize() != 2 {
		t.Errorf("ask size = %d, want 2 left for the next sweep", f.book.AskSize())
	}
}

func TestWeiScaleQuantities(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.Strike = amount.Ether("100")
		c.MinimumQuantity = amount.Ether("0.01")
		c.TickSize = amount.Ether("0.0001")
	})
	submit := func(issuer common.Address, side Side, price, qty amount.Int) (Result, error) {
		var res Result
		_, err := f.l.Exec(owner, owner, amount.Zero, func(tx *ledger.Tx) error {
			var err error
			res, err = f.book.Submit(tx, issuer, side, price, qty, common.Address{})
			return err
		})
		return res, err
	}

	if _, err := submit(alice, Sell, amount.Ether("0.0003"), amount.Ether("200")); err != nil {
		t.Fatalf("sell: %v", err)
	}
	res, err := submit(bob, Buy, amount.Ether("0.0003"), amount.Ether("1"))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if res.Filled() != amount.Ether("1") || !res.Remaining.IsZero() {
		t.Errorf("filled=%s remaining=%s", res.Filled(), res.Remaining)
	}
	if got := f.book.GetAskLevels(f.clock.Now()); len(got) != 1 || got[0].Qty != amount.Ether("199") {
		t.Errorf("asks = %+v", got)
	}

	if _, err := submit(bob, Buy, amount.Ether("0.00035"), amount.Ether("1")); !errors.Is(err, ErrBadPrice) {
		t.Errorf("off-tick price err = %v", err)
	}
	if _, err := submit(bob, Buy, amount.Ether("0.0003"), amount.Ether("0.005")); !errors.Is(err, ErrBadQuantity) {
		t.Errorf("sub-minimum quantity err = %v", err)
	}
}
