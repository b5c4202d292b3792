package option

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/errs"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/token"
	"github.com/uhyunpark/hyperoptions/pkg/util"
)

var (
	admin   = common.HexToAddress("0x00000000000000000000000000000000000AD111")
	market  = common.HexToAddress("0x0000000000000000000000000000000000000A11")
	writerA = common.HexToAddress("0xAA00000000000000000000000000000000000001")
	writerB = common.HexToAddress("0xBB00000000000000000000000000000000000002")
	holder  = common.HexToAddress("0xCC00000000000000000000000000000000000003")
	optAddr = common.HexToAddress("0x0F00000000000000000000000000000000000004")
	tokAddr = common.HexToAddress("0x7000000000000000000000000000000000000005")

	start  = time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC)
	expiry = start.Add(48 * time.Hour)
)

const (
	strike = 100
	window = 24 * time.Hour
	grace  = 24 * time.Hour
)

var n = amount.New

type fixture struct {
	t     *testing.T
	l     *ledger.Ledger
	clock *util.ManualClock
	tok   *token.Token
	opt   *Contract
}

func newFixture(t *testing.T, kind Kind) *fixture {
	t.Helper()
	clock := util.NewManualClock(start)
	tok := token.New(tokAddr, admin, "USD", 6)
	opt, err := New(optAddr, market, tok, Terms{
		Kind:             kind,
		Strike:           n(strike),
		Expiry:           expiry,
		ExerciseWindow:   window,
		LiquidationGrace: grace,
	})
	if err != nil {
		t.Fatalf("new option: %v", err)
	}
	f := &fixture{t: t, l: ledger.New(clock, nil), clock: clock, tok: tok, opt: opt}
	for _, a := range []common.Address{market, holder} {
		if err := f.l.Credit(a, n(1_000)); err != nil {
			t.Fatalf("credit: %v", err)
		}
		f.must(admin, tokAddr, 0, func(tx *ledger.Tx) error { return tok.Mint(tx, a, n(100_000)) })
	}
	return f
}

func (f *fixture) exec(sender, target common.Address, value uint64, fn func(tx *ledger.Tx) error) error {
	_, err := f.l.Exec(sender, target, n(value), fn)
	return err
}

func (f *fixture) must(sender, target common.Address, value uint64, fn func(tx *ledger.Tx) error) {
	f.t.Helper()
	if err := f.exec(sender, target, value, fn); err != nil {
		f.t.Fatalf("exec from %s: %v", sender.Hex(), err)
	}
}

// write delivers collateral for qty and writes it the way the market does.
func (f *fixture) write(writer common.Address, qty uint64) error {
	if f.opt.Kind() == Call {
		return f.exec(market, optAddr, qty, func(tx *ledger.Tx) error {
			return f.opt.Write(tx, writer, holder, n(qty))
		})
	}
	return f.exec(market, optAddr, 0, func(tx *ledger.Tx) error {
		if err := f.tok.Transfer(tx, optAddr, n(qty*strike)); err != nil {
			return err
		}
		if err := f.opt.Write(tx, writer, holder, n(qty)); err != nil {
			return err
		}
		if f.opt.Status(tx.Now()) == Waiting {
			return f.opt.Activate(tx)
		}
		return nil
	})
}

func (f *fixture) mustWrite(writer common.Address, qty uint64) {
	f.t.Helper()
	if err := f.write(writer, qty); err != nil {
		f.t.Fatalf("write %d for %s: %v", qty, writer.Hex(), err)
	}
}

func (f *fixture) exercise(qty, value uint64) error {
	return f.exec(holder, optAddr, value, func(tx *ledger.Tx) error { return f.opt.Exercise(tx, n(qty)) })
}

func (f *fixture) settle(writer common.Address) error {
	return f.exec(writer, optAddr, 0, func(tx *ledger.Tx) error { return f.opt.Settle(tx) })
}

func (f *fixture) native(a common.Address) amount.Int {
	var v amount.Int
	f.l.View(func() { v = f.l.NativeBalance(a) })
	return v
}

func wantErr(t *testing.T, err, sentinel error) {
	t.Helper()
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want %v", err, sentinel)
	}
}

func TestCallLifecycle(t *testing.T) {
	f := newFixture(t, Call)
	if got := f.opt.Status(start); got != Waiting {
		t.Fatalf("status = %s, want waiting", got)
	}
	f.mustWrite(writerA, 10)

	if got := f.opt.Status(start); got != Running {
		t.Fatalf("status = %s, want running", got)
	}
	if f.opt.BalanceOf(holder) != n(10) || f.opt.TotalSupply() != n(10) || f.opt.Collateral() != n(10) {
		t.Fatalf("balance %s supply %s collateral %s", f.opt.BalanceOf(holder), f.opt.TotalSupply(), f.opt.Collateral())
	}
	wantErr(t, f.exercise(4, 0), ErrNotExpired)

	f.clock.Set(expiry)
	if got := f.opt.Status(f.clock.Now()); got != Expired {
		t.Fatalf("status = %s, want expired", got)
	}
	wantErr(t, f.exercise(4, 0), token.ErrInsufficientAllowance)

	f.must(holder, tokAddr, 0, func(tx *ledger.Tx) error { return f.tok.Approve(tx, optAddr, n(4*strike)) })
	if err := f.exercise(4, 0); err != nil {
		t.Fatalf("exercise: %v", err)
	}
	if got := f.native(holder); got != n(1_004) {
		t.Errorf("holder native = %s, want 1004", got)
	}
	if got := f.tok.BalanceOf(optAddr); got != n(4*strike) {
		t.Errorf("contract asset = %s, want %d", got, 4*strike)
	}
	if f.opt.TotalSupply() != n(6) || f.opt.Collateral() != n(6) || f.opt.Exercised() != n(4) {
		t.Errorf("supply %s collateral %s exercised %s", f.opt.TotalSupply(), f.opt.Collateral(), f.opt.Exercised())
	}

	wantErr(t, f.settle(writerA), ErrWindowOpen)
	f.clock.Set(expiry.Add(window))
	wantErr(t, f.exercise(1, 0), ErrWindowClosed)
	wantErr(t, f.settle(holder), ErrNotWriter)

	if err := f.settle(writerA); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if got := f.native(writerA); got != n(6) {
		t.Errorf("writer native = %s, want 6", got)
	}
	if got := f.tok.BalanceOf(writerA); got != n(4*strike) {
		t.Errorf("writer asset = %s, want %d", got, 4*strike)
	}
	if !f.opt.Collateral().IsZero() || !f.opt.Proceeds().IsZero() || !f.native(optAddr).IsZero() || !f.tok.BalanceOf(optAddr).IsZero() {
		t.Errorf("pool not empty after settlement")
	}
	if got := f.opt.Status(f.clock.Now()); got != Settled {
		t.Errorf("status = %s, want settled", got)
	}
	wantErr(t, f.settle(writerA), ErrAlreadySettled)
}

func TestPutExercisePaysStrikeNotional(t *testing.T) {
	f := newFixture(t, Put)
	f.mustWrite(writerA, 3)
	if got := f.opt.Status(start); got != Running {
		t.Fatalf("status = %s, want running", got)
	}
	if got := f.tok.BalanceOf(optAddr); got != n(3*strike) {
		t.Fatalf("collateral = %s, want %d", got, 3*strike)
	}

	f.clock.Set(expiry.Add(time.Hour))
	wantErr(t, f.exercise(2, 1), ErrMissingValue)
	wantErr(t, f.exercise(2, 3), ErrExcessValue)

	before := f.tok.BalanceOf(holder)
	if err := f.exercise(2, 2); err != nil {
		t.Fatalf("exercise: %v", err)
	}
	if got, _ := f.tok.BalanceOf(holder).Sub(before); got != n(2*strike) {
		t.Errorf("holder received %s, want %d", got, 2*strike)
	}
	if got := f.native(optAddr); got != n(2) {
		t.Errorf("contract native = %s, want 2", got)
	}
	if f.opt.Collateral() != n(strike) || f.opt.Proceeds() != n(2) {
		t.Errorf("collateral %s proceeds %s", f.opt.Collateral(), f.opt.Proceeds())
	}

	f.clock.Set(expiry.Add(window))
	if err := f.settle(writerA); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if f.native(writerA) != n(2) || f.tok.BalanceOf(writerA) != n(strike) {
		t.Errorf("writer got native %s asset %s", f.native(writerA), f.tok.BalanceOf(writerA))
	}
}

func TestActivate(t *testing.T) {
	call := newFixture(t, Call)
	wantErr(t, call.exec(market, optAddr, 0, call.opt.Activate), ErrWrongKind)

	f := newFixture(t, Put)
	wantErr(t, f.exec(market, optAddr, 0, f.opt.Activate), ErrMissingCollateral)

	f.must(market, optAddr, 0, func(tx *ledger.Tx) error {
		if err := f.tok.Transfer(tx, optAddr, n(5*strike)); err != nil {
			return err
		}
		return f.opt.Write(tx, writerA, holder, n(5))
	})
	if got := f.opt.Status(start); got != Waiting {
		t.Fatalf("put status after write = %s, want waiting", got)
	}
	f.must(market, optAddr, 0, f.opt.Activate)
	if got := f.opt.Status(start); got != Running {
		t.Fatalf("status = %s, want running", got)
	}
	wantErr(t, f.exec(market, optAddr, 0, f.opt.Activate), ErrBadStatus)
}

func TestWriteRejections(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		run  func(f *fixture) error
		want error
	}{
		{"call without collateral", Call, func(f *fixture) error {
			return f.exec(market, optAddr, 4, func(tx *ledger.Tx) error { return f.opt.Write(tx, writerA, holder, n(5)) })
		}, ErrMissingCollateral},
		{"put without collateral", Put, func(f *fixture) error {
			return f.exec(market, optAddr, 0, func(tx *ledger.Tx) error { return f.opt.Write(tx, writerA, holder, n(1)) })
		}, ErrMissingCollateral},
		{"not owner", Call, func(f *fixture) error {
			return f.exec(holder, optAddr, 1, func(tx *ledger.Tx) error { return f.opt.Write(tx, writerA, holder, n(1)) })
		}, ErrNotOwner},
		{"zero quantity", Call, func(f *fixture) error {
			return f.exec(market, optAddr, 0, func(tx *ledger.Tx) error { return f.opt.Write(tx, writerA, holder, amount.Zero) })
		}, ErrBadQuantity},
		{"after expiry", Call, func(f *fixture) error {
			f.clock.Set(expiry)
			return f.write(writerA, 1)
		}, ErrExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.kind)
			wantErr(t, tt.run(f), tt.want)
			if !f.opt.TotalSupply().IsZero() || !f.native(optAddr).IsZero() || !f.tok.BalanceOf(optAddr).IsZero() {
				t.Errorf("rejected write left state behind")
			}
		})
	}
}

func TestProRataSettlementGivesRemainderToLast(t *testing.T) {
	f := newFixture(t, Call)
	f.mustWrite(writerA, 1)
	f.mustWrite(writerB, 2)
	if got := f.opt.Writers(); len(got) != 2 || got[0] != writerA || got[1] != writerB {
		t.Fatalf("writers = %v", got)
	}

	f.clock.Set(expiry)
	f.must(holder, tokAddr, 0, func(tx *ledger.Tx) error { return f.tok.Approve(tx, optAddr, n(strike)) })
	if err := f.exercise(1, 0); err != nil {
		t.Fatalf("exercise: %v", err)
	}

	f.clock.Set(expiry.Add(window))
	if err := f.settle(writerA); err != nil {
		t.Fatalf("settle A: %v", err)
	}
	if got := f.tok.BalanceOf(writerA); got != n(strike/3) {
		t.Errorf("A proceeds = %s, want %d", got, strike/3)
	}
	if got := f.native(writerA); got != n(0) {
		t.Errorf("A collateral = %s, want 0", got)
	}
	if got := f.opt.Status(f.clock.Now()); got != Expired {
		t.Errorf("status = %s after partial settlement, want expired", got)
	}

	if err := f.settle(writerB); err != nil {
		t.Fatalf("settle B: %v", err)
	}
	if got := f.tok.BalanceOf(writerB); got != n(strike-strike/3) {
		t.Errorf("B proceeds = %s, want %d", got, strike-strike/3)
	}
	if got := f.native(writerB); got != n(2) {
		t.Errorf("B collateral = %s, want 2", got)
	}
	if got := f.opt.Status(f.clock.Now()); got != Settled {
		t.Errorf("status = %s, want settled", got)
	}
}

func TestLiquidate(t *testing.T) {
	f := newFixture(t, Put)
	f.mustWrite(writerA, 1)
	f.mustWrite(writerB, 3)
	liquidate := func(by common.Address) error {
		return f.exec(by, optAddr, 0, func(tx *ledger.Tx) error { return f.opt.Liquidate(tx) })
	}

	f.clock.Set(expiry.Add(window))
	if err := f.settle(writerA); err != nil {
		t.Fatalf("settle A: %v", err)
	}
	if f.opt.CanLiquidate(f.clock.Now()) {
		t.Fatalf("liquidation open before grace")
	}
	wantErr(t, liquidate(writerB), ErrGracePending)

	f.clock.Set(expiry.Add(window + grace))
	wantErr(t, liquidate(holder), ErrNotAuthorized)
	if !f.opt.CanLiquidate(f.clock.Now()) {
		t.Fatalf("liquidation closed after grace")
	}
	if err := liquidate(market); err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if got := f.tok.BalanceOf(writerB); got != n(3*strike) {
		t.Errorf("B paid %s, want %d", got, 3*strike)
	}
	if got := f.tok.BalanceOf(writerA); got != n(strike) {
		t.Errorf("A paid %s, want %d", got, strike)
	}
	if got := f.opt.Status(f.clock.Now()); got != Liquidated {
		t.Errorf("status = %s, want liquidated", got)
	}
	if !f.opt.Collateral().IsZero() || !f.tok.BalanceOf(optAddr).IsZero() {
		t.Errorf("collateral left after liquidation")
	}
	wantErr(t, liquidate(writerA), ErrBadStatus)
	wantErr(t, f.settle(writerB), ErrBadStatus)
}

func TestLockedBalance(t *testing.T) {
	f := newFixture(t, Call)
	f.mustWrite(writerA, 10)
	lock := func(sender common.Address, qty uint64) error {
		return f.exec(sender, optAddr, 0, func(tx *ledger.Tx) error { return f.opt.Lock(tx, holder, n(qty)) })
	}
	unlock := func(qty uint64) error {
		return f.exec(market, optAddr, 0, func(tx *ledger.Tx) error { return f.opt.Unlock(tx, holder, n(qty)) })
	}
	transferFrom := func(spender common.Address, qty uint64) error {
		return f.exec(spender, optAddr, 0, func(tx *ledger.Tx) error {
			return f.opt.TransferFrom(tx, holder, writerB, n(qty))
		})
	}

	wantErr(t, lock(holder, 5), ErrNotOwner)
	if err := lock(market, 5); err != nil {
		t.Fatalf("lock: %v", err)
	}
	wantErr(t, lock(market, 6), ErrInsufficientFree)
	if f.opt.FreeBalanceOf(holder) != n(5) || f.opt.LockedOf(holder) != n(5) || f.opt.BalanceOf(holder) != n(10) {
		t.Fatalf("free %s locked %s", f.opt.FreeBalanceOf(holder), f.opt.LockedOf(holder))
	}

	err := f.exec(holder, optAddr, 0, func(tx *ledger.Tx) error { return f.opt.Transfer(tx, writerA, n(6)) })
	wantErr(t, err, ErrInsufficientFree)
	wantErr(t, transferFrom(market, 6), ErrInsufficientFree)
	wantErr(t, unlock(6), ErrInsufficientLocked)

	if err := unlock(5); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if err := transferFrom(market, 6); err != nil {
		t.Fatalf("owner transfer without allowance: %v", err)
	}
	wantErr(t, transferFrom(writerA, 1), ErrAllowance)

	f.must(holder, optAddr, 0, func(tx *ledger.Tx) error { return f.opt.Approve(tx, writerA, n(2)) })
	if err := transferFrom(writerA, 2); err != nil {
		t.Fatalf("transferFrom with allowance: %v", err)
	}
	if f.opt.BalanceOf(writerB) != n(8) || !f.opt.Allowance(holder, writerA).IsZero() {
		t.Errorf("writerB %s allowance %s", f.opt.BalanceOf(writerB), f.opt.Allowance(holder, writerA))
	}
}

func TestExerciseRejectsReentryFromAssetHook(t *testing.T) {
	f := newFixture(t, Put)
	f.mustWrite(writerA, 3)
	f.clock.Set(expiry)

	f.tok.SetTransferHook(func(tx *ledger.Tx, from, to common.Address, v amount.Int) error {
		if from == optAddr {
			return f.opt.Exercise(tx.As(holder), n(1))
		}
		return nil
	})
	err := f.exercise(1, 1)
	if !errors.Is(err, errs.ErrReentrant) || !errs.Is(err, errs.KindReentrancy) {
		t.Fatalf("err = %v, want reentrancy", err)
	}
	f.tok.SetTransferHook(nil)

	if f.native(holder) != n(1_000) || f.opt.BalanceOf(holder) != n(3) || f.tok.BalanceOf(optAddr) != n(3*strike) {
		t.Errorf("failed exercise left state behind")
	}
	if err := f.exercise(1, 1); err != nil {
		t.Fatalf("exercise after hook removed: %v", err)
	}
}

func TestNewRejectsBadTerms(t *testing.T) {
	tok := token.New(tokAddr, admin, "USD", 6)
	tests := []struct {
		name  string
		terms Terms
	}{
		{"no kind", Terms{Strike: n(1), Expiry: expiry, ExerciseWindow: window}},
		{"zero strike", Terms{Kind: Call, Expiry: expiry, ExerciseWindow: window}},
		{"no expiry", Terms{Kind: Put, Strike: n(1), ExerciseWindow: window}},
		{"no window", Terms{Kind: Put, Strike: n(1), Expiry: expiry}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(optAddr, market, tok, tt.terms)
			wantErr(t, err, ErrBadTerms)
		})
	}
}

func TestSettlementEventsKeepLifecycleNames(t *testing.T) {
	if got := (WriterSettled{}).EventName(); got != "Settled" {
		t.Errorf("WriterSettled event name = %q", got)
	}
	if got := (ContractLiquidated{}).EventName(); got != "Liquidated" {
		t.Errorf("ContractLiquidated event name = %q", got)
	}
	if Settled.String() != "settled" || Liquidated.String() != "liquidated" || Settled == Liquidated {
		t.Errorf("status values %d %d", Settled, Liquidated)
	}

	f := newFixture(t, Put)
	var logs []ledger.Log
	f.l.Subscribe(func(r *ledger.Receipt) { logs = append(logs, r.Logs...) })
	f.mustWrite(writerA, 1)
	f.mustWrite(writerB, 1)
	f.clock.Set(expiry.Add(window))
	if err := f.settle(writerA); err != nil {
		t.Fatalf("settle: %v", err)
	}
	f.clock.Set(expiry.Add(window + grace))
	f.must(market, optAddr, 0, f.opt.Liquidate)

	var settled []WriterSettled
	var liquidated []ContractLiquidated
	for _, lg := range logs {
		switch ev := lg.Event.(type) {
		case WriterSettled:
			settled = append(settled, ev)
		case ContractLiquidated:
			liquidated = append(liquidated, ev)
		}
	}
	if len(settled) != 2 || settled[0].Writer != writerA || settled[1].Writer != writerB {
		t.Fatalf("settled events = %+v", settled)
	}
	if settled[1].Collateral != n(strike) {
		t.Errorf("writerB released %s, want %d", settled[1].Collateral, strike)
	}
	if len(liquidated) != 1 || liquidated[0] != (ContractLiquidated{By: market, Writers: 1}) {
		t.Errorf("liquidated events = %+v", liquidated)
	}
	if got := f.opt.Status(f.clock.Now()); got != Liquidated {
		t.Errorf("status = %s", got)
	}
}

func TestPutAtEtherScale(t *testing.T) {
	clock := util.NewManualClock(start)
	l := ledger.New(clock, nil)
	tok := token.New(tokAddr, admin, "USD", 18)
	opt, err := NewPut(optAddr, market, tok, n(100), expiry, window, grace)
	if err != nil {
		t.Fatal(err)
	}
	nominal := amount.Ether("1.0")
	collateral := amount.Ether("100")
	if err := l.Credit(holder, amount.Ether("5")); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Exec(admin, tokAddr, amount.Zero, func(tx *ledger.Tx) error {
		return tok.Mint(tx, market, collateral)
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Exec(market, optAddr, amount.Zero, func(tx *ledger.Tx) error {
		if err := tok.Transfer(tx, optAddr, collateral); err != nil {
			return err
		}
		if err := opt.Write(tx, writerA, holder, nominal); err != nil {
			return err
		}
		return opt.Activate(tx)
	}); err != nil {
		t.Fatalf("write: %v", err)
	}

	clock.Set(expiry)
	if _, err := l.Exec(holder, optAddr, nominal, func(tx *ledger.Tx) error {
		return opt.Exercise(tx, nominal)
	}); err != nil {
		t.Fatalf("exercise: %v", err)
	}
	if got := tok.BalanceOf(holder); got != collateral {
		t.Errorf("holder received %s, want %s", got, collateral)
	}
	if got := l.NativeBalance(optAddr); got != nominal {
		t.Errorf("contract holds %s wei, want %s", got, nominal)
	}
	if !opt.TotalSupply().IsZero() || !opt.Collateral().IsZero() || opt.Proceeds() != nominal {
		t.Errorf("supply %s collateral %s proceeds %s", opt.TotalSupply(), opt.Collateral(), opt.Proceeds())
	}
}
