package amount

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/errs"
)

// maxInt is 2^256-1.
var maxInt = func() Int {
	m := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	v, err := FromBig(m)
	if err != nil {
		panic(err)
	}
	return v
}()

func TestMul(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Int
		want    Int
		wantErr bool
	}{
		{"small", New(100), New(3), New(300), false},
		{"zero", Zero, maxInt, Zero, false},
		{"max", maxInt, New(1), maxInt, false},
		{"ether notional", Ether("200"), Ether("0.0002"), MustParse("40000000000000000000000000000000000", 0), false},
		{"overflow", maxInt, New(2), Zero, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.a.Mul(tt.b)
			if tt.wantErr {
				if !errors.Is(err, errs.ErrOverflow) {
					t.Fatalf("err = %v, want ErrOverflow", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("%s*%s = %s, %v, want %s", tt.a, tt.b, got, err, tt.want)
			}
		})
	}
}

func TestAddSub(t *testing.T) {
	if got, err := New(2).Add(New(3)); err != nil || got != New(5) {
		t.Errorf("2+3 = %s, %v", got, err)
	}
	if _, err := maxInt.Add(New(1)); !errors.Is(err, errs.ErrOverflow) {
		t.Errorf("add overflow err = %v", err)
	}
	if got, err := New(5).Sub(New(3)); err != nil || got != New(2) {
		t.Errorf("5-3 = %s, %v", got, err)
	}
	_, err := New(3).Sub(New(5))
	if !errors.Is(err, ErrUnderflow) || !errs.Is(err, errs.KindInvariant) {
		t.Errorf("underflow err = %v", err)
	}
}

func TestMulDivTruncates(t *testing.T) {
	i64 := New(9223372036854775807)
	tests := []struct{ a, b, c, want Int }{
		{New(10), New(1), New(3), New(3)},
		{New(10), New(2), New(3), New(6)},
		{i64, New(3), New(4), New(6917529027641081855)},
		{New(7), New(3), New(3), New(7)},
		// the product needs more than 256 bits
		{maxInt, New(2), New(3), maxInt.MulDiv(New(2), New(3))},
	}
	for _, tt := range tests {
		if got := tt.a.MulDiv(tt.b, tt.c); got != tt.want {
			t.Errorf("MulDiv(%s, %s, %s) = %s, want %s", tt.a, tt.b, tt.c, got, tt.want)
		}
	}

	want := new(big.Int).Mul(maxInt.Big(), big.NewInt(2))
	want.Quo(want, big.NewInt(3))
	if got := maxInt.MulDiv(New(2), New(3)); got.Big().Cmp(want) != 0 {
		t.Errorf("wide MulDiv = %s, want %s", got, want)
	}
}

func TestDiv(t *testing.T) {
	if got := New(7).Div(New(2)); got != New(3) {
		t.Errorf("7/2 = %s", got)
	}
	defer func() {
		if recover() == nil {
			t.Error("division by zero did not panic")
		}
	}()
	New(1).Div(Zero)
}

func TestMultipleOf(t *testing.T) {
	min := Ether("0.01")
	if !Ether("1.5").MultipleOf(min) {
		t.Error("1.5 ether is a multiple of 0.01")
	}
	if Ether("1.005").MultipleOf(min) {
		t.Error("1.005 ether is not a multiple of 0.01")
	}
	if New(5).MultipleOf(Zero) {
		t.Error("nothing is a multiple of zero")
	}
}

func TestFormatAndParse(t *testing.T) {
	if got := New(1_500_000).Format(6); got != "1.500000" {
		t.Errorf("Format = %q", got)
	}
	if got := Ether("200").Format(18); got != "200.000000000000000000" {
		t.Errorf("Format = %q", got)
	}
	v, err := Parse("2.5", 6)
	if err != nil || v != New(2_500_000) {
		t.Errorf("Parse = %s, %v", v, err)
	}
	if Ether("0.01") != New(10_000_000_000_000_000) {
		t.Errorf("Ether(0.01) = %s", Ether("0.01"))
	}
	for _, bad := range []string{"0.0000001", "abc", "-1"} {
		if _, err := Parse(bad, 6); err == nil {
			t.Errorf("Parse(%q) accepted", bad)
		}
	}
}

func TestJSON(t *testing.T) {
	var got struct {
		A Int `json:"a"`
		B Int `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a":"200000000000000000000","b":7}`), &got); err != nil {
		t.Fatal(err)
	}
	if got.A != Ether("200") || got.B != New(7) {
		t.Fatalf("decoded %s %s", got.A, got.B)
	}
	out, err := json.Marshal(got)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"a":"200000000000000000000","b":"7"}` {
		t.Fatalf("encoded %s", out)
	}
	if err := json.Unmarshal([]byte(`{"a":-1}`), &got); err == nil {
		t.Fatal("negative accepted")
	}
}
