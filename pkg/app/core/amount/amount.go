// Package amount holds the integer arithmetic used for balances, quantities,
// prices and notionals. Values are unsigned 256-bit integers in base units
// (wei for native value), held by value so they can be copied, compared
// with == and used in maps. Every operation that could wrap is checked.
package amount

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/errs"
)

// NativeDecimals is the precision of native value: 1 native unit = 1e18 wei.
const NativeDecimals = 18

// Int is a non-negative amount in base units. The zero value is 0.
type Int struct {
	v uint256.Int
}

// Zero is the additive identity.
var Zero Int

// ErrUnderflow means a subtraction went below zero. Callers check balances
// before subtracting, so reaching it is a bookkeeping bug.
var ErrUnderflow = errs.New(errs.KindInvariant, "amount underflows")

// New returns u base units.
func New(u uint64) Int {
	var a Int
	a.v.SetUint64(u)
	return a
}

// FromBig converts b, rejecting negative values and values above 2^256-1.
func FromBig(b *big.Int) (Int, error) {
	if b.Sign() < 0 {
		return Int{}, errs.Wrap(errs.ErrOverflow, "negative %s", b)
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return Int{}, errs.Wrap(errs.ErrOverflow, "%s", b)
	}
	return Int{v: *v}, nil
}

// FromDecimal parses a base-10 integer of base units.
func FromDecimal(s string) (Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Int{}, errs.Wrap(errs.ErrOverflow, "parse %q: %v", s, err)
	}
	return Int{v: *v}, nil
}

// Parse converts a fixed-point string ("0.01") into base units with the
// given decimals, rejecting extra precision and negative values.
func Parse(s string, decimals int32) (Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Int{}, errs.Wrap(errs.ErrOverflow, "parse %q: %v", s, err)
	}
	scaled := d.Shift(decimals)
	if !scaled.IsInteger() {
		return Int{}, errs.Wrap(errs.ErrOverflow, "%q has more than %d decimals", s, decimals)
	}
	return FromBig(scaled.BigInt())
}

// MustParse is Parse for constants known to be valid.
func MustParse(s string, decimals int32) Int {
	a, err := Parse(s, decimals)
	if err != nil {
		panic(err)
	}
	return a
}

// Ether returns s native units in wei, e.g. Ether("0.01") = 1e16.
func Ether(s string) Int { return MustParse(s, NativeDecimals) }

func (a Int) Add(b Int) (Int, error) {
	var z Int
	if _, overflow := z.v.AddOverflow(&a.v, &b.v); overflow {
		return Int{}, errs.Wrap(errs.ErrOverflow, "%s+%s", a, b)
	}
	return z, nil
}

func (a Int) Sub(b Int) (Int, error) {
	if a.v.Lt(&b.v) {
		return Int{}, errs.Wrap(ErrUnderflow, "%s-%s", a, b)
	}
	var z Int
	z.v.Sub(&a.v, &b.v)
	return z, nil
}

func (a Int) Mul(b Int) (Int, error) {
	var z Int
	if _, overflow := z.v.MulOverflow(&a.v, &b.v); overflow {
		return Int{}, errs.Wrap(errs.ErrOverflow, "%s*%s", a, b)
	}
	return z, nil
}

// MulDiv returns floor(a*b/c) with a 512-bit intermediate product. c must
// be positive and the result must fit, which holds whenever b <= c.
func (a Int) MulDiv(b, c Int) Int {
	if c.IsZero() {
		panic("amount: MulDiv by zero")
	}
	var z Int
	if _, overflow := z.v.MulDivOverflow(&a.v, &b.v, &c.v); overflow {
		panic(fmt.Sprintf("amount: MulDiv(%s, %s, %s) overflows", a, b, c))
	}
	return z
}

// Div returns floor(a/b). b must be positive.
func (a Int) Div(b Int) Int {
	if b.IsZero() {
		panic("amount: division by zero")
	}
	var z Int
	z.v.Div(&a.v, &b.v)
	return z
}

// MultipleOf reports whether a is a whole multiple of unit. unit must be positive.
func (a Int) MultipleOf(unit Int) bool {
	if unit.IsZero() {
		return false
	}
	var r uint256.Int
	r.Mod(&a.v, &unit.v)
	return r.IsZero()
}

func (a Int) Cmp(b Int) int { return a.v.Cmp(&b.v) }
func (a Int) Lt(b Int) bool { return a.v.Lt(&b.v) }
func (a Int) Gt(b Int) bool { return a.v.Gt(&b.v) }
func (a Int) IsZero() bool  { return a.v.IsZero() }

// Min returns the smaller of a and b.
func Min(a, b Int) Int {
	if a.Lt(b) {
		return a
	}
	return b
}

// String renders base units in base 10.
func (a Int) String() string { return a.v.Dec() }

// Big returns a copy as a big.Int.
func (a Int) Big() *big.Int { return a.v.ToBig() }

// Bytes32 is the big-endian encoding used for hashing.
func (a Int) Bytes32() [32]byte { return a.v.Bytes32() }

// Format renders base units as a fixed-point string with the given decimals.
func (a Int) Format(decimals int32) string {
	return decimal.NewFromBigInt(a.Big(), -decimals).StringFixed(decimals)
}

// MarshalText encodes base units as a decimal string. JSON therefore carries
// amounts as strings, which 64-bit float readers cannot mangle.
func (a Int) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Int) UnmarshalText(b []byte) error {
	v, err := FromDecimal(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// UnmarshalJSON accepts a decimal string or a bare JSON integer.
func (a *Int) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
		b = b[1 : len(b)-1]
	}
	return a.UnmarshalText(b)
}
