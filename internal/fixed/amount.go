package fixed

import (
	"errors"
	"fmt"
	"math/big"
)

// Amount is an unsigned fixed-point integer in the source vault's base unit
// (typically 18 decimal places). Amounts are immutable: arithmetic returns
// new values. The zero Amount is valid and equals 0.
//
// The representable range is [0, 2^256-1], matching the vaults' own word
// size. Arithmetic past the cap is reported, never wrapped: in this domain
// an overflowing sum means the protocol's own accounting is broken.
type Amount struct {
	i *big.Int // nil means zero
}

// ErrOverflow is returned when an arithmetic result exceeds the
// representable range.
var ErrOverflow = errors.New("amount overflow")

// ErrNegative is returned when constructing an Amount from a negative value.
var ErrNegative = errors.New("amount cannot be negative")

var maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Zero returns the zero amount.
func Zero() Amount {
	return Amount{}
}

// FromUint64 builds an Amount from a raw base-unit value.
func FromUint64(v uint64) Amount {
	if v == 0 {
		return Amount{}
	}
	return Amount{i: new(big.Int).SetUint64(v)}
}

// FromBig builds an Amount from a big integer, copying it.
// Negative or out-of-range inputs are rejected.
func FromBig(v *big.Int) (Amount, error) {
	if v == nil || v.Sign() == 0 {
		return Amount{}, nil
	}
	if v.Sign() < 0 {
		return Amount{}, ErrNegative
	}
	if v.Cmp(maxAmount) > 0 {
		return Amount{}, ErrOverflow
	}
	return Amount{i: new(big.Int).Set(v)}, nil
}

// Parse reads a base-10 base-unit string, as emitted by the protocol
// indexer and by NUMERIC columns.
func Parse(s string) (Amount, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("parse amount %q: not a base-10 integer", s)
	}
	return FromBig(v)
}

// MustParse is Parse for test fixtures and constants; it panics on error.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Add returns a+b, or ErrOverflow if the sum exceeds the representable range.
func (a Amount) Add(b Amount) (Amount, error) {
	if a.i == nil {
		return b, nil
	}
	if b.i == nil {
		return a, nil
	}
	sum := new(big.Int).Add(a.i, b.i)
	if sum.Cmp(maxAmount) > 0 {
		return Amount{}, ErrOverflow
	}
	return Amount{i: sum}, nil
}

// Cmp returns -1, 0, or +1 comparing a against b.
func (a Amount) Cmp(b Amount) int {
	return a.ref().Cmp(b.ref())
}

// IsZero reports whether the amount is 0.
func (a Amount) IsZero() bool {
	return a.i == nil || a.i.Sign() == 0
}

// Equal reports whether two amounts hold the same value.
func (a Amount) Equal(b Amount) bool {
	return a.Cmp(b) == 0
}

// BigInt returns a copy of the underlying integer.
func (a Amount) BigInt() *big.Int {
	return new(big.Int).Set(a.ref())
}

// String renders the raw base-unit value in base 10.
func (a Amount) String() string {
	return a.ref().String()
}

var bigZero = new(big.Int)

func (a Amount) ref() *big.Int {
	if a.i == nil {
		return bigZero
	}
	return a.i
}

// MarshalJSON renders the amount as a decimal string. Base-unit values
// routinely exceed float64 precision, so they never travel as JSON numbers.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts a decimal string or a bare integer.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
