// Package fixed provides signed 18-decimal fixed-point helpers over
// shopspring/decimal. Every result is truncated toward zero at Scale
// decimal places, so repeated operations round down consistently.
package fixed

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places kept after every operation.
const Scale = 18

// MaxExpInput is the largest exponent Exp accepts. e^x above it no longer
// fits a signed 59.18-decimal value.
var MaxExpInput = decimal.RequireFromString("133.084258667509499441")

var (
	ErrDivideByZero = errors.New("fixed: divide by zero")
	ErrExpOverflow  = errors.New("fixed: exp input out of range")
	ErrNegative     = errors.New("fixed: negative value")
)

// One is 1.0.
var One = decimal.NewFromInt(1)

// FromInt converts an integer amount to fixed point.
func FromInt(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

// FromUint converts an unsigned integer amount to fixed point.
func FromUint(n uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(n), 0)
}

// Parse reads a decimal string and truncates it to Scale places.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse fixed %q: %w", s, err)
	}
	return d.Truncate(Scale), nil
}

// Mul returns a*b truncated to Scale places.
func Mul(a, b decimal.Decimal) decimal.Decimal {
	return a.Mul(b).Truncate(Scale)
}

// Div returns a/b truncated toward zero at Scale places.
func Div(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, ErrDivideByZero
	}
	q, _ := a.QuoRem(b, Scale)
	return q, nil
}

// Exp returns e^x truncated to Scale places. Inputs above MaxExpInput fail
// with ErrExpOverflow.
func Exp(x decimal.Decimal) (decimal.Decimal, error) {
	if x.GreaterThan(MaxExpInput) {
		return decimal.Zero, ErrExpOverflow
	}
	if x.Sign() < 0 {
		pos, err := Exp(x.Neg())
		if err != nil {
			return decimal.Zero, err
		}
		return Div(One, pos)
	}
	if x.IsZero() {
		return One, nil
	}
	r, err := x.ExpTaylor(Scale + 2)
	if err != nil {
		return decimal.Zero, fmt.Errorf("exp %s: %w", x, err)
	}
	return r.Truncate(Scale), nil
}

// Floor converts a non-negative fixed-point value to its integer part.
func Floor(x decimal.Decimal) (uint64, error) {
	if x.Sign() < 0 {
		return 0, ErrNegative
	}
	i := x.Floor().BigInt()
	if !i.IsUint64() {
		return 0, fmt.Errorf("floor %s: value exceeds uint64", x)
	}
	return i.Uint64(), nil
}
