// Package auction prices member admission with a continuous gradual dutch
// auction. For q units bought t seconds after the auction clock:
//
//	price(q) = (k/λ) · (e^(λq/r) − 1) / e^(λt)
//
// k is the initial price, λ the decay constant and r the emission rate in
// units per second. Buying q units moves the clock forward by q/r seconds,
// and a purchase is only allowed while the clock trails now by at least that.
package auction

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lazypower/erosion/internal/fixed"
)

var (
	ErrEmissionCapacityExceeded = errors.New("emission capacity exceeded")
	ErrPriceOverflow            = errors.New("auction price overflows fixed-point range")
)

// Curve holds the immutable auction constants.
type Curve struct {
	InitialPrice  decimal.Decimal
	DecayConstant decimal.Decimal
	EmissionRate  decimal.Decimal
}

// NewCurve parses the three constants from decimal strings.
func NewCurve(initialPrice, decayConstant, emissionRate string) (Curve, error) {
	var c Curve
	var err error
	if c.InitialPrice, err = fixed.Parse(initialPrice); err != nil {
		return Curve{}, fmt.Errorf("initial price: %w", err)
	}
	if c.DecayConstant, err = fixed.Parse(decayConstant); err != nil {
		return Curve{}, fmt.Errorf("decay constant: %w", err)
	}
	if c.EmissionRate, err = fixed.Parse(emissionRate); err != nil {
		return Curve{}, fmt.Errorf("emission rate: %w", err)
	}
	return c, c.Validate()
}

// Validate requires all three constants to be positive.
func (c Curve) Validate() error {
	if c.InitialPrice.Sign() <= 0 {
		return fmt.Errorf("initial price must be positive, got %s", c.InitialPrice)
	}
	if c.DecayConstant.Sign() <= 0 {
		return fmt.Errorf("decay constant must be positive, got %s", c.DecayConstant)
	}
	if c.EmissionRate.Sign() <= 0 {
		return fmt.Errorf("emission rate must be positive, got %s", c.EmissionRate)
	}
	return nil
}

// Price returns the fixed-point cost of q units with the clock at
// latestBirth. Once λt leaves the exp domain the decay term has driven the
// price to zero. A clock behind latestBirth prices as if no time had passed.
func (c Curve) Price(q uint64, now, latestBirth decimal.Decimal) (decimal.Decimal, error) {
	quantity := fixed.FromUint(q)
	elapsed := now.Sub(latestBirth)
	if elapsed.IsNegative() {
		elapsed = decimal.Zero
	}

	num1, err := fixed.Div(c.InitialPrice, c.DecayConstant)
	if err != nil {
		return decimal.Zero, err
	}

	growth, err := fixed.Div(fixed.Mul(c.DecayConstant, quantity), c.EmissionRate)
	if err != nil {
		return decimal.Zero, err
	}
	e1, err := fixed.Exp(growth)
	if errors.Is(err, fixed.ErrExpOverflow) {
		return decimal.Zero, ErrPriceOverflow
	}
	if err != nil {
		return decimal.Zero, err
	}
	num2 := e1.Sub(fixed.One)

	decay := fixed.Mul(c.DecayConstant, elapsed)
	if decay.GreaterThan(fixed.MaxExpInput) {
		return decimal.Zero, nil
	}
	den, err := fixed.Exp(decay)
	if err != nil {
		return decimal.Zero, err
	}

	return fixed.Div(fixed.Mul(num1, num2), den)
}

// SecondsFor returns the emission-seconds q units consume.
func (c Curve) SecondsFor(q uint64) (decimal.Decimal, error) {
	return fixed.Div(fixed.FromUint(q), c.EmissionRate)
}

// Available returns the emission-seconds accrued since latestBirth.
func Available(now, latestBirth decimal.Decimal) decimal.Decimal {
	return now.Sub(latestBirth)
}

// Advance checks the emission budget for q units and returns the new clock
// position.
func (c Curve) Advance(q uint64, now, latestBirth decimal.Decimal) (decimal.Decimal, error) {
	requested, err := c.SecondsFor(q)
	if err != nil {
		return decimal.Zero, err
	}
	if requested.GreaterThan(Available(now, latestBirth)) {
		return decimal.Zero, ErrEmissionCapacityExceeded
	}
	return latestBirth.Add(requested), nil
}
