package auction

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/erosion/internal/fixed"
)

func testCurve(t *testing.T) Curve {
	t.Helper()
	c, err := NewCurve("10", "0.5", "1")
	require.NoError(t, err)
	return c
}

func near(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	w := decimal.RequireFromString(want)
	assert.True(t, got.Sub(w).Abs().LessThan(decimal.RequireFromString("0.000000001")), "got %s, want ~%s", got, want)
}

func TestPriceAtClock(t *testing.T) {
	c := testCurve(t)

	// (10/0.5) * (e^0.5 - 1) = 12.974425414...
	p, err := c.Price(1, fixed.FromInt(100), fixed.FromInt(100))
	require.NoError(t, err)
	near(t, "12.974425414002563", p)

	// two seconds later the price has decayed by e^1
	p, err = c.Price(1, fixed.FromInt(102), fixed.FromInt(100))
	require.NoError(t, err)
	near(t, "4.773074163485658", p)
}

func TestPriceWithClockBehind(t *testing.T) {
	c := testCurve(t)

	at, err := c.Price(1, fixed.FromInt(100), fixed.FromInt(100))
	require.NoError(t, err)

	// far enough back that e^(-λt) would leave the exp domain
	p, err := c.Price(1, fixed.FromInt(100), fixed.FromInt(100+1000))
	require.NoError(t, err)
	assert.True(t, at.Equal(p), "got %s, want %s", p, at)
}

func TestPriceFallsWithTime(t *testing.T) {
	c := testCurve(t)
	prev, err := c.Price(1, fixed.FromInt(0), fixed.FromInt(0))
	require.NoError(t, err)
	for s := int64(1); s < 20; s++ {
		p, err := c.Price(1, fixed.FromInt(s), fixed.FromInt(0))
		require.NoError(t, err)
		assert.True(t, p.LessThan(prev), "t=%d price %s not below %s", s, p, prev)
		prev = p
	}
}

func TestPriceRisesWithQuantity(t *testing.T) {
	c := testCurve(t)
	prev := decimal.Zero
	for q := uint64(1); q < 10; q++ {
		p, err := c.Price(q, fixed.FromInt(5), fixed.FromInt(0))
		require.NoError(t, err)
		assert.True(t, p.GreaterThan(prev))
		prev = p
	}
}

func TestPriceLimits(t *testing.T) {
	c := testCurve(t)

	p, err := c.Price(1, fixed.FromInt(1_000_000), fixed.FromInt(0))
	require.NoError(t, err)
	assert.True(t, p.IsZero())

	_, err = c.Price(1000, fixed.FromInt(0), fixed.FromInt(0))
	assert.ErrorIs(t, err, ErrPriceOverflow)
}

func TestAdvance(t *testing.T) {
	c, err := NewCurve("10", "0.5", "0.25")
	require.NoError(t, err)

	// one unit costs four emission-seconds
	_, err = c.Advance(1, fixed.FromInt(103), fixed.FromInt(100))
	assert.ErrorIs(t, err, ErrEmissionCapacityExceeded)

	next, err := c.Advance(1, fixed.FromInt(104), fixed.FromInt(100))
	require.NoError(t, err)
	assert.True(t, next.Equal(fixed.FromInt(104)))

	_, err = c.Advance(1, fixed.FromInt(104), next)
	assert.ErrorIs(t, err, ErrEmissionCapacityExceeded)
}

func TestNewCurveValidates(t *testing.T) {
	_, err := NewCurve("10", "0", "1")
	assert.Error(t, err)
	_, err = NewCurve("-1", "0.5", "1")
	assert.Error(t, err)
	_, err = NewCurve("10", "0.5", "x")
	assert.Error(t, err)
}
