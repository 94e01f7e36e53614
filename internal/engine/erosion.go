package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lazypower/erosion/internal/fixed"
	"github.com/lazypower/erosion/internal/generation"
	"github.com/lazypower/erosion/internal/store"
)

// price is the knowledge charged for admitting amount units right now:
// the truncated auction curve plus the generation's base loss.
func (e *Engine) price(amount, now uint64, latestBirth decimal.Decimal, g generation.Config) (uint64, error) {
	curve, err := e.curve.Price(amount, fixed.FromUint(now), latestBirth)
	if err != nil {
		return 0, err
	}
	cost, err := fixed.Floor(curve)
	if err != nil {
		return 0, fmt.Errorf("%v: %w", err, ErrPriceOverflow)
	}
	if cost+uint64(g.BaseLossRate) < cost {
		return 0, ErrPriceOverflow
	}
	return cost + uint64(g.BaseLossRate), nil
}

// KnowledgeErosion quotes the cost of a shard of amount at the current
// auction position. It does not check the emission budget.
func (e *Engine) KnowledgeErosion(amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, ErrInvalidTransferAmount
	}
	var cost uint64
	err := e.view(func(tx *store.Tx) error {
		c, err := tx.Community()
		if err != nil {
			return err
		}
		if c == nil {
			return ErrNotBootstrapped
		}
		g, err := tx.CurrentGeneration()
		if err != nil {
			return err
		}
		cost, err = e.price(amount, e.now(), c.LatestBirth, g)
		return err
	})
	return cost, err
}
