package engine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/lazypower/erosion/internal/auth"
	"github.com/lazypower/erosion/internal/generation"
	"github.com/lazypower/erosion/internal/store"
)

// SetGeneration appends a new generation and makes it current. The caller
// must be authorized and the epoch must be strictly greater than the
// current one.
func (e *Engine) SetGeneration(caller common.Address, g generation.Config) (string, error) {
	opID, err := e.mutate("setGeneration", func(tx *store.Tx, opID string) error {
		if e.Auth == nil || !e.Auth.CanCall(caller, auth.OpSetGeneration) {
			return ErrUnauthorized
		}
		if err := g.Validate(); err != nil {
			return err
		}
		current, err := tx.CurrentGeneration()
		if err != nil {
			return err
		}
		if g.Epoch <= current.Epoch {
			return fmt.Errorf("epoch %d after %d: %w", g.Epoch, current.Epoch, ErrEpochNotAdvancing)
		}
		if err := tx.PutGeneration(g); err != nil {
			return err
		}
		return tx.AppendEvent(generationEvent(opID, g))
	})
	if err != nil {
		return opID, err
	}

	e.Metrics.Epoch(g.Epoch)
	e.log.Info().
		Str("op_id", opID).
		Str("caller", caller.Hex()).
		Uint32("epoch", g.Epoch).
		Uint32("capacity", g.Capacity).
		Uint32("decay_rate", g.DecayRate).
		Uint32("base_loss_rate", g.BaseLossRate).
		Str("proof_root", g.ProofRoot.Hex()).
		Msg("generation changed")
	return opID, nil
}

// Generation returns the config stored for epoch.
func (e *Engine) Generation(epoch uint32) (generation.Config, error) {
	var g *generation.Config
	err := e.view(func(tx *store.Tx) error {
		var err error
		g, err = tx.Generation(epoch)
		return err
	})
	if err != nil {
		return generation.Config{}, err
	}
	if g == nil {
		return generation.Config{}, fmt.Errorf("epoch %d: %w", epoch, ErrUnknownGeneration)
	}
	return *g, nil
}

// CurrentGeneration returns the current generation.
func (e *Engine) CurrentGeneration() (generation.Config, error) {
	var g generation.Config
	err := e.view(func(tx *store.Tx) error {
		var err error
		g, err = tx.CurrentGeneration()
		return err
	})
	return g, err
}

// Generations lists every generation ever set, oldest first.
func (e *Engine) Generations() ([]generation.Config, error) {
	var out []generation.Config
	err := e.view(func(tx *store.Tx) error {
		var err error
		out, err = tx.Generations()
		return err
	})
	return out, err
}

// Capacity returns the birth endowment of epoch.
func (e *Engine) Capacity(epoch uint32) (uint32, error) {
	g, err := e.Generation(epoch)
	return g.Capacity, err
}

// DecayRate returns the seconds per unit of decay in epoch.
func (e *Engine) DecayRate(epoch uint32) (uint32, error) {
	g, err := e.Generation(epoch)
	return g.DecayRate, err
}

// BaseLossRate returns the flat knowledge added to every shard price in epoch.
func (e *Engine) BaseLossRate(epoch uint32) (uint32, error) {
	g, err := e.Generation(epoch)
	return g.BaseLossRate, err
}

// Info is a snapshot of the community instance.
type Info struct {
	Name          string
	Symbol        string
	InitialPrice  decimal.Decimal
	DecayConstant decimal.Decimal
	EmissionRate  decimal.Decimal
	LatestBirth   decimal.Decimal
	CurrentEpoch  uint32
	TotalSupply   uint64
	Now           uint64
}

// Info returns the community snapshot.
func (e *Engine) Info() (Info, error) {
	var info Info
	err := e.view(func(tx *store.Tx) error {
		c, err := tx.Community()
		if err != nil {
			return err
		}
		if c == nil {
			return ErrNotBootstrapped
		}
		supply, err := tx.TotalSupply()
		if err != nil {
			return err
		}
		info = Info{
			Name:          c.Name,
			Symbol:        c.Symbol,
			InitialPrice:  c.InitialPrice,
			DecayConstant: c.DecayConstant,
			EmissionRate:  c.EmissionRate,
			LatestBirth:   c.LatestBirth,
			CurrentEpoch:  c.CurrentEpoch,
			TotalSupply:   supply,
			Now:           e.now(),
		}
		return nil
	})
	return info, err
}
