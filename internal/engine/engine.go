package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lazypower/erosion/internal/auction"
	"github.com/lazypower/erosion/internal/auth"
	"github.com/lazypower/erosion/internal/fixed"
	"github.com/lazypower/erosion/internal/generation"
	"github.com/lazypower/erosion/internal/metrics"
	"github.com/lazypower/erosion/internal/store"
)

// Engine owns one community: its generation registry, member ledger,
// auction clock and knowledge balances. All mutations are serialized
// through a single writer and committed as one SQLite transaction each.
type Engine struct {
	DB      *store.DB
	Auth    auth.Authority
	Metrics *metrics.Collector

	clock clock.Clock
	log   zerolog.Logger
	curve auction.Curve

	// mu is the single-writer lock. Reads use their own transactions.
	mu sync.Mutex
}

// Params are the instantiation parameters of a community.
type Params struct {
	Name    string
	Symbol  string
	Curve   auction.Curve
	Genesis generation.Config
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source. Defaults to the wall clock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l.With().Str("component", "engine").Logger() }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(e *Engine) { e.Metrics = m }
}

func newEngine(db *store.DB, authority auth.Authority, opts []Option) *Engine {
	e := &Engine{
		DB:    db,
		Auth:  authority,
		clock: clock.New(),
		log:   zerolog.Nop(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.Metrics == nil {
		e.Metrics = metrics.New()
	}
	return e
}

// Bootstrap instantiates a community in an empty database: it stores the
// constants and the genesis generation and starts the auction clock now.
func Bootstrap(db *store.DB, authority auth.Authority, p Params, opts ...Option) (*Engine, error) {
	if err := p.Curve.Validate(); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	if err := p.Genesis.Validate(); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	if p.Name == "" || p.Symbol == "" {
		return nil, fmt.Errorf("bootstrap: name and symbol are required")
	}

	e := newEngine(db, authority, opts)
	opID := uuid.NewString()
	now := e.now()

	err := db.Update(func(tx *store.Tx) error {
		existing, err := tx.Community()
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadyBootstrapped
		}
		c := store.Community{
			Name:          p.Name,
			Symbol:        p.Symbol,
			InitialPrice:  p.Curve.InitialPrice,
			DecayConstant: p.Curve.DecayConstant,
			EmissionRate:  p.Curve.EmissionRate,
			LatestBirth:   fixed.FromUint(now),
		}
		if err := tx.CreateCommunity(c, p.Genesis); err != nil {
			return err
		}
		return tx.AppendEvent(generationEvent(opID, p.Genesis))
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().Str("op_id", opID).Str("name", p.Name).Uint32("epoch", p.Genesis.Epoch).Msg("community bootstrapped")
	if err := e.load(); err != nil {
		return nil, err
	}
	return e, nil
}

// New opens the community already stored in db.
func New(db *store.DB, authority auth.Authority, opts ...Option) (*Engine, error) {
	e := newEngine(db, authority, opts)
	if err := e.load(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) load() error {
	var c *store.Community
	var gen generation.Config
	err := e.DB.View(func(tx *store.Tx) error {
		var err error
		if c, err = tx.Community(); err != nil || c == nil {
			return err
		}
		gen, err = tx.CurrentGeneration()
		return err
	})
	if err != nil {
		return fmt.Errorf("load community: %w", err)
	}
	if c == nil {
		return ErrNotBootstrapped
	}

	e.curve = auction.Curve{
		InitialPrice:  c.InitialPrice,
		DecayConstant: c.DecayConstant,
		EmissionRate:  c.EmissionRate,
	}
	e.Metrics.Epoch(gen.Epoch)
	e.Metrics.LatestBirth(c.LatestBirth.InexactFloat64())
	return nil
}

// Curve returns the community's auction constants.
func (e *Engine) Curve() auction.Curve {
	return e.curve
}

// now is chain time: wall-clock unix seconds.
func (e *Engine) now() uint64 {
	return uint64(e.clock.Now().Unix())
}

// mutate runs one serialized, all-or-nothing operation.
func (e *Engine) mutate(op string, fn func(tx *store.Tx, opID string) error) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	opID := uuid.NewString()
	if err := e.DB.Update(func(tx *store.Tx) error { return fn(tx, opID) }); err != nil {
		e.Metrics.Rejected(Reason(err))
		e.log.Debug().Str("op", op).Str("op_id", opID).Err(err).Msg("rejected")
		return opID, err
	}
	return opID, nil
}

// view runs a read-only transaction.
func (e *Engine) view(fn func(tx *store.Tx) error) error {
	return e.DB.View(fn)
}

func generationEvent(opID string, g generation.Config) store.Event {
	detail := mustJSON(map[string]any{
		"capacity":       g.Capacity,
		"decay_rate":     g.DecayRate,
		"base_loss_rate": g.BaseLossRate,
		"packed":         g.PackedHex(),
		"proof_root":     g.ProofRoot.Hex(),
	})
	return store.Event{
		OpID:   opID,
		Kind:   store.EventGenerationChanged,
		Epoch:  g.Epoch,
		Detail: detail,
	}
}

func validRecipient(from, to common.Address) error {
	if to == (common.Address{}) {
		return fmt.Errorf("zero address: %w", ErrInvalidRecipient)
	}
	if from == to {
		return fmt.Errorf("self transfer: %w", ErrInvalidRecipient)
	}
	return nil
}

// IsProtocolError reports whether err is one of the engine's rejection
// reasons rather than an infrastructure failure.
func IsProtocolError(err error) bool {
	return err != nil && Reason(err) != "internal" && !errors.Is(err, ErrNotBootstrapped)
}
