package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/lazypower/erosion/internal/generation"
)

// Community is the single instance row: ledger metadata, the immutable
// auction constants, and the mutable auction clock and epoch pointer.
type Community struct {
	Name          string
	Symbol        string
	InitialPrice  decimal.Decimal
	DecayConstant decimal.Decimal
	EmissionRate  decimal.Decimal
	LatestBirth   decimal.Decimal
	CurrentEpoch  uint32
	CreatedAt     int64
}

// Community returns the instance row, or nil if the database has not been
// bootstrapped.
func (t *Tx) Community() (*Community, error) {
	var c Community
	var k, lambda, r, latest string
	err := t.tx.QueryRow(`
		SELECT name, symbol, initial_price, decay_constant, emission_rate, latest_birth, current_epoch, created_at
		FROM community WHERE id = 1
	`).Scan(&c.Name, &c.Symbol, &k, &lambda, &r, &latest, &c.CurrentEpoch, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get community: %w", err)
	}

	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&c.InitialPrice, k},
		{&c.DecayConstant, lambda},
		{&c.EmissionRate, r},
		{&c.LatestBirth, latest},
	} {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return nil, fmt.Errorf("decode community decimal %q: %w", f.src, err)
		}
		*f.dst = d
	}
	return &c, nil
}

// CreateCommunity writes the instance row and its first generation.
func (t *Tx) CreateCommunity(c Community, genesis generation.Config) error {
	now := time.Now().UnixMilli()
	_, err := t.tx.Exec(`
		INSERT INTO community (id, name, symbol, initial_price, decay_constant, emission_rate, latest_birth, current_epoch, created_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.Name, c.Symbol, c.InitialPrice.String(), c.DecayConstant.String(), c.EmissionRate.String(),
		c.LatestBirth.String(), genesis.Epoch, now)
	if err != nil {
		return fmt.Errorf("create community: %w", err)
	}
	return t.PutGeneration(genesis)
}

// SetLatestBirth moves the auction clock.
func (t *Tx) SetLatestBirth(d decimal.Decimal) error {
	if _, err := t.tx.Exec(`UPDATE community SET latest_birth = ? WHERE id = 1`, d.String()); err != nil {
		return fmt.Errorf("set latest birth: %w", err)
	}
	return nil
}

// PutGeneration stores a generation and makes it current. Epoch ordering
// is the caller's responsibility; the primary key rejects a repeated epoch.
func (t *Tx) PutGeneration(g generation.Config) error {
	now := time.Now().UnixMilli()
	if _, err := t.tx.Exec(`
		INSERT INTO generations (epoch, packed, proof_root, created_at)
		VALUES (?, ?, ?, ?)
	`, g.Epoch, g.Encode(), g.ProofRoot.Bytes(), now); err != nil {
		return fmt.Errorf("insert generation %d: %w", g.Epoch, err)
	}
	if _, err := t.tx.Exec(`UPDATE community SET current_epoch = ? WHERE id = 1`, g.Epoch); err != nil {
		return fmt.Errorf("set current epoch: %w", err)
	}
	return nil
}

// Generation returns the config stored for epoch, or nil.
func (t *Tx) Generation(epoch uint32) (*generation.Config, error) {
	var packed, root []byte
	err := t.tx.QueryRow(`SELECT packed, proof_root FROM generations WHERE epoch = ?`, epoch).Scan(&packed, &root)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get generation %d: %w", epoch, err)
	}
	g, err := generation.Decode(epoch, common.BytesToHash(root), packed)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// CurrentGeneration returns the generation the community points at.
func (t *Tx) CurrentGeneration() (generation.Config, error) {
	var epoch uint32
	if err := t.tx.QueryRow(`SELECT current_epoch FROM community WHERE id = 1`).Scan(&epoch); err != nil {
		return generation.Config{}, fmt.Errorf("get current epoch: %w", err)
	}
	g, err := t.Generation(epoch)
	if err != nil {
		return generation.Config{}, err
	}
	if g == nil {
		return generation.Config{}, fmt.Errorf("current generation %d missing", epoch)
	}
	return *g, nil
}

// Generations lists every stored generation, oldest first.
func (t *Tx) Generations() ([]generation.Config, error) {
	rows, err := t.tx.Query(`SELECT epoch, packed, proof_root FROM generations ORDER BY epoch`)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var out []generation.Config
	for rows.Next() {
		var epoch uint32
		var packed, root []byte
		if err := rows.Scan(&epoch, &packed, &root); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		g, err := generation.Decode(epoch, common.BytesToHash(root), packed)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
