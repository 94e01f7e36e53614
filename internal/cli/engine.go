package cli

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lazypower/erosion/internal/auth"
	"github.com/lazypower/erosion/internal/config"
	"github.com/lazypower/erosion/internal/engine"
	"github.com/lazypower/erosion/internal/store"
)

// openDB opens the configured database, defaulting to ~/.erosion/erosion.db.
func openDB(cfg config.Config) (*store.DB, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// bootstrapParams turns the community and genesis sections into engine
// instantiation parameters.
func bootstrapParams(cfg config.Config) (engine.Params, error) {
	curve, err := cfg.Community.Curve()
	if err != nil {
		return engine.Params{}, fmt.Errorf("community: %w", err)
	}
	genesis, err := cfg.Genesis.Generation()
	if err != nil {
		return engine.Params{}, fmt.Errorf("genesis: %w", err)
	}
	return engine.Params{
		Name:    cfg.Community.Name,
		Symbol:  cfg.Community.Symbol,
		Curve:   curve,
		Genesis: genesis,
	}, nil
}

// openEngine loads the community in db, bootstrapping it from cfg when the
// database is empty and bootstrap is set.
func openEngine(db *store.DB, cfg config.Config, log zerolog.Logger, bootstrap bool) (*engine.Engine, error) {
	authority, err := auth.NewAuthority(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	eng, err := engine.New(db, authority, engine.WithLogger(log))
	if err == nil || !errors.Is(err, engine.ErrNotBootstrapped) || !bootstrap {
		return eng, err
	}

	p, err := bootstrapParams(cfg)
	if err != nil {
		return nil, err
	}
	return engine.Bootstrap(db, authority, p, engine.WithLogger(log))
}
