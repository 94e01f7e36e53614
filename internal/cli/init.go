package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lazypower/erosion/internal/auth"
	"github.com/lazypower/erosion/internal/engine"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap the community in an empty database",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log.Level)

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	authority, err := auth.NewAuthority(cfg.Auth)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	p, err := bootstrapParams(cfg)
	if err != nil {
		return err
	}
	eng, err := engine.Bootstrap(db, authority, p, engine.WithLogger(log))
	if err != nil {
		return fmt.Errorf("%s: %w", db.Path, err)
	}

	g, err := eng.CurrentGeneration()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "bootstrapped %s (%s) in %s\n", cfg.Community.Name, cfg.Community.Symbol, db.Path)
	fmt.Fprintf(out, "  epoch %d: capacity=%d decay_rate=%ds base_loss_rate=%d\n", g.Epoch, g.Capacity, g.DecayRate, g.BaseLossRate)
	fmt.Fprintf(out, "  proof root: %s\n", g.ProofRoot.Hex())
	return nil
}
