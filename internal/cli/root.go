package cli

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lazypower/erosion/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "erosion",
	Short: "Decaying-reputation community ledger",
	Long: "Erosion runs a community whose knowledge balances decay over time. " +
		"Members are admitted by genesis claim or by a priced shard transfer, and leave by a free full exit.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", os.Getenv("EROSION_CONFIG"), "path to a TOML config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(generationCmd)
	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(transferCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(decayCmd)
	rootCmd.AddCommand(erosionCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(whitelistCmd)
}

// loadConfig reads --config (if any) plus EROSION_* overrides.
func loadConfig() (config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger writes human-readable lines to stderr.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().Timestamp().Logger()
}
