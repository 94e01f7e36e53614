package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/lazypower/erosion/internal/auction"
	"github.com/lazypower/erosion/internal/generation"
	"github.com/lazypower/erosion/internal/proof"
)

// Config holds all erosion configuration.
type Config struct {
	Server    ServerConfig    `toml:"server" mapstructure:"server"`
	Database  DatabaseConfig  `toml:"database" mapstructure:"database"`
	Log       LogConfig       `toml:"log" mapstructure:"log"`
	Community CommunityConfig `toml:"community" mapstructure:"community"`
	Genesis   GenesisConfig   `toml:"genesis" mapstructure:"genesis"`
	Auth      AuthConfig      `toml:"auth" mapstructure:"auth"`
}

type ServerConfig struct {
	Bind string `toml:"bind" mapstructure:"bind"`
	Port int    `toml:"port" mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path" mapstructure:"path"`
}

type LogConfig struct {
	Level string `toml:"level" mapstructure:"level"` // zerolog level name
}

// CommunityConfig carries ledger metadata and the auction constants as
// decimal strings.
type CommunityConfig struct {
	Name          string `toml:"name" mapstructure:"name"`
	Symbol        string `toml:"symbol" mapstructure:"symbol"`
	InitialPrice  string `toml:"initial_price" mapstructure:"initial_price"`
	DecayConstant string `toml:"decay_constant" mapstructure:"decay_constant"`
	EmissionRate  string `toml:"emission_rate" mapstructure:"emission_rate"`
}

// GenesisConfig is the first generation. Packed, when set, overrides the
// three structured parameter fields.
type GenesisConfig struct {
	Epoch        uint32 `toml:"epoch" mapstructure:"epoch"`
	Capacity     uint32 `toml:"capacity" mapstructure:"capacity"`
	DecayRate    uint32 `toml:"decay_rate" mapstructure:"decay_rate"` // seconds per unit
	BaseLossRate uint32 `toml:"base_loss_rate" mapstructure:"base_loss_rate"`
	Packed       string `toml:"packed" mapstructure:"packed"`
	ProofRoot    string `toml:"proof_root" mapstructure:"proof_root"`
}

type AuthConfig struct {
	Mode      string   `toml:"mode" mapstructure:"mode"` // "owner", "allowlist", "open"
	Owner     string   `toml:"owner" mapstructure:"owner"`
	Allowlist []string `toml:"allowlist" mapstructure:"allowlist"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Log: LogConfig{
			Level: "info",
		},
		Community: CommunityConfig{
			Name:          "Knowledge",
			Symbol:        "KNOW",
			InitialPrice:  "10",
			DecayConstant: "0.5",
			EmissionRate:  "0.001",
		},
		Genesis: GenesisConfig{
			Epoch:     1,
			Capacity:  100,
			DecayRate: 604800, // one unit per week
		},
		Auth: AuthConfig{
			Mode: "owner",
		},
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// Load reads a TOML config file (optional) layered over Default, then
// applies EROSION_* environment overrides, e.g. EROSION_SERVER_PORT.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix("EROSION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

// setDefaults registers every key so AutomaticEnv can override keys that
// are absent from the file.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("server.bind", cfg.Server.Bind)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("community.name", cfg.Community.Name)
	v.SetDefault("community.symbol", cfg.Community.Symbol)
	v.SetDefault("community.initial_price", cfg.Community.InitialPrice)
	v.SetDefault("community.decay_constant", cfg.Community.DecayConstant)
	v.SetDefault("community.emission_rate", cfg.Community.EmissionRate)
	v.SetDefault("genesis.epoch", cfg.Genesis.Epoch)
	v.SetDefault("genesis.capacity", cfg.Genesis.Capacity)
	v.SetDefault("genesis.decay_rate", cfg.Genesis.DecayRate)
	v.SetDefault("genesis.base_loss_rate", cfg.Genesis.BaseLossRate)
	v.SetDefault("genesis.packed", cfg.Genesis.Packed)
	v.SetDefault("genesis.proof_root", cfg.Genesis.ProofRoot)
	v.SetDefault("auth.mode", cfg.Auth.Mode)
	v.SetDefault("auth.owner", cfg.Auth.Owner)
	v.SetDefault("auth.allowlist", cfg.Auth.Allowlist)
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		result = multierror.Append(result, fmt.Errorf("log.level: %w", err))
	}
	if c.Community.Name == "" || c.Community.Symbol == "" {
		result = multierror.Append(result, fmt.Errorf("community.name and community.symbol are required"))
	}
	if _, err := c.Community.Curve(); err != nil {
		result = multierror.Append(result, fmt.Errorf("community: %w", err))
	}
	if _, err := c.Genesis.Generation(); err != nil {
		result = multierror.Append(result, fmt.Errorf("genesis: %w", err))
	}
	switch c.Auth.Mode {
	case "owner":
		if !common.IsHexAddress(c.Auth.Owner) {
			result = multierror.Append(result, fmt.Errorf("auth.owner must be an address, got %q", c.Auth.Owner))
		}
	case "allowlist":
		for _, a := range c.Auth.Allowlist {
			if !common.IsHexAddress(a) {
				result = multierror.Append(result, fmt.Errorf("auth.allowlist: invalid address %q", a))
			}
		}
	case "open":
	default:
		result = multierror.Append(result, fmt.Errorf("auth.mode: unknown mode %q", c.Auth.Mode))
	}

	return result.ErrorOrNil()
}

// Curve parses the auction constants.
func (c CommunityConfig) Curve() (auction.Curve, error) {
	return auction.NewCurve(c.InitialPrice, c.DecayConstant, c.EmissionRate)
}

// Generation converts the genesis section to a generation config.
func (g GenesisConfig) Generation() (generation.Config, error) {
	out := generation.Config{
		Epoch:        g.Epoch,
		Capacity:     g.Capacity,
		DecayRate:    g.DecayRate,
		BaseLossRate: g.BaseLossRate,
	}
	if g.Packed != "" {
		capacity, decayRate, loss, err := generation.ParsePacked(g.Packed)
		if err != nil {
			return out, err
		}
		out.Capacity, out.DecayRate, out.BaseLossRate = capacity, decayRate, loss
	}
	if g.ProofRoot != "" {
		b, err := proof.ParseHash(g.ProofRoot)
		if err != nil {
			return out, fmt.Errorf("proof_root: %w", err)
		}
		out.ProofRoot = b
	}
	return out, out.Validate()
}
