package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner = "0x00000000000000000000000000000000000000a1"

func TestDefaultNeedsOwner(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "127.0.0.1:37778", cfg.ListenAddr())
	assert.Error(t, cfg.Validate())

	cfg.Auth.Owner = owner
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "erosion.toml")
	data := `
[server]
port = 9000

[community]
name = "Guild"
symbol = "GLD"
emission_rate = "0.5"

[genesis]
epoch = 4
packed = "0x000000010000005600000064"
proof_root = "0x1111111111111111111111111111111111111111111111111111111111111111"

[auth]
mode = "owner"
owner = "` + owner + `"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "Guild", cfg.Community.Name)
	assert.Equal(t, "10", cfg.Community.InitialPrice)

	g, err := cfg.Genesis.Generation()
	require.NoError(t, err)
	assert.Equal(t, uint32(4), g.Epoch)
	assert.Equal(t, uint32(100), g.Capacity)
	assert.Equal(t, uint32(86), g.DecayRate)
	assert.Equal(t, uint32(1), g.BaseLossRate)
	assert.Equal(t, byte(0x11), g.ProofRoot[31])
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("EROSION_AUTH_OWNER", owner)
	t.Setenv("EROSION_SERVER_PORT", "9100")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, owner, cfg.Auth.Owner)
}

func TestValidateAggregates(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Log.Level = "loud"
	cfg.Genesis.DecayRate = 0
	cfg.Community.EmissionRate = "0"
	cfg.Auth.Mode = "quorum"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"server.port", "log.level", "genesis", "community", "auth.mode"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestGenesisBadRoot(t *testing.T) {
	g := Default().Genesis
	g.ProofRoot = "0x1234"
	_, err := g.Generation()
	assert.Error(t, err)
}
