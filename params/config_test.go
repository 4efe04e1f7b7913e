package params

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, Default().Node.APIAddr, cfg.Node.APIAddr)
	assert.Equal(t, uint8(242), cfg.Node.NetworkID)
	assert.Empty(t, cfg.P2P.Bootstrap)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("API_ADDR=:9999\nINTENT_EXPIRY_SECS=60\n"), 0o600))

	t.Setenv("API_ADDR", ":7000")
	t.Setenv("NETWORK_ID", "2")
	t.Setenv("SWEEP_INTERVAL_MS", "250")
	t.Setenv("P2P_BOOTSTRAP", "/ip4/127.0.0.1/tcp/4001/p2p/a, /ip4/127.0.0.1/tcp/4002/p2p/b")
	t.Setenv("MAKER_FEES", "true")

	cfg, err := LoadFromEnv(envFile)
	require.NoError(t, err)
	// ENV wins over .env
	assert.Equal(t, ":7000", cfg.Node.APIAddr)
	assert.Equal(t, time.Minute, cfg.Client.IntentExpiry)
	assert.Equal(t, uint8(2), cfg.Node.NetworkID)
	assert.Equal(t, 250*time.Millisecond, cfg.Node.SweepInterval)
	assert.Len(t, cfg.P2P.Bootstrap, 2)
	assert.True(t, cfg.Node.MakerFees)
}

func TestLoadFromEnvRejectsBadNumbers(t *testing.T) {
	t.Setenv("NETWORK_ID", "300")
	_, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
