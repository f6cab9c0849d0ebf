package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://api.devnet.solana.com", cfg.RPCEndpoint)
	assert.Equal(t, uint64(50_000_000), cfg.MinBalanceLamports)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 60*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, 1232, cfg.MaxTransactionSize)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rpc_endpoint: http://localhost:8899
ws_endpoint: ""
cluster: custom
commitment: finalized
mode: program
program_id: 11111111111111111111111111111111
confirm_timeout: 90s
poll_initial_delay: 250ms
max_instructions_per_transaction: 4
concurrency: 8
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8899", cfg.RPCEndpoint)
	assert.Empty(t, cfg.WSEndpoint)
	assert.Equal(t, "finalized", cfg.Commitment)
	assert.Equal(t, "program", cfg.Mode)
	assert.Equal(t, 90*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInitialDelay)
	assert.Equal(t, 4, cfg.MaxInstructionsPerTransaction)
	assert.Equal(t, 8, cfg.Concurrency)
	// untouched keys keep defaults
	assert.Equal(t, 3, cfg.MaxAttempts)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("no_such_key: 1\n"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	cfg, err := Load(empty)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		"MINTER_RPC_ENDPOINT":         "http://rpc.local",
		"MINTER_MIN_BALANCE_LAMPORTS": "1000",
		"MINTER_MAX_ATTEMPTS":         "5",
		"MINTER_POLL_MAX_DELAY":       "10s",
		"MINTER_SKIP_PREFLIGHT":       "true",
		"MINTER_POSTGRES_DSN":         "postgres://u:p@db/minter",
	}))
	require.NoError(t, err)
	assert.Equal(t, "http://rpc.local", cfg.RPCEndpoint)
	assert.Equal(t, uint64(1000), cfg.MinBalanceLamports)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.PollMaxDelay)
	assert.True(t, cfg.SkipPreflight)
	assert.Equal(t, "postgres://u:p@db/minter", cfg.PostgresDSN)
}

func TestApplyEnv_ReportsAllBadValues(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		"MINTER_MAX_ATTEMPTS":    "many",
		"MINTER_CONFIRM_TIMEOUT": "soon",
		"MINTER_SKIP_PREFLIGHT":  "maybe",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MINTER_MAX_ATTEMPTS")
	assert.Contains(t, err.Error(), "MINTER_CONFIRM_TIMEOUT")
	assert.Contains(t, err.Error(), "MINTER_SKIP_PREFLIGHT")
	assert.Equal(t, 3, cfg.MaxAttempts)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty rpc", func(c *Config) { c.RPCEndpoint = "" }, "rpc_endpoint"},
		{"bad commitment", func(c *Config) { c.Commitment = "recent" }, "commitment"},
		{"bad cluster", func(c *Config) { c.Cluster = "localnet" }, "cluster"},
		{"bad mode", func(c *Config) { c.Mode = "hybrid" }, "mode"},
		{"program without id", func(c *Config) { c.Mode = "program" }, "program_id"},
		{"program with bad id", func(c *Config) { c.Mode = "program"; c.ProgramID = "not-base58!" }, "program_id"},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }, "max_attempts"},
		{"zero timeout", func(c *Config) { c.ConfirmTimeout = 0 }, "confirm_timeout"},
		{"inverted poll", func(c *Config) { c.PollMaxDelay = time.Millisecond }, "poll delays"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, "concurrency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExplorerURL(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "https://solscan.io/token/Mint111?cluster=devnet", cfg.ExplorerURL("Mint111"))

	cfg.Cluster = "mainnet-beta"
	assert.Equal(t, "https://solscan.io/token/Mint111", cfg.ExplorerURL("Mint111"))

	cfg.Cluster = "custom"
	cfg.RPCEndpoint = "http://localhost:8899"
	assert.Equal(t, "https://solscan.io/token/Mint111?cluster=custom&customUrl=http%3A%2F%2Flocalhost%3A8899",
		cfg.ExplorerURL("Mint111"))
}
