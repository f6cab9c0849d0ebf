// Package config loads minter configuration from a YAML file with MINTER_* environment
// overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"solana-nft-minter/internal/composer"
	"solana-nft-minter/internal/ledger"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MINTER_"

// Config is the full minter configuration.
type Config struct {
	RPCEndpoint string `yaml:"rpc_endpoint"`
	WSEndpoint  string `yaml:"ws_endpoint"` // empty disables notifications
	Cluster     string `yaml:"cluster"`     // mainnet-beta | devnet | testnet | custom
	Commitment  string `yaml:"commitment"`
	KeypairPath string `yaml:"keypair_path"`

	Mode      string `yaml:"mode"`
	ProgramID string `yaml:"program_id"`

	MinBalanceLamports            uint64        `yaml:"min_balance_lamports"`
	MaxAttempts                   int           `yaml:"max_attempts"`
	ConfirmTimeout                time.Duration `yaml:"confirm_timeout"`
	PollInitialDelay              time.Duration `yaml:"poll_initial_delay"`
	PollMaxDelay                  time.Duration `yaml:"poll_max_delay"`
	MaxTransactionSize            int           `yaml:"max_transaction_size"`
	MaxInstructionsPerTransaction int           `yaml:"max_instructions_per_transaction"`
	SkipPreflight                 bool          `yaml:"skip_preflight"`

	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"` // json | console
	MetricsAddr string `yaml:"metrics_addr"`

	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`

	Concurrency int `yaml:"concurrency"`
}

// Default returns the devnet configuration.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		RPCEndpoint:        "https://api.devnet.solana.com",
		WSEndpoint:         "wss://api.devnet.solana.com",
		Cluster:            "devnet",
		Commitment:         string(ledger.CommitmentConfirmed),
		KeypairPath:        home + "/.config/solana/id.json",
		Mode:               string(composer.ModeDirect),
		MinBalanceLamports: 50_000_000,
		MaxAttempts:        3,
		ConfirmTimeout:     60 * time.Second,
		PollInitialDelay:   500 * time.Millisecond,
		PollMaxDelay:       5 * time.Second,
		MaxTransactionSize: 1232,
		LogLevel:           "info",
		LogFormat:          "console",
		Concurrency:        4,
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from MINTER_<KEY> variables, where KEY is the upper-cased yaml key.
// lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs error

	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = errors.Join(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = errors.Join(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	str("RPC_ENDPOINT", &c.RPCEndpoint)
	str("WS_ENDPOINT", &c.WSEndpoint)
	str("CLUSTER", &c.Cluster)
	str("COMMITMENT", &c.Commitment)
	str("KEYPAIR_PATH", &c.KeypairPath)
	str("MODE", &c.Mode)
	str("PROGRAM_ID", &c.ProgramID)
	if v, ok := lookup(EnvPrefix + "MIN_BALANCE_LAMPORTS"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("%sMIN_BALANCE_LAMPORTS: %w", EnvPrefix, err))
		} else {
			c.MinBalanceLamports = n
		}
	}
	num("MAX_ATTEMPTS", &c.MaxAttempts)
	dur("CONFIRM_TIMEOUT", &c.ConfirmTimeout)
	dur("POLL_INITIAL_DELAY", &c.PollInitialDelay)
	dur("POLL_MAX_DELAY", &c.PollMaxDelay)
	num("MAX_TRANSACTION_SIZE", &c.MaxTransactionSize)
	num("MAX_INSTRUCTIONS_PER_TRANSACTION", &c.MaxInstructionsPerTransaction)
	if v, ok := lookup(EnvPrefix + "SKIP_PREFLIGHT"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("%sSKIP_PREFLIGHT: %w", EnvPrefix, err))
		} else {
			c.SkipPreflight = b
		}
	}
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("METRICS_ADDR", &c.MetricsAddr)
	str("POSTGRES_DSN", &c.PostgresDSN)
	str("CLICKHOUSE_DSN", &c.ClickhouseDSN)
	num("CONCURRENCY", &c.Concurrency)

	return errs
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs error
	invalid := func(format string, args ...interface{}) {
		errs = errors.Join(errs, fmt.Errorf(format, args...))
	}

	if c.RPCEndpoint == "" {
		invalid("rpc_endpoint is required")
	}
	if _, err := ledger.ParseCommitment(c.Commitment); err != nil {
		invalid("commitment: %v", err)
	}
	switch c.Cluster {
	case "mainnet-beta", "devnet", "testnet", "custom":
	default:
		invalid("cluster must be mainnet-beta, devnet, testnet or custom, got %q", c.Cluster)
	}
	switch composer.Mode(c.Mode) {
	case composer.ModeDirect:
	case composer.ModeProgram:
		if _, err := c.Program(); err != nil {
			invalid("program_id: %v", err)
		}
	default:
		invalid("mode must be direct or program, got %q", c.Mode)
	}
	if c.MaxAttempts < 1 {
		invalid("max_attempts must be at least 1")
	}
	if c.ConfirmTimeout <= 0 {
		invalid("confirm_timeout must be positive")
	}
	if c.PollInitialDelay <= 0 || c.PollMaxDelay < c.PollInitialDelay {
		invalid("poll delays must satisfy 0 < poll_initial_delay <= poll_max_delay")
	}
	if c.MaxTransactionSize < 0 || c.MaxInstructionsPerTransaction < 0 {
		invalid("transaction limits must not be negative")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		invalid("log_level: %v", err)
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		invalid("log_format must be 'json' or 'console'")
	}
	if c.Concurrency < 1 {
		invalid("concurrency must be at least 1")
	}
	return errs
}

// Program parses ProgramID.
func (c *Config) Program() (solana.PublicKey, error) {
	if c.ProgramID == "" {
		return solana.PublicKey{}, errors.New("required in program mode")
	}
	return solana.PublicKeyFromBase58(c.ProgramID)
}

// ExplorerURL links a token address on Solscan for the configured cluster.
func (c *Config) ExplorerURL(address string) string {
	u := "https://solscan.io/token/" + address
	switch c.Cluster {
	case "mainnet-beta":
		return u
	case "custom":
		return u + "?cluster=custom&customUrl=" + url.QueryEscape(c.RPCEndpoint)
	default:
		return u + "?cluster=" + c.Cluster
	}
}
