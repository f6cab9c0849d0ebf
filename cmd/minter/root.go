package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"solana-nft-minter/internal/config"
	"solana-nft-minter/internal/orchestrator"
)

// globalFlags override the loaded configuration when set.
type globalFlags struct {
	configPath  string
	rpc         string
	ws          string
	cluster     string
	commitment  string
	keypair     string
	mode        string
	programID   string
	logLevel    string
	logFormat   string
	metricsAddr string
	output      string
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "minter",
		Short:         "Mint non-fungible tokens on Solana",
		Long:          "Compose, submit and confirm the transactions that create a single-unit token with optional metadata and master edition.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", os.Getenv(config.EnvPrefix+"CONFIG"), "YAML config file")
	pf.StringVar(&flags.rpc, "rpc", "", "RPC HTTP endpoint")
	pf.StringVar(&flags.ws, "ws", "", "RPC WebSocket endpoint (\"none\" disables notifications)")
	pf.StringVar(&flags.cluster, "cluster", "", "Cluster name for explorer links: mainnet-beta|devnet|testnet|custom")
	pf.StringVar(&flags.commitment, "commitment", "", "Commitment: processed|confirmed|finalized")
	pf.StringVarP(&flags.keypair, "keypair", "k", "", "Payer keypair file")
	pf.StringVar(&flags.mode, "mode", "", "Mint mode: direct|program")
	pf.StringVar(&flags.programID, "program-id", "", "Minting program id (program mode)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	pf.StringVar(&flags.logFormat, "log-format", "", "Log format: json|console")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve /metrics and /health on this address")
	pf.StringVarP(&flags.output, "output", "o", "text", "Output format: json|text")

	root.AddCommand(
		newMintCmd(&flags),
		newBatchCmd(&flags),
		newDeriveCmd(&flags),
		newBalanceCmd(&flags),
		newVerifyCmd(&flags),
	)
	return root
}

// loadConfig merges defaults, file, environment and flags, in that order.
func loadConfig(flags *globalFlags, lookup func(string) (string, bool)) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return cfg, err
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.RPCEndpoint, flags.rpc)
	set(&cfg.WSEndpoint, flags.ws)
	if flags.ws == "none" {
		cfg.WSEndpoint = ""
	}
	set(&cfg.Cluster, flags.cluster)
	set(&cfg.Commitment, flags.commitment)
	set(&cfg.KeypairPath, flags.keypair)
	set(&cfg.Mode, flags.mode)
	set(&cfg.ProgramID, flags.programID)
	set(&cfg.LogLevel, flags.logLevel)
	set(&cfg.LogFormat, flags.logFormat)
	set(&cfg.MetricsAddr, flags.metricsAddr)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// exitCode maps failures to distinct process exit codes.
func exitCode(err error) int {
	var f *orchestrator.Failure
	if !errors.As(err, &f) {
		return 1
	}
	switch f.Kind {
	case orchestrator.KindInsufficientFunds:
		return 3
	case orchestrator.KindRejectedByLedger:
		return 4
	case orchestrator.KindNetworkError, orchestrator.KindTimedOut, orchestrator.KindSubmissionExhausted:
		return 5
	case orchestrator.KindCanceled:
		return 130
	default:
		return 2
	}
}
