package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"solana-nft-minter/internal/composer"
	"solana-nft-minter/internal/config"
	"solana-nft-minter/internal/keys"
	"solana-nft-minter/internal/ledger"
	"solana-nft-minter/internal/logging"
	"solana-nft-minter/internal/observability"
	"solana-nft-minter/internal/orchestrator"
	"solana-nft-minter/internal/storage"
	chstore "solana-nft-minter/internal/storage/clickhouse"
	"solana-nft-minter/internal/storage/memory"
	"solana-nft-minter/internal/storage/migrations"
	pgstore "solana-nft-minter/internal/storage/postgres"
)

// chain is the ledger surface the commands use.
type chain interface {
	ledger.Client
	ledger.AccountReader
}

// app holds the collaborators shared by every command.
type app struct {
	cfg      config.Config
	logger   zerolog.Logger
	chain    chain
	notifier ledger.Notifier
	records  storage.MintRecordStore
	events   storage.SubmissionEventStore
	orch     *orchestrator.Orchestrator
	out      io.Writer
	closers  []func()
}

// newApp connects to the cluster and the configured stores.
func newApp(ctx context.Context, cfg config.Config, out io.Writer) (*app, error) {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	rpc := ledger.NewHTTPClient(cfg.RPCEndpoint,
		ledger.WithLogger(logger),
		ledger.WithMaxRetries(cfg.MaxAttempts),
		ledger.WithObserver(func(method string, d time.Duration, err error) {
			observability.RecordRPCLatency(method, d.Seconds(), err)
		}),
	)

	a := &app{cfg: cfg, logger: logger, chain: rpc, out: out}

	if cfg.WSEndpoint != "" {
		ws, err := ledger.NewWSClient(ctx, cfg.WSEndpoint, nil, logger)
		if err != nil {
			// Polling alone still reaches a terminal state.
			logger.Warn().Err(err).Str("endpoint", cfg.WSEndpoint).Msg("websocket unavailable, polling only")
		} else {
			a.notifier = ws
			a.closers = append(a.closers, func() { _ = ws.Close() })
		}
	}

	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.build(); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.MetricsAddr != "" {
		a.serveMetrics(cfg.MetricsAddr)
	}
	return a, nil
}

// openStores uses PostgreSQL and ClickHouse when configured, memory otherwise.
func (a *app) openStores(ctx context.Context) error {
	a.records = memory.NewMintRecordStore()
	a.events = memory.NewSubmissionEventStore()

	if dsn := a.cfg.PostgresDSN; dsn != "" {
		pool, err := pgstore.NewPool(ctx, dsn, pgstore.WithMaxConns(int32(a.cfg.Concurrency)+1))
		if err != nil {
			return err
		}
		a.closers = append(a.closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return err
		}
		a.records = pgstore.NewMintRecordStore(pool)
	}

	if dsn := a.cfg.ClickhouseDSN; dsn != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = conn.Close() })
		a.events = chstore.NewSubmissionEventStore(conn)
	}
	return nil
}

// build creates the orchestrator from the current collaborators.
func (a *app) build() error {
	var program solana.PublicKey
	if composer.Mode(a.cfg.Mode) == composer.ModeProgram {
		p, err := a.cfg.Program()
		if err != nil {
			return fmt.Errorf("program_id: %w", err)
		}
		program = p
	}
	comp, err := composer.New(composer.Mode(a.cfg.Mode), program)
	if err != nil {
		return err
	}

	sink, _ := a.events.(orchestrator.EventSink)
	commitment, err := ledger.ParseCommitment(a.cfg.Commitment)
	if err != nil {
		return err
	}

	a.orch, err = orchestrator.New(orchestrator.Options{
		Ledger:               a.chain,
		Notifier:             a.notifier,
		Composer:             comp,
		Sink:                 sink,
		Logger:               &a.logger,
		Commitment:           commitment,
		MinBalance:           a.cfg.MinBalanceLamports,
		MaxAttempts:          a.cfg.MaxAttempts,
		ConfirmTimeout:       a.cfg.ConfirmTimeout,
		PollInitialDelay:     a.cfg.PollInitialDelay,
		PollMaxDelay:         a.cfg.PollMaxDelay,
		MaxTransactionSize:   a.cfg.MaxTransactionSize,
		MaxInstructionsPerTx: a.cfg.MaxInstructionsPerTransaction,
		SkipPreflight:        a.cfg.SkipPreflight,
	})
	return err
}

// payer loads the configured keypair.
func (a *app) payer() (solana.PrivateKey, error) {
	key, err := keys.LoadFile(a.cfg.KeypairPath)
	if err != nil {
		return nil, err
	}
	a.logger.Debug().Str("payer", key.PublicKey().String()).Msg("loaded payer keypair")
	return key, nil
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		a.logger.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("metrics server")
		}
	}()
	a.closers = append(a.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
}

// Close releases connections in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
