package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pairVault/internal/chain"
	"pairVault/internal/config"
	"pairVault/internal/events"
	"pairVault/internal/metrics"
	"pairVault/internal/sim"
	"pairVault/internal/storage/postgres"
	"pairVault/internal/token"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Scenario == "" {
		return fmt.Errorf("scenario path is required")
	}
	start, err := config.ParseTimestamp(cfg.Start)
	if err != nil {
		return fmt.Errorf("parse start: %w", err)
	}
	ops, err := sim.ReadOps(cfg.Scenario)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sinks := []events.Sink{events.LogSink{Logger: logger}}
	if cfg.Out != "" {
		sinks = append(sinks, events.NewJSONLSink(cfg.Out))
	}

	var state sim.StateStore
	if cfg.StateFile != "" {
		state = &sim.FileStateStore{Path: cfg.StateFile}
	}
	var snapshots sim.SnapshotStores
	if cfg.SnapshotsFile != "" {
		snapshots = append(snapshots, &sim.FileSnapshotStore{Path: cfg.SnapshotsFile})
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()

		if cfg.PGMigrate {
			if err := store.Migrate(ctx); err != nil {
				return err
			}
		}
		sinks = append(sinks, store)
		snapshots = append(snapshots, &sim.DBSnapshotStore{Store: store, Run: cfg.RunName})
		if state == nil {
			state = &sim.DBStateStore{Store: store, Name: "simulate:" + cfg.RunName}
		}
	}

	symbols := token.Symbols{Static: symbolTable(cfg.Symbols)}
	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		symbols.Resolver = token.NewResolver(chainClient, token.NewCache(), cfg.MaxRetries, cfg.RetryBackoff, logger)
	}

	var collector *metrics.Collector
	var server *http.Server
	if cfg.MetricsAddr != "" {
		collector = metrics.New()
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		server = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	simCfg := sim.DefaultConfig()
	simCfg.Policy = cfg.Policy
	simCfg.PoolFeeBps = cfg.PoolFeeBps
	simCfg.Run = cfg.RunName
	simCfg.FlushEvery = cfg.FlushEvery
	simCfg.MaxRetries = cfg.MaxRetries
	simCfg.RetryBackoff = cfg.RetryBackoff
	if !start.IsZero() {
		simCfg.Start = start
	}

	opts := sim.Options{
		Sinks:     sinks,
		Collector: collector,
		State:     state,
		Symbols:   symbols.Symbol,
	}
	if len(snapshots) > 0 {
		opts.Snapshots = snapshots
	}
	runner, err := sim.NewRunner(simCfg, opts, logger)
	if err != nil {
		return err
	}

	logger.Info("simulate start",
		zap.String("scenario", cfg.Scenario),
		zap.Int("ops", len(ops)),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.String("run", cfg.RunName),
		zap.String("metrics_addr", cfg.MetricsAddr),
		zap.Uint64("reserve_ratio_bps", cfg.Policy.ReserveRatioBps),
		zap.Uint64("max_order_size_bps", cfg.Policy.MaxOrderSizeBps),
		zap.Uint64("curve_shape", cfg.Policy.CurveShape),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	if server != nil {
		group.Go(func() error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}
	group.Go(func() error {
		report, err := runner.Run(groupCtx, ops)
		if err != nil {
			return err
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		if server == nil {
			return nil
		}
		logger.Info("serving metrics until interrupted", zap.String("addr", cfg.MetricsAddr))
		<-groupCtx.Done()
		return nil
	})
	return group.Wait()
}

// symbolTable keys symbols by address. Keys that are not hex addresses are scenario
// account names.
func symbolTable(raw map[string]string) map[common.Address]string {
	out := make(map[common.Address]string, len(raw))
	for key, symbol := range raw {
		addr := sim.Actor(key)
		if common.IsHexAddress(key) {
			addr = common.HexToAddress(key)
		}
		out[addr] = symbol
	}
	return out
}
