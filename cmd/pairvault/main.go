package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	root := &cobra.Command{
		Use:          "pairvault",
		Short:        "Strategist-run liquidity pools over an order book",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a scenario of pool, registry and pair operations",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().String("scenario", "", "scenario JSONL path")
	simulateCmd.Flags().String("out", "./data/events.jsonl", "output events JSONL")
	simulateCmd.Flags().String("pg-dsn", "", "Postgres DSN for events, snapshots and progress")
	simulateCmd.Flags().Bool("pg-migrate", false, "create Postgres tables before running")
	simulateCmd.Flags().String("state-file", "", "local progress file, used instead of Postgres progress")
	simulateCmd.Flags().String("snapshots-file", "./data/pools.json", "pool snapshots JSON path")
	simulateCmd.Flags().String("run-name", "default", "run name for Postgres progress and snapshots")
	simulateCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9100)")
	simulateCmd.Flags().String("rpc", "", "RPC URL used to read pool symbols from token contracts")
	simulateCmd.Flags().String("symbols", "", "token symbols (comma-separated address=SYMBOL, names allowed)")
	simulateCmd.Flags().Int("flush-every", 100, "flush events and progress every N ops, 0 means only at the end")
	simulateCmd.Flags().Int("max-retries", 3, "maximum retry attempts for sinks and RPC")
	simulateCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	simulateCmd.Flags().String("start", "2024-01-01T00:00:00Z", "simulated start time (unix seconds or RFC3339)")
	simulateCmd.Flags().Uint64("pool-fee-bps", 0, "performance fee of new pools")
	simulateCmd.Flags().Uint64("reserve-ratio-bps", 8000, "share of pool assets kept out of orders")
	simulateCmd.Flags().Duration("cancel-delay", 10*time.Second, "delay before anyone may scrub a trade")
	simulateCmd.Flags().Uint64("profit-share-bps", 20, "strategist cut of rebalanced assets")
	simulateCmd.Flags().Uint64("max-order-size-bps", 500, "largest order as a share of pool assets")
	simulateCmd.Flags().Uint64("curve-shape", 2, "sizing curve exponent")
	simulateCmd.Flags().Bool("permissioned-strategists", true, "only approved strategists may place trades")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	simulateCmd.Flags().String("log-file", "", "also write logs to this rotated file")

	root.AddCommand(simulateCmd)

	curveCmd := &cobra.Command{
		Use:   "curve",
		Short: "Print the max order size as a pool's outstanding balance grows",
		RunE:  runCurve,
	}

	curveCmd.Flags().String("total", "1000000", "pool total assets")
	curveCmd.Flags().Uint64("reserve-ratio-bps", 8000, "share of pool assets kept out of orders")
	curveCmd.Flags().Uint64("max-order-size-bps", 500, "largest order as a share of pool assets")
	curveCmd.Flags().Uint64("curve-shape", 2, "sizing curve exponent")
	curveCmd.Flags().Int("steps", 10, "rows between empty and fully utilized")
	curveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(curveCmd)

	metaCmd := &cobra.Command{
		Use:   "token-meta",
		Short: "Read ERC20 metadata and balances over RPC",
		RunE:  runTokenMeta,
	}

	metaCmd.Flags().String("rpc", "", "RPC URL")
	metaCmd.Flags().StringSlice("token", nil, "token addresses (comma-separated)")
	metaCmd.Flags().String("holder", "", "also report each token balance of this address")
	metaCmd.Flags().Uint64("block", 0, "block for balances, 0 means latest")
	metaCmd.Flags().Int("max-retries", 3, "maximum retry attempts")
	metaCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	metaCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(metaCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level, logFile string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if logFile == "" {
		return cfg.Build()
	}

	rotated := zapcore.NewCore(
		zapcore.NewJSONEncoder(cfg.EncoderConfig),
		zapcore.AddSync(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}),
		cfg.Level,
	)
	return cfg.Build(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, rotated)
	}))
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
