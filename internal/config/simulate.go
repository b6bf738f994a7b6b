package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"pairVault/internal/registry"
)

// SimulateConfig drives a scenario run.
type SimulateConfig struct {
	Scenario      string
	Out           string
	PGDSN         string
	PGMigrate     bool
	StateFile     string
	SnapshotsFile string
	RunName       string
	MetricsAddr   string
	RPCURL        string
	// Symbols maps token addresses to display symbols and takes precedence over
	// symbols read from RPC.
	Symbols      map[string]string
	FlushEvery   int
	MaxRetries   int
	RetryBackoff time.Duration
	Start        string
	PoolFeeBps   uint64
	Policy       registry.Policy
	LogLevel     string
	LogFile      string
}

func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	defaults := registry.DefaultPolicy()
	v, err := newViper(cfgFile, flags, map[string]any{
		"out":                      "./data/events.jsonl",
		"snapshots-file":           "./data/pools.json",
		"run-name":                 "default",
		"flush-every":              100,
		"max-retries":              3,
		"retry-backoff":            500 * time.Millisecond,
		"start":                    "2024-01-01T00:00:00Z",
		"reserve-ratio-bps":        defaults.ReserveRatioBps,
		"cancel-delay":             defaults.CancelDelay,
		"profit-share-bps":         defaults.ProfitShareBps,
		"max-order-size-bps":       defaults.MaxOrderSizeBps,
		"curve-shape":              defaults.CurveShape,
		"permissioned-strategists": defaults.PermissionedStrategists,
	})
	if err != nil {
		return SimulateConfig{}, err
	}

	cfg := SimulateConfig{
		Scenario:      v.GetString("scenario"),
		Out:           v.GetString("out"),
		PGDSN:         v.GetString("pg-dsn"),
		PGMigrate:     v.GetBool("pg-migrate"),
		StateFile:     v.GetString("state-file"),
		SnapshotsFile: v.GetString("snapshots-file"),
		RunName:       v.GetString("run-name"),
		MetricsAddr:   v.GetString("metrics-addr"),
		RPCURL:        v.GetString("rpc"),
		Symbols:       getStringMap(v, "symbols"),
		FlushEvery:    v.GetInt("flush-every"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
		Start:         v.GetString("start"),
		PoolFeeBps:    v.GetUint64("pool-fee-bps"),
		Policy: registry.Policy{
			ReserveRatioBps:         v.GetUint64("reserve-ratio-bps"),
			CancelDelay:             v.GetDuration("cancel-delay"),
			ProfitShareBps:          v.GetUint64("profit-share-bps"),
			MaxOrderSizeBps:         v.GetUint64("max-order-size-bps"),
			CurveShape:              v.GetUint64("curve-shape"),
			PermissionedStrategists: v.GetBool("permissioned-strategists"),
		},
		LogLevel: v.GetString("log-level"),
		LogFile:  v.GetString("log-file"),
	}

	if cfg.FlushEvery < 0 {
		return SimulateConfig{}, fmt.Errorf("flush-every must not be negative")
	}
	if cfg.MaxRetries < 0 {
		return SimulateConfig{}, fmt.Errorf("max-retries must not be negative")
	}
	if err := cfg.Policy.Validate(); err != nil {
		return SimulateConfig{}, fmt.Errorf("policy: %w", err)
	}
	return cfg, nil
}
