package config

import (
	"fmt"

	"github.com/spf13/pflag"

	"pairVault/internal/registry"
)

// CurveConfig describes one pool for which the sizing curve is tabulated.
type CurveConfig struct {
	Total           string
	ReserveRatioBps uint64
	MaxOrderSizeBps uint64
	CurveShape      uint64
	Steps           int
	LogLevel        string
}

func LoadCurve(cfgFile string, flags *pflag.FlagSet) (CurveConfig, error) {
	defaults := registry.DefaultPolicy()
	v, err := newViper(cfgFile, flags, map[string]any{
		"total":              "1000000",
		"reserve-ratio-bps":  defaults.ReserveRatioBps,
		"max-order-size-bps": defaults.MaxOrderSizeBps,
		"curve-shape":        defaults.CurveShape,
		"steps":              10,
	})
	if err != nil {
		return CurveConfig{}, err
	}

	cfg := CurveConfig{
		Total:           v.GetString("total"),
		ReserveRatioBps: v.GetUint64("reserve-ratio-bps"),
		MaxOrderSizeBps: v.GetUint64("max-order-size-bps"),
		CurveShape:      v.GetUint64("curve-shape"),
		Steps:           v.GetInt("steps"),
		LogLevel:        v.GetString("log-level"),
	}
	if cfg.Steps <= 0 {
		return CurveConfig{}, fmt.Errorf("steps must be positive")
	}
	return cfg, nil
}
