package main

import (
	"fmt"
	"io"
	"math/big"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pairVault/internal/config"
	"pairVault/internal/pair"
	"pairVault/internal/protocol"
	"pairVault/internal/registry"
)

func runCurve(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadCurve(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, "")
	if err != nil {
		return err
	}
	defer logger.Sync()

	total, ok := new(big.Int).SetString(cfg.Total, 10)
	if !ok || total.Sign() <= 0 {
		return fmt.Errorf("invalid total %q", cfg.Total)
	}
	policy := registry.DefaultPolicy()
	policy.ReserveRatioBps = cfg.ReserveRatioBps
	policy.MaxOrderSizeBps = cfg.MaxOrderSizeBps
	policy.CurveShape = cfg.CurveShape
	if err := policy.Validate(); err != nil {
		return err
	}

	logger.Debug("curve",
		zap.String("total", total.String()),
		zap.Uint64("reserve_ratio_bps", cfg.ReserveRatioBps),
		zap.Uint64("max_order_size_bps", cfg.MaxOrderSizeBps),
		zap.Uint64("curve_shape", cfg.CurveShape),
	)
	return writeCurve(cmd.OutOrStdout(), curveRows(total, policy, cfg.Steps))
}

type curveRow struct {
	Outstanding *big.Int
	Utilization decimal.Decimal
	MaxOrder    *big.Int
}

// curveRows samples the curve from an idle pool to a fully used borrowable band.
func curveRows(total *big.Int, policy registry.Policy, steps int) []curveRow {
	band := protocol.ApplyBps(total, protocol.BpsDenominator-policy.ReserveRatioBps)
	rows := make([]curveRow, 0, steps+1)
	for i := 0; i <= steps; i++ {
		outstanding := new(big.Int).Mul(band, big.NewInt(int64(i)))
		outstanding.Quo(outstanding, big.NewInt(int64(steps)))

		utilization := decimal.Zero
		if band.Sign() > 0 {
			utilization = decimal.NewFromBigInt(outstanding, 0).Div(decimal.NewFromBigInt(band, 0))
		}
		rows = append(rows, curveRow{
			Outstanding: outstanding,
			Utilization: utilization,
			MaxOrder:    pair.MaxOrderSize(total, outstanding, policy.ReserveRatioBps, policy.MaxOrderSizeBps, policy.CurveShape),
		})
	}
	return rows
}

func writeCurve(w io.Writer, rows []curveRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "outstanding\tband used\tmax order\t")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s%%\t%s\t\n", row.Outstanding, row.Utilization.Mul(decimal.NewFromInt(100)).StringFixed(1), row.MaxOrder)
	}
	return tw.Flush()
}
