package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"pairVault/internal/model"
)

const namespace = "pairvault"

// Collector exports pool accounting and protocol activity. It owns its registry so
// several collectors can live in one process.
type Collector struct {
	registry *prometheus.Registry

	poolAssets      *prometheus.GaugeVec
	poolHeld        *prometheus.GaugeVec
	poolOutstanding *prometheus.GaugeVec
	poolShares      *prometheus.GaugeVec
	poolFees        *prometheus.GaugeVec
	utilization     *prometheus.GaugeVec

	events *prometheus.CounterVec
	ops    *prometheus.CounterVec
}

func New() *Collector {
	poolLabels := []string{"pool", "symbol"}
	c := &Collector{
		registry: prometheus.NewRegistry(),
		poolAssets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "total_assets",
			Help:      "Assets backing pool shares, in smallest units.",
		}, poolLabels),
		poolHeld: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "held",
			Help:      "Underlying balance held by the pool account.",
		}, poolLabels),
		poolOutstanding: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "outstanding",
			Help:      "Underlying committed to open exchange orders.",
		}, poolLabels),
		poolShares: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "total_shares",
			Help:      "Pool shares in circulation, including the locked minimum.",
		}, poolLabels),
		poolFees: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "accrued_fees",
			Help:      "Withdraw fees held for the fee recipient.",
		}, poolLabels),
		utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "utilization_ratio",
			Help:      "Outstanding divided by total assets.",
		}, poolLabels),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Protocol events emitted, by kind.",
		}, []string{"kind"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sim",
			Name:      "ops_total",
			Help:      "Scenario operations applied, by op and outcome.",
		}, []string{"op", "outcome"}),
	}
	c.registry.MustRegister(
		c.poolAssets,
		c.poolHeld,
		c.poolOutstanding,
		c.poolShares,
		c.poolFees,
		c.utilization,
		c.events,
		c.ops,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Emit counts a protocol event. It lets the collector sit next to a journal as an
// event emitter.
func (c *Collector) Emit(kind model.EventKind, _ any) {
	c.events.WithLabelValues(string(kind)).Inc()
}

// ObserveOp counts one scenario operation. An empty errKind is a success.
func (c *Collector) ObserveOp(op, errKind string) {
	outcome := "ok"
	if errKind != "" {
		outcome = errKind
	}
	c.ops.WithLabelValues(op, outcome).Inc()
}

// ObservePool publishes a pool snapshot.
func (c *Collector) ObservePool(s model.PoolSnapshot) {
	assets := toFloat(s.TotalAssets)
	outstanding := toFloat(s.Outstanding)
	c.poolAssets.WithLabelValues(s.Pool, s.Symbol).Set(assets)
	c.poolHeld.WithLabelValues(s.Pool, s.Symbol).Set(toFloat(s.Held))
	c.poolOutstanding.WithLabelValues(s.Pool, s.Symbol).Set(outstanding)
	c.poolShares.WithLabelValues(s.Pool, s.Symbol).Set(toFloat(s.TotalShares))
	c.poolFees.WithLabelValues(s.Pool, s.Symbol).Set(toFloat(s.AccruedFees))
	ratio := 0.0
	if assets > 0 {
		ratio = outstanding / assets
	}
	c.utilization.WithLabelValues(s.Pool, s.Symbol).Set(ratio)
}

// toFloat converts a decimal amount string for export. Gauges are float64, so very
// large balances lose precision here and only here.
func toFloat(value string) float64 {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}
