package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"pairVault/internal/model"
)

func TestObservePool(t *testing.T) {
	c := New()
	c.ObservePool(model.PoolSnapshot{
		Pool:        "0xpool",
		Symbol:      "bathUSDC",
		TotalAssets: "1000",
		Held:        "800",
		Outstanding: "200",
		TotalShares: "1000",
		AccruedFees: "0",
	})

	if got := testutil.ToFloat64(c.poolAssets.WithLabelValues("0xpool", "bathUSDC")); got != 1000 {
		t.Fatalf("total assets gauge mismatch: %v", got)
	}
	if got := testutil.ToFloat64(c.utilization.WithLabelValues("0xpool", "bathUSDC")); got != 0.2 {
		t.Fatalf("utilization mismatch: %v", got)
	}
}

func TestObservePoolEmpty(t *testing.T) {
	c := New()
	c.ObservePool(model.PoolSnapshot{Pool: "0xpool", Symbol: "bathX", TotalAssets: "0", Outstanding: "0"})
	if got := testutil.ToFloat64(c.utilization.WithLabelValues("0xpool", "bathX")); got != 0 {
		t.Fatalf("empty pool utilization should be zero, got %v", got)
	}
	if toFloat("not a number") != 0 {
		t.Fatalf("unparseable amount should export as zero")
	}
}

func TestCountersAndHandler(t *testing.T) {
	c := New()
	c.Emit(model.EventDeposited, nil)
	c.Emit(model.EventDeposited, nil)
	c.ObserveOp("place", "")
	c.ObserveOp("place", "OrderTooLarge")

	if got := testutil.ToFloat64(c.events.WithLabelValues(string(model.EventDeposited))); got != 2 {
		t.Fatalf("events counter mismatch: %v", got)
	}
	if got := testutil.ToFloat64(c.ops.WithLabelValues("place", "OrderTooLarge")); got != 1 {
		t.Fatalf("ops counter mismatch: %v", got)
	}

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "pairvault_events_total") {
		t.Fatalf("handler output missing events counter")
	}
}
