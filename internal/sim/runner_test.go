package sim

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"pairVault/internal/events"
	"pairVault/internal/metrics"
	"pairVault/internal/model"
)

const setup = `
# two pools, wired pair, one strategist
{"op":"create_pool","asset":"weth"}
{"op":"create_pool","asset":"usdc"}
{"op":"wire_pair"}
{"op":"approve_strategist","account":"alice"}
`

func parse(t *testing.T, text string) []Op {
	t.Helper()
	ops, err := ParseOps(strings.NewReader(text))
	if err != nil {
		t.Fatalf("parse ops: %v", err)
	}
	return ops
}

func newRunner(t *testing.T, opts Options) *Runner {
	t.Helper()
	r, err := NewRunner(DefaultConfig(), opts, zap.NewNop())
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return r
}

func TestParseOps(t *testing.T) {
	ops := parse(t, setup+"\n\n{\"op\":\"advance\",\"duration\":\"5s\"}\n")
	if len(ops) != 5 {
		t.Fatalf("expected 5 ops, got %d", len(ops))
	}
	if ops[0].Line != 3 || ops[4].Line != 9 {
		t.Fatalf("line numbers mismatch: %d %d", ops[0].Line, ops[4].Line)
	}

	if _, err := ParseOps(strings.NewReader(`{"op":"explode"}`)); err == nil {
		t.Fatalf("expected error for unknown op")
	}
	if _, err := ParseOps(strings.NewReader(`{"op":"mint","colour":"red"}`)); err == nil {
		t.Fatalf("expected error for unknown field")
	}
	if _, err := ParseOps(strings.NewReader(`{"op":`)); err == nil {
		t.Fatalf("expected error for truncated line")
	}
}

func TestReserveBoundScenario(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t, Options{})
	ops := parse(t, setup+`
{"op":"set_policy","field":"max_order_size_bps","value":"10000"}
{"op":"mint","token":"weth","to":"lp","amount":"1001"}
{"op":"approve","caller":"lp","token":"weth","spender":"pool:weth","amount":"1001"}
{"op":"deposit","caller":"lp","asset":"weth","amount":"1001"}
{"op":"withdraw","caller":"lp","asset":"weth","shares":"1"}
{"op":"place","caller":"alice","asset":"weth","quote":"usdc","ask_pay":"150","ask_buy":"300"}
{"op":"place","caller":"alice","asset":"weth","quote":"usdc","ask_pay":"100","ask_buy":"200","expect_error":"OrderTooLarge"}
`)
	report, err := r.Run(ctx, ops)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Applied != len(ops) || report.ExpectedErrors != 1 {
		t.Fatalf("report mismatch: %+v", report)
	}
	if len(report.Pools) != 2 || report.Pools[0].Outstanding != "150" || report.Pools[0].TotalAssets != "1000" {
		t.Fatalf("pool snapshot mismatch: %+v", report.Pools)
	}
}

func TestGenesisFloorScenario(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t, Options{})
	ops := parse(t, setup+`
{"op":"mint","token":"weth","to":"lp","amount":"1002"}
{"op":"approve","caller":"lp","token":"weth","spender":"pool:weth","amount":"1002"}
{"op":"deposit","caller":"lp","asset":"weth","amount":"1","expect_error":"InvalidAmount"}
{"op":"deposit","caller":"lp","asset":"weth","amount":"1001"}
`)
	if _, err := r.Run(ctx, ops); err != nil {
		t.Fatalf("run: %v", err)
	}
	pool, err := r.Registry().Pool(ctx, Actor("weth"))
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if got := pool.SharesOf(ctx, Actor("lp")).Int64(); got != 1 {
		t.Fatalf("expected 1 share, got %d", got)
	}
	if got := pool.TotalShares(ctx).Int64(); got != 1_001 {
		t.Fatalf("expected 1001 total shares, got %d", got)
	}
}

func TestFullFillScenario(t *testing.T) {
	ctx := context.Background()
	recorder := &events.Recorder{}
	collector := metrics.New()
	r := newRunner(t, Options{Sinks: []events.Sink{recorder}, Collector: collector})
	ops := parse(t, setup+`
{"op":"mint","token":"weth","to":"lp","amount":"100000"}
{"op":"mint","token":"usdc","to":"lp","amount":"100000"}
{"op":"approve","caller":"lp","token":"weth","spender":"pool:weth","amount":"100000"}
{"op":"approve","caller":"lp","token":"usdc","spender":"pool:usdc","amount":"100000"}
{"op":"deposit","caller":"lp","asset":"weth","amount":"100000"}
{"op":"deposit","caller":"lp","asset":"usdc","amount":"100000"}
{"op":"place","caller":"alice","asset":"weth","quote":"usdc","ask_pay":"1000","ask_buy":"2000","bid_pay":"1500","bid_buy":"1000"}
{"op":"mint","token":"usdc","to":"taker","amount":"2000"}
{"op":"take","caller":"taker","trade":1,"side":"ask"}
{"op":"scrub","caller":"bob","trade":1,"expect_error":"NotAuthorized"}
{"op":"advance","duration":"10s"}
{"op":"scrub","caller":"bob","trade":1}
{"op":"scrub","caller":"alice","trade":1,"expect_error":"AlreadyScrubbed"}
{"op":"scrub","caller":"alice","trade":7,"expect_error":"UnknownTrade"}
{"op":"rebalance","caller":"keeper","asset":"weth","quote":"usdc","asset_amount":"0","quote_amount":"100000"}
{"op":"claim","caller":"alice","asset":"weth","quote":"usdc"}
`)
	report, err := r.Run(ctx, ops)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.ExpectedErrors != 3 {
		t.Fatalf("expected 3 expected errors, got %d", report.ExpectedErrors)
	}

	bal, err := r.Tokens().BalanceOf(ctx, Actor("usdc"), Actor("alice"))
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Int64() != 4 {
		t.Fatalf("alice booty mismatch: %s", bal)
	}
	for _, snap := range report.Pools {
		if snap.Outstanding != "0" {
			t.Fatalf("pool %s still has outstanding %s", snap.Symbol, snap.Outstanding)
		}
	}
	if recorder.Count(model.EventTradeScrubbed) != 1 || recorder.Count(model.EventClaimed) != 1 {
		t.Fatalf("journal mismatch: %d scrubbed, %d claimed", recorder.Count(model.EventTradeScrubbed), recorder.Count(model.EventClaimed))
	}
}

func TestUnexpectedOutcomeStopsRun(t *testing.T) {
	ctx := context.Background()

	r := newRunner(t, Options{})
	_, err := r.Run(ctx, parse(t, setup+`{"op":"create_pool","asset":"weth"}`))
	if err == nil || !strings.Contains(err.Error(), "line 7") {
		t.Fatalf("expected failure at line 7, got %v", err)
	}

	r = newRunner(t, Options{})
	_, err = r.Run(ctx, parse(t, `{"op":"create_pool","asset":"weth","expect_error":"NotAuthorized"}`))
	if err == nil || !strings.Contains(err.Error(), "got success") {
		t.Fatalf("expected unmet expectation, got %v", err)
	}

	r = newRunner(t, Options{})
	_, err = r.Run(ctx, parse(t, `{"op":"create_pool","caller":"mallory","asset":"weth","expect_error":"PoolExists"}`))
	if err == nil || !strings.Contains(err.Error(), "expected PoolExists") {
		t.Fatalf("expected mismatched kind, got %v", err)
	}
}

func TestResumeReplaysJournaledOps(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	state := &FileStateStore{Path: filepath.Join(dir, "state.json")}
	if err := state.Save(ctx, 3); err != nil {
		t.Fatalf("save state: %v", err)
	}

	recorder := &events.Recorder{}
	snapshots := &FileSnapshotStore{Path: filepath.Join(dir, "pools.json")}
	r := newRunner(t, Options{Sinks: []events.Sink{recorder}, State: state, Snapshots: snapshots})
	ops := parse(t, setup+`{"op":"approve_strategist","account":"bob"}`)

	report, err := r.Run(ctx, ops)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Replayed != 3 || report.Applied != 2 {
		t.Fatalf("report mismatch: %+v", report)
	}
	if recorder.Count(model.EventPoolCreated) != 0 || recorder.Count(model.EventStrategistApproved) != 2 {
		t.Fatalf("replayed ops must not be journaled: %+v", recorder.Events())
	}

	applied, ok, err := state.Load(ctx)
	if err != nil || !ok || applied != 5 {
		t.Fatalf("state mismatch: %d %v %v", applied, ok, err)
	}

	data, err := os.ReadFile(snapshots.Path)
	if err != nil {
		t.Fatalf("read snapshots: %v", err)
	}
	var pools []model.PoolSnapshot
	if err := json.Unmarshal(data, &pools); err != nil {
		t.Fatalf("decode snapshots: %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("expected 2 pool snapshots, got %d", len(pools))
	}
}

func TestAddressResolution(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t, Options{})
	if _, err := r.Run(ctx, parse(t, `{"op":"create_pool","asset":"weth"}`)); err != nil {
		t.Fatalf("run: %v", err)
	}

	cfg := DefaultConfig()
	cases := map[string]string{
		"admin": cfg.Admin.Hex(),
		"pair":  cfg.Pair.Hex(),
		"zero":  "0x0000000000000000000000000000000000000000",
		"alice": Actor("alice").Hex(),
	}
	cases[Actor("x").Hex()] = Actor("x").Hex()
	for name, want := range cases {
		got, err := r.address(ctx, name)
		if err != nil {
			t.Fatalf("resolve %s: %v", name, err)
		}
		if got.Hex() != want {
			t.Fatalf("resolve %s = %s, want %s", name, got.Hex(), want)
		}
	}
	pool, _ := r.Registry().Pool(ctx, Actor("weth"))
	if got, _ := r.address(ctx, "pool:weth"); got != pool.Address() {
		t.Fatalf("pool alias mismatch")
	}
	if _, err := r.address(ctx, "pool:dai"); err == nil {
		t.Fatalf("expected error for missing pool")
	}
	if _, err := r.address(ctx, "0x12"); err == nil {
		t.Fatalf("expected error for malformed hex")
	}
}
