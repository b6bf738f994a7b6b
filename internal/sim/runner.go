package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"pairVault/internal/events"
	"pairVault/internal/exchange"
	"pairVault/internal/ledger"
	"pairVault/internal/metrics"
	"pairVault/internal/model"
	"pairVault/internal/pair"
	"pairVault/internal/protocol"
	"pairVault/internal/registry"
	"pairVault/internal/retry"
)

// Config describes the in-memory deployment a scenario runs against.
type Config struct {
	Admin      common.Address
	Registry   common.Address
	Pair       common.Address
	Exchange   common.Address
	Policy     registry.Policy
	PoolFeeBps uint64
	Start      time.Time
	// Run names the journal so a resumed run re-emits the same event ids.
	Run string
	// FlushEvery flushes the journal and saves progress after that many ops; zero
	// flushes only at the end.
	FlushEvery   int
	MaxRetries   int
	RetryBackoff time.Duration
}

// DefaultConfig uses fixed actor-derived addresses so scenario files can refer to
// roles by name.
func DefaultConfig() Config {
	return Config{
		Admin:        Actor("admin"),
		Registry:     Actor("registry"),
		Pair:         Actor("pair"),
		Exchange:     Actor("exchange"),
		Policy:       registry.DefaultPolicy(),
		Start:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		MaxRetries:   3,
		RetryBackoff: 500 * time.Millisecond,
	}
}

// Actor derives a stable address for a named scenario account.
func Actor(name string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(name))[12:])
}

// Clock is the simulated time source. It only moves on "advance".
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Report summarizes a run.
type Report struct {
	Applied        int                  `json:"applied"`
	Replayed       int                  `json:"replayed"`
	ExpectedErrors int                  `json:"expected_errors"`
	Pools          []model.PoolSnapshot `json:"pools"`
}

// Runner applies scenario ops to a fresh deployment of the ledger, exchange,
// registry and pair.
type Runner struct {
	cfg       Config
	clock     *Clock
	journal   *events.Journal
	collector *metrics.Collector
	state     StateStore
	snapshots SnapshotStore
	logger    *zap.Logger

	tokens *ledger.Memory
	book   *exchange.Book
	reg    *registry.Registry
	pair   *pair.Pair
}

// Options carries the optional collaborators of a Runner.
type Options struct {
	Sinks     []events.Sink
	Collector *metrics.Collector
	State     StateStore
	Snapshots SnapshotStore
	Symbols   registry.SymbolFunc
}

func NewRunner(cfg Config, opts Options, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Now().UTC()
	}
	clock := &Clock{now: cfg.Start}
	journal := events.NewJournal(clock.Now, logger, opts.Sinks...)
	if cfg.Run != "" {
		journal.Named(cfg.Run)
	}

	emitters := events.Tee{journal}
	if opts.Collector != nil {
		emitters = append(emitters, opts.Collector)
	}

	tokens := ledger.NewMemory()
	book := exchange.NewBook(cfg.Exchange, tokens)
	reg, err := registry.New(registry.Config{
		Address:    cfg.Registry,
		Admin:      cfg.Admin,
		Policy:     cfg.Policy,
		PoolFeeBps: cfg.PoolFeeBps,
		Symbols:    opts.Symbols,
	}, tokens, book, emitters, logger)
	if err != nil {
		return nil, fmt.Errorf("deploy registry: %w", err)
	}
	p, err := pair.New(pair.Config{Address: cfg.Pair, Now: clock.Now}, reg, tokens, book, emitters, logger)
	if err != nil {
		return nil, fmt.Errorf("deploy pair: %w", err)
	}

	return &Runner{
		cfg:       cfg,
		clock:     clock,
		journal:   journal,
		collector: opts.Collector,
		state:     opts.State,
		snapshots: opts.Snapshots,
		logger:    logger,
		tokens:    tokens,
		book:      book,
		reg:       reg,
		pair:      p,
	}, nil
}

func (r *Runner) Registry() *registry.Registry {
	return r.reg
}

func (r *Runner) Pair() *pair.Pair {
	return r.pair
}

func (r *Runner) Tokens() *ledger.Memory {
	return r.tokens
}

func (r *Runner) Book() *exchange.Book {
	return r.book
}

// Run applies ops in order. Ops already recorded by the state store are replayed
// without journaling their events. An op that fails without expect_error, or whose
// outcome differs from expect_error, stops the run.
func (r *Runner) Run(ctx context.Context, ops []Op) (Report, error) {
	var report Report

	var skip uint64
	if r.state != nil {
		applied, ok, err := r.state.Load(ctx)
		if err != nil {
			return report, fmt.Errorf("load state: %w", err)
		}
		if ok {
			skip = applied
		}
	}

	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		replay := uint64(i) < skip

		err := r.apply(ctx, op)
		kind := protocol.ErrorKind(err)
		switch {
		case op.ExpectError != "" && err == nil:
			return report, fmt.Errorf("line %d: %s: expected %s, got success", op.Line, op.Op, op.ExpectError)
		case op.ExpectError != "" && kind != op.ExpectError:
			return report, fmt.Errorf("line %d: %s: expected %s, got %v", op.Line, op.Op, op.ExpectError, err)
		case op.ExpectError != "":
			report.ExpectedErrors++
		case err != nil:
			return report, fmt.Errorf("line %d: %s: %w", op.Line, op.Op, err)
		}
		if err != nil {
			r.logger.Debug("expected failure", zap.Int("line", op.Line), zap.String("op", op.Op), zap.String("kind", kind))
		}

		if replay {
			r.journal.Discard()
			report.Replayed++
			continue
		}
		report.Applied++
		if r.collector != nil {
			r.collector.ObserveOp(op.Op, kind)
		}
		if r.cfg.FlushEvery > 0 && report.Applied%r.cfg.FlushEvery == 0 {
			if err := r.flush(ctx, uint64(i+1)); err != nil {
				return report, err
			}
		}
	}

	if err := r.flush(ctx, uint64(report.Applied+report.Replayed)); err != nil {
		return report, err
	}

	snapshots, err := r.Snapshots(ctx)
	if err != nil {
		return report, err
	}
	report.Pools = snapshots
	if r.collector != nil {
		for _, snap := range snapshots {
			r.collector.ObservePool(snap)
		}
	}
	if r.snapshots != nil {
		err := retry.Do(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
			return r.snapshots.SaveSnapshots(ctx, snapshots)
		})
		if err != nil {
			return report, fmt.Errorf("save snapshots: %w", err)
		}
	}

	r.logger.Info("scenario complete",
		zap.Int("applied", report.Applied),
		zap.Int("replayed", report.Replayed),
		zap.Int("expected_errors", report.ExpectedErrors),
		zap.Int("pools", len(snapshots)),
	)
	return report, nil
}

// Snapshots returns the current state of every pool in creation order.
func (r *Runner) Snapshots(ctx context.Context) ([]model.PoolSnapshot, error) {
	pools := r.reg.Pools(ctx)
	out := make([]model.PoolSnapshot, 0, len(pools))
	for _, pool := range pools {
		snap, err := pool.Snapshot(ctx, r.clock.Now())
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", pool.Address().Hex(), err)
		}
		out = append(out, snap)
	}
	return out, nil
}

func (r *Runner) flush(ctx context.Context, applied uint64) error {
	err := retry.Do(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		return r.journal.Flush(ctx)
	})
	if err != nil {
		return fmt.Errorf("flush events: %w", err)
	}
	if r.state == nil {
		return nil
	}
	err = retry.Do(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		return r.state.Save(ctx, applied)
	})
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}
