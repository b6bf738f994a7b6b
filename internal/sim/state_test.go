package sim

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"pairVault/internal/events"
	"pairVault/internal/model"
)

type failingSnapshots struct{ calls int }

func (f *failingSnapshots) SaveSnapshots(context.Context, []model.PoolSnapshot) error {
	f.calls++
	return errors.New("disk full")
}

func TestFileStateStoreMissingFile(t *testing.T) {
	store := &FileStateStore{Path: filepath.Join(t.TempDir(), "nested", "state.json")}
	applied, ok, err := store.Load(context.Background())
	if err != nil || ok || applied != 0 {
		t.Fatalf("expected empty state, got %d %v %v", applied, ok, err)
	}
	if err := store.Save(context.Background(), 7); err != nil {
		t.Fatalf("save: %v", err)
	}
	applied, ok, err = store.Load(context.Background())
	if err != nil || !ok || applied != 7 {
		t.Fatalf("state mismatch: %d %v %v", applied, ok, err)
	}
}

func TestSnapshotStoresStopAtFirstFailure(t *testing.T) {
	first := &failingSnapshots{}
	second := &failingSnapshots{}
	stores := SnapshotStores{first, second}
	if err := stores.SaveSnapshots(context.Background(), nil); err == nil {
		t.Fatalf("expected error")
	}
	if first.calls != 1 || second.calls != 0 {
		t.Fatalf("unexpected calls: %d %d", first.calls, second.calls)
	}
}

// lostProgress never keeps progress, as if the process stopped before every save.
type lostProgress struct{ saves int }

func (l *lostProgress) Load(context.Context) (uint64, bool, error) { return 0, false, nil }

func (l *lostProgress) Save(context.Context, uint64) error {
	l.saves++
	return nil
}

func TestRerunAfterLostProgressReusesEventIDs(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Run = "nightly"

	run := func() []model.Event {
		recorder := &events.Recorder{}
		state := &lostProgress{}
		r, err := NewRunner(cfg, Options{Sinks: []events.Sink{recorder}, State: state}, zap.NewNop())
		if err != nil {
			t.Fatalf("new runner: %v", err)
		}
		if _, err := r.Run(ctx, parse(t, setup)); err != nil {
			t.Fatalf("run: %v", err)
		}
		if state.saves == 0 {
			t.Fatalf("progress should have been saved at least once")
		}
		return recorder.Events()
	}

	first, second := run(), run()
	if len(first) == 0 || len(first) != len(second) {
		t.Fatalf("event counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID || first[i].Seq != second[i].Seq {
			t.Fatalf("event %d re-emitted as %s/%d, first %s/%d", i, second[i].ID, second[i].Seq, first[i].ID, first[i].Seq)
		}
	}
}
