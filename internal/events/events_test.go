package events

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"pairVault/internal/model"
)

type failingSink struct {
	calls int
}

func (f *failingSink) PutEvents(context.Context, []model.Event) error {
	f.calls++
	return errors.New("sink down")
}

func fixedNow() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestJournalFlush(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	j := NewJournal(fixedNow, zap.NewNop(), a, b)
	j.Emit(model.EventDeposited, model.Deposited{Amount: "10"})
	j.Emit(model.EventWithdrawn, model.Withdrawn{Shares: "5"})
	if j.Pending() != 2 {
		t.Fatalf("expected 2 pending, got %d", j.Pending())
	}

	if err := j.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if j.Pending() != 0 {
		t.Fatalf("flush should drain the journal")
	}
	for _, sink := range []*Recorder{a, b} {
		evs := sink.Events()
		if len(evs) != 2 || evs[0].Seq != 1 || evs[1].Seq != 2 {
			t.Fatalf("sink events mismatch: %+v", evs)
		}
		if !evs[0].Timestamp.Equal(fixedNow()) {
			t.Fatalf("timestamp mismatch: %s", evs[0].Timestamp)
		}
	}
	if a.Events()[0].ID == a.Events()[1].ID {
		t.Fatalf("event ids must be unique")
	}
}

func TestJournalKeepsBatchOnFailure(t *testing.T) {
	bad := &failingSink{}
	j := NewJournal(fixedNow, nil, bad)
	j.Emit(model.EventClaimed, model.Claimed{})
	if err := j.Flush(context.Background()); err == nil {
		t.Fatalf("expected flush error")
	}
	j.Emit(model.EventClaimed, model.Claimed{})
	if j.Pending() != 2 {
		t.Fatalf("failed batch should be kept ahead of new events, pending %d", j.Pending())
	}
}

func TestTee(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	Tee{a, Nop{}, b}.Emit(model.EventRebalanced, model.Rebalanced{})
	if a.Count(model.EventRebalanced) != 1 || b.Count(model.EventRebalanced) != 1 {
		t.Fatalf("tee should forward to every emitter")
	}
	if _, ok := a.Last(model.EventClaimed); ok {
		t.Fatalf("unexpected claimed event")
	}
}

func TestJSONLSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "events.jsonl")
	sink := NewJSONLSink(path)
	j := NewJournal(fixedNow, nil, sink, LogSink{Logger: zap.NewNop()})
	j.Emit(model.EventPoolCreated, model.PoolCreated{Asset: "0xa", Pool: "0xp", Symbol: "bathA"})
	if err := j.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	j.Emit(model.EventPairWired, model.PairWired{Pair: "0xpair"})
	if err := j.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var kinds []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var ev struct {
			Seq     uint64          `json:"seq"`
			Kind    string          `json:"kind"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		kinds = append(kinds, ev.Kind)
	}
	if len(kinds) != 2 || kinds[0] != string(model.EventPoolCreated) || kinds[1] != string(model.EventPairWired) {
		t.Fatalf("journal file mismatch: %v", kinds)
	}
}

func TestJournalNamedIDsAreStable(t *testing.T) {
	emitTwo := func(j *Journal) []model.Event {
		rec := &Recorder{}
		j.sinks = []Sink{rec}
		j.Emit(model.EventDeposited, model.Deposited{Amount: "10"})
		j.Emit(model.EventDeposited, model.Deposited{Amount: "20"})
		if err := j.Flush(context.Background()); err != nil {
			t.Fatalf("flush: %v", err)
		}
		return rec.Events()
	}

	first := emitTwo(NewJournal(fixedNow, nil).Named("nightly"))
	again := emitTwo(NewJournal(fixedNow, nil).Named("nightly"))
	other := emitTwo(NewJournal(fixedNow, nil).Named("weekly"))
	unnamed := emitTwo(NewJournal(fixedNow, nil))

	for i := range first {
		if first[i].ID != again[i].ID {
			t.Fatalf("event %d: same run produced ids %s and %s", i, first[i].ID, again[i].ID)
		}
		if first[i].ID == other[i].ID || first[i].ID == unnamed[i].ID {
			t.Fatalf("event %d: id %s shared across runs", i, first[i].ID)
		}
	}
	if first[0].ID == first[1].ID {
		t.Fatalf("ids within a run must differ")
	}
}
