package events

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pairVault/internal/model"
)

// Emitter receives protocol events. Components emit only after an operation has
// fully succeeded.
type Emitter interface {
	Emit(kind model.EventKind, payload any)
}

// Sink persists batches of journaled events.
type Sink interface {
	PutEvents(ctx context.Context, events []model.Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Emit(model.EventKind, any) {}

// Tee forwards every event to each emitter in order.
type Tee []Emitter

func (t Tee) Emit(kind model.EventKind, payload any) {
	for _, e := range t {
		e.Emit(kind, payload)
	}
}

// LogSink writes journaled events to a zap logger.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) PutEvents(_ context.Context, events []model.Event) error {
	for _, ev := range events {
		s.Logger.Info("protocol event",
			zap.Uint64("seq", ev.Seq),
			zap.String("kind", string(ev.Kind)),
			zap.Any("payload", ev.Payload),
		)
	}
	return nil
}

// Journal sequences events and buffers them until Flush. Event ids are derived from
// the journal namespace and the sequence number, so replaying the same ops under the
// same run name reproduces the same ids.
type Journal struct {
	now       func() time.Time
	sinks     []Sink
	logger    *zap.Logger
	namespace uuid.UUID

	mu      sync.Mutex
	seq     uint64
	pending []model.Event
}

func NewJournal(now func() time.Time, logger *zap.Logger, sinks ...Sink) *Journal {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{now: now, sinks: sinks, logger: logger, namespace: uuid.New()}
}

// Named scopes event ids to run. Without a name every journal gets a random
// namespace.
func (j *Journal) Named(run string) *Journal {
	j.mu.Lock()
	j.namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("pairvault:run:"+run))
	j.mu.Unlock()
	return j
}

func (j *Journal) Emit(kind model.EventKind, payload any) {
	j.mu.Lock()
	j.seq++
	ev := model.Event{
		ID:        uuid.NewSHA1(j.namespace, []byte(strconv.FormatUint(j.seq, 10))),
		Seq:       j.seq,
		Kind:      kind,
		Timestamp: j.now().UTC(),
		Payload:   payload,
	}
	j.pending = append(j.pending, ev)
	j.mu.Unlock()

	j.logger.Debug("event", zap.Uint64("seq", ev.Seq), zap.String("kind", string(kind)))
}

// Pending returns the number of buffered events.
func (j *Journal) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.pending)
}

// Discard drops buffered events without writing them and returns how many were
// dropped.
func (j *Journal) Discard() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := len(j.pending)
	j.pending = nil
	return n
}

// Flush writes buffered events to every sink concurrently. On failure the batch is
// kept so a later Flush can retry it; sinks must tolerate replays.
func (j *Journal) Flush(ctx context.Context) error {
	j.mu.Lock()
	batch := j.pending
	j.pending = nil
	j.mu.Unlock()

	if len(batch) == 0 || len(j.sinks) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, sink := range j.sinks {
		sink := sink
		g.Go(func() error {
			return sink.PutEvents(gctx, batch)
		})
	}
	if err := g.Wait(); err != nil {
		j.mu.Lock()
		j.pending = append(batch, j.pending...)
		j.mu.Unlock()
		return err
	}

	j.logger.Debug("events flushed", zap.Int("events", len(batch)), zap.Int("sinks", len(j.sinks)))
	return nil
}

// Recorder keeps every emitted event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *Recorder) Emit(kind model.EventKind, payload any) {
	r.mu.Lock()
	r.events = append(r.events, model.Event{Seq: uint64(len(r.events) + 1), Kind: kind, Payload: payload})
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events of kind were recorded.
func (r *Recorder) Count(kind model.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// Last returns the payload of the most recent event of kind.
func (r *Recorder) Last(kind model.EventKind) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i].Payload, true
		}
	}
	return nil, false
}

// PutEvents lets a Recorder act as a journal sink.
func (r *Recorder) PutEvents(_ context.Context, events []model.Event) error {
	r.mu.Lock()
	r.events = append(r.events, events...)
	r.mu.Unlock()
	return nil
}
