package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bcgov/healthgateway-sub024/internal/platform/telemetry"
)

// DefaultWriteTimeout bounds a single store write.
const DefaultWriteTimeout = 3 * time.Second

// State is the lifecycle position of an Entry.
type State int

const (
	Started State = iota
	Completed
)

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger used for write failures and the audit trail.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// WithMetrics counts recorded events and write failures.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithWriteTimeout bounds each store write.
func WithWriteTimeout(d time.Duration) Option {
	return func(r *Recorder) { r.writeTimeout = d }
}

// WithStoreName labels write-failure metrics.
func WithStoreName(name string) Option {
	return func(r *Recorder) { r.storeName = name }
}

// Recorder opens and finalizes audit entries.
type Recorder struct {
	store        Store
	storeName    string
	logger       zerolog.Logger
	metrics      *telemetry.Metrics
	now          func() time.Time
	writeTimeout time.Duration
}

// NewRecorder returns a Recorder persisting into store.
func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:        store,
		storeName:    "default",
		logger:       zerolog.Nop(),
		now:          time.Now,
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start opens an entry for ev, assigning an ID and timestamp if missing.
func (r *Recorder) Start(ev Event) *Entry {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = r.now().UTC()
	}
	if ev.ActorID == "" {
		ev.ActorID = Anonymous
	}
	if ev.Action == "" {
		ev.Action = ActionForMethod(ev.Method)
	}
	return &Entry{rec: r, event: ev}
}

// Entry is one in-flight audit record.
type Entry struct {
	rec   *Recorder
	once  sync.Once
	mu    sync.Mutex
	event Event
	state State
}

// State reports whether the entry has been completed.
func (e *Entry) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Event returns a copy of the entry's current event.
func (e *Entry) Event() Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.event
}

// Complete sets the outcome from status and persists the event. Only the
// first call has an effect; later calls return the first result. reqErr is
// logged with the event and never changes status. A store failure is logged
// and counted, never returned.
func (e *Entry) Complete(ctx context.Context, status int, reqErr error) Event {
	e.once.Do(func() {
		e.mu.Lock()
		e.event.StatusCode = status
		e.event.ResultCode = ResultCodeForStatus(status)
		e.event.Outcome = OutcomeFor(e.event.ResultCode)
		e.event.Duration = e.rec.now().Sub(e.event.Timestamp)
		e.state = Completed
		ev := e.event
		e.mu.Unlock()

		e.rec.persist(ctx, ev, reqErr)
	})
	return e.Event()
}

func (r *Recorder) persist(ctx context.Context, ev Event, reqErr error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.writeTimeout)
	defer cancel()

	r.metrics.AuditRecorded(string(ev.Outcome))

	if err := r.store.Append(ctx, ev); err != nil {
		r.metrics.AuditWriteFailed(r.storeName)
		r.logger.Error().Err(err).
			Str("audit_id", ev.ID.String()).
			Str("actor_id", ev.ActorID).
			Str("resource", ev.ResourceName).
			Str("store", r.storeName).
			Msg("failed to persist audit event")
	}

	log := r.logger.Info()
	if ev.Outcome == OutcomeFailure {
		log = r.logger.Warn()
	}
	if reqErr != nil {
		log = log.AnErr("request_error", reqErr)
	}
	log.
		Str("type", "audit").
		Str("audit_id", ev.ID.String()).
		Str("trace_id", ev.TraceID).
		Str("actor_id", ev.ActorID).
		Str("subject", ev.Subject).
		Str("resource", ev.ResourceName).
		Str("action", string(ev.Action)).
		Str("outcome", string(ev.Outcome)).
		Str("result_code", string(ev.ResultCode)).
		Int("status", ev.StatusCode).
		Dur("duration", ev.Duration).
		Msg("request audited")
}
