package telemetry

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"
)

// SubjectDiagnostics is the NATS subject diagnostics events are published on.
const SubjectDiagnostics = "reelscript.diagnostics"

// Event is the record emitted once per generation or adjustment call.
type Event struct {
	ID          string      `json:"id"`
	At          time.Time   `json:"at"`
	CreatorID   string      `json:"creator_id"`
	Operation   Operation   `json:"operation"`
	ScriptID    string      `json:"script_id,omitempty"`
	VersionID   string      `json:"version_id,omitempty"`
	Diagnostics Diagnostics `json:"diagnostics"`
	Performance Snapshot    `json:"performance"`
}

// Sink receives diagnostics events.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// LogSink writes events as structured log records.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Publish(ctx context.Context, e Event) error {
	d := e.Diagnostics
	s.Logger.InfoContext(ctx, "script diagnostics",
		"event_id", e.ID,
		"creator_id", e.CreatorID,
		"operation", e.Operation,
		"script_id", e.ScriptID,
		"version_id", e.VersionID,
		"scene_count", d.SceneCount,
		"content_length", d.ContentLength,
		"perceived_quality", d.Quality.PerceivedQuality,
		"category_compliance", d.CategoryCompliance,
		"evidence_count", d.EvidenceCount,
		"model", d.Model,
		"model_unavailable", d.ModelUnavailable,
		slog.Any("diagnostics", d),
		slog.Any("performance", e.Performance),
	)
	return nil
}

// Publisher is the NATS connection method NATSSink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes events as JSON on a NATS subject.
type NATSSink struct {
	pub     Publisher
	subject string
}

// NewNATSSink creates a sink. An empty subject uses SubjectDiagnostics.
func NewNATSSink(pub Publisher, subject string) *NATSSink {
	if subject == "" {
		subject = SubjectDiagnostics
	}
	return &NATSSink{pub: pub, subject: subject}
}

func (s *NATSSink) Publish(_ context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := s.pub.Publish(s.subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", s.subject, err)
	}
	return nil
}

// ConnectNATS dials a NATS server with reconnect handling.
func ConnectNATS(url, token string, logger *slog.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("reelscript"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return nc, nil
}

// Recorder stamps events with an id and the latency snapshot and fans them
// out to sinks. Sink failures are logged, never returned.
type Recorder struct {
	tracker *Tracker
	sinks   []Sink
	logger  *slog.Logger

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewRecorder creates a recorder.
func NewRecorder(tracker *Tracker, logger *slog.Logger, sinks ...Sink) *Recorder {
	if tracker == nil {
		tracker = NewTracker(DefaultWindow)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		tracker: tracker,
		sinks:   sinks,
		logger:  logger,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Tracker returns the latency tracker.
func (r *Recorder) Tracker() *Tracker { return r.tracker }

// NewID returns a new ULID string.
func (r *Recorder) NewID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), r.entropy).String()
}

// Record completes e and publishes it to every sink.
func (r *Recorder) Record(ctx context.Context, e Event) Event {
	if e.ID == "" {
		e.ID = r.NewID()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	e.Performance = r.tracker.Snapshot()
	var errs []error
	for _, s := range r.sinks {
		if err := s.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		r.logger.WarnContext(ctx, "diagnostics publish failed", "event_id", e.ID, "error", err)
	}
	return e
}
