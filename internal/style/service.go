package style

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/apresai/reelscript/internal/observability"
)

// FlagTraining is the feature flag that enables style profiles.
const FlagTraining = "style_profile_training"

const (
	defaultStaleAfter = 24 * time.Hour
	defaultListLimit  = 600
)

var tracer = otel.Tracer("reelscript/style")

// Store persists script history and profiles.
type Store interface {
	// ListScripts returns up to limit of the creator's scripts, newest first,
	// with BaseContent filled for entries linked to a generated base.
	ListScripts(ctx context.Context, creatorID string, limit int) ([]ScriptEntry, error)
	// GetProfile returns nil, nil when the creator has no profile.
	GetProfile(ctx context.Context, creatorID string) (*Profile, error)
	PutProfile(ctx context.Context, p *Profile) error
}

// FeatureGate answers boolean feature flags.
type FeatureGate interface {
	Enabled(ctx context.Context, name string) bool
}

// Service loads profiles, rebuilding or refreshing them as needed.
type Service struct {
	store      Store
	gate       FeatureGate
	logger     *slog.Logger
	now        func() time.Time
	staleAfter time.Duration
	listLimit  int

	mu         sync.Mutex
	refreshing map[string]bool
	wg         sync.WaitGroup
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithStaleAfter sets the profile age that triggers a background refresh.
func WithStaleAfter(d time.Duration) ServiceOption {
	return func(s *Service) { s.staleAfter = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. A nil gate leaves training enabled.
func NewService(store Store, gate FeatureGate, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:      store,
		gate:       gate,
		logger:     logger,
		now:        time.Now,
		staleAfter: defaultStaleAfter,
		listLimit:  defaultListLimit,
		refreshing: make(map[string]bool),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// LoadResult reports the loaded profile and what had to happen to get it.
type LoadResult struct {
	Profile        *Profile
	Disabled       bool
	Rebuilt        bool
	Corrupted      bool
	RefreshStarted bool
}

// Load returns the creator's profile. A missing or corrupted profile is
// rebuilt synchronously; a stale one is returned as-is and refreshed in the
// background.
func (s *Service) Load(ctx context.Context, creatorID string) (LoadResult, error) {
	ctx, span := tracer.Start(ctx, "style.Load")
	defer span.End()
	span.SetAttributes(attribute.String("creator.id", creatorID))

	if s.gate != nil && !s.gate.Enabled(ctx, FlagTraining) {
		return LoadResult{Disabled: true}, nil
	}

	var res LoadResult
	p, err := s.store.GetProfile(ctx, creatorID)
	switch {
	case errors.Is(err, ErrProfileCorrupted):
		res.Corrupted = true
	case err != nil:
		return res, fmt.Errorf("get style profile: %w", err)
	case p != nil:
		if verr := p.Validate(); verr != nil {
			s.logger.WarnContext(ctx, "stored style profile rejected",
				"creator_id", creatorID,
				"error", verr,
			)
			res.Corrupted = true
		}
	}

	if p == nil || res.Corrupted {
		p, err = s.Rebuild(ctx, creatorID)
		if err != nil {
			return res, err
		}
		res.Profile = p
		res.Rebuilt = true
		span.SetAttributes(attribute.Bool("style.rebuilt", true))
		return res, nil
	}

	res.Profile = p
	if s.now().Sub(p.BuiltAt) > s.staleAfter {
		res.RefreshStarted = s.RefreshAsync(ctx, creatorID)
	}
	return res, nil
}

// Rebuild trains a profile from the creator's scripts and stores it.
func (s *Service) Rebuild(ctx context.Context, creatorID string) (*Profile, error) {
	entries, err := s.store.ListScripts(ctx, creatorID, s.listLimit)
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	p := Train(creatorID, entries, s.now())
	if err := s.store.PutProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("put style profile: %w", err)
	}
	s.logger.InfoContext(ctx, "style profile built",
		"creator_id", creatorID,
		"sample_size", p.SampleSize,
		"considered", p.Exclusions.Considered,
		"admin_recommended", p.Exclusions.AdminRecommended,
		"too_short", p.Exclusions.TooShort,
		"duplicate", p.Exclusions.Duplicate,
	)
	return p, nil
}

// RefreshAsync starts a background rebuild unless one is already running
// for the creator. It never blocks and never reports failures to the
// caller. It returns whether a refresh was started.
func (s *Service) RefreshAsync(ctx context.Context, creatorID string) bool {
	s.mu.Lock()
	if s.refreshing[creatorID] {
		s.mu.Unlock()
		return false
	}
	s.refreshing[creatorID] = true
	s.mu.Unlock()

	s.wg.Add(1)
	observability.FireAndForget(ctx, s.logger, "style_refresh", func(ctx context.Context) error {
		_, err := s.Rebuild(ctx, creatorID)
		return err
	}, func() {
		s.mu.Lock()
		delete(s.refreshing, creatorID)
		s.mu.Unlock()
		s.wg.Done()
	})
	return true
}

// Wait blocks until background refreshes finish. Used on shutdown.
func (s *Service) Wait() {
	s.wg.Wait()
}
