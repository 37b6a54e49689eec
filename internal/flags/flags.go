// Package flags resolves boolean feature flags. An environment variable
// override wins over the stored value, which is cached briefly.
package flags

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/apresai/reelscript/internal/cache"
)

// DefaultTTL is how long a stored flag value is cached.
const DefaultTTL = 30 * time.Second

// Source looks up a stored flag. found is false when the flag is not set.
type Source interface {
	LookupFlag(ctx context.Context, name string) (enabled, found bool, err error)
}

type value struct {
	enabled bool
	found   bool
}

// Provider answers flag lookups.
type Provider struct {
	source   Source
	cache    *cache.Cache[value]
	defaults map[string]bool
	getenv   func(string) string
	logger   *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithDefault sets the value used when neither env nor store has the flag.
func WithDefault(name string, enabled bool) Option {
	return func(p *Provider) { p.defaults[name] = enabled }
}

// WithGetenv replaces os.Getenv.
func WithGetenv(fn func(string) string) Option {
	return func(p *Provider) { p.getenv = fn }
}

// New creates a provider. source may be nil, in which case only env
// overrides and defaults apply.
func New(source Source, ttl time.Duration, logger *slog.Logger, opts ...Option) *Provider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{
		source:   source,
		cache:    cache.New[value](ttl, 128),
		defaults: make(map[string]bool),
		getenv:   os.Getenv,
		logger:   logger,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// EnvName is the override variable for a flag, e.g. FEATURE_STYLE_PROFILE_TRAINING.
func EnvName(name string) string {
	r := strings.NewReplacer("-", "_", ".", "_", " ", "_")
	return "FEATURE_" + strings.ToUpper(r.Replace(name))
}

// Enabled reports whether the flag is on. Lookup errors fall back to the
// default and are logged.
func (p *Provider) Enabled(ctx context.Context, name string) bool {
	if raw := strings.TrimSpace(p.getenv(EnvName(name))); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
		p.logger.WarnContext(ctx, "ignoring invalid flag override", "flag", name, "value", raw)
	}
	if p.source == nil {
		return p.defaults[name]
	}
	v, err := p.cache.Do(ctx, name, func(ctx context.Context) (value, error) {
		enabled, found, err := p.source.LookupFlag(ctx, name)
		return value{enabled: enabled, found: found}, err
	})
	if err != nil {
		p.logger.WarnContext(ctx, "flag lookup failed", "flag", name, "error", err)
		return p.defaults[name]
	}
	if !v.found {
		return p.defaults[name]
	}
	return v.enabled
}
