package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/apresai/reelscript/internal/cache"
	"github.com/apresai/reelscript/internal/catalog"
)

const (
	// MinMatches is the evidence sample a strategy must reach to be accepted.
	MinMatches = 6

	defaultPoolSize    = 240
	maxReturned        = 60
	evidenceCacheTTL   = 90 * time.Second
	evidenceCacheLimit = 240
)

// Where the accepted captions were found.
const (
	FromPool   = "pool"
	FromDirect = "direct"
)

// Strategy is one relaxation level: the dimensions a caption must match.
type Strategy struct {
	Name   string
	Filter catalog.Selection
}

// Attempt records how many captions a strategy matched.
type Attempt struct {
	Strategy string `json:"strategy"`
	Matches  int    `json:"matches"`
	Source   string `json:"source"`
}

// Result is the outcome of an evidence retrieval.
type Result struct {
	Captions          []Caption
	Strategy          string
	Level             int
	UsedFallbackRules bool
	PoolSize          int
	PoolTruncated     bool
	Source            string
	Attempts          []Attempt
}

// Request identifies what to retrieve.
type Request struct {
	CreatorID string
	Window    Window
	Resolved  catalog.Selection
	Explicit  catalog.Selection
}

// Retriever runs the relaxation search over a creator's history.
type Retriever struct {
	store    ContentStore
	catalog  *catalog.Catalog
	cache    *cache.Cache[Result]
	poolSize int
	logger   *slog.Logger
}

// NewRetriever creates a retriever. A non-positive poolSize uses the default.
func NewRetriever(store ContentStore, cat *catalog.Catalog, poolSize int, logger *slog.Logger) *Retriever {
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		store:    store,
		catalog:  cat,
		cache:    cache.New[Result](evidenceCacheTTL, evidenceCacheLimit),
		poolSize: poolSize,
		logger:   logger,
	}
}

// CacheStats exposes the evidence cache counters.
func (r *Retriever) CacheStats() cache.Stats {
	return r.cache.Stats()
}

// Strategies builds the ordered relaxation chain for a resolved selection.
// Each level requires a subset of the previous one, so looser levels can
// only match more captions. Identical sets are collapsed.
func Strategies(resolved, explicit catalog.Selection) []Strategy {
	p, c, t, f, ref := catalog.Proposal, catalog.Context, catalog.Tone, catalog.Format, catalog.References
	candidates := []catalog.Selection{
		resolved.Only(p, c, t, f, ref),
		resolved.Only(p, c, t, f),
		resolved.Only(p, c, t),
		resolved.Only(p, c),
	}
	// explicit-only level, restricted to what the previous level required
	var explicitDims []catalog.Dimension
	for _, d := range []catalog.Dimension{p, c} {
		if explicit.Has(d) {
			explicitDims = append(explicitDims, d)
		}
	}
	candidates = append(candidates, resolved.Only(explicitDims...), catalog.Selection{})

	var out []Strategy
	seen := make(map[string]bool)
	for _, sel := range candidates {
		key := sel.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Strategy{Name: strategyName(sel), Filter: sel})
	}
	return out
}

func strategyName(sel catalog.Selection) string {
	dims := sel.Dims()
	if len(dims) == 0 {
		return "none"
	}
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = string(d)
	}
	return strings.Join(parts, "+")
}

// Matches reports whether a caption satisfies every dimension of filter.
func (r *Retriever) Matches(c Caption, filter catalog.Selection) bool {
	for d, want := range filter {
		if want == "" {
			continue
		}
		if !r.catalog.Equivalent(d, c.Categories.Get(d), want) {
			return false
		}
	}
	return true
}

func (r *Retriever) filter(pool []Caption, sel catalog.Selection) []Caption {
	var out []Caption
	for _, c := range pool {
		if r.Matches(c, sel) {
			out = append(out, c)
		}
	}
	return out
}

// Retrieve returns at least MinMatches captions when the history allows,
// relaxing constraints level by level. Results are cached per creator,
// window and selections; concurrent identical calls share one search.
func (r *Retriever) Retrieve(ctx context.Context, req Request) (Result, error) {
	key := fmt.Sprintf("%s|%s|%s|%s", req.CreatorID, req.Window.Key(), req.Resolved.Key(), req.Explicit.Key())
	return r.cache.Do(ctx, key, func(ctx context.Context) (Result, error) {
		return r.search(ctx, req)
	})
}

func (r *Retriever) search(ctx context.Context, req Request) (Result, error) {
	pool, err := r.store.TopContent(ctx, Query{
		CreatorID: req.CreatorID,
		Window:    req.Window,
		Limit:     r.poolSize,
	})
	if err != nil {
		return Result{}, fmt.Errorf("fetch candidate pool: %w", err)
	}

	strategies := Strategies(req.Resolved, req.Explicit)
	res := Result{
		PoolSize:      len(pool),
		PoolTruncated: len(pool) >= r.poolSize,
	}

	best := -1
	var bestMatches []Caption
	for i, s := range strategies {
		// The pool only holds the most engaged items. When it was cut short,
		// matching content may exist further down, so the constrained levels
		// are retried against the store before giving up all constraints.
		if len(s.Filter) == 0 && res.PoolTruncated {
			if out, ok := r.directPass(ctx, req, strategies, &res); ok {
				return out, nil
			}
		}
		matched := r.filter(pool, s.Filter)
		res.Attempts = append(res.Attempts, Attempt{Strategy: s.Name, Matches: len(matched), Source: FromPool})
		if len(matched) >= MinMatches {
			return r.accept(res, strategies, i, matched, FromPool), nil
		}
		if len(matched) > len(bestMatches) {
			best, bestMatches = i, matched
		}
	}

	if best < 0 {
		best = len(strategies) - 1
	}
	return r.accept(res, strategies, best, bestMatches, FromPool), nil
}

func (r *Retriever) directPass(ctx context.Context, req Request, strategies []Strategy, res *Result) (Result, bool) {
	for i, s := range strategies {
		if len(s.Filter) == 0 {
			break
		}
		direct, err := r.store.TopContent(ctx, Query{
			CreatorID: req.CreatorID,
			Window:    req.Window,
			Filter:    s.Filter,
			Limit:     r.poolSize,
		})
		if err != nil {
			r.logger.WarnContext(ctx, "direct evidence query failed",
				"creator_id", req.CreatorID,
				"strategy", s.Name,
				"error", err,
			)
			continue
		}
		res.Attempts = append(res.Attempts, Attempt{Strategy: s.Name, Matches: len(direct), Source: FromDirect})
		if len(direct) >= MinMatches {
			return r.accept(*res, strategies, i, direct, FromDirect), true
		}
	}
	return Result{}, false
}

func (r *Retriever) accept(res Result, strategies []Strategy, level int, captions []Caption, source string) Result {
	if len(captions) > maxReturned {
		captions = captions[:maxReturned]
	}
	res.Captions = captions
	res.Level = level
	res.Strategy = strategies[level].Name
	res.UsedFallbackRules = level > 0
	res.Source = source
	return res
}
