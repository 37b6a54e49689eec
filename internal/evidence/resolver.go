package evidence

import (
	"context"
	"log/slog"
	"time"

	"github.com/apresai/reelscript/internal/cache"
	"github.com/apresai/reelscript/internal/catalog"
	"github.com/apresai/reelscript/internal/intent"
)

const (
	rankingLimit      = 5
	rankingCacheTTL   = 90 * time.Second
	rankingCacheLimit = 160
)

// Where a resolved dimension value came from.
const (
	SourceExplicit     = "explicit"
	SourceForced       = "forced"
	SourceHumorDefault = "humor_default"
	SourceRanking      = "ranking"
	SourceDefault      = "default"
)

// Resolver fills every category dimension for a request.
type Resolver struct {
	store   ContentStore
	catalog *catalog.Catalog
	ranking *cache.Cache[catalog.RankedSelection]
	logger  *slog.Logger
}

// NewResolver creates a resolver backed by store.
func NewResolver(store ContentStore, cat *catalog.Catalog, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:   store,
		catalog: cat,
		ranking: cache.New[catalog.RankedSelection](rankingCacheTTL, rankingCacheLimit),
		logger:  logger,
	}
}

// ResolveInput carries the parsed request.
type ResolveInput struct {
	CreatorID string
	Mode      intent.Mode
	Narrative intent.Narrative
	Explicit  catalog.Selection
	Window    Window
}

// Resolution is the fully populated selection and how it was reached.
type Resolution struct {
	Final        catalog.Selection
	Sources      map[catalog.Dimension]string
	Ranking      catalog.RankedSelection
	RankingError string
}

// Ranking returns per-dimension categories ordered by mean interactions for
// the window, cached per creator and window. Concurrent identical calls
// share one store query.
func (r *Resolver) Ranking(ctx context.Context, creatorID string, w Window) (catalog.RankedSelection, error) {
	key := creatorID + "|" + w.Key()
	return r.ranking.Do(ctx, key, func(ctx context.Context) (catalog.RankedSelection, error) {
		raw, err := r.store.RankCategories(ctx, creatorID, w, rankingLimit*3)
		if err != nil {
			return nil, err
		}
		return r.catalog.MergeRanked(raw, rankingLimit), nil
	})
}

// CacheStats exposes the ranking cache counters.
func (r *Resolver) CacheStats() cache.Stats {
	return r.ranking.Stats()
}

// Resolve returns a selection with all five dimensions set. The format is
// always pinned to the short-video format. In full mode the explicit
// selection is otherwise kept as-is; in open and partial modes missing
// dimensions are filled from humor defaults, then the ranking, then fixed
// defaults. A ranking failure degrades to defaults.
func (r *Resolver) Resolve(ctx context.Context, in ResolveInput) Resolution {
	res := Resolution{
		Final:   r.catalog.Canonicalize(in.Explicit),
		Sources: make(map[catalog.Dimension]string),
	}
	for d := range res.Final {
		res.Sources[d] = SourceExplicit
	}

	if in.Mode != intent.ModeFull {
		if in.Narrative.WantsHumor {
			for _, d := range []catalog.Dimension{catalog.Tone, catalog.Proposal} {
				if !res.Final.Has(d) {
					if v := r.catalog.HumorDefaultFor(d); v != "" {
						res.Final[d] = v
						res.Sources[d] = SourceHumorDefault
					}
				}
			}
		}

		if res.Final.Count() < len(catalog.Dimensions()) {
			ranking, err := r.Ranking(ctx, in.CreatorID, in.Window)
			if err != nil {
				r.logger.WarnContext(ctx, "category ranking unavailable, using defaults",
					"creator_id", in.CreatorID,
					"error", err,
				)
				res.RankingError = err.Error()
			}
			res.Ranking = ranking
			for _, d := range catalog.Dimensions() {
				if res.Final.Has(d) {
					continue
				}
				if top := ranking.Top(d); top != "" {
					res.Final[d] = top
					res.Sources[d] = SourceRanking
				}
			}
		}
	}

	for _, d := range catalog.Dimensions() {
		if !res.Final.Has(d) {
			res.Final[d] = r.catalog.DefaultFor(d)
			res.Sources[d] = SourceDefault
		}
	}

	if res.Final[catalog.Format] != catalog.ShortVideoFormat || res.Sources[catalog.Format] != SourceExplicit {
		res.Sources[catalog.Format] = SourceForced
	}
	res.Final[catalog.Format] = catalog.ShortVideoFormat
	return res
}
