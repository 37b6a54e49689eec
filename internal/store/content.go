package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apresai/reelscript/internal/catalog"
	"github.com/apresai/reelscript/internal/evidence"
)

const contentTable = "content_metrics"

// dimension columns of content_metrics
var dimensionColumns = map[catalog.Dimension]string{
	catalog.Proposal:   "proposal",
	catalog.Context:    "context",
	catalog.Format:     "format",
	catalog.Tone:       "tone",
	catalog.References: "reference",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// ContentStore reads historical content metrics from PostgreSQL.
type ContentStore struct {
	db      querier
	pool    *pgxpool.Pool
	catalog *catalog.Catalog
}

// NewContentStore connects to databaseURL and verifies the connection.
func NewContentStore(ctx context.Context, databaseURL string, cat *catalog.Catalog) (*ContentStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &ContentStore{db: pool, pool: pool, catalog: cat}, nil
}

// Close releases the connection pool.
func (s *ContentStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// columnKey folds a category column the same way catalog.Key folds values,
// minus accent stripping, which Variants covers with the raw label.
func columnKey(col string) string {
	return fmt.Sprintf("lower(replace(replace(coalesce(%s, ''), '_', ' '), '-', ' '))", col)
}

func (s *ContentStore) topContentQuery(q evidence.Query) (string, []any, error) {
	b := psql.Select("id", "caption", "interactions", "posted_at",
		"proposal", "context", "format", "tone", "reference").
		From(contentTable).
		Where(sq.Eq{"creator_id": q.CreatorID})
	if !q.Window.From.IsZero() {
		b = b.Where(sq.GtOrEq{"posted_at": q.Window.From})
	}
	if !q.Window.To.IsZero() {
		b = b.Where(sq.LtOrEq{"posted_at": q.Window.To})
	}
	for _, d := range q.Filter.Dims() {
		col, ok := dimensionColumns[d]
		if !ok {
			continue
		}
		b = b.Where(sq.Expr(columnKey(col)+" = ANY(?)", s.catalog.Variants(d, q.Filter.Get(d))))
	}
	b = b.OrderBy("interactions DESC", "posted_at DESC")
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}
	return b.ToSql()
}

// TopContent returns the creator's most engaged captions matching the
// query filter.
func (s *ContentStore) TopContent(ctx context.Context, q evidence.Query) ([]evidence.Caption, error) {
	query, args, err := s.topContentQuery(q)
	if err != nil {
		return nil, fmt.Errorf("build content query: %w", err)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query content: %w", err)
	}
	defer rows.Close()

	var out []evidence.Caption
	for rows.Next() {
		var (
			c                                  evidence.Caption
			postedAt                           time.Time
			proposal, ctxCol, format, tone, rf *string
		)
		if err := rows.Scan(&c.ID, &c.Text, &c.Interactions, &postedAt,
			&proposal, &ctxCol, &format, &tone, &rf); err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		c.PostedAt = postedAt
		c.Categories = catalog.Selection{}
		for d, v := range map[catalog.Dimension]*string{
			catalog.Proposal: proposal, catalog.Context: ctxCol, catalog.Format: format,
			catalog.Tone: tone, catalog.References: rf,
		} {
			if v != nil && *v != "" {
				c.Categories[d] = *v
			}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate content: %w", err)
	}
	return out, nil
}

func rankQuery(col, creatorID string, w evidence.Window, limit int) (string, []any, error) {
	b := psql.Select(col, "AVG(interactions)::float8", "COUNT(*)").
		From(contentTable).
		Where(sq.Eq{"creator_id": creatorID}).
		Where(sq.NotEq{col: nil}).
		Where(sq.NotEq{col: ""})
	if !w.From.IsZero() {
		b = b.Where(sq.GtOrEq{"posted_at": w.From})
	}
	if !w.To.IsZero() {
		b = b.Where(sq.LtOrEq{"posted_at": w.To})
	}
	b = b.GroupBy(col).OrderBy("2 DESC", col)
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return b.ToSql()
}

// RankCategories ranks every dimension's raw values by mean interactions.
// All dimensions go out in one batch round trip.
func (s *ContentStore) RankCategories(ctx context.Context, creatorID string, w evidence.Window, limit int) (catalog.RankedSelection, error) {
	dims := catalog.Dimensions()
	batch := &pgx.Batch{}
	for _, d := range dims {
		query, args, err := rankQuery(dimensionColumns[d], creatorID, w, limit)
		if err != nil {
			return nil, fmt.Errorf("build rank query %s: %w", d, err)
		}
		batch.Queue(query, args...)
	}

	br := s.db.SendBatch(ctx, batch)
	defer br.Close()

	out := make(catalog.RankedSelection, len(dims))
	for _, d := range dims {
		rows, err := br.Query()
		if err != nil {
			return nil, fmt.Errorf("rank %s: %w", d, err)
		}
		for rows.Next() {
			var r catalog.Ranked
			var posts int64
			if err := rows.Scan(&r.ID, &r.AvgInteractions, &posts); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan rank %s: %w", d, err)
			}
			r.Posts = int(posts)
			out[d] = append(out[d], r)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate rank %s: %w", d, err)
		}
	}
	return out, nil
}
