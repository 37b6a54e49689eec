//go:build integration

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/apresai/reelscript/internal/catalog"
	"github.com/apresai/reelscript/internal/evidence"
)

func setupContentStore(t *testing.T) *ContentStore {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := NewContentStore(ctx, dbURL, catalog.Default())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS content_metrics (
			id           text PRIMARY KEY,
			creator_id   text NOT NULL,
			caption      text NOT NULL,
			interactions bigint NOT NULL DEFAULT 0,
			posted_at    timestamptz NOT NULL,
			proposal     text,
			context      text,
			format       text,
			tone         text,
			reference    text
		)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.pool.Exec(context.Background(), `DELETE FROM content_metrics WHERE creator_id = 'integration-creator'`)
		s.Close()
	})
	return s
}

func TestIntegration_TopContentAndRanking(t *testing.T) {
	s := setupContentStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rows := []struct {
		id           string
		interactions int64
		ctxValue     string
		tone         string
	}{
		{"it-1", 900, "Carreira/Trabalho", "humor"},
		{"it-2", 300, "career_work", "inspirational"},
		{"it-3", 100, "finance", "humor"},
	}
	for _, r := range rows {
		if _, err := s.pool.Exec(ctx, `
			INSERT INTO content_metrics (id, creator_id, caption, interactions, posted_at, context, format, tone)
			VALUES ($1, 'integration-creator', $2, $3, $4, $5, 'reel', $6)
			ON CONFLICT (id) DO UPDATE SET interactions = EXCLUDED.interactions`,
			r.id, "legenda "+r.id, r.interactions, now.Add(-24*time.Hour), r.ctxValue, r.tone); err != nil {
			t.Fatalf("insert %s: %v", r.id, err)
		}
	}

	w := evidence.LookbackWindow(now, 30)
	got, err := s.TopContent(ctx, evidence.Query{
		CreatorID: "integration-creator",
		Window:    w,
		Filter:    catalog.Selection{catalog.Context: "career_work"},
		Limit:     10,
	})
	if err != nil {
		t.Fatalf("TopContent: %v", err)
	}
	if len(got) != 2 || got[0].ID != "it-1" {
		t.Fatalf("got %+v", got)
	}

	ranked, err := s.RankCategories(ctx, "integration-creator", w, 10)
	if err != nil {
		t.Fatalf("RankCategories: %v", err)
	}
	merged := catalog.Default().MergeRanked(ranked, 5)
	if merged.Top(catalog.Context) != "career_work" {
		t.Errorf("top context = %q", merged.Top(catalog.Context))
	}
}
