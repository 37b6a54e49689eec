package store

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/apresai/reelscript/internal/catalog"
	"github.com/apresai/reelscript/internal/evidence"
)

func TestTopContentQuery(t *testing.T) {
	s := &ContentStore{catalog: catalog.Default()}
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 6, 0)

	query, args, err := s.topContentQuery(evidence.Query{
		CreatorID: "c1",
		Window:    evidence.Window{From: from, To: to},
		Filter:    catalog.Selection{catalog.Context: "career_work", catalog.Format: "reel"},
		Limit:     50,
	})
	if err != nil {
		t.Fatalf("topContentQuery: %v", err)
	}
	for _, frag := range []string{
		"FROM content_metrics",
		"creator_id = $1",
		"posted_at >= $2",
		"posted_at <= $3",
		"lower(replace(replace(coalesce(context, ''), '_', ' '), '-', ' ')) = ANY($4)",
		"lower(replace(replace(coalesce(format, ''), '_', ' '), '-', ' ')) = ANY($5)",
		"ORDER BY interactions DESC, posted_at DESC",
		"LIMIT 50",
	} {
		if !strings.Contains(query, frag) {
			t.Errorf("query missing %q:\n%s", frag, query)
		}
	}
	if len(args) != 5 {
		t.Fatalf("args = %v", args)
	}
	if args[0] != "c1" || args[1] != from || args[2] != to {
		t.Errorf("args = %v", args)
	}
	if want := catalog.Default().Variants(catalog.Context, "career_work"); !reflect.DeepEqual(args[3], want) {
		t.Errorf("context variants = %v, want %v", args[3], want)
	}
}

func TestTopContentQueryUnfiltered(t *testing.T) {
	s := &ContentStore{catalog: catalog.Default()}
	query, args, err := s.topContentQuery(evidence.Query{CreatorID: "c1"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(query, "ANY") || strings.Contains(query, "LIMIT") || strings.Contains(query, "posted_at >=") {
		t.Errorf("unexpected constraint:\n%s", query)
	}
	if len(args) != 1 {
		t.Errorf("args = %v", args)
	}
}

func TestRankQuery(t *testing.T) {
	w := evidence.Window{From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)}
	query, args, err := rankQuery("tone", "c1", w, 15)
	if err != nil {
		t.Fatal(err)
	}
	for _, frag := range []string{
		"SELECT tone, AVG(interactions)::float8, COUNT(*)",
		"tone IS NOT NULL",
		"GROUP BY tone",
		"ORDER BY 2 DESC, tone",
		"LIMIT 15",
	} {
		if !strings.Contains(query, frag) {
			t.Errorf("query missing %q:\n%s", frag, query)
		}
	}
	if len(args) != 4 {
		t.Errorf("args = %v", args)
	}
}

func TestDimensionColumnsCoverCatalog(t *testing.T) {
	for _, d := range catalog.Dimensions() {
		if dimensionColumns[d] == "" {
			t.Errorf("no column for %s", d)
		}
	}
}
