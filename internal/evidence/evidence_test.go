package evidence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apresai/reelscript/internal/catalog"
	"github.com/apresai/reelscript/internal/intent"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStore struct {
	mu         sync.Mutex
	captions   []Caption
	ranking    catalog.RankedSelection
	rankErr    error
	rankCalls  atomic.Int32
	topCalls   atomic.Int32
	rankDelay  time.Duration
	lastLimits []int
	// filterErr fails every query that carries a category filter.
	filterErr error
}

func (f *fakeStore) TopContent(ctx context.Context, q Query) ([]Caption, error) {
	f.topCalls.Add(1)
	f.mu.Lock()
	f.lastLimits = append(f.lastLimits, q.Limit)
	f.mu.Unlock()
	if f.filterErr != nil && len(q.Filter) > 0 {
		return nil, f.filterErr
	}

	cat := catalog.Default()
	var out []Caption
	for _, c := range f.captions {
		ok := true
		for d, v := range q.Filter {
			if !cat.Equivalent(d, c.Categories.Get(d), v) {
				ok = false
			}
		}
		if ok {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Interactions > out[j].Interactions })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *fakeStore) RankCategories(ctx context.Context, creatorID string, w Window, limit int) (catalog.RankedSelection, error) {
	f.rankCalls.Add(1)
	if f.rankDelay > 0 {
		time.Sleep(f.rankDelay)
	}
	return f.ranking, f.rankErr
}

type ctxKey struct{}

// ctxHandler counts records whose context carries ctxKey, the way the trace
// handler reads span ids from the record context.
type ctxHandler struct {
	withCtx *atomic.Int32
	total   *atomic.Int32
}

func newCtxHandler() ctxHandler {
	return ctxHandler{withCtx: new(atomic.Int32), total: new(atomic.Int32)}
}

func (h ctxHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h ctxHandler) Handle(ctx context.Context, _ slog.Record) error {
	h.total.Add(1)
	if ctx.Value(ctxKey{}) != nil {
		h.withCtx.Add(1)
	}
	return nil
}

func (h ctxHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h ctxHandler) WithGroup(string) slog.Handler      { return h }

func caption(id string, interactions int64, sel catalog.Selection) Caption {
	return Caption{ID: id, Text: "caption " + id, Interactions: interactions, Categories: sel}
}

func window() Window {
	return LookbackWindow(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC), 0)
}

func TestResolveFullModeForcesFormat(t *testing.T) {
	store := &fakeStore{}
	r := NewResolver(store, catalog.Default(), discardLogger())
	explicit := catalog.Selection{
		catalog.Proposal:   "tutorial",
		catalog.Context:    "finance",
		catalog.Format:     "carousel",
		catalog.Tone:       "inspirational",
		catalog.References: "trend",
	}
	res := r.Resolve(context.Background(), ResolveInput{Mode: intent.ModeFull, Explicit: explicit, Window: window()})
	if res.Final.Get(catalog.Format) != catalog.ShortVideoFormat {
		t.Errorf("format = %q", res.Final.Get(catalog.Format))
	}
	if res.Sources[catalog.Format] != SourceForced {
		t.Errorf("format source = %q", res.Sources[catalog.Format])
	}
	if res.Final.Get(catalog.Tone) != "inspirational" || res.Final.Get(catalog.References) != "trend" {
		t.Errorf("explicit values changed: %v", res.Final)
	}
	if store.rankCalls.Load() != 0 {
		t.Error("full mode should not query the ranking")
	}
}

func TestResolvePartialUsesHumorThenRankingThenDefaults(t *testing.T) {
	store := &fakeStore{ranking: catalog.RankedSelection{
		catalog.Context: {{ID: "Finanças", AvgInteractions: 300, Posts: 2}, {ID: "travel", AvgInteractions: 100, Posts: 4}},
		catalog.Tone:    {{ID: "educational", AvgInteractions: 500, Posts: 1}},
	}}
	r := NewResolver(store, catalog.Default(), discardLogger())
	res := r.Resolve(context.Background(), ResolveInput{
		CreatorID: "c1",
		Mode:      intent.ModePartial,
		Narrative: intent.Narrative{WantsHumor: true},
		Explicit:  catalog.Selection{catalog.Format: "carousel"},
		Window:    window(),
	})
	want := map[catalog.Dimension][2]string{
		catalog.Tone:       {"funny", SourceHumorDefault},
		catalog.Proposal:   {"humor", SourceHumorDefault},
		catalog.Context:    {"finance", SourceRanking},
		catalog.References: {"personal_experience", SourceDefault},
		catalog.Format:     {"reel", SourceForced},
	}
	for d, w := range want {
		if res.Final.Get(d) != w[0] || res.Sources[d] != w[1] {
			t.Errorf("%s = %q (%s), want %q (%s)", d, res.Final.Get(d), res.Sources[d], w[0], w[1])
		}
	}
}

func TestResolveRankingFailureDegrades(t *testing.T) {
	store := &fakeStore{rankErr: errors.New("db down")}
	r := NewResolver(store, catalog.Default(), discardLogger())
	res := r.Resolve(context.Background(), ResolveInput{CreatorID: "c1", Mode: intent.ModeOpen, Window: window()})
	if res.RankingError == "" {
		t.Error("ranking error not recorded")
	}
	for _, d := range catalog.Dimensions() {
		if !res.Final.Has(d) {
			t.Errorf("dimension %s unset", d)
		}
	}
}

func TestRankingCoalesced(t *testing.T) {
	store := &fakeStore{rankDelay: 40 * time.Millisecond, ranking: catalog.RankedSelection{
		catalog.Tone: {{ID: "funny", AvgInteractions: 10, Posts: 1}},
	}}
	r := NewResolver(store, catalog.Default(), discardLogger())
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Ranking(context.Background(), "c1", window()); err != nil {
				t.Errorf("Ranking: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := store.rankCalls.Load(); got != 1 {
		t.Errorf("ranking computed %d times, want 1", got)
	}
}

func TestStrategiesDeduplicated(t *testing.T) {
	resolved := catalog.Selection{
		catalog.Proposal: "tips", catalog.Context: "finance", catalog.Format: "reel",
		catalog.Tone: "casual", catalog.References: "trend",
	}
	explicit := catalog.Selection{catalog.Proposal: "tips", catalog.Context: "finance"}
	var names []string
	for _, s := range Strategies(resolved, explicit) {
		names = append(names, s.Name)
	}
	want := []string{
		"proposal+context+format+tone+references",
		"proposal+context+format+tone",
		"proposal+context+tone",
		"proposal+context",
		"none",
	}
	if fmt.Sprint(names) != fmt.Sprint(want) {
		t.Errorf("strategies = %v, want %v", names, want)
	}

	names = names[:0]
	for _, s := range Strategies(resolved, catalog.Selection{catalog.Context: "finance"}) {
		names = append(names, s.Name)
	}
	if names[4] != "context" {
		t.Errorf("explicit level = %q, want context", names[4])
	}
}

func mixedHistory() []Caption {
	full := catalog.Selection{
		catalog.Proposal: "tips", catalog.Context: "finance", catalog.Format: "reel",
		catalog.Tone: "casual", catalog.References: "trend",
	}
	var out []Caption
	add := func(n int, sel catalog.Selection) {
		for i := 0; i < n; i++ {
			out = append(out, caption(fmt.Sprintf("%d", len(out)), int64(1000-len(out)), sel))
		}
	}
	add(2, full)
	pc := full.Only(catalog.Proposal, catalog.Context, catalog.Format, catalog.Tone)
	pc[catalog.References] = "meme"
	add(1, pc)
	pct := full.Only(catalog.Proposal, catalog.Context)
	pct[catalog.Tone] = "Casual"
	pct[catalog.Format] = "carousel"
	add(2, pct)
	pcOnly := catalog.Selection{catalog.Proposal: "Dicas", catalog.Context: "finance"}
	add(3, pcOnly)
	add(5, catalog.Selection{catalog.Proposal: "review"})
	return out
}

func TestRetrieveRelaxesUntilMinimum(t *testing.T) {
	store := &fakeStore{captions: mixedHistory()}
	r := NewRetriever(store, catalog.Default(), 0, discardLogger())
	resolved := catalog.Selection{
		catalog.Proposal: "tips", catalog.Context: "finance", catalog.Format: "reel",
		catalog.Tone: "casual", catalog.References: "trend",
	}
	res, err := r.Retrieve(context.Background(), Request{CreatorID: "c1", Window: window(), Resolved: resolved})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if res.Strategy != "proposal+context" || res.Level != 3 || !res.UsedFallbackRules {
		t.Errorf("got strategy %q level %d fallback %v", res.Strategy, res.Level, res.UsedFallbackRules)
	}
	if len(res.Captions) != 8 {
		t.Errorf("captions = %d, want 8", len(res.Captions))
	}
	if res.Source != FromPool || res.PoolTruncated {
		t.Errorf("source = %s truncated = %v", res.Source, res.PoolTruncated)
	}
}

func TestRetrieveMonotonicWidening(t *testing.T) {
	store := &fakeStore{captions: mixedHistory()}
	r := NewRetriever(store, catalog.Default(), 0, discardLogger())
	pool, _ := store.TopContent(context.Background(), Query{Limit: 240})
	resolved := catalog.Selection{
		catalog.Proposal: "tips", catalog.Context: "finance", catalog.Format: "reel",
		catalog.Tone: "casual", catalog.References: "trend",
	}
	for _, explicit := range []catalog.Selection{nil, {catalog.Context: "finance"}, {catalog.Tone: "casual"}} {
		prev := -1
		for _, s := range Strategies(resolved, explicit) {
			n := len(r.filter(pool, s.Filter))
			if n < prev {
				t.Errorf("strategy %s matched %d < stricter %d", s.Name, n, prev)
			}
			prev = n
		}
	}
}

func TestRetrieveSparseHistory(t *testing.T) {
	store := &fakeStore{captions: []Caption{caption("a", 5, catalog.Selection{catalog.Proposal: "tips"})}}
	r := NewRetriever(store, catalog.Default(), 0, discardLogger())
	res, err := r.Retrieve(context.Background(), Request{CreatorID: "c1", Window: window(), Resolved: catalog.Selection{catalog.Proposal: "review"}})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if res.Strategy != "none" || len(res.Captions) != 1 {
		t.Errorf("got %q with %d captions", res.Strategy, len(res.Captions))
	}
}

func TestRetrieveDirectSecondPass(t *testing.T) {
	var history []Caption
	for i := 0; i < 10; i++ {
		history = append(history, caption(fmt.Sprintf("hot%d", i), int64(1000+i), catalog.Selection{catalog.Proposal: "review"}))
	}
	for i := 0; i < 7; i++ {
		history = append(history, caption(fmt.Sprintf("cold%d", i), int64(i), catalog.Selection{catalog.Proposal: "tips", catalog.Context: "finance"}))
	}
	store := &fakeStore{captions: history}
	r := NewRetriever(store, catalog.Default(), 10, discardLogger())
	resolved := catalog.Selection{catalog.Proposal: "tips", catalog.Context: "finance"}
	res, err := r.Retrieve(context.Background(), Request{CreatorID: "c1", Window: window(), Resolved: resolved})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !res.PoolTruncated || res.Source != FromDirect {
		t.Fatalf("expected direct pass, got %+v", res)
	}
	if res.Strategy != "proposal+context" || len(res.Captions) != 7 {
		t.Errorf("strategy %q captions %d", res.Strategy, len(res.Captions))
	}
}

func TestRetrieveCached(t *testing.T) {
	store := &fakeStore{captions: mixedHistory()}
	r := NewRetriever(store, catalog.Default(), 0, discardLogger())
	req := Request{CreatorID: "c1", Window: window(), Resolved: catalog.Selection{catalog.Proposal: "tips"}}
	for i := 0; i < 3; i++ {
		if _, err := r.Retrieve(context.Background(), req); err != nil {
			t.Fatal(err)
		}
	}
	if got := store.topCalls.Load(); got != 1 {
		t.Errorf("store queried %d times, want 1", got)
	}
	if r.CacheStats().Hits != 2 {
		t.Errorf("hits = %d", r.CacheStats().Hits)
	}
}

func TestWarningsCarryRequestContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), ctxKey{}, "span")

	t.Run("ranking", func(t *testing.T) {
		h := newCtxHandler()
		store := &fakeStore{rankErr: errors.New("db down")}
		r := NewResolver(store, catalog.Default(), slog.New(h))
		r.Resolve(ctx, ResolveInput{CreatorID: "c1", Mode: intent.ModeOpen, Window: window()})
		if h.total.Load() == 0 {
			t.Fatal("no warning logged")
		}
		if h.withCtx.Load() != h.total.Load() {
			t.Errorf("%d of %d records lost the request context", h.total.Load()-h.withCtx.Load(), h.total.Load())
		}
	})

	t.Run("direct query", func(t *testing.T) {
		var history []Caption
		for i := 0; i < 10; i++ {
			history = append(history, caption(fmt.Sprintf("hot%d", i), int64(1000+i), catalog.Selection{catalog.Proposal: "review"}))
		}
		h := newCtxHandler()
		store := &fakeStore{captions: history, filterErr: errors.New("timeout")}
		r := NewRetriever(store, catalog.Default(), 10, slog.New(h))
		resolved := catalog.Selection{catalog.Proposal: "tips", catalog.Context: "finance"}
		if _, err := r.Retrieve(ctx, Request{CreatorID: "c1", Window: window(), Resolved: resolved}); err != nil {
			t.Fatalf("Retrieve: %v", err)
		}
		if h.total.Load() == 0 {
			t.Fatal("no warning logged")
		}
		if h.withCtx.Load() != h.total.Load() {
			t.Errorf("%d of %d records lost the request context", h.total.Load()-h.withCtx.Load(), h.total.Load())
		}
	})
}
