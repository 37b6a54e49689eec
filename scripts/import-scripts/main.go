package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"golang.org/x/sync/errgroup"

	"github.com/apresai/reelscript/internal/config"
	"github.com/apresai/reelscript/internal/contract"
	"github.com/apresai/reelscript/internal/store"
	"github.com/apresai/reelscript/internal/style"
)

// record is one line of a script history export.
type record struct {
	ID               string    `json:"id"`
	CreatorID        string    `json:"creator_id"`
	Source           string    `json:"source"`
	Content          string    `json:"content"`
	BaseContent      string    `json:"base_content"`
	AdminRecommended bool      `json:"admin_recommended"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func main() {
	var (
		file      = flag.String("file", "", "JSONL export of creator scripts (one object per line)")
		table     = flag.String("table", "reelscript-scripts", "Destination DynamoDB table")
		region    = flag.String("region", "us-east-1", "AWS region")
		dryRun    = flag.Bool("dry-run", false, "Parse and count but don't write")
		canonical = flag.Bool("canonical", false, "Convert legacy free-text scripts to the technical format before saving")
		train     = flag.Bool("train", false, "Rebuild the style profile of every imported creator afterwards")
		workers   = flag.Int("workers", 8, "Concurrent writes")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *file == "" {
		slog.Error("-file is required")
		os.Exit(2)
	}

	ctx := context.Background()

	cfg, err := config.AWS(ctx, *region)
	if err != nil {
		slog.Error("Failed to load AWS config", "error", err)
		os.Exit(1)
	}
	scripts := store.NewScriptStore(dynamodb.NewFromConfig(cfg), *table)

	f, err := os.Open(*file)
	if err != nil {
		slog.Error("Failed to open export", "error", err)
		os.Exit(1)
	}
	defer f.Close()

	if *dryRun {
		slog.Info("DRY RUN MODE - no writes will be performed")
	}
	slog.Info("Starting import", "file", *file, "table", *table, "region", *region)

	var (
		totalRead      atomic.Int64
		totalWritten   atomic.Int64
		totalSkipped   atomic.Int64
		totalConverted atomic.Int64
	)
	var (
		mu       sync.Mutex
		creators = map[string]bool{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*workers)

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		totalRead.Add(1)

		var rec record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			slog.Warn("Skipping malformed line", "line", line, "error", err)
			totalSkipped.Add(1)
			continue
		}
		entry, ok := toEntry(rec)
		if !ok {
			slog.Warn("Skipping incomplete record", "line", line, "id", rec.ID)
			totalSkipped.Add(1)
			continue
		}
		if *canonical && !contract.IsCanonical(entry.Content) {
			entry.Content, _ = contract.ToCanonical(entry.Content, contract.Options{})
			totalConverted.Add(1)
		}

		mu.Lock()
		creators[entry.CreatorID] = true
		mu.Unlock()

		if *dryRun {
			continue
		}
		ln := line
		g.Go(func() error {
			if err := save(gctx, scripts, entry); err != nil {
				return fmt.Errorf("line %d: %w", ln, err)
			}
			if n := totalWritten.Add(1); n%100 == 0 {
				slog.Info("Progress", "written", n, "read", totalRead.Load())
			}
			return nil
		})
	}
	if err := sc.Err(); err != nil {
		slog.Error("Read failed", "error", err)
		os.Exit(1)
	}
	if err := g.Wait(); err != nil {
		slog.Error("Import failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Import complete",
		"total_read", totalRead.Load(),
		"total_written", totalWritten.Load(),
		"total_skipped", totalSkipped.Load(),
		"total_converted", totalConverted.Load(),
		"creators", len(creators),
		"dry_run", *dryRun,
	)

	if !*train || *dryRun {
		return
	}
	ids := make([]string, 0, len(creators))
	for id := range creators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	svc := style.NewService(scripts, nil, logger)
	for _, id := range ids {
		if _, err := svc.Rebuild(ctx, id); err != nil {
			slog.Error("Profile rebuild failed", "creator_id", id, "error", err)
		}
	}
}

// toEntry validates a record. Unknown sources are stored as planner
// scripts, the lowest-trust class.
func toEntry(r record) (style.ScriptEntry, bool) {
	if r.CreatorID == "" || strings.TrimSpace(r.Content) == "" {
		return style.ScriptEntry{}, false
	}
	src := style.Source(strings.ToLower(r.Source))
	switch src {
	case style.SourceManual, style.SourceAI, style.SourcePlanner:
	default:
		src = style.SourcePlanner
	}
	if r.ID == "" {
		id, err := store.NewID()
		if err != nil {
			return style.ScriptEntry{}, false
		}
		r.ID = id
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now()
	}
	return style.ScriptEntry{
		ID:               r.ID,
		CreatorID:        r.CreatorID,
		Source:           src,
		Content:          r.Content,
		BaseContent:      r.BaseContent,
		AdminRecommended: r.AdminRecommended,
		UpdatedAt:        r.UpdatedAt,
	}, true
}

// save writes the generated base first so the script can link to it.
func save(ctx context.Context, s *store.ScriptStore, e style.ScriptEntry) error {
	if e.BaseContent != "" {
		id, err := store.NewID()
		if err != nil {
			return err
		}
		e.BaseScriptID = id
		if err := s.SaveBase(ctx, e.CreatorID, e.BaseScriptID, e.BaseContent); err != nil {
			return err
		}
	}
	return s.SaveScript(ctx, e)
}
