// Package evidence resolves the final category selection for a request
// from the creator's historical performance and retrieves supporting
// captions, relaxing category constraints when history is sparse.
package evidence

import (
	"context"
	"fmt"
	"time"

	"github.com/apresai/reelscript/internal/catalog"
)

// DefaultLookbackDays is the history window used when none is given.
const DefaultLookbackDays = 180

// Caption is one historical content item.
type Caption struct {
	ID           string
	Text         string
	Interactions int64
	PostedAt     time.Time
	Categories   catalog.Selection
}

// Window is a closed date range of history.
type Window struct {
	From time.Time
	To   time.Time
}

// LookbackWindow returns the window ending at now and spanning days.
func LookbackWindow(now time.Time, days int) Window {
	if days <= 0 {
		days = DefaultLookbackDays
	}
	return Window{From: now.AddDate(0, 0, -days), To: now}
}

// Key renders the window at day granularity so requests on the same day
// share cache entries.
func (w Window) Key() string {
	return fmt.Sprintf("%s..%s", w.From.UTC().Format("2006-01-02"), w.To.UTC().Format("2006-01-02"))
}

// Query selects content for a creator. An empty Filter means no category
// constraint. Results are ordered by interactions, most engaged first.
type Query struct {
	CreatorID string
	Window    Window
	Filter    catalog.Selection
	Limit     int
}

// ContentStore is the read side of the creator's historical content
// metrics.
type ContentStore interface {
	TopContent(ctx context.Context, q Query) ([]Caption, error)
	// RankCategories returns, per dimension, category values ordered by mean
	// interactions, at most limit each.
	RankCategories(ctx context.Context, creatorID string, w Window, limit int) (catalog.RankedSelection, error)
}
