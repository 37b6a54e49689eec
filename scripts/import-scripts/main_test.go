package main

import (
	"testing"
	"time"

	"github.com/apresai/reelscript/internal/style"
)

func TestToEntry(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		rec    record
		ok     bool
		source style.Source
	}{
		{"manual", record{ID: "a", CreatorID: "c", Source: "MANUAL", Content: "x", UpdatedAt: at}, true, style.SourceManual},
		{"unknown source", record{ID: "b", CreatorID: "c", Source: "legacy", Content: "x", UpdatedAt: at}, true, style.SourcePlanner},
		{"missing creator", record{ID: "c", Content: "x"}, false, ""},
		{"blank content", record{ID: "d", CreatorID: "c", Content: "  "}, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := toEntry(tt.rec)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && (e.Source != tt.source || !e.UpdatedAt.Equal(at)) {
				t.Errorf("entry = %+v", e)
			}
		})
	}

	e, ok := toEntry(record{CreatorID: "c", Content: "x"})
	if !ok || e.ID == "" || e.UpdatedAt.IsZero() {
		t.Errorf("defaults not filled: %+v", e)
	}
}
