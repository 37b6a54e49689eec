// Package telemetry records per-call diagnostics and rolling stage latencies.
package telemetry

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Stage names a timed part of the pipeline.
type Stage string

const (
	StageContextTotal Stage = "context_total"
	StageRanking      Stage = "ranking"
	StageEvidence     Stage = "evidence"
	StageStyleLoad    Stage = "style_load"
	StageModelCall    Stage = "model_call"
)

// Stages returns the tracked stages in report order.
func Stages() []Stage {
	return []Stage{StageContextTotal, StageRanking, StageEvidence, StageStyleLoad, StageModelCall}
}

// DefaultWindow is the number of samples kept per stage.
const DefaultWindow = 200

// StageStats summarizes the samples of one stage in milliseconds.
type StageStats struct {
	Count int     `json:"count"`
	P50   float64 `json:"p50_ms"`
	P95   float64 `json:"p95_ms"`
	Avg   float64 `json:"avg_ms"`
	Last  float64 `json:"last_ms"`
}

// Snapshot is the per-stage summary at a point in time.
type Snapshot map[Stage]StageStats

type ring struct {
	samples []float64
	next    int
	full    bool
	last    float64
}

func (r *ring) add(v float64) {
	r.samples[r.next] = v
	r.next = (r.next + 1) % len(r.samples)
	if r.next == 0 {
		r.full = true
	}
	r.last = v
}

func (r *ring) values() []float64 {
	if r.full {
		return append([]float64(nil), r.samples...)
	}
	return append([]float64(nil), r.samples[:r.next]...)
}

// Tracker keeps a bounded window of latency samples per stage. It is safe
// for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	window int
	stages map[Stage]*ring
}

// NewTracker creates a tracker keeping window samples per stage.
func NewTracker(window int) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{window: window, stages: make(map[Stage]*ring)}
}

// Observe records one duration for stage.
func (t *Tracker) Observe(stage Stage, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.stages[stage]
	if !ok {
		r = &ring{samples: make([]float64, t.window)}
		t.stages[stage] = r
	}
	r.add(float64(d.Microseconds()) / 1000)
}

// Time returns a func that records the elapsed time for stage when called.
func (t *Tracker) Time(stage Stage) func() {
	start := time.Now()
	return func() { t.Observe(stage, time.Since(start)) }
}

// Snapshot returns the current summary of every stage with samples.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(Snapshot, len(t.stages))
	for stage, r := range t.stages {
		vals := r.values()
		if len(vals) == 0 {
			continue
		}
		sort.Float64s(vals)
		var sum float64
		for _, v := range vals {
			sum += v
		}
		out[stage] = StageStats{
			Count: len(vals),
			P50:   round2(percentile(vals, 0.50)),
			P95:   round2(percentile(vals, 0.95)),
			Avg:   round2(sum / float64(len(vals))),
			Last:  round2(r.last),
		}
	}
	return out
}

// percentile uses nearest-rank on sorted values.
func percentile(sorted []float64, p float64) float64 {
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	rank = max(0, min(rank, len(sorted)-1))
	return sorted[rank]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
