package progress

import "time"

// Stage identifies which pipeline stage is active.
type Stage string

const (
	StageContext  Stage = "context"
	StageScope    Stage = "scope"
	StageModel    Stage = "model"
	StageContract Stage = "contract"
	StageComplete Stage = "complete"
)

// Event carries progress information from the pipeline to the renderer.
type Event struct {
	Stage   Stage
	Message string
	Percent float64 // 0.0–1.0
	Elapsed time.Duration
	Error   error
	// Title is the draft title, set on StageComplete.
	Title string
	// SceneCount and Quality summarize the final script, set on StageComplete.
	SceneCount int
	Quality    float64
	// Degraded lists the recoveries that happened (fallback draft, reverted
	// revision...), set on StageComplete.
	Degraded []string
}

// Callback is the function signature for progress event handlers.
type Callback func(Event)

// NopCallback is a no-op progress callback for tests and silent mode.
func NopCallback(Event) {}

// NewEvent creates an Event with common fields populated.
func NewEvent(stage Stage, msg string, pct float64, start time.Time) Event {
	return Event{
		Stage:   stage,
		Message: msg,
		Percent: pct,
		Elapsed: time.Since(start),
	}
}
