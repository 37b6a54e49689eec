// Package style trains, persists and applies a creator's writing style
// profile, built from the creator's own past scripts.
package style

import (
	"errors"
	"fmt"
	"time"

	"github.com/apresai/reelscript/internal/textfeat"
)

// ProfileVersion is bumped whenever the signal layout changes; stored
// profiles with another version are rebuilt.
const ProfileVersion = 3

// ErrProfileCorrupted marks a stored profile that fails the shape check.
var ErrProfileCorrupted = errors.New("style profile corrupted")

// Source tags where a script entry came from.
type Source string

const (
	SourceManual  Source = "manual"
	SourceAI      Source = "ai"
	SourcePlanner Source = "planner"
)

// ScriptEntry is one historical script of a creator.
type ScriptEntry struct {
	ID               string
	CreatorID        string
	Source           Source
	Content          string
	BaseScriptID     string
	BaseContent      string
	AdminRecommended bool
	UpdatedAt        time.Time
}

// Signals are the weighted aggregates of a creator's scripts.
type Signals struct {
	ParagraphCount  float64          `json:"paragraph_count" dynamodbav:"paragraph_count"`
	SentenceLength  float64          `json:"sentence_length" dynamodbav:"sentence_length"`
	EmojiDensity    float64          `json:"emoji_density" dynamodbav:"emoji_density"`
	QuestionRate    float64          `json:"question_rate" dynamodbav:"question_rate"`
	ExclamationRate float64          `json:"exclamation_rate" dynamodbav:"exclamation_rate"`
	Cadence         textfeat.Cadence `json:"cadence" dynamodbav:"cadence"`
	Hooks           []textfeat.Count `json:"hooks" dynamodbav:"hooks"`
	CTAs            []textfeat.Count `json:"ctas" dynamodbav:"ctas"`
	HumorMarkers    []textfeat.Count `json:"humor_markers" dynamodbav:"humor_markers"`
	Vocabulary      []textfeat.Count `json:"vocabulary" dynamodbav:"vocabulary"`
}

// SourceMix counts kept entries per source.
type SourceMix struct {
	Manual  int `json:"manual" dynamodbav:"manual"`
	AI      int `json:"ai" dynamodbav:"ai"`
	Planner int `json:"planner" dynamodbav:"planner"`
}

// Exclusions counts why entries were skipped. Considered always equals the
// sum of the other fields.
type Exclusions struct {
	Considered       int `json:"considered" dynamodbav:"considered"`
	AdminRecommended int `json:"admin_recommended" dynamodbav:"admin_recommended"`
	Empty            int `json:"empty" dynamodbav:"empty"`
	TooShort         int `json:"too_short" dynamodbav:"too_short"`
	Duplicate        int `json:"duplicate" dynamodbav:"duplicate"`
	OverCap          int `json:"over_cap" dynamodbav:"over_cap"`
	Kept             int `json:"kept" dynamodbav:"kept"`
}

// Example is a sanitized snippet of a kept script.
type Example struct {
	ScriptID string  `json:"script_id" dynamodbav:"script_id"`
	Source   Source  `json:"source" dynamodbav:"source"`
	Weight   float64 `json:"weight" dynamodbav:"weight"`
	Snippet  string  `json:"snippet" dynamodbav:"snippet"`
}

// Profile is the persisted style profile of a creator.
type Profile struct {
	CreatorID      string     `json:"creator_id" dynamodbav:"creator_id"`
	ProfileVersion int        `json:"profile_version" dynamodbav:"profile_version"`
	SampleSize     int        `json:"sample_size" dynamodbav:"sample_size"`
	LastScriptAt   time.Time  `json:"last_script_at" dynamodbav:"last_script_at"`
	BuiltAt        time.Time  `json:"built_at" dynamodbav:"built_at"`
	SourceMix      SourceMix  `json:"source_mix" dynamodbav:"source_mix"`
	Signals        *Signals   `json:"signals" dynamodbav:"signals"`
	Examples       []Example  `json:"examples" dynamodbav:"examples"`
	Exclusions     Exclusions `json:"exclusions" dynamodbav:"exclusions"`
}

// Validate reports ErrProfileCorrupted for a profile with the wrong
// version, no signal block or a negative sample size.
func (p *Profile) Validate() error {
	switch {
	case p.ProfileVersion != ProfileVersion:
		return fmt.Errorf("%w: version %d, want %d", ErrProfileCorrupted, p.ProfileVersion, ProfileVersion)
	case p.Signals == nil:
		return fmt.Errorf("%w: missing signals", ErrProfileCorrupted)
	case p.SampleSize < 0:
		return fmt.Errorf("%w: negative sample size %d", ErrProfileCorrupted, p.SampleSize)
	}
	return nil
}
