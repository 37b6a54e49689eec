package telemetry

import (
	"strings"

	"github.com/apresai/reelscript/internal/cache"
	"github.com/apresai/reelscript/internal/catalog"
	"github.com/apresai/reelscript/internal/contract"
	"github.com/apresai/reelscript/internal/sanitize"
	"github.com/apresai/reelscript/internal/textfeat"
)

// Operation is the kind of call being recorded.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationAdjust Operation = "adjust"
)

// Diagnostics describes one generation or adjustment call.
type Diagnostics struct {
	PromptLength   int  `json:"prompt_length"`
	TitleLength    int  `json:"title_length"`
	ContentLength  int  `json:"content_length"`
	ParagraphCount int  `json:"paragraph_count"`
	SceneCount     int  `json:"scene_count"`
	HasCTA         bool `json:"has_cta"`

	PromptMode         string            `json:"prompt_mode,omitempty"`
	ExplicitCategories catalog.Selection `json:"explicit_categories,omitempty"`
	FinalCategories    catalog.Selection `json:"final_categories,omitempty"`
	CategorySources    map[string]string `json:"category_sources,omitempty"`
	CategoryCompliance float64           `json:"category_compliance"`

	EvidenceCount     int    `json:"evidence_count"`
	EvidenceStrategy  string `json:"evidence_strategy,omitempty"`
	EvidenceLevel     int    `json:"evidence_level"`
	UsedFallbackRules bool   `json:"used_fallback_rules"`
	RankingFailed     bool   `json:"ranking_failed,omitempty"`

	DNASampleSize        int      `json:"dna_sample_size"`
	DNAEnoughEvidence    bool     `json:"dna_enough_evidence"`
	StyleSampleSize      int      `json:"style_sample_size"`
	StyleEnoughEvidence  bool     `json:"style_enough_evidence"`
	StyleSimilarity      *float64 `json:"style_similarity"`
	StyleProfileRebuilt  bool     `json:"style_profile_rebuilt,omitempty"`
	StyleRefreshStarted  bool     `json:"style_refresh_started,omitempty"`
	StyleTrainingEnabled bool     `json:"style_training_enabled"`

	Model            string `json:"model,omitempty"`
	ModelTier        string `json:"model_tier,omitempty"`
	TierFallback     bool   `json:"tier_fallback,omitempty"`
	ModelUnavailable bool   `json:"model_unavailable,omitempty"`

	ScopeMode          string `json:"scope_mode,omitempty"`
	ScopeTarget        string `json:"scope_target,omitempty"`
	ScopeIndex         int    `json:"scope_index,omitempty"`
	IsPartialEdit      bool   `json:"is_partial_edit,omitempty"`
	ContentLengthDelta int    `json:"content_length_delta,omitempty"`
	RevisionRejected   bool   `json:"revision_rejected,omitempty"`
	LegacyConverted    bool   `json:"legacy_converted,omitempty"`

	Quality           contract.Quality `json:"quality"`
	InitialQuality    contract.Quality `json:"initial_quality"`
	Polished          bool             `json:"polished"`
	Regenerated       bool             `json:"regenerated"`
	SynthesizedScenes int              `json:"synthesized_scenes"`
	SynthesizedFields int              `json:"synthesized_fields"`

	Sanitized     sanitize.Report `json:"sanitized"`
	RankingCache  cache.Stats     `json:"ranking_cache"`
	EvidenceCache cache.Stats     `json:"evidence_cache"`
}

// Describe fills the content-derived fields from a final script.
func (d *Diagnostics) Describe(prompt, title, content string) {
	d.PromptLength = len([]rune(prompt))
	d.TitleLength = len([]rune(title))
	d.ContentLength = len([]rune(content))
	d.ParagraphCount = len(textfeat.Paragraphs(content))
	if scenes, ok := contract.ParseCanonical(content); ok {
		d.SceneCount = len(scenes)
		d.HasCTA = len(scenes) > 0 && textfeat.HasCTA(scenes[len(scenes)-1].Speech+" "+scenes[len(scenes)-1].OnScreen)
	} else {
		d.SceneCount = len(contract.Parse(content))
		d.HasCTA = textfeat.HasCTA(content)
	}
}

// ApplyContract copies the enforcement outcome.
func (d *Diagnostics) ApplyContract(r contract.Result) {
	d.Quality = r.Quality
	d.InitialQuality = r.InitialQuality
	d.Polished = r.Polished
	d.Regenerated = r.Regenerated
	d.SynthesizedScenes = r.SynthesizedScenes
	d.SynthesizedFields = r.SynthesizedFields
}

// CategoryCompliance is the share of explicit dimensions whose final value
// matches the explicit one. No explicit dimensions means full compliance.
func CategoryCompliance(explicit, final catalog.Selection) float64 {
	if len(explicit) == 0 {
		return 1
	}
	hit := 0
	for d, v := range explicit {
		if strings.EqualFold(final.Get(d), v) {
			hit++
		}
	}
	return round2(float64(hit) / float64(len(explicit)))
}
