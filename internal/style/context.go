package style

import (
	"fmt"
	"math"
	"strings"

	"github.com/apresai/reelscript/internal/dna"
	"github.com/apresai/reelscript/internal/textfeat"
)

// MinSample is the script count needed before the profile is trusted.
const MinSample = 6

const (
	signalsListLimit = 5
	contextExamples  = 3

	sentenceWeight = 0.35
	emojiWeight    = 0.20
	ctaWeight      = 0.25
	hookWeight     = 0.20

	sentenceBand = 12.0
	emojiBand    = 0.12
)

// SignalsUsed is the trimmed view of a profile handed to prompts and
// diagnostics.
type SignalsUsed struct {
	SentenceLength float64  `json:"sentence_length"`
	EmojiDensity   float64  `json:"emoji_density"`
	ParagraphCount float64  `json:"paragraph_count"`
	QuestionRate   float64  `json:"question_rate"`
	Hooks          []string `json:"hooks,omitempty"`
	CTAs           []string `json:"ctas,omitempty"`
	HumorMarkers   []string `json:"humor_markers,omitempty"`
	Vocabulary     []string `json:"vocabulary,omitempty"`
}

// Context is a style profile converted for prompting and scoring. The zero
// value means no profile exists.
type Context struct {
	Available         bool        `json:"available"`
	HasEnoughEvidence bool        `json:"has_enough_evidence"`
	SampleSize        int         `json:"sample_size"`
	ProfileVersion    int         `json:"profile_version"`
	Guidelines        []string    `json:"guidelines,omitempty"`
	SignalsUsed       SignalsUsed `json:"signals_used"`
	Examples          []string    `json:"examples,omitempty"`
}

// BuildContext converts a profile. A nil profile yields an unavailable
// context.
func BuildContext(p *Profile) Context {
	if p == nil || p.Signals == nil {
		return Context{}
	}
	s := p.Signals
	c := Context{
		Available:         true,
		HasEnoughEvidence: p.SampleSize >= MinSample,
		SampleSize:        p.SampleSize,
		ProfileVersion:    p.ProfileVersion,
		SignalsUsed: SignalsUsed{
			SentenceLength: s.SentenceLength,
			EmojiDensity:   s.EmojiDensity,
			ParagraphCount: s.ParagraphCount,
			QuestionRate:   s.QuestionRate,
			Hooks:          trimValues(s.Hooks),
			CTAs:           trimValues(s.CTAs),
			HumorMarkers:   trimValues(s.HumorMarkers),
			Vocabulary:     trimValues(s.Vocabulary),
		},
	}
	for i := 0; i < len(p.Examples) && i < contextExamples; i++ {
		c.Examples = append(c.Examples, p.Examples[i].Snippet)
	}
	c.Guidelines = guidelines(c)
	return c
}

func trimValues(cs []textfeat.Count) []string {
	if len(cs) > signalsListLimit {
		cs = cs[:signalsListLimit]
	}
	return textfeat.Values(cs)
}

func guidelines(c Context) []string {
	if !c.HasEnoughEvidence {
		return []string{"Perfil de estilo ainda em formação: priorize clareza e frases faladas."}
	}
	s := c.SignalsUsed
	out := []string{dna.SentenceBand(s.SentenceLength), dna.EmojiBand(s.EmojiDensity)}
	if s.ParagraphCount > 0 {
		out = append(out, fmt.Sprintf("Roteiros do criador costumam ter cerca de %.0f blocos.", math.Round(s.ParagraphCount)))
	}
	if s.QuestionRate >= 0.2 {
		out = append(out, "Perguntas diretas ao público são frequentes: use ao menos uma.")
	}
	if len(s.Hooks) > 0 {
		out = append(out, "Ganchos que o criador usa: "+strings.Join(s.Hooks, ", ")+".")
	}
	if len(s.CTAs) > 0 {
		out = append(out, "CTA habitual: "+dna.CTALabel(s.CTAs[0])+".")
	}
	if len(s.HumorMarkers) > 0 {
		out = append(out, "Há humor leve nos roteiros: mantenha o tom descontraído.")
	}
	if len(s.Vocabulary) > 0 {
		out = append(out, "Repertório de palavras: "+strings.Join(s.Vocabulary, ", ")+".")
	}
	return out
}

// SimilarityScore compares a draft with the style context and returns a
// value in [0,1]. ok is false when there is no profile or no content;
// callers must not read that as zero similarity.
func SimilarityScore(content string, c Context) (score float64, ok bool) {
	if !c.Available || strings.TrimSpace(content) == "" {
		return 0, false
	}
	f := textfeat.Extract(content)
	if f.Empty() {
		return 0, false
	}
	s := c.SignalsUsed

	sentence := closeness(f.AvgSentenceLength, s.SentenceLength, sentenceBand)
	emoji := closeness(f.EmojiDensity, s.EmojiDensity, emojiBand)

	cta := 0.5
	if len(s.CTAs) > 0 {
		cta = 0
		if overlaps(f.CTAs, s.CTAs) {
			cta = 1
		}
	}

	hook := 0.5
	if len(s.Hooks) > 0 {
		switch {
		case overlaps(f.Hooks, s.Hooks):
			hook = 1
		case len(f.Hooks) > 0:
			hook = 0.5
		default:
			hook = 0.2
		}
	}

	score = sentenceWeight*sentence + emojiWeight*emoji + ctaWeight*cta + hookWeight*hook
	return clamp01(score), true
}

func closeness(a, b, band float64) float64 {
	return clamp01(1 - math.Abs(a-b)/band)
}

func overlaps(a, b []string) bool {
	set := make(map[string]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	for _, v := range a {
		if set[v] {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
