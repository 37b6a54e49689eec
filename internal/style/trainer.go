package style

import (
	"sort"
	"time"

	"github.com/apresai/reelscript/internal/sanitize"
	"github.com/apresai/reelscript/internal/textfeat"
)

const (
	// MaxSamples caps the qualifying entries a profile is built from.
	MaxSamples = 240
	// MinContentChars is the shortest normalized content that qualifies.
	MinContentChars = 160

	maxExamples     = 12
	exampleChars    = 420
	maxRewriteBonus = 0.25

	topHooks  = 8
	topCTAs   = 6
	topHumor  = 5
	topVocab  = 20
	vocabMinL = 4
)

var sourceWeights = map[Source]float64{
	SourceManual:  1.0,
	SourceAI:      0.7,
	SourcePlanner: 0.6,
}

// RewriteRatio estimates how much b was rewritten from a, from 0 (same
// words) to 1 (no shared words): 1 - overlap/max(|a|,|b|) over token sets.
func RewriteRatio(a, b string) float64 {
	sa, sb := textfeat.TokenSet(a), textfeat.TokenSet(b)
	denom := max(len(sa), len(sb))
	if denom == 0 {
		return 0
	}
	overlap := 0
	for w := range sa {
		if _, ok := sb[w]; ok {
			overlap++
		}
	}
	return 1 - float64(overlap)/float64(denom)
}

// EntryWeight returns the trust weight of an entry.
func EntryWeight(e ScriptEntry) float64 {
	w, ok := sourceWeights[e.Source]
	if !ok {
		w = sourceWeights[SourcePlanner]
	}
	if e.BaseContent != "" {
		w += maxRewriteBonus * RewriteRatio(e.BaseContent, e.Content)
	}
	return w
}

type kept struct {
	entry    ScriptEntry
	features textfeat.Features
	weight   float64
}

// Train builds a profile from a creator's script entries.
func Train(creatorID string, entries []ScriptEntry, now time.Time) *Profile {
	sorted := append([]ScriptEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UpdatedAt.After(sorted[j].UpdatedAt)
	})

	var ex Exclusions
	ex.Considered = len(sorted)
	seen := make(map[string]bool)
	var keep []kept
	for _, e := range sorted {
		if e.AdminRecommended {
			ex.AdminRecommended++
			continue
		}
		f := textfeat.Extract(e.Content)
		n := len([]rune(f.Normalized))
		switch {
		case n == 0:
			ex.Empty++
			continue
		case n < MinContentChars:
			ex.TooShort++
			continue
		case seen[f.Normalized]:
			ex.Duplicate++
			continue
		}
		seen[f.Normalized] = true
		if len(keep) >= MaxSamples {
			ex.OverCap++
			continue
		}
		keep = append(keep, kept{entry: e, features: f, weight: EntryWeight(e)})
	}
	ex.Kept = len(keep)

	p := &Profile{
		CreatorID:      creatorID,
		ProfileVersion: ProfileVersion,
		SampleSize:     len(keep),
		BuiltAt:        now,
		Signals:        aggregate(keep),
		Examples:       examples(keep),
		Exclusions:     ex,
	}
	if len(keep) > 0 {
		p.LastScriptAt = keep[0].entry.UpdatedAt
	}
	for _, k := range keep {
		switch k.entry.Source {
		case SourceManual:
			p.SourceMix.Manual++
		case SourceAI:
			p.SourceMix.AI++
		default:
			p.SourceMix.Planner++
		}
	}
	return p
}

func aggregate(keep []kept) *Signals {
	s := &Signals{}
	var total float64
	hooks := make(map[string]float64)
	ctas := make(map[string]float64)
	humor := make(map[string]float64)
	vocab := make(map[string]float64)
	for _, k := range keep {
		w, f := k.weight, k.features
		total += w
		s.ParagraphCount += w * float64(f.ParagraphCount)
		s.SentenceLength += w * f.AvgSentenceLength
		s.EmojiDensity += w * f.EmojiDensity
		s.QuestionRate += w * f.QuestionRate
		s.ExclamationRate += w * f.ExclamationRate
		s.Cadence.Opening += w * f.Cadence.Opening
		s.Cadence.Middle += w * f.Cadence.Middle
		s.Cadence.Closing += w * f.Cadence.Closing
		for _, h := range f.Hooks {
			hooks[h] += w
		}
		for _, c := range f.CTAs {
			ctas[c] += w
		}
		for _, m := range f.HumorMarkers {
			humor[m] += w
		}
		for word, n := range f.Vocabulary {
			if len([]rune(word)) >= vocabMinL {
				vocab[word] += w * float64(n)
			}
		}
	}
	if total > 0 {
		s.ParagraphCount /= total
		s.SentenceLength /= total
		s.EmojiDensity /= total
		s.QuestionRate /= total
		s.ExclamationRate /= total
		s.Cadence.Opening /= total
		s.Cadence.Middle /= total
		s.Cadence.Closing /= total
	}
	s.Hooks = textfeat.TopN(hooks, topHooks)
	s.CTAs = textfeat.TopN(ctas, topCTAs)
	s.HumorMarkers = textfeat.TopN(humor, topHumor)
	s.Vocabulary = textfeat.TopN(vocab, topVocab)
	return s
}

func examples(keep []kept) []Example {
	ranked := append([]kept(nil), keep...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].weight > ranked[j].weight
	})
	var out []Example
	for _, k := range ranked {
		if len(out) >= maxExamples {
			break
		}
		clean, _ := sanitize.Identity(k.entry.Content)
		out = append(out, Example{
			ScriptID: k.entry.ID,
			Source:   k.entry.Source,
			Weight:   k.weight,
			Snippet:  textfeat.Truncate(clean, exampleChars),
		})
	}
	return out
}
