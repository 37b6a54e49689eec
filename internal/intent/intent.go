// Package intent classifies a free-text creator request into explicit
// category selections, a prompt mode and narrative intent.
package intent

import (
	"strings"

	"github.com/apresai/reelscript/internal/catalog"
	"github.com/apresai/reelscript/internal/textfeat"
)

// Mode reports how much of the category space the request pinned down.
type Mode string

const (
	ModeOpen    Mode = "open"
	ModePartial Mode = "partial"
	ModeFull    Mode = "full"
)

// Narrative is the non-category intent carried by a request.
type Narrative struct {
	WantsHumor      bool   `json:"wants_humor"`
	WantsEngagement bool   `json:"wants_engagement"`
	SubjectHint     string `json:"subject_hint,omitempty"`
}

// Match records which catalog term selected a dimension.
type Match struct {
	ID     string
	Term   string
	Offset int
}

// Result is the parsed request.
type Result struct {
	Explicit  catalog.Selection
	Matches   map[catalog.Dimension]Match
	Mode      Mode
	Narrative Narrative
}

const minTermLen = 3

var humorTerms = []string{
	"humor", "engracado", "engracada", "divertido", "divertida", "comedia", "piada", "piadas",
	"zoeira", "risada", "rir", "meme", "memes", "kkk", "funny", "hilario",
}

var engagementTerms = []string{
	"engajamento", "engajar", "engaje", "interacao", "interacoes", "comentarios", "viralizar",
	"viral", "alcance", "compartilhamentos", "salvamentos", "engagement", "bombar",
}

var subjectMarkers = map[string]bool{"sobre": true, "about": true, "tema": true}

var subjectStops = map[string]bool{
	"com": true, "usando": true, "para": true, "pra": true, "no": true, "na": true,
	"tom": true, "formato": true, "estilo": true, "focado": true, "focando": true,
	"voltado": true, "mas": true, "porem": true, "with": true, "for": true, "using": true,
	"que": true, "em": true,
}

const maxSubjectWords = 8

// Parse classifies prompt against the catalog. It is pure and
// deterministic for a given catalog.
func Parse(prompt string, cat *catalog.Catalog) Result {
	text := textfeat.Normalize(prompt)
	res := Result{
		Explicit: catalog.Selection{},
		Matches:  make(map[catalog.Dimension]Match),
	}
	for _, d := range catalog.Dimensions() {
		best, ok := bestMatch(text, cat.Terms(d))
		if !ok {
			continue
		}
		res.Explicit[d] = best.ID
		res.Matches[d] = best
	}
	res.Mode = modeFor(res.Explicit.Count())
	res.Narrative = Narrative{
		WantsHumor:      containsAny(text, humorTerms),
		WantsEngagement: containsAny(text, engagementTerms),
		SubjectHint:     subjectHint(prompt),
	}
	return res
}

// bestMatch picks the earliest whole-word match, preferring the longer term
// when two start at the same offset.
func bestMatch(text string, terms []catalog.Term) (Match, bool) {
	var best Match
	found := false
	for _, t := range terms {
		if len([]rune(t.Text)) < minTermLen {
			continue
		}
		off := textfeat.IndexWord(text, t.Text)
		if off < 0 {
			continue
		}
		if !found || off < best.Offset || (off == best.Offset && len(t.Text) > len(best.Term)) {
			best = Match{ID: t.ID, Term: t.Text, Offset: off}
			found = true
		}
	}
	return best, found
}

func modeFor(matched int) Mode {
	switch {
	case matched == 0:
		return ModeOpen
	case matched >= len(catalog.Dimensions()):
		return ModeFull
	default:
		return ModePartial
	}
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if textfeat.ContainsWord(text, t) {
			return true
		}
	}
	return false
}

// subjectHint returns the words following the first "sobre"/"about"
// marker, cut at a connector or punctuation. Original casing and accents
// are kept.
func subjectHint(prompt string) string {
	fields := strings.Fields(prompt)
	for i, f := range fields {
		if !subjectMarkers[textfeat.Normalize(strings.Trim(f, ",.;:!?\"'"))] {
			continue
		}
		var words []string
		for _, w := range fields[i+1:] {
			clean := strings.TrimRight(w, ",.;:!?\"')")
			if subjectStops[textfeat.Normalize(clean)] {
				break
			}
			if clean != "" {
				words = append(words, strings.TrimLeft(clean, "\"'("))
			}
			if clean != w || len(words) >= maxSubjectWords {
				break
			}
		}
		if len(words) > 0 {
			return strings.Join(words, " ")
		}
	}
	return ""
}
