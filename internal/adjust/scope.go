// Package adjust locates the part of a script an adjustment request targets
// and splices revised text back into place.
package adjust

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/apresai/reelscript/internal/textfeat"
)

// Mode is how much of a script an adjustment may change.
type Mode string

const (
	ModePatch       Mode = "patch"
	ModeRewriteFull Mode = "rewrite_full"
	ModeNewScript   Mode = "new_script"
)

// TargetKind names the addressed unit.
type TargetKind string

const (
	TargetNone           TargetKind = "none"
	TargetScene          TargetKind = "scene"
	TargetParagraph      TargetKind = "paragraph"
	TargetFirstParagraph TargetKind = "first_paragraph"
	TargetLastParagraph  TargetKind = "last_paragraph"
)

// Target addresses a scene or paragraph. Index is 1-based and only set for
// scene and paragraph kinds.
type Target struct {
	Kind  TargetKind `json:"type"`
	Index int        `json:"index,omitempty"`
}

// Scoped reports whether t addresses a single segment.
func (t Target) Scoped() bool { return t.Kind != "" && t.Kind != TargetNone }

// Describe returns a human-readable name for t.
func (t Target) Describe() string {
	switch t.Kind {
	case TargetScene:
		return fmt.Sprintf("cena %d", t.Index)
	case TargetParagraph:
		return fmt.Sprintf("parágrafo %d", t.Index)
	case TargetFirstParagraph:
		return "primeiro parágrafo"
	case TargetLastParagraph:
		return "último parágrafo"
	}
	return "roteiro inteiro"
}

// Scope is the classified adjustment request.
type Scope struct {
	Mode          Mode   `json:"mode"`
	Target        Target `json:"target"`
	IsPartialEdit bool   `json:"is_partial_edit"`
	RawPrompt     string `json:"raw_prompt"`
}

var newScriptPhrases = []string{
	"novo roteiro", "roteiro novo", "crie um roteiro", "criar um roteiro", "gere um roteiro",
	"comece de novo com outro tema", "new script", "another script",
}

var rewritePhrases = []string{
	"reescreva tudo", "reescrever tudo", "reescreve tudo", "refaca tudo", "refazer tudo", "refaz tudo",
	"do zero", "do inicio ao fim", "tudo de novo", "mude tudo", "muda tudo", "reescreva completamente",
	"totalmente diferente", "rewrite everything", "rewrite the whole", "from scratch", "start over",
}

// Mentions of the whole script or of another script only change the mode
// when the request names no scene or paragraph and carries a matching verb.
var (
	wholeScriptPhrases = []string{"roteiro inteiro", "roteiro todo", "todo o roteiro", "whole script", "entire script"}
	otherScriptPhrases = []string{"outro roteiro", "roteiro diferente"}

	rewriteVerbRe = regexp.MustCompile(`\b(?:reescrev|refa[cz]|refazer|mud[ae]|mudar|troc|rewrite|redo)\w*`)
	createVerbRe  = regexp.MustCompile(`\b(?:cri[ae]|criar|ger[ae]|gerar|fa[cz]|escrev|quero|manda|traz|create|write|make)\w*`)
)

var shorterPhrases = []string{
	"mais curt", "mais enxut", "mais objetiv", "encurt", "resum", "reduz", "diminu", "enxug", "corta",
	"corte", "menor", "menos texto", "shorter", "shorten",
}

var (
	sceneNumRe     = regexp.MustCompile(`\b(?:cena|scene)\s*(?:n(?:o|umero)?\s*)?(\d{1,2})\b`)
	sceneOrdRe     = regexp.MustCompile(`\b(primeira|segunda|terceira|quarta|quinta|sexta|first|second|third|fourth|fifth|sixth)\s+(?:cena|scene)\b`)
	sceneWordRe    = regexp.MustCompile(`\b(?:cena|scene)\s+(um|uma|dois|duas|tres|quatro|cinco|seis|one|two|three|four|five|six)\b`)
	paraNumRe      = regexp.MustCompile(`\b(?:paragrafo|paragraph)\s*(?:n(?:o|umero)?\s*)?(\d{1,2})\b`)
	paraOrdRe      = regexp.MustCompile(`\b(primeiro|segundo|terceiro|quarto|quinto|sexto|ultimo|first|second|third|fourth|fifth|sixth|last)\s+(?:paragrafo|paragraph)\b`)
	paraTrailingRe = regexp.MustCompile(`\b(?:paragrafo|paragraph)\s+(final|inicial)\b`)
)

var ordinals = map[string]int{
	"primeira": 1, "primeiro": 1, "first": 1, "um": 1, "uma": 1, "one": 1,
	"segunda": 2, "segundo": 2, "second": 2, "dois": 2, "duas": 2, "two": 2,
	"terceira": 3, "terceiro": 3, "third": 3, "tres": 3, "three": 3,
	"quarta": 4, "quarto": 4, "fourth": 4, "quatro": 4, "four": 4,
	"quinta": 5, "quinto": 5, "fifth": 5, "cinco": 5, "five": 5,
	"sexta": 6, "sexto": 6, "sixth": 6, "seis": 6, "six": 6,
}

// DetectScope classifies an adjustment request. Checks run in order: new
// script phrasing, then full-rewrite phrasing, then a scene or paragraph
// target (which always means a patch), then verb-qualified mentions of the
// whole or another script, then a plain patch.
func DetectScope(prompt string) Scope {
	s := Scope{Mode: ModePatch, Target: Target{Kind: TargetNone}, RawPrompt: prompt}
	n := textfeat.Normalize(prompt)
	switch {
	case containsAny(n, newScriptPhrases):
		s.Mode = ModeNewScript
		return s
	case containsAny(n, rewritePhrases):
		s.Mode = ModeRewriteFull
		return s
	}
	if t, ok := detectTarget(n); ok {
		s.Target = t
		s.IsPartialEdit = true
		return s
	}
	switch {
	case containsAny(n, otherScriptPhrases) && createVerbRe.MatchString(n):
		s.Mode = ModeNewScript
	case containsAny(n, wholeScriptPhrases) && rewriteVerbRe.MatchString(n):
		s.Mode = ModeRewriteFull
	}
	return s
}

func detectTarget(n string) (Target, bool) {
	if m := sceneNumRe.FindStringSubmatch(n); m != nil {
		idx, _ := strconv.Atoi(m[1])
		return Target{Kind: TargetScene, Index: idx}, true
	}
	if m := sceneOrdRe.FindStringSubmatch(n); m != nil {
		return Target{Kind: TargetScene, Index: ordinals[m[1]]}, true
	}
	if m := sceneWordRe.FindStringSubmatch(n); m != nil {
		return Target{Kind: TargetScene, Index: ordinals[m[1]]}, true
	}
	if m := paraNumRe.FindStringSubmatch(n); m != nil {
		idx, _ := strconv.Atoi(m[1])
		return Target{Kind: TargetParagraph, Index: idx}, true
	}
	if m := paraOrdRe.FindStringSubmatch(n); m != nil {
		switch m[1] {
		case "primeiro", "first":
			return Target{Kind: TargetFirstParagraph}, true
		case "ultimo", "last":
			return Target{Kind: TargetLastParagraph}, true
		}
		return Target{Kind: TargetParagraph, Index: ordinals[m[1]]}, true
	}
	if m := paraTrailingRe.FindStringSubmatch(n); m != nil {
		if m[1] == "final" {
			return Target{Kind: TargetLastParagraph}, true
		}
		return Target{Kind: TargetFirstParagraph}, true
	}
	return Target{}, false
}

// WantsShorter reports whether the request explicitly asks for less text.
func WantsShorter(prompt string) bool {
	return containsAny(textfeat.Normalize(prompt), shorterPhrases)
}

func containsAny(n string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(n, p) {
			return true
		}
	}
	return false
}
