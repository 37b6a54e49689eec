// Package dna builds the request-scoped writing profile of a creator from
// a set of historical captions.
package dna

import (
	"fmt"
	"strings"

	"github.com/apresai/reelscript/internal/textfeat"
)

// MinSample is the caption count needed before signals are trusted.
const MinSample = 6

const (
	openingWords    = 4
	maxOpenings     = 3
	maxCTAs         = 3
	maxExpressions  = 10
	minExpressionLn = 4
)

// Profile is an ephemeral linguistic summary of a creator's captions.
type Profile struct {
	SampleSize            int      `json:"sample_size"`
	HasEnoughEvidence     bool     `json:"has_enough_evidence"`
	AverageSentenceLength float64  `json:"average_sentence_length"`
	EmojiDensity          float64  `json:"emoji_density"`
	OpeningPatterns       []string `json:"opening_patterns"`
	CTAPatterns           []string `json:"cta_patterns"`
	RecurringExpressions  []string `json:"recurring_expressions"`
	WritingGuidelines     []string `json:"writing_guidelines"`
}

var genericGuidelines = []string{
	"Abra com um gancho direto nos primeiros 3 segundos.",
	"Escreva falas curtas, como se estivesse conversando com uma pessoa.",
	"Traga um exemplo concreto antes de dar a dica principal.",
	"Feche com um CTA claro e único.",
}

// BuildFromCaptions aggregates caption texts into a profile. Guidelines are
// never empty: when evidence is thin, generic guidance is returned.
func BuildFromCaptions(captions []string) Profile {
	var texts []string
	for _, c := range captions {
		if strings.TrimSpace(c) != "" {
			texts = append(texts, c)
		}
	}
	p := Profile{SampleSize: len(texts)}
	p.HasEnoughEvidence = p.SampleSize >= MinSample

	var words, sentences, emoji int
	openings := make(map[string]float64)
	ctas := make(map[string]float64)
	vocab := make(map[string]float64)
	for _, t := range texts {
		w := textfeat.Words(t)
		words += len(w)
		sentences += len(textfeat.Sentences(t))
		emoji += textfeat.CountEmoji(t)

		if first := textfeat.Words(textfeat.FirstLine(t)); len(first) > 0 {
			if len(first) > openingWords {
				first = first[:openingWords]
			}
			openings[strings.Join(first, " ")]++
		}
		for _, c := range textfeat.CTACategories(t) {
			ctas[c]++
		}
		for word, n := range textfeat.ContentWords(t, minExpressionLn) {
			vocab[word] += float64(n)
		}
	}
	if sentences > 0 {
		p.AverageSentenceLength = float64(words) / float64(sentences)
	}
	if words > 0 {
		p.EmojiDensity = float64(emoji) / float64(words)
	}
	p.OpeningPatterns = textfeat.Values(textfeat.TopN(openings, maxOpenings))
	p.CTAPatterns = textfeat.Values(textfeat.TopN(ctas, maxCTAs))
	for word, n := range vocab {
		if n < 2 {
			delete(vocab, word)
		}
	}
	p.RecurringExpressions = textfeat.Values(textfeat.TopN(vocab, maxExpressions))
	p.WritingGuidelines = guidelines(p)
	return p
}

func guidelines(p Profile) []string {
	if !p.HasEnoughEvidence {
		return append([]string(nil), genericGuidelines...)
	}
	out := []string{SentenceBand(p.AverageSentenceLength), EmojiBand(p.EmojiDensity)}
	if len(p.CTAPatterns) > 0 {
		out = append(out, fmt.Sprintf("CTA que mais aparece no perfil: %s.", CTALabel(p.CTAPatterns[0])))
	} else {
		out = append(out, "O perfil quase não usa CTA explícito: feche com um convite leve e natural.")
	}
	if len(p.OpeningPatterns) > 0 {
		out = append(out, fmt.Sprintf("Aberturas recorrentes: %q.", strings.Join(p.OpeningPatterns, "\", \"")))
	}
	if len(p.RecurringExpressions) > 0 {
		n := min(5, len(p.RecurringExpressions))
		out = append(out, "Vocabulário próprio do criador: "+strings.Join(p.RecurringExpressions[:n], ", ")+".")
	}
	return out
}

// SentenceBand describes a mean sentence length as a writing rule.
func SentenceBand(avg float64) string {
	switch {
	case avg <= 0:
		return "Use frases curtas e faladas."
	case avg < 8:
		return fmt.Sprintf("Frases curtas e diretas (média de %.0f palavras).", avg)
	case avg <= 16:
		return fmt.Sprintf("Frases de tamanho médio (média de %.0f palavras).", avg)
	default:
		return fmt.Sprintf("Frases longas e explicativas (média de %.0f palavras); quebre quando for falar.", avg)
	}
}

// EmojiBand describes an emoji density as a writing rule.
func EmojiBand(density float64) string {
	switch {
	case density < 0.01:
		return "Quase sem emojis: use no máximo um."
	case density < 0.06:
		return "Emojis com moderação, de 1 a 3 por roteiro."
	default:
		return "Emojis fazem parte da voz do criador: use ao longo do texto na tela."
	}
}

var ctaLabels = map[string]string{
	textfeat.CTAComment:   "pedir comentário",
	textfeat.CTASave:      "pedir para salvar",
	textfeat.CTAShare:     "pedir para compartilhar",
	textfeat.CTALike:      "pedir curtida",
	textfeat.CTAFollow:    "pedir para seguir o perfil",
	textfeat.CTAClickLink: "mandar para o link na bio",
}

// CTALabel returns a readable description of a CTA category.
func CTALabel(category string) string {
	if l, ok := ctaLabels[category]; ok {
		return l
	}
	return category
}
