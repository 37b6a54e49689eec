package contract

import (
	"math"
	"strings"

	"github.com/apresai/reelscript/internal/textfeat"
)

// Quality holds the sub-scores of a script, each in [0,1] except
// SceneCount.
type Quality struct {
	PerceivedQuality  float64 `json:"perceived_quality"`
	HookStrength      float64 `json:"hook_strength"`
	SpecificityScore  float64 `json:"specificity_score"`
	SpeakabilityScore float64 `json:"speakability_score"`
	CTAStrength       float64 `json:"cta_strength"`
	DiversityScore    float64 `json:"diversity_score"`
	SceneCount        int     `json:"scene_count"`
}

// NeedsPolish reports whether any score is under its threshold.
func (q Quality) NeedsPolish() bool {
	return q.PerceivedQuality < PerceivedMin ||
		q.HookStrength < HookMin ||
		q.SpecificityScore < SpecificityMin ||
		q.SpeakabilityScore < SpeakabilityMin ||
		q.CTAStrength < CTAMin ||
		q.SceneCount < MinScenes
}

var addressWords = []string{"voce", "voces", "tu", "agora", "seu", "sua", "teu", "tua"}

var hookKeywords = []string{
	"erro", "erros", "errando", "problema", "segredo", "atalho", "dica", "jeito", "ganhar", "economizar",
	"perder", "perdendo", "evitar", "rapido", "simples", "melhor", "pior", "nunca", "pare", "para",
	"resultado", "dinheiro", "tempo", "dificil", "facil", "ninguem", "verdade",
}

var speakerWords = []string{"voce", "voces", "eu", "gente", "tu", "seu", "sua", "meu", "minha", "te"}

var instructionalPhrases = []string{
	"fale sobre", "falar sobre", "explique", "explicar", "mostre", "apresente", "descreva", "comente sobre",
	"o criador", "a criadora", "narrador", "inserir", "insira", "aqui voce deve", "incluir", "mencionar",
	"citar", "dizer que", "diga que", "fala sobre",
}

var specificCues = []string{
	"close", "plano", "detalhe", "passo", "primeiro", "segundo", "esquerda", "direita", "frente",
	"lado", "baixo", "cima", "centro", "lente", "camera", "tela", "mao", "maos",
}

// Score computes the quality of scenes.
func Score(scenes []Scene) Quality {
	q := Quality{SceneCount: len(scenes)}
	if len(scenes) == 0 {
		return q
	}
	q.HookStrength = hookStrength(scenes[0].Speech)
	q.SpecificityScore = specificity(scenes)
	q.SpeakabilityScore = speakability(scenes)
	q.CTAStrength = ctaStrength(scenes[len(scenes)-1])
	q.DiversityScore = diversity(scenes)
	p := weightHook*q.HookStrength +
		weightSpecificity*q.SpecificityScore +
		weightSpeakability*q.SpeakabilityScore +
		weightCTA*q.CTAStrength +
		weightDiversity*q.DiversityScore
	if len(scenes) < MinScenes {
		p -= 0.2
	}
	q.PerceivedQuality = round3(clamp(p))
	q.HookStrength = round3(q.HookStrength)
	q.SpecificityScore = round3(q.SpecificityScore)
	q.SpeakabilityScore = round3(q.SpeakabilityScore)
	q.CTAStrength = round3(q.CTAStrength)
	q.DiversityScore = round3(q.DiversityScore)
	return q
}

func hookStrength(speech string) float64 {
	words := textfeat.Words(speech)
	if len(words) == 0 {
		return 0
	}
	text := strings.Join(words, " ")
	var s float64
	switch {
	case len(words) >= hookWordsMin && len(words) <= hookWordsMax:
		s += 0.4
	case len(words) > hookWordsMax:
		s += 0.2
	default:
		s += 0.15
	}
	if anyWord(text, addressWords) {
		s += 0.3
	}
	if anyWord(text, hookKeywords) {
		s += 0.3
	}
	return clamp(s)
}

func specificity(scenes []Scene) float64 {
	var total float64
	for _, sc := range scenes {
		var s float64
		cues := textfeat.Normalize(sc.Action + " " + sc.Framing + " " + sc.OnScreen)
		if strings.ContainsAny(cues, "0123456789") || anyWord(cues, specificCues) {
			s += 0.5
		}
		if len([]rune(strings.TrimSpace(sc.Action))) >= actionMinChars {
			s += 0.5
		}
		total += s
	}
	return total / float64(len(scenes))
}

// IsInstructional reports whether a speech line describes what to say
// instead of being the literal line.
func IsInstructional(speech string) bool {
	t := textfeat.Normalize(speech)
	if t == "" {
		return false
	}
	if strings.HasPrefix(t, "[") || strings.HasPrefix(t, "(") {
		return true
	}
	for _, p := range instructionalPhrases {
		if textfeat.ContainsWord(t, p) {
			return true
		}
	}
	return false
}

func speakability(scenes []Scene) float64 {
	var total float64
	for _, sc := range scenes {
		total += speakableLine(sc.Speech)
	}
	return total / float64(len(scenes))
}

func speakableLine(speech string) float64 {
	words := textfeat.Words(speech)
	if len(words) == 0 || IsInstructional(speech) {
		return 0
	}
	s := 0.3
	if len(words) >= speechWordsMin && len(words) <= speechWordsMax {
		s = 0.6
	}
	if anyWord(strings.Join(words, " "), speakerWords) {
		s += 0.4
	}
	return clamp(s)
}

func ctaStrength(last Scene) float64 {
	switch {
	case textfeat.HasCTA(last.Speech) && !IsInstructional(last.Speech):
		return 1
	case textfeat.HasCTA(last.OnScreen):
		return 0.6
	case textfeat.HasCTA(last.Speech):
		return 0.4
	}
	return 0
}

func diversity(scenes []Scene) float64 {
	lines := make(map[string]bool)
	vocab := make(map[string]bool)
	var total, nonEmpty int
	for _, sc := range scenes {
		words := textfeat.Words(sc.Speech)
		if len(words) == 0 {
			continue
		}
		nonEmpty++
		lines[strings.Join(words, " ")] = true
		for _, w := range words {
			vocab[w] = true
		}
		total += len(words)
	}
	if nonEmpty == 0 {
		return 0
	}
	uniqueLines := float64(len(lines)) / float64(nonEmpty)
	ttr := float64(len(vocab)) / float64(total)
	return clamp(0.5*uniqueLines + 0.5*math.Min(1, ttr/0.45))
}

func anyWord(text string, words []string) bool {
	for _, w := range words {
		if textfeat.ContainsWord(text, w) {
			return true
		}
	}
	return false
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
