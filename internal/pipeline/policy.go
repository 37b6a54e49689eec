package pipeline

import (
	"math"
	"strings"

	"github.com/apresai/reelscript/internal/adjust"
	"github.com/apresai/reelscript/internal/contract"
	"github.com/apresai/reelscript/internal/telemetry"
	"github.com/apresai/reelscript/internal/textfeat"
)

// Policy values, tuned against observed output. Not physics.
const (
	// MaxShrinkRatio is the share of length an unrequested, non-canonical
	// revision may lose before it is rejected.
	MaxShrinkRatio = 0.45

	// DefaultComplexityThreshold promotes a request to the premium tier.
	DefaultComplexityThreshold = 0.6

	// ContextWindow is how many bytes around a scoped segment are sent as
	// surrounding context.
	ContextWindow = 600

	maxEvidenceInPrompt = 8
	maxPromptRunes      = 4000
)

// Tier is a model quality class.
type Tier string

const (
	TierPremium Tier = "premium"
	TierBase    Tier = "base"
)

var premiumPhrases = []string{
	"premium", "melhor qualidade", "alta qualidade", "maxima qualidade", "qualidade maxima",
	"capricha", "caprichado", "caprichada", "mais elaborado", "mais elaborada", "modelo avancado",
	"modelo mais forte", "high quality", "best quality", "best model",
}

var constraintTerms = []string{
	"apenas", "somente", "sem", "nao", "obrigatorio", "obrigatoriamente", "precisa", "deve", "devem",
	"exatamente", "inclua", "incluir", "evite", "evitar", "mantenha", "manter", "cite", "mencione",
	"maximo", "minimo", "pelo menos", "no maximo", "must", "should", "exactly", "include", "avoid", "only",
}

// WantsPremium reports explicit premium phrasing.
func WantsPremium(prompt string) bool {
	n := textfeat.Normalize(prompt)
	for _, p := range premiumPhrases {
		if strings.Contains(n, p) {
			return true
		}
	}
	return false
}

// ComplexityScore rates a prompt in [0,1] from its length, the density of
// constraint keywords and how much structure (sentences, lines, bullets) it
// carries.
func ComplexityScore(prompt string) float64 {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return 0
	}
	n := textfeat.Normalize(prompt)
	words := textfeat.Words(prompt)

	length := math.Min(float64(len([]rune(prompt)))/600, 1)

	hits := 0
	for _, term := range constraintTerms {
		if strings.Contains(term, " ") {
			hits += strings.Count(n, term)
			continue
		}
		for _, w := range words {
			if w == term {
				hits++
			}
		}
	}
	density := 0.0
	if len(words) > 0 {
		density = math.Min(float64(hits)/float64(len(words))/0.08, 1)
	}

	sentences := math.Min(float64(len(textfeat.Sentences(prompt)))/6, 1)
	lines, bullets := 0, 0
	for _, l := range strings.Split(prompt, "\n") {
		t := strings.TrimSpace(l)
		if t == "" {
			continue
		}
		lines++
		if strings.HasPrefix(t, "-") || strings.HasPrefix(t, "*") || strings.HasPrefix(t, "•") || isNumbered(t) {
			bullets++
		}
	}
	structure := 0.5*sentences + 0.25*math.Min(float64(lines)/5, 1) + 0.25*math.Min(float64(bullets)/3, 1)

	return math.Round((0.35*length+0.35*density+0.3*structure)*100) / 100
}

func isNumbered(line string) bool {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	return i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')')
}

// SelectTier picks the model tier for a call. Generation defaults to
// premium and adjustment to base; premium phrasing or a complexity score at
// or above threshold promotes to premium.
func SelectTier(op telemetry.Operation, prompt string, threshold float64) Tier {
	if op == telemetry.OperationCreate {
		return TierPremium
	}
	if WantsPremium(prompt) || ComplexityScore(prompt) >= threshold {
		return TierPremium
	}
	return TierBase
}

// SanitizeAdjustedScript guards a full revision. A revision that is not
// canonical, shrank by more than MaxShrinkRatio and was not asked to be
// shorter is rejected and the original returned with rejected set.
func SanitizeAdjustedScript(original, revised, prompt string) (out string, rejected bool) {
	if strings.TrimSpace(revised) == "" {
		return original, true
	}
	if contract.IsCanonical(revised) {
		return revised, false
	}
	before := len([]rune(strings.TrimSpace(original)))
	after := len([]rune(strings.TrimSpace(revised)))
	if before > 0 && 1-float64(after)/float64(before) > MaxShrinkRatio && !adjust.WantsShorter(prompt) {
		return original, true
	}
	return revised, false
}
