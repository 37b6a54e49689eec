package contract

// Quality policy. These thresholds were tuned against observed model output
// and may need adjusting per deployment.
const (
	MinScenes = 4
	MaxScenes = 6

	PerceivedMin    = 0.78
	HookMin         = 0.62
	SpecificityMin  = 0.62
	SpeakabilityMin = 0.75
	CTAMin          = 0.8
	// RegenerateBelow is the perceived score under which an unimprovable
	// draft is replaced by a synthesized one.
	RegenerateBelow = 0.62

	hookWordsMin   = 8
	hookWordsMax   = 26
	speechWordsMin = 8
	speechWordsMax = 34
	actionMinChars = 24
)

// Perceived quality blend.
const (
	weightHook         = 0.25
	weightSpecificity  = 0.20
	weightSpeakability = 0.20
	weightCTA          = 0.20
	weightDiversity    = 0.15
)

// Scene durations in seconds used for synthesized time codes.
var sceneSeconds = map[Heading]int{
	Gancho:       3,
	Contexto:     5,
	Demonstracao: 8,
	Prova:        6,
	Reforco:      5,
	CTA:          4,
}
