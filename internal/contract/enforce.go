package contract

import (
	"fmt"
	"strings"

	"github.com/apresai/reelscript/internal/textfeat"
)

// Options steer synthesis. Empty fields are inferred from Prompt.
type Options struct {
	Prompt    string
	Topic     string
	Objective Objective
}

func (o Options) synthesizer(content string) synthesizer {
	topic := strings.TrimSpace(o.Topic)
	if topic == "" {
		topic = InferTopic(o.Prompt)
	}
	obj := o.Objective
	if obj == "" {
		obj = InferObjective(o.Prompt + "\n" + content)
	}
	return synthesizer{topic: topic, objective: obj}
}

// Result is an enforced script plus how it was obtained.
type Result struct {
	Draft             Draft
	Scenes            []Scene
	Quality           Quality
	InitialQuality    Quality
	Polished          bool
	Regenerated       bool
	SynthesizedScenes int
	SynthesizedFields int
	Objective         Objective
	Topic             string
}

// Enforce converts a draft into the canonical script, scoring it and, when
// weak, polishing only the weak fields. A draft that polishing cannot
// improve and that started very weak is regenerated from synthesized
// defaults.
func Enforce(d Draft, opts Options) Result {
	sy := opts.synthesizer(d.Content)
	res := Result{Objective: sy.objective, Topic: sy.topic}

	scenes := reconcile(Parse(d.Content), sy)
	res.InitialQuality = Score(scenes)
	res.Quality = res.InitialQuality

	if res.Quality.NeedsPolish() {
		polished := polish(scenes, sy)
		pq := Score(polished)
		switch {
		case pq.PerceivedQuality > res.InitialQuality.PerceivedQuality:
			scenes, res.Quality, res.Polished = polished, pq, true
		case res.InitialQuality.PerceivedQuality < RegenerateBelow:
			scenes = synthesize(sy, 5)
			res.Quality = Score(scenes)
			res.Regenerated = true
		}
	}

	res.Scenes = scenes
	for _, s := range scenes {
		if s.Synthesized.All() {
			res.SynthesizedScenes++
		}
		res.SynthesizedFields += s.Synthesized.Len()
	}
	title := strings.TrimSpace(d.Title)
	if title == "" {
		title = "Roteiro: " + capitalize(sy.topic)
	}
	res.Draft = Draft{Title: title, Content: Render(scenes)}
	return res
}

// ToCanonical converts text into a canonical script without scoring or
// polishing. Canonical input is returned unchanged.
func ToCanonical(text string, opts Options) (string, []Scene) {
	if scenes, ok := ParseCanonical(text); ok && len(scenes) >= MinScenes && len(scenes) <= MaxScenes {
		return text, scenes
	}
	scenes := reconcile(Parse(text), opts.synthesizer(text))
	return Render(scenes), scenes
}

// Fallback builds a complete draft from synthesized defaults, for use when
// no model output is available.
func Fallback(opts Options) Draft {
	sy := opts.synthesizer("")
	return Draft{
		Title:   "Roteiro: " + capitalize(sy.topic),
		Content: Render(synthesize(sy, 5)),
	}
}

// CompleteScene fills the empty fields of s, except its time code, with
// synthesized values for heading h.
func CompleteScene(s Scene, h Heading, opts Options) Scene {
	sy := opts.synthesizer(s.Speech)
	s.Heading = h
	for _, f := range Fields() {
		if f != FieldTime && strings.TrimSpace(s.Get(f)) == "" {
			replaceField(&s, sy, f)
		}
	}
	return s
}

func synthesize(sy synthesizer, n int) []Scene {
	hs := HeadingSequence(n)
	scenes := make([]Scene, len(hs))
	for i, h := range hs {
		scenes[i] = sy.scene(h)
	}
	assignTimes(scenes)
	return scenes
}

// reconcile fits parsed scenes into 4..6 canonical scenes: extra middle
// scenes are folded, missing ones synthesized, headings normalized with the
// last always CTA, and empty fields filled.
func reconcile(parsed []Scene, sy synthesizer) []Scene {
	if len(parsed) == 0 {
		return synthesize(sy, MinScenes)
	}
	if len(parsed) > MaxScenes {
		keep := append([]Scene(nil), parsed[:MaxScenes-1]...)
		// fold the overflow speech into the last kept middle scene
		var extra []string
		for _, s := range parsed[MaxScenes-1 : len(parsed)-1] {
			if t := strings.TrimSpace(s.Speech); t != "" {
				extra = append(extra, t)
			}
		}
		if len(extra) > 0 {
			last := &keep[len(keep)-1]
			last.Speech = strings.TrimSpace(last.Speech + " " + strings.Join(extra, " "))
		}
		parsed = append(keep, parsed[len(parsed)-1])
	}

	n := max(len(parsed), MinScenes)
	hs := HeadingSequence(n)
	slots := make([]*Scene, n)
	switch len(parsed) {
	case 1:
		slots[0] = &parsed[0]
	default:
		for i := 0; i < len(parsed)-1; i++ {
			slots[i] = &parsed[i]
		}
		slots[n-1] = &parsed[len(parsed)-1]
	}

	out := make([]Scene, n)
	for i, slot := range slots {
		if slot == nil {
			out[i] = sy.scene(hs[i])
			continue
		}
		s := *slot
		s.Heading = pickHeading(s.Heading, hs[i], i == n-1)
		for _, f := range Fields() {
			if f == FieldTime {
				continue
			}
			if strings.TrimSpace(s.Get(f)) == "" {
				s.Set(f, sy.value(s.Heading, f))
				s.Synthesized.Add(f)
			}
		}
		out[i] = s
	}
	assignTimes(out)
	return out
}

func pickHeading(parsed, slot Heading, last bool) Heading {
	switch {
	case last:
		return CTA
	case parsed == "" || parsed == CTA:
		return slot
	}
	return parsed
}

// assignTimes keeps valid time codes and fills the rest cumulatively from
// the previous scene's end.
func assignTimes(scenes []Scene) {
	end := 0
	for i := range scenes {
		s := &scenes[i]
		t := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s.Time)), " ", "")
		if from, to, ok := parseTimeCode(t); ok && from >= end && to > from {
			s.Time = t
			end = to
			continue
		}
		d := sceneSeconds[s.Heading]
		if d == 0 {
			d = 5
		}
		s.Time = fmt.Sprintf("%d-%ds", end, end+d)
		s.Synthesized.Add(FieldTime)
		end += d
	}
}

func parseTimeCode(t string) (from, to int, ok bool) {
	if !timeCodeRe.MatchString(t) {
		return 0, 0, false
	}
	if _, err := fmt.Sscanf(t, "%d-%ds", &from, &to); err != nil {
		return 0, 0, false
	}
	return from, to, true
}

// polish replaces only the weak fields of scenes with synthesized values:
// instructional or empty speech, missing on-screen text, non-actionable
// direction, and the hook or CTA line when those scores are weak.
func polish(scenes []Scene, sy synthesizer) []Scene {
	out := append([]Scene(nil), scenes...)
	for i := range out {
		s := &out[i]
		if IsInstructional(s.Speech) || len(textfeat.Words(s.Speech)) < 4 {
			replaceField(s, sy, FieldSpeech)
		}
		if strings.TrimSpace(s.OnScreen) == "" {
			replaceField(s, sy, FieldOnScreen)
		}
		if !actionableDirection(s.Direction) {
			replaceField(s, sy, FieldDirection)
		}
	}
	if len(out) > 0 {
		if hookStrength(out[0].Speech) < HookMin {
			replaceField(&out[0], sy, FieldSpeech)
		}
		last := &out[len(out)-1]
		if ctaStrength(*last) < CTAMin {
			replaceField(last, sy, FieldSpeech)
			if !textfeat.HasCTA(last.OnScreen) {
				replaceField(last, sy, FieldOnScreen)
			}
		}
	}
	return out
}

func replaceField(s *Scene, sy synthesizer, f Field) {
	s.Set(f, sy.value(s.Heading, f))
	s.Synthesized.Add(f)
}

var vagueDirections = map[string]bool{
	"": true, "-": true, "n/a": true, "na": true, "normal": true, "livre": true, "natural": true,
	"a vontade": true, "padrao": true, "nenhuma": true,
}

func actionableDirection(d string) bool {
	n := textfeat.Normalize(d)
	return !vagueDirections[n] && len([]rune(n)) >= 8
}
