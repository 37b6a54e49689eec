package contract

import (
	"fmt"
	"strings"
	"testing"
)

func sampleScenes() []Scene {
	return []Scene{
		{Heading: Gancho, Time: "0-3s", Framing: "Close no rosto", Action: "Entra no quadro apontando para a câmera", OnScreen: "Pare de errar isso", Speech: "Você está perdendo dinheiro agora com esse erro simples de planilha", Direction: "Enérgico, olhar fixo"},
		{Heading: Contexto, Time: "3-8s", Framing: "Plano médio", Action: "Caminha 2 passos e mostra a planilha", OnScreen: "O problema", Speech: "Eu também fazia assim e você provavelmente faz igual todo mês sem perceber", Direction: "Tom de conversa"},
		{Heading: Demonstracao, Time: "8-16s", Framing: "Detalhe na tela", Action: "Mostra o passo 1 e o passo 2 na tela do celular", OnScreen: "Passo 1 e 2", Speech: "Separa os gastos fixos primeiro e depois coloca uma meta de economia pra você", Direction: "Didático, pausado"},
		{Heading: CTA, Time: "16-20s", Framing: "Close no rosto", Action: "Aponta para baixo em direção à legenda", OnScreen: "Salva esse vídeo", Speech: "Salva esse vídeo e comenta qual gasto você vai cortar primeiro", Direction: "Sorriso, tom de convite"},
	}
}

func TestRenderParseRoundTrip(t *testing.T) {
	text := Render(sampleScenes())
	if !strings.HasPrefix(text, OpenToken+"\n[CENA 1: GANCHO]\n"+HeaderRow+"\n"+SeparatorRow+"\n| 0-3s | Close no rosto |") {
		t.Fatalf("unexpected rendering:\n%s", text)
	}
	if !strings.Contains(text, "|\n\n[CENA 2: CONTEXTO]\n") || !strings.HasSuffix(text, "|\n"+CloseToken) {
		t.Fatalf("scene separation wrong:\n%s", text)
	}
	scenes, ok := ParseCanonical(text)
	if !ok || len(scenes) != 4 {
		t.Fatalf("ParseCanonical ok=%v scenes=%d", ok, len(scenes))
	}
	if again := Render(scenes); again != text {
		t.Errorf("round trip differs:\n%s\n---\n%s", text, again)
	}
	if !IsCanonical(text) {
		t.Error("IsCanonical = false")
	}
}

func TestCellSanitized(t *testing.T) {
	s := sampleScenes()
	s[0].Speech = "linha com | pipe\ne quebra"
	scenes, ok := ParseCanonical(Render(s))
	if !ok || scenes[0].Speech != "linha com / pipe e quebra" {
		t.Errorf("got %q ok=%v", scenes[0].Speech, ok)
	}
}

func TestParseCanonicalRejectsDeviation(t *testing.T) {
	text := Render(sampleScenes())
	bad := []string{
		strings.Replace(text, "[CENA 2:", "[CENA 3:", 1),
		strings.Replace(text, SeparatorRow, "|---|", 1),
		strings.Replace(text, CloseToken, "", 1),
		strings.Replace(text, "[CENA 1: GANCHO]", "[CENA 1: QUALQUER]", 1),
	}
	for i, b := range bad {
		if _, ok := ParseCanonical(b); ok {
			t.Errorf("case %d parsed as canonical", i)
		}
	}
}

func TestHeadingSequence(t *testing.T) {
	tests := map[int]string{
		3: "[GANCHO CONTEXTO DEMONSTRAÇÃO CTA]",
		4: "[GANCHO CONTEXTO DEMONSTRAÇÃO CTA]",
		5: "[GANCHO CONTEXTO DEMONSTRAÇÃO PROVA CTA]",
		6: "[GANCHO CONTEXTO DEMONSTRAÇÃO PROVA REFORÇO CTA]",
	}
	for n, want := range tests {
		if got := fmt.Sprint(HeadingSequence(n)); got != want {
			t.Errorf("HeadingSequence(%d) = %s", n, got)
		}
	}
}

func assertContract(t *testing.T, name string, r Result) {
	t.Helper()
	n := len(r.Scenes)
	if n < MinScenes || n > MaxScenes {
		t.Errorf("%s: %d scenes", name, n)
		return
	}
	if r.Scenes[n-1].Heading != CTA {
		t.Errorf("%s: last heading %s", name, r.Scenes[n-1].Heading)
	}
	for i, s := range r.Scenes {
		for _, f := range Fields() {
			if strings.TrimSpace(s.Get(f)) == "" {
				t.Errorf("%s: scene %d field %s empty", name, i+1, f)
			}
		}
	}
	if !IsCanonical(r.Draft.Content) {
		t.Errorf("%s: output not canonical:\n%s", name, r.Draft.Content)
	}
	if r.Draft.Title == "" {
		t.Errorf("%s: empty title", name)
	}
}

func TestEnforceArbitraryText(t *testing.T) {
	var many []string
	for i := 0; i < 10; i++ {
		many = append(many, fmt.Sprintf("Parágrafo %d com alguma fala sobre o tema.", i))
	}
	inputs := map[string]string{
		"empty":      "",
		"whitespace": "  \n\n  ",
		"one line":   "Uma ideia solta sobre produtividade",
		"paragraphs": "Primeiro bloco de texto.\n\nSegundo bloco.\n\nTerceiro.",
		"many":       strings.Join(many, "\n\n"),
		"markdown":   "# Título\n\n**Cena 1: Gancho**\nFala: Oi gente\n\n## Cena 2\n| a | b | c | d | e | f |",
		"canonical":  Render(sampleScenes()),
		"garbage":    "|||| [CENA x] ---- 🙂🙂",
	}
	for name, in := range inputs {
		r := Enforce(Draft{Content: in}, Options{Prompt: "Roteiro sobre finanças pessoais"})
		assertContract(t, name, r)
	}
}

func TestEnforceLooseScenes(t *testing.T) {
	in := `Cena 1 - Gancho
Fala: "Você sabia que esse erro custa dinheiro todo mês sem você perceber?"
Texto na tela: Atenção ao erro
Direção: Tom sério, olhar fixo na lente

Cena 2: Contexto
Enquadramento: Plano médio na cozinha
Fala: Eu descobri isso quando comecei a anotar tudo o que gastava no mês

Cena 3: Final
Fala: Comenta aqui embaixo qual foi o seu maior gasto escondido este mês`
	r := Enforce(Draft{Title: "Gastos", Content: in}, Options{Prompt: "reel sobre finanças"})
	assertContract(t, "loose", r)
	if len(r.Scenes) != 4 {
		t.Fatalf("scenes = %d", len(r.Scenes))
	}
	if !strings.HasPrefix(r.Scenes[0].Speech, "Você sabia que esse erro") {
		t.Errorf("scene 1 speech lost: %q", r.Scenes[0].Speech)
	}
	if r.Scenes[0].Synthesized.Has(FieldSpeech) || r.Scenes[0].Synthesized.Has(FieldDirection) {
		t.Error("given fields marked synthesized")
	}
	if !r.Scenes[2].Synthesized.All() || r.Scenes[2].Heading != Demonstracao {
		t.Errorf("missing middle scene not synthesized: %+v", r.Scenes[2])
	}
	if r.Scenes[3].Heading != CTA || !strings.HasPrefix(r.Scenes[3].Speech, "Comenta aqui") {
		t.Errorf("last scene = %+v", r.Scenes[3])
	}
	if r.Draft.Title != "Gastos" {
		t.Errorf("title = %q", r.Draft.Title)
	}
	if r.SynthesizedScenes != 1 || r.SynthesizedFields == 0 {
		t.Errorf("provenance counts %d/%d", r.SynthesizedScenes, r.SynthesizedFields)
	}
}

func TestReconcileFoldsOverflow(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 8; i++ {
		fmt.Fprintf(&b, "Cena %d\nFala: fala número %d do roteiro longo\n\n", i, i)
	}
	scenes := reconcile(Parse(b.String()), synthesizer{topic: "x", objective: ObjectiveEducate})
	if len(scenes) != MaxScenes {
		t.Fatalf("scenes = %d", len(scenes))
	}
	if s := scenes[4].Speech; !strings.Contains(s, "número 5") || !strings.Contains(s, "número 6") || !strings.Contains(s, "número 7") {
		t.Errorf("overflow not folded: %q", s)
	}
	if scenes[5].Heading != CTA || !strings.Contains(scenes[5].Speech, "número 8") {
		t.Errorf("last scene = %+v", scenes[5])
	}
	if scenes[5].Time != "27-31s" {
		t.Errorf("last time = %q", scenes[5].Time)
	}
}

func TestSynthesizedDefaultsPassThresholds(t *testing.T) {
	for _, obj := range []Objective{ObjectiveConvert, ObjectiveAuthority, ObjectiveEngage, ObjectiveEducate} {
		for _, n := range []int{4, 5, 6} {
			q := Score(synthesize(synthesizer{topic: "organização financeira", objective: obj}, n))
			if q.NeedsPolish() {
				t.Errorf("%s/%d defaults need polish: %+v", obj, n, q)
			}
		}
	}
}

func TestEnforceGoodScriptUntouched(t *testing.T) {
	in := Render(sampleScenes())
	r := Enforce(Draft{Title: "x", Content: in}, Options{})
	if r.Polished || r.Regenerated {
		t.Fatalf("good script changed: quality %+v", r.InitialQuality)
	}
	if r.Draft.Content != in {
		t.Errorf("content changed")
	}
	if r.SynthesizedFields != 0 {
		t.Errorf("synthesized fields = %d", r.SynthesizedFields)
	}
}

func TestEnforcePolishesOnlyWeakFields(t *testing.T) {
	scenes := sampleScenes()
	scenes[1].Speech = "Explique aqui por que as pessoas gastam demais"
	scenes[2].Speech = "Separa os gastos fixos primeiro e depois coloca uma meta de economia"
	scenes[2].Direction = "normal"
	in := Render(scenes)

	r := Enforce(Draft{Content: in}, Options{Prompt: "dicas sobre finanças"})
	if !r.Polished || r.Regenerated {
		t.Fatalf("polished=%v regenerated=%v", r.Polished, r.Regenerated)
	}
	if !r.Scenes[1].Synthesized.Has(FieldSpeech) || IsInstructional(r.Scenes[1].Speech) {
		t.Errorf("instructional speech kept: %q", r.Scenes[1].Speech)
	}
	if !r.Scenes[2].Synthesized.Has(FieldDirection) {
		t.Error("vague direction kept")
	}
	orig := sampleScenes()
	for _, i := range []int{0, 3} {
		if r.Scenes[i] != orig[i] {
			t.Errorf("scene %d changed: %+v", i+1, r.Scenes[i])
		}
	}
	if r.Scenes[1].Action != orig[1].Action || r.Scenes[2].Speech != scenes[2].Speech {
		t.Error("strong fields of polished scenes changed")
	}
	if r.Quality.PerceivedQuality <= r.InitialQuality.PerceivedQuality {
		t.Errorf("quality did not improve: %v -> %v", r.InitialQuality.PerceivedQuality, r.Quality.PerceivedQuality)
	}
}

func TestEnforceRegeneratesUnsalvageable(t *testing.T) {
	line := strings.Repeat("olha agora o segredo que ninguém conta e comenta aqui ", 4)
	var scenes []Scene
	for _, h := range HeadingSequence(4) {
		scenes = append(scenes, Scene{Heading: h, Framing: "aberto", Action: "pula", OnScreen: "Olha", Speech: line, Direction: "Fala rápido e sorrindo"})
	}
	r := Enforce(Draft{Content: Render(scenes)}, Options{Prompt: "sobre produtividade"})
	if r.InitialQuality.PerceivedQuality >= RegenerateBelow {
		t.Fatalf("fixture not weak enough: %+v", r.InitialQuality)
	}
	if !r.Regenerated || r.Polished {
		t.Fatalf("regenerated=%v polished=%v", r.Regenerated, r.Polished)
	}
	if r.SynthesizedScenes != len(r.Scenes) {
		t.Errorf("synthesized scenes %d of %d", r.SynthesizedScenes, len(r.Scenes))
	}
	assertContract(t, "regenerated", r)
}

func TestToCanonical(t *testing.T) {
	canonical := Render(sampleScenes())
	if got, _ := ToCanonical(canonical, Options{}); got != canonical {
		t.Error("canonical input changed")
	}
	got, scenes := ToCanonical("Primeiro.\n\nSegundo.\n\nTerceiro.", Options{})
	if !IsCanonical(got) || len(scenes) != 4 {
		t.Errorf("legacy conversion failed:\n%s", got)
	}
	if scenes[0].Speech != "Primeiro." || scenes[3].Speech != "Terceiro." {
		t.Errorf("speech not carried: %q / %q", scenes[0].Speech, scenes[3].Speech)
	}
}

func TestInferObjective(t *testing.T) {
	tests := map[string]Objective{
		"quero vender meu curso com link na bio":       ObjectiveConvert,
		"mostrar autoridade como especialista":         ObjectiveAuthority,
		"algo pra bombar de comentarios e engajamento": ObjectiveEngage,
		"dicas de estudo":                              ObjectiveEducate,
		"":                                             ObjectiveEducate,
	}
	for in, want := range tests {
		if got := InferObjective(in); got != want {
			t.Errorf("InferObjective(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestInferTopic(t *testing.T) {
	tests := map[string]string{
		"Roteiro reel de dicas sobre carreira/trabalho com tom educacional": "carreira/trabalho",
		"Faça um roteiro sobre investimentos para iniciantes":               "investimentos",
		"Roteiro de produtividade matinal":                                  "produtividade matinal",
		"":                                                                  defaultTopic,
	}
	for in, want := range tests {
		if got := InferTopic(in); got != want {
			t.Errorf("InferTopic(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFallbackAndCompleteScene(t *testing.T) {
	d := Fallback(Options{Prompt: "reel sobre skincare"})
	if !IsCanonical(d.Content) || !strings.Contains(d.Content, "skincare") {
		t.Errorf("fallback draft:\n%s", d.Content)
	}
	s := CompleteScene(Scene{Speech: "Minha fala"}, Prova, Options{Topic: "skincare"})
	if s.Speech != "Minha fala" || s.Synthesized.Has(FieldSpeech) || s.Framing == "" || !s.Synthesized.Has(FieldFraming) {
		t.Errorf("CompleteScene = %+v", s)
	}
	if s.Time != "" {
		t.Error("time should be left to the caller")
	}
}
