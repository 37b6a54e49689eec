package pipeline

import (
	"strings"
	"testing"

	"github.com/apresai/reelscript/internal/telemetry"
)

func TestSelectTier(t *testing.T) {
	long := strings.Join([]string{
		"Quero um roteiro sobre pedir aumento. Apenas dados reais, sem exageros.",
		"- mencione a planilha de entregas",
		"- evite jargão de RH",
		"- inclua pelo menos um exemplo pessoal",
		"Mantenha o tom leve. Deve terminar com convite para comentar.",
		"No máximo 30 segundos. Não cite marcas.",
	}, "\n")

	tests := []struct {
		name   string
		op     telemetry.Operation
		prompt string
		want   Tier
	}{
		{"create is premium", telemetry.OperationCreate, "oi", TierPremium},
		{"simple adjust is base", telemetry.OperationAdjust, "troca o gancho", TierBase},
		{"premium phrasing", telemetry.OperationAdjust, "capricha nesse ajuste", TierPremium},
		{"complex adjust", telemetry.OperationAdjust, long, TierPremium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectTier(tt.op, tt.prompt, DefaultComplexityThreshold); got != tt.want {
				t.Errorf("SelectTier = %s, want %s (complexity %.2f)", got, tt.want, ComplexityScore(tt.prompt))
			}
		})
	}
}

func TestComplexityScore(t *testing.T) {
	if got := ComplexityScore("   "); got != 0 {
		t.Errorf("empty = %v", got)
	}
	simple := ComplexityScore("deixa mais engraçado")
	structured := ComplexityScore("Ajuste o roteiro:\n1. apenas a fala\n2. sem emojis\n3. mantenha o CTA\nDeve ficar natural.")
	if simple >= structured {
		t.Errorf("simple %.2f >= structured %.2f", simple, structured)
	}
	if structured < 0 || structured > 1 {
		t.Errorf("out of range: %v", structured)
	}
}

func TestWantsPremium(t *testing.T) {
	if !WantsPremium("Quero a MÁXIMA qualidade nesse roteiro") {
		t.Error("accented premium phrasing not detected")
	}
	if WantsPremium("roteiro sobre qualidade de vida") {
		t.Error("false positive")
	}
}

func TestSanitizeAdjustedScript(t *testing.T) {
	original := strings.Repeat("Uma fala completa e natural para o vídeo. ", 20)
	canonical := goodScript().Content

	tests := []struct {
		name         string
		revised      string
		prompt       string
		wantRejected bool
	}{
		{"empty revision", "  ", "melhora", true},
		{"canonical always accepted", canonical, "melhora", false},
		{"aggressive shrink", "Curto demais.", "melhora o tom", true},
		{"requested shrink", "Curto demais.", "deixa mais curto", false},
		{"similar length", original + " Extra.", "melhora o tom", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, rejected := SanitizeAdjustedScript(original, tt.revised, tt.prompt)
			if rejected != tt.wantRejected {
				t.Fatalf("rejected = %v, want %v", rejected, tt.wantRejected)
			}
			want := tt.revised
			if rejected {
				want = original
			}
			if out != want {
				t.Errorf("out = %q", out)
			}
		})
	}
}
