package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"

	"github.com/apresai/reelscript/internal/adjust"
	"github.com/apresai/reelscript/internal/pipeline"
	"github.com/apresai/reelscript/internal/style"
	"github.com/apresai/reelscript/internal/telemetry"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Width(16).
			Align(lipgloss.Right).
			MarginRight(2).
			Foreground(lipgloss.Color("#888888"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFB86C"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#555555")).
			Padding(0, 1)
)

// jsonResult is the --json shape of a generate or adjust run.
type jsonResult struct {
	Title       string                `json:"title"`
	Content     string                `json:"content"`
	EventID     string                `json:"event_id"`
	VersionID   string                `json:"version_id"`
	Scope       *adjust.Scope         `json:"scope,omitempty"`
	Diagnostics telemetry.Diagnostics `json:"diagnostics"`
}

// emit prints the result and, with --output, writes the content to a file.
// The script itself goes to w unstyled so it can be piped.
func emit(w io.Writer, res *pipeline.Result) error {
	if flagOutput != "" {
		if err := os.WriteFile(flagOutput, []byte(res.Draft.Content+"\n"), 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	if flagJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(jsonResult{
			Title:       res.Draft.Title,
			Content:     res.Draft.Content,
			EventID:     res.EventID,
			VersionID:   res.VersionID,
			Scope:       res.Scope,
			Diagnostics: res.Diagnostics,
		})
	}

	fmt.Fprintln(w, titleStyle.Render(res.Draft.Title))
	fmt.Fprintln(w, res.Draft.Content)
	fmt.Fprintln(w)
	fmt.Fprintln(w, boxStyle.Width(boxWidth()).Render(summary(res)))
	return nil
}

func summary(res *pipeline.Result) string {
	d := res.Diagnostics
	rows := [][2]string{
		{"cenas", fmt.Sprintf("%d", d.SceneCount)},
		{"qualidade", fmt.Sprintf("%.2f (gancho %.2f, cta %.2f)", d.Quality.PerceivedQuality, d.Quality.HookStrength, d.Quality.CTAStrength)},
		{"modelo", fmt.Sprintf("%s (%s)", orDash(d.Model), orDash(d.ModelTier))},
	}
	if d.PromptMode != "" {
		rows = append(rows,
			[2]string{"categorias", d.FinalCategories.Key()},
			[2]string{"evidências", fmt.Sprintf("%d (%s)", d.EvidenceCount, orDash(d.EvidenceStrategy))},
		)
	}
	if d.StyleSimilarity != nil {
		rows = append(rows, [2]string{"estilo", fmt.Sprintf("%.2f sobre %d roteiros", *d.StyleSimilarity, d.StyleSampleSize)})
	}
	if res.Scope != nil {
		rows = append(rows, [2]string{"escopo", fmt.Sprintf("%s, %s", res.Scope.Mode, res.Scope.Target.Describe())})
	}
	rows = append(rows, [2]string{"versão", res.VersionID})

	var b strings.Builder
	for i, r := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(labelStyle.Render(r[0]) + valueStyle.Render(r[1]))
	}
	for _, msg := range degradedNotes(d) {
		b.WriteString("\n" + warnStyle.Render("! "+msg))
	}
	return b.String()
}

func degradedNotes(d telemetry.Diagnostics) []string {
	var out []string
	if d.ModelUnavailable {
		out = append(out, "modelo indisponível, roteiro montado localmente")
	}
	if d.TierFallback {
		out = append(out, "modelo premium falhou, usado o modelo base")
	}
	if d.RevisionRejected {
		out = append(out, "revisão descartada por encurtar demais")
	}
	if d.LegacyConverted {
		out = append(out, "roteiro antigo convertido para o formato técnico")
	}
	return out
}

func printScope(w io.Writer, scope adjust.Scope, seg adjust.Segment, found bool) error {
	if flagJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		out := struct {
			Scope   adjust.Scope    `json:"scope"`
			Segment *adjust.Segment `json:"segment,omitempty"`
		}{Scope: scope}
		if found {
			out.Segment = &seg
		}
		return enc.Encode(out)
	}
	fmt.Fprintln(w, labelStyle.Render("modo")+valueStyle.Render(string(scope.Mode)))
	fmt.Fprintln(w, labelStyle.Render("alvo")+valueStyle.Render(scope.Target.Describe()))
	if found {
		fmt.Fprintln(w)
		fmt.Fprintln(w, boxStyle.Width(boxWidth()).Render(seg.Text))
	}
	return nil
}

func printProfile(w io.Writer, p *style.Profile, c style.Context) error {
	if flagJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(p)
	}
	fmt.Fprintln(w, titleStyle.Render("Perfil de estilo: "+p.CreatorID))
	rows := [][2]string{
		{"roteiros", fmt.Sprintf("%d de %d considerados", p.SampleSize, p.Exclusions.Considered)},
		{"origem", fmt.Sprintf("manual %d, ia %d, planner %d", p.SourceMix.Manual, p.SourceMix.AI, p.SourceMix.Planner)},
		{"descartados", fmt.Sprintf("curtos %d, duplicados %d, recomendados %d", p.Exclusions.TooShort, p.Exclusions.Duplicate, p.Exclusions.AdminRecommended)},
	}
	for _, r := range rows {
		fmt.Fprintln(w, labelStyle.Render(r[0])+valueStyle.Render(r[1]))
	}
	if !c.HasEnoughEvidence {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("! menos de %d roteiros, o perfil ainda não é confiável", style.MinSample)))
	}
	for _, g := range c.Guidelines {
		fmt.Fprintln(w, "  - "+g)
	}
	return nil
}

// boxWidth fits the summary box to the terminal, falling back to 80
// columns when stdout is not a terminal.
func boxWidth() int {
	w, _, err := term.GetSize(os.Stdout.Fd())
	if err != nil || w <= 0 {
		w = 80
	}
	return min(w-2, 100)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
