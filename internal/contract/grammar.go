// Package contract defines the canonical technical script, converts any
// text into it and scores the result.
package contract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/apresai/reelscript/internal/textfeat"
)

// Wrapper tokens of a canonical script.
const (
	OpenToken  = "[ROTEIRO_TECNICO]"
	CloseToken = "[/ROTEIRO_TECNICO]"
)

// HeaderRow and SeparatorRow precede every scene's data row.
const (
	HeaderRow    = "| Tempo | Enquadramento | Ação/Movimento | Texto na tela | Fala (literal) | Direção de performance |"
	SeparatorRow = "| --- | --- | --- | --- | --- | --- |"
)

// Heading names a scene's role.
type Heading string

const (
	Gancho       Heading = "GANCHO"
	Contexto     Heading = "CONTEXTO"
	Demonstracao Heading = "DEMONSTRAÇÃO"
	Prova        Heading = "PROVA"
	Reforco      Heading = "REFORÇO"
	CTA          Heading = "CTA"
)

// HeadingSequence returns the heading order for a script of n scenes,
// clamped to the 4..6 range.
func HeadingSequence(n int) []Heading {
	switch {
	case n <= MinScenes:
		return []Heading{Gancho, Contexto, Demonstracao, CTA}
	case n == 5:
		return []Heading{Gancho, Contexto, Demonstracao, Prova, CTA}
	default:
		return []Heading{Gancho, Contexto, Demonstracao, Prova, Reforco, CTA}
	}
}

var headingAliases = map[string]Heading{
	"gancho":          Gancho,
	"hook":            Gancho,
	"abertura":        Gancho,
	"contexto":        Contexto,
	"problema":        Contexto,
	"context":         Contexto,
	"demonstracao":    Demonstracao,
	"demo":            Demonstracao,
	"solucao":         Demonstracao,
	"desenvolvimento": Demonstracao,
	"prova":           Prova,
	"prova social":    Prova,
	"resultado":       Prova,
	"reforco":         Reforco,
	"recapitulacao":   Reforco,
	"resumo":          Reforco,
	"cta":             CTA,
	"chamada":         CTA,
	"fechamento":      CTA,
	"call to action":  CTA,
}

// ParseHeading maps a heading label, in any casing or accentuation, to a
// canonical heading.
func ParseHeading(s string) (Heading, bool) {
	h, ok := headingAliases[textfeat.Normalize(strings.Trim(s, " *#:-"))]
	return h, ok
}

// Field identifies one of the six row columns.
type Field uint8

const (
	FieldTime Field = iota
	FieldFraming
	FieldAction
	FieldOnScreen
	FieldSpeech
	FieldDirection
	fieldCount
)

// Fields lists the columns in row order.
func Fields() []Field {
	return []Field{FieldTime, FieldFraming, FieldAction, FieldOnScreen, FieldSpeech, FieldDirection}
}

var fieldNames = [...]string{"time", "framing", "action", "on_screen", "speech", "direction"}

func (f Field) String() string {
	if int(f) < len(fieldNames) {
		return fieldNames[f]
	}
	return "field" + strconv.Itoa(int(f))
}

// FieldSet is a set of fields.
type FieldSet uint8

// Add includes f.
func (s *FieldSet) Add(f Field) { *s |= 1 << f }

// Has reports whether f is included.
func (s FieldSet) Has(f Field) bool { return s&(1<<f) != 0 }

// Len returns the number of fields included.
func (s FieldSet) Len() int {
	n := 0
	for _, f := range Fields() {
		if s.Has(f) {
			n++
		}
	}
	return n
}

// All reports whether every field is included.
func (s FieldSet) All() bool { return s.Len() == int(fieldCount) }

// Names lists the included field names.
func (s FieldSet) Names() []string {
	var out []string
	for _, f := range Fields() {
		if s.Has(f) {
			out = append(out, f.String())
		}
	}
	return out
}

// Scene is one shootable beat. Synthesized records which fields were
// filled in by the engine rather than written by the model or creator.
type Scene struct {
	Heading     Heading
	Time        string
	Framing     string
	Action      string
	OnScreen    string
	Speech      string
	Direction   string
	Synthesized FieldSet
}

// Get returns the value of f.
func (s *Scene) Get(f Field) string {
	switch f {
	case FieldTime:
		return s.Time
	case FieldFraming:
		return s.Framing
	case FieldAction:
		return s.Action
	case FieldOnScreen:
		return s.OnScreen
	case FieldSpeech:
		return s.Speech
	case FieldDirection:
		return s.Direction
	}
	return ""
}

// Set assigns the value of f.
func (s *Scene) Set(f Field, v string) {
	switch f {
	case FieldTime:
		s.Time = v
	case FieldFraming:
		s.Framing = v
	case FieldAction:
		s.Action = v
	case FieldOnScreen:
		s.OnScreen = v
	case FieldSpeech:
		s.Speech = v
	case FieldDirection:
		s.Direction = v
	}
}

// Draft is a titled script.
type Draft struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// cell makes a value safe for a single table cell.
func cell(v string) string {
	v = strings.ReplaceAll(v, "|", "/")
	return strings.Join(strings.Fields(v), " ")
}

// SceneLine renders the heading line of scene n (1-based).
func SceneLine(n int, h Heading) string {
	return fmt.Sprintf("[CENA %d: %s]", n, h)
}

// RenderScene renders one scene block without the trailing blank line.
func RenderScene(n int, s Scene) string {
	var b strings.Builder
	b.WriteString(SceneLine(n, s.Heading))
	b.WriteByte('\n')
	b.WriteString(HeaderRow)
	b.WriteByte('\n')
	b.WriteString(SeparatorRow)
	b.WriteByte('\n')
	b.WriteString("|")
	for _, f := range Fields() {
		b.WriteString(" ")
		b.WriteString(cell(s.Get(f)))
		b.WriteString(" |")
	}
	return b.String()
}

// Render produces the canonical text for scenes.
func Render(scenes []Scene) string {
	blocks := make([]string, len(scenes))
	for i, s := range scenes {
		blocks[i] = RenderScene(i+1, s)
	}
	return OpenToken + "\n" + strings.Join(blocks, "\n\n") + "\n" + CloseToken
}

var (
	sceneLineRe = regexp.MustCompile(`^\[CENA (\d+): ([^\]]+)\]$`)
	timeCodeRe  = regexp.MustCompile(`^\d+-\d+s$`)
)

// ParseCanonical parses text that follows the canonical grammar exactly.
// ok is false on any deviation.
func ParseCanonical(text string) (scenes []Scene, ok bool) {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if !strings.HasPrefix(text, OpenToken+"\n") || !strings.HasSuffix(text, "\n"+CloseToken) {
		return nil, false
	}
	body := strings.TrimSuffix(strings.TrimPrefix(text, OpenToken+"\n"), "\n"+CloseToken)
	for i, block := range strings.Split(body, "\n\n") {
		lines := strings.Split(block, "\n")
		if len(lines) != 4 || lines[1] != HeaderRow || lines[2] != SeparatorRow {
			return nil, false
		}
		m := sceneLineRe.FindStringSubmatch(lines[0])
		if m == nil || m[1] != strconv.Itoa(i+1) {
			return nil, false
		}
		h, known := ParseHeading(m[2])
		if !known {
			return nil, false
		}
		cells, rowOK := splitRow(lines[3])
		if !rowOK {
			return nil, false
		}
		s := Scene{Heading: h}
		for j, f := range Fields() {
			s.Set(f, cells[j])
		}
		scenes = append(scenes, s)
	}
	return scenes, true
}

// IsCanonical reports whether text parses as a canonical script with a
// valid scene count.
func IsCanonical(text string) bool {
	scenes, ok := ParseCanonical(text)
	return ok && len(scenes) >= MinScenes && len(scenes) <= MaxScenes
}

// splitRow splits a markdown table row into exactly six trimmed cells.
func splitRow(line string) ([]string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "|") || !strings.HasSuffix(line, "|") || len(line) < 2 {
		return nil, false
	}
	parts := strings.Split(line[1:len(line)-1], "|")
	if len(parts) != int(fieldCount) {
		return nil, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, true
}
