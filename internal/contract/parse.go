package contract

import (
	"regexp"
	"strings"

	"github.com/apresai/reelscript/internal/textfeat"
)

var (
	looseSceneRe = regexp.MustCompile(`(?i)^\s*(?:#+\s*|\*\*\s*)?\[?\s*cena\s*(\d+)\s*(?:[:\-–—.)]\s*(.*?))?\s*\]?(?:\s*\*\*)?\s*$`)
	labelRe      = regexp.MustCompile(`^\s*[-*•]?\s*\**([^:*]{3,40}?)\**\s*:\s*(.*)$`)
	separatorRe  = regexp.MustCompile(`^\|?\s*:?-{3,}`)
)

var labelFields = map[string]Field{
	"tempo":                  FieldTime,
	"duracao":                FieldTime,
	"time":                   FieldTime,
	"enquadramento":          FieldFraming,
	"camera":                 FieldFraming,
	"plano":                  FieldFraming,
	"acao":                   FieldAction,
	"acao/movimento":         FieldAction,
	"movimento":              FieldAction,
	"acao e movimento":       FieldAction,
	"texto na tela":          FieldOnScreen,
	"texto":                  FieldOnScreen,
	"legenda na tela":        FieldOnScreen,
	"fala":                   FieldSpeech,
	"fala (literal)":         FieldSpeech,
	"fala literal":           FieldSpeech,
	"roteiro falado":         FieldSpeech,
	"narracao":               FieldSpeech,
	"direcao":                FieldDirection,
	"direcao de performance": FieldDirection,
	"performance":            FieldDirection,
	"interpretacao":          FieldDirection,
}

type parsedScene struct {
	scene   Scene
	present FieldSet
}

// Parse reads any script text: canonical, loosely structured with scene
// headings and labeled fields, or plain paragraphs. Fields that were not
// found are left empty.
func Parse(text string) []Scene {
	if scenes, ok := ParseCanonical(text); ok {
		return scenes
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(strings.ReplaceAll(text, OpenToken, ""), CloseToken, "")

	if parsed := parseSceneBlocks(text); len(parsed) > 0 {
		out := make([]Scene, len(parsed))
		for i, p := range parsed {
			out[i] = p.scene
		}
		return out
	}

	var out []Scene
	for _, para := range textfeat.Paragraphs(text) {
		speech := strings.Join(strings.Fields(para), " ")
		if len(textfeat.Words(speech)) == 0 {
			continue
		}
		out = append(out, Scene{Speech: speech})
	}
	return out
}

func parseSceneBlocks(text string) []parsedScene {
	var out []parsedScene
	var cur *parsedScene
	var loose []string
	flushLoose := func() {
		if cur != nil && len(loose) > 0 && !cur.present.Has(FieldSpeech) {
			cur.scene.Speech = strings.Join(loose, " ")
			cur.present.Add(FieldSpeech)
		}
		loose = nil
	}
	for _, line := range strings.Split(text, "\n") {
		if m := looseSceneRe.FindStringSubmatch(line); m != nil {
			flushLoose()
			out = append(out, parsedScene{})
			cur = &out[len(out)-1]
			if h, ok := ParseHeading(m[2]); ok {
				cur.scene.Heading = h
			}
			continue
		}
		if cur == nil {
			continue
		}
		t := strings.TrimSpace(line)
		switch {
		case t == "":
			continue
		case strings.HasPrefix(t, "|"):
			if t == HeaderRow || separatorRe.MatchString(t) || isHeaderLike(t) {
				continue
			}
			if cells, ok := splitRow(t); ok {
				for i, f := range Fields() {
					if cells[i] != "" {
						cur.scene.Set(f, cells[i])
						cur.present.Add(f)
					}
				}
			}
		default:
			if m := labelRe.FindStringSubmatch(t); m != nil {
				if f, ok := labelFields[textfeat.Normalize(m[1])]; ok {
					v := strings.Trim(strings.TrimSpace(m[2]), `"“”`)
					if v != "" {
						cur.scene.Set(f, v)
						cur.present.Add(f)
					}
					continue
				}
			}
			loose = append(loose, strings.Trim(t, `"“”`))
		}
	}
	flushLoose()
	return out
}

func isHeaderLike(row string) bool {
	n := textfeat.Normalize(row)
	return strings.Contains(n, "tempo") && strings.Contains(n, "enquadramento")
}
