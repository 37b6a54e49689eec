package pipeline

import (
	"fmt"
	"strings"

	"github.com/apresai/reelscript/internal/adjust"
	"github.com/apresai/reelscript/internal/catalog"
	"github.com/apresai/reelscript/internal/contract"
	"github.com/apresai/reelscript/internal/textfeat"
)

const grammarRules = `FORMATO OBRIGATÓRIO DO CAMPO "content" (roteiro técnico):
[ROTEIRO_TECNICO]
[CENA 1: GANCHO]
| Tempo | Enquadramento | Ação/Movimento | Texto na tela | Fala (literal) | Direção de performance |
| --- | --- | --- | --- | --- | --- |
| 0-3s | ... | ... | ... | ... | ... |

[CENA 2: CONTEXTO]
...
[/ROTEIRO_TECNICO]

REGRAS DO FORMATO:
1. Entre 4 e 6 cenas, numeradas em ordem, separadas por uma linha em branco
2. Títulos de cena possíveis: GANCHO, CONTEXTO, DEMONSTRAÇÃO, PROVA, REFORÇO, CTA; a última cena é sempre CTA
3. Cada cena tem exatamente uma linha de dados com as seis colunas preenchidas
4. "Fala (literal)" é exatamente o que a pessoa diz para a câmera, em primeira pessoa, nunca uma instrução
5. Não use "|" dentro das células`

const identityRules = `SEGURANÇA DE IDENTIDADE:
- Não inclua @perfis, links, e-mails ou telefones
- Não copie legendas de referência; use-as só como sinal de estilo e desempenho
- Nunca diga que é uma IA, um assistente ou um modelo de linguagem
- Não invente nomes de marcas, pessoas ou números que a criadora não tenha dado`

const outputRules = `SAÍDA:
Retorne SOMENTE JSON válido, sem cercas de markdown e sem texto antes ou depois:
{"title": "título curto do roteiro", "content": "roteiro técnico completo"}`

const generateSystemPrompt = `Você é roteirista de vídeos curtos (reels) para criadores de conteúdo brasileiros. Escreve em português do Brasil, com falas naturais, curtas e faladas, prontas para gravar.

` + grammarRules + `

` + identityRules + `

` + outputRules

const adjustSystemPrompt = `Você revisa roteiros de vídeos curtos (reels) em português do Brasil. Aplica exatamente o pedido de ajuste e preserva a voz, o tema e o que não foi pedido para mudar.

` + grammarRules + `

` + identityRules + `

` + outputRules

const scopedSystemPrompt = `Você revisa UM trecho de um roteiro de vídeo curto em português do Brasil. Reescreva apenas o trecho indicado, no mesmo formato em que ele veio (se for uma cena com tabela, devolva a cena com o mesmo título e a tabela de uma linha). Não reescreva o resto do roteiro.

` + identityRules + `

SAÍDA:
Retorne SOMENTE JSON válido: {"content": "trecho revisado"}`

// buildContextBlock renders the intelligence context for the model.
func buildContextBlock(ic *IntelligenceContext, cat *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("CONTEXTO DE INTELIGÊNCIA\n")

	b.WriteString("Categorias:\n")
	for _, d := range catalog.Dimensions() {
		id := ic.Resolution.Final.Get(d)
		if id == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s", d, cat.Label(d, id))
		if src := ic.Resolution.Sources[d]; src != "" {
			fmt.Fprintf(&b, " (%s)", src)
		}
		b.WriteByte('\n')
	}

	n := ic.Intent.Narrative
	if n.WantsHumor || n.WantsEngagement || n.SubjectHint != "" {
		b.WriteString("Intenção:\n")
		if n.SubjectHint != "" {
			fmt.Fprintf(&b, "- assunto: %s\n", n.SubjectHint)
		}
		if n.WantsHumor {
			b.WriteString("- tom com humor\n")
		}
		if n.WantsEngagement {
			b.WriteString("- foco em engajamento (comentários, salvamentos, compartilhamentos)\n")
		}
	}

	b.WriteString("DNA da criadora (legendas):\n")
	for _, g := range ic.DNA.WritingGuidelines {
		fmt.Fprintf(&b, "- %s\n", g)
	}
	if len(ic.DNA.OpeningPatterns) > 0 {
		fmt.Fprintf(&b, "- aberturas frequentes: %s\n", strings.Join(ic.DNA.OpeningPatterns, "; "))
	}
	if len(ic.DNA.RecurringExpressions) > 0 {
		fmt.Fprintf(&b, "- expressões recorrentes: %s\n", strings.Join(ic.DNA.RecurringExpressions, ", "))
	}

	if ic.Style.Available {
		b.WriteString("Estilo de roteiro da criadora:\n")
		for _, g := range ic.Style.Guidelines {
			fmt.Fprintf(&b, "- %s\n", g)
		}
		for i, ex := range ic.Style.Examples {
			if i == 3 {
				break
			}
			fmt.Fprintf(&b, "  exemplo %d: %s\n", i+1, textfeat.Truncate(oneLine(ex), 280))
		}
	}

	if len(ic.Evidence.Captions) > 0 {
		fmt.Fprintf(&b, "Conteúdos de melhor desempenho (%s):\n", ic.Evidence.Strategy)
		for i, c := range ic.Evidence.Captions {
			if i == maxEvidenceInPrompt {
				break
			}
			fmt.Fprintf(&b, "- [%d interações] %s\n", c.Interactions, textfeat.Truncate(oneLine(c.Text), 220))
		}
	}
	return b.String()
}

func buildGeneratePrompt(prompt string, ic *IntelligenceContext, cat *catalog.Catalog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PEDIDO DA CRIADORA:\n%s\n\n", clip(prompt))
	b.WriteString(buildContextBlock(ic, cat))
	b.WriteString("\nEscreva o roteiro técnico completo seguindo o formato obrigatório.")
	return b.String()
}

func buildAdjustPrompt(prompt, title, content string, scope adjust.Scope, ic *IntelligenceContext, cat *catalog.Catalog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PEDIDO DE AJUSTE:\n%s\n\n", clip(prompt))
	if scope.Mode == adjust.ModeRewriteFull {
		b.WriteString("Modo: reescrever o roteiro inteiro, mantendo o tema.\n\n")
	} else {
		b.WriteString("Modo: aplicar o ajuste e manter o restante o mais intacto possível.\n\n")
	}
	if title != "" {
		fmt.Fprintf(&b, "TÍTULO ATUAL: %s\n\n", title)
	}
	fmt.Fprintf(&b, "ROTEIRO ATUAL:\n%s\n\n", content)
	b.WriteString(buildContextBlock(ic, cat))
	return b.String()
}

func buildScopedPrompt(prompt, content string, seg adjust.Segment, target adjust.Target) string {
	before, after := adjust.Surroundings(content, seg, ContextWindow)
	var b strings.Builder
	fmt.Fprintf(&b, "PEDIDO DE AJUSTE (%s):\n%s\n\n", target.Describe(), clip(prompt))
	if before != "" {
		fmt.Fprintf(&b, "TEXTO ANTES (não alterar):\n%s\n\n", before)
	}
	fmt.Fprintf(&b, "TRECHO A REVISAR:\n%s\n\n", seg.Text)
	if after != "" {
		fmt.Fprintf(&b, "TEXTO DEPOIS (não alterar):\n%s\n\n", after)
	}
	if seg.Heading != "" {
		fmt.Fprintf(&b, "Mantenha o título da cena: %s\n", seg.Heading)
	}
	if strings.Contains(seg.Text, contract.SeparatorRow) {
		b.WriteString("Devolva a cena com o título, o cabeçalho da tabela, o separador e uma linha de dados.\n")
	}
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clip(s string) string {
	return textfeat.Truncate(strings.TrimSpace(s), maxPromptRunes)
}
