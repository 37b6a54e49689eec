package contract

import (
	"fmt"
	"strings"

	"github.com/apresai/reelscript/internal/textfeat"
)

// Objective is the inferred goal of a script.
type Objective string

const (
	ObjectiveConvert   Objective = "convert"
	ObjectiveAuthority Objective = "authority"
	ObjectiveEngage    Objective = "engage"
	ObjectiveEducate   Objective = "educate"
)

var objectiveKeywords = []struct {
	objective Objective
	words     []string
}{
	{ObjectiveConvert, []string{"vender", "venda", "vendas", "comprar", "compra", "produto", "curso", "oferta", "lancamento", "converter", "conversao", "leads", "clientes", "link", "mentoria"}},
	{ObjectiveAuthority, []string{"autoridade", "especialista", "referencia", "credibilidade", "posicionamento", "confianca", "bastidores"}},
	{ObjectiveEngage, []string{"engajamento", "engajar", "comentarios", "comentar", "interacao", "viralizar", "viral", "alcance", "seguidores", "compartilhar"}},
	{ObjectiveEducate, []string{"ensinar", "aprender", "explicar", "dicas", "dica", "tutorial", "passo", "como", "guia"}},
}

// InferObjective picks the objective whose keywords occur most in text.
// Ties resolve in declaration order; no hits means educate.
func InferObjective(text string) Objective {
	words := textfeat.Words(text)
	set := make(map[string]int, len(words))
	for _, w := range words {
		set[w]++
	}
	best, bestHits := ObjectiveEducate, 0
	for _, ok := range objectiveKeywords {
		hits := 0
		for _, w := range ok.words {
			hits += set[w]
		}
		if hits > bestHits {
			best, bestHits = ok.objective, hits
		}
	}
	return best
}

const (
	defaultTopic  = "esse assunto"
	maxTopicWords = 6
)

var topicMarkers = map[string]bool{"sobre": true, "about": true, "tema": true}

var topicStops = map[string]bool{
	"com": true, "usando": true, "para": true, "pra": true, "tom": true, "formato": true,
	"estilo": true, "focado": true, "mas": true, "que": true, "em": true, "no": true, "na": true,
}

// InferTopic extracts a short topic from a request: the words after
// "sobre", or else the leading content words, or a neutral default.
func InferTopic(prompt string) string {
	fields := strings.Fields(prompt)
	for i, f := range fields {
		if !topicMarkers[textfeat.Normalize(strings.Trim(f, ",.;:!?"))] {
			continue
		}
		var words []string
		for _, w := range fields[i+1:] {
			clean := strings.TrimRight(w, ",.;:!?")
			if topicStops[textfeat.Normalize(clean)] || len(words) >= maxTopicWords {
				break
			}
			words = append(words, clean)
			if clean != w {
				break
			}
		}
		if len(words) > 0 {
			return strings.Join(words, " ")
		}
	}
	var words []string
	for _, w := range fields {
		n := textfeat.Normalize(strings.Trim(w, ",.;:!?"))
		if len([]rune(n)) < 4 || textfeat.IsStopword(n) || isRequestWord(n) {
			continue
		}
		words = append(words, strings.Trim(w, ",.;:!?"))
		if len(words) == 3 {
			break
		}
	}
	if len(words) == 0 {
		return defaultTopic
	}
	return strings.ToLower(strings.Join(words, " "))
}

var requestWords = map[string]bool{
	"roteiro": true, "crie": true, "criar": true, "faca": true, "fazer": true, "quero": true,
	"gere": true, "gerar": true, "escreva": true, "video": true, "reel": true, "reels": true,
}

func isRequestWord(w string) bool { return requestWords[w] }

// synthesizer fills scenes from topic and objective.
type synthesizer struct {
	topic     string
	objective Objective
}

func (sy synthesizer) value(h Heading, f Field) string {
	t := sy.topic
	switch f {
	case FieldFraming:
		switch h {
		case Gancho, CTA:
			return "Close no rosto, câmera na altura dos olhos"
		case Demonstracao:
			return "Plano detalhe nas mãos e na tela do celular"
		case Prova:
			return "Plano médio com o resultado aparecendo ao lado"
		case Reforco:
			return "Close médio, câmera levemente abaixo dos olhos"
		default:
			return "Plano médio, fundo limpo e bem iluminado"
		}
	case FieldAction:
		switch h {
		case Gancho:
			return "Entra no quadro olhando direto para a lente e aponta para o texto na tela"
		case Contexto:
			return "Conta nos dedos os 3 sinais do problema enquanto dá 2 passos para frente"
		case Demonstracao:
			return "Mostra o passo 1, o passo 2 e o passo 3 na tela, apontando cada um com o dedo"
		case Prova:
			return "Segura o celular ao lado do rosto mostrando o resultado de 30 dias"
		case Reforco:
			return "Repete o gesto do passo principal e acena com a cabeça no fim da frase"
		default:
			return "Aponta para baixo em direção à legenda e segura 2 segundos no final"
		}
	case FieldOnScreen:
		switch h {
		case Gancho:
			return fmt.Sprintf("%s: o erro que quase todo mundo comete", capitalize(t))
		case Contexto:
			return "Por que isso acontece"
		case Demonstracao:
			return "Passo 1 → Passo 2 → Passo 3"
		case Prova:
			return "Resultado real em 30 dias"
		case Reforco:
			return "Guarda isso: o passo certo na ordem certa"
		default:
			return ctaOnScreen[sy.objective]
		}
	case FieldSpeech:
		switch h {
		case Gancho:
			return fmt.Sprintf("Se você ainda faz %s do jeito difícil, presta atenção agora: existe um atalho simples.", t)
		case Contexto:
			return fmt.Sprintf("Você já percebeu que %s trava sempre no mesmo ponto? Isso acontece porque ninguém mostra o primeiro passo.", t)
		case Demonstracao:
			return "Faz assim: primeiro você separa o essencial, depois testa por sete dias e no fim ajusta o que não funcionou."
		case Prova:
			return "Eu testei esse método por trinta dias e você consegue ver aqui a diferença no resultado."
		case Reforco:
			return "Então lembra: você não precisa de mais tempo, precisa do passo certo na ordem certa."
		default:
			return fmt.Sprintf(ctaSpeech[sy.objective], t)
		}
	case FieldDirection:
		switch h {
		case Gancho:
			return "Tom enérgico, pausa curta depois de 'agora'"
		case Contexto:
			return "Ritmo calmo, olhar firme para a lente"
		case Demonstracao:
			return "Fala didática, uma frase por passo"
		case Prova:
			return "Tom confiante, sorriso leve ao mostrar o resultado"
		case Reforco:
			return "Desacelera e pausa antes da última palavra"
		default:
			return "Sorriso no final, tom de convite"
		}
	}
	return ""
}

var ctaOnScreen = map[Objective]string{
	ObjectiveConvert:   "Link na bio",
	ObjectiveAuthority: "Siga para mais",
	ObjectiveEngage:    "Comenta aqui embaixo",
	ObjectiveEducate:   "Salva pra revisar",
}

var ctaSpeech = map[Objective]string{
	ObjectiveConvert:   "Se você quer o material completo sobre %s, clica no link na bio agora e começa hoje.",
	ObjectiveAuthority: "Me segue pra aprender mais sobre %s toda semana e salva esse vídeo pra você consultar depois.",
	ObjectiveEngage:    "Comenta aqui embaixo qual foi o seu maior desafio com %s, eu respondo todo mundo.",
	ObjectiveEducate:   "Salva esse vídeo pra você revisar depois e manda pra alguém que precisa aprender %s.",
}

// scene synthesizes a whole scene.
func (sy synthesizer) scene(h Heading) Scene {
	s := Scene{Heading: h}
	for _, f := range Fields() {
		if f == FieldTime {
			continue
		}
		s.Set(f, sy.value(h, f))
		s.Synthesized.Add(f)
	}
	s.Synthesized.Add(FieldTime)
	return s
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	return strings.ToUpper(string(r[:1])) + string(r[1:])
}
