package textfeat

import (
	"sort"
	"strings"
)

// CTA categories recognized in captions and scripts.
const (
	CTAComment   = "comment"
	CTASave      = "save"
	CTAShare     = "share"
	CTALike      = "like"
	CTAFollow    = "follow"
	CTAClickLink = "click_link"
)

// CTACategoryNames lists the CTA categories in display order.
func CTACategoryNames() []string {
	return []string{CTAComment, CTASave, CTAShare, CTALike, CTAFollow, CTAClickLink}
}

var ctaPhrases = map[string][]string{
	CTAComment:   {"comenta", "comente", "comentem", "comenta ai", "deixa nos comentarios", "escreve nos comentarios", "me conta", "comment below", "let me know"},
	CTASave:      {"salva", "salve", "salvem", "salva esse", "salva pra depois", "save this", "save for later"},
	CTAShare:     {"compartilha", "compartilhe", "manda pra", "manda esse", "envia pra", "marca aquele", "marca um amigo", "share this", "send this"},
	CTALike:      {"curte", "curta", "deixa o like", "deixa seu like", "da o like", "like this", "hit like"},
	CTAFollow:    {"me segue", "segue o perfil", "siga", "segue pra", "ativa o sininho", "follow me", "follow for more"},
	CTAClickLink: {"link na bio", "clica no link", "clique no link", "acessa o link", "link in bio", "click the link"},
}

var hookPhrases = []string{
	"voce sabia",
	"sabia que",
	"pare de",
	"para de",
	"ninguem te conta",
	"ninguem fala",
	"o segredo",
	"o erro",
	"erros que",
	"o maior erro",
	"a verdade",
	"se voce",
	"voce precisa",
	"voce ainda",
	"descubra",
	"olha isso",
	"presta atencao",
	"nunca mais",
	"como eu",
	"como fazer",
	"o jeito certo",
	"em 30 segundos",
	"did you know",
	"stop doing",
	"the secret",
	"nobody tells you",
	"here is how",
}

var humorStems = map[string]string{
	"kkk":   "kkk",
	"haha":  "haha",
	"hehe":  "haha",
	"rsrs":  "rsrs",
	"lol":   "lol",
	"zoeir": "zoeira",
	"piada": "piada",
}

var humorEmoji = map[rune]string{
	'😂': "emoji_laugh",
	'🤣': "emoji_laugh",
	'😅': "emoji_sweat",
	'🤡': "emoji_clown",
}

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
a o e os as um uma uns umas de do da dos das em no na nos nas por pra para com sem
que se mas ou como quando onde qual quais quem porque pois entao tambem ja ainda so
mais menos muito muita muitos muitas pouco bem mal eu tu ele ela nos vos eles elas
voce voces me te lhe meu minha meus minhas seu sua seus suas nosso nossa isso isto
aquilo esse essa esses essas este esta estes estas aquele aquela ao aos sao foi ser
estar esta estao tem ter fazer faz vai vou era sobre ate depois antes agora aqui ali
la tudo nada cada todo toda todos todas outro outra mesmo mesma nao sim
the and for with that this from your you are was were have has had not but what
when where which who will would could should about into just than then them they
their there these those been being our out all any can its it's
`) {
		stopwords[w] = struct{}{}
	}
}

// IsStopword reports whether a normalized word carries no content.
func IsStopword(w string) bool {
	_, ok := stopwords[w]
	return ok
}

// joinedWords renders text as space-separated normalized words, padded so
// phrase lookups can use plain substring search on word boundaries.
func joinedWords(s string) string {
	return " " + strings.Join(Words(s), " ") + " "
}

// HookPhrases returns the hook phrases found in the opening of s.
func HookPhrases(s string) []string {
	opening := FirstLine(s)
	if sents := Sentences(opening); len(sents) > 0 {
		opening = sents[0]
	}
	text := joinedWords(opening)
	var out []string
	for _, p := range hookPhrases {
		if strings.Contains(text, " "+p+" ") {
			out = append(out, p)
		}
	}
	return out
}

// CTACategories returns the CTA categories whose phrases occur in s, in
// canonical order.
func CTACategories(s string) []string {
	text := joinedWords(s)
	var out []string
	for _, cat := range CTACategoryNames() {
		for _, p := range ctaPhrases[cat] {
			if strings.Contains(text, " "+p+" ") {
				out = append(out, cat)
				break
			}
		}
	}
	return out
}

// HasCTA reports whether any CTA phrase appears in s.
func HasCTA(s string) bool {
	return len(CTACategories(s)) > 0
}

// HumorMarkers returns the distinct humor markers present in s, sorted.
func HumorMarkers(s string) []string {
	seen := make(map[string]struct{})
	for _, w := range Words(s) {
		for stem, marker := range humorStems {
			if strings.HasPrefix(w, stem) {
				seen[marker] = struct{}{}
			}
		}
	}
	for _, r := range s {
		if m, ok := humorEmoji[r]; ok {
			seen[m] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// ContentWords counts words of at least minLen runes that are not stopwords.
func ContentWords(s string, minLen int) map[string]int {
	counts := make(map[string]int)
	for _, w := range Words(s) {
		if len([]rune(w)) < minLen || IsStopword(w) || isNumeric(w) {
			continue
		}
		counts[w]++
	}
	return counts
}

func isNumeric(w string) bool {
	for _, r := range w {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Count is a tallied string with its weight.
type Count struct {
	Value  string  `json:"value"`
	Weight float64 `json:"weight"`
}

// TopN orders a tally by descending weight, ties broken alphabetically,
// and keeps at most n entries.
func TopN(tally map[string]float64, n int) []Count {
	out := make([]Count, 0, len(tally))
	for k, v := range tally {
		out = append(out, Count{Value: k, Weight: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Value < out[j].Value
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Values extracts the tallied strings in order.
func Values(cs []Count) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Value
	}
	return out
}
