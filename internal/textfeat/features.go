package textfeat

import "strings"

// Cadence captures how text mass is distributed across a piece: the size
// of the opening paragraph, the mean size of the middle ones and the size of
// the closing paragraph, in characters.
type Cadence struct {
	Opening float64 `json:"opening" dynamodbav:"opening"`
	Middle  float64 `json:"middle" dynamodbav:"middle"`
	Closing float64 `json:"closing" dynamodbav:"closing"`
}

// Features is the full signal set extracted from a piece of text.
type Features struct {
	Normalized        string
	WordCount         int
	SentenceCount     int
	ParagraphCount    int
	AvgSentenceLength float64
	EmojiCount        int
	EmojiDensity      float64
	QuestionRate      float64
	ExclamationRate   float64
	Cadence           Cadence
	Hooks             []string
	CTAs              []string
	HumorMarkers      []string
	Vocabulary        map[string]int
}

// Empty reports whether the text carried no words at all.
func (f Features) Empty() bool {
	return f.WordCount == 0
}

// Extract computes every signal for s.
func Extract(s string) Features {
	f := Features{Normalized: Normalize(s)}
	words := Words(s)
	f.WordCount = len(words)
	if f.WordCount == 0 {
		return f
	}

	sentences := Sentences(s)
	f.SentenceCount = len(sentences)
	if f.SentenceCount > 0 {
		f.AvgSentenceLength = float64(f.WordCount) / float64(f.SentenceCount)
		var q, e int
		for _, sent := range sentences {
			if strings.ContainsRune(sent, '?') {
				q++
			}
			if strings.ContainsRune(sent, '!') {
				e++
			}
		}
		f.QuestionRate = float64(q) / float64(f.SentenceCount)
		f.ExclamationRate = float64(e) / float64(f.SentenceCount)
	}

	f.EmojiCount = CountEmoji(s)
	f.EmojiDensity = float64(f.EmojiCount) / float64(f.WordCount)

	paras := Paragraphs(s)
	f.ParagraphCount = len(paras)
	f.Cadence = cadenceOf(paras)

	f.Hooks = HookPhrases(s)
	f.CTAs = CTACategories(s)
	f.HumorMarkers = HumorMarkers(s)
	f.Vocabulary = ContentWords(s, 4)
	return f
}

func cadenceOf(paras []string) Cadence {
	var c Cadence
	n := len(paras)
	if n == 0 {
		return c
	}
	c.Opening = float64(len([]rune(paras[0])))
	if n == 1 {
		return c
	}
	c.Closing = float64(len([]rune(paras[n-1])))
	if n > 2 {
		total := 0
		for _, p := range paras[1 : n-1] {
			total += len([]rune(p))
		}
		c.Middle = float64(total) / float64(n-2)
	}
	return c
}
