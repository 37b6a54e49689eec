// Package textfeat turns raw caption and script text into the structural
// and linguistic signals used by the profile builders and scorers.
package textfeat

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize strips diacritics, lowercases and collapses whitespace.
func Normalize(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// Words returns the alphanumeric tokens of the normalized text.
func Words(s string) []string {
	return strings.FieldsFunc(Normalize(s), notWordRune)
}

func notWordRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// TokenSet returns the distinct normalized words of s.
func TokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range Words(s) {
		set[w] = struct{}{}
	}
	return set
}

// IndexWord returns the byte offset of the first whole-word occurrence of
// term in text, or -1. Both arguments are expected to be normalized.
func IndexWord(text, term string) int {
	if term == "" {
		return -1
	}
	from := 0
	for from <= len(text)-len(term) {
		i := strings.Index(text[from:], term)
		if i < 0 {
			return -1
		}
		i += from
		if boundaryBefore(text, i) && boundaryAfter(text, i+len(term)) {
			return i
		}
		from = i + 1
	}
	return -1
}

// ContainsWord reports whether term occurs in text as a whole word.
func ContainsWord(text, term string) bool {
	return IndexWord(text, term) >= 0
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r := lastRune(s[:i])
	return notWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	for _, r := range s[i:] {
		return notWordRune(r)
	}
	return true
}

func lastRune(s string) rune {
	rs := []rune(s)
	if len(rs) == 0 {
		return ' '
	}
	return rs[len(rs)-1]
}

// Sentences splits raw text on terminal punctuation and line breaks,
// dropping fragments that carry no words.
func Sentences(s string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		t := strings.TrimSpace(cur.String())
		cur.Reset()
		if t != "" && len(Words(t)) > 0 {
			out = append(out, t)
		}
	}
	for _, r := range s {
		cur.WriteRune(r)
		switch r {
		case '.', '!', '?', '\n', '…':
			flush()
		}
	}
	flush()
	return out
}

// Paragraphs splits text on blank lines.
func Paragraphs(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var out []string
	var cur []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) == "" {
			if len(cur) > 0 {
				out = append(out, strings.Join(cur, "\n"))
				cur = nil
			}
			continue
		}
		cur = append(cur, strings.TrimSpace(line))
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, "\n"))
	}
	return out
}

// FirstLine returns the first non-empty line of s, trimmed.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}

// IsEmoji reports whether r falls in the pictographic ranges counted as emoji.
func IsEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF:
		return true
	case r >= 0x1F000 && r <= 0x1F2FF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r >= 0x2B00 && r <= 0x2BFF:
		return true
	}
	return false
}

// CountEmoji counts emoji runes in s.
func CountEmoji(s string) int {
	n := 0
	for _, r := range s {
		if IsEmoji(r) {
			n++
		}
	}
	return n
}

// Truncate shortens s to at most n runes, appending "..." when cut.
func Truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	if n <= 3 {
		return string(rs[:n])
	}
	return strings.TrimSpace(string(rs[:n-3])) + "..."
}
