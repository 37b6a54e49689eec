// Package sanitize removes identity leakage from generated text: social
// handles, links, e-mail addresses and the model talking about itself.
package sanitize

import (
	"regexp"
	"strings"
)

// Report counts what was removed.
type Report struct {
	Handles        int `json:"handles"`
	Links          int `json:"links"`
	Emails         int `json:"emails"`
	SelfReferences int `json:"self_references"`
}

// Total returns the number of removals.
func (r Report) Total() int {
	return r.Handles + r.Links + r.Emails + r.SelfReferences
}

var (
	emailRe  = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	linkRe   = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s|]+`)
	handleRe = regexp.MustCompile(`(^|[\s(])@[A-Za-z0-9_.]{2,30}`)
	selfRe   = regexp.MustCompile(`(?i)(?:como (?:uma |um )?(?:ia|inteligência artificial|inteligencia artificial|modelo de linguagem|assistente virtual)[,.]?|sou (?:uma |um )?(?:ia|inteligência artificial|inteligencia artificial|modelo de linguagem|assistente virtual)[,.]?|as an ai(?: language model)?[,.]?|i am an ai(?: language model)?[,.]?)`)
	spacesRe = regexp.MustCompile(`[ \t]{2,}`)
)

// Identity strips identity markers from text, preserving line structure.
func Identity(text string) (string, Report) {
	var r Report
	text = emailRe.ReplaceAllStringFunc(text, func(string) string {
		r.Emails++
		return ""
	})
	text = linkRe.ReplaceAllStringFunc(text, func(string) string {
		r.Links++
		return ""
	})
	text = handleRe.ReplaceAllStringFunc(text, func(m string) string {
		r.Handles++
		return handleRe.ReplaceAllString(m, "$1")
	})
	text = selfRe.ReplaceAllStringFunc(text, func(string) string {
		r.SelfReferences++
		return ""
	})
	if r.Total() == 0 {
		return text, r
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		l = spacesRe.ReplaceAllString(l, " ")
		lines[i] = strings.ReplaceAll(strings.TrimRight(l, " \t"), " ,", ",")
	}
	return strings.Join(lines, "\n"), r
}
