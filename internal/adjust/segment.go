package adjust

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/apresai/reelscript/internal/contract"
)

// ErrScopeNotFound is returned when the targeted scene or paragraph does not
// exist in the script.
var ErrScopeNotFound = errors.New("adjust: scope not found")

// SegmentKind is the unit a segment covers.
type SegmentKind string

const (
	SegmentScene     SegmentKind = "scene"
	SegmentParagraph SegmentKind = "paragraph"
)

// Segment is a byte range of a script. Text is script[Start:End] and never
// carries leading or trailing whitespace. Heading is the scene heading line
// for scene segments.
type Segment struct {
	Kind    SegmentKind `json:"kind"`
	Index   int         `json:"index"`
	Start   int         `json:"start"`
	End     int         `json:"end"`
	Text    string      `json:"text"`
	Heading string      `json:"heading,omitempty"`
}

var headingLineRe = regexp.MustCompile(`(?im)^[ \t]*(?:#+[ \t]*|\*\*[ \t]*)?\[?[ \t]*(?:cena|scene)[ \t]*(\d+)\b[^\n]*$`)

// Resolve locates the segment t addresses in text. ok is false when t is not
// a scoped target or the index does not exist.
func Resolve(text string, t Target) (Segment, bool) {
	switch t.Kind {
	case TargetScene:
		return findScene(Scenes(text), t.Index)
	case TargetParagraph:
		return nth(Paragraphs(text), t.Index)
	case TargetFirstParagraph:
		return nth(Paragraphs(text), 1)
	case TargetLastParagraph:
		paras := Paragraphs(text)
		return nth(paras, len(paras))
	}
	return Segment{}, false
}

func findScene(scenes []Segment, idx int) (Segment, bool) {
	for _, s := range scenes {
		if headingNumber(s.Heading) == idx {
			return s, true
		}
	}
	return nth(scenes, idx)
}

func nth(segs []Segment, idx int) (Segment, bool) {
	if idx < 1 || idx > len(segs) {
		return Segment{}, false
	}
	return segs[idx-1], true
}

func headingNumber(line string) int {
	m := headingLineRe.FindStringSubmatch(line)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// Scenes splits text at scene heading lines. Each scene runs from its
// heading to the next heading, the closing wrapper token or the end of text.
func Scenes(text string) []Segment {
	locs := headingLineRe.FindAllStringIndex(text, -1)
	limit := len(text)
	if i := strings.LastIndex(text, contract.CloseToken); i >= 0 {
		limit = i
	}
	var out []Segment
	for i, loc := range locs {
		if loc[0] >= limit {
			break
		}
		end := limit
		if i+1 < len(locs) && locs[i+1][0] < limit {
			end = locs[i+1][0]
		}
		start, stop := trimRange(text, loc[0], end)
		out = append(out, Segment{
			Kind:    SegmentScene,
			Index:   len(out) + 1,
			Start:   start,
			End:     stop,
			Text:    text[start:stop],
			Heading: strings.TrimSpace(text[loc[0]:loc[1]]),
		})
	}
	return out
}

// Paragraphs splits text on blank lines. Wrapper token lines count as
// breaks so they never end up inside a paragraph.
func Paragraphs(text string) []Segment {
	var out []Segment
	start, end := -1, -1
	flush := func() {
		if start >= 0 {
			out = append(out, Segment{
				Kind:  SegmentParagraph,
				Index: len(out) + 1,
				Start: start,
				End:   end,
				Text:  text[start:end],
			})
		}
		start, end = -1, -1
	}
	pos := 0
	for pos <= len(text) {
		nl := strings.IndexByte(text[pos:], '\n')
		lineEnd := len(text)
		if nl >= 0 {
			lineEnd = pos + nl
		}
		line := text[pos:lineEnd]
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed == contract.OpenToken || trimmed == contract.CloseToken {
			flush()
		} else {
			s, e := trimRange(text, pos, lineEnd)
			if start < 0 {
				start = s
			}
			end = e
		}
		if nl < 0 {
			break
		}
		pos = lineEnd + 1
	}
	flush()
	return out
}

func trimRange(text string, start, end int) (int, int) {
	for start < end && isSpace(text[start]) {
		start++
	}
	for end > start && isSpace(text[end-1]) {
		end--
	}
	return start, end
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// Merge replaces seg in text with replacement. Everything outside
// [seg.Start, seg.End) is kept byte for byte. A scene replacement without
// a heading line gets the original heading back.
func Merge(text string, seg Segment, replacement string) string {
	rep := strings.TrimSpace(replacement)
	rep = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(rep, contract.OpenToken), contract.CloseToken))
	if seg.Kind == SegmentScene && seg.Heading != "" {
		rep = withHeading(rep, seg.Heading)
	}
	return text[:seg.Start] + rep + text[seg.End:]
}

func withHeading(rep, heading string) string {
	first, rest, _ := strings.Cut(rep, "\n")
	if headingLineRe.MatchString(first) {
		if headingNumber(first) == headingNumber(heading) {
			return rep
		}
		return heading + "\n" + rest
	}
	if rep == "" {
		return heading
	}
	return heading + "\n" + rep
}

// Surroundings returns up to n bytes of text before and after seg, cut at
// line boundaries, for use as revision context.
func Surroundings(text string, seg Segment, n int) (before, after string) {
	before = text[:seg.Start]
	if len(before) > n {
		before = before[len(before)-n:]
		if i := strings.IndexByte(before, '\n'); i >= 0 {
			before = before[i+1:]
		}
	}
	after = text[seg.End:]
	if len(after) > n {
		after = after[:n]
		if i := strings.LastIndexByte(after, '\n'); i >= 0 {
			after = after[:i]
		}
	}
	return strings.TrimSpace(before), strings.TrimSpace(after)
}
