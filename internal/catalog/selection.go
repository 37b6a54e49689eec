package catalog

import (
	"sort"
	"strings"
)

// Selection maps dimensions to canonical category ids. A missing key means
// the dimension is unset.
type Selection map[Dimension]string

// Get returns the id for d, or "".
func (s Selection) Get(d Dimension) string {
	if s == nil {
		return ""
	}
	return s[d]
}

// Has reports whether d is set.
func (s Selection) Has(d Dimension) bool {
	return s.Get(d) != ""
}

// Count returns how many dimensions are set.
func (s Selection) Count() int {
	n := 0
	for _, d := range Dimensions() {
		if s.Has(d) {
			n++
		}
	}
	return n
}

// Clone returns an independent copy.
func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	for k, v := range s {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Only returns a copy restricted to the given dimensions.
func (s Selection) Only(dims ...Dimension) Selection {
	out := make(Selection, len(dims))
	for _, d := range dims {
		if v := s.Get(d); v != "" {
			out[d] = v
		}
	}
	return out
}

// Dims returns the set dimensions in canonical order.
func (s Selection) Dims() []Dimension {
	var out []Dimension
	for _, d := range Dimensions() {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// Key renders the selection as a stable string for cache keys.
func (s Selection) Key() string {
	parts := make([]string, 0, 5)
	for _, d := range Dimensions() {
		parts = append(parts, string(d)+"="+s.Get(d))
	}
	return strings.Join(parts, ";")
}

// Canonicalize maps every value through the catalog, dropping values the
// catalog does not know.
func (c *Catalog) Canonicalize(s Selection) Selection {
	out := make(Selection, len(s))
	for d, v := range s {
		if id, ok := c.Normalize(d, v); ok {
			out[d] = id
		}
	}
	return out
}

// Ranked is one entry of a per-dimension performance ranking.
type Ranked struct {
	ID              string  `json:"id"`
	AvgInteractions float64 `json:"avg_interactions"`
	Posts           int     `json:"posts"`
}

// RankedSelection holds, per dimension, categories ordered by mean
// engagement.
type RankedSelection map[Dimension][]Ranked

// Top returns the best ranked id for d, or "".
func (r RankedSelection) Top(d Dimension) string {
	if list := r[d]; len(list) > 0 {
		return list[0].ID
	}
	return ""
}

// MergeRanked canonicalizes raw ranking rows: values that map to the same
// id are merged as a post-weighted mean, results sorted by mean descending
// and cut to limit per dimension.
func (c *Catalog) MergeRanked(raw RankedSelection, limit int) RankedSelection {
	out := make(RankedSelection, len(raw))
	for d, rows := range raw {
		type acc struct {
			sum   float64
			posts int
		}
		byID := make(map[string]*acc)
		for _, row := range rows {
			id, ok := c.Normalize(d, row.ID)
			if !ok {
				continue
			}
			posts := row.Posts
			if posts <= 0 {
				posts = 1
			}
			a := byID[id]
			if a == nil {
				a = &acc{}
				byID[id] = a
			}
			a.sum += row.AvgInteractions * float64(posts)
			a.posts += posts
		}
		list := make([]Ranked, 0, len(byID))
		for id, a := range byID {
			list = append(list, Ranked{ID: id, AvgInteractions: a.sum / float64(a.posts), Posts: a.posts})
		}
		sort.Slice(list, func(i, j int) bool {
			if list[i].AvgInteractions != list[j].AvgInteractions {
				return list[i].AvgInteractions > list[j].AvgInteractions
			}
			return list[i].ID < list[j].ID
		})
		if limit > 0 && len(list) > limit {
			list = list[:limit]
		}
		if len(list) > 0 {
			out[d] = list
		}
	}
	return out
}
