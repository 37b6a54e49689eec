// Package catalog holds the closed, versioned enumeration of script
// categories for each dimension and resolves free text against it.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/apresai/reelscript/internal/textfeat"
)

// Dimension is one of the five category axes of a script.
type Dimension string

const (
	Proposal   Dimension = "proposal"
	Context    Dimension = "context"
	Format     Dimension = "format"
	Tone       Dimension = "tone"
	References Dimension = "references"
)

// Dimensions returns every dimension in canonical order.
func Dimensions() []Dimension {
	return []Dimension{Proposal, Context, Format, Tone, References}
}

// ShortVideoFormat is the format every resolved selection is pinned to.
const ShortVideoFormat = "reel"

// Category is one catalog entry. Children are subcategories of the same
// dimension and resolve to their own ids.
type Category struct {
	ID       string     `yaml:"id"`
	Label    string     `yaml:"label"`
	Aliases  []string   `yaml:"aliases"`
	Children []Category `yaml:"children"`
}

type dimensionSpec struct {
	Default      string     `yaml:"default"`
	HumorDefault string     `yaml:"humor_default"`
	Categories   []Category `yaml:"categories"`
}

type catalogFile struct {
	Version    int                         `yaml:"version"`
	Dimensions map[Dimension]dimensionSpec `yaml:"dimensions"`
}

// Term is a matchable text for a category: its id, label or an alias,
// already normalized.
type Term struct {
	ID   string
	Text string
}

// Catalog is an immutable, indexed category catalog.
type Catalog struct {
	Version int

	specs  map[Dimension]dimensionSpec
	terms  map[Dimension][]Term
	index  map[Dimension]map[string]string
	labels map[Dimension]map[string]string
}

//go:embed catalog.yaml
var embedded []byte

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the catalog bundled with the binary.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(embedded)
		if err != nil {
			panic(fmt.Sprintf("catalog: embedded catalog is invalid: %v", err))
		}
		defaultCat = c
	})
	return defaultCat
}

// Load parses and indexes a YAML catalog.
func Load(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c := &Catalog{
		Version: f.Version,
		specs:   make(map[Dimension]dimensionSpec),
		terms:   make(map[Dimension][]Term),
		index:   make(map[Dimension]map[string]string),
		labels:  make(map[Dimension]map[string]string),
	}
	for _, d := range Dimensions() {
		spec, ok := f.Dimensions[d]
		if !ok || len(spec.Categories) == 0 {
			return nil, fmt.Errorf("catalog: dimension %q has no categories", d)
		}
		c.specs[d] = spec
		c.index[d] = make(map[string]string)
		c.labels[d] = make(map[string]string)
		var walk func(cats []Category) error
		walk = func(cats []Category) error {
			for _, cat := range cats {
				if cat.ID == "" {
					return fmt.Errorf("catalog: %s entry without id", d)
				}
				c.labels[d][cat.ID] = cat.Label
				for _, text := range append([]string{cat.ID, cat.Label}, cat.Aliases...) {
					c.addTerm(d, cat.ID, text)
				}
				if err := walk(cat.Children); err != nil {
					return err
				}
			}
			return nil
		}
		if err := walk(spec.Categories); err != nil {
			return nil, err
		}
		if _, ok := c.labels[d][spec.Default]; !ok {
			return nil, fmt.Errorf("catalog: %s default %q is not a category", d, spec.Default)
		}
		if spec.HumorDefault != "" {
			if _, ok := c.labels[d][spec.HumorDefault]; !ok {
				return nil, fmt.Errorf("catalog: %s humor default %q is not a category", d, spec.HumorDefault)
			}
		}
	}
	return c, nil
}

func (c *Catalog) addTerm(d Dimension, id, text string) {
	key := Key(text)
	if key == "" {
		return
	}
	if _, dup := c.index[d][key]; !dup {
		c.index[d][key] = id
	}
	norm := textfeat.Normalize(text)
	for _, t := range c.terms[d] {
		if t.Text == norm {
			return
		}
	}
	c.terms[d] = append(c.terms[d], Term{ID: id, Text: norm})
	// ids written with underscores are also matched in their spaced form
	if spaced := strings.ReplaceAll(norm, "_", " "); spaced != norm {
		c.terms[d] = append(c.terms[d], Term{ID: id, Text: spaced})
	}
}

// Key folds a category value into its comparison form: normalized, with
// underscores and hyphens treated as spaces.
func Key(s string) string {
	s = textfeat.Normalize(s)
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// Terms returns the flattened matchable terms for a dimension.
func (c *Catalog) Terms(d Dimension) []Term {
	return c.terms[d]
}

// Normalize maps an id, label or alias to its canonical id.
func (c *Catalog) Normalize(d Dimension, value string) (string, bool) {
	id, ok := c.index[d][Key(value)]
	return id, ok
}

// Label returns the display label for an id, or the id itself.
func (c *Catalog) Label(d Dimension, id string) string {
	if l, ok := c.labels[d][id]; ok && l != "" {
		return l
	}
	return id
}

// Variants returns the comparison keys that normalize to id, plus the
// lowercased label, sorted. Stores use them to match raw values.
func (c *Catalog) Variants(d Dimension, id string) []string {
	seen := map[string]bool{}
	for key, target := range c.index[d] {
		if target == id {
			seen[key] = true
		}
	}
	if l := c.labels[d][id]; l != "" {
		seen[strings.ToLower(l)] = true
	}
	if len(seen) == 0 {
		seen[Key(id)] = true
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Has reports whether id is a canonical id of d.
func (c *Catalog) Has(d Dimension, id string) bool {
	_, ok := c.labels[d][id]
	return ok
}

// DefaultFor returns the fixed fallback category of a dimension.
func (c *Catalog) DefaultFor(d Dimension) string {
	return c.specs[d].Default
}

// HumorDefaultFor returns the humor-flavored default of a dimension, if any.
func (c *Catalog) HumorDefaultFor(d Dimension) string {
	return c.specs[d].HumorDefault
}

// Equivalent reports whether two raw category values denote the same
// category, tolerating label, alias, underscore and spacing variants.
func (c *Catalog) Equivalent(d Dimension, a, b string) bool {
	ia, oka := c.Normalize(d, a)
	ib, okb := c.Normalize(d, b)
	if oka && okb {
		return ia == ib
	}
	return Key(a) != "" && Key(a) == Key(b)
}
