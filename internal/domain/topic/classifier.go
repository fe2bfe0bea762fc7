// Package topic decides whether a prompt is about chemistry and pulls
// balancing requests out of free text.
package topic

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
)

// FallbackKeywords is used when no keyword file can be found.
var FallbackKeywords = []string{"atom", "molecule", "bond", "reaction", "acid", "base", "ion", "chemical"}

const (
	// DefaultFormulaPattern matches formula-like tokens such as NaCl or H2SO4.
	DefaultFormulaPattern = `\b(?:[A-Z][a-z]?\d{0,3}){2,}\b`

	// DefaultSymbolPattern matches characters that only appear in SMILES input.
	DefaultSymbolPattern = `[#=/\\@]`
)

// Config is the input to NewClassifier.
type Config struct {
	Keywords       []string
	FormulaPattern string // empty disables formula matching
	SymbolPattern  string // empty disables symbol matching
}

// Classifier holds compiled keyword and pattern matchers. It is never
// modified after construction and is safe for concurrent use.
type Classifier struct {
	keywords []string
	matchers []*regexp.Regexp
	formula  *regexp.Regexp
	symbol   *regexp.Regexp
}

// NewClassifier normalizes keywords (lowercase, trimmed, deduplicated) and
// compiles one whole-word matcher per keyword.
func NewClassifier(cfg Config) (*Classifier, error) {
	seen := make(map[string]struct{}, len(cfg.Keywords))
	var kws []string
	for _, kw := range cfg.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		kws = append(kws, kw)
	}
	sort.Strings(kws)

	c := &Classifier{keywords: kws, matchers: make([]*regexp.Regexp, len(kws))}
	for i, kw := range kws {
		c.matchers[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
	}

	var err error
	if cfg.FormulaPattern != "" {
		if c.formula, err = regexp.Compile(cfg.FormulaPattern); err != nil {
			return nil, fmt.Errorf("compiling formula pattern: %w", err)
		}
	}
	if cfg.SymbolPattern != "" {
		if c.symbol, err = regexp.Compile(cfg.SymbolPattern); err != nil {
			return nil, fmt.Errorf("compiling symbol pattern: %w", err)
		}
	}
	return c, nil
}

// IsChemistry reports whether prompt mentions a keyword, a formula-like
// token or a SMILES symbol.
func (c *Classifier) IsChemistry(prompt string) bool {
	text := strings.ToLower(prompt)
	for _, m := range c.matchers {
		if m.MatchString(text) {
			return true
		}
	}
	if c.formula != nil && c.formula.MatchString(prompt) {
		return true
	}
	if c.symbol != nil && c.symbol.MatchString(prompt) {
		return true
	}
	return false
}

// Size returns the number of distinct keywords.
func (c *Classifier) Size() int { return len(c.keywords) }

// Keywords returns a copy of the normalized keyword list.
func (c *Classifier) Keywords() []string {
	return append([]string(nil), c.keywords...)
}

// Holder publishes the current Classifier. Reloads replace the pointer;
// readers never see a partially built classifier.
type Holder struct {
	current atomic.Pointer[Classifier]
}

// NewHolder returns a Holder serving c.
func NewHolder(c *Classifier) *Holder {
	h := &Holder{}
	h.current.Store(c)
	return h
}

// Load returns the classifier in use.
func (h *Holder) Load() *Classifier { return h.current.Load() }

// Swap installs c and returns the previous classifier.
func (h *Holder) Swap(c *Classifier) *Classifier { return h.current.Swap(c) }

// IsChemistry delegates to the current classifier.
func (h *Holder) IsChemistry(prompt string) bool { return h.Load().IsChemistry(prompt) }
