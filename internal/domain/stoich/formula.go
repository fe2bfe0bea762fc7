// Package stoich balances chemical equations with small integer coefficients.
// Pure domain logic: no I/O, no shared state, safe for concurrent use.
package stoich

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// elementPattern matches one element symbol and its optional count.
var elementPattern = regexp.MustCompile(`([A-Z][a-z]?)(\d*)`)

// Formula maps an element symbol to the number of atoms of that element in
// one formula unit. Elements that are absent count as zero.
type Formula map[string]int

// MaxAtomCount is the largest per-element count a formula may carry.
// Larger counts make the formula invalid.
const MaxAtomCount = 1_000_000

// ParseFormula scans s left to right for element symbols followed by an
// optional count. Repeated symbols are summed. Anything that is not a symbol
// or a count (parentheses, charges, hydrate dots) is skipped, so a string
// without a single symbol yields an empty Formula rather than an error.
// A count above MaxAtomCount also yields an empty Formula.
func ParseFormula(s string) Formula {
	f, ok := parseFormula(s)
	if !ok {
		return Formula{}
	}
	return f
}

// parseFormula is ParseFormula reporting whether every count was in range.
func parseFormula(s string) (Formula, bool) {
	out := make(Formula)
	for _, m := range elementPattern.FindAllStringSubmatch(s, -1) {
		n := 1
		if m[2] != "" {
			v, err := strconv.Atoi(m[2])
			if err != nil || v > MaxAtomCount {
				return nil, false
			}
			n = v
		}
		if n == 0 {
			continue
		}
		out[m[1]] += n
		if out[m[1]] > MaxAtomCount {
			return nil, false
		}
	}
	return out, true
}

// Elements returns the element symbols in f, sorted.
func (f Formula) Elements() []string {
	out := make([]string, 0, len(f))
	for e := range f {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// String renders f with symbols in alphabetical order and counts of one
// elided: {H:2, O:1} -> "H2O".
func (f Formula) String() string {
	var sb strings.Builder
	for _, e := range f.Elements() {
		sb.WriteString(e)
		if n := f[e]; n != 1 {
			sb.WriteString(strconv.Itoa(n))
		}
	}
	return sb.String()
}
