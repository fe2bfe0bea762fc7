package stoich

import (
	"context"
	"math"
)

const (
	// DefaultMaxCoefficient bounds every coefficient tried by the search.
	DefaultMaxCoefficient = 10

	// DefaultMaxSideLength is the largest number of formulas per side the
	// search will attempt. Longer sides are reported as not found.
	DefaultMaxSideLength = 4

	// cancelCheckInterval is how many candidates run between context checks.
	cancelCheckInterval = 4096
)

// Option configures a Balancer.
type Option func(*Balancer)

// WithMaxCoefficient sets the largest coefficient tried. Values below one
// are ignored.
func WithMaxCoefficient(n int) Option {
	return func(b *Balancer) {
		if n >= 1 {
			b.maxCoeff = n
		}
	}
}

// WithMaxSideLength sets the largest number of formulas per side. Values
// below one are ignored.
func WithMaxSideLength(n int) Option {
	return func(b *Balancer) {
		if n >= 1 {
			b.maxSide = n
		}
	}
}

// WithCandidateBudget caps the number of coefficient assignments tested per
// call. An exhausted budget is reported as not found. Zero means no cap.
func WithCandidateBudget(n int) Option {
	return func(b *Balancer) {
		if n >= 0 {
			b.budget = n
		}
	}
}

// Balancer finds small positive integer coefficients that conserve atoms
// across a reaction arrow by bounded brute-force search.
//
// A Balancer holds only its bounds and may be shared between goroutines.
type Balancer struct {
	maxCoeff int
	maxSide  int
	budget   int

	// observe is called once per tested candidate. Tests only.
	observe func()
}

// NewBalancer returns a Balancer using the default bounds unless overridden.
func NewBalancer(opts ...Option) *Balancer {
	b := &Balancer{
		maxCoeff: DefaultMaxCoefficient,
		maxSide:  DefaultMaxSideLength,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// MaxCoefficient returns the largest coefficient the search tries.
func (b *Balancer) MaxCoefficient() int { return b.maxCoeff }

// MaxSideLength returns the largest number of formulas allowed per side.
func (b *Balancer) MaxSideLength() int { return b.maxSide }

// Balance is BalanceContext with a background context.
func (b *Balancer) Balance(reaction string) (BalancedReaction, bool, error) {
	return b.BalanceContext(context.Background(), reaction)
}

// BalanceContext balances reaction text of the form "A + B -> C + D".
//
// Malformed text returns an error wrapping ErrMalformedReaction. When no
// assignment within the bounds balances, found is false and err is nil.
// Otherwise the first balancing assignment is returned, where left
// coefficients vary slowest and each side is enumerated lexicographically
// from all ones. A cancelled ctx returns ctx.Err().
func (b *Balancer) BalanceContext(ctx context.Context, reaction string) (result BalancedReaction, found bool, err error) {
	left, right, err := SplitReaction(reaction)
	if err != nil {
		return BalancedReaction{}, false, err
	}
	if len(left) > b.maxSide || len(right) > b.maxSide {
		return BalancedReaction{}, false, nil
	}

	parsed := make(map[string]Formula, len(left)+len(right))
	for _, tok := range append(append([]string(nil), left...), right...) {
		if _, ok := parsed[tok]; ok {
			continue
		}
		f, ok := parseFormula(tok)
		if !ok {
			// A count we cannot represent; dropping it would fake a balance.
			return BalancedReaction{}, false, nil
		}
		parsed[tok] = f
	}

	idx := newElementIndex(parsed, left, right)
	if idx.size() == 0 {
		// Nothing recognisable on either side; refuse to call that balanced.
		return BalancedReaction{}, false, nil
	}
	leftRows := idx.rows(parsed, left)
	rightRows := idx.rows(parsed, right)
	if !b.fits(leftRows) || !b.fits(rightRows) {
		return BalancedReaction{}, false, nil
	}

	lc := ones(len(left))
	rc := ones(len(right))
	lv := make([]int, idx.size())
	rv := make([]int, idx.size())

	tested := 0
	for {
		// The left vector only changes with the left assignment.
		accumulate(lv, leftRows, lc)

		fill(rc, 1)
		for {
			if b.budget > 0 && tested >= b.budget {
				return BalancedReaction{}, false, nil
			}
			tested++
			if tested%cancelCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return BalancedReaction{}, false, err
				}
			}
			if b.observe != nil {
				b.observe()
			}

			accumulate(rv, rightRows, rc)
			if equal(lv, rv) {
				return BalancedReaction{
					Left:  terms(left, lc),
					Right: terms(right, rc),
				}, true, nil
			}
			if !advance(rc, b.maxCoeff) {
				break
			}
		}
		if !advance(lc, b.maxCoeff) {
			break
		}
	}
	return BalancedReaction{}, false, nil
}

// elementIndex assigns each element a dense position in balance vectors, in
// order of first appearance.
type elementIndex map[string]int

func newElementIndex(parsed map[string]Formula, sides ...[]string) elementIndex {
	idx := make(elementIndex)
	for _, side := range sides {
		for _, tok := range side {
			for _, e := range parsed[tok].Elements() {
				if _, ok := idx[e]; !ok {
					idx[e] = len(idx)
				}
			}
		}
	}
	return idx
}

func (idx elementIndex) size() int { return len(idx) }

// rows returns one per-element count vector for each token.
func (idx elementIndex) rows(parsed map[string]Formula, tokens []string) [][]int {
	out := make([][]int, len(tokens))
	for i, tok := range tokens {
		row := make([]int, len(idx))
		for e, n := range parsed[tok] {
			row[idx[e]] = n
		}
		out[i] = row
	}
	return out
}

// fits reports whether every side total stays within int when all
// coefficients are at maxCoeff. Totals only grow with coefficients, so the
// search cannot overflow when this holds.
func (b *Balancer) fits(rows [][]int) bool {
	if len(rows) == 0 {
		return true
	}
	for e := range rows[0] {
		total := 0
		for _, row := range rows {
			if row[e] > math.MaxInt-total {
				return false
			}
			total += row[e]
		}
		if total > math.MaxInt/b.maxCoeff {
			return false
		}
	}
	return true
}

// accumulate overwrites v with the sum of coef[i]*rows[i].
func accumulate(v []int, rows [][]int, coef []int) {
	fill(v, 0)
	for i, row := range rows {
		c := coef[i]
		for e, n := range row {
			v[e] += c * n
		}
	}
}

// advance steps c to the next assignment in lexicographic order, last
// position fastest. It reports false after the final assignment.
func advance(c []int, limit int) bool {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i] < limit {
			c[i]++
			return true
		}
		c[i] = 1
	}
	return false
}

func equal(a, b []int) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func ones(n int) []int {
	c := make([]int, n)
	fill(c, 1)
	return c
}

func fill(v []int, x int) {
	for i := range v {
		v[i] = x
	}
}

func terms(tokens []string, coef []int) []Term {
	out := make([]Term, len(tokens))
	for i, tok := range tokens {
		out[i] = Term{Coefficient: coef[i], Formula: tok}
	}
	return out
}
