package stoich

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Arrow separates reactants from products.
const Arrow = "->"

// unicodeArrow is accepted as an equivalent spelling of Arrow.
const unicodeArrow = "→"

// ErrMalformedReaction is matched by every *MalformedReactionError.
var ErrMalformedReaction = errors.New("malformed reaction")

// MalformedReactionError reports reaction text that cannot be split into two
// sides of non-empty formula tokens.
type MalformedReactionError struct {
	Reaction string
	Reason   string
}

func (e *MalformedReactionError) Error() string {
	return fmt.Sprintf("malformed reaction %q: %s", e.Reaction, e.Reason)
}

// Is lets errors.Is(err, ErrMalformedReaction) match.
func (e *MalformedReactionError) Is(target error) bool {
	return target == ErrMalformedReaction
}

// SplitReaction splits reaction text on its single arrow and each side on
// "+". Tokens are trimmed and returned in input order.
func SplitReaction(reaction string) (left, right []string, err error) {
	normalized := strings.ReplaceAll(reaction, unicodeArrow, Arrow)

	if n := strings.Count(normalized, Arrow); n != 1 {
		return nil, nil, &MalformedReactionError{
			Reaction: reaction,
			Reason:   fmt.Sprintf("expected exactly one %q, found %d", Arrow, n),
		}
	}

	sides := strings.SplitN(normalized, Arrow, 2)
	left, err = splitSide(reaction, "left", sides[0])
	if err != nil {
		return nil, nil, err
	}
	right, err = splitSide(reaction, "right", sides[1])
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func splitSide(reaction, name, side string) ([]string, error) {
	parts := strings.Split(side, "+")
	tokens := make([]string, len(parts))
	for i, p := range parts {
		tok := strings.TrimSpace(p)
		if tok == "" {
			return nil, &MalformedReactionError{
				Reaction: reaction,
				Reason:   fmt.Sprintf("empty formula on %s side at position %d", name, i+1),
			}
		}
		tokens[i] = tok
	}
	return tokens, nil
}

// Term is one formula token with its stoichiometric coefficient.
type Term struct {
	Coefficient int    `json:"coef"`
	Formula     string `json:"formula"`
}

// String renders the term with a coefficient of one elided.
func (t Term) String() string {
	if t.Coefficient == 1 {
		return t.Formula
	}
	return strconv.Itoa(t.Coefficient) + t.Formula
}

// BalancedReaction holds both sides of a reaction with the coefficients
// that conserve every element. Terms keep the order of the input text.
type BalancedReaction struct {
	Left  []Term `json:"left"`
	Right []Term `json:"right"`
}

// String renders the reaction as "2H2 + O2 -> 2H2O".
func (r BalancedReaction) String() string {
	return joinTerms(r.Left) + " " + Arrow + " " + joinTerms(r.Right)
}

// Conserved recomputes atom totals for both sides and reports whether they
// agree for every element. Invalid formulas or totals that overflow int are
// never conserved.
func (r BalancedReaction) Conserved() bool {
	left, ok := sideTotals(r.Left)
	if !ok {
		return false
	}
	right, ok := sideTotals(r.Right)
	if !ok || len(left) != len(right) {
		return false
	}
	for e, n := range left {
		if right[e] != n {
			return false
		}
	}
	return true
}

func sideTotals(terms []Term) (map[string]int, bool) {
	totals := make(map[string]int)
	for _, t := range terms {
		f, ok := parseFormula(t.Formula)
		if !ok || t.Coefficient < 1 {
			return nil, false
		}
		for e, n := range f {
			if n > (math.MaxInt-totals[e])/t.Coefficient {
				return nil, false
			}
			totals[e] += t.Coefficient * n
		}
	}
	return totals, true
}

func joinTerms(terms []Term) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, " + ")
}
