package topic

import (
	"regexp"
	"strings"
)

var balanceRequest = regexp.MustCompile(`(?is)\bbalanc(?:e|ing)\b(?:\s+(?:the|this))?(?:\s+(?:chemical\s+)?(?:equation|reaction))?\s*:?\s*(.+)$`)

// ExtractReaction returns the reaction text following a "balance" phrase,
// e.g. "Please balance: H2 + O2 -> H2O." yields "H2 + O2 -> H2O". The
// second result is false when there is no such phrase or the remainder
// has no reaction arrow.
func ExtractReaction(prompt string) (string, bool) {
	m := balanceRequest.FindStringSubmatch(prompt)
	if m == nil {
		return "", false
	}
	reaction := strings.TrimSpace(m[1])
	reaction = strings.TrimRight(reaction, ".?!;")
	reaction = strings.TrimSpace(reaction)
	if !strings.Contains(reaction, "->") && !strings.Contains(reaction, "→") {
		return "", false
	}
	return reaction, true
}
