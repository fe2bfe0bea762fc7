// Package prompts holds the tutor's prompt text.
package prompts

import (
	"fmt"
	"strings"

	"github.com/0xcro3dile/chemed-go/internal/domain/entities"
)

// System is the tutor persona sent with every chat completion.
const System = `You are Chem-Ed Genius, a helpful, precise, exam-focused chemistry tutor. ALWAYS:
- Use LaTeX for formulas and \ce{...} for chemical notation.
- Provide IUPAC-compliant names and verify stoichiometry.
- Do NOT invent novel reagents or unsafe lab procedures.
- If asked for mechanisms, show clear steps and mark uncertain steps.
- When returning reactions, format them plainly, e.g. 2H2 + O2 -> 2H2O.
- If you give equations, ensure atoms balance. If not confident, state conditions.
- Keep responses compact, factual and encouraging.`

// OffTopic is returned without calling the model for non-chemistry prompts.
const OffTopic = "I'm Chem-Ed Genius, and I answer only chemistry topics like atoms, molecules, bonding, reactions, spectroscopy and balancing equations."

// NoResponse replaces an empty completion.
const NoResponse = "No response from model."

// UnverifiedNote is appended when a balance was requested but the local
// balancer could not confirm one.
const UnverifiedNote = "Note: this balance could not be verified automatically; check the atom counts yourself."

// VerifiedEquation tells the model which balanced form to explain.
func VerifiedEquation(equation string) string {
	return fmt.Sprintf("The balanced equation, verified by atom counting, is: %s\nUse exactly these coefficients and explain how each element balances.", equation)
}

// Context renders knowledge matches as a reference block.
func Context(matches []entities.Match) string {
	if len(matches) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Reference notes (use only if relevant):\n")
	for _, m := range matches {
		fmt.Fprintf(&sb, "- %s\n", m.Passage.Text)
	}
	return sb.String()
}

// TeacherQuestions asks for a graded question set.
func TeacherQuestions(grade, topic string) string {
	return fmt.Sprintf(`Generate 5 exam-style questions (increasing difficulty) on %q for %s. Provide answers and a rubric (1-5 marks each). Use NCERT style where relevant.`, topic, grade)
}
