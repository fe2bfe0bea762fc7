package prompts

import (
	"strings"
	"testing"

	"github.com/0xcro3dile/chemed-go/internal/domain/entities"
)

func TestContext_Empty(t *testing.T) {
	if Context(nil) != "" {
		t.Error("no matches should produce no context block")
	}
}

func TestContext_ListsPassages(t *testing.T) {
	out := Context([]entities.Match{
		{Passage: entities.Passage{Text: "Oxidation is loss of electrons."}},
		{Passage: entities.Passage{Text: "Reduction is gain of electrons."}},
	})
	if !strings.Contains(out, "- Oxidation is loss of electrons.\n") || !strings.Contains(out, "- Reduction") {
		t.Errorf("unexpected context: %q", out)
	}
}

func TestTeacherQuestions(t *testing.T) {
	p := TeacherQuestions("Class 11", "mole concept")
	if !strings.Contains(p, `"mole concept"`) || !strings.Contains(p, "Class 11") {
		t.Errorf("prompt missing inputs: %s", p)
	}
}

func TestVerifiedEquation(t *testing.T) {
	if !strings.Contains(VerifiedEquation("2H2 + O2 -> 2H2O"), "2H2 + O2 -> 2H2O") {
		t.Error("equation must be quoted verbatim")
	}
}
