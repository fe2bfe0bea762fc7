package entities

import (
	"testing"

	"github.com/0xcro3dile/chemed-go/internal/domain/stoich"
)

func TestChatResponse_EquationWhenVerified(t *testing.T) {
	r, found, err := stoich.NewBalancer().Balance("H2 + O2 -> H2O")
	if err != nil || !found {
		t.Fatalf("balance failed: found=%v err=%v", found, err)
	}

	resp := ChatResponse{Answer: "ok", Reaction: &r, Verified: true}
	if resp.Equation() != "2H2 + O2 -> 2H2O" {
		t.Errorf("unexpected equation: %q", resp.Equation())
	}
}

func TestChatResponse_EquationEmptyWithoutReaction(t *testing.T) {
	resp := ChatResponse{Answer: "unverified"}
	if resp.Equation() != "" {
		t.Errorf("expected empty equation, got %q", resp.Equation())
	}
}

func TestMessage_Roles(t *testing.T) {
	sys := Message{Role: RoleSystem, Content: "tutor"}
	user := Message{Role: RoleUser, Content: "what is a mole?"}

	if sys.Role != "system" || user.Role != "user" || RoleAssistant != "assistant" {
		t.Error("roles must match the chat completion wire values")
	}
}

func TestMatch_Score(t *testing.T) {
	m := Match{
		Passage: Passage{ID: "p1", Text: "pH measures hydrogen ion concentration"},
		Score:   0.95,
		Source:  "seed",
	}
	if m.Score < 0.9 {
		t.Error("expected high score")
	}
}
