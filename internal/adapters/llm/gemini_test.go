package llm

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"

	"github.com/0xcro3dile/chemed-go/internal/domain/entities"
	"github.com/0xcro3dile/chemed-go/internal/domain/ports"
)

func TestGeminiRequest_MapsRoles(t *testing.T) {
	req := entities.CompletionRequest{
		Messages: []entities.Message{
			{Role: entities.RoleSystem, Content: "persona"},
			{Role: entities.RoleSystem, Content: "notes"},
			{Role: entities.RoleUser, Content: "what is an acid?"},
			{Role: entities.RoleAssistant, Content: "a proton donor"},
			{Role: entities.RoleUser, Content: "and a base?"},
		},
		Temperature: 0.2,
		MaxTokens:   256,
	}

	contents, cfg := geminiRequest(req)

	if len(contents) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(contents))
	}
	if contents[1].Role != string(genai.RoleModel) {
		t.Errorf("assistant turn should map to model, got %s", contents[1].Role)
	}
	if cfg.SystemInstruction == nil || cfg.SystemInstruction.Parts[0].Text != "persona\n\nnotes" {
		t.Errorf("unexpected system instruction: %+v", cfg.SystemInstruction)
	}
	if cfg.MaxOutputTokens != 256 {
		t.Errorf("unexpected max tokens %d", cfg.MaxOutputTokens)
	}
	if cfg.Temperature == nil || *cfg.Temperature != float32(0.2) {
		t.Error("temperature should be set")
	}
}

func TestGeminiRequest_NoSystem(t *testing.T) {
	_, cfg := geminiRequest(entities.CompletionRequest{
		Messages: []entities.Message{{Role: entities.RoleUser, Content: "hi"}},
	})
	if cfg.SystemInstruction != nil {
		t.Error("no system instruction expected")
	}
}

func TestGemini_RequiresKey(t *testing.T) {
	_, err := NewGeminiAdapter(context.Background(), "", "")
	if !errors.Is(err, ports.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}
