// Package usecases - teacher.go generates question sets for teachers.
package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/0xcro3dile/chemed-go/internal/domain/entities"
	"github.com/0xcro3dile/chemed-go/internal/domain/ports"
	"github.com/0xcro3dile/chemed-go/internal/domain/prompts"
)

// TeacherUseCase asks the model for exam questions with a rubric.
type TeacherUseCase struct {
	llm  ports.LLMService
	opts ChatOptions
}

// NewTeacherUseCase creates a TeacherUseCase.
func NewTeacherUseCase(llm ports.LLMService, opts ChatOptions) *TeacherUseCase {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultChatOptions().MaxTokens
	}
	return &TeacherUseCase{llm: llm, opts: opts}
}

// Questions returns five graded questions on topic for the given grade.
func (uc *TeacherUseCase) Questions(ctx context.Context, grade, topic string) (string, error) {
	grade = strings.TrimSpace(grade)
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", fmt.Errorf("%w: topic", ErrMissingField)
	}
	if grade == "" {
		return "", fmt.Errorf("%w: grade", ErrMissingField)
	}

	text, err := uc.llm.Complete(ctx, entities.CompletionRequest{
		Messages: []entities.Message{
			{Role: entities.RoleSystem, Content: prompts.System},
			{Role: entities.RoleUser, Content: prompts.TeacherQuestions(grade, topic)},
		},
		Temperature: uc.opts.Temperature,
		MaxTokens:   uc.opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generating questions: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return prompts.NoResponse, nil
	}
	return text, nil
}
