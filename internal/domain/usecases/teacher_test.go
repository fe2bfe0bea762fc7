package usecases

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/chemed-go/internal/domain/entities"
	"github.com/0xcro3dile/chemed-go/internal/domain/prompts"
)

func TestTeacher_Questions(t *testing.T) {
	llm := &mockLLM{answer: "1. Define a mole. (1 mark)"}
	uc := NewTeacherUseCase(llm, DefaultChatOptions())

	text, err := uc.Questions(context.Background(), "Class 11", "mole concept")
	require.NoError(t, err)
	assert.Equal(t, "1. Define a mole. (1 mark)", text)

	req := llm.last()
	require.Len(t, req.Messages, 2)
	assert.Equal(t, entities.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, prompts.TeacherQuestions("Class 11", "mole concept"), req.Messages[1].Content)
	assert.Equal(t, DefaultChatOptions().MaxTokens, req.MaxTokens)
}

func TestTeacher_MissingFields(t *testing.T) {
	llm := &mockLLM{}
	uc := NewTeacherUseCase(llm, ChatOptions{})

	_, err := uc.Questions(context.Background(), "Class 11", " ")
	assert.ErrorIs(t, err, ErrMissingField)
	_, err = uc.Questions(context.Background(), "", "acids")
	assert.ErrorIs(t, err, ErrMissingField)
	assert.Zero(t, llm.calls())
}

func TestTeacher_EmptyAnswer(t *testing.T) {
	uc := NewTeacherUseCase(&mockLLM{answer: ""}, DefaultChatOptions())

	text, err := uc.Questions(context.Background(), "Class 12", "electrochemistry")
	require.NoError(t, err)
	assert.Equal(t, prompts.NoResponse, text)
}

func TestTeacher_ModelError(t *testing.T) {
	upstream := errors.New("status 429")
	uc := NewTeacherUseCase(&mockLLM{err: upstream}, DefaultChatOptions())

	_, err := uc.Questions(context.Background(), "Class 12", "electrochemistry")
	assert.ErrorIs(t, err, upstream)
}
