package usecases

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarksFor(t *testing.T) {
	tests := []struct {
		sim  float64
		want int
	}{
		{1.0, 5},
		{0.93, 5},
		{0.92, 4},
		{0.86, 4},
		{0.85, 3},
		{0.76, 3},
		{0.75, 2},
		{0.61, 2},
		{0.6, 1},
		{0.0, 1},
		{-0.5, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MarksFor(tt.sim), "sim=%v", tt.sim)
	}
}

func TestFeedbackFor(t *testing.T) {
	assert.Equal(t, "Excellent, concept understood!", FeedbackFor(5))
	assert.Equal(t, "Excellent, concept understood!", FeedbackFor(4))
	assert.Equal(t, "Good attempt, revise finer details.", FeedbackFor(3))
	assert.Equal(t, "Needs revision: focus on key terms and equations.", FeedbackFor(2))
	assert.Equal(t, "Needs revision: focus on key terms and equations.", FeedbackFor(1))
}

func TestGrade_IdenticalAnswers(t *testing.T) {
	uc := NewGradeUseCase(&mockEmbedder{})

	g, err := uc.Grade(context.Background(), "Define pH", "negative log of H+ concentration", "negative log of H+ concentration")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, g.Similarity, 1e-6)
	assert.Equal(t, 5, g.Marks)
	assert.Equal(t, "Excellent, concept understood!", g.Feedback)
}

func TestGrade_OrthogonalAnswers(t *testing.T) {
	embedder := &mockEmbedder{embedFn: func(text string) ([]float32, error) {
		if text == "expected" {
			return []float32{1, 0}, nil
		}
		return []float32{0, 1}, nil
	}}
	uc := NewGradeUseCase(embedder)

	g, err := uc.Grade(context.Background(), "q", "expected", "unrelated")
	require.NoError(t, err)
	assert.InDelta(t, 0.0, g.Similarity, 1e-9)
	assert.Equal(t, 1, g.Marks)
}

func TestGrade_EmbedsBothAnswers(t *testing.T) {
	embedder := &mockEmbedder{}
	uc := NewGradeUseCase(embedder)

	_, err := uc.Grade(context.Background(), "q", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 2, embedder.calls)
}

func TestGrade_MissingFields(t *testing.T) {
	uc := NewGradeUseCase(&mockEmbedder{})

	_, err := uc.Grade(context.Background(), "q", "", "answer")
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = uc.Grade(context.Background(), "q", "expected", "   ")
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestGrade_EmbeddingError(t *testing.T) {
	quota := errors.New("quota exceeded")
	uc := NewGradeUseCase(&mockEmbedder{embedFn: func(string) ([]float32, error) { return nil, quota }})

	_, err := uc.Grade(context.Background(), "q", "expected", "answer")
	assert.ErrorIs(t, err, quota)
}
