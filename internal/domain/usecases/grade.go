// Package usecases - grade.go marks free-text answers by embedding similarity.
package usecases

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/0xcro3dile/chemed-go/internal/domain/entities"
	"github.com/0xcro3dile/chemed-go/internal/domain/ports"
)

// GradeUseCase compares a student answer with the expected one.
type GradeUseCase struct {
	embedder ports.EmbeddingService
}

// NewGradeUseCase creates a GradeUseCase.
func NewGradeUseCase(embedder ports.EmbeddingService) *GradeUseCase {
	return &GradeUseCase{embedder: embedder}
}

// Grade embeds both answers concurrently and marks by cosine similarity.
// The question does not affect the mark.
func (uc *GradeUseCase) Grade(ctx context.Context, question, expected, answer string) (*entities.Grade, error) {
	expected = strings.TrimSpace(expected)
	answer = strings.TrimSpace(answer)
	if expected == "" {
		return nil, fmt.Errorf("%w: expected", ErrMissingField)
	}
	if answer == "" {
		return nil, fmt.Errorf("%w: answer", ErrMissingField)
	}

	var embExpected, embAnswer []float32
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		embExpected, err = uc.embedder.Embed(gctx, expected)
		if err != nil {
			return fmt.Errorf("embedding expected answer: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		embAnswer, err = uc.embedder.Embed(gctx, answer)
		if err != nil {
			return fmt.Errorf("embedding student answer: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sim := entities.CosineSimilarity(embExpected, embAnswer)
	marks := MarksFor(sim)
	return &entities.Grade{
		Similarity: sim,
		Marks:      marks,
		Feedback:   FeedbackFor(marks),
	}, nil
}

// MarksFor maps a similarity to marks out of five.
func MarksFor(sim float64) int {
	switch {
	case sim > 0.92:
		return 5
	case sim > 0.85:
		return 4
	case sim > 0.75:
		return 3
	case sim > 0.6:
		return 2
	default:
		return 1
	}
}

// FeedbackFor returns the comment shown with a mark.
func FeedbackFor(marks int) string {
	switch {
	case marks >= 4:
		return "Excellent, concept understood!"
	case marks >= 3:
		return "Good attempt, revise finer details."
	default:
		return "Needs revision: focus on key terms and equations."
	}
}
