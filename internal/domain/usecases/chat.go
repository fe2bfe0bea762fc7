// Package usecases - chat.go answers tutoring prompts.
package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/0xcro3dile/chemed-go/internal/domain/entities"
	"github.com/0xcro3dile/chemed-go/internal/domain/ports"
	"github.com/0xcro3dile/chemed-go/internal/domain/prompts"
	"github.com/0xcro3dile/chemed-go/internal/domain/stoich"
	"github.com/0xcro3dile/chemed-go/internal/domain/topic"
)

// ErrEmptyPrompt is returned for a blank chat prompt.
var ErrEmptyPrompt = errors.New("missing 'prompt' field")

// TopicClassifier decides whether a prompt is in scope.
type TopicClassifier interface {
	IsChemistry(prompt string) bool
}

// ChatOptions tunes the completion call and the local balance guard.
type ChatOptions struct {
	Temperature    float64
	MaxTokens      int
	BalanceTimeout time.Duration
}

// DefaultChatOptions mirrors the production settings.
func DefaultChatOptions() ChatOptions {
	return ChatOptions{
		Temperature:    0.2,
		MaxTokens:      1000,
		BalanceTimeout: 2 * time.Second,
	}
}

// ChatUseCase filters, enriches and answers student prompts.
type ChatUseCase struct {
	classifier TopicClassifier
	balancer   *stoich.Balancer
	llm        ports.LLMService
	search     *QueryUseCase // optional
	opts       ChatOptions
	logger     *zap.Logger
}

// NewChatUseCase creates a ChatUseCase. search may be nil to disable
// retrieval; a nil logger discards logs.
func NewChatUseCase(
	classifier TopicClassifier,
	balancer *stoich.Balancer,
	llm ports.LLMService,
	search *QueryUseCase,
	opts ChatOptions,
	logger *zap.Logger,
) *ChatUseCase {
	def := DefaultChatOptions()
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = def.MaxTokens
	}
	if opts.BalanceTimeout <= 0 {
		opts.BalanceTimeout = def.BalanceTimeout
	}
	if balancer == nil {
		balancer = stoich.NewBalancer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatUseCase{
		classifier: classifier,
		balancer:   balancer,
		llm:        llm,
		search:     search,
		opts:       opts,
		logger:     logger,
	}
}

// chatPlan is a prepared completion plus what the balancer found.
type chatPlan struct {
	request   entities.CompletionRequest
	requested bool
	reaction  *stoich.BalancedReaction
	sources   []entities.Match
}

func (p *chatPlan) header() string {
	return "Balanced equation: " + p.reaction.String() + "\n\n"
}

func (p *chatPlan) unverified() bool {
	return p.requested && p.reaction == nil
}

func (p *chatPlan) response(answer string) *entities.ChatResponse {
	if strings.TrimSpace(answer) == "" {
		answer = prompts.NoResponse
	}
	if p.reaction != nil {
		answer = p.header() + answer
	}
	if p.unverified() {
		answer += "\n\n" + prompts.UnverifiedNote
	}
	return &entities.ChatResponse{
		Answer:   answer,
		OnTopic:  true,
		Reaction: p.reaction,
		Verified: p.reaction != nil,
		Sources:  p.sources,
	}
}

// Chat answers a prompt. Off-topic prompts get a fixed refusal without a
// model call. Balance requests are solved locally first; when that fails
// the model answers unverified and the reply says so.
func (uc *ChatUseCase) Chat(ctx context.Context, req *entities.ChatRequest) (*entities.ChatResponse, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if !uc.classifier.IsChemistry(prompt) {
		return &entities.ChatResponse{Answer: prompts.OffTopic}, nil
	}

	plan := uc.prepare(ctx, req.History, prompt)
	answer, err := uc.llm.Complete(ctx, plan.request)
	if err != nil {
		return nil, fmt.Errorf("generating response: %w", err)
	}
	return plan.response(answer), nil
}

// ChatStream is Chat with the answer delivered token by token. The verified
// equation header and the unverified note arrive as their own tokens.
func (uc *ChatUseCase) ChatStream(ctx context.Context, req *entities.ChatRequest) (<-chan ports.StreamToken, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if !uc.classifier.IsChemistry(prompt) {
		ch := make(chan ports.StreamToken, 1)
		ch <- ports.StreamToken{Content: prompts.OffTopic, Done: true}
		close(ch)
		return ch, nil
	}

	plan := uc.prepare(ctx, req.History, prompt)
	upstream, err := uc.llm.CompleteStream(ctx, plan.request)
	if err != nil {
		return nil, fmt.Errorf("generating response: %w", err)
	}

	out := make(chan ports.StreamToken, 16)
	go func() {
		defer close(out)
		send := func(tok ports.StreamToken) bool {
			select {
			case out <- tok:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if plan.reaction != nil && !send(ports.StreamToken{Content: plan.header()}) {
			return
		}
		for tok := range upstream {
			if tok.Error != nil {
				send(tok)
				return
			}
			if tok.Done {
				if tok.Content != "" && !send(ports.StreamToken{Content: tok.Content}) {
					return
				}
				break
			}
			if !send(tok) {
				return
			}
		}
		if plan.unverified() && !send(ports.StreamToken{Content: "\n\n" + prompts.UnverifiedNote}) {
			return
		}
		send(ports.StreamToken{Done: true})
	}()
	return out, nil
}

// prepare runs the local balancer and retrieval and assembles the messages.
func (uc *ChatUseCase) prepare(ctx context.Context, history []entities.Message, prompt string) *chatPlan {
	plan := &chatPlan{}
	plan.reaction, plan.requested = uc.balance(ctx, prompt)

	if uc.search != nil {
		matches, err := uc.search.Search(ctx, prompt)
		if err != nil {
			uc.logger.Warn("knowledge search failed, answering without context", zap.Error(err))
		} else {
			plan.sources = matches
		}
	}

	msgs := []entities.Message{{Role: entities.RoleSystem, Content: prompts.System}}
	if block := prompts.Context(plan.sources); block != "" {
		msgs = append(msgs, entities.Message{Role: entities.RoleSystem, Content: block})
	}
	if plan.reaction != nil {
		msgs = append(msgs, entities.Message{Role: entities.RoleSystem, Content: prompts.VerifiedEquation(plan.reaction.String())})
	}
	msgs = append(msgs, history...)
	msgs = append(msgs, entities.Message{Role: entities.RoleUser, Content: prompt})

	plan.request = entities.CompletionRequest{
		Messages:    msgs,
		Temperature: uc.opts.Temperature,
		MaxTokens:   uc.opts.MaxTokens,
	}
	return plan
}

// balance reports whether prompt asked for a balance and, if the balancer
// solved it within the guard timeout, the result.
func (uc *ChatUseCase) balance(ctx context.Context, prompt string) (*stoich.BalancedReaction, bool) {
	reaction, ok := topic.ExtractReaction(prompt)
	if !ok {
		return nil, false
	}

	bctx, cancel := context.WithTimeout(ctx, uc.opts.BalanceTimeout)
	defer cancel()

	start := time.Now()
	result, found, err := uc.balancer.BalanceContext(bctx, reaction)
	log := uc.logger.With(zap.String("reaction", reaction), zap.Duration("elapsed", time.Since(start)))
	switch {
	case err != nil:
		log.Info("balance failed, falling back to model", zap.Error(err))
		return nil, true
	case !found:
		log.Info("no balance within bounds, falling back to model")
		return nil, true
	}
	log.Debug("balanced locally", zap.String("equation", result.String()))
	return &result, true
}
