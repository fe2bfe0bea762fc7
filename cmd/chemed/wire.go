package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/0xcro3dile/chemed-go/internal/adapters/embedding"
	"github.com/0xcro3dile/chemed-go/internal/adapters/llm"
	"github.com/0xcro3dile/chemed-go/internal/adapters/loader"
	"github.com/0xcro3dile/chemed-go/internal/adapters/vectordb"
	"github.com/0xcro3dile/chemed-go/internal/config"
	"github.com/0xcro3dile/chemed-go/internal/domain/ports"
	"github.com/0xcro3dile/chemed-go/internal/domain/stoich"
	"github.com/0xcro3dile/chemed-go/internal/domain/topic"
	"github.com/0xcro3dile/chemed-go/internal/domain/usecases"
)

func newLLM(ctx context.Context, c *config.Config) (ports.LLMService, error) {
	switch c.LLM.Provider {
	case config.ProviderOpenAI:
		return llm.NewOpenAIAdapter(c.LLM.BaseURL, c.LLM.APIKey, c.LLM.Model), nil
	case config.ProviderGemini:
		return llm.NewGeminiAdapter(ctx, c.LLM.APIKey, c.LLM.Model)
	case config.ProviderOllama:
		return llm.NewOllamaLLMAdapter(c.LLM.BaseURL, c.LLM.Model), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", c.LLM.Provider)
	}
}

// newEmbedder returns nil when embedding is disabled or unconfigured.
func newEmbedder(ctx context.Context, c *config.Config) (ports.EmbeddingService, error) {
	if !c.EmbeddingEnabled() {
		return nil, nil
	}
	switch c.Embedding.Provider {
	case config.ProviderOpenAI:
		return embedding.NewOpenAIAdapter(c.Embedding.BaseURL, c.Embedding.APIKey, c.Embedding.Model), nil
	case config.ProviderGemini:
		return embedding.NewGenAIAdapter(ctx, c.Embedding.APIKey, c.Embedding.Model, c.Embedding.TaskType)
	case config.ProviderOllama:
		return embedding.NewOllamaAdapter(c.Embedding.BaseURL, c.Embedding.Model), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
}

// newStore opens the SQLite store, or an in-memory one when no database
// path is configured. The returned func closes it.
func newStore(c *config.Config) (ports.KnowledgeStore, func() error, error) {
	if c.Knowledge.DatabasePath == "" {
		return vectordb.NewInMemoryStore(), func() error { return nil }, nil
	}
	store, err := vectordb.NewSQLiteStore(c.Knowledge.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

func newBalancer(c *config.Config) *stoich.Balancer {
	return stoich.NewBalancer(
		stoich.WithMaxCoefficient(c.Balancer.MaxCoefficient),
		stoich.WithMaxSideLength(c.Balancer.MaxSideLength),
		stoich.WithCandidateBudget(c.Balancer.CandidateBudget),
	)
}

func chatOptions(c *config.Config) usecases.ChatOptions {
	return usecases.ChatOptions{
		Temperature:    c.LLM.Temperature,
		MaxTokens:      c.LLM.MaxTokens,
		BalanceTimeout: c.GetBalanceTimeout(),
	}
}

func topicConfig(c *config.Config, keywords []string) topic.Config {
	tc := topic.Config{
		Keywords:       keywords,
		FormulaPattern: c.Topic.FormulaPattern,
		SymbolPattern:  c.Topic.SymbolPattern,
	}
	if tc.FormulaPattern == "" {
		tc.FormulaPattern = topic.DefaultFormulaPattern
	}
	if tc.SymbolPattern == "" {
		tc.SymbolPattern = topic.DefaultSymbolPattern
	}
	return tc
}

// loadClassifier builds the topic classifier from the first keyword file
// found, falling back to the built-in list. It returns the file used, or ""
// for the fallback.
func loadClassifier(c *config.Config, log *zap.Logger) (*topic.Classifier, string, error) {
	keywords, path, err := loader.LoadKeywords(loader.KeywordCandidates(c.Topic.KeywordsFile))
	if err != nil {
		return nil, "", fmt.Errorf("loading keywords from %s: %w", path, err)
	}
	if path == "" || len(keywords) == 0 {
		log.Warn("no keyword file found, using fallback keywords", zap.Strings("keywords", topic.FallbackKeywords))
		keywords, path = topic.FallbackKeywords, ""
	} else {
		log.Info("loaded chemistry keywords", zap.String("path", path), zap.Int("count", len(keywords)))
	}

	classifier, err := topic.NewClassifier(topicConfig(c, keywords))
	if err != nil {
		return nil, "", err
	}
	return classifier, path, nil
}
