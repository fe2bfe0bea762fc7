package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/0xcro3dile/chemed-go/internal/adapters/loader"
	"github.com/0xcro3dile/chemed-go/internal/domain/entities"
	"github.com/0xcro3dile/chemed-go/internal/domain/stoich"
	"github.com/0xcro3dile/chemed-go/internal/domain/usecases"
)

var (
	exportPath    string
	gradeQuestion string
)

var balanceCmd = &cobra.Command{
	Use:   "balance [reaction]",
	Short: "Balance a chemical equation locally",
	Long: `Searches small integer coefficients that conserve every element.

Example:
  chemed balance "Fe + O2 -> Fe2O3"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBalance,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Embed the built-in reference facts into the knowledge store",
	Args:  cobra.NoArgs,
	RunE:  runSeed,
}

var gradeCmd = &cobra.Command{
	Use:   "grade [expected] [answer]",
	Short: "Mark a free-text answer against the expected one",
	Args:  cobra.ExactArgs(2),
	RunE:  runGrade,
}

func runBalance(cmd *cobra.Command, args []string) error {
	reaction := strings.Join(args, " ")
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.GetBalanceTimeout())
	defer cancel()

	b := newBalancer(cfg)
	result, found, err := b.BalanceContext(ctx, reaction)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no balance found for %q with coefficients up to %d and at most %d formulas per side",
			reaction, b.MaxCoefficient(), b.MaxSideLength())
	}
	for _, t := range append(append([]stoich.Term(nil), result.Left...), result.Right...) {
		logger.Debug("balanced term", zap.Int("coef", t.Coefficient), zap.String("formula", t.Formula),
			zap.Stringer("atoms", stoich.ParseFormula(t.Formula)))
	}
	fmt.Fprintln(cmd.OutOrStdout(), result.String())
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	if embedder == nil {
		return fmt.Errorf("embedding is disabled; configure embedding.provider and its API key")
	}
	store, closeStore, err := newStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	ingest := usecases.NewIngestUseCase(embedder, store, cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap)
	n, err := ingest.Seed(ctx)
	if err != nil {
		return fmt.Errorf("seeding after %d documents: %w", n, err)
	}
	logger.Info("seeded knowledge", zap.Int("documents", n), zap.String("db", cfg.Knowledge.DatabasePath))

	if exportPath == "" {
		return nil
	}
	vectors, err := embedder.EmbedBatch(ctx, usecases.SeedTexts)
	if err != nil {
		return fmt.Errorf("embedding seed texts: %w", err)
	}
	passages := make([]entities.Passage, len(vectors))
	for i, v := range vectors {
		passages[i] = entities.Passage{Text: usecases.SeedTexts[i], Embedding: v}
	}
	if err := loader.NewEmbeddingFileLoader().Save(exportPath, passages); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d embeddings to %s\n", len(passages), exportPath)
	return nil
}

func runGrade(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	if embedder == nil {
		return fmt.Errorf("embedding is disabled; configure embedding.provider and its API key")
	}

	g, err := usecases.NewGradeUseCase(embedder).Grade(ctx, gradeQuestion, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "similarity %.3f, marks %d/5: %s\n", g.Similarity, g.Marks, g.Feedback)
	return nil
}
