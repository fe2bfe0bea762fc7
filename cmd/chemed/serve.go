package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/0xcro3dile/chemed-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/chemed-go/internal/adapters/loader"
	"github.com/0xcro3dile/chemed-go/internal/adapters/pubchem"
	"github.com/0xcro3dile/chemed-go/internal/adapters/rdkit"
	"github.com/0xcro3dile/chemed-go/internal/config"
	"github.com/0xcro3dile/chemed-go/internal/domain/ports"
	"github.com/0xcro3dile/chemed-go/internal/domain/topic"
	"github.com/0xcro3dile/chemed-go/internal/domain/usecases"
	chemhttp "github.com/0xcro3dile/chemed-go/internal/infrastructure/http"
)

const renderReadyTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model, err := newLLM(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating LLM client: %w", err)
	}
	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating embedding client: %w", err)
	}
	store, closeStore, err := newStore(cfg)
	if err != nil {
		return fmt.Errorf("opening knowledge store: %w", err)
	}
	defer closeStore()

	classifier, keywordsPath, err := loadClassifier(cfg, logger)
	if err != nil {
		return err
	}
	holder := topic.NewHolder(classifier)
	if keywordsPath != "" && cfg.Topic.WatchKeywords {
		if err := watchKeywords(ctx, keywordsPath, holder); err != nil {
			logger.Warn("keyword reload disabled", zap.String("path", keywordsPath), zap.Error(err))
		}
	}

	opts := chatOptions(cfg)
	balancer := newBalancer(cfg)

	var search *usecases.QueryUseCase
	var grade *usecases.GradeUseCase
	if embedder != nil {
		search = usecases.NewQueryUseCase(embedder, store, cfg.Knowledge.TopN)
		grade = usecases.NewGradeUseCase(embedder)
		ingest := usecases.NewIngestUseCase(embedder, store, cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap)
		if err := prepareKnowledge(ctx, ingest, store); err != nil {
			return err
		}
		if cfg.Knowledge.NotesDir != "" && cfg.Knowledge.WatchNotes {
			if err := watchNotes(ctx, cfg.Knowledge.NotesDir, ingest); err != nil {
				logger.Warn("notes reload disabled", zap.String("dir", cfg.Knowledge.NotesDir), zap.Error(err))
			}
		}
	} else {
		logger.Warn("embedding disabled; retrieval and grading unavailable")
	}

	var renderer ports.MoleculeRenderer
	if cfg.Visualize.RDKitURL != "" || cfg.Visualize.RDKitScript != "" {
		client := rdkit.NewClient(cfg.Visualize.RDKitURL, logger)
		if cfg.Visualize.RDKitScript != "" {
			stopRender, err := client.StartService(ctx, cfg.Visualize.RDKitScript, renderReadyTimeout)
			if err != nil {
				return err
			}
			defer stopRender()
		}
		renderer = client
	}
	visualize := usecases.NewVisualizeUseCase(pubchem.NewClient(cfg.Visualize.PubChemURL, logger), renderer)

	server := chemhttp.NewServer(chemhttp.Dependencies{
		Chat:           usecases.NewChatUseCase(holder, balancer, model, search, opts, logger),
		Balancer:       balancer,
		BalanceTimeout: cfg.GetBalanceTimeout(),
		Search:         search,
		Grade:          grade,
		Teacher:        usecases.NewTeacherUseCase(model, opts),
		Visualize:      visualize,
		Store:          store,
		Topic:          holder,
	}, chemhttp.Options{
		Addr:            ":" + strconv.Itoa(cfg.Server.Port),
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		ShutdownTimeout: cfg.GetShutdownTimeout(),
	}, logger)

	return server.Start(ctx)
}

// prepareKnowledge imports the embeddings file, seeds an empty store and
// ingests the notes directory, in that order.
func prepareKnowledge(ctx context.Context, ingest *usecases.IngestUseCase, store ports.KnowledgeStore) error {
	if path := cfg.Knowledge.EmbeddingsFile; path != "" {
		passages, err := loader.NewEmbeddingFileLoader().Load(path)
		if err != nil {
			return err
		}
		if err := ingest.Import(ctx, passages); err != nil {
			return fmt.Errorf("importing %s: %w", path, err)
		}
		logger.Info("imported embeddings", zap.String("path", path), zap.Int("passages", len(passages)))
	}

	n, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting passages: %w", err)
	}
	if n == 0 {
		seeded, err := ingest.Seed(ctx)
		if err != nil {
			// Chat still works without reference passages.
			logger.Warn("seeding knowledge failed", zap.Int("seeded", seeded), zap.Error(err))
		} else {
			logger.Info("seeded knowledge", zap.Int("documents", seeded))
		}
	}

	if dir := cfg.Knowledge.NotesDir; dir != "" {
		docs, err := loader.NewTextLoader().LoadDir(ctx, dir)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if err := ingest.Ingest(ctx, doc); err != nil {
				logger.Warn("ingesting note failed", zap.String("path", doc.Source), zap.Error(err))
			}
		}
		logger.Info("ingested notes", zap.String("dir", dir), zap.Int("documents", len(docs)))
	}
	return nil
}

// watchKeywords rebuilds the classifier whenever the keyword file changes.
// A failed reload keeps the previous classifier.
func watchKeywords(ctx context.Context, path string, holder *topic.Holder) error {
	watcher, err := filewatcher.NewFSNotifyWatcher(filewatcher.WithFiles(path), filewatcher.WithLogger(logger))
	if err != nil {
		return err
	}
	events, err := watcher.Watch(ctx, filepath.Dir(path))
	if err != nil {
		watcher.Stop()
		return err
	}

	go func() {
		defer watcher.Stop()
		for ev := range events {
			if ev.Operation == ports.FileDeleted {
				continue
			}
			reloadKeywords(cfg, path, holder, logger)
		}
	}()
	return nil
}

func reloadKeywords(c *config.Config, path string, holder *topic.Holder, log *zap.Logger) {
	keywords, _, err := loader.LoadKeywords([]string{path})
	if err != nil || len(keywords) == 0 {
		log.Warn("keyword reload skipped", zap.String("path", path), zap.Error(err))
		return
	}
	classifier, err := topic.NewClassifier(topicConfig(c, keywords))
	if err != nil {
		log.Warn("keyword reload skipped", zap.String("path", path), zap.Error(err))
		return
	}
	holder.Swap(classifier)
	log.Info("reloaded chemistry keywords", zap.String("path", path), zap.Int("count", classifier.Size()))
}

// watchNotes keeps the store in step with the notes directory.
func watchNotes(ctx context.Context, dir string, ingest *usecases.IngestUseCase) error {
	textLoader := loader.NewTextLoader()
	watcher, err := filewatcher.NewFSNotifyWatcher(
		filewatcher.WithExtensions(textLoader.SupportedExtensions()...),
		filewatcher.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	events, err := watcher.Watch(ctx, dir)
	if err != nil {
		watcher.Stop()
		return err
	}

	go func() {
		defer watcher.Stop()
		for ev := range events {
			syncNote(ctx, textLoader, ingest, ev, logger)
		}
	}()
	return nil
}

func syncNote(ctx context.Context, textLoader *loader.TextLoader, ingest *usecases.IngestUseCase, ev ports.FileEvent, log *zap.Logger) {
	log = log.With(zap.String("path", ev.Path), zap.Stringer("op", ev.Operation))

	if ev.Operation == ports.FileDeleted {
		if err := ingest.Delete(ctx, loader.DocumentIDForPath(ev.Path)); err != nil {
			log.Warn("removing note failed", zap.Error(err))
		}
		return
	}

	doc, err := textLoader.Load(ctx, ev.Path)
	if err != nil {
		log.Warn("loading note failed", zap.Error(err))
		return
	}
	// Drop the old passages first so a shorter file leaves no stale tail.
	if err := ingest.Delete(ctx, doc.ID); err != nil {
		log.Warn("removing note failed", zap.Error(err))
		return
	}
	if err := ingest.Ingest(ctx, doc); err != nil {
		log.Warn("ingesting note failed", zap.Error(err))
		return
	}
	log.Info("note synced")
}
