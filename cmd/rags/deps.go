package main

import (
	"context"
	"fmt"

	"github.com/ObesityHub/robokop-rags/internal/annotator"
	"github.com/ObesityHub/robokop-rags/internal/graph"
	"github.com/ObesityHub/robokop-rags/internal/normalizer"
	"github.com/ObesityHub/robokop-rags/internal/project"
	"github.com/ObesityHub/robokop-rags/internal/reader"
	"github.com/ObesityHub/robokop-rags/internal/storage"
)

// buildDeps wires up every collaborator a project.Manager needs from the
// loaded config, each subcommand building its own store/client from the
// PersistentPreRun-populated cfg/logger globals.
type buildDeps struct {
	store   storage.Store
	backend graph.Backend
	manager *project.Manager
}

func (d *buildDeps) Close(ctx context.Context) {
	if d.backend != nil {
		d.backend.Close(ctx)
	}
	if d.store != nil {
		d.store.Close()
	}
}

func newBuildDeps(ctx context.Context) (*buildDeps, error) {
	store, err := newStore()
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	backend, err := graph.NewNeo4jBackend(ctx, cfg.Graph.BoltURI(), cfg.Graph.Username, cfg.Graph.Password, cfg.Graph.Database)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("connect graph: %w", err)
	}

	norm := normalizer.New(ctx, cfg.Identity.NodeNormalizationURL, cfg.Identity.EdgeNormalizationURL,
		cfg.Identity.RequestTimeout, cfg.Identity.RequestsPerSecond, cfg.Identity.ChunkSize)

	ann := annotator.New(annotator.Config{
		DownloadURL:     cfg.Annotator.ToolDownloadURL,
		WorkspaceDir:    cfg.Annotator.WorkspaceDir,
		ReferenceGenome: cfg.Annotator.ReferenceGenome,
		UpDownDistance:  cfg.Annotator.UpDownDistance,
		JavaBinary:      cfg.Annotator.JavaBinary,
	})

	genome := reader.ReferenceGenome(cfg.Pipeline.ReferenceGenome)
	mgr := project.New(store, backend, norm, ann, logger, cfg.Pipeline.DataDir, genome, cfg.Pipeline.ReferencePatch, cfg.Pipeline.DefaultFlushThreshold)

	return &buildDeps{store: store, backend: backend, manager: mgr}, nil
}

func newStore() (storage.Store, error) {
	switch cfg.Storage.Type {
	case "postgres":
		return storage.NewPostgresStore(cfg.Storage.PostgresDSN, logger)
	default:
		return storage.NewSQLiteStore(cfg.Storage.LocalPath, logger)
	}
}
