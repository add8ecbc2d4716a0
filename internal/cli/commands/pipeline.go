package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lakecraft-labs/lakecraft/internal/builder"
	"github.com/lakecraft-labs/lakecraft/internal/cli/config"
	intconfig "github.com/lakecraft-labs/lakecraft/internal/config"
	"github.com/lakecraft-labs/lakecraft/internal/graph"
	"github.com/lakecraft-labs/lakecraft/internal/imports"
	"github.com/lakecraft-labs/lakecraft/internal/pathsec"
	"github.com/lakecraft-labs/lakecraft/internal/state"
	"github.com/lakecraft-labs/lakecraft/internal/storage"
)

// sharedFragments caches parsed config fragments across builds in one
// process.
var sharedFragments = imports.NewSharedCache()

// pipeline is the resolution and build stack assembled from CLI config.
type pipeline struct {
	cfg      *config.Config
	logger   *slog.Logger
	valid    *pathsec.Validator
	resolver *imports.Resolver
}

func newPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	roots := cfg.AllowRoots
	if len(roots) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determine working directory: %w", err)
		}
		roots = []string{cwd}
	}
	valid, err := pathsec.NewValidator(roots...)
	if err != nil {
		return nil, err
	}

	var remote storage.Store
	if cfg.RemoteImports {
		h, err := storage.NewHTTP(cfg.HTTPTimeout)
		if err != nil {
			return nil, err
		}
		remote = h
	}

	resolver, err := imports.NewResolver(imports.Options{
		Local:          storage.NewLocal(),
		Remote:         remote,
		Validator:      valid,
		AllowedSchemes: cfg.AllowedSchemes,
		Shared:         sharedFragments,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	return &pipeline{
		cfg:      cfg,
		logger:   logger,
		valid:    valid,
		resolver: resolver,
	}, nil
}

// loadFunc adapts import resolution and decoding to the attachment walker.
// All loads of one run share rc, so fragments imported by several catalogs
// resolve once.
func (p *pipeline) loadFunc(rc *imports.Context) graph.LoadFunc {
	return func(ctx context.Context, path, baseDir string) (string, *intconfig.Catalog, error) {
		key, err := p.valid.Resolve(path, baseDir)
		if err != nil {
			return "", nil, err
		}
		tree, err := p.resolver.Resolve(ctx, rc, key)
		if err != nil {
			return "", nil, err
		}
		cat, err := intconfig.Decode(tree)
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", key, err)
		}
		return key, cat, nil
	}
}

// transcriptSink collects rendered statements per catalog, in build order.
type transcriptSink struct {
	entries []transcriptEntry
}

type transcriptEntry struct {
	key        string
	statements []string
}

func (s *transcriptSink) add(key string, statements []string) {
	s.entries = append(s.entries, transcriptEntry{key: key, statements: statements})
}

// buildFunc constructs one catalog per request. With a non-nil sink it
// renders statements instead of executing them; either way every build is
// recorded as a step of the given run.
//
// Artifact and local export paths come from config content, which may have
// been imported remotely, so both are confined to the allowed roots before
// any file is touched. exemptArtifact is the operator-supplied --output
// path; it is the one output location that skips the check.
func (p *pipeline) buildFunc(store state.Store, runID string, sink *transcriptSink, exemptArtifact string) graph.BuildFunc {
	return func(ctx context.Context, req graph.BuildRequest) error {
		if exemptArtifact == "" || req.Artifact != exemptArtifact {
			if _, err := p.valid.Resolve(req.Artifact, ""); err != nil {
				return fmt.Errorf("%s: artifact: %w", req.Key, err)
			}
		}
		if req.Catalog.Export != nil && req.Catalog.Export.Destination != "" &&
			!storage.IsRemote(req.Catalog.Export.Destination) {
			if _, err := p.valid.Resolve(req.Catalog.Export.Destination, ""); err != nil {
				return fmt.Errorf("%s: export destination: %w", req.Key, err)
			}
		}

		opts := builder.Options{
			Catalog:     req.Catalog,
			Artifact:    req.Artifact,
			Attachments: req.Attachments,
			Logger:      p.logger,
		}
		if req.Catalog.Export != nil && storage.IsRemote(req.Catalog.Export.Destination) {
			h, err := storage.NewHTTP(p.cfg.HTTPTimeout)
			if err != nil {
				return err
			}
			opts.ExportStore = h
		}
		var tr *builder.Transcript
		if sink != nil {
			tr = builder.NewTranscript()
			opts.Transcript = tr
		}

		sess, err := builder.NewSession(opts)
		if err != nil {
			return err
		}
		buildErr := sess.Build(ctx)

		if store != nil && runID != "" {
			status := state.RunSuccess
			msg := ""
			if buildErr != nil {
				status = state.RunFailed
				msg = buildErr.Error()
			}
			if err := store.RecordStep(runID, state.Step{
				ConfigKey: req.Key,
				Artifact:  req.Artifact,
				Status:    status,
				Error:     msg,
			}); err != nil {
				p.logger.Warn("failed to record build step", "error", err)
			}
		}
		if buildErr == nil && sink != nil {
			sink.add(req.Key, tr.Statements())
		}
		return buildErr
	}
}

// openStateStore opens the build history database, creating its directory
// if needed.
func openStateStore(cfg *config.Config) (*state.SQLiteStore, error) {
	if dir := filepath.Dir(cfg.StatePath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}
	store := state.NewSQLiteStore()
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, err
	}
	return store, nil
}
