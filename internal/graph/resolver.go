package graph

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/lakecraft-labs/lakecraft/internal/config"
)

// DefaultMaxDepth bounds attachment nesting when no limit is configured.
const DefaultMaxDepth = 5

// LoadFunc resolves and decodes the catalog config referenced by path
// (relative paths resolve against baseDir) and returns its canonical key.
type LoadFunc func(ctx context.Context, path, baseDir string) (key string, cat *config.Catalog, err error)

// BuildFunc builds one catalog into req.Artifact. In dry-run mode it is
// never called.
type BuildFunc func(ctx context.Context, req BuildRequest) error

// BuildRequest carries everything needed to build one catalog.
type BuildRequest struct {
	// Key is the canonical config path.
	Key string
	// Catalog is the validated config.
	Catalog *config.Catalog
	// Artifact is the output database path.
	Artifact string
	// Attachments maps attachment alias to the already-built child artifact.
	Attachments map[string]AttachmentRef
}

// AttachmentRef is one resolved attachment for a build.
type AttachmentRef struct {
	Artifact string
	ReadOnly bool
}

// Resolver walks attachment references depth-first and builds each
// referenced catalog exactly once per run, children before parents.
type Resolver struct {
	// Load resolves a config reference. Required.
	Load LoadFunc
	// Build builds one catalog. Required unless DryRun.
	Build BuildFunc
	// MaxDepth bounds nesting; zero means DefaultMaxDepth.
	MaxDepth int
	// RootArtifact, when set, overrides the derived output path for the
	// root catalog only. Attached catalogs always use their derived paths.
	RootArtifact string
	// DryRun performs the identical traversal and validation without
	// building anything.
	DryRun bool
	// Logger defaults to discard.
	Logger *slog.Logger
}

// Result is the outcome of a run.
type Result struct {
	// Artifact is the root catalog's database path (built, or planned in
	// dry-run).
	Artifact string
	// Graph is the attachment graph for diagnostics.
	Graph *Graph
}

// run-scoped traversal state.
type runState struct {
	visiting []string          // DFS stack of canonical keys
	built    map[string]string // canonical key -> artifact path
	graph    *Graph
}

// Run resolves and builds the catalog at rootPath and all catalogs it
// transitively attaches.
func (r *Resolver) Run(ctx context.Context, rootPath string) (*Result, error) {
	if r.Load == nil {
		return nil, fmt.Errorf("graph: Load is required")
	}
	if r.Build == nil && !r.DryRun {
		return nil, fmt.Errorf("graph: Build is required outside dry-run")
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	st := &runState{
		built: make(map[string]string),
		graph: NewGraph(),
	}
	_, artifact, err := r.visit(ctx, st, logger, rootPath, "", 0)
	if err != nil {
		return nil, err
	}
	return &Result{Artifact: artifact, Graph: st.graph}, nil
}

// visit resolves one config reference, builds its attachment subtree, then
// builds the config itself. It returns the canonical key and artifact path.
func (r *Resolver) visit(ctx context.Context, st *runState, logger *slog.Logger, path, baseDir string, depth int) (string, string, error) {
	maxDepth := r.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if depth > maxDepth {
		return "", "", &DepthError{Chain: slices.Clone(st.visiting), Max: maxDepth}
	}

	key, cat, err := r.Load(ctx, path, baseDir)
	if err != nil {
		return "", "", err
	}

	if idx := slices.Index(st.visiting, key); idx >= 0 {
		chain := append(slices.Clone(st.visiting[idx:]), key)
		return "", "", &CycleError{Chain: chain}
	}

	if artifact, ok := st.built[key]; ok {
		if n, found := st.graph.Node(key); found {
			n.Reused = true
		}
		logger.Debug("attachment already built this run", "config", key)
		return key, artifact, nil
	}

	node := st.graph.AddNode(key)
	st.visiting = append(st.visiting, key)
	defer func() { st.visiting = st.visiting[:len(st.visiting)-1] }()

	// Children must exist before the parent attaches them.
	attached := make(map[string]AttachmentRef, len(cat.Attachments))
	for _, att := range cat.Attachments {
		childKey, childArtifact, err := r.visit(ctx, st, logger, att.Config, filepath.Dir(key), depth+1)
		if err != nil {
			return "", "", err
		}
		if n, ok := st.graph.Node(childKey); ok && n.Alias == "" {
			n.Alias = att.Alias
		}
		if err := st.graph.AddEdge(key, childKey); err != nil {
			return "", "", err
		}
		attached[att.Alias] = AttachmentRef{
			Artifact: childArtifact,
			ReadOnly: att.IsReadOnly(),
		}
	}

	artifact := artifactPath(cat, key)
	if depth == 0 && r.RootArtifact != "" {
		artifact = r.RootArtifact
	}
	node.Artifact = artifact

	if !r.DryRun {
		if err := r.Build(ctx, BuildRequest{
			Key:         key,
			Catalog:     cat,
			Artifact:    artifact,
			Attachments: attached,
		}); err != nil {
			return "", "", err
		}
		logger.Info("catalog built", "config", key, "artifact", artifact)
	}

	st.built[key] = artifact
	return key, artifact, nil
}

// artifactPath derives the output database path for a catalog: the
// declared database path (resolved against the config directory) or
// "<name>.duckdb" next to the config.
func artifactPath(cat *config.Catalog, key string) string {
	if cat.Database != "" {
		if filepath.IsAbs(cat.Database) {
			return cat.Database
		}
		return filepath.Join(filepath.Dir(key), cat.Database)
	}
	return filepath.Join(filepath.Dir(key), cat.Name+".duckdb")
}

// CycleError reports a cyclic attachment chain.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic attachment: %s", strings.Join(e.Chain, " -> "))
}

// DepthError reports attachment nesting beyond the configured maximum.
type DepthError struct {
	Chain []string
	Max   int
}

func (e *DepthError) Error() string {
	return fmt.Sprintf("attachment depth exceeds maximum %d: %s", e.Max, strings.Join(e.Chain, " -> "))
}
