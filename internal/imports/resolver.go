// Package imports loads and deep-merges declarative catalog config
// fragments. Fragments import other fragments, local or remote; resolution
// is recursive with cycle detection, per-run caching, environment
// interpolation, and path security validation on every local read.
package imports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"

	"github.com/lakecraft-labs/lakecraft/internal/envsub"
	"github.com/lakecraft-labs/lakecraft/internal/pathsec"
	"github.com/lakecraft-labs/lakecraft/internal/storage"
)

// DefaultAllowedSchemes is the remote scheme allow-list when none is given.
var DefaultAllowedSchemes = []string{"https"}

// Options configures a Resolver.
type Options struct {
	// Local reads local fragments. Required.
	Local storage.Store

	// Remote reads remote fragments. Nil disables remote imports entirely.
	Remote storage.Store

	// Validator bounds local file access. Required.
	Validator *pathsec.Validator

	// Interpolator substitutes ${env:NAME} tokens. Defaults to the process
	// environment.
	Interpolator *envsub.Interpolator

	// AllowedSchemes lists acceptable remote URL schemes.
	// Defaults to DefaultAllowedSchemes.
	AllowedSchemes []string

	// Shared is an optional cross-build fragment cache.
	Shared *SharedCache

	// Logger receives resolution progress. Defaults to discard.
	Logger *slog.Logger
}

// Resolver resolves an entry fragment into one merged config tree.
type Resolver struct {
	local   storage.Store
	remote  storage.Store
	valid   *pathsec.Validator
	interp  *envsub.Interpolator
	schemes []string
	shared  *SharedCache
	logger  *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(opts Options) (*Resolver, error) {
	if opts.Local == nil {
		return nil, fmt.Errorf("imports: local store is required")
	}
	if opts.Validator == nil {
		return nil, fmt.Errorf("imports: path validator is required")
	}
	interp := opts.Interpolator
	if interp == nil {
		interp = envsub.New()
	}
	schemes := opts.AllowedSchemes
	if len(schemes) == 0 {
		schemes = DefaultAllowedSchemes
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		local:   opts.Local,
		remote:  opts.Remote,
		valid:   opts.Validator,
		interp:  interp,
		schemes: schemes,
		shared:  opts.Shared,
		logger:  logger,
	}, nil
}

// Context is per-run resolution state. It must not be shared across
// concurrent builds; each build owns exactly one.
type Context struct {
	stack []string                  // canonical keys currently being resolved
	cache map[string]map[string]any // canonical key -> fully merged tree
	graph *Trace
}

// NewContext creates a fresh resolution context.
func NewContext() *Context {
	return &Context{
		cache: make(map[string]map[string]any),
		graph: newTrace(),
	}
}

// Graph returns the import graph recorded during resolution, for
// diagnostics output.
func (rc *Context) Graph() *Trace {
	return rc.graph
}

// Resolve resolves entryPath (relative paths resolve against the current
// working directory) and returns the fully merged config tree.
func (r *Resolver) Resolve(ctx context.Context, rc *Context, entryPath string) (map[string]any, error) {
	key, err := r.canonicalKey(entryPath, localOrigin(""))
	if err != nil {
		return nil, err
	}
	rc.graph.addNode(key, true)
	return r.resolveFragment(ctx, rc, key)
}

// origin identifies where a fragment came from: a canonical local path or a
// remote URL. Relative imports resolve against it.
type origin struct {
	remote bool
	url    *url.URL // set when remote
	dir    string   // base directory when local ("" for top-level entry)
}

func localOrigin(dir string) origin { return origin{dir: dir} }

// canonicalKey turns an import path into its canonical cache/cycle key.
// Local paths pass through the security validator; remote URLs must match
// an allow-listed scheme.
func (r *Resolver) canonicalKey(path string, from origin) (string, error) {
	if storage.IsRemote(path) {
		u, err := url.Parse(path)
		if err != nil {
			return "", &ValidationError{Path: path, Reason: fmt.Sprintf("invalid URL: %v", err)}
		}
		return r.checkRemote(u, path)
	}

	if from.remote {
		// Relative import inside a remote fragment resolves against its URL.
		// Local absolute paths are never reachable from remote fragments.
		if filepath.IsAbs(path) {
			return "", &ValidationError{Path: path, Reason: "remote fragments may not import local paths"}
		}
		ref, err := url.Parse(path)
		if err != nil {
			return "", &ValidationError{Path: path, Reason: fmt.Sprintf("invalid relative URL: %v", err)}
		}
		return r.checkRemote(from.url.ResolveReference(ref), path)
	}

	canonical, err := r.valid.Resolve(path, from.dir)
	if err != nil {
		return "", err
	}
	return canonical, nil
}

func (r *Resolver) checkRemote(u *url.URL, display string) (string, error) {
	if r.remote == nil {
		return "", &ValidationError{Path: display, Reason: "remote imports are disabled"}
	}
	if !slices.Contains(r.schemes, u.Scheme) {
		return "", &ValidationError{
			Path:   display,
			Reason: fmt.Sprintf("scheme %q not in allow-list %v", u.Scheme, r.schemes),
		}
	}
	return u.String(), nil
}

func (r *Resolver) resolveFragment(ctx context.Context, rc *Context, key string) (map[string]any, error) {
	if idx := slices.Index(rc.stack, key); idx >= 0 {
		chain := append(slices.Clone(rc.stack[idx:]), key)
		rc.graph.markCycle(chain)
		return nil, &CircularError{Chain: chain}
	}
	if cached, ok := rc.cache[key]; ok {
		rc.graph.markReused(key)
		return deepCopy(cached), nil
	}

	rc.stack = append(rc.stack, key)
	defer func() { rc.stack = rc.stack[:len(rc.stack)-1] }()

	tree, err := r.loadFragment(ctx, key)
	if err != nil {
		return nil, err
	}

	// Interpolation runs before import processing so ${env:...} tokens can
	// shape import paths.
	tree, err = r.interp.Apply(tree)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}

	entries, err := parseEntries(key, tree[importsKey])
	if err != nil {
		return nil, err
	}

	from := fragmentOrigin(key)
	acc := make(map[string]any)
	for _, entry := range entries {
		if err := r.mergeEntry(ctx, rc, acc, entry, key, from); err != nil {
			return nil, err
		}
	}

	// Local content wins over everything it imported.
	own := make(map[string]any, len(tree))
	for k, v := range tree {
		if k != importsKey {
			own[k] = v
		}
	}
	acc = mergeOverride(acc, own)

	rc.cache[key] = acc
	r.logger.Debug("fragment resolved", "fragment", key, "imports", len(entries))
	return deepCopy(acc), nil
}

// mergeEntry expands one import entry and merges every matched fragment
// into acc.
func (r *Resolver) mergeEntry(ctx context.Context, rc *Context, acc map[string]any, entry Entry, parent string, from origin) error {
	refs, err := r.expandEntry(entry, from)
	if err != nil {
		return err
	}

	for _, ref := range refs {
		key, err := r.canonicalKey(ref, from)
		if err != nil {
			return err
		}
		rc.graph.addNode(key, false)
		rc.graph.addEdge(parent, key)

		sub, err := r.resolveFragment(ctx, rc, key)
		if err != nil {
			var notFound *storage.NotFoundError
			if errors.As(err, &notFound) {
				return &NotFoundError{Path: ref, ImportedFrom: parent}
			}
			return err
		}

		if len(entry.Sections) > 0 {
			sub = filterSections(sub, entry.Sections)
		}
		if entry.override() {
			mergeOverride(acc, sub)
		} else {
			mergeFill(acc, sub)
		}
	}
	return nil
}

// expandEntry expands glob patterns in a local entry path. Results are
// sorted and exclude-matched entries are removed after expansion, so the
// import order is deterministic. Non-glob entries pass through unchanged.
func (r *Resolver) expandEntry(entry Entry, from origin) ([]string, error) {
	if storage.IsRemote(entry.Path) || from.remote || !strings.ContainsAny(entry.Path, "*?[") {
		return []string{entry.Path}, nil
	}

	pattern := entry.Path
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(from.dir, pattern)
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, &ValidationError{Path: entry.Path, Reason: fmt.Sprintf("bad glob pattern: %v", err)}
	}
	sort.Strings(matches)

	if entry.Exclude == "" {
		return matches, nil
	}
	kept := matches[:0]
	for _, m := range matches {
		excluded, err := filepath.Match(entry.Exclude, filepath.Base(m))
		if err != nil {
			return nil, &ValidationError{Path: entry.Path, Reason: fmt.Sprintf("bad exclude pattern: %v", err)}
		}
		if !excluded {
			kept = append(kept, m)
		}
	}
	return kept, nil
}

// loadFragment reads and parses the fragment identified by key, consulting
// the shared cross-build cache when configured.
func (r *Resolver) loadFragment(ctx context.Context, key string) (map[string]any, error) {
	if r.shared != nil {
		tree, err := r.shared.getOrLoad(key, func() (map[string]any, error) {
			return r.readAndParse(ctx, key)
		})
		if err != nil {
			return nil, err
		}
		// Hand a copy to each build so per-build interpolation cannot leak.
		return deepCopy(tree), nil
	}
	return r.readAndParse(ctx, key)
}

func (r *Resolver) readAndParse(ctx context.Context, key string) (map[string]any, error) {
	store := r.local
	if storage.IsRemote(key) {
		store = r.remote
	}

	data, err := store.Read(ctx, key)
	if err != nil {
		var notFound *storage.NotFoundError
		if errors.As(err, &notFound) {
			return nil, &NotFoundError{Path: key}
		}
		return nil, err
	}

	tree, err := yaml.Parser().Unmarshal(data)
	if err != nil {
		return nil, &ParseError{Path: key, Err: err}
	}
	if tree == nil {
		tree = make(map[string]any)
	}
	return tree, nil
}

// fragmentOrigin derives the origin for a fragment's own imports from its
// canonical key.
func fragmentOrigin(key string) origin {
	if storage.IsRemote(key) {
		u, err := url.Parse(key)
		if err == nil {
			return origin{remote: true, url: u}
		}
	}
	return localOrigin(filepath.Dir(key))
}
