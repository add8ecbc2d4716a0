// Package builder drives one catalog build session through connection
// setup, attachment, secret and view creation, optional export, and
// guaranteed cleanup. Every dynamic SQL fragment it emits goes through
// pkg/dialect, with one exception: the declared body of a query-source
// view (config.Source.SQL) is embedded as written.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/lakecraft-labs/lakecraft/internal/config"
	"github.com/lakecraft-labs/lakecraft/internal/engine"
	"github.com/lakecraft-labs/lakecraft/internal/graph"
	"github.com/lakecraft-labs/lakecraft/internal/storage"
	"github.com/lakecraft-labs/lakecraft/pkg/dialect"
)

// Stage identifies a point in the build state machine.
type Stage string

// Build stages, in order.
const (
	StageCreated          Stage = "created"
	StageConnectionOpen   Stage = "connection_open"
	StageConfigured       Stage = "configured"
	StageAttachmentsReady Stage = "attachments_ready"
	StageSecretsReady     Stage = "secrets_ready"
	StageViewsReady       Stage = "views_ready"
	StageExported         Stage = "exported"
	StageClosed           Stage = "closed"
)

// conn is the connection surface the session needs. engine.Conn satisfies
// it; tests substitute sqlmock-backed fakes.
type conn interface {
	engine.Executor
	Close() error
}

// OpenFunc opens the target database artifact.
type OpenFunc func(ctx context.Context, path string) (conn, error)

// Options configures a Session.
type Options struct {
	// Catalog is the validated config to build. Required.
	Catalog *config.Catalog

	// Artifact is the output database path. Required unless Transcript.
	Artifact string

	// Attachments maps alias to the already-built child artifact.
	Attachments map[string]graph.AttachmentRef

	// Dialect defaults to dialect.DuckDB().
	Dialect *dialect.Dialect

	// ExportStore writes the exported artifact. Defaults to local
	// filesystem; remote destinations need a remote-capable store.
	ExportStore storage.Store

	// Open opens the engine connection. Defaults to engine.Open.
	Open OpenFunc

	// Transcript, when set, records every rendered statement instead of
	// executing it; no connection is opened and no files are touched.
	Transcript *Transcript

	// Logger defaults to discard. Credential values are redacted at this
	// boundary via config.Redacted.
	Logger *slog.Logger
}

// Session is one build invocation. It owns exactly one engine connection
// and the temporary files it creates; both are released by Closed-stage
// cleanup on success and failure alike.
type Session struct {
	id     string
	cat    *config.Catalog
	opts   Options
	d      *dialect.Dialect
	logger *slog.Logger

	stage Stage
	exec  engine.Executor
	conn  conn
	temps []string
}

// NewSession creates a session in the Created stage.
func NewSession(opts Options) (*Session, error) {
	if opts.Catalog == nil {
		return nil, fmt.Errorf("builder: catalog is required")
	}
	if opts.Artifact == "" && opts.Transcript == nil {
		return nil, fmt.Errorf("builder: artifact path is required")
	}
	d := opts.Dialect
	if d == nil {
		d = dialect.DuckDB()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.ExportStore == nil {
		opts.ExportStore = storage.NewLocal()
	}
	if opts.Open == nil {
		opts.Open = func(ctx context.Context, path string) (conn, error) {
			return engine.Open(ctx, path)
		}
	}
	id := uuid.New().String()
	return &Session{
		id:     id,
		cat:    opts.Catalog,
		opts:   opts,
		d:      d,
		logger: logger.With("session", id, "catalog", opts.Catalog.Name),
		stage:  StageCreated,
	}, nil
}

// ID returns the session identity.
func (s *Session) ID() string { return s.id }

// Stage returns the stage the session last completed.
func (s *Session) Stage() Stage { return s.stage }

// Build drives the session through all stages. Cleanup always runs, on
// success, failure, and cancellation between stages.
func (s *Session) Build(ctx context.Context) (err error) {
	defer func() {
		if cleanupErr := s.close(); cleanupErr != nil && err == nil {
			err = &StageError{Stage: StageClosed, Err: cleanupErr}
		}
	}()

	type step struct {
		stage Stage
		run   func(context.Context) error
	}
	steps := []step{
		{StageConnectionOpen, s.openConnection},
		{StageConfigured, s.configure},
		{StageAttachmentsReady, s.attach},
		{StageSecretsReady, s.registerSecrets},
		{StageViewsReady, s.createViews},
	}
	if s.cat.Export != nil && s.cat.Export.Destination != "" {
		steps = append(steps, step{StageExported, s.export})
	}

	for _, st := range steps {
		// Cancellation between stage transitions behaves as a failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &StageError{Stage: st.stage, Err: ctxErr}
		}
		if err := st.run(ctx); err != nil {
			return &StageError{Stage: st.stage, Err: err}
		}
		s.stage = st.stage
		s.logger.Debug("stage complete", "stage", string(st.stage))
	}
	return nil
}

func (s *Session) openConnection(ctx context.Context) error {
	if s.opts.Transcript != nil {
		s.exec = s.opts.Transcript
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.opts.Artifact), 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}
	c, err := s.opts.Open(ctx, s.opts.Artifact)
	if err != nil {
		return err
	}
	s.conn = c
	s.exec = c
	return nil
}

func (s *Session) configure(ctx context.Context) error {
	for _, ext := range s.cat.Extensions {
		for _, stmt := range installExtensionSQL(s.d, ext) {
			if err := s.exec.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("extension %q: %w", ext, err)
			}
		}
	}

	keys := make([]string, 0, len(s.cat.Settings))
	for k := range s.cat.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		stmt, err := setSettingSQL(s.d, k, s.cat.Settings[k])
		if err != nil {
			return fmt.Errorf("setting %q: %w", k, err)
		}
		if err := s.exec.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("setting %q: %w", k, err)
		}
	}
	return nil
}

func (s *Session) attach(ctx context.Context) error {
	aliases := make([]string, 0, len(s.opts.Attachments))
	for alias := range s.opts.Attachments {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	for _, alias := range aliases {
		ref := s.opts.Attachments[alias]
		if err := s.exec.Exec(ctx, attachSQL(s.d, alias, ref)); err != nil {
			return fmt.Errorf("attach %q: %w", alias, err)
		}
		s.logger.Info("attached catalog", "alias", alias, "artifact", ref.Artifact, "read_only", ref.ReadOnly)
	}
	return nil
}

func (s *Session) registerSecrets(ctx context.Context) error {
	for _, sec := range s.cat.Secrets {
		stmt, err := createSecretSQL(s.d, sec)
		if err != nil {
			return err
		}
		if err := s.exec.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("secret %q: %w", sec.Name, err)
		}
		for k, v := range sec.Options {
			s.logger.Debug("secret option set",
				"secret", sec.Name, "option", k, "value", config.Redacted(fmt.Sprint(v)))
		}
		s.logger.Info("registered secret", "name", sec.Name, "kind", string(sec.Kind))
	}
	return nil
}

func (s *Session) createViews(ctx context.Context) error {
	for _, v := range s.cat.Views {
		stmt, err := createViewSQL(s.d, v)
		if err != nil {
			return err
		}
		if err := s.exec.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("view %q: %w", v.Name, err)
		}
	}
	return nil
}

func (s *Session) export(ctx context.Context) error {
	// Flush the artifact before streaming so the file on disk is complete.
	if err := s.exec.Exec(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("checkpoint before export: %w", err)
	}
	if s.opts.Transcript != nil {
		return nil
	}

	f, err := os.Open(s.opts.Artifact)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer func() { _ = f.Close() }()

	dest := s.cat.Export.Destination
	if err := s.opts.ExportStore.Write(ctx, dest, f); err != nil {
		return err
	}
	s.logger.Info("artifact exported", "destination", dest)
	return nil
}

// AddTemp registers a temporary file owned by the session; it is removed
// during Closed-stage cleanup.
func (s *Session) AddTemp(path string) {
	s.temps = append(s.temps, path)
}

// close releases the connection and owned temp files. Idempotent.
func (s *Session) close() error {
	var firstErr error
	if s.conn != nil {
		if err := s.conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close connection: %w", err)
		}
		s.conn = nil
	}
	for _, path := range s.temps {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = fmt.Errorf("remove temp %q: %w", path, err)
		}
	}
	s.temps = nil
	s.stage = StageClosed
	return firstErr
}

// StageError tags a build failure with the stage it occurred in, wrapping
// the underlying cause.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("build stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
