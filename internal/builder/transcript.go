package builder

import "context"

// Transcript records fully rendered statements instead of executing them.
// It backs the dry-run SQL transcript on the diagnostics surface.
type Transcript struct {
	statements []string
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Exec records the statement. It never fails.
func (t *Transcript) Exec(_ context.Context, query string) error {
	t.statements = append(t.statements, query)
	return nil
}

// Statements returns the recorded statements in execution order.
func (t *Transcript) Statements() []string {
	out := make([]string, len(t.statements))
	copy(out, t.statements)
	return out
}
