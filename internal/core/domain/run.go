package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Run Errors
// =============================================================================

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrEmptySource       = errors.New("source is required")
)

// =============================================================================
// Run Status
// =============================================================================

type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunPartial   RunStatus = "partial" // some artifact kinds failed
	RunFailed    RunStatus = "failed"
)

// IsTerminal returns true once a run can no longer change.
func (s RunStatus) IsTerminal() bool {
	return s == RunSucceeded || s == RunPartial || s == RunFailed
}

// =============================================================================
// Findings
// =============================================================================

// Severity grades a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Finding is one observation about a generated artifact.
type Finding struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// =============================================================================
// Run
// =============================================================================

// Run is one generation request: a source repository and the artifacts
// produced for it.
type Run struct {
	ID         string             `json:"id"`
	Source     string             `json:"source"`
	Branch     string             `json:"branch,omitempty"`
	Status     RunStatus          `json:"status"`
	Profile    *RepositoryProfile `json:"profile,omitempty"`
	Error      string             `json:"error,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
}

// NewRun creates a pending run for source.
func NewRun(source, branch string) (*Run, error) {
	if strings.TrimSpace(source) == "" {
		return nil, ErrEmptySource
	}
	return &Run{
		ID:        NewID("run"),
		Source:    source,
		Branch:    branch,
		Status:    RunPending,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Transition attempts to move the run to a new status.
func (r *Run) Transition(to RunStatus) error {
	if err := ValidateRunTransition(r.Status, to); err != nil {
		return err
	}
	r.Status = to
	if to.IsTerminal() {
		now := time.Now().UTC()
		r.FinishedAt = &now
	}
	return nil
}

// Fail moves the run to failed with a message.
func (r *Run) Fail(message string) error {
	if err := r.Transition(RunFailed); err != nil {
		return err
	}
	r.Error = message
	return nil
}

// Complete picks the terminal status from per-artifact outcomes.
func (r *Run) Complete(succeeded, failed int) error {
	switch {
	case failed == 0:
		return r.Transition(RunSucceeded)
	case succeeded == 0:
		return r.Fail("all artifact kinds failed")
	default:
		return r.Transition(RunPartial)
	}
}

// =============================================================================
// State Machine
// =============================================================================

var validRunTransitions = map[RunStatus][]RunStatus{
	RunPending:   {RunRunning, RunFailed},
	RunRunning:   {RunSucceeded, RunPartial, RunFailed},
	RunSucceeded: {},
	RunPartial:   {},
	RunFailed:    {},
}

// ValidateRunTransition checks if a status transition is valid.
func ValidateRunTransition(from, to RunStatus) error {
	allowed, exists := validRunTransitions[from]
	if !exists {
		return ErrInvalidTransition
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return ErrInvalidTransition
}

// =============================================================================
// Artifact Records
// =============================================================================

// ArtifactRecord is a saved artifact or fragment belonging to a run.
type ArtifactRecord struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Kind      ArtifactKind `json:"kind"`
	Name      string       `json:"name"`
	Path      string       `json:"path,omitempty"`
	Content   string       `json:"content"`
	Findings  []Finding    `json:"findings,omitempty"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewArtifactRecord creates a record for a saved artifact file.
func NewArtifactRecord(runID string, kind ArtifactKind, name string) *ArtifactRecord {
	return &ArtifactRecord{
		ID:        NewID("art"),
		RunID:     runID,
		Kind:      kind,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
}

// NewID returns prefix_ followed by twelve hex characters of a random UUID.
func NewID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}
