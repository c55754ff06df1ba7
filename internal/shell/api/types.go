package api

import (
	"time"

	"github.com/artpar/deploysmith/internal/core/domain"
	"github.com/artpar/deploysmith/internal/shell/pipeline"
)

// =============================================================================
// Request Types
// =============================================================================

// AnalyzeRequest is the request body for analyzing a repository.
type AnalyzeRequest struct {
	Path   string `json:"path"`
	Branch string `json:"branch,omitempty"`
}

// GenerateRequest is the request body for a generation run.
type GenerateRequest struct {
	Source string   `json:"source"`
	Branch string   `json:"branch,omitempty"`
	Kinds  []string `json:"kinds,omitempty"`
}

// =============================================================================
// Response Types
// =============================================================================

// AnalyzeResponse wraps the profile of an analyzed repository.
type AnalyzeResponse struct {
	Source  string                    `json:"source"`
	AppName string                    `json:"app_name"`
	Profile *domain.RepositoryProfile `json:"profile"`
}

// GenerateResponse is the outcome of a generation run.
type GenerateResponse struct {
	Run       *domain.Run        `json:"run"`
	Artifacts []ArtifactResponse `json:"artifacts"`
}

// ArtifactResponse summarizes one artifact kind of a run.
type ArtifactResponse struct {
	Kind      domain.ArtifactKind       `json:"kind"`
	Content   string                    `json:"content,omitempty"`
	Fragments []domain.ManifestFragment `json:"fragments,omitempty"`
	Files     []pipeline.SavedFile      `json:"files,omitempty"`
	Drift     *DriftResponse            `json:"drift,omitempty"`
	Build     *BuildResponse            `json:"build,omitempty"`
	Error     string                    `json:"error,omitempty"`
}

// DriftResponse compares a generated Dockerfile with the repository's own.
type DriftResponse struct {
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Unchanged int `json:"unchanged"`
}

// BuildResponse reports a verification build.
type BuildResponse struct {
	Tag      string        `json:"tag"`
	Duration time.Duration `json:"duration"`
}

// RunListResponse is a page of runs.
type RunListResponse struct {
	Runs   []domain.Run `json:"runs"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// RunDetailResponse is a run with its recorded artifacts.
type RunDetailResponse struct {
	Run       *domain.Run             `json:"run"`
	Artifacts []domain.ArtifactRecord `json:"artifacts"`
}

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the response for readiness check.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ErrorResponse is the response for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}
