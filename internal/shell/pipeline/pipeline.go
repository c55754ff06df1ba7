// Package pipeline runs a generation request end to end: it provides the
// repository, analyzes it, prompts the model once per artifact kind, recovers
// and checks the artifacts, saves them and records the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/artpar/deploysmith/internal/core/analysis"
	"github.com/artpar/deploysmith/internal/core/domain"
	"github.com/artpar/deploysmith/internal/core/drift"
	"github.com/artpar/deploysmith/internal/core/extract"
	"github.com/artpar/deploysmith/internal/core/manifest"
	"github.com/artpar/deploysmith/internal/core/prompt"
	"github.com/artpar/deploysmith/internal/core/validation"
	"github.com/artpar/deploysmith/internal/shell/docker"
	"github.com/artpar/deploysmith/internal/shell/inference"
	"github.com/artpar/deploysmith/internal/shell/repository"
	"github.com/artpar/deploysmith/internal/shell/sink"
	"github.com/artpar/deploysmith/internal/shell/store"
)

var (
	// ErrEmptyArtifact means the completion contained nothing recoverable.
	ErrEmptyArtifact = errors.New("no usable content in model response")
	// ErrNoKinds means the request resolved to no artifact kinds.
	ErrNoKinds = errors.New("no artifact kinds requested")
)

// =============================================================================
// Collaborators
// =============================================================================

// Provider yields a local checkout for a source.
type Provider interface {
	Provide(ctx context.Context, source, branch string) (*repository.Checkout, error)
}

// BuildVerifier builds a generated Dockerfile against its repository.
type BuildVerifier interface {
	Build(ctx context.Context, contextDir, dockerfile, tag string, keep bool) (*docker.BuildResult, error)
}

// Config controls pipeline behaviour.
type Config struct {
	Kinds       []domain.ArtifactKind // Default kinds when a request names none
	Parallel    bool                  // Generate kinds concurrently
	VerifyBuild bool                  // Build generated Dockerfiles with the verifier
	KeepImage   bool                  // Leave verification images in place
}

// Deps are the pipeline's collaborators. Store and Verifier are optional.
type Deps struct {
	Provider  Provider
	Generator inference.Generator
	Sink      sink.Sink
	Store     store.Store
	Verifier  BuildVerifier
	Extractor *extract.Extractor
}

// Pipeline runs generation requests.
type Pipeline struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
}

// New creates a Pipeline.
func New(cfg Config, deps Deps, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Kinds) == 0 {
		cfg.Kinds = domain.AllArtifactKinds
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.New(nil)
	}
	return &Pipeline{cfg: cfg, deps: deps, logger: logger}
}

// =============================================================================
// Requests and Results
// =============================================================================

// Request names the repository and the artifacts to generate.
type Request struct {
	Source string                `json:"source"`
	Branch string                `json:"branch,omitempty"`
	Kinds  []domain.ArtifactKind `json:"kinds,omitempty"`
}

// SavedFile is one file written to the sink.
type SavedFile struct {
	Name     string           `json:"name"`
	Path     string           `json:"path"`
	Findings []domain.Finding `json:"findings,omitempty"`
}

// ArtifactResult is the outcome for one artifact kind.
type ArtifactResult struct {
	Kind     domain.ArtifactKind      `json:"kind"`
	Artifact domain.GeneratedArtifact `json:"artifact"`
	Files    []SavedFile              `json:"files,omitempty"`
	Drift    *drift.Summary           `json:"drift,omitempty"`
	Build    *docker.BuildResult      `json:"build,omitempty"`
	Err      error                    `json:"-"`
}

// Failed reports whether the kind produced no saved artifact.
func (r ArtifactResult) Failed() bool {
	return r.Err != nil
}

// Result is the outcome of a whole run.
type Result struct {
	Run       *domain.Run               `json:"run"`
	Profile   *domain.RepositoryProfile `json:"profile"`
	Artifacts []ArtifactResult          `json:"artifacts"`
}

// =============================================================================
// Operations
// =============================================================================

// Analyze provides the repository and returns its profile without generating.
func (p *Pipeline) Analyze(ctx context.Context, source, branch string) (*domain.RepositoryProfile, error) {
	checkout, err := p.deps.Provider.Provide(ctx, source, branch)
	if err != nil {
		return nil, err
	}
	defer p.release(checkout)

	return p.analyze(checkout.Path)
}

// Run executes req. Repository and analysis failures abort the run and are
// returned; per-kind failures are recorded on the matching ArtifactResult.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	kinds := req.Kinds
	if len(kinds) == 0 {
		kinds = p.cfg.Kinds
	}
	if len(kinds) == 0 {
		return nil, ErrNoKinds
	}

	run, err := domain.NewRun(req.Source, req.Branch)
	if err != nil {
		return nil, err
	}
	p.persist("CreateRun", func(s store.Store) error { return s.CreateRun(ctx, run) })
	logger := p.logger.With("run_id", run.ID)

	checkout, err := p.deps.Provider.Provide(ctx, req.Source, req.Branch)
	if err != nil {
		p.fail(ctx, run, err)
		return &Result{Run: run}, err
	}
	defer p.release(checkout)

	profile, err := p.analyze(checkout.Path)
	if err != nil {
		p.fail(ctx, run, err)
		return &Result{Run: run}, err
	}
	run.Profile = profile
	if err := run.Transition(domain.RunRunning); err != nil {
		return nil, err
	}

	results := make([]ArtifactResult, len(kinds))
	if p.cfg.Parallel && len(kinds) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		for i, kind := range kinds {
			g.Go(func() error {
				results[i] = p.generate(gctx, logger, kind, profile, checkout)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, kind := range kinds {
			results[i] = p.generate(ctx, logger, kind, profile, checkout)
		}
	}

	succeeded, failed := 0, 0
	for _, r := range results {
		if r.Failed() {
			failed++
			logger.Error("artifact generation failed", "kind", r.Kind, "error", r.Err)
		} else {
			succeeded++
		}
	}
	if err := run.Complete(succeeded, failed); err != nil {
		return nil, err
	}

	p.record(ctx, run, results)
	logger.Info("run finished", "status", run.Status, "succeeded", succeeded, "failed", failed)
	return &Result{Run: run, Profile: profile, Artifacts: results}, nil
}

// =============================================================================
// Per-Kind Generation
// =============================================================================

func (p *Pipeline) generate(ctx context.Context, logger *slog.Logger, kind domain.ArtifactKind, profile *domain.RepositoryProfile, checkout *repository.Checkout) ArtifactResult {
	result := ArtifactResult{Kind: kind, Artifact: domain.GeneratedArtifact{Kind: kind}}
	logger = logger.With("kind", kind)

	text, err := prompt.Build(kind, profile)
	if err != nil {
		result.Err = err
		return result
	}

	logger.Info("generating artifact")
	raw, err := p.deps.Generator.Generate(ctx, text)
	if err != nil {
		result.Err = err
		return result
	}

	result.Artifact.Content = p.deps.Extractor.Extract(kind, raw)
	if result.Artifact.IsEmpty() {
		logger.Debug("raw completion", "response", raw)
		result.Err = fmt.Errorf("%s: %w", kind, ErrEmptyArtifact)
		return result
	}

	switch kind {
	case domain.ArtifactContainerFile:
		p.finishContainerFile(ctx, logger, &result, profile, checkout)
	case domain.ArtifactOrchestrationBundle:
		p.finishBundle(logger, &result)
	}
	return result
}

func (p *Pipeline) finishContainerFile(ctx context.Context, logger *slog.Logger, result *ArtifactResult, profile *domain.RepositoryProfile, checkout *repository.Checkout) {
	content := result.Artifact.Content
	findings := validation.Dockerfile(content, profile)
	logFindings(logger, result.Kind.FileName(), findings)

	if profile.HasFile("Dockerfile") {
		existing, err := os.ReadFile(filepath.Join(checkout.Path, "Dockerfile"))
		if err == nil {
			summary := drift.Compare(string(existing), content)
			result.Drift = &summary
			logger.Info("compared with existing Dockerfile", "added", summary.Added, "removed", summary.Removed)
		}
	}

	if p.cfg.VerifyBuild && p.deps.Verifier != nil {
		tag := "deploysmith-verify:" + domain.AppName(profile)
		build, err := p.deps.Verifier.Build(ctx, checkout.Path, content, tag, p.cfg.KeepImage)
		result.Build = build
		if err != nil {
			findings = append(findings, domain.Finding{Rule: "build", Severity: domain.SeverityError, Message: err.Error()})
			logger.Warn("verification build failed", "error", err)
		}
	}

	path, err := p.deps.Sink.Save(result.Kind.FileName(), content)
	if err != nil {
		result.Err = err
		return
	}
	result.Files = append(result.Files, SavedFile{Name: result.Kind.FileName(), Path: path, Findings: findings})
}

func (p *Pipeline) finishBundle(logger *slog.Logger, result *ArtifactResult) {
	content := result.Artifact.Content
	path, err := p.deps.Sink.Save(result.Kind.FileName(), content)
	if err != nil {
		result.Err = err
		return
	}
	result.Files = append(result.Files, SavedFile{Name: result.Kind.FileName(), Path: path})

	result.Artifact.Fragments = manifest.Split(content)
	for _, fragment := range result.Artifact.Fragments {
		findings := validation.Manifest(fragment)
		logFindings(logger, fragment.FileName(), findings)

		path, err := p.deps.Sink.Save(fragment.FileName(), fragment.Content)
		if err != nil {
			result.Err = err
			return
		}
		result.Files = append(result.Files, SavedFile{Name: fragment.FileName(), Path: path, Findings: findings})
	}
	logger.Info("manifest bundle split", "fragments", len(result.Artifact.Fragments))
}

// =============================================================================
// Helpers
// =============================================================================

func (p *Pipeline) analyze(path string) (*domain.RepositoryProfile, error) {
	profile, err := analysis.AnalyzeDir(path)
	if err != nil {
		return nil, err
	}
	for _, w := range profile.Warnings {
		p.logger.Warn("manifest parse warning", "source", w.Source, "message", w.Message)
	}
	p.logger.Info("repository analyzed",
		"languages", profile.Languages,
		"web_app", profile.IsWebApp,
		"port", profile.DefaultPort,
	)
	return profile, nil
}

func (p *Pipeline) release(checkout *repository.Checkout) {
	if err := checkout.Close(); err != nil {
		p.logger.Warn("failed to remove checkout", "path", checkout.Path, "error", err)
	}
}

func (p *Pipeline) fail(ctx context.Context, run *domain.Run, cause error) {
	if err := run.Fail(cause.Error()); err != nil {
		p.logger.Warn("invalid run transition", "run_id", run.ID, "error", err)
	}
	p.persist("FinishRun", func(s store.Store) error { return s.FinishRun(ctx, run) })
}

// record stores every saved file, and one record per failed kind, in a
// single transaction together with the run's final state.
func (p *Pipeline) record(ctx context.Context, run *domain.Run, results []ArtifactResult) {
	p.persist("RecordArtifacts", func(s store.Store) error {
		return s.WithTx(ctx, func(tx store.Store) error {
			for _, r := range results {
				if r.Failed() {
					rec := domain.NewArtifactRecord(run.ID, r.Kind, r.Kind.FileName())
					rec.Content = r.Artifact.Content
					rec.Error = r.Err.Error()
					if err := tx.AddArtifact(ctx, rec); err != nil {
						return err
					}
					continue
				}
				for _, f := range r.Files {
					rec := domain.NewArtifactRecord(run.ID, r.Kind, f.Name)
					rec.Path = f.Path
					rec.Content = contentFor(r, f.Name)
					rec.Findings = f.Findings
					if err := tx.AddArtifact(ctx, rec); err != nil {
						return err
					}
				}
			}
			return tx.FinishRun(ctx, run)
		})
	})
}

// persist runs fn against the store when one is configured. History is
// best effort: failures are logged and never fail the run.
func (p *Pipeline) persist(op string, fn func(store.Store) error) {
	if p.deps.Store == nil {
		return
	}
	if err := fn(p.deps.Store); err != nil {
		p.logger.Warn("failed to record run history", "op", op, "error", err)
	}
}

func contentFor(r ArtifactResult, name string) string {
	for _, fragment := range r.Artifact.Fragments {
		if fragment.FileName() == name {
			return fragment.Content
		}
	}
	return r.Artifact.Content
}

func logFindings(logger *slog.Logger, file string, findings []domain.Finding) {
	for _, f := range findings {
		logger.Warn("artifact finding", "file", file, "rule", f.Rule, "severity", f.Severity, "message", f.Message)
	}
}
