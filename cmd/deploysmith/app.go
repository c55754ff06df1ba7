package main

import (
	"fmt"
	"log/slog"

	"github.com/artpar/deploysmith/internal/shell/docker"
	"github.com/artpar/deploysmith/internal/shell/inference"
	"github.com/artpar/deploysmith/internal/shell/pipeline"
	"github.com/artpar/deploysmith/internal/shell/repository"
	"github.com/artpar/deploysmith/internal/shell/sink"
	"github.com/artpar/deploysmith/internal/shell/store"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitDockerError     = 3
	ExitHTTPServerError = 4
	ExitInferenceError  = 5
	ExitRepositoryError = 6
	ExitGenerateError   = 7
)

// CommandError carries the exit code a failed command should end with.
type CommandError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Application Wiring
// =============================================================================

// App bundles the collaborators commands share.
type App struct {
	config    *Config
	logger    *slog.Logger
	inference *inference.Client
	store     store.Store // nil when history is disabled
	verifier  *docker.Verifier
	pipeline  *pipeline.Pipeline
}

// NewApp connects every collaborator the configuration enables.
func NewApp(cfg *Config, logger *slog.Logger) (*App, error) {
	kinds, err := cfg.Pipeline.ArtifactKinds()
	if err != nil {
		return nil, &CommandError{Op: "NewApp", Err: err, ExitCode: ExitConfigError}
	}

	a := &App{config: cfg, logger: logger}

	a.inference = inference.NewClient(inference.Config{
		Host:    cfg.Ollama.Host,
		Model:   cfg.Ollama.Model,
		Timeout: cfg.Ollama.Timeout,
		Options: inference.Options{
			Temperature: cfg.Ollama.Temperature,
			TopP:        cfg.Ollama.TopP,
			TopK:        cfg.Ollama.TopK,
		},
	}, logger)

	if cfg.Database.Enabled {
		s, err := store.NewSQLiteStore(cfg.Database.DSN)
		if err != nil {
			return nil, &CommandError{Op: "NewApp", Err: err, ExitCode: ExitDatabaseError}
		}
		a.store = s
	}

	deps := pipeline.Deps{
		Provider:  repository.NewProvider(repository.Config{}, logger),
		Generator: a.inference,
		Sink:      sink.NewFileSink(cfg.Output.Dir),
	}
	if a.store != nil {
		deps.Store = a.store
	}

	if cfg.Docker.VerifyBuild {
		v, err := docker.NewVerifier(cfg.Docker.Host, logger)
		if err != nil {
			a.Close()
			return nil, &CommandError{Op: "NewApp", Err: err, ExitCode: ExitDockerError}
		}
		a.verifier = v
		deps.Verifier = v
	}

	a.pipeline = pipeline.New(pipeline.Config{
		Kinds:       kinds,
		Parallel:    cfg.Pipeline.Parallel,
		VerifyBuild: cfg.Docker.VerifyBuild,
		KeepImage:   cfg.Docker.KeepImage,
	}, deps, logger)

	return a, nil
}

// Close releases the store and Docker connections.
func (a *App) Close() {
	if a.verifier != nil {
		if err := a.verifier.Close(); err != nil {
			a.logger.Error("Docker client close error", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("database close error", "error", err)
		}
	}
}
