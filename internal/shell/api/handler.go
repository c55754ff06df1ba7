// Package api provides the HTTP surface for analysis, generation and run history.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/artpar/deploysmith/internal/core/analysis"
	"github.com/artpar/deploysmith/internal/core/domain"
	"github.com/artpar/deploysmith/internal/core/validation"
	apimw "github.com/artpar/deploysmith/internal/shell/api/middleware"
	"github.com/artpar/deploysmith/internal/shell/api/openapi"
	"github.com/artpar/deploysmith/internal/shell/inference"
	"github.com/artpar/deploysmith/internal/shell/pipeline"
	"github.com/artpar/deploysmith/internal/shell/repository"
	"github.com/artpar/deploysmith/internal/shell/store"
)

// =============================================================================
// Handler
// =============================================================================

// Runner is the part of the pipeline the API drives.
type Runner interface {
	Analyze(ctx context.Context, source, branch string) (*domain.RepositoryProfile, error)
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// ModelChecker reports whether the inference endpoint can serve requests.
type ModelChecker interface {
	CheckModel(ctx context.Context) error
}

// Config holds the handler's collaborators.
type Config struct {
	Runner  Runner
	Store   store.Store  // nil when history is disabled
	Checker ModelChecker // nil skips the inference readiness check
	Token   string       // API token for /api/v1; empty disables auth
	Logger  *slog.Logger
}

// Handler provides HTTP handlers for the API.
type Handler struct {
	runner  Runner
	store   store.Store
	checker ModelChecker
	auth    *apimw.AuthMiddleware
	logger  *slog.Logger
	spec    *openapi.Generator
}

// NewHandler creates a new API handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := &Handler{
		runner:  cfg.Runner,
		store:   cfg.Store,
		checker: cfg.Checker,
		auth:    apimw.NewAuthMiddleware(apimw.AuthConfig{Token: cfg.Token, Logger: cfg.Logger}),
		logger:  cfg.Logger,
		spec:    openapi.NewGenerator(openapi.Info{
			Description: "Analyze repositories and generate Dockerfiles and Kubernetes manifests.",
		}),
	}
	h.registerSpec()
	return h
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)
	r.Get("/openapi.json", h.spec.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.auth.Handler)

		r.Post("/analyze", h.handleAnalyze)
		r.Post("/generate", h.handleGenerate)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.handleListRuns)
			r.Get("/{id}", h.handleGetRun)
			r.Delete("/{id}", h.handleDeleteRun)
		})
	})

	return r
}

// registerSpec describes every route for /openapi.json.
func (h *Handler) registerSpec() {
	for _, route := range []openapi.Route{
		{Method: http.MethodGet, Path: "/health", Summary: "Liveness probe", Tag: "Health", Response: HealthResponse{}},
		{Method: http.MethodGet, Path: "/ready", Summary: "Readiness probe", Tag: "Health", Response: ReadyResponse{}},
		{Method: http.MethodPost, Path: "/api/v1/analyze", Summary: "Analyze a repository", Tag: "Analysis", Request: AnalyzeRequest{}, Response: AnalyzeResponse{}},
		{Method: http.MethodPost, Path: "/api/v1/generate", Summary: "Generate deployment artifacts", Tag: "Generation", Request: GenerateRequest{}, Response: GenerateResponse{}, Status: http.StatusCreated},
		{Method: http.MethodGet, Path: "/api/v1/runs", Summary: "List runs", Tag: "Runs", Response: RunListResponse{}},
		{Method: http.MethodGet, Path: "/api/v1/runs/{id}", Summary: "Get a run with its artifacts", Tag: "Runs", Response: RunDetailResponse{}},
		{Method: http.MethodDelete, Path: "/api/v1/runs/{id}", Summary: "Delete a run", Tag: "Runs", Status: http.StatusNoContent},
	} {
		h.spec.RegisterRoute(route)
	}
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	ready := true

	if h.store == nil {
		checks["database"] = "disabled"
	} else {
		checks["database"] = "ok"
	}

	switch {
	case h.checker == nil:
		checks["inference"] = "unchecked"
	case h.checker.CheckModel(r.Context()) != nil:
		checks["inference"] = "failed"
		ready = false
	default:
		checks["inference"] = "ok"
	}

	if !ready {
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{Status: "not_ready", Checks: checks})
		return
	}
	h.writeJSON(w, http.StatusOK, ReadyResponse{Status: "ready", Checks: checks})
}

// =============================================================================
// Analysis and Generation Handlers
// =============================================================================

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "invalid_json")
		return
	}
	if field, msg := validation.ValidateAnalyzeRequest(req.Path); field != "" {
		h.writeFieldError(w, field, msg)
		return
	}

	profile, err := h.runner.Analyze(r.Context(), req.Path, req.Branch)
	if err != nil {
		h.writeRunError(w, "analyze", err)
		return
	}

	h.writeJSON(w, http.StatusOK, AnalyzeResponse{
		Source:  req.Path,
		AppName: domain.AppName(profile),
		Profile: profile,
	})
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "invalid_json")
		return
	}
	if field, msg := validation.ValidateGenerateRequest(req.Source, req.Kinds); field != "" {
		h.writeFieldError(w, field, msg)
		return
	}

	kinds := make([]domain.ArtifactKind, 0, len(req.Kinds))
	for _, k := range req.Kinds {
		kind, _ := domain.ParseArtifactKind(k) // validated above
		kinds = append(kinds, kind)
	}

	result, err := h.runner.Run(r.Context(), pipeline.Request{
		Source: req.Source,
		Branch: req.Branch,
		Kinds:  kinds,
	})
	if err != nil {
		h.writeRunError(w, "generate", err)
		return
	}

	h.logger.Info("run completed via API", "run_id", result.Run.ID, "status", result.Run.Status)
	h.writeJSON(w, http.StatusCreated, generateResponse(result))
}

// =============================================================================
// Run History Handlers
// =============================================================================

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if !h.historyEnabled(w) {
		return
	}

	opts := store.DefaultListOptions()
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Offset = n
		}
	}
	opts.Source = r.URL.Query().Get("source")
	opts = opts.Normalize()

	runs, err := h.store.ListRuns(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list runs", "internal_error")
		return
	}
	if runs == nil {
		runs = []domain.Run{}
	}

	h.writeJSON(w, http.StatusOK, RunListResponse{Runs: runs, Limit: opts.Limit, Offset: opts.Offset})
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if !h.historyEnabled(w) {
		return
	}
	id := chi.URLParam(r, "id")

	run, err := h.store.GetRun(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, "get run", err)
		return
	}
	artifacts, err := h.store.ListArtifacts(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, "list artifacts", err)
		return
	}
	if artifacts == nil {
		artifacts = []domain.ArtifactRecord{}
	}

	h.writeJSON(w, http.StatusOK, RunDetailResponse{Run: run, Artifacts: artifacts})
}

func (h *Handler) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if !h.historyEnabled(w) {
		return
	}
	id := chi.URLParam(r, "id")

	if err := h.store.DeleteRun(r.Context(), id); err != nil {
		h.writeStoreError(w, "delete run", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) historyEnabled(w http.ResponseWriter) bool {
	if h.store == nil {
		h.writeError(w, http.StatusServiceUnavailable, "run history is disabled", "history_disabled")
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func (h *Handler) writeFieldError(w http.ResponseWriter, field, message string) {
	h.writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error: message,
		Code:  "validation_error",
		Field: field,
	})
}

// writeRunError maps repository, analysis and inference failures to statuses.
func (h *Handler) writeRunError(w http.ResponseWriter, op string, err error) {
	var cloneErr *repository.CloneError
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, analysis.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error(), "not_found")
	case errors.Is(err, repository.ErrGitNotFound):
		h.writeError(w, http.StatusServiceUnavailable, err.Error(), "git_unavailable")
	case errors.As(err, &cloneErr):
		h.writeError(w, http.StatusBadGateway, err.Error(), "clone_failed")
	case errors.Is(err, domain.ErrEmptySource), errors.Is(err, pipeline.ErrNoKinds):
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
	case errors.Is(err, inference.ErrConnectionFailed):
		h.writeError(w, http.StatusBadGateway, err.Error(), "inference_unavailable")
	default:
		h.logger.Error("request failed", "op", op, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to "+op, "internal_error")
	}
}

func (h *Handler) writeStoreError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "run not found", "not_found")
		return
	}
	h.logger.Error("store operation failed", "op", op, "error", err)
	h.writeError(w, http.StatusInternalServerError, "failed to "+op, "internal_error")
}

func generateResponse(result *pipeline.Result) GenerateResponse {
	resp := GenerateResponse{
		Run:       result.Run,
		Artifacts: make([]ArtifactResponse, 0, len(result.Artifacts)),
	}
	for _, a := range result.Artifacts {
		item := ArtifactResponse{
			Kind:      a.Kind,
			Content:   a.Artifact.Content,
			Fragments: a.Artifact.Fragments,
			Files:     a.Files,
		}
		if a.Drift != nil {
			item.Drift = &DriftResponse{Added: a.Drift.Added, Removed: a.Drift.Removed, Unchanged: a.Drift.Unchanged}
		}
		if a.Build != nil {
			item.Build = &BuildResponse{Tag: a.Build.Tag, Duration: a.Build.Duration}
		}
		if a.Err != nil {
			item.Error = a.Err.Error()
		}
		resp.Artifacts = append(resp.Artifacts, item)
	}
	return resp
}
