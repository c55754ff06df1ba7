package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/artpar/deploysmith/internal/core/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeFormat is fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (creating if needed) the database at dsn and runs
// migrations. ":memory:" gives a private in-memory database.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	memory := dsn == ":memory:"
	if !memory {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, NewStoreError("NewSQLiteStore", "", "", fmt.Sprintf("failed to create %s", dir), ErrConnectionFailed)
			}
		}
	}

	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}
	if memory {
		// Every connection to :memory: is a new database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	return createRun(ctx, s.db, run)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *domain.Run) error {
	return finishRun(ctx, s.db, run)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	return getRun(ctx, s.db, id)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]domain.Run, error) {
	return listRuns(ctx, s.db, opts)
}

func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	return deleteRun(ctx, s.db, id)
}

// PruneRuns deletes runs created before the cutoff along with their artifacts.
func (s *SQLiteStore) PruneRuns(ctx context.Context, before time.Time) (int64, error) {
	return pruneRuns(ctx, s.db, before)
}

func (s *SQLiteStore) AddArtifact(ctx context.Context, artifact *domain.ArtifactRecord) error {
	return addArtifact(ctx, s.db, artifact)
}

func (s *SQLiteStore) ListArtifacts(ctx context.Context, runID string) ([]domain.ArtifactRecord, error) {
	return listArtifacts(ctx, s.db, runID)
}

// WithTx runs fn inside a transaction. fn's error rolls everything back.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	return createRun(ctx, s.tx, run)
}

func (s *txSQLiteStore) FinishRun(ctx context.Context, run *domain.Run) error {
	return finishRun(ctx, s.tx, run)
}

func (s *txSQLiteStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	return getRun(ctx, s.tx, id)
}

func (s *txSQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]domain.Run, error) {
	return listRuns(ctx, s.tx, opts)
}

func (s *txSQLiteStore) DeleteRun(ctx context.Context, id string) error {
	return deleteRun(ctx, s.tx, id)
}

func (s *txSQLiteStore) PruneRuns(ctx context.Context, before time.Time) (int64, error) {
	return pruneRuns(ctx, s.tx, before)
}

func (s *txSQLiteStore) AddArtifact(ctx context.Context, artifact *domain.ArtifactRecord) error {
	return addArtifact(ctx, s.tx, artifact)
}

func (s *txSQLiteStore) ListArtifacts(ctx context.Context, runID string) ([]domain.ArtifactRecord, error) {
	return listArtifacts(ctx, s.tx, runID)
}

// WithTx reuses the open transaction.
func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	return fn(s)
}

// Close is a no-op; the owning store closes the database.
func (s *txSQLiteStore) Close() error {
	return nil
}

// =============================================================================
// Run Operations
// =============================================================================

// runRow represents a run row in the database.
type runRow struct {
	ID         string  `db:"id"`
	Source     string  `db:"source"`
	Branch     string  `db:"branch"`
	Status     string  `db:"status"`
	Profile    *string `db:"profile"`
	Error      string  `db:"error"`
	CreatedAt  string  `db:"created_at"`
	FinishedAt *string `db:"finished_at"`
}

func createRun(ctx context.Context, exec executor, run *domain.Run) error {
	profile, err := marshalNullable(run.Profile)
	if err != nil {
		return NewStoreError("CreateRun", "run", run.ID, "failed to serialize profile", ErrInvalidData)
	}

	query := `
		INSERT INTO runs (id, source, branch, status, profile, error, created_at, finished_at)
		VALUES (:id, :source, :branch, :status, :profile, :error, :created_at, :finished_at)`

	row := map[string]any{
		"id":          run.ID,
		"source":      run.Source,
		"branch":      run.Branch,
		"status":      string(run.Status),
		"profile":     profile,
		"error":       run.Error,
		"created_at":  run.CreatedAt.UTC().Format(timeFormat),
		"finished_at": formatNullableTime(run.FinishedAt),
	}

	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		if errors.Is(constraintViolation(err), ErrDuplicateID) {
			return NewStoreError("CreateRun", "run", run.ID, "run with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateRun", "run", run.ID, err.Error(), err)
	}
	return nil
}

// finishRun persists the status, profile, error and finish time of a run.
func finishRun(ctx context.Context, exec executor, run *domain.Run) error {
	profile, err := marshalNullable(run.Profile)
	if err != nil {
		return NewStoreError("FinishRun", "run", run.ID, "failed to serialize profile", ErrInvalidData)
	}

	query := `
		UPDATE runs SET
			status = :status,
			profile = :profile,
			error = :error,
			finished_at = :finished_at
		WHERE id = :id`

	row := map[string]any{
		"id":          run.ID,
		"status":      string(run.Status),
		"profile":     profile,
		"error":       run.Error,
		"finished_at": formatNullableTime(run.FinishedAt),
	}

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("FinishRun", "run", run.ID, err.Error(), err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return NewStoreError("FinishRun", "run", run.ID, "run not found", ErrNotFound)
	}
	return nil
}

func getRun(ctx context.Context, exec executor, id string) (*domain.Run, error) {
	var row runRow
	if err := exec.GetContext(ctx, &row, `SELECT * FROM runs WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetRun", "run", id, "run not found", ErrNotFound)
		}
		return nil, NewStoreError("GetRun", "run", id, err.Error(), err)
	}
	return rowToRun(&row)
}

func listRuns(ctx context.Context, exec executor, opts ListOptions) ([]domain.Run, error) {
	opts = opts.Normalize()

	query := `SELECT * FROM runs ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args := []any{opts.Limit, opts.Offset}
	if opts.Source != "" {
		query = `SELECT * FROM runs WHERE source = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
		args = append([]any{opts.Source}, args...)
	}

	var rows []runRow
	if err := exec.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, NewStoreError("ListRuns", "run", "", err.Error(), err)
	}

	runs := make([]domain.Run, 0, len(rows))
	for i := range rows {
		run, err := rowToRun(&rows[i])
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

func deleteRun(ctx context.Context, exec executor, id string) error {
	result, err := exec.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return NewStoreError("DeleteRun", "run", id, err.Error(), err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return NewStoreError("DeleteRun", "run", id, "run not found", ErrNotFound)
	}
	return nil
}

func pruneRuns(ctx context.Context, exec executor, before time.Time) (int64, error) {
	result, err := exec.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, before.UTC().Format(timeFormat))
	if err != nil {
		return 0, NewStoreError("PruneRuns", "run", "", err.Error(), err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

func rowToRun(row *runRow) (*domain.Run, error) {
	run := &domain.Run{
		ID:     row.ID,
		Source: row.Source,
		Branch: row.Branch,
		Status: domain.RunStatus(row.Status),
		Error:  row.Error,
	}

	if row.Profile != nil && *row.Profile != "" {
		var profile domain.RepositoryProfile
		if err := json.Unmarshal([]byte(*row.Profile), &profile); err != nil {
			return nil, NewStoreError("rowToRun", "run", row.ID, "failed to deserialize profile", ErrInvalidData)
		}
		run.Profile = &profile
	}

	createdAt, err := time.Parse(timeFormat, row.CreatedAt)
	if err != nil {
		return nil, NewStoreError("rowToRun", "run", row.ID, "invalid created_at", ErrInvalidData)
	}
	run.CreatedAt = createdAt

	if row.FinishedAt != nil {
		finishedAt, err := time.Parse(timeFormat, *row.FinishedAt)
		if err != nil {
			return nil, NewStoreError("rowToRun", "run", row.ID, "invalid finished_at", ErrInvalidData)
		}
		run.FinishedAt = &finishedAt
	}
	return run, nil
}

// =============================================================================
// Artifact Operations
// =============================================================================

// artifactRow represents an artifact row in the database.
type artifactRow struct {
	ID        string  `db:"id"`
	RunID     string  `db:"run_id"`
	Kind      string  `db:"kind"`
	Name      string  `db:"name"`
	Path      string  `db:"path"`
	Content   string  `db:"content"`
	Findings  *string `db:"findings"`
	Error     string  `db:"error"`
	CreatedAt string  `db:"created_at"`
}

func addArtifact(ctx context.Context, exec executor, artifact *domain.ArtifactRecord) error {
	var findings *string
	if len(artifact.Findings) > 0 {
		data, err := json.Marshal(artifact.Findings)
		if err != nil {
			return NewStoreError("AddArtifact", "artifact", artifact.ID, "failed to serialize findings", ErrInvalidData)
		}
		s := string(data)
		findings = &s
	}

	query := `
		INSERT INTO artifacts (id, run_id, kind, name, path, content, findings, error, created_at)
		VALUES (:id, :run_id, :kind, :name, :path, :content, :findings, :error, :created_at)`

	row := map[string]any{
		"id":         artifact.ID,
		"run_id":     artifact.RunID,
		"kind":       string(artifact.Kind),
		"name":       artifact.Name,
		"path":       artifact.Path,
		"content":    artifact.Content,
		"findings":   findings,
		"error":      artifact.Error,
		"created_at": artifact.CreatedAt.UTC().Format(timeFormat),
	}

	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		switch violation := constraintViolation(err); {
		case errors.Is(violation, ErrForeignKey):
			return NewStoreError("AddArtifact", "artifact", artifact.ID, "run "+artifact.RunID+" does not exist", ErrForeignKey)
		case errors.Is(violation, ErrDuplicateID):
			return NewStoreError("AddArtifact", "artifact", artifact.ID, "artifact with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("AddArtifact", "artifact", artifact.ID, err.Error(), err)
	}
	return nil
}

func listArtifacts(ctx context.Context, exec executor, runID string) ([]domain.ArtifactRecord, error) {
	var rows []artifactRow
	query := `SELECT * FROM artifacts WHERE run_id = ? ORDER BY created_at ASC, id ASC`
	if err := exec.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, NewStoreError("ListArtifacts", "artifact", runID, err.Error(), err)
	}

	artifacts := make([]domain.ArtifactRecord, 0, len(rows))
	for _, row := range rows {
		rec := domain.ArtifactRecord{
			ID:      row.ID,
			RunID:   row.RunID,
			Kind:    domain.ArtifactKind(row.Kind),
			Name:    row.Name,
			Path:    row.Path,
			Content: row.Content,
			Error:   row.Error,
		}
		if row.Findings != nil {
			if err := json.Unmarshal([]byte(*row.Findings), &rec.Findings); err != nil {
				return nil, NewStoreError("ListArtifacts", "artifact", row.ID, "failed to deserialize findings", ErrInvalidData)
			}
		}
		createdAt, err := time.Parse(timeFormat, row.CreatedAt)
		if err != nil {
			return nil, NewStoreError("ListArtifacts", "artifact", row.ID, "invalid created_at", ErrInvalidData)
		}
		rec.CreatedAt = createdAt
		artifacts = append(artifacts, rec)
	}
	return artifacts, nil
}

// =============================================================================
// Helpers
// =============================================================================

func marshalNullable(v *domain.RepositoryProfile) (*string, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

func formatNullableTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(timeFormat)
	return &s
}
