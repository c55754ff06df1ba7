package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/deploysmith/internal/core/domain"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func createTestRun(t *testing.T, store Store, source string) *domain.Run {
	t.Helper()
	run, err := domain.NewRun(source, "main")
	require.NoError(t, err)
	require.NoError(t, store.CreateRun(context.Background(), run))
	return run
}

func testProfile() *domain.RepositoryProfile {
	p := domain.NewRepositoryProfile()
	p.Languages = []string{"node"}
	p.IsWebApp = true
	p.DefaultPort = 3000
	p.Dependencies["node"] = domain.DependencySummary{Name: "web", Main: "index.js", Dependencies: []string{"express"}}
	return p
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestNewSQLiteStore_FileDatabase(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "data", "deploysmith.db")

	store, err := NewSQLiteStore(dsn)
	require.NoError(t, err)
	createTestRun(t, store, "./repo")
	require.NoError(t, store.Close())

	// Reopening runs migrations again without error and keeps data.
	store, err = NewSQLiteStore(dsn)
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.ListRuns(context.Background(), DefaultListOptions())
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

// =============================================================================
// Run Tests
// =============================================================================

func TestCreateAndGetRun(t *testing.T) {
	store := setupTestStore(t)
	run := createTestRun(t, store, "https://github.com/acme/web.git")

	got, err := store.GetRun(context.Background(), run.ID)

	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "https://github.com/acme/web.git", got.Source)
	assert.Equal(t, "main", got.Branch)
	assert.Equal(t, domain.RunPending, got.Status)
	assert.Nil(t, got.Profile)
	assert.Nil(t, got.FinishedAt)
	assert.WithinDuration(t, run.CreatedAt, got.CreatedAt, time.Microsecond)
}

func TestCreateRun_DuplicateID(t *testing.T) {
	store := setupTestStore(t)
	run := createTestRun(t, store, "./repo")

	err := store.CreateRun(context.Background(), run)

	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestGetRun_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetRun(context.Background(), "run_missing")

	assert.ErrorIs(t, err, ErrNotFound)
	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "GetRun", storeErr.Op)
	assert.Equal(t, "run_missing", storeErr.ID)
}

func TestFinishRun(t *testing.T) {
	store := setupTestStore(t)
	run := createTestRun(t, store, "./repo")
	run.Profile = testProfile()
	require.NoError(t, run.Transition(domain.RunRunning))
	require.NoError(t, run.Complete(1, 1))

	require.NoError(t, store.FinishRun(context.Background(), run))

	got, err := store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunPartial, got.Status)
	require.NotNil(t, got.FinishedAt)
	require.NotNil(t, got.Profile)
	assert.Equal(t, []string{"node"}, got.Profile.Languages)
	assert.Equal(t, "web", got.Profile.Dependencies["node"].Name)
	assert.True(t, got.Profile.IsWebApp)
}

func TestFinishRun_NotFound(t *testing.T) {
	store := setupTestStore(t)
	run, _ := domain.NewRun("./repo", "")

	assert.ErrorIs(t, store.FinishRun(context.Background(), run), ErrNotFound)
}

func TestListRuns_NewestFirst(t *testing.T) {
	store := setupTestStore(t)
	first := createTestRun(t, store, "./a")
	time.Sleep(2 * time.Millisecond)
	second := createTestRun(t, store, "./b")

	runs, err := store.ListRuns(context.Background(), DefaultListOptions())

	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)
}

func TestListRuns_FilterAndPaginate(t *testing.T) {
	store := setupTestStore(t)
	for i := 0; i < 3; i++ {
		createTestRun(t, store, "./a")
	}
	createTestRun(t, store, "./b")

	runs, err := store.ListRuns(context.Background(), ListOptions{Source: "./a"})
	require.NoError(t, err)
	assert.Len(t, runs, 3)

	runs, err = store.ListRuns(context.Background(), ListOptions{Limit: 2, Offset: 3})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestListOptions_Normalize(t *testing.T) {
	assert.Equal(t, ListOptions{Limit: 20}, ListOptions{Limit: -1, Offset: -5}.Normalize())
	assert.Equal(t, 500, ListOptions{Limit: 10000}.Normalize().Limit)
}

func TestDeleteRun_CascadesArtifacts(t *testing.T) {
	store := setupTestStore(t)
	run := createTestRun(t, store, "./repo")
	require.NoError(t, store.AddArtifact(context.Background(), domain.NewArtifactRecord(run.ID, domain.ArtifactContainerFile, "Dockerfile")))

	require.NoError(t, store.DeleteRun(context.Background(), run.ID))

	artifacts, err := store.ListArtifacts(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Empty(t, artifacts)
	assert.ErrorIs(t, store.DeleteRun(context.Background(), run.ID), ErrNotFound)
}

func TestPruneRuns_OlderThanCutoff(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old, err := domain.NewRun("./old", "")
	require.NoError(t, err)
	old.CreatedAt = now.Add(-48 * time.Hour)
	require.NoError(t, store.CreateRun(ctx, old))
	require.NoError(t, store.AddArtifact(ctx, domain.NewArtifactRecord(old.ID, domain.ArtifactContainerFile, "Dockerfile")))

	recent := createTestRun(t, store, "./recent")

	n, err := store.PruneRuns(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.GetRun(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetRun(ctx, recent.ID)
	assert.NoError(t, err)

	n, err = store.PruneRuns(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
}

// =============================================================================
// Artifact Tests
// =============================================================================

func TestAddAndListArtifacts(t *testing.T) {
	store := setupTestStore(t)
	run := createTestRun(t, store, "./repo")

	dockerfile := domain.NewArtifactRecord(run.ID, domain.ArtifactContainerFile, "Dockerfile")
	dockerfile.Path = "generated_configs/Dockerfile"
	dockerfile.Content = "FROM alpine"
	dockerfile.Findings = []domain.Finding{{Rule: "healthcheck", Severity: domain.SeverityWarning, Message: "no HEALTHCHECK instruction"}}
	require.NoError(t, store.AddArtifact(context.Background(), dockerfile))

	bundle := domain.NewArtifactRecord(run.ID, domain.ArtifactOrchestrationBundle, "k8s-manifests.yaml")
	bundle.CreatedAt = dockerfile.CreatedAt.Add(time.Millisecond)
	bundle.Error = "inference timed out"
	require.NoError(t, store.AddArtifact(context.Background(), bundle))

	artifacts, err := store.ListArtifacts(context.Background(), run.ID)

	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	assert.Equal(t, "Dockerfile", artifacts[0].Name)
	assert.Equal(t, "FROM alpine", artifacts[0].Content)
	assert.Equal(t, "generated_configs/Dockerfile", artifacts[0].Path)
	assert.Equal(t, dockerfile.Findings, artifacts[0].Findings)
	assert.Equal(t, domain.ArtifactOrchestrationBundle, artifacts[1].Kind)
	assert.Equal(t, "inference timed out", artifacts[1].Error)
	assert.Nil(t, artifacts[1].Findings)
}

func TestAddArtifact_UnknownRun(t *testing.T) {
	store := setupTestStore(t)

	err := store.AddArtifact(context.Background(), domain.NewArtifactRecord("run_missing", domain.ArtifactContainerFile, "Dockerfile"))

	assert.ErrorIs(t, err, ErrForeignKey)
}

// =============================================================================
// Transaction Tests
// =============================================================================

func TestWithTx_Commit(t *testing.T) {
	store := setupTestStore(t)
	run, _ := domain.NewRun("./repo", "")

	err := store.WithTx(context.Background(), func(tx Store) error {
		if err := tx.CreateRun(context.Background(), run); err != nil {
			return err
		}
		return tx.AddArtifact(context.Background(), domain.NewArtifactRecord(run.ID, domain.ArtifactContainerFile, "Dockerfile"))
	})
	require.NoError(t, err)

	artifacts, err := store.ListArtifacts(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Len(t, artifacts, 1)
}

func TestWithTx_Rollback(t *testing.T) {
	store := setupTestStore(t)
	run, _ := domain.NewRun("./repo", "")
	boom := errors.New("boom")

	err := store.WithTx(context.Background(), func(tx Store) error {
		require.NoError(t, tx.CreateRun(context.Background(), run))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	_, err = store.GetRun(context.Background(), run.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
