package workers

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/artpar/deploysmith/internal/core/domain"
	"github.com/artpar/deploysmith/internal/shell/store"
)

// =============================================================================
// Test Configuration
// =============================================================================

func TestDefaultHistoryPrunerConfig(t *testing.T) {
	config := DefaultHistoryPrunerConfig()

	assert.Equal(t, time.Hour, config.Interval)
	assert.Equal(t, 30*time.Second, config.Timeout)
	assert.Zero(t, config.Retention)
}

func TestNewHistoryPruner_DefaultConfig(t *testing.T) {
	p := NewHistoryPruner(&mockPruner{}, HistoryPrunerConfig{}, nil)

	assert.NotNil(t, p)
	assert.Equal(t, time.Hour, p.config.Interval)
	assert.Equal(t, 30*time.Second, p.config.Timeout)
	assert.False(t, p.Enabled())
}

// =============================================================================
// Test Lifecycle
// =============================================================================

func TestHistoryPruner_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := &mockPruner{}
	p := NewHistoryPruner(m, HistoryPrunerConfig{
		Retention: time.Hour,
		Interval:  20 * time.Millisecond,
	}, slog.Default())

	p.Start()
	require.Eventually(t, func() bool { return m.callCount() >= 2 }, time.Second, 5*time.Millisecond)
	p.Stop()

	// Should be able to start again
	p.Start()
	p.Stop()
}

func TestHistoryPruner_DisabledDoesNotStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := &mockPruner{}
	p := NewHistoryPruner(m, HistoryPrunerConfig{Interval: time.Millisecond}, nil)

	p.Start()
	time.Sleep(10 * time.Millisecond)
	p.Stop()

	assert.Zero(t, m.callCount())
	assert.Zero(t, p.RunOnce(context.Background()))
}

func TestHistoryPruner_StopWithoutStart(t *testing.T) {
	p := NewHistoryPruner(&mockPruner{}, HistoryPrunerConfig{Retention: time.Hour}, nil)
	p.Stop()
}

// =============================================================================
// Test Prune Cycle
// =============================================================================

func TestHistoryPruner_RunOnce_Cutoff(t *testing.T) {
	m := &mockPruner{removed: 3}
	p := NewHistoryPruner(m, HistoryPrunerConfig{Retention: 24 * time.Hour}, nil)
	fixed := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	assert.Equal(t, int64(3), p.RunOnce(context.Background()))
	assert.Equal(t, fixed.Add(-24*time.Hour), m.lastCutoff())
}

func TestHistoryPruner_RunOnce_StoreError(t *testing.T) {
	m := &mockPruner{err: errors.New("database is locked")}
	p := NewHistoryPruner(m, HistoryPrunerConfig{Retention: time.Hour}, nil)

	assert.Zero(t, p.RunOnce(context.Background()))
	assert.Equal(t, 1, m.callCount())
}

func TestHistoryPruner_RunOnce_SQLiteStore(t *testing.T) {
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	old, err := domain.NewRun("./old", "")
	require.NoError(t, err)
	old.CreatedAt = time.Now().UTC().Add(-72 * time.Hour)
	require.NoError(t, s.CreateRun(ctx, old))

	recent, err := domain.NewRun("./recent", "")
	require.NoError(t, err)
	require.NoError(t, s.CreateRun(ctx, recent))

	p := NewHistoryPruner(s, HistoryPrunerConfig{Retention: 24 * time.Hour}, nil)
	assert.Equal(t, int64(1), p.RunOnce(ctx))

	runs, err := s.ListRuns(ctx, store.DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, recent.ID, runs[0].ID)
}

// =============================================================================
// Mock Pruner
// =============================================================================

type mockPruner struct {
	mu      sync.Mutex
	calls   int
	cutoff  time.Time
	removed int64
	err     error
}

func (m *mockPruner) PruneRuns(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.cutoff = before
	return m.removed, m.err
}

func (m *mockPruner) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockPruner) lastCutoff() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cutoff
}
