package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Run Creation Tests
// =============================================================================

func TestNewRun(t *testing.T) {
	run, err := NewRun("https://github.com/acme/web.git", "main")
	require.NoError(t, err)

	assert.Regexp(t, `^run_[0-9a-f]{12}$`, run.ID)
	assert.Equal(t, "https://github.com/acme/web.git", run.Source)
	assert.Equal(t, "main", run.Branch)
	assert.Equal(t, RunPending, run.Status)
	assert.NotZero(t, run.CreatedAt)
	assert.Nil(t, run.FinishedAt)
}

func TestNewRun_EmptySource(t *testing.T) {
	_, err := NewRun("  ", "")
	assert.ErrorIs(t, err, ErrEmptySource)
}

func TestNewID_Unique(t *testing.T) {
	assert.NotEqual(t, NewID("art"), NewID("art"))
	assert.Regexp(t, `^art_[0-9a-f]{12}$`, NewID("art"))
}

// =============================================================================
// State Machine Tests
// =============================================================================

func TestRun_Transition(t *testing.T) {
	run, _ := NewRun("./repo", "")

	require.NoError(t, run.Transition(RunRunning))
	assert.Nil(t, run.FinishedAt)

	require.NoError(t, run.Transition(RunSucceeded))
	assert.NotNil(t, run.FinishedAt)
	assert.True(t, run.Status.IsTerminal())

	assert.ErrorIs(t, run.Transition(RunRunning), ErrInvalidTransition)
}

func TestRun_FailFromPending(t *testing.T) {
	run, _ := NewRun("./repo", "")

	require.NoError(t, run.Fail("clone failed"))
	assert.Equal(t, RunFailed, run.Status)
	assert.Equal(t, "clone failed", run.Error)
}

func TestRun_Complete(t *testing.T) {
	tests := []struct {
		name      string
		succeeded int
		failed    int
		want      RunStatus
	}{
		{"all succeeded", 2, 0, RunSucceeded},
		{"some failed", 1, 1, RunPartial},
		{"all failed", 0, 2, RunFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run, _ := NewRun("./repo", "")
			require.NoError(t, run.Transition(RunRunning))

			require.NoError(t, run.Complete(tt.succeeded, tt.failed))
			assert.Equal(t, tt.want, run.Status)
		})
	}
}

func TestValidateRunTransition(t *testing.T) {
	assert.NoError(t, ValidateRunTransition(RunPending, RunRunning))
	assert.ErrorIs(t, ValidateRunTransition(RunPending, RunSucceeded), ErrInvalidTransition)
	assert.ErrorIs(t, ValidateRunTransition(RunFailed, RunRunning), ErrInvalidTransition)
	assert.ErrorIs(t, ValidateRunTransition(RunStatus("bogus"), RunRunning), ErrInvalidTransition)
}

func TestNewArtifactRecord(t *testing.T) {
	rec := NewArtifactRecord("run_abc", ArtifactContainerFile, "Dockerfile")

	assert.Regexp(t, `^art_`, rec.ID)
	assert.Equal(t, "run_abc", rec.RunID)
	assert.Equal(t, ArtifactContainerFile, rec.Kind)
	assert.Equal(t, "Dockerfile", rec.Name)
}
