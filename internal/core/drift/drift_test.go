package drift

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare_Identical(t *testing.T) {
	s := Compare("FROM alpine\nUSER app\n", "FROM alpine\nUSER app")

	assert.True(t, s.Identical())
	assert.Equal(t, 2, s.Unchanged)
	assert.Empty(t, s.Diff)
}

func TestCompare_Changes(t *testing.T) {
	existing := "FROM node:16\nWORKDIR /app\nCMD [\"node\", \"index.js\"]"
	generated := "FROM node:20-alpine\nWORKDIR /app\nUSER node\nCMD [\"node\", \"index.js\"]"

	s := Compare(existing, generated)

	assert.False(t, s.Identical())
	assert.Equal(t, 2, s.Added)
	assert.Equal(t, 1, s.Removed)
	assert.Equal(t, 2, s.Unchanged)
	assert.Contains(t, s.Diff, "-FROM node:16\n")
	assert.Contains(t, s.Diff, "+FROM node:20-alpine\n")
	assert.Contains(t, s.Diff, "+USER node\n")
}

func TestCompare_AgainstNothing(t *testing.T) {
	s := Compare("", "FROM alpine\nUSER app")

	assert.Equal(t, 2, s.Added)
	assert.Equal(t, 0, s.Removed)
	assert.Equal(t, 0, s.Unchanged)
}

func TestCompare_BothEmpty(t *testing.T) {
	assert.True(t, Compare("", "").Identical())
}
