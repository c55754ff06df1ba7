package sink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSink_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "generated_configs")
	s := NewFileSink(dir)

	path, err := s.Save("Dockerfile", "FROM alpine")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Dockerfile"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "FROM alpine", string(data))
}

func TestFileSink_Overwrites(t *testing.T) {
	s := NewFileSink(t.TempDir())

	_, err := s.Save("k8s-service-0.yaml", "old")
	require.NoError(t, err)
	_, err = s.Save("k8s-service-0.yaml", "new")
	require.NoError(t, err)

	got, err := s.Read("k8s-service-0.yaml")
	require.NoError(t, err)
	assert.Equal(t, "new", got)
}

func TestMemorySink(t *testing.T) {
	s := NewMemorySink("/out")

	path, err := s.Save("k8s-manifests.yaml", "kind: Service")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/out", "k8s-manifests.yaml"), path)
	got, err := s.Read("k8s-manifests.yaml")
	require.NoError(t, err)
	assert.Equal(t, "kind: Service", got)
	assert.NoFileExists(t, path)
}

func TestFileSink_RejectsEscapingNames(t *testing.T) {
	s := NewMemorySink("/out")

	for _, name := range []string{"", "../Dockerfile", "/etc/passwd", ".."} {
		_, err := s.Save(name, "x")
		assert.Error(t, err, name)
	}
}
