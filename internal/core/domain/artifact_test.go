package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArtifactKind(t *testing.T) {
	tests := []struct {
		input string
		want  ArtifactKind
	}{
		{"container-file", ArtifactContainerFile},
		{"Dockerfile", ArtifactContainerFile},
		{"orchestration-bundle", ArtifactOrchestrationBundle},
		{" k8s ", ArtifactOrchestrationBundle},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseArtifactKind(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseArtifactKind_Unknown(t *testing.T) {
	_, err := ParseArtifactKind("helm")
	assert.Error(t, err)
}

func TestArtifactKind_FileName(t *testing.T) {
	assert.Equal(t, "Dockerfile", ArtifactContainerFile.FileName())
	assert.Equal(t, "k8s-manifests.yaml", ArtifactOrchestrationBundle.FileName())
}

func TestManifestFragment_FileName(t *testing.T) {
	assert.Equal(t, "k8s-deployment-0.yaml", ManifestFragment{Index: 0, Kind: "deployment"}.FileName())
	assert.Equal(t, "k8s-unknown-3.yaml", ManifestFragment{Index: 3, Kind: "unknown"}.FileName())
}

func TestGeneratedArtifact_IsEmpty(t *testing.T) {
	assert.True(t, GeneratedArtifact{Content: " \n"}.IsEmpty())
	assert.False(t, GeneratedArtifact{Content: "FROM alpine"}.IsEmpty())
}

func TestRepositoryProfile_PrimaryLanguage(t *testing.T) {
	p := NewRepositoryProfile()
	assert.Equal(t, "unknown", p.PrimaryLanguage())

	p.Languages = append(p.Languages, "python", "node")
	assert.Equal(t, "python", p.PrimaryLanguage())
}

func TestRepositoryProfile_PackageManagerFilesSorted(t *testing.T) {
	p := NewRepositoryProfile()
	p.PackageManagers["requirements.txt"] = true
	p.PackageManagers["package.json"] = true

	assert.Equal(t, []string{"package.json", "requirements.txt"}, p.PackageManagerFiles())
}
