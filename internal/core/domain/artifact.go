package domain

import (
	"fmt"
	"strings"
)

// =============================================================================
// Artifact Kinds
// =============================================================================

// ArtifactKind identifies what a generated artifact is.
type ArtifactKind string

const (
	// ArtifactContainerFile is a Dockerfile.
	ArtifactContainerFile ArtifactKind = "container-file"
	// ArtifactOrchestrationBundle is a multi-document Kubernetes manifest.
	ArtifactOrchestrationBundle ArtifactKind = "orchestration-bundle"
)

// AllArtifactKinds lists every kind in generation order.
var AllArtifactKinds = []ArtifactKind{
	ArtifactContainerFile,
	ArtifactOrchestrationBundle,
}

// IsValid returns true if the kind is known.
func (k ArtifactKind) IsValid() bool {
	switch k {
	case ArtifactContainerFile, ArtifactOrchestrationBundle:
		return true
	}
	return false
}

// FileName is the name the whole artifact is saved under.
func (k ArtifactKind) FileName() string {
	switch k {
	case ArtifactContainerFile:
		return "Dockerfile"
	case ArtifactOrchestrationBundle:
		return "k8s-manifests.yaml"
	}
	return string(k)
}

// ParseArtifactKind accepts the canonical names plus the short aliases
// "dockerfile" and "k8s".
func ParseArtifactKind(s string) (ArtifactKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ArtifactContainerFile), "dockerfile", "docker":
		return ArtifactContainerFile, nil
	case string(ArtifactOrchestrationBundle), "k8s", "kubernetes", "manifests":
		return ArtifactOrchestrationBundle, nil
	}
	return "", fmt.Errorf("unknown artifact kind %q", s)
}

// =============================================================================
// Generated Artifacts
// =============================================================================

// GeneratedArtifact is the recovered body of one model completion.
type GeneratedArtifact struct {
	Kind      ArtifactKind       `json:"kind"`
	Content   string             `json:"content"`
	Fragments []ManifestFragment `json:"fragments,omitempty"`
}

// IsEmpty returns true when nothing usable was recovered.
func (a GeneratedArtifact) IsEmpty() bool {
	return strings.TrimSpace(a.Content) == ""
}

// ManifestFragment is one document of an orchestration bundle.
// Index is the position among non-blank documents and, together with Kind,
// forms the file name.
type ManifestFragment struct {
	Index   int    `json:"index"`
	Kind    string `json:"kind"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

// FileName returns the per-fragment file name.
//
// Example:
//
//	ManifestFragment{Index: 1, Kind: "service"}.FileName() // returns "k8s-service-1.yaml"
func (f ManifestFragment) FileName() string {
	return fmt.Sprintf("k8s-%s-%d.yaml", f.Kind, f.Index)
}
