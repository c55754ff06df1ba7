// Package domain contains the value types shared by the analysis, prompt and
// extraction stages. All types are plain values; nothing in this package does I/O.
package domain

import "sort"

// =============================================================================
// Repository Profile
// =============================================================================

// DefaultPort is the port assumed when no web framework decides otherwise.
const DefaultPort = 3000

// Ecosystem keys used in RepositoryProfile.Dependencies.
const (
	EcosystemNode   = "node"
	EcosystemPython = "python"
	EcosystemRust   = "rust"
)

// RepositoryProfile is the technology profile of a repository.
// It is produced once per analysis run and never mutated afterwards.
type RepositoryProfile struct {
	Languages       []string                     `json:"languages"`
	PackageManagers map[string]bool              `json:"package_managers"`
	Dependencies    map[string]DependencySummary `json:"dependencies"`
	EntryPoints     []string                     `json:"entry_points"`
	Structure       map[string]bool              `json:"structure"`
	IsWebApp        bool                         `json:"is_web_app"`
	DefaultPort     int                          `json:"default_port"`
	Compose         *ComposeSummary              `json:"compose,omitempty"`
	Warnings        []Warning                    `json:"warnings,omitempty"`
}

// NewRepositoryProfile returns an empty profile with the fallback port.
func NewRepositoryProfile() *RepositoryProfile {
	return &RepositoryProfile{
		Languages:       []string{},
		PackageManagers: map[string]bool{},
		Dependencies:    map[string]DependencySummary{},
		EntryPoints:     []string{},
		Structure:       map[string]bool{},
		DefaultPort:     DefaultPort,
	}
}

// PrimaryLanguage returns the first detected language or "unknown".
func (p *RepositoryProfile) PrimaryLanguage() string {
	if p == nil || len(p.Languages) == 0 {
		return "unknown"
	}
	return p.Languages[0]
}

// HasLanguage reports whether lang was detected.
func (p *RepositoryProfile) HasLanguage(lang string) bool {
	for _, l := range p.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// HasFile reports whether a structure marker was found at the repository root.
func (p *RepositoryProfile) HasFile(name string) bool {
	return p.Structure[name]
}

// PackageManagerFiles returns the detected manifest filenames, sorted.
func (p *RepositoryProfile) PackageManagerFiles() []string {
	files := make([]string, 0, len(p.PackageManagers))
	for name, present := range p.PackageManagers {
		if present {
			files = append(files, name)
		}
	}
	sort.Strings(files)
	return files
}

// DependencySummary describes the direct dependencies declared by one ecosystem.
type DependencySummary struct {
	Name         string            `json:"name,omitempty"`
	Main         string            `json:"main,omitempty"`
	Scripts      map[string]string `json:"scripts,omitempty"`
	Dependencies []string          `json:"dependencies"`
}

// Warning records a recoverable problem found during analysis,
// such as a dependency manifest that could not be parsed.
type Warning struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

// =============================================================================
// Compose Summary
// =============================================================================

// ComposeSummary is the subset of an existing docker-compose file that is
// useful as prompt context.
type ComposeSummary struct {
	Services []ComposeService `json:"services"`
}

// ComposeService is one service from a compose file.
type ComposeService struct {
	Name  string   `json:"name"`
	Image string   `json:"image,omitempty"`
	Ports []uint32 `json:"ports,omitempty"`
}
