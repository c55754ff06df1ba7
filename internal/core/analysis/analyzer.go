package analysis

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/artpar/deploysmith/internal/core/compose"
	"github.com/artpar/deploysmith/internal/core/domain"
)

// =============================================================================
// Entry Points
// =============================================================================

// AnalyzeDir analyzes the repository rooted at path.
// A missing path is the only fatal condition.
func AnalyzeDir(path string) (*domain.RepositoryProfile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &AnalysisError{Path: path, Err: err}
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &AnalysisError{Path: path, Err: ErrNotFound}
		}
		return nil, &AnalysisError{Path: path, Err: err}
	}
	if !info.IsDir() {
		return nil, &AnalysisError{Path: path, Err: ErrNotDirectory}
	}

	return Analyze(os.DirFS(abs)), nil
}

// Analyze builds a RepositoryProfile from the root of fsys.
// Unparseable manifests are recorded as warnings and never abort the analysis.
func Analyze(fsys fs.FS) *domain.RepositoryProfile {
	profile := domain.NewRepositoryProfile()

	for _, marker := range packageMarkers {
		if !exists(fsys, marker.File) {
			continue
		}
		if !profile.HasLanguage(marker.Language) {
			profile.Languages = append(profile.Languages, marker.Language)
		}
		profile.PackageManagers[marker.File] = true

		switch marker.File {
		case "package.json":
			analyzeNode(fsys, profile)
		case "requirements.txt":
			analyzePython(fsys, profile)
		case "Cargo.toml":
			analyzeRust(fsys, profile)
		}
	}

	for _, name := range commonFiles {
		if !exists(fsys, name) {
			continue
		}
		profile.Structure[name] = true
		if entryPointFiles[name] {
			profile.EntryPoints = append(profile.EntryPoints, name)
		}
	}

	if profile.Structure[composeFile] {
		analyzeCompose(fsys, profile)
	}

	return profile
}

// =============================================================================
// Helpers
// =============================================================================

func exists(fsys fs.FS, name string) bool {
	_, err := fs.Stat(fsys, name)
	return err == nil
}

func warn(profile *domain.RepositoryProfile, source string, err error) {
	profile.Warnings = append(profile.Warnings, domain.Warning{
		Source:  source,
		Message: err.Error(),
	})
}

func analyzeCompose(fsys fs.FS, profile *domain.RepositoryProfile) {
	data, err := fs.ReadFile(fsys, composeFile)
	if err != nil {
		warn(profile, composeFile, err)
		return
	}
	summary, err := compose.Summarize(string(data))
	if err != nil {
		warn(profile, composeFile, err)
		return
	}
	profile.Compose = summary
}

// containsAny reports whether any of candidates is in names.
func containsAny(names map[string]bool, candidates []string) bool {
	for _, c := range candidates {
		if names[c] {
			return true
		}
	}
	return false
}
