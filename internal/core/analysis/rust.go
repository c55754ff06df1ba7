package analysis

import (
	"fmt"
	"io/fs"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/artpar/deploysmith/internal/core/domain"
)

const rustManifest = "Cargo.toml"

// cargoManifest is the part of Cargo.toml the analyzer reads.
type cargoManifest struct {
	Package struct {
		Name string `toml:"name"`
	} `toml:"package"`
	Dependencies map[string]toml.Primitive `toml:"dependencies"`
}

// analyzeRust records the rust dependency summary. Rust crates never change the
// web application signal.
func analyzeRust(fsys fs.FS, profile *domain.RepositoryProfile) {
	data, err := fs.ReadFile(fsys, rustManifest)
	if err != nil {
		warn(profile, rustManifest, err)
		return
	}

	var manifest cargoManifest
	if _, err := toml.Decode(string(data), &manifest); err != nil {
		warn(profile, rustManifest, fmt.Errorf("could not parse %s: %w", rustManifest, err))
		return
	}

	deps := make([]string, 0, len(manifest.Dependencies))
	for name := range manifest.Dependencies {
		deps = append(deps, name)
	}
	sort.Strings(deps)

	profile.Dependencies[domain.EcosystemRust] = domain.DependencySummary{
		Name:         manifest.Package.Name,
		Dependencies: deps,
	}
}
