package analysis

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"

	"github.com/artpar/deploysmith/internal/core/domain"
)

const nodeManifest = "package.json"

// packageJSON is the part of package.json the analyzer reads.
type packageJSON struct {
	Name         *string                    `json:"name"`
	Main         *string                    `json:"main"`
	Scripts      map[string]string          `json:"scripts"`
	Dependencies map[string]json.RawMessage `json:"dependencies"`
}

// analyzeNode records the node dependency summary and web framework signal.
func analyzeNode(fsys fs.FS, profile *domain.RepositoryProfile) {
	data, err := fs.ReadFile(fsys, nodeManifest)
	if err != nil {
		warn(profile, nodeManifest, err)
		return
	}

	summary, deps, err := parsePackageJSON(data)
	if err != nil {
		warn(profile, nodeManifest, err)
		return
	}
	profile.Dependencies[domain.EcosystemNode] = summary

	if containsAny(deps, nodeWebFrameworks) {
		profile.IsWebApp = true
		profile.DefaultPort = nodeWebPort
	}
}

// parsePackageJSON decodes a package.json document. The returned set holds the
// dependency names exactly as declared.
func parsePackageJSON(data []byte) (domain.DependencySummary, map[string]bool, error) {
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return domain.DependencySummary{}, nil, fmt.Errorf("could not parse %s: %w", nodeManifest, err)
	}

	summary := domain.DependencySummary{
		Main:         "index.js",
		Scripts:      map[string]string{},
		Dependencies: make([]string, 0, len(pkg.Dependencies)),
	}
	if pkg.Name != nil {
		summary.Name = *pkg.Name
	}
	if pkg.Main != nil {
		summary.Main = *pkg.Main
	}
	for k, v := range pkg.Scripts {
		summary.Scripts[k] = v
	}

	deps := make(map[string]bool, len(pkg.Dependencies))
	for name := range pkg.Dependencies {
		deps[name] = true
		summary.Dependencies = append(summary.Dependencies, name)
	}
	sort.Strings(summary.Dependencies)

	return summary, deps, nil
}
