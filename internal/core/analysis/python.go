package analysis

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"strings"

	"github.com/artpar/deploysmith/internal/core/domain"
)

const pythonManifest = "requirements.txt"

// analyzePython records the python dependency summary and web framework signal.
func analyzePython(fsys fs.FS, profile *domain.RepositoryProfile) {
	data, err := fs.ReadFile(fsys, pythonManifest)
	if err != nil {
		warn(profile, pythonManifest, err)
		return
	}

	reqs, err := parseRequirements(data)
	if err != nil {
		warn(profile, pythonManifest, err)
		return
	}
	profile.Dependencies[domain.EcosystemPython] = domain.DependencySummary{Dependencies: reqs}

	lowered := make(map[string]bool, len(reqs))
	for _, r := range reqs {
		lowered[strings.ToLower(r)] = true
	}
	if containsAny(lowered, pythonWebFrameworks) {
		profile.IsWebApp = true
		if lowered[fastAPIPackage] {
			profile.DefaultPort = fastAPIPort
		} else {
			profile.DefaultPort = pythonWebPort
		}
	}
}

// parseRequirements returns the bare package names of a requirements listing in
// file order. Blank lines and lines starting with '#' are skipped; the name is
// whatever precedes an "==" pin.
func parseRequirements(data []byte) ([]string, error) {
	reqs := []string{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	// A single line may be as long as the whole file.
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), len(data)+1)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, _, _ := strings.Cut(line, "==")
		reqs = append(reqs, strings.TrimSpace(name))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", pythonManifest, err)
	}
	return reqs, nil
}
