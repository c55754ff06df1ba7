package manifest

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/artpar/deploysmith/internal/core/domain"
)

// Separator is the YAML multi-document separator.
const Separator = "---"

// UnknownKind labels fragments with no recognised top-level kind.
const UnknownKind = "unknown"

// knownKinds is checked in order; the first top-level kind line that names
// one of these decides the label.
var knownKinds = []string{
	"Deployment",
	"Service",
	"ConfigMap",
	"Ingress",
	"StatefulSet",
	"DaemonSet",
	"Secret",
	"Job",
	"CronJob",
	"PersistentVolumeClaim",
	"HorizontalPodAutoscaler",
	"Namespace",
}

// Split partitions bundle on Separator and classifies each non-blank document.
func Split(bundle string) []domain.ManifestFragment {
	var fragments []domain.ManifestFragment
	for _, doc := range strings.Split(bundle, Separator) {
		content := strings.TrimSpace(dedent(doc))
		if content == "" {
			continue
		}
		fragments = append(fragments, domain.ManifestFragment{
			Index:   len(fragments),
			Kind:    Classify(content),
			Name:    resourceName(content),
			Content: content,
		})
	}
	return fragments
}

// Classify returns the lower-cased resource kind declared by a document, or
// UnknownKind. Only top-level kind lines count, so nested references such as
// RBAC subjects do not change the label. A document indented as a whole is
// read relative to its own margin.
func Classify(doc string) string {
	for _, line := range strings.Split(dedent(doc), "\n") {
		rest, ok := strings.CutPrefix(line, "kind:")
		if !ok {
			continue
		}
		value, _, _ := strings.Cut(rest, "#")
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		for _, kind := range knownKinds {
			if value == kind {
				return strings.ToLower(kind)
			}
		}
	}
	return UnknownKind
}

// dedent removes the indentation shared by every non-blank line.
func dedent(doc string) string {
	lines := strings.Split(doc, "\n")
	margin := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		if margin < 0 || indent < margin {
			margin = indent
		}
	}
	if margin <= 0 {
		return doc
	}
	for i, line := range lines {
		if len(line) >= margin {
			lines[i] = line[margin:]
		} else {
			lines[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.Join(lines, "\n")
}

type objectMeta struct {
	Metadata struct {
		Name string `yaml:"name"`
	} `yaml:"metadata"`
}

// resourceName reads metadata.name. Documents that do not parse have no name.
func resourceName(doc string) string {
	var meta objectMeta
	if err := yaml.Unmarshal([]byte(doc), &meta); err != nil {
		return ""
	}
	return meta.Metadata.Name
}
