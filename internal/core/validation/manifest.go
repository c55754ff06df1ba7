package validation

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/artpar/deploysmith/internal/core/domain"
)

// =============================================================================
// Manifest Checks
// =============================================================================

// Rule names reported for manifest fragments.
const (
	RuleYAML       = "yaml"
	RuleAPIVersion = "api-version"
	RuleKind       = "kind"
	RuleName       = "metadata-name"
	RuleResources  = "resources"
	RuleProbes     = "probes"
)

type manifestDoc struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
	Metadata   struct {
		Name string `yaml:"name"`
	} `yaml:"metadata"`
	Spec struct {
		Template struct {
			Spec podSpec `yaml:"spec"`
		} `yaml:"template"`
	} `yaml:"spec"`
}

type podSpec struct {
	Containers []container `yaml:"containers"`
}

type container struct {
	Name           string         `yaml:"name"`
	Resources      map[string]any `yaml:"resources"`
	LivenessProbe  map[string]any `yaml:"livenessProbe"`
	ReadinessProbe map[string]any `yaml:"readinessProbe"`
}

// workloadKinds carry a pod template whose containers are checked.
var workloadKinds = map[string]bool{
	"Deployment":  true,
	"StatefulSet": true,
	"DaemonSet":   true,
}

// Manifest checks one fragment for the fields every Kubernetes object needs,
// and for resources and probes on workload containers.
func Manifest(fragment domain.ManifestFragment) []Finding {
	var doc manifestDoc
	if err := yaml.Unmarshal([]byte(fragment.Content), &doc); err != nil {
		return []Finding{{Rule: RuleYAML, Severity: SeverityError, Message: fmt.Sprintf("invalid YAML: %v", err)}}
	}

	var findings []Finding
	if doc.APIVersion == "" {
		findings = append(findings, Finding{Rule: RuleAPIVersion, Severity: SeverityError, Message: "apiVersion is required"})
	}
	if doc.Kind == "" {
		findings = append(findings, Finding{Rule: RuleKind, Severity: SeverityError, Message: "kind is required"})
	}
	if doc.Metadata.Name == "" {
		findings = append(findings, Finding{Rule: RuleName, Severity: SeverityError, Message: "metadata.name is required"})
	}

	if !workloadKinds[doc.Kind] {
		return findings
	}
	for _, c := range doc.Spec.Template.Spec.Containers {
		if len(c.Resources) == 0 {
			findings = append(findings, Finding{
				Rule:     RuleResources,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("container %q has no resource requests or limits", c.Name),
			})
		}
		if len(c.LivenessProbe) == 0 || len(c.ReadinessProbe) == 0 {
			findings = append(findings, Finding{
				Rule:     RuleProbes,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("container %q is missing a liveness or readiness probe", c.Name),
			})
		}
	}
	return findings
}
