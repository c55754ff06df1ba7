package prompt

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/artpar/deploysmith/internal/core/domain"
)

//go:embed templates/*.tmpl
var builtinTemplates embed.FS

var templates = template.Must(
	template.New("prompts").Funcs(template.FuncMap{
		"list": formatList,
		"inc":  func(i int) int { return i + 1 },
	}).ParseFS(builtinTemplates, "templates/*.tmpl"),
)

// templateNames maps each artifact kind to its embedded template.
var templateNames = map[domain.ArtifactKind]string{
	domain.ArtifactContainerFile:       "container_file.tmpl",
	domain.ArtifactOrchestrationBundle: "orchestration_bundle.tmpl",
}

// =============================================================================
// Requirement Checklists
// =============================================================================

// ContainerFileRequirements is the production-readiness checklist for Dockerfiles.
var ContainerFileRequirements = []string{
	"Use multi-stage build for optimization",
	"Follow security best practices (non-root user, minimal base image)",
	"Optimize for image size",
	"Include proper COPY instructions for dependencies",
	"Set appropriate WORKDIR",
	"Use proper EXPOSE directive if it's a web application",
	"Include health check if appropriate",
}

// orchestrationRequirements returns the checklist for Kubernetes manifests.
// Two items are parameterized by the app name and port.
func orchestrationRequirements(appName string, port int) []string {
	return []string{
		"Generate Deployment, Service, and ConfigMap manifests",
		fmt.Sprintf("Use image '%s:latest'", appName),
		"Set replicas to 3 for high availability",
		"Include resource limits and requests",
		"Add liveness and readiness probes if it's a web app",
		fmt.Sprintf("Expose port %d if it's a web service", port),
		"Use proper labels and selectors",
		"Include appropriate environment variables",
		"Follow Kubernetes best practices",
	}
}

// =============================================================================
// Template Data
// =============================================================================

// Data is everything a prompt template can reference.
type Data struct {
	AppName         string
	PrimaryLanguage string
	Dependencies    string // indented JSON
	EntryPoints     []string
	PackageManagers []string
	IsWebApp        bool
	DefaultPort     int
	ComposeServices []string
	Requirements    []string
}

// NewData derives template data for kind from profile.
func NewData(kind domain.ArtifactKind, profile *domain.RepositoryProfile) (Data, error) {
	if profile == nil {
		profile = domain.NewRepositoryProfile()
	}

	deps, err := json.MarshalIndent(profile.Dependencies, "", "  ")
	if err != nil {
		return Data{}, fmt.Errorf("marshal dependencies: %w", err)
	}

	data := Data{
		AppName:         domain.AppName(profile),
		PrimaryLanguage: profile.PrimaryLanguage(),
		Dependencies:    string(deps),
		EntryPoints:     profile.EntryPoints,
		PackageManagers: profile.PackageManagerFiles(),
		IsWebApp:        profile.IsWebApp,
		DefaultPort:     profile.DefaultPort,
		ComposeServices: composeLines(profile.Compose),
	}

	switch kind {
	case domain.ArtifactContainerFile:
		data.Requirements = ContainerFileRequirements
	case domain.ArtifactOrchestrationBundle:
		data.Requirements = orchestrationRequirements(data.AppName, data.DefaultPort)
	default:
		return Data{}, fmt.Errorf("no prompt for artifact kind %q", kind)
	}

	return data, nil
}

// =============================================================================
// Builders
// =============================================================================

// Build renders the prompt for kind.
func Build(kind domain.ArtifactKind, profile *domain.RepositoryProfile) (string, error) {
	data, err := NewData(kind, profile)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if err := templates.ExecuteTemplate(&sb, templateNames[kind], data); err != nil {
		return "", fmt.Errorf("execute %s prompt template: %w", kind, err)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// ContainerFile renders the Dockerfile prompt.
func ContainerFile(profile *domain.RepositoryProfile) (string, error) {
	return Build(domain.ArtifactContainerFile, profile)
}

// OrchestrationBundle renders the Kubernetes manifest prompt.
func OrchestrationBundle(profile *domain.RepositoryProfile) (string, error) {
	return Build(domain.ArtifactOrchestrationBundle, profile)
}

// =============================================================================
// Helpers
// =============================================================================

// formatList renders a list as a JSON array, e.g. ["main.py", "app.py"].
func formatList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func composeLines(summary *domain.ComposeSummary) []string {
	if summary == nil {
		return nil
	}
	lines := make([]string, 0, len(summary.Services))
	for _, svc := range summary.Services {
		line := svc.Name
		if svc.Image != "" {
			line += " (image " + svc.Image + ")"
		}
		if len(svc.Ports) > 0 {
			ports := make([]string, len(svc.Ports))
			for i, p := range svc.Ports {
				ports[i] = fmt.Sprintf("%d", p)
			}
			line += " ports " + strings.Join(ports, ",")
		}
		lines = append(lines, line)
	}
	return lines
}
