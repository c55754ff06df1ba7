package compose

import (
	"context"
	"sort"
	"strings"

	"github.com/artpar/deploysmith/internal/core/domain"
	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Summary
// =============================================================================

// Summarize parses Docker Compose YAML into a ComposeSummary.
// Services are sorted by name so the summary renders deterministically.
// Ports are the container-side targets.
func Summarize(yamlContent string) (*domain.ComposeSummary, error) {
	if strings.TrimSpace(yamlContent) == "" {
		return nil, ErrEmptyInput
	}

	project, err := loadComposeSpec(yamlContent)
	if err != nil {
		return nil, err
	}

	if len(project.Services) == 0 {
		return nil, ErrNoServices
	}

	summary := &domain.ComposeSummary{
		Services: make([]domain.ComposeService, 0, len(project.Services)),
	}
	for _, svc := range project.Services {
		summary.Services = append(summary.Services, convertService(svc))
	}
	sort.Slice(summary.Services, func(i, j int) bool {
		return summary.Services[i].Name < summary.Services[j].Name
	})

	return summary, nil
}

// loadComposeSpec loads a compose spec using compose-go
func loadComposeSpec(yamlContent string) (*types.Project, error) {
	var dict map[string]interface{}
	if err := yaml.Unmarshal([]byte(yamlContent), &dict); err != nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}
	if dict == nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}

	project, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: []byte(yamlContent),
				Config:  dict,
			},
		},
	}, func(opts *loader.Options) {
		opts.SetProjectName("deploysmith-scan", false)
		opts.SkipValidation = false
		opts.SkipInterpolation = false
		// The repository is read through fs.FS; nothing may be resolved on disk.
		opts.SkipNormalization = true
		opts.SkipExtends = true
		opts.SkipInclude = true
	})
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "dependency cycle detected") {
			return nil, NewParseError("", "circular dependency detected", ErrCircularDependency)
		}
		return nil, NewParseError("", errStr, ErrInvalidYAML)
	}

	return project, nil
}

// convertService keeps the fields a prompt can use.
func convertService(svc types.ServiceConfig) domain.ComposeService {
	service := domain.ComposeService{
		Name:  svc.Name,
		Image: svc.Image,
	}
	seen := make(map[uint32]bool)
	for _, p := range svc.Ports {
		if p.Target == 0 || seen[p.Target] {
			continue
		}
		seen[p.Target] = true
		service.Ports = append(service.Ports, p.Target)
	}
	sort.Slice(service.Ports, func(i, j int) bool { return service.Ports[i] < service.Ports[j] })
	return service
}
