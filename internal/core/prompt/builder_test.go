package prompt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/artpar/deploysmith/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func webProfile() *domain.RepositoryProfile {
	p := domain.NewRepositoryProfile()
	p.Languages = []string{"node"}
	p.PackageManagers["package.json"] = true
	p.Dependencies[domain.EcosystemNode] = domain.DependencySummary{
		Name:         "Shop_Front",
		Main:         "server.js",
		Scripts:      map[string]string{"start": "node server.js", "build": "tsc"},
		Dependencies: []string{"express", "pg"},
	}
	p.EntryPoints = []string{"server.js"}
	p.IsWebApp = true
	p.DefaultPort = 3000
	return p
}

// =============================================================================
// Determinism Tests
// =============================================================================

func TestBuild_Deterministic(t *testing.T) {
	for _, kind := range domain.AllArtifactKinds {
		t.Run(string(kind), func(t *testing.T) {
			first, err := Build(kind, webProfile())
			require.NoError(t, err)

			for i := 0; i < 20; i++ {
				again, err := Build(kind, webProfile())
				require.NoError(t, err)
				assert.Equal(t, first, again)
			}
		})
	}
}

// =============================================================================
// Container File Tests
// =============================================================================

func TestContainerFile_Content(t *testing.T) {
	got, err := ContainerFile(webProfile())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got, "You are an expert DevOps engineer."))
	assert.Contains(t, got, "- Primary Language: node\n")
	assert.Contains(t, got, `- Entry Points: ["server.js"]`)
	assert.Contains(t, got, `- Package Managers: ["package.json"]`)
	assert.Contains(t, got, "- Is Web App: true\n")
	assert.Contains(t, got, "- Default Port: 3000\n")
	assert.Contains(t, got, `"name": "Shop_Front"`)
	assert.True(t, strings.HasSuffix(got, "Generate ONLY the Dockerfile content, no explanations or additional text:"))
}

func TestContainerFile_ChecklistInOrder(t *testing.T) {
	got, err := ContainerFile(webProfile())
	require.NoError(t, err)

	last := -1
	for i, req := range ContainerFileRequirements {
		line := fmt.Sprintf("%d. %s", i+1, req)
		idx := strings.Index(got, line)
		require.GreaterOrEqual(t, idx, 0, "missing %q", line)
		assert.Greater(t, idx, last)
		last = idx
	}
}

func TestContainerFile_UnknownLanguage(t *testing.T) {
	got, err := ContainerFile(domain.NewRepositoryProfile())
	require.NoError(t, err)

	assert.Contains(t, got, "- Primary Language: unknown\n")
	assert.Contains(t, got, "- Entry Points: []\n")
	assert.Contains(t, got, "- Dependencies: {}\n")
	assert.Contains(t, got, "- Is Web App: false\n")
}

func TestContainerFile_NilProfile(t *testing.T) {
	got, err := ContainerFile(nil)
	require.NoError(t, err)
	assert.Contains(t, got, "- Default Port: 3000")
}

func TestContainerFile_ComposeContext(t *testing.T) {
	p := webProfile()
	p.Compose = &domain.ComposeSummary{Services: []domain.ComposeService{
		{Name: "db", Image: "postgres:16", Ports: []uint32{5432}},
		{Name: "web"},
	}}

	got, err := ContainerFile(p)
	require.NoError(t, err)

	assert.Contains(t, got, "- Existing Compose Services:\n  - db (image postgres:16) ports 5432\n  - web\n\nRequirements:")
}

// =============================================================================
// Orchestration Bundle Tests
// =============================================================================

func TestOrchestrationBundle_Content(t *testing.T) {
	got, err := OrchestrationBundle(webProfile())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got, "You are an expert Kubernetes engineer."))
	assert.Contains(t, got, "- App Name: shop-front\n")
	assert.Contains(t, got, "2. Use image 'shop-front:latest'\n")
	assert.Contains(t, got, "3. Set replicas to 3 for high availability\n")
	assert.Contains(t, got, "6. Expose port 3000 if it's a web service\n")
	assert.True(t, strings.HasSuffix(got, "Generate ONLY the YAML manifests separated by '---', no explanations:"))
}

func TestOrchestrationBundle_FallbackAppName(t *testing.T) {
	p := domain.NewRepositoryProfile()
	p.Languages = []string{"python"}
	p.DefaultPort = 8000

	got, err := OrchestrationBundle(p)
	require.NoError(t, err)

	assert.Contains(t, got, "- App Name: myapp\n")
	assert.Contains(t, got, "Use image 'myapp:latest'")
	assert.Contains(t, got, "Expose port 8000 if it's a web service")
}

func TestBuild_UnknownKind(t *testing.T) {
	_, err := Build(domain.ArtifactKind("helm-chart"), webProfile())
	assert.Error(t, err)
}

func TestFormatList(t *testing.T) {
	assert.Equal(t, "[]", formatList(nil))
	assert.Equal(t, `["main.py", "app.py"]`, formatList([]string{"main.py", "app.py"}))
}
