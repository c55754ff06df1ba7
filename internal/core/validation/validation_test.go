package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/deploysmith/internal/core/domain"
)

// =============================================================================
// Request Validation Tests
// =============================================================================

func TestValidateAnalyzeRequest(t *testing.T) {
	field, msg := ValidateAnalyzeRequest("")
	assert.Equal(t, "path", field)
	assert.Equal(t, "path is required", msg)

	field, msg = ValidateAnalyzeRequest("./repo")
	assert.Empty(t, field)
	assert.Empty(t, msg)
}

func TestValidateGenerateRequest_AllValid(t *testing.T) {
	field, msg := ValidateGenerateRequest("./repo", []string{"dockerfile", "orchestration-bundle"})
	assert.Empty(t, field)
	assert.Empty(t, msg)
}

func TestValidateGenerateRequest_NoKindsMeansAll(t *testing.T) {
	field, _ := ValidateGenerateRequest("./repo", nil)
	assert.Empty(t, field)
}

func TestValidateGenerateRequest_MissingSource(t *testing.T) {
	field, msg := ValidateGenerateRequest("", nil)
	assert.Equal(t, "source", field)
	assert.Equal(t, "source is required", msg)
}

func TestValidateGenerateRequest_UnknownKind(t *testing.T) {
	field, msg := ValidateGenerateRequest("./repo", []string{"helm"})
	assert.Equal(t, "kinds", field)
	assert.Contains(t, msg, "helm")
}

// =============================================================================
// Dockerfile Tests
// =============================================================================

const goodDockerfile = `FROM node:20-alpine AS build
WORKDIR /app
COPY package*.json ./
RUN npm ci \
    --omit=dev
COPY . .

FROM node:20-alpine
WORKDIR /app
COPY --from=build /app /app
USER node
EXPOSE 3000/tcp
HEALTHCHECK CMD wget -qO- http://localhost:3000/ || exit 1
CMD ["node", "index.js"]`

func webProfile(port int) *domain.RepositoryProfile {
	p := domain.NewRepositoryProfile()
	p.IsWebApp = true
	p.DefaultPort = port
	return p
}

func rules(findings []Finding) []string {
	var out []string
	for _, f := range findings {
		out = append(out, f.Rule)
	}
	return out
}

func TestDockerfile_Clean(t *testing.T) {
	assert.Empty(t, Dockerfile(goodDockerfile, webProfile(3000)))
}

func TestDockerfile_Empty(t *testing.T) {
	findings := Dockerfile("  \n# only a comment\n", nil)

	require.Len(t, findings, 1)
	assert.Equal(t, RuleEmpty, findings[0].Rule)
	assert.True(t, HasErrors(findings))
}

func TestDockerfile_MissingFrom(t *testing.T) {
	findings := Dockerfile("RUN echo hi\nUSER app\nHEALTHCHECK NONE", nil)

	assert.Equal(t, []string{RuleFrom}, rules(findings))
	assert.True(t, HasErrors(findings))
}

func TestDockerfile_ArgBeforeFrom(t *testing.T) {
	findings := Dockerfile("ARG VERSION=1\nFROM alpine:${VERSION}\nUSER 1000\nHEALTHCHECK NONE", nil)

	assert.Empty(t, findings)
}

func TestDockerfile_RootUser(t *testing.T) {
	findings := Dockerfile("FROM alpine\nUSER app\nUSER root:root\nHEALTHCHECK NONE", nil)

	assert.Equal(t, []string{RuleNonRoot}, rules(findings))
	assert.False(t, HasErrors(findings))
}

func TestDockerfile_NoUserNoHealthcheck(t *testing.T) {
	findings := Dockerfile("FROM alpine", nil)

	assert.Equal(t, []string{RuleNonRoot, RuleHealthcheck}, rules(findings))
}

func TestDockerfile_ExposeChecksOnlyForWebApps(t *testing.T) {
	content := "FROM python:3.12\nUSER app\nHEALTHCHECK NONE"

	assert.Empty(t, Dockerfile(content, domain.NewRepositoryProfile()))

	findings := Dockerfile(content, webProfile(8000))
	require.Len(t, findings, 1)
	assert.Equal(t, RuleExpose, findings[0].Rule)
	assert.Equal(t, SeverityWarning, findings[0].Severity)
}

func TestDockerfile_ExposeWrongPort(t *testing.T) {
	findings := Dockerfile("FROM python:3.12\nUSER app\nHEALTHCHECK NONE\nEXPOSE 8080", webProfile(5000))

	require.Len(t, findings, 1)
	assert.Equal(t, RuleExpose, findings[0].Rule)
	assert.Equal(t, SeverityInfo, findings[0].Severity)
}

func TestDockerfile_ExposeRangeAndVariable(t *testing.T) {
	content := "FROM python:3.12\nUSER app\nHEALTHCHECK NONE\nEXPOSE $PORT 7990-8010/tcp"

	assert.Empty(t, Dockerfile(content, webProfile(8000)))
}

func TestDockerfile_ExposeInvalid(t *testing.T) {
	content := "FROM python:3.12\nUSER app\nHEALTHCHECK NONE\nEXPOSE http 8000"

	assert.Equal(t, []string{RuleExposeInvalid}, rules(Dockerfile(content, webProfile(8000))))
}

// =============================================================================
// Manifest Tests
// =============================================================================

func TestManifest_CompleteDeployment(t *testing.T) {
	content := `apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
spec:
  replicas: 3
  template:
    spec:
      containers:
        - name: web
          image: web:latest
          resources:
            limits:
              memory: 256Mi
          livenessProbe:
            httpGet: {path: /, port: 3000}
          readinessProbe:
            httpGet: {path: /, port: 3000}`

	assert.Empty(t, Manifest(domain.ManifestFragment{Kind: "deployment", Content: content}))
}

func TestManifest_DeploymentWithoutResourcesOrProbes(t *testing.T) {
	content := "apiVersion: apps/v1\nkind: Deployment\nmetadata:\n  name: web\nspec:\n  template:\n    spec:\n      containers:\n        - name: web\n          image: web:latest"

	assert.Equal(t, []string{RuleResources, RuleProbes}, rules(Manifest(domain.ManifestFragment{Content: content})))
}

func TestManifest_MissingFields(t *testing.T) {
	findings := Manifest(domain.ManifestFragment{Content: "data:\n  key: value"})

	assert.Equal(t, []string{RuleAPIVersion, RuleKind, RuleName}, rules(findings))
	assert.True(t, HasErrors(findings))
}

func TestManifest_ServiceNeedsNoProbes(t *testing.T) {
	content := "apiVersion: v1\nkind: Service\nmetadata:\n  name: web\nspec:\n  ports:\n    - port: 80"

	assert.Empty(t, Manifest(domain.ManifestFragment{Content: content}))
}

func TestManifest_InvalidYAML(t *testing.T) {
	findings := Manifest(domain.ManifestFragment{Content: "kind: [Deployment"})

	require.Len(t, findings, 1)
	assert.Equal(t, RuleYAML, findings[0].Rule)
}
