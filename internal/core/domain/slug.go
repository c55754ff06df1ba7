package domain

import "strings"

// =============================================================================
// Application Naming
// =============================================================================

// FallbackAppName is used when the repository does not declare a name.
const FallbackAppName = "myapp"

// NormalizeAppName turns a declared package name into a resource-friendly name.
//
// The transformation rules are:
//   - Underscores are converted to hyphens
//   - Spaces are converted to hyphens
//   - Letters are lower-cased
//
// Example:
//
//	NormalizeAppName("My_Cool App") // returns "my-cool-app"
func NormalizeAppName(name string) string {
	name = strings.ReplaceAll(name, "_", "-")
	name = strings.ReplaceAll(name, " ", "-")
	return strings.ToLower(name)
}

// AppName derives the application name used in orchestration manifests.
// It prefers the node package name and falls back to FallbackAppName. A
// package.json without a "name" field also gets FallbackAppName rather than
// the literal "unknown".
func AppName(p *RepositoryProfile) string {
	if p == nil {
		return FallbackAppName
	}
	node, ok := p.Dependencies[EcosystemNode]
	if !ok || node.Name == "" {
		return FallbackAppName
	}
	return NormalizeAppName(node.Name)
}
