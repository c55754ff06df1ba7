// Package prompt renders repository profiles into instruction prompts.
//
// Prompts are produced from embedded text/template files and a typed Data value,
// so the same profile and artifact kind always render to byte-identical text.
// Nothing in this package touches the network or the filesystem beyond the
// embedded templates.
//
// # Functions
//
//   - Build: Render the prompt for an artifact kind
//   - ContainerFile: Render the Dockerfile prompt
//   - OrchestrationBundle: Render the Kubernetes manifest prompt
//   - NewData: Derive the template data from a profile
package prompt
