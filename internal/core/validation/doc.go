// Package validation provides pure checks for API requests and generated artifacts.
//
// Request checks return a (field, message) pair that handlers turn into a
// 400 response. Artifact checks return Findings: they describe weaknesses in
// model output and are reported alongside the artifact, never treated as
// failures.
//
// # Functions
//
//   - ValidateGenerateRequest: required fields and kind names for a generation run
//   - ValidateAnalyzeRequest: required fields for an analysis request
//   - Dockerfile: structural checks on a generated container file
//   - Manifest: structural checks on one manifest fragment
//
// # Usage
//
//	if field, msg := validation.ValidateGenerateRequest(source, kinds); field != "" {
//	    // Return 400 Bad Request with msg
//	}
//
//	for _, f := range validation.Dockerfile(content, profile) {
//	    logger.Warn("dockerfile finding", "rule", f.Rule, "message", f.Message)
//	}
package validation
