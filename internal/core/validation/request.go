package validation

import (
	"fmt"

	"github.com/artpar/deploysmith/internal/core/domain"
)

// =============================================================================
// Request Validation Functions
// =============================================================================

// ValidateAnalyzeRequest validates the path of an analysis request.
// Returns the field name and error message if validation fails.
func ValidateAnalyzeRequest(path string) (field, message string) {
	if path == "" {
		return "path", "path is required"
	}
	return "", ""
}

// ValidateGenerateRequest validates a generation request. An empty kinds list
// is valid and means every kind.
//
// Example:
//
//	field, msg := ValidateGenerateRequest("https://github.com/acme/web.git", []string{"k8s"})
//	if field != "" {
//	    // Handle validation error
//	}
func ValidateGenerateRequest(source string, kinds []string) (field, message string) {
	if source == "" {
		return "source", "source is required"
	}
	for _, k := range kinds {
		if _, err := domain.ParseArtifactKind(k); err != nil {
			return "kinds", fmt.Sprintf("unknown artifact kind %q", k)
		}
	}
	return "", ""
}
