package validation

import "github.com/artpar/deploysmith/internal/core/domain"

// Finding and Severity live in domain so run history can persist them.
type (
	Finding  = domain.Finding
	Severity = domain.Severity
)

const (
	SeverityError   = domain.SeverityError
	SeverityWarning = domain.SeverityWarning
	SeverityInfo    = domain.SeverityInfo
)

// HasErrors reports whether any finding is an error.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}
