package extract

import (
	"sort"
	"strings"
)

// =============================================================================
// Policy
// =============================================================================

// Policy decides which parts of a completion are noise.
type Policy interface {
	// Fences returns the fence delimiters to strip, longest first.
	Fences() []string

	// IsFiller reports whether a trimmed container-file line is conversational filler.
	IsFiller(line string) bool

	// IsDocumentStart reports whether a trimmed line opens structured manifest content.
	IsDocumentStart(line string) bool
}

// Default vocabulary. These values must match what prompts ask the model for.
var (
	DefaultFences          = []string{"```dockerfile", "```docker", "```yaml", "```yml", "```"}
	DefaultFillerPrefixes  = []string{"Here", "This"}
	DefaultDocumentMarkers = []string{"apiVersion:", "---"}
)

// PrefixPolicy is a Policy driven by literal prefix lists.
type PrefixPolicy struct {
	fences          []string
	fillerPrefixes  []string
	documentMarkers []string
}

// NewPrefixPolicy builds a PrefixPolicy. Fences are ordered longest first so a
// language-tagged fence is never left half stripped by its bare prefix.
func NewPrefixPolicy(fences, fillerPrefixes, documentMarkers []string) *PrefixPolicy {
	sorted := append([]string(nil), fences...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	return &PrefixPolicy{
		fences:          sorted,
		fillerPrefixes:  append([]string(nil), fillerPrefixes...),
		documentMarkers: append([]string(nil), documentMarkers...),
	}
}

// DefaultPolicy returns the policy used by the generation pipeline.
func DefaultPolicy() *PrefixPolicy {
	return NewPrefixPolicy(DefaultFences, DefaultFillerPrefixes, DefaultDocumentMarkers)
}

// Fences implements Policy.
func (p *PrefixPolicy) Fences() []string {
	return p.fences
}

// IsFiller implements Policy.
func (p *PrefixPolicy) IsFiller(line string) bool {
	return hasAnyPrefix(line, p.fillerPrefixes)
}

// IsDocumentStart implements Policy.
func (p *PrefixPolicy) IsDocumentStart(line string) bool {
	return hasAnyPrefix(line, p.documentMarkers)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
