package extract

import (
	"strings"

	"github.com/artpar/deploysmith/internal/core/domain"
)

// Extractor applies a Policy to raw completions.
type Extractor struct {
	policy Policy
}

// New creates an Extractor. A nil policy selects DefaultPolicy.
func New(policy Policy) *Extractor {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Extractor{policy: policy}
}

// Extract recovers the artifact body for kind. Unknown kinds yield "".
func (e *Extractor) Extract(kind domain.ArtifactKind, raw string) string {
	switch kind {
	case domain.ArtifactContainerFile:
		return e.ContainerFile(raw)
	case domain.ArtifactOrchestrationBundle:
		return e.OrchestrationBundle(raw)
	}
	return ""
}

// =============================================================================
// Container File Recovery
// =============================================================================

// ContainerFile strips fences anywhere in raw, then keeps every trimmed,
// non-empty line that is not filler, in original order.
func (e *Extractor) ContainerFile(raw string) string {
	text := e.stripFences(raw)

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || e.policy.IsFiller(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// =============================================================================
// Orchestration Bundle Recovery
// =============================================================================

type scanState int

const (
	stateSeeking scanState = iota
	stateInDocument
)

// OrchestrationBundle strips fences, drops everything before the first line
// that opens a document, and keeps the rest verbatim. Commentary that follows
// the manifests is kept as well.
func (e *Extractor) OrchestrationBundle(raw string) string {
	text := e.stripFences(raw)

	state := stateSeeking
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		switch state {
		case stateSeeking:
			if e.policy.IsDocumentStart(strings.TrimSpace(line)) {
				state = stateInDocument
				kept = append(kept, line)
			}
		case stateInDocument:
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func (e *Extractor) stripFences(raw string) string {
	for _, fence := range e.policy.Fences() {
		raw = strings.ReplaceAll(raw, fence, "")
	}
	return raw
}
