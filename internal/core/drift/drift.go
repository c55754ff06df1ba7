// Package drift compares a generated artifact with the copy already checked
// into the repository.
package drift

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Summary counts line-level differences between two texts.
type Summary struct {
	Added     int    `json:"added"`
	Removed   int    `json:"removed"`
	Unchanged int    `json:"unchanged"`
	Diff      string `json:"diff,omitempty"`
}

// Identical reports whether the two texts matched line for line.
func (s Summary) Identical() bool {
	return s.Added == 0 && s.Removed == 0
}

// Compare diffs existing against generated line by line. Diff holds the
// changed lines prefixed with "-" or "+"; unchanged lines are only counted.
func Compare(existing, generated string) Summary {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0

	a, b, lines := dmp.DiffLinesToChars(terminate(existing), terminate(generated))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var s Summary
	var out strings.Builder
	for _, d := range diffs {
		for _, line := range splitLines(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				s.Unchanged++
			case diffmatchpatch.DiffDelete:
				s.Removed++
				out.WriteString("-" + line + "\n")
			case diffmatchpatch.DiffInsert:
				s.Added++
				out.WriteString("+" + line + "\n")
			}
		}
	}
	s.Diff = out.String()
	return s
}

// terminate gives non-empty text a trailing newline so the last line compares
// equal whether or not the source had one.
func terminate(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}
