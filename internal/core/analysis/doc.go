// Package analysis infers a repository's technology stack from the files at its root.
//
// The analyzer is a shallow heuristic: it only looks at well-known marker files in
// the top-level directory and never walks the tree. Everything is read through an
// fs.FS so the logic stays testable without touching disk.
//
// # Functions
//
//   - Analyze: Build a RepositoryProfile from an fs.FS
//   - AnalyzeDir: Resolve a directory path and analyze it
//
// # Usage
//
//	profile, err := analysis.AnalyzeDir("/path/to/repo")
//	if errors.Is(err, analysis.ErrNotFound) {
//	    // nothing to analyze
//	}
//	for _, w := range profile.Warnings {
//	    logger.Warn("manifest skipped", "source", w.Source, "error", w.Message)
//	}
package analysis
