// Package extract recovers artifact bodies from free-form model completions.
//
// Models wrap artifacts in markdown fences and surround them with conversational
// filler. The Extractor removes that noise with rules that depend on the artifact
// kind. The line heuristics live behind the Policy interface so they can be
// tightened without changing the extraction flow.
//
// Extraction never fails: text with nothing recognizable yields an empty string
// and the caller decides whether that counts as a failed generation.
//
// # Usage
//
//	ex := extract.New(extract.DefaultPolicy())
//	dockerfile := ex.ContainerFile(completion)
//	manifests := ex.OrchestrationBundle(completion)
package extract
