// Package manifest splits a multi-document Kubernetes bundle into fragments.
//
// Splitting is a single left-to-right pass. Blank documents are dropped and
// the survivors are numbered from zero, so the (kind, index) pair used for
// file names is unique within a bundle.
package manifest
