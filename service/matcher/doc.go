// Package matcher applies parsed unified-diff hunks to file content.
//
// Hunks are applied in order. Each one is expected at its declared old start
// shifted by the drift accumulated from earlier hunks; when its old side is
// not found verbatim there, a bounded window around the candidate is searched,
// nearest position first. Nothing is written: the result carries either the
// new content or a context mismatch describing what was expected and found.
//
// The dominant line terminator of the file is preserved for emitted lines,
// untouched lines keep their own terminator and the presence of a final
// newline only changes when the diff says so.
package matcher
