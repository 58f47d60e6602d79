// Package parser turns unified-diff text into model.ParsedDiff values.
//
// Parse handles a single file's diff, tolerating the sloppiness typical of
// generated patches (CRLF input, omitted counts, blank context lines without
// their leading space) while rejecting anything whose hunk bodies disagree
// with their headers. Split separates multi-file patches, Render re-emits
// a canonical form and GenerateDiff produces a diff from two blobs.
package parser
