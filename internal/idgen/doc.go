// Package idgen produces transaction ids and temp-file suffixes. Callers
// treat both as opaque strings.
package idgen
