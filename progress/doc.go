// Package progress keeps per-transaction counters (files validated, applied,
// restored) and the current state, reporting every change to an optional
// observer. The tracker travels in the context so any phase can update it.
package progress
