// Package policy holds the static guardrails checked before a transaction
// reads anything: a per-transaction file limit, forbidden-file globs and
// project-root containment. A policy can be attached to a context to
// override the engine default for one call.
package policy
