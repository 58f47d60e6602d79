// Package transaction applies a batch of file changes as one unit.
//
// A transaction moves through Idle, Validating, Snapshotting, Applying and
// Verifying to either Committed or RolledBack. Guardrails and validation run
// before anything is written, so an invalid batch has no effect on disk. Once
// files are written, an I/O error or a failing verification restores every
// touched path from the in-memory snapshot.
package transaction
