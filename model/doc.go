// Package model contains the in-memory representation of parsed diffs, hunk
// match outcomes, snapshots and transaction results used by the patch engine.
//
// Every value defined here is created and discarded within a single
// transaction; nothing in this package is persisted or shared across calls.
package model
