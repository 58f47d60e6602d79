package model

// State is a transaction state machine position.
type State string

const (
	StateIdle         State = "idle"
	StateValidating   State = "validating"
	StateSnapshotting State = "snapshotting"
	StateApplying     State = "applying"
	StateVerifying    State = "verifying"
	StateCommitted    State = "committed"
	StateRolledBack   State = "rolledBack"
)

// IsTerminal returns true for Committed and RolledBack.
func (s State) IsTerminal() bool {
	return s == StateCommitted || s == StateRolledBack
}
