package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// NewFunc generates the underlying identifier. Tests replace it for stable ids.
var NewFunc = func() string { return uuid.New().String() }

// Transaction returns an identifier for one patch transaction.
func Transaction() string { return "tx-" + NewFunc() }

// Suffix returns a short token for temp-file names in the tree.
func Suffix() string {
	id := strings.ReplaceAll(NewFunc(), "-", "")
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}
