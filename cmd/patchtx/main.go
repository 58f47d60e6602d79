// Command patchtx applies unified-diff patches to a project tree as one
// all-or-nothing transaction.
package main

import (
	"errors"
	"fmt"
	"os"
)

const (
	exitSuccess = 0
	exitFailed  = 1 // transaction rejected or rolled back
	exitError   = 2 // usage, I/O, or rollback that could not restore the tree
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		var exit *exitCodeError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitError)
	}
}

// exitCodeError carries a non-zero exit code without another message.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string { return fmt.Sprintf("exit %d", e.code) }
