// Command gitodb explodes git packs into loose objects and verifies them.
//
// Usage:
//
//	gitodb pack explode [flags] <pack> [object-dir]
//	gitodb pack verify [flags] <pack>
//	gitodb version
//
// Exit codes: 0 success, 1 explosion failure, 2 configuration or usage
// error, 3 pack deletion failed after a successful explosion.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/meigma/gitodb/explode"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitDeletion = 3
)

// exitError carries the exit code for an error returned from a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func usageError(err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: exitUsage, err: err}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return exitOK
	}
	fmt.Fprintln(stderr, "error:", err)
	return exitCode(err)
}

// exitCode maps an error to the documented exit codes.
func exitCode(err error) int {
	var exitErr *exitError
	switch {
	case errors.As(err, &exitErr):
		return exitErr.code
	case errors.Is(err, explode.ErrConfig), strings.HasPrefix(err.Error(), "unknown command"):
		return exitUsage
	case errors.Is(err, explode.ErrDeletion):
		return exitDeletion
	default:
		return exitFailure
	}
}
