package errors

import (
	"fmt"
	"strings"
)

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// MalformedManifest is returned when a manifest can't be structurally parsed.
type MalformedManifest struct {
	Path   string
	Reason string
}

func (err MalformedManifest) Error() string {
	return fmt.Sprintf("malformed manifest %q: %s", err.Path, err.Reason)
}

// FriendlyMessage implements the friendly error interface.
func (err MalformedManifest) FriendlyMessage() string {
	return fmt.Sprintf("The manifest %q could not be parsed:\n%s\n\n"+
		"Was it written by a compatible version of the sealing tool?",
		err.Path, err.Reason)
}

// ExternalToolError is returned when the sealing tool couldn't be started or
// exited with a non-zero status.
type ExternalToolError struct {
	Tool     string
	Args     []string
	ExitCode int

	// Output is the combined stdout and stderr of the invocation.
	Output string
	Err    error
}

func (err ExternalToolError) Error() string {
	return fmt.Sprintf("%s %s (exit code %d): %v",
		err.Tool, strings.Join(err.Args, " "), err.ExitCode, err.Err)
}

func (err ExternalToolError) Unwrap() error {
	return err.Err
}

// FriendlyMessage implements the friendly error interface.
func (err ExternalToolError) FriendlyMessage() string {
	msg := fmt.Sprintf("The sealing tool failed:\n  %s %s\n",
		err.Tool, strings.Join(err.Args, " "))
	if err.ExitCode >= 0 {
		msg += fmt.Sprintf("Exit code: %d\n", err.ExitCode)
	} else {
		msg += fmt.Sprintf("It could not be started: %v\n", err.Err)
	}
	if out := strings.TrimSpace(err.Output); out != "" {
		msg += "\nOutput:\n" + out
	}
	return msg
}

// WriteError is returned when an output file (a manifest, a comparison
// file, or a copied file) couldn't be written.
type WriteError struct {
	Path string
	Err  error
}

func (err WriteError) Error() string {
	return fmt.Sprintf("write %q: %v", err.Path, err.Err)
}

func (err WriteError) Unwrap() error {
	return err.Err
}
