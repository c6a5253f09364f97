// Package seal runs the external tool that checksums a directory and writes
// a manifest fragment for every item it scans.
package seal

import (
	"bytes"
	"fmt"
	"os/exec"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/mhlsync/pkg/errors"
	"github.com/sidkik/mhlsync/pkg/manifest"
)

// DefaultTool is the name of the sealing binary looked up in $PATH.
const DefaultTool = "mhl"

// Mocked out for unit testing.
var runCommand = (*exec.Cmd).Run

// Tool invokes the sealing binary at Path.
type Tool struct {
	Path string
}

// New returns a Tool for `path`, or for DefaultTool if `path` is empty.
func New(path string) Tool {
	if path == "" {
		path = DefaultTool
	}
	return Tool{Path: path}
}

// Args returns the arguments the tool is run with to seal `dir`.
func Args(dir string, alg manifest.Algorithm) []string {
	return []string{"seal", "-t", string(alg), "--output-folder", dir, dir}
}

// Seal runs `<tool> seal -t <alg> --output-folder <dir> <dir>`, writing the
// fragments into `dir` itself. Any failure to start the tool, or a non-zero
// exit, is returned as an errors.ExternalToolError.
func (t Tool) Seal(dir string, alg manifest.Algorithm) error {
	if !alg.IsSealable() {
		return fmt.Errorf("algorithm %q can't be used for sealing", alg)
	}

	args := Args(dir, alg)
	var output bytes.Buffer
	cmd := exec.Command(t.Path, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output

	logger := log.WithFields(log.Fields{
		"tool": t.Path,
		"dir":  dir,
	})
	logger.Debug("Running sealing tool")

	if err := runCommand(cmd); err != nil {
		return toolError(t.Path, cmd, output.String(), err)
	}

	logger.WithField("output", output.String()).Debug("Sealing tool finished")
	return nil
}

// Version returns what the tool prints for `<tool> --version`.
func (t Tool) Version() (string, error) {
	var output bytes.Buffer
	cmd := exec.Command(t.Path, "--version")
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := runCommand(cmd); err != nil {
		return "", toolError(t.Path, cmd, output.String(), err)
	}
	return output.String(), nil
}

// toolError describes a failed run of `cmd`. The exit code is -1 if the tool
// couldn't be started.
func toolError(tool string, cmd *exec.Cmd, output string, err error) errors.ExternalToolError {
	exitCode := -1
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	}
	return errors.ExternalToolError{
		Tool:     tool,
		Args:     cmd.Args[1:],
		ExitCode: exitCode,
		Output:   output,
		Err:      err,
	}
}
