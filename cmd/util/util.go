package util

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/mhlsync/pkg/config"
	"github.com/sidkik/mhlsync/pkg/errors"
	"github.com/sidkik/mhlsync/pkg/manifest"
)

// Mocked for unit testing.
var (
	exit                      = os.Exit
	stderr          io.Writer = os.Stderr
	parseUserConfig           = config.ParseUser
)

// HandleFatalError handles errors that are severe enough to terminate the
// program.
func HandleFatalError(err error) {
	log.WithError(err).Error("Command failed")
	fmt.Fprintln(stderr, errors.GetPrintableMessage(err))
	exit(1)
}

// HandlePanic reports panics in a readable way before exiting. It should be
// deferred at the top of main.
func HandlePanic() {
	if r := recover(); r != nil {
		log.WithField("stack", string(debug.Stack())).Debug("Panic stack trace")
		fmt.Fprintf(stderr, "Unexpected error: %v\n"+
			"Rerun with MHLSYNC_LOG_VERBOSE=true for a stack trace.\n", r)
		exit(1)
	}
}

// Overrides are settings passed on the command line. Zero values mean the
// flag wasn't set.
type Overrides struct {
	Tool      string
	Algorithm string
	Workers   int
}

// LoadUserConfig reads the user config and applies the command line
// overrides on top of it.
func LoadUserConfig(overrides Overrides) (config.User, error) {
	cfg, err := parseUserConfig()
	if err != nil {
		return config.User{}, errors.WithContext(err, "parse user config")
	}

	if overrides.Tool != "" {
		cfg.Tool = overrides.Tool
	}

	if overrides.Algorithm != "" {
		alg, err := manifest.ParseAlgorithm(overrides.Algorithm)
		if err != nil {
			return config.User{}, errors.NewFriendlyError("%s", err)
		}
		cfg.Algorithm = alg
	}

	if overrides.Workers > 0 {
		cfg.Workers = overrides.Workers
	}
	return cfg, nil
}
