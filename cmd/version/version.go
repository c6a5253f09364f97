package version

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/mhlsync/cmd/util"
	"github.com/sidkik/mhlsync/pkg/config"
	"github.com/sidkik/mhlsync/pkg/seal"
	"github.com/sidkik/mhlsync/pkg/version"
)

// Mocked for unit testing.
var (
	parseUserConfig = config.ParseUser
	toolVersion     = func(tool string) (string, error) {
		return seal.New(tool).Version()
	}
)

// New creates a new `version` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of mhlsync and the sealing tool.",
		Long: "Print the version of mhlsync, and the version reported by the\n" +
			"configured sealing tool.",
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			run()
		},
	}
}

func run() {
	fmt.Fprintf(util.Stdout, "mhlsync version: %s\n", version.String())

	tool := seal.DefaultTool
	if cfg, err := parseUserConfig(); err == nil {
		tool = cfg.Tool
	} else {
		log.WithError(err).Debugf("Failed to read %s. Falling back to %q",
			config.UserConfigPath, tool)
	}

	toolVer, err := toolVersion(tool)
	if err != nil {
		log.WithError(err).Debug("Failed to get sealing tool version")
		toolVer = "unavailable"
	}
	fmt.Fprintf(util.Stdout, "%s version: %s\n", tool, strings.TrimSpace(toolVer))
}
