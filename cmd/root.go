package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	configCmd "github.com/sidkik/mhlsync/cmd/config"
	"github.com/sidkik/mhlsync/cmd/create"
	"github.com/sidkik/mhlsync/cmd/diff"
	reconcileCmd "github.com/sidkik/mhlsync/cmd/reconcile"
	syncCmd "github.com/sidkik/mhlsync/cmd/sync"
	"github.com/sidkik/mhlsync/cmd/util"
	"github.com/sidkik/mhlsync/cmd/version"
	"github.com/sidkik/mhlsync/pkg/errors"
	"github.com/sidkik/mhlsync/pkg/runlog"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged, rather than just Info and
// above.
const verboseLogKey = "MHLSYNC_LOG_VERBOSE"

// Execute runs the main CLI process.
func Execute() {
	if os.Getenv(verboseLogKey) == "true" {
		log.SetLevel(log.DebugLevel)
	}

	var logFile string
	var hook *runlog.Hook
	rootCmd := &cobra.Command{
		Use:          "mhlsync",
		Short:        "Reconcile a target tree against a master tree using checksum manifests",
		SilenceUsage: true,

		// The call to rootCmd.Execute prints the error, so we silence errors
		// here to avoid double printing.
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if logFile == "" {
				return
			}

			var err error
			hook, err = runlog.Open(logFile, cmd.CalledAs())
			if err != nil {
				util.HandleFatalError(errors.WithContext(err, "open run log"))
			}
			log.AddHook(hook)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if hook == nil {
				return
			}
			if err := hook.Close(); err != nil {
				log.WithError(err).Warn("Failed to close run log")
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"Append a JSON record of everything logged at Info and above to this file.")
	rootCmd.AddCommand(
		configCmd.New(),
		create.New(),
		diff.New(),
		reconcileCmd.New(),
		syncCmd.New(),
		version.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		util.HandleFatalError(err)
	}
}
