package sync

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sidkik/mhlsync/cmd/util"
	"github.com/sidkik/mhlsync/pkg/errors"
	"github.com/sidkik/mhlsync/pkg/session"
	"github.com/sidkik/mhlsync/pkg/sync"
)

// Mocked for unit testing.
var loadUserConfig = util.LoadUserConfig

// New creates a new `sync` command.
func New() *cobra.Command {
	var workers int
	var continueOnError, verify bool
	cmd := &cobra.Command{
		Use:   "sync <comparison> <master> <target>",
		Short: "Copy the files listed in a comparison into the target tree",
		Long: "Copy every master file listed in the comparison file into\n" +
			"<target>/" + sync.QuarantineDir + ", preserving its path relative to <master>.\n" +
			"Existing copies are replaced, so the sync can safely be rerun.",
		Args: cobra.ExactArgs(3),
		Run: func(_ *cobra.Command, args []string) {
			opts := sync.Options{ContinueOnError: continueOnError, Verify: verify}
			if err := run(args[0], args[1], args[2], workers, opts); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "j", 0,
		"The number of files to copy at once. Defaults to the configured value.")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false,
		"Keep copying the remaining files after a copy fails.")
	cmd.Flags().BoolVar(&verify, "verify", false,
		"Re-read every copy and check that it matches its source.")
	return cmd
}

func run(comparison, master, target string, workers int, opts sync.Options) error {
	cfg, err := loadUserConfig(util.Overrides{Workers: workers})
	if err != nil {
		return err
	}
	opts.Workers = cfg.Workers

	s := session.Session{
		MasterRoot:     master,
		TargetRoot:     target,
		ComparisonPath: comparison,
		Mirror:         opts,
	}
	copied, err := session.Sync(s)
	if err != nil {
		return errors.WithContext(err, "sync")
	}

	fmt.Fprintf(util.Stdout, "Copied %d files into %s\n", copied, sync.QuarantineDir)
	return nil
}
