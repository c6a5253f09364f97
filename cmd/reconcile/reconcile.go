package reconcile

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sidkik/mhlsync/cmd/util"
	"github.com/sidkik/mhlsync/pkg/errors"
	"github.com/sidkik/mhlsync/pkg/manifest"
	"github.com/sidkik/mhlsync/pkg/reconcile"
	"github.com/sidkik/mhlsync/pkg/seal"
	"github.com/sidkik/mhlsync/pkg/session"
	"github.com/sidkik/mhlsync/pkg/sync"
)

// Mocked for unit testing.
var (
	newCompiler = func(tool string) session.Compiler {
		return manifest.NewCompiler(seal.New(tool))
	}
	prompt         = util.Prompt
	isInteractive  = util.IsInteractive
	loadUserConfig = util.LoadUserConfig
)

type options struct {
	overrides       util.Overrides
	skipCreate      bool
	dryRun          bool
	yes             bool
	strictAlgorithm bool
	continueOnError bool
	verify          bool
}

// New creates a new `reconcile` command.
func New() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "reconcile <master> <target>",
		Short: "Create manifests, compare them, and sync the missing files",
		Long: "Run create, diff, and sync in order for a master and target tree.\n" +
			"The comparison is written to comparison_results.txt in the target tree,\n" +
			"and the missing files are copied into <target>/" + sync.QuarantineDir + ".",
		Args: cobra.ExactArgs(2),
		Run: func(_ *cobra.Command, args []string) {
			if err := run(args[0], args[1], opts); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVarP(&opts.overrides.Algorithm, "algorithm", "a", "",
		fmt.Sprintf("The hash algorithm to compute. One of %v.", manifest.Sealable))
	cmd.Flags().StringVar(&opts.overrides.Tool, "tool", "",
		"The path to the sealing tool.")
	cmd.Flags().IntVarP(&opts.overrides.Workers, "workers", "j", 0,
		"The number of files to copy at once.")
	cmd.Flags().BoolVar(&opts.skipCreate, "skip-create", false,
		"Compare the most recent existing manifests instead of creating new ones.")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false,
		"Write the comparison, but don't copy anything.")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false,
		"Sync without asking for confirmation.")
	cmd.Flags().BoolVar(&opts.strictAlgorithm, "strict-algorithm", false,
		"Only match digests computed with the same algorithm.")
	cmd.Flags().BoolVar(&opts.continueOnError, "continue-on-error", false,
		"Keep copying the remaining files after a copy fails.")
	cmd.Flags().BoolVar(&opts.verify, "verify", false,
		"Re-read every copy and check that it matches its source.")
	return cmd
}

func run(master, target string, opts options) error {
	cfg, err := loadUserConfig(opts.overrides)
	if err != nil {
		return err
	}

	s := session.Session{
		MasterRoot: master,
		TargetRoot: target,
		Algorithm:  cfg.Algorithm,
		Diff:       reconcile.Options{SameAlgorithm: opts.strictAlgorithm},
		Mirror: sync.Options{
			Workers:         cfg.Workers,
			ContinueOnError: opts.continueOnError,
			Verify:          opts.verify,
		},
	}

	if opts.skipCreate {
		s, err = session.Locate(s)
		if err != nil {
			return errors.WithContext(err, "locate manifests")
		}
	} else {
		s, err = session.Create(s, newCompiler(cfg.Tool))
		if err != nil {
			return errors.WithContext(err, "create manifests")
		}
	}

	s, result, err := session.Compare(s)
	if err != nil {
		return errors.WithContext(err, "compare")
	}

	fmt.Fprintln(util.Stdout, util.ComparisonSummary(len(result), s.ComparisonPath))
	if opts.dryRun || len(result) == 0 {
		return nil
	}

	if !opts.yes {
		if !isInteractive() {
			return errors.NewFriendlyError("Not syncing because there's no terminal " +
				"to confirm the sync from. Pass --yes to sync anyway.")
		}

		resp, err := prompt(fmt.Sprintf("Copy the %d missing files into %s?",
			len(result), sync.QuarantineDir), "Sync now", []string{"Yes", "No"}, false)
		if err != nil {
			return errors.WithContext(err, "read response")
		}
		if resp != "Yes" {
			return nil
		}
	}

	copied, err := session.Sync(s)
	if err != nil {
		return errors.WithContext(err, "sync")
	}

	fmt.Fprintf(util.Stdout, "Copied %d files into %s\n", copied, sync.QuarantineDir)
	return nil
}
