package diff

import (
	"fmt"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sidkik/mhlsync/cmd/util"
	"github.com/sidkik/mhlsync/pkg/errors"
	"github.com/sidkik/mhlsync/pkg/fswatch"
	"github.com/sidkik/mhlsync/pkg/session"
)

// Mocked for unit testing.
var (
	fs    = afero.NewOsFs()
	watch = fswatch.Watch
)

type options struct {
	masterMHL, targetMHL string
	masterDir, targetDir string
	out                  string
	watch                bool
	strictAlgorithm      bool
}

// New creates a new `diff` command.
func New() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "List the master files whose checksums are missing from the target",
		Long: "Compare a master manifest against a target manifest, and write the\n" +
			"paths of master files whose content isn't present in the target.\n\n" +
			"Manifests can be passed directly with --master-mhl and --target-mhl,\n" +
			"or found as the most recent master_*.mhl in --master-dir and --target-dir.",
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(opts); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&opts.masterMHL, "master-mhl", "", "The master manifest.")
	cmd.Flags().StringVar(&opts.targetMHL, "target-mhl", "", "The target manifest.")
	cmd.Flags().StringVar(&opts.masterDir, "master-dir", "",
		"The master tree. Its most recent manifest is used unless --master-mhl is set.")
	cmd.Flags().StringVar(&opts.targetDir, "target-dir", "",
		"The target tree. Its most recent manifest is used unless --target-mhl is set.")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "",
		"Where to write the comparison. Defaults to comparison_results.txt in the target tree.")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false,
		"Keep running, and compare again whenever a new manifest is written to either tree.")
	cmd.Flags().BoolVar(&opts.strictAlgorithm, "strict-algorithm", false,
		"Only match digests computed with the same algorithm.")
	return cmd
}

func run(opts options) error {
	s, err := newSession(opts)
	if err != nil {
		return err
	}

	if !opts.watch {
		return compare(s)
	}

	if opts.masterDir == "" || opts.targetDir == "" {
		return errors.NewFriendlyError("--watch requires --master-dir and --target-dir.")
	}

	changes, err := watch(opts.masterDir, opts.targetDir)
	if err != nil {
		return errors.WithContext(err, "watch trees")
	}

	var lastCompared string
	for {
		located, err := session.Locate(s)
		if err != nil {
			log.WithError(err).Warn("Waiting for both trees to have a manifest")
		} else if key := manifestsKey(located); key != lastCompared {
			if err := compare(located); err != nil {
				log.WithError(err).Error("Failed to compare manifests")
			}
			lastCompared = key
		}

		if _, ok := <-changes; !ok {
			return nil
		}
	}
}

func newSession(opts options) (session.Session, error) {
	if opts.masterMHL == "" && opts.masterDir == "" {
		return session.Session{}, errors.NewFriendlyError(
			"Either --master-mhl or --master-dir is required.")
	}
	if opts.targetMHL == "" && opts.targetDir == "" {
		return session.Session{}, errors.NewFriendlyError(
			"Either --target-mhl or --target-dir is required.")
	}

	s := session.Session{
		MasterRoot:     opts.masterDir,
		TargetRoot:     opts.targetDir,
		MasterManifest: opts.masterMHL,
		TargetManifest: opts.targetMHL,
		ComparisonPath: opts.out,
	}
	s.Diff.SameAlgorithm = opts.strictAlgorithm
	if s.TargetRoot == "" {
		s.TargetRoot = filepath.Dir(opts.targetMHL)
	}
	if s.MasterRoot == "" {
		s.MasterRoot = filepath.Dir(opts.masterMHL)
	}
	return s, nil
}

func compare(s session.Session) error {
	s, err := session.Locate(s)
	if err != nil {
		return errors.WithContext(err, "locate manifests")
	}

	s, result, err := session.Compare(s)
	if err != nil {
		return errors.WithContext(err, "compare")
	}

	fmt.Fprintln(util.Stdout, util.ComparisonSummary(len(result), s.ComparisonPath))
	return nil
}

// manifestsKey identifies the manifests a comparison was based on, so that
// events caused by writing the comparison itself don't trigger another one.
func manifestsKey(s session.Session) string {
	key := ""
	for _, path := range []string{s.MasterManifest, s.TargetManifest} {
		key += path
		if fi, err := fs.Stat(path); err == nil {
			key += fmt.Sprintf("@%d", fi.ModTime().UnixNano())
		}
		key += "\n"
	}
	return key
}
