package create

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/mhlsync/cmd/util"
	"github.com/sidkik/mhlsync/pkg/errors"
	"github.com/sidkik/mhlsync/pkg/manifest"
	"github.com/sidkik/mhlsync/pkg/seal"
	"github.com/sidkik/mhlsync/pkg/session"
)

// Mocked for unit testing.
var (
	newCompiler = func(tool string) session.Compiler {
		return manifest.NewCompiler(seal.New(tool))
	}
	loadUserConfig = util.LoadUserConfig
)

// New creates a new `create` command.
func New() *cobra.Command {
	var overrides util.Overrides
	cmd := &cobra.Command{
		Use:   "create <master> <target>",
		Short: "Seal both trees and compile a master manifest for each",
		Long: "Run the sealing tool over the master tree and then the target tree.\n" +
			"The per-file manifests it writes are compiled into a single\n" +
			"master_<timestamp>.mhl at the root of each tree, and then removed.",
		Args: cobra.ExactArgs(2),
		Run: func(_ *cobra.Command, args []string) {
			if err := run(args[0], args[1], overrides); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVarP(&overrides.Algorithm, "algorithm", "a", "",
		fmt.Sprintf("The hash algorithm to compute. One of %v.", manifest.Sealable))
	cmd.Flags().StringVar(&overrides.Tool, "tool", "",
		"The path to the sealing tool.")
	return cmd
}

func run(master, target string, overrides util.Overrides) error {
	cfg, err := loadUserConfig(overrides)
	if err != nil {
		return err
	}

	s := session.Session{
		MasterRoot: master,
		TargetRoot: target,
		Algorithm:  cfg.Algorithm,
	}
	s, err = session.Create(s, newCompiler(cfg.Tool))
	if err != nil {
		return errors.WithContext(err, "create manifests")
	}

	log.WithFields(log.Fields{
		"master": s.MasterManifest,
		"target": s.TargetManifest,
	}).Info("Created manifests for both trees")
	return nil
}
