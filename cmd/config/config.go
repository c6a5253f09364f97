package config

import (
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/mhlsync/cmd/util"
	"github.com/sidkik/mhlsync/pkg/config"
	"github.com/sidkik/mhlsync/pkg/errors"
	"github.com/sidkik/mhlsync/pkg/manifest"
)

// Mocked for unit testing.
var (
	parseUserConfig = config.ParseUser
	writeUserConfig = config.WriteUser
	prompt          = util.Prompt
)

// New creates a new `config` command.
func New() *cobra.Command {
	var tool, algorithm string
	var workers int
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Setup the mhlsync user configuration",
		Long: "Setup the defaults used by the other commands: the sealing tool,\n" +
			"the hash algorithm it computes, and the number of copy workers.",
		Run: func(_ *cobra.Command, _ []string) {
			opts := util.Overrides{Tool: tool, Algorithm: algorithm, Workers: workers}
			if err := SetupConfig(opts); err != nil {
				err = errors.NewFriendlyError("Failed to setup configuration:\n%s",
					errors.GetPrintableMessage(err))
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&tool, "tool", "",
		"Set the path to the sealing tool. "+
			"Optional: If not set, `mhlsync config` will interactively prompt.")
	cmd.Flags().StringVar(&algorithm, "algorithm", "",
		"Set the hash algorithm. "+
			"Optional: If not set, `mhlsync config` will interactively prompt.")
	cmd.Flags().IntVar(&workers, "workers", 0,
		"Set the number of files copied at once. "+
			"Optional: If not set, `mhlsync config` will interactively prompt.")

	// Setup the commands for querying the contents of the user config.
	type getterSpec struct {
		use, short string
		fn         func(config.User) string
	}

	getters := []getterSpec{
		{
			use:   "get-tool",
			short: "Get the currently configured sealing tool",
			fn:    func(cfg config.User) string { return cfg.Tool },
		},
		{
			use:   "get-algorithm",
			short: "Get the currently configured hash algorithm",
			fn:    func(cfg config.User) string { return string(cfg.Algorithm) },
		},
	}
	for _, getter := range getters {
		getter := getter
		cmd.AddCommand(&cobra.Command{
			Use:   getter.use,
			Short: getter.short,
			Run: func(_ *cobra.Command, _ []string) {
				cfg, err := parseUserConfig()
				if err != nil {
					err = errors.WithContext(err, "read config")
					util.HandleFatalError(err)
				}

				fmt.Fprintln(util.Stdout, getter.fn(cfg))
			},
		})
	}

	return cmd
}

// SetupConfig prompts for any settings that weren't passed as flags, and
// writes the result to the user config.
func SetupConfig(opts util.Overrides) error {
	cfg, err := generateConfig(opts)
	if err != nil {
		return errors.WithContext(err, "generate config")
	}

	if err := writeUserConfig(cfg); err != nil {
		return errors.WithContext(err, "write config")
	}

	path, err := config.GetUserConfigPath()
	if err != nil {
		return errors.WithContext(err, "get user config path")
	}

	fmt.Fprintf(util.Stdout, "Wrote config to %s\n", path)
	return nil
}

// generateConfig interacts with the user to decide what the user's desired
// configuration is. The current settings are offered as the recommended
// answers.
func generateConfig(opts util.Overrides) (config.User, error) {
	currConfig, err := parseUserConfig()
	if err != nil {
		log.WithError(err).Debug("Failed to read current config")
		currConfig = config.Default()
	}

	cfg := currConfig
	if opts.Tool != "" {
		cfg.Tool = opts.Tool
	} else {
		resp, err := prompt("Enter the path to the `mhl` sealing tool.\n"+
			"It's run once for each tree to checksum every file.",
			"Sealing tool", []string{currConfig.Tool}, true)
		if err != nil {
			return config.User{}, errors.WithContext(err, "read response")
		}
		cfg.Tool = resp
	}

	algorithm := opts.Algorithm
	if algorithm == "" {
		options := []string{string(currConfig.Algorithm)}
		for _, alg := range manifest.Sealable {
			if alg != currConfig.Algorithm {
				options = append(options, string(alg))
			}
		}

		algorithm, err = prompt("Select the hash algorithm the sealing tool computes.",
			"Hash algorithm", options, false)
		if err != nil {
			return config.User{}, errors.WithContext(err, "read response")
		}
	}
	cfg.Algorithm, err = manifest.ParseAlgorithm(algorithm)
	if err != nil {
		return config.User{}, err
	}

	cfg.Workers = opts.Workers
	for cfg.Workers < 1 {
		resp, err := prompt("Enter the number of files to copy at once when syncing.",
			"Copy workers", []string{strconv.Itoa(currConfig.Workers)}, true)
		if err != nil {
			return config.User{}, errors.WithContext(err, "read response")
		}

		cfg.Workers, err = strconv.Atoi(resp)
		if err != nil || cfg.Workers < 1 {
			fmt.Fprintln(util.Stdout, "The number of workers must be a positive integer.")
			cfg.Workers = 0
		}
	}

	return cfg, nil
}
