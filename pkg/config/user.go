// Package config reads and writes the mhlsync user configuration.
package config

import (
	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/sidkik/mhlsync/pkg/errors"
	"github.com/sidkik/mhlsync/pkg/manifest"
	"github.com/sidkik/mhlsync/pkg/seal"
)

const (
	// UserConfigPath is the default path to the mhlsync user config.
	UserConfigPath = "~/.mhlsync.yaml"

	// InitialUserConfigVersion is the first version of the user config.
	// Config files that do not specify a version will default to this
	// version.
	InitialUserConfigVersion = "v1alpha1"

	// SupportedUserConfigVersion is the version of the user config supported
	// by the current binary.
	SupportedUserConfigVersion = "v1alpha1"

	// DefaultAlgorithm is the algorithm requested from the sealing tool when
	// none is configured.
	DefaultAlgorithm = manifest.XXHash64
)

// User contains the user's defaults for running mhlsync.
type User struct {
	Version string `json:"version,omitempty"`

	// Tool is the path to the sealing binary.
	Tool string `json:"tool,omitempty"`

	// Algorithm is the hash algorithm the sealing tool is asked to compute.
	Algorithm manifest.Algorithm `json:"algorithm,omitempty"`

	// Workers is the number of files copied at once when syncing.
	Workers int `json:"workers,omitempty"`
}

// Default returns the configuration used when the user hasn't written one.
func Default() User {
	return User{
		Version:   SupportedUserConfigVersion,
		Tool:      seal.DefaultTool,
		Algorithm: DefaultAlgorithm,
		Workers:   1,
	}
}

// homedirExpand will be overridden in mock tests
var homedirExpand = homedir.Expand

// ParseUser parses the user config stored in the default path. Missing
// fields, or a missing file, fall back to the defaults.
func ParseUser() (User, error) {
	path, err := GetUserConfigPath()
	if err != nil {
		return User{}, errors.WithContext(err, "expand config path")
	}

	config := User{Version: InitialUserConfigVersion}
	err = readVersioned(path, InitialUserConfigVersion, SupportedUserConfigVersion, &config)
	if err != nil {
		if _, ok := err.(errors.FileNotFound); ok {
			return Default(), nil
		}
		return User{}, errors.WithContext(err, "parse")
	}

	defaults := Default()
	if config.Tool == "" {
		config.Tool = defaults.Tool
	}
	if config.Algorithm == "" {
		config.Algorithm = defaults.Algorithm
	}
	if config.Workers < 1 {
		config.Workers = defaults.Workers
	}

	if !config.Algorithm.IsSealable() {
		return User{}, errors.NewFriendlyError("The hash algorithm %q in %q "+
			"isn't supported. Please use one of %v.", config.Algorithm, path, manifest.Sealable)
	}

	config.Tool, err = homedirExpand(config.Tool)
	if err != nil {
		return User{}, errors.WithContext(err, "expand tool path")
	}
	return config, nil
}

// WriteUser writes the given user config to disk.
func WriteUser(cfg User) error {
	cfg.Version = SupportedUserConfigVersion
	path, err := GetUserConfigPath()
	if err != nil {
		return errors.WithContext(err, "expand config path")
	}

	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	if err := afero.WriteFile(fs, path, yamlBytes, 0644); err != nil {
		return errors.WriteError{Path: path, Err: err}
	}
	return nil
}

// GetUserConfigPath returns the path to the user's mhlsync configuration.
// This path is expanded, so it can be directly passed to file operations.
func GetUserConfigPath() (string, error) {
	return homedirExpand(UserConfigPath)
}
