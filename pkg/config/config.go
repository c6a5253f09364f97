package config

import (
	"fmt"
	"os"

	"github.com/ghodss/yaml"
	"github.com/spf13/afero"

	"github.com/sidkik/mhlsync/pkg/errors"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// parseConfigErrTemplate is shown when a config file isn't valid YAML or
// doesn't fit the config schema. The YAML library's errors carry no line
// information, so its message is included verbatim.
const parseConfigErrTemplate = "Failed to parse the config file %q.\n" +
	"Check that every field has the right type, and that the file has no " +
	"fields besides version, tool, algorithm, and workers.\n" +
	"Rerun `mhlsync config` to regenerate it.\n\n" +
	"Parser error: %s"

// versionHeader decodes only the field shared by every config version.
type versionHeader struct {
	Version string `json:"version"`
}

type incompatibleVersionError struct {
	path, exp, actual string
}

func (err incompatibleVersionError) Error() string {
	return err.FriendlyMessage()
}

func (err incompatibleVersionError) FriendlyMessage() string {
	return fmt.Sprintf("%q is a version %q config, but this build of "+
		"mhlsync reads version %q.\n"+
		"Rerun `mhlsync config` to regenerate it.", err.path, err.actual, err.exp)
}

// readVersioned strictly decodes the YAML file at `path` into `out`. A file
// without a version is treated as `defaultVersion`.
//
// The version is checked before the strict decode, so that a config written
// by another release reports the version mismatch rather than whichever
// fields were renamed.
func readVersioned(path, defaultVersion, expVersion string, out interface{}) error {
	data, err := afero.ReadFile(fs, path)
	if os.IsNotExist(err) {
		return errors.FileNotFound{Path: path}
	}
	if err != nil {
		return errors.WithContext(err, "read file")
	}

	var header versionHeader
	if err := yaml.Unmarshal(data, &header); err != nil {
		return errors.NewFriendlyError(parseConfigErrTemplate, path, err)
	}
	if header.Version == "" {
		header.Version = defaultVersion
	}
	if header.Version != expVersion {
		return incompatibleVersionError{path, expVersion, header.Version}
	}

	if err := yaml.UnmarshalStrict(data, out, yaml.DisallowUnknownFields); err != nil {
		return errors.NewFriendlyError(parseConfigErrTemplate, path, err)
	}
	return nil
}
