package config

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ghodss/yaml"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	"github.com/sidkik/mhlsync/pkg/errors"
	"github.com/sidkik/mhlsync/pkg/manifest"
)

// mockExpand resolves the user config path to `configPath`, and expands any
// other path against /home/user.
func mockExpand(configPath string) func(string) (string, error) {
	return func(path string) (string, error) {
		if path == UserConfigPath {
			return configPath, nil
		}
		if strings.HasPrefix(path, "~") {
			return "/home/user" + strings.TrimPrefix(path, "~"), nil
		}
		return path, nil
	}
}

func TestParseUser(t *testing.T) {
	out := ".mhlsync.yaml"
	userEmptyVersion := User{
		Tool:      "/opt/bin/mhl",
		Algorithm: manifest.MD5,
		Workers:   4,
	}
	userCorrectVersion := User{
		Version:   SupportedUserConfigVersion,
		Tool:      "/opt/bin/mhl",
		Algorithm: manifest.MD5,
		Workers:   4,
	}
	userIncorrectVersion := User{
		Version: "incorrect_version",
		Tool:    "/opt/bin/mhl",
	}
	userEmptyVersionString, err := yaml.Marshal(userEmptyVersion)
	assert.NoError(t, err)
	userCorrectVersionString, err := yaml.Marshal(userCorrectVersion)
	assert.NoError(t, err)
	userIncorrectVersionString, err := yaml.Marshal(userIncorrectVersion)
	assert.NoError(t, err)

	tests := []struct {
		name      string
		input     []byte
		expConfig User
		expError  error
	}{
		{
			name:      "EmptyVersion",
			input:     userEmptyVersionString,
			expConfig: userCorrectVersion,
		},
		{
			name:      "CorrectVersion",
			input:     userCorrectVersionString,
			expConfig: userCorrectVersion,
		},
		{
			name:  "Defaults",
			input: []byte("tool: mhl-1.4\n"),
			expConfig: User{
				Version:   SupportedUserConfigVersion,
				Tool:      "mhl-1.4",
				Algorithm: DefaultAlgorithm,
				Workers:   1,
			},
		},
		{
			name:  "ExpandTool",
			input: []byte("tool: ~/bin/mhl\n"),
			expConfig: User{
				Version:   SupportedUserConfigVersion,
				Tool:      "/home/user/bin/mhl",
				Algorithm: DefaultAlgorithm,
				Workers:   1,
			},
		},
		{
			name:  "IncorrectVersion",
			input: userIncorrectVersionString,
			expError: errors.WithContext(incompatibleVersionError{
				path:   out,
				exp:    SupportedUserConfigVersion,
				actual: userIncorrectVersion.Version,
			}, "parse"),
		},
		{
			name: "ExtraFields",
			input: []byte(fmt.Sprintf(
				"version: %s\nextra: fields", SupportedUserConfigVersion)),
			expError: errors.WithContext(
				errors.NewFriendlyError(parseConfigErrTemplate, out,
					errors.New("error unmarshaling JSON: while decoding JSON: "+
						`json: unknown field "extra"`)),
				"parse"),
		},
		{
			name:  "UnsupportedAlgorithm",
			input: []byte("algorithm: sha256\n"),
			expError: errors.NewFriendlyError("The hash algorithm %q in %q "+
				"isn't supported. Please use one of %v.", "sha256", out, manifest.Sealable),
		},
	}

	fs = afero.NewMemMapFs()
	homedirExpand = mockExpand(out)
	for _, test := range tests {
		err := afero.WriteFile(fs, out, test.input, 0644)
		assert.NoError(t, err)
		config, err := ParseUser()
		assert.Equal(t, test.expConfig, config, test.name)
		assert.Equal(t, test.expError, err, test.name)
	}
}

func TestParseMissingUser(t *testing.T) {
	fs = afero.NewMemMapFs()
	homedirExpand = mockExpand("/home/user/.mhlsync.yaml")

	config, err := ParseUser()
	assert.NoError(t, err)
	assert.Equal(t, Default(), config)
}

func TestParseWrittenUser(t *testing.T) {
	fs = afero.NewMemMapFs()
	homedirExpand = mockExpand(".mhlsync.yaml")

	user := User{
		Tool:      "/usr/local/bin/mhl",
		Algorithm: manifest.SHA1,
		Workers:   8,
	}

	// Write the user to disk, and assert that we get the same user config when
	// we parse it.
	assert.NoError(t, WriteUser(user))

	parsed, err := ParseUser()
	assert.NoError(t, err)

	user.Version = SupportedUserConfigVersion
	assert.Equal(t, user, parsed)
}
