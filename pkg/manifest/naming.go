package manifest

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/sidkik/mhlsync/pkg/errors"
)

const (
	// Extension is the file extension of every manifest and fragment.
	Extension = ".mhl"

	// MasterPrefix starts the filename of every compiled manifest.
	MasterPrefix = "master_"

	timestampLayout = "2006-01-02_150405"
)

var masterNamePattern = regexp.MustCompile(`^master_(\d{4}-\d{2}-\d{2}_\d{6})\.mhl$`)

// Name returns the filename of a master manifest compiled at `t`.
func Name(t time.Time) string {
	return MasterPrefix + t.Format(timestampLayout) + Extension
}

// ParseName extracts the compilation time from a master manifest filename.
func ParseName(name string) (time.Time, bool) {
	match := masterNamePattern.FindStringSubmatch(name)
	if match == nil {
		return time.Time{}, false
	}

	t, err := time.ParseInLocation(timestampLayout, match[1], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// IsFragment returns whether `name` is a single-item manifest written by the
// sealing tool, as opposed to a compiled master manifest.
func IsFragment(name string) bool {
	return strings.HasSuffix(name, Extension) && !strings.HasPrefix(name, MasterPrefix)
}

// Latest returns the path of the most recent master manifest directly inside
// `dir`. Recency is decided by the timestamp in the filename, never by the
// file's metadata.
func Latest(dir string) (string, error) {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.FileNotFound{Path: dir}
		}
		return "", errors.WithContext(err, "list directory")
	}

	var latestName string
	var latestTime time.Time
	for _, info := range infos {
		if info.IsDir() {
			continue
		}

		createdAt, ok := ParseName(info.Name())
		if !ok {
			continue
		}

		if latestName == "" || createdAt.After(latestTime) {
			latestName = info.Name()
			latestTime = createdAt
		}
	}

	if latestName == "" {
		return "", errors.FileNotFound{Path: filepath.Join(dir, MasterPrefix+"*"+Extension)}
	}
	return filepath.Join(dir, latestName), nil
}
