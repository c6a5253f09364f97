package diff

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/mhlsync/cmd/util"
	"github.com/sidkik/mhlsync/pkg/errors"
	"github.com/sidkik/mhlsync/pkg/reconcile"
	"github.com/sidkik/mhlsync/pkg/session"
)

func writeManifest(t *testing.T, dir, name string, entries map[string]string) string {
	doc := `<hashlist version="1.1">` + "\n"
	for path, digest := range entries {
		doc += fmt.Sprintf("<hash><file>%s</file><md5>%s</md5></hash>\n", path, digest)
	}
	doc += "</hashlist>\n"

	path := filepath.Join(dir, name)
	require.NoError(t, ioutil.WriteFile(path, []byte(doc), 0644))
	return path
}

func TestNewSession(t *testing.T) {
	tests := []struct {
		name       string
		opts       options
		expSession session.Session
		expError   error
	}{
		{
			name: "Explicit manifests",
			opts: options{masterMHL: "/m/master.mhl", targetMHL: "/t/target.mhl", strictAlgorithm: true},
			expSession: session.Session{
				MasterRoot:     "/m",
				TargetRoot:     "/t",
				MasterManifest: "/m/master.mhl",
				TargetManifest: "/t/target.mhl",
				Diff:           reconcile.Options{SameAlgorithm: true},
			},
		},
		{
			name: "Directories",
			opts: options{masterDir: "/m", targetDir: "/t", out: "/tmp/out.txt"},
			expSession: session.Session{
				MasterRoot:     "/m",
				TargetRoot:     "/t",
				ComparisonPath: "/tmp/out.txt",
			},
		},
		{
			name: "Missing master",
			opts: options{targetDir: "/t"},
			expError: errors.NewFriendlyError(
				"Either --master-mhl or --master-dir is required."),
		},
		{
			name: "Missing target",
			opts: options{masterMHL: "/m/master.mhl"},
			expError: errors.NewFriendlyError(
				"Either --target-mhl or --target-dir is required."),
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			s, err := newSession(test.opts)
			assert.Equal(t, test.expError, err)
			assert.Equal(t, test.expSession, s)
		})
	}
}

func TestRun(t *testing.T) {
	util.Stdout = &bytes.Buffer{}
	master, target := t.TempDir(), t.TempDir()
	masterMHL := writeManifest(t, master, "master_2024-01-01_120000.mhl", map[string]string{
		"/m/a.mov": "aa",
		"/m/b.mov": "bb",
	})
	writeManifest(t, target, "master_2024-01-01_120000.mhl", map[string]string{
		"/t/b.mov": "bb",
	})

	out := filepath.Join(t.TempDir(), "missing.txt")
	err := run(options{masterMHL: masterMHL, targetDir: target, out: out})
	require.NoError(t, err)

	comparison, err := ioutil.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "/m/a.mov\n", string(comparison))
}

func TestRunWatch(t *testing.T) {
	util.Stdout = &bytes.Buffer{}
	master, target := t.TempDir(), t.TempDir()
	writeManifest(t, master, "master_2024-01-01_120000.mhl", map[string]string{
		"/m/a.mov": "aa",
	})
	writeManifest(t, target, "master_2024-01-01_120000.mhl", nil)

	changes := make(chan struct{})
	var watched []string
	watch = func(dirs ...string) (chan struct{}, error) {
		watched = dirs
		return changes, nil
	}

	done := make(chan error)
	go func() {
		done <- run(options{masterDir: master, targetDir: target, watch: true})
	}()

	// The target catches up, so the next comparison is empty.
	comparisonPath := filepath.Join(target, reconcile.DefaultComparisonName)
	staged := writeManifest(t, t.TempDir(), "master_2024-01-02_120000.mhl", map[string]string{
		"/t/a.mov": "aa",
	})
	require.NoError(t, os.Rename(staged, filepath.Join(target, filepath.Base(staged))))
	changes <- struct{}{}
	close(changes)
	require.NoError(t, <-done)

	assert.Equal(t, []string{master, target}, watched)
	comparison, err := ioutil.ReadFile(comparisonPath)
	require.NoError(t, err)
	assert.Empty(t, string(comparison))
}

func TestRunWatchRequiresDirectories(t *testing.T) {
	err := run(options{masterMHL: "/m/master.mhl", targetMHL: "/t/target.mhl", watch: true})
	assert.Equal(t, errors.NewFriendlyError(
		"--watch requires --master-dir and --target-dir."), err)
}

func TestManifestsKey(t *testing.T) {
	fs = afero.NewMemMapFs()
	defer func() { fs = afero.NewOsFs() }()

	s := session.Session{
		MasterManifest: "/master/master_2024-01-01_120000.mhl",
		TargetManifest: "/target/master_2024-01-01_120100.mhl",
	}
	assert.Equal(t, s.MasterManifest+"\n"+s.TargetManifest+"\n", manifestsKey(s))

	for _, path := range []string{s.MasterManifest, s.TargetManifest} {
		require.NoError(t, afero.WriteFile(fs, path, []byte("<hashlist/>"), 0644))
	}
	key := manifestsKey(s)
	assert.NotEqual(t, s.MasterManifest+"\n"+s.TargetManifest+"\n", key)

	// Writing other files into the trees doesn't change the key.
	require.NoError(t, afero.WriteFile(fs, "/target/comparison_results.txt", nil, 0644))
	assert.Equal(t, key, manifestsKey(s))

	later := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, fs.Chtimes(s.TargetManifest, later, later))
	assert.NotEqual(t, key, manifestsKey(s))
}
