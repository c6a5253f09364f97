package sync

import (
	"io/ioutil"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	goSync "sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/mhlsync/pkg/errors"
)

type mockFile struct {
	path     string
	contents string
	mode     os.FileMode
	modTime  time.Time
}

func (f mockFile) writeToFs() error {
	if err := afero.WriteFile(fs, f.path, []byte(f.contents), f.mode); err != nil {
		return err
	}
	if err := fs.Chmod(f.path, f.mode); err != nil {
		return err
	}
	return fs.Chtimes(f.path, time.Now(), f.modTime)
}

func randomFile(overrides mockFile) mockFile {
	if overrides.path == "" {
		overrides.path = "/master/" + strconv.Itoa(rand.Int())
	}

	if overrides.contents == "" {
		overrides.contents = strconv.Itoa(rand.Int())
	}

	if overrides.modTime.IsZero() {
		randomTime := time.Date(2019, 11, 10, rand.Intn(23), rand.Intn(59), rand.Intn(59), 0, time.UTC)
		overrides.modTime = randomTime
	}

	if overrides.mode == 0000 {
		overrides.mode = os.FileMode(0640 | rand.Intn(8))
	}
	return overrides
}

func assertCopied(t *testing.T, src mockFile, dst string) {
	contents, err := afero.ReadFile(fs, dst)
	require.NoError(t, err)
	assert.Equal(t, src.contents, string(contents))

	info, err := fs.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, src.mode, info.Mode().Perm())
	assert.True(t, src.modTime.Equal(info.ModTime()), "modtime %s != %s", src.modTime, info.ModTime())
}

func TestDestination(t *testing.T) {
	tests := []struct {
		path     string
		exp      string
		expError bool
	}{
		{path: "/master/a/b.mov", exp: "/target/from_master/a/b.mov"},
		{path: "/master/top.wav", exp: "/target/from_master/top.wav"},
		{path: "/master", expError: true},
		{path: "/elsewhere/c.mov", expError: true},
		{path: "/master-2/c.mov", expError: true},
		{path: "/master/..data/c.mov", exp: "/target/from_master/..data/c.mov"},
	}

	for _, test := range tests {
		dst, err := Destination(test.path, "/master", "/target")
		if test.expError {
			assert.Error(t, err, test.path)
			continue
		}
		assert.NoError(t, err, test.path)
		assert.Equal(t, test.exp, dst)
	}
}

func TestMirror(t *testing.T) {
	for _, workers := range []int{0, 1, 4} {
		workers := workers
		t.Run("Workers"+strconv.Itoa(workers), func(t *testing.T) {
			fs = afero.NewMemMapFs()

			files := []mockFile{
				randomFile(mockFile{path: "/master/a/b.mov"}),
				randomFile(mockFile{path: "/master/day1/A001/C001.mov", mode: 0444}),
				randomFile(mockFile{path: "/master/notes.txt", mode: 0755}),
			}
			var paths []string
			for _, f := range files {
				require.NoError(t, f.writeToFs())
				paths = append(paths, f.path)
			}
			require.NoError(t, fs.MkdirAll("/target/existing", 0755))

			copied, err := Mirror(paths, "/master", "/target", Options{Workers: workers})
			require.NoError(t, err)
			assert.Equal(t, 3, copied)

			assertCopied(t, files[0], "/target/from_master/a/b.mov")
			assertCopied(t, files[1], "/target/from_master/day1/A001/C001.mov")
			assertCopied(t, files[2], "/target/from_master/notes.txt")

			// The master files are untouched.
			for _, f := range files {
				assertCopied(t, f, f.path)
			}

			// Syncing again gives the same result.
			copied, err = Mirror(paths, "/master", "/target", Options{Workers: workers})
			require.NoError(t, err)
			assert.Equal(t, 3, copied)
			assertCopied(t, files[0], "/target/from_master/a/b.mov")
			assertCopied(t, files[1], "/target/from_master/day1/A001/C001.mov")

			// No temporary files are left behind.
			var leftovers []string
			require.NoError(t, afero.Walk(fs, "/target", func(path string, fi os.FileInfo, err error) error {
				if err == nil && !fi.IsDir() {
					leftovers = append(leftovers, path)
				}
				return err
			}))
			assert.Len(t, leftovers, 3)
		})
	}
}

func TestMirrorEmpty(t *testing.T) {
	fs = afero.NewMemMapFs()
	copied, err := Mirror(nil, "/master", "/target", Options{})
	assert.NoError(t, err)
	assert.Zero(t, copied)

	exists, err := afero.DirExists(fs, "/target/from_master")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMirrorAbortsOnFirstError(t *testing.T) {
	fs = afero.NewMemMapFs()
	present := randomFile(mockFile{path: "/master/1-present"})
	require.NoError(t, present.writeToFs())
	later := randomFile(mockFile{path: "/master/3-later"})
	require.NoError(t, later.writeToFs())

	paths := []string{present.path, "/master/2-deleted", later.path}
	copied, err := Mirror(paths, "/master", "/target", Options{})
	assert.Equal(t, 1, copied)
	assert.Equal(t, errors.FileNotFound{Path: "/master/2-deleted"}, errors.RootCause(err))

	// The copy that finished is left in place, and nothing after the failure
	// was copied.
	assertCopied(t, present, "/target/from_master/1-present")
	exists, err := afero.Exists(fs, "/target/from_master/3-later")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMirrorContinueOnError(t *testing.T) {
	fs = afero.NewMemMapFs()
	good := randomFile(mockFile{path: "/master/good"})
	require.NoError(t, good.writeToFs())

	paths := []string{"/master/gone", good.path, "/outside/file"}
	copied, err := Mirror(paths, "/master", "/target",
		Options{Workers: 2, ContinueOnError: true})
	assert.Equal(t, 1, copied)
	assertCopied(t, good, "/target/from_master/good")

	partial, ok := err.(*PartialError)
	require.True(t, ok)
	assert.Equal(t, 1, partial.Copied)
	require.Len(t, partial.Failures, 2)
	assert.Equal(t, "/master/gone", partial.Failures[0].Path)
	assert.Equal(t, errors.FileNotFound{Path: "/master/gone"}, partial.Failures[0].Err)
	assert.Equal(t, "/outside/file", partial.Failures[1].Path)
}

func TestMirrorPermissionError(t *testing.T) {
	base := afero.NewMemMapFs()
	fs = base
	src := randomFile(mockFile{path: "/master/a.mov"})
	require.NoError(t, src.writeToFs())

	fs = afero.NewReadOnlyFs(base)
	copied, err := Mirror([]string{src.path}, "/master", "/target", Options{})
	assert.Zero(t, copied)

	var writeErr errors.WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, "/target/from_master", writeErr.Path)
}

func TestMirrorRelativePath(t *testing.T) {
	fs = afero.NewMemMapFs()
	src := randomFile(mockFile{path: "/master/a/b.mov"})
	require.NoError(t, src.writeToFs())

	copied, err := Mirror([]string{"a/b.mov"}, "/master", "/target", Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, copied)
	assertCopied(t, src, "/target/from_master/a/b.mov")
}

type renameErrorFs struct {
	afero.Fs
}

func (renameErrorFs) Rename(_, _ string) error {
	return errors.New("cross-device link")
}

func TestMirrorRenameErrorCleansUp(t *testing.T) {
	base := afero.NewMemMapFs()
	fs = base
	src := randomFile(mockFile{path: "/master/a.mov"})
	require.NoError(t, src.writeToFs())

	fs = renameErrorFs{base}
	copied, err := Mirror([]string{src.path}, "/master", "/target", Options{})
	assert.Zero(t, copied)

	var writeErr errors.WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, "/target/from_master/a.mov", writeErr.Path)

	leftover, err := afero.ReadDir(base, "/target/from_master")
	require.NoError(t, err)
	assert.Empty(t, leftover)
}

func TestMirrorStopsDispatchingAfterFailure(t *testing.T) {
	fs = afero.NewMemMapFs()
	defer func() { copyFile = copyFileImpl }()

	var lock goSync.Mutex
	var attempted []string
	copyFile = func(src, dst string) error {
		lock.Lock()
		attempted = append(attempted, src)
		lock.Unlock()
		return errors.New("disk full")
	}

	var paths []string
	for i := 0; i < 50; i++ {
		paths = append(paths, "/master/"+strconv.Itoa(i))
	}

	_, err := Mirror(paths, "/master", "/target", Options{Workers: 1})
	assert.EqualError(t, err, "mirror /master/0: disk full")
	assert.Equal(t, []string{"/master/0"}, attempted)
}

func TestMirrorComparison(t *testing.T) {
	fs = afero.NewOsFs()
	defer func() { fs = afero.NewMemMapFs() }()

	dir := t.TempDir()
	master := filepath.Join(dir, "master")
	target := filepath.Join(dir, "target")
	require.NoError(t, os.MkdirAll(filepath.Join(master, "a"), 0755))
	require.NoError(t, os.MkdirAll(target, 0755))

	src := filepath.Join(master, "a", "b.mov")
	require.NoError(t, ioutil.WriteFile(src, []byte("frames"), 0640))

	comparison := filepath.Join(target, "comparison_results.txt")
	require.NoError(t, ioutil.WriteFile(comparison, []byte(src+"\n"), 0644))

	copied, err := MirrorComparison(comparison, master, target, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, copied)

	contents, err := ioutil.ReadFile(filepath.Join(target, "from_master", "a", "b.mov"))
	require.NoError(t, err)
	assert.Equal(t, "frames", string(contents))

	_, err = MirrorComparison(filepath.Join(target, "missing.txt"), master, target, Options{})
	assert.Equal(t, errors.FileNotFound{Path: filepath.Join(target, "missing.txt")},
		errors.RootCause(err))
}

func TestTruncateSlice(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, truncateSlice([]string{"a", "b"}, 5))
	assert.Equal(t, []string{"a", "... 2 more ..."}, truncateSlice([]string{"a", "b", "c"}, 1))
}
