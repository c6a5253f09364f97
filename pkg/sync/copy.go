package sync

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/mhlsync/pkg/errors"
)

// Variables mocked for unit testing.
var (
	fs       = afero.NewOsFs()
	copyFile = copyFileImpl
)

// copyFileImpl copies the contents, permission bits, and modification time of
// `src` to `dst`, creating any missing parent directories.
func copyFileImpl(src, dst string) error {
	srcFile, err := fs.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.FileNotFound{Path: src}
		}
		return errors.WithContext(err, "open source")
	}
	defer srcFile.Close()

	fileInfo, err := srcFile.Stat()
	if err != nil {
		return errors.WithContext(err, "stat")
	}
	if fileInfo.IsDir() {
		return fmt.Errorf("%q is a directory", src)
	}

	dstParent := filepath.Dir(dst)
	if err := fs.MkdirAll(dstParent, 0755); err != nil {
		return errors.WriteError{Path: dstParent, Err: err}
	}

	tmp, err := afero.TempFile(fs, dstParent, "."+filepath.Base(dst)+".")
	if err != nil {
		return errors.WriteError{Path: dst, Err: err}
	}

	cleanup := func() {
		if err := fs.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			log.WithError(err).WithField("path", tmp.Name()).Warn(
				"Failed to clean up partial copy")
		}
	}

	if err := writeCopy(tmp, srcFile, fileInfo); err != nil {
		cleanup()
		return errors.WriteError{Path: dst, Err: err}
	}

	if err := fs.Rename(tmp.Name(), dst); err != nil {
		cleanup()
		return errors.WriteError{Path: dst, Err: err}
	}
	return nil
}

func writeCopy(tmp afero.File, src io.Reader, srcInfo os.FileInfo) error {
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return errors.WithContext(err, "copy")
	}

	if err := tmp.Close(); err != nil {
		return errors.WithContext(err, "close")
	}

	if err := fs.Chmod(tmp.Name(), srcInfo.Mode().Perm()); err != nil {
		return errors.WithContext(err, "set file mode")
	}

	// Change the modification time as the last step so that it doesn't get
	// reset by other file operations.
	if err := fs.Chtimes(tmp.Name(), time.Now(), srcInfo.ModTime()); err != nil {
		return errors.WithContext(err, "set file modtime")
	}
	return nil
}
