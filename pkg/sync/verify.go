package sync

import (
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/sidkik/mhlsync/pkg/errors"
)

// HashFile returns the sha512 hash of the file at the given path.
func HashFile(path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", errors.WithContext(err, "open")
	}
	defer f.Close()

	hasher := sha512.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", errors.WithContext(err, "read")
	}

	return base64.StdEncoding.EncodeToString(hasher.Sum(nil)), nil
}

// verifyCopy re-reads both files and checks that the copy has the same
// contents as the source.
func verifyCopy(src, dst string) error {
	srcHash, err := HashFile(src)
	if err != nil {
		return errors.WithContext(err, "hash source")
	}

	dstHash, err := HashFile(dst)
	if err != nil {
		return errors.WithContext(err, "hash copy")
	}

	if srcHash != dstHash {
		return fmt.Errorf("the copy at %q doesn't match its source", dst)
	}
	return nil
}
