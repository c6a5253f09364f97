package sync

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	goSync "sync"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/mhlsync/pkg/errors"
	"github.com/sidkik/mhlsync/pkg/reconcile"
)

// QuarantineDir is the folder within the target tree that receives the
// copied files.
const QuarantineDir = "from_master"

// Options controls how the copies are executed.
type Options struct {
	// Workers is the number of files copied at once. Values below one mean
	// one file at a time.
	Workers int

	// ContinueOnError attempts every file even after a copy fails. The
	// failures are returned together as a *PartialError. By default, the
	// first failure aborts the sync.
	ContinueOnError bool

	// Verify re-reads every copy after it's written, and fails the copy if
	// its contents don't match the source.
	Verify bool
}

// Failure describes a file that couldn't be copied.
type Failure struct {
	Path string
	Err  error
}

// PartialError is returned when ContinueOnError is set and some copies
// failed.
type PartialError struct {
	Copied   int
	Failures []Failure
}

func (err *PartialError) Error() string {
	var lines []string
	for _, f := range err.Failures {
		lines = append(lines, fmt.Sprintf("  %s: %s", f.Path, f.Err))
	}
	return fmt.Sprintf("failed to copy %d files (%d copied):\n%s",
		len(err.Failures), err.Copied, strings.Join(lines, "\n"))
}

// Destination returns where `path` is copied to within the target tree.
func Destination(path, masterRoot, targetRoot string) (string, error) {
	relativePath, err := filepath.Rel(masterRoot, path)
	if err != nil || relativePath == "." || relativePath == ".." ||
		strings.HasPrefix(relativePath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q is not within the master root %q", path, masterRoot)
	}
	return filepath.Join(targetRoot, QuarantineDir, relativePath), nil
}

type mirrorResult struct {
	path string
	dst  string
	err  error
}

// Mirror copies every path in `paths`, which must live under `masterRoot`,
// into the quarantine folder of `targetRoot`. It returns the number of files
// copied.
func Mirror(paths []string, masterRoot, targetRoot string, opts Options) (int, error) {
	masterRoot, err := filepath.Abs(masterRoot)
	if err != nil {
		return 0, errors.WithContext(err, "absolute master root")
	}

	targetRoot, err = filepath.Abs(targetRoot)
	if err != nil {
		return 0, errors.WithContext(err, "absolute target root")
	}

	if len(paths) == 0 {
		log.Info("Nothing to sync. The target already has every master file.")
		return 0, nil
	}

	// Start the copy workers.
	numWorkers := opts.Workers
	if numWorkers < 1 {
		numWorkers = 1
	}
	if len(paths) < numWorkers {
		numWorkers = len(paths)
	}

	// aborted is closed on the first failure, unless ContinueOnError is set.
	// Workers check it before every copy so that no copy starts after a
	// failure is seen.
	aborted := make(chan struct{})
	var abortOnce goSync.Once
	abort := func() { abortOnce.Do(func() { close(aborted) }) }

	var copyWaitGroup goSync.WaitGroup
	toCopyChan := make(chan string)
	copyResults := make(chan mirrorResult, numWorkers)
	for i := 0; i < numWorkers; i++ {
		copyWaitGroup.Add(1)
		go func() {
			defer copyWaitGroup.Done()
			for path := range toCopyChan {
				select {
				case <-aborted:
					continue
				default:
				}

				dst, err := mirrorOne(path, masterRoot, targetRoot, opts.Verify)
				if err != nil && !opts.ContinueOnError {
					abort()
				}
				copyResults <- mirrorResult{path: path, dst: dst, err: err}
			}
		}()
	}

	// Feed the copy workers.
	go func() {
		defer func() {
			close(toCopyChan)
			copyWaitGroup.Wait()
			close(copyResults)
		}()

		for _, path := range paths {
			select {
			case toCopyChan <- path:
			case <-aborted:
				return
			}
		}
	}()

	// Process the results from copying.
	var copied []string
	var failures []Failure
	var firstErr error
	for res := range copyResults {
		if res.err == nil {
			log.WithFields(log.Fields{
				"src": res.path,
				"dst": res.dst,
			}).Debug("Synced file")
			copied = append(copied, res.dst)
			continue
		}

		failures = append(failures, Failure{Path: res.path, Err: res.err})
		if firstErr == nil {
			firstErr = errors.WithContext(res.err, fmt.Sprintf("mirror %s", res.path))
		}
	}

	sort.Strings(copied)
	logFields := log.Fields{
		"copied": len(copied),
		"target": filepath.Join(targetRoot, QuarantineDir),
	}
	if len(copied) > 0 {
		logFields["synced"] = truncateSlice(copied, 5)
	}

	if firstErr == nil {
		log.WithFields(logFields).Info("Synced files..")
		return len(copied), nil
	}

	log.WithFields(logFields).WithField("failed", len(failures)).Error("Sync failed")
	if !opts.ContinueOnError {
		return len(copied), firstErr
	}

	sort.Slice(failures, func(i, j int) bool {
		return failures[i].Path < failures[j].Path
	})
	return len(copied), &PartialError{Copied: len(copied), Failures: failures}
}

// MirrorComparison mirrors the paths listed in the comparison file at
// `comparisonPath`.
func MirrorComparison(comparisonPath, masterRoot, targetRoot string, opts Options) (int, error) {
	paths, err := reconcile.ReadComparison(comparisonPath)
	if err != nil {
		return 0, errors.WithContext(err, "read comparison")
	}
	return Mirror(paths, masterRoot, targetRoot, opts)
}

func mirrorOne(path, masterRoot, targetRoot string, verify bool) (string, error) {
	// Relative paths are recorded relative to the tree they were sealed in.
	src := path
	if !filepath.IsAbs(src) {
		src = filepath.Join(masterRoot, src)
	}

	dst, err := Destination(src, masterRoot, targetRoot)
	if err != nil {
		return "", err
	}
	if err := copyFile(src, dst); err != nil {
		return dst, err
	}

	if verify {
		return dst, verifyCopy(src, dst)
	}
	return dst, nil
}

// truncateSlice truncates the given slice of strings to the given length. If
// the slice is longer than `length`, a message is appended saying how many
// more items are in the slice.
func truncateSlice(slc []string, length int) (truncated []string) {
	if len(slc) <= length {
		return slc
	}
	msg := fmt.Sprintf("... %d more ...", len(slc)-length)
	return append(append([]string{}, slc[:length]...), msg)
}
