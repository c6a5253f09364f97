// Package reconcile finds the files in a master manifest whose contents are
// missing from a target manifest.
//
// Files are compared by digest, not by path. A master file is present in the
// target if the target records the same digest anywhere, under any name.
package reconcile

import (
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/mhlsync/pkg/errors"
	"github.com/sidkik/mhlsync/pkg/manifest"
)

// Options tweaks how digests are compared.
type Options struct {
	// SameAlgorithm only matches digests computed by the same algorithm. By
	// default a digest value matches regardless of which algorithm produced
	// it.
	SameAlgorithm bool
}

func (opts Options) key() func(manifest.Algorithm, string) string {
	if opts.SameAlgorithm {
		return manifest.StrictDigestKey
	}
	return manifest.DigestKey
}

func (opts Options) identity(m manifest.Manifest) manifest.HashIdentity {
	if opts.SameAlgorithm {
		return m.StrictIdentity()
	}
	return m.Identity()
}

// Result is the sorted list of master paths missing from the target.
type Result []string

// Diff returns the paths of the master entries with at least one digest that
// doesn't appear in the target. Each entry contributes at most one path, and
// entries without a path are skipped.
func Diff(master, target manifest.Manifest, opts Options) Result {
	missing := opts.identity(master).Subtract(opts.identity(target))
	key := opts.key()

	result := Result{}
	for _, e := range master.Entries {
		if e.Path == "" {
			continue
		}

		for _, alg := range manifest.Priority {
			digest, ok := e.Hashes[alg]
			if ok && missing.Contains(key(alg, digest)) {
				result = append(result, e.Path)
				break
			}
		}
	}

	sort.Strings(result)
	return result
}

// DiffFiles parses both manifests and diffs them. If either manifest can't
// be parsed, no result is returned.
func DiffFiles(masterPath, targetPath string, opts Options) (Result, error) {
	master, err := manifest.Parse(masterPath)
	if err != nil {
		return nil, errors.WithContext(err, "parse master manifest")
	}

	target, err := manifest.Parse(targetPath)
	if err != nil {
		return nil, errors.WithContext(err, "parse target manifest")
	}

	result := Diff(master, target, opts)
	log.WithFields(log.Fields{
		"master":  masterPath,
		"target":  targetPath,
		"missing": len(result),
	}).Info("Compared manifests")
	return result, nil
}
