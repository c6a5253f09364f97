// Package manifest models checksum manifests (MHL files), parses them, and
// compiles the per-item fragments written by the sealing tool into one
// timestamped master manifest per tree.
package manifest

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// An Algorithm names the hash function that produced a digest. The values
// match the element names used in manifest documents.
type Algorithm string

const (
	// XXHash64 is the fast little-endian content hash.
	XXHash64 Algorithm = "xxhash64"
	// XXHash64BE is the big-endian variant of XXHash64.
	XXHash64BE Algorithm = "xxhash64be"
	MD5        Algorithm = "md5"
	SHA1       Algorithm = "sha1"

	// XXHash3 and SHA256 are only read, never requested from the sealing tool.
	XXHash3 Algorithm = "xxhash3"
	SHA256  Algorithm = "sha256"
)

// Priority is the order in which an entry's digests are checked when
// deciding whether it is missing.
var Priority = []Algorithm{XXHash64, XXHash64BE, MD5, SHA1, XXHash3, SHA256}

// Sealable are the algorithms the sealing tool can be asked to compute.
var Sealable = []Algorithm{XXHash64, XXHash64BE, MD5, SHA1}

// IsRecognized returns whether digests tagged with `alg` are read from
// manifests.
func (alg Algorithm) IsRecognized() bool {
	for _, known := range Priority {
		if alg == known {
			return true
		}
	}
	return false
}

// IsSealable returns whether the sealing tool can compute `alg`.
func (alg Algorithm) IsSealable() bool {
	for _, known := range Sealable {
		if alg == known {
			return true
		}
	}
	return false
}

// ParseAlgorithm validates the name of an algorithm that can be requested
// from the sealing tool.
func ParseAlgorithm(name string) (Algorithm, error) {
	alg := Algorithm(name)
	if !alg.IsSealable() {
		return "", fmt.Errorf("unsupported hash algorithm %q (expected one of %v)",
			name, Sealable)
	}
	return alg, nil
}

// An Entry is the record for a single checksummed file.
type Entry struct {
	// Path is where the file lives. Fragments written by the sealing tool
	// contain paths relative to the fragment. Compiled manifests contain
	// absolute paths.
	Path string

	// Hashes maps each algorithm to the hex digest it produced. There is at
	// most one digest per algorithm.
	Hashes map[Algorithm]string
}

// Usable returns whether the entry can take part in a diff.
func (e Entry) Usable() bool {
	return e.Path != "" && len(e.Hashes) > 0
}

// Manifest is the parsed contents of a manifest file.
type Manifest struct {
	// Path is the file the manifest was parsed from.
	Path string

	// Version is the `version` attribute of the hashlist, if any.
	Version string

	// CreatedAt is parsed from the manifest's filename. It's zero if the
	// file isn't named like a compiled master manifest.
	CreatedAt time.Time

	Entries []Entry
}

// HashIdentity is the set of digests recorded in a manifest.
type HashIdentity map[string]struct{}

// Contains returns whether `digest` is in the set.
func (id HashIdentity) Contains(digest string) bool {
	_, ok := id[digest]
	return ok
}

// Subtract returns the digests in `id` that aren't in `other`.
func (id HashIdentity) Subtract(other HashIdentity) HashIdentity {
	diff := HashIdentity{}
	for digest := range id {
		if !other.Contains(digest) {
			diff[digest] = struct{}{}
		}
	}
	return diff
}

// Identity returns every digest in the manifest, regardless of algorithm.
func (m Manifest) Identity() HashIdentity {
	return m.identity(DigestKey)
}

// StrictIdentity returns every digest in the manifest keyed by its algorithm
// so that digests only match within the same algorithm.
func (m Manifest) StrictIdentity() HashIdentity {
	return m.identity(StrictDigestKey)
}

func (m Manifest) identity(key func(Algorithm, string) string) HashIdentity {
	id := HashIdentity{}
	for _, e := range m.Entries {
		for alg, digest := range e.Hashes {
			id[key(alg, digest)] = struct{}{}
		}
	}
	return id
}

// DigestKey is the identity key of a digest when algorithms are ignored.
func DigestKey(_ Algorithm, digest string) string {
	return digest
}

// StrictDigestKey is the identity key of a digest scoped to its algorithm.
func StrictDigestKey(alg Algorithm, digest string) string {
	return string(alg) + ":" + digest
}
