// Package session carries the state of one create → diff → sync run.
//
// A Session is passed by value from step to step. Each step returns an
// updated copy with the outputs it produced filled in, so that later steps
// (or a later invocation given the same paths) don't depend on anything
// remembered by the process.
package session

import (
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/mhlsync/pkg/errors"
	"github.com/sidkik/mhlsync/pkg/manifest"
	"github.com/sidkik/mhlsync/pkg/reconcile"
	"github.com/sidkik/mhlsync/pkg/sync"
)

// Session describes a master/target pair and the artifacts produced for it.
type Session struct {
	MasterRoot string
	TargetRoot string
	Algorithm  manifest.Algorithm

	// MasterManifest and TargetManifest are the compiled manifests of each
	// tree. They're filled in by Create or Locate.
	MasterManifest string
	TargetManifest string

	// ComparisonPath is where the diff is written. It defaults to
	// DefaultComparisonName within the target root.
	ComparisonPath string

	Diff   reconcile.Options
	Mirror sync.Options
}

// A Compiler turns a tree into a compiled manifest.
type Compiler interface {
	Compile(treeRoot string, alg manifest.Algorithm) (manifest.Manifest, error)
}

// Create compiles a fresh manifest for the master tree and then the target
// tree.
func Create(s Session, compiler Compiler) (Session, error) {
	master, err := compiler.Compile(s.MasterRoot, s.Algorithm)
	if err != nil {
		return s, errors.WithContext(err, "create master manifest")
	}
	s.MasterManifest = master.Path

	target, err := compiler.Compile(s.TargetRoot, s.Algorithm)
	if err != nil {
		return s, errors.WithContext(err, "create target manifest")
	}
	s.TargetManifest = target.Path
	return s, nil
}

// Locate fills in any missing manifest paths with the most recent master
// manifest of each tree.
func Locate(s Session) (Session, error) {
	if s.MasterManifest == "" {
		path, err := manifest.Latest(s.MasterRoot)
		if err != nil {
			return s, errors.WithContext(err, "find master manifest")
		}
		s.MasterManifest = path
	}

	if s.TargetManifest == "" {
		path, err := manifest.Latest(s.TargetRoot)
		if err != nil {
			return s, errors.WithContext(err, "find target manifest")
		}
		s.TargetManifest = path
	}
	return s, nil
}

// Compare diffs the session's manifests and writes the comparison file.
func Compare(s Session) (Session, reconcile.Result, error) {
	if s.MasterManifest == "" || s.TargetManifest == "" {
		return s, nil, errors.New("both manifests are required")
	}

	result, err := reconcile.DiffFiles(s.MasterManifest, s.TargetManifest, s.Diff)
	if err != nil {
		return s, nil, err
	}

	s.ComparisonPath = s.comparisonPath()
	if err := reconcile.WriteComparison(s.ComparisonPath, result); err != nil {
		return s, nil, errors.WithContext(err, "write comparison")
	}

	log.WithFields(log.Fields{
		"path":    s.ComparisonPath,
		"missing": len(result),
	}).Info("Wrote comparison results")
	return s, result, nil
}

// Sync copies the files listed in the session's comparison file into the
// target tree.
func Sync(s Session) (int, error) {
	if s.MasterRoot == "" || s.TargetRoot == "" {
		return 0, errors.New("both the master and target roots are required")
	}
	return sync.MirrorComparison(s.comparisonPath(), s.MasterRoot, s.TargetRoot, s.Mirror)
}

func (s Session) comparisonPath() string {
	if s.ComparisonPath != "" {
		return s.ComparisonPath
	}
	return filepath.Join(s.TargetRoot, reconcile.DefaultComparisonName)
}
