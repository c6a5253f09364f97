package manifest

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/mhlsync/pkg/errors"
)

// compiledVersion is the hashlist version written into compiled manifests.
const compiledVersion = "1.1"

// A Sealer computes checksums for every file in a directory and writes them
// as manifest fragments into that directory.
type Sealer interface {
	Seal(dir string, alg Algorithm) error
}

// Compiler seals a tree and compacts the resulting fragments into a single
// master manifest.
type Compiler struct {
	Sealer Sealer
	Clock  clockwork.Clock
}

// NewCompiler returns a Compiler that timestamps manifests with the wall
// clock.
func NewCompiler(sealer Sealer) Compiler {
	return Compiler{Sealer: sealer, Clock: clockwork.NewRealClock()}
}

// Compile seals `treeRoot` with `alg`, and merges the fragments into a new
// master manifest in `treeRoot`. The fragments are deleted once the master
// manifest is in place.
//
// Compile must not run concurrently on the same tree.
func (c Compiler) Compile(treeRoot string, alg Algorithm) (Manifest, error) {
	if !alg.IsSealable() {
		return Manifest{}, fmt.Errorf("algorithm %q can't be used for sealing", alg)
	}

	root, err := filepath.Abs(treeRoot)
	if err != nil {
		return Manifest{}, errors.WithContext(err, "absolute path")
	}

	isDir, err := afero.DirExists(fs, root)
	if err != nil {
		return Manifest{}, errors.WithContext(err, "stat")
	}
	if !isDir {
		return Manifest{}, errors.FileNotFound{Path: root}
	}

	log.WithFields(log.Fields{
		"root":      root,
		"algorithm": alg,
	}).Info("Sealing directory..")
	if err := c.Sealer.Seal(root, alg); err != nil {
		return Manifest{}, errors.WithContext(err, "seal")
	}

	fragments, err := FragmentPaths(root)
	if err != nil {
		return Manifest{}, errors.WithContext(err, "find fragments")
	}

	out := newCompilation()
	for _, fragment := range fragments {
		data, err := afero.ReadFile(fs, fragment)
		if err != nil {
			return Manifest{}, errors.WithContext(err, fmt.Sprintf("read fragment %q", fragment))
		}

		if err := out.addFragment(fragment, data); err != nil {
			return Manifest{}, err
		}
	}
	contents, err := out.finish()
	if err != nil {
		return Manifest{}, errors.WithContext(err, "encode")
	}

	clock := c.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	dest := filepath.Join(root, Name(clock.Now()))
	if exists, _ := afero.Exists(fs, dest); exists {
		log.WithField("path", dest).Warn(
			"A master manifest was already compiled this second. It will be replaced.")
	}

	if err := writeAtomic(dest, contents); err != nil {
		return Manifest{}, errors.WriteError{Path: dest, Err: err}
	}

	for _, fragment := range fragments {
		if err := fs.Remove(fragment); err != nil {
			return Manifest{}, errors.WithContext(err, fmt.Sprintf("remove fragment %q", fragment))
		}
	}

	log.WithFields(log.Fields{
		"path":      dest,
		"fragments": len(fragments),
	}).Info("Compiled master manifest")
	return ParseBytes(dest, contents)
}

// FragmentPaths returns every fragment within `root`, in lexical walk order.
func FragmentPaths(root string) (fragments []string, err error) {
	err = afero.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !fi.IsDir() && IsFragment(fi.Name()) {
			fragments = append(fragments, path)
		}
		return nil
	})
	return fragments, err
}

// compilation accumulates the `hash` records of many fragments into one
// hashlist document.
type compilation struct {
	buf bytes.Buffer
	enc *xml.Encoder
}

func newCompilation() *compilation {
	c := &compilation{}
	c.buf.WriteString(xml.Header)
	fmt.Fprintf(&c.buf, "<%s version=%q>\n", hashlistElement, compiledVersion)
	c.enc = xml.NewEncoder(&c.buf)
	return c
}

// addFragment copies every `hash` record in the fragment at `path`, with all
// of its fields, rewriting the `file` field to an absolute path. Paths in a
// fragment are relative to the directory holding the fragment.
func (c *compilation) addFragment(path string, data []byte) error {
	dir := filepath.Dir(path)
	decoder := newDecoder(bytes.NewReader(data))

	// depth is the nesting level within the current hash record. It's zero
	// outside of records.
	var depth int
	var inFile bool
	var filePath strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.MalformedManifest{Path: path, Reason: err.Error()}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 && t.Name.Local != hashElement {
				continue
			}
			depth++

			if depth == 2 && t.Name.Local == fileElement {
				inFile = true
				filePath.Reset()
			}
			if err := c.enc.EncodeToken(stripNamespace(t)); err != nil {
				return err
			}

		case xml.EndElement:
			if depth == 0 {
				continue
			}

			if inFile && depth == 2 {
				rewritten := absolutePath(dir, strings.TrimSpace(filePath.String()))
				if err := c.enc.EncodeToken(xml.CharData(rewritten)); err != nil {
					return err
				}
				inFile = false
			}

			depth--
			t.Name.Space = ""
			if err := c.enc.EncodeToken(t); err != nil {
				return err
			}

			if depth == 0 {
				if err := c.enc.Flush(); err != nil {
					return err
				}
				c.buf.WriteString("\n")
			}

		case xml.CharData:
			if depth == 0 {
				continue
			}
			if inFile {
				filePath.Write(t)
				continue
			}
			if err := c.enc.EncodeToken(t); err != nil {
				return err
			}
		}
	}

	if depth != 0 {
		return errors.MalformedManifest{Path: path, Reason: "unterminated hash record"}
	}
	return nil
}

func (c *compilation) finish() ([]byte, error) {
	if err := c.enc.Flush(); err != nil {
		return nil, err
	}
	fmt.Fprintf(&c.buf, "</%s>\n", hashlistElement)
	return c.buf.Bytes(), nil
}

func stripNamespace(start xml.StartElement) xml.StartElement {
	start.Name.Space = ""
	var attrs []xml.Attr
	for _, attr := range start.Attr {
		if attr.Name.Space == "xmlns" || attr.Name.Local == "xmlns" {
			continue
		}
		attr.Name.Space = ""
		attrs = append(attrs, attr)
	}
	start.Attr = attrs
	return start
}

func absolutePath(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// writeAtomic writes `contents` to a temporary file next to `dest`, and then
// renames it into place.
func writeAtomic(dest string, contents []byte) error {
	tmp, err := afero.TempFile(fs, filepath.Dir(dest), ".compile-")
	if err != nil {
		return errors.WithContext(err, "create temp file")
	}

	cleanup := func() {
		if err := fs.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			log.WithError(err).WithField("path", tmp.Name()).Warn(
				"Failed to remove temporary manifest")
		}
	}

	if _, err := tmp.Write(contents); err != nil {
		tmp.Close()
		cleanup()
		return errors.WithContext(err, "write")
	}

	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.WithContext(err, "close")
	}

	if err := fs.Chmod(tmp.Name(), 0644); err != nil {
		cleanup()
		return errors.WithContext(err, "set file mode")
	}

	if err := fs.Rename(tmp.Name(), dest); err != nil {
		cleanup()
		return errors.WithContext(err, "rename")
	}
	return nil
}
