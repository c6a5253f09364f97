package manifest

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goversion "github.com/hashicorp/go-version"
	"github.com/spf13/afero"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sidkik/mhlsync/pkg/errors"
)

const (
	hashlistElement = "hashlist"
	hashElement     = "hash"
	fileElement     = "file"
)

// unsupportedVersion is the first hashlist version whose records aren't laid
// out as `hash` elements with a `file` child.
var unsupportedVersion = goversion.Must(goversion.NewVersion("2.0"))

// hashRecord captures every direct child of a `hash` element.
type hashRecord struct {
	Fields []hashField `xml:",any"`
}

type hashField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// newDecoder returns an XML decoder that transcodes documents declaring a
// non UTF-8 encoding, such as ISO-8859-1, into UTF-8.
func newDecoder(r io.Reader) *xml.Decoder {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(label)
		if err != nil {
			return nil, fmt.Errorf("unsupported encoding %q", label)
		}
		return enc.NewDecoder().Reader(input), nil
	}
	return decoder
}

// Parse reads the manifest at `path`.
func Parse(path string) (Manifest, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, errors.FileNotFound{Path: path}
		}
		return Manifest{}, errors.WithContext(err, "read")
	}
	return ParseBytes(path, data)
}

// ParseBytes parses the manifest document in `data`. `path` is used to
// report errors and to derive the manifest's creation time.
//
// Several hashlist documents concatenated into one file are accepted, and
// `hash` records are collected wherever they appear in the document.
func ParseBytes(path string, data []byte) (Manifest, error) {
	m := Manifest{Path: path}
	if createdAt, ok := ParseName(filepath.Base(path)); ok {
		m.CreatedAt = createdAt
	}

	malformed := func(format string, args ...interface{}) error {
		return errors.MalformedManifest{Path: path, Reason: fmt.Sprintf(format, args...)}
	}

	decoder := newDecoder(bytes.NewReader(data))
	var sawRoot bool
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Manifest{}, malformed("%s", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		if !sawRoot {
			sawRoot = true
			if start.Name.Local != hashlistElement {
				return Manifest{}, malformed("unexpected root element <%s>", start.Name.Local)
			}
		}

		switch start.Name.Local {
		case hashlistElement:
			version, err := checkVersion(start)
			if err != nil {
				return Manifest{}, malformed("%s", err)
			}
			if m.Version == "" {
				m.Version = version
			}
		case hashElement:
			var record hashRecord
			if err := decoder.DecodeElement(&record, &start); err != nil {
				return Manifest{}, malformed("%s", err)
			}
			m.Entries = append(m.Entries, record.toEntry())
		}
	}

	if !sawRoot {
		return Manifest{}, malformed("no root element")
	}
	return m, nil
}

func checkVersion(start xml.StartElement) (string, error) {
	for _, attr := range start.Attr {
		if attr.Name.Local != "version" {
			continue
		}

		version, err := goversion.NewVersion(attr.Value)
		if err != nil {
			return "", fmt.Errorf("invalid hashlist version %q", attr.Value)
		}
		if !version.LessThan(unsupportedVersion) {
			return "", fmt.Errorf("unsupported hashlist version %s", version)
		}
		return attr.Value, nil
	}
	return "", nil
}

func (record hashRecord) toEntry() Entry {
	e := Entry{Hashes: map[Algorithm]string{}}
	for _, field := range record.Fields {
		value := strings.TrimSpace(field.Value)
		if field.XMLName.Local == fileElement {
			if e.Path == "" {
				e.Path = value
			}
			continue
		}

		alg := Algorithm(field.XMLName.Local)
		if !alg.IsRecognized() || value == "" {
			continue
		}

		// The first digest for an algorithm wins.
		if _, ok := e.Hashes[alg]; !ok {
			e.Hashes[alg] = value
		}
	}
	return e
}
