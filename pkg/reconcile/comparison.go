package reconcile

import (
	"bufio"
	"bytes"
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/sidkik/mhlsync/pkg/errors"
)

// DefaultComparisonName is the name of the comparison file written into the
// target tree when no other path is given.
const DefaultComparisonName = "comparison_results.txt"

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// WriteComparison writes one path per line, each terminated by a newline.
// A partially written file is left in place if the write fails.
func WriteComparison(path string, result Result) error {
	var buf bytes.Buffer
	for _, p := range result {
		buf.WriteString(p)
		buf.WriteByte('\n')
	}

	if err := afero.WriteFile(fs, path, buf.Bytes(), 0644); err != nil {
		return errors.WriteError{Path: path, Err: err}
	}
	return nil
}

// ReadComparison reads a comparison file. Surrounding whitespace is trimmed
// and blank lines are skipped.
func ReadComparison(path string) (Result, error) {
	f, err := fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileNotFound{Path: path}
		}
		return nil, errors.WithContext(err, "open")
	}
	defer f.Close()

	result := Result{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			result = append(result, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WithContext(err, "read")
	}
	return result, nil
}
