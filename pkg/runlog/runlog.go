// Package runlog records what each mhlsync invocation did to a JSON lines
// file, so that a reconciliation can be audited after the fact.
package runlog

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sidkik/mhlsync/pkg/errors"
	"github.com/sidkik/mhlsync/pkg/version"
)

// Mocked out for unit testing.
var openFile = func(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}

// formatter writes one JSON object per line.
var formatter = &logrus.JSONFormatter{
	FieldMap: logrus.FieldMap{
		logrus.FieldKeyTime:  "timestamp",
		logrus.FieldKeyLevel: "status",
		logrus.FieldKeyMsg:   "message",
	},
}

// Hook appends log entries to a run log.
type Hook struct {
	levels []logrus.Level
	source string

	lock sync.Mutex
	out  io.WriteCloser
}

// Open creates a hook that appends Info and more severe entries to the file
// at `path`. Each entry is tagged with `source`, the name of the command that
// produced it.
func Open(path, source string) (*Hook, error) {
	out, err := openFile(path)
	if err != nil {
		return nil, errors.WriteError{Path: path, Err: err}
	}

	levels := []logrus.Level{logrus.InfoLevel, logrus.WarnLevel,
		logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel}
	return &Hook{levels: levels, source: source, out: out}, nil
}

// Levels implements logrus.Hook.
func (h *Hook) Levels() []logrus.Level {
	return h.levels
}

// Fire implements logrus.Hook.
func (h *Hook) Fire(entry *logrus.Entry) error {
	dataCopy := logrus.Fields{
		"source":  h.source,
		"version": version.Version,
	}
	for k, v := range entry.Data {
		dataCopy[k] = v
	}

	// Copy the entry so that we don't change it when we add the run log
	// fields to Data.
	entryCopy := *entry
	entryCopy.Data = dataCopy

	jsonBytes, err := formatter.Format(&entryCopy)
	if err != nil {
		return errors.WithContext(err, "format")
	}

	h.lock.Lock()
	defer h.lock.Unlock()
	if _, err := h.out.Write(jsonBytes); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

// Close closes the run log. The hook must not be fired afterwards.
func (h *Hook) Close() error {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.out.Close()
}
