package logging

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/natefinch/lumberjack.v2"
)

// defaultMaxSizeMB applies when the configured size is not positive.
const defaultMaxSizeMB = 50

// NewFileWriter returns a writer for path that rotates once maxSizeMB is
// exceeded. Rotated files get a timestamp suffix next to path; maxBackups
// of them are kept, or all of them when maxBackups is 0.
func NewFileWriter(path string, maxSizeMB, maxBackups int) (io.WriteCloser, error) {
	if path == "" {
		return nil, errors.New("log file path is empty")
	}
	if maxSizeMB <= 0 {
		maxSizeMB = defaultMaxSizeMB
	}

	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: max(maxBackups, 0),
		LocalTime:  true,
	}
	// Open now so a bad path fails at startup, not on the first log line.
	if _, err := w.Write(nil); err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return w, nil
}
