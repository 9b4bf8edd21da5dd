package logger

import (
	"errors"
	"io"
	"sync"
)

// sink fans every log line out to the console and the log files. Lines are
// written whole under one lock so concurrent handlers never interleave.
type sink struct {
	mu      sync.Mutex
	console io.Writer
	files   []io.WriteCloser
}

func (s *sink) writeLine(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if s.console != nil {
		if _, err := s.console.Write(line); err != nil {
			errs = append(errs, err)
		}
	}
	for _, f := range s.files {
		if _, err := f.Write(line); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// close releases the log files. Later lines still reach the console.
func (s *sink) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, f := range s.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.files = nil
	return errors.Join(errs...)
}
