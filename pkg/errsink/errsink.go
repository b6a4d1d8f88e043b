// Package errsink collects the human-readable diagnostic lines produced
// while monitoring: failed attaches, rejected columns, vanished tasks.
// The live UI shows them in a scrollable panel; batch mode streams them
// to stderr or to a file chosen with -E.
package errsink

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// maxRetained bounds the scrollback. Older lines are dropped but still
// counted, so the "N errors" badge keeps the true total.
const maxRetained = 1000

// Sink is an append-only stream of diagnostic lines.
type Sink struct {
	mu    sync.Mutex
	lines []string
	total int
	out   io.Writer
	log   *logrus.Entry
}

// New returns a memory-only sink. Lines are retained (and counted)
// from the first append; SetOutput later adds a stream once the
// running mode is known. Lines appended before that are not replayed.
func New(log *logrus.Entry) *Sink {
	return &Sink{log: log}
}

// SetOutput attaches a stream: the named file when path is given,
// stderr in batch mode, nothing in interactive mode (the error panel
// reads the retained lines instead).
func (s *Sink) SetOutput(batch bool, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("open error file %q: %w", path, err)
		}
		s.out = f
		return nil
	}
	if batch {
		s.out = os.Stderr
	}
	return nil
}

// Errorf appends one formatted line to the sink.
func (s *Sink) Errorf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	s.lines = append(s.lines, line)
	if len(s.lines) > maxRetained {
		s.lines = s.lines[len(s.lines)-maxRetained:]
	}
	if s.out != nil {
		fmt.Fprintln(s.out, line)
	}
	if s.log != nil {
		s.log.Debug(line)
	}
}

// Count returns the number of lines appended since startup.
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Lines returns a copy of the retained scrollback, oldest first.
func (s *Sink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

// Close releases the backing file, if any.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.out.(io.Closer); ok && s.out != os.Stderr {
		return c.Close()
	}
	return nil
}
