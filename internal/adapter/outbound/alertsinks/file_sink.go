// Package alertsinks provides the concrete alert.Sink implementations
// CrabPot wires into the alert bus: a JSONL file, a colored terminal
// printer, a WebSocket fan-out, and a sanitized OS notification.
package alertsinks

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"sync"

	"github.com/crabpot-sandbox/crabpot/internal/domain/alert"
)

// FileSink appends every alert as a JSON Lines record to a single
// append-only log file; rotation is left to the operator's log
// management.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
	log  *slog.Logger
}

// NewFileSink opens (creating if necessary) path for append and returns a
// ready-to-use FileSink.
func NewFileSink(path string, log *slog.Logger) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &FileSink{file: f, log: log}, nil
}

// Accept writes one alert as a JSON line. A write failure is logged, never
// panicked or propagated — a full disk must not take down the alert bus.
func (s *FileSink) Accept(a alert.Alert) {
	line, err := json.Marshal(a)
	if err != nil {
		s.log.Error("failed to marshal alert for file sink", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(append(line, '\n')); err != nil {
		s.log.Error("failed to append alert to log file", "error", err)
	}
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// LoadHistory reads every well-formed JSON line from path, skipping any
// line that fails to parse rather than aborting the whole load — a single
// truncated or corrupted line must not make the rest of the log
// unrecoverable.
func LoadHistory(path string) ([]alert.Alert, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var history []alert.Alert
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var a alert.Alert
		if err := json.Unmarshal(scanner.Bytes(), &a); err != nil {
			continue
		}
		history = append(history, a)
	}
	return history, scanner.Err()
}
