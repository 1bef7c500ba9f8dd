// Package policystore implements the file-based persistence backing the
// egress policy engine's allowlist, using the line-based format CrabPot's
// policy file has always used:
//
//	# comment lines are ignored
//	api.anthropic.com          -- allowed domain
//	*.github.com               -- allowed wildcard
//	!known-bad.example.com     -- additional blocked pattern
//
// Blank lines are ignored. Save writes only the allowed patterns: "!"
// blocked entries are read by LoadBlockedExtras and are not re-written on
// save.
package policystore

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/crabpot-sandbox/crabpot/internal/domain/policy"
)

// FileStore persists the allowlist to a line-based text file with atomic
// writes (temp file + fsync + rename) so a crash mid-save can never leave
// a truncated allowlist on disk.
type FileStore struct {
	path string
	mu   sync.Mutex
	log  *slog.Logger
}

// NewFileStore builds a FileStore bound to path. It implements
// policy.AllowlistStore.
func NewFileStore(path string, log *slog.Logger) *FileStore {
	if log == nil {
		log = slog.Default()
	}
	return &FileStore{path: path, log: log}
}

// Load reads the policy file and returns its allowed patterns. A missing
// file is not an error — it returns an empty allowlist, matching a
// first-run sandbox with no permanent approvals yet. Blocked ("!"-prefixed)
// entries are not returned here, since the engine seeds its blocklist at
// construction time rather than through this call; LoadBlockedExtras
// returns them.
func (s *FileStore) Load() ([]policy.Pattern, error) {
	allowed, _, err := s.loadLines()
	return allowed, err
}

// LoadBlockedExtras returns the "!"-prefixed patterns recorded in the
// policy file, for seeding the engine's extraBlocked argument at startup.
func (s *FileStore) LoadBlockedExtras() ([]string, error) {
	_, blocked, err := s.loadLines()
	return blocked, err
}

func (s *FileStore) loadLines() ([]policy.Pattern, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("open policy file: %w", err)
	}
	defer f.Close()

	var allowed []policy.Pattern
	var blockedExtras []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "!") {
			blockedExtras = append(blockedExtras, strings.TrimSpace(line[1:]))
			continue
		}
		allowed = append(allowed, policy.NewPattern(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan policy file: %w", err)
	}

	return allowed, blockedExtras, nil
}

// Save atomically rewrites the policy file with the given allowed
// patterns. The caller is responsible for passing the full current
// allowlist snapshot (the engine calls this after every AddPermanent /
// RemovePermanent).
func (s *FileStore) Save(patterns []policy.Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	b.WriteString("# CrabPot Egress Allowlist\n")
	b.WriteString("# Managed by crabpot policy commands\n\n")
	for _, p := range patterns {
		b.WriteString(p.String())
		b.WriteByte('\n')
	}

	return s.writeAtomic([]byte(b.String()))
}

// writeAtomic writes data to a temp file, fsyncs it, and renames it over
// the target path, cleaning up the temp file on any failure.
func (s *FileStore) writeAtomic(data []byte) error {
	tmpPath := s.path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create temp policy file: %w", err)
	}
	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := f.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp policy file: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("fsync temp policy file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp policy file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp policy file: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(s.path, 0o600); err != nil {
			s.log.Warn("failed to set permissions on policy file", "error", err)
		}
	}
	return nil
}

var _ policy.AllowlistStore = (*FileStore)(nil)
