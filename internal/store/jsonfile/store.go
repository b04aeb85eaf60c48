// Package jsonfile provides a JSON file-based session store.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/hay-kot/dtfchat/internal/core/session"
)

// SessionFile is the root JSON structure stored on disk.
type SessionFile struct {
	Session *session.Record `json:"session"`
}

// Store implements session.Store using a JSON file for persistence.
type Store struct {
	path string
	mu   sync.RWMutex
}

// New creates a new JSON file store at the given path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns the persisted record. Returns ErrNotFound if none exists.
func (s *Store) Load(ctx context.Context) (session.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var file SessionFile
	err := s.withFileLock(syscall.LOCK_SH, func() error {
		var err error
		file, err = s.load()
		return err
	})
	if err != nil {
		return session.Record{}, err
	}

	if file.Session == nil {
		return session.Record{}, session.ErrNotFound
	}
	return *file.Session, nil
}

// Save replaces the persisted record.
func (s *Store) Save(ctx context.Context, r session.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withFileLock(syscall.LOCK_EX, func() error {
		return s.save(SessionFile{Session: &r})
	})
}

// Delete removes the persisted record.
func (s *Store) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withFileLock(syscall.LOCK_EX, func() error {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove session file: %w", err)
		}
		return nil
	})
}

// withFileLock acquires a file lock, executes fn, then releases the lock.
// The session file is shared between the TUI and one-shot commands.
func (s *Store) withFileLock(lockType int, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	if err := syscall.Flock(int(f.Fd()), lockType); err != nil {
		return fmt.Errorf("acquire file lock: %w", err)
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN) //nolint:errcheck

	return fn()
}

// load reads the session file from disk.
// Returns empty SessionFile if file doesn't exist.
func (s *Store) load() (SessionFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return SessionFile{}, nil
		}
		return SessionFile{}, fmt.Errorf("read session file: %w", err)
	}

	if len(data) == 0 {
		return SessionFile{}, nil
	}

	var file SessionFile
	if err := json.Unmarshal(data, &file); err != nil {
		return SessionFile{}, fmt.Errorf("parse session file: %w", err)
	}

	return file, nil
}

// save writes the session file to disk atomically.
// Uses write-to-temp-then-rename to prevent corruption from interrupted writes.
func (s *Store) save(file SessionFile) error {
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
