package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"portalguard"
)

const fileMode = 0o600

// File keeps the session as a single JSON document on disk.
type File struct {
	mu   sync.Mutex
	path string
}

var _ portalguard.SessionStore = (*File)(nil)

// NewFile creates a store backed by path. The parent directory is created on
// first save.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

// Save merges entry into the document and replaces the file atomically.
func (f *File) Save(ctx context.Context, entry portalguard.SessionEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	cur, err := f.read()
	if err != nil {
		return err
	}
	data, err := json.Marshal(merge(cur, entry))
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return f.write(data)
}

// Load reads the document; a missing file is an empty session.
func (f *File) Load(ctx context.Context) (portalguard.SessionEntry, error) {
	if err := ctx.Err(); err != nil {
		return portalguard.SessionEntry{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read()
}

// Clear removes the file.
func (f *File) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

func (f *File) read() (portalguard.SessionEntry, error) {
	var entry portalguard.SessionEntry
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return entry, nil
	}
	if err != nil {
		return entry, fmt.Errorf("failed to read session file: %w", err)
	}
	if len(data) == 0 {
		return entry, nil
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		return entry, fmt.Errorf("failed to decode session file: %w", err)
	}
	return entry, nil
}

func (f *File) write(data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	name := tmp.Name()
	defer os.Remove(name)

	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(name, f.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}
