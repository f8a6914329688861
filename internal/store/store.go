package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store is the durable key/value contract the queues and identity ride on:
// load at start, save on change.
type Store interface {
	// Get returns the stored value, or ok=false if the key is absent.
	Get(key string) (value []byte, ok bool, err error)
	// Set writes the value durably before returning.
	Set(key string, value []byte) error
}

// Well-known keys.
const (
	KeyMistakeQueue = "mistake_queue"
	KeyUploadLog    = "upload_log"
	KeyUserID       = "user_id"
)

// FileStore persists each key as one file inside dir.
type FileStore struct {
	dir string
}

// Open creates dir if needed and returns a FileStore over it.
func Open(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	// Keys are internal identifiers; replace separators defensively anyway.
	key = strings.ReplaceAll(key, string(os.PathSeparator), "_")
	return filepath.Join(s.dir, key+".json")
}

func (s *FileStore) Get(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, true, nil
}

func (s *FileStore) Set(key string, value []byte) error {
	// Write-then-rename so a crash mid-write never corrupts the live file.
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, value, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		return fmt.Errorf("replacing %s: %w", key, err)
	}
	return nil
}

// UserID returns the stable user identifier, generating and persisting one
// on first use. Later calls always return the stored value.
func UserID(s Store) (string, error) {
	data, ok, err := s.Get(KeyUserID)
	if err != nil {
		return "", err
	}
	if ok {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}
	id := uuid.NewString()
	if err := s.Set(KeyUserID, []byte(id)); err != nil {
		return "", fmt.Errorf("persisting user id: %w", err)
	}
	return id, nil
}
