// Package resume persists the userID to chatGroupID mapping the voice runner
// uses to resume a prior conversation on reconnect.
package resume

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const namespace = "voice_chat_group"

// Store is a small durable map backed by one JSON file. The voice runner is
// its only reader and writer, so a process-local mutex is all the
// coordination it needs.
type Store struct {
	path string

	mu      sync.Mutex
	entries map[string]string
}

// Open loads the store at path, creating parent directories as needed. A
// missing file is an empty store; a corrupt file is an error rather than a
// silent reset.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}

	s := &Store{path: path, entries: make(map[string]string)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading resume store: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.entries); err != nil {
			return nil, fmt.Errorf("decoding resume store: %w", err)
		}
	}
	return s, nil
}

// Get returns the stored chat group id for the user, if any.
func (s *Store) Get(userID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key(userID)]
	return v, ok
}

// Put stores the chat group id for the user and flushes to disk.
func (s *Store) Put(userID, chatGroupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key(userID)] = chatGroupID
	return s.flush()
}

// flush writes the whole map atomically via a rename. Caller holds the lock.
func (s *Store) flush() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding resume store: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing resume store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing resume store: %w", err)
	}
	return nil
}

func key(userID string) string {
	return namespace + "_" + userID
}
