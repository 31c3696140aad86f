// Package session tracks the single in-flight recording via an on-disk
// marker. Presence of the marker means a capture is running; absence means
// idle. At most one session exists system-wide.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrActive is returned by Acquire when a session marker already exists.
var ErrActive = errors.New("recording session already active")

// Session describes the in-flight capture referenced by the marker.
type Session struct {
	PID       int       `json:"pid"`
	AudioPath string    `json:"audio_path"`
	StartedAt time.Time `json:"started_at"`
}

// Store manages the session marker file.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Acquire creates the marker atomically. O_EXCL makes the check-and-set a
// single syscall, so two rapid triggers cannot both start a capture.
func (s *Store) Acquire(sess Session) error {
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return ErrActive
		}
		return fmt.Errorf("create session marker: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(sess); err != nil {
		os.Remove(s.path)
		return fmt.Errorf("write session marker: %w", err)
	}
	return nil
}

// Current returns the active session, or nil when idle. A corrupt marker is
// reported as an error so the caller can decide whether to clear it.
func (s *Store) Current() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session marker: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session marker: %w", err)
	}
	return &sess, nil
}

// Release removes the marker. Releasing an absent marker is not an error.
func (s *Store) Release() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session marker: %w", err)
	}
	return nil
}
