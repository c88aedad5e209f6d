package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Marker records the wallet provider of the last successful connection so the next run can
// reconnect without asking.
type Marker struct {
	Provider string    `toml:"provider"`
	Address  string    `toml:"address"`
	SavedAt  time.Time `toml:"saved_at"`
}

// MarkerStore persists the Marker.
type MarkerStore interface {
	// Load returns the marker and whether one is present.
	Load() (Marker, bool, error)
	Save(m Marker) error
	// Clear removes the marker. Clearing an absent marker is not an error.
	Clear() error
}

var (
	_ MarkerStore = (*FileMarker)(nil)
	_ MarkerStore = (*MemoryMarker)(nil)
)

// FileMarker stores the marker as a TOML file.
type FileMarker struct {
	Path string
}

// NewFileMarker returns a FileMarker at path.
func NewFileMarker(path string) *FileMarker {
	return &FileMarker{Path: path}
}

// DefaultMarkerPath returns the marker path in the user config directory.
func DefaultMarkerPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config dir: %w", err)
	}

	return filepath.Join(dir, "sagasynth", "session.toml"), nil
}

func (f *FileMarker) Load() (Marker, bool, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return Marker{}, false, nil
	}
	if err != nil {
		return Marker{}, false, fmt.Errorf("failed to read session marker: %w", err)
	}

	var m Marker
	if err = toml.Unmarshal(b, &m); err != nil {
		return Marker{}, false, fmt.Errorf("failed to unmarshal session marker: %w", err)
	}

	return m, true, nil
}

func (f *FileMarker) Save(m Marker) error {
	b, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal session marker: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("failed to create session marker dir: %w", err)
	}

	if err = os.WriteFile(f.Path, b, 0o600); err != nil {
		return fmt.Errorf("failed to write session marker: %w", err)
	}

	return nil
}

func (f *FileMarker) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session marker: %w", err)
	}

	return nil
}

// MemoryMarker keeps the marker in memory.
type MemoryMarker struct {
	mu     sync.Mutex
	marker *Marker
}

func (m *MemoryMarker) Load() (Marker, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.marker == nil {
		return Marker{}, false, nil
	}

	return *m.marker, true, nil
}

func (m *MemoryMarker) Save(marker Marker) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.marker = &marker

	return nil
}

func (m *MemoryMarker) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.marker = nil

	return nil
}
