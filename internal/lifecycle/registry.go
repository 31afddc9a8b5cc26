package lifecycle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Entry records one coordinate scheduled for deletion. The sweep deletes an
// entry's coordinate once NotBefore has passed, never earlier: entries for
// ephemeral coordinates carry a safety margin so a coordinate still in use
// by a pending operation is never swept inside its deadline.
type Entry struct {
	Coordinate string    `json:"coordinate"`
	NotBefore  time.Time `json:"not_before"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Registry tracks coordinates pending deletion: ephemeral (sentinel-owner)
// coordinates awaiting expiry, and prior versions whose immediate delete
// failed and must be retried until it succeeds.
type Registry interface {
	// Record adds or replaces the entry for a coordinate.
	Record(entry Entry) error

	// List returns all recorded entries.
	List() ([]Entry, error)

	// Remove drops the entry for a coordinate. Removing an absent
	// coordinate is not an error.
	Remove(coordinate string) error
}

// FileRegistry implements Registry on the filesystem, one JSON file per
// coordinate under baseDir. Coordinate strings contain only hyphens,
// underscores, and alphanumerics, so they are used as filenames directly.
type FileRegistry struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileRegistry creates a file-based registry rooted at baseDir.
func NewFileRegistry(baseDir string) *FileRegistry {
	return &FileRegistry{baseDir: baseDir}
}

// DefaultRegistryDir returns the default registry directory.
func DefaultRegistryDir() string {
	if testDir := os.Getenv("CONFSEAL_STATE_DIR"); testDir != "" {
		return filepath.Join(testDir, "pending")
	}

	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "confseal", "pending")
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "confseal", "pending")
	}

	return filepath.Join(os.TempDir(), "confseal", "pending")
}

// Record writes the entry to disk, replacing any previous entry for the
// same coordinate.
func (fr *FileRegistry) Record(entry Entry) error {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	if err := os.MkdirAll(fr.baseDir, 0700); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry entry: %w", err)
	}

	if err := os.WriteFile(fr.entryPath(entry.Coordinate), data, 0600); err != nil {
		return fmt.Errorf("failed to write registry entry: %w", err)
	}

	return nil
}

// List reads all entries from disk. Unreadable entries are skipped rather
// than failing the listing; the sweep will pick them up once readable.
func (fr *FileRegistry) List() ([]Entry, error) {
	fr.mu.RLock()
	defer fr.mu.RUnlock()

	files, err := os.ReadDir(fr.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read registry directory: %w", err)
	}

	var entries []Entry
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(fr.baseDir, file.Name()))
		if err != nil {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// Remove deletes the entry file for a coordinate.
func (fr *FileRegistry) Remove(coordinate string) error {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	err := os.Remove(fr.entryPath(coordinate))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove registry entry: %w", err)
	}
	return nil
}

func (fr *FileRegistry) entryPath(coordinate string) string {
	return filepath.Join(fr.baseDir, coordinate+".json")
}

// MemoryRegistry implements Registry in process memory, for tests and for
// callers embedding the engine without a state directory.
type MemoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{entries: make(map[string]Entry)}
}

// Record implements Registry.
func (mr *MemoryRegistry) Record(entry Entry) error {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.entries[entry.Coordinate] = entry
	return nil
}

// List implements Registry.
func (mr *MemoryRegistry) List() ([]Entry, error) {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	entries := make([]Entry, 0, len(mr.entries))
	for _, entry := range mr.entries {
		entries = append(entries, entry)
	}
	return entries, nil
}

// Remove implements Registry.
func (mr *MemoryRegistry) Remove(coordinate string) error {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	delete(mr.entries, coordinate)
	return nil
}
