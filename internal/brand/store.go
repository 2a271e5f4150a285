// =============================================================================
// AIMsi to CAPSS Converter - Brand Cache Stores
// =============================================================================
//
// The brand cache maps a normalized description to the brand resolved for it.
// Every new resolution is written through before Resolve returns.
//
// BACKENDS:
//   - MemoryStore:   tests and runs without a cache file
//   - JSONFileStore: the flat JSON file shared with the desktop tool
//   - PebbleStore:   a pebble directory, safe for concurrent conversions
//
// =============================================================================

package brand

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/ginjaninja78/aimsi-capps-converter/pkg/utils"
)

// Store persists resolved brands keyed by normalized description.
// Get reports a miss as ("", false, nil); a non-nil error means the cache
// could not be read. Put must be durable before it returns.
type Store interface {
	Get(key string) (string, bool, error)
	Put(key, brand string) error
	Len() int
	Close() error
}

// =============================================================================
// MEMORY STORE
// =============================================================================

// MemoryStore is a Store that never touches disk.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *MemoryStore) Put(key, brand string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = brand
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryStore) Close() error { return nil }

// =============================================================================
// JSON FILE STORE
// =============================================================================

// CorruptSuffix is appended to a cache file that could not be decoded when it
// is moved aside.
const CorruptSuffix = ".corrupt"

// JSONFileStore keeps the whole cache in memory and rewrites the JSON file on
// every Put. The file format is a flat object: {"DESCRIPTION": "BRAND"}.
type JSONFileStore struct {
	path    string
	mu      sync.Mutex
	entries map[string]string
}

// OpenJSONFileStore loads path. A missing file starts an empty cache; the
// file is created on the first Put. A file that is not a JSON object is
// moved to path+CorruptSuffix with a warning and the cache starts empty.
func OpenJSONFileStore(path string, logger *slog.Logger) (*JSONFileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &JSONFileStore{path: path, entries: make(map[string]string)}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read brand cache: %w", err)
	}

	if err := json.Unmarshal(data, &s.entries); err != nil {
		backup := path + CorruptSuffix
		if rerr := os.Rename(path, backup); rerr != nil {
			return nil, fmt.Errorf("brand cache %s is corrupt (%v) and cannot be moved aside: %w", path, err, rerr)
		}
		logger.Warn("brand.cache.corrupt",
			"path", path,
			"moved_to", backup,
			"err", err,
		)
		s.entries = make(map[string]string)
	}
	return s, nil
}

func (s *JSONFileStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	return v, ok, nil
}

func (s *JSONFileStore) Put(key, brand string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.entries[key]; ok && cur == brand {
		return nil
	}
	s.entries[key] = brand
	return s.flushLocked()
}

func (s *JSONFileStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *JSONFileStore) Close() error { return nil }

// flushLocked rewrites the whole cache file atomically.
func (s *JSONFileStore) flushLocked() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode brand cache: %w", err)
	}
	if err := utils.WriteFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("write brand cache: %w", err)
	}
	return nil
}

// =============================================================================
// BACKEND SELECTION
// =============================================================================

// Cache backends accepted by Open.
const (
	BackendJSON   = "json"
	BackendPebble = "pebble"
)

// Open opens the cache backend at path: a JSON file or a pebble directory.
func Open(backend, path string, logger *slog.Logger) (Store, error) {
	switch backend {
	case BackendJSON, "":
		return OpenJSONFileStore(path, logger)
	case BackendPebble:
		return OpenPebbleStore(path)
	}
	return nil, fmt.Errorf("unknown brand cache backend %q", backend)
}
