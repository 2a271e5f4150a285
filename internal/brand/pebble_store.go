// =============================================================================
// AIMsi to CAPSS Converter - Pebble Brand Cache
// =============================================================================

package brand

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

// PebbleStore implements Store on a PebbleDB directory. Unlike JSONFileStore
// it is safe to share between conversions running in separate processes
// one after another and between goroutines of one process.
type PebbleStore struct {
	db *pebble.DB
}

func OpenPebbleStore(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

// Get treats only pebble.ErrNotFound as a miss.
func (p *PebbleStore) Get(key string) (string, bool, error) {
	if p.db == nil {
		return "", false, errors.New("pebble store closed")
	}
	v, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("pebble get: %w", err)
	}
	defer closer.Close()
	return string(v), true, nil
}

// Put writes with Sync so the entry survives a crash right after resolution.
func (p *PebbleStore) Put(key, brand string) error {
	cur, ok, err := p.Get(key)
	if err != nil {
		return err
	}
	if ok && cur == brand {
		return nil
	}
	if err := p.db.Set([]byte(key), []byte(brand), pebble.Sync); err != nil {
		return fmt.Errorf("pebble set: %w", err)
	}
	return nil
}

// Len counts entries with a full scan; it is only used for diagnostics.
func (p *PebbleStore) Len() int {
	if p.db == nil {
		return 0
	}
	iter, err := p.db.NewIter(nil)
	if err != nil {
		return 0
	}
	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		n++
	}
	_ = iter.Close()
	return n
}

func (p *PebbleStore) Close() error {
	if p.db == nil {
		return errors.New("pebble store already closed")
	}
	err := p.db.Close()
	p.db = nil
	return err
}
