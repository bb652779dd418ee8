// Package pebblestore implements ports.SessionStorage on a pebble database
// living in a session directory.
package pebblestore

import (
	"errors"
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"

	"github.com/user/vidloop/pkg/ports"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("pebblestore: closed")

// Store is a session-scoped key/value store.
type Store struct {
	dir    string
	db     *pebble.DB
	owned  bool
	logger ports.Logger
}

// Open opens (or creates) the store in dir. An empty dir creates a temporary
// directory that Destroy removes.
func Open(dir string, logger ports.Logger) (*Store, error) {
	owned := false
	if dir == "" {
		tmp, err := os.MkdirTemp("", "vidloop-session-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create session dir: %w", err)
		}
		dir, owned = tmp, true
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		if owned {
			os.RemoveAll(dir)
		}
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	s := &Store{dir: dir, db: db, owned: owned, logger: logger.WithComponent("pebblestore")}
	s.logger.Debug("Opened session store at %s", dir)
	return s, nil
}

// Dir returns the database directory.
func (s *Store) Dir() string {
	return s.dir
}

// Get implements ports.SessionStorage.
func (s *Store) Get(key string) (string, bool, error) {
	if s.db == nil {
		return "", false, ErrClosed
	}
	data, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	defer closer.Close()
	// data is only valid until closer.Close.
	return string(data), true, nil
}

// Set implements ports.SessionStorage.
func (s *Store) Set(key, value string) error {
	if s.db == nil {
		return ErrClosed
	}
	return s.db.Set([]byte(key), []byte(value), pebble.Sync)
}

// Delete implements ports.SessionStorage.
func (s *Store) Delete(key string) error {
	if s.db == nil {
		return ErrClosed
	}
	return s.db.Delete([]byte(key), pebble.Sync)
}

// Keys lists every stored key in order.
func (s *Store) Keys() ([]string, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var keys []string
	for iter.First(); iter.Valid(); iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	return keys, iter.Error()
}

// Close closes the database and keeps its files.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Destroy closes the database and removes a directory created by Open.
// Directories passed in by the caller are kept.
func (s *Store) Destroy() error {
	err := s.Close()
	if s.owned {
		if rmErr := os.RemoveAll(s.dir); rmErr != nil && err == nil {
			err = rmErr
		}
	}
	return err
}

var _ ports.SessionStorage = (*Store)(nil)
