package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"qtermbloch/internal/circuit"
)

// ErrNotFound is returned for unknown or expired circuit ids.
var ErrNotFound = errors.New("circuit not found")

// Store keeps uploaded snapshots addressable by id until they expire.
// Snapshots are immutable, so readers share them without copying.
type Store struct {
	items *cache.Cache
}

// NewStore creates a store whose entries live for ttl.
func NewStore(ttl time.Duration) *Store {
	return &Store{items: cache.New(ttl, 2*ttl)}
}

// Put stores snap under a fresh id.
func (s *Store) Put(snap *circuit.Snapshot) string {
	id := uuid.New().String()
	s.items.SetDefault(id, snap)
	return id
}

// Get returns the snapshot stored under id.
func (s *Store) Get(id string) (*circuit.Snapshot, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	v, ok := s.items.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return v.(*circuit.Snapshot), nil
}

// Delete drops id. Deleting an unknown id is an error.
func (s *Store) Delete(id string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	s.items.Delete(id)
	return nil
}

// Len reports the number of live entries.
func (s *Store) Len() int {
	return s.items.ItemCount()
}
