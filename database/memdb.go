package database

import (
	"sync"

	"github.com/pkg/errors"
)

// MemDB is an in-memory Database for tests and the simulation harness.
type MemDB struct {
	mtx    sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemDB returns an empty in-memory database.
func NewMemDB() *MemDB {
	return &MemDB{data: make(map[string][]byte)}
}

// Put sets the value for the given key. It overwrites
// any previous value for that key.
func (db *MemDB) Put(key []byte, value []byte) error {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	if db.closed {
		return errors.New("put on a closed database")
	}
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)
	db.data[string(key)] = valueCopy
	return nil
}

// Get gets the value for the given key. It returns nil
// if the given key does not exist.
func (db *MemDB) Get(key []byte) ([]byte, error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	if db.closed {
		return nil, errors.New("get on a closed database")
	}
	value, ok := db.data[string(key)]
	if !ok {
		return nil, nil
	}
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)
	return valueCopy, nil
}

// Has returns true if the database contains the given key.
func (db *MemDB) Has(key []byte) (bool, error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	if db.closed {
		return false, errors.New("has on a closed database")
	}
	_, ok := db.data[string(key)]
	return ok, nil
}

// Delete removes the given key. Deleting a key that does
// not exist is not an error.
func (db *MemDB) Delete(key []byte) error {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	if db.closed {
		return errors.New("delete on a closed database")
	}
	delete(db.data, string(key))
	return nil
}

// Close marks the database closed. Further calls return errors.
func (db *MemDB) Close() error {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	db.closed = true
	return nil
}
