package database

// Database defines the key/value store the chain persists its state to.
// Implementations must make each Put durable once it returns, since the
// chain relies on the last written snapshot to recover from a failed
// state transition.
type Database interface {
	// Put sets the value for the given key. It overwrites
	// any previous value for that key.
	Put(key []byte, value []byte) error

	// Get gets the value for the given key. It returns nil
	// if the given key does not exist.
	Get(key []byte) ([]byte, error)

	// Has returns true if the database contains the given key.
	Has(key []byte) (bool, error)

	// Delete removes the given key. Deleting a key that does
	// not exist is not an error.
	Delete(key []byte) error

	// Close releases the underlying resources.
	Close() error
}
