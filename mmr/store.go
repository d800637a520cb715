package mmr

import (
	"github.com/pkg/errors"

	"github.com/emberchain/emberd/util/chainhash"
)

// NodeStore is the backing storage for a merkle mountain range's node
// hashes. It deliberately supports only appending and truncating back to a
// previous length; nothing ever mutates a stored node in place. Rewinding a
// tree is therefore exactly the inverse of appending to it.
//
// Node is only ever called with indexes the tree computed itself, so an
// out-of-range index is a logic error and implementations are expected to
// panic rather than mask the corruption.
type NodeStore interface {
	// Append adds a node hash at the end of the store.
	Append(hash chainhash.Hash) error

	// Node returns the node hash at the given index.
	Node(index uint64) chainhash.Hash

	// Len returns the number of stored nodes.
	Len() uint64

	// TruncateToLength discards every node at index >= length.
	TruncateToLength(length uint64) error
}

// MemoryNodeStore is the in-memory NodeStore used for the working copy of
// every commitment tree. Durability is layered on top by serializing the
// node sequence, not by this store.
type MemoryNodeStore struct {
	nodes []chainhash.Hash
}

// NewMemoryNodeStore returns an empty in-memory node store.
func NewMemoryNodeStore() *MemoryNodeStore {
	return &MemoryNodeStore{}
}

// Append adds a node hash at the end of the store.
func (s *MemoryNodeStore) Append(hash chainhash.Hash) error {
	s.nodes = append(s.nodes, hash)
	return nil
}

// Node returns the node hash at the given index. It panics on an
// out-of-range index, since indexes are always internally computed.
func (s *MemoryNodeStore) Node(index uint64) chainhash.Hash {
	return s.nodes[index]
}

// Len returns the number of stored nodes.
func (s *MemoryNodeStore) Len() uint64 {
	return uint64(len(s.nodes))
}

// TruncateToLength discards every node at index >= length.
func (s *MemoryNodeStore) TruncateToLength(length uint64) error {
	if length > uint64(len(s.nodes)) {
		return errors.Errorf("cannot truncate %d nodes to length %d",
			len(s.nodes), length)
	}
	s.nodes = s.nodes[:length]
	return nil
}
