package mmr

import (
	"github.com/pkg/errors"

	"github.com/emberchain/emberd/util/chainhash"
)

// MerkleMountainRange is an append-only authenticated data structure over an
// ordered sequence of leaf hashes. Leaves are only ever appended and parents
// are interleaved carry-style, so truncating the node array back to a
// recorded length is an exact rewind.
//
// The root is derived by folding the current peaks directly rather than the
// classic length-prefixed bagging; see MerkleRoot.
type MerkleMountainRange struct {
	store NodeStore

	// leafCount caches the number of height-0 nodes in the store.
	leafCount uint64

	// pruned marks leaves whose data has been discarded. Marked nodes stay
	// in the store since their hashes are still needed by sibling proofs.
	pruned map[uint64]struct{}
}

// New returns a merkle mountain range over the given store. Any nodes
// already present, for example after reloading a persisted state, are
// adopted as-is.
func New(store NodeStore) *MerkleMountainRange {
	t := &MerkleMountainRange{
		store:  store,
		pruned: make(map[uint64]struct{}),
	}
	t.leafCount = countLeaves(store.Len())
	return t
}

func countLeaves(nodeCount uint64) uint64 {
	var leaves uint64
	for i := uint64(0); i < nodeCount; i++ {
		if nodeHeight(i) == 0 {
			leaves++
		}
	}
	return leaves
}

// Len returns the total number of nodes, internal nodes included.
func (t *MerkleMountainRange) Len() uint64 {
	return t.store.Len()
}

// LeafCount returns the number of leaves pushed so far.
func (t *MerkleMountainRange) LeafCount() uint64 {
	return t.leafCount
}

// Push appends a leaf hash and interleaves the parents its arrival
// completes, mirroring a binary counter increment. It returns the node
// index of the pushed leaf.
//
// Push fails only if the backing store fails; such a failure is fatal for
// the current mutation and the caller is expected to truncate back to its
// last recorded length.
func (t *MerkleMountainRange) Push(leaf chainhash.Hash) (uint64, error) {
	position := t.store.Len()
	if err := t.store.Append(leaf); err != nil {
		return 0, errors.Wrap(err, "failed to append leaf node")
	}
	t.leafCount++

	// While the just-appended node is a right child, its parent is now
	// complete: combine with the left sibling and append, carrying upward.
	for index := position; isNodeRight(index); {
		sibling := siblingIndex(index)
		left := t.store.Node(sibling)
		right := t.store.Node(index)
		parent := chainhash.HashMerkleBranch(&left, &right)
		parentIndex := t.store.Len()
		if err := t.store.Append(parent); err != nil {
			return 0, errors.Wrap(err, "failed to append parent node")
		}
		index = parentIndex
	}
	return position, nil
}

// NodeHash returns the hash of the node at the given index. Indexes are
// always internally computed, never attacker supplied, so an out-of-range
// index panics: a recoverable error here would mask real corruption.
func (t *MerkleMountainRange) NodeHash(index uint64) chainhash.Hash {
	return t.store.Node(index)
}

// LeafHash returns the hash of the n-th pushed leaf.
func (t *MerkleMountainRange) LeafHash(leafIndex uint64) chainhash.Hash {
	return t.store.Node(leafToNodeIndex(leafIndex))
}

// MerkleRoot returns the single digest committing to the current leaf
// sequence. An empty tree yields the digest of the empty byte string.
//
// Peaks are folded directly: the bagging peaks right of the main peak are
// combined pairwise from the right, and the main peak is hashed with the
// fold result last. This saves hash operations over classic MMR bagging and
// the exact order is consensus critical.
func (t *MerkleMountainRange) MerkleRoot() chainhash.Hash {
	if t.store.Len() == 0 {
		return chainhash.HashH(nil)
	}
	lastIndex := t.store.Len() - 1
	mainHeight, mainIndex := peakHeightAndIndex(lastIndex)
	mainPeak := t.store.Node(mainIndex)

	peakIndexes := baggingPeakIndexes(mainHeight, mainIndex, lastIndex)
	if len(peakIndexes) == 0 {
		return mainPeak
	}
	peaks := make([]chainhash.Hash, len(peakIndexes))
	for i, index := range peakIndexes {
		peaks[i] = t.store.Node(index)
	}
	for i := len(peaks) - 1; i > 0; i-- {
		peaks[i-1] = chainhash.HashMerkleBranch(&peaks[i-1], &peaks[i])
	}
	return chainhash.HashMerkleBranch(&mainPeak, &peaks[0])
}

// Validate walks the whole tree and checks that every internal node is the
// digest of its two children. It is an integrity check for state loaded
// from disk, not a hot-path operation. A mismatch indicates backend
// corruption and is returned as an error rather than a panic so the caller
// can surface it.
func (t *MerkleMountainRange) Validate() error {
	nodeCount := t.store.Len()
	for index := uint64(0); index < nodeCount; index++ {
		height := nodeHeight(index)
		if height == 0 {
			continue
		}
		rightChild := index - 1
		leftChild := index - (uint64(1) << height)
		left := t.store.Node(leftChild)
		right := t.store.Node(rightChild)
		expected := chainhash.HashMerkleBranch(&left, &right)
		actual := t.store.Node(index)
		if actual != expected {
			log.Warnf("Corrupt commitment tree node at index %d", index)
			return errors.Errorf("corrupt tree: node %d is %s, expected %s "+
				"from children %d and %d", index, actual, expected,
				leftChild, rightChild)
		}
	}
	return nil
}

// TruncateToLength rewinds the tree back to a previously recorded node
// length. Only lengths recorded after a completed Push are valid targets.
func (t *MerkleMountainRange) TruncateToLength(length uint64) error {
	if err := t.store.TruncateToLength(length); err != nil {
		return err
	}
	t.leafCount = countLeaves(length)
	for index := range t.pruned {
		if index >= length {
			delete(t.pruned, index)
		}
	}
	return nil
}

// PruneLeaf marks a leaf as pruned. The node itself is retained, since its
// hash may still be needed as a sibling in later proofs; pruning only
// signals that the leaf's underlying data may be discarded.
func (t *MerkleMountainRange) PruneLeaf(leafIndex uint64) error {
	if leafIndex >= t.leafCount {
		return errors.Errorf("cannot prune leaf %d, only %d leaves exist",
			leafIndex, t.leafCount)
	}
	nodeIndex := leafToNodeIndex(leafIndex)
	if _, ok := t.pruned[nodeIndex]; ok {
		return errors.Errorf("leaf %d is already pruned", leafIndex)
	}
	t.pruned[nodeIndex] = struct{}{}
	return nil
}

// IsLeafPruned returns whether the leaf has been marked pruned.
func (t *MerkleMountainRange) IsLeafPruned(leafIndex uint64) bool {
	_, ok := t.pruned[leafToNodeIndex(leafIndex)]
	return ok
}
