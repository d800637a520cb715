package mmr

import (
	"github.com/pkg/errors"

	"github.com/emberchain/emberd/util/chainhash"
)

// ProofStep is one climb in a merkle proof: the sibling hash to combine
// with, and on which side of the concatenation it sits.
type ProofStep struct {
	Hash   chainhash.Hash
	IsLeft bool
}

// MerkleProof proves that a leaf is committed under a merkle mountain range
// root. Steps climb from the leaf to its local peak; Peaks holds every peak
// in the exact fold order of MerkleRoot, with PeakIndex locating the climbed
// peak within it.
type MerkleProof struct {
	Steps     []ProofStep
	Peaks     []chainhash.Hash
	PeakIndex int
}

// LeafProof builds an inclusion proof for the n-th pushed leaf against the
// current root.
func (t *MerkleMountainRange) LeafProof(leafIndex uint64) (*MerkleProof, error) {
	if leafIndex >= t.leafCount {
		return nil, errors.Errorf("cannot prove leaf %d, only %d leaves exist",
			leafIndex, t.leafCount)
	}
	nodeCount := t.store.Len()
	lastIndex := nodeCount - 1

	var steps []ProofStep
	index := leafToNodeIndex(leafIndex)
	for {
		sibling := siblingIndex(index)
		if sibling >= nodeCount {
			// No sibling yet: index is this leaf's peak.
			break
		}
		siblingHash := t.store.Node(sibling)
		if sibling < index {
			steps = append(steps, ProofStep{Hash: siblingHash, IsLeft: true})
			index++
		} else {
			steps = append(steps, ProofStep{Hash: siblingHash, IsLeft: false})
			index = sibling + 1
		}
	}

	mainHeight, mainIndex := peakHeightAndIndex(lastIndex)
	peakIndexes := append([]uint64{mainIndex},
		baggingPeakIndexes(mainHeight, mainIndex, lastIndex)...)
	peaks := make([]chainhash.Hash, len(peakIndexes))
	peakIndex := -1
	for i, pi := range peakIndexes {
		peaks[i] = t.store.Node(pi)
		if pi == index {
			peakIndex = i
		}
	}
	if peakIndex == -1 {
		// The climb always terminates on a peak; not finding it means the
		// position math and the store disagree.
		return nil, errors.Errorf("proof climb for leaf %d ended on node %d, "+
			"which is not a peak", leafIndex, index)
	}
	return &MerkleProof{Steps: steps, Peaks: peaks, PeakIndex: peakIndex}, nil
}

// Verify checks that leaf is committed under root by this proof.
func (p *MerkleProof) Verify(leaf, root chainhash.Hash) bool {
	if p.PeakIndex < 0 || p.PeakIndex >= len(p.Peaks) {
		return false
	}

	current := leaf
	for _, step := range p.Steps {
		if step.IsLeft {
			current = chainhash.HashMerkleBranch(&step.Hash, &current)
		} else {
			current = chainhash.HashMerkleBranch(&current, &step.Hash)
		}
	}

	// Substitute the recomputed local peak and fold exactly the way
	// MerkleRoot does.
	peaks := make([]chainhash.Hash, len(p.Peaks))
	copy(peaks, p.Peaks)
	peaks[p.PeakIndex] = current

	if len(peaks) == 1 {
		return peaks[0] == root
	}
	others := peaks[1:]
	for i := len(others) - 1; i > 0; i-- {
		others[i-1] = chainhash.HashMerkleBranch(&others[i-1], &others[i])
	}
	folded := chainhash.HashMerkleBranch(&peaks[0], &others[0])
	return folded == root
}
