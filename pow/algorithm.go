package pow

import (
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/emberchain/emberd/util/chainhash"
)

// Algorithm identifies one of the interchangeable proof-of-work hash
// algorithms sharing the chain. Each algorithm retargets independently.
type Algorithm byte

const (
	// Blake is the blake2b-256 proof-of-work algorithm.
	Blake Algorithm = iota

	// Sha3 is the sha3-256 proof-of-work algorithm.
	Sha3
)

// Algorithms lists every supported proof-of-work algorithm.
var Algorithms = []Algorithm{Blake, Sha3}

// String returns the algorithm as a human-readable string.
func (algo Algorithm) String() string {
	switch algo {
	case Blake:
		return "blake"
	case Sha3:
		return "sha3"
	default:
		return "unknown"
	}
}

// Hash computes the proof-of-work digest of data for the algorithm.
func (algo Algorithm) Hash(data []byte) chainhash.Hash {
	switch algo {
	case Sha3:
		return chainhash.Hash(sha3.Sum256(data))
	default:
		return chainhash.Hash(blake2b.Sum256(data))
	}
}
