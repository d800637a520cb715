package pow

import (
	"math"
	"math/big"
	"strconv"

	"github.com/emberchain/emberd/util/chainhash"
)

// Difficulty is the scalar proof-of-work difficulty metric. Accumulated
// difficulties are totally ordered and form the sole fork-choice criterion.
type Difficulty uint64

// MinDifficulty is the lowest difficulty any proof of work can achieve or be
// targeted at.
const MinDifficulty Difficulty = 1

// MaxDifficulty is the upper clamp for target difficulties.
const MaxDifficulty Difficulty = math.MaxUint64

var (
	bigOne = big.NewInt(1)

	// maxTarget is 2^256 - 1, the largest value a 256-bit pow digest can
	// take, interpreted as a big-endian integer.
	maxTarget = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 256), bigOne)

	bigMaxUint64 = new(big.Int).SetUint64(math.MaxUint64)
)

// String returns the difficulty in base 10.
func (d Difficulty) String() string {
	return strconv.FormatUint(uint64(d), 10)
}

// DifficultyFromHash converts a proof-of-work digest into the difficulty it
// achieves: maxTarget divided by the digest interpreted as a big-endian
// integer. The result is never below MinDifficulty.
func DifficultyFromHash(hash *chainhash.Hash) Difficulty {
	hashValue := new(big.Int).SetBytes(hash[:])
	// +1 so an all-zeroes digest doesn't divide by zero.
	hashValue.Add(hashValue, bigOne)
	achieved := new(big.Int).Div(maxTarget, hashValue)
	if achieved.Cmp(bigMaxUint64) > 0 {
		return MaxDifficulty
	}
	d := Difficulty(achieved.Uint64())
	if d < MinDifficulty {
		return MinDifficulty
	}
	return d
}

// ProofOfWork is a block header's proof-of-work descriptor: the algorithm the
// block was mined with and the claimed total accumulated difficulty of the
// chain up to and including the block. The accumulated scalar is verified
// against the parent's total when the block is applied.
type ProofOfWork struct {
	Algorithm             Algorithm
	AccumulatedDifficulty Difficulty
}
