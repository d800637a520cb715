package chainhash

import "golang.org/x/crypto/blake2b"

// HashB calculates the blake2b-256 digest of b and returns the resulting
// bytes.
func HashB(b []byte) []byte {
	hash := blake2b.Sum256(b)
	return hash[:]
}

// HashH calculates the blake2b-256 digest of b and returns the resulting
// bytes as a Hash.
func HashH(b []byte) Hash {
	return Hash(blake2b.Sum256(b))
}

// HashMerkleBranch calculates the digest of the concatenation of left and
// right. It is the node-combining function for all commitment trees.
func HashMerkleBranch(left, right *Hash) Hash {
	var buf [HashSize * 2]byte
	copy(buf[:HashSize], left[:])
	copy(buf[HashSize:], right[:])
	return HashH(buf[:])
}
