package chainhash

import (
	"encoding/hex"

	"github.com/pkg/errors"
)

// HashSize of array used to store hashes. See Hash.
const HashSize = 32

// MaxHashStringSize is the maximum length of a Hash hash string.
const MaxHashStringSize = HashSize * 2

// Hash is used in several of the blockchain messages and common structures. It
// typically represents the blake2b-256 digest of data.
type Hash [HashSize]byte

// ZeroHash is the all-zeroes hash. It is the previous-block hash of the
// genesis block header.
var ZeroHash Hash

// String returns the Hash as the hexadecimal string of the byte-encoded hash.
func (hash Hash) String() string {
	return hex.EncodeToString(hash[:])
}

// CloneBytes returns a copy of the bytes which represent the hash.
//
// NOTE: It is generally cheaper to just slice the hash directly thereby
// reusing the same bytes rather than calling this method.
func (hash *Hash) CloneBytes() []byte {
	newHash := make([]byte, HashSize)
	copy(newHash, hash[:])

	return newHash
}

// SetBytes sets the bytes which represent the hash. An error is returned if
// the number of bytes passed in is not HashSize.
func (hash *Hash) SetBytes(newHash []byte) error {
	nhlen := len(newHash)
	if nhlen != HashSize {
		return errors.Errorf("invalid hash length of %d, want %d", nhlen,
			HashSize)
	}
	copy(hash[:], newHash)

	return nil
}

// IsEqual returns true if target is the same as hash.
func (hash *Hash) IsEqual(target *Hash) bool {
	if hash == nil && target == nil {
		return true
	}
	if hash == nil || target == nil {
		return false
	}
	return *hash == *target
}

// NewHash returns a new Hash from a byte slice. An error is returned if
// the number of bytes passed in is not HashSize.
func NewHash(newHash []byte) (*Hash, error) {
	var sh Hash
	err := sh.SetBytes(newHash)
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

// NewHashFromStr creates a Hash from a hash string. The string should be
// the hexadecimal string of a byte-encoded hash.
func NewHashFromStr(hash string) (*Hash, error) {
	if len(hash) != MaxHashStringSize {
		return nil, errors.Errorf("hash string length is %d, while it "+
			"should be %d", len(hash), MaxHashStringSize)
	}

	hashBytes, err := hex.DecodeString(hash)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return NewHash(hashBytes)
}
