package blocks

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/emberchain/emberd/pow"
	"github.com/emberchain/emberd/util/chainhash"
)

// blockHeaderLen is the number of bytes a serialized block header occupies.
const blockHeaderLen = 4 + 8 + chainhash.HashSize + 8 + 3*chainhash.HashSize + 8 + 1 + 8

// BlockHeader defines information about a block. Height is strictly
// increasing along any single chain, and the three commitment roots are the
// roots the commitment trees produce after the block has been applied.
type BlockHeader struct {
	// Version of the block. This is not the same as the software version.
	Version int32

	// Height of this block in the chain it extends.
	Height uint64

	// Hash of the previous block header in the chain.
	PrevBlock chainhash.Hash

	// Time the block was created, in unix seconds.
	Timestamp int64

	// HeaderRoot is the header-chain commitment tree root after this block.
	HeaderRoot chainhash.Hash

	// OutputRoot is the output commitment tree root after this block.
	OutputRoot chainhash.Hash

	// KernelRoot is the kernel commitment tree root after this block.
	KernelRoot chainhash.Hash

	// Nonce used to generate the block's proof of work.
	Nonce uint64

	// PoW describes the algorithm this block was mined with and the
	// claimed accumulated chain difficulty including this block.
	PoW pow.ProofOfWork
}

// BlockHash computes the block identifier, the blake2b-256 digest of the
// serialized header.
func (h *BlockHeader) BlockHash() chainhash.Hash {
	buf := bytes.NewBuffer(make([]byte, 0, blockHeaderLen))
	// Serialize only fails on writer errors, which cannot happen on a
	// bytes.Buffer.
	_ = h.Serialize(buf)
	return chainhash.HashH(buf.Bytes())
}

// PowHash computes the digest the proof-of-work check runs against, using
// the header's own algorithm.
func (h *BlockHeader) PowHash() chainhash.Hash {
	buf := bytes.NewBuffer(make([]byte, 0, blockHeaderLen))
	_ = h.Serialize(buf)
	return h.PoW.Algorithm.Hash(buf.Bytes())
}

// Serialize encodes the header into w using the canonical little-endian
// encoding.
func (h *BlockHeader) Serialize(w io.Writer) error {
	scratch := make([]byte, 8)

	binary.LittleEndian.PutUint32(scratch[:4], uint32(h.Version))
	if _, err := w.Write(scratch[:4]); err != nil {
		return errors.WithStack(err)
	}
	binary.LittleEndian.PutUint64(scratch, h.Height)
	if _, err := w.Write(scratch); err != nil {
		return errors.WithStack(err)
	}
	if _, err := w.Write(h.PrevBlock[:]); err != nil {
		return errors.WithStack(err)
	}
	binary.LittleEndian.PutUint64(scratch, uint64(h.Timestamp))
	if _, err := w.Write(scratch); err != nil {
		return errors.WithStack(err)
	}
	for _, root := range []*chainhash.Hash{&h.HeaderRoot, &h.OutputRoot, &h.KernelRoot} {
		if _, err := w.Write(root[:]); err != nil {
			return errors.WithStack(err)
		}
	}
	binary.LittleEndian.PutUint64(scratch, h.Nonce)
	if _, err := w.Write(scratch); err != nil {
		return errors.WithStack(err)
	}
	if _, err := w.Write([]byte{byte(h.PoW.Algorithm)}); err != nil {
		return errors.WithStack(err)
	}
	binary.LittleEndian.PutUint64(scratch, uint64(h.PoW.AccumulatedDifficulty))
	if _, err := w.Write(scratch); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Deserialize decodes a header from r in the canonical little-endian
// encoding.
func (h *BlockHeader) Deserialize(r io.Reader) error {
	buf := make([]byte, blockHeaderLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return errors.WithStack(err)
	}

	offset := 0
	h.Version = int32(binary.LittleEndian.Uint32(buf[offset:]))
	offset += 4
	h.Height = binary.LittleEndian.Uint64(buf[offset:])
	offset += 8
	copy(h.PrevBlock[:], buf[offset:])
	offset += chainhash.HashSize
	h.Timestamp = int64(binary.LittleEndian.Uint64(buf[offset:]))
	offset += 8
	for _, root := range []*chainhash.Hash{&h.HeaderRoot, &h.OutputRoot, &h.KernelRoot} {
		copy(root[:], buf[offset:])
		offset += chainhash.HashSize
	}
	h.Nonce = binary.LittleEndian.Uint64(buf[offset:])
	offset += 8
	h.PoW.Algorithm = pow.Algorithm(buf[offset])
	offset++
	h.PoW.AccumulatedDifficulty = pow.Difficulty(binary.LittleEndian.Uint64(buf[offset:]))
	return nil
}
