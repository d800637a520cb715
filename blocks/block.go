package blocks

import (
	"encoding/binary"

	"github.com/emberchain/emberd/util/chainhash"
)

// TxOutput is a transaction output committed into the output tree. Output
// script and range-proof contents are validated by a separate layer; the
// consensus core only commits to them.
type TxOutput struct {
	Features   uint8
	Commitment chainhash.Hash
}

// LeafHash computes the digest this output is committed under.
func (out *TxOutput) LeafHash() chainhash.Hash {
	buf := make([]byte, 1+chainhash.HashSize)
	buf[0] = out.Features
	copy(buf[1:], out.Commitment[:])
	return chainhash.HashH(buf)
}

// TxKernel is a transaction kernel committed into the kernel tree.
type TxKernel struct {
	Features uint8
	Fee      uint64
	Excess   chainhash.Hash
}

// LeafHash computes the digest this kernel is committed under.
func (k *TxKernel) LeafHash() chainhash.Hash {
	buf := make([]byte, 1+8+chainhash.HashSize)
	buf[0] = k.Features
	binary.LittleEndian.PutUint64(buf[1:], k.Fee)
	copy(buf[9:], k.Excess[:])
	return chainhash.HashH(buf)
}

// Block is a header plus the body it commits to. Blocks are immutable once
// constructed.
type Block struct {
	Header  BlockHeader
	Outputs []*TxOutput
	Kernels []*TxKernel
}

// BlockHash returns the block identifier, which is the hash of its header.
func (b *Block) BlockHash() chainhash.Hash {
	return b.Header.BlockHash()
}
