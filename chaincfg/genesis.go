package chaincfg

import (
	"github.com/emberchain/emberd/blocks"
	"github.com/emberchain/emberd/pow"
	"github.com/emberchain/emberd/util/chainhash"
)

// genesisBlock defines the genesis block of the main network. It carries no
// outputs or kernels, its commitment roots are left zero, and its proof of
// work is accepted as-is with unit accumulated difficulty.
var genesisBlock = blocks.Block{
	Header: blocks.BlockHeader{
		Version:   1,
		Height:    0,
		PrevBlock: chainhash.ZeroHash,
		Timestamp: 1735689600, // 2025-01-01 00:00:00 UTC
		Nonce:     0,
		PoW: pow.ProofOfWork{
			Algorithm:             pow.Blake,
			AccumulatedDifficulty: 1,
		},
	},
}

// simnetGenesisBlock defines the genesis block of the simulation network.
// It differs from the mainnet genesis only in its timestamp, which is enough
// to give the two networks disjoint block hashes.
var simnetGenesisBlock = blocks.Block{
	Header: blocks.BlockHeader{
		Version:   1,
		Height:    0,
		PrevBlock: chainhash.ZeroHash,
		Timestamp: 1735689601,
		Nonce:     0,
		PoW: pow.ProofOfWork{
			Algorithm:             pow.Blake,
			AccumulatedDifficulty: 1,
		},
	},
}
