package main

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/emberchain/emberd/blocks"
	"github.com/emberchain/emberd/chain"
	"github.com/emberchain/emberd/pow"
	"github.com/emberchain/emberd/util/chainhash"
)

// buildBlockTemplate assembles the next block on top of the current tip:
// a small synthetic body, commitment roots computed from the ledger state,
// and the difficulty values the chain demands.
func buildBlockTemplate(c *chain.Chain, algo pow.Algorithm) (*blocks.Block, pow.Difficulty, error) {
	tip := c.TipHeader()
	height := tip.Height + 1

	var heightBytes [8]byte
	binary.LittleEndian.PutUint64(heightBytes[:], height)
	block := &blocks.Block{
		Outputs: []*blocks.TxOutput{{
			Features:   0,
			Commitment: chainhash.HashH(append([]byte("output"), heightBytes[:]...)),
		}},
		Kernels: []*blocks.TxKernel{{
			Features: 0,
			Fee:      height,
			Excess:   chainhash.HashH(append([]byte("kernel"), heightBytes[:]...)),
		}},
	}

	timestamp := time.Now().Unix()
	if timestamp <= tip.Timestamp {
		timestamp = tip.Timestamp + 1
	}

	headerRoot, outputRoot, kernelRoot, err := c.CalcBlockRoots(block)
	if err != nil {
		return nil, 0, err
	}

	target := c.NextRequiredDifficulty(algo)
	block.Header = blocks.BlockHeader{
		Version:    1,
		Height:     height,
		PrevBlock:  tip.BlockHash(),
		Timestamp:  timestamp,
		HeaderRoot: headerRoot,
		OutputRoot: outputRoot,
		KernelRoot: kernelRoot,
		PoW: pow.ProofOfWork{
			Algorithm:             algo,
			AccumulatedDifficulty: c.NextAccumulatedDifficulty(algo),
		},
	}
	return block, target, nil
}

// solveBlock searches for a nonce whose proof-of-work hash meets the
// target. It returns false if the nonce space is exhausted or the
// interrupt channel closes first.
func solveBlock(block *blocks.Block, target pow.Difficulty, interrupt <-chan struct{}) bool {
	for nonce := uint64(0); nonce < math.MaxUint64; nonce++ {
		select {
		case <-interrupt:
			return false
		default:
		}
		block.Header.Nonce = nonce
		powHash := block.Header.PowHash()
		if pow.DifficultyFromHash(&powHash) >= target {
			return true
		}
	}
	return false
}

// mineLoop mines and submits blocks until numBlocks have been accepted or
// the interrupt channel closes.
func mineLoop(c *chain.Chain, cfg *configFlags, interrupt <-chan struct{}) error {
	mined := uint64(0)
	for cfg.NumberOfBlocks == 0 || mined < cfg.NumberOfBlocks {
		select {
		case <-interrupt:
			return nil
		default:
		}

		algo := cfg.miningAlgorithm(c.TipHeight() + 1)
		block, target, err := buildBlockTemplate(c, algo)
		if err != nil {
			return errors.Wrap(err, "failed building a block template")
		}
		if !solveBlock(block, target, interrupt) {
			return nil
		}

		result, err := c.ProcessBlock(block)
		if err != nil {
			return errors.Wrapf(err, "block %s was rejected",
				block.Header.BlockHash())
		}
		log.Infof("Mined block %s with %s at height %d: %s",
			block.Header.BlockHash(), algo, block.Header.Height, result)
		mined++
	}
	return nil
}
