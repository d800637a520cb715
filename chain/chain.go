package chain

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/emberchain/emberd/blocks"
	"github.com/emberchain/emberd/chaincfg"
	"github.com/emberchain/emberd/database"
	"github.com/emberchain/emberd/mmr"
	"github.com/emberchain/emberd/pow"
	"github.com/emberchain/emberd/util/chainhash"
)

// BlockAddResult describes the outcome of submitting one block.
type BlockAddResult int

const (
	// ResultExtended means the block directly extended the canonical tip.
	ResultExtended BlockAddResult = iota

	// ResultOrphaned means the block was buffered: its parent is unknown,
	// or its chain does not carry enough work to displace the tip.
	ResultOrphaned

	// ResultReorgApplied means the block completed an alternate chain
	// with more accumulated work, and the chain reorganized onto it.
	ResultReorgApplied
)

// String returns the BlockAddResult in human-readable form.
func (r BlockAddResult) String() string {
	switch r {
	case ResultExtended:
		return "chain extended"
	case ResultOrphaned:
		return "block orphaned"
	case ResultReorgApplied:
		return "chain reorganized"
	}
	return fmt.Sprintf("Unknown BlockAddResult (%d)", int(r))
}

// Config is a descriptor for a Chain instance.
type Config struct {
	// Params identifies the network the chain validates against.
	// This field is required.
	Params *chaincfg.Params

	// DB is the database the chain persists its durable snapshots to.
	// This field is required.
	DB database.Database

	// TimeSource provides the adjusted clock used for future-timestamp
	// checks. It defaults to the local clock when nil.
	TimeSource TimeSource

	// HeaderStore, OutputStore and KernelStore optionally override the
	// backing stores of the commitment trees. They default to in-memory
	// stores when nil.
	HeaderStore mmr.NodeStore
	OutputStore mmr.NodeStore
	KernelStore mmr.NodeStore
}

// Chain is the fork-choice state machine. It owns a LedgerState and an
// orphan pool, routes every submitted block to direct extension, orphan
// buffering or reorganization, and tracks the accumulated work of the
// canonical tip.
//
// A Chain is single-writer: the caller must serialize ProcessBlock calls.
// Read-only queries may run concurrently with each other but not with a
// writer.
type Chain struct {
	params          *chaincfg.Params
	state           *LedgerState
	timeSource      TimeSource
	orphans         map[chainhash.Hash]*blocks.Block
	currentTotalPow pow.Difficulty
}

// New constructs a Chain from the given configuration. A fresh database
// gets the network's genesis block applied and persisted; a database that
// already holds a snapshot is restored and checked against the network's
// genesis.
func New(config *Config) (*Chain, error) {
	if config.Params == nil {
		return nil, errors.New("chain.New: no network parameters specified")
	}
	if config.DB == nil {
		return nil, errors.New("chain.New: no database specified")
	}
	timeSource := config.TimeSource
	if timeSource == nil {
		timeSource = NewTimeSource()
	}

	c := &Chain{
		params: config.Params,
		state: NewLedgerState(config.DB, config.HeaderStore,
			config.OutputStore, config.KernelStore),
		timeSource: timeSource,
		orphans:    make(map[chainhash.Hash]*blocks.Block),
	}

	hasSaved, err := c.state.HasSavedState()
	if err != nil {
		return nil, err
	}
	if hasSaved {
		if err := c.state.ResetChainState(); err != nil {
			return nil, err
		}
		genesisHeader, _, err := c.state.HeaderByHeight(0)
		if err != nil {
			return nil, err
		}
		wantGenesis := config.Params.GenesisBlock.BlockHash()
		if genesisHeader.BlockHash() != wantGenesis {
			return nil, errors.Errorf("saved chain state starts at %s, "+
				"but the %s network genesis is %s",
				genesisHeader.BlockHash(), config.Params.Name, wantGenesis)
		}
		c.currentTotalPow = c.state.TipHeader().PoW.AccumulatedDifficulty
		log.Infof("Restored chain state at height %d with accumulated "+
			"difficulty %s", c.state.TipHeader().Height, c.currentTotalPow)
		return c, nil
	}

	genesis := config.Params.GenesisBlock
	if err := c.state.ProcessNewBlock(genesis, config.Params.MinDifficulty); err != nil {
		return nil, err
	}
	if err := c.state.SaveState(); err != nil {
		return nil, err
	}
	c.currentTotalPow = genesis.Header.PoW.AccumulatedDifficulty
	log.Infof("Initialized new chain state for the %s network, genesis %s",
		config.Params.Name, genesis.BlockHash())
	return c, nil
}

// ProcessBlock submits one block to the chain. The block either extends
// the canonical tip, is buffered as an orphan, or completes an alternate
// chain and triggers a reorganization. Validation failures and storage
// failures are returned as errors; in every error case the committed
// state is left exactly as it was before the call.
func (c *Chain) ProcessBlock(block *blocks.Block) (BlockAddResult, error) {
	blockHash := block.Header.BlockHash()
	log.Debugf("Processing block %s at height %d", blockHash, block.Header.Height)

	if _, ok := c.state.HeightByHash(blockHash); ok {
		str := fmt.Sprintf("already have block %s", blockHash)
		return ResultOrphaned, ruleError(ErrDuplicateBlock, str)
	}

	tip := c.state.TipHeader()
	if block.Header.PrevBlock != tip.BlockHash() {
		return c.orphanedBlock(block)
	}

	validated, err := validateHeader(&block.Header, c.state, c.params, c.timeSource)
	if err != nil {
		return ResultOrphaned, err
	}
	if err := c.state.ProcessNewBlock(block, validated.Target); err != nil {
		// The ledger state performs its own internal rollback, but a
		// snapshot restore guarantees nothing partial survives.
		if resetErr := c.state.ResetChainState(); resetErr != nil {
			return ResultOrphaned, errors.Wrapf(resetErr,
				"failed resetting chain state after: %s", err)
		}
		return ResultOrphaned, err
	}

	c.currentTotalPow = block.Header.PoW.AccumulatedDifficulty
	c.evictStaleOrphans()
	c.state.CompactCheckpoints(int(c.params.PruningHorizon))
	if err := c.state.SaveState(); err != nil {
		return ResultOrphaned, err
	}
	log.Infof("Chain extended to height %d by block %s, accumulated "+
		"difficulty %s", block.Header.Height, blockHash, c.currentTotalPow)
	return ResultExtended, nil
}

// orphanedBlock buffers a block whose parent is not the canonical tip and
// decides whether the orphan pool now holds a chain worth reorganizing to.
func (c *Chain) orphanedBlock(block *blocks.Block) (BlockAddResult, error) {
	blockHash := block.Header.BlockHash()
	if _, ok := c.orphans[blockHash]; ok {
		str := fmt.Sprintf("already have orphan block %s", blockHash)
		return ResultOrphaned, ruleError(ErrDuplicateBlock, str)
	}
	c.orphans[blockHash] = block
	c.evictStaleOrphans()
	log.Infof("Buffered orphan block %s at height %d, pool size %d",
		blockHash, block.Header.Height, len(c.orphans))

	// The arriving block may connect ancestors for a stronger tip that
	// is already buffered, so the reorg candidate is the best tip in the
	// whole pool, not necessarily the block that just arrived.
	candidateHash, candidateTotal := c.bestOrphanTip()
	if candidateTotal <= c.currentTotalPow {
		return ResultOrphaned, nil
	}

	log.Infof("Orphan chain tip %s claims accumulated difficulty %s, "+
		"current is %s; attempting reorganization",
		candidateHash, candidateTotal, c.currentTotalPow)
	var consumed []chainhash.Hash
	if err := c.handleReorg(candidateHash, &consumed); err != nil {
		if resetErr := c.state.ResetChainState(); resetErr != nil {
			return ResultOrphaned, errors.Wrapf(resetErr,
				"failed resetting chain state after: %s", err)
		}
		if IsErrorCode(err, ErrOrphanBlock) {
			// The candidate chain is still disconnected from known
			// history. Keep it buffered and wait for more ancestors.
			return ResultOrphaned, nil
		}
		return ResultOrphaned, err
	}

	for _, consumedHash := range consumed {
		delete(c.orphans, consumedHash)
	}
	c.currentTotalPow = c.state.TipHeader().PoW.AccumulatedDifficulty
	c.state.CompactCheckpoints(int(c.params.PruningHorizon))
	if err := c.state.SaveState(); err != nil {
		return ResultOrphaned, err
	}
	log.Infof("Chain reorganized onto block %s at height %d, accumulated "+
		"difficulty %s", candidateHash, c.state.TipHeader().Height,
		c.currentTotalPow)
	return ResultReorgApplied, nil
}

// handleReorg walks an orphan chain ancestor-first and replays it onto the
// ledger state. The base case rewinds the canonical chain back to the
// orphan chain's fork point; the recursion then applies each buffered
// block in order. Any failure aborts the whole walk, and the caller is
// responsible for restoring the pre-reorg snapshot. The recursion depth
// is bounded by the orphan pool size, since every step consumes a
// strictly older, previously-unconsumed orphan.
func (c *Chain) handleReorg(blockHash chainhash.Hash, consumed *[]chainhash.Hash) error {
	block, ok := c.orphans[blockHash]
	if !ok {
		str := fmt.Sprintf("reorg candidate %s is not buffered", blockHash)
		return ruleError(ErrOrphanBlock, str)
	}
	*consumed = append(*consumed, blockHash)

	parentHash := block.Header.PrevBlock
	if parentHeight, ok := c.state.HeightByHash(parentHash); ok {
		// Fork point found on the canonical chain. Rewind everything
		// above it, then apply this block directly on top.
		rewindCount := c.state.TipHeader().Height - parentHeight
		log.Debugf("Reorg fork point at height %d, rewinding %d blocks",
			parentHeight, rewindCount)
		if err := c.state.RewindState(int(rewindCount)); err != nil {
			return err
		}
		return c.applyBlock(block)
	}

	if _, ok := c.orphans[parentHash]; ok {
		if err := c.handleReorg(parentHash, consumed); err != nil {
			return err
		}
		return c.applyBlock(block)
	}

	str := fmt.Sprintf("block %s is disconnected from known history: "+
		"parent %s is neither committed nor buffered", blockHash, parentHash)
	return ruleError(ErrOrphanBlock, str)
}

// applyBlock validates a block against the current tip and applies it.
func (c *Chain) applyBlock(block *blocks.Block) error {
	validated, err := validateHeader(&block.Header, c.state, c.params, c.timeSource)
	if err != nil {
		return err
	}
	return c.state.ProcessNewBlock(block, validated.Target)
}

// evictStaleOrphans drops buffered orphans whose height lags the canonical
// tip by more than the maximum orphan age. They can no longer win a
// reorganization that any honest chain would produce.
func (c *Chain) evictStaleOrphans() {
	tipHeight := c.state.TipHeader().Height
	if tipHeight <= c.params.MaxOrphanBlockAge {
		return
	}
	horizon := tipHeight - c.params.MaxOrphanBlockAge
	for hash, orphan := range c.orphans {
		if orphan.Header.Height < horizon {
			log.Debugf("Evicting stale orphan %s at height %d",
				hash, orphan.Header.Height)
			delete(c.orphans, hash)
		}
	}
}

// bestOrphanTip returns the buffered orphan with the greatest claimed
// accumulated difficulty, the strongest candidate for a reorganization.
func (c *Chain) bestOrphanTip() (chainhash.Hash, pow.Difficulty) {
	var bestHash chainhash.Hash
	var bestTotal pow.Difficulty
	for hash, orphan := range c.orphans {
		total := orphan.Header.PoW.AccumulatedDifficulty
		if total > bestTotal {
			bestHash = hash
			bestTotal = total
		}
	}
	return bestHash, bestTotal
}

// CurrentTotalPow returns the accumulated difficulty of the canonical tip.
func (c *Chain) CurrentTotalPow() pow.Difficulty {
	return c.currentTotalPow
}

// TipHeight returns the height of the canonical tip.
func (c *Chain) TipHeight() uint64 {
	return c.state.TipHeader().Height
}

// TipHeader returns the header of the canonical tip.
func (c *Chain) TipHeader() *blocks.BlockHeader {
	return c.state.TipHeader()
}

// HeaderTreeRoot returns the current header-chain commitment root, the
// root peers verify header inclusion proofs against.
func (c *Chain) HeaderTreeRoot() chainhash.Hash {
	return c.state.HeaderTreeRoot()
}

// Roots returns the current header, output and kernel commitment roots.
func (c *Chain) Roots() (headerRoot, outputRoot, kernelRoot chainhash.Hash) {
	return c.state.Roots()
}

// OrphanCount returns the number of buffered orphan blocks.
func (c *Chain) OrphanCount() int {
	return len(c.orphans)
}

// NextRequiredDifficulty returns the target difficulty the next block must
// meet if mined with the given algorithm.
func (c *Chain) NextRequiredDifficulty(algo pow.Algorithm) pow.Difficulty {
	return NextRequiredDifficulty(c.state, c.params, algo)
}

// NextAccumulatedDifficulty returns the accumulated difficulty a block
// mined with the given algorithm on the current tip must claim.
func (c *Chain) NextAccumulatedDifficulty(algo pow.Algorithm) pow.Difficulty {
	return c.currentTotalPow + c.NextRequiredDifficulty(algo)
}

// CalcBlockRoots computes the commitment roots a header extending the
// current tip must carry for the given block body.
func (c *Chain) CalcBlockRoots(block *blocks.Block) (headerRoot, outputRoot, kernelRoot chainhash.Hash, err error) {
	return c.state.CalcBlockRoots(block)
}
