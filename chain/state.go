package chain

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/emberchain/emberd/blocks"
	"github.com/emberchain/emberd/database"
	"github.com/emberchain/emberd/mmr"
	"github.com/emberchain/emberd/pow"
	"github.com/emberchain/emberd/util/chainhash"
)

// chainStateKey is the database key the full ledger state snapshot is
// persisted under.
var chainStateKey = []byte("chainstate")

// headerEntry is one committed header together with the target difficulty
// the chain computed for it. The target is retained so difficulty windows
// can be reseeded by walking backward without recomputing LWMA history.
type headerEntry struct {
	header *blocks.BlockHeader
	target pow.Difficulty
}

// checkpoint records the lengths of all commitment trees, and the header
// count, immediately before one block was applied. Rewinding to a
// checkpoint undoes that block and every block after it.
type checkpoint struct {
	headerTreeLen uint64
	outputTreeLen uint64
	kernelTreeLen uint64
	headerCount   uint64
}

// LedgerState holds the three commitment trees, the committed header
// sequence, and the checkpoint stack that makes block application
// reversible. It is single-writer: the Chain serializes all mutations.
type LedgerState struct {
	headerTree *mmr.MerkleMountainRange
	outputTree *mmr.MerkleMountainRange
	kernelTree *mmr.MerkleMountainRange

	headers     []headerEntry
	headerIndex map[chainhash.Hash]uint64

	checkpoints []checkpoint

	db database.Database
}

// NewLedgerState returns an empty ledger state backed by the given
// database for snapshot persistence. Any nil store defaults to an
// in-memory node store.
func NewLedgerState(db database.Database, headerStore, outputStore,
	kernelStore mmr.NodeStore) *LedgerState {

	if headerStore == nil {
		headerStore = mmr.NewMemoryNodeStore()
	}
	if outputStore == nil {
		outputStore = mmr.NewMemoryNodeStore()
	}
	if kernelStore == nil {
		kernelStore = mmr.NewMemoryNodeStore()
	}
	return &LedgerState{
		headerTree:  mmr.New(headerStore),
		outputTree:  mmr.New(outputStore),
		kernelTree:  mmr.New(kernelStore),
		headerIndex: make(map[chainhash.Hash]uint64),
		db:          db,
	}
}

// currentCheckpoint captures the current tree lengths and header count.
func (s *LedgerState) currentCheckpoint() checkpoint {
	return checkpoint{
		headerTreeLen: s.headerTree.Len(),
		outputTreeLen: s.outputTree.Len(),
		kernelTreeLen: s.kernelTree.Len(),
		headerCount:   uint64(len(s.headers)),
	}
}

// truncateTo rewinds every tree and the header sequence back to cp.
func (s *LedgerState) truncateTo(cp checkpoint) error {
	if err := s.headerTree.TruncateToLength(cp.headerTreeLen); err != nil {
		return err
	}
	if err := s.outputTree.TruncateToLength(cp.outputTreeLen); err != nil {
		return err
	}
	if err := s.kernelTree.TruncateToLength(cp.kernelTreeLen); err != nil {
		return err
	}
	for _, entry := range s.headers[cp.headerCount:] {
		delete(s.headerIndex, entry.header.BlockHash())
	}
	s.headers = s.headers[:cp.headerCount]
	return nil
}

// ProcessNewBlock applies the block's outputs, kernels and header to the
// commitment trees as one logical unit and records a checkpoint for it.
// target is the verified target difficulty the block was validated
// against. If any insertion fails partway, every tree is restored to its
// pre-call length before the error is returned.
func (s *LedgerState) ProcessNewBlock(block *blocks.Block, target pow.Difficulty) error {
	header := &block.Header
	blockHash := header.BlockHash()

	if _, ok := s.headerIndex[blockHash]; ok {
		str := fmt.Sprintf("already have block %s", blockHash)
		return ruleError(ErrDuplicateBlock, str)
	}
	if len(s.headers) == 0 {
		if header.Height != 0 {
			str := fmt.Sprintf("first block %s has height %d, expected 0",
				blockHash, header.Height)
			return ruleError(ErrInvalidAncestry, str)
		}
	} else {
		tipHeader := s.headers[len(s.headers)-1].header
		if header.PrevBlock != tipHeader.BlockHash() {
			str := fmt.Sprintf("block %s does not extend the current tip %s",
				blockHash, tipHeader.BlockHash())
			return ruleError(ErrOrphanBlock, str)
		}
		if header.Height != tipHeader.Height+1 {
			str := fmt.Sprintf("block %s has height %d, expected %d",
				blockHash, header.Height, tipHeader.Height+1)
			return ruleError(ErrInvalidAncestry, str)
		}
	}

	cp := s.currentCheckpoint()
	if err := s.applyLeaves(block); err != nil {
		// The whole call is transactional. A failed truncate after a
		// failed insert means the backing store itself is broken, which
		// trumps the original error.
		if truncateErr := s.truncateTo(cp); truncateErr != nil {
			return errors.Wrapf(truncateErr,
				"failed restoring trees after: %s", err)
		}
		return err
	}

	s.headers = append(s.headers, headerEntry{header: header, target: target})
	s.headerIndex[blockHash] = header.Height
	s.checkpoints = append(s.checkpoints, cp)
	return nil
}

// applyLeaves pushes the block's leaves into the trees in canonical order:
// outputs, then kernels, then the header.
func (s *LedgerState) applyLeaves(block *blocks.Block) error {
	for _, output := range block.Outputs {
		if _, err := s.outputTree.Push(output.LeafHash()); err != nil {
			return err
		}
	}
	for _, kernel := range block.Kernels {
		if _, err := s.kernelTree.Push(kernel.LeafHash()); err != nil {
			return err
		}
	}
	_, err := s.headerTree.Push(block.Header.BlockHash())
	return err
}

// Checkpoint records the current tree lengths onto the undo stack without
// applying anything. A later RewindState through this checkpoint restores
// exactly this state.
func (s *LedgerState) Checkpoint() {
	s.checkpoints = append(s.checkpoints, s.currentCheckpoint())
}

// RewindState pops n checkpoints and truncates every tree to the deepest
// popped one, undoing the last n applied blocks. It fails without
// modifying anything if fewer than n checkpoints exist.
func (s *LedgerState) RewindState(n int) error {
	if n == 0 {
		return nil
	}
	if n < 0 || n > len(s.checkpoints) {
		str := fmt.Sprintf("cannot rewind %d checkpoints, only %d exist",
			n, len(s.checkpoints))
		return ruleError(ErrCheckpointUnderflow, str)
	}
	cp := s.checkpoints[len(s.checkpoints)-n]
	if err := s.truncateTo(cp); err != nil {
		return err
	}
	s.checkpoints = s.checkpoints[:len(s.checkpoints)-n]
	return nil
}

// CompactCheckpoints drops the oldest checkpoints until at most keep
// remain, bounding how far back the state can rewind. Blocks older than
// the retained horizon stay committed; only their undo information is
// discarded.
func (s *LedgerState) CompactCheckpoints(keep int) {
	if len(s.checkpoints) <= keep {
		return
	}
	drop := len(s.checkpoints) - keep
	s.checkpoints = append(s.checkpoints[:0:0], s.checkpoints[drop:]...)
}

// CheckpointCount returns the number of rewindable checkpoints.
func (s *LedgerState) CheckpointCount() int {
	return len(s.checkpoints)
}

// HeaderCount returns the number of committed headers. The tip height is
// HeaderCount() - 1 once a genesis block has been applied.
func (s *LedgerState) HeaderCount() uint64 {
	return uint64(len(s.headers))
}

// TipHeader returns the header of the current chain tip, or nil if no
// block has been applied yet.
func (s *LedgerState) TipHeader() *blocks.BlockHeader {
	if len(s.headers) == 0 {
		return nil
	}
	return s.headers[len(s.headers)-1].header
}

// HeaderByHeight returns the committed header at the given height together
// with its verified target difficulty.
func (s *LedgerState) HeaderByHeight(height uint64) (*blocks.BlockHeader, pow.Difficulty, error) {
	if height >= uint64(len(s.headers)) {
		return nil, 0, errors.Errorf("no committed header at height %d, tip is %d",
			height, len(s.headers)-1)
	}
	entry := s.headers[height]
	return entry.header, entry.target, nil
}

// HeightByHash returns the height of the committed block with the given
// hash, or false if the hash is not part of the canonical chain.
func (s *LedgerState) HeightByHash(hash chainhash.Hash) (uint64, bool) {
	height, ok := s.headerIndex[hash]
	return height, ok
}

// TipTimestamps returns the timestamps of up to count most recent
// committed headers, newest first.
func (s *LedgerState) TipTimestamps(count int) []int64 {
	if count > len(s.headers) {
		count = len(s.headers)
	}
	timestamps := make([]int64, 0, count)
	for i := len(s.headers) - 1; i >= len(s.headers)-count; i-- {
		timestamps = append(timestamps, s.headers[i].header.Timestamp)
	}
	return timestamps
}

// Roots returns the current roots of the header, output and kernel
// commitment trees.
func (s *LedgerState) Roots() (headerRoot, outputRoot, kernelRoot chainhash.Hash) {
	return s.headerTree.MerkleRoot(), s.outputTree.MerkleRoot(),
		s.kernelTree.MerkleRoot()
}

// HeaderTreeRoot returns the current header-chain commitment root.
func (s *LedgerState) HeaderTreeRoot() chainhash.Hash {
	return s.headerTree.MerkleRoot()
}

// CalcBlockRoots computes the commitment roots a header must carry for the
// given block body. The output and kernel roots are the tree roots after
// the block's leaves are applied; the header root commits to the block's
// ancestors only, since the block's own header cannot contain its own
// digest. The trees are restored to their current lengths before
// returning.
func (s *LedgerState) CalcBlockRoots(block *blocks.Block) (headerRoot, outputRoot, kernelRoot chainhash.Hash, err error) {
	headerRoot = s.headerTree.MerkleRoot()

	outputLen := s.outputTree.Len()
	kernelLen := s.kernelTree.Len()
	defer func() {
		if truncateErr := s.outputTree.TruncateToLength(outputLen); truncateErr != nil && err == nil {
			err = truncateErr
		}
		if truncateErr := s.kernelTree.TruncateToLength(kernelLen); truncateErr != nil && err == nil {
			err = truncateErr
		}
	}()

	for _, output := range block.Outputs {
		if _, err = s.outputTree.Push(output.LeafHash()); err != nil {
			return chainhash.Hash{}, chainhash.Hash{}, chainhash.Hash{}, err
		}
	}
	for _, kernel := range block.Kernels {
		if _, err = s.kernelTree.Push(kernel.LeafHash()); err != nil {
			return chainhash.Hash{}, chainhash.Hash{}, chainhash.Hash{}, err
		}
	}
	outputRoot = s.outputTree.MerkleRoot()
	kernelRoot = s.kernelTree.MerkleRoot()
	return headerRoot, outputRoot, kernelRoot, nil
}

// SaveState persists the full ledger state to the backing database as the
// durable snapshot ResetChainState restores.
func (s *LedgerState) SaveState() error {
	if s.db == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := s.serialize(&buf); err != nil {
		return err
	}
	return s.db.Put(chainStateKey, buf.Bytes())
}

// ResetChainState discards all uncommitted work and restores the last
// snapshot written by SaveState. It is an error to reset before any
// snapshot has been saved.
func (s *LedgerState) ResetChainState() error {
	if s.db == nil {
		return errors.New("cannot reset chain state without a database")
	}
	data, err := s.db.Get(chainStateKey)
	if err != nil {
		return err
	}
	if data == nil {
		return errors.New("no saved chain state to reset to")
	}
	return s.deserialize(bytes.NewReader(data))
}

// HasSavedState returns whether a durable snapshot exists in the backing
// database.
func (s *LedgerState) HasSavedState() (bool, error) {
	if s.db == nil {
		return false, nil
	}
	return s.db.Has(chainStateKey)
}

func writeUint64(w io.Writer, value uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	_, err := w.Write(buf[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func serializeTree(w io.Writer, tree *mmr.MerkleMountainRange) error {
	if err := writeUint64(w, tree.Len()); err != nil {
		return err
	}
	for index := uint64(0); index < tree.Len(); index++ {
		hash := tree.NodeHash(index)
		if _, err := w.Write(hash[:]); err != nil {
			return err
		}
	}
	return nil
}

func deserializeTree(r io.Reader) (*mmr.MerkleMountainRange, error) {
	nodeCount, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	store := mmr.NewMemoryNodeStore()
	for index := uint64(0); index < nodeCount; index++ {
		var hash chainhash.Hash
		if _, err := io.ReadFull(r, hash[:]); err != nil {
			return nil, err
		}
		if err := store.Append(hash); err != nil {
			return nil, err
		}
	}
	return mmr.New(store), nil
}

func (s *LedgerState) serialize(w io.Writer) error {
	for _, tree := range []*mmr.MerkleMountainRange{s.headerTree, s.outputTree, s.kernelTree} {
		if err := serializeTree(w, tree); err != nil {
			return err
		}
	}
	if err := writeUint64(w, uint64(len(s.headers))); err != nil {
		return err
	}
	for _, entry := range s.headers {
		if err := writeUint64(w, uint64(entry.target)); err != nil {
			return err
		}
		if err := entry.header.Serialize(w); err != nil {
			return err
		}
	}
	if err := writeUint64(w, uint64(len(s.checkpoints))); err != nil {
		return err
	}
	for _, cp := range s.checkpoints {
		for _, value := range []uint64{cp.headerTreeLen, cp.outputTreeLen,
			cp.kernelTreeLen, cp.headerCount} {
			if err := writeUint64(w, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *LedgerState) deserialize(r io.Reader) error {
	headerTree, err := deserializeTree(r)
	if err != nil {
		return err
	}
	outputTree, err := deserializeTree(r)
	if err != nil {
		return err
	}
	kernelTree, err := deserializeTree(r)
	if err != nil {
		return err
	}
	headerCount, err := readUint64(r)
	if err != nil {
		return err
	}
	headers := make([]headerEntry, 0, headerCount)
	headerIndex := make(map[chainhash.Hash]uint64, headerCount)
	for i := uint64(0); i < headerCount; i++ {
		target, err := readUint64(r)
		if err != nil {
			return err
		}
		header := &blocks.BlockHeader{}
		if err := header.Deserialize(r); err != nil {
			return err
		}
		headers = append(headers, headerEntry{header: header, target: pow.Difficulty(target)})
		headerIndex[header.BlockHash()] = header.Height
	}
	checkpointCount, err := readUint64(r)
	if err != nil {
		return err
	}
	checkpoints := make([]checkpoint, 0, checkpointCount)
	for i := uint64(0); i < checkpointCount; i++ {
		var cp checkpoint
		for _, field := range []*uint64{&cp.headerTreeLen, &cp.outputTreeLen,
			&cp.kernelTreeLen, &cp.headerCount} {
			value, err := readUint64(r)
			if err != nil {
				return err
			}
			*field = value
		}
		checkpoints = append(checkpoints, cp)
	}

	// A snapshot from disk is untrusted until its trees check out.
	for _, tree := range []*mmr.MerkleMountainRange{headerTree, outputTree, kernelTree} {
		if err := tree.Validate(); err != nil {
			return ruleError(ErrCorruptTree, err.Error())
		}
	}

	s.headerTree = headerTree
	s.outputTree = outputTree
	s.kernelTree = kernelTree
	s.headers = headers
	s.headerIndex = headerIndex
	s.checkpoints = checkpoints
	return nil
}
