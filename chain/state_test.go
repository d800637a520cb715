package chain

import (
	"testing"

	"github.com/emberchain/emberd/chaincfg"
	"github.com/emberchain/emberd/database"
	"github.com/emberchain/emberd/mmr"
	"github.com/emberchain/emberd/pow"
	"github.com/emberchain/emberd/util/chainhash"
)

// applyGenesis applies the simnet genesis to a fresh state.
func applyGenesis(t *testing.T, state *LedgerState) {
	t.Helper()
	genesis := chaincfg.SimnetParams.GenesisBlock
	if err := state.ProcessNewBlock(genesis, pow.MinDifficulty); err != nil {
		t.Fatalf("applying genesis: %v", err)
	}
}

type stateSnapshot struct {
	headerCount uint64
	headerRoot  chainhash.Hash
	outputRoot  chainhash.Hash
	kernelRoot  chainhash.Hash
}

func snapshotState(state *LedgerState) stateSnapshot {
	headerRoot, outputRoot, kernelRoot := state.Roots()
	return stateSnapshot{
		headerCount: state.HeaderCount(),
		headerRoot:  headerRoot,
		outputRoot:  outputRoot,
		kernelRoot:  kernelRoot,
	}
}

func TestRewindInverse(t *testing.T) {
	state := NewLedgerState(database.NewMemDB(), nil, nil, nil)
	applyGenesis(t, state)
	before := snapshotState(state)

	block := steadyChild(state.TipHeader(), "rewind")
	if err := state.ProcessNewBlock(block, pow.MinDifficulty); err != nil {
		t.Fatalf("ProcessNewBlock: %v", err)
	}
	if snapshotState(state) == before {
		t.Fatal("applying a block did not change the observable state")
	}

	if err := state.RewindState(1); err != nil {
		t.Fatalf("RewindState: %v", err)
	}
	if after := snapshotState(state); after != before {
		t.Fatalf("rewind did not restore the state: %+v != %+v", after, before)
	}

	// The rewound block can be applied again and yields the same state it
	// produced the first time.
	if err := state.ProcessNewBlock(block, pow.MinDifficulty); err != nil {
		t.Fatalf("re-applying rewound block: %v", err)
	}
	reapplied := snapshotState(state)
	if err := state.RewindState(1); err != nil {
		t.Fatalf("RewindState: %v", err)
	}
	if err := state.ProcessNewBlock(block, pow.MinDifficulty); err != nil {
		t.Fatalf("re-applying rewound block: %v", err)
	}
	if snapshotState(state) != reapplied {
		t.Fatal("re-application is not deterministic")
	}
}

func TestRewindUnderflow(t *testing.T) {
	state := NewLedgerState(database.NewMemDB(), nil, nil, nil)
	applyGenesis(t, state)

	err := state.RewindState(state.CheckpointCount() + 1)
	if err == nil {
		t.Fatal("rewinding past the checkpoint stack succeeded")
	}
	if !IsErrorCode(err, ErrCheckpointUnderflow) {
		t.Fatalf("got %v, want ErrCheckpointUnderflow", err)
	}
	// The failed rewind must not have modified anything.
	if state.HeaderCount() != 1 {
		t.Fatalf("HeaderCount = %d after failed rewind, want 1", state.HeaderCount())
	}
}

func TestProcessNewBlockRollsBackPartialInsertions(t *testing.T) {
	genesis := chaincfg.SimnetParams.GenesisBlock
	block := steadyChild(&genesis.Header, "partial")

	// Fail the kernel insertion, after the output insertion has already
	// mutated the output tree.
	kernelStore := &faultyNodeStore{
		NodeStore: mmr.NewMemoryNodeStore(),
		failOn:    block.Kernels[0].LeafHash(),
	}
	state := NewLedgerState(database.NewMemDB(), nil, nil, kernelStore)
	applyGenesis(t, state)
	before := snapshotState(state)

	err := state.ProcessNewBlock(block, pow.MinDifficulty)
	if err == nil {
		t.Fatal("ProcessNewBlock succeeded despite the injected fault")
	}
	if after := snapshotState(state); after != before {
		t.Fatalf("partial insertion leaked: %+v != %+v", after, before)
	}
	if state.CheckpointCount() != 1 {
		t.Fatalf("CheckpointCount = %d after failed apply, want 1",
			state.CheckpointCount())
	}

	// The fault is one-shot, so the same block applies cleanly now.
	if err := state.ProcessNewBlock(block, pow.MinDifficulty); err != nil {
		t.Fatalf("re-applying after fault: %v", err)
	}
}

func TestSaveAndResetChainState(t *testing.T) {
	state := NewLedgerState(database.NewMemDB(), nil, nil, nil)
	applyGenesis(t, state)

	block := steadyChild(state.TipHeader(), "durable")
	if err := state.ProcessNewBlock(block, pow.MinDifficulty); err != nil {
		t.Fatalf("ProcessNewBlock: %v", err)
	}
	if err := state.SaveState(); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	saved := snapshotState(state)

	// Pile uncommitted work on top, then discard it.
	next := steadyChild(state.TipHeader(), "uncommitted")
	if err := state.ProcessNewBlock(next, pow.MinDifficulty); err != nil {
		t.Fatalf("ProcessNewBlock: %v", err)
	}
	if err := state.ResetChainState(); err != nil {
		t.Fatalf("ResetChainState: %v", err)
	}
	if restored := snapshotState(state); restored != saved {
		t.Fatalf("reset did not restore the snapshot: %+v != %+v", restored, saved)
	}

	// The restored state indexes its headers and keeps its checkpoints.
	if _, ok := state.HeightByHash(block.Header.BlockHash()); !ok {
		t.Fatal("restored state lost a committed header")
	}
	if _, ok := state.HeightByHash(next.Header.BlockHash()); ok {
		t.Fatal("restored state kept a discarded header")
	}
	if state.CheckpointCount() != 2 {
		t.Fatalf("CheckpointCount = %d after reset, want 2", state.CheckpointCount())
	}
}

func TestCalcBlockRootsMatchesApplication(t *testing.T) {
	state := NewLedgerState(database.NewMemDB(), nil, nil, nil)
	applyGenesis(t, state)

	block := steadyChild(state.TipHeader(), "roots")
	before := snapshotState(state)
	headerRoot, outputRoot, kernelRoot, err := state.CalcBlockRoots(block)
	if err != nil {
		t.Fatalf("CalcBlockRoots: %v", err)
	}
	// Computing roots must not leave any leaves behind.
	if after := snapshotState(state); after != before {
		t.Fatalf("CalcBlockRoots mutated the state: %+v != %+v", after, before)
	}
	// The header root commits to the ancestors only.
	if headerRoot != before.headerRoot {
		t.Fatalf("predicted header root %s, want pre-application root %s",
			headerRoot, before.headerRoot)
	}

	if err := state.ProcessNewBlock(block, pow.MinDifficulty); err != nil {
		t.Fatalf("ProcessNewBlock: %v", err)
	}
	_, appliedOutputRoot, appliedKernelRoot := state.Roots()
	if outputRoot != appliedOutputRoot {
		t.Fatalf("predicted output root %s, applied root %s",
			outputRoot, appliedOutputRoot)
	}
	if kernelRoot != appliedKernelRoot {
		t.Fatalf("predicted kernel root %s, applied root %s",
			kernelRoot, appliedKernelRoot)
	}
}

func TestCompactCheckpoints(t *testing.T) {
	state := NewLedgerState(database.NewMemDB(), nil, nil, nil)
	applyGenesis(t, state)
	for i := 0; i < 5; i++ {
		block := steadyChild(state.TipHeader(), "compact")
		if err := state.ProcessNewBlock(block, pow.MinDifficulty); err != nil {
			t.Fatalf("ProcessNewBlock %d: %v", i, err)
		}
	}

	state.CompactCheckpoints(3)
	if state.CheckpointCount() != 3 {
		t.Fatalf("CheckpointCount = %d after compaction, want 3",
			state.CheckpointCount())
	}
	// Rewinding within the retained horizon still works.
	if err := state.RewindState(3); err != nil {
		t.Fatalf("RewindState after compaction: %v", err)
	}
	if state.HeaderCount() != 3 {
		t.Fatalf("HeaderCount = %d after rewind, want 3", state.HeaderCount())
	}
	// Rewinding past the compacted horizon fails.
	if err := state.RewindState(1); !IsErrorCode(err, ErrCheckpointUnderflow) {
		t.Fatalf("rewind past compacted horizon: got %v, want ErrCheckpointUnderflow", err)
	}
}
