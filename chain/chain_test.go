package chain

import (
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/emberchain/emberd/blocks"
	"github.com/emberchain/emberd/chaincfg"
	"github.com/emberchain/emberd/database"
	"github.com/emberchain/emberd/mmr"
	"github.com/emberchain/emberd/pow"
)

func TestChainExtendsLinearly(t *testing.T) {
	c := newTestChain(t)
	extendChain(t, c, 5, "main")

	if c.TipHeight() != 5 {
		t.Fatalf("TipHeight = %d, want 5", c.TipHeight())
	}
	// Genesis contributes 1 and each block adds its target of 1.
	if c.CurrentTotalPow() != 6 {
		t.Fatalf("CurrentTotalPow = %s, want 6", c.CurrentTotalPow())
	}
	if c.OrphanCount() != 0 {
		t.Fatalf("OrphanCount = %d, want 0", c.OrphanCount())
	}
}

func TestDuplicateSubmissions(t *testing.T) {
	c := newTestChain(t)
	block := steadyChild(c.TipHeader(), "dup")
	if _, err := c.ProcessBlock(block); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}

	// A committed block is rejected idempotently.
	if _, err := c.ProcessBlock(block); !IsErrorCode(err, ErrDuplicateBlock) {
		t.Fatalf("resubmitting a committed block: got %v, want ErrDuplicateBlock", err)
	}

	// So is a buffered orphan.
	orphan := childBlock(&block.Header, "dup-orphan",
		block.Header.Timestamp+240, pow.MinDifficulty)
	orphan.Header.Height += 5 // disconnect it from the tip
	orphan.Header.PrevBlock[0] ^= 0xff
	if result, err := c.ProcessBlock(orphan); err != nil || result != ResultOrphaned {
		t.Fatalf("submitting orphan: result %s, err %v", result, err)
	}
	if _, err := c.ProcessBlock(orphan); !IsErrorCode(err, ErrDuplicateBlock) {
		t.Fatalf("resubmitting an orphan: got %v, want ErrDuplicateBlock", err)
	}
}

func TestRejectsTimestampTooFarInFuture(t *testing.T) {
	genesisTime := chaincfg.SimnetParams.GenesisBlock.Header.Timestamp
	c, err := New(&Config{
		Params:     &chaincfg.SimnetParams,
		DB:         database.NewMemDB(),
		TimeSource: &fakeTimeSource{now: time.Unix(genesisTime, 0)},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	block := childBlock(c.TipHeader(), "future", genesisTime+600, pow.MinDifficulty)
	if _, err := c.ProcessBlock(block); !IsErrorCode(err, ErrTimestampTooFarInFuture) {
		t.Fatalf("got %v, want ErrTimestampTooFarInFuture", err)
	}
	if c.TipHeight() != 0 {
		t.Fatalf("TipHeight = %d after rejection, want 0", c.TipHeight())
	}
}

func TestRejectsTimestampNotAboveMedian(t *testing.T) {
	c := newTestChain(t)
	extendChain(t, c, 4, "median")

	// With a window of 3 ancestors the median is the middle timestamp;
	// a candidate at exactly the median must be rejected.
	tip := c.TipHeader()
	median := tip.Timestamp - int64(chaincfg.SimnetParams.TargetTimePerBlock/time.Second)
	block := childBlock(tip, "median-stale", median, pow.MinDifficulty)
	if _, err := c.ProcessBlock(block); !IsErrorCode(err, ErrTimestampTooOld) {
		t.Fatalf("got %v, want ErrTimestampTooOld", err)
	}
	if c.TipHeight() != 4 {
		t.Fatalf("TipHeight = %d after rejection, want 4", c.TipHeight())
	}
}

func TestRejectsWrongAccumulatedDifficulty(t *testing.T) {
	c := newTestChain(t)
	block := steadyChild(c.TipHeader(), "greedy")
	block.Header.PoW.AccumulatedDifficulty += 1
	if _, err := c.ProcessBlock(block); !IsErrorCode(err, ErrDifficultyMismatch) {
		t.Fatalf("got %v, want ErrDifficultyMismatch", err)
	}
}

func TestRejectsInsufficientProofOfWork(t *testing.T) {
	c := newTestChain(t)
	extendChain(t, c, 9, "steady")

	// Mine a burst of one-second blocks so the LWMA pushes the target
	// above the minimum every digest trivially achieves.
	interval := int64(1)
	for i := 0; i < 20 && c.NextRequiredDifficulty(pow.Blake) < 2; i++ {
		tip := c.TipHeader()
		target := c.NextRequiredDifficulty(pow.Blake)
		block := childBlock(tip, "fast"+string(rune('a'+i)),
			tip.Timestamp+interval, target)
		solveHeader(&block.Header, target)
		if _, err := c.ProcessBlock(block); err != nil {
			t.Fatalf("fast block %d: %v", i, err)
		}
	}
	target := c.NextRequiredDifficulty(pow.Blake)
	if target < 2 {
		t.Fatalf("target difficulty did not rise above the minimum: %s", target)
	}

	tip := c.TipHeader()
	block := childBlock(tip, "weak", tip.Timestamp+interval, target)
	weakenHeader(&block.Header, target)
	if _, err := c.ProcessBlock(block); !IsErrorCode(err, ErrDifficultyTooLow) {
		t.Fatalf("got %v, want ErrDifficultyTooLow", err)
	}
}

func TestWeakerForkStaysBuffered(t *testing.T) {
	c := newTestChain(t)
	extendChain(t, c, 5, "main")
	tipBefore := c.TipHeader().BlockHash()

	// A three-block fork off genesis carries total work 4 against the
	// tip's 6. It buffers without displacing anything, in any order.
	genesis := &chaincfg.SimnetParams.GenesisBlock.Header
	fork1 := steadyChild(genesis, "weak-fork-1")
	fork2 := steadyChild(&fork1.Header, "weak-fork-2")
	fork3 := steadyChild(&fork2.Header, "weak-fork-3")
	for i, block := range []*blocks.Block{fork3, fork1, fork2} {
		result, err := c.ProcessBlock(block)
		if err != nil {
			t.Fatalf("fork block %d: %v", i, err)
		}
		if result != ResultOrphaned {
			t.Fatalf("fork block %d = %s, want %s", i, result, ResultOrphaned)
		}
	}

	if c.TipHeader().BlockHash() != tipBefore {
		t.Fatal("weaker fork displaced the canonical tip")
	}
	if c.CurrentTotalPow() != 6 {
		t.Fatalf("CurrentTotalPow = %s, want 6", c.CurrentTotalPow())
	}
	if c.OrphanCount() != 3 {
		t.Fatalf("OrphanCount = %d, want 3", c.OrphanCount())
	}
}

// buildAltChain builds a four-block alternate branch on top of the block
// at height 2 of the given chain, timestamped at the steady interval.
func buildAltChain(t *testing.T, c *Chain) []*blocks.Block {
	t.Helper()
	forkParent, _, err := c.state.HeaderByHeight(2)
	if err != nil {
		t.Fatalf("HeaderByHeight: %v", err)
	}
	alt3 := steadyChild(forkParent, "alt-3")
	alt4 := steadyChild(&alt3.Header, "alt-4")
	alt5 := steadyChild(&alt4.Header, "alt-5")
	alt6 := steadyChild(&alt5.Header, "alt-6")
	return []*blocks.Block{alt3, alt4, alt5, alt6}
}

func TestReorgAdoptsStrongerChain(t *testing.T) {
	c := newTestChain(t)
	extendChain(t, c, 5, "main")
	altChain := buildAltChain(t, c)
	alt3, alt4, alt5, alt6 := altChain[0], altChain[1], altChain[2], altChain[3]

	// The strongest alternate block arrives first, disconnected from
	// everything: buffered, no reorg possible yet.
	result, err := c.ProcessBlock(alt6)
	if err != nil || result != ResultOrphaned {
		t.Fatalf("alt6: result %s, err %v", result, err)
	}

	// Ancestors trickle in out of order. The chain stays on the original
	// tip until the connecting block completes the orphan chain.
	for _, block := range []*blocks.Block{alt3, alt4} {
		result, err := c.ProcessBlock(block)
		if err != nil || result != ResultOrphaned {
			t.Fatalf("alt ancestor: result %s, err %v", result, err)
		}
		if c.TipHeight() != 5 {
			t.Fatalf("TipHeight = %d before reorg, want 5", c.TipHeight())
		}
	}

	result, err = c.ProcessBlock(alt5)
	if err != nil {
		t.Fatalf("alt5: %v", err)
	}
	if result != ResultReorgApplied {
		t.Fatalf("alt5 = %s, want %s", result, ResultReorgApplied)
	}
	if c.TipHeight() != 6 {
		t.Fatalf("TipHeight = %d after reorg, want 6", c.TipHeight())
	}
	if c.CurrentTotalPow() != 7 {
		t.Fatalf("CurrentTotalPow = %s, want 7", c.CurrentTotalPow())
	}
	if c.TipHeader().BlockHash() != alt6.Header.BlockHash() {
		t.Fatal("tip is not the alternate chain's tip")
	}
	if c.OrphanCount() != 0 {
		t.Fatalf("OrphanCount = %d after reorg, want 0", c.OrphanCount())
	}

	// The reorged state must be indistinguishable from a chain that only
	// ever saw the winning history.
	reference := newTestChain(t)
	extendChain(t, reference, 2, "main")
	for _, block := range altChain {
		if _, err := reference.ProcessBlock(block); err != nil {
			t.Fatalf("reference chain: %v", err)
		}
	}
	refHeaderRoot, refOutputRoot, refKernelRoot := reference.Roots()
	headerRoot, outputRoot, kernelRoot := c.Roots()
	if headerRoot != refHeaderRoot || outputRoot != refOutputRoot ||
		kernelRoot != refKernelRoot {
		t.Fatal("reorged roots differ from the independently built chain")
	}
}

func TestReorgAtomicity(t *testing.T) {
	altChainProbe := func() []*blocks.Block {
		probe := newTestChain(t)
		extendChain(t, probe, 5, "main")
		return buildAltChain(t, probe)
	}()
	alt6 := altChainProbe[3]

	// Fail the output-tree insertion of the reorg's final block.
	outputStore := &faultyNodeStore{
		NodeStore: mmr.NewMemoryNodeStore(),
		failOn:    alt6.Outputs[0].LeafHash(),
	}
	c, err := New(&Config{
		Params:      &chaincfg.SimnetParams,
		DB:          database.NewMemDB(),
		TimeSource:  testTimeSource(),
		OutputStore: outputStore,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	extendChain(t, c, 5, "main")
	altChain := buildAltChain(t, c)

	// Buffer everything below the alternate tip; none of it carries
	// enough work to trigger a reorg on its own.
	for _, block := range altChain[:3] {
		if result, err := c.ProcessBlock(block); err != nil || result != ResultOrphaned {
			t.Fatalf("buffering alt block: result %s, err %v", result, err)
		}
	}

	tipBefore := c.TipHeader().BlockHash()
	headerRootBefore, outputRootBefore, kernelRootBefore := c.Roots()

	// Submitting the tip triggers the reorg, which must die on the
	// injected fault and leave the canonical state untouched.
	_, err = c.ProcessBlock(altChain[3])
	if !errors.Is(err, errInjectedFault) {
		t.Fatalf("got %v, want the injected fault", err)
	}
	if c.TipHeader().BlockHash() != tipBefore {
		t.Fatal("failed reorg moved the tip")
	}
	if c.TipHeight() != 5 {
		t.Fatalf("TipHeight = %d after failed reorg, want 5", c.TipHeight())
	}
	if c.CurrentTotalPow() != 6 {
		t.Fatalf("CurrentTotalPow = %s after failed reorg, want 6", c.CurrentTotalPow())
	}
	headerRoot, outputRoot, kernelRoot := c.Roots()
	if headerRoot != headerRootBefore || outputRoot != outputRootBefore ||
		kernelRoot != kernelRootBefore {
		t.Fatal("failed reorg leaked partial state into the roots")
	}

	// The orphans stay buffered; once the fault clears, a new arrival
	// retries the reorg and it goes through.
	if c.OrphanCount() != 4 {
		t.Fatalf("OrphanCount = %d after failed reorg, want 4", c.OrphanCount())
	}
	alt7 := steadyChild(&altChain[3].Header, "alt-7")
	result, err := c.ProcessBlock(alt7)
	if err != nil {
		t.Fatalf("alt7: %v", err)
	}
	if result != ResultReorgApplied {
		t.Fatalf("alt7 = %s, want %s", result, ResultReorgApplied)
	}
	if c.TipHeight() != 7 {
		t.Fatalf("TipHeight = %d after retried reorg, want 7", c.TipHeight())
	}
}

func TestChainRestoresFromDatabase(t *testing.T) {
	db := database.NewMemDB()
	c, err := New(&Config{
		Params:     &chaincfg.SimnetParams,
		DB:         db,
		TimeSource: testTimeSource(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	extendChain(t, c, 3, "persist")
	headerRoot, outputRoot, kernelRoot := c.Roots()

	restored, err := New(&Config{
		Params:     &chaincfg.SimnetParams,
		DB:         db,
		TimeSource: testTimeSource(),
	})
	if err != nil {
		t.Fatalf("New on an existing database: %v", err)
	}
	if restored.TipHeight() != 3 {
		t.Fatalf("restored TipHeight = %d, want 3", restored.TipHeight())
	}
	if restored.CurrentTotalPow() != c.CurrentTotalPow() {
		t.Fatalf("restored CurrentTotalPow = %s, want %s",
			restored.CurrentTotalPow(), c.CurrentTotalPow())
	}
	rHeaderRoot, rOutputRoot, rKernelRoot := restored.Roots()
	if rHeaderRoot != headerRoot || rOutputRoot != outputRoot ||
		rKernelRoot != kernelRoot {
		t.Fatal("restored roots differ from the original chain")
	}

	// The restored chain keeps extending from where it left off.
	extendChain(t, restored, 1, "resume")

	// A database holding another network's chain is refused.
	if _, err := New(&Config{
		Params:     &chaincfg.MainnetParams,
		DB:         db,
		TimeSource: testTimeSource(),
	}); err == nil {
		t.Fatal("New accepted a database from another network")
	}
}
