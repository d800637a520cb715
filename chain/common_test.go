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
	"github.com/emberchain/emberd/util/chainhash"
)

// fakeTimeSource returns a fixed time, so future-timestamp checks behave
// deterministically in tests.
type fakeTimeSource struct {
	now time.Time
}

func (f *fakeTimeSource) Now() time.Time {
	return f.now
}

// testTimeSource returns a clock set far enough past the simnet genesis
// that no test block trips the future-timestamp check.
func testTimeSource() *fakeTimeSource {
	genesisTime := chaincfg.SimnetParams.GenesisBlock.Header.Timestamp
	return &fakeTimeSource{now: time.Unix(genesisTime+1000000, 0)}
}

// newTestChain creates a chain on the simulation network backed by an
// in-memory database.
func newTestChain(t *testing.T) *Chain {
	t.Helper()
	c, err := New(&Config{
		Params:     &chaincfg.SimnetParams,
		DB:         database.NewMemDB(),
		TimeSource: testTimeSource(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// childBlock builds a block extending parent with a one-output, one-kernel
// body derived from tag. The commitment roots carried by the header are
// not contextually verified by header validation, so the output root
// doubles as a disambiguator to keep blocks with equal heights and
// timestamps from colliding. The claimed accumulated difficulty is the
// parent's total plus target.
func childBlock(parent *blocks.BlockHeader, tag string, timestamp int64,
	target pow.Difficulty) *blocks.Block {

	return &blocks.Block{
		Header: blocks.BlockHeader{
			Version:    1,
			Height:     parent.Height + 1,
			PrevBlock:  parent.BlockHash(),
			Timestamp:  timestamp,
			OutputRoot: chainhash.HashH([]byte(tag)),
			PoW: pow.ProofOfWork{
				Algorithm:             pow.Blake,
				AccumulatedDifficulty: parent.PoW.AccumulatedDifficulty + target,
			},
		},
		Outputs: []*blocks.TxOutput{{
			Commitment: chainhash.HashH([]byte(tag + "/output")),
		}},
		Kernels: []*blocks.TxKernel{{
			Fee:    uint64(parent.Height + 1),
			Excess: chainhash.HashH([]byte(tag + "/kernel")),
		}},
	}
}

// steadyChild builds a block extending parent at exactly the target block
// interval. Equal spacing keeps the LWMA target at the minimum difficulty,
// which every proof-of-work digest achieves, so no nonce search is needed.
func steadyChild(parent *blocks.BlockHeader, tag string) *blocks.Block {
	interval := int64(chaincfg.SimnetParams.TargetTimePerBlock / time.Second)
	return childBlock(parent, tag, parent.Timestamp+interval, pow.MinDifficulty)
}

// extendChain mines count steady blocks on the current tip, failing the
// test if any is not accepted as a direct extension.
func extendChain(t *testing.T, c *Chain, count int, tagPrefix string) {
	t.Helper()
	for i := 0; i < count; i++ {
		block := steadyChild(c.TipHeader(), tagPrefix+string(rune('a'+i)))
		result, err := c.ProcessBlock(block)
		if err != nil {
			t.Fatalf("ProcessBlock %s block %d: %v", tagPrefix, i+1, err)
		}
		if result != ResultExtended {
			t.Fatalf("ProcessBlock %s block %d = %s, want %s",
				tagPrefix, i+1, result, ResultExtended)
		}
	}
}

// solveHeader searches for a nonce whose digest achieves at least target.
func solveHeader(header *blocks.BlockHeader, target pow.Difficulty) {
	for nonce := uint64(0); ; nonce++ {
		header.Nonce = nonce
		powHash := header.PowHash()
		if pow.DifficultyFromHash(&powHash) >= target {
			return
		}
	}
}

// weakenHeader searches for a nonce whose digest achieves less than target.
func weakenHeader(header *blocks.BlockHeader, target pow.Difficulty) {
	for nonce := uint64(0); ; nonce++ {
		header.Nonce = nonce
		powHash := header.PowHash()
		if pow.DifficultyFromHash(&powHash) < target {
			return
		}
	}
}

// faultyNodeStore wraps a NodeStore and fails exactly one Append: the
// first one called with failOn. A one-shot trip keeps snapshot restores
// from re-triggering the same fault.
type faultyNodeStore struct {
	mmr.NodeStore
	failOn  chainhash.Hash
	tripped bool
}

func (s *faultyNodeStore) Append(hash chainhash.Hash) error {
	if !s.tripped && hash == s.failOn {
		s.tripped = true
		return errInjectedFault
	}
	return s.NodeStore.Append(hash)
}

var errInjectedFault = errors.New("injected storage failure")
