package chain

import (
	"time"

	"github.com/emberchain/emberd/chaincfg"
	"github.com/emberchain/emberd/pow"
)

// seedDifficultyWindows builds per-algorithm target-difficulty windows for
// the next block by walking the committed chain backward from the tip and
// prepending each header into its algorithm's window until every window is
// full or genesis is reached. The backward walk with AddFront reproduces
// exactly the windows forward extension would have produced with AddBack.
func seedDifficultyWindows(state *LedgerState, params *chaincfg.Params) *pow.TargetDifficulties {
	windows := pow.NewTargetDifficulties(
		params.DifficultyBlockWindow,
		uint64(params.TargetTimePerBlock/time.Second),
		uint64(params.MaxTimePerBlock/time.Second),
		params.MinDifficulty,
		params.MaxDifficulty,
	)
	for height := int64(state.HeaderCount()) - 1; height >= 0; height-- {
		if windows.AllFull() {
			break
		}
		header, target, err := state.HeaderByHeight(uint64(height))
		if err != nil {
			// Heights below HeaderCount always resolve.
			panic(err)
		}
		algo := header.PoW.Algorithm
		if windows.IsFull(algo) {
			continue
		}
		windows.AddFront(algo, uint64(header.Timestamp), target)
	}
	return windows
}

// NextRequiredDifficulty returns the target difficulty the next block must
// meet if mined with the given algorithm, based on the committed chain.
func NextRequiredDifficulty(state *LedgerState, params *chaincfg.Params,
	algo pow.Algorithm) pow.Difficulty {

	target := seedDifficultyWindows(state, params).Calculate(algo)
	if target < params.MinDifficulty {
		target = params.MinDifficulty
	}
	if target > params.MaxDifficulty {
		target = params.MaxDifficulty
	}
	return target
}
