package chain

import (
	"fmt"
	"sort"
	"time"

	"github.com/emberchain/emberd/blocks"
	"github.com/emberchain/emberd/chaincfg"
	"github.com/emberchain/emberd/pow"
)

// ValidatedHeader is a header that passed all contextual checks, enriched
// with the target difficulty the chain demanded of it and the difficulty
// its proof of work actually achieved. Carrying both lets the fork-choice
// logic update accumulated work without recomputation.
type ValidatedHeader struct {
	Header   *blocks.BlockHeader
	Target   pow.Difficulty
	Achieved pow.Difficulty
}

// checkTimestampNotTooFarInFuture rejects headers whose timestamp exceeds
// the node's clock by more than the consensus tolerance.
func checkTimestampNotTooFarInFuture(header *blocks.BlockHeader,
	timeSource TimeSource, params *chaincfg.Params) error {

	maxTimestamp := timeSource.Now().Add(params.MaxBlockTimeFuture).Unix()
	if header.Timestamp > maxTimestamp {
		str := fmt.Sprintf("block timestamp of %s is too far in the future",
			time.Unix(header.Timestamp, 0))
		return ruleError(ErrTimestampTooFarInFuture, str)
	}
	return nil
}

// checkTimestampGreaterThanMedian rejects headers whose timestamp is not
// strictly greater than the median timestamp of their recent ancestors.
// This defends against timestamp manipulation that would otherwise bias
// difficulty retargeting.
func checkTimestampGreaterThanMedian(header *blocks.BlockHeader,
	state *LedgerState, params *chaincfg.Params) error {

	timestamps := state.TipTimestamps(params.MedianTimestampWindow)
	if len(timestamps) == 0 {
		return nil
	}
	sort.Slice(timestamps, func(i, j int) bool {
		return timestamps[i] < timestamps[j]
	})
	median := timestamps[len(timestamps)/2]
	if header.Timestamp <= median {
		str := fmt.Sprintf("block timestamp of %s is not after the median "+
			"ancestor timestamp of %s",
			time.Unix(header.Timestamp, 0), time.Unix(median, 0))
		return ruleError(ErrTimestampTooOld, str)
	}
	return nil
}

// checkProofOfWork verifies that the header's proof-of-work hash achieves
// at least the required target difficulty.
func checkProofOfWork(header *blocks.BlockHeader, target pow.Difficulty) (pow.Difficulty, error) {
	powHash := header.PowHash()
	achieved := pow.DifficultyFromHash(&powHash)
	if achieved < target {
		str := fmt.Sprintf("block difficulty of %s is less than the "+
			"required target of %s", achieved, target)
		return 0, ruleError(ErrDifficultyTooLow, str)
	}
	return achieved, nil
}

// checkAccumulatedDifficulty verifies the header's claimed accumulated
// difficulty against the parent chain's total plus this block's verified
// target. Accumulating the target rather than the achieved difficulty
// keeps the total independent of how lucky each solve happened to be.
func checkAccumulatedDifficulty(header *blocks.BlockHeader,
	parentTotal, target pow.Difficulty) error {

	expected := parentTotal + target
	if header.PoW.AccumulatedDifficulty != expected {
		str := fmt.Sprintf("block claims accumulated difficulty %s, "+
			"expected %s", header.PoW.AccumulatedDifficulty, expected)
		return ruleError(ErrDifficultyMismatch, str)
	}
	return nil
}

// validateHeader runs every contextual check against a header that is
// about to extend the current tip, short-circuiting on the first failure.
// The checks use the committed chain as context, so the caller must only
// invoke this when the header's parent is the current tip.
func validateHeader(header *blocks.BlockHeader, state *LedgerState,
	params *chaincfg.Params, timeSource TimeSource) (*ValidatedHeader, error) {

	if err := checkTimestampNotTooFarInFuture(header, timeSource, params); err != nil {
		return nil, err
	}
	if err := checkTimestampGreaterThanMedian(header, state, params); err != nil {
		return nil, err
	}

	target := NextRequiredDifficulty(state, params, header.PoW.Algorithm)
	achieved, err := checkProofOfWork(header, target)
	if err != nil {
		return nil, err
	}

	var parentTotal pow.Difficulty
	if tip := state.TipHeader(); tip != nil {
		parentTotal = tip.PoW.AccumulatedDifficulty
	}
	if err := checkAccumulatedDifficulty(header, parentTotal, target); err != nil {
		return nil, err
	}

	return &ValidatedHeader{Header: header, Target: target, Achieved: achieved}, nil
}
