package pow

import "math/big"

// lwmaCalculate computes the next target difficulty from an ordered window of
// (timestamp, target difficulty) entries using a linear weighted moving
// average: more recent solve times carry linearly more weight. The entries
// must be ordered oldest to newest; the walk order matters since the weights
// are positional.
//
// Solve times are clamped to [1, maxBlockTime] seconds so that out-of-order
// or stalled timestamps cannot swing the average unboundedly.
func lwmaCalculate(entries []windowEntry, targetTime, maxBlockTime uint64, minDifficulty Difficulty) Difficulty {
	n := len(entries)
	if n <= 1 {
		// Not enough history for even a single solve interval.
		return minDifficulty
	}

	intervals := uint64(n - 1)
	weightedTimes := uint64(0)
	totalTarget := new(big.Int)
	for i := 1; i < n; i++ {
		solveTime := uint64(1)
		if entries[i].timestamp > entries[i-1].timestamp {
			solveTime = entries[i].timestamp - entries[i-1].timestamp
		}
		if solveTime > maxBlockTime {
			solveTime = maxBlockTime
		}
		weightedTimes += solveTime * uint64(i)
		totalTarget.Add(totalTarget, new(big.Int).SetUint64(uint64(entries[i].target)))
	}

	// averageTarget * k / weightedTimes, where k is the weight total
	// intervals*(intervals+1)/2 scaled by the target block time. Done in
	// big.Int since averageTarget*k overflows 64 bits for real windows.
	averageTarget := totalTarget.Div(totalTarget, new(big.Int).SetUint64(intervals))
	k := new(big.Int).SetUint64(intervals * (intervals + 1) / 2 * targetTime)
	next := averageTarget.Mul(averageTarget, k)
	next.Div(next, new(big.Int).SetUint64(weightedTimes))

	if next.Cmp(bigMaxUint64) > 0 {
		return MaxDifficulty
	}
	result := Difficulty(next.Uint64())
	if result < minDifficulty {
		return minDifficulty
	}
	return result
}
