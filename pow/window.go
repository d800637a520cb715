package pow

// windowEntry is one (timestamp, target difficulty) observation in a
// target-difficulty window. Timestamps are unix seconds.
type windowEntry struct {
	timestamp uint64
	target    Difficulty
}

// TargetDifficultyWindow is a sliding window of the most recent (timestamp,
// target difficulty) pairs for a single proof-of-work algorithm. The window
// holds at most blockWindow+1 entries so that blockWindow solve intervals are
// available to the moving average.
//
// The window extends in both directions: AddBack appends at the tip end as
// the chain advances, AddFront prepends while walking further into history
// when seeding from a known tip. The two are mirror operations.
type TargetDifficultyWindow struct {
	entries       []windowEntry // ordered oldest to newest
	blockWindow   int
	targetTime    uint64
	maxBlockTime  uint64
	minDifficulty Difficulty
	maxDifficulty Difficulty
}

// NewTargetDifficultyWindow returns an empty window that retains
// blockWindow+1 entries and computes targets for the given consensus timing
// parameters.
func NewTargetDifficultyWindow(blockWindow int, targetTime, maxBlockTime uint64,
	minDifficulty, maxDifficulty Difficulty) *TargetDifficultyWindow {

	return &TargetDifficultyWindow{
		entries:       make([]windowEntry, 0, blockWindow+1),
		blockWindow:   blockWindow,
		targetTime:    targetTime,
		maxBlockTime:  maxBlockTime,
		minDifficulty: minDifficulty,
		maxDifficulty: maxDifficulty,
	}
}

func (w *TargetDifficultyWindow) capacity() int {
	return w.blockWindow + 1
}

// AddBack appends an entry at the tip end of the window, evicting the oldest
// entry first when the window is at capacity.
func (w *TargetDifficultyWindow) AddBack(timestamp uint64, target Difficulty) {
	if len(w.entries) == w.capacity() {
		copy(w.entries, w.entries[1:])
		w.entries = w.entries[:len(w.entries)-1]
	}
	w.entries = append(w.entries, windowEntry{timestamp: timestamp, target: target})
}

// AddFront prepends an entry at the history end of the window, evicting the
// newest entry first when the window is at capacity. It is the mirror of
// AddBack and is used when walking backward from a tip while seeding.
func (w *TargetDifficultyWindow) AddFront(timestamp uint64, target Difficulty) {
	if len(w.entries) == w.capacity() {
		w.entries = w.entries[:len(w.entries)-1]
	}
	w.entries = append(w.entries, windowEntry{})
	copy(w.entries[1:], w.entries)
	w.entries[0] = windowEntry{timestamp: timestamp, target: target}
}

// Len returns the number of entries currently held.
func (w *TargetDifficultyWindow) Len() int {
	return len(w.entries)
}

// IsFull returns whether the window holds its full blockWindow+1 entries of
// real history, which gates whether Calculate works from a complete window
// rather than a partially seeded one.
func (w *TargetDifficultyWindow) IsFull() bool {
	return len(w.entries) == w.capacity()
}

// Timestamps returns the window's timestamps, oldest to newest. The slice is
// a copy and safe to retain.
func (w *TargetDifficultyWindow) Timestamps() []uint64 {
	timestamps := make([]uint64, len(w.entries))
	for i, entry := range w.entries {
		timestamps[i] = entry.timestamp
	}
	return timestamps
}

// Calculate computes the next target difficulty from the most recent
// blockWindow+1 entries via the linear weighted moving average, clamped to
// the window's [min, max] difficulty bounds.
func (w *TargetDifficultyWindow) Calculate() Difficulty {
	// Walk backward from the end so only the blockWindow most recent solve
	// intervals feed the average, then hand them to the accumulator oldest
	// to newest. LWMA weights are positional, so this order is consensus
	// critical.
	start := 0
	if len(w.entries) > w.capacity() {
		start = len(w.entries) - w.capacity()
	}
	target := lwmaCalculate(w.entries[start:], w.targetTime, w.maxBlockTime, w.minDifficulty)
	if target < w.minDifficulty {
		target = w.minDifficulty
	}
	if target > w.maxDifficulty {
		target = w.maxDifficulty
	}
	return target
}

// TargetDifficulties tracks one TargetDifficultyWindow per proof-of-work
// algorithm. A block mined with one algorithm never perturbs the other
// algorithm's window.
type TargetDifficulties struct {
	blake *TargetDifficultyWindow
	sha3  *TargetDifficultyWindow
}

// NewTargetDifficulties returns per-algorithm windows sharing the same
// consensus parameters.
func NewTargetDifficulties(blockWindow int, targetTime, maxBlockTime uint64,
	minDifficulty, maxDifficulty Difficulty) *TargetDifficulties {

	return &TargetDifficulties{
		blake: NewTargetDifficultyWindow(blockWindow, targetTime, maxBlockTime, minDifficulty, maxDifficulty),
		sha3:  NewTargetDifficultyWindow(blockWindow, targetTime, maxBlockTime, minDifficulty, maxDifficulty),
	}
}

// Window returns the window tracking the given algorithm.
func (t *TargetDifficulties) Window(algo Algorithm) *TargetDifficultyWindow {
	if algo == Sha3 {
		return t.sha3
	}
	return t.blake
}

// AddBack appends an entry at the tip end of the algorithm's window.
func (t *TargetDifficulties) AddBack(algo Algorithm, timestamp uint64, target Difficulty) {
	t.Window(algo).AddBack(timestamp, target)
}

// AddFront prepends an entry at the history end of the algorithm's window.
func (t *TargetDifficulties) AddFront(algo Algorithm, timestamp uint64, target Difficulty) {
	t.Window(algo).AddFront(timestamp, target)
}

// Len returns the number of entries held for the algorithm.
func (t *TargetDifficulties) Len(algo Algorithm) int {
	return t.Window(algo).Len()
}

// IsFull returns whether the algorithm's window is at capacity.
func (t *TargetDifficulties) IsFull(algo Algorithm) bool {
	return t.Window(algo).IsFull()
}

// AllFull returns whether every algorithm's window is at capacity.
func (t *TargetDifficulties) AllFull() bool {
	for _, algo := range Algorithms {
		if !t.Window(algo).IsFull() {
			return false
		}
	}
	return true
}

// Calculate computes the next target difficulty for the algorithm.
func (t *TargetDifficulties) Calculate(algo Algorithm) Difficulty {
	window := t.Window(algo)
	target := window.Calculate()
	log.Tracef("Calculated next %s target difficulty %s from %d window entries",
		algo, target, window.Len())
	return target
}
