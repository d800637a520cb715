package mmr

// The merkle mountain range is stored as an implicit binary forest in a flat
// array: leaves are appended in order and every time a subtree gains a
// same-height left sibling, their parent is appended immediately after, the
// way a binary counter carries. All structural queries below are closed-form
// functions of the node index alone.

// isNodeRight returns whether the node at index is the right child of its
// (possibly not yet appended) parent. It repeatedly strips the largest
// complete left-most subtree until the index lands on a known boundary.
func isNodeRight(index uint64) bool {
	for {
		var height uint64
		for index >= (uint64(1)<<(height+2))-2 {
			height++
		}
		heightIndex := (uint64(1) << (height + 1)) - 2
		if index == heightIndex {
			// First peak of this height is always a left child.
			return false
		}
		if index == heightIndex+(uint64(1)<<(height+1))-1 {
			return true
		}
		index = index - heightIndex - 1
	}
}

// nodeHeight returns the height of the node at index; leaves are height 0.
func nodeHeight(index uint64) uint64 {
	for {
		var height uint64
		for index >= (uint64(1)<<(height+2))-2 {
			height++
		}
		heightIndex := (uint64(1) << (height + 1)) - 2
		if index == heightIndex {
			return height
		}
		if index == heightIndex+(uint64(1)<<(height+1))-1 {
			return height
		}
		index = index - heightIndex - 1
	}
}

// siblingIndex returns the index of the sibling of the node at index.
func siblingIndex(index uint64) uint64 {
	height := nodeHeight(index)
	indexCount := (uint64(1) << (height + 1)) - 1
	if isNodeRight(index) {
		return index - indexCount
	}
	return index + indexCount
}

// leafToNodeIndex converts a leaf ordinal (the n-th pushed leaf, counting
// from 0) into its node index, accounting for the parent nodes interleaved
// by completed subtrees.
func leafToNodeIndex(leafIndex uint64) uint64 {
	return leafIndex + leafIndexOffset(leafIndex, 0)
}

func leafIndexOffset(index, offset uint64) uint64 {
	for {
		var height uint64
		for index*2 > (uint64(1)<<(height+2))-2 {
			height++
		}
		if index == 0 || index == 1 {
			return offset
		}
		heightIndex := (uint64(1) << (height + 1)) - 2
		offset += heightIndex / 2
		index = index - heightIndex/2 - 1
	}
}

// peakHeightAndIndex returns the height and node index of the highest
// (left-most) peak for a tree whose last node index is lastIndex.
func peakHeightAndIndex(lastIndex uint64) (height, index uint64) {
	var heightCounter uint64
	candidate := (uint64(1) << (heightCounter + 2)) - 2
	var actualHeightIndex uint64
	for lastIndex >= candidate {
		heightCounter++
		actualHeightIndex = candidate
		candidate = (uint64(1) << (heightCounter + 2)) - 2
	}
	return heightCounter, actualHeightIndex
}

// baggingPeakIndexes returns the node indexes of every peak to the right of
// the main peak, in the deterministic left-to-right (descending height)
// order the root fold consumes them in.
func baggingPeakIndexes(mainHeight, mainIndex, lastIndex uint64) []uint64 {
	var peaks []uint64
	height := int64(mainHeight)
	index := mainIndex
	for {
		newIndex := index + (uint64(1) << (height + 1)) - 1
		for newIndex > lastIndex && height > 0 {
			newIndex -= uint64(1) << height
			height--
		}
		if newIndex > lastIndex || height < 0 {
			return peaks
		}
		peaks = append(peaks, newIndex)
		index = newIndex
	}
}
