package mmr

import (
	"testing"
)

func TestIsNodeRight(t *testing.T) {
	rights := map[uint64]bool{
		0: false, 1: true, 2: false, 3: false, 4: true, 5: true,
		6: false, 7: false, 8: true, 9: false, 10: false, 11: true,
		12: true, 13: true, 14: false, 15: false, 16: true,
	}
	for index, want := range rights {
		if got := isNodeRight(index); got != want {
			t.Errorf("isNodeRight(%d) = %t, want %t", index, got, want)
		}
	}
}

func TestNodeHeight(t *testing.T) {
	heights := map[uint64]uint64{
		0: 0, 1: 0, 2: 1, 3: 0, 4: 0, 5: 1, 6: 2,
		7: 0, 8: 0, 9: 1, 10: 0, 11: 0, 12: 1, 13: 2, 14: 3,
		15: 0, 16: 0, 17: 1,
	}
	for index, want := range heights {
		if got := nodeHeight(index); got != want {
			t.Errorf("nodeHeight(%d) = %d, want %d", index, got, want)
		}
	}
}

func TestSiblingIndex(t *testing.T) {
	siblings := map[uint64]uint64{
		0: 1, 1: 0, 3: 4, 4: 3, 2: 5, 5: 2,
		7: 8, 8: 7, 9: 12, 12: 9, 6: 13, 13: 6,
		10: 11, 11: 10, 15: 16, 16: 15,
	}
	for index, want := range siblings {
		if got := siblingIndex(index); got != want {
			t.Errorf("siblingIndex(%d) = %d, want %d", index, got, want)
		}
	}
}

func TestLeafToNodeIndex(t *testing.T) {
	nodeIndexes := []uint64{0, 1, 3, 4, 7, 8, 10, 11, 15}
	for leafIndex, want := range nodeIndexes {
		if got := leafToNodeIndex(uint64(leafIndex)); got != want {
			t.Errorf("leafToNodeIndex(%d) = %d, want %d", leafIndex, got, want)
		}
	}
}

func TestPeakIndexes(t *testing.T) {
	tests := []struct {
		lastIndex uint64
		main      uint64
		bagging   []uint64
	}{
		{lastIndex: 0, main: 0, bagging: nil},
		{lastIndex: 2, main: 2, bagging: nil},
		{lastIndex: 3, main: 2, bagging: []uint64{3}},
		{lastIndex: 6, main: 6, bagging: nil},
		{lastIndex: 7, main: 6, bagging: []uint64{7}},
		{lastIndex: 9, main: 6, bagging: []uint64{9}},
		{lastIndex: 10, main: 6, bagging: []uint64{9, 10}},
		{lastIndex: 14, main: 14, bagging: nil},
		{lastIndex: 17, main: 14, bagging: []uint64{17}},
	}
	for _, test := range tests {
		mainHeight, mainIndex := peakHeightAndIndex(test.lastIndex)
		if mainIndex != test.main {
			t.Errorf("peakHeightAndIndex(%d) index = %d, want %d",
				test.lastIndex, mainIndex, test.main)
			continue
		}
		bagging := baggingPeakIndexes(mainHeight, mainIndex, test.lastIndex)
		if len(bagging) != len(test.bagging) {
			t.Errorf("baggingPeakIndexes for lastIndex %d = %v, want %v",
				test.lastIndex, bagging, test.bagging)
			continue
		}
		for i := range bagging {
			if bagging[i] != test.bagging[i] {
				t.Errorf("baggingPeakIndexes for lastIndex %d = %v, want %v",
					test.lastIndex, bagging, test.bagging)
				break
			}
		}
	}
}
