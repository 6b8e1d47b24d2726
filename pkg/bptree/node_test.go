package bptree

import "testing"

func intCmp(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func TestNodeIndexInsertAndDelete(t *testing.T) {
	n := newNode[int, string](leafNode, 3)
	n.indexInsert(0, entry[int, string]{key: 2, value: "two"})
	n.indexInsert(0, entry[int, string]{key: 1, value: "one"})
	n.indexInsert(2, entry[int, string]{key: 3, value: "three"})

	if n.count != 3 {
		t.Fatalf("expected count 3, got %d", n.count)
	}
	for i, want := range []int{1, 2, 3} {
		if n.entries[i].key != want {
			t.Fatalf("entries[%d].key = %d, want %d", i, n.entries[i].key, want)
		}
	}

	n.deleteIndex(1)
	if n.count != 2 {
		t.Fatalf("expected count 2 after delete, got %d", n.count)
	}
	if n.entries[0].key != 1 || n.entries[1].key != 3 {
		t.Fatalf("unexpected entries after delete: %v, %v", n.entries[0].key, n.entries[1].key)
	}
}

func TestNodeSearchRange(t *testing.T) {
	n := newNode[int, string](leafNode, 5)
	for i, k := range []int{10, 20, 30, 40} {
		n.entries[i] = entry[int, string]{key: k, value: "v"}
	}
	n.count = 4

	idx, sign := n.searchRange(25, intCmp)
	if idx != 1 || sign != 1 {
		t.Fatalf("searchRange(25) = (%d, %d), want (1, 1)", idx, sign)
	}

	idx, sign = n.searchRange(20, intCmp)
	if idx != 1 || sign != 0 {
		t.Fatalf("searchRange(20) = (%d, %d), want (1, 0)", idx, sign)
	}

	idx, sign = n.searchRange(5, intCmp)
	if idx != -1 {
		t.Fatalf("searchRange(5) = (%d, %d), want index -1", idx, sign)
	}
}

func TestNodeChildIndexSlotZeroIsMinusInfinity(t *testing.T) {
	n := newNode[int, string](internalNode, 5)
	n.entries[0] = entry[int, string]{child: newNode[int, string](leafNode, 5)}
	n.entries[1] = entry[int, string]{key: 10, child: newNode[int, string](leafNode, 5)}
	n.entries[2] = entry[int, string]{key: 20, child: newNode[int, string](leafNode, 5)}
	n.count = 3

	if idx := n.childIndex(5, intCmp); idx != 0 {
		t.Fatalf("childIndex(5) = %d, want 0", idx)
	}
	if idx := n.childIndex(10, intCmp); idx != 1 {
		t.Fatalf("childIndex(10) = %d, want 1", idx)
	}
	if idx := n.childIndex(25, intCmp); idx != 2 {
		t.Fatalf("childIndex(25) = %d, want 2", idx)
	}
}

func TestNodeSafetyPredicates(t *testing.T) {
	n := newNode[int, string](leafNode, 4) // k=4, ceilHalf=2
	n.count = 1
	if n.canSafelyDelete() {
		t.Fatal("count 1 should not be safely deletable at k=4")
	}
	n.count = 3
	if !n.canSafelyDelete() {
		t.Fatal("count 3 should be safely deletable at k=4")
	}
	if !n.canSafelyInsert() {
		t.Fatal("count 3 should be safely insertable at k=4")
	}
	n.count = 4
	if n.canSafelyInsert() {
		t.Fatal("count 4 should not be safely insertable at k=4")
	}
	n.count = 5
	if !n.canSplit() {
		t.Fatal("count 5 should require a split at k=4")
	}
}

func TestNodeMinKey(t *testing.T) {
	leaf := newNode[int, string](leafNode, 3)
	leaf.entries[0] = entry[int, string]{key: 7, value: "seven"}
	leaf.count = 1
	if leaf.minKey() != 7 {
		t.Fatalf("leaf.minKey() = %d, want 7", leaf.minKey())
	}

	internal := newNode[int, string](internalNode, 3)
	internal.entries[0] = entry[int, string]{child: leaf}
	internal.entries[1] = entry[int, string]{key: 15, child: newNode[int, string](leafNode, 3)}
	internal.count = 2
	if internal.minKey() != 15 {
		t.Fatalf("internal.minKey() = %d, want 15", internal.minKey())
	}
}
