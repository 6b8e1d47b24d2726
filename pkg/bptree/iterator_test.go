package bptree

import "testing"

func seedTree(t *testing.T, k int, keys []int) *Tree[int, int] {
	t.Helper()
	tree, err := New[int, int](k, intCmp)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, key := range keys {
		if _, err := tree.TryAdd(key, key*10, -1); err != nil {
			t.Fatalf("TryAdd(%d): %v", key, err)
		}
	}
	return tree
}

func drain[K any, V any](t *testing.T, it *Iterator[K, V]) []K {
	t.Helper()
	var keys []K
	for {
		item, ok := it.Next()
		if !ok {
			break
		}
		keys = append(keys, item.Key)
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	return keys
}

func TestIterForward(t *testing.T) {
	tree := seedTree(t, 3, []int{5, 1, 9, 3, 7, 2, 8, 4, 6})
	it, err := tree.Iter(-1)
	if err != nil {
		t.Fatalf("Iter: %v", err)
	}
	got := drain[int, int](t, it)
	want := []int{1, 2, 3, 4, 5, 6, 7, 8, 9}
	if !equalSlices(got, want) {
		t.Fatalf("Iter() = %v, want %v", got, want)
	}
}

func TestIterReversed(t *testing.T) {
	tree := seedTree(t, 3, []int{5, 1, 9, 3, 7, 2, 8, 4, 6})
	it, err := tree.IterReversed(-1)
	if err != nil {
		t.Fatalf("IterReversed: %v", err)
	}
	got := drain[int, int](t, it)
	want := []int{9, 8, 7, 6, 5, 4, 3, 2, 1}
	if !equalSlices(got, want) {
		t.Fatalf("IterReversed() = %v, want %v", got, want)
	}
}

func TestRangeInclusive(t *testing.T) {
	tree := seedTree(t, 3, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	it, err := tree.Range(3, 7, -1)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	got := drain[int, int](t, it)
	want := []int{3, 4, 5, 6, 7}
	if !equalSlices(got, want) {
		t.Fatalf("Range(3,7) = %v, want %v", got, want)
	}
}

func TestStartingWithForward(t *testing.T) {
	tree := seedTree(t, 3, []int{1, 2, 3, 4, 5})
	it, err := tree.StartingWith(3, false, -1)
	if err != nil {
		t.Fatalf("StartingWith: %v", err)
	}
	got := drain[int, int](t, it)
	want := []int{3, 4, 5}
	if !equalSlices(got, want) {
		t.Fatalf("StartingWith(3, forward) = %v, want %v", got, want)
	}
}

func TestStartingWithReverse(t *testing.T) {
	tree := seedTree(t, 3, []int{1, 2, 3, 4, 5})
	it, err := tree.StartingWith(3, true, -1)
	if err != nil {
		t.Fatalf("StartingWith reverse: %v", err)
	}
	got := drain[int, int](t, it)
	want := []int{3, 2, 1}
	if !equalSlices(got, want) {
		t.Fatalf("StartingWith(3, reverse) = %v, want %v", got, want)
	}
}

func TestEndingWithExclusive(t *testing.T) {
	tree := seedTree(t, 3, []int{1, 2, 3, 4, 5})
	it, err := tree.EndingWith(3, false, -1)
	if err != nil {
		t.Fatalf("EndingWith: %v", err)
	}
	got := drain[int, int](t, it)
	want := []int{1, 2}
	if !equalSlices(got, want) {
		t.Fatalf("EndingWith(3, exclusive) = %v, want %v", got, want)
	}
}

func TestIterEmptyTree(t *testing.T) {
	tree, _ := New[int, int](3, intCmp)
	it, err := tree.Iter(-1)
	if err != nil {
		t.Fatalf("Iter: %v", err)
	}
	got := drain[int, int](t, it)
	if len(got) != 0 {
		t.Fatalf("Iter() over empty tree = %v, want empty", got)
	}
}

func TestIterAcrossLeafBoundaries(t *testing.T) {
	keys := make([]int, 200)
	for i := range keys {
		keys[i] = i
	}
	tree := seedTree(t, 3, keys)
	it, err := tree.Iter(-1)
	if err != nil {
		t.Fatalf("Iter: %v", err)
	}
	got := drain[int, int](t, it)
	if !equalSlices(got, keys) {
		t.Fatalf("Iter() over %d keys produced %d results, want %d", len(keys), len(got), len(keys))
	}
}

func equalSlices(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
