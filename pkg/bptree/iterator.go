package bptree

// IterItem is one (key, value) pair yielded by an Iterator.
type IterItem[K any, V any] struct {
	Key   K
	Value V
}

// Iterator walks an ordered range of the tree, latching only the leaf
// it is currently positioned in: each Next() call descends a fresh
// root-to-leaf chain with latch coupling and holds only the leaf's read
// lock while reading it, instead of
// holding any lock for the iterator's whole lifetime. An Iterator observes
// a live, moving snapshot: a concurrent writer may add or remove keys on
// either side of the iterator's current position, and whether such a
// change becomes visible depends on its timing relative to each Next().
type Iterator[K any, V any] struct {
	tree         *Tree[K, V]
	subtreeDepth int
	reverse      bool

	lo, hi         K
	hasLo, hasHi   bool
	loIncl, hiIncl bool

	started bool
	done    bool
	cursor  K // next key to resume scanning from, meaningful iff started

	dl  deadline
	err error
}

type iterConfig[K any] struct {
	subtreeDepth int
	reverse      bool
	lo, hi       K
	hasLo, hasHi bool
	loIncl       bool
	hiIncl       bool
}

// iterOption configures an Iterator at construction time.
type iterOption[K any] func(*iterConfig[K])

// WithSubtreeDepth sets the iterator's subtree depth (default 1; a
// negative value is rejected with ErrInvalidSubtreeDepth). The value does
// not change how Next() descends: every descent goes down to a leaf and
// holds only that leaf's read lock; no wider subtree is locked.
func WithSubtreeDepth[K any](depth int) iterOption[K] {
	return func(c *iterConfig[K]) { c.subtreeDepth = depth }
}

func newIterConfig[K any](opts []iterOption[K]) (*iterConfig[K], error) {
	c := &iterConfig[K]{subtreeDepth: 1}
	for _, opt := range opts {
		opt(c)
	}
	if c.subtreeDepth < 0 {
		return nil, ErrInvalidSubtreeDepth
	}
	return c, nil
}

func newIterator[K any, V any](tree *Tree[K, V], c *iterConfig[K], timeoutMs int64) (*Iterator[K, V], error) {
	dl, err := newDeadline(timeoutMs)
	if err != nil {
		return nil, err
	}
	return &Iterator[K, V]{
		tree:         tree,
		subtreeDepth: c.subtreeDepth,
		reverse:      c.reverse,
		lo:           c.lo,
		hi:           c.hi,
		hasLo:        c.hasLo,
		hasHi:        c.hasHi,
		loIncl:       c.loIncl,
		hiIncl:       c.hiIncl,
		dl:           dl,
	}, nil
}

// Iter returns a forward iterator over the whole tree.
func (t *Tree[K, V]) Iter(timeoutMs int64, opts ...iterOption[K]) (*Iterator[K, V], error) {
	c, err := newIterConfig(opts)
	if err != nil {
		return nil, err
	}
	return newIterator(t, c, timeoutMs)
}

// IterReversed returns a reverse iterator over the whole tree.
func (t *Tree[K, V]) IterReversed(timeoutMs int64, opts ...iterOption[K]) (*Iterator[K, V], error) {
	c, err := newIterConfig(opts)
	if err != nil {
		return nil, err
	}
	c.reverse = true
	return newIterator(t, c, timeoutMs)
}

// Range returns a forward iterator over keys in [lo, hi].
func (t *Tree[K, V]) Range(lo, hi K, timeoutMs int64, opts ...iterOption[K]) (*Iterator[K, V], error) {
	c, err := newIterConfig(opts)
	if err != nil {
		return nil, err
	}
	c.hasLo, c.lo, c.loIncl = true, lo, true
	c.hasHi, c.hi, c.hiIncl = true, hi, true
	return newIterator(t, c, timeoutMs)
}

// StartingWith returns an iterator over keys >= k, or (if reverse) an
// iterator over keys <= k walking backward from k.
func (t *Tree[K, V]) StartingWith(k K, reverse bool, timeoutMs int64, opts ...iterOption[K]) (*Iterator[K, V], error) {
	c, err := newIterConfig(opts)
	if err != nil {
		return nil, err
	}
	c.reverse = reverse
	if reverse {
		c.hasHi, c.hi, c.hiIncl = true, k, true
	} else {
		c.hasLo, c.lo, c.loIncl = true, k, true
	}
	return newIterator(t, c, timeoutMs)
}

// EndingWith returns a forward iterator over keys <= k (inclusive iff
// inclusive is true).
func (t *Tree[K, V]) EndingWith(k K, inclusive bool, timeoutMs int64, opts ...iterOption[K]) (*Iterator[K, V], error) {
	c, err := newIterConfig(opts)
	if err != nil {
		return nil, err
	}
	c.hasHi, c.hi, c.hiIncl = true, k, inclusive
	return newIterator(t, c, timeoutMs)
}

// Err returns the error (if any) that ended iteration early, including a
// lock-acquisition timeout.
func (it *Iterator[K, V]) Err() error { return it.err }

// withinBounds reports whether key lies within the iterator's [lo, hi].
func (it *Iterator[K, V]) withinBounds(key K) bool {
	cmp := it.tree.cmp
	if it.hasLo {
		c := cmp(key, it.lo)
		if c < 0 || (c == 0 && !it.loIncl) {
			return false
		}
	}
	if it.hasHi {
		c := cmp(key, it.hi)
		if c > 0 || (c == 0 && !it.hiIncl) {
			return false
		}
	}
	return true
}

// firstIndex resolves the starting scan index for the leaf a descent
// landed on, given whether iteration has already started.
func (it *Iterator[K, V]) firstIndex(leaf *node[K, V]) int {
	if !it.started {
		switch {
		case !it.reverse && it.hasLo:
			idx, sign := leaf.searchRange(it.lo, it.tree.cmp)
			if idx < 0 {
				return 0
			}
			if sign == 0 {
				return idx
			}
			return idx + 1
		case it.reverse && it.hasHi:
			idx, _ := leaf.searchRange(it.hi, it.tree.cmp)
			return idx
		case it.reverse:
			return leaf.count - 1
		default:
			return 0
		}
	}
	idx, sign := leaf.searchRange(it.cursor, it.tree.cmp)
	if it.reverse {
		if idx < 0 {
			return -1
		}
		if sign == 0 {
			return idx - 1
		}
		return idx
	}
	if idx < 0 {
		return 0
	}
	return idx + 1
}

// Next advances the iterator and returns the next in-range item, or
// ok == false once iteration is exhausted or an error occurred (check
// Err() to tell the two apart).
func (it *Iterator[K, V]) Next() (IterItem[K, V], bool) {
	var zero IterItem[K, V]
	if it.done || it.err != nil {
		return zero, false
	}

	boundaryKey := it.cursor
	hasBoundary := it.started
	seedKey, hasSeed := it.seedKey()

	for {
		opts := descendOptions[K]{maxDepth: -1, reverse: it.reverse}
		var target K
		if hasBoundary {
			target = boundaryKey
		} else if hasSeed {
			target = seedKey
		} else if it.reverse {
			opts.getMax = true
		} else {
			opts.getMin = true
		}

		res, err := descend(it.tree, target, intentRead, false, it.dl, opts)
		if err != nil {
			it.err = err
			return zero, false
		}

		leaf := res.node
		if leaf.count == 0 {
			if !res.hasNextKey {
				res.chain.release()
				it.done = true
				return zero, false
			}
			boundaryKey, hasBoundary = res.nextKey, true
			res.chain.release()
			continue
		}

		start := it.firstIndex(leaf)
		step := 1
		if it.reverse {
			step = -1
		}

		for i := start; i >= 0 && i < leaf.count; i += step {
			key := leaf.entries[i].key
			if it.pastBound(key) {
				res.chain.release()
				it.done = true
				return zero, false
			}
			it.started = true
			it.cursor = key
			if !it.withinBounds(key) {
				continue
			}
			item := IterItem[K, V]{Key: key, Value: leaf.entries[i].value}
			res.chain.release()
			return item, true
		}

		if !res.hasNextKey {
			res.chain.release()
			it.done = true
			return zero, false
		}
		boundaryKey, hasBoundary = res.nextKey, true
		res.chain.release()
	}
}

// pastBound reports whether key has moved past the terminal bound for
// this iterator's direction, meaning iteration is now exhausted.
func (it *Iterator[K, V]) pastBound(key K) bool {
	cmp := it.tree.cmp
	if !it.reverse && it.hasHi {
		c := cmp(key, it.hi)
		return c > 0 || (c == 0 && !it.hiIncl)
	}
	if it.reverse && it.hasLo {
		c := cmp(key, it.lo)
		return c < 0 || (c == 0 && !it.loIncl)
	}
	return false
}

// seedKey returns the key to seed the very first descend() with, so the
// search lands in the subtree containing the iterator's starting bound.
func (it *Iterator[K, V]) seedKey() (K, bool) {
	if it.reverse && it.hasHi {
		return it.hi, true
	}
	if !it.reverse && it.hasLo {
		return it.lo, true
	}
	var zero K
	return zero, false
}
