package bptree

import "context"

// descendOutcome reports how a descend() call finished.
type descendOutcome uint8

const (
	outcomeSuccess descendOutcome = iota
	outcomeNotFound
	outcomeTimeout
	outcomeNotSafeLeaf
	outcomeNotSafeLeafTest
)

// descendOptions configures a single descend() call. maxDepth bounds how
// many internal levels are crossed before treating the current node as
// terminal (used by subtree-locked iteration); a negative maxDepth means
// "descend all the way to a leaf." getMin/getMax ignore key and always
// follow the first/last child at every internal level (used to seed
// full forward/reverse iteration with no prior boundary).
type descendOptions[K any] struct {
	maxDepth int
	getMin   bool
	getMax   bool
	reverse  bool
}

// searchResult is what a descend() call hands back to its caller. The
// chain is still holding every lock descend left in place; the caller
// (Dictionary Facade or Iterator) is responsible for eventually calling
// chain.release().
type searchResult[K any, V any] struct {
	chain      *latchChain[K, V]
	node       *node[K, V]
	index      int
	matched    bool // true iff index is an exact key match, independent of outcome
	depth      int
	nextKey    K
	hasNextKey bool
	outcome    descendOutcome
}

// descend walks from the tree's root to a target leaf (or to an internal
// subtree root bounded by opts.maxDepth), acquiring locks per the given
// intent and latchChain discipline.
//
// pessimistic selects write-locks-all-the-way-with-crabbing; when false
// (and intent is mutating), only the terminal leaf is write-locked and
// ancestors are read-locked and released as soon as the next level is
// latched (true latch coupling — a child's lock is always acquired
// before its parent's is dropped).
func descend[K, V any](tree *Tree[K, V], key K, intent latchIntent, pessimistic bool, dl deadline, opts descendOptions[K]) (*searchResult[K, V], error) {
	chain := newLatchChain[K, V](tree, pessimistic)
	ctx, cancel := dl.context(context.Background())
	defer cancel()

	rootWrite := pessimistic && intent.isMutating()
	if err := chain.lockRoot(ctx, rootWrite); err != nil {
		chain.release()
		return nil, err
	}

	current := tree.root
	res := &searchResult[K, V]{chain: chain, index: -1}
	depth := 1

	for {
		write := false
		switch {
		case intent == intentRead:
			write = false
		case pessimistic:
			write = true
		default: // optimistic mutating descent: write only at the leaf
			write = current.kind == leafNode
		}

		if err := chain.push(ctx, current, write); err != nil {
			chain.release()
			return nil, err
		}

		if pessimistic && intent.isMutating() {
			if current.nodeIsSafe(intent) {
				keepRoot := current == tree.root
				chain.releaseAncestors(1, keepRoot)
			}
		} else {
			// Latch coupling for read and optimistic descents: keep at
			// most the current node locked, and the root-pointer lock
			// only for the span needed to latch the root node itself.
			chain.releaseAncestors(1, false)
		}

		atLeaf := current.kind == leafNode
		atMaxDepth := opts.maxDepth >= 0 && depth-1 >= opts.maxDepth
		if atLeaf || atMaxDepth {
			res.node = current
			res.depth = depth
			break
		}

		idx := 0
		switch {
		case opts.getMin:
			idx = 0
		case opts.getMax:
			idx = current.count - 1
		default:
			idx = current.childIndex(key, tree.cmp)
		}

		if !opts.reverse {
			if idx+1 < current.count {
				res.nextKey = current.entries[idx+1].key
				res.hasNextKey = true
			}
		} else {
			if idx > 0 {
				res.nextKey = current.entries[idx-1].key
				res.hasNextKey = true
			}
		}

		current = current.entries[idx].child
		depth++
	}

	// Leaf-level (or maxDepth-cutoff) determination.
	if current.kind == leafNode && !opts.getMin && !opts.getMax {
		idx, sign := current.searchRange(key, tree.cmp)
		res.index = idx
		res.matched = idx >= 0 && sign == 0
		if res.matched {
			res.outcome = outcomeSuccess
		} else {
			res.outcome = outcomeNotFound
		}
	} else {
		res.outcome = outcomeSuccess
	}

	if current.kind == leafNode && intent.isMutating() && !pessimistic {
		if !current.nodeIsSafe(intent) {
			if intent.isTest() {
				// Retain the leaf's write lock; the caller may resolve
				// the operation without a second, pessimistic descent.
				res.outcome = outcomeNotSafeLeafTest
			} else {
				chain.release()
				res.outcome = outcomeNotSafeLeaf
			}
		}
	}

	return res, nil
}
