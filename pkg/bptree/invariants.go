package bptree

import "context"

// VerifyInvariants walks the entire tree and checks its structural
// invariants: per-node occupancy bounds, in-order key uniqueness, uniform
// leaf depth, parent back-reference correctness, and
// separator-equals-subtree-minimum. It
// takes a full root-pointer read lock and recursively read-locks every
// node it visits, so it is safe to call against a live tree, but it is a
// debug/test harness, not a data-plane operation — callers outside tests
// should not run it on a hot path.
func (t *Tree[K, V]) VerifyInvariants(timeoutMs int64) error {
	dl, err := newDeadline(timeoutMs)
	if err != nil {
		return err
	}
	ctx, cancel := dl.context(context.Background())
	defer cancel()

	if err := t.rootLock.rLock(ctx); err != nil {
		return err
	}
	defer t.rootLock.rUnlock()

	leafDepth := -1
	return t.verifyNode(ctx, t.root, nil, true, 1, &leafDepth)
}

func (t *Tree[K, V]) verifyNode(ctx context.Context, n *node[K, V], parent *node[K, V], isRoot bool, depth int, leafDepth *int) error {
	if err := n.lock.rLock(ctx); err != nil {
		return err
	}
	defer n.lock.rUnlock()

	if n.parent != parent {
		return invariantViolation("node at depth %d has wrong parent back-reference", depth)
	}

	if !isRoot {
		min := ceilHalf(n.k)
		if n.count < min {
			return invariantViolation("node at depth %d has count %d below minimum %d", depth, n.count, min)
		}
	}
	if n.count > n.k {
		return invariantViolation("node at depth %d has count %d above capacity %d", depth, n.count, n.k)
	}

	if n.kind == leafNode {
		if *leafDepth == -1 {
			*leafDepth = depth
		} else if *leafDepth != depth {
			return invariantViolation("leaf depth %d does not match established leaf depth %d", depth, *leafDepth)
		}
		for i := 1; i < n.count; i++ {
			if t.cmp(n.entries[i-1].key, n.entries[i].key) >= 0 {
				return invariantViolation("leaf at depth %d has out-of-order or duplicate keys at index %d", depth, i)
			}
		}
		return nil
	}

	// entries[0]'s key is the logical -infinity placeholder, never a real
	// separator, so the ordering check starts at index 2 — entries[1] has
	// nothing meaningful to its left to compare against.
	for i := 2; i < n.count; i++ {
		if t.cmp(n.entries[i-1].key, n.entries[i].key) >= 0 {
			return invariantViolation("internal node at depth %d has out-of-order or duplicate separators at index %d", depth, i)
		}
	}
	for i := 0; i < n.count; i++ {
		child := n.entries[i].child
		if child == nil {
			return invariantViolation("internal node at depth %d has nil child at index %d", depth, i)
		}
		if i > 0 {
			childMin := child.minKeyLocked(ctx)
			if t.cmp(n.entries[i].key, childMin) != 0 {
				return invariantViolation("separator at depth %d index %d does not equal child's minimum key", depth, i)
			}
		}
	}
	for i := 0; i < n.count; i++ {
		if err := t.verifyNode(ctx, n.entries[i].child, n, false, depth+1, leafDepth); err != nil {
			return err
		}
	}
	return nil
}

// minKeyLocked returns the smallest key stored under n's subtree, following
// child 0 down to a leaf and reading each node under its own read lock;
// used by VerifyInvariants where n is not already part of the caller's
// chain.
func (n *node[K, V]) minKeyLocked(ctx context.Context) K {
	if err := n.lock.rLock(ctx); err == nil {
		defer n.lock.rUnlock()
	}
	// VerifyInvariants holds the parent's lock already, so an acquisition
	// failure here can only be a timeout; the read then proceeds unlocked
	// rather than propagating, since this helper has no error return.
	if n.kind == internalNode {
		return n.entries[0].child.minKeyLocked(ctx)
	}
	return n.entries[0].key
}
