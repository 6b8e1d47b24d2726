package bptree

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// semWeight is the full weight a writer must acquire; a reader acquires 1.
// This turns golang.org/x/sync/semaphore.Weighted into a reader-writer
// lock whose Acquire honors a context deadline, which is how this package
// gets millisecond-grained, cancellable lock acquisition without hand
// rolling condition-variable plumbing: a writer wanting the whole weight
// queues FIFO behind any earlier waiter, so a pending writer is not
// starved by a steady stream of new readers.
const semWeight = 1 << 30

// timedRWLock is a node's (or the tree's root pointer's) reader-writer
// latch. It is not recursively acquirable.
type timedRWLock struct {
	sem *semaphore.Weighted
}

func newTimedRWLock() *timedRWLock {
	return &timedRWLock{sem: semaphore.NewWeighted(semWeight)}
}

func (l *timedRWLock) rLock(ctx context.Context) error { return l.sem.Acquire(ctx, 1) }
func (l *timedRWLock) rUnlock()                        { l.sem.Release(1) }
func (l *timedRWLock) lock(ctx context.Context) error  { return l.sem.Acquire(ctx, semWeight) }
func (l *timedRWLock) unlock()                         { l.sem.Release(semWeight) }

// deadline turns a public timeout_ms argument into a reusable acquisition
// budget. A single deadline is computed once at the start of an operation
// and handed to every per-node lock acquisition during descent, so the
// remaining budget naturally shrinks as the operation proceeds, rather
// than recomputing "elapsed" and handing that back in as the next
// timeout, which would reset the budget on every lock acquired.
type deadline struct {
	infinite    bool
	nonBlocking bool
	at          time.Time
}

// newDeadline validates timeoutMs ({-1, 0, positive}) and captures "now".
func newDeadline(timeoutMs int64) (deadline, error) {
	switch {
	case timeoutMs == -1:
		return deadline{infinite: true}, nil
	case timeoutMs == 0:
		return deadline{nonBlocking: true}, nil
	case timeoutMs > 0:
		return deadline{at: time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)}, nil
	default:
		return deadline{}, ErrInvalidTimeout
	}
}

// context derives a context.Context whose cancellation matches this
// deadline. For the non-blocking case it hands back an already-expired
// context: semaphore.Weighted.Acquire still grants the lock immediately
// if it is uncontended, and otherwise fails the instant it would have to
// wait, which is exactly try-lock semantics.
func (d deadline) context(parent context.Context) (context.Context, context.CancelFunc) {
	if d.infinite {
		return parent, func() {}
	}
	if d.nonBlocking {
		return context.WithDeadline(parent, time.Now().Add(-time.Millisecond))
	}
	return context.WithDeadline(parent, d.at)
}

// latchIntent selects the locking discipline used for a descent.
type latchIntent uint8

const (
	intentRead latchIntent = iota
	intentInsert
	intentDelete
	// intentInsertTest / intentDeleteTest back try_add / get_or_add /
	// try_remove: on an optimistic descent that finds the leaf unsafe,
	// they retain the leaf's write lock instead of releasing and
	// signaling a retry, because the caller may be able to resolve the
	// operation (key already present / already absent) without ever
	// needing the second, pessimistic descent.
	intentInsertTest
	intentDeleteTest
)

func (i latchIntent) isInsert() bool { return i == intentInsert || i == intentInsertTest }
func (i latchIntent) isDelete() bool { return i == intentDelete || i == intentDeleteTest }
func (i latchIntent) isTest() bool   { return i == intentInsertTest || i == intentDeleteTest }
func (i latchIntent) isMutating() bool {
	return i != intentRead
}

// maxChainDepth bounds a pessimistic descent's held-lock stack. Per spec
// section 4.2, this doubles as the tree's supported capacity ceiling: a
// node with >= ceil(k/2) children per level and a 32-level bound yields a
// k=3 capacity of roughly 2^32 entries.
const maxChainDepth = 32

// optimisticChainDepth bounds an optimistic descent: at most the current
// internal ancestor (read-locked) and the leaf (write-locked).
const optimisticChainDepth = 2

// chainLink is one held lock belonging to a latchChain.
type chainLink[K any, V any] struct {
	n     *node[K, V]
	write bool
}

// latchChain owns the sequence of node locks held by one in-flight
// operation, plus optionally the tree's root-pointer lock. It is a scoped
// resource: release() is idempotent and safe to call from any exit path
// (success, timeout, or a later panic-recovery layer).
type latchChain[K any, V any] struct {
	tree      *Tree[K, V]
	links     []chainLink[K, V]
	rootHeld  bool
	rootWrite bool
	released  int32
}

func newLatchChain[K, V any](tree *Tree[K, V], pessimistic bool) *latchChain[K, V] {
	capHint := optimisticChainDepth
	if pessimistic {
		capHint = maxChainDepth
	}
	return &latchChain[K, V]{tree: tree, links: make([]chainLink[K, V], 0, capHint)}
}

// lockRoot acquires the tree's root-pointer lock in the given polarity.
func (c *latchChain[K, V]) lockRoot(ctx context.Context, write bool) error {
	if write {
		if err := c.tree.rootLock.lock(ctx); err != nil {
			return err
		}
	} else {
		if err := c.tree.rootLock.rLock(ctx); err != nil {
			return err
		}
	}
	c.rootHeld = true
	c.rootWrite = write
	return nil
}

// push acquires n's lock in the given polarity and records it on the
// chain, in descent order — the rule that makes lock-order agree with
// descent order across every thread, which is what keeps the tree
// deadlock-free under concurrent descents.
func (c *latchChain[K, V]) push(ctx context.Context, n *node[K, V], write bool) error {
	if write {
		if err := n.lock.lock(ctx); err != nil {
			return err
		}
	} else {
		if err := n.lock.rLock(ctx); err != nil {
			return err
		}
	}
	c.links = append(c.links, chainLink[K, V]{n: n, write: write})
	return nil
}

// last returns the most recently pushed node, or nil if the chain is empty.
func (c *latchChain[K, V]) last() *node[K, V] {
	if len(c.links) == 0 {
		return nil
	}
	return c.links[len(c.links)-1].n
}

// releaseAncestors drops every held node lock except the most recently
// pushed `keep` entries, and drops the root-pointer lock too (unless the
// remaining node is itself the root, in which case the root lock was
// already what is guarding against a concurrent split-at-root — callers
// pass keepRoot=true to retain it). This is the crabbing release used
// once a descendant proves "safe" in pessimistic mode.
func (c *latchChain[K, V]) releaseAncestors(keep int, keepRoot bool) {
	for len(c.links) > keep {
		lead := c.links[0]
		if lead.write {
			lead.n.lock.unlock()
		} else {
			lead.n.lock.rUnlock()
		}
		c.links = c.links[1:]
	}
	if !keepRoot {
		c.unlockRootIfHeld()
	}
}

func (c *latchChain[K, V]) unlockRootIfHeld() {
	if !c.rootHeld {
		return
	}
	if c.rootWrite {
		c.tree.rootLock.unlock()
	} else {
		c.tree.rootLock.rUnlock()
	}
	c.rootHeld = false
}

// release is the total, idempotent, LIFO teardown of this chain: every
// node lock is dropped in reverse acquisition order, then the root
// pointer lock.
func (c *latchChain[K, V]) release() {
	if !atomic.CompareAndSwapInt32(&c.released, 0, 1) {
		return
	}
	for i := len(c.links) - 1; i >= 0; i-- {
		lk := c.links[i]
		if lk.write {
			lk.n.lock.unlock()
		} else {
			lk.n.lock.rUnlock()
		}
	}
	c.links = nil
	c.unlockRootIfHeld()
}
