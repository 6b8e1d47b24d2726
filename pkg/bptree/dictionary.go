package bptree

import (
	"context"
	"errors"
	"sync/atomic"
)

// Tree is a concurrent ordered map backed by a B+ tree. K is ordered by
// the Comparator supplied to New; V is opaque. All exported methods are
// safe for concurrent use.
type Tree[K any, V any] struct {
	root     *node[K, V]
	rootLock *timedRWLock
	count    atomic.Int64
	depth    atomic.Int64
	k        int
	cmp      Comparator[K]
	metrics  *Metrics
}

// Option configures a Tree at construction time.
type Option[K any, V any] func(*Tree[K, V])

// WithMetrics attaches Prometheus instrumentation (see metrics.go) to
// every facade operation.
func WithMetrics[K any, V any](m *Metrics) Option[K, V] {
	return func(t *Tree[K, V]) { t.metrics = m }
}

// New constructs a Tree with fan-out k (k >= 3) and the given total-order
// comparator. k < 3 is rejected with ErrInvalidOrder.
func New[K any, V any](k int, cmp Comparator[K], opts ...Option[K, V]) (*Tree[K, V], error) {
	if k < 3 {
		return nil, ErrInvalidOrder
	}
	t := &Tree[K, V]{
		root:     newNode[K, V](leafNode, k),
		rootLock: newTimedRWLock(),
		k:        k,
		cmp:      cmp,
	}
	t.depth.Store(1)
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Count returns the total element count (a best-effort atomic snapshot).
func (t *Tree[K, V]) Count() int64 { return t.count.Load() }

// IsEmpty reports whether Count() == 0.
func (t *Tree[K, V]) IsEmpty() bool { return t.count.Load() == 0 }

// Depth returns the current tree depth (a best-effort atomic snapshot;
// may be stale relative to an in-flight structural change).
func (t *Tree[K, V]) Depth() int64 { return t.depth.Load() }

// isTimeout reports whether err resulted from a lock-acquisition deadline
// rather than an argument or programmer error.
func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func (t *Tree[K, V]) instrument(op string) func(outcome string) {
	if t.metrics == nil {
		return func(string) {}
	}
	return t.metrics.observe(op)
}

// TryAdd inserts (key, value) only if key is not already present.
func (t *Tree[K, V]) TryAdd(key K, value V, timeoutMs int64) (InsertResult, error) {
	done := t.instrument("try_add")
	dl, err := newDeadline(timeoutMs)
	if err != nil {
		done("error")
		return 0, err
	}

	res, err := descend(t, key, intentInsertTest, false, dl, descendOptions[K]{maxDepth: -1})
	if err != nil {
		if isTimeout(err) {
			done("timed_out")
			return InsertTimedOut, nil
		}
		done("error")
		return 0, err
	}

	switch res.outcome {
	case outcomeSuccess: // matched: already present
		res.chain.release()
		done("already_exists")
		return InsertAlreadyExists, nil
	case outcomeNotFound:
		leaf := res.node
		leaf.indexInsert(res.index+1, entry[K, V]{key: key, value: value})
		t.count.Add(1)
		if leaf.canSplit() {
			if err := trySplit(t, leaf); err != nil {
				res.chain.release()
				done("error")
				return 0, err
			}
		}
		res.chain.release()
		done("success")
		return InsertSuccess, nil
	case outcomeNotSafeLeafTest:
		res.chain.release()
		if res.matched {
			done("already_exists")
			return InsertAlreadyExists, nil
		}
		return t.tryAddPessimistic(key, value, dl, done)
	default:
		res.chain.release()
		done("error")
		return 0, invariantViolation("try_add: unexpected descend outcome %d", res.outcome)
	}
}

func (t *Tree[K, V]) tryAddPessimistic(key K, value V, dl deadline, done func(string)) (InsertResult, error) {
	res, err := descend(t, key, intentInsertTest, true, dl, descendOptions[K]{maxDepth: -1})
	if err != nil {
		if isTimeout(err) {
			done("timed_out")
			return InsertTimedOut, nil
		}
		done("error")
		return 0, err
	}
	defer res.chain.release()

	if res.matched {
		done("already_exists")
		return InsertAlreadyExists, nil
	}
	leaf := res.node
	leaf.indexInsert(res.index+1, entry[K, V]{key: key, value: value})
	t.count.Add(1)
	if leaf.canSplit() {
		if err := trySplit(t, leaf); err != nil {
			done("error")
			return 0, err
		}
	}
	done("success")
	return InsertSuccess, nil
}

// AddOrUpdate inserts (key, value), overwriting any existing value.
func (t *Tree[K, V]) AddOrUpdate(key K, value V, timeoutMs int64) (InsertResult, error) {
	done := t.instrument("add_or_update")
	dl, err := newDeadline(timeoutMs)
	if err != nil {
		done("error")
		return 0, err
	}

	res, err := descend(t, key, intentInsert, false, dl, descendOptions[K]{maxDepth: -1})
	if err != nil {
		if isTimeout(err) {
			done("timed_out")
			return InsertTimedOut, nil
		}
		done("error")
		return 0, err
	}
	if res.outcome == outcomeNotSafeLeaf {
		res, err = descend(t, key, intentInsert, true, dl, descendOptions[K]{maxDepth: -1})
		if err != nil {
			if isTimeout(err) {
				done("timed_out")
				return InsertTimedOut, nil
			}
			done("error")
			return 0, err
		}
	}
	defer res.chain.release()

	leaf := res.node
	if res.matched {
		leaf.entries[res.index].value = value
		leaf.bumpVersion()
		done("success")
		return InsertSuccess, nil
	}
	leaf.indexInsert(res.index+1, entry[K, V]{key: key, value: value})
	t.count.Add(1)
	if leaf.canSplit() {
		if err := trySplit(t, leaf); err != nil {
			done("error")
			return 0, err
		}
	}
	done("success")
	return InsertSuccess, nil
}

// GetOrAdd returns the existing value for key, or inserts (key, value)
// and returns value if key was absent.
func (t *Tree[K, V]) GetOrAdd(key K, value V, timeoutMs int64) (V, InsertResult, error) {
	done := t.instrument("get_or_add")
	var zero V
	dl, err := newDeadline(timeoutMs)
	if err != nil {
		done("error")
		return zero, 0, err
	}

	res, err := descend(t, key, intentInsertTest, false, dl, descendOptions[K]{maxDepth: -1})
	if err != nil {
		if isTimeout(err) {
			done("timed_out")
			return zero, InsertTimedOut, nil
		}
		done("error")
		return zero, 0, err
	}

	switch res.outcome {
	case outcomeSuccess:
		existing := res.node.entries[res.index].value
		res.chain.release()
		done("already_exists")
		return existing, InsertAlreadyExists, nil
	case outcomeNotFound:
		leaf := res.node
		leaf.indexInsert(res.index+1, entry[K, V]{key: key, value: value})
		t.count.Add(1)
		if leaf.canSplit() {
			if err := trySplit(t, leaf); err != nil {
				res.chain.release()
				done("error")
				return zero, 0, err
			}
		}
		res.chain.release()
		done("success")
		return value, InsertSuccess, nil
	case outcomeNotSafeLeafTest:
		if res.matched {
			existing := res.node.entries[res.index].value
			res.chain.release()
			done("already_exists")
			return existing, InsertAlreadyExists, nil
		}
		res.chain.release()
		return t.getOrAddPessimistic(key, value, dl, done)
	default:
		res.chain.release()
		done("error")
		return zero, 0, invariantViolation("get_or_add: unexpected descend outcome %d", res.outcome)
	}
}

func (t *Tree[K, V]) getOrAddPessimistic(key K, value V, dl deadline, done func(string)) (V, InsertResult, error) {
	var zero V
	res, err := descend(t, key, intentInsertTest, true, dl, descendOptions[K]{maxDepth: -1})
	if err != nil {
		if isTimeout(err) {
			done("timed_out")
			return zero, InsertTimedOut, nil
		}
		done("error")
		return zero, 0, err
	}
	defer res.chain.release()

	if res.matched {
		done("already_exists")
		return res.node.entries[res.index].value, InsertAlreadyExists, nil
	}
	leaf := res.node
	leaf.indexInsert(res.index+1, entry[K, V]{key: key, value: value})
	t.count.Add(1)
	if leaf.canSplit() {
		if err := trySplit(t, leaf); err != nil {
			done("error")
			return zero, 0, err
		}
	}
	done("success")
	return value, InsertSuccess, nil
}

// TryRemove deletes key if present.
func (t *Tree[K, V]) TryRemove(key K, timeoutMs int64) (RemoveResult, error) {
	done := t.instrument("try_remove")
	dl, err := newDeadline(timeoutMs)
	if err != nil {
		done("error")
		return 0, err
	}

	res, err := descend(t, key, intentDeleteTest, false, dl, descendOptions[K]{maxDepth: -1})
	if err != nil {
		if isTimeout(err) {
			done("timed_out")
			return RemoveTimedOut, nil
		}
		done("error")
		return 0, err
	}

	switch res.outcome {
	case outcomeSuccess:
		leaf := res.node
		leaf.deleteIndex(res.index)
		t.count.Add(-1)
		if leaf.canMerge() {
			if err := tryMerge(t, leaf); err != nil {
				res.chain.release()
				done("error")
				return 0, err
			}
		}
		res.chain.release()
		done("success")
		return RemoveSuccess, nil
	case outcomeNotFound:
		res.chain.release()
		done("not_found")
		return RemoveNotFound, nil
	case outcomeNotSafeLeafTest:
		res.chain.release()
		if !res.matched {
			done("not_found")
			return RemoveNotFound, nil
		}
		return t.tryRemovePessimistic(key, dl, done)
	default:
		res.chain.release()
		done("error")
		return 0, invariantViolation("try_remove: unexpected descend outcome %d", res.outcome)
	}
}

func (t *Tree[K, V]) tryRemovePessimistic(key K, dl deadline, done func(string)) (RemoveResult, error) {
	res, err := descend(t, key, intentDeleteTest, true, dl, descendOptions[K]{maxDepth: -1})
	if err != nil {
		if isTimeout(err) {
			done("timed_out")
			return RemoveTimedOut, nil
		}
		done("error")
		return 0, err
	}
	defer res.chain.release()

	if !res.matched {
		done("not_found")
		return RemoveNotFound, nil
	}
	leaf := res.node
	leaf.deleteIndex(res.index)
	t.count.Add(-1)
	if leaf.canMerge() {
		if err := tryMerge(t, leaf); err != nil {
			done("error")
			return 0, err
		}
	}
	done("success")
	return RemoveSuccess, nil
}

// TryGet looks up key.
func (t *Tree[K, V]) TryGet(key K, timeoutMs int64) (V, LookupResult, error) {
	done := t.instrument("try_get")
	var zero V
	dl, err := newDeadline(timeoutMs)
	if err != nil {
		done("error")
		return zero, 0, err
	}

	res, err := descend(t, key, intentRead, false, dl, descendOptions[K]{maxDepth: -1})
	if err != nil {
		if isTimeout(err) {
			done("timed_out")
			return zero, LookupTimedOut, nil
		}
		done("error")
		return zero, 0, err
	}
	defer res.chain.release()

	if res.outcome == outcomeNotFound {
		done("not_found")
		return zero, LookupNotFound, nil
	}
	done("success")
	return res.node.entries[res.index].value, LookupSuccess, nil
}

// ContainsKey reports whether key is present.
func (t *Tree[K, V]) ContainsKey(key K, timeoutMs int64) (bool, LookupResult, error) {
	_, result, err := t.TryGet(key, timeoutMs)
	return result == LookupSuccess, result, err
}

// Clear empties the tree, installing a fresh empty leaf as the new root.
// Existing concurrent readers on the old tree keep their own snapshot
// until they release their locks.
func (t *Tree[K, V]) Clear(timeoutMs int64) (RemoveResult, error) {
	done := t.instrument("clear")
	dl, err := newDeadline(timeoutMs)
	if err != nil {
		done("error")
		return 0, err
	}
	ctx, cancel := dl.context(context.Background())
	defer cancel()

	if err := t.rootLock.lock(ctx); err != nil {
		if isTimeout(err) {
			done("timed_out")
			return RemoveTimedOut, nil
		}
		done("error")
		return 0, err
	}
	defer t.rootLock.unlock()

	t.root = newNode[K, V](leafNode, t.k)
	t.count.Store(0)
	t.depth.Store(1)
	done("success")
	return RemoveSuccess, nil
}
