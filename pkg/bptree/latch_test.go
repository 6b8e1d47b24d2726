package bptree

import (
	"context"
	"testing"
	"time"
)

func TestTimedRWLockExclusion(t *testing.T) {
	l := newTimedRWLock()
	ctx := context.Background()

	if err := l.lock(ctx); err != nil {
		t.Fatalf("lock failed: %v", err)
	}

	tryCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := l.rLock(tryCtx); err == nil {
		t.Fatal("expected rLock to time out while writer holds the lock")
	}

	l.unlock()

	if err := l.rLock(ctx); err != nil {
		t.Fatalf("rLock after unlock failed: %v", err)
	}
	l.rUnlock()
}

func TestTimedRWLockMultipleReaders(t *testing.T) {
	l := newTimedRWLock()
	ctx := context.Background()

	if err := l.rLock(ctx); err != nil {
		t.Fatalf("first rLock failed: %v", err)
	}
	if err := l.rLock(ctx); err != nil {
		t.Fatalf("second concurrent rLock failed: %v", err)
	}
	l.rUnlock()
	l.rUnlock()
}

func TestNewDeadlineValidation(t *testing.T) {
	if _, err := newDeadline(-2); err != ErrInvalidTimeout {
		t.Fatalf("expected ErrInvalidTimeout for -2, got %v", err)
	}
	if _, err := newDeadline(-1); err != nil {
		t.Fatalf("expected -1 (infinite) to be valid, got %v", err)
	}
	if _, err := newDeadline(0); err != nil {
		t.Fatalf("expected 0 (non-blocking) to be valid, got %v", err)
	}
	if _, err := newDeadline(500); err != nil {
		t.Fatalf("expected 500 to be valid, got %v", err)
	}
}

func TestDeadlineNonBlockingFailsUnderContention(t *testing.T) {
	l := newTimedRWLock()
	if err := l.lock(context.Background()); err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	defer l.unlock()

	dl, err := newDeadline(0)
	if err != nil {
		t.Fatalf("newDeadline(0): %v", err)
	}
	ctx, cancel := dl.context(context.Background())
	defer cancel()

	if err := l.rLock(ctx); err == nil {
		t.Fatal("expected non-blocking acquisition to fail while writer holds the lock")
	}
}

func TestLatchChainReleaseIsIdempotent(t *testing.T) {
	tree, err := New[int, string](3, intCmp)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	chain := newLatchChain[int, string](tree, true)
	ctx := context.Background()
	if err := chain.lockRoot(ctx, true); err != nil {
		t.Fatalf("lockRoot: %v", err)
	}
	if err := chain.push(ctx, tree.root, true); err != nil {
		t.Fatalf("push: %v", err)
	}

	chain.release()
	chain.release() // must not double-unlock

	if err := tree.root.lock.lock(ctx); err != nil {
		t.Fatalf("root node lock should be free after release, got: %v", err)
	}
	tree.root.lock.unlock()
	if err := tree.rootLock.lock(ctx); err != nil {
		t.Fatalf("root-pointer lock should be free after release, got: %v", err)
	}
	tree.rootLock.unlock()
}
