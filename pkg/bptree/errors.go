package bptree

import "github.com/cockroachdb/errors"

// treeError is a lightweight sentinel error, mirroring the KVError pattern
// used by the store packages this tree is meant to sit under: a package
// level value comparable with errors.Is, not a wrapped stack trace.
type treeError struct {
	message string
}

func (e *treeError) Error() string { return e.message }

// Sentinel errors returned by public operations. Timeouts and not-found /
// already-exists are ordinary results (see InsertResult, RemoveResult,
// LookupResult); these are the argument/capacity/programmer-error class.
var (
	// ErrInvalidOrder is returned by New when k < 3.
	ErrInvalidOrder = &treeError{"bptree: order k must be >= 3"}

	// ErrInvalidTimeout is returned when timeoutMs is negative and not -1.
	ErrInvalidTimeout = &treeError{"bptree: timeout_ms must be >= 0 or -1"}

	// ErrNilKey describes a nil reference-typed key. No operation in this
	// package checks keys for nil, and none returns ErrNilKey.
	ErrNilKey = &treeError{"bptree: key must not be nil"}

	// ErrInvalidSubtreeDepth is returned by iteration constructors when
	// subtreeDepth < 0.
	ErrInvalidSubtreeDepth = &treeError{"bptree: subtree depth must be >= 0"}

	// ErrCapacityExceeded is returned when a split would grow the tree
	// beyond the supported 30 internal levels (see latchChain's 32-slot
	// pessimistic bound in latch.go).
	ErrCapacityExceeded = &treeError{"bptree: tree capacity exceeded (depth limit reached)"}
)

// invariantViolation builds a bug-class error with a stack trace via
// cockroachdb/errors. VerifyInvariants returns it for a broken invariant;
// TryAdd, GetOrAdd and TryRemove return it only for an unexpected
// internal descend outcome.
func invariantViolation(format string, args ...interface{}) error {
	return errors.Newf("bptree: invariant violation: "+format, args...)
}

// InsertResult enumerates the possible outcomes of an insert-family
// operation (TryAdd, AddOrUpdate, GetOrAdd).
type InsertResult int

const (
	// InsertSuccess means the key/value pair was stored.
	InsertSuccess InsertResult = iota
	// InsertAlreadyExists means the key was already present and the
	// intent (try_add / get_or_add) forbids overwriting it.
	InsertAlreadyExists
	// InsertTimedOut means lock acquisition exceeded the timeout budget;
	// no side effect occurred.
	InsertTimedOut
)

func (r InsertResult) String() string {
	switch r {
	case InsertSuccess:
		return "success"
	case InsertAlreadyExists:
		return "already_exists"
	case InsertTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// RemoveResult enumerates the possible outcomes of TryRemove / Clear.
type RemoveResult int

const (
	RemoveSuccess RemoveResult = iota
	RemoveNotFound
	RemoveTimedOut
)

func (r RemoveResult) String() string {
	switch r {
	case RemoveSuccess:
		return "success"
	case RemoveNotFound:
		return "not_found"
	case RemoveTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// LookupResult enumerates the possible outcomes of TryGet / ContainsKey.
type LookupResult int

const (
	LookupSuccess LookupResult = iota
	LookupNotFound
	LookupTimedOut
)

func (r LookupResult) String() string {
	switch r {
	case LookupSuccess:
		return "success"
	case LookupNotFound:
		return "not_found"
	case LookupTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}
