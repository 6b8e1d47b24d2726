// Package bptree implements a concurrent ordered map backed by a B+ tree
// with per-node reader-writer latching and latch-crabbing descent.
//
// Keys are ordered by a user-supplied comparator; values are opaque. The
// tree supports point operations (insert, update, get-or-insert,
// conditional insert, delete, lookup, containment) and ordered traversal
// (full, reverse, range, half-range) under millisecond-grained lock
// acquisition timeouts.
//
// The tree is not durable: it holds no file handle and survives only for
// the lifetime of the process that built it.
package bptree
