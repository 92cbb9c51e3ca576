// Package models defines the records the Firecat client reads and writes:
// notebooks, posts, reactions, the per-user index, and the local session.
//
// Timestamps are unix milliseconds, matching what other Firecat clients
// store.
package models

import "time"

// Millis converts t to unix milliseconds.
func Millis(t time.Time) int64 { return t.UnixMilli() }
