// Package multiverse tracks a forking DAG of blocks in memory (optionally
// mirrored to an embedded key-value store), selects a canonical tip under a
// longest-chain rule, and adapts an upstream block source into a stream of
// confirmed blocks and rollback events.
package multiverse

import "errors"

var (
	// ErrNotFound is returned by Remove when the given key isn't tracked.
	ErrNotFound = errors.New("multiverse: key not found")

	// ErrConfirmationDepthExceeded is returned by ForkHandlingSource.Pull
	// when a newly pulled block's branch shares no common ancestor with
	// the previously returned block anywhere in the stored multiverse.
	// This happens when the upstream source has rolled back further than
	// the multiverse's retention window (age_gap) has kept blocks for.
	// Earlier designs silently treated this as "resync from scratch", but
	// that hides a confirmation-depth misconfiguration behind a
	// best-effort recovery; returning a typed error lets the caller decide
	// whether to resync, alarm, or widen the retention window.
	ErrConfirmationDepthExceeded = errors.New("multiverse: no common ancestor found within the stored window")
)
