package multiverse

import (
	"context"

	"github.com/dcspark/chainvault/internal/logger"
)

// Event is emitted by ForkHandlingSource: either a newly confirmed block, or
// notice that the chain has switched branches: RollbackID names the common
// ancestor, and every block emitted after it is to be undone by the caller
// (the ancestor itself stays).
type Event[K comparable, V Block[K]] struct {
	Block      V
	RollbackID K
	IsRollback bool
}

// BlockEvent wraps a confirmed block as an Event.
func BlockEvent[K comparable, V Block[K]](v V) Event[K, V] {
	return Event[K, V]{Block: v}
}

// RollbackEvent signals that every block emitted after id must be undone.
func RollbackEvent[K comparable, V Block[K]](id K) Event[K, V] {
	return Event[K, V]{RollbackID: id, IsRollback: true}
}

// ForkHandlingSource wraps a MultiverseSource and turns its raw stream of
// confirmed blocks into a linear stream of Events: straight continuations
// pass through untouched, but when the next confirmed block doesn't extend
// the previous one, the branch point is found in the multiverse and a single
// terminal Rollback(ancestor) event is emitted — telling the caller "undo
// everything after this point" — before the new branch is replayed forward
// (Block events, oldest first).
//
// Fork detection walks parent links back from both the current tip and the
// new block until a shared ancestor is found. Both those blocks must still
// be tracked in the multiverse for the walk to succeed — if the branch point
// has already aged out of the retention window, Pull returns
// ErrConfirmationDepthExceeded rather than guessing.
type ForkHandlingSource[K comparable, V Block[K]] struct {
	mv      *Multiverse[K, V]
	inner   *MultiverseSource[K, V]
	current *K
	buffer  []Event[K, V]
}

// NewForkHandlingSource wraps inner, which must share mv.
func NewForkHandlingSource[K comparable, V Block[K]](mv *Multiverse[K, V], inner *MultiverseSource[K, V]) *ForkHandlingSource[K, V] {
	return &ForkHandlingSource[K, V]{mv: mv, inner: inner}
}

// Pull returns the next Event in chronological order, draining any buffered
// rollback/replay events from a previously detected fork before asking the
// wrapped source for a new block.
func (s *ForkHandlingSource[K, V]) Pull(ctx context.Context, from *K) (Event[K, V], bool, error) {
	var zero Event[K, V]

	if len(s.buffer) > 0 {
		ev := s.buffer[0]
		s.buffer = s.buffer[1:]
		return ev, true, nil
	}

	block, ok, err := s.inner.Pull(ctx, from)
	if err != nil {
		return zero, false, err
	}
	if !ok {
		return zero, false, nil
	}

	if s.current == nil || block.ParentID() == *s.current {
		id := block.ID()
		s.current = &id
		return BlockEvent[K, V](block), true, nil
	}

	events, newCurrent, err := s.buildForkEvents(block)
	if err != nil {
		return zero, false, err
	}
	s.current = &newCurrent
	if len(events) == 0 {
		return zero, false, nil
	}

	first := events[0]
	s.buffer = events[1:]
	return first, true, nil
}

// buildForkEvents walks back from both the current tip and newBlock until it
// finds their common ancestor in the multiverse, then returns a single
// terminal Rollback(ancestor) event followed by the replay events for the
// new branch (oldest first, ending in newBlock itself). Per spec, the
// consumer only ever needs the branch point — not every individually
// abandoned block — to know what to undo.
func (s *ForkHandlingSource[K, V]) buildForkEvents(newBlock V) ([]Event[K, V], K, error) {
	var currentChain []K
	currentSet := make(map[K]struct{})

	cur := *s.current
	for {
		v, ok := s.mv.Get(cur)
		if !ok {
			// cur is only referenced, not itself tracked (its data has
			// already aged out) — it can't serve as a verified common
			// ancestor, so the walk stops here.
			break
		}
		currentChain = append(currentChain, cur)
		currentSet[cur] = struct{}{}
		cur = v.ParentID()
	}

	// Deepest-first: newBranch accumulates newBlock, its parent, its
	// grandparent, ... until a node already on the current chain is hit.
	newBranch := []V{newBlock}
	var ancestor K
	found := false

	walking := newBlock
	for {
		if _, ok := currentSet[walking.ID()]; ok {
			ancestor = walking.ID()
			found = true
			break
		}
		parentID := walking.ParentID()
		if _, ok := currentSet[parentID]; ok {
			ancestor = parentID
			found = true
			break
		}
		parentVal, ok := s.mv.Get(parentID)
		if !ok {
			var zero K
			return nil, zero, ErrConfirmationDepthExceeded
		}
		newBranch = append(newBranch, parentVal)
		walking = parentVal
	}
	if !found {
		var zero K
		return nil, zero, ErrConfirmationDepthExceeded
	}

	// The ancestor itself is already known to the caller; drop it from the
	// replay list if it ended up in newBranch (it only does when newBlock
	// itself is already on the current chain).
	if len(newBranch) > 0 && newBranch[len(newBranch)-1].ID() == ancestor {
		newBranch = newBranch[:len(newBranch)-1]
	}

	// abandonedDepth is purely informational (log/metric context): how many
	// blocks of the old chain are implicitly undone by the single Rollback
	// event below.
	abandonedDepth := len(currentChain)
	for i, id := range currentChain {
		if id == ancestor {
			abandonedDepth = i
			break
		}
	}

	if abandonedDepth > 0 {
		if s.mv.metrics != nil {
			s.mv.metrics.RecordRollback()
		}
		s.mv.log.Info("fork detected, rolling back", logger.RollbackPoint(ancestor), logger.Depth(abandonedDepth))
	}

	events := make([]Event[K, V], 0, 1+len(newBranch))
	events = append(events, RollbackEvent[K, V](ancestor))
	for i := len(newBranch) - 1; i >= 0; i-- {
		events = append(events, BlockEvent[K, V](newBranch[i]))
	}

	return events, newBlock.ID(), nil
}
