package multiverse

import (
	"context"

	"github.com/dcspark/chainvault/internal/logger"
)

// PullResult is what a Source returns for one Pull call.
type PullResult[K comparable, V Block[K]] struct {
	Block V
	// IsTip marks a tip/marker event from the upstream protocol (not a
	// real block) — it bypasses the multiverse entirely and is returned
	// to the caller untouched.
	IsTip bool
}

// Source is the upstream this package's adapters wrap: something that,
// given the caller's current checkpoints, produces the next block (or tip
// marker) in the stream.
type Source[K comparable, V Block[K]] interface {
	Pull(ctx context.Context, from []K) (result PullResult[K, V], ok bool, err error)
}

// multiverseInsertAndGC inserts block, reselects the canonical tip under
// confirmationDepth confirmations and an age gap of 1 (so that blocks more
// than one bucket behind the newly selected block are discarded), removes
// every discarded key, and returns the (possibly unchanged) selection.
func multiverseInsertAndGC[K comparable, V Block[K]](mv *Multiverse[K, V], block V, confirmationDepth int) (K, bool, error) {
	if err := mv.Insert(block); err != nil {
		var zero K
		return zero, false, err
	}

	selected, ok, discarded, err := mv.SelectBestBlock(BestBlockSelectionRule{Depth: confirmationDepth, AgeGap: 1})
	if err != nil {
		var zero K
		return zero, false, err
	}
	for _, k := range discarded {
		if _, err := mv.Remove(k); err != nil && err != ErrNotFound {
			return selected, ok, err
		}
	}
	return selected, ok, nil
}

// MultiverseSource wraps an upstream Source, feeding every pulled block
// through a Multiverse and only surfacing a block once it has reached
// confirmationDepth confirmations — filtering out every block that gets
// reorganized away before then.
type MultiverseSource[K comparable, V Block[K]] struct {
	mv                *Multiverse[K, V]
	source            Source[K, V]
	confirmationDepth int
	confirmed         *K
}

// NewMultiverseSource wraps source with mv, seeding the initial confirmed
// block (if mv already holds enough history). The selection's discard list
// is ignored, so nothing is removed at construction.
func NewMultiverseSource[K comparable, V Block[K]](mv *Multiverse[K, V], confirmationDepth int, source Source[K, V]) (*MultiverseSource[K, V], error) {
	s := &MultiverseSource[K, V]{mv: mv, source: source, confirmationDepth: confirmationDepth}

	selected, ok, _, err := mv.SelectBestBlock(BestBlockSelectionRule{Depth: confirmationDepth, AgeGap: 0})
	if err != nil {
		return nil, err
	}
	if ok {
		s.confirmed = &selected
	}
	return s, nil
}

// Into returns the wrapped source.
func (s *MultiverseSource[K, V]) Into() Source[K, V] { return s.source }

// assembleCheckpoints builds the candidate resumption points offered to the
// wrapped source on each pull: every current tip, the confirmed point (and
// its parent, so a caller resuming from just past the last confirmation is
// still covered), then the caller's own checkpoint if it isn't already one
// of the above.
func (s *MultiverseSource[K, V]) assembleCheckpoints(from *K) []K {
	checkpoints := s.mv.Tips()
	seen := make(map[K]struct{}, len(checkpoints))
	for _, k := range checkpoints {
		seen[k] = struct{}{}
	}

	add := func(k K) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		checkpoints = append(checkpoints, k)
	}

	if s.confirmed != nil {
		add(*s.confirmed)
		if e, ok := s.mv.Get(*s.confirmed); ok {
			add(e.ParentID())
		}
	}
	if from != nil {
		add(*from)
	}

	return checkpoints
}

// Pull resumes from the given checkpoint (nil if this is the very first
// pull) and returns the next confirmed block, if one has newly stabilized,
// or ok=false if nothing new is confirmed yet.
func (s *MultiverseSource[K, V]) Pull(ctx context.Context, from *K) (V, bool, error) {
	var zero V

	if s.confirmed != nil {
		if confirmedEntry, ok := s.mv.Get(*s.confirmed); ok {
			parentID := confirmedEntry.ParentID()
			if from != nil && *from == parentID {
				// Resuming right where the confirmed block's parent left
				// off: we already know the answer without asking upstream.
				s.mv.log.Debug("resumed from confirmed checkpoint", logger.BlockID(*s.confirmed))
				return confirmedEntry, true, nil
			}
		}
	}

	checkpoints := s.assembleCheckpoints(from)

	result, ok, err := s.source.Pull(ctx, checkpoints)
	if err != nil {
		return zero, false, err
	}
	if !ok {
		return zero, false, nil
	}
	if result.IsTip {
		return result.Block, true, nil
	}

	block := result.Block
	if s.mv.Contains(block.ID()) {
		s.mv.log.Debug("deduped already-tracked block", logger.BlockID(block.ID()))
		return zero, false, nil
	}

	newConfirmed, ok, err := multiverseInsertAndGC(s.mv, block, s.confirmationDepth)
	if err != nil {
		return zero, false, err
	}
	if !ok {
		return zero, false, nil
	}

	if s.confirmed == nil || newConfirmed != *s.confirmed {
		cp := newConfirmed
		s.confirmed = &cp
		confirmedVal, _ := s.mv.Get(newConfirmed)
		if s.mv.metrics != nil {
			s.mv.metrics.RecordConfirmed(confirmedVal.BlockNumber())
		}
		s.mv.log.Debug("confirmed block", logger.BlockID(newConfirmed), logger.BlockNumber(confirmedVal.BlockNumber()))
		return confirmedVal, true, nil
	}

	return zero, false, nil
}
