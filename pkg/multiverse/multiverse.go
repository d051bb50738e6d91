package multiverse

import (
	"log/slog"
	"sort"

	"github.com/dcspark/chainvault/internal/logger"
	"github.com/dcspark/chainvault/pkg/metrics"
)

// Block is the shape a multiverse entry's value must have: an identity, a
// reference to its parent's identity, and the chain position it occupies.
type Block[K comparable] interface {
	ID() K
	ParentID() K
	BlockNumber() uint64
}

// entry is one node in the forking DAG. The parent link is a "weak"
// reference in the sense that it is only ever resolved by looking parentID
// up in Multiverse.all — if the parent has since been removed (discarded by
// age), the lookup simply fails, exactly as a dropped weak reference would.
type entry[K comparable, V any] struct {
	value     V
	parentID  K
	hasParent bool
	children  map[K]struct{}
}

// BestBlockSelectionRule picks a canonical tip among all currently tracked
// tips. LongestChain is the only rule this package implements — a
// heaviest-chain (stake- or work-weighted) rule was considered upstream but
// never shipped, and isn't reintroduced here.
type BestBlockSelectionRule struct {
	// Depth is how many ancestors to walk back from the tip at the
	// highest known block number before calling the result "selected" —
	// the confirmation depth.
	Depth int
	// AgeGap is how far below the selected block's number a bucket must
	// fall before its entries are reported as discardable.
	AgeGap uint64
}

// Multiverse tracks every block reachable from any of its roots, indexed by
// block number for range queries and by tip/root membership for selection.
// It holds no internal lock: callers that share a Multiverse across
// goroutines must synchronize their own access, exactly as this package's
// MultiverseSource and ForkHandlingSource assume a single driving goroutine.
type Multiverse[K comparable, V Block[K]] struct {
	all     map[K]*entry[K, V]
	ordered map[uint64]map[K]struct{}
	tips    map[K]struct{}
	roots   map[K]struct{}

	storeFrom uint64
	persist   *persistence[K, V]

	log     *slog.Logger
	metrics metrics.MultiverseMetrics
}

// Option configures optional observability hooks on a Multiverse. The zero
// value (no options) is fully functional with zero overhead.
type Option[K comparable, V Block[K]] func(*Multiverse[K, V])

// WithLogger attaches a structured logger; every log line carries
// component="multiverse".
func WithLogger[K comparable, V Block[K]](l *slog.Logger) Option[K, V] {
	return func(m *Multiverse[K, V]) { m.log = l.With(logger.Component("multiverse")) }
}

// WithMetrics attaches a MultiverseMetrics collector. Passing nil (the
// default) disables collection with zero overhead.
func WithMetrics[K comparable, V Block[K]](mm metrics.MultiverseMetrics) Option[K, V] {
	return func(m *Multiverse[K, V]) { m.metrics = mm }
}

// New creates an in-memory-only Multiverse with no persistent mirror.
func New[K comparable, V Block[K]](opts ...Option[K, V]) *Multiverse[K, V] {
	m := &Multiverse[K, V]{
		all:     make(map[K]*entry[K, V]),
		ordered: make(map[uint64]map[K]struct{}),
		tips:    make(map[K]struct{}),
		roots:   make(map[K]struct{}),
		log:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Insert adds v to the multiverse. If v is already tracked in memory and
// either wasn't eligible for persistence (below storeFrom) or was already
// persisted, Insert is a no-op; otherwise v (and, if configured, its
// persistent mirror) is written.
func (m *Multiverse[K, V]) Insert(v V) error {
	id := v.ID()
	parentID := v.ParentID()
	blockNumber := v.BlockNumber()

	newlyPersisted := true
	if m.persist != nil {
		var err error
		newlyPersisted, err = m.persist.insert(blockNumber, id, v, m.storeFrom)
		if err != nil {
			return err
		}
	}

	_, alreadyInMemory := m.all[id]
	if !newlyPersisted && alreadyInMemory {
		return nil
	}

	if err := m.insertInMemory(id, parentID, blockNumber, v); err != nil {
		return err
	}

	if m.metrics != nil {
		m.metrics.RecordInsert()
		m.metrics.RecordTipCount(len(m.tips))
		m.metrics.RecordRootCount(len(m.roots))
	}
	m.log.Debug("inserted block", logger.BlockID(id), logger.ParentID(parentID), logger.BlockNumber(blockNumber))

	return nil
}

func (m *Multiverse[K, V]) insertInMemory(id, parentID K, blockNumber uint64, v V) error {
	if _, exists := m.all[id]; exists {
		return nil
	}

	e := &entry[K, V]{value: v, parentID: parentID, children: make(map[K]struct{})}

	if parent, ok := m.all[parentID]; ok {
		parent.children[id] = struct{}{}
		delete(m.tips, parentID)
		e.hasParent = true
	} else {
		m.roots[id] = struct{}{}
	}

	if m.ordered[blockNumber] == nil {
		m.ordered[blockNumber] = make(map[K]struct{})
	}
	m.ordered[blockNumber][id] = struct{}{}

	m.all[id] = e
	m.tips[id] = struct{}{}

	return nil
}

// Remove deletes key from the multiverse, promoting its children to roots
// if key itself was a root, and returns the removed value.
func (m *Multiverse[K, V]) Remove(key K) (V, error) {
	var zero V

	e, ok := m.all[key]
	if !ok {
		return zero, ErrNotFound
	}
	blockNumber := e.value.BlockNumber()

	if _, isRoot := m.roots[key]; isRoot {
		delete(m.roots, key)
		for child := range e.children {
			m.roots[child] = struct{}{}
		}
	} else if parent, ok := m.all[e.parentID]; ok {
		delete(parent.children, key)
		if len(parent.children) == 0 {
			m.tips[e.parentID] = struct{}{}
		}
	}

	if bucket, ok := m.ordered[blockNumber]; ok {
		delete(bucket, key)
		if len(bucket) == 0 {
			delete(m.ordered, blockNumber)
		}
	}
	delete(m.tips, key)
	delete(m.all, key)

	if m.persist != nil {
		if err := m.persist.remove(blockNumber, key); err != nil {
			return zero, err
		}
	}

	if m.metrics != nil {
		m.metrics.RecordTipCount(len(m.tips))
		m.metrics.RecordRootCount(len(m.roots))
	}
	m.log.Debug("removed block", logger.BlockID(key), logger.BlockNumber(blockNumber))

	return e.value, nil
}

// Ancestor walks depth parent links back from tip. Ancestor(k, 0) always
// returns k itself, even if k isn't currently tracked — the walk only
// dereferences parent links, never checks the starting point. It returns
// ok=false if the walk runs off the tracked portion of the DAG before depth
// steps are taken.
func (m *Multiverse[K, V]) Ancestor(tip K, depth int) (K, bool) {
	cur := tip
	for i := 0; i < depth; i++ {
		e, ok := m.all[cur]
		if !ok {
			var zero K
			return zero, false
		}
		cur = e.parentID
	}
	return cur, true
}

// SelectBestBlock applies rule and returns the selected canonical block
// along with every key now eligible for discarding (every entry whose block
// number falls more than rule.AgeGap below the selected block's number). It
// returns ok=false if there are no tracked blocks, or if the selected
// ancestor walk runs past the tracked portion of the DAG.
func (m *Multiverse[K, V]) SelectBestBlock(rule BestBlockSelectionRule) (selected K, ok bool, discarded []K, err error) {
	if len(m.ordered) == 0 {
		return selected, false, nil, nil
	}

	maxBlockNumber := uint64(0)
	first := true
	for bn := range m.ordered {
		if first || bn > maxBlockNumber {
			maxBlockNumber = bn
			first = false
		}
	}

	var tip K
	for k := range m.ordered[maxBlockNumber] {
		tip = k
		break
	}

	ancestor, ok := m.Ancestor(tip, rule.Depth)
	if !ok {
		return selected, false, nil, nil
	}

	e, ok := m.all[ancestor]
	if !ok {
		return selected, false, nil, nil
	}
	selectedBlockNumber := e.value.BlockNumber()

	threshold := uint64(0)
	if selectedBlockNumber > rule.AgeGap {
		threshold = selectedBlockNumber - rule.AgeGap
	}

	var blockNumbers []uint64
	for bn := range m.ordered {
		if bn < threshold {
			blockNumbers = append(blockNumbers, bn)
		}
	}
	sort.Slice(blockNumbers, func(i, j int) bool { return blockNumbers[i] < blockNumbers[j] })
	for _, bn := range blockNumbers {
		for k := range m.ordered[bn] {
			discarded = append(discarded, k)
		}
	}

	if m.metrics != nil && len(discarded) > 0 {
		m.metrics.RecordDiscarded(len(discarded))
	}
	m.log.Debug("selected best block", logger.BlockID(ancestor), logger.BlockNumber(selectedBlockNumber),
		logger.Depth(rule.Depth), logger.AgeGap(rule.AgeGap), logger.Discarded(len(discarded)))

	return ancestor, true, discarded, nil
}

// PreferLongestChainForkTip returns the tracked tip with the highest block
// number. Ties are broken arbitrarily (map iteration order), matching the
// upstream behavior this is grounded on.
func (m *Multiverse[K, V]) PreferLongestChainForkTip() (K, bool) {
	var best K
	var bestBlockNumber uint64
	found := false

	for tip := range m.tips {
		e := m.all[tip]
		bn := e.value.BlockNumber()
		if !found || bn > bestBlockNumber {
			best = tip
			bestBlockNumber = bn
			found = true
		}
	}

	return best, found
}

// Get returns the value stored under key.
func (m *Multiverse[K, V]) Get(key K) (V, bool) {
	e, ok := m.all[key]
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Contains reports whether key is tracked.
func (m *Multiverse[K, V]) Contains(key K) bool {
	_, ok := m.all[key]
	return ok
}

// Len returns the number of tracked blocks.
func (m *Multiverse[K, V]) Len() int { return len(m.all) }

// IsEmpty reports whether the multiverse tracks no blocks.
func (m *Multiverse[K, V]) IsEmpty() bool { return len(m.all) == 0 }

// Tips returns every currently tracked tip, in no particular order.
func (m *Multiverse[K, V]) Tips() []K {
	tips := make([]K, 0, len(m.tips))
	for k := range m.tips {
		tips = append(tips, k)
	}
	return tips
}

// Iter returns every tracked value in ascending block-number order.
func (m *Multiverse[K, V]) Iter() []V {
	blockNumbers := make([]uint64, 0, len(m.ordered))
	for bn := range m.ordered {
		blockNumbers = append(blockNumbers, bn)
	}
	sort.Slice(blockNumbers, func(i, j int) bool { return blockNumbers[i] < blockNumbers[j] })

	values := make([]V, 0, len(m.all))
	for _, bn := range blockNumbers {
		for k := range m.ordered[bn] {
			values = append(values, m.all[k].value)
		}
	}
	return values
}

// Clear irreversibly wipes every tracked block, in memory and (if
// configured) in the persistent mirror.
func (m *Multiverse[K, V]) Clear() error {
	m.all = make(map[K]*entry[K, V])
	m.ordered = make(map[uint64]map[K]struct{})
	m.tips = make(map[K]struct{})
	m.roots = make(map[K]struct{})

	if m.persist != nil {
		return m.persist.clear()
	}
	return nil
}

// Close releases the persistent mirror, if any.
func (m *Multiverse[K, V]) Close() error {
	if m.persist != nil {
		return m.persist.close()
	}
	return nil
}
