package board

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/appetiteclub/comanda/internal/announce"
	"github.com/appetiteclub/comanda/internal/metrics"
	"github.com/appetiteclub/comanda/internal/order"
	"github.com/appetiteclub/comanda/pkg/enums/boardcolumn"
	"github.com/appetiteclub/comanda/pkg/enums/orderstatus"
	"github.com/aquamarinepk/aqm"
)

const (
	defaultHighlightTTL = 700 * time.Millisecond
	announceSource      = "kitchen-board"
)

// Backend is the subset of the orders API the board needs.
type Backend interface {
	List(ctx context.Context) ([]order.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status orderstatus.Status) error
}

// PrepTracker receives preparation start and end marks.
type PrepTracker interface {
	MarkPrepStart(ctx context.Context, orderKey string) bool
	MarkPrepEnd(ctx context.Context, orderKey string) (int, bool)
	DiscardPrepStart(ctx context.Context, orderKey string)
}

// Entry is one card on the board.
type Entry struct {
	Order       order.Order `json:"order"`
	JustUpdated bool        `json:"justUpdated"`
}

// Store holds the kitchen board: four columns of orders partitioned by
// status. Column slices are replaced on every write, never mutated in place.
type Store struct {
	mu      sync.Mutex
	columns map[boardcolumn.Column][]Entry
	// highlight generation per order id; present while the flag is on
	highlights map[string]uint64
	generation uint64

	backend      Backend
	prep         PrepTracker
	announcer    *announce.Announcer
	metrics      *metrics.Registry
	logger       aqm.Logger
	highlightTTL time.Duration
	now          func() time.Time
}

func NewStore(backend Backend, prep PrepTracker, announcer *announce.Announcer, m *metrics.Registry, config *aqm.Config, logger aqm.Logger) *Store {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	s := &Store{
		columns:      emptyColumns(),
		highlights:   make(map[string]uint64),
		backend:      backend,
		prep:         prep,
		announcer:    announcer,
		metrics:      m,
		logger:       logger,
		highlightTTL: defaultHighlightTTL,
		now:          time.Now,
	}

	if config != nil {
		if v, ok := config.GetString("board.highlight.ttl"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				s.highlightTTL = d
			} else {
				logger.Error("invalid board.highlight.ttl, using default", "value", v, "error", err)
			}
		}
	}

	return s
}

func emptyColumns() map[boardcolumn.Column][]Entry {
	cols := make(map[boardcolumn.Column][]Entry, len(boardcolumn.All))
	for _, c := range boardcolumn.All {
		cols[c] = []Entry{}
	}
	return cols
}

// LoadAll replaces the board contents with the backend state. On error the
// current contents are kept.
func (s *Store) LoadAll(ctx context.Context) error {
	if s.backend == nil {
		return fmt.Errorf("board backend not configured")
	}

	orders, err := s.backend.List(ctx)
	if err != nil {
		return fmt.Errorf("load board: %w", err)
	}

	cols := emptyColumns()
	seen := make(map[string]bool, len(orders))
	var pastPrep []string
	for _, o := range orders {
		if o.Status == orderstatus.Statuses.Draft || o.ID == "" || seen[o.ID] {
			continue
		}
		col, ok := boardcolumn.For(o.Status)
		if !ok {
			continue
		}
		if err := o.Validate(); err != nil {
			s.logger.Debug("order does not satisfy invariants", "order_id", o.ID, "error", err)
		}
		seen[o.ID] = true
		cols[col] = append(cols[col], Entry{Order: o.Clone()})
		if orderstatus.Advances(orderstatus.Statuses.InPreparation, o.Status) {
			pastPrep = append(pastPrep, o.ID)
		}
	}

	for _, c := range boardcolumn.All {
		sortByCreation(cols[c])
	}

	s.mu.Lock()
	for _, c := range boardcolumn.All {
		for i := range cols[c] {
			if _, ok := s.highlights[cols[c][i].Order.ID]; ok {
				cols[c][i].JustUpdated = true
			}
		}
	}
	s.columns = cols
	s.mu.Unlock()

	// orders that left preparation elsewhere close their prep window here;
	// the first close wins so board moves keep their own timing
	if s.prep != nil {
		for _, id := range pastPrep {
			s.prep.MarkPrepEnd(ctx, id)
		}
	}

	s.logger.Debug("board loaded", "orders", len(seen))
	return nil
}

// sortByCreation orders ascending by creation time; orders without one go
// last, keeping backend order among themselves.
func sortByCreation(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Order.CreatedAt, entries[j].Order.CreatedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}

// MoveWithinColumn reorders one column locally. It reports false when either
// index is out of range.
func (s *Store) MoveWithinColumn(col boardcolumn.Column, fromIndex, toIndex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reorderLocked(col, fromIndex, toIndex)
}

func (s *Store) reorderLocked(col boardcolumn.Column, fromIndex, toIndex int) bool {
	entries, ok := s.columns[col]
	if !ok || fromIndex < 0 || fromIndex >= len(entries) || toIndex < 0 || toIndex >= len(entries) {
		return false
	}
	if fromIndex == toIndex {
		return true
	}

	moved := entries[fromIndex]
	next := make([]Entry, 0, len(entries))
	next = append(next, entries[:fromIndex]...)
	next = append(next, entries[fromIndex+1:]...)
	next = insertAt(next, toIndex, moved)
	s.columns[col] = next
	return true
}

// MoveAcrossColumns drops the order at fromIndex of one column into another.
// The order takes the status of the destination column and the change is
// sent to the backend. Moves that are not a valid forward transition, and
// any move out of the delivered column, are ignored and report false.
// A failed backend update reloads the whole board and returns the error.
func (s *Store) MoveAcrossColumns(ctx context.Context, from, to boardcolumn.Column, fromIndex, toIndex int) (bool, error) {
	if from == to {
		return s.MoveWithinColumn(from, fromIndex, toIndex), nil
	}

	s.mu.Lock()
	mv, ok := s.takeLocked(from, to, fromIndex, toIndex)
	s.mu.Unlock()
	if !ok {
		s.metrics.BoardMove("noop")
		return false, nil
	}

	return s.commit(ctx, mv)
}

// AdvanceByAction moves the order one column forward, appending it to the
// end of the next column. Unknown orders and orders already delivered are
// ignored.
func (s *Store) AdvanceByAction(ctx context.Context, orderKey string) (bool, error) {
	s.mu.Lock()
	var (
		mv move
		ok bool
	)
	for _, col := range []boardcolumn.Column{
		boardcolumn.Columns.ToPrepare,
		boardcolumn.Columns.InProgress,
		boardcolumn.Columns.Ready,
	} {
		idx := indexOf(s.columns[col], orderKey)
		if idx < 0 {
			continue
		}
		next, hasNext := col.Next()
		if !hasNext {
			break
		}
		mv, ok = s.takeLocked(col, next, idx, len(s.columns[next]))
		break
	}
	s.mu.Unlock()

	if !ok {
		s.metrics.BoardMove("noop")
		return false, nil
	}
	return s.commit(ctx, mv)
}

type move struct {
	order      order.Order
	prevStatus orderstatus.Status
	generation uint64
}

// takeLocked applies the local side of a move. Must be called with s.mu held.
func (s *Store) takeLocked(from, to boardcolumn.Column, fromIndex, toIndex int) (move, bool) {
	if from.IsTerminal() {
		return move{}, false
	}
	src, ok := s.columns[from]
	if !ok || fromIndex < 0 || fromIndex >= len(src) {
		return move{}, false
	}
	dst, ok := s.columns[to]
	if !ok {
		return move{}, false
	}

	entry := src[fromIndex]
	prev := entry.Order.Status
	next := to.Status()
	if !orderstatus.CanTransition(prev, next) {
		return move{}, false
	}

	now := s.now()
	entry.Order = entry.Order.Clone()
	entry.Order.Status = next
	entry.Order.UpdatedAt = &now
	if next == orderstatus.Statuses.Delivered {
		entry.Order.DeliveredAt = &now
	}
	entry.JustUpdated = true

	s.generation++
	s.highlights[entry.Order.ID] = s.generation

	remaining := make([]Entry, 0, len(src)-1)
	remaining = append(remaining, src[:fromIndex]...)
	remaining = append(remaining, src[fromIndex+1:]...)
	s.columns[from] = remaining
	s.columns[to] = insertAt(append([]Entry(nil), dst...), toIndex, entry)

	return move{order: entry.Order.Clone(), prevStatus: prev, generation: s.generation}, true
}

func (s *Store) commit(ctx context.Context, mv move) (bool, error) {
	id := mv.order.ID
	status := mv.order.Status

	time.AfterFunc(s.highlightTTL, func() { s.clearHighlight(id, mv.generation) })

	started := false
	if status == orderstatus.Statuses.InPreparation && s.prep != nil {
		started = s.prep.MarkPrepStart(ctx, id)
	}
	if mv.prevStatus == orderstatus.Statuses.InPreparation && s.prep != nil {
		s.prep.MarkPrepEnd(ctx, id)
	}

	if s.backend == nil {
		return false, fmt.Errorf("board backend not configured")
	}
	if err := s.backend.UpdateStatus(ctx, id, status); err != nil {
		s.logger.Error("cannot update order status, reloading board", "order_id", id, "status", status.Code(), "error", err)
		s.metrics.BoardMove("failed")
		s.metrics.BoardResync()
		if started {
			s.prep.DiscardPrepStart(ctx, id)
		}
		if rerr := s.LoadAll(ctx); rerr != nil {
			s.logger.Error("board resync failed", "error", rerr)
		}
		return false, fmt.Errorf("update order %s to %s: %w", id, status.Code(), err)
	}

	s.metrics.BoardMove("applied")
	s.logger.Info("order status updated", "order_id", id, "from", mv.prevStatus.Code(), "to", status.Code())
	s.announcer.StatusChanged(ctx, mv.order, mv.prevStatus, announceSource)
	return true, nil
}

func (s *Store) clearHighlight(orderID string, generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.highlights[orderID] != generation {
		return
	}
	delete(s.highlights, orderID)

	for col, entries := range s.columns {
		idx := indexOf(entries, orderID)
		if idx < 0 {
			continue
		}
		next := append([]Entry(nil), entries...)
		next[idx].JustUpdated = false
		s.columns[col] = next
	}
}

// Find returns the entry and column currently holding the order.
func (s *Store) Find(orderKey string) (Entry, boardcolumn.Column, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, col := range boardcolumn.All {
		if idx := indexOf(s.columns[col], orderKey); idx >= 0 {
			e := s.columns[col][idx]
			e.Order = e.Order.Clone()
			return e, col, true
		}
	}
	return Entry{}, boardcolumn.Column{}, false
}

// Snapshot returns a copy of every column.
func (s *Store) Snapshot() map[boardcolumn.Column][]Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[boardcolumn.Column][]Entry, len(s.columns))
	for col, entries := range s.columns {
		cp := make([]Entry, len(entries))
		for i, e := range entries {
			cp[i] = Entry{Order: e.Order.Clone(), JustUpdated: e.JustUpdated}
		}
		out[col] = cp
	}
	return out
}

func indexOf(entries []Entry, orderID string) int {
	for i, e := range entries {
		if e.Order.ID == orderID {
			return i
		}
	}
	return -1
}

// insertAt clamps index into [0, len(entries)].
func insertAt(entries []Entry, index int, e Entry) []Entry {
	if index < 0 || index > len(entries) {
		index = len(entries)
	}
	entries = append(entries, Entry{})
	copy(entries[index+1:], entries[index:])
	entries[index] = e
	return entries
}
