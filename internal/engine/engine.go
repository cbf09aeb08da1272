// Package engine ties one view's dataset, filter state and badge list
// together behind a read-after-write consistent API.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/Ashfaaq98/secwatch-console/internal/dataset"
	"github.com/Ashfaaq98/secwatch-console/internal/daterange"
	"github.com/Ashfaaq98/secwatch-console/internal/facet"
	"github.com/Ashfaaq98/secwatch-console/internal/filter"
	"github.com/Ashfaaq98/secwatch-console/internal/record"
)

// ChangeKind says what moved in an Engine.
type ChangeKind int

const (
	// FiltersChanged follows setFacet, clearFacet and clearAll.
	FiltersChanged ChangeKind = iota
	// DataRefreshed follows a successful refresh.
	DataRefreshed
	// RefreshFailed follows a refresh that kept the previous data.
	RefreshFailed
)

func (k ChangeKind) String() string {
	switch k {
	case FiltersChanged:
		return "filters"
	case DataRefreshed:
		return "refreshed"
	case RefreshFailed:
		return "refresh-failed"
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

// Change is delivered to subscribers after the engine state is updated.
type Change struct {
	Kind ChangeKind
	Err  error
}

// Options configures New.
type Options struct {
	Logger *log.Logger
}

// Engine is the single owner of one view's master collection and filter
// state. All methods are safe for concurrent use; listeners run outside the
// engine lock in subscription order.
type Engine struct {
	view   facet.View
	store  *dataset.Store
	logger *log.Logger

	mu      sync.RWMutex
	state   filter.State
	current record.Collection
	gen     uint64 // snapshot generation projected into current
	// notified is the newest generation announced as DataRefreshed. A
	// filter change can project a fresh snapshot before Refresh gets here.
	notified uint64

	// afterFetch runs between the store publishing a snapshot and the
	// engine taking its lock. Tests only.
	afterFetch func()

	subMu   sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

// New creates an engine for view backed by fetcher.
func New(view facet.View, fetcher dataset.Fetcher, opts Options) (*Engine, error) {
	if err := view.Facets.Validate(); err != nil {
		return nil, fmt.Errorf("view %s: %w", view.Name, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[engine] ", log.LstdFlags)
	}
	e := &Engine{
		view:    view,
		store:   dataset.NewStore(fetcher, view.Facets, logger),
		logger:  logger,
		state:   filter.Empty(),
		current: record.Collection{},
		subs:    make(map[int]func(Change)),
	}
	return e, nil
}

// View returns the view definition.
func (e *Engine) View() facet.View { return e.view }

// SetFacet constrains facet id with operand. Unknown ids fail with
// filter.ErrUnknownFacet; rejected operands with filter.ErrInvalidOperand.
// In both cases the state is unchanged.
func (e *Engine) SetFacet(id string, operand any) error {
	d, ok := e.view.Facets.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %q in view %s", filter.ErrUnknownFacet, id, e.view.Name)
	}
	dom := e.store.Snapshot().Domains[id]

	e.mu.Lock()
	next, err := e.state.SetFacet(d, dom, operand)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	changed := !next.Equal(e.state)
	if changed {
		e.state = next
		e.recomputeLocked()
	}
	e.mu.Unlock()

	if changed {
		e.notify(Change{Kind: FiltersChanged})
	}
	return nil
}

// ClearFacet removes the predicate for id; absent ids are a no-op.
func (e *Engine) ClearFacet(id string) {
	e.mutate(func(s filter.State) filter.State { return s.ClearFacet(id) })
}

// ClearAll removes every predicate.
func (e *Engine) ClearAll() {
	e.mutate(func(s filter.State) filter.State { return s.ClearAll() })
}

func (e *Engine) mutate(fn func(filter.State) filter.State) {
	e.mu.Lock()
	next := fn(e.state)
	changed := !next.Equal(e.state)
	if changed {
		e.state = next
		e.recomputeLocked()
	}
	e.mu.Unlock()
	if changed {
		e.notify(Change{Kind: FiltersChanged})
	}
}

// Refresh fetches r and re-filters the new master collection through the
// filter state current at completion. Errors are those of dataset.Store:
// ErrRangeUnset, ErrSuperseded or a *dataset.FetchError (previous data kept).
func (e *Engine) Refresh(ctx context.Context, r daterange.Range) error {
	snap, err := e.store.Refresh(ctx, r)
	switch {
	case err == nil:
	case errors.Is(err, dataset.ErrSuperseded), errors.Is(err, dataset.ErrRangeUnset):
		return err
	default:
		e.notify(Change{Kind: RefreshFailed, Err: err})
		return err
	}

	if e.afterFetch != nil {
		e.afterFetch()
	}

	e.mu.Lock()
	if snap.Generation > e.gen {
		e.recomputeLocked()
	}
	applied := snap.Generation > e.notified
	if applied {
		e.notified = snap.Generation
	}
	e.mu.Unlock()
	if applied {
		e.logger.Printf("%s: %d records for %s", e.view.Name, len(snap.Records), snap.Range)
		e.notify(Change{Kind: DataRefreshed})
	}
	return nil
}

// Bind refreshes on every change of rc, plus once now if rc already holds a
// range. Refreshes run on their own goroutines; the store keeps only the
// newest. The returned func detaches the engine from rc.
func (e *Engine) Bind(ctx context.Context, rc *daterange.Context) (cancel func()) {
	run := func(r daterange.Range) {
		go func() {
			err := e.Refresh(ctx, r)
			if err != nil && !errors.Is(err, dataset.ErrSuperseded) && !errors.Is(err, dataset.ErrRangeUnset) {
				e.logger.Printf("%s: refresh %s: %v", e.view.Name, r, err)
			}
		}()
	}
	unsub := rc.Subscribe(run)
	if r := rc.Get(); r.IsSet() {
		run(r)
	}
	return unsub
}

// recomputeLocked re-projects the latest master collection. Callers hold mu.
func (e *Engine) recomputeLocked() {
	snap := e.store.Snapshot()
	e.current = filter.Project(snap.Records, filter.Compile(e.state))
	e.gen = snap.Generation
}

// CurrentView returns the filtered records in master order.
func (e *Engine) CurrentView() record.Collection {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current.Clone()
}

// Total is the size of the unfiltered master collection.
func (e *Engine) Total() int { return len(e.store.Snapshot().Records) }

// State returns the current filter state.
func (e *Engine) State() filter.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// ActiveBadges returns one badge per active predicate; dismissing a badge is
// ClearFacet on its facet.
func (e *Engine) ActiveBadges() []filter.Badge {
	return filter.Render(e.State(), e.view.Facets, e.ClearFacet)
}

// Indicator is the one-line active filter summary, empty when unfiltered.
func (e *Engine) Indicator() string { return filter.Indicator(e.ActiveBadges()) }

// Domains returns the facet domains of the current master collection.
func (e *Engine) Domains() facet.Domains { return e.store.Snapshot().Domains }

// Options returns the selectable values for a categorical or boolean facet.
func (e *Engine) Options(id string) []string {
	d, ok := e.store.Snapshot().Domains[id]
	if !ok {
		return nil
	}
	return d.Values()
}

// Range is the date range of the current master collection.
func (e *Engine) Range() daterange.Range { return e.store.Snapshot().Range }

// FetchedAt is when the current master collection was fetched.
func (e *Engine) FetchedAt() time.Time { return e.store.Snapshot().FetchedAt }

// LastError is the error of the most recent applied refresh.
func (e *Engine) LastError() error { return e.store.LastError() }

// Subscribe registers fn for changes and returns a cancel func.
func (e *Engine) Subscribe(fn func(Change)) (cancel func()) {
	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.subMu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subs, id)
			e.subMu.Unlock()
		})
	}
}

func (e *Engine) notify(c Change) {
	e.subMu.Lock()
	ids := make([]int, 0, len(e.subs))
	for id := range e.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, e.subs[id])
	}
	e.subMu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}
