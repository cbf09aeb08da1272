package dataset

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Ashfaaq98/secwatch-console/internal/daterange"
	"github.com/Ashfaaq98/secwatch-console/internal/facet"
	"github.com/Ashfaaq98/secwatch-console/internal/record"
)

// Fetcher loads every record for a date range. Implementations must honour
// ctx cancellation when they can; the store discards stale results anyway.
type Fetcher interface {
	Fetch(ctx context.Context, r daterange.Range) (record.Collection, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, r daterange.Range) (record.Collection, error)

func (f FetcherFunc) Fetch(ctx context.Context, r daterange.Range) (record.Collection, error) {
	return f(ctx, r)
}

// Snapshot is the master collection of one completed fetch together with the
// facet domains derived from it. Snapshots are never modified after publish.
type Snapshot struct {
	Records    record.Collection
	Domains    facet.Domains
	Range      daterange.Range
	FetchedAt  time.Time
	Generation uint64
}

// Store owns the master collection for one view.
type Store struct {
	fetcher Fetcher
	facets  facet.Set
	logger  *log.Logger
	now     func() time.Time

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	snap    Snapshot
	lastErr error
}

// NewStore creates an empty store. Domains are derived for facets on every
// successful refresh.
func NewStore(f Fetcher, facets facet.Set, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(log.Writer(), "[dataset] ", log.LstdFlags)
	}
	return &Store{
		fetcher: f,
		facets:  facets,
		logger:  logger,
		now:     time.Now,
		snap:    Snapshot{Records: record.Collection{}, Domains: facet.Derive(nil, facets)},
	}
}

// Snapshot returns the current master collection and domains.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// LastError returns the error of the most recent applied refresh, nil after a
// success.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Refresh issues exactly one fetch for r and, if no newer refresh has started
// meanwhile, atomically replaces the master collection. A newer call cancels
// the context of the older one, whose result is discarded with ErrSuperseded.
// On fetch failure the previous collection is kept and a *FetchError is
// returned. The returned Snapshot is the one current when Refresh returns.
func (s *Store) Refresh(ctx context.Context, r daterange.Range) (Snapshot, error) {
	if !r.IsSet() {
		return s.Snapshot(), ErrRangeUnset
	}
	if err := r.Validate(); err != nil {
		return s.Snapshot(), &FetchError{Range: r, Err: err}
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	if s.cancel != nil {
		s.cancel()
	}
	fctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	recs, err := s.fetcher.Fetch(fctx, r)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		s.logger.Printf("discarding stale response for %s (generation %d, current %d)", r, gen, s.gen)
		return s.snap, ErrSuperseded
	}
	s.cancel = nil
	if err != nil {
		fe := AsFetchError(r, err)
		s.lastErr = fe
		s.logger.Printf("refresh failed: %v", fe)
		return s.snap, fe
	}
	if recs == nil {
		recs = record.Collection{}
	}
	s.snap = Snapshot{
		Records:    recs,
		Domains:    facet.Derive(recs, s.facets),
		Range:      r,
		FetchedAt:  s.now(),
		Generation: gen,
	}
	s.lastErr = nil
	return s.snap, nil
}
