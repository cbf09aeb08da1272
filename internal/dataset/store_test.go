package dataset

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/secwatch-console/internal/daterange"
	"github.com/Ashfaaq98/secwatch-console/internal/facet"
	"github.com/Ashfaaq98/secwatch-console/internal/record"
)

var (
	quiet  = log.New(io.Discard, "", 0)
	facets = facet.Set{{ID: "alertType", Kind: facet.Categorical, FieldPath: "rule_name"}}
	base   = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	r1     = daterange.Range{From: base.AddDate(0, 0, -7), To: base}
	r2     = daterange.Range{From: base.AddDate(0, 0, -1), To: base}
)

func staticFetcher(c record.Collection, err error) (Fetcher, *int32) {
	var calls int32
	return FetcherFunc(func(ctx context.Context, r daterange.Range) (record.Collection, error) {
		atomic.AddInt32(&calls, 1)
		return c, err
	}), &calls
}

func TestRefreshReplacesMasterAndDomains(t *testing.T) {
	f, calls := staticFetcher(record.Collection{
		{"rule_name": "NewDevice"},
		{"rule_name": "ImpossibleTravel"},
		{"rule_name": "NewDevice"},
	}, nil)
	s := NewStore(f, facets, quiet)

	snap, err := s.Refresh(context.Background(), r1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Len(t, snap.Records, 3)
	assert.True(t, r1.Equal(snap.Range))
	assert.Equal(t, []string{"NewDevice", "ImpossibleTravel"}, snap.Domains["alertType"].Values())
	assert.NoError(t, s.LastError())
}

func TestRefreshUnsetRangeSkipsFetch(t *testing.T) {
	f, calls := staticFetcher(nil, nil)
	s := NewStore(f, facets, quiet)

	_, err := s.Refresh(context.Background(), daterange.Range{From: base})
	assert.True(t, errors.Is(err, ErrRangeUnset))
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestFailedRefreshKeepsPreviousMaster(t *testing.T) {
	good := record.Collection{{"rule_name": "NewDevice"}}
	var fail atomic.Bool
	s := NewStore(FetcherFunc(func(ctx context.Context, r daterange.Range) (record.Collection, error) {
		if fail.Load() {
			return nil, &FetchError{Status: 502, Err: errors.New("bad gateway")}
		}
		return good, nil
	}), facets, quiet)

	_, err := s.Refresh(context.Background(), r1)
	require.NoError(t, err)

	fail.Store(true)
	snap, err := s.Refresh(context.Background(), r2)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 502, fe.Status)
	assert.True(t, r2.Equal(fe.Range))
	assert.Equal(t, good, snap.Records)
	assert.True(t, r1.Equal(s.Snapshot().Range))
	assert.Error(t, s.LastError())

	fail.Store(false)
	_, err = s.Refresh(context.Background(), r2)
	require.NoError(t, err)
	assert.NoError(t, s.LastError())
}

func TestStaleResponseDiscarded(t *testing.T) {
	release1 := make(chan struct{})
	started1 := make(chan struct{})
	s := NewStore(FetcherFunc(func(ctx context.Context, r daterange.Range) (record.Collection, error) {
		if r.Equal(r1) {
			close(started1)
			<-release1
			return record.Collection{{"rule_name": "from-r1"}}, nil
		}
		return record.Collection{{"rule_name": "from-r2"}}, nil
	}), facets, quiet)

	var wg sync.WaitGroup
	var err1 error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err1 = s.Refresh(context.Background(), r1)
	}()
	<-started1

	snap, err := s.Refresh(context.Background(), r2)
	require.NoError(t, err)
	assert.Equal(t, "from-r2", snap.Records[0]["rule_name"])

	close(release1)
	wg.Wait()
	assert.True(t, errors.Is(err1, ErrSuperseded))
	cur := s.Snapshot()
	assert.True(t, r2.Equal(cur.Range))
	assert.Equal(t, "from-r2", cur.Records[0]["rule_name"])
}

func TestNewerRefreshCancelsOlderContext(t *testing.T) {
	cancelled := make(chan struct{})
	started := make(chan struct{})
	s := NewStore(FetcherFunc(func(ctx context.Context, r daterange.Range) (record.Collection, error) {
		if r.Equal(r1) {
			close(started)
			<-ctx.Done()
			close(cancelled)
			return nil, ctx.Err()
		}
		return record.Collection{}, nil
	}), facets, quiet)

	done := make(chan error, 1)
	go func() {
		_, err := s.Refresh(context.Background(), r1)
		done <- err
	}()
	<-started
	_, err := s.Refresh(context.Background(), r2)
	require.NoError(t, err)

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("older fetch was not cancelled")
	}
	assert.True(t, errors.Is(<-done, ErrSuperseded))
	assert.NoError(t, s.LastError(), "superseded failure is not recorded")
}

func TestFetchErrorFormatting(t *testing.T) {
	e := AsFetchError(r1, errors.New("boom"))
	assert.Contains(t, e.Error(), "boom")
	assert.Equal(t, e, AsFetchError(r2, e))
	assert.Contains(t, (&FetchError{Range: r1, Status: 500, Err: errors.New("x")}).Error(), "status 500")
}
