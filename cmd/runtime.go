package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Ashfaaq98/secwatch-console/internal/client"
	"github.com/Ashfaaq98/secwatch-console/internal/dataset"
	"github.com/Ashfaaq98/secwatch-console/internal/daterange"
	"github.com/Ashfaaq98/secwatch-console/internal/engine"
	"github.com/Ashfaaq98/secwatch-console/internal/facet"
	"github.com/Ashfaaq98/secwatch-console/internal/record"
	"github.com/Ashfaaq98/secwatch-console/internal/store"
)

// openStore opens the configured database, resolving relative paths against
// the working directory.
func openStore(cfg Config, logger *log.Logger) (*store.Store, error) {
	path := resolvePathRelativeToBase(getWorkingDir(), cfg.Database.Path)
	logger.Printf("Using database at %s", path)
	st, err := store.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return st, nil
}

// storeFetcher reads a view straight from SQLite, for running without the
// backend (--local).
func storeFetcher(st *store.Store, kind string) dataset.Fetcher {
	return dataset.FetcherFunc(func(ctx context.Context, r daterange.Range) (record.Collection, error) {
		recs, err := st.RecordsInRange(ctx, kind, r.From, r.To, 0)
		if err != nil {
			return nil, &dataset.FetchError{Range: r, Err: err}
		}
		return recs, nil
	})
}

// fetcherSource picks where engines load their records from.
type fetcherSource func(v facet.View) dataset.Fetcher

func backendSource(cfg Config, logger *log.Logger) (fetcherSource, error) {
	c, err := client.New(client.Options{
		BaseURL: cfg.Backend.URL,
		Token:   cfg.Backend.Token,
		RPS:     cfg.Backend.RPS,
		Timeout: cfg.Backend.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	return func(v facet.View) dataset.Fetcher { return c.Fetcher(v.Endpoint) }, nil
}

func localSource(st *store.Store) fetcherSource {
	return func(v facet.View) dataset.Fetcher { return storeFetcher(st, v.Name) }
}

// buildEngines creates one engine per named view.
func buildEngines(views map[string]facet.View, names []string, src fetcherSource, logger func(string) *log.Logger) (map[string]*engine.Engine, error) {
	out := make(map[string]*engine.Engine, len(names))
	for _, name := range names {
		v, err := facet.LookupView(views, name)
		if err != nil {
			return nil, err
		}
		e, err := engine.New(v, src(v), engine.Options{Logger: logger("engine:" + name)})
		if err != nil {
			return nil, err
		}
		out[name] = e
	}
	return out, nil
}

// defaultRange is the initial shared range: the last n days ending now.
func defaultRange(cfg Config) daterange.Range {
	return daterange.LastDays(time.Now(), cfg.DateRange.DefaultDays)
}
