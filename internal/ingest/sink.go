package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/Ashfaaq98/secwatch-console/internal/bus"
	"github.com/Ashfaaq98/secwatch-console/internal/facet"
	"github.com/Ashfaaq98/secwatch-console/internal/record"
	"github.com/Ashfaaq98/secwatch-console/internal/store"
)

// ErrUnknownKind is returned for a record kind no view declares.
var ErrUnknownKind = errors.New("unknown record kind")

// Sink persists record batches and announces them on the bus. It is shared by
// the folder ingestor, the HTTP API and the seed command.
type Sink struct {
	store  *store.Store
	bus    bus.Bus
	views  map[string]facet.View
	logger *log.Logger
}

// NewSink builds a sink. A nil bus disables announcements.
func NewSink(st *store.Store, b bus.Bus, views map[string]facet.View, logger *log.Logger) *Sink {
	if logger == nil {
		logger = log.New(log.Writer(), "[ingest] ", log.LstdFlags)
	}
	if b == nil {
		b = bus.NewNullBus(logger)
	}
	return &Sink{store: st, bus: b, views: views, logger: logger}
}

// Kinds lists the accepted record kinds.
func (s *Sink) Kinds() []string {
	out := make([]string, 0, len(s.views))
	for _, n := range facet.ViewNames() {
		if _, ok := s.views[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Ingest stores recs under kind, logs the batch and publishes an update.
// Publishing is best-effort.
func (s *Sink) Ingest(ctx context.Context, kind, source string, recs record.Collection) (store.SaveResult, error) {
	v, ok := s.views[kind]
	if !ok {
		return store.SaveResult{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	res, err := s.store.SaveRecords(ctx, kind, v.TimeField, recs)
	if err != nil {
		return res, err
	}
	if err := s.store.AddIngestEntry(ctx, store.IngestEntry{
		Kind: kind, Source: source, Saved: res.Saved, Skipped: res.Skipped,
	}); err != nil {
		s.logger.Printf("ingest log: %v", err)
	}
	if res.Saved > 0 {
		if err := s.bus.PublishUpdate(ctx, bus.UpdateMessage{Kind: kind, Count: res.Saved, Source: source}); err != nil {
			s.logger.Printf("publish update: %v", err)
		}
	}
	return res, nil
}

// KindFromFilename extracts the record kind from "<kind>-<anything>.json[l]"
// or "<kind>.json[l]".
func KindFromFilename(name string) (string, bool) {
	base := strings.ToLower(filepath.Base(name))
	ext := filepath.Ext(base)
	if ext != ".json" && ext != ".jsonl" {
		return "", false
	}
	stem := strings.TrimSuffix(base, ext)
	if i := strings.IndexByte(stem, '-'); i >= 0 {
		stem = stem[:i]
	}
	if stem == "" {
		return "", false
	}
	return stem, true
}
