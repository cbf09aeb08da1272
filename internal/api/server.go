// Package api serves the record collections the console filters, plus the
// ingest, health and metrics endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/Ashfaaq98/secwatch-console/internal/bus"
	"github.com/Ashfaaq98/secwatch-console/internal/daterange"
	"github.com/Ashfaaq98/secwatch-console/internal/facet"
	"github.com/Ashfaaq98/secwatch-console/internal/ingest"
	"github.com/Ashfaaq98/secwatch-console/internal/record"
	"github.com/Ashfaaq98/secwatch-console/internal/store"
)

// Options controls the API server behavior.
type Options struct {
	// Bind address, e.g. "127.0.0.1:8080"
	Bind string
	// Token for Authorization: Bearer <token>. Empty disables auth. /healthz
	// and /metrics are always open.
	Token string
	// RPS is max requests per second. 0 disables rate limiting.
	RPS float64
	// Burst is the token bucket size. If 0 and RPS>0, defaults to RPS.
	Burst int
	// MaxBodyBytes caps ingest bodies; defaults to 10 MiB.
	MaxBodyBytes int64
	// MaxRecords caps one collection response; 0 is unlimited.
	MaxRecords int
	Logger     *log.Logger
}

// Server is the dashboard backend.
type Server struct {
	srv     *http.Server
	opts    Options
	store   *store.Store
	sink    *ingest.Sink
	bus     bus.Bus
	views   map[string]facet.View
	limiter *rate.Limiter
	metrics *metrics
	logger  *log.Logger
	started int32
}

// New constructs the server and its routes.
func New(st *store.Store, sink *ingest.Sink, b bus.Bus, views map[string]facet.View, opts Options) *Server {
	if opts.Bind == "" {
		opts.Bind = "127.0.0.1:8080"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 * 1024 * 1024
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[api] ", log.LstdFlags)
	}
	if b == nil {
		b = bus.NewNullBus(logger)
	}
	s := &Server{
		opts:    opts,
		store:   st,
		sink:    sink,
		bus:     b,
		views:   views,
		metrics: newMetrics(),
		logger:  logger,
	}
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = int(opts.RPS)
			if burst < 1 {
				burst = 1
			}
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /api/{kind}/", s.instrument("collection", s.guard(http.HandlerFunc(s.handleCollection))))
	mux.Handle("GET /alerts/get_alerts", s.instrument("legacy_alerts", s.guard(http.HandlerFunc(s.handleLegacyAlerts))))
	mux.Handle("POST /ingest/{kind}", s.instrument("ingest", s.guard(http.HandlerFunc(s.handleIngest))))
	mux.Handle("GET /healthz", s.instrument("healthz", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	s.srv = &http.Server{
		Addr:         opts.Bind,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the routes, e.g. for httptest.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start binds synchronously, serves in the background and shuts down
// gracefully when ctx is done.
func (s *Server) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return errors.New("api server already started")
	}
	ln, err := net.Listen("tcp", s.opts.Bind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Bind, err)
	}
	s.logger.Printf("API listening on http://%s rps=%g auth=%v", ln.Addr(), s.opts.RPS, s.opts.Token != "")

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("server error: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Printf("graceful shutdown failed: %v", err)
		}
	}()
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := prometheus.NewTimer(s.metrics.latency.WithLabelValues(route))
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		timer.ObserveDuration()
		s.metrics.requests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
	})
}

// guard applies bearer auth then the rate limit.
func (s *Server) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Token != "" {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")) != s.opts.Token {
				w.Header().Set("WWW-Authenticate", `Bearer realm="secwatch"`)
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		if s.limiter != nil && !s.limiter.Allow() {
			s.metrics.throttled.Inc()
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// parseRange reads the required start and end query parameters.
func parseRange(r *http.Request) (daterange.Range, error) {
	q := r.URL.Query()
	start, end := strings.TrimSpace(q.Get("start")), strings.TrimSpace(q.Get("end"))
	if start == "" || end == "" {
		return daterange.Range{}, errors.New("start and end are required")
	}
	from, err := record.ParseTime(start)
	if err != nil {
		return daterange.Range{}, fmt.Errorf("start: %w", err)
	}
	to, err := record.ParseTime(end)
	if err != nil {
		return daterange.Range{}, fmt.Errorf("end: %w", err)
	}
	rg := daterange.Range{From: from, To: to}
	if err := rg.Validate(); err != nil {
		return daterange.Range{}, err
	}
	return rg, nil
}

func (s *Server) records(r *http.Request, kind string) (record.Collection, int, error) {
	if _, ok := s.views[kind]; !ok {
		return nil, http.StatusNotFound, fmt.Errorf("unknown collection %q", kind)
	}
	rg, err := parseRange(r)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	recs, err := s.store.RecordsInRange(r.Context(), kind, rg.From, rg.To, s.opts.MaxRecords)
	if err != nil {
		s.logger.Printf("query %s %s: %v", kind, rg, err)
		return nil, http.StatusInternalServerError, errors.New("query failed")
	}
	s.metrics.served.WithLabelValues(kind).Add(float64(len(recs)))
	return recs, http.StatusOK, nil
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	recs, code, err := s.records(r, kind)
	if err != nil {
		writeError(w, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// handleLegacyAlerts answers with the alert array encoded as a JSON string,
// the shape older dashboards expect.
func (s *Server) handleLegacyAlerts(w http.ResponseWriter, r *http.Request) {
	recs, code, err := s.records(r, facet.ViewAlerts)
	if err != nil {
		writeError(w, code, err.Error())
		return
	}
	inner, err := json.Marshal(recs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode failed")
		return
	}
	writeJSON(w, http.StatusOK, string(inner))
}

type ingestResponse struct {
	Ack     string `json:"ack"`
	Kind    string `json:"kind"`
	Saved   int    `json:"saved"`
	Skipped int    `json:"skipped"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	kind := r.PathValue("kind")
	if _, ok := s.views[kind]; !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown collection %q", kind))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, "body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, "empty body")
		return
	}

	recs, err := decodeBody(body, r.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ack := uuid.New().String()
	res, err := s.sink.Ingest(r.Context(), kind, "api", recs)
	if err != nil {
		s.logger.Printf("ingest %s: %v", kind, err)
		writeError(w, http.StatusInternalServerError, "ingest failed")
		return
	}
	s.metrics.ingested.WithLabelValues(kind).Add(float64(res.Saved))
	s.metrics.skipped.WithLabelValues(kind).Add(float64(res.Skipped))

	writeJSON(w, http.StatusAccepted, ingestResponse{Ack: ack, Kind: kind, Saved: res.Saved, Skipped: res.Skipped})
	s.logger.Printf("accepted ack=%s kind=%s saved=%d skipped=%d bytes=%d remote=%s dur=%s",
		ack, kind, res.Saved, res.Skipped, len(body), remoteIP(r.RemoteAddr), time.Since(start))
}

// decodeBody accepts a JSON array, object or string-encoded array, or JSONL.
func decodeBody(body []byte, contentType string) (record.Collection, error) {
	ct := strings.ToLower(contentType)
	jsonl := strings.Contains(ct, "ndjson") || strings.Contains(ct, "jsonl")
	if !jsonl && !strings.Contains(ct, "json") {
		// heuristic: several lines each starting an object
		trim := bytes.TrimSpace(body)
		jsonl = len(trim) > 0 && trim[0] == '{' && bytes.Contains(trim, []byte("}\n{"))
	}
	if jsonl {
		recs, err := record.DecodeLines(body)
		if err != nil {
			return nil, fmt.Errorf("invalid JSONL: %w", err)
		}
		return recs, nil
	}
	recs, err := record.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return recs, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": "ok"}
	if counts, err := s.store.CountByKind(r.Context()); err == nil {
		resp["records"] = counts
	} else {
		resp["status"] = "degraded"
		resp["store_error"] = err.Error()
	}
	if stats, err := s.bus.GetStats(r.Context()); err == nil {
		resp["bus"] = stats
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// remoteIP extracts ip from host:port
func remoteIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
