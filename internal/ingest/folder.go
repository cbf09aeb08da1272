package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/Ashfaaq98/secwatch-console/internal/record"
)

// FolderOptions controls ingest-folder behavior.
type FolderOptions struct {
	Dir      string
	Watch    bool
	Patterns []string // e.g. []string{"*.jsonl", "*.json"}
	Logger   *log.Logger
	// When true and in Watch mode, start JSONL files at EOF on startup to avoid
	// re-ingesting existing lines each time the app starts.
	TailFromEnd bool
}

// FolderStats counts what a run did.
type FolderStats struct {
	Files    int
	Ingested int
	Skipped  int
	Errors   int
}

// FolderIngestor ingests record files from a directory (one-shot or watch
// mode). The record kind comes from the file name, see KindFromFilename.
type FolderIngestor struct {
	sink *Sink
	opts FolderOptions

	mu      sync.Mutex
	offsets map[string]int64 // per-file tail offset for jsonl
	stats   FolderStats
}

// NewFolderIngestor constructs a folder ingestor.
func NewFolderIngestor(sink *Sink, opts FolderOptions) *FolderIngestor {
	if opts.Logger == nil {
		opts.Logger = log.New(log.Writer(), "[ingest-folder] ", log.LstdFlags)
	}
	if len(opts.Patterns) == 0 {
		opts.Patterns = []string{"*.jsonl", "*.json"}
	}
	return &FolderIngestor{
		sink:    sink,
		opts:    opts,
		offsets: make(map[string]int64),
	}
}

// Stats returns a copy of the counters.
func (fi *FolderIngestor) Stats() FolderStats {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	return fi.stats
}

// Run executes the ingestion per options (one-shot or watch).
func (fi *FolderIngestor) Run(ctx context.Context) error {
	if err := os.MkdirAll(fi.opts.Dir, 0755); err != nil {
		return fmt.Errorf("create ingest dir: %w", err)
	}
	if err := fi.scanOnce(ctx); err != nil {
		return err
	}
	if !fi.opts.Watch {
		st := fi.Stats()
		fi.opts.Logger.Printf("Completed one-shot ingest: files=%d ingested=%d skipped=%d errors=%d",
			st.Files, st.Ingested, st.Skipped, st.Errors)
		return nil
	}
	return fi.watchLoop(ctx)
}

func (fi *FolderIngestor) matches(name string) bool {
	lower := strings.ToLower(name)
	if strings.Contains(lower, ".tmp-") {
		return false
	}
	for _, pat := range fi.opts.Patterns {
		p := strings.TrimSpace(strings.ToLower(pat))
		if ok, _ := filepath.Match(p, lower); ok {
			return true
		}
	}
	return false
}

func (fi *FolderIngestor) scanOnce(ctx context.Context) error {
	entries, err := os.ReadDir(fi.opts.Dir)
	if err != nil {
		return fmt.Errorf("read dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !fi.matches(e.Name()) {
			continue
		}
		path := filepath.Join(fi.opts.Dir, e.Name())
		if strings.HasSuffix(strings.ToLower(e.Name()), ".jsonl") && fi.opts.Watch && fi.opts.TailFromEnd {
			if st, err := os.Stat(path); err == nil {
				fi.setOffset(path, st.Size())
			}
			continue
		}
		fi.handle(ctx, path)
	}
	return nil
}

func (fi *FolderIngestor) watchLoop(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer w.Close()

	if err := w.Add(fi.opts.Dir); err != nil {
		return fmt.Errorf("watch add: %w", err)
	}
	fi.opts.Logger.Printf("Watching directory: %s (patterns: %s)", fi.opts.Dir, strings.Join(fi.opts.Patterns, ","))

	for {
		select {
		case <-ctx.Done():
			st := fi.Stats()
			fi.opts.Logger.Printf("Watch stopping: ingested=%d errors=%d", st.Ingested, st.Errors)
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !fi.matches(filepath.Base(ev.Name)) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				fi.handle(ctx, ev.Name)
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				fi.mu.Lock()
				delete(fi.offsets, ev.Name)
				fi.mu.Unlock()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fi.opts.Logger.Printf("watch error: %v", err)
		}
	}
}

// handle ingests one file: JSONL is tailed from its last offset, JSON is
// re-read whole.
func (fi *FolderIngestor) handle(ctx context.Context, path string) {
	kind, ok := KindFromFilename(path)
	if !ok {
		return
	}
	var (
		recs record.Collection
		bad  int
		err  error
	)
	if strings.HasSuffix(strings.ToLower(path), ".jsonl") {
		var next int64
		recs, bad, next, err = readJSONL(path, fi.offset(path))
		if err == nil {
			fi.setOffset(path, next)
		}
	} else {
		recs, err = readJSONFile(path)
	}

	fi.mu.Lock()
	fi.stats.Errors += bad
	fi.mu.Unlock()
	if err != nil {
		fi.fail(path, err)
		return
	}
	if len(recs) == 0 {
		return
	}

	res, err := fi.sink.Ingest(ctx, kind, "folder:"+filepath.Base(path), recs)
	if err != nil {
		fi.fail(path, err)
		return
	}
	fi.mu.Lock()
	fi.stats.Files++
	fi.stats.Ingested += res.Saved
	fi.stats.Skipped += res.Skipped
	fi.mu.Unlock()
	fi.opts.Logger.Printf("%s: %d %s records (%d skipped)", filepath.Base(path), res.Saved, kind, res.Skipped)
}

func (fi *FolderIngestor) fail(path string, err error) {
	fi.opts.Logger.Printf("error processing %s: %v", path, err)
	fi.mu.Lock()
	fi.stats.Errors++
	fi.mu.Unlock()
}

func (fi *FolderIngestor) offset(path string) int64 {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	return fi.offsets[path]
}

func (fi *FolderIngestor) setOffset(path string, off int64) {
	fi.mu.Lock()
	fi.offsets[path] = off
	fi.mu.Unlock()
}

// readJSONL decodes complete lines from startOffset on. A trailing line
// without newline is left for the next pass. bad counts undecodable lines.
func readJSONL(path string, startOffset int64) (recs record.Collection, bad int, next int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, startOffset, err
	}
	defer f.Close()

	if st, err := f.Stat(); err == nil && st.Size() < startOffset {
		// truncated
		startOffset = 0
	}
	if startOffset > 0 {
		if _, err := f.Seek(startOffset, io.SeekStart); err != nil {
			return nil, 0, startOffset, err
		}
	}

	r := bufio.NewReaderSize(f, 64*1024)
	next = startOffset
	for {
		line, err := r.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return recs, bad, next, err
		}
		next += int64(len(line))
		trimmed := strings.TrimSpace(string(line))
		if trimmed == "" {
			continue
		}
		batch, derr := record.Decode([]byte(trimmed))
		if derr != nil {
			bad++
			continue
		}
		recs = append(recs, batch...)
	}
	return recs, bad, next, nil
}

func readJSONFile(path string) (record.Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	return record.Decode(data)
}
