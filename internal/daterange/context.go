package daterange

import (
	"sort"
	"sync"
)

// Context is the shared, externally-owned date range. Every consumer (each
// view engine, charts) subscribes and handles its own refetch and staleness.
type Context struct {
	mu     sync.RWMutex
	r      Range
	subs   map[int]func(Range)
	nextID int
}

// NewContext creates a context holding r.
func NewContext(r Range) *Context {
	return &Context{r: r, subs: make(map[int]func(Range))}
}

// Get returns the current range.
func (c *Context) Get() Range {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.r
}

// Set replaces the range and notifies subscribers (in subscription order)
// when it changed. An inverted range is rejected and nothing is notified.
func (c *Context) Set(r Range) error {
	if err := r.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	if c.r.Equal(r) {
		c.mu.Unlock()
		return nil
	}
	c.r = r
	subs := c.snapshotLocked()
	c.mu.Unlock()

	for _, fn := range subs {
		fn(r)
	}
	return nil
}

// Subscribe registers fn for future changes and returns a cancel func.
func (c *Context) Subscribe(fn func(Range)) (cancel func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

func (c *Context) snapshotLocked() []func(Range) {
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Range), 0, len(ids))
	for _, id := range ids {
		out = append(out, c.subs[id])
	}
	return out
}
