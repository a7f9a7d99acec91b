package timing

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// Scope names used by the solver pipeline
const (
	Assembly      = "assembly"
	Sweep         = "sweep"
	TotalSolve    = "total-solve"
	TransientStep = "transient-step"
)

// Entry is the accumulated time of one named stopwatch
type Entry struct {
	Name    string
	Elapsed time.Duration
	Count   int
}

// Registry is a set of named stopwatches. It is safe for concurrent use;
// Scope may be called from several goroutines with the same name.
type Registry struct {
	mu      sync.Mutex
	running map[string]time.Time
	totals  map[string]*Entry
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		running: make(map[string]time.Time),
		totals:  make(map[string]*Entry),
		now:     time.Now,
	}
}

// Start starts the stopwatch name. Starting a running stopwatch restarts it.
func (r *Registry) Start(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running[name] = r.now()
}

// Stop stops the stopwatch name and returns the interval it measured. A
// stopwatch that is not running measures nothing.
func (r *Registry) Stop(name string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	started, ok := r.running[name]
	if !ok {
		return 0
	}
	delete(r.running, name)
	d := r.now().Sub(started)
	r.addLocked(name, d)
	return d
}

// Scope times the region until the returned function is called
//
//	defer timers.Scope(timing.Sweep)()
func (r *Registry) Scope(name string) func() {
	started := r.clock()
	return func() {
		d := r.clock().Sub(started)
		r.mu.Lock()
		r.addLocked(name, d)
		r.mu.Unlock()
	}
}

func (r *Registry) clock() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now()
}

func (r *Registry) addLocked(name string, d time.Duration) {
	e, ok := r.totals[name]
	if !ok {
		e = &Entry{Name: name}
		r.totals[name] = e
	}
	e.Elapsed += d
	e.Count++
}

// Elapsed returns the accumulated time of name
func (r *Registry) Elapsed(name string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.totals[name]; ok {
		return e.Elapsed
	}
	return 0
}

// Count returns how many intervals were accumulated under name
func (r *Registry) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.totals[name]; ok {
		return e.Count
	}
	return 0
}

// Entries returns a snapshot of all stopwatches ordered by name
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make([]Entry, 0, len(r.totals))
	for _, e := range r.totals {
		entries = append(entries, *e)
	}
	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return entries
}
