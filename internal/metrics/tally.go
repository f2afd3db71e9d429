package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/torosent/seckillprobe/internal/outcome"
)

// Tally counts outcomes by category. Every fixed category has its own atomic
// counter so concurrent workers never contend on a lock; only the per-code
// HTTP error split needs the mutex, and only on first sight of a code.
type Tally struct {
	counts [outcome.NumCategories]atomic.Int64

	mu        sync.RWMutex
	httpCodes map[int]*atomic.Int64
}

// CategoryCount is one row of the breakdown.
type CategoryCount struct {
	Label      string           `json:"label" yaml:"label"`
	Category   outcome.Category `json:"-" yaml:"-"`
	StatusCode int              `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Count      int64            `json:"count" yaml:"count"`
}

func NewTally() *Tally {
	return &Tally{httpCodes: make(map[int]*atomic.Int64)}
}

// Record adds one occurrence of o. Out-of-range categories are counted as
// OtherException so that every attempt lands in exactly one bucket.
func (t *Tally) Record(o outcome.Outcome) {
	if !o.Category.Valid() {
		o = outcome.Outcome{Category: outcome.OtherException}
	}
	t.counts[o.Category].Add(1)
	if o.Category == outcome.HTTPError {
		t.codeCounter(o.StatusCode).Add(1)
	}
}

func (t *Tally) codeCounter(code int) *atomic.Int64 {
	t.mu.RLock()
	c, ok := t.httpCodes[code]
	t.mu.RUnlock()
	if ok {
		return c
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok = t.httpCodes[code]; ok {
		return c
	}
	c = new(atomic.Int64)
	t.httpCodes[code] = c
	return c
}

// Count returns the current count for a category.
func (t *Tally) Count(c outcome.Category) int64 {
	if !c.Valid() {
		return 0
	}
	return t.counts[c].Load()
}

// Total is the sum over all categories.
func (t *Tally) Total() int64 {
	var total int64
	for i := range t.counts {
		total += t.counts[i].Load()
	}
	return total
}

// HTTPErrors returns a copy of the status code split.
func (t *Tally) HTTPErrors() map[int]int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[int]int64, len(t.httpCodes))
	for code, c := range t.httpCodes {
		out[code] = c.Load()
	}
	return out
}

// Snapshot returns the observed breakdown with HTTP errors split by code.
// Categories that never occurred are omitted.
func (t *Tally) Snapshot() []CategoryCount {
	rows := make([]CategoryCount, 0, outcome.NumCategories)
	for _, c := range outcome.Categories() {
		if c == outcome.HTTPError {
			continue
		}
		if n := t.counts[c].Load(); n > 0 {
			rows = append(rows, CategoryCount{Label: c.String(), Category: c, Count: n})
		}
	}
	for code, n := range t.HTTPErrors() {
		if n == 0 {
			continue
		}
		o := outcome.Outcome{Category: outcome.HTTPError, StatusCode: code}
		rows = append(rows, CategoryCount{Label: o.Label(), Category: outcome.HTTPError, StatusCode: code, Count: n})
	}
	SortBreakdown(rows)
	return rows
}
