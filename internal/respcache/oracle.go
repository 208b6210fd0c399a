package respcache

import (
	"sync"
	"sync/atomic"

	"crosswarped.com/mastermind/pkg/primitives"
)

// Stats counts where the Oracle found each answer.
type Stats struct {
	Calls    uint64 `json:"calls"`
	Live     uint64 `json:"live"`
	Imported uint64 `json:"imported"`
	Computed uint64 `json:"computed"`
}

// Sub returns the counts accumulated since o was taken.
func (s Stats) Sub(o Stats) Stats {
	return Stats{
		Calls:    s.Calls - o.Calls,
		Live:     s.Live - o.Live,
		Imported: s.Imported - o.Imported,
		Computed: s.Computed - o.Computed,
	}
}

// Oracle scores codes through a Cache. It implements primitives.Scorer and is safe for
// concurrent use.
//
// An Oracle without a cache is the pure scoring function and keeps no counters, which keeps
// exhaustive scans free of shared writes.
type Oracle struct {
	cache *Cache

	calls, live, imported, computed atomic.Uint64

	flushMu sync.Mutex
	flushed Stats
}

// NewOracle returns an Oracle reading and writing c. A nil cache means no memoization.
func NewOracle(c *Cache) *Oracle {
	if c != nil && c.policy == PolicyNone && len(c.imported) == 0 {
		c = nil
	}
	return &Oracle{cache: c}
}

// Cache returns the backing cache, or nil.
func (o *Oracle) Cache() *Cache {
	return o.cache
}

func (o *Oracle) Score(guess, code primitives.Code) primitives.Feedback {
	if o.cache == nil {
		return primitives.Score(guess, code)
	}

	o.calls.Add(1)
	k := Key{Guess: guess, Code: code}
	if f, src, ok := o.cache.lookup(k); ok {
		if src == sourceLive {
			o.live.Add(1)
		} else {
			o.imported.Add(1)
		}
		return f
	}

	f := primitives.Score(guess, code)
	o.cache.store(k, f)
	o.computed.Add(1)
	return f
}

// Stats returns the counters accumulated so far.
func (o *Oracle) Stats() Stats {
	return Stats{
		Calls:    o.calls.Load(),
		Live:     o.live.Load(),
		Imported: o.imported.Load(),
		Computed: o.computed.Load(),
	}
}

// Flush publishes the counters accumulated since the previous Flush to Prometheus.
func (o *Oracle) Flush() {
	o.flushMu.Lock()
	defer o.flushMu.Unlock()

	now := o.Stats()
	delta := now.Sub(o.flushed)
	o.flushed = now

	feedbackLookups.WithLabelValues("live").Add(float64(delta.Live))
	feedbackLookups.WithLabelValues("imported").Add(float64(delta.Imported))
	feedbackLookups.WithLabelValues("computed").Add(float64(delta.Computed))
	if o.cache != nil {
		liveEntries.Set(float64(o.cache.Len()))
	}
}

var _ primitives.Scorer = (*Oracle)(nil)
