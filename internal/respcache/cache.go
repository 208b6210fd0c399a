package respcache

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/dgraph-io/ristretto/v2"

	"crosswarped.com/mastermind/pkg/primitives"
)

// Key identifies one scored pair.
type Key struct {
	Guess primitives.Code
	Code  primitives.Code
}

// Policy selects how the live layer stores entries.
type Policy string

const (
	PolicyAuto      Policy = "auto"
	PolicyUnbounded Policy = "unbounded"
	PolicyBounded   Policy = "bounded"
	PolicyNone      Policy = "none"
)

// DefaultUnboundedCeiling is the largest universe for which PolicyAuto keeps every entry.
const DefaultUnboundedCeiling = 5_000

// DefaultMaxEntries bounds the live layer under PolicyBounded.
const DefaultMaxEntries = 1 << 22

// Resolve turns PolicyAuto into a concrete policy for a universe of the given size.
//
// A universe of u codes can produce u*u entries, so the unbounded map is only chosen while u
// stays under ceiling.
func (p Policy) Resolve(universeSize, ceiling int) Policy {
	if p != PolicyAuto && p != "" {
		return p
	}
	if ceiling <= 0 {
		ceiling = DefaultUnboundedCeiling
	}
	if universeSize <= ceiling {
		return PolicyUnbounded
	}
	return PolicyBounded
}

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyAuto, PolicyUnbounded, PolicyBounded, PolicyNone:
		return p, nil
	case "":
		return PolicyAuto, nil
	default:
		return "", fmt.Errorf("unknown cache policy %q", s)
	}
}

type Options struct {
	// Policy must already be resolved; PolicyAuto is treated as PolicyUnbounded.
	Policy Policy

	// MaxEntries caps the bounded layer. Zero means DefaultMaxEntries.
	MaxEntries int

	// Columns is the code length. When set, Load rejects tables holding keys of another length
	// or answers impossible for it.
	Columns int
}

// liveLayer is the writable half of a Cache.
type liveLayer interface {
	get(k Key) (primitives.Feedback, bool)
	put(k Key, f primitives.Feedback)
	len() int
	all() iter.Seq2[Key, primitives.Feedback]
	close()
}

// Cache is safe for concurrent use once Import has returned.
type Cache struct {
	policy   Policy
	columns  int
	live     liveLayer
	imported map[Key]primitives.Feedback

	// keepStored is set when the stored table could not be read but may still be intact.
	keepStored bool
}

func New(opts Options) (*Cache, error) {
	c := &Cache{
		policy:   opts.Policy,
		columns:  opts.Columns,
		imported: map[Key]primitives.Feedback{},
	}

	switch opts.Policy {
	case PolicyUnbounded, PolicyAuto, "":
		c.policy = PolicyUnbounded
		c.live = newShardedMap()
	case PolicyBounded:
		maxEntries := opts.MaxEntries
		if maxEntries <= 0 {
			maxEntries = DefaultMaxEntries
		}
		b, err := newBoundedMap(maxEntries)
		if err != nil {
			return nil, fmt.Errorf("bounded cache: %w", err)
		}
		c.live = b
	case PolicyNone:
		c.live = nil
	default:
		return nil, fmt.Errorf("unknown cache policy %q", opts.Policy)
	}

	return c, nil
}

// Policy returns the resolved policy of the live layer.
func (c *Cache) Policy() Policy {
	return c.policy
}

// Import replaces the read-only layer. It must not run concurrently with lookups.
func (c *Cache) Import(entries map[Key]primitives.Feedback) {
	if entries == nil {
		entries = map[Key]primitives.Feedback{}
	}
	c.imported = entries
}

// Imported returns the number of entries in the read-only layer.
func (c *Cache) Imported() int {
	return len(c.imported)
}

// Len returns the number of entries in the live layer.
func (c *Cache) Len() int {
	if c.live == nil {
		return 0
	}
	return c.live.len()
}

// Grew reports whether there is anything new worth persisting. After a load that failed for any
// reason other than a corrupt table it is always false: the live layer alone is smaller than what
// the store may still hold.
func (c *Cache) Grew() bool {
	return c.policy == PolicyUnbounded && !c.keepStored && c.Len() > 0
}

type source int

const (
	sourceLive source = iota
	sourceImported
)

func (c *Cache) lookup(k Key) (primitives.Feedback, source, bool) {
	if c.live != nil {
		if f, ok := c.live.get(k); ok {
			return f, sourceLive, true
		}
	}
	if f, ok := c.imported[k]; ok {
		return f, sourceImported, true
	}
	return primitives.Feedback{}, 0, false
}

func (c *Cache) store(k Key, f primitives.Feedback) {
	if c.live != nil {
		c.live.put(k, f)
	}
}

// All yields the imported layer followed by live entries it does not already hold.
func (c *Cache) All() iter.Seq2[Key, primitives.Feedback] {
	return func(yield func(Key, primitives.Feedback) bool) {
		for k, f := range c.imported {
			if !yield(k, f) {
				return
			}
		}
		if c.live == nil {
			return
		}
		for k, f := range c.live.all() {
			if _, dup := c.imported[k]; dup {
				continue
			}
			if !yield(k, f) {
				return
			}
		}
	}
}

// Load fills the imported layer from store. On failure the imported layer is left empty and a
// *CacheIOError is returned; the cache stays usable. Unless the failure matches ErrCorruptTable,
// the cache will not overwrite the store afterwards.
func (c *Cache) Load(ctx context.Context, store Store) error {
	entries, err := store.Load(ctx)
	if err == nil {
		err = c.check(entries)
	}
	observePersist("load", err)
	if err != nil {
		c.Import(nil)
		c.keepStored = !errors.Is(err, ErrCorruptTable)
		return &CacheIOError{Op: "load", Err: err}
	}
	c.keepStored = false
	c.Import(entries)
	return nil
}

func (c *Cache) check(entries map[Key]primitives.Feedback) error {
	if c.columns <= 0 {
		return nil
	}
	for k, f := range entries {
		if k.Guess.Len() != c.columns || k.Code.Len() != c.columns {
			return fmt.Errorf("%w: %s against %s, want %d columns", ErrCorruptTable, k.Guess, k.Code, c.columns)
		}
		if !f.Valid(c.columns) {
			return fmt.Errorf("%w: %s against %s answered %s", ErrCorruptTable, k.Guess, k.Code, f)
		}
	}
	return nil
}

// Persist writes both layers to store if the live layer grew. A failure leaves the store as it
// was and is returned as a *CacheIOError.
func (c *Cache) Persist(ctx context.Context, store Store) (bool, error) {
	if !c.Grew() {
		return false, nil
	}
	err := store.Save(ctx, c.All())
	observePersist("save", err)
	if err != nil {
		return false, &CacheIOError{Op: "save", Err: err}
	}
	return true, nil
}

// Close releases the live layer.
func (c *Cache) Close() {
	if c.live != nil {
		c.live.close()
	}
}

const numShards = 32

type shard struct {
	mu      sync.RWMutex
	entries map[Key]primitives.Feedback
}

type shardedMap struct {
	shards [numShards]shard
}

func newShardedMap() *shardedMap {
	m := &shardedMap{}
	for i := range m.shards {
		m.shards[i].entries = make(map[Key]primitives.Feedback)
	}
	return m
}

// shardFor mixes both codes with FNV-1a.
func (m *shardedMap) shardFor(k Key) *shard {
	h := uint32(2166136261)
	for i := 0; i < len(k.Guess); i++ {
		h ^= uint32(k.Guess[i])
		h *= 16777619
	}
	for i := 0; i < len(k.Code); i++ {
		h ^= uint32(k.Code[i])
		h *= 16777619
	}
	return &m.shards[h%numShards]
}

func (m *shardedMap) get(k Key) (primitives.Feedback, bool) {
	s := m.shardFor(k)
	s.mu.RLock()
	f, ok := s.entries[k]
	s.mu.RUnlock()
	return f, ok
}

func (m *shardedMap) put(k Key, f primitives.Feedback) {
	s := m.shardFor(k)
	s.mu.Lock()
	s.entries[k] = f
	s.mu.Unlock()
}

func (m *shardedMap) len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// all holds each shard's read lock only while copying it out.
func (m *shardedMap) all() iter.Seq2[Key, primitives.Feedback] {
	return func(yield func(Key, primitives.Feedback) bool) {
		for i := range m.shards {
			s := &m.shards[i]
			s.mu.RLock()
			entries := make(map[Key]primitives.Feedback, len(s.entries))
			for k, f := range s.entries {
				entries[k] = f
			}
			s.mu.RUnlock()

			for k, f := range entries {
				if !yield(k, f) {
					return
				}
			}
		}
	}
}

func (m *shardedMap) close() {}

type boundedMap struct {
	cache *ristretto.Cache[string, primitives.Feedback]
}

func newBoundedMap(maxEntries int) (*boundedMap, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, primitives.Feedback]{
		NumCounters: int64(maxEntries) * 10,
		MaxCost:     int64(maxEntries),
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}
	return &boundedMap{cache: cache}, nil
}

func boundedKey(k Key) string {
	return string(k.Guess) + "/" + string(k.Code)
}

func (b *boundedMap) get(k Key) (primitives.Feedback, bool) {
	return b.cache.Get(boundedKey(k))
}

func (b *boundedMap) put(k Key, f primitives.Feedback) {
	b.cache.Set(boundedKey(k), f, 1)
}

// len is approximate: ristretto admits asynchronously and may reject.
func (b *boundedMap) len() int {
	m := b.cache.Metrics
	if m == nil {
		return 0
	}
	return int(m.KeysAdded() - m.KeysEvicted())
}

// all yields nothing; ristretto cannot be enumerated.
func (b *boundedMap) all() iter.Seq2[Key, primitives.Feedback] {
	return func(yield func(Key, primitives.Feedback) bool) {}
}

func (b *boundedMap) close() {
	b.cache.Close()
}
