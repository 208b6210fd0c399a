package respcache

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerStore_RoundTrip(t *testing.T) {
	db, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer db.Close()

	store := NewBadgerStore(db, "k6n4r")
	want := sampleEntries()
	require.NoError(t, store.Save(t.Context(), seqOf(want)))

	got, err := store.Load(t.Context())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	other := NewBadgerStore(db, "k6n4u")
	got, err = other.Load(t.Context())
	require.NoError(t, err)
	assert.Empty(t, got)

	// The store does not own db.
	require.NoError(t, store.Close())
	_, err = store.Load(t.Context())
	require.NoError(t, err)
}

func TestBadgerStore_ThroughCache(t *testing.T) {
	store, err := OpenBadgerStore(BadgerConfig{Path: t.TempDir()}, "k4n3r")
	require.NoError(t, err)
	defer store.Close()

	c, err := New(Options{Policy: PolicyUnbounded})
	require.NoError(t, err)
	require.NoError(t, c.Load(t.Context(), store))

	o := NewOracle(c)
	o.Score("112", "123")
	o.Score("123", "321")

	saved, err := c.Persist(t.Context(), store)
	require.NoError(t, err)
	assert.True(t, saved)

	reloaded, err := New(Options{Policy: PolicyUnbounded})
	require.NoError(t, err)
	require.NoError(t, reloaded.Load(t.Context(), store))
	assert.Equal(t, 2, reloaded.Imported())
}

func TestOpenBadger_RequiresPath(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{})
	assert.Error(t, err)
}

func TestBadgerStore_TamperedValue(t *testing.T) {
	db, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer db.Close()

	store := NewBadgerStore(db, "k6n4r")
	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		return txn.Set(store.key(Key{Guess: "1111", Code: "1234"}), []byte{9})
	}))

	_, err = store.Load(t.Context())
	assert.ErrorIs(t, err, ErrCorruptTable)

	// Well-formed bytes holding an impossible answer are caught by the cache.
	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		return txn.Set(store.key(Key{Guess: "1111", Code: "1234"}), []byte{9, 9})
	}))
	c, err := New(Options{Policy: PolicyUnbounded, Columns: 4})
	require.NoError(t, err)
	err = c.Load(t.Context(), store)
	assert.ErrorIs(t, err, ErrCorruptTable)
	assert.Equal(t, 0, c.Imported())
}
