package mastermind

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"crosswarped.com/mastermind/internal/respcache"
	"crosswarped.com/mastermind/pkg/primitives"
)

func fileCachedConfig(dir string) Config {
	cfg := DefaultConfig()
	cfg.Strategy = "minimax"
	cfg.Cache.Policy = string(respcache.PolicyUnbounded)
	cfg.Cache.Backend = string(respcache.BackendFile)
	cfg.Cache.Path = dir
	return cfg
}

func TestEngine_PersistsAcrossProcesses(t *testing.T) {
	dir := t.TempDir()
	cfg := fileCachedConfig(dir)
	space := mustSpace(t, 6, 4, true, SymbolsDigits)

	first, err := OpenEngine(t.Context(), cfg, space, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.LoadErr != nil {
		t.Fatalf("LoadErr = %v on an empty directory", first.LoadErr)
	}
	if _, err := Solve(t.Context(), cfg, "4231", WithEngine(first)); err != nil {
		t.Fatal(err)
	}
	computed := first.Oracle.Stats().Computed
	if err := first.Close(t.Context()); err != nil {
		t.Fatalf("Close() = %v", err)
	}

	second, err := OpenEngine(t.Context(), cfg, space, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := second.cache.Imported(); uint64(got) != computed {
		t.Errorf("imported %d entries, want the %d computed before", got, computed)
	}
	if _, err := Solve(t.Context(), cfg, "4231", WithEngine(second)); err != nil {
		t.Fatal(err)
	}
	stats := second.Oracle.Stats()
	if stats.Computed != 0 || stats.Imported == 0 {
		t.Errorf("replaying the same game: %+v, want every answer imported", stats)
	}
	if second.cache.Grew() {
		t.Error("nothing new was computed, the cache should not be saved again")
	}
	if err := second.Close(t.Context()); err != nil {
		t.Fatalf("Close() = %v", err)
	}
}

func TestEngine_CorruptStoreIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	cfg := fileCachedConfig(dir)
	space := mustSpace(t, 6, 4, true, SymbolsDigits)

	path := respcache.NewFileStore(dir, space.Signature()).Path()
	if err := os.WriteFile(path, []byte("not zstd"), 0o644); err != nil {
		t.Fatal(err)
	}

	e, err := OpenEngine(t.Context(), cfg, space, nil)
	if err != nil {
		t.Fatalf("OpenEngine() = %v", err)
	}
	if !errors.Is(e.LoadErr, ErrCacheIO) {
		t.Errorf("LoadErr = %v, want ErrCacheIO", e.LoadErr)
	}

	tr, err := Solve(t.Context(), cfg, "1234", WithEngine(e))
	if err != nil || !tr.Solved() {
		t.Fatalf("Solve() with an empty cache = %v, %v", tr.Repr(), err)
	}

	// The corrupt table is replaced by the new one.
	if err := e.Close(t.Context()); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	again, err := OpenEngine(t.Context(), cfg, space, nil)
	if err != nil {
		t.Fatal(err)
	}
	if again.LoadErr != nil || again.cache.Imported() == 0 {
		t.Errorf("reopened: LoadErr = %v, imported %d", again.LoadErr, again.cache.Imported())
	}
	_ = again.Close(t.Context())
}

func TestEngine_UnwritableStore(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	// The cache directory cannot be created below a regular file.
	cfg := fileCachedConfig(filepath.Join(blocker, "cache"))
	space := mustSpace(t, 6, 4, true, SymbolsDigits)

	e, err := OpenEngine(t.Context(), cfg, space, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Solve(t.Context(), cfg, "6611", WithEngine(e)); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(t.Context()); !errors.Is(err, ErrCacheIO) {
		t.Errorf("Close() = %v, want ErrCacheIO", err)
	}
}

func TestEngine_BoundedPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = "expected-size"
	cfg.Cache.Policy = string(respcache.PolicyAuto)
	cfg.Cache.UnboundedCeiling = 100
	cfg.Cache.MaxEntries = 10_000
	space := mustSpace(t, 6, 4, true, SymbolsDigits)

	e, err := OpenEngine(t.Context(), cfg, space, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close(t.Context())

	if got := e.cache.Policy(); got != respcache.PolicyBounded {
		t.Errorf("policy for 1296 codes above a ceiling of 100 = %s, want bounded", got)
	}
	if _, err := Solve(t.Context(), cfg, "3214", WithEngine(e)); err != nil {
		t.Fatal(err)
	}
}

func storedEntries(t *testing.T, dir string, space *Space) int {
	t.Helper()
	entries, err := respcache.NewFileStore(dir, space.Signature()).Load(t.Context())
	if err != nil {
		t.Fatalf("reading the stored table: %v", err)
	}
	return len(entries)
}

func TestEngine_FailedLoadKeepsStoredTable(t *testing.T) {
	dir := t.TempDir()
	cfg := fileCachedConfig(dir)
	space := mustSpace(t, 6, 4, true, SymbolsDigits)

	seed, err := OpenEngine(t.Context(), cfg, space, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, secret := range []primitives.Code{"4231", "6655", "1326"} {
		if _, err := Solve(t.Context(), cfg, secret, WithEngine(seed)); err != nil {
			t.Fatal(err)
		}
	}
	if err := seed.Close(t.Context()); err != nil {
		t.Fatal(err)
	}
	before := storedEntries(t, dir, space)

	cancelled, cancel := context.WithCancel(t.Context())
	cancel()
	e, err := OpenEngine(cancelled, cfg, space, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(e.LoadErr, ErrCacheIO) || !errors.Is(e.LoadErr, context.Canceled) {
		t.Fatalf("LoadErr = %v, want a cancelled ErrCacheIO", e.LoadErr)
	}
	if _, err := Solve(t.Context(), cfg, "5512", WithEngine(e)); err != nil {
		t.Fatal(err)
	}
	if e.cache.Grew() {
		t.Error("Grew() after a failed load, the live layer alone must not replace the store")
	}
	if err := e.Close(t.Context()); err != nil {
		t.Fatalf("Close() = %v", err)
	}

	if after := storedEntries(t, dir, space); after != before {
		t.Errorf("stored table has %d entries after Close, want the %d it had", after, before)
	}
}

func TestEngine_ImpossibleStoredAnswer(t *testing.T) {
	dir := t.TempDir()
	cfg := fileCachedConfig(dir)
	space := mustSpace(t, 6, 4, true, SymbolsDigits)

	tampered := func(yield func(respcache.Key, primitives.Feedback) bool) {
		yield(respcache.Key{Guess: "1111", Code: "1234"}, primitives.Feedback{Black: 9, White: 9})
	}
	if err := respcache.NewFileStore(dir, space.Signature()).Save(t.Context(), tampered); err != nil {
		t.Fatal(err)
	}

	e, err := OpenEngine(t.Context(), cfg, space, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(e.LoadErr, ErrCacheIO) || !errors.Is(e.LoadErr, respcache.ErrCorruptTable) {
		t.Errorf("LoadErr = %v, want a corrupt table", e.LoadErr)
	}
	if got := e.cache.Imported(); got != 0 {
		t.Errorf("imported %d entries from a corrupt table", got)
	}

	tr, err := Solve(t.Context(), cfg, "1234", WithEngine(e))
	if err != nil || !tr.Solved() {
		t.Fatalf("Solve() = %v, %v", tr.Repr(), err)
	}
	if err := e.Close(t.Context()); err != nil {
		t.Fatalf("Close() = %v", err)
	}

	again, err := OpenEngine(t.Context(), cfg, space, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer again.Close(t.Context())
	if again.LoadErr != nil || again.cache.Imported() == 0 {
		t.Errorf("reopened: LoadErr = %v, imported %d", again.LoadErr, again.cache.Imported())
	}
}
