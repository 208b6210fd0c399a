package mastermind

import (
	"context"
	"errors"
	"log/slog"

	"crosswarped.com/mastermind/internal/respcache"
)

// Engine holds what sessions over one space share: the space itself, its response cache and the
// store the cache is loaded from and saved to.
//
// An Engine is safe for concurrent use by any number of sessions.
type Engine struct {
	Space  *Space
	Oracle *respcache.Oracle

	// LoadErr is the non-fatal error met while opening or reading the store, if any.
	LoadErr error

	cache  *respcache.Cache
	store  respcache.Store
	logger *slog.Logger
}

// OpenEngine builds the cache for space under cfg.Cache and loads it from the configured store.
//
// A store that cannot be opened or read leaves the engine with an empty imported layer; the
// failure is logged and kept in LoadErr. A store that could not be read is not overwritten by
// Close unless its table was corrupt.
func OpenEngine(ctx context.Context, cfg Config, space *Space, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	policy, err := respcache.ParsePolicy(cfg.Cache.Policy)
	if err != nil {
		return nil, configErrorf("cache.policy", "%v", err)
	}
	policy = policy.Resolve(space.Size(), cfg.Cache.UnboundedCeiling)

	cache, err := respcache.New(respcache.Options{
		Policy:     policy,
		MaxEntries: cfg.Cache.MaxEntries,
		Columns:    space.N,
	})
	if err != nil {
		return nil, configErrorf("cache", "%v", err)
	}

	e := &Engine{Space: space, cache: cache, logger: logger}

	store, err := respcache.OpenStore(respcache.Backend(cfg.Cache.Backend), cfg.Cache.Path, space.Signature(), logger)
	if err != nil {
		e.LoadErr = &respcache.CacheIOError{Op: "open", Err: err}
		logger.Warn("response cache store unavailable", "backend", cfg.Cache.Backend, "path", cfg.Cache.Path, "error", err)
	}
	e.store = store

	if store != nil {
		if err := cache.Load(ctx, store); err != nil {
			e.LoadErr = err
			logger.Warn("response cache not loaded", "space", space.Signature(), "error", err)
		} else {
			logger.Debug("response cache loaded", "space", space.Signature(), "entries", cache.Imported())
		}
	}

	e.Oracle = respcache.NewOracle(cache)
	logger.Debug("engine ready", "space", space.String(), "policy", cache.Policy(), "size", space.Size())
	return e, nil
}

// Close publishes the oracle counters and saves the cache if it grew. A save failure is
// returned as a *respcache.CacheIOError after the engine is released; nothing else is lost.
func (e *Engine) Close(ctx context.Context) error {
	e.Oracle.Flush()

	var errs []error
	if e.store != nil {
		saved, err := e.cache.Persist(ctx, e.store)
		if err != nil {
			e.logger.Warn("response cache not saved", "space", e.Space.Signature(), "error", err)
			errs = append(errs, err)
		} else if saved {
			e.logger.Debug("response cache saved", "space", e.Space.Signature(), "entries", e.cache.Imported()+e.cache.Len())
		}
		if err := e.store.Close(); err != nil {
			errs = append(errs, &respcache.CacheIOError{Op: "close", Err: err})
		}
	}
	e.cache.Close()
	return errors.Join(errs...)
}
