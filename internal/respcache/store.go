package respcache

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"crosswarped.com/mastermind/pkg/primitives"
)

// Store persists a cache between processes.
//
// Load(Save(m)) must return a map equal to m. Neither call is expected to be fast; both run once
// per process.
type Store interface {
	Load(ctx context.Context) (map[Key]primitives.Feedback, error)
	Save(ctx context.Context, entries iter.Seq2[Key, primitives.Feedback]) error
	Close() error
}

// Backend names a Store implementation.
type Backend string

const (
	BackendNone   Backend = "none"
	BackendFile   Backend = "file"
	BackendBadger Backend = "badger"
)

// OpenStore opens the store for backend under dir. BackendNone returns a nil Store.
func OpenStore(backend Backend, dir, signature string, logger *slog.Logger) (Store, error) {
	switch backend {
	case BackendNone, "":
		return nil, nil
	case BackendFile:
		return NewFileStore(dir, signature), nil
	case BackendBadger:
		s, err := OpenBadgerStore(BadgerConfig{Path: dir, SyncWrites: true, Logger: logger}, signature)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}
