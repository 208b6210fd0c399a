package respcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"crosswarped.com/mastermind/pkg/primitives"
)

// BadgerConfig holds configuration for the embedded store.
type BadgerConfig struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logging. If nil, it is discarded.
	Logger *slog.Logger
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenBadger opens a BadgerDB instance. The caller must Close it.
func OpenBadger(cfg BadgerConfig) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}

// BadgerStore keeps one key per scored pair: "tor/<signature>/<guess>/<code>" -> [black, white].
type BadgerStore struct {
	db     *badger.DB
	prefix []byte
	owned  bool
}

// NewBadgerStore uses an already open database; Close leaves it open.
func NewBadgerStore(db *badger.DB, signature string) *BadgerStore {
	return &BadgerStore{db: db, prefix: []byte("tor/" + signature + "/")}
}

// OpenBadgerStore opens a database owned by the store.
func OpenBadgerStore(cfg BadgerConfig, signature string) (*BadgerStore, error) {
	db, err := OpenBadger(cfg)
	if err != nil {
		return nil, err
	}
	s := NewBadgerStore(db, signature)
	s.owned = true
	return s, nil
}

func (s *BadgerStore) key(k Key) []byte {
	b := make([]byte, 0, len(s.prefix)+len(k.Guess)+len(k.Code)+1)
	b = append(b, s.prefix...)
	b = append(b, k.Guess...)
	b = append(b, '/')
	b = append(b, k.Code...)
	return b
}

func (s *BadgerStore) parseKey(raw []byte) (Key, error) {
	rest := bytes.TrimPrefix(raw, s.prefix)
	guess, code, ok := bytes.Cut(rest, []byte{'/'})
	if !ok {
		return Key{}, fmt.Errorf("%w: malformed key %q", ErrCorruptTable, raw)
	}
	return Key{Guess: primitives.Code(guess), Code: primitives.Code(code)}, nil
}

func (s *BadgerStore) Load(ctx context.Context) (map[Key]primitives.Feedback, error) {
	entries := make(map[Key]primitives.Feedback)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = s.prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(s.prefix); it.ValidForPrefix(s.prefix); it.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			item := it.Item()
			k, err := s.parseKey(item.Key())
			if err != nil {
				return err
			}
			err = item.Value(func(val []byte) error {
				if len(val) != 2 {
					return fmt.Errorf("%w: key %q: value has %d bytes, want 2", ErrCorruptTable, item.Key(), len(val))
				}
				entries[k] = primitives.Feedback{Black: int(val[0]), White: int(val[1])}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger load: %w", err)
	}
	return entries, nil
}

func (s *BadgerStore) Save(ctx context.Context, entries iter.Seq2[Key, primitives.Feedback]) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for k, f := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := wb.Set(s.key(k), []byte{byte(f.Black), byte(f.White)}); err != nil {
			return fmt.Errorf("badger set: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("badger flush: %w", err)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}

var _ Store = (*BadgerStore)(nil)
