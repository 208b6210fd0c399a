package respcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	"crosswarped.com/mastermind/pkg/primitives"
)

// FileStore keeps the table in one zstd-compressed JSON file per code space, nested as
// {guess: {code: [black, white]}}.
type FileStore struct {
	path string
}

// NewFileStore stores the table for the space with the given signature under dir.
func NewFileStore(dir, signature string) *FileStore {
	return &FileStore{path: filepath.Join(dir, "tor-"+signature+".json.zst")}
}

// Path returns the file the store reads and writes.
func (s *FileStore) Path() string {
	return s.path
}

type nestedTable map[primitives.Code]map[primitives.Code][2]int

// Load returns an empty table if the file does not exist yet.
func (s *FileStore) Load(ctx context.Context) (map[Key]primitives.Feedback, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[Key]primitives.Feedback{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd.NewReader: %w", ErrCorruptTable, err)
	}
	defer dec.Close()

	var nested nestedTable
	if err := json.NewDecoder(dec).Decode(&nested); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrCorruptTable, s.path, err)
	}

	entries := make(map[Key]primitives.Feedback)
	for guess, row := range nested {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		for code, bw := range row {
			entries[Key{Guess: guess, Code: code}] = primitives.Feedback{Black: bw[0], White: bw[1]}
		}
	}
	return entries, nil
}

// Save writes to a temporary file and renames it over the previous table.
func (s *FileStore) Save(ctx context.Context, entries iter.Seq2[Key, primitives.Feedback]) error {
	nested := make(nestedTable)
	for k, f := range entries {
		row, ok := nested[k.Guess]
		if !ok {
			row = make(map[primitives.Code][2]int)
			nested[k.Guess] = row
		}
		row[k.Code] = [2]int{f.Black, f.White}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create cache directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tor-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("zstd.NewWriter: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(nested); err != nil {
		enc.Close()
		tmp.Close()
		return fmt.Errorf("encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("zstd close: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *FileStore) Close() error {
	return nil
}

var _ Store = (*FileStore)(nil)
