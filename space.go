package mastermind

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"crosswarped.com/mastermind/internal"
	"crosswarped.com/mastermind/pkg/primitives"
)

// Symbols names the set the alphabet is taken from.
type Symbols string

const (
	SymbolsDigits  Symbols = "digits"
	SymbolsLetters Symbols = "letters"
)

var symbolSets = map[Symbols]string{
	SymbolsDigits:  "1234567890",
	SymbolsLetters: "ABCDEFGHIJKLMNOPQRSTUVWXYZ",
}

// MaxAlphabet returns how many symbols the set holds.
func (s Symbols) MaxAlphabet() int {
	return len(symbolSets[s])
}

// Alphabet returns the first k symbols of the set, in rank order.
func (s Symbols) Alphabet(k int) (string, error) {
	set, ok := symbolSets[s]
	if !ok {
		return "", configErrorf("symbols", "unknown symbol set %q", s)
	}
	if k < 1 || k > len(set) {
		return "", configErrorf("alphabet", "%s support between 1 and %d symbols, got %d", s, len(set), k)
	}
	return set[:k], nil
}

// Scheme is the shape of a canonical opening guess.
type Scheme string

const (
	SchemeAABB Scheme = "aabb"
	SchemeAABC Scheme = "aabc"
	SchemeABCD Scheme = "abcd"
)

func ParseScheme(s string) (Scheme, error) {
	switch sc := Scheme(strings.ToLower(s)); sc {
	case SchemeAABB, SchemeAABC, SchemeABCD:
		return sc, nil
	case "0":
		return SchemeAABB, nil
	case "1":
		return SchemeAABC, nil
	case "2":
		return SchemeABCD, nil
	}
	return "", configErrorf("opening", "unknown scheme %q", s)
}

// Space is the set of codes of length N over K symbols, with or without repetition.
//
// A Space is immutable; the universe is built on first use and shared afterwards.
type Space struct {
	K          int
	N          int
	Repetition bool
	Symbols    Symbols

	alphabet    string
	symbols     *primitives.SymbolSet
	maxUniverse int

	mu sync.Mutex
	// Do not access this field directly, use the Universe method instead.
	lazyUniverse []primitives.Code
}

// NewSpace validates the combination and returns the space. maxUniverse <= 0 means
// internal.DefaultMaxCodes.
func NewSpace(k, n int, repetition bool, symbols Symbols, maxUniverse int) (*Space, error) {
	alphabet, err := symbols.Alphabet(k)
	if err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, configErrorf("columns", "must be at least 1, got %d", n)
	}
	if !repetition && n > k {
		return nil, configErrorf("columns", "%d columns need at least as many symbols without repetition, got %d", n, k)
	}
	if maxUniverse <= 0 {
		maxUniverse = internal.DefaultMaxCodes
	}
	if _, ok := internal.CountCodes(k, n, repetition, maxUniverse); !ok {
		return nil, configErrorf("max_universe", "%d symbols over %d columns exceed %d codes", k, n, maxUniverse)
	}

	set, err := primitives.NewSymbolSet(alphabet)
	if err != nil {
		return nil, configErrorf("symbols", "%v", err)
	}

	return &Space{
		K:           k,
		N:           n,
		Repetition:  repetition,
		Symbols:     symbols,
		alphabet:    alphabet,
		symbols:     set,
		maxUniverse: maxUniverse,
	}, nil
}

// Alphabet returns the symbols in rank order.
func (s *Space) Alphabet() string {
	return s.alphabet
}

// Size returns K^N with repetition and K!/(K-N)! without.
func (s *Space) Size() int {
	size, _ := internal.CountCodes(s.K, s.N, s.Repetition, s.maxUniverse)
	return size
}

// Universe returns every code in lexicographic order of symbol rank. Callers must not modify
// the result.
func (s *Space) Universe(ctx context.Context) ([]primitives.Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lazyUniverse != nil {
		return s.lazyUniverse, nil
	}

	maxCodes := s.maxUniverse
	codes, err := internal.AllPossibleCodes(ctx, internal.AllPossibleCodesParams{
		Alphabet:   s.alphabet,
		Length:     s.N,
		Repetition: s.Repetition,
		MaxCodes:   &maxCodes,
	})
	if err != nil {
		return nil, fmt.Errorf("universe: %w", err)
	}
	s.lazyUniverse = codes
	return codes, nil
}

// Random draws a code uniformly, with replacement if the space allows repetition.
func (s *Space) Random(rng *rand.Rand) primitives.Code {
	b := make([]byte, s.N)
	if s.Repetition {
		for i := range b {
			b[i] = s.alphabet[rng.IntN(s.K)]
		}
		return primitives.Code(b)
	}

	perm := rng.Perm(s.K)
	for i := range b {
		b[i] = s.alphabet[perm[i]]
	}
	return primitives.Code(b)
}

// Opening returns the canonical first guess of the given shape.
//
// aabb pairs up symbols in rank order ("1122", "11223"); aabc does the same but advances the
// last symbol when N is even ("1123"); abcd uses N distinct symbols ("1234"). Without repetition,
// or when the shape cannot be formed, the result is the first N distinct symbols or the pairs.
func (s *Space) Opening(scheme Scheme) primitives.Code {
	if !s.Repetition || (scheme == SchemeABCD && s.N <= s.K) {
		return primitives.Code(s.alphabet[:s.N])
	}

	b := make([]byte, 0, s.N)
	i := 0
	for col := range s.N {
		b = append(b, s.alphabet[min(i, s.K-1)])
		if col%2 == 1 {
			i++
		}
	}
	if scheme != SchemeAABB && s.N%2 == 0 && s.N <= s.K {
		b[s.N-1] = s.alphabet[min(i, s.K-1)]
	}
	return primitives.Code(b)
}

// Openings returns the distinct openings of the given schemes, in order.
func (s *Space) Openings(schemes ...Scheme) []primitives.Code {
	var codes []primitives.Code
	seen := map[primitives.Code]bool{}
	for _, sc := range schemes {
		c := s.Opening(sc)
		if seen[c] {
			continue
		}
		seen[c] = true
		codes = append(codes, c)
	}
	return codes
}

// ParseCode reads a code typed by a person. Letters are case-insensitive.
func (s *Space) ParseCode(raw string) (primitives.Code, error) {
	c := strings.ToUpper(strings.TrimSpace(raw))
	if len(c) != s.N {
		return "", fmt.Errorf("%w: %q has %d symbols, want %d", ErrInvalidCode, raw, len(c), s.N)
	}

	seen, _ := primitives.NewSymbolSet(s.alphabet)
	for i := 0; i < len(c); i++ {
		if _, ok := s.symbols.Rank(c[i]); !ok {
			return "", fmt.Errorf("%w: %q is not one of %q", ErrInvalidCode, c[i], s.alphabet)
		}
		if !s.Repetition && seen.Contains(c[i]) {
			return "", fmt.Errorf("%w: %q repeats %q", ErrInvalidCode, raw, c[i])
		}
		_ = seen.Add(c[i])
	}
	return primitives.Code(c), nil
}

// Signature identifies the space in persisted caches, e.g. "k6n4r".
func (s *Space) Signature() string {
	mode := "u"
	if s.Repetition {
		mode = "r"
	}
	prefix := ""
	if s.Symbols == SymbolsLetters {
		prefix = "l"
	}
	return fmt.Sprintf("%sk%dn%d%s", prefix, s.K, s.N, mode)
}

func (s *Space) String() string {
	return fmt.Sprintf("Space{k: %d, n: %d, repetition: %t, alphabet: %q}", s.K, s.N, s.Repetition, s.alphabet)
}
