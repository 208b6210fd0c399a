package primitives

import "fmt"

// SymbolSet efficiently represents a subset of an alphabet.
//
// The alphabet fixes the rank of each symbol; the set records which ranks are present.
type SymbolSet struct {
	alphabet  string
	rank      [128]int8
	available []bool
}

// NewSymbolSet returns an empty set over the given alphabet. Symbols must be distinct ASCII.
func NewSymbolSet(alphabet string) (*SymbolSet, error) {
	s := &SymbolSet{
		alphabet:  alphabet,
		available: make([]bool, len(alphabet)),
	}
	for i := range s.rank {
		s.rank[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		b := alphabet[i]
		if b >= 128 {
			return nil, fmt.Errorf("symbol %q is not ASCII", b)
		}
		if s.rank[b] >= 0 {
			return nil, fmt.Errorf("symbol %q appears twice in alphabet %q", b, alphabet)
		}
		s.rank[b] = int8(i)
	}
	return s, nil
}

// Rank returns the position of b in the alphabet.
func (s *SymbolSet) Rank(b byte) (int, bool) {
	if b >= 128 || s.rank[b] < 0 {
		return 0, false
	}
	return int(s.rank[b]), true
}

// Add adds a symbol to the set.
func (s *SymbolSet) Add(b byte) error {
	r, ok := s.Rank(b)
	if !ok {
		return fmt.Errorf("symbol %q is not in alphabet %q", b, s.alphabet)
	}
	s.available[r] = true
	return nil
}

// Contains checks if a symbol is in the set.
func (s *SymbolSet) Contains(b byte) bool {
	r, ok := s.Rank(b)
	return ok && s.available[r]
}
