package internal

import (
	"context"
	"fmt"

	"crosswarped.com/mastermind/pkg/primitives"
)

// DefaultMaxCodes caps the universe when no ceiling is given.
const DefaultMaxCodes = 10_000_000

type AllPossibleCodesParams struct {
	Alphabet   string
	Length     int
	Repetition bool
	MaxCodes   *int
}

type params struct {
	alphabet   string
	length     int
	repetition bool
	maxCodes   int
}

func asParams(p AllPossibleCodesParams) params {
	pp := params{
		alphabet:   p.Alphabet,
		length:     p.Length,
		repetition: p.Repetition,
	}

	if p.MaxCodes == nil {
		pp.maxCodes = DefaultMaxCodes
	} else {
		pp.maxCodes = *p.MaxCodes
	}

	return pp
}

type allPossibleCodesState struct {
	alphabet   string
	repetition bool

	memoizedPrefixes map[int][]primitives.Code
}

// allPossibleCodes extends every code one symbol shorter by each symbol of the alphabet in rank
// order, so the result is lexicographic by rank.
func (s *allPossibleCodesState) allPossibleCodes(ctx context.Context, atLength int) []primitives.Code {
	if ctx.Err() != nil {
		return nil
	}

	memo, ok := s.memoizedPrefixes[atLength]
	if ok {
		return memo
	}

	if atLength == 0 {
		codes := []primitives.Code{""}
		s.memoizedPrefixes[0] = codes
		return codes
	}

	shorter := s.allPossibleCodes(ctx, atLength-1)

	capacity := len(shorter) * len(s.alphabet)
	if !s.repetition {
		capacity = len(shorter) * (len(s.alphabet) - (atLength - 1))
	}
	codes := make([]primitives.Code, 0, capacity)

	buf := make([]byte, atLength)
	for i, prefix := range shorter {
		// Checking every symbol of a large universe is slow enough to be worth bailing out of.
		if i%4096 == 0 && ctx.Err() != nil {
			return nil
		}

		copy(buf, prefix)
		for j := 0; j < len(s.alphabet); j++ {
			sym := s.alphabet[j]
			if !s.repetition && containsByte(prefix, sym) {
				continue
			}
			buf[atLength-1] = sym
			codes = append(codes, primitives.Code(buf))
		}
	}

	s.memoizedPrefixes[atLength] = codes
	return codes
}

func containsByte(c primitives.Code, b byte) bool {
	for i := 0; i < len(c); i++ {
		if c[i] == b {
			return true
		}
	}
	return false
}

// CountCodes returns the number of codes of the given length over k symbols: k^n with
// repetition, k!/(k-n)! without. The second result is false if the count exceeds ceiling, in
// which case the first result is meaningless.
func CountCodes(k, n int, repetition bool, ceiling int) (int, bool) {
	if n < 0 || k < 0 {
		return 0, true
	}
	if !repetition && n > k {
		return 0, true
	}

	count := 1
	for i := range n {
		factor := k
		if !repetition {
			factor = k - i
		}
		if factor == 0 {
			return 0, true
		}
		if count > ceiling/factor {
			return 0, false
		}
		count *= factor
	}
	return count, count <= ceiling
}

// AllPossibleCodes returns every code for the given parameters in lexicographic order of symbol
// rank: the Cartesian product when repetition is allowed, the k-permutations otherwise.
func AllPossibleCodes(ctx context.Context, p AllPossibleCodesParams) ([]primitives.Code, error) {
	params := asParams(p)

	if params.length < 1 {
		return nil, fmt.Errorf("code length must be at least 1, got %d", params.length)
	}
	if len(params.alphabet) == 0 {
		return nil, fmt.Errorf("alphabet must not be empty")
	}
	if !params.repetition && params.length > len(params.alphabet) {
		return nil, fmt.Errorf("code length %d exceeds alphabet size %d without repetition", params.length, len(params.alphabet))
	}
	if _, ok := CountCodes(len(params.alphabet), params.length, params.repetition, params.maxCodes); !ok {
		return nil, fmt.Errorf("universe of %d symbols over %d positions exceeds %d codes", len(params.alphabet), params.length, params.maxCodes)
	}

	state := allPossibleCodesState{
		alphabet:         params.alphabet,
		repetition:       params.repetition,
		memoizedPrefixes: make(map[int][]primitives.Code),
	}

	codes := state.allPossibleCodes(ctx, params.length)
	return codes, ctx.Err()
}
