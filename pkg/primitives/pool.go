package primitives

import (
	"fmt"
	"iter"
	"strings"
	"sync"
)

// Pool is the set of codes still consistent with every feedback received.
//
// Pools are immutable: Filter returns a new pool and leaves the receiver alone, so a pool can be
// shared by goroutines scanning it. Codes keep the order they were given in, which for pools
// derived from a universe is universe order.
type Pool struct {
	codes []Code

	indexOnce sync.Once
	index     map[Code]struct{}
}

// NewPool wraps codes without copying them. The caller must not modify the slice afterwards.
func NewPool(codes []Code) *Pool {
	return &Pool{codes: codes}
}

// Len returns the number of candidates.
func (p *Pool) Len() int {
	return len(p.codes)
}

// At returns the i-th candidate.
func (p *Pool) At(i int) Code {
	return p.codes[i]
}

// First returns the first candidate, or false for an empty pool.
func (p *Pool) First() (Code, bool) {
	if len(p.codes) == 0 {
		return "", false
	}
	return p.codes[0], true
}

// Codes returns a copy of the candidates.
func (p *Pool) Codes() []Code {
	out := make([]Code, len(p.codes))
	copy(out, p.codes)
	return out
}

// Iterate yields every candidate in order.
func (p *Pool) Iterate() iter.Seq[Code] {
	return func(yield func(Code) bool) {
		for _, c := range p.codes {
			if !yield(c) {
				return
			}
		}
	}
}

// Contains reports whether c is a candidate. The lookup index is built on first use.
func (p *Pool) Contains(c Code) bool {
	p.indexOnce.Do(func() {
		p.index = make(map[Code]struct{}, len(p.codes))
		for _, code := range p.codes {
			p.index[code] = struct{}{}
		}
	})
	_, ok := p.index[c]
	return ok
}

// Filter returns the candidates c for which scorer.Score(guess, c) equals answer.
//
// An empty result means the answers received so far contradict each other; it is reported as
// an *InconsistentFeedbackError rather than returned as an empty pool.
func (p *Pool) Filter(scorer Scorer, guess Code, answer Feedback) (*Pool, error) {
	var kept []Code
	for _, c := range p.codes {
		if scorer.Score(guess, c) == answer {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return nil, &InconsistentFeedbackError{Guess: guess, Answer: answer, Before: len(p.codes)}
	}
	return NewPool(kept), nil
}

// Count returns the size Filter would produce, without building the pool.
func (p *Pool) Count(scorer Scorer, guess Code, answer Feedback) int {
	count := 0
	for _, c := range p.codes {
		if scorer.Score(guess, c) == answer {
			count++
		}
	}
	return count
}

// Partition adds the feedback of guess against every candidate to h.
func (p *Pool) Partition(scorer Scorer, guess Code, h *Histogram) {
	for _, c := range p.codes {
		h.Add(scorer.Score(guess, c))
	}
}

func (p *Pool) String() string {
	const shown = 3
	if len(p.codes) <= shown {
		return fmt.Sprintf("Pool(%d)[%s]", len(p.codes), joinCodes(p.codes))
	}
	return fmt.Sprintf("Pool(%d)[%s ...]", len(p.codes), joinCodes(p.codes[:shown]))
}

func joinCodes(codes []Code) string {
	s := make([]string, len(codes))
	for i, c := range codes {
		s[i] = string(c)
	}
	return strings.Join(s, " ")
}
