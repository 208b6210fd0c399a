// Package strategy picks the next guess for a Mastermind solver.
//
// Minimax, MostParts and ExpectedSize score every code of the universe against the current
// pool and keep the best one; Random samples the pool. All of them are deterministic given the
// same universe order and, for Random, the same RNG.
package strategy

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"

	"crosswarped.com/mastermind/pkg/primitives"
)

// Kind is an enum of the available strategies.
type Kind int

const (
	KindRandom Kind = iota
	KindMinimax
	KindMostParts
	KindExpectedSize
)

var kindNames = map[Kind]string{
	KindRandom:       "random",
	KindMinimax:      "minimax",
	KindMostParts:    "most-parts",
	KindExpectedSize: "expected-size",
}

// Kinds returns every strategy in a stable order.
func Kinds() []Kind {
	return []Kind{KindRandom, KindMinimax, KindMostParts, KindExpectedSize}
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind accepts the names returned by String, plus the names of the people who published
// each approach.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "random":
		return KindRandom, nil
	case "minimax", "knuth", "worst-case":
		return KindMinimax, nil
	case "most-parts", "kooi":
		return KindMostParts, nil
	case "expected-size", "irving":
		return KindExpectedSize, nil
	}
	return 0, fmt.Errorf("unknown strategy %q", s)
}

// Input is everything a strategy may look at for one round.
type Input struct {
	// Round is 1 for the first guess.
	Round int

	Pool     *primitives.Pool
	Universe []primitives.Code
	History  []primitives.Code

	// Secret is set only when the driver knows the answer. Random uses it to pick its opening.
	Secret primitives.Code
}

type Strategy interface {
	Kind() Kind
	Select(ctx context.Context, in Input) (primitives.Code, error)
}

type Params struct {
	Scorer primitives.Scorer

	// Openings are the canonical first guesses. Random tries all of them; the scanning
	// strategies play the first one while the pool is still the whole universe.
	Openings []primitives.Code

	// Rand drives Random. Required for KindRandom.
	Rand *rand.Rand

	// Workers is the number of goroutines a scan is split across. Zero means GOMAXPROCS.
	Workers int
}

func New(kind Kind, p Params) (Strategy, error) {
	if p.Scorer == nil {
		p.Scorer = primitives.Pure
	}
	if p.Workers <= 0 {
		p.Workers = runtime.GOMAXPROCS(0)
	}

	var opening primitives.Code
	if len(p.Openings) > 0 {
		opening = p.Openings[0]
	}

	switch kind {
	case KindRandom:
		if p.Rand == nil {
			return nil, fmt.Errorf("random strategy needs a source of randomness")
		}
		return &random{scorer: p.Scorer, openings: p.Openings, rand: p.Rand}, nil
	case KindMinimax:
		return &scanning{kind: kind, opening: opening, scan: scanner{scorer: p.Scorer, workers: p.Workers}, metric: worstCase}, nil
	case KindMostParts:
		return &scanning{kind: kind, opening: opening, scan: scanner{scorer: p.Scorer, workers: p.Workers}, metric: mostParts}, nil
	case KindExpectedSize:
		return &scanning{kind: kind, opening: opening, scan: scanner{scorer: p.Scorer, workers: p.Workers}, metric: expectedSize}, nil
	}
	return nil, fmt.Errorf("unknown strategy %v", kind)
}

func historySet(history []primitives.Code) map[primitives.Code]struct{} {
	set := make(map[primitives.Code]struct{}, len(history))
	for _, h := range history {
		set[h] = struct{}{}
	}
	return set
}
