package strategy

import (
	"context"
	"errors"
	"math/rand/v2"

	"crosswarped.com/mastermind/pkg/primitives"
)

// random plays the opening that splits off the smallest pool for the actual secret, then picks
// uniformly among the remaining candidates.
type random struct {
	scorer   primitives.Scorer
	openings []primitives.Code
	rand     *rand.Rand
}

func (r *random) Kind() Kind {
	return KindRandom
}

func (r *random) Select(ctx context.Context, in Input) (primitives.Code, error) {
	if in.Pool == nil || in.Pool.Len() == 0 {
		return "", errors.New("random: empty pool")
	}
	if in.Round <= 1 && len(r.openings) > 0 {
		return r.opening(in), nil
	}
	return in.Pool.At(r.rand.IntN(in.Pool.Len())), nil
}

// opening falls back to the first opening when the secret is unknown. Ties keep the earlier
// opening.
func (r *random) opening(in Input) primitives.Code {
	if in.Secret == "" || len(r.openings) == 1 {
		return r.openings[0]
	}

	best := r.openings[0]
	bestSize := -1
	for _, guess := range r.openings {
		answer := r.scorer.Score(guess, in.Secret)
		size := in.Pool.Count(r.scorer, guess, answer)
		if bestSize < 0 || size < bestSize {
			best, bestSize = guess, size
		}
	}
	return best
}
