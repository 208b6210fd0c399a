package strategy

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"crosswarped.com/mastermind/pkg/primitives"
)

var tracer = otel.Tracer("crosswarped.com/mastermind/internal/strategy")

// metric turns the partition of the pool by one guess into a comparable number. Integer
// metrics are exact in a float64; expectedSize relies on exact equality of the same division.
type metric struct {
	name     string
	maximize bool
	eval     func(h *primitives.Histogram, universeSize int) float64
}

var (
	worstCase = metric{
		name: "worst-case",
		eval: func(h *primitives.Histogram, _ int) float64 {
			return float64(h.Largest())
		},
	}
	mostParts = metric{
		name:     "most-parts",
		maximize: true,
		eval: func(h *primitives.Histogram, _ int) float64 {
			return float64(h.Parts())
		},
	}
	expectedSize = metric{
		name: "expected-size",
		eval: func(h *primitives.Histogram, universeSize int) float64 {
			return float64(h.SumOfSquares()) / float64(universeSize)
		},
	}
)

func (m metric) better(a, b float64) bool {
	if m.maximize {
		return a > b
	}
	return a < b
}

// scanning implements the three strategies that evaluate every universe code.
type scanning struct {
	kind    Kind
	opening primitives.Code
	scan    scanner
	metric  metric
}

func (s *scanning) Kind() Kind {
	return s.kind
}

func (s *scanning) Select(ctx context.Context, in Input) (primitives.Code, error) {
	if in.Pool == nil || in.Pool.Len() == 0 {
		return "", fmt.Errorf("%v: empty pool", s.kind)
	}

	// first
	if in.Pool.Len() == len(in.Universe) && s.opening != "" {
		return s.opening, nil
	}
	// last
	if in.Pool.Len() == 1 {
		return in.Pool.At(0), nil
	}

	ctx, span := tracer.Start(ctx, "strategy.scan")
	defer span.End()
	span.SetAttributes(
		attribute.String("strategy", s.kind.String()),
		attribute.Int("pool", in.Pool.Len()),
		attribute.Int("universe", len(in.Universe)),
	)

	start := time.Now()
	guess, err := s.scan.best(ctx, in, s.metric)
	selectDuration.WithLabelValues(s.kind.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return guess, nil
}

type scanner struct {
	scorer  primitives.Scorer
	workers int
}

// best evaluates every universe code not in history and reduces with the tie-break rule: among
// the codes sharing the best metric, the first one in universe order that is still a
// candidate, otherwise the first one in universe order.
//
// The evaluation is split into contiguous chunks, one per worker, each with its own histogram.
// The reduction walks the results in universe order, so the outcome does not depend on the
// number of workers.
func (sc scanner) best(ctx context.Context, in Input, m metric) (primitives.Code, error) {
	universe := in.Universe
	n := len(universe[0])
	history := historySet(in.History)

	scores := make([]float64, len(universe))
	skip := make([]bool, len(universe))

	workers := max(1, min(sc.workers, len(universe)))
	chunk := (len(universe) + workers - 1) / workers

	g, gCtx := errgroup.WithContext(ctx)
	for w := range workers {
		lo := w * chunk
		hi := min(lo+chunk, len(universe))
		if lo >= hi {
			break
		}

		g.Go(func() error {
			h := primitives.NewHistogram(n)
			for i := lo; i < hi; i++ {
				if (i-lo)%256 == 0 && gCtx.Err() != nil {
					return gCtx.Err()
				}
				if _, seen := history[universe[i]]; seen {
					skip[i] = true
					continue
				}
				h.Reset()
				in.Pool.Partition(sc.scorer, universe[i], h)
				scores[i] = m.eval(h, len(universe))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	bestIdx := -1
	for i := range universe {
		if skip[i] {
			continue
		}
		if bestIdx < 0 || m.better(scores[i], scores[bestIdx]) {
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		// Every code has been guessed already; only a pool member can still be right.
		first, _ := in.Pool.First()
		return first, nil
	}

	bestScore := scores[bestIdx]
	for i := bestIdx; i < len(universe); i++ {
		if skip[i] || scores[i] != bestScore {
			continue
		}
		if in.Pool.Contains(universe[i]) {
			return universe[i], nil
		}
	}
	return universe[bestIdx], nil
}
