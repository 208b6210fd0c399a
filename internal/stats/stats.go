// Package stats plays many games per strategy and summarizes how many rounds they took.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"crosswarped.com/mastermind"
	"crosswarped.com/mastermind/internal/respcache"
	"crosswarped.com/mastermind/internal/strategy"
	"crosswarped.com/mastermind/pkg/primitives"
)

var tracer = otel.Tracer("crosswarped.com/mastermind/internal/stats")

// Game is the result of one game.
type Game struct {
	Secret   primitives.Code
	Rounds   int
	Solved   bool
	Duration time.Duration
}

// Summary describes the games one strategy played.
type Summary struct {
	RunID    string
	Strategy string
	Space    string
	Runs     int
	Unsolved int

	// Histogram maps a number of rounds to the number of solved games that took it.
	Histogram map[int]int
	Average   float64
	Median    float64
	Modes     []int
	Min, Max  int

	AverageMillis float64
	MedianMillis  float64
	Total         time.Duration

	Oracle    respcache.Stats
	StartedAt time.Time
}

type Params struct {
	Config mastermind.Config

	// Strategies default to Config.Stats.Strategies.
	Strategies []strategy.Kind

	// Runs defaults to Config.Stats.Runs.
	Runs int

	// Parallelism bounds the games in flight. Zero means Config.Stats.Parallelism, then GOMAXPROCS.
	Parallelism int

	// Engine is shared by every game. Required.
	Engine *mastermind.Engine

	// Rand draws the secrets and seeds each game. Defaults to mastermind.NewRand(Config).
	Rand *rand.Rand

	Logger *slog.Logger
}

// Run plays the same list of random secrets with every strategy and returns one summary per
// strategy, in order. Strategies run one after the other; the games of a strategy run in
// parallel.
func Run(ctx context.Context, p Params) ([]Summary, error) {
	if p.Engine == nil {
		return nil, fmt.Errorf("stats: no engine")
	}
	if p.Runs <= 0 {
		p.Runs = p.Config.Stats.Runs
	}
	if p.Parallelism <= 0 {
		p.Parallelism = p.Config.Stats.Parallelism
	}
	if p.Parallelism <= 0 {
		p.Parallelism = runtime.GOMAXPROCS(0)
	}
	if p.Rand == nil {
		p.Rand = mastermind.NewRand(p.Config)
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if len(p.Strategies) == 0 {
		for _, name := range p.Config.Stats.Strategies {
			k, err := strategy.ParseKind(name)
			if err != nil {
				return nil, &mastermind.ConfigError{Field: "stats.strategies", Reason: err.Error()}
			}
			p.Strategies = append(p.Strategies, k)
		}
	}

	ctx, span := tracer.Start(ctx, "stats.Run")
	defer span.End()
	span.SetAttributes(attribute.Int("runs", p.Runs), attribute.Int("strategies", len(p.Strategies)))

	runID := uuid.NewString()
	space := p.Engine.Space

	secrets := make([]primitives.Code, p.Runs)
	for i := range secrets {
		secrets[i] = space.Random(p.Rand)
	}

	summaries := make([]Summary, 0, len(p.Strategies))
	for _, kind := range p.Strategies {
		cfg := p.Config
		cfg.Strategy = kind.String()
		if cfg.Workers == 0 && p.Parallelism > 1 {
			// The games already keep every core busy.
			cfg.Workers = 1
		}

		seeds := make([][2]uint64, p.Runs)
		for i := range seeds {
			seeds[i] = [2]uint64{p.Rand.Uint64(), p.Rand.Uint64()}
		}

		before := p.Engine.Oracle.Stats()
		started := time.Now()
		games := make([]Game, p.Runs)

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(p.Parallelism)
		for i, secret := range secrets {
			g.Go(func() error {
				rng := rand.New(rand.NewPCG(seeds[i][0], seeds[i][1]))
				t, err := mastermind.Solve(gCtx, cfg, secret,
					mastermind.WithEngine(p.Engine),
					mastermind.WithRand(rng),
					mastermind.WithLogger(p.Logger),
				)
				if err != nil {
					return fmt.Errorf("%s, secret %s: %w", kind, secret, err)
				}
				games[i] = Game{Secret: secret, Rounds: t.Len(), Solved: t.Solved(), Duration: t.Duration}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return summaries, err
		}

		s := Summarize(games)
		s.RunID = runID
		s.Strategy = kind.String()
		s.Space = space.Signature()
		s.Total = time.Since(started)
		s.StartedAt = started
		s.Oracle = p.Engine.Oracle.Stats().Sub(before)
		summaries = append(summaries, s)

		p.Logger.Info("strategy done", "strategy", s.Strategy, "runs", s.Runs, "average", s.Average, "max", s.Max, "unsolved", s.Unsolved, "elapsed", s.Total)
	}
	p.Engine.Oracle.Flush()
	return summaries, nil
}

// Summarize computes the statistics of the solved games. Unsolved games only count towards
// Unsolved.
func Summarize(games []Game) Summary {
	s := Summary{Runs: len(games), Histogram: map[int]int{}}

	var rounds []int
	var millis []float64
	for _, g := range games {
		if !g.Solved {
			s.Unsolved++
			continue
		}
		s.Histogram[g.Rounds]++
		rounds = append(rounds, g.Rounds)
		millis = append(millis, float64(g.Duration)/float64(time.Millisecond))
	}
	if len(rounds) == 0 {
		return s
	}

	slices.Sort(rounds)
	slices.Sort(millis)
	s.Min = rounds[0]
	s.Max = rounds[len(rounds)-1]
	s.Average = mean(rounds)
	s.Median = median(rounds)
	s.AverageMillis = mean(millis)
	s.MedianMillis = median(millis)

	most := 0
	for r, n := range s.Histogram {
		switch {
		case n > most:
			most = n
			s.Modes = []int{r}
		case n == most:
			s.Modes = append(s.Modes, r)
		}
	}
	slices.Sort(s.Modes)
	return s
}

func mean[T int | float64](values []T) float64 {
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}

func median[T int | float64](sorted []T) float64 {
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return (float64(sorted[mid-1]) + float64(sorted[mid])) / 2
}

func (s Summary) Repr() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s over %s, %d games\n", s.Strategy, s.Space, s.Runs)

	keys := make([]int, 0, len(s.Histogram))
	for r := range s.Histogram {
		keys = append(keys, r)
	}
	slices.Sort(keys)
	for _, r := range keys {
		fmt.Fprintf(&b, "  %2d rounds: %d\n", r, s.Histogram[r])
	}

	fmt.Fprintf(&b, "  average %.3f, median %.1f, modes %v, min %d, max %d\n", s.Average, s.Median, s.Modes, s.Min, s.Max)
	fmt.Fprintf(&b, "  %.2fms average, %.2fms median, %v total\n", s.AverageMillis, s.MedianMillis, s.Total.Round(time.Millisecond))
	if s.Unsolved > 0 {
		fmt.Fprintf(&b, "  %d unsolved\n", s.Unsolved)
	}
	fmt.Fprintf(&b, "  feedback: %d calls, %d reused, %d imported, %d computed", s.Oracle.Calls, s.Oracle.Live, s.Oracle.Imported, s.Oracle.Computed)
	return b.String()
}
