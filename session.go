package mastermind

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"crosswarped.com/mastermind/internal/strategy"
	"crosswarped.com/mastermind/pkg/primitives"
)

var tracer = otel.Tracer("crosswarped.com/mastermind")

// State is an enum of where a session is in its game.
type State int

const (
	StateNotStarted State = iota
	StateAwaitingGuess
	StateAwaitingFeedback
	StateSolved
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateAwaitingGuess:
		return "awaiting-guess"
	case StateAwaitingFeedback:
		return "awaiting-feedback"
	case StateSolved:
		return "solved"
	case StateExhausted:
		return "exhausted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no more guesses will be made.
func (s State) Terminal() bool {
	return s == StateSolved || s == StateExhausted
}

// Session solves one game. It owns its pool and guess history; the space and the oracle may be
// shared with other sessions.
//
// A Session is not safe for concurrent use.
type Session struct {
	id       uuid.UUID
	limit    int
	space    *Space
	strategy strategy.Strategy
	scorer   primitives.Scorer
	logger   *slog.Logger

	universe []primitives.Code
	pool     *primitives.Pool
	history  []primitives.Code
	rounds   []Round
	secret   primitives.Code

	state   State
	pending primitives.Code
	started time.Time
	elapsed time.Duration
}

type sessionOptions struct {
	space  *Space
	scorer primitives.Scorer
	rand   *rand.Rand
	logger *slog.Logger
	secret primitives.Code
}

type Option func(*sessionOptions)

// WithEngine shares the engine's space and memoizing oracle.
func WithEngine(e *Engine) Option {
	return func(o *sessionOptions) {
		o.space = e.Space
		o.scorer = e.Oracle
	}
}

// WithSpace reuses an already built space, and its universe, instead of building one from the
// config.
func WithSpace(s *Space) Option {
	return func(o *sessionOptions) {
		o.space = s
	}
}

// WithOracle scores through the given scorer, typically a shared *respcache.Oracle.
func WithOracle(scorer primitives.Scorer) Option {
	return func(o *sessionOptions) {
		o.scorer = scorer
	}
}

func WithRand(r *rand.Rand) Option {
	return func(o *sessionOptions) {
		o.rand = r
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *sessionOptions) {
		o.logger = l
	}
}

// WithSecret tells the session the answer. Only the random strategy looks at it, to pick its
// opening.
func WithSecret(c primitives.Code) Option {
	return func(o *sessionOptions) {
		o.secret = c
	}
}

// NewRand returns the generator a config asks for: seeded if cfg.Seed is set, from the clock
// otherwise.
func NewRand(cfg Config) *rand.Rand {
	if cfg.Seed != nil {
		return rand.New(rand.NewPCG(*cfg.Seed, *cfg.Seed^0x9e3779b97f4a7c15))
	}
	return rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(time.Now().Nanosecond())))
}

// NewSession validates cfg and prepares a game. Every configuration problem is reported here,
// as a *ConfigError, before any guess is made.
func NewSession(ctx context.Context, cfg Config, opts ...Option) (*Session, error) {
	var o sessionOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	space := o.space
	if space == nil {
		var err error
		if space, err = cfg.Space(); err != nil {
			return nil, err
		}
	} else if space.K != cfg.Alphabet || space.N != cfg.Columns || space.Repetition != cfg.Repetition {
		return nil, configErrorf("space", "%v does not match the configuration", space)
	}

	universe, err := space.Universe(ctx)
	if err != nil {
		return nil, err
	}

	kind, err := cfg.Kind()
	if err != nil {
		return nil, err
	}

	if o.scorer == nil {
		o.scorer = primitives.Pure
	}
	if o.rand == nil {
		o.rand = NewRand(cfg)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.secret != "" {
		if o.secret, err = space.ParseCode(string(o.secret)); err != nil {
			return nil, fmt.Errorf("secret: %w", err)
		}
	}

	strat, err := strategy.New(kind, strategy.Params{
		Scorer:   o.scorer,
		Openings: cfg.Openings(space, kind),
		Rand:     o.rand,
		Workers:  cfg.Workers,
	})
	if err != nil {
		return nil, configErrorf("strategy", "%v", err)
	}

	id := uuid.New()
	return &Session{
		id:       id,
		limit:    cfg.Limit,
		space:    space,
		strategy: strat,
		scorer:   o.scorer,
		logger:   o.logger.With("session", id.String(), "strategy", kind.String()),
		universe: universe,
		pool:     primitives.NewPool(universe),
		secret:   o.secret,
		state:    StateNotStarted,
	}, nil
}

func (s *Session) ID() string {
	return s.id.String()
}

func (s *Session) Space() *Space {
	return s.space
}

func (s *Session) State() State {
	return s.state
}

// Round returns the number of rounds answered so far.
func (s *Session) Round() int {
	return len(s.rounds)
}

// Remaining returns the number of codes still consistent with every answer.
func (s *Session) Remaining() int {
	return s.pool.Len()
}

// Pool returns the current candidates.
func (s *Session) Pool() *primitives.Pool {
	return s.pool
}

func (s *Session) IsSolved() bool {
	return s.state == StateSolved
}

func (s *Session) IsExhausted() bool {
	return s.state == StateExhausted
}

// NextGuess picks the guess for the coming round. Calling it again before the feedback arrives
// returns the same guess.
func (s *Session) NextGuess(ctx context.Context) (primitives.Code, error) {
	switch s.state {
	case StateAwaitingFeedback:
		return s.pending, nil
	case StateSolved, StateExhausted:
		return "", fmt.Errorf("%w: session is %s", ErrInvalidState, s.state)
	case StateNotStarted:
		s.started = time.Now()
	}

	guess, err := s.strategy.Select(ctx, strategy.Input{
		Round:    len(s.rounds) + 1,
		Pool:     s.pool,
		Universe: s.universe,
		History:  s.history,
		Secret:   s.secret,
	})
	if err != nil {
		return "", fmt.Errorf("round %d: %w", len(s.rounds)+1, err)
	}

	s.pending = guess
	s.state = StateAwaitingFeedback
	return guess, nil
}

// ApplyFeedback records the answer to the pending guess and narrows the pool.
//
// Feedback that no candidate agrees with returns an error matching ErrInconsistentFeedback and
// leaves the session waiting for feedback on the same guess.
func (s *Session) ApplyFeedback(guess primitives.Code, fb primitives.Feedback) error {
	if s.state != StateAwaitingFeedback {
		return fmt.Errorf("%w: feedback while %s", ErrInvalidState, s.state)
	}
	if guess != s.pending {
		return fmt.Errorf("%w: feedback for %s, pending guess is %s", ErrInvalidCode, guess, s.pending)
	}
	if !fb.Valid(s.space.N) {
		return fmt.Errorf("%w: %s for %d columns", ErrInvalidFeedback, fb, s.space.N)
	}

	pool, err := s.pool.Filter(s.scorer, guess, fb)
	if err != nil {
		return fmt.Errorf("round %d: %w", len(s.rounds)+1, err)
	}

	s.pool = pool
	s.history = append(s.history, guess)
	s.rounds = append(s.rounds, Round{
		Number:    len(s.rounds) + 1,
		Guess:     guess,
		Feedback:  fb,
		Remaining: pool.Len(),
	})
	s.pending = ""
	poolSize.Observe(float64(pool.Len()))

	s.logger.Debug("round",
		"round", len(s.rounds),
		"guess", guess,
		"black", fb.Black,
		"white", fb.White,
		"remaining", pool.Len(),
	)

	switch {
	case fb.IsSolved(s.space.N):
		s.finish(StateSolved)
	case len(s.rounds) >= s.limit:
		s.finish(StateExhausted)
	default:
		s.state = StateAwaitingGuess
	}
	return nil
}

func (s *Session) finish(state State) {
	s.state = state
	s.elapsed = time.Since(s.started)

	outcome := s.outcome()
	roundsTotal.WithLabelValues(s.strategy.Kind().String(), outcome.String()).Add(float64(len(s.rounds)))
	s.logger.Debug("finished", "outcome", outcome, "rounds", len(s.rounds), "elapsed", s.elapsed)
}

func (s *Session) outcome() Outcome {
	switch s.state {
	case StateSolved:
		return OutcomeSolved
	case StateExhausted:
		return OutcomeExhausted
	}
	return OutcomeUnfinished
}

// Transcript returns the rounds played so far.
func (s *Session) Transcript() Transcript {
	elapsed := s.elapsed
	if !s.state.Terminal() && !s.started.IsZero() {
		elapsed = time.Since(s.started)
	}
	return Transcript{
		SessionID: s.id.String(),
		Strategy:  s.strategy.Kind().String(),
		Rounds:    append([]Round(nil), s.rounds...),
		Outcome:   s.outcome(),
		Duration:  elapsed,
		Secret:    s.secret,
	}
}

// Solve plays a whole game against a known secret, scoring each guess with the session's
// oracle. Running out of rounds is not an error; the transcript reports it together with the
// secret.
func Solve(ctx context.Context, cfg Config, secret primitives.Code, opts ...Option) (Transcript, error) {
	ctx, span := tracer.Start(ctx, "mastermind.Solve")
	defer span.End()

	if secret == "" {
		return Transcript{}, fmt.Errorf("%w: no secret to solve", ErrInvalidCode)
	}

	s, err := NewSession(ctx, cfg, append(opts[:len(opts):len(opts)], WithSecret(secret))...)
	if err != nil {
		return Transcript{}, err
	}
	span.SetAttributes(attribute.String("session", s.ID()), attribute.String("strategy", cfg.Strategy))

	for !s.state.Terminal() {
		guess, err := s.NextGuess(ctx)
		if err != nil {
			return s.Transcript(), err
		}
		if err := s.ApplyFeedback(guess, s.scorer.Score(guess, s.secret)); err != nil {
			return s.Transcript(), err
		}
	}

	t := s.Transcript()
	span.SetAttributes(attribute.Int("rounds", t.Len()), attribute.String("outcome", t.Outcome.String()))
	return t, nil
}
