package strategy

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosswarped.com/mastermind/internal"
	"crosswarped.com/mastermind/pkg/primitives"
)

func universe(t testing.TB, alphabet string, n int, repetition bool) []primitives.Code {
	t.Helper()
	codes, err := internal.AllPossibleCodes(context.Background(), internal.AllPossibleCodesParams{
		Alphabet:   alphabet,
		Length:     n,
		Repetition: repetition,
	})
	require.NoError(t, err)
	return codes
}

func filtered(t testing.TB, u []primitives.Code, guess primitives.Code, answer primitives.Feedback) *primitives.Pool {
	t.Helper()
	pool, err := primitives.NewPool(u).Filter(primitives.Pure, guess, answer)
	require.NoError(t, err)
	return pool
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	got, err := ParseKind("knuth")
	require.NoError(t, err)
	assert.Equal(t, KindMinimax, got)

	_, err = ParseKind("greedy")
	assert.Error(t, err)
}

func TestNew_RandomNeedsRand(t *testing.T) {
	_, err := New(KindRandom, Params{})
	assert.Error(t, err)

	_, err = New(Kind(42), Params{})
	assert.Error(t, err)
}

func TestScanning_Shortcuts(t *testing.T) {
	u := universe(t, "123456", 4, true)

	s, err := New(KindMinimax, Params{Openings: []primitives.Code{"1122"}})
	require.NoError(t, err)

	got, err := s.Select(t.Context(), Input{Round: 1, Pool: primitives.NewPool(u), Universe: u})
	require.NoError(t, err)
	assert.Equal(t, primitives.Code("1122"), got)

	single := primitives.NewPool([]primitives.Code{"6543"})
	got, err = s.Select(t.Context(), Input{Round: 4, Pool: single, Universe: u, History: []primitives.Code{"1122"}})
	require.NoError(t, err)
	assert.Equal(t, primitives.Code("6543"), got)

	_, err = s.Select(t.Context(), Input{Round: 2, Pool: primitives.NewPool(nil), Universe: u})
	assert.Error(t, err)
}

// Without an opening the scan runs on the whole universe and lands on the canonical openings.
func TestScanning_FullUniverseMatchesOpenings(t *testing.T) {
	if testing.Short() {
		t.Skip("full universe scan")
	}
	u := universe(t, "123456", 4, true)

	for _, tc := range []struct {
		kind Kind
		want primitives.Code
	}{
		{kind: KindMinimax, want: "1122"},
		{kind: KindMostParts, want: "1123"},
		{kind: KindExpectedSize, want: "1123"},
	} {
		t.Run(tc.kind.String(), func(t *testing.T) {
			s, err := New(tc.kind, Params{})
			require.NoError(t, err)

			got, err := s.Select(t.Context(), Input{Round: 1, Pool: primitives.NewPool(u), Universe: u})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestScanning_SecondGuess(t *testing.T) {
	u := universe(t, "123456", 4, true)

	for _, tc := range []struct {
		name   string
		kind   Kind
		guess  primitives.Code
		answer primitives.Feedback
		want   primitives.Code
	}{
		{name: "minimax after 1122 (1,1)", kind: KindMinimax, guess: "1122", answer: primitives.Feedback{Black: 1, White: 1}, want: "1134"},
		{name: "most-parts after 1122 (1,1)", kind: KindMostParts, guess: "1122", answer: primitives.Feedback{Black: 1, White: 1}, want: "1314"},
		{name: "expected-size after 1122 (1,1)", kind: KindExpectedSize, guess: "1122", answer: primitives.Feedback{Black: 1, White: 1}, want: "1314"},
		{name: "minimax after 1123 (0,0)", kind: KindMinimax, guess: "1123", answer: primitives.Feedback{}, want: "4445"},
		{name: "most-parts after 1123 (0,0)", kind: KindMostParts, guess: "1123", answer: primitives.Feedback{}, want: "4455"},
		{name: "expected-size after 1123 (0,0)", kind: KindExpectedSize, guess: "1123", answer: primitives.Feedback{}, want: "4455"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			pool := filtered(t, u, tc.guess, tc.answer)

			s, err := New(tc.kind, Params{Openings: []primitives.Code{tc.guess}})
			require.NoError(t, err)

			got, err := s.Select(t.Context(), Input{Round: 2, Pool: pool, Universe: u, History: []primitives.Code{tc.guess}})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestScanning_IndependentOfWorkers(t *testing.T) {
	u := universe(t, "12345", 4, true)
	pool := filtered(t, u, "1122", primitives.Feedback{Black: 0, White: 1})
	in := Input{Round: 2, Pool: pool, Universe: u, History: []primitives.Code{"1122"}}

	for _, kind := range []Kind{KindMinimax, KindMostParts, KindExpectedSize} {
		one, err := New(kind, Params{Workers: 1})
		require.NoError(t, err)
		many, err := New(kind, Params{Workers: 7})
		require.NoError(t, err)

		want, err := one.Select(t.Context(), in)
		require.NoError(t, err)
		got, err := many.Select(t.Context(), in)
		require.NoError(t, err)
		assert.Equal(t, want, got, kind.String())
	}
}

func TestScanning_SkipsHistory(t *testing.T) {
	u := universe(t, "123", 2, false)
	pool := primitives.NewPool([]primitives.Code{"12", "21", "31"})

	s, err := New(KindMinimax, Params{})
	require.NoError(t, err)

	got, err := s.Select(t.Context(), Input{Round: 2, Pool: pool, Universe: u, History: []primitives.Code{"12"}})
	require.NoError(t, err)
	assert.NotEqual(t, primitives.Code("12"), got)

	// Every code already played: only a pool member can still be right.
	got, err = s.Select(t.Context(), Input{Round: 7, Pool: pool, Universe: u, History: u})
	require.NoError(t, err)
	assert.Equal(t, primitives.Code("12"), got)
}

func TestScanning_Cancelled(t *testing.T) {
	u := universe(t, "123456", 4, true)
	pool := filtered(t, u, "1122", primitives.Feedback{Black: 1, White: 1})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	s, err := New(KindExpectedSize, Params{Workers: 2})
	require.NoError(t, err)
	_, err = s.Select(ctx, Input{Round: 2, Pool: pool, Universe: u, History: []primitives.Code{"1122"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRandom_Opening(t *testing.T) {
	u := universe(t, "123456", 4, true)
	openings := []primitives.Code{"1122", "1123", "1234"}

	s, err := New(KindRandom, Params{Openings: openings, Rand: rand.New(rand.NewPCG(1, 2))})
	require.NoError(t, err)

	pool := primitives.NewPool(u)
	for _, secret := range []primitives.Code{"1234", "5566", "1111", "6543"} {
		got, err := s.Select(t.Context(), Input{Round: 1, Pool: pool, Universe: u, Secret: secret})
		require.NoError(t, err)

		best := pool.Len()
		for _, o := range openings {
			best = min(best, pool.Count(primitives.Pure, o, primitives.Score(o, secret)))
		}
		assert.Contains(t, openings, got)
		assert.Equal(t, best, pool.Count(primitives.Pure, got, primitives.Score(got, secret)), "secret %s", secret)
	}

	// Unknown secret plays the first opening.
	got, err := s.Select(t.Context(), Input{Round: 1, Pool: pool, Universe: u})
	require.NoError(t, err)
	assert.Equal(t, primitives.Code("1122"), got)
}

func TestRandom_LaterRoundsSamplePool(t *testing.T) {
	u := universe(t, "123456", 4, true)
	pool := filtered(t, u, "1122", primitives.Feedback{Black: 1, White: 1})

	pick := func(seed uint64) []primitives.Code {
		s, err := New(KindRandom, Params{Openings: []primitives.Code{"1122"}, Rand: rand.New(rand.NewPCG(seed, 99))})
		require.NoError(t, err)

		var got []primitives.Code
		for range 20 {
			g, err := s.Select(t.Context(), Input{Round: 2, Pool: pool, Universe: u, History: []primitives.Code{"1122"}})
			require.NoError(t, err)
			require.True(t, pool.Contains(g), "%s is not a candidate", g)
			got = append(got, g)
		}
		return got
	}

	assert.Equal(t, pick(7), pick(7))
}

func BenchmarkSelect(b *testing.B) {
	u := universe(b, "123456", 4, true)
	pool := filtered(b, u, "1122", primitives.Feedback{Black: 1, White: 1})
	in := Input{Round: 2, Pool: pool, Universe: u, History: []primitives.Code{"1122"}}

	for _, kind := range []Kind{KindMinimax, KindMostParts, KindExpectedSize} {
		b.Run(kind.String(), func(b *testing.B) {
			s, err := New(kind, Params{})
			require.NoError(b, err)
			for b.Loop() {
				if _, err := s.Select(b.Context(), in); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
