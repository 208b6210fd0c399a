package internal

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"crosswarped.com/mastermind/pkg/primitives"
)

func intPtr(i int) *int {
	return &i
}

func TestAllPossibleCodes_Order(t *testing.T) {
	tests := []struct {
		name string
		p    AllPossibleCodesParams
		want []primitives.Code
	}{
		{
			name: "product",
			p:    AllPossibleCodesParams{Alphabet: "AB", Length: 2, Repetition: true},
			want: []primitives.Code{"AA", "AB", "BA", "BB"},
		},
		{
			name: "permutations",
			p:    AllPossibleCodesParams{Alphabet: "ABC", Length: 2},
			want: []primitives.Code{"AB", "AC", "BA", "BC", "CA", "CB"},
		},
		{
			name: "rank order not byte order",
			p:    AllPossibleCodesParams{Alphabet: "90", Length: 2, Repetition: true},
			want: []primitives.Code{"99", "90", "09", "00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AllPossibleCodes(t.Context(), tt.p)
			if err != nil {
				t.Fatalf("AllPossibleCodes() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("AllPossibleCodes() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAllPossibleCodes_SizeLaw(t *testing.T) {
	const alphabet = "1234567890"
	for k := 1; k <= 7; k++ {
		for n := 1; n <= 5; n++ {
			for _, rep := range []bool{true, false} {
				if !rep && n > k {
					continue
				}
				want := 1
				for i := range n {
					if rep {
						want *= k
					} else {
						want *= k - i
					}
				}

				got, err := AllPossibleCodes(t.Context(), AllPossibleCodesParams{
					Alphabet:   alphabet[:k],
					Length:     n,
					Repetition: rep,
				})
				if err != nil {
					t.Fatalf("k=%d n=%d rep=%v: %v", k, n, rep, err)
				}
				if len(got) != want {
					t.Errorf("k=%d n=%d rep=%v: got %d codes, want %d", k, n, rep, len(got), want)
				}
				if count, ok := CountCodes(k, n, rep, DefaultMaxCodes); !ok || count != want {
					t.Errorf("CountCodes(%d, %d, %v) = %d, %v, want %d", k, n, rep, count, ok, want)
				}

				seen := make(map[primitives.Code]bool, len(got))
				for _, c := range got {
					if seen[c] {
						t.Fatalf("duplicate code %s", c)
					}
					seen[c] = true
				}
			}
		}
	}
}

func TestAllPossibleCodes_Errors(t *testing.T) {
	tests := []struct {
		name string
		p    AllPossibleCodesParams
	}{
		{"zero length", AllPossibleCodesParams{Alphabet: "12", Length: 0}},
		{"empty alphabet", AllPossibleCodesParams{Alphabet: "", Length: 2}},
		{"too long without repetition", AllPossibleCodesParams{Alphabet: "12", Length: 3}},
		{"over ceiling", AllPossibleCodesParams{Alphabet: "123456", Length: 4, Repetition: true, MaxCodes: intPtr(1000)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := AllPossibleCodes(t.Context(), tt.p); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestAllPossibleCodes_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := AllPossibleCodes(ctx, AllPossibleCodesParams{Alphabet: "123456", Length: 4, Repetition: true})
	if err == nil {
		t.Error("expected context error")
	}
}

func TestCountCodes_Overflow(t *testing.T) {
	if _, ok := CountCodes(26, 30, true, DefaultMaxCodes); ok {
		t.Error("26^30 should exceed the ceiling")
	}
	if count, ok := CountCodes(10, 7, true, DefaultMaxCodes); !ok || count != 10_000_000 {
		t.Errorf("CountCodes(10, 7) = %d, %v", count, ok)
	}
}
