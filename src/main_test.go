package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"crosswarped.com/mastermind"
)

func setup(t *testing.T) {
	t.Helper()
	baseConfig = mastermind.DefaultConfig()
	baseConfig.Cache.Policy = "unbounded"
	enginesMu.Lock()
	engines = map[string]*mastermind.Engine{}
	enginesMu.Unlock()
}

func post(t *testing.T, h http.HandlerFunc, body string, out any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("response %q: %v", rec.Body.String(), err)
		}
	}
	return rec.Code
}

func TestSolveHandler(t *testing.T) {
	setup(t)

	var resp SolveResponse
	code := post(t, solveHandler, `{"strategy": "minimax", "secret": "1234"}`, &resp)
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("solve = %d %+v", code, resp)
	}
	rounds := resp.Transcript.Rounds
	if rounds[0].Guess != "1122" || rounds[len(rounds)-1].Guess != "1234" {
		t.Errorf("transcript = %+v", rounds)
	}
	if !resp.Transcript.Solved() {
		t.Errorf("outcome = %v", resp.Transcript.Outcome)
	}
}

func TestSolveHandler_Errors(t *testing.T) {
	setup(t)

	for _, tc := range []struct {
		name string
		body string
		want int
	}{
		{name: "malformed", body: `{"secret": `, want: http.StatusBadRequest},
		{name: "no secret", body: `{"strategy": "minimax"}`, want: http.StatusBadRequest},
		{name: "secret outside alphabet", body: `{"secret": "1239"}`, want: http.StatusBadRequest},
		{name: "too many columns", body: `{"columns": 7, "repetition": false, "secret": "1234567"}`, want: http.StatusBadRequest},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var resp SolveResponse
			if code := post(t, solveHandler, tc.body, &resp); code != tc.want || resp.Success || resp.Error == "" {
				t.Errorf("solve = %d %+v, want %d", code, resp, tc.want)
			}
		})
	}

	rec := httptest.NewRecorder()
	solveHandler(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	solveHandler(rec, httptest.NewRequest(http.MethodOptions, "/", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("OPTIONS = %d %v", rec.Code, rec.Header())
	}
}

func TestNextGuessHandler(t *testing.T) {
	setup(t)

	var resp NextGuessResponse
	if code := post(t, nextGuessHandler, `{"strategy": "minimax"}`, &resp); code != http.StatusOK || resp.Guess != "1122" {
		t.Fatalf("first guess = %d %+v", code, resp)
	}

	resp = NextGuessResponse{}
	body := `{"strategy": "minimax", "history": [{"guess": "1122", "feedback": {"black": 1, "white": 1}}]}`
	if code := post(t, nextGuessHandler, body, &resp); code != http.StatusOK {
		t.Fatalf("second guess = %d %+v", code, resp)
	}
	if resp.Guess != "1134" || resp.Remaining != 208 || resp.Round != 1 || resp.State != "awaiting-guess" {
		t.Errorf("second guess = %+v", resp)
	}

	resp = NextGuessResponse{}
	body = `{"strategy": "minimax", "history": [{"guess": "1122", "feedback": {"black": 4, "white": 0}}]}`
	if code := post(t, nextGuessHandler, body, &resp); code != http.StatusOK || resp.State != "solved" || resp.Guess != "" {
		t.Errorf("after solving = %d %+v", code, resp)
	}
}

func TestNextGuessHandler_Errors(t *testing.T) {
	setup(t)

	for _, tc := range []struct {
		name string
		body string
		want int
	}{
		{name: "wrong guess", body: `{"strategy": "minimax", "history": [{"guess": "1234", "feedback": {"black": 0, "white": 0}}]}`, want: http.StatusBadRequest},
		{name: "impossible feedback", body: `{"strategy": "minimax", "history": [{"guess": "1122", "feedback": {"black": 3, "white": 1}}]}`, want: http.StatusBadRequest},
		{
			name: "inconsistent",
			body: `{"strategy": "minimax", "history": [
				{"guess": "1122", "feedback": {"black": 0, "white": 0}},
				{"guess": "3345", "feedback": {"black": 0, "white": 0}},
				{"guess": "6666", "feedback": {"black": 0, "white": 0}}]}`,
			want: http.StatusUnprocessableEntity,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var resp NextGuessResponse
			if code := post(t, nextGuessHandler, tc.body, &resp); code != tc.want || resp.Success {
				t.Errorf("next guess = %d %+v, want %d", code, resp, tc.want)
			}
		})
	}
}

func TestSolveTimeout(t *testing.T) {
	if got := solveTimeout(t.Context()); got != defaultSolveTimeout {
		t.Errorf("without a deadline: %v, want %v", got, defaultSolveTimeout)
	}

	for _, tc := range []struct {
		name     string
		deadline time.Duration
		min, max time.Duration
	}{
		{"long", time.Minute, 54 * time.Second, 55 * time.Second},
		{"short", 3 * time.Second, time.Second, 1500 * time.Millisecond},
		{"just above the margin", 6 * time.Second, 2 * time.Second, 3 * time.Second},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(t.Context(), tc.deadline)
			defer cancel()
			got := solveTimeout(ctx)
			if got <= tc.min || got > tc.max {
				t.Errorf("solveTimeout() = %v, want in (%v, %v]", got, tc.min, tc.max)
			}
		})
	}
}

func TestSolve_ShortDeadline(t *testing.T) {
	setup(t)

	ctx, cancel := context.WithTimeout(t.Context(), 4*time.Second)
	defer cancel()
	tr, err := solve(ctx, SolveRequest{GameRequest: GameRequest{Strategy: "minimax"}, Secret: "1234"})
	if err != nil {
		t.Fatalf("solve() with a 4s deadline = %v", err)
	}
	if !tr.Solved() {
		t.Errorf("outcome = %v", tr.Outcome)
	}
}
