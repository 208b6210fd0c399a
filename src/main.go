package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crosswarped.com/mastermind"
	"crosswarped.com/mastermind/pkg/primitives"
)

// GameRequest describes the game; zero fields keep the function's configuration.
type GameRequest struct {
	Alphabet   int     `json:"alphabet"`
	Columns    int     `json:"columns"`
	Repetition *bool   `json:"repetition"`
	Symbols    string  `json:"symbols"`
	Strategy   string  `json:"strategy"`
	Limit      int     `json:"limit"`
	Seed       *uint64 `json:"seed"`
}

type SolveRequest struct {
	GameRequest
	Secret string `json:"secret"`
}

type SolveResponse struct {
	Success    bool                   `json:"success"`
	Transcript *mastermind.Transcript `json:"transcript,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

type PlayedRound struct {
	Guess    string              `json:"guess"`
	Feedback primitives.Feedback `json:"feedback"`
}

type NextGuessRequest struct {
	GameRequest
	History []PlayedRound `json:"history"`
}

type NextGuessResponse struct {
	Success   bool   `json:"success"`
	Guess     string `json:"guess,omitempty"`
	Round     int    `json:"round"`
	Remaining int    `json:"remaining"`
	State     string `json:"state"`
	Error     string `json:"error,omitempty"`
}

var (
	baseConfig mastermind.Config
	logger     = slog.New(slog.NewJSONHandler(os.Stdout, nil))

	enginesMu sync.Mutex
	engines   = map[string]*mastermind.Engine{}
)

func (r GameRequest) config() (mastermind.Config, error) {
	cfg := baseConfig
	if r.Alphabet > 0 {
		cfg.Alphabet = r.Alphabet
	}
	if r.Columns > 0 {
		cfg.Columns = r.Columns
	}
	if r.Repetition != nil {
		cfg.Repetition = *r.Repetition
	}
	if r.Symbols != "" {
		cfg.Symbols = r.Symbols
	}
	if r.Strategy != "" {
		cfg.Strategy = r.Strategy
	}
	if r.Limit > 0 {
		cfg.Limit = r.Limit
	}
	if r.Seed != nil {
		cfg.Seed = r.Seed
	}
	return cfg, cfg.Validate()
}

// engineFor shares one engine, and so one response cache, per code space.
func engineFor(ctx context.Context, cfg mastermind.Config) (*mastermind.Engine, error) {
	space, err := cfg.Space()
	if err != nil {
		return nil, err
	}

	enginesMu.Lock()
	defer enginesMu.Unlock()
	if e, ok := engines[space.Signature()]; ok {
		return e, nil
	}
	e, err := mastermind.OpenEngine(ctx, cfg, space, logger)
	if err != nil {
		return nil, err
	}
	engines[space.Signature()] = e
	return e, nil
}

func solve(ctx context.Context, req SolveRequest) (mastermind.Transcript, error) {
	cfg, err := req.config()
	if err != nil {
		return mastermind.Transcript{}, err
	}
	if req.Secret == "" {
		return mastermind.Transcript{}, fmt.Errorf("%w: secret is required", mastermind.ErrInvalidCode)
	}

	engine, err := engineFor(ctx, cfg)
	if err != nil {
		return mastermind.Transcript{}, err
	}
	secret, err := engine.Space.ParseCode(req.Secret)
	if err != nil {
		return mastermind.Transcript{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, solveTimeout(ctx))
	defer cancel()

	t, err := mastermind.Solve(ctx, cfg, secret, mastermind.WithEngine(engine), mastermind.WithLogger(logger))
	engine.Oracle.Flush()
	return t, err
}

const (
	defaultSolveTimeout = 1 * time.Minute

	// responseMargin is kept back from the request deadline to write the response.
	responseMargin = 5 * time.Second
)

// solveTimeout leaves responseMargin before the request deadline, or half of what is left when
// the deadline is too close for that.
func solveTimeout(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return defaultSolveTimeout
	}
	left := time.Until(deadline)
	return max(left-responseMargin, left/2)
}

// nextGuess replays the rounds played so far and returns the guess for the next one. The replay
// only matches the client's history for deterministic strategies, or random with a seed.
func nextGuess(ctx context.Context, req NextGuessRequest) (NextGuessResponse, error) {
	cfg, err := req.config()
	if err != nil {
		return NextGuessResponse{}, err
	}
	engine, err := engineFor(ctx, cfg)
	if err != nil {
		return NextGuessResponse{}, err
	}

	s, err := mastermind.NewSession(ctx, cfg, mastermind.WithEngine(engine), mastermind.WithLogger(logger))
	if err != nil {
		return NextGuessResponse{}, err
	}
	defer engine.Oracle.Flush()

	for i, played := range req.History {
		guess, err := s.NextGuess(ctx)
		if err != nil {
			return NextGuessResponse{}, err
		}
		if string(guess) != played.Guess {
			return NextGuessResponse{}, fmt.Errorf("%w: round %d was %s, this configuration plays %s", mastermind.ErrInvalidCode, i+1, played.Guess, guess)
		}
		if err := s.ApplyFeedback(guess, played.Feedback); err != nil {
			return NextGuessResponse{}, err
		}
		if s.State().Terminal() {
			break
		}
	}

	resp := NextGuessResponse{Success: true, Round: s.Round(), Remaining: s.Remaining(), State: s.State().String()}
	if !s.State().Terminal() {
		guess, err := s.NextGuess(ctx)
		if err != nil {
			return NextGuessResponse{}, err
		}
		resp.Guess = string(guess)
	}
	return resp, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, mastermind.ErrConfig),
		errors.Is(err, mastermind.ErrInvalidCode),
		errors.Is(err, mastermind.ErrInvalidFeedback):
		return http.StatusBadRequest
	case errors.Is(err, mastermind.ErrInconsistentFeedback):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Content-Type", "application/json")
}

// preflight answers everything but a POST and reports whether the handler should go on.
func preflight(w http.ResponseWriter, r *http.Request) bool {
	setCORSHeaders(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return false
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		fmt.Fprintf(w, `{"success": false, "error": "Method %s not allowed"}`, r.Method)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.Error("marshaling response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"success": false, "error": "Internal server error"}`)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func solveHandler(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}

	var req SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("parsing JSON body", "error", err)
		writeJSON(w, http.StatusBadRequest, SolveResponse{Error: fmt.Sprintf("Invalid JSON: %v", err)})
		return
	}

	t, err := solve(r.Context(), req)
	if err != nil {
		logger.Warn("solve failed", "error", err)
		writeJSON(w, statusFor(err), SolveResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, SolveResponse{Success: true, Transcript: &t})
}

func nextGuessHandler(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}

	var req NextGuessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("parsing JSON body", "error", err)
		writeJSON(w, http.StatusBadRequest, NextGuessResponse{Error: fmt.Sprintf("Invalid JSON: %v", err)})
		return
	}

	resp, err := nextGuess(r.Context(), req)
	if err != nil {
		logger.Warn("next guess failed", "error", err)
		writeJSON(w, statusFor(err), NextGuessResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func main() {
	var err error
	if baseConfig, err = mastermind.LoadConfig(os.Getenv("MAMI_CONFIG")); err != nil {
		logger.Error("loading configuration", "error", err)
		os.Exit(1)
	}

	funcframework.RegisterHTTPFunction("/solve", solveHandler)
	funcframework.RegisterHTTPFunction("/next-guess", nextGuessHandler)
	funcframework.RegisterHTTPFunction("/metrics", promhttp.Handler().ServeHTTP)

	port := "8080"
	if envPort := os.Getenv("PORT"); envPort != "" {
		port = envPort
	}
	hostname := ""
	if localOnly := os.Getenv("LOCAL_ONLY"); localOnly == "true" {
		hostname = "127.0.0.1"
	}
	if err := funcframework.StartHostPort(hostname, port); err != nil {
		logger.Error("funcframework.StartHostPort", "error", err)
		os.Exit(1)
	}
}
