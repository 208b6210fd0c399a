package mastermind

import (
	"fmt"
	"strings"
	"time"

	"crosswarped.com/mastermind/pkg/primitives"
)

// Outcome is how a session ended, if it did.
type Outcome int

const (
	OutcomeUnfinished Outcome = iota
	OutcomeSolved
	OutcomeExhausted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSolved:
		return "solved"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return "unfinished"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "solved":
		*o = OutcomeSolved
	case "exhausted":
		*o = OutcomeExhausted
	case "unfinished", "":
		*o = OutcomeUnfinished
	default:
		return fmt.Errorf("unknown outcome %q", text)
	}
	return nil
}

// Round is one guess and its answer.
type Round struct {
	Number   int                 `json:"round"`
	Guess    primitives.Code     `json:"guess"`
	Feedback primitives.Feedback `json:"feedback"`

	// Remaining is the size of the pool after filtering by this round.
	Remaining int `json:"remaining"`
}

// Transcript is the record of one session.
type Transcript struct {
	SessionID string        `json:"session_id"`
	Strategy  string        `json:"strategy"`
	Rounds    []Round       `json:"rounds"`
	Outcome   Outcome       `json:"outcome"`
	Duration  time.Duration `json:"duration_ns"`

	// Secret is set when the session knew it, including when it ran out of rounds.
	Secret primitives.Code `json:"secret,omitempty"`
}

// Len returns the number of rounds played.
func (t Transcript) Len() int {
	return len(t.Rounds)
}

func (t Transcript) Solved() bool {
	return t.Outcome == OutcomeSolved
}

// Guesses returns the guesses in the order they were played.
func (t Transcript) Guesses() []primitives.Code {
	guesses := make([]primitives.Code, len(t.Rounds))
	for i, r := range t.Rounds {
		guesses[i] = r.Guess
	}
	return guesses
}

func (t Transcript) Repr() string {
	lines := make([]string, 0, len(t.Rounds)+1)
	for _, r := range t.Rounds {
		lines = append(lines, fmt.Sprintf("%2d. %s  %s  (%d left)", r.Number, r.Guess, r.Feedback, r.Remaining))
	}

	switch t.Outcome {
	case OutcomeSolved:
		lines = append(lines, fmt.Sprintf("solved in %d rounds", len(t.Rounds)))
	case OutcomeExhausted:
		lines = append(lines, fmt.Sprintf("not solved in %d rounds, the code was %s", len(t.Rounds), t.Secret))
	}
	return strings.Join(lines, "\n")
}

func (t Transcript) DebugString() string {
	return fmt.Sprintf("Transcript{session: %s, strategy: %s, outcome: %s, duration: %v, rounds: %v}", t.SessionID, t.Strategy, t.Outcome, t.Duration, t.Rounds)
}
