package primitives

import (
	"fmt"
	"strconv"
	"strings"
)

// Code is an ordered sequence of symbols, one byte per position.
//
// Codes are plain strings so that they can be compared, hashed and used as map keys without any
// conversion. Symbols are always ASCII.
type Code string

// Len returns the number of positions in the code.
func (c Code) Len() int {
	return len(c)
}

func (c Code) String() string {
	return string(c)
}

// Feedback is the oracle's answer to a guess: how many symbols are correct and in place (black)
// and how many are correct but misplaced (white).
type Feedback struct {
	Black int `json:"black"`
	White int `json:"white"`
}

// Solved returns the feedback that ends a game with codes of length n.
func Solved(n int) Feedback {
	return Feedback{Black: n}
}

// IsSolved reports whether every one of the n positions is black.
func (f Feedback) IsSolved(n int) bool {
	return f.Black == n && f.White == 0
}

// Valid reports whether f is a possible answer for codes of length n.
//
// (n-1, 1) is never valid: a single misplaced symbol with every other position correct would
// have to be swapped with a position that is already correct.
func (f Feedback) Valid(n int) bool {
	if f.Black < 0 || f.White < 0 {
		return false
	}
	if f.Black+f.White > n {
		return false
	}
	if n > 0 && f.Black == n-1 && f.White == 1 {
		return false
	}
	return true
}

func (f Feedback) String() string {
	return fmt.Sprintf("%d,%d", f.Black, f.White)
}

// ParseFeedback parses "b,w", "b w" or the two-digit short form "bw".
func ParseFeedback(s string) (Feedback, error) {
	s = strings.TrimSpace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '/'
	})
	if len(fields) == 1 && len(fields[0]) == 2 {
		fields = []string{fields[0][:1], fields[0][1:]}
	}
	if len(fields) != 2 {
		return Feedback{}, fmt.Errorf("feedback %q: want two numbers (black, white)", s)
	}
	black, err := strconv.Atoi(fields[0])
	if err != nil {
		return Feedback{}, fmt.Errorf("feedback %q: black: %w", s, err)
	}
	white, err := strconv.Atoi(fields[1])
	if err != nil {
		return Feedback{}, fmt.Errorf("feedback %q: white: %w", s, err)
	}
	return Feedback{Black: black, White: white}, nil
}

// Scorer scores a guess against a code.
type Scorer interface {
	Score(guess, code Code) Feedback
}

// ScoreFunc adapts a plain function to a Scorer.
type ScoreFunc func(guess, code Code) Feedback

func (f ScoreFunc) Score(guess, code Code) Feedback {
	return f(guess, code)
}

// Pure is the uncached Scorer.
var Pure Scorer = ScoreFunc(Score)

// Score compares guess against code.
//
// black is the number of positions holding the same symbol. white is the sum, over every
// symbol, of the smaller of its two counts, less black. Counting only the positions that are
// not black gives the same value without a second pass over the alphabet. Score is symmetric
// in its arguments. Codes are expected to have the same length; extra positions are ignored.
func Score(guess, code Code) Feedback {
	var gc, cc [128]uint8
	n := min(len(guess), len(code))

	black := 0
	for i := 0; i < n; i++ {
		g, c := guess[i]&0x7f, code[i]&0x7f
		if g == c {
			black++
			continue
		}
		gc[g]++
		cc[c]++
	}

	white := 0
	for i := 0; i < n; i++ {
		s := guess[i] & 0x7f
		if gc[s] == 0 {
			continue
		}
		white += int(min(gc[s], cc[s]))
		gc[s] = 0
	}

	return Feedback{Black: black, White: white}
}
