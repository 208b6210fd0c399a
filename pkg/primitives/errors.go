package primitives

import (
	"errors"
	"fmt"
)

// ErrInconsistentFeedback is matched by every error reporting that no candidate agrees with the
// feedback received so far.
var ErrInconsistentFeedback = errors.New("inconsistent feedback")

// InconsistentFeedbackError is returned when filtering a pool leaves nothing.
type InconsistentFeedbackError struct {
	Guess  Code
	Answer Feedback
	Before int
}

func (e *InconsistentFeedbackError) Error() string {
	return fmt.Sprintf("inconsistent feedback: none of %d candidates scores %s against %s", e.Before, e.Answer, e.Guess)
}

func (e *InconsistentFeedbackError) Unwrap() error {
	return ErrInconsistentFeedback
}
