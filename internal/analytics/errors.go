package analytics

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// --- Sentinel errors ---

// ErrEmptyPrompt is returned when a submission is attempted with blank text.
var ErrEmptyPrompt = errors.New("prompt text is empty")

// ErrMissingPromptID is returned when a lookup is attempted with an absent
// prompt identifier, or, in strict mode, when a submission response carries
// no prompt_id.
var ErrMissingPromptID = errors.New("prompt_id is missing")

// ErrInvalidBaseURL is returned by New when the base endpoint is unusable.
var ErrInvalidBaseURL = errors.New("invalid base URL")

// maxErrorBody caps how much of a failed response body is kept.
const maxErrorBody = 1024

// StatusError reports a non-2xx response from the analytics service.
type StatusError struct {
	Op         string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d %s: %s", e.Op, e.StatusCode, e.Status, e.Body)
}

// DecodeError reports a response body that is not the expected JSON.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsStatus reports whether err is a *StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// truncateBody keeps at most maxErrorBody bytes, cutting on a rune boundary.
func truncateBody(b []byte) string {
	if len(b) <= maxErrorBody {
		return string(b)
	}
	n := maxErrorBody
	for n > 0 && !utf8.RuneStart(b[n]) {
		n--
	}
	return string(b[:n])
}
