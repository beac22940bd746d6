package command

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxRawInError bounds how much model output an error message echoes.
const MaxRawInError = 500

var (
	ErrEmptyDeleteFilter = errors.New("delete requires a non-empty filter")
	ErrInvalidOperands   = errors.New("invalid command operands")
)

// MalformedResponseError means the model output was not a usable JSON
// object.
type MalformedResponseError struct {
	Raw    string
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	reason := e.Reason
	if e.Err != nil {
		reason = e.Err.Error()
	}
	return "model did not return valid JSON: " + reason + rawSuffix(e.Raw)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// MissingFieldError means a required top-level key was absent.
type MissingFieldError struct {
	Raw   string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("model response is missing required field %q", e.Field) + rawSuffix(e.Raw)
}

type UnsupportedActionError struct {
	Action string
}

func (e *UnsupportedActionError) Error() string {
	return fmt.Sprintf("unsupported action: %q", e.Action)
}

func rawSuffix(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	return "; raw response: " + Truncate(raw, MaxRawInError)
}

// Truncate cuts s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
