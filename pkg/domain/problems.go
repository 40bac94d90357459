package domain

import (
	"fmt"
	"strings"
)

// Problems is an ordered, duplicate-tolerant collection of human-readable
// validation problems. Request services collect every problem before deciding
// whether to reject.
type Problems []string

// Add appends a problem.
func (p *Problems) Add(problem string) {
	*p = append(*p, problem)
}

// Addf appends a formatted problem.
func (p *Problems) Addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

// Empty reports whether no problems were collected.
func (p Problems) Empty() bool {
	return len(p) == 0
}

// Err returns a ValidationError carrying a copy of every problem, or nil when
// the collection is empty.
func (p Problems) Err(message string) error {
	if len(p) == 0 {
		return nil
	}
	if message == "" {
		message = DefaultValidationMessage
	}
	return ValidationError{Message: message, Problems: append([]string(nil), p...)}
}

// DefaultValidationMessage is used when a service does not supply its own.
const DefaultValidationMessage = "The request could not be validated."

// ValidationError is the single error type surfaced when a request fails
// validation. It carries the full ordered problem list.
type ValidationError struct {
	Message  string
	Problems []string
}

func (e ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return e.Message
	}
	return e.Message + " " + strings.Join(e.Problems, " ")
}

// Pluralise picks the singular or plural form of a noun for problem messages.
func Pluralise(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

// QuoteList renders values as a comma-separated, quoted list.
func QuoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
