// Package validation provides composable validators and sanitisers. Request
// services are constructed with the ones they need and collect every problem
// into a single domain.Problems list.
package validation

import (
	"fmt"

	"tissuecore/pkg/domain"
)

// Validator checks an item. When it returns false it has appended at least one
// problem describing why.
type Validator[T any] interface {
	Validate(item T, problems *domain.Problems) bool
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc[T any] func(item T, problems *domain.Problems) bool

// Validate implements Validator.
func (f ValidatorFunc[T]) Validate(item T, problems *domain.Problems) bool {
	return f(item, problems)
}

// Sanitiser canonicalises a raw value. The boolean is false when the value
// cannot be sanitised, in which case the returned value is meaningless.
type Sanitiser[T any] interface {
	// Label names the field in problem messages.
	Label() string
	Sanitise(value T) (T, bool)
}

// SanitiseInto runs s and, on failure, appends "Invalid <label>: <value>".
func SanitiseInto[T any](s Sanitiser[T], value T, problems *domain.Problems) (T, bool) {
	out, ok := s.Sanitise(value)
	if !ok {
		problems.Add(fmt.Sprintf("Invalid %s: %v", s.Label(), value))
		var zero T
		return zero, false
	}
	return out, true
}

// All reports whether every validator accepts item. Every validator runs, so
// the problem list is complete.
func All[T any](item T, problems *domain.Problems, validators ...Validator[T]) bool {
	ok := true
	for _, v := range validators {
		if !v.Validate(item, problems) {
			ok = false
		}
	}
	return ok
}
