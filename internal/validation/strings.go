package validation

import (
	"fmt"
	"strings"
	"unicode"

	"tissuecore/pkg/domain"
)

// CharClass is a set of allowed characters.
type CharClass uint8

// Character classes combinable with |.
const (
	Upper CharClass = 1 << iota
	Lower
	Digit
	Hyphen
	Underscore
	Space
	Punctuation
)

func (c CharClass) allows(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z':
		return c&Upper != 0
	case r >= 'a' && r <= 'z':
		return c&Lower != 0
	case r >= '0' && r <= '9':
		return c&Digit != 0
	case r == '-':
		return c&Hyphen != 0
	case r == '_':
		return c&Underscore != 0
	case r == ' ':
		return c&Space != 0
	case unicode.IsPunct(r):
		return c&Punctuation != 0
	}
	return false
}

// StringValidator checks length bounds and the characters used by a string
// field. A zero MaxLength means unbounded.
type StringValidator struct {
	Field     string
	MinLength int
	MaxLength int
	Allowed   CharClass
}

// Validate implements Validator. At most one problem is added per value.
func (v StringValidator) Validate(value string, problems *domain.Problems) bool {
	n := len([]rune(value))
	switch {
	case n < v.MinLength:
		problems.Add(fmt.Sprintf("%s %q is shorter than the minimum length %d.", capitalise(v.Field), value, v.MinLength))
		return false
	case v.MaxLength > 0 && n > v.MaxLength:
		problems.Add(fmt.Sprintf("%s %q is longer than the maximum length %d.", capitalise(v.Field), value, v.MaxLength))
		return false
	}
	var bad []string
	seen := map[rune]bool{}
	for _, r := range value {
		if !v.Allowed.allows(r) && !seen[r] {
			seen[r] = true
			bad = append(bad, string(r))
		}
	}
	if len(bad) > 0 {
		problems.Add(fmt.Sprintf("%s %q contains invalid %s: %s", capitalise(v.Field), value,
			domain.Pluralise(len(bad), "character", "characters"), domain.QuoteList(bad)))
		return false
	}
	return true
}

func capitalise(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Common validators.
var (
	// LabwareBarcode accepts upper-case alphanumeric barcodes with hyphens.
	LabwareBarcode = StringValidator{Field: "barcode", MinLength: 3, MaxLength: 32, Allowed: Upper | Digit | Hyphen}
	// ReagentPlateBarcode accepts exactly 24 digits.
	ReagentPlateBarcode = StringValidator{Field: "reagent plate barcode", MinLength: 24, MaxLength: 24, Allowed: Digit}
	// ReferenceName accepts reference-data names such as destinations and reasons.
	ReferenceName = StringValidator{Field: "name", MinLength: 1, MaxLength: 64, Allowed: Upper | Lower | Digit | Hyphen | Underscore | Space | Punctuation}
	// FileName accepts uploaded file names.
	FileName = StringValidator{Field: "file name", MinLength: 1, MaxLength: 128, Allowed: Upper | Lower | Digit | Hyphen | Underscore | Space | Punctuation}
)
