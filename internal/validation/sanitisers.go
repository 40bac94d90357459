package validation

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MaxDecimalLength caps the canonical string form of a decimal value.
const MaxDecimalLength = 16

// DecimalSanitiser canonicalises decimal strings to a fixed number of places.
// Input with more significant places than that is rejected, as is any value
// whose canonical form is longer than MaxDecimalLength.
type DecimalSanitiser struct {
	label  string
	places int32
}

// NewDecimalSanitiser returns a sanitiser for the named field.
func NewDecimalSanitiser(label string, places int32) DecimalSanitiser {
	return DecimalSanitiser{label: label, places: places}
}

// ConcentrationSanitiser canonicalises concentrations to two decimal places.
func ConcentrationSanitiser() DecimalSanitiser {
	return NewDecimalSanitiser("concentration", 2)
}

// Label implements Sanitiser.
func (s DecimalSanitiser) Label() string { return s.label }

// Sanitise implements Sanitiser.
func (s DecimalSanitiser) Sanitise(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return "", false
	}
	if !d.Equal(d.Round(s.places)) {
		return "", false
	}
	out := d.StringFixed(s.places)
	if len(out) > MaxDecimalLength {
		return "", false
	}
	return out, true
}

// UpperSanitiser trims and upper-cases identifiers such as barcodes.
type UpperSanitiser struct {
	label string
}

// NewUpperSanitiser returns a sanitiser for the named field.
func NewUpperSanitiser(label string) UpperSanitiser {
	return UpperSanitiser{label: label}
}

// Label implements Sanitiser.
func (s UpperSanitiser) Label() string { return s.label }

// Sanitise implements Sanitiser.
func (s UpperSanitiser) Sanitise(value string) (string, bool) {
	value = strings.ToUpper(strings.TrimSpace(value))
	return value, value != ""
}
