package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Address is a 1-based row/column coordinate within a labware layout. Rows up
// to 26 render as a letter ("B3"); larger layouts render as "row,column".
type Address struct {
	Row    int
	Column int
}

// ParseAddress accepts "A1" style or "row,column" style addresses.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, fmt.Errorf("empty address")
	}
	if row, col, ok := strings.Cut(s, ","); ok {
		r, err := strconv.Atoi(strings.TrimSpace(row))
		if err != nil || r < 1 {
			return Address{}, fmt.Errorf("invalid address %q", s)
		}
		c, err := strconv.Atoi(strings.TrimSpace(col))
		if err != nil || c < 1 {
			return Address{}, fmt.Errorf("invalid address %q", s)
		}
		return Address{Row: r, Column: c}, nil
	}
	ch := s[0]
	if ch >= 'a' && ch <= 'z' {
		ch -= 'a' - 'A'
	}
	if ch < 'A' || ch > 'Z' {
		return Address{}, fmt.Errorf("invalid address %q", s)
	}
	c, err := strconv.Atoi(s[1:])
	if err != nil || c < 1 {
		return Address{}, fmt.Errorf("invalid address %q", s)
	}
	return Address{Row: int(ch-'A') + 1, Column: c}, nil
}

// MustParseAddress is ParseAddress for literals known to be valid.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	if a.Row >= 1 && a.Row <= 26 {
		return fmt.Sprintf("%c%d", 'A'+a.Row-1, a.Column)
	}
	return fmt.Sprintf("%d,%d", a.Row, a.Column)
}

// Less orders addresses row-major.
func (a Address) Less(b Address) bool {
	if a.Row != b.Row {
		return a.Row < b.Row
	}
	return a.Column < b.Column
}

// MarshalText renders the address in its canonical string form.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses either supported address form.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
