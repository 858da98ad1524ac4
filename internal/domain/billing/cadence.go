package billing

import (
	"errors"
	"strings"
)

// Cadence is the billing period of a plan.
type Cadence string

const (
	Monthly   Cadence = "MONTHLY"
	Quarterly Cadence = "QUARTERLY"
	Yearly    Cadence = "YEARLY"
)

// Domain errors
var (
	ErrInvalidCadence = errors.New("cadence must be MONTHLY, QUARTERLY or YEARLY")
	ErrInvalidAnchor  = errors.New("billing anchor must be between 1 and 31")
	ErrZeroDate       = errors.New("reference date cannot be zero")
	ErrInvalidCount   = errors.New("schedule count must be positive")
)

// Anchor bounds.
const (
	MinAnchor = 1
	MaxAnchor = 31
)

// ParseCadence converts a user-supplied string to a Cadence.
// PRE: none
// POST: Returns the matching Cadence (case-insensitive) or ErrInvalidCadence
func ParseCadence(s string) (Cadence, error) {
	c := Cadence(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", ErrInvalidCadence
	}
	return c, nil
}

// Valid reports whether c is one of the known cadences.
func (c Cadence) Valid() bool {
	switch c {
	case Monthly, Quarterly, Yearly:
		return true
	}
	return false
}

// Months returns the month offset applied per renewal.
// PRE: c is valid
// POST: Returns 1, 3 or 12; 0 for an unknown cadence
func (c Cadence) Months() int {
	switch c {
	case Monthly:
		return 1
	case Quarterly:
		return 3
	case Yearly:
		return 12
	}
	return 0
}

// ValidateAnchor rejects anchors outside 1..31.
func ValidateAnchor(anchor int) error {
	if anchor < MinAnchor || anchor > MaxAnchor {
		return ErrInvalidAnchor
	}
	return nil
}
