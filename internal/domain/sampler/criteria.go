package sampler

import (
	"fmt"

	"github.com/okian/riskset/internal/domain/dates"
)

// MatchingCriteria bounds how far a control may be from its case, in days.
type MatchingCriteria struct {
	BirthDateWindow  int64
	ParentDateWindow int64
}

// NewMatchingCriteria validates and returns the criteria.
func NewMatchingCriteria(birthDateWindow, parentDateWindow int64) (MatchingCriteria, error) {
	c := MatchingCriteria{BirthDateWindow: birthDateWindow, ParentDateWindow: parentDateWindow}
	if err := c.Validate(); err != nil {
		return MatchingCriteria{}, err
	}
	return c, nil
}

// Validate requires both windows to be positive.
func (c MatchingCriteria) Validate() error {
	if c.BirthDateWindow <= 0 {
		return fmt.Errorf("%w: birth date window must be positive, got %d", ErrInvalidCriteria, c.BirthDateWindow)
	}
	if c.ParentDateWindow <= 0 {
		return fmt.Errorf("%w: parent date window must be positive, got %d", ErrInvalidCriteria, c.ParentDateWindow)
	}
	return nil
}

// ParentMatches applies the parent rule to one parent: both absent match,
// both present match within the window, one absent never matches.
func (c MatchingCriteria) ParentMatches(caseParent, controlParent dates.NullDay) bool {
	switch {
	case !caseParent.Valid && !controlParent.Valid:
		return true
	case caseParent.Valid && controlParent.Valid:
		return dates.Abs(caseParent.Day-controlParent.Day) <= c.ParentDateWindow
	default:
		return false
	}
}

// Eligible reports whether control satisfies the birth window and both parent rules for cs.
func (c MatchingCriteria) Eligible(cs, control dates.DateData) bool {
	return dates.Abs(cs.Birth-control.Birth) <= c.BirthDateWindow &&
		c.ParentMatches(cs.Mother, control.Mother) &&
		c.ParentMatches(cs.Father, control.Father)
}
