// Package dates converts register dates to epoch days and indexes subjects by birth day.
package dates

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/okian/riskset/internal/domain/model"
)

// Epoch is day zero for all day offsets.
var Epoch = civil.Date{Year: 1970, Month: time.January, Day: 1} //nolint:gochecknoglobals // fixed reference date

// DayOf returns the offset of d from Epoch in days.
func DayOf(d civil.Date) int64 {
	return int64(d.DaysSince(Epoch))
}

// DateOf is the inverse of DayOf.
func DateOf(day int64) civil.Date {
	return Epoch.AddDays(int(day))
}

// NullDay is an epoch day that may be absent.
type NullDay struct {
	Day   int64
	Valid bool
}

// NullDayOf converts an optional date.
func NullDayOf(d model.NullDate) NullDay {
	if !d.Valid {
		return NullDay{}
	}
	return NullDay{Day: DayOf(d.Date), Valid: true}
}

// AbsDiff returns |a-b| and whether both sides are present.
func AbsDiff(a, b NullDay) (int64, bool) {
	if !a.Valid || !b.Valid {
		return 0, false
	}
	return Abs(a.Day - b.Day), true
}

// Abs returns the absolute value of a day difference.
func Abs(d int64) int64 {
	if d < 0 {
		return -d
	}
	return d
}

// Parse reads a YYYY-MM-DD date. The missing marker and the empty string
// yield an absent date; anything else that does not parse is ErrInvalidDate.
func Parse(s string) (model.NullDate, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == model.MissingMarker {
		return model.NullDate{}, nil
	}
	d, err := civil.ParseDate(s)
	if err != nil || !d.IsValid() {
		return model.NullDate{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return model.Some(d), nil
}

// ParseRequired is Parse for columns that must hold a date.
func ParseRequired(s string) (civil.Date, error) {
	nd, err := Parse(s)
	if err != nil {
		return civil.Date{}, err
	}
	if !nd.Valid {
		return civil.Date{}, fmt.Errorf("%w: required date is missing", ErrInvalidDate)
	}
	return nd.Date, nil
}
