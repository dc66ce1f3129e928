package dates

import "errors"

// Sentinel error kinds for date handling.
var (
	ErrInvalidDate = errors.New("invalid date")
)
