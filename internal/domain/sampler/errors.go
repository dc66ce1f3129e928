package sampler

import "errors"

// Sentinel error kinds for sampling. These allow errors.Is/As from callers.
var (
	ErrInvalidCriteria     = errors.New("invalid matching criteria")
	ErrInvalidControlCount = errors.New("invalid number of controls per case")
	ErrNoEligibleControls  = errors.New("no eligible controls found for any case")
)
