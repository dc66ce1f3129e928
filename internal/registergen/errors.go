package registergen

import "errors"

// Sentinel errors for register generation.
var (
	ErrInvalidConfig = errors.New("invalid generator config")
	ErrPNRExhausted  = errors.New("more than 9999 subjects share a birth date")
)
