// Package registergen builds synthetic population registers for trying out the sampler.
package registergen

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Default generator settings.
const (
	DefaultSubjects        = 10000
	DefaultFromYear        = 1995
	DefaultToYear          = 2015
	DefaultCaseFraction    = 0.05
	DefaultMotherMissing   = 0.02
	DefaultFatherMissing   = 0.08
	DefaultMaxTreatmentAge = 18
)

// Parents are born this many years before the child.
const (
	minParentAge = 18
	maxParentAge = 45
)

// Config describes the register to generate.
type Config struct {
	Subjects        int     `validate:"gt=0"`
	FromYear        int     `validate:"gte=1900"`
	ToYear          int     `validate:"gtefield=FromYear,lte=2100"`
	CaseFraction    float64 `validate:"gte=0,lte=1"`
	MotherMissing   float64 `validate:"gte=0,lte=1"`
	FatherMissing   float64 `validate:"gte=0,lte=1"`
	MaxTreatmentAge int     `validate:"gt=0"` // years after birth
	Seed            uint64
	Workers         int `validate:"gte=0"`
}

// DefaultConfig returns a ready to use Config.
func DefaultConfig() Config {
	return Config{
		Subjects:        DefaultSubjects,
		FromYear:        DefaultFromYear,
		ToYear:          DefaultToYear,
		CaseFraction:    DefaultCaseFraction,
		MotherMissing:   DefaultMotherMissing,
		FatherMissing:   DefaultFatherMissing,
		MaxTreatmentAge: DefaultMaxTreatmentAge,
		Seed:            1,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks ranges and rates.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
