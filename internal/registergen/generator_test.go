package registergen_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/okian/riskset/internal/domain/dates"
	"github.com/okian/riskset/internal/registergen"
	"github.com/okian/riskset/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

var pnrPattern = regexp.MustCompile(`^\d{6}-\d{4}$`)

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	Convey("Given the default configuration with a small population", t, func() {
		cfg := registergen.DefaultConfig()
		cfg.Subjects = 5000
		cfg.Seed = 11

		records, err := registergen.Generate(ctx, cfg, logger.Discard())
		So(err, ShouldBeNil)
		So(records, ShouldHaveLength, 5000)

		Convey("Then every PNR is well formed and unique", func() {
			seen := make(map[string]bool, len(records))
			for _, r := range records {
				So(pnrPattern.MatchString(r.PNR), ShouldBeTrue)
				So(seen[r.PNR], ShouldBeFalse)
				seen[r.PNR] = true
			}
		})

		Convey("Then dates respect the configured ranges", func() {
			cases := 0
			for _, r := range records {
				So(r.BirthDate.Year, ShouldBeBetweenOrEqual, cfg.FromYear, cfg.ToYear)
				birth := dates.DayOf(r.BirthDate)
				if r.IsCase() {
					cases++
					So(dates.DayOf(r.TreatmentDate.Date), ShouldBeGreaterThan, birth)
				}
				if r.MotherBirthDate.Valid {
					age := birth - dates.DayOf(r.MotherBirthDate.Date)
					So(age, ShouldBeBetweenOrEqual, 18*365, 45*365)
				}
			}
			So(cases, ShouldBeGreaterThan, 0)
			So(cases, ShouldBeLessThan, 1000)
		})

		Convey("Then the same seed gives the same register", func() {
			again, err := registergen.Generate(ctx, cfg, nil)
			So(err, ShouldBeNil)
			So(again, ShouldResemble, records)
		})

		Convey("Then the worker count does not change the register", func() {
			cfg.Workers = 1
			serial, err := registergen.Generate(ctx, cfg, nil)
			So(err, ShouldBeNil)
			So(serial, ShouldResemble, records)
		})
	})

	Convey("Given rates of one", t, func() {
		cfg := registergen.DefaultConfig()
		cfg.Subjects = 200
		cfg.CaseFraction = 1
		cfg.MotherMissing = 1
		cfg.FatherMissing = 1

		records, err := registergen.Generate(ctx, cfg, nil)
		So(err, ShouldBeNil)
		for _, r := range records {
			So(r.IsCase(), ShouldBeTrue)
			So(r.MotherBirthDate.Valid, ShouldBeFalse)
			So(r.FatherBirthDate.Valid, ShouldBeFalse)
		}
	})

	Convey("Given invalid configurations", t, func() {
		cfg := registergen.DefaultConfig()

		Convey("When there are no subjects", func() {
			cfg.Subjects = 0
			_, err := registergen.Generate(ctx, cfg, nil)
			So(errors.Is(err, registergen.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When the year range is inverted", func() {
			cfg.FromYear, cfg.ToYear = 2010, 2000
			_, err := registergen.Generate(ctx, cfg, nil)
			So(errors.Is(err, registergen.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When a rate is above one", func() {
			cfg.CaseFraction = 1.5
			_, err := registergen.Generate(ctx, cfg, nil)
			So(errors.Is(err, registergen.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}
