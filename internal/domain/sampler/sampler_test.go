package sampler_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/okian/riskset/internal/domain/dates"
	"github.com/okian/riskset/internal/domain/model"
	"github.com/okian/riskset/internal/domain/sampler"
	. "github.com/smartystreets/goconvey/convey"
)

func subject(pnr string, birth int64) model.Record {
	return model.Record{PNR: pnr, BirthDate: dates.DateOf(birth)}
}

func treated(r model.Record, day int64) model.Record {
	r.TreatmentDate = model.Some(dates.DateOf(day))
	return r
}

func withMother(r model.Record, day int64) model.Record {
	r.MotherBirthDate = model.Some(dates.DateOf(day))
	return r
}

func withFather(r model.Record, day int64) model.Record {
	r.FatherBirthDate = model.Some(dates.DateOf(day))
	return r
}

func sorted(g model.ControlGroup) []int {
	out := slices.Clone([]int(g))
	slices.Sort(out)
	return out
}

func byCase(pairs []model.CaseControlPair) map[int]model.ControlGroup {
	m := make(map[int]model.ControlGroup, len(pairs))
	for _, p := range pairs {
		m[p.Case] = p.Controls
	}
	return m
}

func mustCriteria(birth, parent int64) sampler.MatchingCriteria {
	c, err := sampler.NewMatchingCriteria(birth, parent)
	So(err, ShouldBeNil)
	return c
}

func TestMatchingCriteria(t *testing.T) {
	Convey("Given matching windows", t, func() {
		Convey("When both are positive", func() {
			c, err := sampler.NewMatchingCriteria(30, 365)
			So(err, ShouldBeNil)
			So(c.BirthDateWindow, ShouldEqual, 30)
			So(c.ParentDateWindow, ShouldEqual, 365)
		})

		Convey("When the birth window is zero", func() {
			_, err := sampler.NewMatchingCriteria(0, 365)
			So(errors.Is(err, sampler.ErrInvalidCriteria), ShouldBeTrue)
		})

		Convey("When the parent window is negative", func() {
			_, err := sampler.NewMatchingCriteria(30, -1)
			So(errors.Is(err, sampler.ErrInvalidCriteria), ShouldBeTrue)
		})
	})

	Convey("Given the parent rule with a 10 day window", t, func() {
		c := sampler.MatchingCriteria{BirthDateWindow: 5, ParentDateWindow: 10}
		absent := dates.NullDay{}
		at := func(d int64) dates.NullDay { return dates.NullDay{Day: d, Valid: true} }

		So(c.ParentMatches(absent, absent), ShouldBeTrue)
		So(c.ParentMatches(at(100), at(110)), ShouldBeTrue)
		So(c.ParentMatches(at(110), at(100)), ShouldBeTrue)
		So(c.ParentMatches(at(100), at(111)), ShouldBeFalse)
		So(c.ParentMatches(at(100), absent), ShouldBeFalse)
		So(c.ParentMatches(absent, at(100)), ShouldBeFalse)
	})

	Convey("Given full date data", t, func() {
		c := sampler.MatchingCriteria{BirthDateWindow: 5, ParentDateWindow: 10}
		cs := dates.DateData{Birth: 100}

		So(c.Eligible(cs, dates.DateData{Birth: 105}), ShouldBeTrue)
		So(c.Eligible(cs, dates.DateData{Birth: 95}), ShouldBeTrue)
		So(c.Eligible(cs, dates.DateData{Birth: 106}), ShouldBeFalse)
		So(c.Eligible(cs, dates.DateData{Birth: 100, Father: dates.NullDay{Day: 1, Valid: true}}), ShouldBeFalse)
	})
}

func TestNew(t *testing.T) {
	Convey("Given a small population", t, func() {
		records := []model.Record{
			treated(subject("A", 100), 5000),
			subject("B", 101),
			subject("C", 102),
		}

		Convey("When criteria are invalid", func() {
			s, err := sampler.New(records, sampler.MatchingCriteria{BirthDateWindow: 0, ParentDateWindow: 365})
			So(s, ShouldBeNil)
			So(errors.Is(err, sampler.ErrInvalidCriteria), ShouldBeTrue)
		})

		Convey("When criteria are valid", func() {
			s, err := sampler.New(records, mustCriteria(5, 365), sampler.WithSeed(7))
			So(err, ShouldBeNil)
			So(s.Cases(), ShouldResemble, []int{0})
			So(s.Controls(), ShouldResemble, []int{1, 2})
			So(s.Records(), ShouldHaveLength, 3)
			So(s.DateData(), ShouldHaveLength, 3)
			So(s.DateData()[1].Birth, ShouldEqual, 101)
			So(s.Criteria().BirthDateWindow, ShouldEqual, 5)
			So(s.Seed(), ShouldEqual, 7)
		})
	})
}

func TestSampleControls(t *testing.T) {
	ctx := context.Background()

	Convey("Given two cases and a mix of near and far controls", t, func() {
		records := []model.Record{
			treated(subject("case-a", 100), 4000), // 0
			treated(subject("case-b", 200), 4000), // 1
			subject("a1", 96),                      // 2
			subject("a2", 99),                      // 3
			subject("a3", 100),                     // 4
			subject("a4", 103),                     // 5
			subject("a5", 105),                     // 6
			subject("b1", 195),                     // 7
			subject("b2", 201),                     // 8
			subject("b3", 204),                     // 9
			subject("far1", 150),                   // 10
			subject("far2", 300),                   // 11
		}
		s, err := sampler.New(records, mustCriteria(5, 365), sampler.WithSeed(42))
		So(err, ShouldBeNil)

		Convey("When four controls are requested per case", func() {
			pairs, err := s.SampleControls(ctx, 4)
			So(err, ShouldBeNil)
			So(pairs, ShouldHaveLength, 2)
			m := byCase(pairs)

			Convey("Then the case with five candidates gets four distinct in-window controls", func() {
				g := sorted(m[0])
				So(g, ShouldHaveLength, 4)
				So(slices.Compact(slices.Clone(g)), ShouldHaveLength, 4)
				for _, c := range g {
					So([]int{2, 3, 4, 5, 6}, ShouldContain, c)
				}
			})

			Convey("Then the case with three candidates gets all of them", func() {
				So(sorted(m[1]), ShouldResemble, []int{7, 8, 9})
			})

			Convey("Then far controls and cases are never selected", func() {
				for _, p := range pairs {
					for _, c := range p.Controls {
						So(c, ShouldNotEqual, 10)
						So(c, ShouldNotEqual, 11)
						So(c, ShouldNotEqual, 0)
						So(c, ShouldNotEqual, 1)
					}
				}
			})
		})

		Convey("When one control is requested", func() {
			pairs, err := s.SampleControls(ctx, 1)
			So(err, ShouldBeNil)
			for _, p := range pairs {
				So(p.Controls, ShouldHaveLength, 1)
			}
		})

		Convey("When the control count is not positive", func() {
			_, err := s.SampleControls(ctx, 0)
			So(errors.Is(err, sampler.ErrInvalidControlCount), ShouldBeTrue)
		})

		Convey("When quality is evaluated on the result", func() {
			pairs, err := s.SampleControls(ctx, 4)
			So(err, ShouldBeNil)
			r := s.EvaluateMatchingQuality(pairs)
			So(r.TotalCases, ShouldEqual, 2)
			So(r.MatchedCases, ShouldEqual, 2)
			So(r.TotalControls, ShouldEqual, 7)
			So(r.MatchingRate, ShouldAlmostEqual, 1.0)
			So(r.Birth.N, ShouldEqual, 7)
			So(r.Birth.P75, ShouldBeLessThanOrEqualTo, 5)
			So(r.Mother.N, ShouldEqual, 0)
		})
	})

	Convey("Given a case sharing its birth day with another case", t, func() {
		records := []model.Record{
			treated(subject("case-a", 100), 4000),
			treated(subject("case-b", 100), 4100),
			subject("ctrl", 100),
		}
		s, err := sampler.New(records, mustCriteria(5, 365))
		So(err, ShouldBeNil)

		pairs, err := s.SampleControls(ctx, 4)
		So(err, ShouldBeNil)

		Convey("Then neither case is used as a control", func() {
			So(pairs, ShouldHaveLength, 2)
			for _, p := range pairs {
				So(p.Controls, ShouldResemble, model.ControlGroup{2})
			}
		})
	})

	Convey("Given cases with parent birth dates", t, func() {
		records := []model.Record{
			withFather(withMother(treated(subject("case", 100), 4000), -9000), -9500), // 0
			withFather(withMother(subject("both-near", 101), -8700), -9600),           // 1
			withMother(subject("no-father", 101), -9000),                               // 2
			withFather(withMother(subject("mother-far", 101), -8000), -9500),          // 3
			subject("no-parents", 101),                                                 // 4
			withFather(withMother(subject("edge", 99), -9365), -9135),                 // 5
		}
		s, err := sampler.New(records, mustCriteria(5, 365), sampler.WithSeed(1))
		So(err, ShouldBeNil)

		Convey("Then only controls matching both parents within the window are eligible", func() {
			pairs, err := s.SampleControls(ctx, 10)
			So(err, ShouldBeNil)
			So(pairs, ShouldHaveLength, 1)
			So(sorted(pairs[0].Controls), ShouldResemble, []int{1, 5})
		})
	})

	Convey("Given a case without parents", t, func() {
		records := []model.Record{
			treated(subject("case", 100), 4000),
			withMother(subject("has-mother", 100), -9000),
			subject("orphan", 102),
		}
		s, err := sampler.New(records, mustCriteria(5, 365), sampler.WithSeed(1))
		So(err, ShouldBeNil)

		Convey("Then only controls without parents are eligible", func() {
			pairs, err := s.SampleControls(ctx, 4)
			So(err, ShouldBeNil)
			So(pairs, ShouldHaveLength, 1)
			So(pairs[0].Controls, ShouldResemble, model.ControlGroup{2})
		})
	})

	Convey("Given a case nobody can match", t, func() {
		records := []model.Record{
			treated(subject("lonely", 100), 4000),
			treated(subject("matched", 500), 4000),
			subject("ctrl", 502),
		}
		s, err := sampler.New(records, mustCriteria(5, 365))
		So(err, ShouldBeNil)

		Convey("Then it is omitted from the pairs", func() {
			pairs, err := s.SampleControls(ctx, 4)
			So(err, ShouldBeNil)
			So(pairs, ShouldHaveLength, 1)
			So(pairs[0].Case, ShouldEqual, 1)

			r := s.EvaluateMatchingQuality(pairs)
			So(r.MatchingRate, ShouldAlmostEqual, 0.5)
		})
	})

	Convey("Given no case has any eligible control", t, func() {
		records := []model.Record{
			treated(subject("case", 100), 4000),
			subject("far", 1000),
		}
		s, err := sampler.New(records, mustCriteria(5, 365))
		So(err, ShouldBeNil)

		_, err = s.SampleControls(ctx, 4)
		So(errors.Is(err, sampler.ErrNoEligibleControls), ShouldBeTrue)
	})

	Convey("Given a population without cases", t, func() {
		s, err := sampler.New([]model.Record{subject("ctrl", 1)}, mustCriteria(5, 365))
		So(err, ShouldBeNil)

		_, err = s.SampleControls(ctx, 4)
		So(errors.Is(err, sampler.ErrNoEligibleControls), ShouldBeTrue)
	})
}

func TestSampleControlsBatches(t *testing.T) {
	ctx := context.Background()

	Convey("Given many cases split over small batches", t, func() {
		var records []model.Record
		for i := range 50 {
			records = append(records, treated(subject(fmt.Sprintf("case-%d", i), int64(i*20)), 9000))
		}
		for i := range 400 {
			records = append(records, subject(fmt.Sprintf("ctrl-%d", i), int64(i*1000/400)))
		}
		crit := mustCriteria(5, 365)

		run := func(seed uint64, workers int) []model.CaseControlPair {
			s, err := sampler.New(records, crit,
				sampler.WithBatchSize(7),
				sampler.WithWorkers(workers),
				sampler.WithSeed(seed),
			)
			So(err, ShouldBeNil)
			pairs, err := s.SampleControls(ctx, 3)
			So(err, ShouldBeNil)
			return pairs
		}

		Convey("Then every case appears once with controls inside its window", func() {
			pairs := run(99, 4)
			So(pairs, ShouldHaveLength, 50)
			seen := map[int]bool{}
			for _, p := range pairs {
				So(seen[p.Case], ShouldBeFalse)
				seen[p.Case] = true
				So(p.Controls, ShouldHaveLength, 3)
				So(slices.Compact(sorted(p.Controls)), ShouldHaveLength, 3)
				caseDay := dates.DayOf(records[p.Case].BirthDate)
				for _, c := range p.Controls {
					So(records[c].IsCase(), ShouldBeFalse)
					So(dates.Abs(dates.DayOf(records[c].BirthDate)-caseDay), ShouldBeLessThanOrEqualTo, 5)
				}
			}
		})

		Convey("Then the same seed reproduces the same selection", func() {
			So(run(12345, 3), ShouldResemble, run(12345, 3))
			So(run(12345, 1), ShouldResemble, run(12345, 8))
		})
	})

	Convey("Given one case with five candidates drawn one at a time", t, func() {
		records := []model.Record{treated(subject("case", 100), 4000)}
		for i := range 5 {
			records = append(records, subject(fmt.Sprintf("ctrl-%d", i), int64(98+i)))
		}
		crit := mustCriteria(5, 365)

		Convey("Then every candidate is drawn with comparable frequency", func() {
			counts := map[int]int{}
			for seed := range uint64(2000) {
				s, err := sampler.New(records, crit, sampler.WithSeed(seed+1))
				So(err, ShouldBeNil)
				pairs, err := s.SampleControls(ctx, 1)
				So(err, ShouldBeNil)
				counts[pairs[0].Controls[0]]++
			}
			So(counts, ShouldHaveLength, 5)
			for _, n := range counts {
				So(n, ShouldBeGreaterThan, 200)
			}
		})
	})
}
