package service_test

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	service "github.com/okian/riskset/internal/app"
	"github.com/okian/riskset/internal/config"
	"github.com/okian/riskset/internal/domain/dates"
	"github.com/okian/riskset/internal/domain/model"
	"github.com/okian/riskset/internal/domain/sampler"
	"github.com/okian/riskset/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

func person(pnr string, birth int64, treatment int64) model.Record {
	r := model.Record{PNR: pnr, BirthDate: dates.DateOf(birth)}
	if treatment > 0 {
		r.TreatmentDate = model.Some(dates.DateOf(treatment))
	}
	return r
}

func population() []model.Record {
	return []model.Record{
		person("case-1", 10000, 15000),
		person("case-2", 12000, 16000),
		person("ctl-1", 10001, 0),
		person("ctl-2", 10003, 0),
		person("ctl-3", 9998, 0),
		person("ctl-4", 11995, 0),
		person("ctl-5", 20000, 0),
	}
}

func readCSV(path string) [][]string {
	f, err := os.Open(path)
	So(err, ShouldBeNil)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	So(err, ShouldBeNil)
	return rows
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
		})
	})

	Convey("Given options derived from the default config", t, func() {
		opts := service.OptionsFromConfig(config.New())

		Convey("Then every setting is carried over", func() {
			So(opts, ShouldHaveLength, 9)
			So(service.New(opts...), ShouldNotBeNil)
		})
	})
}

func TestService_Run(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service writing every file output", t, func() {
		dir := filepath.Join(t.TempDir(), "out")
		svc := service.New(
			service.WithCriteria(5, 365),
			service.WithControlsPerCase(2),
			service.WithSeed(3),
			service.WithWorkers(2),
			service.WithBatchSize(1),
			service.WithOutputDir(dir),
			service.WithParquet(true),
			service.WithExcelReport(true),
			service.WithLogger(logger.Get()),
		)

		res, err := svc.Run(ctx, population())
		So(err, ShouldBeNil)

		Convey("Then both cases are matched", func() {
			So(res.RunID, ShouldNotBeEmpty)
			So(res.Seed, ShouldEqual, 3)
			So(res.Report.TotalCases, ShouldEqual, 2)
			So(res.Report.MatchedCases, ShouldEqual, 2)
			So(res.Report.TotalControls, ShouldEqual, 3)
		})

		Convey("Then all four files are written", func() {
			So(res.Files, ShouldResemble, []string{
				filepath.Join(dir, service.PairsFile),
				filepath.Join(dir, service.CaseStatsFile),
				filepath.Join(dir, service.ParquetFile),
				filepath.Join(dir, service.WorkbookFile),
			})
			for _, f := range res.Files {
				_, err := os.Stat(f)
				So(err, ShouldBeNil)
			}
		})

		Convey("Then the pairs file has one line per control", func() {
			rows := readCSV(filepath.Join(dir, service.PairsFile))
			So(rows, ShouldHaveLength, 4)
			So(rows[0][0], ShouldEqual, "case_id")
		})

		Convey("Then the statistics file has one line per matched case", func() {
			rows := readCSV(filepath.Join(dir, service.CaseStatsFile))
			So(rows, ShouldHaveLength, 3)
		})
	})

	Convey("Given a service without outputs", t, func() {
		svc := service.New(service.WithCriteria(5, 365), service.WithOutputDir(""))

		res, err := svc.Run(ctx, population())
		So(err, ShouldBeNil)
		So(res.Files, ShouldBeEmpty)
		So(res.Pairs, ShouldHaveLength, 2)
	})

	Convey("Given invalid matching windows", t, func() {
		svc := service.New(service.WithCriteria(0, 365), service.WithOutputDir(""))

		_, err := svc.Run(ctx, population())
		So(errors.Is(err, sampler.ErrInvalidCriteria), ShouldBeTrue)
	})

	Convey("Given a population nobody can be matched in", t, func() {
		svc := service.New(service.WithCriteria(1, 365), service.WithOutputDir(""))
		records := []model.Record{person("case", 100, 900), person("ctl", 500, 0)}

		_, err := svc.Run(ctx, records)
		So(errors.Is(err, sampler.ErrNoEligibleControls), ShouldBeTrue)
	})
}
