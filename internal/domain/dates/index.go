package dates

import (
	"slices"

	"github.com/exascience/pargo/parallel"
	"github.com/okian/riskset/internal/domain/model"
)

// DateData holds the epoch days of one subject.
type DateData struct {
	Birth     int64
	Mother    NullDay
	Father    NullDay
	Treatment NullDay
}

// Index is the read-only view the sampler works on. Nothing in it changes
// after Build returns, so it can be shared by any number of goroutines.
type Index struct {
	days     []DateData
	byBirth  map[int64][]int
	cases    []int
	controls []int
}

// Build converts every record and partitions the population.
// Conversion runs in parallel; each record only writes its own slot.
func Build(records []model.Record) *Index {
	idx := &Index{
		days:    make([]DateData, len(records)),
		byBirth: make(map[int64][]int),
	}
	if len(records) == 0 {
		return idx
	}

	parallel.Range(0, len(records), 0, func(low, high int) {
		for i := low; i < high; i++ {
			r := &records[i]
			idx.days[i] = DateData{
				Birth:     DayOf(r.BirthDate),
				Mother:    NullDayOf(r.MotherBirthDate),
				Father:    NullDayOf(r.FatherBirthDate),
				Treatment: NullDayOf(r.TreatmentDate),
			}
		}
	})

	for i := range idx.days {
		d := &idx.days[i]
		idx.byBirth[d.Birth] = append(idx.byBirth[d.Birth], i)
		if d.Treatment.Valid {
			idx.cases = append(idx.cases, i)
		} else {
			idx.controls = append(idx.controls, i)
		}
	}

	// Binary-search membership relies on this order.
	slices.Sort(idx.controls)
	idx.controls = slices.Compact(idx.controls)

	return idx
}

// Len returns the number of indexed subjects.
func (x *Index) Len() int { return len(x.days) }

// Days returns the date data of subject i.
func (x *Index) Days(i int) DateData { return x.days[i] }

// All returns the date data of every subject, indexed like the input records.
// Callers must not modify it.
func (x *Index) All() []DateData { return x.days }

// Bucket returns the subjects born on day. Callers must not modify it.
func (x *Index) Bucket(day int64) []int { return x.byBirth[day] }

// Cases returns the indices of subjects with an event date.
func (x *Index) Cases() []int { return x.cases }

// Controls returns the ascending, duplicate-free indices of subjects without an event date.
func (x *Index) Controls() []int { return x.controls }

// IsControl reports whether i is in the control list.
func (x *Index) IsControl(i int) bool {
	_, found := slices.BinarySearch(x.controls, i)
	return found
}
