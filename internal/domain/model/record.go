// Package model contains domain models passed between layers.
package model

import "cloud.google.com/go/civil"

// MissingMarker is how absent optional values are written in register files.
const MissingMarker = "NA"

// NullDate is a calendar date that may be absent.
type NullDate struct {
	Date  civil.Date
	Valid bool
}

// Some wraps a present date.
func Some(d civil.Date) NullDate { return NullDate{Date: d, Valid: true} }

// String formats the date as YYYY-MM-DD, or MissingMarker when absent.
func (n NullDate) String() string {
	if !n.Valid {
		return MissingMarker
	}
	return n.Date.String()
}

// Record is one subject of the register. Records are immutable once loaded.
type Record struct {
	PNR             string     // person identifier
	BirthDate       civil.Date // required
	MotherBirthDate NullDate
	FatherBirthDate NullDate
	TreatmentDate   NullDate // event date; present for cases only
}

// IsCase reports whether the subject had the event.
func (r *Record) IsCase() bool { return r.TreatmentDate.Valid }

// ControlGroup holds the record indices matched to one case.
// Indices are unique within a group.
type ControlGroup []int

// CaseControlPair couples a case record index with its sampled controls.
type CaseControlPair struct {
	Case     int
	Controls ControlGroup
}
