package patient

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/izcheck/izcheck/pkg/timecalc"
)

// Patient is the person whose immunization record is evaluated. Gender is
// stored lowercased ("male", "female", "unknown"); dose-level gender
// restrictions compare against it case-insensitively.
type Patient struct {
	ID        uuid.UUID     `db:"id" json:"id"`
	FirstName string        `db:"first_name" json:"first_name"`
	LastName  string        `db:"last_name" json:"last_name"`
	Gender    string        `db:"gender" json:"gender"`
	DOB       timecalc.Date `db:"dob" json:"dob"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// Age returns the patient's age in completed years as of the given date; a
// zero asOf means today.
func (p *Patient) Age(asOf timecalc.Date) int {
	return timecalc.YearsBetween(p.DOB, asOf)
}

// AgeInDays returns the patient's age in whole days as of the given date.
func (p *Patient) AgeInDays(asOf timecalc.Date) int {
	return timecalc.DaysBetween(p.DOB, asOf)
}

// VaccineDose is one administered vaccine in a patient's history.
// EvaluationStatus is written back by the evaluator ("Valid" or "Invalid")
// and is nil for doses that have not been evaluated.
type VaccineDose struct {
	ID               uuid.UUID     `db:"id" json:"id"`
	PatientID        uuid.UUID     `db:"patient_id" json:"patient_id"`
	VaccineCode      string        `db:"vaccine_code" json:"vaccine_code"`
	CVXCode          int           `db:"cvx_code" json:"cvx_code"`
	DateAdministered timecalc.Date `db:"date_administered" json:"date_administered"`
	EvaluationStatus *string       `db:"evaluation_status" json:"evaluation_status,omitempty"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
}

// SortDosesByDate orders doses by administration date ascending, in place.
// The sort is stable so same-day doses keep their insertion order.
func SortDosesByDate(doses []*VaccineDose) {
	sort.SliceStable(doses, func(i, j int) bool {
		return doses[i].DateAdministered.Before(doses[j].DateAdministered)
	})
}

// FilterDosesByCVX returns the doses whose CVX code is in codes, preserving
// order.
func FilterDosesByCVX(doses []*VaccineDose, codes []int) []*VaccineDose {
	set := make(map[int]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	var out []*VaccineDose
	for _, d := range doses {
		if set[d.CVXCode] {
			out = append(out, d)
		}
	}
	return out
}

var validGenders = map[string]bool{"male": true, "female": true, "unknown": true}

// NormalizeGender lowercases a gender value, mapping anything unrecognized
// (including empty) to "unknown".
func NormalizeGender(g string) string {
	g = strings.ToLower(strings.TrimSpace(g))
	if !validGenders[g] {
		return "unknown"
	}
	return g
}
