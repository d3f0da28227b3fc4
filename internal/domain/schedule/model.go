package schedule

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Antigen is a disease target together with every series that can satisfy
// its requirement. Antigens are keyed by lowercased target disease; the ID is
// surrogate identity only and changes when the antigen is re-imported.
type Antigen struct {
	ID            uuid.UUID `db:"id" json:"id"`
	TargetDisease string    `db:"target_disease" json:"target_disease"`
	Series        []*Series `json:"series"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Series is one complete, named dose sequence belonging to an antigen.
// Doses are kept in administration order, 1-based.
type Series struct {
	ID    uuid.UUID     `db:"id" json:"id"`
	Name  string        `db:"name" json:"name"`
	Doses []*SeriesDose `json:"doses"`
}

// SeriesDose is one position within a series: which products count toward
// it, how it must be spaced, and when it may be waived.
type SeriesDose struct {
	ID              uuid.UUID        `db:"id" json:"id"`
	DoseNumber      int              `db:"dose_number" json:"dose_number"`
	RecurringDose   bool             `db:"recurring_dose" json:"recurring_dose"`
	RequiredGender  []string         `json:"required_gender,omitempty"`
	Intervals       []*Interval      `json:"intervals,omitempty"`
	DoseVaccines    []*DoseVaccine   `json:"dose_vaccines,omitempty"`
	ConditionalSkip *ConditionalSkip `json:"conditional_skip,omitempty"`
}

// PreferableIntervals returns the dose's normal minimum-spacing rules.
func (d *SeriesDose) PreferableIntervals() []*Interval {
	var out []*Interval
	for _, iv := range d.Intervals {
		if !iv.Allowable {
			out = append(out, iv)
		}
	}
	return out
}

// AllowableIntervals returns the spacing rules that accept an earlier dose.
func (d *SeriesDose) AllowableIntervals() []*Interval {
	var out []*Interval
	for _, iv := range d.Intervals {
		if iv.Allowable {
			out = append(out, iv)
		}
	}
	return out
}

// PreferableVaccines returns the products normally expected for this dose.
func (d *SeriesDose) PreferableVaccines() []*DoseVaccine {
	var out []*DoseVaccine
	for _, v := range d.DoseVaccines {
		if v.Preferable {
			out = append(out, v)
		}
	}
	return out
}

// AllowableVaccines returns the products accepted but not preferred. An
// empty result is valid; many doses define no allowable set.
func (d *SeriesDose) AllowableVaccines() []*DoseVaccine {
	var out []*DoseVaccine
	for _, v := range d.DoseVaccines {
		if !v.Preferable {
			out = append(out, v)
		}
	}
	return out
}

// AllowsGender reports whether a patient of the given gender counts toward
// this dose. An empty RequiredGender set means no restriction.
func (d *SeriesDose) AllowsGender(gender string) bool {
	if len(d.RequiredGender) == 0 {
		return true
	}
	gender = strings.ToLower(gender)
	for _, g := range d.RequiredGender {
		if g == gender {
			return true
		}
	}
	return false
}

// Interval is a minimum-spacing rule between a dose and a prior dose or
// product. IntervalAbsoluteMin is the non-waivable floor and is always
// present; IntervalMin is the preferred spacing and may be absent. When
// TargetDoseNumber is set the rule is anchored to the dose that satisfied
// that target rather than the most recent applicable dose; when
// RecentCVXCode/RecentVaccineType are set it is anchored to the most recent
// administration of that specific product.
type Interval struct {
	ID                  uuid.UUID `db:"id" json:"id"`
	Allowable           bool      `db:"allowable" json:"allowable"`
	TargetDoseNumber    *int      `db:"target_dose_number" json:"target_dose_number,omitempty"`
	RecentCVXCode       *int      `db:"recent_cvx_code" json:"recent_cvx_code,omitempty"`
	RecentVaccineType   *string   `db:"recent_vaccine_type" json:"recent_vaccine_type,omitempty"`
	IntervalMin         *string   `db:"interval_min" json:"interval_min,omitempty"`
	IntervalAbsoluteMin string    `db:"interval_absolute_min" json:"interval_absolute_min"`
}

// DoseVaccine is one product that counts toward a dose.
type DoseVaccine struct {
	ID          uuid.UUID `db:"id" json:"id"`
	VaccineType string    `db:"vaccine_type" json:"vaccine_type"`
	CVXCode     int       `db:"cvx_code" json:"cvx_code"`
	Preferable  bool      `db:"preferable" json:"preferable"`
}

// ConditionalSkip waives its dose when its condition sets are satisfied by a
// person's history. Absence of skip rules is represented by a nil
// ConditionalSkip on the dose, never by one with zero sets.
type ConditionalSkip struct {
	ID       uuid.UUID             `db:"id" json:"id"`
	SetLogic string                `db:"set_logic" json:"set_logic"`
	Sets     []*ConditionalSkipSet `json:"sets"`
}

// ConditionalSkipSet groups conditions that must all hold together. SetID is
// 1-based in document order.
type ConditionalSkipSet struct {
	ID         uuid.UUID                   `db:"id" json:"id"`
	SetID      int                         `db:"set_id" json:"set_id"`
	Conditions []*ConditionalSkipCondition `json:"conditions"`
}

// ConditionalSkipCondition is a single test within a set. Which fields are
// populated depends on ConditionType; absent optional source fields stay
// empty rather than erroring.
type ConditionalSkipCondition struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ConditionID    int       `db:"condition_id" json:"condition_id"`
	ConditionType  string    `db:"condition_type" json:"condition_type"`
	BeginAge       string    `db:"begin_age" json:"begin_age,omitempty"`
	EndAge         string    `db:"end_age" json:"end_age,omitempty"`
	StartDate      string    `db:"start_date" json:"start_date,omitempty"`
	EndDate        string    `db:"end_date" json:"end_date,omitempty"`
	Interval       string    `db:"interval" json:"interval,omitempty"`
	DoseCount      *int      `db:"dose_count" json:"dose_count,omitempty"`
	DoseType       string    `db:"dose_type" json:"dose_type,omitempty"`
	DoseCountLogic string    `db:"dose_count_logic" json:"dose_count_logic,omitempty"`
	VaccineTypes   []string  `json:"vaccine_types,omitempty"`
}

// VaccineInfo maps a CVX product code to the antigens it immunizes against.
// Re-importing a code replaces the whole mapping (delete then recreate), so
// the ID changes across imports; callers resolve by CVXCode.
type VaccineInfo struct {
	ID               uuid.UUID `db:"id" json:"id"`
	CVXCode          int       `db:"cvx_code" json:"cvx_code"`
	ShortDescription string    `db:"short_description" json:"short_description"`
	Antigens         []string  `json:"antigens"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// NormalizeDisease lowercases a target-disease name and collapses the
// spellings the source documents use for the same antigen.
func NormalizeDisease(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "hep b" {
		return "hepb"
	}
	return name
}
