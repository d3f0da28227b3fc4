package evaluation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/izcheck/izcheck/internal/domain/patient"
	"github.com/izcheck/izcheck/internal/domain/schedule"
	"github.com/izcheck/izcheck/pkg/timecalc"
)

// ConditionAttributes holds a skip condition's symbolic fields resolved to
// concrete comparison values for one person at one point in their history.
// Optional source fields that were absent stay nil.
type ConditionAttributes struct {
	ConditionID    int
	ConditionType  string
	AssessmentDate timecalc.Date
	BeginAgeDate   *timecalc.Date
	EndAgeDate     *timecalc.Date
	StartDate      *timecalc.Date
	EndDate        *timecalc.Date
	IntervalDate   *timecalc.Date
	DoseCount      *int
	DoseType       string
	DoseCountLogic string
	VaccineTypes   []string
}

// ResolveConditionAttributes converts a condition's duration expressions and
// compact date strings into dates. Age bounds anchor on the birth date; the
// interval bound anchors on anchorDoseDate (the most recent counted dose) and
// stays nil when there is no prior dose to anchor on.
func ResolveConditionAttributes(cond *schedule.ConditionalSkipCondition, anchorDoseDate, birthDate, assessmentDate timecalc.Date) (*ConditionAttributes, error) {
	attrs := &ConditionAttributes{
		ConditionID:    cond.ConditionID,
		ConditionType:  cond.ConditionType,
		AssessmentDate: assessmentDate,
		DoseCount:      cond.DoseCount,
		DoseType:       cond.DoseType,
		DoseCountLogic: cond.DoseCountLogic,
		VaccineTypes:   cond.VaccineTypes,
	}
	var err error
	if attrs.BeginAgeDate, err = ageDate(cond.BeginAge, birthDate); err != nil {
		return nil, fmt.Errorf("condition %d beginAge: %w", cond.ConditionID, err)
	}
	if attrs.EndAgeDate, err = ageDate(cond.EndAge, birthDate); err != nil {
		return nil, fmt.Errorf("condition %d endAge: %w", cond.ConditionID, err)
	}
	if attrs.StartDate, err = compactDate(cond.StartDate); err != nil {
		return nil, fmt.Errorf("condition %d startDate: %w", cond.ConditionID, err)
	}
	if attrs.EndDate, err = compactDate(cond.EndDate); err != nil {
		return nil, fmt.Errorf("condition %d endDate: %w", cond.ConditionID, err)
	}
	if cond.Interval != "" && !anchorDoseDate.IsZero() {
		span, err := timecalc.ParseSpan(cond.Interval)
		if err != nil {
			return nil, fmt.Errorf("condition %d interval: %w", cond.ConditionID, err)
		}
		d := span.AddTo(anchorDoseDate)
		attrs.IntervalDate = &d
	}
	return attrs, nil
}

func ageDate(expr string, birthDate timecalc.Date) (*timecalc.Date, error) {
	if expr == "" {
		return nil, nil
	}
	span, err := timecalc.ParseSpan(expr)
	if err != nil {
		return nil, err
	}
	d := span.AddTo(birthDate)
	return &d, nil
}

func compactDate(s string) (*timecalc.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := timecalc.ToDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// MatchByCVXCodes returns the doses whose CVX code appears in codes (product
// codes as strings, as condition vaccineTypes carry them). An empty code
// list matches nothing.
func MatchByCVXCodes(doses []*patient.VaccineDose, codes []string) []*patient.VaccineDose {
	if len(codes) == 0 {
		return nil
	}
	set := make(map[int]bool, len(codes))
	for _, c := range codes {
		if n, err := strconv.Atoi(strings.TrimSpace(c)); err == nil {
			set[n] = true
		}
	}
	var out []*patient.VaccineDose
	for _, d := range doses {
		if set[d.CVXCode] {
			out = append(out, d)
		}
	}
	return out
}

// CountFilters restrict which administered doses count toward a dose-count
// condition. Each bound is optional; bounds compose with AND.
type CountFilters struct {
	BeginAgeDate *timecalc.Date
	EndAgeDate   *timecalc.Date
	StartDate    *timecalc.Date
	EndDate      *timecalc.Date
	DoseType     string
}

// CountQualifyingDoses counts the doses of the given vaccine types inside
// the filter bounds. DoseType "Valid" counts only doses whose prior
// evaluation status is "Valid"; "Total" (or empty) counts all matches.
func CountQualifyingDoses(doses []*patient.VaccineDose, vaccineTypes []string, f CountFilters) int {
	count := 0
	for _, d := range MatchByCVXCodes(doses, vaccineTypes) {
		if f.BeginAgeDate != nil && d.DateAdministered.Before(*f.BeginAgeDate) {
			continue
		}
		if f.EndAgeDate != nil && d.DateAdministered.After(*f.EndAgeDate) {
			continue
		}
		if f.StartDate != nil && d.DateAdministered.Before(*f.StartDate) {
			continue
		}
		if f.EndDate != nil && d.DateAdministered.After(*f.EndDate) {
			continue
		}
		if f.DoseType == "Valid" && (d.EvaluationStatus == nil || *d.EvaluationStatus != "Valid") {
			continue
		}
		count++
	}
	return count
}

// CompareDoseCount applies a condition's count logic. Unknown logic tokens
// evaluate false rather than erroring, matching the permissive handling of
// optional schedule fields.
func CompareDoseCount(logic string, required, actual int) bool {
	switch strings.ToLower(logic) {
	case "greater than":
		return actual > required
	case "equals":
		return actual == required
	case "less than":
		return actual < required
	default:
		return false
	}
}

// TemporalResults carries the per-attribute outcome of a temporal
// evaluation. A nil field means the attribute was absent from the condition
// and was not evaluated, which is distinct from false.
type TemporalResults struct {
	IntervalDate *bool
	BeginAgeDate *bool
	EndAgeDate   *bool
	StartDate    *bool
	EndDate      *bool
}

// Satisfied reports whether every evaluated attribute came out true.
func (r TemporalResults) Satisfied() bool {
	for _, b := range []*bool{r.IntervalDate, r.BeginAgeDate, r.EndAgeDate, r.StartDate, r.EndDate} {
		if b != nil && !*b {
			return false
		}
	}
	return true
}

// EvaluateTemporalAttributes checks the dose date against each resolved
// bound. Lower bounds (intervalDate, beginAgeDate, startDate) are satisfied
// once the dose date reaches them; upper bounds (endAgeDate, endDate) are
// satisfied up to and including the bound. Equality satisfies both kinds.
func EvaluateTemporalAttributes(attrs *ConditionAttributes, doseDate timecalc.Date) TemporalResults {
	var res TemporalResults
	if attrs.IntervalDate != nil {
		b := doseDate.OnOrAfter(*attrs.IntervalDate)
		res.IntervalDate = &b
	}
	if attrs.BeginAgeDate != nil {
		b := doseDate.OnOrAfter(*attrs.BeginAgeDate)
		res.BeginAgeDate = &b
	}
	if attrs.EndAgeDate != nil {
		b := doseDate.OnOrBefore(*attrs.EndAgeDate)
		res.EndAgeDate = &b
	}
	if attrs.StartDate != nil {
		b := doseDate.OnOrAfter(*attrs.StartDate)
		res.StartDate = &b
	}
	if attrs.EndDate != nil {
		b := doseDate.OnOrBefore(*attrs.EndDate)
		res.EndDate = &b
	}
	return res
}

// EvaluateCondition decides a single skip condition. Conditions carrying a
// dose count apply their age/date bounds as count filters over the history;
// conditions without one apply the bounds temporally to the dose date.
func EvaluateCondition(cond *schedule.ConditionalSkipCondition, anchorDoseDate, birthDate, doseDate, assessmentDate timecalc.Date, history []*patient.VaccineDose) (bool, error) {
	attrs, err := ResolveConditionAttributes(cond, anchorDoseDate, birthDate, assessmentDate)
	if err != nil {
		return false, err
	}
	if attrs.DoseCount != nil {
		actual := CountQualifyingDoses(history, attrs.VaccineTypes, CountFilters{
			BeginAgeDate: attrs.BeginAgeDate,
			EndAgeDate:   attrs.EndAgeDate,
			StartDate:    attrs.StartDate,
			EndDate:      attrs.EndDate,
			DoseType:     attrs.DoseType,
		})
		return CompareDoseCount(attrs.DoseCountLogic, *attrs.DoseCount, actual), nil
	}
	return EvaluateTemporalAttributes(attrs, doseDate).Satisfied(), nil
}

// EvaluateConditionalSkip decides whether a scheduled dose is waived.
// Conditions within a set must all hold; sets combine with OR unless
// setLogic is an AND token ("n/a" marks the single-set case).
func EvaluateConditionalSkip(skip *schedule.ConditionalSkip, anchorDoseDate, birthDate, doseDate, assessmentDate timecalc.Date, history []*patient.VaccineDose) (bool, error) {
	if skip == nil {
		return false, nil
	}
	conjunctive := strings.EqualFold(skip.SetLogic, "and")
	for _, set := range skip.Sets {
		setSatisfied := true
		for _, cond := range set.Conditions {
			ok, err := EvaluateCondition(cond, anchorDoseDate, birthDate, doseDate, assessmentDate, history)
			if err != nil {
				return false, fmt.Errorf("set %d: %w", set.SetID, err)
			}
			if !ok {
				setSatisfied = false
				break
			}
		}
		if conjunctive {
			if !setSatisfied {
				return false, nil
			}
		} else if setSatisfied {
			return true, nil
		}
	}
	return conjunctive, nil
}
