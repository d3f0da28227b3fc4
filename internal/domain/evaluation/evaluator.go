package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/izcheck/izcheck/internal/domain/patient"
	"github.com/izcheck/izcheck/internal/domain/schedule"
	"github.com/izcheck/izcheck/pkg/timecalc"
)

const (
	DoseValid   = "Valid"
	DoseInvalid = "Invalid"

	TargetSatisfied   = "satisfied"
	TargetSkipped     = "skipped"
	TargetOutstanding = "outstanding"

	StatusComplete    = "complete"
	StatusNotComplete = "not_complete"
)

// ScheduleSource is the read-only schedule model the evaluator walks.
// *schedule.Service satisfies it.
type ScheduleSource interface {
	ListAntigens(ctx context.Context) ([]*schedule.Antigen, error)
	GetVaccineInfo(ctx context.Context, cvxCode int) (*schedule.VaccineInfo, error)
}

// TargetDoseResult classifies one scheduled dose of the chosen series.
type TargetDoseResult struct {
	DoseNumber  int        `json:"dose_number"`
	Status      string     `json:"status"`
	Reason      string     `json:"reason,omitempty"`
	SatisfiedBy *uuid.UUID `json:"satisfied_by,omitempty"`
	// Preferable is true when the satisfying dose met the preferred product
	// and spacing rules, false when it was accepted on allowable terms.
	Preferable bool `json:"preferable,omitempty"`
}

// DoseDecision records how one administered dose fared during a series walk.
type DoseDecision struct {
	DoseID uuid.UUID `json:"dose_id"`
	Status string    `json:"status"`
	Reason string    `json:"reason,omitempty"`
}

// SeriesResult is the walk of one series against the person's history.
type SeriesResult struct {
	Name           string              `json:"name"`
	Complete       bool                `json:"complete"`
	SatisfiedCount int                 `json:"satisfied_count"`
	Targets        []*TargetDoseResult `json:"targets"`
	DoseDecisions  []*DoseDecision     `json:"dose_decisions,omitempty"`
}

// AntigenResult reports the best-matching series for one antigen.
type AntigenResult struct {
	TargetDisease string        `json:"target_disease"`
	Status        string        `json:"status"`
	BestSeries    *SeriesResult `json:"best_series"`
}

// RecordResult is a whole-record evaluation for one patient.
type RecordResult struct {
	PatientID   uuid.UUID        `json:"patient_id"`
	EvaluatedAt time.Time        `json:"evaluated_at"`
	AsOf        timecalc.Date    `json:"as_of"`
	Status      string           `json:"status"`
	Antigens    []*AntigenResult `json:"antigens"`
}

// Evaluator walks the schedule model against one person's administered
// doses. It holds no per-person state; one evaluator serves all patients.
type Evaluator struct {
	sched  ScheduleSource
	logger zerolog.Logger
}

func NewEvaluator(sched ScheduleSource, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		sched:  sched,
		logger: logger.With().Str("component", "evaluator").Logger(),
	}
}

// EvaluateRecord classifies every antigen's requirement for the patient. A
// zero asOf evaluates as of today. The overall status is complete only when
// every antigen that defines at least one series is complete.
func (e *Evaluator) EvaluateRecord(ctx context.Context, p *patient.Patient, doses []*patient.VaccineDose, asOf timecalc.Date) (*RecordResult, error) {
	if asOf.IsZero() {
		asOf = timecalc.Today()
	}
	antigens, err := e.sched.ListAntigens(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading schedule: %w", err)
	}

	sorted := make([]*patient.VaccineDose, len(doses))
	copy(sorted, doses)
	patient.SortDosesByDate(sorted)

	byAntigen, err := e.groupByAntigen(ctx, sorted)
	if err != nil {
		return nil, err
	}

	result := &RecordResult{
		PatientID:   p.ID,
		EvaluatedAt: time.Now().UTC(),
		AsOf:        asOf,
		Status:      StatusComplete,
	}
	for _, antigen := range antigens {
		if len(antigen.Series) == 0 {
			// bare antigen created by the cvx import; defines no requirement
			continue
		}
		ar, err := e.evaluateAntigen(antigen, byAntigen[antigen.TargetDisease], sorted, p, asOf)
		if err != nil {
			return nil, fmt.Errorf("antigen %s: %w", antigen.TargetDisease, err)
		}
		if ar.Status != StatusComplete {
			result.Status = StatusNotComplete
		}
		result.Antigens = append(result.Antigens, ar)
	}
	return result, nil
}

// groupByAntigen resolves each administered dose's CVX code to the antigens
// it counts toward. Doses with unmapped codes are logged and left out.
func (e *Evaluator) groupByAntigen(ctx context.Context, doses []*patient.VaccineDose) (map[string][]*patient.VaccineDose, error) {
	out := make(map[string][]*patient.VaccineDose)
	for _, d := range doses {
		info, err := e.sched.GetVaccineInfo(ctx, d.CVXCode)
		if errors.Is(err, schedule.ErrNotFound) {
			e.logger.Warn().Int("cvx", d.CVXCode).Str("dose_id", d.ID.String()).
				Msg("administered dose has no cvx mapping")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolving cvx %d: %w", d.CVXCode, err)
		}
		for _, disease := range info.Antigens {
			out[disease] = append(out[disease], d)
		}
	}
	return out, nil
}

func (e *Evaluator) evaluateAntigen(antigen *schedule.Antigen, doses, history []*patient.VaccineDose, p *patient.Patient, asOf timecalc.Date) (*AntigenResult, error) {
	var best *SeriesResult
	for _, series := range antigen.Series {
		sr, err := e.evaluateSeries(series, doses, history, p, asOf)
		if err != nil {
			return nil, fmt.Errorf("series %q: %w", series.Name, err)
		}
		// ties resolve to the earliest series in document order
		if best == nil || sr.SatisfiedCount > best.SatisfiedCount {
			best = sr
		}
	}
	status := StatusNotComplete
	if best.Complete {
		status = StatusComplete
	}
	return &AntigenResult{TargetDisease: antigen.TargetDisease, Status: status, BestSeries: best}, nil
}

// evaluateSeries walks the series' scheduled doses in order, consuming the
// person's administered doses (oldest first) as they satisfy targets. doses
// carries only this antigen's administrations; history is the person's full
// record, which skip conditions count over.
func (e *Evaluator) evaluateSeries(series *schedule.Series, doses, history []*patient.VaccineDose, p *patient.Patient, asOf timecalc.Date) (*SeriesResult, error) {
	res := &SeriesResult{Name: series.Name, Complete: true}
	satisfiedByTarget := make(map[int]timecalc.Date)
	var prevDate timecalc.Date
	cursor := 0

	for _, target := range series.Doses {
		tr := &TargetDoseResult{DoseNumber: target.DoseNumber, Status: TargetOutstanding}
		res.Targets = append(res.Targets, tr)

		if !target.AllowsGender(p.Gender) {
			tr.Status = TargetSkipped
			tr.Reason = "gender requirement not met"
			continue
		}

		if target.ConditionalSkip != nil {
			candidate := asOf
			if cursor < len(doses) {
				candidate = doses[cursor].DateAdministered
			}
			waived, err := EvaluateConditionalSkip(target.ConditionalSkip, prevDate, p.DOB, candidate, asOf, history)
			if err != nil {
				return nil, err
			}
			if waived {
				tr.Status = TargetSkipped
				tr.Reason = "conditional skip satisfied"
				continue
			}
		}

		for cursor < len(doses) {
			d := doses[cursor]
			cursor++

			matched, preferableProduct := productMatch(target, d)
			if !matched {
				res.DoseDecisions = append(res.DoseDecisions, &DoseDecision{
					DoseID: d.ID, Status: DoseInvalid, Reason: "vaccine does not match this dose",
				})
				continue
			}
			spaced, preferableSpacing, err := e.intervalsSatisfied(target, d, prevDate, satisfiedByTarget, doses)
			if err != nil {
				return nil, err
			}
			if !spaced {
				res.DoseDecisions = append(res.DoseDecisions, &DoseDecision{
					DoseID: d.ID, Status: DoseInvalid, Reason: "administered below the absolute minimum interval",
				})
				continue
			}

			id := d.ID
			tr.Status = TargetSatisfied
			tr.SatisfiedBy = &id
			tr.Preferable = preferableProduct && preferableSpacing
			res.DoseDecisions = append(res.DoseDecisions, &DoseDecision{DoseID: d.ID, Status: DoseValid})
			prevDate = d.DateAdministered
			satisfiedByTarget[target.DoseNumber] = d.DateAdministered
			break
		}

		if tr.Status == TargetOutstanding && !target.RecurringDose {
			res.Complete = false
		}
	}

	// A satisfied recurring final dose keeps accepting boosters: leftover
	// history is consumed against it under the same product and spacing
	// rules instead of being left unjudged.
	if n := len(series.Doses); n > 0 && series.Doses[n-1].RecurringDose && res.Targets[n-1].Status == TargetSatisfied {
		last := series.Doses[n-1]
		for cursor < len(doses) {
			d := doses[cursor]
			cursor++

			matched, _ := productMatch(last, d)
			if !matched {
				res.DoseDecisions = append(res.DoseDecisions, &DoseDecision{
					DoseID: d.ID, Status: DoseInvalid, Reason: "vaccine does not match this dose",
				})
				continue
			}
			spaced, _, err := e.intervalsSatisfied(last, d, prevDate, satisfiedByTarget, doses)
			if err != nil {
				return nil, err
			}
			if !spaced {
				res.DoseDecisions = append(res.DoseDecisions, &DoseDecision{
					DoseID: d.ID, Status: DoseInvalid, Reason: "administered below the absolute minimum interval",
				})
				continue
			}
			res.DoseDecisions = append(res.DoseDecisions, &DoseDecision{DoseID: d.ID, Status: DoseValid})
			prevDate = d.DateAdministered
			satisfiedByTarget[last.DoseNumber] = d.DateAdministered
		}
	}

	for _, tr := range res.Targets {
		if tr.Status == TargetSatisfied {
			res.SatisfiedCount++
		}
	}
	return res, nil
}

// productMatch reports whether the administered dose counts toward the
// target and whether it came from the preferable set. A target with no
// product list accepts any dose for this antigen.
func productMatch(target *schedule.SeriesDose, d *patient.VaccineDose) (matched, preferable bool) {
	if len(target.DoseVaccines) == 0 {
		return true, true
	}
	for _, v := range target.DoseVaccines {
		if v.CVXCode == d.CVXCode || (d.VaccineCode != "" && v.VaccineType == d.VaccineCode) {
			if v.Preferable {
				return true, true
			}
			matched = true
		}
	}
	return matched, false
}

// intervalsSatisfied checks the target's spacing rules against the
// candidate dose. The dose is accepted when every applicable interval's
// absolute minimum is met; preferable additionally requires every
// non-allowable interval's intervalMin (when set).
func (e *Evaluator) intervalsSatisfied(target *schedule.SeriesDose, d *patient.VaccineDose, prevDate timecalc.Date, satisfiedByTarget map[int]timecalc.Date, history []*patient.VaccineDose) (ok, preferable bool, err error) {
	ok, preferable = true, true
	for _, iv := range target.Intervals {
		anchor, applicable := intervalAnchor(iv, prevDate, satisfiedByTarget, history, d.DateAdministered)
		if !applicable {
			continue
		}
		absSpan, perr := timecalc.ParseSpan(iv.IntervalAbsoluteMin)
		if perr != nil {
			return false, false, fmt.Errorf("dose %d absolute interval: %w", target.DoseNumber, perr)
		}
		if d.DateAdministered.Before(absSpan.AddTo(anchor)) {
			ok = false
		}
		if !iv.Allowable && iv.IntervalMin != nil {
			minSpan, perr := timecalc.ParseSpan(*iv.IntervalMin)
			if perr != nil {
				return false, false, fmt.Errorf("dose %d interval: %w", target.DoseNumber, perr)
			}
			if d.DateAdministered.Before(minSpan.AddTo(anchor)) {
				preferable = false
			}
		}
	}
	if !ok {
		preferable = false
	}
	return ok, preferable, nil
}

// intervalAnchor resolves which prior date an interval measures from. An
// interval whose anchor does not exist in this history is not applicable.
func intervalAnchor(iv *schedule.Interval, prevDate timecalc.Date, satisfiedByTarget map[int]timecalc.Date, history []*patient.VaccineDose, doseDate timecalc.Date) (timecalc.Date, bool) {
	if iv.TargetDoseNumber != nil {
		date, ok := satisfiedByTarget[*iv.TargetDoseNumber]
		return date, ok
	}
	if iv.RecentCVXCode != nil || iv.RecentVaccineType != nil {
		var anchor timecalc.Date
		found := false
		for _, h := range history {
			if !h.DateAdministered.Before(doseDate) {
				break
			}
			if iv.RecentCVXCode != nil && h.CVXCode != *iv.RecentCVXCode {
				continue
			}
			if iv.RecentCVXCode == nil && iv.RecentVaccineType != nil && h.VaccineCode != *iv.RecentVaccineType {
				continue
			}
			anchor = h.DateAdministered
			found = true
		}
		return anchor, found
	}
	if prevDate.IsZero() {
		return prevDate, false
	}
	return prevDate, true
}
