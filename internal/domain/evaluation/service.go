package evaluation

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/izcheck/izcheck/internal/domain/patient"
	"github.com/izcheck/izcheck/pkg/timecalc"
)

// PatientSource provides the person and their history to evaluate.
// patient.Repository satisfies it.
type PatientSource interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
	ListDoses(ctx context.Context, patientID uuid.UUID) ([]*patient.VaccineDose, error)
	SetDoseStatus(ctx context.Context, doseID uuid.UUID, status *string) error
}

// Service caches whole-record results per patient. A cached result is
// returned as the identical object until Reevaluate recomputes it
// wholesale; nothing expires the cache implicitly.
type Service struct {
	evaluator *Evaluator
	patients  PatientSource
	logger    zerolog.Logger

	mu    sync.Mutex
	cache map[uuid.UUID]*RecordResult
}

func NewService(evaluator *Evaluator, patients PatientSource, logger zerolog.Logger) *Service {
	return &Service{
		evaluator: evaluator,
		patients:  patients,
		logger:    logger.With().Str("component", "evaluation_service").Logger(),
		cache:     make(map[uuid.UUID]*RecordResult),
	}
}

// Result returns the cached evaluation for the patient, computing it only
// when none exists yet.
func (s *Service) Result(ctx context.Context, patientID uuid.UUID) (*RecordResult, error) {
	s.mu.Lock()
	cached, ok := s.cache[patientID]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}
	return s.Reevaluate(ctx, patientID)
}

// Reevaluate recomputes the patient's record from scratch, replaces the
// cached result, and writes each administered dose's evaluation status
// back to the history.
func (s *Service) Reevaluate(ctx context.Context, patientID uuid.UUID) (*RecordResult, error) {
	p, err := s.patients.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	doses, err := s.patients.ListDoses(ctx, patientID)
	if err != nil {
		return nil, err
	}

	result, err := s.evaluator.EvaluateRecord(ctx, p, doses, timecalc.Date{})
	if err != nil {
		return nil, err
	}
	if err := s.writeBackStatuses(ctx, doses, result); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[patientID] = result
	s.mu.Unlock()
	s.logger.Info().
		Str("patient_id", patientID.String()).
		Str("status", result.Status).
		Int("antigens", len(result.Antigens)).
		Msg("record evaluated")
	return result, nil
}

// Invalidate drops the cached result so the next Result recomputes.
func (s *Service) Invalidate(patientID uuid.UUID) {
	s.mu.Lock()
	delete(s.cache, patientID)
	s.mu.Unlock()
}

// writeBackStatuses marks each administered dose Valid when any antigen's
// best series consumed it, Invalid otherwise.
func (s *Service) writeBackStatuses(ctx context.Context, doses []*patient.VaccineDose, result *RecordResult) error {
	validIDs := make(map[uuid.UUID]bool)
	for _, ar := range result.Antigens {
		for _, dec := range ar.BestSeries.DoseDecisions {
			if dec.Status == DoseValid {
				validIDs[dec.DoseID] = true
			}
		}
	}
	for _, d := range doses {
		status := DoseInvalid
		if validIDs[d.ID] {
			status = DoseValid
		}
		if d.EvaluationStatus != nil && *d.EvaluationStatus == status {
			continue
		}
		st := status
		if err := s.patients.SetDoseStatus(ctx, d.ID, &st); err != nil {
			return err
		}
		d.EvaluationStatus = &st
	}
	return nil
}
