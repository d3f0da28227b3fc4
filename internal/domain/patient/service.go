package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if p.FirstName == "" {
		return fmt.Errorf("first_name is required")
	}
	if p.LastName == "" {
		return fmt.Errorf("last_name is required")
	}
	if p.DOB.IsZero() {
		return fmt.Errorf("dob is required")
	}
	p.Gender = NormalizeGender(p.Gender)
	return s.repo.CreatePatient(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetPatient(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.ListPatients(ctx, limit, offset)
}

func (s *Service) AddDose(ctx context.Context, d *VaccineDose) error {
	if d.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if d.CVXCode == 0 {
		return fmt.Errorf("cvx_code is required")
	}
	if d.DateAdministered.IsZero() {
		return fmt.Errorf("date_administered is required")
	}
	return s.repo.AddDose(ctx, d)
}

func (s *Service) ListDoses(ctx context.Context, patientID uuid.UUID) ([]*VaccineDose, error) {
	return s.repo.ListDoses(ctx, patientID)
}

// History is a patient together with their administered doses in date order.
type History struct {
	Patient *Patient       `json:"patient"`
	Doses   []*VaccineDose `json:"doses"`
}

func (s *Service) GetHistory(ctx context.Context, patientID uuid.UUID) (*History, error) {
	p, err := s.repo.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	doses, err := s.repo.ListDoses(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return &History{Patient: p, Doses: doses}, nil
}
