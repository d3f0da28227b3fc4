package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("patient: not found")

// Repository stores patients and their administered doses. ListDoses
// returns doses ordered by administration date ascending.
type Repository interface {
	CreatePatient(ctx context.Context, p *Patient) error
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
	ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	AddDose(ctx context.Context, d *VaccineDose) error
	ListDoses(ctx context.Context, patientID uuid.UUID) ([]*VaccineDose, error)
	SetDoseStatus(ctx context.Context, doseID uuid.UUID, status *string) error
}
