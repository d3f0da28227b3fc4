package patient

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemoryRepository struct {
	mu       sync.RWMutex
	patients map[uuid.UUID]*Patient
	doses    map[uuid.UUID][]*VaccineDose
	order    []uuid.UUID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients: make(map[uuid.UUID]*Patient),
		doses:    make(map[uuid.UUID][]*VaccineDose),
	}
}

func (r *MemoryRepository) CreatePatient(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Gender = NormalizeGender(p.Gender)
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	r.patients[p.ID] = p
	r.order = append(r.order, p.ID)
	return nil
}

func (r *MemoryRepository) GetPatient(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepository) ListPatients(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := len(r.order)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	out := make([]*Patient, 0, end-offset)
	for _, id := range r.order[offset:end] {
		out = append(out, r.patients[id])
	}
	return out, total, nil
}

func (r *MemoryRepository) AddDose(_ context.Context, d *VaccineDose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patients[d.PatientID]; !ok {
		return ErrNotFound
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.CreatedAt = time.Now().UTC()
	doses := append(r.doses[d.PatientID], d)
	sort.SliceStable(doses, func(i, j int) bool {
		return doses[i].DateAdministered.Before(doses[j].DateAdministered)
	})
	r.doses[d.PatientID] = doses
	return nil
}

func (r *MemoryRepository) ListDoses(_ context.Context, patientID uuid.UUID) ([]*VaccineDose, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.patients[patientID]; !ok {
		return nil, ErrNotFound
	}
	src := r.doses[patientID]
	out := make([]*VaccineDose, len(src))
	copy(out, src)
	return out, nil
}

func (r *MemoryRepository) SetDoseStatus(_ context.Context, doseID uuid.UUID, status *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, doses := range r.doses {
		for _, d := range doses {
			if d.ID == doseID {
				d.EvaluationStatus = status
				return nil
			}
		}
	}
	return ErrNotFound
}
