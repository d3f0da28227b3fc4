package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps the schedule in process memory. It is the default
// store for the evaluate CLI path and for tests; the server wires the
// Postgres repository instead.
type MemoryRepository struct {
	mu       sync.RWMutex
	antigens map[string]*Antigen
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{antigens: make(map[string]*Antigen)}
}

func (r *MemoryRepository) SaveAntigen(_ context.Context, a *Antigen) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	if prev, ok := r.antigens[a.TargetDisease]; ok {
		a.CreatedAt = prev.CreatedAt
	} else {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	r.antigens[a.TargetDisease] = a
	return nil
}

func (r *MemoryRepository) GetAntigen(_ context.Context, targetDisease string) (*Antigen, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.antigens[NormalizeDisease(targetDisease)]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepository) ListAntigens(_ context.Context) ([]*Antigen, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Antigen, 0, len(r.antigens))
	for _, a := range r.antigens {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetDisease < out[j].TargetDisease })
	return out, nil
}

func (r *MemoryRepository) EnsureAntigen(_ context.Context, targetDisease string) (*Antigen, error) {
	key := NormalizeDisease(targetDisease)
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.antigens[key]; ok {
		return a, nil
	}
	now := time.Now().UTC()
	a := &Antigen{ID: uuid.New(), TargetDisease: key, CreatedAt: now, UpdatedAt: now}
	r.antigens[key] = a
	return a, nil
}

// MemoryVaccineInfoRepository keeps CVX mappings in process memory.
type MemoryVaccineInfoRepository struct {
	mu    sync.RWMutex
	byCVX map[int]*VaccineInfo
}

func NewMemoryVaccineInfoRepository() *MemoryVaccineInfoRepository {
	return &MemoryVaccineInfoRepository{byCVX: make(map[int]*VaccineInfo)}
}

func (r *MemoryVaccineInfoRepository) Replace(_ context.Context, v *VaccineInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byCVX, v.CVXCode)
	v.ID = uuid.New()
	v.CreatedAt = time.Now().UTC()
	r.byCVX[v.CVXCode] = v
	return nil
}

func (r *MemoryVaccineInfoRepository) GetByCVX(_ context.Context, cvxCode int) (*VaccineInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.byCVX[cvxCode]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (r *MemoryVaccineInfoRepository) List(_ context.Context) ([]*VaccineInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*VaccineInfo, 0, len(r.byCVX))
	for _, v := range r.byCVX {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CVXCode < out[j].CVXCode })
	return out, nil
}
