package schedule

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when an antigen or CVX mapping does not exist.
	ErrNotFound = errors.New("schedule: not found")
	// ErrParse is returned when a source document cannot be understood.
	ErrParse = errors.New("schedule: parse error")
)

// Repository stores the imported schedule keyed by lowercased target
// disease. SaveAntigen replaces any existing antigen for the same disease
// wholesale; partial updates of a series tree are never exposed.
type Repository interface {
	SaveAntigen(ctx context.Context, a *Antigen) error
	GetAntigen(ctx context.Context, targetDisease string) (*Antigen, error)
	ListAntigens(ctx context.Context) ([]*Antigen, error)
	// EnsureAntigen creates a bare antigen for the disease when none exists,
	// leaving an existing one untouched.
	EnsureAntigen(ctx context.Context, targetDisease string) (*Antigen, error)
}

// VaccineInfoRepository stores CVX-to-antigen mappings. Replace removes any
// existing mapping for the same CVX code before writing the new one; the
// two steps are atomic with respect to readers.
type VaccineInfoRepository interface {
	Replace(ctx context.Context, v *VaccineInfo) error
	GetByCVX(ctx context.Context, cvxCode int) (*VaccineInfo, error)
	List(ctx context.Context) ([]*VaccineInfo, error)
}
