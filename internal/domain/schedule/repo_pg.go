package schedule

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// The series tree is document shaped and read back whole, so it is stored
// as one JSONB column per antigen rather than normalized across tables.

type antigenRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &antigenRepoPG{pool: pool}
}

func (r *antigenRepoPG) SaveAntigen(ctx context.Context, a *Antigen) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO antigen (id, target_disease, series)
		VALUES ($1, $2, $3)
		ON CONFLICT (target_disease)
		DO UPDATE SET id = EXCLUDED.id, series = EXCLUDED.series, updated_at = NOW()
		RETURNING created_at, updated_at`,
		a.ID, a.TargetDisease, a.Series).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *antigenRepoPG) scanAntigen(row pgx.Row) (*Antigen, error) {
	var a Antigen
	err := row.Scan(&a.ID, &a.TargetDisease, &a.Series, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const antigenCols = `id, target_disease, series, created_at, updated_at`

func (r *antigenRepoPG) GetAntigen(ctx context.Context, targetDisease string) (*Antigen, error) {
	return r.scanAntigen(r.pool.QueryRow(ctx,
		`SELECT `+antigenCols+` FROM antigen WHERE target_disease = $1`,
		NormalizeDisease(targetDisease)))
}

func (r *antigenRepoPG) ListAntigens(ctx context.Context) ([]*Antigen, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+antigenCols+` FROM antigen ORDER BY target_disease`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Antigen
	for rows.Next() {
		a, err := r.scanAntigen(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *antigenRepoPG) EnsureAntigen(ctx context.Context, targetDisease string) (*Antigen, error) {
	key := NormalizeDisease(targetDisease)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO antigen (id, target_disease, series)
		VALUES ($1, $2, '[]'::jsonb)
		ON CONFLICT (target_disease) DO NOTHING`,
		uuid.New(), key)
	if err != nil {
		return nil, err
	}
	return r.GetAntigen(ctx, key)
}

type vaccineInfoRepoPG struct{ pool *pgxpool.Pool }

func NewVaccineInfoRepoPG(pool *pgxpool.Pool) VaccineInfoRepository {
	return &vaccineInfoRepoPG{pool: pool}
}

// Replace deletes and recreates the mapping inside one transaction so
// readers never observe a CVX code with a partially written antigen list.
func (r *vaccineInfoRepoPG) Replace(ctx context.Context, v *VaccineInfo) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM vaccine_info WHERE cvx_code = $1`, v.CVXCode); err != nil {
		return err
	}
	v.ID = uuid.New()
	if _, err := tx.Exec(ctx, `
		INSERT INTO vaccine_info (id, cvx_code, short_description, antigens)
		VALUES ($1, $2, $3, $4)`,
		v.ID, v.CVXCode, v.ShortDescription, v.Antigens); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *vaccineInfoRepoPG) scanInfo(row pgx.Row) (*VaccineInfo, error) {
	var v VaccineInfo
	err := row.Scan(&v.ID, &v.CVXCode, &v.ShortDescription, &v.Antigens, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

const vaccineInfoCols = `id, cvx_code, short_description, antigens, created_at`

func (r *vaccineInfoRepoPG) GetByCVX(ctx context.Context, cvxCode int) (*VaccineInfo, error) {
	return r.scanInfo(r.pool.QueryRow(ctx,
		`SELECT `+vaccineInfoCols+` FROM vaccine_info WHERE cvx_code = $1`, cvxCode))
}

func (r *vaccineInfoRepoPG) List(ctx context.Context) ([]*VaccineInfo, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+vaccineInfoCols+` FROM vaccine_info ORDER BY cvx_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*VaccineInfo
	for rows.Next() {
		v, err := r.scanInfo(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}
