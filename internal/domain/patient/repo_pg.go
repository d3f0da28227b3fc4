package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const patientCols = `id, first_name, last_name, gender, dob, created_at, updated_at`

func (r *repoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Gender, &p.DOB, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) CreatePatient(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Gender = NormalizeGender(p.Gender)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patient (id, first_name, last_name, gender, dob)
		VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.FirstName, p.LastName, p.Gender, p.DOB.Time())
	return err
}

func (r *repoPG) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *repoPG) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+patientCols+` FROM patient ORDER BY created_at LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

const doseCols = `id, patient_id, vaccine_code, cvx_code, date_administered, evaluation_status, created_at`

func (r *repoPG) AddDose(ctx context.Context, d *VaccineDose) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO vaccine_dose (id, patient_id, vaccine_code, cvx_code, date_administered)
		VALUES ($1, $2, $3, $4, $5)`,
		d.ID, d.PatientID, d.VaccineCode, d.CVXCode, d.DateAdministered.Time())
	return err
}

func (r *repoPG) ListDoses(ctx context.Context, patientID uuid.UUID) ([]*VaccineDose, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+doseCols+` FROM vaccine_dose
		WHERE patient_id = $1
		ORDER BY date_administered, created_at`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*VaccineDose
	for rows.Next() {
		var d VaccineDose
		if err := rows.Scan(&d.ID, &d.PatientID, &d.VaccineCode, &d.CVXCode,
			&d.DateAdministered, &d.EvaluationStatus, &d.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &d)
	}
	return items, rows.Err()
}

func (r *repoPG) SetDoseStatus(ctx context.Context, doseID uuid.UUID, status *string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE vaccine_dose SET evaluation_status = $2 WHERE id = $1`, doseID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
