package patient

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medai/medai/internal/platform/db"
	"github.com/medai/medai/pkg/pagination"
)

// -- Patient --

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

const patientCols = `id, name, birth_date, age, weight, height, hba1c, duration, ckd, cad, hld,
	patient_sex, creatine_mg_dl, medical_record_number, created_date`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.BirthDate, &p.Age, &p.Weight, &p.Height, &p.HbA1c, &p.Duration,
		&p.CKD, &p.CAD, &p.HLD, &p.PatientSex, &p.CreatineMgDl, &p.MedicalRecordNumber, &p.CreatedDate)
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patient (name, birth_date, age, weight, height, hba1c, duration, ckd, cad, hld,
			patient_sex, creatine_mg_dl, medical_record_number, created_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, 'M'), $12, $13, COALESCE($14, NOW()))
		RETURNING id, patient_sex, created_date`,
		p.Name, p.BirthDate, p.Age, p.Weight, p.Height, p.HbA1c, p.Duration, p.CKD, p.CAD, p.HLD,
		p.PatientSex, p.CreatineMgDl, p.MedicalRecordNumber, p.CreatedDate,
	).Scan(&p.ID, &p.PatientSex, &p.CreatedDate)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFound(err, fmt.Sprintf("patient %d", id))
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE patient SET name = $2, birth_date = $3, age = $4, weight = $5, height = $6, hba1c = $7,
			duration = $8, ckd = $9, cad = $10, hld = $11, patient_sex = $12, creatine_mg_dl = $13,
			medical_record_number = $14
		WHERE id = $1`,
		p.ID, p.Name, p.BirthDate, p.Age, p.Weight, p.Height, p.HbA1c, p.Duration, p.CKD, p.CAD, p.HLD,
		p.PatientSex, p.CreatineMgDl, p.MedicalRecordNumber)
	return err
}

func (r *patientRepoPG) Delete(ctx context.Context, id int64) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	return err
}

func (r *patientRepoPG) List(ctx context.Context, name string, limit, offset int) ([]*Patient, int, error) {
	q := db.Conn(ctx, r.pool)
	where, args := "", []interface{}{}
	if name != "" {
		where = ` WHERE name ILIKE $1`
		args = append(args, "%"+name+"%")
	}

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM patient`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := q.Query(ctx, fmt.Sprintf(`SELECT %s FROM patient%s ORDER BY id LIMIT $%d OFFSET $%d`,
		patientCols, where, n+1, n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

// -- PatientLab --

type patientLabRepoPG struct{ pool *pgxpool.Pool }

func NewPatientLabRepoPG(pool *pgxpool.Pool) PatientLabRepository {
	return &patientLabRepoPG{pool: pool}
}

const labCols = `id, patient_id, lab_name, lab_test_name, lab_test_code, lab_test_description, lab_date, lab_result`

func scanLab(row pgx.Row) (*PatientLab, error) {
	var l PatientLab
	err := row.Scan(&l.ID, &l.PatientID, &l.LabName, &l.LabTestName, &l.LabTestCode,
		&l.LabTestDescription, &l.LabDate, &l.LabResult)
	return &l, err
}

func (r *patientLabRepoPG) Create(ctx context.Context, l *PatientLab) error {
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patient_lab (patient_id, lab_name, lab_test_name, lab_test_code, lab_test_description,
			lab_date, lab_result)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, CURRENT_DATE), $7)
		RETURNING id, lab_date`,
		l.PatientID, l.LabName, l.LabTestName, l.LabTestCode, l.LabTestDescription, l.LabDate, l.LabResult,
	).Scan(&l.ID, &l.LabDate)
}

func (r *patientLabRepoPG) GetByID(ctx context.Context, id int64) (*PatientLab, error) {
	l, err := scanLab(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+labCols+` FROM patient_lab WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFound(err, fmt.Sprintf("patient lab %d", id))
	}
	return l, nil
}

func (r *patientLabRepoPG) Update(ctx context.Context, l *PatientLab) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE patient_lab SET patient_id = $2, lab_name = $3, lab_test_name = $4, lab_test_code = $5,
			lab_test_description = $6, lab_date = $7, lab_result = $8
		WHERE id = $1`,
		l.ID, l.PatientID, l.LabName, l.LabTestName, l.LabTestCode, l.LabTestDescription, l.LabDate, l.LabResult)
	return err
}

func (r *patientLabRepoPG) Delete(ctx context.Context, id int64) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM patient_lab WHERE id = $1`, id)
	return err
}

func (r *patientLabRepoPG) List(ctx context.Context, f pagination.Filter, limit, offset int) ([]*PatientLab, int, error) {
	q := db.Conn(ctx, r.pool)
	where, args := f.Where("lab_date")

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM patient_lab`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := q.Query(ctx, fmt.Sprintf(`SELECT %s FROM patient_lab%s ORDER BY lab_date DESC, id LIMIT $%d OFFSET $%d`,
		labCols, where, n+1, n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*PatientLab
	for rows.Next() {
		l, err := scanLab(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, l)
	}
	return items, total, rows.Err()
}
