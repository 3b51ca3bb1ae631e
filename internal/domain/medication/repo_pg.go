package medication

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medai/medai/internal/platform/db"
	"github.com/medai/medai/pkg/pagination"
)

// -- PatientMedication --

type medicationRepoPG struct{ pool *pgxpool.Pool }

func NewPatientMedicationRepoPG(pool *pgxpool.Pool) PatientMedicationRepository {
	return &medicationRepoPG{pool: pool}
}

const medicationCols = `id, patient_id, drug_id, drug_name, dosage, dosage_unit`

func scanMedication(row pgx.Row) (*PatientMedication, error) {
	var m PatientMedication
	err := row.Scan(&m.ID, &m.PatientID, &m.DrugID, &m.DrugName, &m.Dosage, &m.DosageUnit)
	return &m, err
}

func (r *medicationRepoPG) Create(ctx context.Context, m *PatientMedication) error {
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patient_medication (patient_id, drug_id, drug_name, dosage, dosage_unit)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		m.PatientID, m.DrugID, m.DrugName, m.Dosage, m.DosageUnit,
	).Scan(&m.ID)
}

func (r *medicationRepoPG) GetByID(ctx context.Context, id int64) (*PatientMedication, error) {
	m, err := scanMedication(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+medicationCols+` FROM patient_medication WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFound(err, fmt.Sprintf("patient medication %d", id))
	}
	return m, nil
}

func (r *medicationRepoPG) Update(ctx context.Context, m *PatientMedication) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE patient_medication SET patient_id = $2, drug_id = $3, drug_name = $4, dosage = $5, dosage_unit = $6
		WHERE id = $1`,
		m.ID, m.PatientID, m.DrugID, m.DrugName, m.Dosage, m.DosageUnit)
	return err
}

func (r *medicationRepoPG) Delete(ctx context.Context, id int64) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM patient_medication WHERE id = $1`, id)
	return err
}

func (r *medicationRepoPG) List(ctx context.Context, f pagination.Filter, limit, offset int) ([]*PatientMedication, int, error) {
	q := db.Conn(ctx, r.pool)
	where, args := f.Where("")

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM patient_medication`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := q.Query(ctx, fmt.Sprintf(`SELECT %s FROM patient_medication%s ORDER BY patient_id, id LIMIT $%d OFFSET $%d`,
		medicationCols, where, n+1, n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectMedications(rows)
	return items, total, err
}

func (r *medicationRepoPG) ListByPatient(ctx context.Context, patientID int64) ([]*PatientMedication, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+medicationCols+` FROM patient_medication WHERE patient_id = $1 ORDER BY id`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMedications(rows)
}

func (r *medicationRepoPG) ListByDrug(ctx context.Context, drugID int64) ([]*PatientMedication, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+medicationCols+` FROM patient_medication WHERE drug_id = $1 ORDER BY id`, drugID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMedications(rows)
}

func collectMedications(rows pgx.Rows) ([]*PatientMedication, error) {
	var items []*PatientMedication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// -- Recommendation --

type recommendationRepoPG struct{ pool *pgxpool.Pool }

func NewRecommendationRepoPG(pool *pgxpool.Pool) RecommendationRepository {
	return &recommendationRepoPG{pool: pool}
}

const recommendationCols = `id, patient_id, time_of_reading, drug_id, dosage, dosage_unit, recommendation_date`

func scanRecommendation(row pgx.Row) (*Recommendation, error) {
	var r Recommendation
	err := row.Scan(&r.ID, &r.PatientID, &r.TimeOfReading, &r.DrugID, &r.Dosage, &r.DosageUnit, &r.RecommendationDate)
	return &r, err
}

func (r *recommendationRepoPG) Create(ctx context.Context, rec *Recommendation) error {
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO recommendation (patient_id, time_of_reading, drug_id, dosage, dosage_unit, recommendation_date)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
		RETURNING id, recommendation_date`,
		rec.PatientID, rec.TimeOfReading, rec.DrugID, rec.Dosage, rec.DosageUnit, rec.RecommendationDate,
	).Scan(&rec.ID, &rec.RecommendationDate)
}

func (r *recommendationRepoPG) GetByID(ctx context.Context, id int64) (*Recommendation, error) {
	rec, err := scanRecommendation(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+recommendationCols+` FROM recommendation WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFound(err, fmt.Sprintf("recommendation %d", id))
	}
	return rec, nil
}

func (r *recommendationRepoPG) Update(ctx context.Context, rec *Recommendation) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE recommendation SET patient_id = $2, time_of_reading = $3, drug_id = $4, dosage = $5,
			dosage_unit = $6, recommendation_date = $7
		WHERE id = $1`,
		rec.ID, rec.PatientID, rec.TimeOfReading, rec.DrugID, rec.Dosage, rec.DosageUnit, rec.RecommendationDate)
	return err
}

func (r *recommendationRepoPG) Delete(ctx context.Context, id int64) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM recommendation WHERE id = $1`, id)
	return err
}

func (r *recommendationRepoPG) List(ctx context.Context, f pagination.Filter, limit, offset int) ([]*Recommendation, int, error) {
	q := db.Conn(ctx, r.pool)
	where, args := f.Where("recommendation_date::date")

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM recommendation`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := q.Query(ctx, fmt.Sprintf(`SELECT %s FROM recommendation%s ORDER BY recommendation_date DESC, id LIMIT $%d OFFSET $%d`,
		recommendationCols, where, n+1, n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}

func (r *recommendationRepoPG) FindForDay(ctx context.Context, patientID, drugID int64, day time.Time, timeOfReading string) (*Recommendation, error) {
	rec, err := scanRecommendation(db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+recommendationCols+` FROM recommendation
		WHERE patient_id = $1 AND drug_id = $2 AND recommendation_date::date = $3
			AND COALESCE(time_of_reading, '') = $4
		ORDER BY id LIMIT 1`, patientID, drugID, day, timeOfReading))
	if err != nil {
		return nil, db.NotFound(err, fmt.Sprintf("recommendation of drug %d for patient %d on %s",
			drugID, patientID, day.Format("2006-01-02")))
	}
	return rec, nil
}
