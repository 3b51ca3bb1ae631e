package glucose

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medai/medai/internal/platform/db"
	"github.com/medai/medai/pkg/pagination"
)

// -- Reading --

type readingRepoPG struct{ pool *pgxpool.Pool }

func NewReadingRepoPG(pool *pgxpool.Pool) ReadingRepository {
	return &readingRepoPG{pool: pool}
}

const readingCols = `id, patient_id, time_of_reading, reading_value, reading_date, notes`

func scanReading(row pgx.Row) (*Reading, error) {
	var r Reading
	err := row.Scan(&r.ID, &r.PatientID, &r.TimeOfReading, &r.ReadingValue, &r.ReadingDate, &r.Notes)
	return &r, err
}

func (r *readingRepoPG) Create(ctx context.Context, rd *Reading) error {
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO reading (patient_id, time_of_reading, reading_value, reading_date, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		rd.PatientID, rd.TimeOfReading, rd.ReadingValue, rd.ReadingDate, rd.Notes,
	).Scan(&rd.ID)
}

func (r *readingRepoPG) GetByID(ctx context.Context, id int64) (*Reading, error) {
	rd, err := scanReading(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+readingCols+` FROM reading WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFound(err, fmt.Sprintf("reading %d", id))
	}
	return rd, nil
}

func (r *readingRepoPG) Update(ctx context.Context, rd *Reading) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE reading SET patient_id = $2, time_of_reading = $3, reading_value = $4, reading_date = $5, notes = $6
		WHERE id = $1`,
		rd.ID, rd.PatientID, rd.TimeOfReading, rd.ReadingValue, rd.ReadingDate, rd.Notes)
	return err
}

func (r *readingRepoPG) Delete(ctx context.Context, id int64) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM reading WHERE id = $1`, id)
	return err
}

func (r *readingRepoPG) List(ctx context.Context, f pagination.Filter, limit, offset int) ([]*Reading, int, error) {
	q := db.Conn(ctx, r.pool)
	where, args := f.Where("reading_date")

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM reading`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := q.Query(ctx, fmt.Sprintf(`SELECT %s FROM reading%s ORDER BY reading_date DESC, id LIMIT $%d OFFSET $%d`,
		readingCols, where, n+1, n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Reading
	for rows.Next() {
		rd, err := scanReading(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rd)
	}
	return items, total, rows.Err()
}

// -- ReadingHistory --

type historyRepoPG struct{ pool *pgxpool.Pool }

func NewReadingHistoryRepoPG(pool *pgxpool.Pool) ReadingHistoryRepository {
	return &historyRepoPG{pool: pool}
}

const historyCols = `id, patient_id, reading_date, breakfast, lunch, dinner, bedtime, daily_mean, glycemic_status, notes_for_day`

func scanHistory(row pgx.Row) (*ReadingHistory, error) {
	var h ReadingHistory
	err := row.Scan(&h.ID, &h.PatientID, &h.ReadingDate, &h.Breakfast, &h.Lunch, &h.Dinner, &h.Bedtime,
		&h.DailyMean, &h.GlycemicStatus, &h.NotesForDay)
	return &h, err
}

func (r *historyRepoPG) Create(ctx context.Context, h *ReadingHistory) error {
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO reading_history (patient_id, reading_date, breakfast, lunch, dinner, bedtime,
			daily_mean, glycemic_status, notes_for_day)
		VALUES ($1, $2, COALESCE($3, 0), COALESCE($4, 0), COALESCE($5, 0), COALESCE($6, 0), $7, $8, $9)
		RETURNING id, breakfast, lunch, dinner, bedtime`,
		h.PatientID, h.ReadingDate, h.Breakfast, h.Lunch, h.Dinner, h.Bedtime,
		h.DailyMean, h.GlycemicStatus, h.NotesForDay,
	).Scan(&h.ID, &h.Breakfast, &h.Lunch, &h.Dinner, &h.Bedtime)
}

func (r *historyRepoPG) GetByID(ctx context.Context, id int64) (*ReadingHistory, error) {
	h, err := scanHistory(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+historyCols+` FROM reading_history WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFound(err, fmt.Sprintf("reading history %d", id))
	}
	return h, nil
}

func (r *historyRepoPG) GetByPatientDate(ctx context.Context, patientID int64, day time.Time) (*ReadingHistory, error) {
	h, err := scanHistory(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+historyCols+` FROM reading_history WHERE patient_id = $1 AND reading_date = $2`, patientID, day))
	if err != nil {
		return nil, db.NotFound(err, fmt.Sprintf("reading history for patient %d on %s", patientID, day.Format("2006-01-02")))
	}
	return h, nil
}

func (r *historyRepoPG) Update(ctx context.Context, h *ReadingHistory) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE reading_history SET patient_id = $2, reading_date = $3, breakfast = $4, lunch = $5, dinner = $6,
			bedtime = $7, daily_mean = $8, glycemic_status = $9, notes_for_day = $10
		WHERE id = $1`,
		h.ID, h.PatientID, h.ReadingDate, h.Breakfast, h.Lunch, h.Dinner, h.Bedtime,
		h.DailyMean, h.GlycemicStatus, h.NotesForDay)
	return err
}

func (r *historyRepoPG) Delete(ctx context.Context, id int64) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM reading_history WHERE id = $1`, id)
	return err
}

func (r *historyRepoPG) List(ctx context.Context, f pagination.Filter, limit, offset int) ([]*ReadingHistory, int, error) {
	q := db.Conn(ctx, r.pool)
	where, args := f.Where("reading_date")

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM reading_history`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := q.Query(ctx, fmt.Sprintf(`SELECT %s FROM reading_history%s ORDER BY reading_date DESC, id LIMIT $%d OFFSET $%d`,
		historyCols, where, n+1, n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ReadingHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, h)
	}
	return items, total, rows.Err()
}

// -- InsulinRule --

type insulinRuleRepoPG struct{ pool *pgxpool.Pool }

func NewInsulinRuleRepoPG(pool *pgxpool.Pool) InsulinRuleRepository {
	return &insulinRuleRepoPG{pool: pool}
}

const insulinRuleCols = `id, blood_sugar_reading, blood_sugar_level, glargine_before_dinner,
	lispro_before_breakfast, lispro_before_lunch, lispro_before_dinner`

func scanInsulinRule(row pgx.Row) (*InsulinRule, error) {
	var r InsulinRule
	err := row.Scan(&r.ID, &r.BloodSugarReading, &r.BloodSugarLevel, &r.GlargineBeforeDinner,
		&r.LisproBeforeBreakfast, &r.LisproBeforeLunch, &r.LisproBeforeDinner)
	return &r, err
}

func (r *insulinRuleRepoPG) Create(ctx context.Context, ir *InsulinRule) error {
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO insulin_rules (blood_sugar_reading, blood_sugar_level, glargine_before_dinner,
			lispro_before_breakfast, lispro_before_lunch, lispro_before_dinner)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		ir.BloodSugarReading, ir.BloodSugarLevel, ir.GlargineBeforeDinner,
		ir.LisproBeforeBreakfast, ir.LisproBeforeLunch, ir.LisproBeforeDinner,
	).Scan(&ir.ID)
}

func (r *insulinRuleRepoPG) GetByID(ctx context.Context, id int64) (*InsulinRule, error) {
	ir, err := scanInsulinRule(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+insulinRuleCols+` FROM insulin_rules WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFound(err, fmt.Sprintf("insulin rule %d", id))
	}
	return ir, nil
}

func (r *insulinRuleRepoPG) Update(ctx context.Context, ir *InsulinRule) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE insulin_rules SET blood_sugar_reading = $2, blood_sugar_level = $3, glargine_before_dinner = $4,
			lispro_before_breakfast = $5, lispro_before_lunch = $6, lispro_before_dinner = $7
		WHERE id = $1`,
		ir.ID, ir.BloodSugarReading, ir.BloodSugarLevel, ir.GlargineBeforeDinner,
		ir.LisproBeforeBreakfast, ir.LisproBeforeLunch, ir.LisproBeforeDinner)
	return err
}

func (r *insulinRuleRepoPG) Delete(ctx context.Context, id int64) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM insulin_rules WHERE id = $1`, id)
	return err
}

func (r *insulinRuleRepoPG) List(ctx context.Context, limit, offset int) ([]*InsulinRule, int, error) {
	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM insulin_rules`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `SELECT `+insulinRuleCols+` FROM insulin_rules ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectInsulinRules(rows)
	return items, total, err
}

func (r *insulinRuleRepoPG) ListAll(ctx context.Context) ([]*InsulinRule, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+insulinRuleCols+` FROM insulin_rules ORDER BY blood_sugar_reading, blood_sugar_level`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInsulinRules(rows)
}

func collectInsulinRules(rows pgx.Rows) ([]*InsulinRule, error) {
	var items []*InsulinRule
	for rows.Next() {
		ir, err := scanInsulinRule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, ir)
	}
	return items, rows.Err()
}

// -- Insulin --

type insulinRepoPG struct{ pool *pgxpool.Pool }

func NewInsulinRepoPG(pool *pgxpool.Pool) InsulinRepository {
	return &insulinRepoPG{pool: pool}
}

const insulinCols = `id, patient_id, drug_type, reading_date, breakfast, lunch, dinner, bedtime`

func scanInsulin(row pgx.Row) (*Insulin, error) {
	var i Insulin
	err := row.Scan(&i.ID, &i.PatientID, &i.DrugType, &i.ReadingDate, &i.Breakfast, &i.Lunch, &i.Dinner, &i.Bedtime)
	return &i, err
}

func (r *insulinRepoPG) Create(ctx context.Context, i *Insulin) error {
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO insulin (patient_id, drug_type, reading_date, breakfast, lunch, dinner, bedtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		i.PatientID, i.DrugType, i.ReadingDate, i.Breakfast, i.Lunch, i.Dinner, i.Bedtime,
	).Scan(&i.ID)
}

func (r *insulinRepoPG) GetByID(ctx context.Context, id int64) (*Insulin, error) {
	i, err := scanInsulin(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+insulinCols+` FROM insulin WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFound(err, fmt.Sprintf("insulin %d", id))
	}
	return i, nil
}

func (r *insulinRepoPG) GetByPatientDateDrug(ctx context.Context, patientID int64, day time.Time, drugID int64) (*Insulin, error) {
	i, err := scanInsulin(db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+insulinCols+` FROM insulin
		WHERE patient_id = $1 AND reading_date = $2 AND drug_type = $3
		ORDER BY id LIMIT 1`, patientID, day, drugID))
	if err != nil {
		return nil, db.NotFound(err, fmt.Sprintf("insulin %d for patient %d on %s", drugID, patientID, day.Format("2006-01-02")))
	}
	return i, nil
}

func (r *insulinRepoPG) Update(ctx context.Context, i *Insulin) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE insulin SET patient_id = $2, drug_type = $3, reading_date = $4, breakfast = $5, lunch = $6,
			dinner = $7, bedtime = $8
		WHERE id = $1`,
		i.ID, i.PatientID, i.DrugType, i.ReadingDate, i.Breakfast, i.Lunch, i.Dinner, i.Bedtime)
	return err
}

func (r *insulinRepoPG) Delete(ctx context.Context, id int64) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM insulin WHERE id = $1`, id)
	return err
}

func (r *insulinRepoPG) List(ctx context.Context, f pagination.Filter, limit, offset int) ([]*Insulin, int, error) {
	q := db.Conn(ctx, r.pool)
	where, args := f.Where("reading_date")

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM insulin`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := q.Query(ctx, fmt.Sprintf(`SELECT %s FROM insulin%s ORDER BY reading_date DESC, id LIMIT $%d OFFSET $%d`,
		insulinCols, where, n+1, n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Insulin
	for rows.Next() {
		i, err := scanInsulin(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, i)
	}
	return items, total, rows.Err()
}
