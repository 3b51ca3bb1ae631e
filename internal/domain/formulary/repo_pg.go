package formulary

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medai/medai/internal/platform/db"
)

// -- DrugUnit --

type drugUnitRepoPG struct{ pool *pgxpool.Pool }

func NewDrugUnitRepoPG(pool *pgxpool.Pool) DrugUnitRepository {
	return &drugUnitRepoPG{pool: pool}
}

func (r *drugUnitRepoPG) Create(ctx context.Context, u *DrugUnit) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `INSERT INTO drug_unit (unit_name) VALUES ($1)`, u.UnitName)
	return err
}

func (r *drugUnitRepoPG) List(ctx context.Context) ([]*DrugUnit, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT unit_name FROM drug_unit ORDER BY unit_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*DrugUnit
	for rows.Next() {
		var u DrugUnit
		if err := rows.Scan(&u.UnitName); err != nil {
			return nil, err
		}
		items = append(items, &u)
	}
	return items, rows.Err()
}

func (r *drugUnitRepoPG) Delete(ctx context.Context, name string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM drug_unit WHERE unit_name = $1`, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("drug unit %q: %w", name, db.ErrNotFound)
	}
	return nil
}

// -- Drug --

type drugRepoPG struct{ pool *pgxpool.Pool }

func NewDrugRepoPG(pool *pgxpool.Pool) DrugRepository {
	return &drugRepoPG{pool: pool}
}

const drugCols = `id, drug_name, dosage, dosage_unit, drug_type, manufacturer, side_effects`

func scanDrug(row pgx.Row) (*Drug, error) {
	var d Drug
	err := row.Scan(&d.ID, &d.DrugName, &d.Dosage, &d.DosageUnit, &d.DrugType, &d.Manufacturer, &d.SideEffects)
	return &d, err
}

func (r *drugRepoPG) Create(ctx context.Context, d *Drug) error {
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO drug (drug_name, dosage, dosage_unit, drug_type, manufacturer, side_effects)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		d.DrugName, d.Dosage, d.DosageUnit, d.DrugType, d.Manufacturer, d.SideEffects,
	).Scan(&d.ID)
}

func (r *drugRepoPG) GetByID(ctx context.Context, id int64) (*Drug, error) {
	d, err := scanDrug(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+drugCols+` FROM drug WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFound(err, fmt.Sprintf("drug %d", id))
	}
	return d, nil
}

func (r *drugRepoPG) GetByName(ctx context.Context, name string) (*Drug, error) {
	d, err := scanDrug(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+drugCols+` FROM drug WHERE lower(drug_name) = lower($1)`, name))
	if err != nil {
		return nil, db.NotFound(err, fmt.Sprintf("drug %q", name))
	}
	return d, nil
}

func (r *drugRepoPG) Update(ctx context.Context, d *Drug) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE drug SET drug_name = $2, dosage = $3, dosage_unit = $4, drug_type = $5,
			manufacturer = $6, side_effects = $7
		WHERE id = $1`,
		d.ID, d.DrugName, d.Dosage, d.DosageUnit, d.DrugType, d.Manufacturer, d.SideEffects)
	return err
}

func (r *drugRepoPG) Delete(ctx context.Context, id int64) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM drug WHERE id = $1`, id)
	return err
}

func (r *drugRepoPG) List(ctx context.Context, limit, offset int) ([]*Drug, int, error) {
	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM drug`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `SELECT `+drugCols+` FROM drug ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Drug
	for rows.Next() {
		d, err := scanDrug(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

// -- Dosage --

type dosageRepoPG struct{ pool *pgxpool.Pool }

func NewDosageRepoPG(pool *pgxpool.Pool) DosageRepository {
	return &dosageRepoPG{pool: pool}
}

const dosageCols = `id, drug_id, drug_name, drug_type, min_dose, max_dose, dosage_unit,
	min_age, max_age, min_weight, max_weight, min_creatine, max_creatine`

func scanDosage(row pgx.Row) (*Dosage, error) {
	var d Dosage
	err := row.Scan(&d.ID, &d.DrugID, &d.DrugName, &d.DrugType, &d.MinDose, &d.MaxDose, &d.DosageUnit,
		&d.MinAge, &d.MaxAge, &d.MinWeight, &d.MaxWeight, &d.MinCreatine, &d.MaxCreatine)
	return &d, err
}

func (r *dosageRepoPG) Create(ctx context.Context, d *Dosage) error {
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO dosage (drug_id, drug_name, drug_type, min_dose, max_dose, dosage_unit,
			min_age, max_age, min_weight, max_weight, min_creatine, max_creatine)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, 18), COALESCE($8, 105), $9, $10, $11, $12)
		RETURNING id, min_age, max_age`,
		d.DrugID, d.DrugName, d.DrugType, d.MinDose, d.MaxDose, d.DosageUnit,
		d.MinAge, d.MaxAge, d.MinWeight, d.MaxWeight, d.MinCreatine, d.MaxCreatine,
	).Scan(&d.ID, &d.MinAge, &d.MaxAge)
}

func (r *dosageRepoPG) GetByID(ctx context.Context, id int64) (*Dosage, error) {
	d, err := scanDosage(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+dosageCols+` FROM dosage WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFound(err, fmt.Sprintf("dosage %d", id))
	}
	return d, nil
}

func (r *dosageRepoPG) Update(ctx context.Context, d *Dosage) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE dosage SET drug_id = $2, drug_name = $3, drug_type = $4, min_dose = $5, max_dose = $6,
			dosage_unit = $7, min_age = $8, max_age = $9, min_weight = $10, max_weight = $11,
			min_creatine = $12, max_creatine = $13
		WHERE id = $1`,
		d.ID, d.DrugID, d.DrugName, d.DrugType, d.MinDose, d.MaxDose, d.DosageUnit,
		d.MinAge, d.MaxAge, d.MinWeight, d.MaxWeight, d.MinCreatine, d.MaxCreatine)
	return err
}

func (r *dosageRepoPG) Delete(ctx context.Context, id int64) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM dosage WHERE id = $1`, id)
	return err
}

func (r *dosageRepoPG) List(ctx context.Context, limit, offset int) ([]*Dosage, int, error) {
	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM dosage`).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.query(ctx, `SELECT `+dosageCols+` FROM dosage ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	return items, total, err
}

func (r *dosageRepoPG) ListByDrug(ctx context.Context, drugID int64) ([]*Dosage, error) {
	return r.query(ctx, `SELECT `+dosageCols+` FROM dosage WHERE drug_id = $1 ORDER BY id`, drugID)
}

func (r *dosageRepoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*Dosage, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Dosage
	for rows.Next() {
		d, err := scanDosage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

// -- Contraindication --

type contraindicationRepoPG struct{ pool *pgxpool.Pool }

func NewContraindicationRepoPG(pool *pgxpool.Pool) ContraindicationRepository {
	return &contraindicationRepoPG{pool: pool}
}

const contraindicationCols = `id, drug_id_1, drug_id_2, description`

func scanContraindication(row pgx.Row) (*Contraindication, error) {
	var c Contraindication
	err := row.Scan(&c.ID, &c.DrugID1, &c.DrugID2, &c.Description)
	return &c, err
}

func (r *contraindicationRepoPG) Create(ctx context.Context, c *Contraindication) error {
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO contraindication (drug_id_1, drug_id_2, description)
		VALUES ($1, $2, $3)
		RETURNING id`,
		c.DrugID1, c.DrugID2, c.Description,
	).Scan(&c.ID)
}

func (r *contraindicationRepoPG) GetByID(ctx context.Context, id int64) (*Contraindication, error) {
	c, err := scanContraindication(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+contraindicationCols+` FROM contraindication WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFound(err, fmt.Sprintf("contraindication %d", id))
	}
	return c, nil
}

func (r *contraindicationRepoPG) Update(ctx context.Context, c *Contraindication) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE contraindication SET drug_id_1 = $2, drug_id_2 = $3, description = $4
		WHERE id = $1`,
		c.ID, c.DrugID1, c.DrugID2, c.Description)
	return err
}

func (r *contraindicationRepoPG) Delete(ctx context.Context, id int64) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM contraindication WHERE id = $1`, id)
	return err
}

func (r *contraindicationRepoPG) List(ctx context.Context, limit, offset int) ([]*Contraindication, int, error) {
	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM contraindication`).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.query(ctx, `SELECT `+contraindicationCols+` FROM contraindication ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	return items, total, err
}

func (r *contraindicationRepoPG) ListByDrug(ctx context.Context, drugID int64) ([]*Contraindication, error) {
	return r.query(ctx, `SELECT `+contraindicationCols+` FROM contraindication
		WHERE drug_id_1 = $1 OR drug_id_2 = $1 ORDER BY id`, drugID)
}

func (r *contraindicationRepoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*Contraindication, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Contraindication
	for rows.Next() {
		c, err := scanContraindication(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
