package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/medai/medai/internal/domain/formulary"
	"github.com/medai/medai/internal/domain/glucose"
	"github.com/medai/medai/internal/domain/medication"
	"github.com/medai/medai/internal/domain/patient"
	"github.com/medai/medai/internal/platform/db"
	"github.com/medai/medai/pkg/pagination"
)

func sameDay(a, b time.Time) bool {
	return glucose.Day(a).Equal(glucose.Day(b))
}

func matches(f pagination.Filter, patientID int64, day *time.Time) bool {
	if f.PatientID != nil && *f.PatientID != patientID {
		return false
	}
	if f.Date != nil && (day == nil || !sameDay(*day, *f.Date)) {
		return false
	}
	return true
}

// -- patient --

type PatientRepo struct{ t *table }

func (r *PatientRepo) Create(_ context.Context, p *patient.Patient) error {
	if p.PatientSex == nil {
		m := "M"
		p.PatientSex = &m
	}
	if p.CreatedDate == nil {
		now := time.Now()
		p.CreatedDate = &now
	}
	r.t.insert(p)
	return nil
}

func (r *PatientRepo) GetByID(_ context.Context, id int64) (*patient.Patient, error) {
	return getAs[*patient.Patient](r.t, id)
}

func (r *PatientRepo) Update(_ context.Context, p *patient.Patient) error { return r.t.update(p) }

func (r *PatientRepo) Delete(_ context.Context, id int64) error {
	r.t.delete(id)
	return nil
}

func (r *PatientRepo) List(_ context.Context, name string, limit, offset int) ([]*patient.Patient, int, error) {
	name = strings.ToLower(name)
	items := scanAs(r.t, func(p *patient.Patient) bool {
		return name == "" || strings.Contains(strings.ToLower(p.Name), name)
	})
	items, total := page(items, limit, offset)
	return items, total, nil
}

type PatientLabRepo struct{ t *table }

func (r *PatientLabRepo) Create(_ context.Context, l *patient.PatientLab) error {
	r.t.insert(l)
	return nil
}

func (r *PatientLabRepo) GetByID(_ context.Context, id int64) (*patient.PatientLab, error) {
	return getAs[*patient.PatientLab](r.t, id)
}

func (r *PatientLabRepo) Update(_ context.Context, l *patient.PatientLab) error { return r.t.update(l) }

func (r *PatientLabRepo) Delete(_ context.Context, id int64) error {
	r.t.delete(id)
	return nil
}

func (r *PatientLabRepo) List(_ context.Context, f pagination.Filter, limit, offset int) ([]*patient.PatientLab, int, error) {
	items := scanAs(r.t, func(l *patient.PatientLab) bool { return matches(f, l.PatientID, l.LabDate) })
	items, total := page(items, limit, offset)
	return items, total, nil
}

// -- formulary --

type DrugUnitRepo struct {
	mu    sync.RWMutex
	units map[string]bool
}

func (r *DrugUnitRepo) Create(_ context.Context, u *formulary.DrugUnit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.units[u.UnitName] {
		return fmt.Errorf("drug unit %s already exists", u.UnitName)
	}
	r.units[u.UnitName] = true
	return nil
}

func (r *DrugUnitRepo) List(_ context.Context) ([]*formulary.DrugUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*formulary.DrugUnit, 0, len(r.units))
	for name := range r.units {
		out = append(out, &formulary.DrugUnit{UnitName: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnitName < out[j].UnitName })
	return out, nil
}

func (r *DrugUnitRepo) Delete(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.units, name)
	return nil
}

type DrugRepo struct{ t *table }

func (r *DrugRepo) Create(_ context.Context, d *formulary.Drug) error {
	r.t.insert(d)
	return nil
}

func (r *DrugRepo) GetByID(_ context.Context, id int64) (*formulary.Drug, error) {
	return getAs[*formulary.Drug](r.t, id)
}

func (r *DrugRepo) GetByName(_ context.Context, name string) (*formulary.Drug, error) {
	found := scanAs(r.t, func(d *formulary.Drug) bool { return strings.EqualFold(d.DrugName, name) })
	if len(found) == 0 {
		return nil, fmt.Errorf("drug %q: %w", name, db.ErrNotFound)
	}
	return found[0], nil
}

func (r *DrugRepo) Update(_ context.Context, d *formulary.Drug) error { return r.t.update(d) }

func (r *DrugRepo) Delete(_ context.Context, id int64) error {
	r.t.delete(id)
	return nil
}

func (r *DrugRepo) List(_ context.Context, limit, offset int) ([]*formulary.Drug, int, error) {
	items, total := page(scanAs[*formulary.Drug](r.t, nil), limit, offset)
	return items, total, nil
}

type DosageRepo struct{ t *table }

func (r *DosageRepo) Create(_ context.Context, d *formulary.Dosage) error {
	r.t.insert(d)
	return nil
}

func (r *DosageRepo) GetByID(_ context.Context, id int64) (*formulary.Dosage, error) {
	return getAs[*formulary.Dosage](r.t, id)
}

func (r *DosageRepo) Update(_ context.Context, d *formulary.Dosage) error { return r.t.update(d) }

func (r *DosageRepo) Delete(_ context.Context, id int64) error {
	r.t.delete(id)
	return nil
}

func (r *DosageRepo) List(_ context.Context, limit, offset int) ([]*formulary.Dosage, int, error) {
	items, total := page(scanAs[*formulary.Dosage](r.t, nil), limit, offset)
	return items, total, nil
}

func (r *DosageRepo) ListByDrug(_ context.Context, drugID int64) ([]*formulary.Dosage, error) {
	return scanAs(r.t, func(d *formulary.Dosage) bool { return d.DrugID == drugID }), nil
}

type ContraindicationRepo struct{ t *table }

func (r *ContraindicationRepo) Create(_ context.Context, c *formulary.Contraindication) error {
	r.t.insert(c)
	return nil
}

func (r *ContraindicationRepo) GetByID(_ context.Context, id int64) (*formulary.Contraindication, error) {
	return getAs[*formulary.Contraindication](r.t, id)
}

func (r *ContraindicationRepo) Update(_ context.Context, c *formulary.Contraindication) error {
	return r.t.update(c)
}

func (r *ContraindicationRepo) Delete(_ context.Context, id int64) error {
	r.t.delete(id)
	return nil
}

func (r *ContraindicationRepo) List(_ context.Context, limit, offset int) ([]*formulary.Contraindication, int, error) {
	items, total := page(scanAs[*formulary.Contraindication](r.t, nil), limit, offset)
	return items, total, nil
}

func (r *ContraindicationRepo) ListByDrug(_ context.Context, drugID int64) ([]*formulary.Contraindication, error) {
	return scanAs(r.t, func(c *formulary.Contraindication) bool {
		return c.DrugID1 == drugID || c.DrugID2 == drugID
	}), nil
}

// -- glucose --

type ReadingRepo struct{ t *table }

func (r *ReadingRepo) Create(_ context.Context, rd *glucose.Reading) error {
	r.t.insert(rd)
	return nil
}

func (r *ReadingRepo) GetByID(_ context.Context, id int64) (*glucose.Reading, error) {
	return getAs[*glucose.Reading](r.t, id)
}

func (r *ReadingRepo) Update(_ context.Context, rd *glucose.Reading) error { return r.t.update(rd) }

func (r *ReadingRepo) Delete(_ context.Context, id int64) error {
	r.t.delete(id)
	return nil
}

func (r *ReadingRepo) List(_ context.Context, f pagination.Filter, limit, offset int) ([]*glucose.Reading, int, error) {
	items := scanAs(r.t, func(rd *glucose.Reading) bool { return matches(f, rd.PatientID, &rd.ReadingDate) })
	items, total := page(items, limit, offset)
	return items, total, nil
}

type ReadingHistoryRepo struct{ t *table }

func (r *ReadingHistoryRepo) Create(_ context.Context, h *glucose.ReadingHistory) error {
	if dup := r.find(h.PatientID, h.ReadingDate); dup != nil {
		return fmt.Errorf("reading history for patient %d on %s already exists",
			h.PatientID, h.ReadingDate.Format(pagination.DateLayout))
	}
	r.t.insert(h)
	return nil
}

func (r *ReadingHistoryRepo) find(patientID int64, day time.Time) *glucose.ReadingHistory {
	found := scanAs(r.t, func(h *glucose.ReadingHistory) bool {
		return h.PatientID == patientID && sameDay(h.ReadingDate, day)
	})
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

func (r *ReadingHistoryRepo) GetByID(_ context.Context, id int64) (*glucose.ReadingHistory, error) {
	return getAs[*glucose.ReadingHistory](r.t, id)
}

func (r *ReadingHistoryRepo) GetByPatientDate(_ context.Context, patientID int64, day time.Time) (*glucose.ReadingHistory, error) {
	if h := r.find(patientID, day); h != nil {
		return h, nil
	}
	return nil, fmt.Errorf("reading history for patient %d: %w", patientID, db.ErrNotFound)
}

func (r *ReadingHistoryRepo) Update(_ context.Context, h *glucose.ReadingHistory) error {
	return r.t.update(h)
}

func (r *ReadingHistoryRepo) Delete(_ context.Context, id int64) error {
	r.t.delete(id)
	return nil
}

func (r *ReadingHistoryRepo) List(_ context.Context, f pagination.Filter, limit, offset int) ([]*glucose.ReadingHistory, int, error) {
	items := scanAs(r.t, func(h *glucose.ReadingHistory) bool { return matches(f, h.PatientID, &h.ReadingDate) })
	items, total := page(items, limit, offset)
	return items, total, nil
}

type InsulinRuleRepo struct{ t *table }

func (r *InsulinRuleRepo) Create(_ context.Context, ir *glucose.InsulinRule) error {
	r.t.insert(ir)
	return nil
}

func (r *InsulinRuleRepo) GetByID(_ context.Context, id int64) (*glucose.InsulinRule, error) {
	return getAs[*glucose.InsulinRule](r.t, id)
}

func (r *InsulinRuleRepo) Update(_ context.Context, ir *glucose.InsulinRule) error {
	return r.t.update(ir)
}

func (r *InsulinRuleRepo) Delete(_ context.Context, id int64) error {
	r.t.delete(id)
	return nil
}

func (r *InsulinRuleRepo) List(_ context.Context, limit, offset int) ([]*glucose.InsulinRule, int, error) {
	items, total := page(scanAs[*glucose.InsulinRule](r.t, nil), limit, offset)
	return items, total, nil
}

func (r *InsulinRuleRepo) ListAll(_ context.Context) ([]*glucose.InsulinRule, error) {
	return scanAs[*glucose.InsulinRule](r.t, nil), nil
}

type InsulinRepo struct{ t *table }

func (r *InsulinRepo) Create(_ context.Context, i *glucose.Insulin) error {
	r.t.insert(i)
	return nil
}

func (r *InsulinRepo) GetByID(_ context.Context, id int64) (*glucose.Insulin, error) {
	return getAs[*glucose.Insulin](r.t, id)
}

func (r *InsulinRepo) GetByPatientDateDrug(_ context.Context, patientID int64, day time.Time, drugID int64) (*glucose.Insulin, error) {
	found := scanAs(r.t, func(i *glucose.Insulin) bool {
		return i.PatientID == patientID && i.DrugType == drugID && sameDay(i.ReadingDate, day)
	})
	if len(found) == 0 {
		return nil, fmt.Errorf("insulin %d for patient %d: %w", drugID, patientID, db.ErrNotFound)
	}
	return found[0], nil
}

func (r *InsulinRepo) Update(_ context.Context, i *glucose.Insulin) error { return r.t.update(i) }

func (r *InsulinRepo) Delete(_ context.Context, id int64) error {
	r.t.delete(id)
	return nil
}

func (r *InsulinRepo) List(_ context.Context, f pagination.Filter, limit, offset int) ([]*glucose.Insulin, int, error) {
	items := scanAs(r.t, func(i *glucose.Insulin) bool { return matches(f, i.PatientID, &i.ReadingDate) })
	items, total := page(items, limit, offset)
	return items, total, nil
}

// -- medication --

type PatientMedicationRepo struct{ t *table }

func (r *PatientMedicationRepo) Create(_ context.Context, m *medication.PatientMedication) error {
	r.t.insert(m)
	return nil
}

func (r *PatientMedicationRepo) GetByID(_ context.Context, id int64) (*medication.PatientMedication, error) {
	return getAs[*medication.PatientMedication](r.t, id)
}

func (r *PatientMedicationRepo) Update(_ context.Context, m *medication.PatientMedication) error {
	return r.t.update(m)
}

func (r *PatientMedicationRepo) Delete(_ context.Context, id int64) error {
	r.t.delete(id)
	return nil
}

func (r *PatientMedicationRepo) List(_ context.Context, f pagination.Filter, limit, offset int) ([]*medication.PatientMedication, int, error) {
	items := scanAs(r.t, func(m *medication.PatientMedication) bool {
		return f.PatientID == nil || m.PatientID == *f.PatientID
	})
	items, total := page(items, limit, offset)
	return items, total, nil
}

func (r *PatientMedicationRepo) ListByPatient(_ context.Context, patientID int64) ([]*medication.PatientMedication, error) {
	return scanAs(r.t, func(m *medication.PatientMedication) bool { return m.PatientID == patientID }), nil
}

func (r *PatientMedicationRepo) ListByDrug(_ context.Context, drugID int64) ([]*medication.PatientMedication, error) {
	return scanAs(r.t, func(m *medication.PatientMedication) bool { return m.DrugID == drugID }), nil
}

type RecommendationRepo struct{ t *table }

func (r *RecommendationRepo) Create(_ context.Context, rec *medication.Recommendation) error {
	if rec.RecommendationDate == nil {
		now := time.Now()
		rec.RecommendationDate = &now
	}
	r.t.insert(rec)
	return nil
}

func (r *RecommendationRepo) GetByID(_ context.Context, id int64) (*medication.Recommendation, error) {
	return getAs[*medication.Recommendation](r.t, id)
}

func (r *RecommendationRepo) Update(_ context.Context, rec *medication.Recommendation) error {
	return r.t.update(rec)
}

func (r *RecommendationRepo) Delete(_ context.Context, id int64) error {
	r.t.delete(id)
	return nil
}

func (r *RecommendationRepo) List(_ context.Context, f pagination.Filter, limit, offset int) ([]*medication.Recommendation, int, error) {
	items := scanAs(r.t, func(rec *medication.Recommendation) bool {
		return matches(f, rec.PatientID, rec.RecommendationDate)
	})
	items, total := page(items, limit, offset)
	return items, total, nil
}

func (r *RecommendationRepo) FindForDay(_ context.Context, patientID, drugID int64, day time.Time, timeOfReading string) (*medication.Recommendation, error) {
	found := scanAs(r.t, func(rec *medication.Recommendation) bool {
		slot := ""
		if rec.TimeOfReading != nil {
			slot = *rec.TimeOfReading
		}
		return rec.PatientID == patientID && rec.DrugID != nil && *rec.DrugID == drugID &&
			rec.RecommendationDate != nil && sameDay(*rec.RecommendationDate, day) && slot == timeOfReading
	})
	if len(found) == 0 {
		return nil, fmt.Errorf("recommendation of drug %d for patient %d: %w", drugID, patientID, db.ErrNotFound)
	}
	return found[0], nil
}
