package rules

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/medai/medai/internal/domain/formulary"
	"github.com/medai/medai/internal/domain/glucose"
	"github.com/medai/medai/internal/domain/medication"
	"github.com/medai/medai/internal/domain/patient"
	"github.com/medai/medai/internal/logic"
	"github.com/medai/medai/internal/platform/db"
)

func declareRecommendations(bank *logic.RuleBank, d Deps) {
	bank.AfterFlushRowEvent(glucose.EntityReadingHistory, "recommend_drugs", d.recommendDrugs)
}

// recommendDrugs upserts one daily recommendation per medication the
// patient takes, from the day's mean glucose.
func (d Deps) recommendDrugs(ctx context.Context, lr *logic.LogicRow) error {
	if lr.IsDeleted() {
		return nil
	}
	if lr.IsUpdated() && !lr.AttrChanged("daily_mean") {
		return nil
	}
	h := lr.Row.(*glucose.ReadingHistory)

	meds, err := d.Medications.ListByPatient(ctx, h.PatientID)
	if err != nil {
		return err
	}
	if len(meds) == 0 {
		return nil
	}
	parent, err := lr.Parent(ctx, patient.EntityPatient)
	if err != nil {
		return err
	}
	p := parent.(*patient.Patient)

	taking := make(map[int64]bool, len(meds))
	for _, m := range meds {
		taking[m.DrugID] = true
	}

	day := glucose.Day(h.ReadingDate)
	for _, m := range meds {
		dose, unit, err := d.dose(ctx, p, m, h.DailyMean, taking)
		if err != nil {
			return err
		}
		drugID := m.DrugID
		rec := &medication.Recommendation{
			PatientID:          h.PatientID,
			DrugID:             &drugID,
			Dosage:             &dose,
			DosageUnit:         unit,
			RecommendationDate: &day,
		}
		if err := d.upsertRecommendation(ctx, lr.Session, rec, day, ""); err != nil {
			return err
		}
	}
	lr.Log("drug recommendations updated")
	return nil
}

// dose derives the recommended dose of m. A drug contraindicated with
// another one the patient takes is held (0). Without an applicable dosage
// band the current dose is kept. Otherwise the dose moves a quarter of the
// band up when the mean is above target, down when below, and stays within
// the band.
func (d Deps) dose(ctx context.Context, p *patient.Patient, m *medication.PatientMedication, mean *float64, taking map[int64]bool) (float64, *string, error) {
	pairs, err := d.Contraindications.ListByDrug(ctx, m.DrugID)
	if err != nil {
		return 0, nil, err
	}
	for _, c := range pairs {
		if other := c.Other(m.DrugID); other != 0 && other != m.DrugID && taking[other] {
			return 0, m.DosageUnit, nil
		}
	}

	bands, err := d.Dosages.ListByDrug(ctx, m.DrugID)
	if err != nil {
		return 0, nil, err
	}
	var band *formulary.Dosage
	for _, b := range bands {
		if b.MinDose != nil && b.MaxDose != nil && b.Applies(p.Age, p.Weight, p.CreatineMgDl) {
			band = b
			break
		}
	}
	current := m.CurrentDose()
	if band == nil {
		return current, m.DosageUnit, nil
	}

	unit := band.DosageUnit
	if unit == nil {
		unit = m.DosageUnit
	}
	lo, hi := *band.MinDose, *band.MaxDose
	if current == 0 {
		current = lo
	}
	step := (hi - lo) / 4
	if mean != nil {
		switch {
		case *mean > glucose.TargetHigh:
			current += step
		case *mean < glucose.TargetLow:
			current -= step
		}
	}
	return math.Min(math.Max(current, lo), hi), unit, nil
}

// upsertRecommendation stores rec unless the patient already has one for
// the same drug, day and slot, in which case that one takes rec's dose.
func (d Deps) upsertRecommendation(ctx context.Context, sess *logic.Session, rec *medication.Recommendation, day time.Time, slot string) error {
	drugID := *rec.DrugID
	if slot != "" {
		rec.TimeOfReading = &slot
	}
	same := func(row logic.Row) bool {
		r := row.(*medication.Recommendation)
		return r.PatientID == rec.PatientID && r.DrugID != nil && *r.DrugID == drugID &&
			r.RecommendationDate != nil && glucose.Day(*r.RecommendationDate).Equal(day) &&
			deref(r.TimeOfReading) == slot
	}
	if p := sess.FindPending(medication.EntityRecommendation, same); p != nil {
		pr := p.(*medication.Recommendation)
		pr.Dosage, pr.DosageUnit = rec.Dosage, rec.DosageUnit
		return nil
	}

	existing, err := d.Recommendations.FindForDay(ctx, rec.PatientID, drugID, day, slot)
	if errors.Is(err, db.ErrNotFound) {
		return sess.Insert(rec)
	}
	if err != nil {
		return err
	}
	old := logic.Snapshot(existing)
	existing.Dosage, existing.DosageUnit = rec.Dosage, rec.DosageUnit
	return sess.Update(existing, old)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
