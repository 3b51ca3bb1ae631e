package rules

import (
	"context"
	"errors"
	"time"

	"github.com/medai/medai/internal/domain/glucose"
	"github.com/medai/medai/internal/domain/medication"
	"github.com/medai/medai/internal/logic"
	"github.com/medai/medai/internal/platform/db"
)

// Insulin drug ids of the seed formulary.
const (
	GlargineDrugID int64 = 4
	LisproDrugID         = glucose.DefaultInsulinDrugID
)

var insulinUnit = "units"

func declareInsulin(bank *logic.RuleBank, d Deps) {
	bank.AfterFlushRowEvent(glucose.EntityReading, "insulin_sliding_scale", d.slidingScale)
}

// slidingScale applies the insulin rule matching a reading: the prandial
// Lispro dose goes into the day's insulin schedule, and Lispro and
// Glargine recommendations are upserted for the slot.
func (d Deps) slidingScale(ctx context.Context, lr *logic.LogicRow) error {
	if lr.IsDeleted() {
		return nil
	}
	if lr.IsUpdated() && !lr.AttrChanged("reading_value") && !lr.AttrChanged("time_of_reading") &&
		!lr.AttrChanged("reading_date") {
		return nil
	}
	r := lr.Row.(*glucose.Reading)
	if r.ReadingValue == nil {
		return nil
	}
	slot, ok := glucose.ParseSlot(r.TimeOfReading)
	if !ok {
		return nil
	}

	scale, err := d.InsulinRules.ListAll(ctx)
	if err != nil {
		return err
	}
	rule := glucose.MatchRule(scale, slot, *r.ReadingValue)
	if rule == nil {
		return nil
	}
	day := glucose.Day(r.ReadingDate)

	if lispro := rule.LisproFor(slot); lispro != nil {
		units := float64(*lispro)
		if err := d.upsertInsulin(ctx, lr.Session, r.PatientID, day, slot, units); err != nil {
			return err
		}
		if err := d.recommendInsulin(ctx, lr.Session, r.PatientID, LisproDrugID, day, slot, units); err != nil {
			return err
		}
	}
	if rule.GlargineBeforeDinner != nil {
		units := float64(*rule.GlargineBeforeDinner)
		if err := d.recommendInsulin(ctx, lr.Session, r.PatientID, GlargineDrugID, day, glucose.SlotDinner, units); err != nil {
			return err
		}
	}
	lr.Log("insulin sliding scale applied")
	return nil
}

func (d Deps) recommendInsulin(ctx context.Context, sess *logic.Session, patientID, drugID int64, day time.Time, slot string, units float64) error {
	unit := insulinUnit
	return d.upsertRecommendation(ctx, sess, &medication.Recommendation{
		PatientID:          patientID,
		DrugID:             &drugID,
		Dosage:             &units,
		DosageUnit:         &unit,
		RecommendationDate: &day,
	}, day, slot)
}

// upsertInsulin sets the slot dose in the patient's Lispro schedule for
// day.
func (d Deps) upsertInsulin(ctx context.Context, sess *logic.Session, patientID int64, day time.Time, slot string, units float64) error {
	same := func(row logic.Row) bool {
		i := row.(*glucose.Insulin)
		return i.PatientID == patientID && i.DrugType == LisproDrugID && i.ReadingDate.Equal(day)
	}
	if p := sess.FindPending(glucose.EntityInsulin, same); p != nil {
		p.(*glucose.Insulin).SetSlot(slot, &units)
		return nil
	}

	ins, err := d.Insulin.GetByPatientDateDrug(ctx, patientID, day, LisproDrugID)
	if errors.Is(err, db.ErrNotFound) {
		ins = &glucose.Insulin{PatientID: patientID, DrugType: LisproDrugID, ReadingDate: day}
		ins.SetSlot(slot, &units)
		return sess.Insert(ins)
	}
	if err != nil {
		return err
	}
	old := logic.Snapshot(ins)
	ins.SetSlot(slot, &units)
	return sess.Update(ins, old)
}
