package rules

import (
	"context"
	"errors"

	"github.com/medai/medai/internal/domain/glucose"
	"github.com/medai/medai/internal/logic"
	"github.com/medai/medai/internal/platform/db"
)

func declareHistory(bank *logic.RuleBank, d Deps) {
	bank.Formula(logic.Formula{
		Entity:    glucose.EntityReadingHistory,
		Attribute: "daily_mean",
		DependsOn: []string{"breakfast", "lunch", "dinner", "bedtime"},
		Calc: func(_ context.Context, lr *logic.LogicRow) (any, error) {
			return lr.Row.(*glucose.ReadingHistory).Mean(), nil
		},
	})
	bank.Formula(logic.Formula{
		Entity:    glucose.EntityReadingHistory,
		Attribute: "glycemic_status",
		DependsOn: []string{"daily_mean"},
		Calc: func(_ context.Context, lr *logic.LogicRow) (any, error) {
			return glucose.Status(lr.Row.(*glucose.ReadingHistory).DailyMean), nil
		},
	})

	bank.CommitRowEvent(glucose.EntityReading, "reading_history", d.upsertHistory)
}

// upsertHistory records a committed reading in the patient's history row
// for the reading date. Deleting a reading leaves the history as it was.
func (d Deps) upsertHistory(ctx context.Context, lr *logic.LogicRow) error {
	if lr.IsDeleted() {
		return nil
	}
	if lr.IsUpdated() && !lr.AttrChanged("reading_value") && !lr.AttrChanged("time_of_reading") &&
		!lr.AttrChanged("reading_date") && !lr.AttrChanged("patient_id") {
		return nil
	}
	r := lr.Row.(*glucose.Reading)
	slot, ok := glucose.ParseSlot(r.TimeOfReading)
	if !ok {
		return nil
	}
	day := glucose.Day(r.ReadingDate)

	sameDay := func(row logic.Row) bool {
		h := row.(*glucose.ReadingHistory)
		return h.PatientID == r.PatientID && h.ReadingDate.Equal(day)
	}
	if p := lr.Session.FindPending(glucose.EntityReadingHistory, sameDay); p != nil {
		p.(*glucose.ReadingHistory).SetSlot(slot, r.ReadingValue)
		return nil
	}

	h, err := d.History.GetByPatientDate(ctx, r.PatientID, day)
	if errors.Is(err, db.ErrNotFound) {
		h = &glucose.ReadingHistory{PatientID: r.PatientID, ReadingDate: day}
		h.SetSlot(slot, r.ReadingValue)
		lr.Log("reading history created")
		return lr.Session.Insert(h)
	}
	if err != nil {
		return err
	}
	old := logic.Snapshot(h)
	h.SetSlot(slot, r.ReadingValue)
	return lr.Session.Update(h, old)
}
