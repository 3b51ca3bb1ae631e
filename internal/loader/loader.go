// Package loader bulk-loads patients and insulin sliding-scale rules from
// CSV exports. Every row goes through the rule engine, so derived history
// and recommendations are produced as for API writes.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/medai/medai/internal/domain/formulary"
	"github.com/medai/medai/internal/domain/glucose"
	"github.com/medai/medai/internal/domain/medication"
	"github.com/medai/medai/internal/domain/patient"
	"github.com/medai/medai/internal/logic"
	"github.com/medai/medai/internal/platform/db"
)

// Format selects the patient CSV layout.
type Format string

const (
	// FormatFull has imperial vitals and one "Blood sugar before ..."
	// column per slot, loaded as readings.
	FormatFull Format = "full"
	// FormatTen has short headers and fasting values ("FBS bb") loaded as
	// a ready-made reading history.
	FormatTen Format = "ten"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatFull:
		return FormatFull, nil
	case FormatTen:
		return FormatTen, nil
	}
	return "", fmt.Errorf("unknown patient csv format %q: want full or ten", s)
}

type layout struct {
	weight, height, hba1c string
	slots                 map[string]string
}

var layouts = map[Format]layout{
	FormatFull: {
		weight: "Weight (lbs)",
		height: "Height (inches)",
		hba1c:  "HbA1c %",
		slots: map[string]string{
			glucose.SlotBreakfast: "Blood sugar before breakfast",
			glucose.SlotLunch:     "Blood sugar before lunch",
			glucose.SlotDinner:    "Blood sugar before dinner",
			glucose.SlotBedtime:   "Blood sugar before bed time",
		},
	},
	FormatTen: {
		weight: "Weight",
		height: "Height",
		hba1c:  "A1c",
		slots: map[string]string{
			glucose.SlotBreakfast: "FBS bb",
			glucose.SlotLunch:     "FBS bl",
			glucose.SlotDinner:    "FBS bd",
			glucose.SlotBedtime:   "FBS bbd",
		},
	},
}

// Patient files carry one dose column per formulary drug, named after it.
var drugColumns = []string{"Metformin", "Glimepiride", "Tradjenta", "Glargine", "Lispro", "Farxiga", "Ozempic"}

const medicationUnit = "mg"

type RowError struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

// Result summarizes a load. Skipped rows lack the key columns; rows in
// Errors failed to parse or were rejected by the rules.
type Result struct {
	Loaded  int        `json:"loaded"`
	Skipped int        `json:"skipped"`
	Errors  []RowError `json:"errors,omitempty"`
}

func (r *Result) fail(log zerolog.Logger, line int, err error) {
	log.Warn().Int("line", line).Err(err).Msg("csv row rejected")
	r.Errors = append(r.Errors, RowError{Line: line, Error: err.Error()})
}

type Loader struct {
	engine *logic.Engine
	drugs  formulary.DrugRepository
	log    zerolog.Logger
	now    func() time.Time
}

func New(engine *logic.Engine, drugs formulary.DrugRepository, log zerolog.Logger) *Loader {
	return &Loader{
		engine: engine,
		drugs:  drugs,
		log:    log.With().Str("component", "loader").Logger(),
		now:    time.Now,
	}
}

// Patients loads a patient file. Each row is one logic session holding
// the patient, its medications and its glucose values; a failing row is
// rolled back and reported without stopping the load.
func (l *Loader) Patients(ctx context.Context, r io.Reader, f Format) (*Result, error) {
	lay, ok := layouts[f]
	if !ok {
		return nil, fmt.Errorf("unknown patient csv format %q", f)
	}
	t, err := readTable(r)
	if err != nil {
		return nil, err
	}
	if err := t.require("Patient Id", "Age"); err != nil {
		return nil, err
	}

	drugIDs := make(map[string]int64)
	res := &Result{}
	for _, rec := range t.records() {
		if rec.str("Patient Id") == "" || rec.str("Age") == "" {
			res.Skipped++
			continue
		}
		p, err := l.patientFrom(rec, lay)
		if err != nil {
			res.fail(l.log, rec.Line, err)
			continue
		}
		meds, err := l.medicationsFrom(ctx, rec, drugIDs)
		if err != nil {
			res.fail(l.log, rec.Line, err)
			continue
		}
		values := make(map[string]*float64, len(lay.slots))
		for slot, col := range lay.slots {
			if values[slot], err = rec.float(col); err != nil {
				break
			}
		}
		if err != nil {
			res.fail(l.log, rec.Line, err)
			continue
		}

		err = l.engine.Run(ctx, func(sess *logic.Session) error {
			if err := sess.Insert(p); err != nil {
				return err
			}
			if err := sess.Flush(); err != nil {
				return err
			}
			for _, m := range meds {
				m.PatientID = p.ID
				if err := sess.Insert(m); err != nil {
					return err
				}
			}
			return l.queueGlucose(sess, f, p.ID, values)
		})
		if err != nil {
			res.fail(l.log, rec.Line, err)
			continue
		}
		res.Loaded++
	}
	l.log.Info().
		Str("format", string(f)).
		Int("loaded", res.Loaded).
		Int("skipped", res.Skipped).
		Int("errors", len(res.Errors)).
		Msg("patients loaded")
	return res, nil
}

func (l *Loader) patientFrom(rec record, lay layout) (*patient.Patient, error) {
	age, err := rec.int("Age")
	if err != nil {
		return nil, err
	}
	id := rec.str("Patient Id")
	birth := l.now().AddDate(-int(*age), 0, 0)
	name := "Patient-" + id
	mrn := "MRN" + id
	p := &patient.Patient{
		Name:                name,
		BirthDate:           &birth,
		MedicalRecordNumber: &mrn,
	}
	switch rec.str("Gender") {
	case "":
	case "1", "1.0", "M", "m":
		sex := "M"
		p.PatientSex = &sex
	default:
		sex := "F"
		p.PatientSex = &sex
	}

	floats := []struct {
		col string
		dst **float64
	}{
		{lay.weight, &p.Weight},
		{lay.hba1c, &p.HbA1c},
		{"Creatinine", &p.CreatineMgDl},
	}
	for _, c := range floats {
		if *c.dst, err = rec.float(c.col); err != nil {
			return nil, err
		}
	}
	ints := []struct {
		col string
		dst **int64
	}{
		{lay.height, &p.Height},
		{"Duration", &p.Duration},
		{"CKD", &p.CKD},
		{"CAD", &p.CAD},
		{"HLD", &p.HLD},
	}
	for _, c := range ints {
		if *c.dst, err = rec.int(c.col); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (l *Loader) medicationsFrom(ctx context.Context, rec record, drugIDs map[string]int64) ([]*medication.PatientMedication, error) {
	var meds []*medication.PatientMedication
	for _, name := range drugColumns {
		dose, err := rec.float(name)
		if err != nil {
			return nil, err
		}
		if dose == nil || *dose == 0 {
			continue
		}
		id, ok := drugIDs[name]
		if !ok {
			d, err := l.drugs.GetByName(ctx, name)
			if errors.Is(err, db.ErrNotFound) {
				return nil, fmt.Errorf("drug %s is not in the formulary", name)
			}
			if err != nil {
				return nil, err
			}
			id = d.ID
			drugIDs[name] = id
		}
		unit := medicationUnit
		meds = append(meds, &medication.PatientMedication{DrugID: id, Dosage: dose, DosageUnit: &unit})
	}
	return meds, nil
}

// queueGlucose adds the row's glucose values. The full format records
// readings and lets the rules build the history; the ten format carries
// the history itself.
func (l *Loader) queueGlucose(sess *logic.Session, f Format, patientID int64, values map[string]*float64) error {
	day := glucose.Day(l.now())
	if f == FormatTen {
		h := &glucose.ReadingHistory{PatientID: patientID, ReadingDate: day}
		seen := false
		for slot, v := range values {
			if v != nil {
				h.SetSlot(slot, v)
				seen = true
			}
		}
		if !seen {
			return nil
		}
		return sess.Insert(h)
	}
	for _, slot := range glucose.Slots {
		v := values[slot]
		if v == nil {
			continue
		}
		err := sess.Insert(&glucose.Reading{
			PatientID:     patientID,
			TimeOfReading: slot,
			ReadingValue:  v,
			ReadingDate:   day,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// InsulinRules loads a sliding-scale file. Rows without a blood sugar
// level are skipped and blank doses are stored as NULL.
func (l *Loader) InsulinRules(ctx context.Context, r io.Reader) (*Result, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, err
	}
	if err := t.require("Blood_Sugar_Level", "Blood Sugar Reading time"); err != nil {
		return nil, err
	}

	res := &Result{}
	for _, rec := range t.records() {
		if rec.str("Blood_Sugar_Level") == "" {
			res.Skipped++
			continue
		}
		rule, err := insulinRuleFrom(rec)
		if err != nil {
			res.fail(l.log, rec.Line, err)
			continue
		}
		err = l.engine.Run(ctx, func(sess *logic.Session) error {
			return sess.Insert(rule)
		})
		if err != nil {
			res.fail(l.log, rec.Line, err)
			continue
		}
		res.Loaded++
	}
	l.log.Info().
		Int("loaded", res.Loaded).
		Int("skipped", res.Skipped).
		Int("errors", len(res.Errors)).
		Msg("insulin rules loaded")
	return res, nil
}

func insulinRuleFrom(rec record) (*glucose.InsulinRule, error) {
	slot := rec.str("Blood Sugar Reading time")
	if _, ok := glucose.NormalizeSlot(slot); !ok {
		return nil, fmt.Errorf("unknown blood sugar reading time %q", slot)
	}
	rule := &glucose.InsulinRule{BloodSugarReading: &slot}
	cols := []struct {
		col string
		dst **int64
	}{
		{"Blood_Sugar_Level", &rule.BloodSugarLevel},
		{"Glargine_Before_Bedtime (mg)", &rule.GlargineBeforeDinner},
		{"Lispro_Before_Breakfast (mg)", &rule.LisproBeforeBreakfast},
		{"Lispro_Before_Lunch (mg)", &rule.LisproBeforeLunch},
		{"Lispro_Before_Dinner (mg)", &rule.LisproBeforeDinner},
	}
	var err error
	for _, c := range cols {
		if *c.dst, err = rec.int(c.col); err != nil {
			return nil, err
		}
	}
	return rule, nil
}
