// Package rules declares the clinic's business logic on a logic.RuleBank:
// creation stamping, patient age and eligibility, formulary copies,
// daily glucose history, drug recommendations and the insulin sliding
// scale.
package rules

import (
	"context"
	"time"

	"github.com/medai/medai/internal/domain/formulary"
	"github.com/medai/medai/internal/domain/glucose"
	"github.com/medai/medai/internal/domain/medication"
	"github.com/medai/medai/internal/domain/patient"
	"github.com/medai/medai/internal/logic"
)

// Deps are the repositories rule callbacks read through. Reads made with
// the callback context join the session transaction.
type Deps struct {
	Patients          patient.PatientRepository
	Drugs             formulary.DrugRepository
	Dosages           formulary.DosageRepository
	Contraindications formulary.ContraindicationRepository
	History           glucose.ReadingHistoryRepository
	InsulinRules      glucose.InsulinRuleRepository
	Insulin           glucose.InsulinRepository
	Medications       medication.PatientMedicationRepository
	Recommendations   medication.RecommendationRepository

	// Now defaults to time.Now.
	Now func() time.Time
}

type Options struct {
	// StrictRanges enables the clinical plausibility checks on readings
	// and patient vitals.
	StrictRanges bool
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// NewBank returns a rule bank with every entity model and rule declared.
func NewBank(d Deps, opts Options) *logic.RuleBank {
	bank := logic.NewRuleBank()
	Declare(bank, d, opts)
	return bank
}

// Declare registers the models, relationships and rules on bank.
func Declare(bank *logic.RuleBank, d Deps, opts Options) {
	bank.Model(
		&patient.Patient{}, &patient.PatientLab{},
		&formulary.DrugUnit{}, &formulary.Drug{}, &formulary.Dosage{}, &formulary.Contraindication{},
		&glucose.Reading{}, &glucose.ReadingHistory{}, &glucose.InsulinRule{}, &glucose.Insulin{},
		&medication.PatientMedication{}, &medication.Recommendation{},
	)
	declareRelationships(bank, d)

	bank.EarlyRowEventAllClasses("stamp_creation", d.stamp)

	bank.Constraint(logic.Constraint{
		Entity:    formulary.EntityContraindication,
		Name:      "distinct_drugs",
		DependsOn: []string{"drug_id_1", "drug_id_2"},
		Check: func(lr *logic.LogicRow) bool {
			c := lr.Row.(*formulary.Contraindication)
			return c.DrugID1 != c.DrugID2
		},
		ErrorMsg: "Drug_1 and Drug_2 must be different",
	})

	bank.Formula(logic.Formula{
		Entity:    patient.EntityPatient,
		Attribute: "age",
		DependsOn: []string{"birth_date"},
		Calc: func(_ context.Context, lr *logic.LogicRow) (any, error) {
			return patient.AgeOn(lr.Row.(*patient.Patient).BirthDate, d.now()), nil
		},
	})
	// an unknown age is not an adult
	bank.Constraint(logic.Constraint{
		Entity:    patient.EntityPatient,
		Name:      "adult",
		DependsOn: []string{"age"},
		Check: func(lr *logic.LogicRow) bool {
			age := lr.Row.(*patient.Patient).Age
			return age != nil && *age >= 18
		},
		ErrorMsg: "Patient must be 18 or older",
	})

	bank.Copy(logic.Copy{Entity: formulary.EntityDosage, Attribute: "drug_name", Parent: formulary.EntityDrug, ParentAttribute: "drug_name"})
	bank.Copy(logic.Copy{Entity: formulary.EntityDosage, Attribute: "drug_type", Parent: formulary.EntityDrug, ParentAttribute: "drug_type"})

	// Unlike the dosage copies, a medication's drug name follows renames.
	bank.Formula(logic.Formula{
		Entity:    medication.EntityPatientMedication,
		Attribute: "drug_name",
		DependsOn: []string{"drug_id", "Drug.drug_name"},
		Calc: func(ctx context.Context, lr *logic.LogicRow) (any, error) {
			p, err := lr.Parent(ctx, formulary.EntityDrug)
			if err != nil {
				return nil, err
			}
			return p.(*formulary.Drug).DrugName, nil
		},
	})

	bank.Constraint(logic.Constraint{
		Entity:    glucose.EntityReading,
		Name:      "time_of_reading",
		DependsOn: []string{"time_of_reading"},
		Check: func(lr *logic.LogicRow) bool {
			_, ok := glucose.ParseSlot(lr.Row.(*glucose.Reading).TimeOfReading)
			return ok
		},
		ErrorMsg: "Unknown time of reading {time_of_reading}: want breakfast, lunch, dinner or bedtime",
	})

	declareHistory(bank, d)
	declareRecommendations(bank, d)
	declareInsulin(bank, d)

	if opts.StrictRanges {
		declareRanges(bank)
	}
}

func declareRelationships(bank *logic.RuleBank, d Deps) {
	bank.Relationship(logic.Relationship{
		Parent:     formulary.EntityDrug,
		Child:      formulary.EntityDosage,
		ForeignKey: "drug_id",
		LoadParent: func(ctx context.Context, child logic.Row) (logic.Row, error) {
			return d.Drugs.GetByID(ctx, child.(*formulary.Dosage).DrugID)
		},
		LoadChildren: func(ctx context.Context, parent logic.Row) ([]logic.Row, error) {
			rows, err := d.Dosages.ListByDrug(ctx, parent.PrimaryKey())
			return asRows(rows), err
		},
	})
	bank.Relationship(logic.Relationship{
		Parent:     formulary.EntityDrug,
		Child:      medication.EntityPatientMedication,
		ForeignKey: "drug_id",
		LoadParent: func(ctx context.Context, child logic.Row) (logic.Row, error) {
			return d.Drugs.GetByID(ctx, child.(*medication.PatientMedication).DrugID)
		},
		LoadChildren: func(ctx context.Context, parent logic.Row) ([]logic.Row, error) {
			rows, err := d.Medications.ListByDrug(ctx, parent.PrimaryKey())
			return asRows(rows), err
		},
	})
	bank.Relationship(logic.Relationship{
		Parent:     patient.EntityPatient,
		Child:      glucose.EntityReadingHistory,
		ForeignKey: "patient_id",
		LoadParent: func(ctx context.Context, child logic.Row) (logic.Row, error) {
			return d.Patients.GetByID(ctx, child.(*glucose.ReadingHistory).PatientID)
		},
	})
}

func asRows[T logic.Row](in []T) []logic.Row {
	out := make([]logic.Row, len(in))
	for i, r := range in {
		out[i] = r
	}
	return out
}

// stamp fills creation timestamps left unset on insert.
func (d Deps) stamp(_ context.Context, lr *logic.LogicRow) error {
	if !lr.IsInserted() {
		return nil
	}
	for _, attr := range []string{"created_date", "recommendation_date"} {
		if !logic.HasAttribute(lr.Row, attr) || lr.Get(attr) != nil {
			continue
		}
		if err := logic.Set(lr.Row, attr, d.now()); err != nil {
			return err
		}
		lr.Log("stamped " + attr)
	}
	return nil
}
