package memstore

import (
	"github.com/medai/medai/internal/domain/formulary"
	"github.com/medai/medai/internal/domain/glucose"
	"github.com/medai/medai/internal/domain/medication"
	"github.com/medai/medai/internal/domain/patient"
)

// Store groups one in-memory repository per entity.
type Store struct {
	Patients          *PatientRepo
	Labs              *PatientLabRepo
	Units             *DrugUnitRepo
	Drugs             *DrugRepo
	Dosages           *DosageRepo
	Contraindications *ContraindicationRepo
	Readings          *ReadingRepo
	History           *ReadingHistoryRepo
	InsulinRules      *InsulinRuleRepo
	Insulin           *InsulinRepo
	Medications       *PatientMedicationRepo
	Recommendations   *RecommendationRepo
}

func New() *Store {
	return &Store{
		Patients:          &PatientRepo{t: newTable("patient")},
		Labs:              &PatientLabRepo{t: newTable("patient lab")},
		Units:             &DrugUnitRepo{units: make(map[string]bool)},
		Drugs:             &DrugRepo{t: newTable("drug")},
		Dosages:           &DosageRepo{t: newTable("dosage")},
		Contraindications: &ContraindicationRepo{t: newTable("contraindication")},
		Readings:          &ReadingRepo{t: newTable("reading")},
		History:           &ReadingHistoryRepo{t: newTable("reading history")},
		InsulinRules:      &InsulinRuleRepo{t: newTable("insulin rule")},
		Insulin:           &InsulinRepo{t: newTable("insulin")},
		Medications:       &PatientMedicationRepo{t: newTable("patient medication")},
		Recommendations:   &RecommendationRepo{t: newTable("recommendation")},
	}
}

// Seed loads the reference formulary shipped with the database migrations.
func (s *Store) Seed() {
	for _, u := range []string{"mg", "units", "mcg", "ml"} {
		s.Units.units[u] = true
	}

	drugs := []struct {
		id         int64
		name, unit string
		kind       string
	}{
		{1, "Metformin", "mg", "oral"},
		{2, "Glimepiride", "mg", "oral"},
		{3, "Tradjenta", "mg", "oral"},
		{4, "Glargine", "units", "insulin"},
		{5, "Lispro", "units", "insulin"},
		{6, "Farxiga", "mg", "oral"},
		{7, "Ozempic", "mg", "injectable"},
	}
	names := make(map[int64]*formulary.Drug, len(drugs))
	for _, d := range drugs {
		drug := &formulary.Drug{ID: d.id, DrugName: d.name, DosageUnit: ptr(d.unit), DrugType: ptr(d.kind)}
		s.Drugs.t.insert(drug)
		names[d.id] = drug
	}

	bands := []struct {
		drug         int64
		min, max     float64
		minCr, maxCr *float64
	}{
		{1, 500, 2000, ptr(0.2), ptr(1.5)},
		{2, 1, 8, nil, nil},
		{3, 5, 5, nil, nil},
		{6, 5, 10, ptr(0.2), ptr(2.0)},
		{7, 0.25, 2, nil, nil},
	}
	for _, b := range bands {
		d := names[b.drug]
		s.Dosages.t.insert(&formulary.Dosage{
			DrugID:      b.drug,
			DrugName:    ptr(d.DrugName),
			DrugType:    d.DrugType,
			MinDose:     ptr(b.min),
			MaxDose:     ptr(b.max),
			DosageUnit:  d.DosageUnit,
			MinAge:      ptr(int64(18)),
			MaxAge:      ptr(int64(105)),
			MinCreatine: b.minCr,
			MaxCreatine: b.maxCr,
		})
	}

	s.Contraindications.t.insert(&formulary.Contraindication{
		DrugID1:     2,
		DrugID2:     5,
		Description: ptr("Sulfonylurea with prandial insulin raises hypoglycemia risk"),
	})
}

func ptr[T any](v T) *T { return &v }

var (
	_ patient.PatientRepository              = (*PatientRepo)(nil)
	_ patient.PatientLabRepository           = (*PatientLabRepo)(nil)
	_ formulary.DrugUnitRepository           = (*DrugUnitRepo)(nil)
	_ formulary.DrugRepository               = (*DrugRepo)(nil)
	_ formulary.DosageRepository             = (*DosageRepo)(nil)
	_ formulary.ContraindicationRepository   = (*ContraindicationRepo)(nil)
	_ glucose.ReadingRepository              = (*ReadingRepo)(nil)
	_ glucose.ReadingHistoryRepository       = (*ReadingHistoryRepo)(nil)
	_ glucose.InsulinRuleRepository          = (*InsulinRuleRepo)(nil)
	_ glucose.InsulinRepository              = (*InsulinRepo)(nil)
	_ medication.PatientMedicationRepository = (*PatientMedicationRepo)(nil)
	_ medication.RecommendationRepository    = (*RecommendationRepo)(nil)
)
