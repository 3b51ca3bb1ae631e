package medication

import "time"

const (
	EntityPatientMedication = "PatientMedication"
	EntityRecommendation    = "Recommendation"
)

// PatientMedication is a drug a patient is currently taking.
type PatientMedication struct {
	ID         int64    `db:"id" json:"id"`
	PatientID  int64    `db:"patient_id" json:"patient_id"`
	DrugID     int64    `db:"drug_id" json:"drug_id"`
	DrugName   *string  `db:"drug_name" json:"drug_name,omitempty"`
	Dosage     *float64 `db:"dosage" json:"dosage,omitempty"`
	DosageUnit *string  `db:"dosage_unit" json:"dosage_unit,omitempty"`
}

func (m *PatientMedication) Entity() string         { return EntityPatientMedication }
func (m *PatientMedication) PrimaryKey() int64      { return m.ID }
func (m *PatientMedication) SetPrimaryKey(id int64) { m.ID = id }

// CurrentDose returns the prescribed dose, or 0 when none is recorded.
func (m *PatientMedication) CurrentDose() float64 {
	if m.Dosage == nil {
		return 0
	}
	return *m.Dosage
}

// Recommendation is a suggested dose of a drug for a patient at one meal
// slot of one day. A zero dosage means hold the drug.
type Recommendation struct {
	ID                 int64      `db:"id" json:"id"`
	PatientID          int64      `db:"patient_id" json:"patient_id"`
	TimeOfReading      *string    `db:"time_of_reading" json:"time_of_reading,omitempty"`
	DrugID             *int64     `db:"drug_id" json:"drug_id,omitempty"`
	Dosage             *float64   `db:"dosage" json:"dosage,omitempty"`
	DosageUnit         *string    `db:"dosage_unit" json:"dosage_unit,omitempty"`
	RecommendationDate *time.Time `db:"recommendation_date" json:"recommendation_date,omitempty"`
}

func (r *Recommendation) Entity() string         { return EntityRecommendation }
func (r *Recommendation) PrimaryKey() int64      { return r.ID }
func (r *Recommendation) SetPrimaryKey(id int64) { r.ID = id }

// Held reports whether the recommendation is to stop the drug.
func (r *Recommendation) Held() bool {
	return r.Dosage != nil && *r.Dosage == 0
}
