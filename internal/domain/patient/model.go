package patient

import (
	"encoding/json"
	"time"
)

const (
	EntityPatient    = "Patient"
	EntityPatientLab = "PatientLab"
)

// Patient is a person under diabetes care. Age is derived from BirthDate.
type Patient struct {
	ID                  int64      `db:"id" json:"id"`
	Name                string     `db:"name" json:"name"`
	BirthDate           *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Age                 *float64   `db:"age" json:"age,omitempty"`
	Weight              *float64   `db:"weight" json:"weight,omitempty"`
	Height              *int64     `db:"height" json:"height,omitempty"`
	HbA1c               *float64   `db:"hba1c" json:"hba1c,omitempty"`
	Duration            *int64     `db:"duration" json:"duration,omitempty"`
	CKD                 *int64     `db:"ckd" json:"ckd,omitempty"`
	CAD                 *int64     `db:"cad" json:"cad,omitempty"`
	HLD                 *int64     `db:"hld" json:"hld,omitempty"`
	PatientSex          *string    `db:"patient_sex" json:"patient_sex,omitempty"`
	CreatineMgDl        *float64   `db:"creatine_mg_dl" json:"creatine_mg_dl,omitempty"`
	MedicalRecordNumber *string    `db:"medical_record_number" json:"medical_record_number,omitempty"`
	CreatedDate         *time.Time `db:"created_date" json:"created_date,omitempty"`
}

func (p *Patient) Entity() string         { return EntityPatient }
func (p *Patient) PrimaryKey() int64      { return p.ID }
func (p *Patient) SetPrimaryKey(id int64) { p.ID = id }

// AgeOn returns the whole years between birth and day, or nil when the
// birth date is unknown.
func AgeOn(birth *time.Time, day time.Time) *float64 {
	if birth == nil {
		return nil
	}
	years := day.Year() - birth.Year()
	if day.Month() < birth.Month() || (day.Month() == birth.Month() && day.Day() < birth.Day()) {
		years--
	}
	age := float64(years)
	return &age
}

type PatientLab struct {
	ID                 int64           `db:"id" json:"id"`
	PatientID          int64           `db:"patient_id" json:"patient_id"`
	LabName            string          `db:"lab_name" json:"lab_name"`
	LabTestName        string          `db:"lab_test_name" json:"lab_test_name"`
	LabTestCode        *string         `db:"lab_test_code" json:"lab_test_code,omitempty"`
	LabTestDescription *string         `db:"lab_test_description" json:"lab_test_description,omitempty"`
	LabDate            *time.Time      `db:"lab_date" json:"lab_date,omitempty"`
	LabResult          json.RawMessage `db:"lab_result" json:"lab_result,omitempty"`
}

func (l *PatientLab) Entity() string         { return EntityPatientLab }
func (l *PatientLab) PrimaryKey() int64      { return l.ID }
func (l *PatientLab) SetPrimaryKey(id int64) { l.ID = id }
