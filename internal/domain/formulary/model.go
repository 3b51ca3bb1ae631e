package formulary

const (
	EntityDrugUnit         = "DrugUnit"
	EntityDrug             = "Drug"
	EntityDosage           = "Dosage"
	EntityContraindication = "Contraindication"
)

// DrugUnit is a unit of measure for doses ("mg", "units"). It is keyed by
// name, so it has no numeric primary key.
type DrugUnit struct {
	UnitName string `db:"unit_name" json:"unit_name"`
}

func (u *DrugUnit) Entity() string      { return EntityDrugUnit }
func (u *DrugUnit) PrimaryKey() int64   { return 0 }
func (u *DrugUnit) SetPrimaryKey(int64) {}

type Drug struct {
	ID           int64    `db:"id" json:"id"`
	DrugName     string   `db:"drug_name" json:"drug_name"`
	Dosage       *float64 `db:"dosage" json:"dosage,omitempty"`
	DosageUnit   *string  `db:"dosage_unit" json:"dosage_unit,omitempty"`
	DrugType     *string  `db:"drug_type" json:"drug_type,omitempty"`
	Manufacturer *string  `db:"manufacturer" json:"manufacturer,omitempty"`
	SideEffects  *string  `db:"side_effects" json:"side_effects,omitempty"`
}

func (d *Drug) Entity() string         { return EntityDrug }
func (d *Drug) PrimaryKey() int64      { return d.ID }
func (d *Drug) SetPrimaryKey(id int64) { d.ID = id }

// Dosage is the dose range of a drug for a band of patients. DrugName and
// DrugType are copied from the drug.
type Dosage struct {
	ID          int64    `db:"id" json:"id"`
	DrugID      int64    `db:"drug_id" json:"drug_id"`
	DrugName    *string  `db:"drug_name" json:"drug_name,omitempty"`
	DrugType    *string  `db:"drug_type" json:"drug_type,omitempty"`
	MinDose     *float64 `db:"min_dose" json:"min_dose,omitempty"`
	MaxDose     *float64 `db:"max_dose" json:"max_dose,omitempty"`
	DosageUnit  *string  `db:"dosage_unit" json:"dosage_unit,omitempty"`
	MinAge      *int64   `db:"min_age" json:"min_age,omitempty"`
	MaxAge      *int64   `db:"max_age" json:"max_age,omitempty"`
	MinWeight   *float64 `db:"min_weight" json:"min_weight,omitempty"`
	MaxWeight   *float64 `db:"max_weight" json:"max_weight,omitempty"`
	MinCreatine *float64 `db:"min_creatine" json:"min_creatine,omitempty"`
	MaxCreatine *float64 `db:"max_creatine" json:"max_creatine,omitempty"`
}

func (d *Dosage) Entity() string         { return EntityDosage }
func (d *Dosage) PrimaryKey() int64      { return d.ID }
func (d *Dosage) SetPrimaryKey(id int64) { d.ID = id }

// Applies reports whether the dosage band covers a patient. Unknown patient
// values and open bounds never exclude the band.
func (d *Dosage) Applies(age, weight, creatinine *float64) bool {
	if age != nil {
		if d.MinAge != nil && *age < float64(*d.MinAge) {
			return false
		}
		if d.MaxAge != nil && *age > float64(*d.MaxAge) {
			return false
		}
	}
	if !within(weight, d.MinWeight, d.MaxWeight) {
		return false
	}
	return within(creatinine, d.MinCreatine, d.MaxCreatine)
}

func within(v, lo, hi *float64) bool {
	if v == nil {
		return true
	}
	if lo != nil && *v < *lo {
		return false
	}
	if hi != nil && *v > *hi {
		return false
	}
	return true
}

// Contraindication marks two drugs that must not be combined.
type Contraindication struct {
	ID          int64   `db:"id" json:"id"`
	DrugID1     int64   `db:"drug_id_1" json:"drug_id_1"`
	DrugID2     int64   `db:"drug_id_2" json:"drug_id_2"`
	Description *string `db:"description" json:"description,omitempty"`
}

func (c *Contraindication) Entity() string         { return EntityContraindication }
func (c *Contraindication) PrimaryKey() int64      { return c.ID }
func (c *Contraindication) SetPrimaryKey(id int64) { c.ID = id }

// Other returns the drug paired with drugID, or 0 when drugID is not part
// of the pair.
func (c *Contraindication) Other(drugID int64) int64 {
	switch drugID {
	case c.DrugID1:
		return c.DrugID2
	case c.DrugID2:
		return c.DrugID1
	}
	return 0
}
