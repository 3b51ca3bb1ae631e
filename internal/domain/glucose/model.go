package glucose

import (
	"strings"
	"time"
)

const (
	EntityReading        = "Reading"
	EntityReadingHistory = "ReadingHistory"
	EntityInsulinRule    = "InsulinRule"
	EntityInsulin        = "Insulin"
)

// Meal slots a glucose reading can be taken at.
const (
	SlotBreakfast = "breakfast"
	SlotLunch     = "lunch"
	SlotDinner    = "dinner"
	SlotBedtime   = "bedtime"
)

var Slots = []string{SlotBreakfast, SlotLunch, SlotDinner, SlotBedtime}

// Glycemic target range in mg/dL.
const (
	TargetLow  = 70.0
	TargetHigh = 180.0
)

// ParseSlot accepts a reading time naming exactly one slot, optionally
// prefixed with "before" ("Before Breakfast", "bed time", "lunch").
func ParseSlot(s string) (string, bool) {
	s = strings.Join(strings.Fields(strings.ToLower(s)), " ")
	s = strings.TrimPrefix(s, "before ")
	if s == "bed time" {
		s = SlotBedtime
	}
	for _, slot := range Slots {
		if s == slot {
			return slot, true
		}
	}
	return "", false
}

// NormalizeSlot maps the free-form labels of sliding-scale sheets
// ("Before Breakfast", "Bedtime snack") onto a slot by substring.
func NormalizeSlot(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(s, "breakfast"):
		return SlotBreakfast, true
	case strings.Contains(s, "lunch"):
		return SlotLunch, true
	case strings.Contains(s, "dinner"):
		return SlotDinner, true
	case strings.Contains(s, "bed"):
		return SlotBedtime, true
	}
	return "", false
}

// Reading is a single blood glucose measurement.
type Reading struct {
	ID            int64     `db:"id" json:"id"`
	PatientID     int64     `db:"patient_id" json:"patient_id"`
	TimeOfReading string    `db:"time_of_reading" json:"time_of_reading"`
	ReadingValue  *float64  `db:"reading_value" json:"reading_value,omitempty"`
	ReadingDate   time.Time `db:"reading_date" json:"reading_date"`
	Notes         *string   `db:"notes" json:"notes,omitempty"`
}

func (r *Reading) Entity() string         { return EntityReading }
func (r *Reading) PrimaryKey() int64      { return r.ID }
func (r *Reading) SetPrimaryKey(id int64) { r.ID = id }

// ReadingHistory holds one patient-day of readings, one column per slot. A
// zero slot means no reading was taken.
type ReadingHistory struct {
	ID             int64     `db:"id" json:"id"`
	PatientID      int64     `db:"patient_id" json:"patient_id"`
	ReadingDate    time.Time `db:"reading_date" json:"reading_date"`
	Breakfast      *float64  `db:"breakfast" json:"breakfast,omitempty"`
	Lunch          *float64  `db:"lunch" json:"lunch,omitempty"`
	Dinner         *float64  `db:"dinner" json:"dinner,omitempty"`
	Bedtime        *float64  `db:"bedtime" json:"bedtime,omitempty"`
	DailyMean      *float64  `db:"daily_mean" json:"daily_mean,omitempty"`
	GlycemicStatus *string   `db:"glycemic_status" json:"glycemic_status,omitempty"`
	NotesForDay    *string   `db:"notes_for_day" json:"notes_for_day,omitempty"`
}

func (h *ReadingHistory) Entity() string         { return EntityReadingHistory }
func (h *ReadingHistory) PrimaryKey() int64      { return h.ID }
func (h *ReadingHistory) SetPrimaryKey(id int64) { h.ID = id }

func (h *ReadingHistory) slot(slot string) **float64 {
	switch slot {
	case SlotBreakfast:
		return &h.Breakfast
	case SlotLunch:
		return &h.Lunch
	case SlotDinner:
		return &h.Dinner
	case SlotBedtime:
		return &h.Bedtime
	}
	return nil
}

// SetSlot stores v in slot and reports whether slot is known.
func (h *ReadingHistory) SetSlot(slot string, v *float64) bool {
	p := h.slot(slot)
	if p == nil {
		return false
	}
	*p = v
	return true
}

// Mean averages the slots that hold a reading, or returns nil when none do.
func (h *ReadingHistory) Mean() *float64 {
	var sum float64
	var n int
	for _, v := range []*float64{h.Breakfast, h.Lunch, h.Dinner, h.Bedtime} {
		if v != nil && *v > 0 {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}

// Status classifies a daily mean against the target range.
func Status(mean *float64) *string {
	if mean == nil {
		return nil
	}
	s := "in_range"
	switch {
	case *mean < TargetLow:
		s = "low"
	case *mean > TargetHigh:
		s = "high"
	}
	return &s
}

// InsulinRule is one row of the sliding scale: readings at or above
// BloodSugarLevel in the BloodSugarReading slot get the listed doses.
type InsulinRule struct {
	ID                    int64   `db:"id" json:"id"`
	BloodSugarReading     *string `db:"blood_sugar_reading" json:"blood_sugar_reading,omitempty"`
	BloodSugarLevel       *int64  `db:"blood_sugar_level" json:"blood_sugar_level,omitempty"`
	GlargineBeforeDinner  *int64  `db:"glargine_before_dinner" json:"glargine_before_dinner,omitempty"`
	LisproBeforeBreakfast *int64  `db:"lispro_before_breakfast" json:"lispro_before_breakfast,omitempty"`
	LisproBeforeLunch     *int64  `db:"lispro_before_lunch" json:"lispro_before_lunch,omitempty"`
	LisproBeforeDinner    *int64  `db:"lispro_before_dinner" json:"lispro_before_dinner,omitempty"`
}

func (r *InsulinRule) Entity() string         { return EntityInsulinRule }
func (r *InsulinRule) PrimaryKey() int64      { return r.ID }
func (r *InsulinRule) SetPrimaryKey(id int64) { r.ID = id }

// LisproFor returns the prandial dose for slot. Bedtime has none.
func (r *InsulinRule) LisproFor(slot string) *int64 {
	switch slot {
	case SlotBreakfast:
		return r.LisproBeforeBreakfast
	case SlotLunch:
		return r.LisproBeforeLunch
	case SlotDinner:
		return r.LisproBeforeDinner
	}
	return nil
}

// MatchRule picks the rule for slot with the highest level not above
// value. Rules whose reading time does not name slot are ignored.
func MatchRule(rules []*InsulinRule, slot string, value float64) *InsulinRule {
	var best *InsulinRule
	for _, r := range rules {
		if r.BloodSugarLevel == nil || r.BloodSugarReading == nil {
			continue
		}
		if s, ok := NormalizeSlot(*r.BloodSugarReading); !ok || s != slot {
			continue
		}
		if float64(*r.BloodSugarLevel) > value {
			continue
		}
		if best == nil || *r.BloodSugarLevel > *best.BloodSugarLevel {
			best = r
		}
	}
	return best
}

// Insulin is the per-day insulin schedule of a patient for one insulin
// drug. DrugType references the drug id.
type Insulin struct {
	ID          int64     `db:"id" json:"id"`
	PatientID   int64     `db:"patient_id" json:"patient_id"`
	DrugType    int64     `db:"drug_type" json:"drug_type"`
	ReadingDate time.Time `db:"reading_date" json:"reading_date"`
	Breakfast   *float64  `db:"breakfast" json:"breakfast,omitempty"`
	Lunch       *float64  `db:"lunch" json:"lunch,omitempty"`
	Dinner      *float64  `db:"dinner" json:"dinner,omitempty"`
	Bedtime     *float64  `db:"bedtime" json:"bedtime,omitempty"`
}

func (i *Insulin) Entity() string         { return EntityInsulin }
func (i *Insulin) PrimaryKey() int64      { return i.ID }
func (i *Insulin) SetPrimaryKey(id int64) { i.ID = id }

func (i *Insulin) SetSlot(slot string, v *float64) bool {
	switch slot {
	case SlotBreakfast:
		i.Breakfast = v
	case SlotLunch:
		i.Lunch = v
	case SlotDinner:
		i.Dinner = v
	case SlotBedtime:
		i.Bedtime = v
	default:
		return false
	}
	return true
}

// Day truncates t to midnight UTC, the granularity of reading dates.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
