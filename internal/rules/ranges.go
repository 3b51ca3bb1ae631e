package rules

import (
	"github.com/medai/medai/internal/domain/glucose"
	"github.com/medai/medai/internal/domain/patient"
	"github.com/medai/medai/internal/logic"
)

type bound struct {
	entity string
	attr   string
	lo, hi float64
	msg    string
}

// Clinical plausibility ranges. Missing values pass.
var strictRanges = []bound{
	{glucose.EntityReading, "reading_value", 20, 600, "Blood sugar before {time_of_reading} must be between 20 and 600"},
	{patient.EntityPatient, "creatine_mg_dl", 0.2, 14, "Creatine must be between 0.2 and 14"},
	{patient.EntityPatient, "weight", 20, 300, "Weight must be between 20 and 300"},
	{patient.EntityPatient, "height", 48, 84, "Height must be between 48 and 84"},
	{patient.EntityPatient, "hba1c", 6, 20, "Hba1c must be between 6 and 20"},
	{patient.EntityPatient, "duration", 1, 600, "Duration must be between 1 and 600"},
}

func declareRanges(bank *logic.RuleBank) {
	for _, b := range strictRanges {
		bank.Constraint(logic.Constraint{
			Entity:    b.entity,
			Name:      b.attr + "_range",
			DependsOn: []string{b.attr},
			Check: func(lr *logic.LogicRow) bool {
				v, ok := toFloat(lr.Get(b.attr))
				return !ok || (v >= b.lo && v <= b.hi)
			},
			ErrorMsg: b.msg,
		})
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	}
	return 0, false
}
