package formulary

import "testing"

func TestDosage_Applies(t *testing.T) {
	d := &Dosage{
		MinAge:      i64Ptr(18),
		MaxAge:      i64Ptr(80),
		MaxWeight:   f64Ptr(150),
		MinCreatine: f64Ptr(0.2),
		MaxCreatine: f64Ptr(1.5),
	}
	tests := []struct {
		name               string
		age, weight, creat *float64
		want               bool
	}{
		{"inside every band", f64Ptr(45), f64Ptr(90), f64Ptr(1.0), true},
		{"too young", f64Ptr(17), f64Ptr(90), f64Ptr(1.0), false},
		{"too old", f64Ptr(81), nil, nil, false},
		{"too heavy", f64Ptr(45), f64Ptr(151), nil, false},
		{"kidney function too low", f64Ptr(45), nil, f64Ptr(2.1), false},
		{"unknown values never exclude", nil, nil, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Applies(tt.age, tt.weight, tt.creat); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestContraindication_Other(t *testing.T) {
	c := &Contraindication{DrugID1: 2, DrugID2: 5}
	if c.Other(2) != 5 || c.Other(5) != 2 {
		t.Error("expected the paired drug from either side")
	}
	if c.Other(7) != 0 {
		t.Error("expected 0 for a drug outside the pair")
	}
}
