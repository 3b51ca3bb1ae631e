package formulary

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/medai/medai/internal/logic"
	"github.com/medai/medai/internal/platform/db"
)

// -- Mock Repositories --

type mockUnitRepo struct {
	units map[string]*DrugUnit
}

func newMockUnitRepo() *mockUnitRepo {
	return &mockUnitRepo{units: make(map[string]*DrugUnit)}
}

func (m *mockUnitRepo) Create(_ context.Context, u *DrugUnit) error {
	if _, ok := m.units[u.UnitName]; ok {
		return fmt.Errorf("duplicate unit %s", u.UnitName)
	}
	m.units[u.UnitName] = u
	return nil
}

func (m *mockUnitRepo) List(_ context.Context) ([]*DrugUnit, error) {
	var out []*DrugUnit
	for _, u := range m.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnitName < out[j].UnitName })
	return out, nil
}

func (m *mockUnitRepo) Delete(_ context.Context, name string) error {
	if _, ok := m.units[name]; !ok {
		return fmt.Errorf("drug unit %q: %w", name, db.ErrNotFound)
	}
	delete(m.units, name)
	return nil
}

type mockDrugRepo struct {
	next  int64
	drugs map[int64]*Drug
}

func newMockDrugRepo() *mockDrugRepo {
	return &mockDrugRepo{drugs: make(map[int64]*Drug)}
}

func (m *mockDrugRepo) Create(_ context.Context, d *Drug) error {
	m.next++
	d.ID = m.next
	m.drugs[d.ID] = d
	return nil
}

func (m *mockDrugRepo) GetByID(_ context.Context, id int64) (*Drug, error) {
	d, ok := m.drugs[id]
	if !ok {
		return nil, fmt.Errorf("drug %d: %w", id, db.ErrNotFound)
	}
	cp := *d
	return &cp, nil
}

func (m *mockDrugRepo) GetByName(_ context.Context, name string) (*Drug, error) {
	for _, d := range m.drugs {
		if d.DrugName == name {
			cp := *d
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("drug %q: %w", name, db.ErrNotFound)
}

func (m *mockDrugRepo) Update(_ context.Context, d *Drug) error {
	if _, ok := m.drugs[d.ID]; !ok {
		return fmt.Errorf("drug %d: %w", d.ID, db.ErrNotFound)
	}
	m.drugs[d.ID] = d
	return nil
}

func (m *mockDrugRepo) Delete(_ context.Context, id int64) error {
	delete(m.drugs, id)
	return nil
}

func (m *mockDrugRepo) List(_ context.Context, limit, offset int) ([]*Drug, int, error) {
	var out []*Drug
	for id := int64(1); id <= m.next; id++ {
		if d, ok := m.drugs[id]; ok {
			out = append(out, d)
		}
	}
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

type mockDosageRepo struct {
	next    int64
	dosages map[int64]*Dosage
}

func newMockDosageRepo() *mockDosageRepo {
	return &mockDosageRepo{dosages: make(map[int64]*Dosage)}
}

func (m *mockDosageRepo) Create(_ context.Context, d *Dosage) error {
	m.next++
	d.ID = m.next
	m.dosages[d.ID] = d
	return nil
}

func (m *mockDosageRepo) GetByID(_ context.Context, id int64) (*Dosage, error) {
	d, ok := m.dosages[id]
	if !ok {
		return nil, fmt.Errorf("dosage %d: %w", id, db.ErrNotFound)
	}
	cp := *d
	return &cp, nil
}

func (m *mockDosageRepo) Update(_ context.Context, d *Dosage) error {
	m.dosages[d.ID] = d
	return nil
}

func (m *mockDosageRepo) Delete(_ context.Context, id int64) error {
	delete(m.dosages, id)
	return nil
}

func (m *mockDosageRepo) List(_ context.Context, limit, offset int) ([]*Dosage, int, error) {
	var out []*Dosage
	for _, d := range m.dosages {
		out = append(out, d)
	}
	return out, len(out), nil
}

func (m *mockDosageRepo) ListByDrug(_ context.Context, drugID int64) ([]*Dosage, error) {
	var out []*Dosage
	for _, d := range m.dosages {
		if d.DrugID == drugID {
			out = append(out, d)
		}
	}
	return out, nil
}

type mockContraRepo struct {
	next  int64
	pairs map[int64]*Contraindication
}

func newMockContraRepo() *mockContraRepo {
	return &mockContraRepo{pairs: make(map[int64]*Contraindication)}
}

func (m *mockContraRepo) Create(_ context.Context, c *Contraindication) error {
	m.next++
	c.ID = m.next
	m.pairs[c.ID] = c
	return nil
}

func (m *mockContraRepo) GetByID(_ context.Context, id int64) (*Contraindication, error) {
	c, ok := m.pairs[id]
	if !ok {
		return nil, fmt.Errorf("contraindication %d: %w", id, db.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (m *mockContraRepo) Update(_ context.Context, c *Contraindication) error {
	m.pairs[c.ID] = c
	return nil
}

func (m *mockContraRepo) Delete(_ context.Context, id int64) error {
	delete(m.pairs, id)
	return nil
}

func (m *mockContraRepo) List(_ context.Context, limit, offset int) ([]*Contraindication, int, error) {
	var out []*Contraindication
	for _, c := range m.pairs {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *mockContraRepo) ListByDrug(_ context.Context, drugID int64) ([]*Contraindication, error) {
	var out []*Contraindication
	for _, c := range m.pairs {
		if c.Other(drugID) != 0 {
			out = append(out, c)
		}
	}
	return out, nil
}

type testRepos struct {
	units   *mockUnitRepo
	drugs   *mockDrugRepo
	dosages *mockDosageRepo
	contra  *mockContraRepo
}

// newTestService builds a service over an engine with the copy and
// constraint rules the formulary relies on.
func newTestService() (*Service, testRepos) {
	r := testRepos{
		units:   newMockUnitRepo(),
		drugs:   newMockDrugRepo(),
		dosages: newMockDosageRepo(),
		contra:  newMockContraRepo(),
	}

	bank := logic.NewRuleBank()
	bank.Model(&Drug{}, &Dosage{}, &Contraindication{})
	bank.Relationship(logic.Relationship{
		Parent:     EntityDrug,
		Child:      EntityDosage,
		ForeignKey: "drug_id",
		LoadParent: func(ctx context.Context, child logic.Row) (logic.Row, error) {
			return r.drugs.GetByID(ctx, child.(*Dosage).DrugID)
		},
	})
	bank.Copy(logic.Copy{Entity: EntityDosage, Attribute: "drug_name", Parent: EntityDrug, ParentAttribute: "drug_name"})
	bank.Constraint(logic.Constraint{
		Entity: EntityContraindication,
		Name:   "distinct_drugs",
		Check: func(lr *logic.LogicRow) bool {
			c := lr.Row.(*Contraindication)
			return c.DrugID1 != c.DrugID2
		},
		ErrorMsg: "Drug_1 and Drug_2 must be different",
	})

	engine, err := logic.NewEngine(bank)
	if err != nil {
		panic(err)
	}
	RegisterPersisters(engine, r.units, r.drugs, r.dosages, r.contra)
	return NewService(engine, r.units, r.drugs, r.dosages, r.contra), r
}

func strPtr(s string) *string   { return &s }
func f64Ptr(v float64) *float64 { return &v }
func i64Ptr(v int64) *int64     { return &v }

// -- DrugUnit Tests --

func TestService_CreateUnit(t *testing.T) {
	svc, r := newTestService()
	if err := svc.CreateUnit(context.Background(), &DrugUnit{UnitName: " mg "}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := r.units.units["mg"]; !ok {
		t.Error("expected unit name to be trimmed and stored")
	}
}

func TestService_CreateUnit_Invalid(t *testing.T) {
	svc, _ := newTestService()
	for _, name := range []string{"", "   ", "milligrams-per-day"} {
		if err := svc.CreateUnit(context.Background(), &DrugUnit{UnitName: name}); err == nil {
			t.Errorf("expected error for unit %q", name)
		}
	}
}

func TestService_UnitWritesRunRules(t *testing.T) {
	units := newMockUnitRepo()
	var seen []string
	bank := logic.NewRuleBank()
	bank.Model(&DrugUnit{})
	bank.EarlyRowEventAllClasses("trace", func(_ context.Context, lr *logic.LogicRow) error {
		seen = append(seen, lr.Entity()+":"+lr.Action.String())
		return nil
	})
	engine, err := logic.NewEngine(bank)
	if err != nil {
		t.Fatal(err)
	}
	RegisterPersisters(engine, units, newMockDrugRepo(), newMockDosageRepo(), newMockContraRepo())
	svc := NewService(engine, units, nil, nil, nil)

	ctx := context.Background()
	if err := svc.CreateUnit(ctx, &DrugUnit{UnitName: "mcg"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.DeleteUnit(ctx, "mcg"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(units.units) != 0 {
		t.Errorf("expected unit removed, got %v", units.units)
	}
	want := []string{"DrugUnit:ins", "DrugUnit:dlt"}
	if fmt.Sprint(seen) != fmt.Sprint(want) {
		t.Errorf("events = %v, want %v", seen, want)
	}
}

// -- Drug Tests --

func TestService_CreateDrug(t *testing.T) {
	svc, _ := newTestService()
	d := &Drug{DrugName: "Metformin", DrugType: strPtr("oral")}
	if err := svc.CreateDrug(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ID == 0 {
		t.Error("expected ID to be assigned")
	}
}

func TestService_CreateDrug_NameRequired(t *testing.T) {
	svc, _ := newTestService()
	if err := svc.CreateDrug(context.Background(), &Drug{}); err == nil {
		t.Error("expected error for missing drug_name")
	}
}

func TestService_UpdateDrug_NotFound(t *testing.T) {
	svc, _ := newTestService()
	err := svc.UpdateDrug(context.Background(), &Drug{ID: 99, DrugName: "Ghost"})
	if err == nil {
		t.Fatal("expected error updating missing drug")
	}
}

func TestService_DeleteDrug(t *testing.T) {
	svc, r := newTestService()
	d := &Drug{DrugName: "Glimepiride"}
	_ = svc.CreateDrug(context.Background(), d)
	if err := svc.DeleteDrug(context.Background(), d.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := r.drugs.drugs[d.ID]; ok {
		t.Error("expected drug to be deleted")
	}
}

// -- Dosage Tests --

func TestService_CreateDosage_CopiesDrugFields(t *testing.T) {
	svc, _ := newTestService()
	drug := &Drug{DrugName: "Farxiga", DrugType: strPtr("oral")}
	_ = svc.CreateDrug(context.Background(), drug)

	d := &Dosage{DrugID: drug.ID, MinDose: f64Ptr(5), MaxDose: f64Ptr(10)}
	if err := svc.CreateDosage(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.DrugName == nil || *d.DrugName != "Farxiga" {
		t.Errorf("expected drug_name copied from drug, got %v", d.DrugName)
	}
}

func TestService_CreateDosage_Validation(t *testing.T) {
	svc, _ := newTestService()
	tests := []struct {
		name string
		d    *Dosage
	}{
		{"missing drug", &Dosage{}},
		{"inverted dose", &Dosage{DrugID: 1, MinDose: f64Ptr(10), MaxDose: f64Ptr(5)}},
		{"inverted age", &Dosage{DrugID: 1, MinAge: i64Ptr(70), MaxAge: i64Ptr(18)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.CreateDosage(context.Background(), tt.d); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

// -- Contraindication Tests --

func TestService_CreateContraindication_SameDrugRejected(t *testing.T) {
	svc, r := newTestService()
	err := svc.CreateContraindication(context.Background(), &Contraindication{DrugID1: 2, DrugID2: 2})
	if err == nil {
		t.Fatal("expected constraint failure")
	}
	if len(r.contra.pairs) != 0 {
		t.Error("expected nothing to be persisted")
	}
}

func TestService_CreateContraindication(t *testing.T) {
	svc, r := newTestService()
	c := &Contraindication{DrugID1: 2, DrugID2: 5, Description: strPtr("hypoglycemia")}
	if err := svc.CreateContraindication(context.Background(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pairs, _ := r.contra.ListByDrug(context.Background(), 5)
	if len(pairs) != 1 {
		t.Errorf("expected pair to be found from either side, got %d", len(pairs))
	}
}
