package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/medai/medai/internal/logic"
	"github.com/medai/medai/internal/platform/db"
	"github.com/medai/medai/pkg/pagination"
)

// -- Mock Repositories --

type mockPatientRepo struct {
	next     int64
	patients map[int64]*Patient
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: make(map[int64]*Patient)}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	m.next++
	p.ID = m.next
	if p.CreatedDate == nil {
		now := time.Now()
		p.CreatedDate = &now
	}
	m.patients[p.ID] = p
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id int64) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, fmt.Errorf("patient %d: %w", id, db.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	m.patients[p.ID] = p
	return nil
}

func (m *mockPatientRepo) Delete(_ context.Context, id int64) error {
	delete(m.patients, id)
	return nil
}

func (m *mockPatientRepo) List(_ context.Context, name string, limit, offset int) ([]*Patient, int, error) {
	var out []*Patient
	for id := int64(1); id <= m.next; id++ {
		p, ok := m.patients[id]
		if !ok {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(name)) {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

type mockLabRepo struct {
	next int64
	labs map[int64]*PatientLab
}

func newMockLabRepo() *mockLabRepo {
	return &mockLabRepo{labs: make(map[int64]*PatientLab)}
}

func (m *mockLabRepo) Create(_ context.Context, l *PatientLab) error {
	m.next++
	l.ID = m.next
	m.labs[l.ID] = l
	return nil
}

func (m *mockLabRepo) GetByID(_ context.Context, id int64) (*PatientLab, error) {
	l, ok := m.labs[id]
	if !ok {
		return nil, fmt.Errorf("patient lab %d: %w", id, db.ErrNotFound)
	}
	cp := *l
	return &cp, nil
}

func (m *mockLabRepo) Update(_ context.Context, l *PatientLab) error {
	m.labs[l.ID] = l
	return nil
}

func (m *mockLabRepo) Delete(_ context.Context, id int64) error {
	delete(m.labs, id)
	return nil
}

func (m *mockLabRepo) List(_ context.Context, f pagination.Filter, limit, offset int) ([]*PatientLab, int, error) {
	var out []*PatientLab
	for _, l := range m.labs {
		if f.PatientID != nil && l.PatientID != *f.PatientID {
			continue
		}
		out = append(out, l)
	}
	return out, len(out), nil
}

// newTestService wires an engine carrying the age derivation and the adult
// constraint.
func newTestService() (*Service, *mockPatientRepo, *mockLabRepo) {
	patients, labs := newMockPatientRepo(), newMockLabRepo()

	bank := logic.NewRuleBank()
	bank.Model(&Patient{}, &PatientLab{})
	bank.Formula(logic.Formula{
		Entity:    EntityPatient,
		Attribute: "age",
		DependsOn: []string{"birth_date"},
		Calc: func(_ context.Context, lr *logic.LogicRow) (any, error) {
			return AgeOn(lr.Row.(*Patient).BirthDate, time.Now()), nil
		},
	})
	bank.Constraint(logic.Constraint{
		Entity:    EntityPatient,
		Name:      "adult",
		DependsOn: []string{"age"},
		Check: func(lr *logic.LogicRow) bool {
			age := lr.Row.(*Patient).Age
			return age != nil && *age >= 18
		},
		ErrorMsg: "Patient must be 18 or older",
	})

	engine, err := logic.NewEngine(bank)
	if err != nil {
		panic(err)
	}
	RegisterPersisters(engine, patients, labs)
	return NewService(engine, patients, labs), patients, labs
}

func yearsAgo(n int) *time.Time {
	t := time.Now().AddDate(-n, 0, -1)
	return &t
}

func TestService_CreatePatient_DerivesAge(t *testing.T) {
	svc, _, _ := newTestService()
	p := &Patient{Name: "Ada", BirthDate: yearsAgo(40)}
	if err := svc.CreatePatient(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID == 0 {
		t.Error("expected ID to be assigned")
	}
	if p.Age == nil || *p.Age != 40 {
		t.Errorf("expected age 40, got %v", p.Age)
	}
}

func TestService_CreatePatient_Minor(t *testing.T) {
	svc, repo, _ := newTestService()
	err := svc.CreatePatient(context.Background(), &Patient{Name: "Kid", BirthDate: yearsAgo(12)})
	var ce *logic.ConstraintError
	if err == nil || !asConstraint(err, &ce) {
		t.Fatalf("expected constraint error, got %v", err)
	}
	if ce.Violations[0].Message != "Patient must be 18 or older" {
		t.Errorf("unexpected message %q", ce.Violations[0].Message)
	}
	if len(repo.patients) != 0 {
		t.Error("expected no patient to be stored")
	}
}

func TestService_CreatePatient_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	sex := "x"
	tests := []struct {
		name string
		p    *Patient
	}{
		{"missing name", &Patient{BirthDate: yearsAgo(40)}},
		{"blank name", &Patient{Name: "  ", BirthDate: yearsAgo(40)}},
		{"bad sex", &Patient{Name: "Bo", BirthDate: yearsAgo(40), PatientSex: &sex}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.CreatePatient(context.Background(), tt.p); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestService_UpdatePatient_RecomputesAge(t *testing.T) {
	svc, repo, _ := newTestService()
	p := &Patient{Name: "Ada", BirthDate: yearsAgo(40)}
	_ = svc.CreatePatient(context.Background(), p)
	created := p.CreatedDate

	upd := &Patient{ID: p.ID, Name: "Ada L.", BirthDate: yearsAgo(55)}
	if err := svc.UpdatePatient(context.Background(), upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored := repo.patients[p.ID]
	if stored.Age == nil || *stored.Age != 55 {
		t.Errorf("expected age 55, got %v", stored.Age)
	}
	if stored.CreatedDate != created {
		t.Error("expected created_date to be preserved")
	}
}

func TestService_UpdatePatient_NameOnlyKeepsAge(t *testing.T) {
	svc, repo, _ := newTestService()
	p := &Patient{Name: "Ada", BirthDate: yearsAgo(40)}
	_ = svc.CreatePatient(context.Background(), p)

	upd := *repo.patients[p.ID]
	upd.Name = "Ada Lovelace"
	if err := svc.UpdatePatient(context.Background(), &upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.patients[p.ID].Name != "Ada Lovelace" {
		t.Error("expected name change to be stored")
	}
}

func TestService_CreateLab_UnknownPatient(t *testing.T) {
	svc, _, _ := newTestService()
	err := svc.CreateLab(context.Background(), &PatientLab{PatientID: 77, LabName: "Quest", LabTestName: "A1c"})
	if err == nil {
		t.Fatal("expected error for unknown patient")
	}
}

func TestService_CreateLab(t *testing.T) {
	svc, _, labs := newTestService()
	p := &Patient{Name: "Ada", BirthDate: yearsAgo(40)}
	_ = svc.CreatePatient(context.Background(), p)

	l := &PatientLab{PatientID: p.ID, LabName: "Quest", LabTestName: "HbA1c"}
	if err := svc.CreateLab(context.Background(), l); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pid := p.ID
	items, total, _ := svc.ListLabs(context.Background(), pagination.Filter{PatientID: &pid}, 20, 0)
	if total != 1 || items[0].ID != l.ID || len(labs.labs) != 1 {
		t.Errorf("expected one lab for patient, got %d", total)
	}
}

func asConstraint(err error, target **logic.ConstraintError) bool {
	return errors.As(err, target)
}
