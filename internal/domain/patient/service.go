package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/medai/medai/internal/logic"
	"github.com/medai/medai/pkg/pagination"
)

type Service struct {
	engine   *logic.Engine
	patients PatientRepository
	labs     PatientLabRepository
}

func NewService(engine *logic.Engine, patients PatientRepository, labs PatientLabRepository) *Service {
	return &Service{engine: engine, patients: patients, labs: labs}
}

// RegisterPersisters lets the rule engine write patient rows.
func RegisterPersisters(e *logic.Engine, patients PatientRepository, labs PatientLabRepository) {
	e.Register(EntityPatient, logic.PersisterFuncs[*Patient]{
		InsertFn: patients.Create,
		UpdateFn: patients.Update,
		DeleteFn: func(ctx context.Context, p *Patient) error { return patients.Delete(ctx, p.ID) },
	})
	e.Register(EntityPatientLab, logic.PersisterFuncs[*PatientLab]{
		InsertFn: labs.Create,
		UpdateFn: labs.Update,
		DeleteFn: func(ctx context.Context, l *PatientLab) error { return labs.Delete(ctx, l.ID) },
	})
}

var validSexes = map[string]bool{"M": true, "F": true}

func validatePatient(p *Patient) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.PatientSex != nil {
		sex := strings.ToUpper(*p.PatientSex)
		if !validSexes[sex] {
			return fmt.Errorf("invalid patient_sex: %s", *p.PatientSex)
		}
		p.PatientSex = &sex
	}
	return nil
}

// -- Patient --

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if err := validatePatient(p); err != nil {
		return err
	}
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		return sess.Insert(p)
	})
}

func (s *Service) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if err := validatePatient(p); err != nil {
		return err
	}
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		old, err := s.patients.GetByID(sess.Context(), p.ID)
		if err != nil {
			return err
		}
		// created_date is stamped once
		p.CreatedDate = old.CreatedDate
		return sess.Update(p, old)
	})
}

func (s *Service) DeletePatient(ctx context.Context, id int64) error {
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		p, err := s.patients.GetByID(sess.Context(), id)
		if err != nil {
			return err
		}
		return sess.Delete(p)
	})
}

func (s *Service) ListPatients(ctx context.Context, name string, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, name, limit, offset)
}

// -- PatientLab --

func validateLab(l *PatientLab) error {
	if l.PatientID <= 0 {
		return fmt.Errorf("patient_id is required")
	}
	if strings.TrimSpace(l.LabName) == "" {
		return fmt.Errorf("lab_name is required")
	}
	if strings.TrimSpace(l.LabTestName) == "" {
		return fmt.Errorf("lab_test_name is required")
	}
	return nil
}

func (s *Service) CreateLab(ctx context.Context, l *PatientLab) error {
	if err := validateLab(l); err != nil {
		return err
	}
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		if _, err := s.patients.GetByID(sess.Context(), l.PatientID); err != nil {
			return err
		}
		return sess.Insert(l)
	})
}

func (s *Service) GetLab(ctx context.Context, id int64) (*PatientLab, error) {
	return s.labs.GetByID(ctx, id)
}

func (s *Service) UpdateLab(ctx context.Context, l *PatientLab) error {
	if err := validateLab(l); err != nil {
		return err
	}
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		old, err := s.labs.GetByID(sess.Context(), l.ID)
		if err != nil {
			return err
		}
		return sess.Update(l, old)
	})
}

func (s *Service) DeleteLab(ctx context.Context, id int64) error {
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		l, err := s.labs.GetByID(sess.Context(), id)
		if err != nil {
			return err
		}
		return sess.Delete(l)
	})
}

func (s *Service) ListLabs(ctx context.Context, f pagination.Filter, limit, offset int) ([]*PatientLab, int, error) {
	return s.labs.List(ctx, f, limit, offset)
}
