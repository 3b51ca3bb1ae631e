package medication

import (
	"context"
	"fmt"

	"github.com/medai/medai/internal/logic"
	"github.com/medai/medai/pkg/pagination"
)

type Service struct {
	engine          *logic.Engine
	medications     PatientMedicationRepository
	recommendations RecommendationRepository
}

func NewService(engine *logic.Engine, medications PatientMedicationRepository, recommendations RecommendationRepository) *Service {
	return &Service{engine: engine, medications: medications, recommendations: recommendations}
}

// RegisterPersisters lets the rule engine write medication rows.
func RegisterPersisters(e *logic.Engine, medications PatientMedicationRepository, recommendations RecommendationRepository) {
	e.Register(EntityPatientMedication, logic.PersisterFuncs[*PatientMedication]{
		InsertFn: medications.Create,
		UpdateFn: medications.Update,
		DeleteFn: func(ctx context.Context, m *PatientMedication) error { return medications.Delete(ctx, m.ID) },
	})
	e.Register(EntityRecommendation, logic.PersisterFuncs[*Recommendation]{
		InsertFn: recommendations.Create,
		UpdateFn: recommendations.Update,
		DeleteFn: func(ctx context.Context, r *Recommendation) error { return recommendations.Delete(ctx, r.ID) },
	})
}

// -- PatientMedication --

func validateMedication(m *PatientMedication) error {
	if m.PatientID <= 0 {
		return fmt.Errorf("patient_id is required")
	}
	if m.DrugID <= 0 {
		return fmt.Errorf("drug_id is required")
	}
	if m.Dosage != nil && *m.Dosage < 0 {
		return fmt.Errorf("dosage must not be negative")
	}
	return nil
}

func (s *Service) CreateMedication(ctx context.Context, m *PatientMedication) error {
	if err := validateMedication(m); err != nil {
		return err
	}
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		return sess.Insert(m)
	})
}

func (s *Service) GetMedication(ctx context.Context, id int64) (*PatientMedication, error) {
	return s.medications.GetByID(ctx, id)
}

func (s *Service) UpdateMedication(ctx context.Context, m *PatientMedication) error {
	if err := validateMedication(m); err != nil {
		return err
	}
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		old, err := s.medications.GetByID(sess.Context(), m.ID)
		if err != nil {
			return err
		}
		return sess.Update(m, old)
	})
}

func (s *Service) DeleteMedication(ctx context.Context, id int64) error {
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		m, err := s.medications.GetByID(sess.Context(), id)
		if err != nil {
			return err
		}
		return sess.Delete(m)
	})
}

func (s *Service) ListMedications(ctx context.Context, f pagination.Filter, limit, offset int) ([]*PatientMedication, int, error) {
	return s.medications.List(ctx, f, limit, offset)
}

// -- Recommendation --

func validateRecommendation(r *Recommendation) error {
	if r.PatientID <= 0 {
		return fmt.Errorf("patient_id is required")
	}
	if r.Dosage != nil && *r.Dosage < 0 {
		return fmt.Errorf("dosage must not be negative")
	}
	return nil
}

func (s *Service) CreateRecommendation(ctx context.Context, r *Recommendation) error {
	if err := validateRecommendation(r); err != nil {
		return err
	}
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		return sess.Insert(r)
	})
}

func (s *Service) GetRecommendation(ctx context.Context, id int64) (*Recommendation, error) {
	return s.recommendations.GetByID(ctx, id)
}

func (s *Service) UpdateRecommendation(ctx context.Context, r *Recommendation) error {
	if err := validateRecommendation(r); err != nil {
		return err
	}
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		old, err := s.recommendations.GetByID(sess.Context(), r.ID)
		if err != nil {
			return err
		}
		if r.RecommendationDate == nil {
			r.RecommendationDate = old.RecommendationDate
		}
		return sess.Update(r, old)
	})
}

func (s *Service) DeleteRecommendation(ctx context.Context, id int64) error {
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		r, err := s.recommendations.GetByID(sess.Context(), id)
		if err != nil {
			return err
		}
		return sess.Delete(r)
	})
}

func (s *Service) ListRecommendations(ctx context.Context, f pagination.Filter, limit, offset int) ([]*Recommendation, int, error) {
	return s.recommendations.List(ctx, f, limit, offset)
}
