package glucose

import (
	"context"
	"fmt"
	"strings"

	"github.com/medai/medai/internal/logic"
	"github.com/medai/medai/pkg/pagination"
)

// DefaultInsulinDrugID is the drug the insulin schedule applies to when
// none is given (Lispro in the seed formulary).
const DefaultInsulinDrugID int64 = 5

type Service struct {
	engine   *logic.Engine
	readings ReadingRepository
	history  ReadingHistoryRepository
	rules    InsulinRuleRepository
	insulin  InsulinRepository
}

func NewService(engine *logic.Engine, readings ReadingRepository, history ReadingHistoryRepository, rules InsulinRuleRepository, insulin InsulinRepository) *Service {
	return &Service{
		engine:   engine,
		readings: readings,
		history:  history,
		rules:    rules,
		insulin:  insulin,
	}
}

// RegisterPersisters lets the rule engine write glucose rows.
func RegisterPersisters(e *logic.Engine, readings ReadingRepository, history ReadingHistoryRepository, rules InsulinRuleRepository, insulin InsulinRepository) {
	e.Register(EntityReading, logic.PersisterFuncs[*Reading]{
		InsertFn: readings.Create,
		UpdateFn: readings.Update,
		DeleteFn: func(ctx context.Context, r *Reading) error { return readings.Delete(ctx, r.ID) },
	})
	e.Register(EntityReadingHistory, logic.PersisterFuncs[*ReadingHistory]{
		InsertFn: history.Create,
		UpdateFn: history.Update,
		DeleteFn: func(ctx context.Context, h *ReadingHistory) error { return history.Delete(ctx, h.ID) },
	})
	e.Register(EntityInsulinRule, logic.PersisterFuncs[*InsulinRule]{
		InsertFn: rules.Create,
		UpdateFn: rules.Update,
		DeleteFn: func(ctx context.Context, r *InsulinRule) error { return rules.Delete(ctx, r.ID) },
	})
	e.Register(EntityInsulin, logic.PersisterFuncs[*Insulin]{
		InsertFn: insulin.Create,
		UpdateFn: insulin.Update,
		DeleteFn: func(ctx context.Context, i *Insulin) error { return insulin.Delete(ctx, i.ID) },
	})
}

// -- Reading --

func validateReading(r *Reading) error {
	if r.PatientID <= 0 {
		return fmt.Errorf("patient_id is required")
	}
	r.TimeOfReading = strings.TrimSpace(r.TimeOfReading)
	if r.TimeOfReading == "" {
		return fmt.Errorf("time_of_reading is required")
	}
	// unknown values are left for the time_of_reading constraint to report
	if slot, ok := ParseSlot(r.TimeOfReading); ok {
		r.TimeOfReading = slot
	}
	if r.ReadingDate.IsZero() {
		return fmt.Errorf("reading_date is required")
	}
	r.ReadingDate = Day(r.ReadingDate)
	if r.ReadingValue != nil && *r.ReadingValue < 0 {
		return fmt.Errorf("reading_value must not be negative")
	}
	return nil
}

func (s *Service) CreateReading(ctx context.Context, r *Reading) error {
	if err := validateReading(r); err != nil {
		return err
	}
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		return sess.Insert(r)
	})
}

func (s *Service) GetReading(ctx context.Context, id int64) (*Reading, error) {
	return s.readings.GetByID(ctx, id)
}

func (s *Service) UpdateReading(ctx context.Context, r *Reading) error {
	if err := validateReading(r); err != nil {
		return err
	}
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		old, err := s.readings.GetByID(sess.Context(), r.ID)
		if err != nil {
			return err
		}
		return sess.Update(r, old)
	})
}

func (s *Service) DeleteReading(ctx context.Context, id int64) error {
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		r, err := s.readings.GetByID(sess.Context(), id)
		if err != nil {
			return err
		}
		return sess.Delete(r)
	})
}

func (s *Service) ListReadings(ctx context.Context, f pagination.Filter, limit, offset int) ([]*Reading, int, error) {
	return s.readings.List(ctx, f, limit, offset)
}

// -- ReadingHistory --

func validateHistory(h *ReadingHistory) error {
	if h.PatientID <= 0 {
		return fmt.Errorf("patient_id is required")
	}
	if h.ReadingDate.IsZero() {
		return fmt.Errorf("reading_date is required")
	}
	h.ReadingDate = Day(h.ReadingDate)
	return nil
}

func (s *Service) CreateHistory(ctx context.Context, h *ReadingHistory) error {
	if err := validateHistory(h); err != nil {
		return err
	}
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		return sess.Insert(h)
	})
}

func (s *Service) GetHistory(ctx context.Context, id int64) (*ReadingHistory, error) {
	return s.history.GetByID(ctx, id)
}

func (s *Service) UpdateHistory(ctx context.Context, h *ReadingHistory) error {
	if err := validateHistory(h); err != nil {
		return err
	}
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		old, err := s.history.GetByID(sess.Context(), h.ID)
		if err != nil {
			return err
		}
		return sess.Update(h, old)
	})
}

func (s *Service) DeleteHistory(ctx context.Context, id int64) error {
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		h, err := s.history.GetByID(sess.Context(), id)
		if err != nil {
			return err
		}
		return sess.Delete(h)
	})
}

func (s *Service) ListHistory(ctx context.Context, f pagination.Filter, limit, offset int) ([]*ReadingHistory, int, error) {
	return s.history.List(ctx, f, limit, offset)
}

// -- InsulinRule --

func validateInsulinRule(r *InsulinRule) error {
	if r.BloodSugarReading == nil || strings.TrimSpace(*r.BloodSugarReading) == "" {
		return fmt.Errorf("blood_sugar_reading is required")
	}
	if _, ok := NormalizeSlot(*r.BloodSugarReading); !ok {
		return fmt.Errorf("blood_sugar_reading %q does not name a meal slot", *r.BloodSugarReading)
	}
	if r.BloodSugarLevel == nil {
		return fmt.Errorf("blood_sugar_level is required")
	}
	return nil
}

func (s *Service) CreateInsulinRule(ctx context.Context, r *InsulinRule) error {
	if err := validateInsulinRule(r); err != nil {
		return err
	}
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		return sess.Insert(r)
	})
}

func (s *Service) GetInsulinRule(ctx context.Context, id int64) (*InsulinRule, error) {
	return s.rules.GetByID(ctx, id)
}

func (s *Service) UpdateInsulinRule(ctx context.Context, r *InsulinRule) error {
	if err := validateInsulinRule(r); err != nil {
		return err
	}
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		old, err := s.rules.GetByID(sess.Context(), r.ID)
		if err != nil {
			return err
		}
		return sess.Update(r, old)
	})
}

func (s *Service) DeleteInsulinRule(ctx context.Context, id int64) error {
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		r, err := s.rules.GetByID(sess.Context(), id)
		if err != nil {
			return err
		}
		return sess.Delete(r)
	})
}

func (s *Service) ListInsulinRules(ctx context.Context, limit, offset int) ([]*InsulinRule, int, error) {
	return s.rules.List(ctx, limit, offset)
}

// -- Insulin --

func validateInsulin(i *Insulin) error {
	if i.PatientID <= 0 {
		return fmt.Errorf("patient_id is required")
	}
	if i.ReadingDate.IsZero() {
		return fmt.Errorf("reading_date is required")
	}
	i.ReadingDate = Day(i.ReadingDate)
	if i.DrugType == 0 {
		i.DrugType = DefaultInsulinDrugID
	}
	return nil
}

func (s *Service) CreateInsulin(ctx context.Context, i *Insulin) error {
	if err := validateInsulin(i); err != nil {
		return err
	}
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		return sess.Insert(i)
	})
}

func (s *Service) GetInsulin(ctx context.Context, id int64) (*Insulin, error) {
	return s.insulin.GetByID(ctx, id)
}

func (s *Service) UpdateInsulin(ctx context.Context, i *Insulin) error {
	if err := validateInsulin(i); err != nil {
		return err
	}
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		old, err := s.insulin.GetByID(sess.Context(), i.ID)
		if err != nil {
			return err
		}
		return sess.Update(i, old)
	})
}

func (s *Service) DeleteInsulin(ctx context.Context, id int64) error {
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		i, err := s.insulin.GetByID(sess.Context(), id)
		if err != nil {
			return err
		}
		return sess.Delete(i)
	})
}

func (s *Service) ListInsulin(ctx context.Context, f pagination.Filter, limit, offset int) ([]*Insulin, int, error) {
	return s.insulin.List(ctx, f, limit, offset)
}
