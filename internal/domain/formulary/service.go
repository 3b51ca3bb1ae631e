package formulary

import (
	"context"
	"fmt"
	"strings"

	"github.com/medai/medai/internal/logic"
)

type Service struct {
	engine            *logic.Engine
	units             DrugUnitRepository
	drugs             DrugRepository
	dosages           DosageRepository
	contraindications ContraindicationRepository
}

func NewService(engine *logic.Engine, units DrugUnitRepository, drugs DrugRepository, dosages DosageRepository, contra ContraindicationRepository) *Service {
	return &Service{
		engine:            engine,
		units:             units,
		drugs:             drugs,
		dosages:           dosages,
		contraindications: contra,
	}
}

// RegisterPersisters lets the rule engine write formulary rows.
func RegisterPersisters(e *logic.Engine, units DrugUnitRepository, drugs DrugRepository, dosages DosageRepository, contra ContraindicationRepository) {
	e.Register(EntityDrugUnit, logic.PersisterFuncs[*DrugUnit]{
		InsertFn: units.Create,
		DeleteFn: func(ctx context.Context, u *DrugUnit) error { return units.Delete(ctx, u.UnitName) },
	})
	e.Register(EntityDrug, logic.PersisterFuncs[*Drug]{
		InsertFn: drugs.Create,
		UpdateFn: drugs.Update,
		DeleteFn: func(ctx context.Context, d *Drug) error { return drugs.Delete(ctx, d.ID) },
	})
	e.Register(EntityDosage, logic.PersisterFuncs[*Dosage]{
		InsertFn: dosages.Create,
		UpdateFn: dosages.Update,
		DeleteFn: func(ctx context.Context, d *Dosage) error { return dosages.Delete(ctx, d.ID) },
	})
	e.Register(EntityContraindication, logic.PersisterFuncs[*Contraindication]{
		InsertFn: contra.Create,
		UpdateFn: contra.Update,
		DeleteFn: func(ctx context.Context, c *Contraindication) error { return contra.Delete(ctx, c.ID) },
	})
}

// -- DrugUnit --

func (s *Service) CreateUnit(ctx context.Context, u *DrugUnit) error {
	u.UnitName = strings.TrimSpace(u.UnitName)
	if u.UnitName == "" {
		return fmt.Errorf("unit_name is required")
	}
	if len(u.UnitName) > 10 {
		return fmt.Errorf("unit_name must be at most 10 characters")
	}
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		return sess.Insert(u)
	})
}

func (s *Service) ListUnits(ctx context.Context) ([]*DrugUnit, error) {
	return s.units.List(ctx)
}

func (s *Service) DeleteUnit(ctx context.Context, name string) error {
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		return sess.Delete(&DrugUnit{UnitName: name})
	})
}

// -- Drug --

func (s *Service) CreateDrug(ctx context.Context, d *Drug) error {
	if strings.TrimSpace(d.DrugName) == "" {
		return fmt.Errorf("drug_name is required")
	}
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		return sess.Insert(d)
	})
}

func (s *Service) GetDrug(ctx context.Context, id int64) (*Drug, error) {
	return s.drugs.GetByID(ctx, id)
}

func (s *Service) UpdateDrug(ctx context.Context, d *Drug) error {
	if strings.TrimSpace(d.DrugName) == "" {
		return fmt.Errorf("drug_name is required")
	}
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		old, err := s.drugs.GetByID(sess.Context(), d.ID)
		if err != nil {
			return err
		}
		return sess.Update(d, old)
	})
}

func (s *Service) DeleteDrug(ctx context.Context, id int64) error {
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		d, err := s.drugs.GetByID(sess.Context(), id)
		if err != nil {
			return err
		}
		return sess.Delete(d)
	})
}

func (s *Service) ListDrugs(ctx context.Context, limit, offset int) ([]*Drug, int, error) {
	return s.drugs.List(ctx, limit, offset)
}

// -- Dosage --

func validateDosage(d *Dosage) error {
	if d.DrugID <= 0 {
		return fmt.Errorf("drug_id is required")
	}
	if d.MinDose != nil && d.MaxDose != nil && *d.MinDose > *d.MaxDose {
		return fmt.Errorf("min_dose must not exceed max_dose")
	}
	if d.MinAge != nil && d.MaxAge != nil && *d.MinAge > *d.MaxAge {
		return fmt.Errorf("min_age must not exceed max_age")
	}
	return nil
}

func (s *Service) CreateDosage(ctx context.Context, d *Dosage) error {
	if err := validateDosage(d); err != nil {
		return err
	}
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		return sess.Insert(d)
	})
}

func (s *Service) GetDosage(ctx context.Context, id int64) (*Dosage, error) {
	return s.dosages.GetByID(ctx, id)
}

func (s *Service) UpdateDosage(ctx context.Context, d *Dosage) error {
	if err := validateDosage(d); err != nil {
		return err
	}
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		old, err := s.dosages.GetByID(sess.Context(), d.ID)
		if err != nil {
			return err
		}
		return sess.Update(d, old)
	})
}

func (s *Service) DeleteDosage(ctx context.Context, id int64) error {
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		d, err := s.dosages.GetByID(sess.Context(), id)
		if err != nil {
			return err
		}
		return sess.Delete(d)
	})
}

func (s *Service) ListDosages(ctx context.Context, limit, offset int) ([]*Dosage, int, error) {
	return s.dosages.List(ctx, limit, offset)
}

// -- Contraindication --

func (s *Service) CreateContraindication(ctx context.Context, c *Contraindication) error {
	if c.DrugID1 <= 0 || c.DrugID2 <= 0 {
		return fmt.Errorf("drug_id_1 and drug_id_2 are required")
	}
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		return sess.Insert(c)
	})
}

func (s *Service) GetContraindication(ctx context.Context, id int64) (*Contraindication, error) {
	return s.contraindications.GetByID(ctx, id)
}

func (s *Service) UpdateContraindication(ctx context.Context, c *Contraindication) error {
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		old, err := s.contraindications.GetByID(sess.Context(), c.ID)
		if err != nil {
			return err
		}
		return sess.Update(c, old)
	})
}

func (s *Service) DeleteContraindication(ctx context.Context, id int64) error {
	return s.engine.Run(ctx, func(sess *logic.Session) error {
		c, err := s.contraindications.GetByID(sess.Context(), id)
		if err != nil {
			return err
		}
		return sess.Delete(c)
	})
}

func (s *Service) ListContraindications(ctx context.Context, limit, offset int) ([]*Contraindication, int, error) {
	return s.contraindications.List(ctx, limit, offset)
}
