package formulary

import (
	"context"
)

type DrugUnitRepository interface {
	Create(ctx context.Context, u *DrugUnit) error
	List(ctx context.Context) ([]*DrugUnit, error)
	Delete(ctx context.Context, name string) error
}

type DrugRepository interface {
	Create(ctx context.Context, d *Drug) error
	GetByID(ctx context.Context, id int64) (*Drug, error)
	GetByName(ctx context.Context, name string) (*Drug, error)
	Update(ctx context.Context, d *Drug) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]*Drug, int, error)
}

type DosageRepository interface {
	Create(ctx context.Context, d *Dosage) error
	GetByID(ctx context.Context, id int64) (*Dosage, error)
	Update(ctx context.Context, d *Dosage) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]*Dosage, int, error)
	ListByDrug(ctx context.Context, drugID int64) ([]*Dosage, error)
}

type ContraindicationRepository interface {
	Create(ctx context.Context, c *Contraindication) error
	GetByID(ctx context.Context, id int64) (*Contraindication, error)
	Update(ctx context.Context, c *Contraindication) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]*Contraindication, int, error)
	// ListByDrug returns the pairs naming drugID on either side.
	ListByDrug(ctx context.Context, drugID int64) ([]*Contraindication, error)
}
