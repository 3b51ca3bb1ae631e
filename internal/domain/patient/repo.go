package patient

import (
	"context"

	"github.com/medai/medai/pkg/pagination"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id int64) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id int64) error
	// List filters by a case-insensitive name fragment when name is set.
	List(ctx context.Context, name string, limit, offset int) ([]*Patient, int, error)
}

type PatientLabRepository interface {
	Create(ctx context.Context, l *PatientLab) error
	GetByID(ctx context.Context, id int64) (*PatientLab, error)
	Update(ctx context.Context, l *PatientLab) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f pagination.Filter, limit, offset int) ([]*PatientLab, int, error)
}
