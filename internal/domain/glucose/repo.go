package glucose

import (
	"context"
	"time"

	"github.com/medai/medai/pkg/pagination"
)

type ReadingRepository interface {
	Create(ctx context.Context, r *Reading) error
	GetByID(ctx context.Context, id int64) (*Reading, error)
	Update(ctx context.Context, r *Reading) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f pagination.Filter, limit, offset int) ([]*Reading, int, error)
}

type ReadingHistoryRepository interface {
	Create(ctx context.Context, h *ReadingHistory) error
	GetByID(ctx context.Context, id int64) (*ReadingHistory, error)
	GetByPatientDate(ctx context.Context, patientID int64, day time.Time) (*ReadingHistory, error)
	Update(ctx context.Context, h *ReadingHistory) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f pagination.Filter, limit, offset int) ([]*ReadingHistory, int, error)
}

type InsulinRuleRepository interface {
	Create(ctx context.Context, r *InsulinRule) error
	GetByID(ctx context.Context, id int64) (*InsulinRule, error)
	Update(ctx context.Context, r *InsulinRule) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]*InsulinRule, int, error)
	ListAll(ctx context.Context) ([]*InsulinRule, error)
}

type InsulinRepository interface {
	Create(ctx context.Context, i *Insulin) error
	GetByID(ctx context.Context, id int64) (*Insulin, error)
	GetByPatientDateDrug(ctx context.Context, patientID int64, day time.Time, drugID int64) (*Insulin, error)
	Update(ctx context.Context, i *Insulin) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f pagination.Filter, limit, offset int) ([]*Insulin, int, error)
}
