package medication

import (
	"context"
	"time"

	"github.com/medai/medai/pkg/pagination"
)

type PatientMedicationRepository interface {
	Create(ctx context.Context, m *PatientMedication) error
	GetByID(ctx context.Context, id int64) (*PatientMedication, error)
	Update(ctx context.Context, m *PatientMedication) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f pagination.Filter, limit, offset int) ([]*PatientMedication, int, error)
	ListByPatient(ctx context.Context, patientID int64) ([]*PatientMedication, error)
	ListByDrug(ctx context.Context, drugID int64) ([]*PatientMedication, error)
}

type RecommendationRepository interface {
	Create(ctx context.Context, r *Recommendation) error
	GetByID(ctx context.Context, id int64) (*Recommendation, error)
	Update(ctx context.Context, r *Recommendation) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f pagination.Filter, limit, offset int) ([]*Recommendation, int, error)
	// FindForDay returns the recommendation for the patient, drug, calendar
	// day and meal slot. An empty timeOfReading matches rows without one.
	FindForDay(ctx context.Context, patientID, drugID int64, day time.Time, timeOfReading string) (*Recommendation, error)
}
