package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mdblp/health-tracker/common"
	"github.com/mdblp/health-tracker/schema"
)

type MetricCreator interface {
	Create(ctx context.Context, metric schema.HealthMetric) (string, error)
}

type AppointmentCreator interface {
	Create(ctx context.Context, appointment schema.Appointment) (string, error)
}

type MedicationCreator interface {
	Create(ctx context.Context, medication schema.Medication) (string, error)
}

type MedicationUpdater interface {
	Update(ctx context.Context, id string, patch schema.MedicationPatch) error
}

type Deleter interface {
	Delete(ctx context.Context, id string) error
}

type MetricStore struct {
	*RecordStore[schema.HealthMetric]
}

func OpenMetricStore(ctx context.Context, logger zerolog.Logger, db DocumentDatabase, appID string, userID string, order schema.Order) (*MetricStore, error) {
	store, err := OpenStore(ctx, logger, db, schema.NewScope(appID, userID, schema.HealthMetrics), order, schema.MetricFromDocument)
	if err != nil {
		return nil, err
	}
	return &MetricStore{store}, nil
}

// Create stores a reading stamped with the server clock
func (s *MetricStore) Create(ctx context.Context, metric schema.HealthMetric) (string, error) {
	if metric == nil {
		return "", common.NewValidationError(schema.FieldType, common.EmptyField)
	}
	if err := metric.Validate(); err != nil {
		return "", err
	}
	fields := metric.Fields()
	fields[schema.FieldTimestamp] = schema.ServerTimestamp
	return s.create(ctx, fields)
}

func (s *MetricStore) Delete(ctx context.Context, id string) error {
	return s.remove(ctx, id)
}

type AppointmentStore struct {
	*RecordStore[schema.Appointment]
}

func OpenAppointmentStore(ctx context.Context, logger zerolog.Logger, db DocumentDatabase, appID string, userID string, order schema.Order) (*AppointmentStore, error) {
	store, err := OpenStore(ctx, logger, db, schema.NewScope(appID, userID, schema.Appointments), order, schema.AppointmentFromDocument)
	if err != nil {
		return nil, err
	}
	return &AppointmentStore{store}, nil
}

// Create stores the appointment with its client composed date
func (s *AppointmentStore) Create(ctx context.Context, appointment schema.Appointment) (string, error) {
	if err := appointment.Validate(); err != nil {
		return "", err
	}
	return s.create(ctx, appointment.Fields())
}

func (s *AppointmentStore) Delete(ctx context.Context, id string) error {
	return s.remove(ctx, id)
}

type MedicationStore struct {
	*RecordStore[schema.Medication]
}

func OpenMedicationStore(ctx context.Context, logger zerolog.Logger, db DocumentDatabase, appID string, userID string, order schema.Order) (*MedicationStore, error) {
	store, err := OpenStore(ctx, logger, db, schema.NewScope(appID, userID, schema.Medications), order, schema.MedicationFromDocument)
	if err != nil {
		return nil, err
	}
	return &MedicationStore{store}, nil
}

func (s *MedicationStore) Create(ctx context.Context, medication schema.Medication) (string, error) {
	if err := medication.Validate(); err != nil {
		return "", err
	}
	fields := medication.Fields()
	fields[schema.FieldAddedAt] = schema.ServerTimestamp
	return s.create(ctx, fields)
}

// Update only ever touches name and dosage
func (s *MedicationStore) Update(ctx context.Context, id string, patch schema.MedicationPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	return s.update(ctx, id, patch.Fields())
}

func (s *MedicationStore) Delete(ctx context.Context, id string) error {
	return s.remove(ctx, id)
}
