package usecase

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mdblp/health-tracker/common"
	"github.com/mdblp/health-tracker/schema"
)

// ErrInFlight is returned when a form is submitted while its previous submit is outstanding
var ErrInFlight = common.NewError(common.CodeConflict, "A submission is already in progress", nil)

// Form holds the raw text inputs of an entry form. Submits are single-flight:
// a re-entrant Submit returns ErrInFlight without touching the store.
// Inputs are cleared after a successful write and kept after a failure.
type Form[In any] struct {
	mu       sync.Mutex
	input    In
	inFlight atomic.Bool
	validate func(In) error
	submit   func(ctx context.Context, in In) (string, error)
}

func newForm[In any](validate func(In) error, submit func(context.Context, In) (string, error)) *Form[In] {
	return &Form[In]{validate: validate, submit: submit}
}

// Fill replaces the current inputs
func (f *Form[In]) Fill(in In) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.input = in
}

func (f *Form[In]) Input() In {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.input
}

func (f *Form[In]) Busy() bool {
	return f.inFlight.Load()
}

func (f *Form[In]) Validate() error {
	return f.validate(f.Input())
}

// Submit validates and writes the current inputs
func (f *Form[In]) Submit(ctx context.Context) (string, error) {
	if !f.inFlight.CompareAndSwap(false, true) {
		return "", ErrInFlight
	}
	defer f.inFlight.Store(false)
	return f.do(ctx, f.Input())
}

// SubmitWith fills the form with in and submits it, unless a submit is already running
func (f *Form[In]) SubmitWith(ctx context.Context, in In) (string, error) {
	if !f.inFlight.CompareAndSwap(false, true) {
		return "", ErrInFlight
	}
	defer f.inFlight.Store(false)
	f.Fill(in)
	return f.do(ctx, in)
}

func (f *Form[In]) do(ctx context.Context, in In) (string, error) {
	if err := f.validate(in); err != nil {
		return "", err
	}
	id, err := f.submit(ctx, in)
	if err != nil {
		return "", err
	}
	var zero In
	f.Fill(zero)
	return id, nil
}

type BloodPressureInput struct {
	Systolic  string `json:"systolic"`
	Diastolic string `json:"diastolic"`
	Notes     string `json:"notes"`
}

func (in BloodPressureInput) Build() (schema.BloodPressure, error) {
	systolic, err := schema.ParsePositiveInt(schema.FieldSystolic, in.Systolic)
	if err != nil {
		return schema.BloodPressure{}, err
	}
	diastolic, err := schema.ParsePositiveInt(schema.FieldDiastolic, in.Diastolic)
	if err != nil {
		return schema.BloodPressure{}, err
	}
	return schema.BloodPressure{Systolic: systolic, Diastolic: diastolic, Notes: strings.TrimSpace(in.Notes)}, nil
}

type BloodSugarInput struct {
	Level string `json:"level"`
	Notes string `json:"notes"`
}

func (in BloodSugarInput) Build() (schema.BloodSugar, error) {
	level, err := schema.ParsePositiveInt(schema.FieldLevel, in.Level)
	if err != nil {
		return schema.BloodSugar{}, err
	}
	return schema.BloodSugar{Level: level, Notes: strings.TrimSpace(in.Notes)}, nil
}

type AppointmentInput struct {
	DoctorName string `json:"doctorName"`
	Specialty  string `json:"specialty"`
	Date       string `json:"date"` // YYYY-MM-DD
	Time       string `json:"time"` // HH:MM
	Notes      string `json:"notes"`
}

func (in AppointmentInput) Build(loc *time.Location) (schema.Appointment, error) {
	doctor, err := schema.RequireText(schema.FieldDoctorName, in.DoctorName)
	if err != nil {
		return schema.Appointment{}, err
	}
	specialty, err := schema.RequireText(schema.FieldSpecialty, in.Specialty)
	if err != nil {
		return schema.Appointment{}, err
	}
	at, err := schema.ComposeLocalTime(in.Date, in.Time, loc)
	if err != nil {
		return schema.Appointment{}, err
	}
	return schema.Appointment{DoctorName: doctor, Specialty: specialty, ScheduledAt: &at, Notes: strings.TrimSpace(in.Notes)}, nil
}

type MedicationInput struct {
	Name   string `json:"name"`
	Dosage string `json:"dosage"`
}

func (in MedicationInput) Build() (schema.Medication, error) {
	name, err := schema.RequireText(schema.FieldName, in.Name)
	if err != nil {
		return schema.Medication{}, err
	}
	return schema.Medication{Name: name, Dosage: strings.TrimSpace(in.Dosage)}, nil
}

type (
	BloodPressureForm = Form[BloodPressureInput]
	BloodSugarForm    = Form[BloodSugarInput]
	AppointmentForm   = Form[AppointmentInput]
	MedicationForm    = Form[MedicationInput]
)

func NewBloodPressureForm(store MetricCreator) *BloodPressureForm {
	return newForm(
		func(in BloodPressureInput) error {
			_, err := in.Build()
			return err
		},
		func(ctx context.Context, in BloodPressureInput) (string, error) {
			bp, err := in.Build()
			if err != nil {
				return "", err
			}
			return store.Create(ctx, bp)
		},
	)
}

func NewBloodSugarForm(store MetricCreator) *BloodSugarForm {
	return newForm(
		func(in BloodSugarInput) error {
			_, err := in.Build()
			return err
		},
		func(ctx context.Context, in BloodSugarInput) (string, error) {
			bs, err := in.Build()
			if err != nil {
				return "", err
			}
			return store.Create(ctx, bs)
		},
	)
}

// NewAppointmentForm composes date and time in loc, time.Local when nil
func NewAppointmentForm(store AppointmentCreator, loc *time.Location) *AppointmentForm {
	return newForm(
		func(in AppointmentInput) error {
			_, err := in.Build(loc)
			return err
		},
		func(ctx context.Context, in AppointmentInput) (string, error) {
			a, err := in.Build(loc)
			if err != nil {
				return "", err
			}
			return store.Create(ctx, a)
		},
	)
}

func NewMedicationForm(store MedicationCreator) *MedicationForm {
	return newForm(
		func(in MedicationInput) error {
			_, err := in.Build()
			return err
		},
		func(ctx context.Context, in MedicationInput) (string, error) {
			m, err := in.Build()
			if err != nil {
				return "", err
			}
			return store.Create(ctx, m)
		},
	)
}

// MedicationEditInput is the editable copy of one medication
type MedicationEditInput struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Dosage string `json:"dosage"`
}

func (in MedicationEditInput) Build() (string, schema.MedicationPatch, error) {
	if strings.TrimSpace(in.ID) == "" {
		return "", schema.MedicationPatch{}, common.NewValidationError("id", common.EmptyField)
	}
	name, err := schema.RequireText(schema.FieldName, in.Name)
	if err != nil {
		return "", schema.MedicationPatch{}, err
	}
	dosage := strings.TrimSpace(in.Dosage)
	return in.ID, schema.MedicationPatch{Name: &name, Dosage: &dosage}, nil
}

// MedicationEditForm edits an existing medication in place. Until the user
// touches a field, Rebase keeps the copy in sync with the live records.
type MedicationEditForm struct {
	*Form[MedicationEditInput]
	touched atomic.Bool
}

func NewMedicationEditForm(store MedicationUpdater, medication schema.Medication) *MedicationEditForm {
	f := &MedicationEditForm{}
	f.Form = newForm(
		func(in MedicationEditInput) error {
			_, _, err := in.Build()
			return err
		},
		func(ctx context.Context, in MedicationEditInput) (string, error) {
			id, patch, err := in.Build()
			if err != nil {
				return "", err
			}
			if err := store.Update(ctx, id, patch); err != nil {
				return "", err
			}
			f.touched.Store(false)
			return id, nil
		},
	)
	f.Fill(editInputOf(medication))
	return f
}

// Edit records user changes; Rebase no longer overwrites them
func (f *MedicationEditForm) Edit(in MedicationEditInput) {
	in.ID = f.Input().ID
	f.touched.Store(true)
	f.Fill(in)
}

func (f *MedicationEditForm) Touched() bool {
	return f.touched.Load()
}

// Rebase refreshes the untouched copy from the newest snapshot. It reports
// false when the medication no longer exists.
func (f *MedicationEditForm) Rebase(latest []schema.Medication) bool {
	id := f.Input().ID
	for _, m := range latest {
		if m.ID != id {
			continue
		}
		if !f.touched.Load() && !f.Busy() {
			f.Fill(editInputOf(m))
		}
		return true
	}
	return false
}

func editInputOf(m schema.Medication) MedicationEditInput {
	return MedicationEditInput{ID: m.ID, Name: m.Name, Dosage: m.Dosage}
}
