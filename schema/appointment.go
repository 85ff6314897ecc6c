package schema

import (
	"fmt"
	"time"

	"github.com/mdblp/health-tracker/common"
)

const (
	FieldDoctorName = "doctorName"
	FieldSpecialty  = "specialty"
	FieldDate       = "date"
)

type Appointment struct {
	ID          string     `json:"id"`
	DoctorName  string     `json:"doctorName"`
	Specialty   string     `json:"specialty"`
	ScheduledAt *time.Time `json:"date"`
	Notes       string     `json:"notes,omitempty"`
}

func (a Appointment) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		FieldDoctorName: a.DoctorName,
		FieldSpecialty:  a.Specialty,
		FieldNotes:      a.Notes,
	}
	if a.ScheduledAt != nil {
		fields[FieldDate] = *a.ScheduledAt
	}
	return fields
}

func (a Appointment) Validate() error {
	if _, err := RequireText(FieldDoctorName, a.DoctorName); err != nil {
		return err
	}
	if _, err := RequireText(FieldSpecialty, a.Specialty); err != nil {
		return err
	}
	if a.ScheduledAt == nil || a.ScheduledAt.IsZero() {
		return common.NewValidationError(FieldDate, common.EmptyField)
	}
	return nil
}

func AppointmentFromDocument(doc Document) (Appointment, error) {
	if doc.ID == "" {
		return Appointment{}, fmt.Errorf("appointment without id")
	}
	return Appointment{
		ID:          doc.ID,
		DoctorName:  ToString(doc.Get(FieldDoctorName)),
		Specialty:   ToString(doc.Get(FieldSpecialty)),
		ScheduledAt: ToTimePtr(doc.Get(FieldDate)),
		Notes:       ToString(doc.Get(FieldNotes)),
	}, nil
}
