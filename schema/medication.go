package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/mdblp/health-tracker/common"
)

const (
	FieldName    = "name"
	FieldDosage  = "dosage"
	FieldAddedAt = "addedAt"
)

type Medication struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Dosage  string     `json:"dosage"`
	AddedAt *time.Time `json:"addedAt"`
}

func (m Medication) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		FieldName:   m.Name,
		FieldDosage: m.Dosage,
	}
	if m.AddedAt != nil {
		fields[FieldAddedAt] = *m.AddedAt
	}
	return fields
}

func (m Medication) Validate() error {
	_, err := RequireText(FieldName, m.Name)
	return err
}

// MedicationPatch lists the only fields a medication update may touch
type MedicationPatch struct {
	Name   *string `json:"name,omitempty"`
	Dosage *string `json:"dosage,omitempty"`
}

func (p MedicationPatch) Validate() error {
	if p.Name == nil && p.Dosage == nil {
		return common.NewValidationError(FieldName, common.EmptyField)
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return common.NewValidationError(FieldName, common.EmptyField)
	}
	return nil
}

func (p MedicationPatch) Fields() map[string]interface{} {
	fields := map[string]interface{}{}
	if p.Name != nil {
		fields[FieldName] = strings.TrimSpace(*p.Name)
	}
	if p.Dosage != nil {
		fields[FieldDosage] = strings.TrimSpace(*p.Dosage)
	}
	return fields
}

func MedicationFromDocument(doc Document) (Medication, error) {
	if doc.ID == "" {
		return Medication{}, fmt.Errorf("medication without id")
	}
	return Medication{
		ID:      doc.ID,
		Name:    ToString(doc.Get(FieldName)),
		Dosage:  ToString(doc.Get(FieldDosage)),
		AddedAt: ToTimePtr(doc.Get(FieldAddedAt)),
	}, nil
}
