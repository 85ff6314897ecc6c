package schema

import (
	"fmt"
	"time"

	"github.com/mdblp/health-tracker/common"
)

type Subtype string

const (
	BloodPressureType Subtype = "blood_pressure"
	BloodSugarType    Subtype = "blood_sugar"
)

// Stored field names of the health_metrics collection
const (
	FieldType      = "type"
	FieldTimestamp = "timestamp"
	FieldSystolic  = "systolic"
	FieldDiastolic = "diastolic"
	FieldLevel     = "level"
	FieldNotes     = "notes"
)

func (s Subtype) Valid() bool {
	return s == BloodPressureType || s == BloodSugarType
}

func ParseSubtype(s string) (Subtype, error) {
	st := Subtype(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown metric type %q", s)
	}
	return st, nil
}

// HealthMetric is either a BloodPressure or a BloodSugar reading
type HealthMetric interface {
	MetricID() string
	Subtype() Subtype
	RecordedAt() *time.Time
	// Fields returns the stored representation, without the id
	Fields() map[string]interface{}
	// ChartValues returns the numeric fields plotted for this subtype
	ChartValues() map[string]int
	Validate() error
	withID(id string) HealthMetric
}

type BloodPressure struct {
	ID        string     `json:"id"`
	Timestamp *time.Time `json:"timestamp"`
	Systolic  int        `json:"systolic"`
	Diastolic int        `json:"diastolic"`
	Notes     string     `json:"notes,omitempty"`
}

func (b BloodPressure) MetricID() string       { return b.ID }
func (b BloodPressure) Subtype() Subtype       { return BloodPressureType }
func (b BloodPressure) RecordedAt() *time.Time { return b.Timestamp }

func (b BloodPressure) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		FieldType:      string(BloodPressureType),
		FieldSystolic:  b.Systolic,
		FieldDiastolic: b.Diastolic,
		FieldNotes:     b.Notes,
	}
	if b.Timestamp != nil {
		fields[FieldTimestamp] = *b.Timestamp
	}
	return fields
}

func (b BloodPressure) ChartValues() map[string]int {
	return map[string]int{FieldSystolic: b.Systolic, FieldDiastolic: b.Diastolic}
}

func (b BloodPressure) Validate() error {
	if b.Systolic <= 0 {
		return common.NewValidationError(FieldSystolic, common.NotPositive)
	}
	if b.Diastolic <= 0 {
		return common.NewValidationError(FieldDiastolic, common.NotPositive)
	}
	return nil
}

func (b BloodPressure) withID(id string) HealthMetric {
	b.ID = id
	return b
}

type BloodSugar struct {
	ID        string     `json:"id"`
	Timestamp *time.Time `json:"timestamp"`
	Level     int        `json:"level"`
	Notes     string     `json:"notes,omitempty"`
}

func (b BloodSugar) MetricID() string       { return b.ID }
func (b BloodSugar) Subtype() Subtype       { return BloodSugarType }
func (b BloodSugar) RecordedAt() *time.Time { return b.Timestamp }

func (b BloodSugar) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		FieldType:  string(BloodSugarType),
		FieldLevel: b.Level,
		FieldNotes: b.Notes,
	}
	if b.Timestamp != nil {
		fields[FieldTimestamp] = *b.Timestamp
	}
	return fields
}

func (b BloodSugar) ChartValues() map[string]int {
	return map[string]int{FieldLevel: b.Level}
}

func (b BloodSugar) Validate() error {
	if b.Level <= 0 {
		return common.NewValidationError(FieldLevel, common.NotPositive)
	}
	return nil
}

func (b BloodSugar) withID(id string) HealthMetric {
	b.ID = id
	return b
}

// LevelMmolL returns the glycemia converted to mmol/L
func (b BloodSugar) LevelMmolL() float64 {
	v, err := common.ConvertBG(float64(b.Level), common.UnitMgdL)
	if err != nil {
		return 0
	}
	return v
}

// WithMetricID returns a copy of m carrying id
func WithMetricID(m HealthMetric, id string) HealthMetric {
	return m.withID(id)
}

// MetricFromDocument decodes a stored health metric. Unknown types and missing
// subtype fields are reported as errors so that the caller can skip the document.
func MetricFromDocument(doc Document) (HealthMetric, error) {
	rawType, _ := doc.Get(FieldType).(string)
	timestamp := ToTimePtr(doc.Get(FieldTimestamp))
	notes := ToString(doc.Get(FieldNotes))
	switch Subtype(rawType) {
	case BloodPressureType:
		systolic, ok := ToInt(doc.Get(FieldSystolic))
		if !ok {
			return nil, fmt.Errorf("document %s: missing or invalid %s", doc.ID, FieldSystolic)
		}
		diastolic, ok := ToInt(doc.Get(FieldDiastolic))
		if !ok {
			return nil, fmt.Errorf("document %s: missing or invalid %s", doc.ID, FieldDiastolic)
		}
		return BloodPressure{ID: doc.ID, Timestamp: timestamp, Systolic: systolic, Diastolic: diastolic, Notes: notes}, nil
	case BloodSugarType:
		level, ok := ToInt(doc.Get(FieldLevel))
		if !ok {
			return nil, fmt.Errorf("document %s: missing or invalid %s", doc.ID, FieldLevel)
		}
		return BloodSugar{ID: doc.ID, Timestamp: timestamp, Level: level, Notes: notes}, nil
	}
	return nil, fmt.Errorf("document %s: unknown metric type %q", doc.ID, rawType)
}
