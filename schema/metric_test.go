package schema

import (
	"testing"
	"time"

	"github.com/mdblp/health-tracker/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricFromDocument(t *testing.T) {
	ts := time.Date(2023, time.March, 14, 9, 5, 0, 0, time.UTC)
	tests := []struct {
		name    string
		doc     Document
		want    HealthMetric
		wantErr bool
	}{
		{
			name: "blood pressure with int32 values",
			doc: Document{ID: "bp1", Fields: map[string]interface{}{
				"type": "blood_pressure", "timestamp": ts, "systolic": int32(120), "diastolic": int32(80), "notes": "rest",
			}},
			want: BloodPressure{ID: "bp1", Timestamp: &ts, Systolic: 120, Diastolic: 80, Notes: "rest"},
		},
		{
			name: "blood sugar with float and string timestamp",
			doc: Document{ID: "bs1", Fields: map[string]interface{}{
				"type": "blood_sugar", "timestamp": "2023-03-14T09:05:00Z", "level": float64(104),
			}},
			want: BloodSugar{ID: "bs1", Timestamp: &ts, Level: 104},
		},
		{
			name: "missing timestamp is kept as absent",
			doc:  Document{ID: "bs2", Fields: map[string]interface{}{"type": "blood_sugar", "level": 90}},
			want: BloodSugar{ID: "bs2", Level: 90},
		},
		{
			name:    "unknown type",
			doc:     Document{ID: "x", Fields: map[string]interface{}{"type": "weight", "value": 70}},
			wantErr: true,
		},
		{
			name:    "missing systolic",
			doc:     Document{ID: "bp2", Fields: map[string]interface{}{"type": "blood_pressure", "diastolic": 80}},
			wantErr: true,
		},
		{
			name:    "fractional level",
			doc:     Document{ID: "bs3", Fields: map[string]interface{}{"type": "blood_sugar", "level": 90.5}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MetricFromDocument(tt.doc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHealthMetric_Validate(t *testing.T) {
	assert.NoError(t, BloodPressure{Systolic: 120, Diastolic: 80}.Validate())
	assert.Equal(t, common.NotPositive, common.ValidationClassOf(BloodPressure{Systolic: 0, Diastolic: 80}.Validate()))
	assert.Equal(t, common.NotPositive, common.ValidationClassOf(BloodPressure{Systolic: 120, Diastolic: -1}.Validate()))
	assert.Equal(t, common.NotPositive, common.ValidationClassOf(BloodSugar{Level: 0}.Validate()))
}

func TestHealthMetric_FieldsRoundTrip(t *testing.T) {
	ts := time.Date(2023, time.March, 14, 9, 5, 0, 0, time.UTC)
	in := BloodPressure{ID: "id", Timestamp: &ts, Systolic: 130, Diastolic: 85, Notes: "after walk"}
	out, err := MetricFromDocument(Document{ID: "id", Fields: in.Fields()})
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Equal(t, map[string]int{"systolic": 130, "diastolic": 85}, in.ChartValues())
}

func TestBloodSugar_LevelMmolL(t *testing.T) {
	assert.Equal(t, 10.0, BloodSugar{Level: 180}.LevelMmolL())
}
