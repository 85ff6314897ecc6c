package usecase

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bpColumns = []Column{
	{SourceKey: "timestamp", DisplayLabel: "Timestamp"},
	{SourceKey: "systolic", DisplayLabel: "Systolic (mmHg)"},
	{SourceKey: "diastolic", DisplayLabel: "Diastolic (mmHg)"},
	{SourceKey: "notes", DisplayLabel: "Notes"},
}

func TestToCSV(t *testing.T) {
	ts := time.Date(2023, time.March, 14, 9, 5, 0, 0, time.UTC)
	tests := []struct {
		name    string
		records []map[string]interface{}
		want    string
	}{
		{
			name:    "header only",
			records: nil,
			want:    "Timestamp,Systolic (mmHg),Diastolic (mmHg),Notes",
		},
		{
			name: "plain values",
			records: []map[string]interface{}{
				{"timestamp": ts, "systolic": 120, "diastolic": 80, "notes": "rest"},
			},
			want: "Timestamp,Systolic (mmHg),Diastolic (mmHg),Notes\n\"Mar 14, 2023, 09:05 AM\",120,80,rest",
		},
		{
			name: "absent values",
			records: []map[string]interface{}{
				{"systolic": 120, "diastolic": 80},
			},
			want: "Timestamp,Systolic (mmHg),Diastolic (mmHg),Notes\n,120,80,",
		},
		{
			name: "quoting",
			records: []map[string]interface{}{
				{"timestamp": nil, "systolic": 1, "diastolic": 2, "notes": `said "hi", then left`},
				{"systolic": 3, "diastolic": 4, "notes": "two\nlines"},
			},
			want: "Timestamp,Systolic (mmHg),Diastolic (mmHg),Notes\n,1,2,\"said \"\"hi\"\", then left\"\n,3,4,\"two\nlines\"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToCSVIn(tt.records, bpColumns, time.UTC))
		})
	}
}

func TestToCSV_roundTripsThroughCSVReader(t *testing.T) {
	notes := []string{
		"plain",
		"comma, inside",
		`quote " inside`,
		"new\nline",
		`all, of "them"` + "\nat once",
		"",
	}
	records := make([]map[string]interface{}, 0, len(notes))
	for i, n := range notes {
		records = append(records, map[string]interface{}{"systolic": 100 + i, "diastolic": 70, "notes": n})
	}

	out := ToCSVIn(records, bpColumns, time.UTC)
	parsed, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, parsed, len(notes)+1)
	assert.Equal(t, []string{"Timestamp", "Systolic (mmHg)", "Diastolic (mmHg)", "Notes"}, parsed[0])
	for i, n := range notes {
		assert.Equal(t, n, parsed[i+1][3])
	}
}

func TestColumn_OrderField(t *testing.T) {
	assert.Equal(t, "date", Column{SourceKey: "date", SortKey: "date"}.OrderField())
	assert.Equal(t, "name", Column{SourceKey: "name"}.OrderField())
}
