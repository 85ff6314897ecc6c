package schema

import (
	"testing"
	"time"

	"github.com/mdblp/health-tracker/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_TimeBeforeOrEqual(t *testing.T) {
	time1 := time.Date(2023, time.March, 14, 0, 0, 0, 0, time.UTC)
	time2 := time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC)
	assert.True(t, TimeBeforeOrEqual(&time1, &time1))
	assert.True(t, TimeBeforeOrEqual(&time1, &time2))
	assert.False(t, TimeBeforeOrEqual(&time2, &time1))
	assert.True(t, TimeBeforeOrEqual(&time1, nil))
	assert.False(t, TimeBeforeOrEqual(nil, &time1))
}

func Test_TimeAfterOrEqual(t *testing.T) {
	time1 := time.Date(2023, time.March, 14, 0, 0, 0, 0, time.UTC)
	time2 := time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC)
	assert.True(t, TimeAfterOrEqual(&time1, &time1))
	assert.True(t, TimeAfterOrEqual(&time2, &time1))
	assert.False(t, TimeAfterOrEqual(&time1, &time2))
	assert.False(t, TimeAfterOrEqual(nil, &time1))
}

func TestComposeLocalTime(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	got, err := ComposeLocalTime("2024-05-02", "14:30", loc)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, time.May, 2, 12, 30, 0, 0, time.UTC)))

	_, err = ComposeLocalTime("", "14:30", loc)
	assert.Equal(t, common.EmptyField, common.ValidationClassOf(err))
	_, err = ComposeLocalTime("2024-05-02", " ", loc)
	assert.Equal(t, common.EmptyField, common.ValidationClassOf(err))

	tests := []struct {
		date, clock string
		wantField   string
	}{
		{"2024-13-45", "14:30", FieldDate},
		{"tomorrow", "14:30", FieldDate},
		{"2024-05-02", "25:99", "time"},
		{"2024-05-02", "noon", "time"},
		{"2024-13-45", "noon", FieldDate},
	}
	for _, tt := range tests {
		_, err := ComposeLocalTime(tt.date, tt.clock, loc)
		var verr *common.ValidationError
		require.ErrorAs(t, err, &verr, "%s %s", tt.date, tt.clock)
		assert.Equal(t, tt.wantField, verr.Field, "%s %s", tt.date, tt.clock)
		assert.Equal(t, common.NotANumber, verr.Class)
	}
}
