package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdblp/health-tracker/schema"
)

func TestTimeInRange(t *testing.T) {
	assert.Nil(t, TimeInRange(nil))

	early := time.Date(2023, time.March, 14, 8, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)
	ranges := TimeInRange([]schema.BloodSugar{
		{Level: 40, Timestamp: &early},
		{Level: 54},
		{Level: 70},
		{Level: 180, Timestamp: &late},
		{Level: 250},
		{Level: 251},
		{Level: 120},
		{Level: 100},
	})
	require.NotNil(t, ranges)
	assert.Equal(t, 8, ranges.Total)
	assert.Equal(t, SugarCounts{VeryLow: 1, Low: 1, Target: 4, High: 1, VeryHigh: 1}, ranges.Count)
	assert.InDelta(t, 0.5, ranges.Rate.Target, 0.0001)
	assert.InDelta(t, 0.125, ranges.Rate.VeryHigh, 0.0001)
	require.NotNil(t, ranges.LastTime)
	assert.True(t, ranges.LastTime.Equal(late))
}
