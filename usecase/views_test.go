package usecase

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdblp/health-tracker/schema"
)

func tp(t time.Time) *time.Time {
	return &t
}

func TestFilterBySubtype(t *testing.T) {
	t1 := time.Date(2023, time.March, 14, 9, 0, 0, 0, time.UTC)
	metrics := []schema.HealthMetric{
		schema.BloodPressure{ID: "1", Timestamp: tp(t1), Systolic: 120, Diastolic: 80},
		schema.BloodSugar{ID: "2", Timestamp: tp(t1), Level: 90},
		schema.BloodPressure{ID: "3", Timestamp: tp(t1), Systolic: 125, Diastolic: 82},
	}
	bps := FilterBySubtype(metrics, schema.BloodPressureType)
	require.Len(t, bps, 2)
	assert.Equal(t, "1", bps[0].MetricID())
	assert.Equal(t, "3", bps[1].MetricID())
	assert.Len(t, FilterBySubtype(metrics, schema.BloodSugarType), 1)
	assert.Empty(t, FilterBySubtype(nil, schema.BloodSugarType))
}

func TestFilterBySubtype_partitions(t *testing.T) {
	base := time.Date(2023, time.March, 14, 9, 0, 0, 0, time.UTC)
	var metrics []schema.HealthMetric
	for i, kind := range []schema.Subtype{"blood_sugar", "blood_pressure", "blood_pressure", "blood_sugar", "blood_sugar", "blood_pressure", "blood_sugar"} {
		ts := tp(base.Add(time.Duration(i) * time.Minute))
		id := string(rune('a' + i))
		if kind == schema.BloodPressureType {
			metrics = append(metrics, schema.BloodPressure{ID: id, Timestamp: ts, Systolic: 120, Diastolic: 80})
		} else {
			metrics = append(metrics, schema.BloodSugar{ID: id, Timestamp: ts, Level: 90})
		}
	}

	bps := FilterBySubtype(metrics, schema.BloodPressureType)
	sugars := FilterBySubtype(metrics, schema.BloodSugarType)
	require.Equal(t, len(metrics), len(bps)+len(sugars))

	seen := map[string]bool{}
	for _, m := range bps {
		seen[m.MetricID()] = true
	}
	for _, m := range sugars {
		assert.False(t, seen[m.MetricID()], "%s is in both filters", m.MetricID())
	}

	// merging both filters by the original kinds rebuilds the original sequence
	merged := make([]schema.HealthMetric, 0, len(metrics))
	for _, m := range metrics {
		if m.Subtype() == schema.BloodPressureType {
			merged, bps = append(merged, bps[0]), bps[1:]
		} else {
			merged, sugars = append(merged, sugars[0]), sugars[1:]
		}
	}
	assert.Equal(t, metrics, merged)
}

func TestLatest(t *testing.T) {
	_, ok := Latest([]schema.BloodSugar{})
	assert.False(t, ok)
	got, ok := Latest([]schema.BloodSugar{{ID: "newest"}, {ID: "older"}})
	assert.True(t, ok)
	assert.Equal(t, "newest", got.ID)
}

func TestUpcoming(t *testing.T) {
	now := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)
	appointments := []schema.Appointment{
		{ID: "past", ScheduledAt: tp(now.Add(-time.Minute))},
		{ID: "just-before", ScheduledAt: tp(now.Add(-time.Microsecond))},
		{ID: "now", ScheduledAt: tp(now)},
		{ID: "undated"},
		{ID: "later", ScheduledAt: tp(now.Add(24 * time.Hour))},
	}
	got := Upcoming(appointments, now)
	require.Len(t, got, 2)
	assert.Equal(t, "now", got[0].ID, "an appointment at exactly now is upcoming")
	assert.Equal(t, "later", got[1].ID)
}

func TestToChartSeries(t *testing.T) {
	t1 := time.Date(2023, time.March, 14, 9, 0, 0, 0, time.UTC)
	t2 := time.Date(2023, time.March, 15, 9, 0, 0, 0, time.UTC)
	metrics := []schema.HealthMetric{
		schema.BloodPressure{ID: "1", Timestamp: tp(t1), Systolic: 120, Diastolic: 80},
		schema.BloodPressure{ID: "2", Timestamp: tp(t2), Systolic: 130, Diastolic: 85},
		schema.BloodPressure{ID: "3", Systolic: 110, Diastolic: 70},
	}
	snapshot := make([]schema.HealthMetric, len(metrics))
	copy(snapshot, metrics)

	series := ToChartSeriesIn(metrics, time.UTC)
	require.Len(t, series, 3)
	assert.Equal(t, ChartPoint{Label: "Mar 14", Values: map[string]int{"systolic": 120, "diastolic": 80}}, series[0])
	assert.Equal(t, "Mar 15", series[1].Label)
	assert.Equal(t, "", series[2].Label, "missing timestamp gives an empty label")
	assert.Equal(t, snapshot, metrics, "input is not mutated")

	body, err := json.Marshal(series[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Mar 14","systolic":120,"diastolic":80}`, string(body))
}

func TestSummarize(t *testing.T) {
	now := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)
	metrics := []schema.HealthMetric{
		schema.BloodSugar{ID: "s2", Timestamp: tp(now.Add(-time.Hour)), Level: 100},
		schema.BloodPressure{ID: "p2", Timestamp: tp(now.Add(-2 * time.Hour)), Systolic: 121, Diastolic: 79},
		schema.BloodSugar{ID: "s1", Timestamp: tp(now.Add(-3 * time.Hour)), Level: 140},
	}
	var appointments []schema.Appointment
	for i := 0; i < 5; i++ {
		appointments = append(appointments, schema.Appointment{ID: string(rune('a' + i)), ScheduledAt: tp(now.Add(time.Duration(i) * time.Hour))})
	}
	summary := Summarize(metrics, appointments, now)
	require.NotNil(t, summary.LatestBloodPressure)
	require.NotNil(t, summary.LatestBloodSugar)
	assert.Equal(t, "p2", summary.LatestBloodPressure.ID)
	assert.Equal(t, "s2", summary.LatestBloodSugar.ID)
	assert.Len(t, summary.Upcoming, DashboardUpcomingLimit)

	empty := Summarize(nil, nil, now)
	assert.Nil(t, empty.LatestBloodPressure)
	assert.Nil(t, empty.LatestBloodSugar)
	assert.Empty(t, empty.Upcoming)
}

func TestAppointmentCards(t *testing.T) {
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	ahead := time.Date(2024, time.March, 2, 9, 30, 0, 0, time.UTC)
	past := time.Date(2024, time.February, 2, 9, 30, 0, 0, time.UTC)
	cards := AppointmentCards([]schema.Appointment{
		{ID: "a", DoctorName: "Smith", Specialty: "Cardiology", ScheduledAt: &ahead, Notes: "bring results"},
		{ID: "b", DoctorName: "Jones", Specialty: "GP", ScheduledAt: &past},
		{ID: "c", DoctorName: "Nobody", Specialty: "GP"},
	}, now, time.UTC)
	require.Len(t, cards, 3)

	assert.False(t, cards[0].Past)
	assert.Equal(t, "Mar 2, 2024, 09:30 AM", cards[0].DisplayDate)
	assert.Equal(t,
		"https://www.google.com/calendar/render?action=TEMPLATE&text=Appointment%20with%20Dr.%20Smith&dates=20240302T093000Z/20240302T103000Z&details=Specialty%3A%20Cardiology%0ANotes%3A%20bring%20results",
		cards[0].CalendarURL)

	assert.True(t, cards[1].Past)
	assert.Empty(t, cards[1].CalendarURL)
	assert.True(t, cards[2].Past)
	assert.Equal(t, "N/A", cards[2].DisplayDate)
	assert.Empty(t, CalendarURL(schema.Appointment{}))
}
