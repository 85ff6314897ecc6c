package usecase

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mdblp/health-tracker/common"
	"github.com/mdblp/health-tracker/schema"
)

// DashboardUpcomingLimit is the number of upcoming appointments shown on the dashboard
const DashboardUpcomingLimit = 3

// FilterBySubtype keeps the readings of one kind, preserving order
func FilterBySubtype(metrics []schema.HealthMetric, subtype schema.Subtype) []schema.HealthMetric {
	out := make([]schema.HealthMetric, 0, len(metrics))
	for _, m := range metrics {
		if m != nil && m.Subtype() == subtype {
			out = append(out, m)
		}
	}
	return out
}

func BloodPressures(metrics []schema.HealthMetric) []schema.BloodPressure {
	out := make([]schema.BloodPressure, 0, len(metrics))
	for _, m := range metrics {
		if bp, ok := m.(schema.BloodPressure); ok {
			out = append(out, bp)
		}
	}
	return out
}

func BloodSugars(metrics []schema.HealthMetric) []schema.BloodSugar {
	out := make([]schema.BloodSugar, 0, len(metrics))
	for _, m := range metrics {
		if bs, ok := m.(schema.BloodSugar); ok {
			out = append(out, bs)
		}
	}
	return out
}

// Latest returns the first element of a descending sequence
func Latest[T any](seq []T) (T, bool) {
	var zero T
	if len(seq) == 0 {
		return zero, false
	}
	return seq[0], true
}

// Upcoming keeps the appointments scheduled at or after now, preserving order
func Upcoming(appointments []schema.Appointment, now time.Time) []schema.Appointment {
	out := make([]schema.Appointment, 0, len(appointments))
	for _, a := range appointments {
		if a.ScheduledAt != nil && schema.TimeAfterOrEqual(a.ScheduledAt, &now) {
			out = append(out, a)
		}
	}
	return out
}

// AppointmentCard is an appointment as listed, with its calendar link while it is still ahead
type AppointmentCard struct {
	schema.Appointment
	DisplayDate string `json:"displayDate"`
	Past        bool   `json:"past"`
	CalendarURL string `json:"calendarUrl,omitempty"`
}

const calendarStampLayout = "20060102T150405Z"

// CalendarURL links to a one hour Google Calendar event prefilled with the appointment
func CalendarURL(a schema.Appointment) string {
	if a.ScheduledAt == nil {
		return ""
	}
	start := a.ScheduledAt.UTC()
	end := start.Add(time.Hour)
	title := uriComponent("Appointment with Dr. " + a.DoctorName)
	details := uriComponent(fmt.Sprintf("Specialty: %s\nNotes: %s", a.Specialty, a.Notes))
	return fmt.Sprintf("https://www.google.com/calendar/render?action=TEMPLATE&text=%s&dates=%s/%s&details=%s",
		title, start.Format(calendarStampLayout), end.Format(calendarStampLayout), details)
}

func uriComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// AppointmentCards decorates appointments for display; past ones get no calendar link
func AppointmentCards(appointments []schema.Appointment, now time.Time, loc *time.Location) []AppointmentCard {
	cards := make([]AppointmentCard, 0, len(appointments))
	for _, a := range appointments {
		card := AppointmentCard{Appointment: a, DisplayDate: common.FormatDateIn(a.ScheduledAt, true, loc)}
		card.Past = a.ScheduledAt == nil || a.ScheduledAt.Before(now)
		if !card.Past {
			card.CalendarURL = CalendarURL(a)
		}
		cards = append(cards, card)
	}
	return cards
}

// ChartPoint is one plotted reading, serialized flat: {"name": "Mar 14", "systolic": 120, ...}
type ChartPoint struct {
	Label  string
	Values map[string]int
}

func (p ChartPoint) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(p.Values)+1)
	for k, v := range p.Values {
		flat[k] = v
	}
	flat["name"] = p.Label
	return json.Marshal(flat)
}

// ToChartSeries maps ascending readings to chart points, leaving the input untouched
func ToChartSeries(metrics []schema.HealthMetric) []ChartPoint {
	return ToChartSeriesIn(metrics, time.Local)
}

func ToChartSeriesIn(metrics []schema.HealthMetric, loc *time.Location) []ChartPoint {
	out := make([]ChartPoint, 0, len(metrics))
	for _, m := range metrics {
		if m == nil {
			continue
		}
		out = append(out, ChartPoint{
			Label:  common.FormatChartDateIn(m.RecordedAt(), loc),
			Values: m.ChartValues(),
		})
	}
	return out
}

// DashboardSummary is what the dashboard cards display
type DashboardSummary struct {
	LatestBloodPressure *schema.BloodPressure `json:"latestBloodPressure"`
	LatestBloodSugar    *schema.BloodSugar    `json:"latestBloodSugar"`
	Upcoming            []schema.Appointment  `json:"upcomingAppointments"`
}

// Summarize expects metrics in descending timestamp order and appointments ascending
func Summarize(metrics []schema.HealthMetric, appointments []schema.Appointment, now time.Time) DashboardSummary {
	summary := DashboardSummary{}
	if bp, ok := Latest(BloodPressures(metrics)); ok {
		summary.LatestBloodPressure = &bp
	}
	if bs, ok := Latest(BloodSugars(metrics)); ok {
		summary.LatestBloodSugar = &bs
	}
	upcoming := Upcoming(appointments, now)
	if len(upcoming) > DashboardUpcomingLimit {
		upcoming = upcoming[:DashboardUpcomingLimit]
	}
	summary.Upcoming = upcoming
	return summary
}
