package schema

import (
	"strings"
	"time"

	"github.com/mdblp/health-tracker/common"
)

// TimeBeforeOrEqual treats a nil bound as "open": nil t2 is after everything
func TimeBeforeOrEqual(t *time.Time, t2 *time.Time) bool {
	if t == nil {
		return t2 == nil
	}
	if t2 == nil {
		return true
	}
	return !t.After(*t2)
}

// TimeAfterOrEqual treats a nil t as unknown, never after a known t2
func TimeAfterOrEqual(t *time.Time, t2 *time.Time) bool {
	if t == nil {
		return t2 == nil
	}
	if t2 == nil {
		return true
	}
	return !t.Before(*t2)
}

// ComposeLocalTime builds the appointment instant from a YYYY-MM-DD date and a HH:MM clock
// interpreted in loc
func ComposeLocalTime(date string, clock string, loc *time.Location) (time.Time, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" {
		return time.Time{}, common.NewValidationError(FieldDate, common.EmptyField)
	}
	if clock == "" {
		return time.Time{}, common.NewValidationError("time", common.EmptyField)
	}
	if loc == nil {
		loc = time.Local
	}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, common.NewValidationError(FieldDate, common.NotANumber)
	}
	hm, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, common.NewValidationError("time", common.NotANumber)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hm.Hour(), hm.Minute(), 0, 0, loc), nil
}
