package common

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// NotAvailable is rendered for absent timestamps
	NotAvailable = "N/A"
	// InvalidDate is rendered for values that cannot be read as a point in time
	InvalidDate = "Invalid Date"

	dateTimeLayout  = "Jan 2, 2006, 03:04 PM"
	dateLayout      = "Jan 2, 2006"
	chartDateLayout = "Jan 2"
)

// accepted textual encodings, tried in order
var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FormatDate renders a timestamp for display in the local time zone.
// It never panics: nil or empty values give "N/A", unreadable ones "Invalid Date".
func FormatDate(value interface{}, includeTime bool) string {
	return FormatDateIn(value, includeTime, time.Local)
}

// FormatDateIn is FormatDate using the given location
func FormatDateIn(value interface{}, includeTime bool, loc *time.Location) string {
	t, present, ok := ReadTime(value)
	if !present {
		return NotAvailable
	}
	if !ok {
		return InvalidDate
	}
	if loc == nil {
		loc = time.Local
	}
	if includeTime {
		return t.In(loc).Format(dateTimeLayout)
	}
	return t.In(loc).Format(dateLayout)
}

// FormatChartDate renders the short axis label ("Mar 14"), or "" when the value is absent or unreadable
func FormatChartDate(value interface{}) string {
	return FormatChartDateIn(value, time.Local)
}

func FormatChartDateIn(value interface{}, loc *time.Location) string {
	t, present, ok := ReadTime(value)
	if !present || !ok {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(chartDateLayout)
}

// ReadTime interprets a stored or user supplied value as a point in time.
// present is false for nil, zero and empty values; ok is false when the value is present but unreadable.
func ReadTime(value interface{}) (t time.Time, present bool, ok bool) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, false, false
	case time.Time:
		if v.IsZero() {
			return v, false, false
		}
		return v, true, true
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false, false
		}
		return *v, true, true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, false, false
		}
		for _, layout := range parseLayouts {
			if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
				return parsed, true, true
			}
		}
		if millis, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(millis), true, true
		}
		return time.Time{}, true, false
	case int:
		return epochMillis(int64(v))
	case int32:
		return epochMillis(int64(v))
	case int64:
		return epochMillis(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return time.Time{}, true, false
		}
		return epochMillis(int64(v))
	}
	return time.Time{}, true, false
}

func epochMillis(ms int64) (time.Time, bool, bool) {
	if ms == 0 {
		return time.Time{}, false, false
	}
	return time.UnixMilli(ms), true, true
}
