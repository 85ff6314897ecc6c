package usecase

import (
	"strings"
	"time"

	"github.com/mdblp/health-tracker/common"
	"github.com/mdblp/health-tracker/schema"
)

// CSVMimeType is the default mime type of exported files
const CSVMimeType = "text/csv;charset=utf-8;"

// Column maps a record field to a CSV column
type Column struct {
	SourceKey    string
	DisplayLabel string
	// SortKey is the field used to order the export, SourceKey when empty
	SortKey string
}

func (c Column) OrderField() string {
	if c.SortKey != "" {
		return c.SortKey
	}
	return c.SourceKey
}

// ToCSV renders records as newline separated CSV text: a header row of display
// labels then one row per record. Timestamps are rendered with common.FormatDate
// and absent values as empty cells.
func ToCSV(records []map[string]interface{}, columns []Column) string {
	return ToCSVIn(records, columns, time.Local)
}

func ToCSVIn(records []map[string]interface{}, columns []Column, loc *time.Location) string {
	lines := make([]string, 0, len(records)+1)
	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = escapeCSV(c.DisplayLabel)
	}
	lines = append(lines, strings.Join(header, ","))

	row := make([]string, len(columns))
	for _, record := range records {
		for i, c := range columns {
			row[i] = csvCell(record[c.SourceKey], loc)
		}
		lines = append(lines, strings.Join(row, ","))
	}
	return strings.Join(lines, "\n")
}

func csvCell(value interface{}, loc *time.Location) string {
	switch v := value.(type) {
	case nil:
		return ""
	case time.Time, *time.Time:
		return escapeCSV(common.FormatDateIn(v, true, loc))
	case string:
		return escapeCSV(v)
	}
	return schema.ToString(value)
}

// escapeCSV quotes text containing a comma, a double quote or a newline,
// doubling the inner quotes
func escapeCSV(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
