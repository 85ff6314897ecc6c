package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mdblp/health-tracker/common"
	"github.com/mdblp/health-tracker/schema"
)

// ExportKind describes one downloadable CSV file
type ExportKind struct {
	Name       string
	Collection schema.Collection
	// Subtype restricts health metric exports to one kind of reading
	Subtype  schema.Subtype
	Columns  []Column
	Filename string
}

// Description is the human readable name used in notices ("blood pressure data")
func (k ExportKind) Description() string {
	return strings.ReplaceAll(strings.TrimSuffix(k.Filename, ".csv"), "-", " ")
}

func (k ExportKind) Order() schema.Order {
	field := schema.FieldTimestamp
	if len(k.Columns) > 0 && k.Columns[0].SortKey != "" {
		field = k.Columns[0].SortKey
	}
	return schema.Desc(field)
}

var exportKinds = []ExportKind{
	{
		Name:       "blood-pressure",
		Collection: schema.HealthMetrics,
		Subtype:    schema.BloodPressureType,
		Columns: []Column{
			{SourceKey: schema.FieldTimestamp, DisplayLabel: "Timestamp"},
			{SourceKey: schema.FieldSystolic, DisplayLabel: "Systolic (mmHg)"},
			{SourceKey: schema.FieldDiastolic, DisplayLabel: "Diastolic (mmHg)"},
			{SourceKey: schema.FieldNotes, DisplayLabel: "Notes"},
		},
		Filename: "blood-pressure-data.csv",
	},
	{
		Name:       "blood-sugar",
		Collection: schema.HealthMetrics,
		Subtype:    schema.BloodSugarType,
		Columns: []Column{
			{SourceKey: schema.FieldTimestamp, DisplayLabel: "Timestamp"},
			{SourceKey: schema.FieldLevel, DisplayLabel: "Level (mg/dL)"},
			{SourceKey: schema.FieldNotes, DisplayLabel: "Notes"},
		},
		Filename: "blood-sugar-data.csv",
	},
	{
		Name:       "appointments",
		Collection: schema.Appointments,
		Columns: []Column{
			{SourceKey: schema.FieldDate, DisplayLabel: "Date", SortKey: schema.FieldDate},
			{SourceKey: schema.FieldDoctorName, DisplayLabel: "Doctor"},
			{SourceKey: schema.FieldSpecialty, DisplayLabel: "Specialty"},
			{SourceKey: schema.FieldNotes, DisplayLabel: "Notes"},
		},
		Filename: "appointments-data.csv",
	},
	{
		Name:       "medications",
		Collection: schema.Medications,
		Columns: []Column{
			{SourceKey: schema.FieldAddedAt, DisplayLabel: "Date Added", SortKey: schema.FieldAddedAt},
			{SourceKey: schema.FieldName, DisplayLabel: "Name"},
			{SourceKey: schema.FieldDosage, DisplayLabel: "Dosage"},
		},
		Filename: "medications-data.csv",
	},
}

// ExportKinds lists the available exports in display order
func ExportKinds() []ExportKind {
	out := make([]ExportKind, len(exportKinds))
	copy(out, exportKinds)
	return out
}

func LookupExportKind(name string) (ExportKind, bool) {
	for _, k := range exportKinds {
		if k.Name == name {
			return k, true
		}
	}
	return ExportKind{}, false
}

type Exporter struct {
	logger     zerolog.Logger
	db         DocumentDatabase
	appID      string
	downloader Downloader
	location   *time.Location
	now        func() time.Time
}

// NewExporter builds an exporter writing to downloader by default; downloader may be nil
// when every export goes through ExportTo
func NewExporter(logger zerolog.Logger, db DocumentDatabase, appID string, downloader Downloader) Exporter {
	return Exporter{
		logger:     logger.With().Str("component", "exporter").Logger(),
		db:         db,
		appID:      appID,
		downloader: downloader,
		location:   time.Local,
		now:        time.Now,
	}
}

// WithLocation returns a copy rendering timestamps in loc
func (e Exporter) WithLocation(loc *time.Location) Exporter {
	if loc != nil {
		e.location = loc
	}
	return e
}

// Render queries the collection once and builds the CSV text. An empty
// result set is reported with a nothing_to_export error.
func (e Exporter) Render(ctx context.Context, userID string, kindName string) (ExportKind, string, error) {
	kind, ok := LookupExportKind(kindName)
	if !ok {
		return ExportKind{}, "", common.NewError(common.CodeInvalidParams, fmt.Sprintf("unknown export %q", kindName), nil)
	}
	scope := schema.NewScope(e.appID, userID, kind.Collection)
	if err := scope.Validate(); err != nil {
		return kind, "", common.NewError(common.CodeInvalidParams, "invalid export scope", err)
	}
	docs, err := e.db.QueryOnce(ctx, scope, kind.Order())
	if err != nil {
		e.logger.Error().Err(err).Str("kind", kind.Name).Msg("export query failed")
		return kind, "", common.NewError(common.CodeRemoteRead, "Failed to export data. Please try again.", err)
	}
	rows := e.rows(kind, docs)
	if len(rows) == 0 {
		return kind, "", common.NewError(common.CodeNothingToExport, fmt.Sprintf("No data available to export for %s.", kind.Description()), nil)
	}
	return kind, ToCSVIn(rows, kind.Columns, e.location), nil
}

func (e Exporter) rows(kind ExportKind, docs []schema.Document) []map[string]interface{} {
	rows := make([]map[string]interface{}, 0, len(docs))
	for _, doc := range docs {
		var fields map[string]interface{}
		switch kind.Collection {
		case schema.HealthMetrics:
			m, err := schema.MetricFromDocument(doc)
			if err != nil {
				e.logger.Warn().Err(err).Msg("skipping malformed metric")
				continue
			}
			if kind.Subtype != "" && m.Subtype() != kind.Subtype {
				continue
			}
			fields = m.Fields()
		case schema.Appointments:
			a, err := schema.AppointmentFromDocument(doc)
			if err != nil {
				continue
			}
			fields = a.Fields()
		case schema.Medications:
			m, err := schema.MedicationFromDocument(doc)
			if err != nil {
				continue
			}
			fields = m.Fields()
		}
		fields["id"] = doc.ID
		rows = append(rows, fields)
	}
	return rows
}

// Export renders kindName and hands it to the default downloader
func (e Exporter) Export(ctx context.Context, userID string, kindName string) error {
	if e.downloader == nil {
		return common.NewError(common.CodeInternal, "no downloader configured", nil)
	}
	return e.ExportTo(ctx, userID, kindName, e.downloader)
}

// ExportTo renders kindName and hands it to d under the kind's filename
func (e Exporter) ExportTo(ctx context.Context, userID string, kindName string, d Downloader) error {
	kind, content, err := e.Render(ctx, userID, kindName)
	if err != nil {
		exportsTotal.WithLabelValues(kindName, "error").Inc()
		return err
	}
	if err := d.Download(ctx, []byte(content), kind.Filename, CSVMimeType); err != nil {
		exportsTotal.WithLabelValues(kindName, "error").Inc()
		e.logger.Error().Err(err).Str("kind", kind.Name).Msg("download failed")
		return common.NewError(common.CodeInternal, "Failed to export data. Please try again.", err)
	}
	exportsTotal.WithLabelValues(kindName, "ok").Inc()
	return nil
}

// ArchiveAll exports every kind holding data to the default downloader,
// under {userID}/{stamp}_{filename}. It returns the number of files written.
func (e Exporter) ArchiveAll(ctx context.Context, userID string) (int, error) {
	if e.downloader == nil {
		return 0, common.NewError(common.CodeInternal, "no archive destination configured", nil)
	}
	stamp := e.now().UTC().Format("20060102T150405Z")
	target := prefixedDownloader{next: e.downloader, prefix: userID + "/" + stamp + "_"}
	written := 0
	var firstErr error
	for _, kind := range exportKinds {
		err := e.ExportTo(ctx, userID, kind.Name, target)
		if common.IsCode(err, common.CodeNothingToExport) {
			continue
		}
		if err != nil {
			e.logger.Error().Err(err).Str("kind", kind.Name).Msg("archive export failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		written++
	}
	return written, firstErr
}

// Archive runs ArchiveAll in the background
func (e Exporter) Archive(userID string) {
	go func() {
		e.logger.Info().Str("user", userID).Msg("launching archive export")
		written, err := e.ArchiveAll(context.Background(), userID)
		if err != nil {
			e.logger.Error().Err(err).Int("files", written).Msg("archive export ended with errors")
			return
		}
		e.logger.Info().Int("files", written).Msg("archive export done")
	}()
}

type prefixedDownloader struct {
	next   Downloader
	prefix string
}

func (p prefixedDownloader) Download(ctx context.Context, content []byte, filename string, mimeType string) error {
	return p.next.Download(ctx, content, p.prefix+filename, mimeType)
}
