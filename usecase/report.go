package usecase

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mdblp/health-tracker/common"
	"github.com/mdblp/health-tracker/schema"
)

// ReportRecentLimit is the number of readings of each kind printed in the report
const ReportRecentLimit = 5

// Report is the printable health summary
type Report struct {
	BloodPressures []schema.BloodPressure `json:"bloodPressures"`
	BloodSugars    []schema.BloodSugar    `json:"bloodSugars"`
	Appointments   []schema.Appointment   `json:"appointments"`
	Medications    []schema.Medication    `json:"medications"`
	SugarRanges    *SugarRanges           `json:"sugarRanges,omitempty"`
	GeneratedAt    time.Time              `json:"generatedAt"`
}

type Reporter struct {
	logger zerolog.Logger
	db     DocumentDatabase
	appID  string
	now    func() time.Time
}

func NewReporter(logger zerolog.Logger, db DocumentDatabase, appID string) Reporter {
	return Reporter{
		logger: logger.With().Str("component", "reporter").Logger(),
		db:     db,
		appID:  appID,
		now:    time.Now,
	}
}

// Build fetches the three collections once, concurrently
func (r Reporter) Build(ctx context.Context, userID string) (*Report, error) {
	if userID == "" {
		return nil, common.NewError(common.CodeInvalidParams, "missing user", nil)
	}
	report := &Report{GeneratedAt: r.now()}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		docs, err := r.db.QueryOnce(gctx, schema.NewScope(r.appID, userID, schema.HealthMetrics), schema.Desc(schema.FieldTimestamp))
		if err != nil {
			return fmt.Errorf("health metrics: %w", err)
		}
		metrics := decodeAll(r.logger, docs, schema.MetricFromDocument)
		bps := BloodPressures(metrics)
		sugars := BloodSugars(metrics)
		mu.Lock()
		report.BloodPressures = firstN(bps, ReportRecentLimit)
		report.BloodSugars = firstN(sugars, ReportRecentLimit)
		report.SugarRanges = TimeInRange(sugars)
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		docs, err := r.db.QueryOnce(gctx, schema.NewScope(r.appID, userID, schema.Appointments), schema.Desc(schema.FieldDate))
		if err != nil {
			return fmt.Errorf("appointments: %w", err)
		}
		appointments := decodeAll(r.logger, docs, schema.AppointmentFromDocument)
		mu.Lock()
		report.Appointments = appointments
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		docs, err := r.db.QueryOnce(gctx, schema.NewScope(r.appID, userID, schema.Medications), schema.Asc(schema.FieldName))
		if err != nil {
			return fmt.Errorf("medications: %w", err)
		}
		medications := decodeAll(r.logger, docs, schema.MedicationFromDocument)
		mu.Lock()
		report.Medications = medications
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		r.logger.Error().Err(err).Msg("report fetch failed")
		return nil, common.NewError(common.CodeRemoteRead, "Could not load the report", err)
	}
	return report, nil
}

// Render lays the report out as plain text for printing
func (rep *Report) Render(loc *time.Location) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Health Report\t\t\n")
	fmt.Fprintf(w, "Generated %s\t\t\n\n", common.FormatDateIn(rep.GeneratedAt, true, loc))

	fmt.Fprintf(w, "Recent Blood Pressure\t\t\n")
	if len(rep.BloodPressures) == 0 {
		fmt.Fprintf(w, "No data.\t\t\n")
	}
	for _, bp := range rep.BloodPressures {
		fmt.Fprintf(w, "%s\t%d / %d mmHg\t%s\n", common.FormatDateIn(bp.Timestamp, true, loc), bp.Systolic, bp.Diastolic, orDash(bp.Notes))
	}

	fmt.Fprintf(w, "\nRecent Blood Sugar\t\t\n")
	if len(rep.BloodSugars) == 0 {
		fmt.Fprintf(w, "No data.\t\t\n")
	}
	for _, bs := range rep.BloodSugars {
		fmt.Fprintf(w, "%s\t%d mg/dL (%.1f mmol/L)\t%s\n", common.FormatDateIn(bs.Timestamp, true, loc), bs.Level, bs.LevelMmolL(), orDash(bs.Notes))
	}

	if r := rep.SugarRanges; r != nil {
		fmt.Fprintf(w, "In target range (%d-%d mg/dL)\t%.0f%% of %d readings\t\n", lowLimit, highLimit, r.Rate.Target*100, r.Total)
	}

	fmt.Fprintf(w, "\nAppointments\t\t\n")
	if len(rep.Appointments) == 0 {
		fmt.Fprintf(w, "No appointments scheduled.\t\t\n")
	}
	for _, a := range rep.Appointments {
		fmt.Fprintf(w, "%s\t%s\t%s\n", common.FormatDateIn(a.ScheduledAt, true, loc), a.DoctorName, a.Specialty)
	}

	fmt.Fprintf(w, "\nMedications\t\t\n")
	if len(rep.Medications) == 0 {
		fmt.Fprintf(w, "No medications listed.\t\t\n")
	}
	for _, m := range rep.Medications {
		fmt.Fprintf(w, "%s\t%s\t\n", m.Name, m.Dosage)
	}
	w.Flush()
	return buf.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func firstN[T any](seq []T, n int) []T {
	if len(seq) > n {
		return seq[:n]
	}
	return seq
}

func decodeAll[T any](logger zerolog.Logger, docs []schema.Document, decode func(schema.Document) (T, error)) []T {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		rec, err := decode(doc)
		if err != nil {
			logger.Warn().Err(err).Str("document", doc.ID).Msg("skipping malformed document")
			continue
		}
		out = append(out, rec)
	}
	return out
}
