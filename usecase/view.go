package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mdblp/health-tracker/common"
	"github.com/mdblp/health-tracker/schema"
)

// View is one mounted tab: the stores its route needs, its forms and its
// deletion confirmations. Closing the view closes every store it opened.
type View struct {
	Route  Route
	UserID string

	Metrics      *MetricStore
	Appointments *AppointmentStore
	Medications  *MedicationStore

	BloodPressureForm *BloodPressureForm
	BloodSugarForm    *BloodSugarForm
	AppointmentForm   *AppointmentForm
	MedicationForm    *MedicationForm

	logger zerolog.Logger
	loc    *time.Location
	now    func() time.Time

	mu        sync.Mutex
	edits     map[string]*MedicationEditForm
	deletions map[schema.Collection]*DeleteConfirmation
	// failed holds the stores whose subscription could not be opened, set at mount only
	failed    map[schema.Collection]error
	updated   chan struct{}
	closeOnce sync.Once
	closed    bool
}

func mountView(ctx context.Context, logger zerolog.Logger, db DocumentDatabase, appID string, userID string, route Route, loc *time.Location, now func() time.Time) (*View, error) {
	v := &View{
		Route:     route,
		UserID:    userID,
		logger:    logger.With().Str("tab", string(route.Tab)).Logger(),
		loc:       loc,
		now:       now,
		edits:     map[string]*MedicationEditForm{},
		deletions: map[schema.Collection]*DeleteConfirmation{},
		failed:    map[schema.Collection]error{},
		updated:   make(chan struct{}),
	}
	for _, spec := range route.Stores {
		var err error
		switch spec.Collection {
		case schema.HealthMetrics:
			v.Metrics, err = OpenMetricStore(ctx, logger, db, appID, userID, spec.Order)
			if err == nil {
				v.BloodPressureForm = NewBloodPressureForm(v.Metrics)
				v.BloodSugarForm = NewBloodSugarForm(v.Metrics)
				v.deletions[schema.HealthMetrics] = NewDeleteConfirmation(v.Metrics)
				go watchStore(v, v.Metrics.Snapshots(), nil)
			}
		case schema.Appointments:
			v.Appointments, err = OpenAppointmentStore(ctx, logger, db, appID, userID, spec.Order)
			if err == nil {
				v.AppointmentForm = NewAppointmentForm(v.Appointments, loc)
				v.deletions[schema.Appointments] = NewDeleteConfirmation(v.Appointments)
				go watchStore(v, v.Appointments.Snapshots(), nil)
			}
		case schema.Medications:
			v.Medications, err = OpenMedicationStore(ctx, logger, db, appID, userID, spec.Order)
			if err == nil {
				v.MedicationForm = NewMedicationForm(v.Medications)
				v.deletions[schema.Medications] = NewDeleteConfirmation(v.Medications)
				go watchStore(v, v.Medications.Snapshots(), v.rebaseEdits)
			}
		}
		if err != nil {
			v.logger.Error().Err(err).Str("collection", string(spec.Collection)).Msg("subscription failed, mounting the other stores")
			v.failed[spec.Collection] = err
		}
	}
	return v, nil
}

// watchStore signals the view on every snapshot until the store closes its stream
func watchStore[T any](v *View, snapshots <-chan []T, onSnapshot func([]T)) {
	for records := range snapshots {
		if onSnapshot != nil {
			onSnapshot(records)
		}
		v.signal()
	}
}

func (v *View) signal() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	close(v.updated)
	v.updated = make(chan struct{})
}

// Updated is closed at the next snapshot applied by any store of the view
func (v *View) Updated() <-chan struct{} {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.updated
}

func (v *View) rebaseEdits(latest []schema.Medication) {
	// a read failure empties the records without deleting anything
	if v.Medications != nil && v.Medications.Err() != nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for id, form := range v.edits {
		if !form.Rebase(latest) {
			delete(v.edits, id)
		}
	}
}

// Deletion returns the confirmation state machine of collection, nil when the view has no such store
func (v *View) Deletion(collection schema.Collection) *DeleteConfirmation {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.deletions[collection]
}

// StartEdit opens an edit form for a medication of the current records
func (v *View) StartEdit(id string) (*MedicationEditForm, error) {
	if v.Medications == nil {
		return nil, common.NewError(common.CodeInvalidParams, "medications are not shown in this view", nil)
	}
	for _, m := range v.Medications.Records() {
		if m.ID != id {
			continue
		}
		v.mu.Lock()
		defer v.mu.Unlock()
		if form, ok := v.edits[id]; ok {
			return form, nil
		}
		form := NewMedicationEditForm(v.Medications, m)
		v.edits[id] = form
		return form, nil
	}
	return nil, common.NewError(common.CodeNotFound, "medication not found", nil)
}

// EndEdit drops the edit form of id
func (v *View) EndEdit(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.edits, id)
}

// Ready is true once every store of the view has applied a snapshot, never
// when a store of the route could not subscribe
func (v *View) Ready() bool {
	if len(v.failed) > 0 {
		return false
	}
	if v.Metrics != nil && !v.Metrics.IsReady() {
		return false
	}
	if v.Appointments != nil && !v.Appointments.IsReady() {
		return false
	}
	if v.Medications != nil && !v.Medications.IsReady() {
		return false
	}
	return true
}

// Err returns the first read failure among the stores of the view
func (v *View) Err() error {
	if v.Metrics != nil && v.Metrics.Err() != nil {
		return v.Metrics.Err()
	}
	if v.Appointments != nil && v.Appointments.Err() != nil {
		return v.Appointments.Err()
	}
	if v.Medications != nil && v.Medications.Err() != nil {
		return v.Medications.Err()
	}
	for _, spec := range v.Route.Stores {
		if err, ok := v.failed[spec.Collection]; ok {
			return err
		}
	}
	return nil
}

// Close is idempotent and closes every store of the view
func (v *View) Close() {
	v.closeOnce.Do(func() {
		if v.Metrics != nil {
			v.Metrics.Close()
		}
		if v.Appointments != nil {
			v.Appointments.Close()
		}
		if v.Medications != nil {
			v.Medications.Close()
		}
		v.mu.Lock()
		v.closed = true
		close(v.updated)
		v.mu.Unlock()
		v.logger.Debug().Msg("view unmounted")
	})
}

func (v *View) IsClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// ViewPayload is the rendered state of a view
type ViewPayload struct {
	Tab           Tab                          `json:"tab"`
	Components    []Component                  `json:"components"`
	Ready         bool                         `json:"ready"`
	Error         string                       `json:"error,omitempty"`
	Summary       *DashboardSummary            `json:"summary,omitempty"`
	Chart         []ChartPoint                 `json:"chart,omitempty"`
	Readings      []map[string]interface{}     `json:"readings,omitempty"`
	Appointments  []AppointmentCard            `json:"appointments,omitempty"`
	Medications   []schema.Medication          `json:"medications,omitempty"`
	Editing       []MedicationEditInput        `json:"editing,omitempty"`
	PendingDelete map[schema.Collection]string `json:"pendingDelete,omitempty"`
	Exports       []string                     `json:"exports,omitempty"`
}

// Payload renders the current records of the view
func (v *View) Payload() ViewPayload {
	p := ViewPayload{
		Tab:        v.Route.Tab,
		Components: v.Route.Components,
		Ready:      v.Ready(),
	}
	if err := v.Err(); err != nil {
		p.Error = common.ToDetailedError(err).Message
	}
	switch v.Route.Tab {
	case TabDashboard:
		var metrics []schema.HealthMetric
		var appointments []schema.Appointment
		if v.Metrics != nil {
			metrics = v.Metrics.Records()
		}
		if v.Appointments != nil {
			appointments = v.Appointments.Records()
		}
		summary := Summarize(metrics, appointments, v.now())
		p.Summary = &summary
	case TabBloodPressure, TabBloodSugar:
		if v.Metrics != nil {
			readings := FilterBySubtype(v.Metrics.Records(), v.Route.Subtype)
			p.Chart = ToChartSeriesIn(readings, v.loc)
			p.Readings = make([]map[string]interface{}, 0, len(readings))
			for i := len(readings) - 1; i >= 0; i-- {
				p.Readings = append(p.Readings, v.readingJSON(readings[i]))
			}
		}
	case TabAppointments:
		if v.Appointments != nil {
			p.Appointments = AppointmentCards(v.Appointments.Records(), v.now(), v.loc)
		}
	case TabMedications:
		if v.Medications != nil {
			p.Medications = v.Medications.Records()
		}
	case TabExport:
		for _, k := range exportKinds {
			p.Exports = append(p.Exports, k.Name)
		}
	}
	v.mu.Lock()
	for id, form := range v.edits {
		in := form.Input()
		in.ID = id
		p.Editing = append(p.Editing, in)
	}
	for collection, d := range v.deletions {
		if id, ok := d.Pending(); ok {
			if p.PendingDelete == nil {
				p.PendingDelete = map[schema.Collection]string{}
			}
			p.PendingDelete[collection] = id
		}
	}
	v.mu.Unlock()
	return p
}

func (v *View) readingJSON(m schema.HealthMetric) map[string]interface{} {
	out := m.Fields()
	out["id"] = m.MetricID()
	out["displayDate"] = common.FormatDateIn(m.RecordedAt(), true, v.loc)
	return out
}
