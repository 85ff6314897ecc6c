package usecase

import "github.com/mdblp/health-tracker/schema"

type Tab string

const (
	TabDashboard     Tab = "dashboard"
	TabBloodPressure Tab = "blood_pressure"
	TabBloodSugar    Tab = "blood_sugar"
	TabAppointments  Tab = "appointments"
	TabMedications   Tab = "medications"
	TabExport        Tab = "export"
	TabPreview       Tab = "preview"
)

var Tabs = []Tab{TabDashboard, TabBloodPressure, TabBloodSugar, TabAppointments, TabMedications, TabExport, TabPreview}

// ParseTab falls back to the dashboard for unknown values
func ParseTab(s string) Tab {
	for _, t := range Tabs {
		if string(t) == s {
			return t
		}
	}
	return TabDashboard
}

type Component string

const (
	SummaryCards         Component = "summary_cards"
	UpcomingAppointments Component = "upcoming_appointments"
	AdvicePanel          Component = "advice_panel"
	MetricForm           Component = "metric_form"
	MetricChart          Component = "metric_chart"
	MetricList           Component = "metric_list"
	AppointmentEntry     Component = "appointment_form"
	AppointmentList      Component = "appointment_list"
	MedicationEntry      Component = "medication_form"
	MedicationList       Component = "medication_list"
	ExportPanel          Component = "export_panel"
	PrintableReport      Component = "report"
)

// StoreSpec is one live subscription a route needs
type StoreSpec struct {
	Collection schema.Collection
	Order      schema.Order
}

type Route struct {
	Tab        Tab
	Components []Component
	Stores     []StoreSpec
	// Subtype is set on tracker tabs
	Subtype schema.Subtype
}

// Needs reports whether the route subscribes to collection
func (r Route) Needs(collection schema.Collection) bool {
	for _, s := range r.Stores {
		if s.Collection == collection {
			return true
		}
	}
	return false
}

// RouteFor maps a tab to its components and stores; export and preview
// work from one-shot queries and subscribe to nothing
func RouteFor(tab Tab) Route {
	switch tab {
	case TabBloodPressure, TabBloodSugar:
		return Route{
			Tab:        tab,
			Components: []Component{MetricForm, MetricChart, MetricList},
			Stores:     []StoreSpec{{Collection: schema.HealthMetrics, Order: schema.Asc(schema.FieldTimestamp)}},
			Subtype:    schema.Subtype(tab),
		}
	case TabAppointments:
		return Route{
			Tab:        tab,
			Components: []Component{AppointmentEntry, AppointmentList},
			Stores:     []StoreSpec{{Collection: schema.Appointments, Order: schema.Asc(schema.FieldDate)}},
		}
	case TabMedications:
		return Route{
			Tab:        tab,
			Components: []Component{MedicationEntry, MedicationList},
			Stores:     []StoreSpec{{Collection: schema.Medications, Order: schema.Desc(schema.FieldAddedAt)}},
		}
	case TabExport:
		return Route{Tab: tab, Components: []Component{ExportPanel}}
	case TabPreview:
		return Route{Tab: tab, Components: []Component{PrintableReport}}
	}
	return Route{
		Tab:        TabDashboard,
		Components: []Component{SummaryCards, UpcomingAppointments, AdvicePanel},
		Stores: []StoreSpec{
			{Collection: schema.HealthMetrics, Order: schema.Desc(schema.FieldTimestamp)},
			{Collection: schema.Appointments, Order: schema.Asc(schema.FieldDate)},
		},
	}
}
