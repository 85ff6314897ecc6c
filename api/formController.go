package api

import (
	"context"
	"net/http"

	"github.com/mdblp/health-tracker/common"
	"github.com/mdblp/health-tracker/schema"
	"github.com/mdblp/health-tracker/usecase"
)

type createdResponse struct {
	ID string `json:"id"`
}

type deletionRequest struct {
	ID string `json:"id"`
}

type deletionResponse struct {
	Pending string `json:"pending,omitempty"`
	Deleted string `json:"deleted,omitempty"`
}

// viewWith returns the mounted view when has accepts it, otherwise mounts tab
func (a *API) viewWith(has func(*usecase.View) bool, tab usecase.Tab) (*usecase.View, error) {
	if view := a.session.View(); view != nil && !view.IsClosed() && has(view) {
		return view, nil
	}
	return a.session.Mount(tab)
}

func hasMetrics(v *usecase.View) bool      { return v.Metrics != nil }
func hasAppointments(v *usecase.View) bool { return v.Appointments != nil }
func hasMedications(v *usecase.View) bool  { return v.Medications != nil }

func writeCreated(res *common.HttpResponseWriter, id string) error {
	res.WriteHeader(http.StatusCreated)
	return res.WriteJSON(createdResponse{ID: id})
}

func (a *API) postMetric(ctx context.Context, res *common.HttpResponseWriter) error {
	subtype, err := schema.ParseSubtype(res.VARS["subtype"])
	if err != nil {
		return res.WriteError(common.NewError(common.CodeInvalidParams, "unknown metric type", err))
	}
	view, err := a.viewWith(hasMetrics, usecase.Tab(subtype))
	if err != nil {
		return res.WriteError(common.ToDetailedError(err))
	}
	var id string
	switch subtype {
	case schema.BloodPressureType:
		var in usecase.BloodPressureInput
		if err := res.DecodeBody(&in); err != nil {
			return res.WriteError(common.ToDetailedError(err))
		}
		id, err = view.BloodPressureForm.SubmitWith(ctx, in)
	case schema.BloodSugarType:
		var in usecase.BloodSugarInput
		if err := res.DecodeBody(&in); err != nil {
			return res.WriteError(common.ToDetailedError(err))
		}
		id, err = view.BloodSugarForm.SubmitWith(ctx, in)
	}
	if err != nil {
		return res.WriteError(common.ToDetailedError(err))
	}
	return writeCreated(res, id)
}

func (a *API) postAppointment(ctx context.Context, res *common.HttpResponseWriter) error {
	var in usecase.AppointmentInput
	if err := res.DecodeBody(&in); err != nil {
		return res.WriteError(common.ToDetailedError(err))
	}
	view, err := a.viewWith(hasAppointments, usecase.TabAppointments)
	if err != nil {
		return res.WriteError(common.ToDetailedError(err))
	}
	id, err := view.AppointmentForm.SubmitWith(ctx, in)
	if err != nil {
		return res.WriteError(common.ToDetailedError(err))
	}
	return writeCreated(res, id)
}

func (a *API) postMedication(ctx context.Context, res *common.HttpResponseWriter) error {
	var in usecase.MedicationInput
	if err := res.DecodeBody(&in); err != nil {
		return res.WriteError(common.ToDetailedError(err))
	}
	view, err := a.viewWith(hasMedications, usecase.TabMedications)
	if err != nil {
		return res.WriteError(common.ToDetailedError(err))
	}
	id, err := view.MedicationForm.SubmitWith(ctx, in)
	if err != nil {
		return res.WriteError(common.ToDetailedError(err))
	}
	return writeCreated(res, id)
}

// putMedication edits name and dosage through the edit form of the medication
func (a *API) putMedication(ctx context.Context, res *common.HttpResponseWriter) error {
	var in usecase.MedicationEditInput
	if err := res.DecodeBody(&in); err != nil {
		return res.WriteError(common.ToDetailedError(err))
	}
	view, err := a.viewWith(hasMedications, usecase.TabMedications)
	if err != nil {
		return res.WriteError(common.ToDetailedError(err))
	}
	waitReady(ctx, view, a.viewWait)
	id := res.VARS["id"]
	form, err := view.StartEdit(id)
	if err != nil {
		return res.WriteError(common.ToDetailedError(err))
	}
	form.Edit(in)
	if _, err := form.Submit(ctx); err != nil {
		return res.WriteError(common.ToDetailedError(err))
	}
	view.EndEdit(id)
	return res.WriteJSON(createdResponse{ID: id})
}

func tabOf(collection schema.Collection) usecase.Tab {
	switch collection {
	case schema.Appointments:
		return usecase.TabAppointments
	case schema.Medications:
		return usecase.TabMedications
	}
	return usecase.TabDashboard
}

// postDeletion drives the confirmation state machine: request, confirm or cancel
func (a *API) postDeletion(ctx context.Context, res *common.HttpResponseWriter) error {
	collection := schema.Collection(res.VARS["collection"])
	if !collection.Valid() {
		return res.WriteError(common.NewError(common.CodeInvalidParams, "unknown collection", nil))
	}
	view, err := a.viewWith(func(v *usecase.View) bool { return v.Route.Needs(collection) }, tabOf(collection))
	if err != nil {
		return res.WriteError(common.ToDetailedError(err))
	}
	deletion := view.Deletion(collection)
	if deletion == nil {
		return res.WriteError(common.NewError(common.CodeInvalidParams, "collection not shown", nil))
	}
	switch res.VARS["step"] {
	case "request":
		var in deletionRequest
		if err := res.DecodeBody(&in); err != nil {
			return res.WriteError(common.ToDetailedError(err))
		}
		if err := deletion.Request(in.ID); err != nil {
			return res.WriteError(common.ToDetailedError(err))
		}
		return res.WriteJSON(deletionResponse{Pending: in.ID})
	case "confirm":
		id, err := deletion.Confirm(ctx)
		if err != nil {
			return res.WriteError(common.ToDetailedError(err))
		}
		return res.WriteJSON(deletionResponse{Deleted: id})
	case "cancel":
		deletion.Cancel()
		return res.WriteJSON(deletionResponse{})
	}
	return res.WriteError(common.NewError(common.CodeInvalidParams, "unknown deletion step", nil))
}
