package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mdblp/health-tracker/advice"
	"github.com/mdblp/health-tracker/common"
	"github.com/mdblp/health-tracker/usecase"
)

// attachmentDownloader hands a generated file to the browser as an attachment
type attachmentDownloader struct {
	res *common.HttpResponseWriter
}

func (d attachmentDownloader) Download(ctx context.Context, content []byte, filename string, mimeType string) error {
	d.res.ContentType = mimeType
	d.res.ResponseHeader.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", strconv.Quote(filename)))
	return d.res.Write(content)
}

type exportKindsResponse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Filename    string `json:"filename"`
}

// getExport downloads one CSV export; an empty collection gives a nothing_to_export error
func (a *API) getExport(ctx context.Context, res *common.HttpResponseWriter) error {
	kind := res.VARS["kind"]
	if kind == "" || kind == "kinds" {
		kinds := []exportKindsResponse{}
		for _, k := range usecase.ExportKinds() {
			kinds = append(kinds, exportKindsResponse{Name: k.Name, Description: k.Description(), Filename: k.Filename})
		}
		return res.WriteJSON(kinds)
	}
	if err := a.exporter.ExportTo(ctx, res.UserID, kind, attachmentDownloader{res: res}); err != nil {
		return res.WriteError(common.ToDetailedError(err))
	}
	return nil
}

type archiveResponse struct {
	Status string `json:"status"`
}

// postArchive copies every export to the archive target in the background
func (a *API) postArchive(ctx context.Context, res *common.HttpResponseWriter) error {
	if !a.archive {
		return res.WriteError(&common.DetailedError{Status: http.StatusNotImplemented, Code: "archive_disabled", Message: "no archive is configured"})
	}
	a.exporter.Archive(res.UserID)
	res.WriteHeader(http.StatusAccepted)
	return res.WriteJSON(archiveResponse{Status: "started"})
}

// getReport returns the printable report, as text with ?format=text
func (a *API) getReport(ctx context.Context, res *common.HttpResponseWriter) error {
	report, err := a.reporter.Build(ctx, res.UserID)
	if err != nil {
		return res.WriteError(common.NewError(common.CodeRemoteRead, "Could not load your data", err))
	}
	if res.URL.Query().Get("format") == "text" {
		res.ContentType = "text/plain; charset=utf-8"
		return res.WriteString(report.Render(a.session.Location()))
	}
	return res.WriteJSON(report)
}

type adviceResponse struct {
	Advice     string `json:"advice,omitempty"`
	Error      string `json:"error,omitempty"`
	Configured bool   `json:"configured"`
}

// adviceRequestOf keeps the newest readings of the report, which lists them newest first
func adviceRequestOf(report *usecase.Report) advice.Request {
	req := advice.Request{Medications: report.Medications}
	if len(report.BloodPressures) > 0 {
		bp := report.BloodPressures[0]
		req.BloodPressure = &bp
	}
	if len(report.BloodSugars) > 0 {
		sugar := report.BloodSugars[0]
		req.BloodSugar = &sugar
	}
	return req
}

// postAdvice always answers 200: advice failures are shown inline by the advice panel
func (a *API) postAdvice(ctx context.Context, res *common.HttpResponseWriter) error {
	if a.advisor == nil || !a.advisor.Configured() {
		return res.WriteJSON(adviceResponse{Error: "Advice is not configured"})
	}
	report, err := a.reporter.Build(ctx, res.UserID)
	if err != nil {
		return res.WriteJSON(adviceResponse{Configured: true, Error: common.ToDetailedError(err).Message})
	}
	text, err := a.advisor.Advise(ctx, adviceRequestOf(report))
	if err != nil {
		a.logger.Warn().Err(err).Str("user", res.UserID).Msg("advice failed")
		return res.WriteJSON(adviceResponse{Configured: true, Error: common.ToDetailedError(err).Message})
	}
	return res.WriteJSON(adviceResponse{Configured: true, Advice: text})
}
