package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/gorilla/websocket"
	"github.com/markbates/goth/gothic"
	"github.com/rs/zerolog"
	"github.com/tidepool-org/go-common/clients/status"

	"github.com/mdblp/health-tracker/common"
	"github.com/mdblp/health-tracker/usecase"
)

type (
	// API serves the views of the signed-in user to a local front-end
	API struct {
		session  *usecase.Session
		db       usecase.DocumentDatabase
		exporter usecase.Exporter
		archive  bool
		reporter usecase.Reporter
		advisor  Advisor
		auth     Authenticator
		logger   zerolog.Logger
		upgrader websocket.Upgrader
		// viewWait bounds how long GET /v1/view waits for the first snapshots
		viewWait time.Duration
	}

	// Config lists the dependencies of the API
	Config struct {
		Session  *usecase.Session
		Database usecase.DocumentDatabase
		Exporter usecase.Exporter
		// Archive enables POST /v1/export/archive, the exporter downloader being the archive target
		Archive       bool
		Reporter      usecase.Reporter
		Advisor       Advisor
		Auth          Authenticator
		SessionSecret string
		Logger        zerolog.Logger
	}
)

var (
	errorStatusCheck   = common.DetailedError{Status: http.StatusInternalServerError, Code: "data_status_check", Message: "checking of the status endpoint showed an error"}
	errorLoadingEvents = common.DetailedError{Status: http.StatusInternalServerError, Code: "json_marshal_error", Message: "internal server error"}
	errorNotfound      = common.DetailedError{Status: http.StatusNotFound, Code: "route_not_found", Message: "unknown route"}
	errorNotSignedIn   = common.DetailedError{Status: http.StatusUnauthorized, Code: common.CodeIdentity, Message: "Please sign in"}
	errorForbidden     = common.DetailedError{Status: http.StatusForbidden, Code: common.CodeUnauthorized, Message: "token does not match the signed-in user"}
)

func InitAPI(cfg Config) *API {
	if cfg.SessionSecret != "" {
		store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
		store.Options.HttpOnly = true
		store.Options.SameSite = http.SameSiteLaxMode
		gothic.Store = store
	}
	return &API{
		session:  cfg.Session,
		db:       cfg.Database,
		exporter: cfg.Exporter,
		archive:  cfg.Archive,
		reporter: cfg.Reporter,
		advisor:  cfg.Advisor,
		auth:     cfg.Auth,
		logger:   cfg.Logger.With().Str("component", "api").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		viewWait: 2 * time.Second,
	}
}

// SetHandlers set the API routes
func (a *API) SetHandlers(prefix string, rtr *mux.Router) {
	a.setHandlers(prefix+"/v1", rtr)
	a.setAuthHandlers(prefix+"/auth", rtr)

	rtr.HandleFunc("/status", a.getStatus).Methods(http.MethodGet)
}

func (a *API) setHandlers(prefix string, rtr *mux.Router) {
	rtr.HandleFunc(prefix+"/view/{tab}", a.middleware(a.getView, true, "tab")).Methods(http.MethodGet)
	rtr.HandleFunc(prefix+"/ws/{tab}", a.serveWebsocket).Methods(http.MethodGet)

	rtr.HandleFunc(prefix+"/metrics/{subtype}", a.middleware(a.postMetric, true, "subtype")).Methods(http.MethodPost)
	rtr.HandleFunc(prefix+"/appointments", a.middleware(a.postAppointment, true)).Methods(http.MethodPost)
	rtr.HandleFunc(prefix+"/medications", a.middleware(a.postMedication, true)).Methods(http.MethodPost)
	rtr.HandleFunc(prefix+"/medications/{id}", a.middleware(a.putMedication, true, "id")).Methods(http.MethodPut)
	rtr.HandleFunc(prefix+"/{collection}/delete/{step}", a.middleware(a.postDeletion, true, "collection", "step")).Methods(http.MethodPost)

	rtr.HandleFunc(prefix+"/export/archive", a.middleware(a.postArchive, true)).Methods(http.MethodPost)
	rtr.HandleFunc(prefix+"/export/{kind}", a.middleware(a.getExport, true, "kind")).Methods(http.MethodGet)
	rtr.HandleFunc(prefix+"/report", a.middleware(a.getReport, true)).Methods(http.MethodGet)
	rtr.HandleFunc(prefix+"/advice", a.middleware(a.postAdvice, true)).Methods(http.MethodPost)

	rtr.HandleFunc(prefix+"/{.*}", a.middleware(a.getNotFound, false)).Methods(http.MethodGet)
}

func (a *API) getNotFound(ctx context.Context, res *common.HttpResponseWriter) error {
	return res.WriteError(&errorNotfound)
}

// getStatus reports whether the document database answers
func (a *API) getStatus(res http.ResponseWriter, req *http.Request) {
	start := time.Now()
	var s status.ApiStatus
	if err := a.db.Ping(req.Context()); err != nil {
		errorLog := errorStatusCheck.SetInternalMessage(err)
		a.logError(&errorLog, start)
		s = status.NewApiStatus(errorLog.Status, err.Error())
	} else {
		s = status.NewApiStatus(http.StatusOK, "OK")
	}
	if jsonDetails, err := json.Marshal(s); err != nil {
		a.jsonError(res, errorLoadingEvents.SetInternalMessage(err), start)
	} else {
		res.Header().Add("content-type", "application/json")
		res.WriteHeader(s.Status.Code)
		res.Write(jsonDetails)
	}
}

// log error detail and write as application/json
func (a *API) jsonError(res http.ResponseWriter, err common.DetailedError, startedAt time.Time) {
	a.logError(&err, startedAt)
	jsonErr, _ := json.Marshal(err)

	res.Header().Add("content-type", "application/json")
	res.WriteHeader(err.Status)
	res.Write(jsonErr)
}

func (a *API) logError(err *common.DetailedError, startedAt time.Time) {
	err.ID = uuid.New().String()
	a.logger.Error().
		Str("id", err.ID).
		Str("code", err.Code).
		Float64("secs", time.Since(startedAt).Seconds()).
		Str("internal", err.InternalMessage).
		Msg(err.Message)
}
