package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/mdblp/health-tracker/common"
)

// HandlerLoggerFunc expose our httpResponseWriter API
type HandlerLoggerFunc func(context.Context, *common.HttpResponseWriter) error

const (
	traceHeader  = "x-health-trace-session"
	maxBodyBytes = 1 << 20
)

// middleware logs every request and hands a buffered response writer to fn.
// withUser routes are refused while nobody is signed in.
func (a *API) middleware(fn HandlerLoggerFunc, withUser bool, params ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		start := time.Now().UTC()

		// It is recommended by go to get the request information before writing
		logErrors := make([]string, 0, 5)
		logRequest := fmt.Sprintf("%s - %s %s HTTP/%d.%d", r.RemoteAddr, r.Method, r.URL.String(), r.ProtoMajor, r.ProtoMinor)

		traceID := r.Header.Get(traceHeader)
		if !common.IsValidUUID(traceID) {
			traceID = common.TraceID(r.Context())
		}
		ctx := common.WithTraceID(r.Context(), traceID)

		var vars map[string]string
		if len(params) > 0 {
			vars = mux.Vars(r)
		}
		res := common.NewHttpResponseWriter(r, vars, traceID)

		if r.Body != nil {
			res.Body, err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			if err != nil {
				res.WriteError(common.NewError(common.CodeInvalidParams, "Invalid request body", err))
			}
		}

		if withUser && res.Err == nil {
			if detailed := a.authorize(r, res); detailed != nil {
				res.WriteError(detailed)
			}
		}

		// Mainteners: No read from the request below this point!

		if res.Err == nil {
			err = fn(ctx, res)
			if err != nil {
				logErrors = append(logErrors, fmt.Sprintf("efn:\"%s\"", err))
				if res.Err == nil {
					res.WriteError(common.ToDetailedError(err))
				}
			}
		}

		for k, values := range res.ResponseHeader {
			for _, v := range values {
				w.Header().Add(k, v)
			}
		}
		w.Header().Set("Content-Type", res.ContentType)
		w.WriteHeader(res.StatusCode)
		_, err = w.Write([]byte(res.WriteBuffer.String()))
		if err != nil {
			logErrors = append(logErrors, fmt.Sprintf("eww:\"%s\"", err))
		}

		if res.Err != nil {
			if res.Err.Code != "" {
				logErrors = append(logErrors, fmt.Sprintf("code:\"%s\"", res.Err.Code))
			}
			if res.Err.InternalMessage != "" {
				logErrors = append(logErrors, fmt.Sprintf("err:\"%s\"", res.Err.InternalMessage))
			}
		}

		dur := time.Now().UTC().Sub(start).Milliseconds()
		var logError string
		if len(logErrors) > 0 {
			logError = fmt.Sprintf("{%s} - ", strings.Join(logErrors, ","))
		}
		a.logger.Info().Msgf("{%s} %s %d - %s%d ms - %d bytes", traceID, logRequest, res.StatusCode, logError, dur, res.Size)
	}
}

// authorize resolves the user of the request. A bearer token, when present,
// must belong to the signed-in user.
func (a *API) authorize(r *http.Request, res *common.HttpResponseWriter) *common.DetailedError {
	user := a.session.User()
	if user == nil {
		e := errorNotSignedIn
		return &e
	}
	if a.auth != nil && r.Header.Get("Authorization") != "" {
		tokenUser, err := a.auth.Authenticate(r)
		if err != nil {
			e := errorNotSignedIn.SetInternalMessage(err)
			return &e
		}
		if tokenUser.ID != user.ID {
			e := errorForbidden
			return &e
		}
	}
	res.UserID = user.ID
	return nil
}
