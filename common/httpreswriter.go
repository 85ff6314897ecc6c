package common

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

type (
	// HttpResponseWriter is handed to the api handlers by the middleware.
	//
	// Handlers write into a string builder, so a valid error response can still
	// be sent when a failure happens after the first write.
	HttpResponseWriter struct {
		URL         *url.URL
		VARS        map[string]string
		TraceID     string
		Header      http.Header // request headers
		Body        []byte      // request body, read by the middleware
		UserID      string      // signed-in user, set by the middleware when the route requires one
		WriteBuffer strings.Builder
		StatusCode  int
		Err         *DetailedError
		Size        int
		// ContentType defaults to application/json
		ContentType string
		// ResponseHeader holds extra headers copied to the response (Content-Disposition...)
		ResponseHeader http.Header
	}
)

func NewHttpResponseWriter(req *http.Request, vars map[string]string, traceID string) *HttpResponseWriter {
	return &HttpResponseWriter{
		URL:            req.URL,
		VARS:           vars,
		TraceID:        traceID,
		Header:         req.Header.Clone(),
		StatusCode:     http.StatusOK,
		ContentType:    "application/json",
		ResponseHeader: http.Header{},
	}
}

func (res *HttpResponseWriter) Write(v []byte) error {
	size, err := res.WriteBuffer.Write(v)
	res.Size += size
	return err
}

func (res *HttpResponseWriter) WriteString(s string) error {
	size, err := res.WriteBuffer.WriteString(s)
	res.Size += size
	return err
}

// DecodeBody unmarshals the request body into v, an empty body leaving v untouched
func (res *HttpResponseWriter) DecodeBody(v interface{}) error {
	if len(res.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Body, v); err != nil {
		return NewError(CodeInvalidParams, "Invalid request body", err)
	}
	return nil
}

// WriteJSON marshals v as the response body
func (res *HttpResponseWriter) WriteJSON(v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return NewError(CodeInternal, "Internal Server Error", err)
	}
	res.ContentType = "application/json"
	return res.Write(body)
}

// WriteError final writing to the response
func (res *HttpResponseWriter) WriteError(err *DetailedError) error {
	if err == nil {
		err = &DetailedError{
			Status:          http.StatusInternalServerError,
			Code:            "unknown_error",
			Message:         "Unknown error",
			InternalMessage: "WriteError() with nil error",
		}
	}

	// shared error values must not carry the trace id of this request
	copied := *err
	copied.ID = res.TraceID
	res.Err = &copied

	// Discard the previous content, so we end up with a valid json returned to the client
	res.WriteBuffer.Reset()
	res.Size = 0
	res.ContentType = "application/json"
	res.ResponseHeader = http.Header{}

	jsonErr, _ := json.Marshal(res.Err)
	res.WriteHeader(res.Err.Status)
	return res.Write(jsonErr)
}

func (res *HttpResponseWriter) WriteHeader(statusCode int) {
	res.StatusCode = statusCode
}
