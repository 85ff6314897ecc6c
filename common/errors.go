package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned to the presentation layer
const (
	CodeValidation      = "validation_error"
	CodeRemoteWrite     = "remote_write_error"
	CodeRemoteRead      = "remote_read_error"
	CodeIdentity        = "identity_error"
	CodeNothingToExport = "nothing_to_export"
	CodeAdvice          = "advice_error"
	CodeNotFound        = "not_found"
	CodeInvalidParams   = "invalid_parameters"
	CodeConflict        = "submit_in_flight"
	CodeUnauthorized    = "unauthorized"
	CodeInternal        = "internal_error"
)

type DetailedError struct {
	Status          int    `json:"status"`  // Http status code
	ID              string `json:"id"`      // provided to user so that we can better track down issues
	Code            string `json:"code"`    // Code which may be used to translate the message to the final user
	Message         string `json:"message"` // Understandable message sent to the client
	InternalMessage string `json:"-"`       // used only for logging so we don't want to serialize it out
	Err             error  `json:"-"`
}

func (d *DetailedError) Error() string {
	if d.InternalMessage != "" {
		return fmt.Sprintf("%s: %s (%s)", d.Code, d.Message, d.InternalMessage)
	}
	return fmt.Sprintf("%s: %s", d.Code, d.Message)
}

func (d *DetailedError) Unwrap() error {
	return d.Err
}

// SetInternalMessage set the internal message that we will use for logging
func (d DetailedError) SetInternalMessage(internal error) DetailedError {
	d.InternalMessage = internal.Error()
	d.Err = internal
	return d
}

// NewError builds a DetailedError wrapping err, the HTTP status is derived from the code
func NewError(code string, message string, err error) *DetailedError {
	d := &DetailedError{
		Status:  statusForCode(code),
		Code:    code,
		Message: message,
		Err:     err,
	}
	if err != nil {
		d.InternalMessage = err.Error()
	}
	return d
}

// IsCode reports whether err carries a DetailedError with the given code
func IsCode(err error, code string) bool {
	var d *DetailedError
	if errors.As(err, &d) {
		return d.Code == code
	}
	var v *ValidationError
	if errors.As(err, &v) {
		return code == CodeValidation
	}
	return false
}

// ToDetailedError converts any error into a DetailedError suitable for a client response
func ToDetailedError(err error) *DetailedError {
	if err == nil {
		return nil
	}
	var d *DetailedError
	if errors.As(err, &d) {
		return d
	}
	var v *ValidationError
	if errors.As(err, &v) {
		return NewError(CodeValidation, v.Error(), err)
	}
	return NewError(CodeInternal, "Internal Server Error", err)
}

func statusForCode(code string) int {
	switch code {
	case CodeValidation, CodeInvalidParams:
		return http.StatusBadRequest
	case CodeNotFound, CodeNothingToExport:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized, CodeIdentity:
		return http.StatusUnauthorized
	case CodeRemoteRead, CodeRemoteWrite, CodeAdvice:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ValidationClass is the reason a form input was rejected
type ValidationClass string

const (
	EmptyField  ValidationClass = "empty_field"
	NotANumber  ValidationClass = "not_a_number"
	NotPositive ValidationClass = "not_positive"
)

// ValidationError is raised client side, before anything reaches the document database
type ValidationError struct {
	Field string
	Class ValidationClass
}

func NewValidationError(field string, class ValidationClass) *ValidationError {
	return &ValidationError{Field: field, Class: class}
}

func (e *ValidationError) Error() string {
	switch e.Class {
	case EmptyField:
		return fmt.Sprintf("%s is required", e.Field)
	case NotANumber:
		return fmt.Sprintf("%s must be a number", e.Field)
	case NotPositive:
		return fmt.Sprintf("%s must be a positive number", e.Field)
	}
	return fmt.Sprintf("%s is invalid", e.Field)
}

// ValidationClassOf returns the class of a validation error, or "" when err is not one
func ValidationClassOf(err error) ValidationClass {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Class
	}
	return ""
}
