package common

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"
)

type traceKey struct{}

const (
	// To convert mg/dL to mmol/L and vice-versa
	mgdlPerMmoll float64 = 18.01577
	UnitMgdL             = "mg/dL"
	UnitMmolL            = "mmol/L"
)

// ConvertBG is a common util function to convert bg values
// to/from "mg/dL" and "mmol/L"
//
// - param: value The value to convert
//
// - param: unit The unit of the passed value
//
// - return: The converted value in the opposite unit
func ConvertBG(value float64, unit string) (float64, error) {
	if value < 0 {
		return 0, errors.New("invalid glycemia value")
	}
	if unit == UnitMgdL {
		return math.Round(10.0*value/mgdlPerMmoll) / 10, nil
	}
	if unit == UnitMmolL {
		return math.Round(value * mgdlPerMmoll), nil
	}
	return 0, errors.New("invalid parameter unit")
}

// IsValidUUID check if the uuid is valid
func IsValidUUID(u string) bool {
	_, err := uuid.Parse(u)
	return err == nil
}

// WithTraceID stores the request trace id so that lower layers can tag their logs and queries
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// TraceID returns the trace id of the context, a new one when absent
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceKey{}).(string); ok && v != "" {
		return v
	}
	return uuid.New().String()
}
