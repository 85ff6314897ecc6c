package common

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertBG(t *testing.T) {
	mmol, err := ConvertBG(180, UnitMgdL)
	require.NoError(t, err)
	assert.Equal(t, 10.0, mmol)

	mgdl, err := ConvertBG(5.5, UnitMmolL)
	require.NoError(t, err)
	assert.Equal(t, 99.0, mgdl)

	_, err = ConvertBG(-1, UnitMgdL)
	assert.Error(t, err)
	_, err = ConvertBG(1, "g/L")
	assert.Error(t, err)
}

func TestTraceID(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-1")
	assert.Equal(t, "trace-1", TraceID(ctx))
	assert.True(t, IsValidUUID(TraceID(context.Background())))
}
