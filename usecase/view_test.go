package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mdblp/health-tracker/common"
	"github.com/mdblp/health-tracker/schema"
)

func TestMountView_subscribeFailureKeepsOtherStores(t *testing.T) {
	now := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)
	db := &MockDocumentDatabase{}
	db.On("Subscribe", metricsScope, mock.Anything).Return(errors.New("unreachable"))
	db.On("Subscribe", schema.NewScope("app", "u1", schema.Appointments), mock.Anything).Return(nil)

	view, err := mountView(context.Background(), zerolog.Nop(), db, "app", "u1", RouteFor(TabDashboard), time.UTC, func() time.Time { return now })
	require.NoError(t, err)
	defer view.Close()

	assert.Nil(t, view.Metrics)
	assert.Nil(t, view.BloodPressureForm)
	require.NotNil(t, view.Appointments, "appointments are mounted anyway")
	assert.NotNil(t, view.AppointmentForm)
	assert.True(t, common.IsCode(view.Err(), common.CodeRemoteRead))

	updated := view.Updated()
	db.Events(0) <- SnapshotEvent{Documents: []schema.Document{
		{ID: "a1", Fields: map[string]interface{}{"doctorName": "Who", "specialty": "GP", "date": now.Add(time.Hour)}},
	}}
	select {
	case <-updated:
	case <-time.After(2 * time.Second):
		t.Fatal("view not updated")
	}
	assert.True(t, view.Appointments.IsReady())
	assert.False(t, view.Ready(), "the failed store never becomes ready")

	payload := view.Payload()
	require.NotNil(t, payload.Summary)
	assert.Len(t, payload.Summary.Upcoming, 1)
	assert.NotEmpty(t, payload.Error)
}
