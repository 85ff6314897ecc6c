package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdblp/health-tracker/auth"
	"github.com/mdblp/health-tracker/infrastructure"
	"github.com/mdblp/health-tracker/schema"
	"github.com/mdblp/health-tracker/usecase"
)

const appID = "test-app"

func startSession(t *testing.T) (*usecase.Session, *infrastructure.MemoryDatabase, *auth.ClientMock) {
	t.Helper()
	db := infrastructure.NewMemoryDatabase()
	identity := auth.NewMock()
	session := usecase.NewSession(zerolog.Nop(), db, identity, usecase.SessionConfig{AppID: appID, Location: time.UTC})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = session.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return session, db, identity
}

func waitView(t *testing.T, session *usecase.Session, userID string) *usecase.View {
	t.Helper()
	var view *usecase.View
	require.Eventually(t, func() bool {
		view = session.View()
		return view != nil && view.UserID == userID && view.Ready()
	}, 2*time.Second, 5*time.Millisecond)
	return view
}

func TestSession_SignedOutMountsNothing(t *testing.T) {
	session, db, _ := startSession(t)
	_, err := session.Mount(usecase.TabMedications)
	assert.Error(t, err)
	_, err = session.UserID()
	assert.Error(t, err)
	assert.Nil(t, session.View())
	assert.Equal(t, 0, db.TotalSubscribers())
}

func TestSession_MountOpensRouteStores(t *testing.T) {
	session, db, identity := startSession(t)
	identity.SetUser(&schema.User{ID: "alice"})
	view := waitView(t, session, "alice")
	assert.Equal(t, usecase.TabDashboard, view.Route.Tab)
	assert.NotNil(t, view.Metrics)
	assert.NotNil(t, view.Appointments)
	assert.Nil(t, view.Medications)
	assert.Equal(t, 2, db.TotalSubscribers())

	medView, err := session.Mount(usecase.TabMedications)
	require.NoError(t, err)
	assert.True(t, view.IsClosed())
	assert.Nil(t, medView.Metrics)
	assert.NotNil(t, medView.Medications)
	assert.Eventually(t, func() bool {
		return db.TotalSubscribers() == 1 &&
			db.Subscribers(schema.NewScope(appID, "alice", schema.Medications)) == 1
	}, 2*time.Second, 5*time.Millisecond)

	same, err := session.Mount(usecase.TabMedications)
	require.NoError(t, err)
	assert.Same(t, medView, same, "mounting the shown tab keeps its view")

	exportView, err := session.Mount(usecase.TabExport)
	require.NoError(t, err)
	assert.Empty(t, exportView.Route.Stores)
	assert.Eventually(t, func() bool { return db.TotalSubscribers() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestSession_UserSwitchClosesPreviousSubscriptions(t *testing.T) {
	session, db, identity := startSession(t)
	identity.SetUser(&schema.User{ID: "alice"})
	alice := waitView(t, session, "alice")
	_, err := session.Mount(usecase.TabBloodPressure)
	require.NoError(t, err)
	alice = waitView(t, session, "alice")

	ctx := context.Background()
	_, err = alice.BloodPressureForm.SubmitWith(ctx, usecase.BloodPressureInput{Systolic: "120", Diastolic: "80"})
	require.NoError(t, err)

	identity.SetUser(&schema.User{ID: "bob"})
	bob := waitView(t, session, "bob")
	assert.True(t, alice.IsClosed())
	assert.Equal(t, usecase.TabBloodPressure, bob.Route.Tab, "the tab survives the user switch")
	assert.Empty(t, bob.Metrics.Records(), "bob never sees alice's readings")
	assert.Eventually(t, func() bool {
		return db.Subscribers(schema.NewScope(appID, "alice", schema.HealthMetrics)) == 0 &&
			db.Subscribers(schema.NewScope(appID, "bob", schema.HealthMetrics)) == 1
	}, 2*time.Second, 5*time.Millisecond)

	identity.SetUser(nil)
	assert.Eventually(t, func() bool { return session.View() == nil && db.TotalSubscribers() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, bob.IsClosed())
}

func TestSession_SubmitShowsInSnapshot(t *testing.T) {
	session, db, identity := startSession(t)
	db.SetClock(func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) })
	identity.SetUser(&schema.User{ID: "alice"})
	waitView(t, session, "alice")
	view, err := session.Mount(usecase.TabMedications)
	require.NoError(t, err)
	view = waitView(t, session, "alice")

	updated := view.Updated()
	id, err := view.MedicationForm.SubmitWith(context.Background(), usecase.MedicationInput{Name: " Metformin ", Dosage: "500mg"})
	require.NoError(t, err)
	select {
	case <-updated:
	case <-time.After(2 * time.Second):
		t.Fatal("view not updated after submit")
	}
	require.Eventually(t, func() bool { return len(view.Medications.Records()) == 1 }, 2*time.Second, 5*time.Millisecond)
	med := view.Medications.Records()[0]
	assert.Equal(t, id, med.ID)
	assert.Equal(t, "Metformin", med.Name)
	require.NotNil(t, med.AddedAt)
	assert.True(t, med.AddedAt.Equal(time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)))

	payload := view.Payload()
	assert.True(t, payload.Ready)
	assert.Len(t, payload.Medications, 1)
}

func TestSession_SignInFailure(t *testing.T) {
	session, _, identity := startSession(t)
	identity.SignInErr = assert.AnError
	err := session.SignIn(context.Background())
	require.Error(t, err)
	assert.Nil(t, session.User())

	identity.SignInErr = nil
	require.NoError(t, session.SignIn(context.Background()))
	waitView(t, session, identity.NextUser.ID)
	require.NoError(t, session.SignOut(context.Background()))
	assert.Eventually(t, func() bool { return session.User() == nil }, 2*time.Second, 5*time.Millisecond)
}
