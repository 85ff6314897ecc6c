package infrastructure

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdblp/health-tracker/common"
	"github.com/mdblp/health-tracker/schema"
	"github.com/mdblp/health-tracker/usecase"
)

var testScope = schema.NewScope("app", "user-1", schema.Medications)

func nextEvent(t *testing.T, events <-chan usecase.SnapshotEvent) usecase.SnapshotEvent {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no snapshot")
	}
	return usecase.SnapshotEvent{}
}

func names(docs []schema.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Fields[schema.FieldName].(string))
	}
	return out
}

func TestMemoryDatabase_SubscribeSnapshots(t *testing.T) {
	db := NewMemoryDatabase()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := db.Subscribe(ctx, testScope, schema.Asc(schema.FieldName))
	require.NoError(t, err)
	assert.Empty(t, nextEvent(t, events).Documents, "first snapshot of an empty collection")

	_, err = db.Create(ctx, testScope, map[string]interface{}{schema.FieldName: "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, names(nextEvent(t, events).Documents))

	_, err = db.Create(ctx, testScope, map[string]interface{}{schema.FieldName: "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names(nextEvent(t, events).Documents))

	// writes to another user do not reach this subscription
	other := schema.NewScope("app", "user-2", schema.Medications)
	_, err = db.Create(ctx, other, map[string]interface{}{schema.FieldName: "c"})
	require.NoError(t, err)
	select {
	case ev := <-events:
		t.Fatalf("unexpected snapshot %v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	assert.Equal(t, 1, db.Subscribers(testScope))
	cancel()
	assert.Eventually(t, func() bool { return db.TotalSubscribers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemoryDatabase_ServerTimestamp(t *testing.T) {
	db := NewMemoryDatabase()
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	db.SetClock(func() time.Time { return now })
	ctx := context.Background()

	id, err := db.Create(ctx, testScope, map[string]interface{}{schema.FieldName: "x", schema.FieldAddedAt: schema.ServerTimestamp})
	require.NoError(t, err)
	docs, err := db.QueryOnce(ctx, testScope, schema.Order{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, id, docs[0].ID)
	assert.Equal(t, now.UTC(), docs[0].Fields[schema.FieldAddedAt])
}

func TestMemoryDatabase_UpdateDelete(t *testing.T) {
	db := NewMemoryDatabase()
	ctx := context.Background()
	id, err := db.Create(ctx, testScope, map[string]interface{}{schema.FieldName: "x", schema.FieldDosage: "1"})
	require.NoError(t, err)

	require.NoError(t, db.Update(ctx, testScope, id, map[string]interface{}{schema.FieldDosage: "2"}))
	docs, err := db.QueryOnce(ctx, testScope, schema.Order{})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{schema.FieldName: "x", schema.FieldDosage: "2"}, docs[0].Fields)

	err = db.Update(ctx, testScope, "missing", map[string]interface{}{schema.FieldDosage: "2"})
	assert.True(t, common.IsCode(err, common.CodeNotFound))

	require.NoError(t, db.Delete(ctx, testScope, id))
	require.NoError(t, db.Delete(ctx, testScope, id), "delete is idempotent")
	docs, err = db.QueryOnce(ctx, testScope, schema.Order{})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemoryDatabase_FailureInjection(t *testing.T) {
	db := NewMemoryDatabase()
	ctx := context.Background()
	boom := errors.New("boom")

	db.FailWrites(boom)
	_, err := db.Create(ctx, testScope, map[string]interface{}{schema.FieldName: "x"})
	assert.ErrorIs(t, err, boom)
	db.FailWrites(nil)

	db.FailReads(boom)
	_, err = db.QueryOnce(ctx, testScope, schema.Order{})
	assert.ErrorIs(t, err, boom)
	events, err := db.Subscribe(ctx, testScope, schema.Order{})
	require.NoError(t, err)
	assert.ErrorIs(t, nextEvent(t, events).Err, boom)
	db.FailReads(nil)

	db.FailPing(boom)
	assert.ErrorIs(t, db.Ping(ctx), boom)
}

func TestMemoryDatabase_InvalidScope(t *testing.T) {
	db := NewMemoryDatabase()
	_, err := db.Subscribe(context.Background(), schema.Scope{AppID: "app", Collection: schema.Medications}, schema.Order{})
	assert.Error(t, err)
	_, err = db.Create(context.Background(), schema.Scope{AppID: "app", UserID: "u", Collection: "unknown"}, nil)
	assert.Error(t, err)
}
