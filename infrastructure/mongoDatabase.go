package infrastructure

import (
	"context"
	"errors"
	"log"
	"reflect"
	"time"

	"github.com/rs/zerolog"
	goComMgo "github.com/tidepool-org/go-common/clients/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mdblp/health-tracker/common"
	"github.com/mdblp/health-tracker/schema"
	"github.com/mdblp/health-tracker/usecase"
)

const (
	documentsCollectionName = "documents"
	idxAppUserCollection    = "AppUserCollection"

	appIDKey      = "_appId"
	userIDKey     = "_userId"
	collectionKey = "_collection"

	defaultPollInterval = 2 * time.Second
)

var healthTrackerIndexes = map[string][]mongo.IndexModel{
	documentsCollectionName: {
		{
			Keys:    bson.D{{Key: appIDKey, Value: 1}, {Key: userIDKey, Value: 1}, {Key: collectionKey, Value: 1}},
			Options: options.Index().SetName(idxAppUserCollection),
		},
	},
}

// MongoDatabase stores every collection of every user in one mongo collection,
// the scope being kept in the _appId, _userId and _collection keys
type MongoDatabase struct {
	*goComMgo.StoreClient
	logger       zerolog.Logger
	pollInterval time.Duration
}

// NewMongoDatabase creates a new document database backed by mongo
func NewMongoDatabase(config *goComMgo.Config, stdLogger *log.Logger, logger zerolog.Logger) (*MongoDatabase, error) {
	if config != nil {
		config.Indexes = healthTrackerIndexes
	}
	store, err := goComMgo.NewStoreClient(config, stdLogger)
	return &MongoDatabase{
		StoreClient:  store,
		logger:       logger.With().Str("component", "mongo").Logger(),
		pollInterval: defaultPollInterval,
	}, err
}

// SetPollInterval sets the refresh period used when change streams are unavailable
func (m *MongoDatabase) SetPollInterval(d time.Duration) {
	m.pollInterval = d
}

func documentsCollection(m *MongoDatabase) *mongo.Collection {
	return m.Collection(documentsCollectionName)
}

func scopeFilter(scope schema.Scope) bson.M {
	return bson.M{
		appIDKey:      scope.AppID,
		userIDKey:     scope.UserID,
		collectionKey: string(scope.Collection),
	}
}

func (m *MongoDatabase) Ping(ctx context.Context) error {
	return m.StoreClient.Ping()
}

func (m *MongoDatabase) QueryOnce(ctx context.Context, scope schema.Scope, order schema.Order) ([]schema.Document, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	opts := options.Find().SetHint(idxAppUserCollection).SetComment(common.TraceID(ctx))
	if order.Field != "" {
		dir := 1
		if order.Direction == schema.Descending {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: order.Field, Value: dir}, {Key: "_id", Value: 1}})
	}
	cursor, err := documentsCollection(m).Find(ctx, scopeFilter(scope), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, err
	}
	docs := make([]schema.Document, 0, len(raw))
	for _, r := range raw {
		docs = append(docs, documentFromBSON(r))
	}
	// mongo orders mixed types by bson type, realign on the shared comparison
	if order.Field != "" {
		schema.SortDocuments(docs, order)
	}
	return docs, nil
}

// Subscribe watches the collection through a change stream and re-reads the
// scope on every relevant change. Deployments without change streams are polled.
func (m *MongoDatabase) Subscribe(ctx context.Context, scope schema.Scope, order schema.Order) (<-chan usecase.SnapshotEvent, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	out := make(chan usecase.SnapshotEvent)
	go func() {
		defer close(out)
		var last []schema.Document
		emit := func(force bool) bool {
			docs, err := m.QueryOnce(ctx, scope, order)
			if err == nil && !force && reflect.DeepEqual(docs, last) {
				return true
			}
			if ctx.Err() != nil {
				return false
			}
			last = docs
			select {
			case out <- usecase.SnapshotEvent{Documents: docs, Err: err}:
			case <-ctx.Done():
				return false
			}
			return err == nil
		}
		if !emit(true) {
			return
		}

		stream, err := documentsCollection(m).Watch(ctx, changePipeline(scope), options.ChangeStream().SetFullDocument(options.UpdateLookup))
		if err != nil {
			m.logger.Warn().Err(err).Str("scope", scope.Path()).Msg("change stream unavailable, polling")
			m.poll(ctx, emit)
			return
		}
		defer stream.Close(context.Background())
		for stream.Next(ctx) {
			if !emit(false) {
				return
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			m.logger.Error().Err(err).Str("scope", scope.Path()).Msg("change stream failed")
			select {
			case out <- usecase.SnapshotEvent{Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

func (m *MongoDatabase) poll(ctx context.Context, emit func(force bool) bool) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !emit(false) {
				return
			}
		}
	}
}

// changePipeline keeps the events of scope; deletes carry no document and always pass
func changePipeline(scope schema.Scope) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"$or": bson.A{
				bson.M{
					"fullDocument." + appIDKey:      scope.AppID,
					"fullDocument." + userIDKey:     scope.UserID,
					"fullDocument." + collectionKey: string(scope.Collection),
				},
				bson.M{"operationType": "delete"},
			},
		}}},
	}
}

// splitServerTimestamps separates the fields to be stamped by the server clock
func splitServerTimestamps(fields map[string]interface{}) (bson.M, bson.M) {
	set := bson.M{}
	stamped := bson.M{}
	for k, v := range fields {
		if schema.IsServerTimestamp(v) {
			stamped[k] = bson.M{"$type": "date"}
			continue
		}
		set[k] = v
	}
	return set, stamped
}

func updateDocument(set bson.M, stamped bson.M) bson.M {
	update := bson.M{"$set": set}
	if len(stamped) > 0 {
		update["$currentDate"] = stamped
	}
	return update
}

// Create upserts a new document so that server timestamps come from the mongo clock
func (m *MongoDatabase) Create(ctx context.Context, scope schema.Scope, fields map[string]interface{}) (string, error) {
	if err := scope.Validate(); err != nil {
		return "", err
	}
	id := primitive.NewObjectID()
	set, stamped := splitServerTimestamps(fields)
	for k, v := range scopeFilter(scope) {
		set[k] = v
	}
	opts := options.Update().SetUpsert(true)
	if _, err := documentsCollection(m).UpdateOne(ctx, bson.M{"_id": id}, updateDocument(set, stamped), opts); err != nil {
		return "", err
	}
	return id.Hex(), nil
}

func (m *MongoDatabase) Update(ctx context.Context, scope schema.Scope, id string, fields map[string]interface{}) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return common.NewError(common.CodeNotFound, "document not found", err)
	}
	filter := scopeFilter(scope)
	filter["_id"] = objID
	set, stamped := splitServerTimestamps(fields)
	res, err := documentsCollection(m).UpdateOne(ctx, filter, updateDocument(set, stamped))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return common.NewError(common.CodeNotFound, "document not found", errors.New(scope.Path()+"/"+id))
	}
	return nil
}

// Delete of an unknown id is not an error
func (m *MongoDatabase) Delete(ctx context.Context, scope schema.Scope, id string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}
	filter := scopeFilter(scope)
	filter["_id"] = objID
	_, err = documentsCollection(m).DeleteOne(ctx, filter)
	return err
}

func documentFromBSON(raw bson.M) schema.Document {
	doc := schema.Document{Fields: map[string]interface{}{}}
	for k, v := range raw {
		switch k {
		case "_id":
			if oid, ok := v.(primitive.ObjectID); ok {
				doc.ID = oid.Hex()
			} else if s, ok := v.(string); ok {
				doc.ID = s
			}
		case appIDKey, userIDKey, collectionKey:
		default:
			doc.Fields[k] = valueFromBSON(v)
		}
	}
	return doc
}

func valueFromBSON(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(t.T), 0).UTC()
	}
	return v
}
