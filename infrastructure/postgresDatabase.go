package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/mdblp/health-tracker/common"
	"github.com/mdblp/health-tracker/schema"
	"github.com/mdblp/health-tracker/usecase"
)

const (
	notifyChannel = "health_docs"
	// dateKey tags time values inside the jsonb body
	dateKey = "$date"
)

const createSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	id         text PRIMARY KEY,
	app_id     text NOT NULL,
	user_id    text NOT NULL,
	collection text NOT NULL,
	body       jsonb NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now(),
	seq        bigserial
);
CREATE INDEX IF NOT EXISTS documents_scope_idx ON documents (app_id, user_id, collection);
`

// serverStamps builds the jsonb object of the fields listed in a text[] parameter, stamped by the database clock
const serverStamps = `coalesce((SELECT jsonb_object_agg(k, jsonb_build_object('` + dateKey + `', to_char(now() AT TIME ZONE 'utc', 'YYYY-MM-DD"T"HH24:MI:SS.US"Z"'))) FROM unnest(%s::text[]) AS k), '{}'::jsonb)`

// PostgresDatabase keeps documents as jsonb rows and pushes changes to
// subscribers with LISTEN/NOTIFY
type PostgresDatabase struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger

	mu          sync.Mutex
	nextSub     int
	subscribers map[string]map[int]chan struct{}
	cancel      context.CancelFunc
	listening   chan struct{}
}

// NewPostgresDatabase connects to connString, creates the schema and starts listening to changes
func NewPostgresDatabase(ctx context.Context, connString string, logger zerolog.Logger) (*PostgresDatabase, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if _, err := pool.Exec(ctx, createSchemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to create schema: %w", err)
	}
	listenCtx, cancel := context.WithCancel(context.Background())
	p := &PostgresDatabase{
		pool:        pool,
		logger:      logger.With().Str("component", "postgres").Logger(),
		subscribers: map[string]map[int]chan struct{}{},
		cancel:      cancel,
		listening:   make(chan struct{}),
	}
	go p.listen(listenCtx)
	return p, nil
}

func (p *PostgresDatabase) Close() {
	p.cancel()
	<-p.listening
	p.pool.Close()
}

func (p *PostgresDatabase) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// listen holds one connection for the whole process and fans notifications out per scope
func (p *PostgresDatabase) listen(ctx context.Context) {
	defer close(p.listening)
	for ctx.Err() == nil {
		if err := p.listenOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error().Err(err).Msg("listen connection lost, retrying")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
		}
	}
}

func (p *PostgresDatabase) listenOnce(ctx context.Context) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}
	// changes made while reconnecting are caught up here
	p.notifyAll()
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		p.notify(n.Payload)
	}
}

func (p *PostgresDatabase) notify(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subscribers[path] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (p *PostgresDatabase) notifyAll() {
	p.mu.Lock()
	paths := make([]string, 0, len(p.subscribers))
	for path := range p.subscribers {
		paths = append(paths, path)
	}
	p.mu.Unlock()
	for _, path := range paths {
		p.notify(path)
	}
}

func (p *PostgresDatabase) Subscribe(ctx context.Context, scope schema.Scope, order schema.Order) (<-chan usecase.SnapshotEvent, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	path := scope.Path()
	wake := make(chan struct{}, 1)
	wake <- struct{}{}

	p.mu.Lock()
	p.nextSub++
	subID := p.nextSub
	if p.subscribers[path] == nil {
		p.subscribers[path] = map[int]chan struct{}{}
	}
	p.subscribers[path][subID] = wake
	p.mu.Unlock()

	out := make(chan usecase.SnapshotEvent)
	go func() {
		defer close(out)
		defer func() {
			p.mu.Lock()
			delete(p.subscribers[path], subID)
			if len(p.subscribers[path]) == 0 {
				delete(p.subscribers, path)
			}
			p.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-wake:
				docs, err := p.QueryOnce(ctx, scope, order)
				if ctx.Err() != nil {
					return
				}
				select {
				case out <- usecase.SnapshotEvent{Documents: docs, Err: err}:
				case <-ctx.Done():
					return
				}
				if err != nil {
					return
				}
			}
		}
	}()
	return out, nil
}

func (p *PostgresDatabase) QueryOnce(ctx context.Context, scope schema.Scope, order schema.Order) ([]schema.Document, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	rows, err := p.pool.Query(ctx,
		`SELECT id, body FROM documents WHERE app_id = $1 AND user_id = $2 AND collection = $3 ORDER BY seq`,
		scope.AppID, scope.UserID, string(scope.Collection))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []schema.Document
	for rows.Next() {
		var id string
		var body []byte
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		fields, err := decodeBody(body)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", id, err)
		}
		docs = append(docs, schema.Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if order.Field != "" {
		schema.SortDocuments(docs, order)
	}
	return docs, nil
}

func (p *PostgresDatabase) Create(ctx context.Context, scope schema.Scope, fields map[string]interface{}) (string, error) {
	if err := scope.Validate(); err != nil {
		return "", err
	}
	body, stamped, err := encodeBody(fields)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()
	_, err = p.pool.Exec(ctx,
		`INSERT INTO documents (id, app_id, user_id, collection, body) VALUES ($1, $2, $3, $4, $5::jsonb || `+fmt.Sprintf(serverStamps, "$6")+`)`,
		id, scope.AppID, scope.UserID, string(scope.Collection), body, stamped)
	if err != nil {
		return "", err
	}
	p.publish(ctx, scope)
	return id, nil
}

func (p *PostgresDatabase) Update(ctx context.Context, scope schema.Scope, id string, fields map[string]interface{}) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	body, stamped, err := encodeBody(fields)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx,
		`UPDATE documents SET body = body || $1::jsonb || `+fmt.Sprintf(serverStamps, "$2")+`
		 WHERE id = $3 AND app_id = $4 AND user_id = $5 AND collection = $6`,
		body, stamped, id, scope.AppID, scope.UserID, string(scope.Collection))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.NewError(common.CodeNotFound, "document not found", errors.New(scope.Path()+"/"+id))
	}
	p.publish(ctx, scope)
	return nil
}

// Delete of an unknown id is not an error
func (p *PostgresDatabase) Delete(ctx context.Context, scope schema.Scope, id string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM documents WHERE id = $1 AND app_id = $2 AND user_id = $3 AND collection = $4`,
		id, scope.AppID, scope.UserID, string(scope.Collection))
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		p.publish(ctx, scope)
	}
	return nil
}

func (p *PostgresDatabase) publish(ctx context.Context, scope schema.Scope) {
	if _, err := p.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, scope.Path()); err != nil {
		p.logger.Warn().Err(err).Str("scope", scope.Path()).Msg("notify failed")
	}
}

// encodeBody marshals fields to jsonb, tagging times, and returns the server stamped keys apart
func encodeBody(fields map[string]interface{}) (string, []string, error) {
	out := make(map[string]interface{}, len(fields))
	stamped := []string{}
	for k, v := range fields {
		if schema.IsServerTimestamp(v) {
			stamped = append(stamped, k)
			continue
		}
		out[k] = encodeValue(v)
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return "", nil, err
	}
	return string(raw), stamped, nil
}

func encodeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case time.Time:
		return map[string]string{dateKey: t.UTC().Format(time.RFC3339Nano)}
	case *time.Time:
		if t == nil {
			return nil
		}
		return map[string]string{dateKey: t.UTC().Format(time.RFC3339Nano)}
	}
	return v
}

func decodeBody(raw []byte) (map[string]interface{}, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		obj, ok := v.(map[string]interface{})
		if !ok || len(obj) != 1 {
			continue
		}
		s, ok := obj[dateKey].(string)
		if !ok {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			fields[k] = t.UTC()
		}
	}
	return fields, nil
}
