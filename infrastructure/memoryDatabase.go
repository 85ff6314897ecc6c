package infrastructure

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mdblp/health-tracker/common"
	"github.com/mdblp/health-tracker/schema"
	"github.com/mdblp/health-tracker/usecase"
)

type memoryDocument struct {
	seq    int64
	fields map[string]interface{}
}

type seqDocument struct {
	seq int64
	doc schema.Document
}

type memorySubscriber struct {
	notify chan struct{}
}

// MemoryDatabase is an in-process document database with live subscriptions,
// used for local runs and unit tests
type MemoryDatabase struct {
	mu          sync.Mutex
	seq         int64
	nextSub     int
	collections map[string]map[string]*memoryDocument
	subscribers map[string]map[int]*memorySubscriber
	now         func() time.Time

	// failure injection
	writeErr error
	readErr  error
	pingErr  error
}

func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		collections: map[string]map[string]*memoryDocument{},
		subscribers: map[string]map[int]*memorySubscriber{},
		now:         time.Now,
	}
}

// SetClock replaces the clock resolving server timestamps
func (m *MemoryDatabase) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// FailWrites makes every following write return err, nil restores them
func (m *MemoryDatabase) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// FailReads makes subscriptions and queries fail with err, nil restores them
func (m *MemoryDatabase) FailReads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

func (m *MemoryDatabase) FailPing(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingErr = err
}

func (m *MemoryDatabase) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingErr
}

// Subscribers returns the number of live subscriptions on scope
func (m *MemoryDatabase) Subscribers(scope schema.Scope) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers[scope.Path()])
}

// TotalSubscribers returns the number of live subscriptions on every scope
func (m *MemoryDatabase) TotalSubscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, subs := range m.subscribers {
		total += len(subs)
	}
	return total
}

func (m *MemoryDatabase) Subscribe(ctx context.Context, scope schema.Scope, order schema.Order) (<-chan usecase.SnapshotEvent, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	path := scope.Path()
	sub := &memorySubscriber{notify: make(chan struct{}, 1)}
	sub.notify <- struct{}{}

	m.mu.Lock()
	m.nextSub++
	subID := m.nextSub
	if m.subscribers[path] == nil {
		m.subscribers[path] = map[int]*memorySubscriber{}
	}
	m.subscribers[path][subID] = sub
	m.mu.Unlock()

	out := make(chan usecase.SnapshotEvent)
	go func() {
		defer close(out)
		defer m.unsubscribe(path, subID)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.notify:
				docs, err := m.snapshot(path, order)
				ev := usecase.SnapshotEvent{Documents: docs, Err: err}
				select {
				case out <- ev:
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

func (m *MemoryDatabase) unsubscribe(path string, subID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscribers[path], subID)
	if len(m.subscribers[path]) == 0 {
		delete(m.subscribers, path)
	}
}

func (m *MemoryDatabase) snapshot(path string, order schema.Order) ([]schema.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	stored := m.collections[path]
	ordered := make([]seqDocument, 0, len(stored))
	for id, d := range stored {
		ordered = append(ordered, seqDocument{seq: d.seq, doc: schema.Document{ID: id, Fields: copyFields(d.fields)}})
	}
	// insertion order first, so that ties keep a stable order
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].seq < ordered[j].seq })
	docs := make([]schema.Document, 0, len(ordered))
	for _, o := range ordered {
		docs = append(docs, o.doc)
	}
	if order.Field != "" {
		schema.SortDocuments(docs, order)
	}
	return docs, nil
}

// notifyLocked wakes every subscriber of path; m.mu must be held
func (m *MemoryDatabase) notifyLocked(path string) {
	for _, sub := range m.subscribers[path] {
		select {
		case sub.notify <- struct{}{}:
		default:
		}
	}
}

func (m *MemoryDatabase) QueryOnce(ctx context.Context, scope schema.Scope, order schema.Order) ([]schema.Document, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.snapshot(scope.Path(), order)
}

func (m *MemoryDatabase) Create(ctx context.Context, scope schema.Scope, fields map[string]interface{}) (string, error) {
	id := uuid.New().String()
	return id, m.Put(ctx, scope, id, fields)
}

// Put stores a document under a caller chosen id, replacing any previous one
func (m *MemoryDatabase) Put(ctx context.Context, scope schema.Scope, id string, fields map[string]interface{}) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	path := scope.Path()
	if m.collections[path] == nil {
		m.collections[path] = map[string]*memoryDocument{}
	}
	m.seq++
	m.collections[path][id] = &memoryDocument{
		seq:    m.seq,
		fields: schema.ResolveServerTimestamps(fields, m.now().UTC()),
	}
	m.notifyLocked(path)
	return nil
}

func (m *MemoryDatabase) Update(ctx context.Context, scope schema.Scope, id string, fields map[string]interface{}) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	path := scope.Path()
	doc, ok := m.collections[path][id]
	if !ok {
		return common.NewError(common.CodeNotFound, "document not found", errors.New(path+"/"+id))
	}
	merged := copyFields(doc.fields)
	for k, v := range schema.ResolveServerTimestamps(fields, m.now().UTC()) {
		merged[k] = v
	}
	doc.fields = merged
	m.notifyLocked(path)
	return nil
}

func (m *MemoryDatabase) Delete(ctx context.Context, scope schema.Scope, id string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	path := scope.Path()
	if _, ok := m.collections[path][id]; !ok {
		return nil
	}
	delete(m.collections[path], id)
	m.notifyLocked(path)
	return nil
}

func copyFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
