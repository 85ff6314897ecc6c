package usecase

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/mdblp/health-tracker/schema"
)

type MockDownloader struct {
	mock.Mock
}

func (m *MockDownloader) Download(ctx context.Context, content []byte, filename string, mimeType string) error {
	args := m.Called(ctx, content, filename, mimeType)
	return args.Error(0)
}

// MockDocumentDatabase records writes with testify and hands out
// subscription channels owned by the test
type MockDocumentDatabase struct {
	mock.Mock
	mu     sync.Mutex
	events []chan SnapshotEvent
}

func (m *MockDocumentDatabase) Subscribe(ctx context.Context, scope schema.Scope, order schema.Order) (<-chan SnapshotEvent, error) {
	args := m.Called(scope, order)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	ch := make(chan SnapshotEvent, 8)
	m.mu.Lock()
	m.events = append(m.events, ch)
	m.mu.Unlock()
	return ch, nil
}

// Events returns the channel of the i-th subscription
func (m *MockDocumentDatabase) Events(i int) chan SnapshotEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[i]
}

func (m *MockDocumentDatabase) QueryOnce(ctx context.Context, scope schema.Scope, order schema.Order) ([]schema.Document, error) {
	args := m.Called(scope, order)
	docs, _ := args.Get(0).([]schema.Document)
	return docs, args.Error(1)
}

func (m *MockDocumentDatabase) Create(ctx context.Context, scope schema.Scope, fields map[string]interface{}) (string, error) {
	args := m.Called(scope, fields)
	return args.String(0), args.Error(1)
}

func (m *MockDocumentDatabase) Update(ctx context.Context, scope schema.Scope, id string, fields map[string]interface{}) error {
	args := m.Called(scope, id, fields)
	return args.Error(0)
}

func (m *MockDocumentDatabase) Delete(ctx context.Context, scope schema.Scope, id string) error {
	args := m.Called(scope, id)
	return args.Error(0)
}

func (m *MockDocumentDatabase) Ping(ctx context.Context) error {
	return nil
}

// blockingCreator holds every Create until release is closed
type blockingCreator struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
	err     error
}

func newBlockingCreator() *blockingCreator {
	return &blockingCreator{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (b *blockingCreator) Create(ctx context.Context, metric schema.HealthMetric) (string, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	b.started <- struct{}{}
	<-b.release
	if b.err != nil {
		return "", b.err
	}
	return "new-id", nil
}

func (b *blockingCreator) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}
