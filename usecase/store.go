package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mdblp/health-tracker/common"
	"github.com/mdblp/health-tracker/schema"
)

var ErrStoreClosed = errors.New("store closed")

// RecordStore mirrors one collection of one user through a live subscription.
// Records always reflect the latest snapshot applied before Close; anything
// delivered afterwards is dropped.
type RecordStore[T any] struct {
	logger zerolog.Logger
	db     DocumentDatabase
	scope  schema.Scope
	order  schema.Order
	decode func(schema.Document) (T, error)

	mu      sync.RWMutex
	records []T
	ready   bool
	err     error
	closed  bool

	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
	snapshots chan []T
}

// OpenStore subscribes to scope ordered by order. The subscription lives until
// Close is called or ctx is cancelled.
func OpenStore[T any](ctx context.Context, logger zerolog.Logger, db DocumentDatabase, scope schema.Scope, order schema.Order, decode func(schema.Document) (T, error)) (*RecordStore[T], error) {
	if err := scope.Validate(); err != nil {
		return nil, common.NewError(common.CodeInvalidParams, "invalid store scope", err)
	}
	subCtx, cancel := context.WithCancel(ctx)
	events, err := db.Subscribe(subCtx, scope, order)
	if err != nil {
		cancel()
		return nil, common.NewError(common.CodeRemoteRead, "Could not load your data", err)
	}
	s := &RecordStore[T]{
		logger: logger.With().
			Str("component", "store").
			Str("collection", string(scope.Collection)).
			Str("user", scope.UserID).
			Logger(),
		db:        db,
		scope:     scope,
		order:     order,
		decode:    decode,
		cancel:    cancel,
		done:      make(chan struct{}),
		snapshots: make(chan []T, 1),
	}
	activeSubscriptions.WithLabelValues(string(scope.Collection)).Inc()
	go s.run(subCtx, events, time.Now())
	return s, nil
}

func (s *RecordStore[T]) run(ctx context.Context, events <-chan SnapshotEvent, openedAt time.Time) {
	defer close(s.done)
	defer close(s.snapshots)
	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if first && ev.Err == nil {
				first = false
				snapshotFetchTime.WithLabelValues(string(s.scope.Collection)).Observe(float64(time.Since(openedAt).Milliseconds()))
			}
			s.apply(ev)
		}
	}
}

func (s *RecordStore[T]) apply(ev SnapshotEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		lateSnapshotsDropped.Inc()
		s.logger.Debug().Msg("snapshot received after close, dropped")
		return
	}
	if ev.Err != nil {
		s.err = common.NewError(common.CodeRemoteRead, "Could not load your data", ev.Err)
		s.logger.Error().Err(ev.Err).Msg("subscription read failed")
		s.ready = false
		s.records = nil
		s.publish(nil)
		return
	}
	records := make([]T, 0, len(ev.Documents))
	for _, doc := range ev.Documents {
		rec, err := s.decode(doc)
		if err != nil {
			s.logger.Warn().Err(err).Str("document", doc.ID).Msg("skipping malformed document")
			continue
		}
		records = append(records, rec)
	}
	s.records = records
	s.ready = true
	s.err = nil
	s.publish(records)
}

// publish keeps only the newest snapshot in the channel
func (s *RecordStore[T]) publish(records []T) {
	out := make([]T, len(records))
	copy(out, records)
	select {
	case s.snapshots <- out:
		return
	default:
	}
	select {
	case <-s.snapshots:
	default:
	}
	select {
	case s.snapshots <- out:
	default:
	}
}

// Records returns a copy of the current ordered records
func (s *RecordStore[T]) Records() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, len(s.records))
	copy(out, s.records)
	return out
}

// IsReady is true while the last event applied was a snapshot, false after a read failure
func (s *RecordStore[T]) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Err returns the last read failure, nil after a successful snapshot
func (s *RecordStore[T]) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Snapshots streams every applied snapshot, an empty one after a read failure;
// it is closed when the subscription ends
func (s *RecordStore[T]) Snapshots() <-chan []T {
	return s.snapshots
}

// Done is closed once the subscription goroutine has exited
func (s *RecordStore[T]) Done() <-chan struct{} {
	return s.done
}

func (s *RecordStore[T]) Scope() schema.Scope {
	return s.scope
}

func (s *RecordStore[T]) Order() schema.Order {
	return s.order
}

func (s *RecordStore[T]) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close releases the subscription. Calling it more than once has no effect.
func (s *RecordStore[T]) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.cancel()
		activeSubscriptions.WithLabelValues(string(s.scope.Collection)).Dec()
		s.logger.Debug().Msg("subscription closed")
	})
}

func (s *RecordStore[T]) create(ctx context.Context, fields map[string]interface{}) (string, error) {
	if s.Closed() {
		return "", common.NewError(common.CodeRemoteWrite, "Could not save the record", ErrStoreClosed)
	}
	id, err := s.db.Create(ctx, s.scope, fields)
	storeWrites.WithLabelValues(string(s.scope.Collection), "create", writeResult(err)).Inc()
	if err != nil {
		s.logger.Error().Err(err).Msg("create failed")
		return "", common.NewError(common.CodeRemoteWrite, "Could not save the record", err)
	}
	return id, nil
}

func (s *RecordStore[T]) update(ctx context.Context, id string, fields map[string]interface{}) error {
	if s.Closed() {
		return common.NewError(common.CodeRemoteWrite, "Could not update the record", ErrStoreClosed)
	}
	if id == "" {
		return common.NewError(common.CodeInvalidParams, "missing record id", nil)
	}
	err := s.db.Update(ctx, s.scope, id, fields)
	storeWrites.WithLabelValues(string(s.scope.Collection), "update", writeResult(err)).Inc()
	if err != nil {
		s.logger.Error().Err(err).Str("document", id).Msg("update failed")
		if common.IsCode(err, common.CodeNotFound) {
			return err
		}
		return common.NewError(common.CodeRemoteWrite, "Could not update the record", err)
	}
	return nil
}

func (s *RecordStore[T]) remove(ctx context.Context, id string) error {
	if s.Closed() {
		return common.NewError(common.CodeRemoteWrite, "Could not delete the record", ErrStoreClosed)
	}
	if id == "" {
		return common.NewError(common.CodeInvalidParams, "missing record id", nil)
	}
	err := s.db.Delete(ctx, s.scope, id)
	if err != nil && common.IsCode(err, common.CodeNotFound) {
		err = nil
	}
	storeWrites.WithLabelValues(string(s.scope.Collection), "delete", writeResult(err)).Inc()
	if err != nil {
		s.logger.Error().Err(err).Str("document", id).Msg("delete failed")
		return common.NewError(common.CodeRemoteWrite, "Could not delete the record", err)
	}
	return nil
}
