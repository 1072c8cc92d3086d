package greeter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/morezero/nexus-handler/pkg/db"
	"github.com/morezero/nexus-handler/pkg/nexus"
)

const storeLogPrefix = "greeter:store"

// Store persists asynchronous greeting operations. *db.Repository satisfies it.
type Store interface {
	CreateOperation(ctx context.Context, params db.CreateOperationParams) (*db.OperationRecord, error)
	GetOperation(ctx context.Context, token string) (*db.OperationRecord, error)
	CompleteOperation(ctx context.Context, token string, state nexus.OperationState, result []byte, failure string) (*db.OperationRecord, error)
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

var _ Store = (*db.Repository)(nil)

type requestKey struct {
	service, operation, requestID string
}

// MemoryStore is a process-local Store. Records are lost on restart.
type MemoryStore struct {
	mu        sync.Mutex
	byToken   map[string]*db.OperationRecord
	byRequest map[requestKey]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byToken:   make(map[string]*db.OperationRecord),
		byRequest: make(map[requestKey]string),
	}
}

func (m *MemoryStore) CreateOperation(_ context.Context, params db.CreateOperationParams) (*db.OperationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := requestKey{params.Service, params.Operation, params.RequestID}
	if token, ok := m.byRequest[key]; ok && params.RequestID != "" {
		slog.Info(fmt.Sprintf("%s - Duplicate request id %s, returning operation %s", storeLogPrefix, params.RequestID, token))
		return copyRecord(m.byToken[token]), nil
	}
	if _, ok := m.byToken[params.Token]; ok {
		return nil, fmt.Errorf("%s - token %s already in use", storeLogPrefix, params.Token)
	}

	now := time.Now().UTC()
	rec := &db.OperationRecord{
		Token:         params.Token,
		Service:       params.Service,
		Operation:     params.Operation,
		RequestID:     params.RequestID,
		State:         nexus.OperationStateRunning,
		Input:         append([]byte(nil), params.Input...),
		CompleteAfter: params.CompleteAfter.UTC(),
		Created:       now,
		Modified:      now,
	}
	m.byToken[rec.Token] = rec
	if params.RequestID != "" {
		m.byRequest[key] = rec.Token
	}
	return copyRecord(rec), nil
}

func (m *MemoryStore) GetOperation(_ context.Context, token string) (*db.OperationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byToken[token]
	if !ok {
		return nil, db.ErrOperationNotFound
	}
	return copyRecord(rec), nil
}

func (m *MemoryStore) CompleteOperation(_ context.Context, token string, state nexus.OperationState, result []byte, failure string) (*db.OperationRecord, error) {
	if !state.Terminal() {
		return nil, fmt.Errorf("%s - cannot complete operation %s with state %s", storeLogPrefix, token, state)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byToken[token]
	if !ok {
		return nil, db.ErrOperationNotFound
	}
	if rec.State == nexus.OperationStateRunning {
		rec.State = state
		rec.Result = append([]byte(nil), result...)
		rec.Failure = failure
		rec.Modified = time.Now().UTC()
	}
	return copyRecord(rec), nil
}

func (m *MemoryStore) DeleteCompletedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for token, rec := range m.byToken {
		if rec.State.Terminal() && rec.Modified.Before(cutoff) {
			delete(m.byToken, token)
			delete(m.byRequest, requestKey{rec.Service, rec.Operation, rec.RequestID})
			n++
		}
	}
	return n, nil
}

func copyRecord(rec *db.OperationRecord) *db.OperationRecord {
	out := *rec
	out.Input = append([]byte(nil), rec.Input...)
	if rec.Result != nil {
		out.Result = append([]byte(nil), rec.Result...)
	}
	return &out
}
