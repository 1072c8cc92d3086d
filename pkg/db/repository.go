package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/nexus-handler/pkg/nexus"
)

const repoLogPrefix = "db:repository"

const operationColumns = `token, service, operation, request_id, state, input, result,
		        failure, complete_after, created, modified`

// Repository provides database access for asynchronous operation records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateOperation inserts a running operation. A second start with the same
// service, operation and request id returns the record created by the first.
// An empty request id is stored as NULL and never deduplicated.
func (r *Repository) CreateOperation(ctx context.Context, params CreateOperationParams) (*OperationRecord, error) {
	slog.Debug(fmt.Sprintf("%s - CreateOperation service=%s operation=%s requestId=%s",
		repoLogPrefix, params.Service, params.Operation, params.RequestID))

	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx,
		`INSERT INTO nexus_operations (token, service, operation, request_id, state, input,
		                               complete_after, created, modified)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		 ON CONFLICT (service, operation, request_id) DO NOTHING
		 RETURNING `+operationColumns,
		params.Token, params.Service, params.Operation, nullIfEmpty(params.RequestID),
		nexus.OperationStateRunning.String(), params.Input, params.CompleteAfter.UTC(), now)

	rec, err := scanOperation(row)
	if err != nil {
		return nil, fmt.Errorf("%s - create operation: %w", repoLogPrefix, err)
	}
	if rec != nil {
		return rec, nil
	}

	slog.Info(fmt.Sprintf("%s - Duplicate request id %s for %s.%s, returning existing operation",
		repoLogPrefix, params.RequestID, params.Service, params.Operation))
	row = r.pool.QueryRow(ctx,
		`SELECT `+operationColumns+`
		 FROM nexus_operations
		 WHERE service = $1 AND operation = $2 AND request_id = $3
		 LIMIT 1`, params.Service, params.Operation, params.RequestID)
	rec, err = scanOperation(row)
	if err != nil {
		return nil, fmt.Errorf("%s - load existing operation: %w", repoLogPrefix, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%s - operation for request id %s vanished", repoLogPrefix, params.RequestID)
	}
	return rec, nil
}

// GetOperation finds an operation by token. Returns ErrOperationNotFound when absent.
func (r *Repository) GetOperation(ctx context.Context, token string) (*OperationRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+operationColumns+`
		 FROM nexus_operations
		 WHERE token = $1
		 LIMIT 1`, token)

	rec, err := scanOperation(row)
	if err != nil {
		return nil, fmt.Errorf("%s - get operation: %w", repoLogPrefix, err)
	}
	if rec == nil {
		return nil, ErrOperationNotFound
	}
	return rec, nil
}

// CompleteOperation moves a running operation to a terminal state and returns
// the current record. Records that are already terminal are left untouched.
func (r *Repository) CompleteOperation(ctx context.Context, token string, state nexus.OperationState, result []byte, failure string) (*OperationRecord, error) {
	if !state.Terminal() {
		return nil, fmt.Errorf("%s - cannot complete operation %s with state %s", repoLogPrefix, token, state)
	}
	slog.Debug(fmt.Sprintf("%s - CompleteOperation token=%s state=%s", repoLogPrefix, token, state))

	tag, err := r.pool.Exec(ctx,
		`UPDATE nexus_operations
		 SET state = $2, result = $3, failure = $4, modified = $5
		 WHERE token = $1 AND state = 'running'`,
		token, state.String(), result, nullIfEmpty(failure), time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%s - complete operation: %w", repoLogPrefix, err)
	}
	if tag.RowsAffected() == 0 {
		slog.Debug(fmt.Sprintf("%s - Operation %s was not running, leaving as is", repoLogPrefix, token))
	}
	return r.GetOperation(ctx, token)
}

// DeleteCompletedBefore removes terminal operations last modified before cutoff.
func (r *Repository) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM nexus_operations WHERE state <> 'running' AND modified < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("%s - delete completed operations: %w", repoLogPrefix, err)
	}
	if n := tag.RowsAffected(); n > 0 {
		slog.Info(fmt.Sprintf("%s - Deleted %d completed operations", repoLogPrefix, n))
	}
	return tag.RowsAffected(), nil
}

func scanOperation(row pgx.Row) (*OperationRecord, error) {
	var (
		rec       OperationRecord
		requestID *string
		state     string
		failure   *string
	)
	err := row.Scan(&rec.Token, &rec.Service, &rec.Operation, &requestID, &state,
		&rec.Input, &rec.Result, &failure, &rec.CompleteAfter, &rec.Created, &rec.Modified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	parsed, ok := nexus.ParseOperationState(state)
	if !ok {
		return nil, fmt.Errorf("unknown operation state %q for token %s", state, rec.Token)
	}
	rec.State = parsed
	if requestID != nil {
		rec.RequestID = *requestID
	}
	if failure != nil {
		rec.Failure = *failure
	}
	return &rec, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
