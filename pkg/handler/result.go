package handler

// OperationStartResult is either a synchronous value or an asynchronous
// operation token.
type OperationStartResult[T any] struct {
	value T
	token string
	async bool
}

// NewSyncResult returns a result that completed synchronously with v.
func NewSyncResult[T any](v T) *OperationStartResult[T] {
	return &OperationStartResult[T]{value: v}
}

// NewAsyncResult returns a result for an operation that continues
// asynchronously under token.
func NewAsyncResult[T any](token string) *OperationStartResult[T] {
	return &OperationStartResult[T]{token: token, async: true}
}

// IsSync is true iff no async token is present, regardless of the value.
func (r *OperationStartResult[T]) IsSync() bool {
	return !r.async
}

// SyncValue returns the synchronous value. It is the zero value for async results.
func (r *OperationStartResult[T]) SyncValue() T {
	return r.value
}

// AsyncToken returns the operation token. It is empty for sync results.
func (r *OperationStartResult[T]) AsyncToken() string {
	return r.token
}

// OperationResult is the outcome of a successful FetchOperationResult call:
// either serialized content or the still-running condition.
type OperationResult struct {
	content      *HandlerContent
	stillRunning bool
}

// StillRunning reports that the operation has not completed yet. Content is
// nil in that case.
func (r *OperationResult) StillRunning() bool {
	return r.stillRunning
}

// Content returns the serialized result.
func (r *OperationResult) Content() *HandlerContent {
	return r.content
}
