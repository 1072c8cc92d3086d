package db

import (
	"errors"
	"time"

	"github.com/morezero/nexus-handler/pkg/nexus"
)

// ErrOperationNotFound is returned when no record exists for a token.
var ErrOperationNotFound = errors.New("operation not found")

// OperationRecord represents a row in the nexus_operations table.
type OperationRecord struct {
	Token         string               `json:"token"`
	Service       string               `json:"service"`
	Operation     string               `json:"operation"`
	RequestID     string               `json:"request_id"`
	State         nexus.OperationState `json:"state"`
	Input         []byte               `json:"input,omitempty"`
	Result        []byte               `json:"result,omitempty"`
	Failure       string               `json:"failure,omitempty"`
	CompleteAfter time.Time            `json:"complete_after"`
	Created       time.Time            `json:"created"`
	Modified      time.Time            `json:"modified"`
}

// CreateOperationParams holds parameters for CreateOperation.
type CreateOperationParams struct {
	Token         string
	Service       string
	Operation     string
	RequestID     string
	Input         []byte
	CompleteAfter time.Time
}
