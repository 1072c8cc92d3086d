package nexus

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		name string
		in   reflect.Type
		want reflect.Type
	}{
		{"nil", nil, NoValueType},
		{"empty struct", reflect.TypeOf(struct{}{}), NoValueType},
		{"no value", NoValueType, NoValueType},
		{"string", reflect.TypeFor[string](), reflect.TypeFor[string]()},
		{"non-empty struct is a real type", reflect.TypeFor[struct{ _ int }](), reflect.TypeFor[struct{ _ int }]()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeType(tt.in))
		})
	}
}

func TestIsVoidValue(t *testing.T) {
	assert.True(t, IsVoidValue(nil))
	assert.True(t, IsVoidValue(NoValue{}))
	assert.True(t, IsVoidValue(struct{}{}))
	assert.False(t, IsVoidValue(""))
	assert.False(t, IsVoidValue(0))
}

func TestHeader_CaseInsensitive(t *testing.T) {
	h := NewHeader(map[string]string{"Content-Type": "application/json"})
	assert.Equal(t, "application/json", h.Get("content-type"))
	assert.Equal(t, "application/json", h.Get("CONTENT-TYPE"))

	h.Set("X-Request-ID", "abc")
	assert.Equal(t, "abc", h["x-request-id"])

	var empty Header
	assert.Equal(t, "", empty.Get("anything"))
	assert.Nil(t, NewHeader(nil))
}

func TestOperationState(t *testing.T) {
	tests := []struct {
		state    OperationState
		name     string
		terminal bool
	}{
		{OperationStateRunning, "running", false},
		{OperationStateSucceeded, "succeeded", true},
		{OperationStateFailed, "failed", true},
		{OperationStateCanceled, "canceled", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.state.String())
			assert.Equal(t, tt.terminal, tt.state.Terminal())
			parsed, ok := ParseOperationState(tt.name)
			assert.True(t, ok)
			assert.Equal(t, tt.state, parsed)
		})
	}

	_, ok := ParseOperationState("paused")
	assert.False(t, ok)
	assert.Equal(t, "OperationState(42)", OperationState(42).String())
}

func TestOperationError(t *testing.T) {
	cause := errors.New("disk full")

	failed := NewFailedOperationError("could not write", cause)
	assert.Equal(t, OperationStateFailed, failed.State)
	assert.Equal(t, "operation failed: could not write", failed.Error())
	assert.ErrorIs(t, failed, cause)

	canceled := NewCanceledOperationError("", cause)
	assert.Equal(t, OperationStateCanceled, canceled.State)
	assert.Equal(t, "operation canceled: disk full", canceled.Error())

	var target *OperationError
	wrapped := errors.Join(errors.New("context"), canceled)
	assert.ErrorAs(t, wrapped, &target)
	assert.Equal(t, OperationStateCanceled, target.State)

	assert.False(t, errors.Is(failed, ErrOperationStillRunning))
}
