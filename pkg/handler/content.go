package handler

import (
	"bytes"
	"errors"
	"io"
	"sync/atomic"

	"github.com/morezero/nexus-handler/pkg/nexus"
)

// ErrContentConsumed is returned when HandlerContent is consumed twice.
var ErrContentConsumed = errors.New("handler content already consumed")

type payload struct {
	data   []byte
	stream io.ReadCloser
}

// HandlerContent is an operation input or output payload that can be
// consumed exactly once, either as bytes or as a stream.
type HandlerContent struct {
	Header  nexus.Header
	payload atomic.Pointer[payload]
}

// NewHandlerContent creates content backed by an in-memory byte slice.
func NewHandlerContent(data []byte, header nexus.Header) *HandlerContent {
	c := &HandlerContent{Header: header}
	c.payload.Store(&payload{data: data})
	return c
}

// NewStreamContent creates content backed by a reader. The reader is closed
// when consumed as bytes; a reader taken by ConsumeStream belongs to the caller.
func NewStreamContent(r io.Reader, header nexus.Header) *HandlerContent {
	rc, ok := r.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(r)
	}
	c := &HandlerContent{Header: header}
	c.payload.Store(&payload{stream: rc})
	return c
}

// ConsumeBytes returns the whole payload. Byte-backed content is returned
// without copying.
func (c *HandlerContent) ConsumeBytes() ([]byte, error) {
	p := c.payload.Swap(nil)
	if p == nil {
		return nil, ErrContentConsumed
	}
	if p.stream == nil {
		return p.data, nil
	}
	data, err := io.ReadAll(p.stream)
	if closeErr := p.stream.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ConsumeStream takes the underlying stream. The caller must close it.
func (c *HandlerContent) ConsumeStream() (io.ReadCloser, error) {
	p := c.payload.Swap(nil)
	if p == nil {
		return nil, ErrContentConsumed
	}
	if p.stream == nil {
		return io.NopCloser(bytes.NewReader(p.data)), nil
	}
	return p.stream, nil
}
