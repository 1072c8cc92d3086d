// Package serializer provides the byte codecs the dispatch engine uses at the
// content boundary.
package serializer

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/morezero/nexus-handler/pkg/nexus"
)

const (
	HeaderType      = "type"
	ContentTypeJSON = "application/json"
)

// ErrDecode marks payloads that could not be decoded into the requested
// type. Bindings report it to callers as a bad request.
var ErrDecode = errors.New("malformed payload")

// JSON encodes values with encoding/json. NoValue is zero bytes in both
// directions; empty data decodes to the zero value of the requested type.
type JSON struct{}

func (JSON) CanSerialize(any) bool { return true }
func (JSON) CanDeserialize(*nexus.Content, reflect.Type) bool { return true }

func (JSON) Serialize(v any) (*nexus.Content, error) {
	if nexus.IsVoidValue(v) {
		return &nexus.Content{Data: []byte{}}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json serialize %T: %w", v, err)
	}
	return &nexus.Content{Data: data, Header: nexus.Header{HeaderType: ContentTypeJSON}}, nil
}

func (JSON) Deserialize(c *nexus.Content, t reflect.Type) (any, error) {
	if nexus.IsVoidType(t) {
		return nexus.NoValue{}, nil
	}
	ptr := reflect.New(t)
	if c == nil || len(c.Data) == 0 {
		return ptr.Elem().Interface(), nil
	}
	if err := json.Unmarshal(c.Data, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("json deserialize into %v: %w: %w", t, ErrDecode, err)
	}
	return ptr.Elem().Interface(), nil
}
