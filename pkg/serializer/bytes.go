package serializer

import (
	"fmt"
	"reflect"

	"github.com/morezero/nexus-handler/pkg/nexus"
)

const ContentTypeBytes = "application/octet-stream"

var bytesType = reflect.TypeOf([]byte(nil))

// Bytes passes pre-encoded payloads through unchanged. It handles []byte
// values and NoValue only.
type Bytes struct{}

func (Bytes) CanSerialize(v any) bool {
	switch v.(type) {
	case []byte, *[]byte:
		return true
	}
	return false
}

func (Bytes) CanDeserialize(c *nexus.Content, t reflect.Type) bool {
	if t != bytesType {
		return false
	}
	return c == nil || c.Header.Get(HeaderType) != ContentTypeJSON
}

func (Bytes) Serialize(v any) (*nexus.Content, error) {
	switch b := v.(type) {
	case []byte:
		return &nexus.Content{Data: b, Header: nexus.Header{HeaderType: ContentTypeBytes}}, nil
	case *[]byte:
		return &nexus.Content{Data: *b, Header: nexus.Header{HeaderType: ContentTypeBytes}}, nil
	}
	if nexus.IsVoidValue(v) {
		return &nexus.Content{Data: []byte{}}, nil
	}
	return nil, fmt.Errorf("bytes serializer cannot encode %T", v)
}

func (Bytes) Deserialize(c *nexus.Content, t reflect.Type) (any, error) {
	if nexus.IsVoidType(t) {
		return nexus.NoValue{}, nil
	}
	if t != bytesType {
		return nil, fmt.Errorf("bytes serializer cannot decode into %v", t)
	}
	if c == nil {
		return []byte{}, nil
	}
	return c.Data, nil
}
