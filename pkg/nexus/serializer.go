package nexus

import "reflect"

// Content is raw serialized bytes plus optional headers.
type Content struct {
	Data   []byte
	Header Header
}

// Serializer converts between Go values and Content.
//
// Both methods are called even when there is nothing to transfer: Serialize
// receives NoValue{} for a void result and Deserialize receives NoValueType
// for a void input, so implementations must handle those deterministically.
type Serializer interface {
	Serialize(v any) (*Content, error)
	Deserialize(c *Content, t reflect.Type) (any, error)
}
