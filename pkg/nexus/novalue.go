package nexus

import "reflect"

// NoValue is the canonical representation of an absent input or output.
// Serializers always receive NoValue (or NoValueType) instead of nil when an
// operation declares no input or no output.
type NoValue struct{}

// NoValueType is the reflect.Type of NoValue.
var NoValueType = reflect.TypeOf(NoValue{})

var emptyStructType = reflect.TypeOf(struct{}{})

// IsVoidType reports whether t spells "no value": a nil type, struct{}, or NoValue.
func IsVoidType(t reflect.Type) bool {
	return t == nil || t == emptyStructType || t == NoValueType
}

// NormalizeType maps every void spelling to NoValueType and leaves other types untouched.
func NormalizeType(t reflect.Type) reflect.Type {
	if IsVoidType(t) {
		return NoValueType
	}
	return t
}

// IsVoidValue reports whether v is a value of a void type (including nil).
func IsVoidValue(v any) bool {
	if v == nil {
		return true
	}
	return IsVoidType(reflect.TypeOf(v))
}
