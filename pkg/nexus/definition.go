// Package nexus holds the transport-independent model of Nexus services:
// service and operation definitions, operation state and outcomes, links,
// headers and the serializer contract.
package nexus

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
)

// OperationDefinition describes a single named operation of a service.
// A nil InputType or OutputType means the operation takes or returns nothing.
type OperationDefinition struct {
	Name       string
	InputType  reflect.Type
	OutputType reflect.Type
	// Member is the declaring member the operation was derived from. It is
	// informational and does not take part in Equal.
	Member string
}

// NewOperationDefinition creates an OperationDefinition. Use reflect.TypeFor
// for in and out, or nil for no value.
func NewOperationDefinition(name string, in, out reflect.Type) *OperationDefinition {
	return &OperationDefinition{Name: name, InputType: in, OutputType: out, Member: name}
}

// Equal reports whether both definitions have the same name and the same
// input/output shapes after void normalization.
func (d *OperationDefinition) Equal(other *OperationDefinition) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.Name == other.Name &&
		NormalizeType(d.InputType) == NormalizeType(other.InputType) &&
		NormalizeType(d.OutputType) == NormalizeType(other.OutputType)
}

func (d *OperationDefinition) String() string {
	return fmt.Sprintf("%s(%s) %s", d.Name, typeName(d.InputType), typeName(d.OutputType))
}

// ServiceDefinition is the immutable description of a service and its
// operations keyed by operation name.
type ServiceDefinition struct {
	Name       string
	Operations map[string]*OperationDefinition
}

// NewServiceDefinition creates a ServiceDefinition from a list of
// operations. Names must be unique and at least one operation is required.
func NewServiceDefinition(name string, ops ...*OperationDefinition) (*ServiceDefinition, error) {
	if name == "" {
		return nil, errors.New("service must have a name")
	}
	if len(ops) == 0 {
		return nil, errors.New("no operations found on service")
	}
	operations := make(map[string]*OperationDefinition, len(ops))
	for _, op := range ops {
		if op == nil || op.Name == "" {
			return nil, fmt.Errorf("service %s has an operation without a name", name)
		}
		if _, ok := operations[op.Name]; ok {
			return nil, fmt.Errorf("service %s has duplicate operation %s", name, op.Name)
		}
		operations[op.Name] = op
	}
	return &ServiceDefinition{Name: name, Operations: operations}, nil
}

// Operation returns the named operation.
func (s *ServiceDefinition) Operation(name string) (*OperationDefinition, bool) {
	op, ok := s.Operations[name]
	return op, ok
}

// OperationNames returns the sorted operation names.
func (s *ServiceDefinition) OperationNames() []string {
	names := make([]string, 0, len(s.Operations))
	for name := range s.Operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func typeName(t reflect.Type) string {
	if IsVoidType(t) {
		return NoValueType.Name()
	}
	return t.String()
}
