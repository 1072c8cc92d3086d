package handler

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/morezero/nexus-handler/pkg/nexus"
)

// ServiceHandlerInstance pairs a service definition with exactly one
// operation handler per defined operation.
type ServiceHandlerInstance struct {
	Definition        *nexus.ServiceDefinition
	OperationHandlers map[string]GenericOperationHandler
}

// NewServiceHandlerInstance checks that handlers has exactly the
// definition's operation names.
func NewServiceHandlerInstance(def *nexus.ServiceDefinition, handlers map[string]GenericOperationHandler) (*ServiceHandlerInstance, error) {
	if def == nil {
		return nil, errors.New("missing service definition")
	}
	var missing, extra []string
	for name := range def.Operations {
		if _, ok := handlers[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range handlers {
		if _, ok := def.Operations[name]; !ok {
			extra = append(extra, name)
		}
	}
	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("missing handlers for defined operations: %s", quoteNames(missing)))
	}
	if len(extra) > 0 {
		errs = append(errs, fmt.Errorf("extra handlers without defined operations: %s", quoteNames(extra)))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	copied := make(map[string]GenericOperationHandler, len(handlers))
	for name, h := range handlers {
		if h == nil {
			return nil, fmt.Errorf("operation handler for %s was nil", name)
		}
		copied[name] = h
	}
	return &ServiceHandlerInstance{Definition: def, OperationHandlers: copied}, nil
}

func quoteNames(names []string) string {
	sort.Strings(names)
	return "'" + strings.Join(names, "', '") + "'"
}

// OperationProvider is a factory for one operation handler, declared for a
// member of the service contract.
type OperationProvider struct {
	member     string
	inputType  reflect.Type
	outputType reflect.Type
	factory    func() (GenericOperationHandler, error)
}

// Provide declares a factory for the operation matching member. The factory
// runs once, when the ServiceHandlerBuilder builds.
func Provide[I, O any](member string, factory func() (OperationHandler[I, O], error)) OperationProvider {
	p := OperationProvider{
		member:     member,
		inputType:  reflect.TypeFor[I](),
		outputType: reflect.TypeFor[O](),
	}
	if factory != nil {
		p.factory = func() (GenericOperationHandler, error) {
			h, err := factory()
			if err != nil {
				return nil, err
			}
			if isNilHandler(h) {
				return nil, errors.New("operation handler was nil")
			}
			return WrapAsGenericHandler(h), nil
		}
	}
	return p
}

// ProvideHandler declares an already constructed handler for member.
func ProvideHandler[I, O any](member string, h OperationHandler[I, O]) OperationProvider {
	return Provide(member, func() (OperationHandler[I, O], error) { return h, nil })
}

func isNilHandler(h any) bool {
	if h == nil {
		return true
	}
	v := reflect.ValueOf(h)
	return nillable(v.Type()) && v.IsNil()
}

// ServiceHandlerBuilder binds operation providers to a service definition.
type ServiceHandlerBuilder struct {
	definition *nexus.ServiceDefinition
	providers  []OperationProvider
}

// NewServiceHandlerBuilder starts binding handlers for def.
func NewServiceHandlerBuilder(def *nexus.ServiceDefinition) *ServiceHandlerBuilder {
	return &ServiceHandlerBuilder{definition: def}
}

// Operation adds providers.
func (b *ServiceHandlerBuilder) Operation(providers ...OperationProvider) *ServiceHandlerBuilder {
	b.providers = append(b.providers, providers...)
	return b
}

// Build resolves every provider against the definition, invokes the
// factories and returns the bound instance. Provider failures are reported
// together; a failing factory's error is kept in the chain for errors.Is.
func (b *ServiceHandlerBuilder) Build() (*ServiceHandlerInstance, error) {
	if b.definition == nil {
		return nil, errors.New("missing service definition")
	}
	handlers := make(map[string]GenericOperationHandler, len(b.providers))
	var errs []error
	for _, p := range b.providers {
		if err := b.bind(p, handlers); err != nil {
			errs = append(errs, fmt.Errorf("failed obtaining operation handler from %s: %w", p.member, err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return NewServiceHandlerInstance(b.definition, handlers)
}

func (b *ServiceHandlerBuilder) bind(p OperationProvider, handlers map[string]GenericOperationHandler) error {
	if p.factory == nil {
		return errors.New("missing factory")
	}
	op := b.lookup(p.member)
	if op == nil {
		return errors.New("no matching operation declaration on the service")
	}
	if nexus.NormalizeType(p.inputType) != nexus.NormalizeType(op.InputType) ||
		nexus.NormalizeType(p.outputType) != nexus.NormalizeType(op.OutputType) {
		return fmt.Errorf("expected handler of type OperationHandler[%s, %s], got OperationHandler[%s, %s]",
			shapeName(op.InputType), shapeName(op.OutputType), shapeName(p.inputType), shapeName(p.outputType))
	}
	if _, ok := handlers[op.Name]; ok {
		return fmt.Errorf("duplicate operation handler named %s", op.Name)
	}
	h, err := p.factory()
	if err != nil {
		return err
	}
	handlers[op.Name] = h
	return nil
}

// lookup matches by operation name first, then by declaring member.
func (b *ServiceHandlerBuilder) lookup(member string) *nexus.OperationDefinition {
	if op, ok := b.definition.Operation(member); ok {
		return op
	}
	for _, name := range b.definition.OperationNames() {
		if op := b.definition.Operations[name]; op.Member == member {
			return op
		}
	}
	return nil
}

func shapeName(t reflect.Type) string {
	return nexus.NormalizeType(t).String()
}
