package nexus

import (
	"errors"
	"fmt"
	"reflect"
	"unicode"
	"unicode/utf8"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// OperationDeclaration is one operation as declared on a service contract.
// Registration collaborators that read richer metadata (code generators,
// IDL compilers) fill in the flags; ServiceBuilder rejects declarations that
// are not pure contract members.
type OperationDeclaration struct {
	// Owner is the declaring contract, used in diagnostics.
	Owner string
	// Member is the declared member name. It is the default operation name.
	Member string
	// Name overrides the operation name.
	Name string
	// Signature is a func type with at most one parameter and one result
	// (a trailing error result is permitted and ignored).
	Signature reflect.Type
	Generic   bool
	Static    bool
	HasBody   bool
}

// OperationOption customizes a declaration made through ServiceBuilder.Operation.
type OperationOption func(*OperationDeclaration)

// WithOperationName sets an explicit operation name.
func WithOperationName(name string) OperationOption {
	return func(d *OperationDeclaration) { d.Name = name }
}

// DeclaredOn records the contract that declares the operation.
func DeclaredOn(owner string) OperationOption {
	return func(d *OperationDeclaration) { d.Owner = owner }
}

// ServiceBuilder builds a ServiceDefinition from explicit declarations.
// Every problem is collected and reported together by Build.
type ServiceBuilder struct {
	typeName string
	name     string
	decls    []OperationDeclaration
	includes []*ServiceDefinition
}

// NewServiceBuilder starts a service declared by the contract typeName.
// Unless Named is called the service name is typeName with an interface
// style "I" prefix removed, so "IFooService" becomes "FooService".
func NewServiceBuilder(typeName string) *ServiceBuilder {
	return &ServiceBuilder{typeName: typeName}
}

// Named sets an explicit service name.
func (b *ServiceBuilder) Named(name string) *ServiceBuilder {
	b.name = name
	return b
}

// Operation declares an operation from a func signature, given either as a
// typed nil func such as (func(string) string)(nil) or as a reflect.Type.
func (b *ServiceBuilder) Operation(member string, signature any, opts ...OperationOption) *ServiceBuilder {
	decl := OperationDeclaration{Owner: b.typeName, Member: member}
	switch sig := signature.(type) {
	case reflect.Type:
		decl.Signature = sig
	case nil:
	default:
		decl.Signature = reflect.TypeOf(sig)
	}
	for _, opt := range opts {
		opt(&decl)
	}
	return b.Declare(decl)
}

// Declare adds a raw declaration.
func (b *ServiceBuilder) Declare(decl OperationDeclaration) *ServiceBuilder {
	if decl.Owner == "" {
		decl.Owner = b.typeName
	}
	b.decls = append(b.decls, decl)
	return b
}

// Include composes the operations of another service into this one.
// Operations sharing a name must be identical.
func (b *ServiceBuilder) Include(def *ServiceDefinition) *ServiceBuilder {
	b.includes = append(b.includes, def)
	return b
}

// Build validates all declarations and returns the service definition.
func (b *ServiceBuilder) Build() (*ServiceDefinition, error) {
	name := b.serviceName()
	if name == "" {
		return nil, errors.New("service must have a name")
	}

	operations := make(map[string]*OperationDefinition)
	var errs []error
	add := func(owner, member string, op *OperationDefinition) {
		existing, ok := operations[op.Name]
		if !ok {
			operations[op.Name] = op
			return
		}
		if !existing.Equal(op) {
			errs = append(errs, fmt.Errorf(
				"operation definition on %s on %s mismatches against another operation of the same name/signature in the hierarchy",
				member, owner))
		}
	}

	for _, inc := range b.includes {
		if inc == nil {
			errs = append(errs, errors.New("cannot include a nil service definition"))
			continue
		}
		for _, opName := range inc.OperationNames() {
			op := inc.Operations[opName]
			add(inc.Name, op.Member, op)
		}
	}
	for _, decl := range b.decls {
		op, err := decl.definition()
		if err != nil {
			errs = append(errs, fmt.Errorf("operation definition on %s on %s is invalid: %w", decl.Member, decl.Owner, err))
			continue
		}
		add(decl.Owner, decl.Member, op)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if len(operations) == 0 {
		return nil, errors.New("no operations found on service")
	}
	return &ServiceDefinition{Name: name, Operations: operations}, nil
}

func (b *ServiceBuilder) serviceName() string {
	if b.name != "" {
		return b.name
	}
	name := b.typeName
	if len(name) > 1 && name[0] == 'I' {
		if r, _ := utf8.DecodeRuneInString(name[1:]); unicode.IsUpper(r) {
			name = name[1:]
		}
	}
	return name
}

func (d OperationDeclaration) definition() (*OperationDefinition, error) {
	name := d.Name
	if name == "" {
		name = d.Member
	}
	if name == "" {
		return nil, errors.New("must have a member or operation name")
	}
	sig := d.Signature
	if sig == nil {
		return nil, errors.New("missing signature")
	}
	if sig.Kind() != reflect.Func {
		return nil, fmt.Errorf("signature must be a func type, got %v", sig)
	}
	if sig.NumIn() > 1 {
		return nil, errors.New("can have no more than one parameter")
	}
	if d.Generic {
		return nil, errors.New("cannot be generic")
	}
	if d.Static {
		return nil, errors.New("cannot be static")
	}
	if d.HasBody {
		return nil, errors.New("cannot have implementation")
	}

	numOut := sig.NumOut()
	if numOut > 0 && sig.Out(numOut-1) == errorType {
		numOut--
	}
	if numOut > 1 {
		return nil, errors.New("can have no more than one result")
	}

	var in, out reflect.Type
	if sig.NumIn() == 1 {
		in = sig.In(0)
	}
	if numOut == 1 {
		out = sig.Out(0)
		if out.Kind() == reflect.Chan {
			return nil, errors.New("operation definitions should not be declared as channels")
		}
	}
	return &OperationDefinition{Name: name, InputType: in, OutputType: out, Member: d.Member}, nil
}
