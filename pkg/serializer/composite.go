package serializer

import (
	"errors"
	"reflect"

	"github.com/morezero/nexus-handler/pkg/nexus"
)

// Candidate is a serializer that may decline values it does not handle.
type Candidate interface {
	nexus.Serializer
	CanSerialize(v any) bool
	CanDeserialize(c *nexus.Content, t reflect.Type) bool
}

// Composite delegates to the first candidate that accepts the value.
type Composite struct {
	candidates []Candidate
}

// NewComposite returns a Composite that tries candidates in order.
func NewComposite(candidates ...Candidate) *Composite {
	return &Composite{candidates: candidates}
}

// Default handles raw bytes as pass-through and everything else as JSON.
func Default() *Composite {
	return NewComposite(Bytes{}, JSON{})
}

// errNoCandidate is only reachable with a custom candidate list. JSON accepts
// every value, so Default never returns it.
var errNoCandidate = errors.New("no serializer candidate accepts the value")

func (s *Composite) Serialize(v any) (*nexus.Content, error) {
	if nexus.IsVoidValue(v) {
		return &nexus.Content{Data: []byte{}}, nil
	}
	for _, c := range s.candidates {
		if c.CanSerialize(v) {
			return c.Serialize(v)
		}
	}
	return nil, errNoCandidate
}

func (s *Composite) Deserialize(content *nexus.Content, t reflect.Type) (any, error) {
	if nexus.IsVoidType(t) {
		return nexus.NoValue{}, nil
	}
	for _, c := range s.candidates {
		if c.CanDeserialize(content, t) {
			return c.Deserialize(content, t)
		}
	}
	return nil, errNoCandidate
}
