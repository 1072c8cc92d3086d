package commsutil

import (
	"fmt"
	"strings"
)

// Default COMMS subjects.
const (
	SubjectNexus          = "nexus.v1"
	SubjectOperationEvent = "nexus.events"
)

// SubjectToken makes s safe to use as a single subject token. Dots,
// wildcards and whitespace become underscores.
func SubjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// BuildOperationEventSubject builds the granular operation event subject
// under base, e.g. nexus.events.GreetingService.SayHello.
func BuildOperationEventSubject(base, service, operation string) string {
	return fmt.Sprintf("%s.%s.%s", base, SubjectToken(service), SubjectToken(operation))
}
