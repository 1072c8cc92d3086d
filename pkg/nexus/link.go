package nexus

import "net/url"

// Link associates a caller or handler with a related resource, e.g. the
// workflow that started an operation.
type Link struct {
	URL  *url.URL
	Type string
}
