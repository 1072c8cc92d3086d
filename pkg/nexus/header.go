package nexus

import "strings"

// Header is a case-insensitive string map. Keys are stored lower-cased.
type Header map[string]string

// NewHeader copies m into a Header, lower-casing every key.
// It returns nil for an empty map.
func NewHeader(m map[string]string) Header {
	if len(m) == 0 {
		return nil
	}
	h := make(Header, len(m))
	for k, v := range m {
		h[strings.ToLower(k)] = v
	}
	return h
}

// Get returns the value for key, ignoring case.
func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}
	return h[strings.ToLower(key)]
}

// Set stores value under the lower-cased key.
func (h Header) Set(key, value string) {
	h[strings.ToLower(key)] = value
}
