package commsutil

import (
	"encoding/json"
	"errors"
)

// ErrEmptyPayload is returned when decoding a message without a body.
var ErrEmptyPayload = errors.New("empty payload")

// EncodePayload serializes a message envelope to JSON bytes.
func EncodePayload(v any) ([]byte, error) {
	return json.Marshal(v)
}

// DecodePayload deserializes a JSON message envelope into v. Unknown fields
// are ignored so newer clients can talk to older servers.
func DecodePayload(data []byte, v any) error {
	if len(data) == 0 {
		return ErrEmptyPayload
	}
	return json.Unmarshal(data, v)
}
