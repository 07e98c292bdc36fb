package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedBody is returned when a request body cannot be decoded into a
// message envelope sequence. The transport maps it to a parse error envelope
// rather than failing the connection.
var ErrMalformedBody = errors.New("malformed message body")

// wrapperKeys are connector-specific envelope keys used by gateway
// intermediaries: a batch-of-requests key and a nested-body key. Unwrapping
// happens before any envelope classification.
var wrapperKeys = []string{"requests", "body"}

// maxUnwrapDepth bounds recursion through string re-encoding and wrapper
// unwrapping so a pathological body cannot loop.
const maxUnwrapDepth = 4

// Normalize turns a raw HTTP body into a flat ordered sequence of message
// envelopes. The body may be a JSON object (one envelope), a JSON array
// (a batch, order preserved), or a JSON string containing either of those
// (double-encoded connector bodies), possibly wrapped in a known connector
// envelope key. batch reports whether the caller sent a sequence; an empty
// sequence is valid and yields no envelopes. Pure function.
func Normalize(raw []byte) (envelopes []json.RawMessage, batch bool, err error) {
	return normalize(raw, 0)
}

func normalize(raw []byte, depth int) ([]json.RawMessage, bool, error) {
	if depth >= maxUnwrapDepth {
		return nil, false, fmt.Errorf("%w: wrapper nesting too deep", ErrMalformedBody)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, false, fmt.Errorf("%w: empty body", ErrMalformedBody)
	}

	switch raw[0] {
	case '"':
		// A JSON-encoded string carrying structured data; parse the contents.
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
		return normalize([]byte(inner), depth+1)

	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
		return elems, true, nil

	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
		for _, key := range wrapperKeys {
			if inner, ok := obj[key]; ok {
				return normalize(inner, depth+1)
			}
		}
		return []json.RawMessage{raw}, false, nil

	default:
		return nil, false, fmt.Errorf("%w: body must be an object, array, or encoded string", ErrMalformedBody)
	}
}

// DecodeEnvelope parses one normalized element into a Request envelope. A nil
// error does not imply the envelope names a known method; that is the
// dispatcher's concern. Elements that are not JSON objects fail here.
func DecodeEnvelope(raw json.RawMessage) (*Request, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: envelope must be an object", ErrMalformedBody)
	}
	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return &req, nil
}
