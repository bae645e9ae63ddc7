// Package decoder turns a raw transport frame into the key/value map that
// internal/record.FromDecoded consumes. It is the one place exceptional
// decode failures become an error return instead of a panic or unwind, per
// the spec's guidance that the hot path must not rely on exceptional
// control flow.
package decoder

import "encoding/json"

// DecodeFrame parses one JSON object frame into a generic field map. It does
// not interpret the fields — that is internal/record's job — so the decoder
// has no notion of "ticker" versus any other event type.
func DecodeFrame(raw []byte) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
