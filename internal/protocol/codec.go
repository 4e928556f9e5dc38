package protocol

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"
)

// Encode serializes a message into its wire form.
func Encode(msg any) (json.RawMessage, error) {
	if raw, ok := msg.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, fmt.Errorf("raw message is not valid JSON")
		}
		return raw, nil
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return b, nil
}

// Decode deserializes a wire payload into T.
// Every message on the wire is a JSON object; anything else is rejected.
func Decode[T any](raw json.RawMessage) (T, error) {
	var msg T
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return msg, fmt.Errorf("empty payload")
	}
	if trimmed[0] != '{' {
		return msg, fmt.Errorf("payload is not a JSON object")
	}
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return msg, fmt.Errorf("failed to decode %T: %w", msg, err)
	}
	return msg, nil
}

// Digest returns a content fingerprint of the order, used to correlate log
// lines and journal rows for the same order.
func (o Order) Digest() string {
	b, err := json.Marshal(o)
	if err != nil {
		return ""
	}
	sum := blake3.Sum256(b)
	return "blake3:" + hex.EncodeToString(sum[:])
}

// ObjectCount returns the number of objects across all kits.
func (o Order) ObjectCount() int {
	n := 0
	for _, k := range o.Kits {
		n += len(k.Objects)
	}
	return n
}
