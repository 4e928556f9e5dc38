package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Samples is a range sample vector. JSON numbers cannot carry NaN or
// infinities, so non-finite samples travel as the strings "nan", "inf" and
// "-inf". A null element decodes as NaN.
type Samples []float64

// MarshalJSON implements json.Marshaler.
func (s Samples) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		switch {
		case math.IsNaN(v):
			buf.WriteString(`"nan"`)
		case math.IsInf(v, 1):
			buf.WriteString(`"inf"`)
		case math.IsInf(v, -1):
			buf.WriteString(`"-inf"`)
		default:
			buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Samples) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = nil
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode samples: %w", err)
	}
	out := make(Samples, len(raw))
	for i, elem := range raw {
		v, err := decodeSample(elem)
		if err != nil {
			return fmt.Errorf("sample[%d]: %w", i, err)
		}
		out[i] = v
	}
	*s = out
	return nil
}

func decodeSample(elem json.RawMessage) (float64, error) {
	elem = bytes.TrimSpace(elem)
	if bytes.Equal(elem, []byte("null")) {
		return math.NaN(), nil
	}
	if len(elem) > 0 && elem[0] == '"' {
		var label string
		if err := json.Unmarshal(elem, &label); err != nil {
			return 0, err
		}
		switch label {
		case "nan", "NaN":
			return math.NaN(), nil
		case "inf", "+inf", "Infinity":
			return math.Inf(1), nil
		case "-inf", "-Infinity":
			return math.Inf(-1), nil
		default:
			return 0, fmt.Errorf("unsupported sample label %q", label)
		}
	}
	var v float64
	if err := json.Unmarshal(elem, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// Finite returns the number of samples that are neither NaN nor infinite.
func (s Samples) Finite() int {
	n := 0
	for _, v := range s {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			n++
		}
	}
	return n
}
