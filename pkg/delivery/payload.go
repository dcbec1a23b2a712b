package delivery

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Payload is a flat notification payload: the event name plus event-specific
// string-or-null fields.
type Payload struct {
	Event  string
	Fields map[string]*string
}

// MarshalCanonical serializes the payload with keys in lexicographic order.
// The signature is computed over these bytes and the receiver recomputes it
// over the request body, so the encoding must be byte-for-byte reproducible.
func (p Payload) MarshalCanonical() []byte {
	keys := make([]string, 0, len(p.Fields)+1)
	keys = append(keys, "event")
	for k := range p.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONString(&buf, k)
		buf.WriteByte(':')
		if k == "event" {
			writeJSONString(&buf, p.Event)
			continue
		}
		if v := p.Fields[k]; v != nil {
			writeJSONString(&buf, *v)
		} else {
			buf.WriteString("null")
		}
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func writeJSONString(buf *bytes.Buffer, s string) {
	// json.Marshal of a string cannot fail.
	b, _ := json.Marshal(s)
	buf.Write(b)
}
