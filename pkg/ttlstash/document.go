package ttlstash

import (
	"encoding/json"
	"maps"
	"slices"
)

// document is the mirror of the payload stored under a namespace.
type document struct {
	Values map[string]json.RawMessage `json:"values"`
	TTL    map[string]string          `json:"TTL"`
}

func newDocument() document {
	return document{
		Values: make(map[string]json.RawMessage),
		TTL:    make(map[string]string),
	}
}

// parseDocument decodes a payload. Anything that is not a JSON object yields
// an empty document; a malformed section yields an empty section.
func parseDocument(payload string) document {
	doc := newDocument()

	var root map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &root); err != nil || root == nil {
		return doc
	}

	var values map[string]json.RawMessage
	if err := json.Unmarshal(root["values"], &values); err == nil && values != nil {
		doc.Values = values
	}

	var ttl map[string]json.RawMessage
	if err := json.Unmarshal(root["TTL"], &ttl); err == nil {
		for k, raw := range ttl {
			if v, ok := expiryText(raw); ok {
				doc.TTL[k] = v
			}
		}
	}

	return doc
}

// expiryText accepts an expiry written as a JSON string or a bare number.
func expiryText(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

func (d document) encode() (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d document) keys() []string {
	return slices.Sorted(maps.Keys(d.Values))
}

// encodeValue clones v into its JSON form. Values that JSON cannot represent
// (channels, funcs, NaN, cycles) are stored as null.
func encodeValue(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null"), err
	}
	return json.RawMessage(b), nil
}

// decodeValue returns a fresh copy of a stored value using the generic JSON
// mapping (objects as map[string]any, numbers as float64).
func decodeValue(raw json.RawMessage) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
