package scraper

import "encoding/json"

// Payload is an open-ended bag of extracted fields attached to a listing
// record. Values stay within JSON-friendly kinds (string, number, bool,
// list of strings) so the payload always serializes cleanly.
type Payload map[string]any

// NewPayload creates an empty payload
func NewPayload() Payload {
	return make(Payload)
}

// SetString stores a string value, skipping empty strings
func (p Payload) SetString(key, value string) {
	if value == "" {
		return
	}
	p[key] = value
}

// SetInt stores an integer value
func (p Payload) SetInt(key string, value int64) {
	p[key] = value
}

// SetFloat stores a float value
func (p Payload) SetFloat(key string, value float64) {
	p[key] = value
}

// SetBool stores a boolean value
func (p Payload) SetBool(key string, value bool) {
	p[key] = value
}

// SetStrings stores a list of strings, skipping empty lists
func (p Payload) SetStrings(key string, values []string) {
	if len(values) == 0 {
		return
	}
	p[key] = values
}

// JSON serializes the payload
func (p Payload) JSON() ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}
