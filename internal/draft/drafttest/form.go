package drafttest

import (
	"encoding/json"
	"maps"
)

// Form is a minimal form for coordinator tests. Uploading holds local-only
// entries that never reach the wire.
type Form struct {
	Name      string
	Fields    map[string]string
	Uploading []string
}

// NewForm returns a Form with the given name and key/value pairs.
func NewForm(name string, kv ...string) Form {
	f := Form{Name: name, Fields: make(map[string]string)}
	for i := 0; i+1 < len(kv); i += 2 {
		f.Fields[kv[i]] = kv[i+1]
	}
	return f
}

// With returns a copy of f with key set to value.
func (f Form) With(key, value string) Form {
	out := Form{Name: f.Name, Fields: maps.Clone(f.Fields), Uploading: f.Uploading}
	if out.Fields == nil {
		out.Fields = make(map[string]string)
	}
	out.Fields[key] = value
	return out
}

type wireForm struct {
	Name   string            `json:"name"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Converter is a draft.Converter for Form.
type Converter struct{}

func (Converter) ToWire(f Form) ([]byte, error) {
	return json.Marshal(wireForm{Name: f.Name, Fields: f.Fields})
}

func (Converter) FromWire(payload []byte) (Form, error) {
	var w wireForm
	if err := json.Unmarshal(payload, &w); err != nil {
		return Form{}, err
	}
	return Form{Name: w.Name, Fields: w.Fields}, nil
}

func (Converter) Title(f Form) string { return f.Name }
