package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/SbTchR/TimelineGenerator/internal/typeid"
)

// ErrMalformed wraps every parse failure of a persisted document.
var ErrMalformed = errors.New("malformed document")

// Load parses a saved document. Keys present in data override the defaults;
// items missing newer fields get their item defaults and items without an id
// get a fresh one. The returned document is normalised. On error the caller
// keeps whatever document it already had.
func Load(data []byte) (*Document, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: top level must be an object", ErrMalformed)
	}
	doc := Defaults()
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for i := range doc.Events {
		if doc.Events[i].ID == "" {
			doc.Events[i].ID = typeid.NewEventID()
		}
	}
	for i := range doc.Periods {
		if doc.Periods[i].ID == "" {
			doc.Periods[i].ID = typeid.NewPeriodID()
		}
	}
	doc.Normalize()
	return &doc, nil
}

// LoadYAML accepts the same shape as Load written as YAML.
func LoadYAML(data []byte) (*Document, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, ok := raw.(map[string]any); !ok {
		return nil, fmt.Errorf("%w: top level must be a mapping", ErrMalformed)
	}
	js, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Load(js)
}

// Marshal writes the document in the saved-file format.
func Marshal(d *Document) ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return data, nil
}
