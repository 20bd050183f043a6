package contents

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Notebook is the structured JSON form of a notebook document.
type Notebook map[string]any

// ParseNotebook decodes and validates notebook JSON.
func ParseNotebook(data []byte) (Notebook, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var nb Notebook
	if err := decoder.Decode(&nb); err != nil {
		return nil, fmt.Errorf("%w: unreadable notebook: %v", ErrInvalidContent, err)
	}
	if err := nb.Validate(); err != nil {
		return nil, err
	}
	return nb, nil
}

// Validate checks the top level nbformat structure.
func (nb Notebook) Validate() error {
	if nb == nil {
		return fmt.Errorf("%w: empty notebook", ErrInvalidContent)
	}
	major, ok := nb["nbformat"]
	if !ok {
		return fmt.Errorf("%w: missing nbformat", ErrInvalidContent)
	}
	switch v := major.(type) {
	case json.Number:
		if n, err := v.Int64(); err != nil || n < 4 {
			return fmt.Errorf("%w: unsupported nbformat %v", ErrInvalidContent, v)
		}
	case float64:
		if v < 4 {
			return fmt.Errorf("%w: unsupported nbformat %v", ErrInvalidContent, v)
		}
	case int:
		if v < 4 {
			return fmt.Errorf("%w: unsupported nbformat %v", ErrInvalidContent, v)
		}
	default:
		return fmt.Errorf("%w: nbformat must be a number", ErrInvalidContent)
	}
	if _, ok := nb["cells"].([]any); !ok {
		return fmt.Errorf("%w: cells must be a list", ErrInvalidContent)
	}
	if _, ok := nb["metadata"].(map[string]any); !ok {
		return fmt.Errorf("%w: metadata must be an object", ErrInvalidContent)
	}
	return nil
}

// Marshal serializes the notebook the way nbformat writes it: sorted keys, one space indent, trailing newline.
func (nb Notebook) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", " ")
	if err := encoder.Encode(nb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	return buf.Bytes(), nil
}
