package knowledge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the decoder for knowledge and index files.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the decoder from the file extension. Unknown extensions
// are read as JSON, the format the classifier tooling emits.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoadStore reads a knowledge file. An empty path yields an empty store.
func LoadStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return NewStore(nil), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open knowledge file: %w", err)
	}
	defer file.Close()
	store, err := ParseStore(file, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("knowledge file %s: %w", path, err)
	}
	return store, nil
}

// LoadClassIndex reads a class index file. An empty path yields an empty index.
func LoadClassIndex(path string) (ClassIndex, error) {
	if strings.TrimSpace(path) == "" {
		return ClassIndex{}, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open class index: %w", err)
	}
	defer file.Close()
	index, err := ParseClassIndex(file, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("class index %s: %w", path, err)
	}
	return index, nil
}

// ParseStore decodes a top-level object of key -> {label, visual_knowledge}.
// Entries that are not objects are skipped; only a document that is not an
// object at all is an error.
func ParseStore(r io.Reader, format Format) (*Store, error) {
	top, err := decodeObject(r, format)
	if err != nil {
		return nil, err
	}
	records := make(map[string]Record, len(top))
	for key, raw := range top {
		rec, ok := recordFromRaw(raw)
		if !ok {
			continue
		}
		records[key] = rec
	}
	return &Store{records: records}, nil
}

// ParseClassIndex decodes a top-level object of identifier -> index.
func ParseClassIndex(r io.Reader, format Format) (ClassIndex, error) {
	top, err := decodeObject(r, format)
	if err != nil {
		return nil, err
	}
	index := make(ClassIndex, len(top))
	for id, raw := range top {
		if value, ok := indexFromRaw(raw); ok {
			index[id] = value
		}
	}
	return index, nil
}

var errNotObject = errors.New("document is not an object")

func decodeObject(r io.Reader, format Format) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	var raw any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	}
	top, ok := asStringMap(raw)
	if !ok {
		return nil, errNotObject
	}
	return top, nil
}
