// Package stages loads and validates the static stage list. The default
// list is embedded; a JSON or YAML file can replace it.
package stages

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/playperu/cityescape/internal/cityescape"
)

//go:embed schema.json
var schemaJSON string

//go:embed seoul.json
var defaultJSON []byte

const schemaURL = "cityescape://stages.schema.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiled, compileErr = compiler.Compile(schemaURL)
		if compileErr != nil {
			compileErr = fmt.Errorf("compile schema: %w", compileErr)
		}
	})
	return compiled, compileErr
}

// Default returns the embedded stage list.
func Default() []cityescape.Stage {
	list, err := Parse(defaultJSON, FormatJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded stages invalid: %v", err))
	}
	return list
}

type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFromPath picks the decoder by file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Load reads a stage file. An empty path returns the default list.
func Load(path string) ([]cityescape.Stage, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading stage file: %w", err)
	}
	list, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return list, nil
}

// Parse decodes, schema-validates and checks a stage list.
func Parse(data []byte, format Format) ([]cityescape.Stage, error) {
	raw, err := toJSON(data, format)
	if err != nil {
		return nil, err
	}

	sch, err := schema()
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding stages: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, fmt.Errorf("validating stages: %w", err)
	}

	var list []cityescape.Stage
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding stages: %w", err)
	}

	seen := make(map[int]bool, len(list))
	for _, s := range list {
		if seen[s.ID] {
			return nil, fmt.Errorf("duplicate stage id %d", s.ID)
		}
		seen[s.ID] = true
	}
	return list, nil
}

// toJSON normalises YAML into JSON so both formats share one schema.
func toJSON(data []byte, format Format) ([]byte, error) {
	if format == FormatJSON {
		return data, nil
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("converting yaml: %w", err)
	}
	return raw, nil
}
