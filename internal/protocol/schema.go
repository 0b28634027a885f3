package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBase = "https://sandcave.dev/schemas/"

var (
	schemaOnce sync.Once
	schemas    map[string]*jsonschema.Schema
	schemaErr  error
)

func schemaFile(kind string) (string, bool) {
	switch kind {
	case TypeSubscribe:
		return "subscribe.schema.json", true
	case TypeStep:
		return "step.schema.json", true
	case TypeState:
		return "state.schema.json", true
	case TypeError:
		return "error.schema.json", true
	}
	return "", false
}

func loadSchemas() {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	kinds := []string{TypeSubscribe, TypeStep, TypeState, TypeError}
	for _, k := range kinds {
		name, _ := schemaFile(k)
		b, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			schemaErr = err
			return
		}
		if err := c.AddResource(schemaBase+name, bytes.NewReader(b)); err != nil {
			schemaErr = fmt.Errorf("%s: %w", name, err)
			return
		}
	}
	out := make(map[string]*jsonschema.Schema, len(kinds))
	for _, k := range kinds {
		name, _ := schemaFile(k)
		s, err := c.Compile(schemaBase + name)
		if err != nil {
			schemaErr = fmt.Errorf("%s: %w", name, err)
			return
		}
		out[k] = s
	}
	schemas = out
}

// Schema returns the compiled schema for a message type.
func Schema(kind string) (*jsonschema.Schema, error) {
	schemaOnce.Do(loadSchemas)
	if schemaErr != nil {
		return nil, schemaErr
	}
	s, ok := schemas[kind]
	if !ok {
		return nil, fmt.Errorf("protocol: no schema for %q", kind)
	}
	return s, nil
}

// Validate checks raw JSON against the schema for kind.
func Validate(kind string, raw []byte) error {
	s, err := Schema(kind)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}
