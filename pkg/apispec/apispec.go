// Package apispec carries the OpenAPI document of the storefront's users
// API and validates response bodies against its schemas.
package apispec

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var document []byte

// Schema names defined by the document.
const (
	SchemaUser       = "User"
	SchemaSingleUser = "SingleUser"
	SchemaUserList   = "UserList"
	SchemaCreated    = "Created"
	SchemaUpdated    = "Updated"
)

var load = sync.OnceValues(func() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(document)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	return doc, nil
})

// Load parses and validates the embedded document. The result is shared;
// callers must not modify it.
func Load() (*openapi3.T, error) { return load() }

// Raw returns the embedded YAML document.
func Raw() []byte { return document }

// Validate checks a decoded JSON value (maps, slices, float64, string,
// bool, nil) against the named component schema.
func Validate(schema string, value any) error {
	doc, err := Load()
	if err != nil {
		return err
	}
	ref, ok := doc.Components.Schemas[schema]
	if !ok || ref.Value == nil {
		return fmt.Errorf("unknown schema %q", schema)
	}
	if err := ref.Value.VisitJSON(value); err != nil {
		return fmt.Errorf("%s: %w", schema, err)
	}
	return nil
}

// ValidateJSON decodes data and validates it against the named schema.
func ValidateJSON(schema string, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%s: decode: %w", schema, err)
	}
	return Validate(schema, v)
}
