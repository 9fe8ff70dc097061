package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas
var schemaFiles embed.FS

const schemaBaseURL = "https://blackjackd.dev/schemas/"

// Schema names, one per embedded file.
const (
	SchemaMessage    = "message"
	SchemaCreateGame = "create_game"
	SchemaAction     = "action"
	SchemaVerify     = "verify"
	SchemaValidate   = "validate"
)

// Validator checks inbound request bodies against the embedded JSON schemas
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator compiles every embedded schema
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	entries, err := schemaFiles.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		data, err := schemaFiles.ReadFile("schemas/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", entry.Name(), err)
		}
		if err := compiler.AddResource(schemaBaseURL+entry.Name(), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("failed to add schema %s: %w", entry.Name(), err)
		}
		names = append(names, entry.Name())
	}

	schemas := make(map[string]*jsonschema.Schema, len(names))
	for _, filename := range names {
		schema, err := compiler.Compile(schemaBaseURL + filename)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", filename, err)
		}
		schemas[strings.TrimSuffix(filename, ".json")] = schema
	}

	return &Validator{schemas: schemas}, nil
}

// MustNewValidator is NewValidator for the embedded schemas, which are
// known to compile.
func MustNewValidator() *Validator {
	v, err := NewValidator()
	if err != nil {
		panic(err)
	}
	return v
}

// ValidateMessage validates an inbound WebSocket message and its payload
func (v *Validator) ValidateMessage(data []byte) (*Message, error) {
	if err := v.Validate(SchemaMessage, data); err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	switch msg.Type {
	case MessageTypeCreateGame:
		return &msg, v.Validate(SchemaCreateGame, msg.Data)
	case MessageTypeAction:
		return &msg, v.Validate(SchemaAction, msg.Data)
	default:
		return nil, fmt.Errorf("unknown message type: %s", msg.Type)
	}
}

// Validate validates raw JSON against a named schema
func (v *Validator) Validate(schemaName string, data []byte) error {
	schema, exists := v.schemas[schemaName]
	if !exists {
		return fmt.Errorf("schema not found: %s", schemaName)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// Decode validates data against a schema and unmarshals it into out
func (v *Validator) Decode(schemaName string, data []byte, out interface{}) error {
	if err := v.Validate(schemaName, data); err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
