package wire

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// MessageSchemaJSON is the JSON schema every inbound message record must
// satisfy in strict mode
const MessageSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "pdbridge inbound message",
  "type": "object",
  "required": ["type", "selector"],
  "properties": {
    "type": {"const": "message"},
    "inlet": {"type": "integer", "minimum": 0},
    "selector": {"type": "string", "minLength": 1},
    "args": {
      "type": "array",
      "items": {"$ref": "#/definitions/atom"}
    }
  },
  "definitions": {
    "atom": {
      "oneOf": [
        {"type": "number"},
        {"type": "string"},
        {"type": "array", "items": {"$ref": "#/definitions/atom"}}
      ]
    }
  }
}`

// MessageSchema is a compiled inbound message schema
type MessageSchema struct {
	schema *gojsonschema.Schema
}

// CompileMessageSchema compiles MessageSchemaJSON
func CompileMessageSchema() (*MessageSchema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(MessageSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to compile message schema: %w", err)
	}
	return &MessageSchema{schema: schema}, nil
}

// Strict returns a DecoderOption validating records against the message
// schema. The embedded schema is a constant, so a compile failure is a bug.
func Strict() DecoderOption {
	schema, err := CompileMessageSchema()
	if err != nil {
		panic(err)
	}
	return WithSchema(schema)
}

// ValidateJSON checks one record. Violations are returned as a FramingError
// of kind FramingSchema listing every description.
func (s *MessageSchema) ValidateJSON(record []byte) error {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(record))
	if err != nil {
		return malformed(err)
	}
	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return &FramingError{Kind: FramingSchema, Detail: strings.Join(details, "; ")}
}
