// Package validation checks serialized flow definitions before the engine
// sees them: JSON Schema shape validation plus structural graph checks.
package validation

import (
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/023a424/agentflow/pkg/schema"
)

// flowSchemaJSON is the JSON Schema for serialized flow definitions.
// Embedded as a constant to avoid filesystem dependencies.
const flowSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://agentflow.dev/schemas/flow.json",
  "type": "object",
  "required": ["nodes", "edges"],
  "properties": {
    "nodes": {
      "type": "array",
      "minItems": 1,
      "items": { "$ref": "#/$defs/node" }
    },
    "edges": {
      "type": "array",
      "items": { "$ref": "#/$defs/edge" }
    }
  },
  "$defs": {
    "node": {
      "type": "object",
      "required": ["id", "data"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "data": {
          "type": "object",
          "required": ["name"],
          "properties": {
            "id": { "type": "string" },
            "name": { "type": "string", "minLength": 1 },
            "label": { "type": "string" },
            "inputs": { "type": "object" },
            "inputParams": {
              "type": "array",
              "items": {
                "type": "object",
                "required": ["name"],
                "properties": {
                  "name": { "type": "string", "minLength": 1 },
                  "type": { "type": "string" },
                  "acceptVariable": { "type": "boolean" }
                }
              }
            }
          }
        }
      }
    },
    "edge": {
      "type": "object",
      "required": ["source", "target"],
      "properties": {
        "id": { "type": "string" },
        "source": { "type": "string", "minLength": 1 },
        "sourceHandle": { "type": "string" },
        "target": { "type": "string", "minLength": 1 },
        "targetHandle": { "type": "string" }
      }
    }
  }
}`

// FlowValidator validates serialized flow definitions. Safe for concurrent use.
type FlowValidator struct {
	flowSchema *jsonschema.Schema
}

// NewFlowValidator compiles the embedded flow schema.
func NewFlowValidator() (*FlowValidator, error) {
	c := jsonschema.NewCompiler()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(flowSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal flow schema: %w", err)
	}
	if err := c.AddResource("https://agentflow.dev/schemas/flow.json", doc); err != nil {
		return nil, fmt.Errorf("add flow schema resource: %w", err)
	}

	compiled, err := c.Compile("https://agentflow.dev/schemas/flow.json")
	if err != nil {
		return nil, fmt.Errorf("compile flow schema: %w", err)
	}
	return &FlowValidator{flowSchema: compiled}, nil
}

// ValidateJSON checks a raw serialized flow against the schema and the
// structural rules, returning the parsed definition on success.
func (v *FlowValidator) ValidateJSON(raw []byte) (*schema.FlowData, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "parse flow data: %s", err.Error()).WithCause(err)
	}
	if err := v.flowSchema.Validate(doc); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "flow schema: %s", err.Error()).WithCause(err)
	}

	flow, err := schema.ParseFlowData(raw)
	if err != nil {
		return nil, err
	}
	if err := ValidateStructure(flow); err != nil {
		return nil, err
	}
	return flow, nil
}
