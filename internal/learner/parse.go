package learner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/tutord/internal/errs"
)

// graphSchemaDoc describes a topic graph payload: an object mapping each
// subtopic to a list of prerequisite names.
const graphSchemaDoc = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "minProperties": 1,
  "additionalProperties": {
    "type": "array",
    "items": {"type": "string", "minLength": 1}
  }
}`

const graphSchemaURL = "schema://topic_graph.json"

var (
	graphSchemaOnce sync.Once
	graphSchema     *jsonschema.Schema
	graphSchemaErr  error
)

func compiledGraphSchema() (*jsonschema.Schema, error) {
	graphSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(graphSchemaDoc))
		if err != nil {
			graphSchemaErr = fmt.Errorf("parse schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(graphSchemaURL, doc); err != nil {
			graphSchemaErr = fmt.Errorf("add resource: %w", err)
			return
		}
		graphSchema, graphSchemaErr = c.Compile(graphSchemaURL)
	})
	return graphSchema, graphSchemaErr
}

// Format is the encoding of a topic graph payload.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath guesses the payload format from a file name.
func FormatFromPath(path string) Format {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		return FormatYAML
	}
	return FormatJSON
}

// ParseGraph decodes and validates a topic graph payload. Names are returned
// as written; callers canonicalize them with NormalizeGraph.
func ParseGraph(data []byte, format Format) (map[string][]string, error) {
	var doc any
	switch format {
	case FormatYAML:
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errs.InvalidInput("topic graph is not valid YAML: %v", err)
		}
		// Round-trip through JSON so the validator sees JSON types only.
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, errs.InvalidInput("topic graph cannot be represented as JSON: %v", err)
		}
		data = b
		fallthrough
	case FormatJSON, "":
		v, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, errs.InvalidInput("topic graph is not valid JSON: %v", err)
		}
		doc = v
	default:
		return nil, errs.InvalidInput("unknown topic graph format %q", format)
	}

	schema, err := compiledGraphSchema()
	if err != nil {
		return nil, fmt.Errorf("compile topic graph schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, errs.InvalidInput("topic graph schema validation failed: %v", err)
	}

	var out map[string][]string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errs.InvalidInput("decode topic graph: %v", err)
	}
	return out, nil
}
