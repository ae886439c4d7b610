package voiceflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Response schemas. They pin down the fields the pipeline relies on and
// leave everything else open so additive API changes don't break parsing.
const (
	transcriptPageSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["transcripts"],
  "properties": {
    "transcripts": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "sessionID": {"type": ["string", "null"]},
          "createdAt": {"type": ["string", "null"]},
          "endedAt": {"type": ["string", "null"]},
          "properties": {
            "type": ["array", "null"],
            "items": {"type": "object", "required": ["name"]}
          },
          "evaluations": {
            "type": ["array", "null"],
            "items": {
              "type": "object",
              "anyOf": [{"required": ["name"]}, {"required": ["evaluationID"]}]
            }
          },
          "logs": {"type": ["array", "null"]},
          "messages": {"type": ["array", "null"]}
        }
      }
    },
    "nextCursor": {"type": ["string", "null"]},
    "hasMore": {"type": ["boolean", "null"]},
    "total": {"type": ["integer", "null"]}
  }
}`

	definitionsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["evaluations"],
  "properties": {
    "evaluations": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name", "type"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string"},
          "type": {"type": "string"},
          "enabled": {"type": ["boolean", "null"]}
        }
      }
    }
  }
}`

	resultsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["results"],
  "properties": {
    "results": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["value"],
        "anyOf": [{"required": ["name"]}, {"required": ["evaluationID"]}]
      }
    }
  }
}`

	logsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "anyOf": [{"required": ["logs"]}, {"required": ["messages"]}],
  "properties": {
    "logs": {"type": "array", "items": {"type": "object"}},
    "messages": {"type": "array", "items": {"type": "object"}}
  }
}`
)

var (
	transcriptPageValidator = mustCompileSchema(transcriptPageSchema, "transcript-page.schema.json")
	definitionsValidator    = mustCompileSchema(definitionsSchema, "evaluation-definitions.schema.json")
	resultsValidator        = mustCompileSchema(resultsSchema, "evaluation-results.schema.json")
	logsValidator           = mustCompileSchema(logsSchema, "transcript-logs.schema.json")
)

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// validate checks payload against sch and decodes it into dest. Failures are
// reported as ErrParse naming the endpoint.
func validate(sch *jsonschema.Schema, endpoint string, payload []byte, dest any) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return &Error{Kind: ErrParse, Path: endpoint, Message: "response is not valid JSON", Err: err}
	}
	if err := sch.Validate(inst); err != nil {
		return &Error{Kind: ErrParse, Path: endpoint, Message: flattenSchemaError(err)}
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return &Error{Kind: ErrParse, Path: endpoint, Message: "decode response", Err: err}
	}
	return nil
}

func flattenSchemaError(err error) string {
	lines := strings.Split(strings.TrimSpace(err.Error()), "\n")
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, "; ")
}
