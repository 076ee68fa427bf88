package action

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
)

var compiled = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	raw, err := SchemaJSON()
	if err != nil {
		return nil, err
	}
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
})

// SchemaJSON returns the draft-07 schema of a model reply.
func SchemaJSON() ([]byte, error) {
	actions := make([]string, 0, len(catalog))
	conditions := make([]any, 0, len(catalog))
	for _, spec := range catalog {
		actions = append(actions, string(spec.Action))
		if len(spec.Params) == 0 {
			continue
		}
		conditions = append(conditions, map[string]any{
			"if": map[string]any{
				"properties": map[string]any{"action": map[string]any{"const": string(spec.Action)}},
			},
			"then": paramsSchema(spec),
		})
	}

	doc := map[string]any{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"type":     "object",
		"required": []string{"action"},
		"properties": map[string]any{
			"action":   map[string]any{"type": "string", "enum": actions},
			"params":   map[string]any{"type": []string{"object", "null"}},
			"speech":   map[string]any{"type": []string{"string", "null"}},
			"response": map[string]any{"type": "string"},
			"content":  map[string]any{"type": "string"},
		},
		"anyOf": []any{
			map[string]any{"required": []string{"response"}},
			map[string]any{"required": []string{"content"}},
		},
		"allOf": conditions,
	}
	return json.Marshal(doc)
}

func paramsSchema(spec Spec) map[string]any {
	props := make(map[string]any, len(spec.Params))
	var required []string
	for _, p := range spec.Params {
		types := []string{string(p.Type)}
		if p.Type == ParamNumber {
			types = append(types, "string")
		}
		if p.Nullable {
			types = append(types, "null")
		}
		prop := map[string]any{"type": types}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	params := map[string]any{"type": "object", "properties": props}
	out := map[string]any{
		"properties": map[string]any{"params": params},
	}
	if len(required) > 0 {
		params["required"] = required
		out["required"] = []string{"params"}
	}
	return out
}

// Validate checks a model reply against the schema. Violations are wrapped in
// contract.ErrSchemaViolation.
func Validate(payload []byte) error {
	sch, err := compiled()
	if err != nil {
		return fmt.Errorf("%w: compile schema: %v", contractx.ErrSchemaViolation, err)
	}
	if !json.Valid(payload) {
		return fmt.Errorf("%w: reply is not valid JSON", contractx.ErrSchemaViolation)
	}

	result, err := sch.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrSchemaViolation, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", contractx.ErrSchemaViolation, strings.Join(msgs, "; "))
	}
	return nil
}
