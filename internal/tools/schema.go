package tools

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// NoParams is the parameter type of tools that take no input.
type NoParams struct{}

// SchemaFor reflects the parameter struct P into the object schema sent to
// the model. Fields without `omitempty` are reported as required; property
// descriptions come from `jsonschema:"description=..."` tags.
func SchemaFor[P any]() map[string]any {
	reflector := jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	var zero P
	schema := reflector.Reflect(zero)

	raw, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("tools: marshal schema for %T: %v", zero, err))
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("tools: decode schema for %T: %v", zero, err))
	}

	delete(out, "$schema")
	delete(out, "$id")
	out["type"] = "object"
	if _, ok := out["properties"]; !ok {
		out["properties"] = map[string]any{}
	}
	if _, ok := out["required"]; !ok {
		out["required"] = []any{}
	}
	return out
}
