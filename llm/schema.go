package llm

import (
	"encoding/json"

	"github.com/lexcodex/wayforward/framework"
)

type toolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type toolDef struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

// toolSchema renders a tool's parameters as a JSON schema object.
func toolSchema(tool framework.Tool) map[string]interface{} {
	props := make(map[string]interface{})
	var required []string
	for _, param := range tool.Parameters() {
		prop := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Default != nil {
			prop["default"] = param.Default
		}
		props[param.Name] = prop
		if param.Required {
			required = append(required, param.Name)
		}
	}
	parameters := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		parameters["required"] = required
	}
	return parameters
}

func convertTools(tools []framework.Tool) []toolDef {
	res := make([]toolDef, 0, len(tools))
	for _, tool := range tools {
		res = append(res, toolDef{
			Type: "function",
			Function: toolFunction{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  toolSchema(tool),
			},
		})
	}
	return res
}

// parseArguments accepts an object, a JSON-encoded string holding an object,
// or anything else (kept under _raw).
func parseArguments(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 {
		return map[string]interface{}{}
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj == nil {
			return map[string]interface{}{}
		}
		return obj
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if str == "" {
			return map[string]interface{}{}
		}
		var nested map[string]interface{}
		if err := json.Unmarshal([]byte(str), &nested); err == nil {
			return nested
		}
		return map[string]interface{}{"value": str}
	}
	return map[string]interface{}{"_raw": string(raw)}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
