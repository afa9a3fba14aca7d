// Package toolcall reads tool call arguments and builds tool results.
package toolcall

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/c360studio/semstreams/agentic"
)

// String returns a string argument, or def when it is missing or empty.
func String(call agentic.ToolCall, name, def string) string {
	if s, ok := call.Arguments[name].(string); ok && s != "" {
		return s
	}
	return def
}

// Required returns a non-empty string argument.
func Required(call agentic.ToolCall, name string) (string, error) {
	s, ok := call.Arguments[name].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%s argument is required", name)
	}
	return s, nil
}

// Int returns an integer argument. JSON numbers and numeric strings are
// accepted.
func Int(call agentic.ToolCall, name string, def int) int {
	switch v := call.Arguments[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// Bool returns a boolean argument. "true" and "false" strings are accepted.
func Bool(call agentic.ToolCall, name string, def bool) bool {
	switch v := call.Arguments[name].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

// Seconds returns a duration argument given in seconds.
func Seconds(call agentic.ToolCall, name string, def time.Duration) time.Duration {
	if n := Int(call, name, 0); n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

// Strings returns a list argument. A single string is split on commas.
func Strings(call agentic.ToolCall, name string) []string {
	var out []string
	switch v := call.Arguments[name].(type) {
	case []string:
		out = append(out, v...)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// Object returns an argument that holds a JSON object, either as a decoded
// map or as a JSON string.
func Object(call agentic.ToolCall, name string) (map[string]any, error) {
	switch v := call.Arguments[name].(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("%s must be a JSON object: %w", name, err)
		}
		return m, nil
	}
	return nil, fmt.Errorf("%s must be a JSON object", name)
}

// Document returns an argument that holds a JSON document as a string. A
// decoded value is encoded again.
func Document(call agentic.ToolCall, name string) (string, error) {
	switch v := call.Arguments[name].(type) {
	case nil:
		return "", fmt.Errorf("%s argument is required", name)
	case string:
		if strings.TrimSpace(v) == "" {
			return "", fmt.Errorf("%s argument is required", name)
		}
		return v, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode %s: %w", name, err)
		}
		return string(b), nil
	}
}

// Decode converts an argument to v through its JSON encoding.
func Decode(call agentic.ToolCall, name string, v any) error {
	raw, ok := call.Arguments[name]
	if !ok || raw == nil {
		return nil
	}
	var data []byte
	if s, ok := raw.(string); ok {
		data = []byte(s)
	} else {
		var err error
		if data, err = json.Marshal(raw); err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// Text returns a result with plain content.
func Text(call agentic.ToolCall, content string) agentic.ToolResult {
	return agentic.ToolResult{CallID: call.ID, Content: content}
}

// JSON returns a result whose content is v encoded as indented JSON.
func JSON(call agentic.ToolCall, v any) agentic.ToolResult {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Error(call, fmt.Errorf("encode result: %w", err))
	}
	return agentic.ToolResult{CallID: call.ID, Content: string(b)}
}

// Error returns a result that reports err.
func Error(call agentic.ToolCall, err error) agentic.ToolResult {
	return agentic.ToolResult{CallID: call.ID, Error: err.Error()}
}

// Failure returns a {"success": false, "error": ...} payload that also
// reports err.
func Failure(call agentic.ToolCall, err error) agentic.ToolResult {
	res := JSON(call, map[string]any{"success": false, "error": err.Error()})
	res.Error = err.Error()
	return res
}

// Unknown reports a tool name the executor does not serve.
func Unknown(call agentic.ToolCall) (agentic.ToolResult, error) {
	err := fmt.Errorf("unknown tool: %s", call.Name)
	return Error(call, err), err
}

// Schema builds the JSON schema of a tool's parameters.
func Schema(properties map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// Param describes one parameter.
func Param(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}

// Enum describes a string parameter limited to values.
func Enum(description string, values ...string) map[string]any {
	return map[string]any{"type": "string", "description": description, "enum": values}
}
