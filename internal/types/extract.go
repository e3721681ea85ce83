// Package types provides extraction helpers for the heterogeneous
// message content shapes the remote service emits. This is the single
// source of truth for content normalization, shared by the projection
// and history packages.
package types

import "encoding/json"

// =============================================================================
// TEXT EXTRACTION
// =============================================================================

// Text returns the plain-text rendering of a message's content.
// String content is returned as-is; block-sequence content concatenates
// its text-bearing segments.
func (m Message) Text() string {
	return ExtractText(m.Content)
}

// ExtractText extracts text from raw message content.
// Content can be a string or []any (array of content blocks).
func ExtractText(rawContent any) string {
	switch c := rawContent.(type) {
	case string:
		return c
	case []any:
		var result string
		for _, item := range c {
			blockMap := asMap(item)
			if blockMap == nil {
				continue
			}
			if blockMap["type"] == "text" {
				if text, ok := blockMap["text"].(string); ok {
					result += text
				}
			}
		}
		return result
	}
	return ""
}

// =============================================================================
// TOOL CALL EXTRACTION
// =============================================================================

// ExtractToolCalls normalizes the tool invocations requested by an ai
// message. Three shapes are checked in fixed precedence, and the first
// non-empty source wins:
//  1. the structured tool_calls list
//  2. content blocks of tool_use type
//  3. provider-specific additional_kwargs["tool_calls"]
func ExtractToolCalls(m Message) []ToolCall {
	if len(m.ToolCalls) > 0 {
		calls := make([]ToolCall, 0, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			calls = append(calls, normalizeToolCall(tc.ID, tc.Name, "", tc.Args))
		}
		return calls
	}

	if calls := extractBlockToolCalls(m.Content); len(calls) > 0 {
		return calls
	}

	return extractKwargsToolCalls(m.AdditionalKwargs)
}

// extractBlockToolCalls pulls tool_use blocks out of block-sequence content.
func extractBlockToolCalls(rawContent any) []ToolCall {
	blocks, ok := rawContent.([]any)
	if !ok {
		return nil
	}

	var calls []ToolCall
	for _, item := range blocks {
		blockMap := asMap(item)
		if blockMap == nil {
			continue
		}
		blockType, _ := blockMap["type"].(string)
		if blockType != "tool_use" {
			continue
		}
		args, _ := blockMap["input"].(map[string]any)
		calls = append(calls, normalizeToolCall(
			getString(blockMap, "id"),
			getString(blockMap, "name"),
			blockType,
			args,
		))
	}
	return calls
}

// extractKwargsToolCalls handles the OpenAI-style kwargs shape:
// [{id, function: {name, arguments: "<json>"}}].
func extractKwargsToolCalls(kwargs map[string]any) []ToolCall {
	if kwargs == nil {
		return nil
	}
	raw, ok := kwargs["tool_calls"].([]any)
	if !ok {
		return nil
	}

	var calls []ToolCall
	for _, item := range raw {
		callMap := asMap(item)
		if callMap == nil {
			continue
		}

		name := getString(callMap, "name")
		var args map[string]any
		if fn := asMap(callMap["function"]); fn != nil {
			if name == "" {
				name = getString(fn, "name")
			}
			// arguments arrive as a JSON-encoded string
			if encoded := getString(fn, "arguments"); encoded != "" {
				_ = json.Unmarshal([]byte(encoded), &args)
			}
		}
		if args == nil {
			args, _ = callMap["args"].(map[string]any)
		}

		calls = append(calls, normalizeToolCall(getString(callMap, "id"), name, "", args))
	}
	return calls
}

// normalizeToolCall applies the name and args fallback chains.
// Name: explicit name -> block type -> "unknown". Args: empty map when absent.
func normalizeToolCall(id, name, blockType string, args map[string]any) ToolCall {
	if name == "" {
		name = blockType
	}
	if name == "" {
		name = "unknown"
	}
	if args == nil {
		args = map[string]any{}
	}
	return ToolCall{ID: id, Name: name, Args: args}
}

// =============================================================================
// RAW MAP HELPERS
// =============================================================================

// asMap coerces a decoded JSON value into map[string]any if possible.
func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// getString safely extracts a string from a map.
func getString(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}
