package polish

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Result is the canonical outcome of a successful generation.
type Result struct {
	Text  string
	Usage Usage
}

// The upstream endpoint sits behind provider proxies whose response schema is
// not contractually stable. Extraction is an ordered list of shape attempts;
// each either matches or passes to the next. The order is part of the
// contract: a string content field always wins over an OpenAI choices array.
type attempt struct {
	name string
	fn   func(payload map[string]any) (string, bool)
}

var attempts = []attempt{
	{"content-string", fromContentString},
	{"content-blocks", fromContentBlocks},
	{"openai-choices", fromChoices},
	{"native-reply", fromReply},
}

// Normalize extracts polished text and token usage from a raw provider
// payload. A payload that matches no attempt, or yields only empty text,
// fails with a SchemaError; it is never passed through as an empty success.
func Normalize(raw []byte) (*Result, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("polish: decoding generation response: %w", err)
	}

	for _, a := range attempts {
		text, ok := a.fn(payload)
		if !ok {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		return &Result{Text: text, Usage: extractUsage(payload)}, nil
	}

	return nil, newSchemaError(payload)
}

func fromContentString(payload map[string]any) (string, bool) {
	s, ok := payload["content"].(string)
	return s, ok
}

func fromContentBlocks(payload map[string]any) (string, bool) {
	blocks, ok := payload["content"].([]any)
	if !ok || len(blocks) == 0 {
		return "", false
	}

	// Collect text-bearing blocks, skipping reasoning-only ones.
	var parts []string
	for _, b := range blocks {
		switch v := b.(type) {
		case string:
			parts = append(parts, v)
		case map[string]any:
			text, _ := v["text"].(string)
			if text == "" {
				continue
			}
			if t, present := v["thinking"]; present && truthy(t) {
				continue
			}
			parts = append(parts, text)
		}
	}
	if joined := strings.TrimSpace(strings.Join(parts, "")); joined != "" {
		return joined, true
	}

	// No clean text block: the first block may carry its text under an
	// alternate field name.
	first, ok := blocks[0].(map[string]any)
	if !ok {
		return "", false
	}
	for _, key := range []string{"text", "content", "value"} {
		if s, ok := first[key].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

func fromChoices(payload map[string]any) (string, bool) {
	choices, ok := payload["choices"].([]any)
	if !ok || len(choices) == 0 {
		return "", false
	}
	first, ok := choices[0].(map[string]any)
	if !ok {
		return "", false
	}
	msg, ok := first["message"].(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := msg["content"].(string)
	return s, ok
}

func fromReply(payload map[string]any) (string, bool) {
	s, ok := payload["reply"].(string)
	return s, ok
}

// extractUsage reads the usage object if present; a missing or malformed
// usage object is not an error, it just bills zero tokens.
func extractUsage(payload map[string]any) Usage {
	u, ok := payload["usage"].(map[string]any)
	if !ok {
		return Usage{}
	}
	return Usage{
		InputTokens:  intField(u, "input_tokens", "prompt_tokens"),
		OutputTokens: intField(u, "output_tokens", "completion_tokens"),
	}
}

func intField(m map[string]any, keys ...string) int {
	for _, k := range keys {
		if f, ok := m[k].(float64); ok && f >= 0 {
			return int(f)
		}
	}
	return 0
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case nil:
		return false
	default:
		return true
	}
}

const maxSampleLen = 100

func newSchemaError(payload map[string]any) *SchemaError {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	e := &SchemaError{Keys: keys}
	if c, ok := payload["content"]; ok {
		e.ContentShape = jsonShape(c)
		if sample, err := json.Marshal(c); err == nil {
			e.Sample = truncate(string(sample), maxSampleLen)
		}
	}
	return e
}

func jsonShape(v any) string {
	switch v.(type) {
	case []any:
		return "an array"
	case map[string]any:
		return "an object"
	case string:
		return "a string"
	case float64:
		return "a number"
	case bool:
		return "a boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
