package polish

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			"content string",
			`{"content": "hello"}`,
			"hello",
		},
		{
			"content blocks",
			`{"content": [{"type": "text", "text": "hello"}]}`,
			"hello",
		},
		{
			"multiple blocks joined",
			`{"content": [{"text": "hel"}, {"text": "lo"}]}`,
			"hello",
		},
		{
			"thinking blocks skipped",
			`{"content": [{"thinking": true, "text": "let me reason"}, {"text": "hello"}]}`,
			"hello",
		},
		{
			"string blocks",
			`{"content": ["hel", "lo"]}`,
			"hello",
		},
		{
			"first block alternate field",
			`{"content": [{"type": "text", "value": "hello"}]}`,
			"hello",
		},
		{
			"openai choices",
			`{"choices": [{"message": {"role": "assistant", "content": "hello"}}]}`,
			"hello",
		},
		{
			"native reply",
			`{"reply": "hello"}`,
			"hello",
		},
		{
			"content string wins over choices",
			`{"content": "hello", "choices": [{"message": {"content": "other"}}]}`,
			"hello",
		},
		{
			"whitespace trimmed",
			`{"content": "  hello\n"}`,
			"hello",
		},
		{
			"empty content falls through to reply",
			`{"content": "", "reply": "hello"}`,
			"hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Normalize([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Text)
		})
	}
}

func TestNormalizeUsage(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantIn  int
		wantOut int
	}{
		{"anthropic field names", `{"content": "x", "usage": {"input_tokens": 10, "output_tokens": 20}}`, 10, 20},
		{"openai field names", `{"reply": "x", "usage": {"prompt_tokens": 3, "completion_tokens": 7}}`, 3, 7},
		{"missing usage defaults to zero", `{"content": "x"}`, 0, 0},
		{"malformed usage defaults to zero", `{"content": "x", "usage": "lots"}`, 0, 0},
		{"negative counts ignored", `{"content": "x", "usage": {"input_tokens": -5, "output_tokens": 20}}`, 0, 20},
		{"partial usage", `{"content": "x", "usage": {"output_tokens": 9}}`, 0, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Normalize([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.wantIn, result.Usage.InputTokens)
			assert.Equal(t, tt.wantOut, result.Usage.OutputTokens)
		})
	}
}

func TestNormalizeSchemaError(t *testing.T) {
	t.Run("unknown keys listed sorted", func(t *testing.T) {
		_, err := Normalize([]byte(`{"foo": "bar", "baz": 1}`))
		var schema *SchemaError
		require.True(t, errors.As(err, &schema))
		assert.Equal(t, []string{"baz", "foo"}, schema.Keys)
		assert.Empty(t, schema.ContentShape)
		assert.Contains(t, schema.Error(), "keys received: [baz, foo]")
	})

	t.Run("unrecognized content shape described", func(t *testing.T) {
		_, err := Normalize([]byte(`{"content": {"nested": "thing"}}`))
		var schema *SchemaError
		require.True(t, errors.As(err, &schema))
		assert.Equal(t, "an object", schema.ContentShape)
		assert.Contains(t, schema.Sample, "nested")
	})

	t.Run("long sample truncated", func(t *testing.T) {
		long := `{"content": {"pad": "` + strings.Repeat("a", 200) + `"}}`
		_, err := Normalize([]byte(long))
		var schema *SchemaError
		require.True(t, errors.As(err, &schema))
		assert.LessOrEqual(t, len(schema.Sample), maxSampleLen+3)
	})

	t.Run("empty text everywhere is a failure", func(t *testing.T) {
		_, err := Normalize([]byte(`{"content": "   ", "reply": ""}`))
		var schema *SchemaError
		require.True(t, errors.As(err, &schema))
	})

	t.Run("empty blocks array is a failure", func(t *testing.T) {
		_, err := Normalize([]byte(`{"content": []}`))
		var schema *SchemaError
		require.True(t, errors.As(err, &schema))
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := Normalize([]byte(`not json`))
		require.Error(t, err)
		var schema *SchemaError
		assert.False(t, errors.As(err, &schema))
	})
}
