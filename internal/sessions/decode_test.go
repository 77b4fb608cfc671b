package sessions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strrl/claude-history/pkg/models"
)

func TestDecodeClaudeMessage(t *testing.T) {
	ts := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		recordType string
		raw        string
		role       models.Role
		kinds      []models.BlockKind
	}{
		{
			name:       "plain string content",
			recordType: "user",
			raw:        `{"role":"user","content":"hello"}`,
			role:       models.RoleUser,
			kinds:      []models.BlockKind{models.BlockText},
		},
		{
			name:       "assistant blocks",
			recordType: "assistant",
			raw:        `{"role":"assistant","content":[{"type":"thinking","thinking":"hmm"},{"type":"text","text":"ok"},{"type":"tool_use","id":"t1","name":"Bash","input":{"command": "ls"}}]}`,
			role:       models.RoleAssistant,
			kinds:      []models.BlockKind{models.BlockThinking, models.BlockText, models.BlockToolUse},
		},
		{
			name:       "tool results only",
			recordType: "user",
			raw:        `{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"out"}]}`,
			role:       models.RoleTool,
			kinds:      []models.BlockKind{models.BlockToolResult},
		},
		{
			name:       "JSON encoded string",
			recordType: "user",
			raw:        `"{\"role\":\"user\",\"content\":\"quoted\"}"`,
			role:       models.RoleUser,
			kinds:      []models.BlockKind{models.BlockText},
		},
		{
			name:       "empty text dropped",
			recordType: "assistant",
			raw:        `{"role":"assistant","content":[{"type":"text","text":""}]}`,
			role:       models.RoleAssistant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := decodeClaudeMessage(tt.recordType, "u1", ts, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, "u1", msg.UUID)
			assert.Equal(t, ts, msg.Timestamp)
			assert.Equal(t, tt.role, msg.Role)

			var kinds []models.BlockKind
			for _, b := range msg.Content {
				kinds = append(kinds, b.Kind)
			}
			assert.Equal(t, tt.kinds, kinds)
		})
	}
}

func TestDecodeClaudeToolBlocks(t *testing.T) {
	msg, err := decodeClaudeMessage("user", "u1", time.Time{},
		`{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","is_error":true,"content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}]}`)
	require.NoError(t, err)
	require.Len(t, msg.Content, 1)
	assert.Equal(t, "t1", msg.Content[0].ToolID)
	assert.Equal(t, "a\nb", msg.Content[0].Text)
	assert.True(t, msg.Content[0].IsError)

	msg, err = decodeClaudeMessage("assistant", "u2", time.Time{},
		`{"role":"assistant","content":[{"type":"tool_use","id":"t1","name":"Read","input":{ "file_path" : "/a/b.go" }}]}`)
	require.NoError(t, err)
	assert.Equal(t, `{"file_path":"/a/b.go"}`, msg.Content[0].Input)
}

func TestDecodeClaudeMessageInvalid(t *testing.T) {
	_, err := decodeClaudeMessage("user", "u1", time.Time{}, `{not json`)
	assert.Error(t, err)
}

func TestDecodeCodexItem(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		visible bool
		role    models.Role
		kind    models.BlockKind
		text    string
	}{
		{"user message", `{"type":"message","role":"user","content":[{"type":"input_text","text":"hi"}]}`, true, models.RoleUser, models.BlockText, "hi"},
		{"assistant message", `{"type":"message","role":"assistant","content":[{"type":"output_text","text":"yo"}]}`, true, models.RoleAssistant, models.BlockText, "yo"},
		{"developer message", `{"type":"message","role":"developer","content":[{"type":"input_text","text":"rules"}]}`, false, "", "", ""},
		{"context preamble", `{"type":"message","role":"user","content":[{"type":"input_text","text":"<environment_context>x</environment_context>"}]}`, false, "", "", ""},
		{"reasoning", `{"type":"reasoning","summary":[{"type":"summary_text","text":"plan"}]}`, true, models.RoleAssistant, models.BlockThinking, "plan"},
		{"function output", `{"type":"function_call_output","call_id":"c1","output":"done"}`, true, models.RoleTool, models.BlockFunctionCallOutput, "done"},
		{"unknown type", `{"type":"web_search_call"}`, false, "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok, err := decodeCodexItem("s-1", time.Time{}, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.visible, ok)
			if !ok {
				return
			}
			assert.Equal(t, "s-1", msg.UUID)
			assert.Equal(t, tt.role, msg.Role)
			require.NotEmpty(t, msg.Content)
			assert.Equal(t, tt.kind, msg.Content[0].Kind)
			assert.Equal(t, tt.text, msg.Content[0].Text)
		})
	}
}

func TestDecodeCodexFunctionCall(t *testing.T) {
	msg, ok, err := decodeCodexItem("s-2", time.Time{},
		`{"type":"function_call","name":"shell","arguments":"{\"command\":[\"ls\"]}","call_id":"c1"}`)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.BlockToolUse, msg.Content[0].Kind)
	assert.Equal(t, "shell", msg.Content[0].ToolName)
	assert.Equal(t, "c1", msg.Content[0].ToolID)
	assert.Equal(t, `{"command":["ls"]}`, msg.Content[0].Input)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "a b c", truncateString("a\n  b\tc", 10))
	assert.Equal(t, "héllo...", truncateString("héllo wörld", 5))
}

func TestFirstText(t *testing.T) {
	msg := models.Message{Content: []models.ContentBlock{
		{Kind: models.BlockThinking, Text: "thinking"},
		{Kind: models.BlockText, Text: "  "},
		{Kind: models.BlockText, Text: "answer"},
	}}
	assert.Equal(t, "answer", firstText(msg))
	assert.Empty(t, firstText(models.Message{}))
}
