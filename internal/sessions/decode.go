package sessions

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/strrl/claude-history/pkg/models"
)

// claudeMessage is the "message" field of a Claude transcript record
type claudeMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type claudeBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Thinking  string          `json:"thinking"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
}

// unquote handles values DuckDB hands back as a JSON encoded string
func unquote(raw string) string {
	if strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) {
		var s string
		if err := json.Unmarshal([]byte(raw), &s); err == nil {
			return s
		}
	}
	return raw
}

// decodeClaudeMessage converts a user or assistant record into a Message.
// A user record that carries only tool results becomes a tool message.
func decodeClaudeMessage(recordType, uuid string, ts time.Time, raw string) (models.Message, error) {
	var msg claudeMessage
	if err := json.Unmarshal([]byte(unquote(raw)), &msg); err != nil {
		return models.Message{}, errors.Wrap(err, "decode message")
	}

	blocks, err := decodeClaudeContent(msg.Content)
	if err != nil {
		return models.Message{}, err
	}

	role := models.RoleAssistant
	if recordType == "user" {
		role = models.RoleUser
		if len(blocks) > 0 && allKind(blocks, models.BlockToolResult) {
			role = models.RoleTool
		}
	}

	return models.Message{UUID: uuid, Role: role, Timestamp: ts, Content: blocks}, nil
}

func decodeClaudeContent(raw json.RawMessage) ([]models.ContentBlock, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if text == "" {
			return nil, nil
		}
		return []models.ContentBlock{{Kind: models.BlockText, Text: text}}, nil
	}

	var items []claudeBlock
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.Wrap(err, "decode content")
	}

	blocks := make([]models.ContentBlock, 0, len(items))
	for _, item := range items {
		switch item.Type {
		case "text":
			if item.Text != "" {
				blocks = append(blocks, models.ContentBlock{Kind: models.BlockText, Text: item.Text})
			}
		case "thinking":
			if item.Thinking != "" {
				blocks = append(blocks, models.ContentBlock{Kind: models.BlockThinking, Text: item.Thinking})
			}
		case "tool_use":
			blocks = append(blocks, models.ContentBlock{
				Kind:     models.BlockToolUse,
				ToolID:   item.ID,
				ToolName: item.Name,
				Input:    compactJSON(item.Input),
			})
		case "tool_result":
			blocks = append(blocks, models.ContentBlock{
				Kind:    models.BlockToolResult,
				ToolID:  item.ToolUseID,
				Text:    toolResultText(item.Content),
				IsError: item.IsError,
			})
		}
	}
	return blocks, nil
}

// toolResultText flattens tool result content, which is either a string or
// a list of text blocks.
func toolResultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var items []claudeBlock
	if err := json.Unmarshal(raw, &items); err != nil {
		return ""
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if item.Type == "text" && item.Text != "" {
			parts = append(parts, item.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

func allKind(blocks []models.ContentBlock, kind models.BlockKind) bool {
	for _, b := range blocks {
		if b.Kind != kind {
			return false
		}
	}
	return true
}

// codexItem is the payload of a Codex response_item record
type codexItem struct {
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Summary []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"summary"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	CallID    string `json:"call_id"`
	Output    string `json:"output"`
}

// decodeCodexItem converts a response_item payload into a Message. The
// second return is false for items that are not shown.
func decodeCodexItem(id string, ts time.Time, raw string) (models.Message, bool, error) {
	var item codexItem
	if err := json.Unmarshal([]byte(unquote(raw)), &item); err != nil {
		return models.Message{}, false, errors.Wrap(err, "decode response item")
	}

	msg := models.Message{UUID: id, Timestamp: ts}
	switch item.Type {
	case "message":
		switch item.Role {
		case "user":
			msg.Role = models.RoleUser
		case "assistant":
			msg.Role = models.RoleAssistant
		default:
			return models.Message{}, false, nil
		}
		for _, c := range item.Content {
			if c.Text != "" && !isCodexContext(c.Text) {
				msg.Content = append(msg.Content, models.ContentBlock{Kind: models.BlockText, Text: c.Text})
			}
		}
		if len(msg.Content) == 0 {
			return models.Message{}, false, nil
		}
	case "reasoning":
		msg.Role = models.RoleAssistant
		for _, s := range item.Summary {
			if s.Text != "" {
				msg.Content = append(msg.Content, models.ContentBlock{Kind: models.BlockThinking, Text: s.Text})
			}
		}
	case "function_call":
		msg.Role = models.RoleAssistant
		msg.Content = []models.ContentBlock{{
			Kind:     models.BlockToolUse,
			ToolID:   item.CallID,
			ToolName: item.Name,
			Input:    item.Arguments,
		}}
	case "function_call_output":
		msg.Role = models.RoleTool
		msg.Content = []models.ContentBlock{{
			Kind:   models.BlockFunctionCallOutput,
			ToolID: item.CallID,
			Text:   item.Output,
		}}
	default:
		return models.Message{}, false, nil
	}
	return msg, true, nil
}

// isCodexContext matches the environment and instruction preambles Codex
// injects as user messages
func isCodexContext(text string) bool {
	t := strings.TrimSpace(text)
	return strings.HasPrefix(t, "<environment_context>") ||
		strings.HasPrefix(t, "<user_instructions>") ||
		strings.HasPrefix(t, "# AGENTS.md instructions")
}

// firstText returns the first non-empty text block of msg
func firstText(msg models.Message) string {
	for _, b := range msg.Content {
		if b.Kind == models.BlockText && strings.TrimSpace(b.Text) != "" {
			return b.Text
		}
	}
	return ""
}

// truncateString collapses whitespace and cuts s to maxLen runes
func truncateString(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
