package sessions

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/strrl/claude-history/pkg/models"
)

const debugPreviewLen = 20

// SessionDebugInfo contains debug information about a session
type SessionDebugInfo struct {
	File         string
	Summary      string
	RecordTypes  map[string]int
	MessageCount int
	Messages     []string
}

// FormatPreview renders a message as a single line with its role and
// truncated content
func FormatPreview(msg models.Message) string {
	var rolePrefix string
	switch msg.Role {
	case models.RoleUser:
		rolePrefix = "[User] "
	case models.RoleAssistant:
		rolePrefix = "[Assistant] "
	case models.RoleTool:
		rolePrefix = "[Tool] "
	default:
		rolePrefix = fmt.Sprintf("[%s] ", msg.Role)
	}

	var result []string
	for _, block := range msg.Content {
		switch block.Kind {
		case models.BlockText:
			// Skip system reminders
			if !strings.Contains(block.Text, "system-reminder") {
				result = append(result, truncateString(block.Text, 50))
			}
		case models.BlockThinking:
			result = append(result, "💭 "+truncateString(block.Text, 30))
		case models.BlockToolUse:
			if input := summarizeInput(block.Input); input != "" {
				result = append(result, fmt.Sprintf("🔧 %s: %s", block.ToolName, input))
			} else {
				result = append(result, fmt.Sprintf("🔧 %s", block.ToolName))
			}
		case models.BlockToolResult, models.BlockFunctionCallOutput:
			result = append(result, "↩ "+truncateString(block.Text, 40))
		}
	}

	if len(result) == 0 {
		return ""
	}
	return rolePrefix + strings.Join(result, " | ")
}

// summarizeInput picks the most telling field of a tool call's input
func summarizeInput(input string) string {
	if input == "" {
		return ""
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(input), &fields); err != nil {
		return truncateString(input, 30)
	}
	if cmd, ok := fields["command"].(string); ok {
		return truncateString(cmd, 30)
	}
	if path, ok := fields["file_path"].(string); ok {
		return filepath.Base(path)
	}
	if pattern, ok := fields["pattern"].(string); ok {
		return truncateString(pattern, 20)
	}
	return truncateString(input, 30)
}
