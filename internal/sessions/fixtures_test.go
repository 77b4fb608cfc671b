package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strrl/claude-history/internal/db"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(2)
	if err != nil {
		t.Skipf("Skipping test, DuckDB unavailable: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func writeJSONL(t *testing.T, path string, records []map[string]any) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, r := range records {
		require.NoError(t, enc.Encode(r))
	}
}

var fixtureStart = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func stamp(i int) string {
	return fixtureStart.Add(time.Duration(i) * time.Second).Format("2006-01-02T15:04:05.000Z")
}

// claudeTranscript builds n alternating user and assistant records. The
// first user prompt is prompt; every assistant reply reports 10 input and 5
// output tokens.
func claudeTranscript(sessionID, cwd, prompt string, n int) []map[string]any {
	records := []map[string]any{
		{"type": "summary", "summary": "Fixture summary", "leafUuid": fmt.Sprintf("%s-%03d", sessionID, n-1)},
	}
	for i := 0; i < n; i++ {
		base := map[string]any{
			"uuid":      fmt.Sprintf("%s-%03d", sessionID, i),
			"sessionId": sessionID,
			"timestamp": stamp(i),
			"cwd":       cwd,
			"gitBranch": "main",
		}
		if i%2 == 0 {
			text := fmt.Sprintf("question %d", i)
			if i == 0 {
				text = prompt
			}
			base["type"] = "user"
			base["message"] = map[string]any{"role": "user", "content": text}
		} else {
			base["type"] = "assistant"
			base["message"] = map[string]any{
				"id":    fmt.Sprintf("msg_%s_%d", sessionID, i),
				"role":  "assistant",
				"model": "claude-sonnet-4",
				"content": []map[string]any{
					{"type": "text", "text": fmt.Sprintf("answer %d", i)},
				},
				"usage": map[string]any{"input_tokens": 10, "output_tokens": 5},
			}
		}
		records = append(records, base)
	}
	return records
}

// claudeFixture lays out two projects: p1 with sessions s1 (120 messages)
// and s2 (4 messages), and p2 with s3 (2 messages).
func claudeFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	p1 := filepath.Join(root, "-home-dev-p1")
	p2 := filepath.Join(root, "-home-dev-p2")

	writeJSONL(t, filepath.Join(p1, "s1.jsonl"), claudeTranscript("s1", "/home/dev/p1", "Refactor the parser please", 120))
	s2 := claudeTranscript("s2", "/home/dev/p1", "Write tests", 4)
	s2 = append(s2, map[string]any{
		"type": "user", "uuid": "s2-meta", "sessionId": "s2", "timestamp": stamp(50), "isMeta": true,
		"message": map[string]any{"role": "user", "content": "hidden meta"},
	})
	writeJSONL(t, filepath.Join(p1, "s2.jsonl"), s2)
	writeJSONL(t, filepath.Join(p2, "s3.jsonl"), claudeTranscript("s3", "/home/dev/p2", "Deploy the refactor", 2))
	return root
}

func codexRollout(id, cwd, prompt string) []map[string]any {
	return []map[string]any{
		{"timestamp": stamp(0), "type": "session_meta", "payload": map[string]any{
			"id": id, "cwd": cwd, "git": map[string]any{"branch": "dev"},
		}},
		{"timestamp": stamp(1), "type": "turn_context", "payload": map[string]any{"model": "gpt-5-codex", "cwd": cwd}},
		{"timestamp": stamp(2), "type": "response_item", "payload": map[string]any{
			"type": "message", "role": "user",
			"content": []map[string]any{{"type": "input_text", "text": "<environment_context>cwd</environment_context>"}},
		}},
		{"timestamp": stamp(3), "type": "response_item", "payload": map[string]any{
			"type": "message", "role": "developer",
			"content": []map[string]any{{"type": "input_text", "text": "instructions"}},
		}},
		{"timestamp": stamp(4), "type": "response_item", "payload": map[string]any{
			"type": "message", "role": "user",
			"content": []map[string]any{{"type": "input_text", "text": prompt}},
		}},
		{"timestamp": stamp(5), "type": "response_item", "payload": map[string]any{
			"type": "reasoning", "summary": []map[string]any{{"type": "summary_text", "text": "Thinking about it"}},
		}},
		{"timestamp": stamp(6), "type": "response_item", "payload": map[string]any{
			"type": "function_call", "name": "shell", "arguments": `{"command":["ls"]}`, "call_id": "call_1",
		}},
		{"timestamp": stamp(7), "type": "response_item", "payload": map[string]any{
			"type": "function_call_output", "call_id": "call_1", "output": "main.go",
		}},
		{"timestamp": stamp(8), "type": "event_msg", "payload": map[string]any{
			"type": "token_count", "info": map[string]any{
				"total_token_usage": map[string]any{"input_tokens": 100, "output_tokens": 20},
				"last_token_usage":  map[string]any{"input_tokens": 100, "output_tokens": 20},
			},
		}},
		{"timestamp": stamp(9), "type": "response_item", "payload": map[string]any{
			"type": "message", "role": "assistant",
			"content": []map[string]any{{"type": "output_text", "text": "Done listing files"}},
		}},
	}
}

// codexFixture lays out one rollout under YYYY/MM/DD
func codexFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeJSONL(t, filepath.Join(root, "2025", "03", "01", "rollout-2025-03-01T09-00-00-c0ffee01.jsonl"),
		codexRollout("c0ffee01", "/home/dev/svc", "List the files"))
	return root
}

// recordingLauncher captures launches instead of opening terminals
type recordingLauncher struct {
	dir  string
	argv []string
	err  error
}

func (l *recordingLauncher) Launch(_ context.Context, dir string, argv []string) error {
	l.dir, l.argv = dir, argv
	return l.err
}
