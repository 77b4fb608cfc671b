package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strrl/claude-history/internal/db"
)

func requireDuckDB(t *testing.T) {
	t.Helper()
	database, err := db.Open(1)
	if err != nil {
		t.Skipf("Skipping test, DuckDB unavailable: %v", err)
	}
	database.Close()
}

// writeProjects creates one Claude project, web, holding session s1 with
// six alternating messages.
func writeProjects(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "projects")
	dir := filepath.Join(root, "-home-dev-web")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	f, err := os.Create(filepath.Join(dir, "s1.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	enc := json.NewEncoder(f)
	for i := 0; i < 6; i++ {
		record := map[string]any{
			"uuid":      fmt.Sprintf("s1-%d", i),
			"sessionId": "s1",
			"timestamp": start.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
			"cwd":       "/home/dev/web",
			"gitBranch": "main",
		}
		if i%2 == 0 {
			record["type"] = "user"
			record["message"] = map[string]any{"role": "user", "content": fmt.Sprintf("find the needle %d", i)}
		} else {
			record["type"] = "assistant"
			record["message"] = map[string]any{
				"id":      fmt.Sprintf("msg_%d", i),
				"role":    "assistant",
				"model":   "claude-sonnet-4",
				"content": []map[string]any{{"type": "text", "text": fmt.Sprintf("reply %d", i)}},
				"usage":   map[string]any{"input_tokens": 10, "output_tokens": 5},
			}
		}
		require.NoError(t, enc.Encode(record))
	}
	return root
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestShowProjectsAndSessions(t *testing.T) {
	requireDuckDB(t)
	root := writeProjects(t)

	out, err := execute(t, "show", "--claude-dir", root)
	require.NoError(t, err)
	assert.Contains(t, out, "1. web")
	assert.Contains(t, out, "Path: /home/dev/web")
	assert.Contains(t, out, "Sessions: 1")

	out, err = execute(t, "show", "web", "--claude-dir", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Session ID: s1")
	assert.Contains(t, out, "Branch: main")
	assert.Contains(t, out, "First Prompt: find the needle 0")
}

func TestShowMessagesPaged(t *testing.T) {
	requireDuckDB(t)
	root := writeProjects(t)

	out, err := execute(t, "show", "/home/dev/web", "s1", "--page-size", "4", "--claude-dir", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Messages 1-4 of 6")
	assert.Contains(t, out, "(more with --page 1)")

	out, err = execute(t, "show", "web", "s1", "--page-size", "4", "--page", "1", "--claude-dir", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Messages 5-6 of 6")
	assert.Contains(t, out, "reply 5")
	assert.NotContains(t, out, "more with")
}

func TestShowUnknownProject(t *testing.T) {
	requireDuckDB(t)
	root := writeProjects(t)

	_, err := execute(t, "show", "nope", "--claude-dir", root)
	assert.ErrorContains(t, err, "project 'nope' not found")

	_, err = execute(t, "show", "web", "missing", "--claude-dir", root)
	assert.ErrorContains(t, err, "session 'missing' not found")
}

func TestSearchCommand(t *testing.T) {
	requireDuckDB(t)
	root := writeProjects(t)

	out, err := execute(t, "search", "NEEDLE", "--limit", "2", "--claude-dir", root)
	require.NoError(t, err)
	assert.Contains(t, out, `2 results for "NEEDLE"`)
	assert.Contains(t, out, "web / s1")

	out, err = execute(t, "search", "haystack", "--claude-dir", root)
	require.NoError(t, err)
	assert.Contains(t, out, `No results for "haystack"`)
}

func TestStatsCommand(t *testing.T) {
	requireDuckDB(t)
	root := writeProjects(t)

	out, err := execute(t, "stats", "--claude-dir", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Total tokens:  45")
	assert.Contains(t, out, "claude-sonnet-4")
	assert.Contains(t, out, "2025-03-01")
}

func TestDeleteWithoutPrompt(t *testing.T) {
	requireDuckDB(t)
	root := writeProjects(t)

	out, err := execute(t, "delete", "web", "s1", "--yes", "--claude-dir", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted session s1")

	_, err = os.Stat(filepath.Join(root, "-home-dev-web", "s1.jsonl"))
	assert.True(t, os.IsNotExist(err))
}

func TestDebugSessionCommand(t *testing.T) {
	requireDuckDB(t)
	root := writeProjects(t)

	out, err := execute(t, "debug-session", "web", "s1", "--claude-dir", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Debugging session: s1")
	assert.Contains(t, out, filepath.Join(root, "-home-dev-web", "s1.jsonl"))
	assert.Contains(t, out, "--- Message 1 ---")
}
