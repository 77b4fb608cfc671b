package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strrl/claude-history/pkg/models"
)

// isolate points HOME at an empty directory so a developer's config file
// does not leak into the test
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, models.SourceClaude, cfg.Source)
	assert.Equal(t, filepath.Join(home, ".claude", "projects"), cfg.ClaudeDir)
	assert.Equal(t, filepath.Join(home, ".codex", "sessions"), cfg.CodexDir)
	assert.Equal(t, 50, cfg.PageSize)
	assert.Equal(t, 300*time.Millisecond, cfg.SearchDebounce)
	assert.Equal(t, 50, cfg.MaxResults)
	assert.Equal(t, 5, cfg.ScrollThreshold)
	assert.Equal(t, ResumeTerminal, cfg.ResumeMode)
	assert.True(t, cfg.Watch)
	assert.False(t, cfg.Debug)
	assert.Equal(t, 1000, cfg.MaxLogFiles)
}

func TestLoadPrecedence(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, ".config", "claude-history")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
source: codex
page_size: 20
codex_dir: ~/rollouts
search:
  debounce: 150ms
resume:
  mode: foreground
`), 0o644))
	t.Setenv("CLAUDE_HISTORY_PAGE_SIZE", "30")

	v := New()
	v.Set(KeySource, "claude")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, models.SourceClaude, cfg.Source, "explicit values beat the file")
	assert.Equal(t, 30, cfg.PageSize, "environment beats the file")
	assert.Equal(t, filepath.Join(home, "rollouts"), cfg.CodexDir)
	assert.Equal(t, 150*time.Millisecond, cfg.SearchDebounce)
	assert.Equal(t, ResumeForeground, cfg.ResumeMode)
}

func TestLoadInvalidFile(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, ".config", "claude-history")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("source: [unclosed"), 0o644))

	_, err := Load(New())
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Source:     models.SourceClaude,
			ClaudeDir:  "/c",
			CodexDir:   "/x",
			PageSize:   50,
			MaxResults: 50,
			ResumeMode: ResumeTerminal,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"unknown source", func(c *Config) { c.Source = "gemini" }, false},
		{"unknown resume mode", func(c *Config) { c.ResumeMode = "tmux" }, false},
		{"zero page size", func(c *Config) { c.PageSize = 0 }, false},
		{"negative max results", func(c *Config) { c.MaxResults = -1 }, false},
		{"negative debounce", func(c *Config) { c.SearchDebounce = -time.Second }, false},
		{"missing dir", func(c *Config) { c.CodexDir = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			if tt.ok {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestDir(t *testing.T) {
	cfg := Config{ClaudeDir: "/c", CodexDir: "/x"}
	assert.Equal(t, "/c", cfg.Dir(models.SourceClaude))
	assert.Equal(t, "/x", cfg.Dir(models.SourceCodex))
}
