// Package config loads claude-history settings from flags, environment,
// an optional config file and defaults, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/strrl/claude-history/pkg/models"
)

// Keys shared by viper, cobra flag bindings and the config file
const (
	KeySource          = "source"
	KeyClaudeDir       = "claude_dir"
	KeyCodexDir        = "codex_dir"
	KeyPageSize        = "page_size"
	KeySearchDebounce  = "search.debounce"
	KeySearchMax       = "search.max_results"
	KeyScrollThreshold = "scroll.threshold"
	KeyResumeMode      = "resume.mode"
	KeyResumeTerminal  = "resume.terminal"
	KeyWatch           = "watch"
	KeyDebug           = "debug"
	KeyDebugFile       = "debug_file"
	KeyMaxLogFiles     = "max_log_files"
)

// EnvPrefix is prepended to every environment variable, e.g.
// CLAUDE_HISTORY_PAGE_SIZE or CLAUDE_HISTORY_SEARCH_DEBOUNCE.
const EnvPrefix = "CLAUDE_HISTORY"

// Resume modes
const (
	ResumeTerminal   = "terminal"
	ResumeForeground = "foreground"
)

// Config holds the resolved settings
type Config struct {
	Source          models.Source
	ClaudeDir       string
	CodexDir        string
	PageSize        int
	SearchDebounce  time.Duration
	MaxResults      int
	ScrollThreshold int
	ResumeMode      string
	ResumeTerminal  string
	Watch           bool
	Debug           bool
	DebugFile       string
	MaxLogFiles     int
}

// New returns a viper instance with defaults, environment binding and the
// config file search path set up. Callers bind their flags before Load.
func New() *viper.Viper {
	v := viper.New()

	home, _ := os.UserHomeDir()
	v.SetDefault(KeySource, string(models.SourceClaude))
	v.SetDefault(KeyClaudeDir, filepath.Join(home, ".claude", "projects"))
	v.SetDefault(KeyCodexDir, filepath.Join(home, ".codex", "sessions"))
	v.SetDefault(KeyPageSize, 50)
	v.SetDefault(KeySearchDebounce, 300*time.Millisecond)
	v.SetDefault(KeySearchMax, 50)
	v.SetDefault(KeyScrollThreshold, 5)
	v.SetDefault(KeyResumeMode, ResumeTerminal)
	v.SetDefault(KeyResumeTerminal, "")
	v.SetDefault(KeyWatch, true)
	v.SetDefault(KeyDebug, false)
	v.SetDefault(KeyDebugFile, "")
	v.SetDefault(KeyMaxLogFiles, 1000)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(home, ".config", "claude-history"))
	return v
}

// Load reads the config file if one exists and returns validated settings
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		Source:          models.Source(strings.ToLower(strings.TrimSpace(v.GetString(KeySource)))),
		ClaudeDir:       expandHome(v.GetString(KeyClaudeDir)),
		CodexDir:        expandHome(v.GetString(KeyCodexDir)),
		PageSize:        v.GetInt(KeyPageSize),
		SearchDebounce:  v.GetDuration(KeySearchDebounce),
		MaxResults:      v.GetInt(KeySearchMax),
		ScrollThreshold: v.GetInt(KeyScrollThreshold),
		ResumeMode:      strings.ToLower(v.GetString(KeyResumeMode)),
		ResumeTerminal:  v.GetString(KeyResumeTerminal),
		Watch:           v.GetBool(KeyWatch),
		Debug:           v.GetBool(KeyDebug),
		DebugFile:       expandHome(v.GetString(KeyDebugFile)),
		MaxLogFiles:     v.GetInt(KeyMaxLogFiles),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the store or provider cannot work with
func (c *Config) Validate() error {
	if _, err := models.ParseSource(string(c.Source)); err != nil {
		return err
	}
	switch c.ResumeMode {
	case ResumeTerminal, ResumeForeground:
	default:
		return fmt.Errorf("unknown resume mode %q (expected terminal or foreground)", c.ResumeMode)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be positive, got %d", c.MaxResults)
	}
	if c.SearchDebounce < 0 {
		return fmt.Errorf("search.debounce must not be negative, got %s", c.SearchDebounce)
	}
	if c.ScrollThreshold < 0 {
		return fmt.Errorf("scroll.threshold must not be negative, got %d", c.ScrollThreshold)
	}
	if c.ClaudeDir == "" || c.CodexDir == "" {
		return fmt.Errorf("claude_dir and codex_dir must be set")
	}
	return nil
}

// Dir returns the transcript directory of source
func (c *Config) Dir(source models.Source) string {
	if source == models.SourceCodex {
		return c.CodexDir
	}
	return c.ClaudeDir
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
