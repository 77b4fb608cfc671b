package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/strrl/claude-history/internal/config"
	"github.com/strrl/claude-history/internal/db"
	"github.com/strrl/claude-history/internal/logging"
	"github.com/strrl/claude-history/internal/orchestrator"
	"github.com/strrl/claude-history/internal/sessions"
	"github.com/strrl/claude-history/internal/tui"
	"github.com/strrl/claude-history/internal/watcher"
)

// app holds what every command needs once flags are parsed
type app struct {
	v        *viper.Viper
	cfg      *config.Config
	db       *sql.DB
	provider *sessions.Provider
	store    *orchestrator.Store
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	a := &app{v: config.New()}

	rootCmd := &cobra.Command{
		Use:   "claude-history",
		Short: "Browse, search and resume Claude Code and Codex sessions",
		Long: `claude-history is a TUI for browsing the session transcripts Claude Code and
Codex keep on disk: page through conversations, search across every session,
see token usage and resume a session where it left off.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		RunE:              a.run(a.runTUI),
	}

	flags := rootCmd.PersistentFlags()
	flags.String("source", "claude", "session source: claude or codex")
	flags.String("claude-dir", "", "Claude projects directory (default ~/.claude/projects)")
	flags.String("codex-dir", "", "Codex sessions directory (default ~/.codex/sessions)")
	flags.Int("page-size", orchestrator.DefaultPageSize, "messages per page")
	flags.String("resume-mode", config.ResumeTerminal, "how the TUI resumes sessions: terminal or foreground")
	flags.String("terminal", "", "terminal emulator to open resumed sessions in")
	flags.Bool("watch", true, "reload when transcripts change on disk")
	flags.Bool("debug", false, "write debug logs")
	flags.String("debug-file", "", "write debug logs to this file")

	for key, flag := range map[string]string{
		config.KeySource:         "source",
		config.KeyClaudeDir:      "claude-dir",
		config.KeyCodexDir:       "codex-dir",
		config.KeyPageSize:       "page-size",
		config.KeyResumeMode:     "resume-mode",
		config.KeyResumeTerminal: "terminal",
		config.KeyWatch:          "watch",
		config.KeyDebug:          "debug",
		config.KeyDebugFile:      "debug-file",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(
		newShowCommand(a),
		newSearchCommand(a),
		newStatsCommand(a),
		newResumeCommand(a),
		newDeleteCommand(a),
		newDebugCommand(a),
	)

	return rootCmd
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if _, err := logging.Initialize(cfg.Debug, cfg.DebugFile, cfg.MaxLogFiles); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	database, err := db.Open(db.DefaultMaxConns)
	if err != nil {
		return err
	}
	a.db = database

	var launcher sessions.Launcher = sessions.NewTerminalLauncher(cfg.ResumeTerminal)
	if cfg.ResumeMode == config.ResumeForeground {
		launcher = sessions.NewForegroundLauncher()
	}
	a.provider = sessions.NewProvider(database, sessions.Config{
		ClaudeDir: cfg.ClaudeDir,
		CodexDir:  cfg.CodexDir,
		Launcher:  launcher,
		Logger:    logging.Logger,
	})
	a.store = orchestrator.New(a.provider,
		orchestrator.WithLogger(logging.Logger),
		orchestrator.WithSource(cfg.Source),
		orchestrator.WithPageSize(cfg.PageSize),
		orchestrator.WithSearchDebounce(cfg.SearchDebounce),
		orchestrator.WithMaxResults(cfg.MaxResults),
	)

	logging.Logger.Info("Starting", "command", cmd.Name(), "source", cfg.Source,
		"claude_dir", cfg.ClaudeDir, "codex_dir", cfg.CodexDir)
	return nil
}

// run wraps a command so the store and database are released when it returns
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer a.close()
		return fn(cmd, args)
	}
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	logging.Close()
}

func (a *app) runTUI(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	opts := tui.Options{
		ScrollThreshold: a.cfg.ScrollThreshold,
		Foreground:      a.cfg.ResumeMode == config.ResumeForeground,
	}

	var w *watcher.Watcher
	if a.cfg.Watch {
		attach, onSource := a.watch(ctx, &w)
		opts.Attach = attach
		opts.OnSourceChange = onSource
	}

	result, err := tui.Run(a.store, opts)
	if w != nil {
		w.Close()
	}
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	if result.Resume.IsZero() {
		return nil
	}
	a.provider.SetLauncher(sessions.NewForegroundLauncher())
	return a.provider.ResumeSession(cmd.Context(), a.store.Source(), result.Resume, result.Dir)
}
