package sessions

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"

	"github.com/strrl/claude-history/internal/orchestrator"
)

// Launcher starts a resume command in dir
type Launcher interface {
	Launch(ctx context.Context, dir string, argv []string) error
}

// ForegroundLauncher runs the command attached to the current terminal and
// waits for it to exit. It must not be used while a TUI owns the terminal.
type ForegroundLauncher struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewForegroundLauncher attaches to the process's standard streams
func NewForegroundLauncher() *ForegroundLauncher {
	return &ForegroundLauncher{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Launch runs argv in dir
func (l *ForegroundLauncher) Launch(ctx context.Context, dir string, argv []string) error {
	cmd := exec.CommandContext(ctx, resolveExecutable(argv[0]), argv[1:]...)
	cmd.Dir = dir
	cmd.Stdin = l.Stdin
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(orchestrator.ErrIO, "run %s: %v", argv[0], err)
	}
	return nil
}

// TerminalLauncher opens a new terminal window running the command. The
// window outlives this process.
type TerminalLauncher struct {
	// Terminal overrides emulator detection on Linux
	Terminal string
	GOOS     string

	lookPath func(string) (string, error)
	start    func(*exec.Cmd) error
}

// NewTerminalLauncher detects the platform's terminal
func NewTerminalLauncher(terminal string) *TerminalLauncher {
	return &TerminalLauncher{
		Terminal: terminal,
		GOOS:     runtime.GOOS,
		lookPath: exec.LookPath,
		start:    startDetached,
	}
}

// Launch opens a terminal in dir running argv
func (l *TerminalLauncher) Launch(_ context.Context, dir string, argv []string) error {
	candidates := l.commands(dir, argv)
	var tried []string
	for _, c := range candidates {
		if _, err := l.lookPath(c[0]); err != nil {
			tried = append(tried, c[0])
			continue
		}
		cmd := exec.Command(c[0], c[1:]...)
		if l.GOOS == "windows" {
			cmd.Dir = dir
		}
		if err := l.start(cmd); err != nil {
			tried = append(tried, c[0])
			continue
		}
		return nil
	}
	return errors.Wrapf(orchestrator.ErrIO, "no supported terminal emulator found (tried %s)", strings.Join(tried, ", "))
}

// commands lists the launch commands to try in order
func (l *TerminalLauncher) commands(dir string, argv []string) [][]string {
	line := shellJoin(argv)
	switch l.GOOS {
	case "darwin":
		script := fmt.Sprintf(`tell application "Terminal" to do script "cd %s && %s"`,
			appleScriptEscape(shellQuote(dir)), appleScriptEscape(line))
		return [][]string{{"osascript", "-e", script}}
	case "windows":
		return [][]string{append([]string{"cmd", "/c", "start", "", "/d", dir, "cmd", "/k"}, argv...)}
	}

	script := fmt.Sprintf("cd %s && %s; exec bash", shellQuote(dir), line)
	all := map[string][]string{
		"gnome-terminal": {"gnome-terminal", "--working-directory=" + dir, "--", "bash", "-c", script},
		"konsole":        {"konsole", "--workdir", dir, "-e", "bash", "-c", script},
		"xfce4-terminal": {"xfce4-terminal", "--working-directory=" + dir, "-x", "bash", "-c", script},
		"xterm":          {"xterm", "-e", "bash", "-c", script},
	}
	order := []string{"gnome-terminal", "konsole", "xfce4-terminal", "xterm"}

	var out [][]string
	if l.Terminal != "" {
		if c, ok := all[l.Terminal]; ok {
			out = append(out, c)
		} else {
			out = append(out, []string{l.Terminal, "-e", "bash", "-c", script})
		}
	}
	for _, name := range order {
		if name != l.Terminal {
			out = append(out, all[name])
		}
	}
	return out
}

func startDetached(cmd *exec.Cmd) error {
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

// resolveExecutable finds a CLI that may not be on PATH
func resolveExecutable(name string) string {
	if _, err := exec.LookPath(name); err == nil {
		return name
	}

	homeDir, _ := os.UserHomeDir()
	possiblePaths := []string{
		filepath.Join(homeDir, "."+name, "local", name),
		filepath.Join("/usr/local/bin", name),
		filepath.Join("/opt/homebrew/bin", name),
	}
	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return name
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func shellJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

func appleScriptEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
