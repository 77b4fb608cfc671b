package commands

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/strrl/claude-history/internal/logging"
	"github.com/strrl/claude-history/internal/watcher"
	"github.com/strrl/claude-history/pkg/models"
)

// watch returns the TUI hooks that start the transcript watcher once the
// program exists and re-root it when the source changes. The watcher is
// stored in *w so the caller can close it.
func (a *app) watch(ctx context.Context, w **watcher.Watcher) (func(func(tea.Msg)), func(models.Source)) {
	attach := func(send func(tea.Msg)) {
		fw, err := watcher.New(send, logging.Logger)
		if err != nil {
			logging.Logger.Warn("Transcript watcher disabled", "error", err)
			return
		}
		if err := fw.Watch(a.cfg.Dir(a.store.Source())); err != nil {
			logging.Logger.Warn("Failed to watch transcripts", "error", err)
		}
		*w = fw
		go fw.Run(ctx)
	}

	onSource := func(source models.Source) {
		if *w == nil {
			return
		}
		if err := (*w).Watch(a.cfg.Dir(source)); err != nil {
			logging.Logger.Warn("Failed to watch transcripts", "source", source, "error", err)
		}
	}
	return attach, onSource
}
