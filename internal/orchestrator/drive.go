package orchestrator

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Drive runs cmd and every follow-up command the Store returns until there is
// nothing left to do. Batches run in order. It is meant for callers that do
// not own a bubbletea program, such as one-shot CLI commands.
func Drive(ctx context.Context, s *Store, cmd tea.Cmd) error {
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}

		msg := next()
		switch msg := msg.(type) {
		case nil:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			queue = append(queue, s.Update(msg))
		}
	}
	return nil
}
