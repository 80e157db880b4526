package cli

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tgienger/taskboard/internal/projection"
	"github.com/tgienger/taskboard/internal/repository"
	"github.com/tgienger/taskboard/internal/ui"
)

// runBoard opens the interactive board and blocks until it exits
func runBoard(ctx context.Context, opts *RootOptions) error {
	s, err := openSession(opts)
	if err != nil {
		return err
	}
	defer s.Close()

	projector := projection.NewProjector(s.repo, s.savedCriteria(ctx))
	defer projector.Close()

	app := ui.NewApp(ui.Options{
		Context:      ctx,
		Coordinator:  s.coord,
		Associations: s.assoc,
		Projector:    projector,
		Toasts:       s.toasts,
		User:         s.cfg.User,
		SaveCriteria: s.saveCriteria,
		KnownTags:    s.db.ListTags,
		Log:          s.log,
	})
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))

	// Sends happen off the event loop: views are regenerated by commands
	// and by Update itself
	unsubscribe := projector.Subscribe(func(projection.View) {
		go p.Send(ui.ViewChanged{})
	})
	defer unsubscribe()
	// Comments and attachments are not part of the projection
	unwatch := s.repo.Subscribe(func(c repository.Change) {
		if c.Kind != repository.KindTask && c.Op != repository.OpBatch {
			go p.Send(ui.ViewChanged{})
		}
	})
	defer unwatch()
	s.toasts.OnChange = func() {
		go p.Send(ui.ToastsChanged{})
	}

	_, err = p.Run()
	return err
}
