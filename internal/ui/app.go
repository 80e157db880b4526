package ui

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskboard/internal/association"
	"github.com/tgienger/taskboard/internal/coordinator"
	"github.com/tgienger/taskboard/internal/gateway"
	"github.com/tgienger/taskboard/internal/notify"
	"github.com/tgienger/taskboard/internal/projection"
	"github.com/tgienger/taskboard/internal/ui/keys"
	"github.com/tgienger/taskboard/internal/ui/styles"
	"github.com/tgienger/taskboard/internal/ui/views"
)

// Currently active screen
type Screen int

const (
	ScreenBoard Screen = iota
	ScreenList
	ScreenForm
	ScreenDetail
)

// ViewChanged tells the app the working set or the projection changed
type ViewChanged struct{}

// ToastsChanged tells the app a notification was queued
type ToastsChanged struct{}

type loadedMsg struct{ err error }

type doneMsg struct{ err error }

type tickMsg time.Time

type tagsMsg []string

// Options wires the app to the core
type Options struct {
	Context      context.Context
	Coordinator  *coordinator.Coordinator
	Associations *association.Manager
	Projector    *projection.Projector
	Toasts       *notify.Queue
	User         string
	SaveCriteria func(context.Context, projection.Criteria) error
	KnownTags    func(context.Context) ([]string, error) // tag hints for the form, optional
	Log          *slog.Logger
}

type App struct {
	ctx    context.Context
	coord  *coordinator.Coordinator
	assoc  *association.Manager
	proj   *projection.Projector
	toasts *notify.Queue
	save   func(context.Context, projection.Criteria) error
	tags   func(context.Context) ([]string, error)
	log    *slog.Logger
	styles *styles.Styles
	keys   keys.KeyMap

	screen   Screen
	layout   Screen // board or list, where Close returns to
	returnTo Screen

	board  *views.BoardView
	list   *views.ListView
	form   *views.FormView
	detail *views.DetailView

	width   int
	height  int
	loading bool
	ticking bool
}

// NewApp creates the application
func NewApp(opts Options) *App {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Toasts == nil {
		opts.Toasts = notify.NewQueue()
	}

	a := &App{
		ctx:    opts.Context,
		coord:  opts.Coordinator,
		assoc:  opts.Associations,
		proj:   opts.Projector,
		toasts: opts.Toasts,
		save:   opts.SaveCriteria,
		tags:   opts.KnownTags,
		log:    opts.Log.With("component", "ui"),
		styles: styles.NewStyles(),
		keys:   keys.DefaultKeyMap(),
		screen: ScreenBoard,
		layout: ScreenBoard,
		list:   views.NewListView(),
		form:   views.NewFormView(),
		detail: views.NewDetailView(opts.User),
	}
	a.board = views.NewBoardView(func(id string) bool {
		return a.coord.State(id) == coordinator.StatePending
	})
	a.refresh()
	return a
}

func (a *App) Init() tea.Cmd {
	a.loading = true
	return a.load
}

func (a *App) load() tea.Msg {
	return loadedMsg{err: a.coord.Load(a.ctx)}
}

// Screen returns the active screen
func (a *App) Screen() Screen {
	return a.screen
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		// Leave room for the toast footer
		inner := tea.WindowSizeMsg{Width: msg.Width, Height: max(msg.Height-2, 0)}
		a.height = msg.Height
		a.board.Update(inner)
		a.list.Update(inner)
		a.form.Update(inner)
		a.detail.Update(inner)
		return a, nil

	case loadedMsg:
		a.loading = false
		a.refresh()
		return a, nil

	case ViewChanged:
		a.refresh()
		return a, nil

	case ToastsChanged:
		return a, a.startTicking()

	case tea.KeyMsg:
		if key.Matches(msg, a.keys.Dismiss) {
			a.dismissNewest()
			return a, nil
		}

	case tagsMsg:
		a.form.SetKnownTags(msg)
		return a, nil

	case tickMsg:
		if len(a.toasts.Active(time.Time(msg))) == 0 {
			a.ticking = false
			return a, nil
		}
		return a, tick()

	case doneMsg:
		a.report(msg.err)
		a.refresh()
		return a, nil

	case views.SwitchLayout:
		if a.layout == ScreenBoard {
			a.layout = ScreenList
		} else {
			a.layout = ScreenBoard
		}
		a.screen = a.layout
		return a, nil

	case views.Close:
		a.screen = a.returnTo
		if a.screen == ScreenDetail {
			a.returnTo = a.layout
		}
		return a, nil

	case views.OpenTask:
		return a, a.openDetail(msg.ID)

	case views.NewTask:
		a.form.StartNew(msg.Status)
		a.returnTo = a.screen
		a.screen = ScreenForm
		return a, tea.Batch(a.form.Init(), a.loadTags())

	case views.EditTask:
		task, ok := a.coord.Repository().Tasks.Get(msg.ID)
		if !ok {
			return a, nil
		}
		a.form.StartEdit(task)
		a.returnTo = a.screen
		a.screen = ScreenForm
		return a, tea.Batch(a.form.Init(), a.loadTags())

	case views.SubmitTask:
		a.screen = a.returnTo
		if a.screen == ScreenDetail {
			a.returnTo = a.layout
		}
		return a, a.submit(msg)

	case views.MoveTask:
		return a, a.run(func(ctx context.Context) error {
			_, err := a.coord.MoveTask(ctx, msg.ID, msg.Status)
			return err
		})

	case views.DeleteTask:
		if a.screen == ScreenDetail && a.detail.TaskID() == msg.ID {
			a.screen = a.layout
		}
		return a, a.run(func(ctx context.Context) error {
			return a.coord.DeleteTask(ctx, msg.ID)
		})

	case views.ChangeCriteria:
		if err := a.proj.SetCriteria(msg.Criteria); err != nil {
			a.toasts.Failed(err.Error())
			return a, nil
		}
		a.refresh()
		return a, a.saveCriteria(msg.Criteria)

	case views.AddComment:
		return a, a.run(func(ctx context.Context) error {
			_, err := a.coord.AddComment(ctx, msg.TaskID, msg.Text)
			return err
		})

	case views.DeleteComment:
		return a, a.run(func(ctx context.Context) error {
			return a.coord.DeleteComment(ctx, msg.ID)
		})

	case views.AttachFiles:
		return a, a.run(func(ctx context.Context) error {
			uploads := a.readUploads(msg.Paths)
			if len(uploads) == 0 {
				return nil
			}
			_, err := a.assoc.AttachToTask(ctx, msg.TaskID, uploads)
			return err
		})

	case views.DeleteAttachment:
		return a, a.run(func(ctx context.Context) error {
			return a.coord.DeleteAttachment(ctx, msg.ID)
		})
	}

	var cmd tea.Cmd
	switch a.screen {
	case ScreenBoard:
		_, cmd = a.board.Update(msg)
	case ScreenList:
		_, cmd = a.list.Update(msg)
	case ScreenForm:
		_, cmd = a.form.Update(msg)
	case ScreenDetail:
		_, cmd = a.detail.Update(msg)
	}
	return a, cmd
}

// refresh pulls the current projection and detail data into the views
func (a *App) refresh() {
	view := a.proj.View()
	a.board.SetView(view)
	a.list.SetView(view)

	if a.screen != ScreenDetail {
		return
	}
	data, ok := a.detailData(a.detail.TaskID())
	if !ok {
		// Deleted, or its create was rolled back
		a.screen = a.layout
		return
	}
	a.detail.SetData(data)
}

func (a *App) detailData(id string) (views.DetailData, bool) {
	task, ok := a.coord.Repository().Tasks.Get(id)
	if !ok {
		return views.DetailData{}, false
	}
	return views.DetailData{
		Task:        task,
		Comments:    a.coord.Comments(id),
		Attachments: a.coord.Attachments(id),
		Pending:     a.coord.State(id) == coordinator.StatePending,
	}, true
}

func (a *App) openDetail(id string) tea.Cmd {
	data, ok := a.detailData(id)
	if !ok {
		return nil
	}
	a.detail.SetData(data)
	a.returnTo = a.layout
	a.screen = ScreenDetail
	if coordinator.IsProvisional(id) {
		return nil
	}
	return a.run(func(ctx context.Context) error {
		if _, err := a.coord.LoadComments(ctx, id); err != nil {
			return err
		}
		_, err := a.coord.LoadAttachments(ctx, id)
		return err
	})
}

func (a *App) submit(msg views.SubmitTask) tea.Cmd {
	return a.run(func(ctx context.Context) error {
		uploads := a.readUploads(msg.Attach)

		if msg.ID == "" {
			if len(uploads) == 0 {
				_, err := a.coord.CreateTask(ctx, msg.Fields)
				return err
			}
			_, err := a.assoc.CreateTaskWithAttachments(ctx, msg.Fields, uploads)
			return err
		}

		if _, err := a.coord.UpdateTask(ctx, msg.ID, msg.Fields); err != nil {
			return err
		}
		if len(uploads) > 0 {
			_, err := a.assoc.AttachToTask(ctx, msg.ID, uploads)
			return err
		}
		return nil
	})
}

// readUploads reads every readable path. Unreadable ones are reported and
// skipped.
func (a *App) readUploads(paths []string) []gateway.Upload {
	var uploads []gateway.Upload
	for _, path := range paths {
		u, err := gateway.UploadFromFile(path)
		if err != nil {
			a.toasts.Failed("Failed to read " + path + ": " + err.Error())
			continue
		}
		uploads = append(uploads, u)
	}
	return uploads
}

// run executes a core operation off the event loop
func (a *App) run(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return doneMsg{err: fn(a.ctx)}
	}
}

// report shows errors the core did not already announce: validation and
// local failures. Store failures were notified by the coordinator.
func (a *App) report(err error) {
	if err == nil {
		return
	}
	var gerr *gateway.Error
	if errors.As(err, &gerr) {
		return
	}
	a.log.Debug("operation refused", "error", err)
	if msg := capitalize(err.Error()); msg != "" {
		a.toasts.Failed(msg)
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return strings.ToUpper(string(r)) + s[size:]
}

// dismissNewest closes the most recent visible notification
func (a *App) dismissNewest() {
	active := a.toasts.Active(time.Now())
	if len(active) > 0 {
		a.toasts.Dismiss(active[len(active)-1].ID)
	}
}

func (a *App) loadTags() tea.Cmd {
	if a.tags == nil {
		return nil
	}
	return func() tea.Msg {
		tags, err := a.tags(a.ctx)
		if err != nil {
			a.log.Warn("load tags", "error", err)
			return nil
		}
		return tagsMsg(tags)
	}
}

func (a *App) saveCriteria(c projection.Criteria) tea.Cmd {
	if a.save == nil {
		return nil
	}
	return func() tea.Msg {
		if err := a.save(a.ctx, c); err != nil {
			a.log.Warn("save filter", "error", err)
		}
		return nil
	}
}

func (a *App) startTicking() tea.Cmd {
	if a.ticking {
		return nil
	}
	a.ticking = true
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (a *App) View() string {
	var body string
	switch {
	case a.loading:
		body = a.styles.TitleMuted.Render("Loading...")
	case a.screen == ScreenList:
		body = a.list.View()
	case a.screen == ScreenForm:
		body = a.form.View()
	case a.screen == ScreenDetail:
		body = a.detail.View()
	default:
		body = a.board.View()
	}

	footer := a.renderToasts()
	if footer == "" {
		return body
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, footer)
}

// renderToasts shows the newest notifications, errors in red
func (a *App) renderToasts() string {
	active := a.toasts.Active(time.Now())
	if len(active) == 0 {
		return ""
	}
	if len(active) > 2 {
		active = active[len(active)-2:]
	}
	lines := make([]string, len(active))
	for i, t := range active {
		style := a.styles.ToastSuccess
		if t.Level == notify.LevelError {
			style = a.styles.ToastError
		}
		lines[i] = style.Render(t.Message)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
