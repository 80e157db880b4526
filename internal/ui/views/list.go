package views

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/projection"
	"github.com/tgienger/taskboard/internal/ui/keys"
	"github.com/tgienger/taskboard/internal/ui/styles"
)

type taskItem struct {
	task models.Task
}

func (i taskItem) Title() string       { return i.task.Title }
func (i taskItem) Description() string { return i.task.Description }
func (i taskItem) FilterValue() string { return i.task.Title }

type taskDelegate struct {
	styles *styles.Styles
	width  int
	now    func() time.Time
}

func (d taskDelegate) Height() int                               { return 2 }
func (d taskDelegate) Spacing() int                              { return 1 }
func (d taskDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d taskDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(taskItem)
	if !ok {
		return
	}
	t := it.task

	selected := index == m.Index()
	width := max(d.width-4, 20)

	var titleStyle, metaStyle lipgloss.Style
	if selected {
		titleStyle = d.styles.ListSelected.Width(width)
		metaStyle = d.styles.ListSelected.Foreground(styles.Current.ForegroundDim).Width(width)
	} else {
		titleStyle = d.styles.ListItem.Width(width)
		metaStyle = d.styles.ListItem.Foreground(styles.Current.ForegroundDim).Width(width)
	}

	meta := []string{t.Status.Label(), string(t.Priority)}
	if label := DueLabel(t.DueDate, t.Status, d.now()); label != "" {
		meta = append(meta, label)
	}
	if len(t.Tags) > 0 {
		meta = append(meta, "#"+strings.Join(t.Tags, " #"))
	}

	fmt.Fprintf(w, "%s\n%s", titleStyle.Render(truncate(t.Title, width-4)), metaStyle.Render(strings.Join(meta, " • ")))
}

// ListView shows the filtered tasks as one flat list in working-set order
type ListView struct {
	list     list.Model
	delegate *taskDelegate
	styles   *styles.Styles
	keys     keys.KeyMap
	criteria projection.Criteria
	width    int
	height   int

	confirmingDelete bool
	deleteTarget     models.Task

	// Help popup (shown with ?)
	showHelpPopup bool
}

func NewListView() *ListView {
	s := styles.NewStyles()

	// Setup custom delegate
	delegate := &taskDelegate{styles: s, width: 80, now: time.Now}

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "All Tasks"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	l.Styles.Title = s.Title
	l.SetShowHelp(false)

	return &ListView{
		list:     l,
		delegate: delegate,
		styles:   s,
		keys:     keys.DefaultKeyMap(),
		criteria: projection.DefaultCriteria(),
	}
}

// SetView replaces the listed tasks
func (v *ListView) SetView(view projection.View) {
	v.criteria = view.Criteria
	items := make([]list.Item, len(view.List))
	for i, t := range view.List {
		items[i] = taskItem{task: t}
	}
	v.list.SetItems(items)
}

// Selected returns the highlighted task
func (v *ListView) Selected() (models.Task, bool) {
	if item, ok := v.list.SelectedItem().(taskItem); ok {
		return item.task, true
	}
	return models.Task{}, false
}

func (v *ListView) Init() tea.Cmd {
	return nil
}

func (v *ListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		// Use content width (capped at MaxWidth) for internal layout
		contentWidth := styles.ContentWidth(msg.Width)
		v.delegate.width = contentWidth
		v.list.SetSize(contentWidth-4, msg.Height-6)
		return v, nil

	case tea.KeyMsg:
		// Handle help popup first - any key closes it
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}

		if v.confirmingDelete {
			switch msg.String() {
			case "y", "Y":
				v.confirmingDelete = false
				return v, emit(DeleteTask{ID: v.deleteTarget.ID})
			case "n", "N", "esc":
				v.confirmingDelete = false
			}
			return v, nil
		}

		switch {
		case key.Matches(msg, v.keys.Quit):
			return v, tea.Quit
		case key.Matches(msg, v.keys.Tab), key.Matches(msg, v.keys.Back):
			return v, emit(SwitchLayout{})
		case key.Matches(msg, v.keys.New):
			return v, emit(NewTask{})
		case key.Matches(msg, v.keys.Help):
			v.showHelpPopup = true
			return v, nil
		case key.Matches(msg, v.keys.StatusFilter):
			c := v.criteria
			c.Status = cycle(c.Status, models.Statuses)
			return v, emit(ChangeCriteria{Criteria: c})
		case key.Matches(msg, v.keys.PriorityFilter):
			c := v.criteria
			c.Priority = cycle(c.Priority, models.Priorities)
			return v, emit(ChangeCriteria{Criteria: c})
		case key.Matches(msg, v.keys.Enter):
			if t, ok := v.Selected(); ok {
				return v, emit(OpenTask{ID: t.ID})
			}
		case key.Matches(msg, v.keys.Edit):
			if t, ok := v.Selected(); ok {
				return v, emit(EditTask{ID: t.ID})
			}
		case key.Matches(msg, v.keys.Delete):
			if t, ok := v.Selected(); ok {
				v.confirmingDelete = true
				v.deleteTarget = t
				return v, nil
			}
		}
	}

	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return v, cmd
}

// View renders the view
func (v *ListView) View() string {
	s := v.styles
	if v.showHelpPopup {
		return renderHelpPopup(s, []key.Binding{
			v.keys.Up, v.keys.Down, v.keys.Enter, v.keys.New, v.keys.Edit, v.keys.Delete,
			v.keys.StatusFilter, v.keys.PriorityFilter, v.keys.Tab, v.keys.Quit,
		}, v.width, v.height)
	}
	if v.confirmingDelete {
		return renderDeleteConfirm(s, "Delete Task?", v.deleteTarget.Title, v.width, v.height)
	}

	if len(v.list.Items()) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			s.Title.Render("All Tasks"),
			"",
			s.TitleMuted.Render("No tasks match. Press 'n' to create one or 's'/'p' to change the filter."),
		)
		return styles.CenterView(content, v.width, v.height)
	}

	help := s.Help.Render(
		fmt.Sprintf("%s open • %s new • %s edit • %s del • %s status • %s priority • %s board • %s quit",
			s.HelpKey.Render("↵"),
			s.HelpKey.Render("n"),
			s.HelpKey.Render("e"),
			s.HelpKey.Render("d"),
			s.HelpKey.Render("s"),
			s.HelpKey.Render("p"),
			s.HelpKey.Render("tab"),
			s.HelpKey.Render("q"),
		),
	)
	return styles.CenterView(v.list.View()+"\n"+help, v.width, v.height)
}
