package views

import (
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskboard/internal/coordinator"
	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/ui/keys"
	"github.com/tgienger/taskboard/internal/ui/styles"
)

// Form fields in tab order
const (
	fieldTitle = iota
	fieldDescription
	fieldStatus
	fieldPriority
	fieldDue
	fieldTags
	fieldAttach
	fieldSave
	fieldCount
)

// FormView creates or edits a task
type FormView struct {
	styles *styles.Styles
	keys   keys.KeyMap
	width  int
	height int

	taskID    string // empty for a new task
	knownTags []string
	focusIdx int
	status   models.Status
	priority models.Priority
	err      string

	title       textinput.Model
	description textarea.Model
	due         textinput.Model
	tags        textinput.Model
	attach      textinput.Model
}

func NewFormView() *FormView {
	title := textinput.New()
	title.Placeholder = "Task title"
	title.CharLimit = 200

	desc := textarea.New()
	desc.Placeholder = "Description"
	desc.CharLimit = 2000
	desc.SetWidth(50)
	desc.SetHeight(3)
	desc.ShowLineNumbers = false

	due := textinput.New()
	due.Placeholder = "YYYY-MM-DD or YYYY-MM-DD HH:MM"
	due.CharLimit = 16

	tags := textinput.New()
	tags.Placeholder = "comma, separated"
	tags.CharLimit = 200

	attach := textinput.New()
	attach.Placeholder = "file paths, comma separated"
	attach.CharLimit = 1000

	return &FormView{
		styles:      styles.NewStyles(),
		keys:        keys.DefaultKeyMap(),
		title:       title,
		description: desc,
		due:         due,
		tags:        tags,
		attach:      attach,
	}
}

// StartNew resets the form for a new task in status
func (v *FormView) StartNew(status models.Status) {
	if !status.Valid() {
		status = models.StatusTodo
	}
	v.taskID = ""
	v.status = status
	v.priority = models.PriorityMedium
	v.err = ""
	v.title.Reset()
	v.description.Reset()
	v.due.Reset()
	v.tags.Reset()
	v.attach.Reset()
	v.focus(fieldTitle)
}

// StartEdit fills the form from t
func (v *FormView) StartEdit(t models.Task) {
	v.taskID = t.ID
	v.status = t.Status
	v.priority = t.Priority
	v.err = ""
	v.title.SetValue(t.Title)
	v.description.SetValue(t.Description)
	v.due.Reset()
	if t.DueDate != nil {
		d := t.DueDate.Local()
		layout := models.DueDateLayout + " 15:04"
		if d.Hour() == 0 && d.Minute() == 0 {
			layout = models.DueDateLayout
		}
		v.due.SetValue(d.Format(layout))
	}
	v.tags.SetValue(strings.Join(t.Tags, ", "))
	v.attach.Reset()
	v.focus(fieldTitle)
}

// SetKnownTags sets the tags offered as hints below the tags field
func (v *FormView) SetKnownTags(tags []string) {
	v.knownTags = tags
}

// tagHint lists known tags not yet entered
func (v *FormView) tagHint(width int) string {
	entered := splitList(v.tags.Value())
	var hint []string
	for _, tag := range v.knownTags {
		if !slices.Contains(entered, tag) {
			hint = append(hint, "#"+tag)
		}
	}
	if len(hint) == 0 {
		return ""
	}
	return truncate(strings.Join(hint, " "), width)
}

func (v *FormView) focus(idx int) {
	v.focusIdx = idx
	v.title.Blur()
	v.description.Blur()
	v.due.Blur()
	v.tags.Blur()
	v.attach.Blur()

	switch idx {
	case fieldTitle:
		v.title.Focus()
	case fieldDescription:
		v.description.Focus()
	case fieldDue:
		v.due.Focus()
	case fieldTags:
		v.tags.Focus()
	case fieldAttach:
		v.attach.Focus()
	}
}

func (v *FormView) Init() tea.Cmd {
	return textinput.Blink
}

func (v *FormView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.description.SetWidth(clamp(styles.ContentWidth(v.width)-10, 20, 60))
		return v, nil

	case tea.KeyMsg:
		return v.updateKeys(msg)
	}
	return v, nil
}

func (v *FormView) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		return v, emit(Close{})

	case key.Matches(msg, v.keys.Save):
		return v, v.submit()

	case key.Matches(msg, v.keys.Tab):
		v.focus((v.focusIdx + 1) % fieldCount)
		return v, nil

	case msg.String() == "shift+tab":
		v.focus((v.focusIdx + fieldCount - 1) % fieldCount)
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		switch v.focusIdx {
		case fieldSave:
			return v, v.submit()
		case fieldDescription:
			// newlines go to the textarea
		default:
			v.focus(v.focusIdx + 1)
			return v, nil
		}
	}

	// Selectors take left/right
	switch v.focusIdx {
	case fieldStatus:
		v.status = step(models.Statuses, v.status, msg.String())
		return v, nil
	case fieldPriority:
		v.priority = step(models.Priorities, v.priority, msg.String())
		return v, nil
	}

	var cmd tea.Cmd
	switch v.focusIdx {
	case fieldTitle:
		v.title, cmd = v.title.Update(msg)
	case fieldDescription:
		v.description, cmd = v.description.Update(msg)
	case fieldDue:
		v.due, cmd = v.due.Update(msg)
	case fieldTags:
		v.tags, cmd = v.tags.Update(msg)
	case fieldAttach:
		v.attach, cmd = v.attach.Update(msg)
	}
	return v, cmd
}

// submit checks what the user can get wrong by typing and emits the task
func (v *FormView) submit() tea.Cmd {
	if strings.TrimSpace(v.title.Value()) == "" {
		v.err = "Title is required"
		v.focus(fieldTitle)
		return nil
	}
	due, err := models.ParseDueDate(v.due.Value())
	if err != nil {
		v.err = "Due date must look like 2006-01-02 or 2006-01-02 15:04"
		v.focus(fieldDue)
		return nil
	}
	v.err = ""

	return emit(SubmitTask{
		ID: v.taskID,
		Fields: coordinator.TaskFields{
			Title:       v.title.Value(),
			Description: v.description.Value(),
			Status:      v.status,
			Priority:    v.priority,
			DueDate:     due,
			Tags:        splitList(v.tags.Value()),
		},
		Attach: splitList(v.attach.Value()),
	})
}

// step moves through values with h/l or the arrow keys
func step[T comparable](values []T, current T, k string) T {
	i := slices.Index(values, current)
	switch k {
	case "left", "h":
		i--
	case "right", "l", " ":
		i++
	default:
		return current
	}
	return values[(i+len(values))%len(values)]
}

// View renders the view
func (v *FormView) View() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	inputWidth := clamp(contentWidth-6, 20, 60)

	style := func(idx int) lipgloss.Style {
		if v.focusIdx == idx {
			return s.InputFocused
		}
		return s.Input
	}

	formTitle := "New Task"
	if v.taskID != "" {
		formTitle = "Edit Task"
	}

	btnStyle := s.Button
	if v.focusIdx == fieldSave {
		btnStyle = s.ButtonFocused
	}

	parts := []string{
		s.Title.Render(formTitle),
		"",
		"Title:",
		style(fieldTitle).Width(inputWidth).Render(v.title.View()),
		"Description:",
		style(fieldDescription).Render(v.description.View()),
		"Status:",
		style(fieldStatus).Width(inputWidth).Render(selector(v.status.Label())),
		"Priority:",
		style(fieldPriority).Width(inputWidth).Render(selector(
			lipgloss.NewStyle().Foreground(styles.PriorityColor(v.priority)).Render(string(v.priority)),
		)),
		"Due:",
		style(fieldDue).Width(inputWidth).Render(v.due.View()),
		"Tags:",
		style(fieldTags).Width(inputWidth).Render(v.tags.View()),
	}
	if hint := v.tagHint(inputWidth); hint != "" && v.focusIdx == fieldTags {
		parts = append(parts, s.TitleMuted.Render(hint))
	}
	parts = append(parts,
		"Attach:",
		style(fieldAttach).Width(inputWidth).Render(v.attach.View()),
		"",
		btnStyle.Render(" Save "),
	)
	if v.err != "" {
		parts = append(parts, "", s.InputError.Render(v.err))
	}
	parts = append(parts, "", s.TitleMuted.Render("Tab: next • ←→: change • Ctrl+S: save • Esc: cancel"))

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
	return styles.CenterView(centered, v.width, v.height)
}

func selector(value string) string {
	return "‹ " + value + " ›"
}
