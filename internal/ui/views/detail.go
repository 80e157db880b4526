package views

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/ui/keys"
	"github.com/tgienger/taskboard/internal/ui/styles"
)

// DetailData is what the detail view shows about one task
type DetailData struct {
	Task        models.Task
	Comments    []models.Comment
	Attachments []models.Attachment
	Pending     bool // the last change to the task has not been confirmed
}

// DetailView shows one task with its attachments and comments
type DetailView struct {
	styles *styles.Styles
	keys   keys.KeyMap
	user   string
	now    func() time.Time
	width  int
	height int

	data     DetailData
	viewport viewport.Model

	commentInput        textarea.Model
	commentInputFocused bool
	attachInput         textinput.Model
	attachInputFocused  bool

	confirmingDelete bool
}

// NewDetailView creates a detail view acting as user
func NewDetailView(user string) *DetailView {
	commentInput := textarea.New()
	commentInput.Placeholder = "Add a comment..."
	commentInput.CharLimit = 2000
	commentInput.SetWidth(50)
	commentInput.SetHeight(3)
	commentInput.ShowLineNumbers = false

	attachInput := textinput.New()
	attachInput.Placeholder = "file paths, comma separated"
	attachInput.CharLimit = 1000

	return &DetailView{
		styles:       styles.NewStyles(),
		keys:         keys.DefaultKeyMap(),
		user:         user,
		now:          time.Now,
		viewport:     viewport.New(80, 20),
		commentInput: commentInput,
		attachInput:  attachInput,
	}
}

// TaskID returns the task being shown
func (v *DetailView) TaskID() string {
	return v.data.Task.ID
}

// SetData replaces what is shown. Comments are listed newest first.
func (v *DetailView) SetData(d DetailData) {
	d.Comments = slices.Clone(d.Comments)
	slices.SortStableFunc(d.Comments, func(a, b models.Comment) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if v.data.Task.ID != d.Task.ID {
		v.viewport.GotoTop()
		v.commentInput.Reset()
		v.attachInput.Reset()
		v.blurInputs()
		v.confirmingDelete = false
	}
	v.data = d
	v.viewport.SetContent(v.renderBody())
}

// ownLatestComment returns the newest comment the user wrote
func (v *DetailView) ownLatestComment() (models.Comment, bool) {
	for _, c := range v.data.Comments {
		if c.UserID == v.user {
			return c, true
		}
	}
	return models.Comment{}, false
}

func (v *DetailView) blurInputs() {
	v.commentInputFocused = false
	v.commentInput.Blur()
	v.attachInputFocused = false
	v.attachInput.Blur()
}

func (v *DetailView) Init() tea.Cmd {
	return nil
}

func (v *DetailView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		contentWidth := styles.ContentWidth(v.width)
		v.commentInput.SetWidth(clamp(contentWidth-10, 20, 60))
		v.viewport.Width = clamp(contentWidth-4, 20, 100)
		v.viewport.Height = max(v.height-10, 5)
		v.viewport.SetContent(v.renderBody())
		return v, nil

	case tea.KeyMsg:
		switch {
		case v.confirmingDelete:
			return v.updateConfirmDelete(msg)
		case v.commentInputFocused:
			return v.updateComment(msg)
		case v.attachInputFocused:
			return v.updateAttach(msg)
		}
		return v.updateNormal(msg)
	}
	return v, nil
}

func (v *DetailView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := v.data.Task.ID
	switch {
	case key.Matches(msg, v.keys.Back):
		return v, emit(Close{})
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit
	case key.Matches(msg, v.keys.Edit):
		return v, emit(EditTask{ID: id})
	case key.Matches(msg, v.keys.Delete):
		v.confirmingDelete = true
		return v, nil
	case key.Matches(msg, v.keys.Comment):
		v.commentInputFocused = true
		v.commentInput.Focus()
		return v, textarea.Blink
	case key.Matches(msg, v.keys.Uncomment):
		if c, ok := v.ownLatestComment(); ok {
			return v, emit(DeleteComment{ID: c.ID})
		}
		return v, nil
	case key.Matches(msg, v.keys.Attach):
		v.attachInputFocused = true
		v.attachInput.Focus()
		return v, textinput.Blink
	case msg.String() == "r":
		if n := len(v.data.Attachments); n > 0 {
			return v, emit(DeleteAttachment{ID: v.data.Attachments[n-1].ID})
		}
		return v, nil
	}

	var cmd tea.Cmd
	v.viewport, cmd = v.viewport.Update(msg)
	return v, cmd
}

func (v *DetailView) updateComment(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.blurInputs()
		return v, nil
	case key.Matches(msg, v.keys.Save):
		text := strings.TrimSpace(v.commentInput.Value())
		if text == "" {
			return v, nil
		}
		v.commentInput.Reset()
		v.blurInputs()
		return v, emit(AddComment{TaskID: v.data.Task.ID, Text: text})
	}
	var cmd tea.Cmd
	v.commentInput, cmd = v.commentInput.Update(msg)
	return v, cmd
}

func (v *DetailView) updateAttach(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.blurInputs()
		return v, nil
	case key.Matches(msg, v.keys.Enter):
		paths := splitList(v.attachInput.Value())
		v.attachInput.Reset()
		v.blurInputs()
		if len(paths) == 0 {
			return v, nil
		}
		return v, emit(AttachFiles{TaskID: v.data.Task.ID, Paths: paths})
	}
	var cmd tea.Cmd
	v.attachInput, cmd = v.attachInput.Update(msg)
	return v, cmd
}

func (v *DetailView) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		v.confirmingDelete = false
		return v, emit(DeleteTask{ID: v.data.Task.ID})
	case "n", "N", "esc":
		v.confirmingDelete = false
	}
	return v, nil
}

// View renders the view
func (v *DetailView) View() string {
	s := v.styles
	if v.confirmingDelete {
		return renderDeleteConfirm(s, "Delete Task?", v.data.Task.Title, v.width, v.height)
	}

	var input string
	var helpText string
	switch {
	case v.commentInputFocused:
		input = s.InputFocused.Render(v.commentInput.View())
		helpText = fmt.Sprintf("%s submit • %s cancel", s.HelpKey.Render("ctrl+s"), s.HelpKey.Render("esc"))
	case v.attachInputFocused:
		input = s.InputFocused.Width(v.viewport.Width - 4).Render(v.attachInput.View())
		helpText = fmt.Sprintf("%s upload • %s cancel", s.HelpKey.Render("↵"), s.HelpKey.Render("esc"))
	default:
		helpText = fmt.Sprintf("%s edit • %s delete • %s comment • %s delete my comment • %s attach • %s remove file • %s back",
			s.HelpKey.Render("e"),
			s.HelpKey.Render("d"),
			s.HelpKey.Render("c"),
			s.HelpKey.Render("x"),
			s.HelpKey.Render("a"),
			s.HelpKey.Render("r"),
			s.HelpKey.Render("esc"),
		)
	}

	parts := []string{v.viewport.View()}
	if input != "" {
		parts = append(parts, input)
	}
	parts = append(parts, s.Help.Render(helpText))
	return styles.CenterView(lipgloss.JoinVertical(lipgloss.Left, parts...), v.width, v.height)
}

func (v *DetailView) renderBody() string {
	s := v.styles
	t := v.data.Task
	textWidth := max(v.viewport.Width-2, 20)
	labelStyle := s.TitleMuted

	title := s.Title.Render(t.Title)
	if v.data.Pending {
		title += " " + s.TitleMuted.Render("(saving…)")
	}

	due := DueLabel(t.DueDate, t.Status, v.now())
	if due == "" {
		due = "None"
	} else if isOverdue(due) {
		due = s.Overdue.Render(due)
	}

	tags := s.TitleMuted.Render("None")
	if len(t.Tags) > 0 {
		rendered := make([]string, len(t.Tags))
		for i, tag := range t.Tags {
			rendered[i] = s.Tag.Render("#" + tag)
		}
		tags = strings.Join(rendered, "")
	}

	desc := t.Description
	if desc == "" {
		desc = s.TitleMuted.Render("No description")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		labelStyle.Render("Status")+"  "+lipgloss.NewStyle().Foreground(styles.StatusColor(t.Status)).Render(t.Status.Label()),
		labelStyle.Render("Priority")+"  "+lipgloss.NewStyle().Foreground(styles.PriorityColor(t.Priority)).Render(string(t.Priority)),
		labelStyle.Render("Due")+"  "+due,
		labelStyle.Render("Tags")+"  "+tags,
		labelStyle.Render("Created")+"  "+fmt.Sprintf("%s by %s", Ago(t.CreatedAt), t.CreatedBy),
		"",
		labelStyle.Render("Description"),
		lipgloss.NewStyle().Width(textWidth).Render(desc),
		"",
		labelStyle.Render(fmt.Sprintf("Attachments (%d)", len(v.data.Attachments))),
		v.renderAttachments(),
		"",
		labelStyle.Render(fmt.Sprintf("Comments (%d)", len(v.data.Comments))),
		v.renderComments(textWidth),
	)
}

func (v *DetailView) renderAttachments() string {
	s := v.styles
	if len(v.data.Attachments) == 0 {
		return s.TitleMuted.Render("No attachments")
	}
	lines := make([]string, len(v.data.Attachments))
	for i, a := range v.data.Attachments {
		lines[i] = fmt.Sprintf("%s  %s  %s", a.Name, s.TitleMuted.Render(FileSize(a.Size)), s.TitleMuted.Render(a.URL))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (v *DetailView) renderComments(width int) string {
	s := v.styles
	if len(v.data.Comments) == 0 {
		return s.TitleMuted.Render("No comments yet")
	}
	blocks := make([]string, len(v.data.Comments))
	for i, c := range v.data.Comments {
		blocks[i] = lipgloss.JoinVertical(lipgloss.Left,
			s.TitleMuted.Render(fmt.Sprintf("%s • %s", c.UserID, Ago(c.CreatedAt))),
			lipgloss.NewStyle().Width(width).Render(c.Text),
		)
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}
