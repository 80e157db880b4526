package views

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize/english"

	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/projection"
	"github.com/tgienger/taskboard/internal/ui/keys"
	"github.com/tgienger/taskboard/internal/ui/styles"
)

// cardHeight is title, meta line and spacing
const cardHeight = 3

// BoardView shows the four status columns
type BoardView struct {
	styles    *styles.Styles
	keys      keys.KeyMap
	isPending func(id string) bool
	now       func() time.Time

	view   projection.View
	width  int
	height int

	// Cursor: focused column and the focused card in each column
	col      int
	rows     []int
	selected string // ID of the focused card, followed across re-projections

	searching   bool
	searchInput textinput.Model

	confirmingDelete bool
	deleteTarget     models.Task

	// Help popup (shown with ?)
	showHelpPopup bool
}

// NewBoardView creates a board. isPending reports whether a card is still
// waiting for the store and may be nil.
func NewBoardView(isPending func(id string) bool) *BoardView {
	if isPending == nil {
		isPending = func(string) bool { return false }
	}

	search := textinput.New()
	search.Placeholder = "Search..."
	search.CharLimit = 100

	return &BoardView{
		styles:      styles.NewStyles(),
		keys:        keys.DefaultKeyMap(),
		isPending:   isPending,
		now:         time.Now,
		rows:        make([]int, len(models.Statuses)),
		searchInput: search,
		view:        projection.Project(nil, projection.DefaultCriteria()),
	}
}

// SetView replaces the projection the board renders. The focused card keeps
// focus if it is still visible, even when it moved to another column.
func (v *BoardView) SetView(view projection.View) {
	v.view = view
	if v.searchInput.Value() != view.Criteria.Search && !v.searching {
		v.searchInput.SetValue(view.Criteria.Search)
	}

	if v.selected != "" {
		for c, col := range view.Board.Columns {
			if i := slices.IndexFunc(col.Tasks, func(t models.Task) bool { return t.ID == v.selected }); i >= 0 {
				v.col, v.rows[c] = c, i
				return
			}
		}
	}
	for c, col := range view.Board.Columns {
		v.rows[c] = clamp(v.rows[c], 0, max(len(col.Tasks)-1, 0))
	}
	v.remember()
}

// Selected returns the focused card
func (v *BoardView) Selected() (models.Task, bool) {
	if v.col >= len(v.view.Board.Columns) {
		return models.Task{}, false
	}
	tasks := v.view.Board.Columns[v.col].Tasks
	row := v.rows[v.col]
	if row >= len(tasks) {
		return models.Task{}, false
	}
	return tasks[row], true
}

func (v *BoardView) remember() {
	if t, ok := v.Selected(); ok {
		v.selected = t.ID
		return
	}
	v.selected = ""
}

// Init initializes the view
func (v *BoardView) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (v *BoardView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		return v, nil

	case tea.KeyMsg:
		// Any key closes the help popup
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}
		if v.confirmingDelete {
			return v.updateConfirmDelete(msg)
		}
		if v.searching {
			return v.updateSearch(msg)
		}
		return v.updateNormal(msg)
	}
	return v, nil
}

func (v *BoardView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit

	case key.Matches(msg, v.keys.Tab):
		return v, emit(SwitchLayout{})

	case key.Matches(msg, v.keys.Left):
		v.col = max(v.col-1, 0)
		v.remember()

	case key.Matches(msg, v.keys.Right):
		v.col = min(v.col+1, len(models.Statuses)-1)
		v.remember()

	case key.Matches(msg, v.keys.Up):
		v.rows[v.col] = max(v.rows[v.col]-1, 0)
		v.remember()

	case key.Matches(msg, v.keys.Down):
		n := len(v.view.Board.Columns[v.col].Tasks)
		v.rows[v.col] = clamp(v.rows[v.col]+1, 0, max(n-1, 0))
		v.remember()

	case key.Matches(msg, v.keys.MoveLeft):
		return v, v.move(-1)

	case key.Matches(msg, v.keys.MoveRight):
		return v, v.move(1)

	case key.Matches(msg, v.keys.Enter):
		if t, ok := v.Selected(); ok {
			return v, emit(OpenTask{ID: t.ID})
		}

	case key.Matches(msg, v.keys.Edit):
		if t, ok := v.Selected(); ok {
			return v, emit(EditTask{ID: t.ID})
		}

	case key.Matches(msg, v.keys.New):
		return v, emit(NewTask{Status: models.Statuses[v.col]})

	case key.Matches(msg, v.keys.Delete):
		if t, ok := v.Selected(); ok {
			v.confirmingDelete = true
			v.deleteTarget = t
		}

	case key.Matches(msg, v.keys.Search):
		v.searching = true
		v.searchInput.Focus()
		return v, textinput.Blink

	case key.Matches(msg, v.keys.StatusFilter):
		c := v.view.Criteria
		c.Status = cycle(c.Status, models.Statuses)
		return v, emit(ChangeCriteria{Criteria: c})

	case key.Matches(msg, v.keys.PriorityFilter):
		c := v.view.Criteria
		c.Priority = cycle(c.Priority, models.Priorities)
		return v, emit(ChangeCriteria{Criteria: c})

	case key.Matches(msg, v.keys.ClearFilter):
		v.searchInput.Reset()
		return v, emit(ChangeCriteria{Criteria: projection.DefaultCriteria()})

	case key.Matches(msg, v.keys.Help):
		v.showHelpPopup = true
	}
	return v, nil
}

// move asks to shift the focused card to the neighbouring column
func (v *BoardView) move(dir int) tea.Cmd {
	t, ok := v.Selected()
	if !ok {
		return nil
	}
	i := slices.Index(models.Statuses, t.Status) + dir
	if i < 0 || i >= len(models.Statuses) {
		return nil
	}
	return emit(MoveTask{ID: t.ID, Status: models.Statuses[i]})
}

func (v *BoardView) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back), key.Matches(msg, v.keys.Enter):
		v.searching = false
		v.searchInput.Blur()
		return v, nil
	}

	var cmd tea.Cmd
	v.searchInput, cmd = v.searchInput.Update(msg)
	c := v.view.Criteria
	if c.Search == v.searchInput.Value() {
		return v, cmd
	}
	c.Search = v.searchInput.Value()
	return v, tea.Batch(cmd, emit(ChangeCriteria{Criteria: c}))
}

func (v *BoardView) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		v.confirmingDelete = false
		return v, emit(DeleteTask{ID: v.deleteTarget.ID})
	case "n", "N", "esc":
		v.confirmingDelete = false
	}
	return v, nil
}

// View renders the view
func (v *BoardView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}
	if v.confirmingDelete {
		return renderDeleteConfirm(v.styles, "Delete Task?", v.deleteTarget.Title, v.width, v.height)
	}

	var b strings.Builder
	b.WriteString(v.renderHeader())
	b.WriteString("\n")
	b.WriteString(v.renderColumns())
	b.WriteString("\n")
	b.WriteString(v.renderHelp())
	return styles.CenterView(b.String(), v.width, v.height)
}

func (v *BoardView) renderHeader() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	searchStyle := s.Input
	if v.searching {
		searchStyle = s.InputFocused
	}
	searchBox := searchStyle.Width(clamp(contentWidth/3, 12, 40)).Render(v.searchInput.View())

	c := v.view.Criteria
	filters := lipgloss.JoinHorizontal(lipgloss.Center,
		s.Button.Render("Status: "+criterionLabel(c.Status, func(x string) string { return models.Status(x).Label() })),
		" ",
		s.Button.Render("Priority: "+criterionLabel(c.Priority, capitalize)),
	)

	title := s.Title.Render(fmt.Sprintf("Taskboard  %s", s.TitleMuted.Render(fmt.Sprintf("%d tasks", len(v.view.List)))))
	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		lipgloss.JoinHorizontal(lipgloss.Center, searchBox, "  ", filters),
	)
}

func (v *BoardView) renderColumns() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	n := len(v.view.Board.Columns)
	if n == 0 {
		return ""
	}
	// Border and padding take four cells per column
	colWidth := max(contentWidth/n-4, 12)
	visible := max((v.height-12)/cardHeight, 1)

	rendered := make([]string, 0, n)
	for c, col := range v.view.Board.Columns {
		header := s.ColumnHeader.Foreground(styles.StatusColor(col.Status)).
			Render(fmt.Sprintf("%s (%d)", col.Status.Label(), len(col.Tasks)))

		items := []string{header}
		if len(col.Tasks) == 0 {
			items = append(items, s.TitleMuted.Render("No tasks"))
		}
		start := max(v.rows[c]-visible+1, 0)
		end := min(start+visible, len(col.Tasks))
		for i := start; i < end; i++ {
			focused := c == v.col && i == v.rows[c]
			items = append(items, v.renderCard(col.Tasks[i], focused, colWidth))
		}

		style := s.Column
		if c == v.col {
			style = s.ColumnFocused
		}
		rendered = append(rendered, style.Width(colWidth).Render(lipgloss.JoinVertical(lipgloss.Left, items...)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (v *BoardView) renderCard(t models.Task, focused bool, width int) string {
	s := v.styles

	style := s.Card
	switch {
	case focused:
		style = s.CardSelected
	case v.isPending(t.ID):
		style = s.CardPending
	}
	style = style.Width(width)

	badge := lipgloss.NewStyle().Foreground(styles.PriorityColor(t.Priority)).Render("● " + string(t.Priority))
	meta := badge
	if label := DueLabel(t.DueDate, t.Status, v.now()); label != "" {
		if isOverdue(label) {
			label = s.Overdue.Render(label)
		}
		meta += "  " + label
	}
	if n := len(t.Attachments); n > 0 {
		meta += "  " + english.Plural(n, "file", "")
	}

	title := truncate(t.Title, width-2)
	return lipgloss.JoinVertical(lipgloss.Left, style.Render(title), style.Render(meta)) + "\n"
}

func (v *BoardView) renderHelp() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	// At narrow widths, show hint to press ? for help
	if contentWidth > 0 && contentWidth < 80 {
		return s.Help.Render(s.HelpKey.Render("?") + " help")
	}
	return s.Help.Render(
		fmt.Sprintf("%s open • %s new • %s edit • %s del • %s move • %s search • %s status • %s priority • %s list • %s quit",
			s.HelpKey.Render("↵"),
			s.HelpKey.Render("n"),
			s.HelpKey.Render("e"),
			s.HelpKey.Render("d"),
			s.HelpKey.Render("H/L"),
			s.HelpKey.Render("/"),
			s.HelpKey.Render("s"),
			s.HelpKey.Render("p"),
			s.HelpKey.Render("tab"),
			s.HelpKey.Render("q"),
		),
	)
}

func (v *BoardView) renderHelpPopup() string {
	return renderHelpPopup(v.styles, []key.Binding{
		v.keys.Enter, v.keys.New, v.keys.Edit, v.keys.Delete,
		v.keys.Left, v.keys.Right, v.keys.MoveLeft, v.keys.MoveRight,
		v.keys.Search, v.keys.StatusFilter, v.keys.PriorityFilter, v.keys.ClearFilter,
		v.keys.Tab, v.keys.Quit,
	}, v.width, v.height)
}

// cycle steps a filter value through "all" and then each of values
func cycle[T ~string](current string, values []T) string {
	i := slices.Index(values, T(current))
	if i == len(values)-1 {
		return projection.All
	}
	return string(values[i+1])
}

func criterionLabel(value string, label func(string) string) string {
	if value == "" || value == projection.All {
		return "All"
	}
	return label(value)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return strings.ToUpper(string(r)) + s[size:]
}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

// renderHelpPopup lists bindings in a bordered box
func renderHelpPopup(s *styles.Styles, bindings []key.Binding, width, height int) string {
	items := []string{s.Title.Render("Keyboard Shortcuts"), ""}
	for _, b := range bindings {
		h := b.Help()
		items = append(items, s.HelpKey.Render(fmt.Sprintf("%-8s", h.Key))+" "+h.Desc)
	}
	items = append(items, "", s.TitleMuted.Render("Press any key to close"))

	centered := lipgloss.Place(styles.ContentWidth(width), height,
		lipgloss.Center, lipgloss.Center,
		s.Popup.Render(lipgloss.JoinVertical(lipgloss.Left, items...)),
	)
	return styles.CenterView(centered, width, height)
}

func renderDeleteConfirm(s *styles.Styles, title, name string, width, height int) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Foreground(styles.Current.Error).Render(title),
		"",
		s.TitleMuted.Render(fmt.Sprintf("%q will be removed", name)),
		"",
		lipgloss.JoinHorizontal(lipgloss.Center,
			s.ButtonPrimary.Render(" Y - Yes "),
			"  ",
			s.Button.Render(" N - No "),
		),
	)

	centered := lipgloss.Place(styles.ContentWidth(width), height,
		lipgloss.Center, lipgloss.Center,
		content,
	)
	return styles.CenterView(centered, width, height)
}
