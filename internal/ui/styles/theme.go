package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskboard/internal/models"
)

// Theme represents a color scheme for the application
type Theme struct {
	Name string

	// Base colors
	Background    lipgloss.Color
	Foreground    lipgloss.Color
	ForegroundDim lipgloss.Color

	// Accent colors
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color

	// Semantic colors
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Info    lipgloss.Color

	// UI element colors
	Border      lipgloss.Color
	BorderFocus lipgloss.Color
	Selection   lipgloss.Color
}

// TokyoNight is the default color theme
var TokyoNight = Theme{
	Name: "Tokyo Night",

	Background:    lipgloss.Color("#1a1b26"),
	Foreground:    lipgloss.Color("#c0caf5"),
	ForegroundDim: lipgloss.Color("#565f89"),

	Primary:   lipgloss.Color("#7aa2f7"),
	Secondary: lipgloss.Color("#bb9af7"),
	Accent:    lipgloss.Color("#7dcfff"),

	Success: lipgloss.Color("#9ece6a"),
	Warning: lipgloss.Color("#e0af68"),
	Error:   lipgloss.Color("#f7768e"),
	Info:    lipgloss.Color("#7aa2f7"),

	Border:      lipgloss.Color("#3b4261"),
	BorderFocus: lipgloss.Color("#7aa2f7"),
	Selection:   lipgloss.Color("#33467c"),
}

// Current holds the active theme
var Current = TokyoNight

// MaxWidth caps the board so four columns stay readable on wide terminals
const MaxWidth = 160

// ContentWidth returns the actual content width to use (min of terminal width and MaxWidth)
func ContentWidth(terminalWidth int) int {
	return min(terminalWidth, MaxWidth)
}

// CenterView centers content horizontally if the terminal is wider than MaxWidth
func CenterView(content string, terminalWidth, terminalHeight int) string {
	if terminalWidth <= MaxWidth {
		return content
	}
	return lipgloss.Place(terminalWidth, terminalHeight,
		lipgloss.Center, lipgloss.Top,
		content,
	)
}

// PriorityColor maps a priority to its badge color
func PriorityColor(p models.Priority) lipgloss.Color {
	t := Current
	switch p {
	case models.PriorityUrgent:
		return t.Error
	case models.PriorityHigh:
		return t.Warning
	case models.PriorityMedium:
		return t.Info
	}
	return t.ForegroundDim
}

// StatusColor maps a status to its column header color
func StatusColor(s models.Status) lipgloss.Color {
	t := Current
	switch s {
	case models.StatusInProgress:
		return t.Primary
	case models.StatusReview:
		return t.Secondary
	case models.StatusCompleted:
		return t.Success
	}
	return t.Accent
}

// Styles holds all the pre-computed styles for the UI
type Styles struct {
	Title      lipgloss.Style
	TitleMuted lipgloss.Style

	// Board
	Column        lipgloss.Style
	ColumnFocused lipgloss.Style
	ColumnHeader  lipgloss.Style
	Card          lipgloss.Style
	CardSelected  lipgloss.Style
	CardPending   lipgloss.Style
	Overdue       lipgloss.Style

	ListItem     lipgloss.Style
	ListSelected lipgloss.Style

	Popup lipgloss.Style

	Button        lipgloss.Style
	ButtonFocused lipgloss.Style
	ButtonPrimary lipgloss.Style

	Tag lipgloss.Style

	Input        lipgloss.Style
	InputFocused lipgloss.Style
	InputError   lipgloss.Style

	Help    lipgloss.Style
	HelpKey lipgloss.Style

	ToastSuccess lipgloss.Style
	ToastError   lipgloss.Style
}

// boxed draws a rounded border in the given color
func boxed(border lipgloss.Color, hPad int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, hPad)
}

// highlighted is the look of the element under the cursor
func highlighted(t Theme, hPad int) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Primary).Background(t.Selection).Bold(true).Padding(0, hPad)
}

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

func badge(t Theme, bg lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Background).Background(bg).Padding(0, 1)
}

// NewStyles creates styles based on the current theme
func NewStyles() *Styles {
	t := Current

	return &Styles{
		Title:      fg(t.Primary).Bold(true),
		TitleMuted: fg(t.ForegroundDim),

		Column:        boxed(t.Border, 1),
		ColumnFocused: boxed(t.BorderFocus, 1),
		ColumnHeader:  lipgloss.NewStyle().Bold(true).MarginBottom(1),
		Card:          fg(t.Foreground).Padding(0, 1),
		CardSelected:  highlighted(t, 1),
		CardPending:   fg(t.ForegroundDim).Italic(true).Padding(0, 1),
		Overdue:       fg(t.Error),

		ListItem:     fg(t.Foreground).Padding(0, 2),
		ListSelected: highlighted(t, 2),

		Popup: boxed(t.BorderFocus, 2).Padding(1, 2),

		Button:        boxed(t.Border, 2).Foreground(t.Foreground),
		ButtonFocused: boxed(t.BorderFocus, 2).Foreground(t.Primary).Bold(true),
		ButtonPrimary: badge(t, t.Primary).Padding(0, 2).Bold(true),

		Tag: fg(t.Accent).MarginRight(1),

		Input:        boxed(t.Border, 1).Foreground(t.Foreground),
		InputFocused: boxed(t.BorderFocus, 1).Foreground(t.Foreground),
		InputError:   fg(t.Error),

		Help:    fg(t.ForegroundDim).Padding(1, 2),
		HelpKey: fg(t.Primary).Bold(true),

		ToastSuccess: badge(t, t.Success),
		ToastError:   badge(t, t.Error),
	}
}
