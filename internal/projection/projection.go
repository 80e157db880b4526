// Package projection derives the board and list views from the working set.
// Project is a pure function: the same tasks and criteria always produce the
// same view.
package projection

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/tgienger/taskboard/internal/models"
)

// All matches every status or priority
const All = "all"

// Criteria selects which tasks a view shows
type Criteria struct {
	Status   string `json:"status" yaml:"status"`
	Priority string `json:"priority" yaml:"priority"`
	Search   string `json:"search,omitempty" yaml:"search,omitempty"`
}

// DefaultCriteria shows everything
func DefaultCriteria() Criteria {
	return Criteria{Status: All, Priority: All}
}

// Validate checks that status and priority are "all" or a known value
func (c Criteria) Validate() error {
	if c.Status != All && !models.Status(c.Status).Valid() {
		return fmt.Errorf("unknown status filter %q", c.Status)
	}
	if c.Priority != All && !models.Priority(c.Priority).Valid() {
		return fmt.Errorf("unknown priority filter %q", c.Priority)
	}
	return nil
}

// Column is one board column
type Column struct {
	Status models.Status `json:"status" yaml:"status"`
	Tasks  []models.Task `json:"tasks" yaml:"tasks"`
}

// Board is the grouped view, one column per status in board order
type Board struct {
	Columns []Column `json:"columns" yaml:"columns"`
}

// Column returns the column for status, or nil
func (b Board) Column(status models.Status) *Column {
	for i := range b.Columns {
		if b.Columns[i].Status == status {
			return &b.Columns[i]
		}
	}
	return nil
}

// View is everything a consumer renders
type View struct {
	Criteria Criteria      `json:"criteria" yaml:"criteria"`
	Board    Board         `json:"board" yaml:"board"`
	List     []models.Task `json:"list" yaml:"list"`
}

// Project filters tasks by c, groups them into the board columns and sorts
// each column. List holds the filtered tasks in working-set order.
func Project(tasks []models.Task, c Criteria) View {
	m := newMatcher(c)

	list := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if m.match(t) {
			list = append(list, t.Clone())
		}
	}

	columns := make([]Column, len(models.Statuses))
	for i, status := range models.Statuses {
		columns[i] = Column{Status: status, Tasks: []models.Task{}}
	}
	for _, t := range list {
		i := slices.Index(models.Statuses, t.Status)
		if i < 0 {
			continue
		}
		columns[i].Tasks = append(columns[i].Tasks, t.Clone())
	}
	for i := range columns {
		slices.SortStableFunc(columns[i].Tasks, Compare)
	}

	return View{Criteria: c, Board: Board{Columns: columns}, List: list}
}

// Compare orders tasks within a column: priority rank descending, then due
// date ascending with undated tasks last, then newest first, then by ID.
func Compare(a, b models.Task) int {
	if c := cmp.Compare(b.Priority.Rank(), a.Priority.Rank()); c != 0 {
		return c
	}
	switch {
	case a.DueDate != nil && b.DueDate != nil:
		if c := a.DueDate.Compare(*b.DueDate); c != 0 {
			return c
		}
	case a.DueDate != nil:
		return -1
	case b.DueDate != nil:
		return 1
	}
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

type matcher struct {
	status   string
	priority string
	term     string
	fold     cases.Caser
}

func newMatcher(c Criteria) matcher {
	// Casers are stateful and not safe for concurrent use
	fold := cases.Fold()
	return matcher{
		status:   c.Status,
		priority: c.Priority,
		term:     fold.String(strings.TrimSpace(c.Search)),
		fold:     fold,
	}
}

func (m matcher) match(t models.Task) bool {
	if m.status != All && m.status != "" && string(t.Status) != m.status {
		return false
	}
	if m.priority != All && m.priority != "" && string(t.Priority) != m.priority {
		return false
	}
	if m.term == "" {
		return true
	}
	if m.contains(t.Title) || m.contains(t.Description) {
		return true
	}
	return slices.ContainsFunc(t.Tags, m.contains)
}

func (m matcher) contains(s string) bool {
	return strings.Contains(m.fold.String(s), m.term)
}
