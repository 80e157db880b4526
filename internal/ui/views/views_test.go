package views

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/projection"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends a key and returns the message the view emitted, if any
func press(t *testing.T, m tea.Model, k tea.KeyMsg) tea.Msg {
	t.Helper()
	_, cmd := m.Update(k)
	if cmd == nil {
		return nil
	}
	return cmd()
}

func boardFixture() []models.Task {
	created := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	return []models.Task{
		{ID: "t1", Title: "Write report", Status: models.StatusTodo, Priority: models.PriorityHigh, CreatedAt: created},
		{ID: "t2", Title: "Water plants", Status: models.StatusTodo, Priority: models.PriorityLow, CreatedAt: created},
		{ID: "t3", Title: "Fix login", Status: models.StatusInProgress, Priority: models.PriorityUrgent, CreatedAt: created},
	}
}

func TestDueLabel(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	at := func(month time.Month, day, hour, minute int) *time.Time {
		d := time.Date(2026, month, day, hour, minute, 0, 0, time.UTC)
		return &d
	}

	tests := []struct {
		name   string
		due    *time.Time
		status models.Status
		want   string
	}{
		{"no due date", nil, models.StatusTodo, ""},
		{"today", at(time.March, 10, 15, 4), models.StatusTodo, "Today, 3:04 PM"},
		{"today but earlier", at(time.March, 10, 8, 0), models.StatusTodo, "Today, 8:00 AM"},
		{"overdue", at(time.March, 2, 0, 0), models.StatusReview, "Overdue: Mar 2"},
		{"completed is never overdue", at(time.March, 2, 0, 0), models.StatusCompleted, "Mar 2"},
		{"future", at(time.March, 20, 0, 0), models.StatusTodo, "Mar 20"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DueLabel(tt.due, tt.status, now))
		})
	}
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "1.5 kB", FileSize(1500))
	assert.Equal(t, "0 B", FileSize(-3))

	assert.Equal(t, "hello", truncate("hello", 10))
	assert.Equal(t, "he…", truncate("hello", 3))
	assert.Equal(t, "…", truncate("hello", 1))
	assert.Equal(t, "", truncate("hello", 0))

	assert.Equal(t, []string{"a", "b c", "a"}, splitList(" a, b c,, a ,"))
	assert.Nil(t, splitList("  "))

	assert.Equal(t, 5, clamp(9, 0, 5))
	assert.Equal(t, 0, clamp(-1, 0, 5))
}

func TestCycle(t *testing.T) {
	got := projection.All
	var seen []string
	for range len(models.Priorities) + 1 {
		got = cycle(got, models.Priorities)
		seen = append(seen, got)
	}
	assert.Equal(t, []string{"low", "medium", "high", "urgent", projection.All}, seen)
}

func TestStep(t *testing.T) {
	assert.Equal(t, models.PriorityLow, step(models.Priorities, models.PriorityUrgent, "l"))
	assert.Equal(t, models.PriorityUrgent, step(models.Priorities, models.PriorityLow, "left"))
	assert.Equal(t, models.StatusReview, step(models.Statuses, models.StatusInProgress, " "))
	assert.Equal(t, models.StatusReview, step(models.Statuses, models.StatusReview, "x"))
}

func TestBoardView_Navigation(t *testing.T) {
	b := NewBoardView(nil)
	b.SetView(projection.Project(boardFixture(), projection.DefaultCriteria()))

	sel, ok := b.Selected()
	require.True(t, ok)
	assert.Equal(t, "t1", sel.ID, "high priority sorts first")

	press(t, b, runes("j"))
	sel, _ = b.Selected()
	assert.Equal(t, "t2", sel.ID)

	press(t, b, runes("l"))
	sel, _ = b.Selected()
	assert.Equal(t, "t3", sel.ID)

	press(t, b, runes("l"))
	_, ok = b.Selected()
	assert.False(t, ok, "review column is empty")
}

func TestBoardView_EmitsIntents(t *testing.T) {
	b := NewBoardView(nil)
	b.SetView(projection.Project(boardFixture(), projection.DefaultCriteria()))

	assert.Equal(t, MoveTask{ID: "t1", Status: models.StatusInProgress}, press(t, b, runes("L")))
	assert.Nil(t, press(t, b, runes("H")), "todo is the first column")
	assert.Equal(t, OpenTask{ID: "t1"}, press(t, b, tea.KeyMsg{Type: tea.KeyEnter}))
	assert.Equal(t, EditTask{ID: "t1"}, press(t, b, runes("e")))
	assert.Equal(t, NewTask{Status: models.StatusTodo}, press(t, b, runes("n")))
	assert.Equal(t, SwitchLayout{}, press(t, b, tea.KeyMsg{Type: tea.KeyTab}))

	msg := press(t, b, runes("s"))
	require.IsType(t, ChangeCriteria{}, msg)
	assert.Equal(t, "todo", msg.(ChangeCriteria).Criteria.Status)
	assert.Equal(t, projection.All, msg.(ChangeCriteria).Criteria.Priority)

	assert.Nil(t, press(t, b, runes("d")), "delete asks first")
	assert.Equal(t, DeleteTask{ID: "t1"}, press(t, b, runes("y")))

	assert.Nil(t, press(t, b, runes("d")))
	assert.Nil(t, press(t, b, runes("n")), "declining emits nothing")
}

func TestBoardView_SelectionFollowsMovedTask(t *testing.T) {
	tasks := boardFixture()
	b := NewBoardView(nil)
	b.SetView(projection.Project(tasks, projection.DefaultCriteria()))

	tasks[0].Status = models.StatusReview
	b.SetView(projection.Project(tasks, projection.DefaultCriteria()))

	sel, ok := b.Selected()
	require.True(t, ok)
	assert.Equal(t, "t1", sel.ID)
	assert.Equal(t, 2, b.col)
}

func TestBoardView_SelectionClampsWhenTaskDisappears(t *testing.T) {
	tasks := boardFixture()
	b := NewBoardView(nil)
	b.SetView(projection.Project(tasks, projection.DefaultCriteria()))
	press(t, b, runes("j"))

	b.SetView(projection.Project(tasks[:1], projection.DefaultCriteria()))

	sel, ok := b.Selected()
	require.True(t, ok)
	assert.Equal(t, "t1", sel.ID)
}

func TestBoardView_SearchEmitsCriteria(t *testing.T) {
	b := NewBoardView(nil)
	b.SetView(projection.Project(boardFixture(), projection.DefaultCriteria()))

	press(t, b, runes("/"))
	_, cmd := b.Update(runes("x"))
	require.NotNil(t, cmd)

	var found bool
	for _, msg := range flatten(cmd) {
		if c, ok := msg.(ChangeCriteria); ok {
			assert.Equal(t, "x", c.Criteria.Search)
			found = true
		}
	}
	assert.True(t, found)
}

// flatten runs a command, expanding batches
func flatten(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var out []tea.Msg
	for _, c := range batch {
		out = append(out, flatten(c)...)
	}
	return out
}

func TestFormView_Validation(t *testing.T) {
	f := NewFormView()
	f.StartNew(models.StatusReview)

	assert.Nil(t, press(t, f, tea.KeyMsg{Type: tea.KeyCtrlS}))
	assert.Equal(t, "Title is required", f.err)

	f.title.SetValue("Renew passport")
	f.due.SetValue("next week")
	assert.Nil(t, f.submit())
	assert.Contains(t, f.err, "Due date")
	assert.Equal(t, fieldDue, f.focusIdx)
}

func TestFormView_SubmitNew(t *testing.T) {
	f := NewFormView()
	f.StartNew(models.StatusReview)
	f.title.SetValue("Renew passport")
	f.due.SetValue("2026-03-01 09:30")
	f.tags.SetValue("admin, travel")
	f.attach.SetValue("photo.jpg")

	f.focus(fieldPriority)
	press(t, f, runes("l"))

	msg := press(t, f, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.IsType(t, SubmitTask{}, msg)
	got := msg.(SubmitTask)

	assert.Empty(t, got.ID)
	assert.Equal(t, "Renew passport", got.Fields.Title)
	assert.Equal(t, models.StatusReview, got.Fields.Status)
	assert.Equal(t, models.PriorityHigh, got.Fields.Priority)
	require.NotNil(t, got.Fields.DueDate)
	assert.True(t, time.Date(2026, 3, 1, 9, 30, 0, 0, time.Local).Equal(*got.Fields.DueDate))
	assert.Equal(t, []string{"admin", "travel"}, got.Fields.Tags)
	assert.Equal(t, []string{"photo.jpg"}, got.Attach)
	assert.Empty(t, f.err)
}

func TestFormView_StartEdit(t *testing.T) {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local)
	f := NewFormView()
	f.StartEdit(models.Task{
		ID: "t1", Title: "Write report", Status: models.StatusInProgress,
		Priority: models.PriorityUrgent, DueDate: &due, Tags: []string{"work", "q1"},
	})

	assert.Equal(t, "2026-03-01", f.due.Value())
	assert.Equal(t, "work, q1", f.tags.Value())

	msg := f.submit()()
	require.IsType(t, SubmitTask{}, msg)
	assert.Equal(t, "t1", msg.(SubmitTask).ID)
	assert.Equal(t, models.PriorityUrgent, msg.(SubmitTask).Fields.Priority)
}

func TestFormView_TagHint(t *testing.T) {
	f := NewFormView()
	f.StartNew(models.StatusTodo)
	assert.Empty(t, f.tagHint(80))

	f.SetKnownTags([]string{"admin", "car", "home"})
	f.tags.SetValue("car, ")
	assert.Equal(t, "#admin #home", f.tagHint(80))

	f.focus(fieldTags)
	assert.Contains(t, f.View(), "#admin #home")
}

func TestFormView_EscCloses(t *testing.T) {
	f := NewFormView()
	f.StartNew(models.StatusTodo)
	assert.Equal(t, Close{}, press(t, f, tea.KeyMsg{Type: tea.KeyEsc}))
}

func TestDetailView(t *testing.T) {
	at := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	d := NewDetailView("alice")
	d.SetData(DetailData{
		Task: models.Task{ID: "t1", Title: "Write report", Status: models.StatusTodo, Priority: models.PriorityHigh},
		Comments: []models.Comment{
			{ID: "c1", TaskID: "t1", UserID: "alice", Text: "first", CreatedAt: at},
			{ID: "c2", TaskID: "t1", UserID: "alice", Text: "second", CreatedAt: at.Add(time.Hour)},
			{ID: "c3", TaskID: "t1", UserID: "bob", Text: "third", CreatedAt: at.Add(2 * time.Hour)},
		},
		Attachments: []models.Attachment{{ID: "a1", TaskID: "t1", Name: "scan.pdf", Size: 2048}},
	})
	assert.Equal(t, "t1", d.TaskID())

	assert.Equal(t, DeleteComment{ID: "c2"}, press(t, d, runes("x")), "newest own comment")
	assert.Equal(t, DeleteAttachment{ID: "a1"}, press(t, d, runes("r")))
	assert.Equal(t, EditTask{ID: "t1"}, press(t, d, runes("e")))

	press(t, d, runes("c"))
	require.True(t, d.commentInputFocused)
	d.commentInput.SetValue("  looks good  ")
	assert.Equal(t, AddComment{TaskID: "t1", Text: "looks good"}, press(t, d, tea.KeyMsg{Type: tea.KeyCtrlS}))
	assert.False(t, d.commentInputFocused)

	press(t, d, runes("a"))
	d.attachInput.SetValue("a.txt, b.txt")
	assert.Equal(t, AttachFiles{TaskID: "t1", Paths: []string{"a.txt", "b.txt"}}, press(t, d, tea.KeyMsg{Type: tea.KeyEnter}))

	assert.Equal(t, Close{}, press(t, d, tea.KeyMsg{Type: tea.KeyEsc}))
}

func TestDetailView_NoOwnComment(t *testing.T) {
	d := NewDetailView("carol")
	d.SetData(DetailData{
		Task:     models.Task{ID: "t1", Title: "Write report"},
		Comments: []models.Comment{{ID: "c1", TaskID: "t1", UserID: "bob", Text: "hi"}},
	})
	assert.Nil(t, press(t, d, runes("x")))
	assert.Nil(t, press(t, d, runes("r")))
}

func TestListView(t *testing.T) {
	l := NewListView()
	l.SetView(projection.Project(boardFixture(), projection.DefaultCriteria()))

	sel, ok := l.Selected()
	require.True(t, ok)
	assert.Equal(t, "t1", sel.ID, "working-set order")

	assert.Equal(t, OpenTask{ID: "t1"}, press(t, l, tea.KeyMsg{Type: tea.KeyEnter}))
	assert.Equal(t, SwitchLayout{}, press(t, l, tea.KeyMsg{Type: tea.KeyEsc}))

	msg := press(t, l, runes("p"))
	require.IsType(t, ChangeCriteria{}, msg)
	assert.Equal(t, "low", msg.(ChangeCriteria).Criteria.Priority)
}
