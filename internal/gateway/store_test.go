package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/taskboard/internal/db"
	"github.com/tgienger/taskboard/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	database, err := db.New(db.Options{Path: filepath.Join(dir, "gateway.db")})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewStore(database, time.Second, nil)
}

func TestStore_TaskRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	due := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	created, err := s.CreateTask(ctx, models.Task{
		Title:     "Book travel",
		Status:    models.StatusReview,
		Priority:  models.PriorityHigh,
		DueDate:   &due,
		Tags:      []string{"trip"},
		CreatedBy: "u1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	tasks, err := s.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, created.ID, tasks[0].ID)
	assert.Equal(t, "Book travel", tasks[0].Title)
	assert.Equal(t, []string{"trip"}, tasks[0].Tags)
	require.NotNil(t, tasks[0].DueDate)
	assert.True(t, due.Equal(*tasks[0].DueDate))

	created.Status = models.StatusCompleted
	updated, err := s.UpdateTask(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)

	require.NoError(t, s.DeleteTask(ctx, created.ID))
	_, err = s.GetTask(ctx, created.ID)
	assert.True(t, IsKind(err, KindNotFound), "got %v", err)
}

func TestStore_FailuresAreTyped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.DeleteTask(ctx, "missing")
	require.Error(t, err)
	var ge *Error
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, KindNotFound, ge.Kind)
	assert.Equal(t, "delete task", ge.Op)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	_, err = s.CreateTask(ctx, models.Task{Title: "x", Status: "doing", Priority: models.PriorityLow})
	assert.Equal(t, KindInvalid, KindOf(err))

	_, err = s.CreateComment(ctx, models.Comment{TaskID: "missing", UserID: "u1", Text: "hi"})
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestStore_CommentDeleteScopedToAuthor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, models.Task{Title: "t", Status: models.StatusTodo, Priority: models.PriorityLow})
	require.NoError(t, err)
	c, err := s.CreateComment(ctx, models.Comment{TaskID: task.ID, UserID: "author", Text: "hello"})
	require.NoError(t, err)

	err = s.DeleteComment(ctx, c.ID, "someone-else")
	assert.True(t, IsKind(err, KindNotFound))

	require.NoError(t, s.DeleteComment(ctx, c.ID, "author"))
	comments, err := s.ListComments(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestStore_UploadSniffsContentType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.UploadAttachment(ctx, Upload{UserID: "u1", Name: "notes.txt", Data: []byte("plain text body")})
	require.NoError(t, err)
	assert.Equal(t, "text/plain; charset=utf-8", a.ContentType)
	assert.Empty(t, a.TaskID)
	assert.NotEmpty(t, a.URL)

	task, err := s.CreateTask(ctx, models.Task{Title: "t", Status: models.StatusTodo, Priority: models.PriorityLow})
	require.NoError(t, err)

	linked, err := s.AssociateAttachment(ctx, a.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, linked.TaskID)

	list, err := s.ListAttachments(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.DeleteAttachment(ctx, a.ID))
	assert.True(t, IsKind(s.DeleteAttachment(ctx, a.ID), KindNotFound))
}

func TestStore_Calls(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)

	c, err := s.ScheduleCall(ctx, models.Call{ContactName: "Ada", ContactPhone: "555-0100", ScheduledAt: at})
	require.NoError(t, err)
	assert.Equal(t, models.CallScheduled, c.Status)

	c.Status = models.CallRescheduled
	c.ScheduledAt = at.Add(24 * time.Hour)
	c.Reason = "busy"
	_, err = s.UpdateCall(ctx, c)
	require.NoError(t, err)

	calls, err := s.ListCalls(ctx)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, models.CallRescheduled, calls[0].Status)
	assert.Equal(t, "busy", calls[0].Reason)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"no rows", sql.ErrNoRows, KindNotFound},
		{"wrapped no rows", fmt.Errorf("get: %w", sql.ErrNoRows), KindNotFound},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"canceled", context.Canceled, KindUnavailable},
		{"check", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintCheck}, KindInvalid},
		{"unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, KindConflict},
		{"perm", sqlite3.Error{Code: sqlite3.ErrPerm}, KindUnauthorized},
		{"other", errors.New("disk on fire"), KindUnavailable},
		{"already typed", NewError("x", KindUnauthorized, "nope"), KindUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("op", tt.err)
			assert.Equal(t, tt.want, KindOf(err))
		})
	}

	assert.NoError(t, classify("op", nil))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestError_Message(t *testing.T) {
	err := NewError("create task", KindTimeout, "request timed out")
	assert.Equal(t, "create task: request timed out (timeout)", err.Error())
	assert.Equal(t, "boom (unavailable)", (&Error{Kind: KindUnavailable, Message: "boom"}).Error())
}

func TestUploadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0644))

	u, err := UploadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "board.json", u.Name)
	assert.Equal(t, "application/json", u.ContentType)
	assert.Equal(t, []byte(`{}`), u.Data)

	_, err = UploadFromFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
