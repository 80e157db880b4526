package coordinator

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/taskboard/internal/gateway"
	"github.com/tgienger/taskboard/internal/gateway/gatewaytest"
	"github.com/tgienger/taskboard/internal/identity"
	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/repository"
)

type recorder struct {
	mu        sync.Mutex
	succeeded []string
	failed    []string
}

func (r *recorder) Succeeded(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.succeeded = append(r.succeeded, msg)
}

func (r *recorder) Failed(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, msg)
}

func (r *recorder) failures() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.failed)
}

type harness struct {
	repo  *repository.Repository
	fake  *gatewaytest.Fake
	notes *recorder
	c     *Coordinator
}

func newHarness(t *testing.T, user string) *harness {
	t.Helper()
	h := &harness{
		repo:  repository.New(),
		fake:  gatewaytest.NewFake(),
		notes: &recorder{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.c = New(h.repo, h.fake, identity.Static(user), h.notes, logger)
	return h
}

// seed stores tasks remotely and loads them into the working set
func (h *harness) seed(t *testing.T, tasks ...models.Task) []models.Task {
	t.Helper()
	stored := h.fake.Seed(tasks...)
	require.NoError(t, h.c.Load(context.Background()))
	return stored
}

func (h *harness) taskIDs() []string {
	var out []string
	for _, t := range h.repo.Tasks.Snapshot() {
		out = append(out, t.ID)
	}
	return out
}

// countChanges counts repository notifications from now on
func (h *harness) countChanges() func() int {
	var mu sync.Mutex
	n := 0
	h.repo.Subscribe(func(repository.Change) {
		mu.Lock()
		n++
		mu.Unlock()
	})
	return func() int {
		mu.Lock()
		defer mu.Unlock()
		return n
	}
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for gateway call")
	}
}

func TestCreateTask_Unauthenticated(t *testing.T) {
	h := newHarness(t, "")
	changes := h.countChanges()

	_, err := h.c.CreateTask(context.Background(), TaskFields{Title: "Renew license"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Zero(t, changes())
	assert.Zero(t, h.fake.Count("CreateTask"))
}

func TestCreateTask_ValidationBeforeWrite(t *testing.T) {
	h := newHarness(t, "u1")
	changes := h.countChanges()
	ctx := context.Background()

	_, err := h.c.CreateTask(ctx, TaskFields{Title: "   "})
	assert.ErrorIs(t, err, ErrTitleRequired)

	_, err = h.c.CreateTask(ctx, TaskFields{Title: "x", Status: "doing"})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = h.c.CreateTask(ctx, TaskFields{Title: "x", Priority: "critical"})
	assert.ErrorIs(t, err, ErrInvalidPriority)

	assert.Zero(t, changes())
	assert.Zero(t, h.fake.Count("CreateTask"))
}

func TestCreateTask_ReplacesProvisionalInSameSlot(t *testing.T) {
	h := newHarness(t, "u1")
	h.seed(t, models.Task{Title: "older", Status: models.StatusTodo, Priority: models.PriorityLow})

	entered, release := h.fake.Block("CreateTask")
	done := make(chan models.Task)
	go func() {
		task, err := h.c.CreateTask(context.Background(), TaskFields{Title: "Renew license"})
		assert.NoError(t, err)
		done <- task
	}()
	waitFor(t, entered)

	snap := h.repo.Tasks.Snapshot()
	require.Len(t, snap, 2)
	provisional := snap[0]
	assert.True(t, IsProvisional(provisional.ID))
	assert.Equal(t, "Renew license", provisional.Title)
	assert.Equal(t, models.StatusTodo, provisional.Status)
	assert.Equal(t, models.PriorityMedium, provisional.Priority)
	assert.Equal(t, "u1", provisional.CreatedBy)
	assert.Equal(t, StatePending, h.c.State(provisional.ID))

	release()
	created := <-done

	snap = h.repo.Tasks.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, created.ID, snap[0].ID)
	assert.False(t, IsProvisional(created.ID))
	_, stillThere := h.repo.Tasks.Get(provisional.ID)
	assert.False(t, stillThere)
	assert.Equal(t, StateConfirmed, h.c.State(provisional.ID))
	assert.Equal(t, StateConfirmed, h.c.State(created.ID))
	assert.Equal(t, []string{"Task created successfully"}, h.notes.succeeded)
}

func TestCreateTask_RollbackOnFailure(t *testing.T) {
	h := newHarness(t, "u1")
	h.fake.FailOn("CreateTask", "", gateway.KindUnavailable)

	_, err := h.c.CreateTask(context.Background(), TaskFields{Title: "Book travel"})
	require.Error(t, err)
	assert.Equal(t, gateway.KindUnavailable, gateway.KindOf(err))

	assert.Zero(t, h.repo.Tasks.Len())
	assert.Equal(t, []string{"Failed to create task: simulated unavailable"}, h.notes.failures())
}

func TestCreateTask_RoundTrip(t *testing.T) {
	h := newHarness(t, "u1")
	ctx := context.Background()
	due := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	fields := TaskFields{
		Title:       "Renew license",
		Description: "DMV",
		Status:      models.StatusReview,
		Priority:    models.PriorityHigh,
		DueDate:     &due,
		Tags:        []string{"admin", "car"},
	}
	created, err := h.c.CreateTask(ctx, fields)
	require.NoError(t, err)

	require.NoError(t, h.c.Load(ctx))
	got, ok := h.repo.Tasks.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, fields, FieldsOf(got))
	assert.Equal(t, "u1", got.CreatedBy)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestCreateTask_ConcurrentCreatesGetDistinctIDs(t *testing.T) {
	h := newHarness(t, "u1")
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]models.Task, 2)
	for i, title := range []string{"Renew license", "Book travel"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, err := h.c.CreateTask(ctx, TaskFields{Title: title})
			assert.NoError(t, err)
			results[i] = task
		}()
	}
	wg.Wait()

	assert.NotEqual(t, results[0].ID, results[1].ID)
	ids := h.taskIDs()
	assert.ElementsMatch(t, []string{results[0].ID, results[1].ID}, ids)
	for _, id := range ids {
		assert.False(t, IsProvisional(id))
	}
}

func TestMoveTask_SameStatusIsNoop(t *testing.T) {
	h := newHarness(t, "u1")
	stored := h.seed(t, models.Task{Title: "a", Status: models.StatusReview, Priority: models.PriorityLow})
	changes := h.countChanges()

	got, err := h.c.MoveTask(context.Background(), stored[0].ID, models.StatusReview)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReview, got.Status)
	assert.Zero(t, changes())
	assert.Zero(t, h.fake.Count("UpdateTask"))
}

func TestMoveTask_Validation(t *testing.T) {
	h := newHarness(t, "u1")
	stored := h.seed(t, models.Task{Title: "a", Status: models.StatusTodo, Priority: models.PriorityLow})
	ctx := context.Background()

	_, err := h.c.MoveTask(ctx, stored[0].ID, "archived")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = h.c.MoveTask(ctx, "missing", models.StatusReview)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = h.c.MoveTask(ctx, "tmp-123", models.StatusReview)
	assert.ErrorIs(t, err, ErrPendingCreate)
}

func TestMoveTask_OptimisticThenConfirmed(t *testing.T) {
	h := newHarness(t, "u1")
	stored := h.seed(t, models.Task{Title: "a", Status: models.StatusTodo, Priority: models.PriorityLow})
	id := stored[0].ID

	entered, release := h.fake.Block("UpdateTask")
	done := make(chan error)
	go func() {
		_, err := h.c.MoveTask(context.Background(), id, models.StatusInProgress)
		done <- err
	}()
	waitFor(t, entered)

	got, _ := h.repo.Tasks.Get(id)
	assert.Equal(t, models.StatusInProgress, got.Status, "written before the store answers")
	assert.Equal(t, StatePending, h.c.State(id))

	release()
	require.NoError(t, <-done)
	assert.Equal(t, StateConfirmed, h.c.State(id))
	assert.Equal(t, models.StatusInProgress, h.fake.Tasks()[0].Status)
}

func TestUpdateTask_RevertsOnFailure(t *testing.T) {
	h := newHarness(t, "u1")
	stored := h.seed(t, models.Task{
		Title:    "Renew license",
		Status:   models.StatusTodo,
		Priority: models.PriorityLow,
		Tags:     []string{"admin"},
	})
	id := stored[0].ID
	before, _ := h.repo.Tasks.Get(id)
	h.fake.FailOn("UpdateTask", id, gateway.KindTimeout)

	_, err := h.c.UpdateTask(context.Background(), id, TaskFields{
		Title:    "Renew passport",
		Status:   models.StatusCompleted,
		Priority: models.PriorityUrgent,
		Tags:     []string{"travel"},
	})
	assert.True(t, gateway.IsKind(err, gateway.KindTimeout))

	after, _ := h.repo.Tasks.Get(id)
	assert.Equal(t, before, after)
	assert.Equal(t, StateRolledBack, h.c.State(id))
	assert.Len(t, h.notes.failures(), 1)
}

func TestUpdateTask_PendingCreateRejected(t *testing.T) {
	h := newHarness(t, "u1")
	staged, err := h.c.StageTask(TaskFields{Title: "draft"})
	require.NoError(t, err)

	_, err = h.c.UpdateTask(context.Background(), staged.ID, TaskFields{Title: "edited"})
	assert.ErrorIs(t, err, ErrPendingCreate)
}

func TestDeleteTask_ReinsertsAtPriorPosition(t *testing.T) {
	h := newHarness(t, "u1")
	h.seed(t,
		models.Task{Title: "c", Status: models.StatusTodo, Priority: models.PriorityLow},
		models.Task{Title: "b", Status: models.StatusTodo, Priority: models.PriorityLow},
		models.Task{Title: "a", Status: models.StatusTodo, Priority: models.PriorityLow},
	)
	order := h.taskIDs()
	require.Len(t, order, 3)
	h.fake.FailOn("DeleteTask", order[1], gateway.KindUnavailable)

	err := h.c.DeleteTask(context.Background(), order[1])
	require.Error(t, err)
	assert.Equal(t, order, h.taskIDs())
	assert.Equal(t, StateRolledBack, h.c.State(order[1]))
}

func TestDeleteTask_DropsChildren(t *testing.T) {
	h := newHarness(t, "u1")
	stored := h.seed(t, models.Task{Title: "a", Status: models.StatusTodo, Priority: models.PriorityLow})
	id := stored[0].ID
	ctx := context.Background()

	_, err := h.c.AddComment(ctx, id, "first")
	require.NoError(t, err)
	_, err = h.c.UploadAttachment(ctx, id, gateway.Upload{Name: "a.pdf", Data: []byte("%PDF")})
	require.NoError(t, err)
	call, err := h.c.ScheduleCall(ctx, models.Call{TaskID: id, ContactName: "Ada", ScheduledAt: time.Now()})
	require.NoError(t, err)

	require.NoError(t, h.c.DeleteTask(ctx, id))
	assert.Zero(t, h.repo.Tasks.Len())
	assert.Zero(t, h.repo.Comments.Len())
	assert.Zero(t, h.repo.Attachments.Len())

	kept, ok := h.repo.Calls.Get(call.ID)
	require.True(t, ok)
	assert.Empty(t, kept.TaskID)
}

func TestReconcile_DroppedWhenDeletedLocally(t *testing.T) {
	h := newHarness(t, "u1")
	stored := h.seed(t, models.Task{Title: "a", Status: models.StatusTodo, Priority: models.PriorityLow})
	id := stored[0].ID
	ctx := context.Background()

	entered, release := h.fake.Block("UpdateTask")
	done := make(chan error)
	go func() {
		_, err := h.c.MoveTask(ctx, id, models.StatusCompleted)
		done <- err
	}()
	waitFor(t, entered)

	require.NoError(t, h.c.DeleteTask(ctx, id))
	release()

	// The store no longer has the task either; the failure is not surfaced
	assert.NoError(t, <-done)
	assert.Zero(t, h.repo.Tasks.Len())
	assert.Empty(t, h.notes.failures())
}

func TestComments_AddAndAuthorScopedDelete(t *testing.T) {
	h := newHarness(t, "author")
	stored := h.seed(t, models.Task{Title: "a", Status: models.StatusTodo, Priority: models.PriorityLow})
	taskID := stored[0].ID
	ctx := context.Background()

	_, err := h.c.AddComment(ctx, taskID, "  ")
	assert.ErrorIs(t, err, ErrTextRequired)

	comment, err := h.c.AddComment(ctx, taskID, "Called the DMV")
	require.NoError(t, err)
	assert.False(t, IsProvisional(comment.ID))
	assert.Equal(t, "author", comment.UserID)
	assert.Equal(t, []models.Comment{comment}, h.c.Comments(taskID))

	other := New(h.repo, h.fake, identity.Static("someone-else"), h.notes, nil)
	assert.ErrorIs(t, other.DeleteComment(ctx, comment.ID), ErrNotAuthor)

	require.NoError(t, h.c.DeleteComment(ctx, comment.ID))
	assert.Empty(t, h.c.Comments(taskID))
}

func TestComments_DeleteFailureRestoresPosition(t *testing.T) {
	h := newHarness(t, "u1")
	stored := h.seed(t, models.Task{Title: "a", Status: models.StatusTodo, Priority: models.PriorityLow})
	taskID := stored[0].ID
	ctx := context.Background()

	first, err := h.c.AddComment(ctx, taskID, "first")
	require.NoError(t, err)
	second, err := h.c.AddComment(ctx, taskID, "second")
	require.NoError(t, err)
	before := h.c.Comments(taskID)
	assert.Equal(t, []string{second.ID, first.ID}, []string{before[0].ID, before[1].ID})

	h.fake.FailOn("DeleteComment", second.ID, gateway.KindUnavailable)
	require.Error(t, h.c.DeleteComment(ctx, second.ID))
	assert.Equal(t, before, h.c.Comments(taskID))
}

func TestComments_RequireConfirmedTask(t *testing.T) {
	h := newHarness(t, "u1")
	ctx := context.Background()

	staged, err := h.c.StageTask(TaskFields{Title: "draft"})
	require.NoError(t, err)

	_, err = h.c.AddComment(ctx, staged.ID, "hi")
	assert.ErrorIs(t, err, ErrPendingCreate)
	_, err = h.c.AddComment(ctx, "missing", "hi")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, h.fake.Count("CreateComment"))
}

func TestAttachments_UploadAssociateDelete(t *testing.T) {
	h := newHarness(t, "u1")
	stored := h.seed(t, models.Task{Title: "a", Status: models.StatusTodo, Priority: models.PriorityLow})
	taskID := stored[0].ID
	ctx := context.Background()

	a, err := h.c.UploadAttachment(ctx, "", gateway.Upload{Name: "scan.png", Data: []byte("png")})
	require.NoError(t, err)
	assert.Empty(t, a.TaskID)
	assert.Equal(t, "u1", a.UserID)

	linked, err := h.c.AssociateAttachment(ctx, a.ID, taskID)
	require.NoError(t, err)
	assert.Equal(t, taskID, linked.TaskID)

	task, _ := h.repo.Tasks.Get(taskID)
	assert.Equal(t, []string{a.ID}, task.Attachments)
	assert.Len(t, h.c.Attachments(taskID), 1)

	h.fake.FailOn("DeleteAttachment", a.ID, gateway.KindUnavailable)
	require.Error(t, h.c.DeleteAttachment(ctx, a.ID))
	task, _ = h.repo.Tasks.Get(taskID)
	assert.Equal(t, []string{a.ID}, task.Attachments, "restored after failed delete")

	h.fake.Heal("DeleteAttachment", a.ID)
	require.NoError(t, h.c.DeleteAttachment(ctx, a.ID))
	task, _ = h.repo.Tasks.Get(taskID)
	assert.Empty(t, task.Attachments)
	assert.Empty(t, h.c.Attachments(taskID))
}

func TestAttachments_AssociateFailureRemovesOnlyThatID(t *testing.T) {
	h := newHarness(t, "u1")
	stored := h.seed(t, models.Task{Title: "a", Status: models.StatusTodo, Priority: models.PriorityLow})
	taskID := stored[0].ID
	ctx := context.Background()

	good, err := h.c.UploadAttachment(ctx, "", gateway.Upload{Name: "good.txt", Data: []byte("ok")})
	require.NoError(t, err)
	bad, err := h.c.UploadAttachment(ctx, "", gateway.Upload{Name: "bad.txt", Data: []byte("no")})
	require.NoError(t, err)
	h.fake.FailOn("AssociateAttachment", bad.ID, gateway.KindConflict)

	_, err = h.c.AssociateAttachment(ctx, good.ID, taskID)
	require.NoError(t, err)
	_, err = h.c.AssociateAttachment(ctx, bad.ID, taskID)
	require.Error(t, err)

	task, _ := h.repo.Tasks.Get(taskID)
	assert.Equal(t, []string{good.ID}, task.Attachments)
	assert.Equal(t, StateRolledBack, h.c.State(bad.ID))
}

func TestAttachments_AssociationSurvivesConcurrentMove(t *testing.T) {
	h := newHarness(t, "u1")
	stored := h.seed(t, models.Task{Title: "a", Status: models.StatusTodo, Priority: models.PriorityLow})
	taskID := stored[0].ID
	ctx := context.Background()

	a, err := h.c.UploadAttachment(ctx, "", gateway.Upload{Name: "scan.png", Data: []byte("png")})
	require.NoError(t, err)

	entered, release := h.fake.Block("AssociateAttachment")
	done := make(chan error)
	go func() {
		_, err := h.c.AssociateAttachment(ctx, a.ID, taskID)
		done <- err
	}()
	waitFor(t, entered)

	// The move confirms with the store's list, which lacks the attachment
	_, err = h.c.MoveTask(ctx, taskID, models.StatusReview)
	require.NoError(t, err)

	release()
	require.NoError(t, <-done)

	task, _ := h.repo.Tasks.Get(taskID)
	assert.Equal(t, models.StatusReview, task.Status)
	assert.Equal(t, []string{a.ID}, task.Attachments)
	require.Len(t, h.c.Attachments(taskID), 1)
	assert.Equal(t, taskID, h.c.Attachments(taskID)[0].TaskID)
	assert.Equal(t, StateConfirmed, h.c.State(a.ID))
}

func TestCalls_CompleteAndReschedule(t *testing.T) {
	h := newHarness(t, "u1")
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)

	_, err := h.c.ScheduleCall(ctx, models.Call{ContactName: " "})
	assert.ErrorIs(t, err, ErrContactRequired)
	_, err = h.c.ScheduleCall(ctx, models.Call{ContactName: "Ada"})
	assert.ErrorIs(t, err, ErrScheduleRequired)

	call, err := h.c.ScheduleCall(ctx, models.Call{ContactName: "Ada", ContactPhone: "555-0100", ScheduledAt: at, Reason: "contract renewal"})
	require.NoError(t, err)
	assert.Equal(t, models.CallScheduled, call.Status)

	moved, err := h.c.RescheduleCall(ctx, call.ID, at.Add(time.Hour), "busy, call back after lunch")
	require.NoError(t, err)
	assert.Equal(t, models.CallRescheduled, moved.Status)
	assert.True(t, at.Add(time.Hour).Equal(moved.ScheduledAt))
	assert.Equal(t, "contract renewal", moved.Reason, "reason survives a reschedule")
	assert.Equal(t, "busy, call back after lunch", moved.Notes)

	h.fake.FailOn("UpdateCall", call.ID, gateway.KindUnavailable)
	_, err = h.c.CompleteCall(ctx, call.ID, "left a message")
	require.Error(t, err)
	local, _ := h.repo.Calls.Get(call.ID)
	assert.Equal(t, models.CallRescheduled, local.Status)
	assert.Nil(t, local.CompletedAt)

	h.fake.Heal("UpdateCall", call.ID)
	done, err := h.c.CompleteCall(ctx, call.ID, "left a message")
	require.NoError(t, err)
	assert.Equal(t, models.CallCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, "left a message", done.Notes)

	require.NoError(t, h.c.LoadCalls(ctx))
	assert.Equal(t, 1, h.repo.Calls.Len())
}

func TestLoad_KeepsPendingCreates(t *testing.T) {
	h := newHarness(t, "u1")
	h.fake.Seed(models.Task{Title: "remote", Status: models.StatusTodo, Priority: models.PriorityLow})

	staged, err := h.c.StageTask(TaskFields{Title: "draft"})
	require.NoError(t, err)
	require.NoError(t, h.c.Load(context.Background()))

	ids := h.taskIDs()
	require.Len(t, ids, 2)
	assert.Equal(t, staged.ID, ids[0])
}

func TestLoad_FailureLeavesWorkingSet(t *testing.T) {
	h := newHarness(t, "u1")
	h.seed(t, models.Task{Title: "a", Status: models.StatusTodo, Priority: models.PriorityLow})
	h.fake.FailOn("ListTasks", "", gateway.KindUnavailable)

	require.Error(t, h.c.Load(context.Background()))
	assert.Equal(t, 1, h.repo.Tasks.Len())
	assert.Equal(t, []string{"Failed to load tasks: simulated unavailable"}, h.notes.failures())
}
