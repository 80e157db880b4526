package association

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/taskboard/internal/coordinator"
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

// setup wires a manager over a fake store. The returned recorder only sees
// the manager's summaries; the coordinator's own notifications go elsewhere.
func setup(t *testing.T) (*Manager, *gatewaytest.Fake, *repository.Repository, *recorder) {
	t.Helper()
	repo := repository.New()
	fake := gatewaytest.NewFake()
	notes := &recorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	coord := coordinator.New(repo, fake, identity.Static("u1"), &recorder{}, logger)
	return New(coord, notes, logger), fake, repo, notes
}

func uploads(names ...string) []gateway.Upload {
	out := make([]gateway.Upload, len(names))
	for i, name := range names {
		out[i] = gateway.Upload{Name: name, ContentType: "text/plain", Data: []byte(name)}
	}
	return out
}

func TestCreateTaskWithAttachments_AllAssociated(t *testing.T) {
	m, fake, repo, notes := setup(t)

	result, err := m.CreateTaskWithAttachments(context.Background(), coordinator.TaskFields{Title: "Renew license"}, uploads("scan.pdf", "photo.jpg"))
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 2)
	for _, o := range result.Outcomes {
		assert.NoError(t, o.Err, o.Name)
		assert.NotEmpty(t, o.AttachmentID)
	}

	task, ok := repo.Tasks.Get(result.Task.ID)
	require.True(t, ok)
	assert.False(t, coordinator.IsProvisional(task.ID))
	assert.ElementsMatch(t, []string{result.Outcomes[0].AttachmentID, result.Outcomes[1].AttachmentID}, task.Attachments)
	assert.Equal(t, 2, fake.Count("AssociateAttachment"))
	for _, a := range fake.Attachments() {
		assert.Equal(t, task.ID, a.TaskID)
	}
	assert.Equal(t, []string{"Attached 2 files"}, notes.succeeded)
}

func TestCreateTaskWithAttachments_OneAssociationFails(t *testing.T) {
	m, fake, repo, notes := setup(t)
	ctx := context.Background()

	// Hold the create until both uploads are queued, then make "bad.txt"
	// fail to associate
	entered, release := fake.Block("CreateTask")

	type res struct {
		r   Result
		err error
	}
	done := make(chan res, 1)
	go func() {
		r, err := m.CreateTaskWithAttachments(ctx, coordinator.TaskFields{Title: "Renew license"}, uploads("good.txt", "bad.txt"))
		done <- res{r, err}
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("create never reached the store")
	}

	staged := repo.Tasks.Snapshot()
	require.Len(t, staged, 1)
	require.True(t, coordinator.IsProvisional(staged[0].ID))
	require.Eventually(t, func() bool { return m.Pending(staged[0].ID) == 2 }, 2*time.Second, 5*time.Millisecond)

	for _, a := range fake.Attachments() {
		assert.Empty(t, a.TaskID, "uploads stay unassociated while the create is pending")
		if a.Name == "bad.txt" {
			fake.FailOn("AssociateAttachment", a.ID, gateway.KindConflict)
		}
	}
	release()

	got := <-done
	require.NoError(t, got.err)
	assert.Zero(t, m.Pending(staged[0].ID))

	require.Len(t, got.r.Outcomes, 2)
	assert.Equal(t, "good.txt", got.r.Outcomes[0].Name)
	assert.True(t, got.r.Outcomes[0].OK())
	assert.Equal(t, "bad.txt", got.r.Outcomes[1].Name)
	assert.False(t, got.r.Outcomes[1].OK())
	assert.Equal(t, gateway.KindConflict, gateway.KindOf(got.r.Outcomes[1].Err))
	require.Len(t, got.r.Failed(), 1)

	task, ok := repo.Tasks.Get(got.r.Task.ID)
	require.True(t, ok, "task is not rolled back")
	assert.Equal(t, []string{got.r.Outcomes[0].AttachmentID}, task.Attachments)
	assert.Equal(t, task.Attachments, got.r.Task.Attachments)

	assert.Equal(t, []string{"Attached 1 file"}, notes.succeeded)
	assert.Equal(t, []string{"1 of 2 files could not be attached"}, notes.failed)
}

func TestCreateTaskWithAttachments_CreateFails(t *testing.T) {
	m, fake, repo, _ := setup(t)
	fake.FailOn("CreateTask", "", gateway.KindUnavailable)

	result, err := m.CreateTaskWithAttachments(context.Background(), coordinator.TaskFields{Title: "Book travel"}, uploads("a.txt", "b.txt"))
	require.Error(t, err)
	assert.Equal(t, gateway.KindUnavailable, gateway.KindOf(err))

	require.Len(t, result.Outcomes, 2)
	for _, o := range result.Outcomes {
		assert.True(t, errors.Is(o.Err, ErrTaskNotCreated), o.Name)
	}
	assert.Zero(t, repo.Tasks.Len())
	assert.Empty(t, fake.Attachments(), "uploads are deleted when the task is not created")
	assert.Zero(t, repo.Attachments.Len())
	assert.Zero(t, fake.Count("AssociateAttachment"))
}

func TestCreateTaskWithAttachments_UploadFails(t *testing.T) {
	m, fake, repo, notes := setup(t)
	fake.FailOn("UploadAttachment", "broken.bin", gateway.KindInvalid)

	result, err := m.CreateTaskWithAttachments(context.Background(), coordinator.TaskFields{Title: "t"}, uploads("ok.txt", "broken.bin"))
	require.NoError(t, err)

	assert.True(t, result.Outcomes[0].OK())
	assert.False(t, result.Outcomes[1].OK())
	assert.Empty(t, result.Outcomes[1].AttachmentID)

	task, _ := repo.Tasks.Get(result.Task.ID)
	assert.Equal(t, []string{result.Outcomes[0].AttachmentID}, task.Attachments)
	assert.Equal(t, 1, fake.Count("AssociateAttachment"))
	assert.Len(t, notes.failed, 1)
}

func TestCreateTaskWithAttachments_ValidationFirst(t *testing.T) {
	m, fake, repo, _ := setup(t)

	_, err := m.CreateTaskWithAttachments(context.Background(), coordinator.TaskFields{}, uploads("a.txt"))
	assert.ErrorIs(t, err, coordinator.ErrTitleRequired)
	assert.Zero(t, repo.Tasks.Len())
	assert.Zero(t, fake.Count("UploadAttachment"))
}

func TestAttachToTask(t *testing.T) {
	m, fake, repo, _ := setup(t)
	ctx := context.Background()

	stored := fake.Seed(models.Task{Title: "a", Status: models.StatusTodo, Priority: models.PriorityLow})
	repo.Tasks.Reset(stored)

	result, err := m.AttachToTask(ctx, stored[0].ID, uploads("x.txt", "y.txt"))
	require.NoError(t, err)
	assert.Empty(t, result.Failed())
	assert.Len(t, result.Task.Attachments, 2)
	assert.Zero(t, fake.Count("AssociateAttachment"))

	_, err = m.AttachToTask(ctx, "missing", uploads("z.txt"))
	assert.ErrorIs(t, err, coordinator.ErrNotFound)
	_, err = m.AttachToTask(ctx, "tmp-1", uploads("z.txt"))
	assert.ErrorIs(t, err, coordinator.ErrPendingCreate)
}
