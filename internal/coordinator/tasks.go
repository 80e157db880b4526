package coordinator

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/tgienger/taskboard/internal/models"
)

// TaskFields are the user-editable fields of a task
type TaskFields struct {
	Title       string
	Description string
	Status      models.Status
	Priority    models.Priority
	DueDate     *time.Time
	Tags        []string
}

// FieldsOf returns the editable fields of t
func FieldsOf(t models.Task) TaskFields {
	t = t.Clone()
	return TaskFields{
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		DueDate:     t.DueDate,
		Tags:        t.Tags,
	}
}

// normalize applies defaults and validates. New tasks start as todo with
// medium priority.
func (f TaskFields) normalize() (TaskFields, error) {
	f.Title = strings.TrimSpace(f.Title)
	if f.Title == "" {
		return f, ErrTitleRequired
	}
	f.Description = strings.TrimSpace(f.Description)
	if f.Status == "" {
		f.Status = models.StatusTodo
	}
	if !f.Status.Valid() {
		return f, ErrInvalidStatus
	}
	if f.Priority == "" {
		f.Priority = models.PriorityMedium
	}
	if !f.Priority.Valid() {
		return f, ErrInvalidPriority
	}
	f.Tags = models.NormalizeTags(f.Tags)
	if f.DueDate != nil {
		due := f.DueDate.UTC()
		f.DueDate = &due
	}
	return f, nil
}

func (f TaskFields) apply(t models.Task) models.Task {
	t.Title = f.Title
	t.Description = f.Description
	t.Status = f.Status
	t.Priority = f.Priority
	t.DueDate = f.DueDate
	t.Tags = slices.Clone(f.Tags)
	return t
}

// Load replaces the task working set with the store's tasks. Tasks whose
// create is still pending are kept in front.
func (c *Coordinator) Load(ctx context.Context) error {
	tasks, err := c.gw.ListTasks(ctx)
	if err != nil {
		c.log.Warn("load tasks", "error", err)
		c.notifier.Failed("Failed to load tasks: " + describe(err))
		return err
	}

	pending := c.repo.Tasks.Filter(func(t models.Task) bool { return IsProvisional(t.ID) })
	c.repo.Tasks.Reset(append(pending, tasks...))
	c.log.Debug("tasks loaded", "count", len(tasks), "pending", len(pending))
	return nil
}

// CreateTask stages a task under a provisional identifier and commits it to
// the store
func (c *Coordinator) CreateTask(ctx context.Context, fields TaskFields) (models.Task, error) {
	staged, err := c.StageTask(fields)
	if err != nil {
		return models.Task{}, err
	}
	return c.CommitTask(ctx, staged)
}

// StageTask validates fields and writes the new task into the working set
// under a provisional identifier. Nothing is sent to the store.
func (c *Coordinator) StageTask(fields TaskFields) (models.Task, error) {
	user, err := c.actor()
	if err != nil {
		return models.Task{}, err
	}
	fields, err = fields.normalize()
	if err != nil {
		return models.Task{}, err
	}

	ts := now()
	task := fields.apply(models.Task{
		ID:          newProvisionalID(),
		CreatedBy:   user,
		CreatedAt:   ts,
		UpdatedAt:   ts,
		Attachments: []string{},
	})

	// Newest first, like the store's listing
	c.repo.Tasks.InsertAt(0, task)
	c.setState(task.ID, StatePending)
	return task, nil
}

// CommitTask sends a staged task to the store. On success the provisional
// record is swapped for the store's record in the same slot; on failure it
// is removed.
func (c *Coordinator) CommitTask(ctx context.Context, staged models.Task) (models.Task, error) {
	provisionalID := staged.ID
	staged.ID = ""

	created, err := c.gw.CreateTask(ctx, staged)
	if err != nil {
		c.repo.Tasks.Remove(provisionalID)
		c.fail(provisionalID, "create task", err)
		return models.Task{}, err
	}

	if !c.repo.Tasks.Replace(provisionalID, created) {
		c.dropped(provisionalID, "create task")
		return created, nil
	}
	c.setState(provisionalID, StateConfirmed)
	c.setState(created.ID, StateConfirmed)
	c.notifier.Succeeded("Task created successfully")
	return created, nil
}

// UpdateTask writes the full updated record optimistically and sends it to
// the store, restoring the prior record if the store refuses
func (c *Coordinator) UpdateTask(ctx context.Context, id string, fields TaskFields) (models.Task, error) {
	if _, err := c.actor(); err != nil {
		return models.Task{}, err
	}
	fields, err := fields.normalize()
	if err != nil {
		return models.Task{}, err
	}
	if IsProvisional(id) {
		return models.Task{}, ErrPendingCreate
	}

	var next models.Task
	prev, ok := c.repo.Tasks.Update(id, func(t models.Task) models.Task {
		next = fields.apply(t)
		return next
	})
	if !ok {
		return models.Task{}, ErrNotFound
	}
	return c.reconcileTask(ctx, "update task", "Task updated successfully", prev, next)
}

// MoveTask changes a task's status. Moving a task to the status it already
// has does nothing.
func (c *Coordinator) MoveTask(ctx context.Context, id string, status models.Status) (models.Task, error) {
	if _, err := c.actor(); err != nil {
		return models.Task{}, err
	}
	if !status.Valid() {
		return models.Task{}, ErrInvalidStatus
	}
	if IsProvisional(id) {
		return models.Task{}, ErrPendingCreate
	}

	current, ok := c.repo.Tasks.Get(id)
	if !ok {
		return models.Task{}, ErrNotFound
	}
	if current.Status == status {
		return current, nil
	}

	var next models.Task
	prev, ok := c.repo.Tasks.Update(id, func(t models.Task) models.Task {
		t.Status = status
		next = t
		return t
	})
	if !ok {
		return models.Task{}, ErrNotFound
	}
	return c.reconcileTask(ctx, "move task", "Task moved to "+status.Label(), prev, next)
}

func (c *Coordinator) reconcileTask(ctx context.Context, what, success string, prev, next models.Task) (models.Task, error) {
	c.setState(next.ID, StatePending)

	saved, err := c.gw.UpdateTask(ctx, next)
	if err != nil {
		if !revert(c.repo.Tasks, next.ID, prev) {
			c.dropped(next.ID, what)
			return models.Task{}, nil
		}
		c.fail(next.ID, what, err)
		return models.Task{}, err
	}

	if !confirm(c.repo.Tasks, next.ID, saved) {
		c.dropped(next.ID, what)
		return saved, nil
	}
	c.setState(next.ID, StateConfirmed)
	c.notifier.Succeeded(success)
	return saved, nil
}

// DeleteTask removes a task optimistically. If the store refuses, the task
// goes back to the position it had.
func (c *Coordinator) DeleteTask(ctx context.Context, id string) error {
	if _, err := c.actor(); err != nil {
		return err
	}
	if IsProvisional(id) {
		return ErrPendingCreate
	}

	removed, position, ok := c.repo.Tasks.Remove(id)
	if !ok {
		return ErrNotFound
	}
	c.setState(id, StatePending)

	if err := c.gw.DeleteTask(ctx, id); err != nil {
		c.repo.Tasks.InsertAt(position, removed)
		c.fail(id, "delete task", err)
		return err
	}

	// The store cascades; mirror that in the working set
	c.repo.Batch(func() {
		for _, cm := range c.repo.Comments.Filter(func(cm models.Comment) bool { return cm.TaskID == id }) {
			c.repo.Comments.Remove(cm.ID)
		}
		for _, a := range c.repo.Attachments.Filter(func(a models.Attachment) bool { return a.TaskID == id }) {
			c.repo.Attachments.Remove(a.ID)
		}
		for _, call := range c.repo.Calls.Filter(func(call models.Call) bool { return call.TaskID == id }) {
			c.repo.Calls.Update(call.ID, func(call models.Call) models.Call {
				call.TaskID = ""
				return call
			})
		}
	})

	c.setState(id, StateConfirmed)
	c.notifier.Succeeded("Task deleted successfully")
	return nil
}
