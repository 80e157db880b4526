// Package association runs workflows that span a task and its attachments
// across several round trips.
//
// A new task's attachments are uploaded while the task create is still in
// flight. Each finished upload waits in a queue keyed by the task's
// provisional identifier. Once the create confirms, every queued attachment
// is associated with the confirmed identifier at once and the manager waits
// for all of them. Partial success is a valid end state.
package association

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize/english"

	"github.com/tgienger/taskboard/internal/coordinator"
	"github.com/tgienger/taskboard/internal/gateway"
	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/notify"
)

// ErrTaskNotCreated marks attachments that could not be linked because the
// task create failed
var ErrTaskNotCreated = errors.New("task was not created")

// Outcome is what happened to one upload
type Outcome struct {
	Name         string
	AttachmentID string // empty when the upload itself failed
	Err          error
}

// OK reports whether the attachment ended up linked to the task
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Result is the end state of a workflow
type Result struct {
	Task     models.Task
	Outcomes []Outcome
}

// Failed returns the outcomes that did not succeed
func (r Result) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Manager sequences task and attachment mutations through the coordinator
type Manager struct {
	coord    *coordinator.Coordinator
	notifier notify.Notifier
	log      *slog.Logger

	mu      sync.Mutex
	pending map[string][]string // provisional task ID -> uploaded attachment IDs
}

// New creates a manager on top of coord
func New(coord *coordinator.Coordinator, notifier notify.Notifier, log *slog.Logger) *Manager {
	if notifier == nil {
		notifier = notify.Discard
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		coord:    coord,
		notifier: notifier,
		log:      log.With("component", "association"),
		pending:  make(map[string][]string),
	}
}

// Pending returns how many uploads are waiting for the task staged under
// provisionalID to be confirmed
func (m *Manager) Pending(provisionalID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending[provisionalID])
}

func (m *Manager) enqueue(provisionalID, attachmentID string) {
	m.mu.Lock()
	m.pending[provisionalID] = append(m.pending[provisionalID], attachmentID)
	m.mu.Unlock()
}

func (m *Manager) drain(provisionalID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.pending[provisionalID]
	delete(m.pending, provisionalID)
	return ids
}

// CreateTaskWithAttachments creates a task and links uploads to it. The
// returned error is the create failure, if any; per-upload failures are in
// the outcomes.
func (m *Manager) CreateTaskWithAttachments(ctx context.Context, fields coordinator.TaskFields, uploads []gateway.Upload) (Result, error) {
	staged, err := m.coord.StageTask(fields)
	if err != nil {
		return Result{}, err
	}

	outcomes := make([]Outcome, len(uploads))
	var wg sync.WaitGroup
	for i, u := range uploads {
		outcomes[i].Name = u.Name
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := m.coord.UploadAttachment(ctx, "", u)
			if err != nil {
				outcomes[i].Err = err
				return
			}
			outcomes[i].AttachmentID = a.ID
			m.enqueue(staged.ID, a.ID)
		}()
	}

	created, createErr := m.coord.CommitTask(ctx, staged)
	wg.Wait()
	queued := m.drain(staged.ID)

	if createErr != nil {
		m.discard(ctx, queued)
		for i := range outcomes {
			outcomes[i].Err = errors.Join(ErrTaskNotCreated, outcomes[i].Err)
		}
		return Result{Outcomes: outcomes}, createErr
	}

	errs := m.associate(ctx, created.ID, queued)
	for i := range outcomes {
		if id := outcomes[i].AttachmentID; id != "" {
			outcomes[i].Err = errs[id]
		}
	}

	result := Result{Task: m.current(created), Outcomes: outcomes}
	m.report(result)
	return result, nil
}

// AttachToTask uploads files straight onto a confirmed task
func (m *Manager) AttachToTask(ctx context.Context, taskID string, uploads []gateway.Upload) (Result, error) {
	if coordinator.IsProvisional(taskID) {
		return Result{}, coordinator.ErrPendingCreate
	}
	task, ok := m.coord.Repository().Tasks.Get(taskID)
	if !ok {
		return Result{}, coordinator.ErrNotFound
	}

	outcomes := make([]Outcome, len(uploads))
	var wg sync.WaitGroup
	for i, u := range uploads {
		outcomes[i].Name = u.Name
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := m.coord.UploadAttachment(ctx, taskID, u)
			outcomes[i].AttachmentID = a.ID
			outcomes[i].Err = err
		}()
	}
	wg.Wait()

	result := Result{Task: m.current(task), Outcomes: outcomes}
	m.report(result)
	return result, nil
}

// associate links every id to taskID concurrently and waits for all of them
func (m *Manager) associate(ctx context.Context, taskID string, ids []string) map[string]error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs = make(map[string]error, len(ids))
	)
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.coord.AssociateAttachment(ctx, id, taskID)
			mu.Lock()
			errs[id] = err
			mu.Unlock()
		}()
	}
	wg.Wait()
	return errs
}

// discard deletes uploads whose task never came to exist
func (m *Manager) discard(ctx context.Context, ids []string) {
	for _, id := range ids {
		if err := m.coord.DiscardAttachment(ctx, id); err != nil {
			m.log.Warn("orphaned attachment", "id", id, "error", err)
		}
	}
}

// current returns the working set's copy of task, which carries the
// attachment list as it stands after the workflow
func (m *Manager) current(task models.Task) models.Task {
	if t, ok := m.coord.Repository().Tasks.Get(task.ID); ok {
		return t
	}
	return task
}

func (m *Manager) report(r Result) {
	failed := len(r.Failed())
	linked := len(r.Outcomes) - failed
	if linked > 0 {
		m.notifier.Succeeded("Attached " + english.Plural(linked, "file", ""))
	}
	if failed > 0 {
		m.notifier.Failed(fmt.Sprintf("%d of %s could not be attached", failed, english.Plural(len(r.Outcomes), "file", "")))
	}
}
