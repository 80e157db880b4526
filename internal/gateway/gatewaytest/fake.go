// Package gatewaytest provides an in-memory Gateway for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/tgienger/taskboard/internal/gateway"
	"github.com/tgienger/taskboard/internal/models"
)

// Fake is an in-memory Gateway with programmable failures and gates that
// hold a call until the test releases it. It is safe for concurrent use.
type Fake struct {
	mu sync.Mutex

	seq         int
	tasks       []models.Task
	comments    []models.Comment
	attachments []models.Attachment
	calls       []models.Call

	counts map[string]int
	fails  map[string]error // "op" or "op:key"
	gates  map[string]*gate
}

type gate struct {
	entered chan struct{}
	release chan struct{}
}

var _ gateway.Gateway = (*Fake)(nil)

// NewFake returns an empty Fake
func NewFake() *Fake {
	return &Fake{
		counts: make(map[string]int),
		fails:  make(map[string]error),
		gates:  make(map[string]*gate),
	}
}

// FailOn makes op fail. An empty key fails every call, otherwise only calls
// addressing key (an id or upload name).
func (f *Fake) FailOn(op, key string, kind gateway.Kind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fails[ruleKey(op, key)] = gateway.NewError(op, kind, "simulated "+string(kind))
}

// Block holds every call to op until release is called. entered receives
// once per call that reaches the gate.
func (f *Fake) Block(op string) (entered <-chan struct{}, release func()) {
	g := &gate{entered: make(chan struct{}, 16), release: make(chan struct{})}
	f.mu.Lock()
	f.gates[op] = g
	f.mu.Unlock()

	var once sync.Once
	return g.entered, func() { once.Do(func() { close(g.release) }) }
}

// Heal removes a failure set with FailOn
func (f *Fake) Heal(op, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.fails, ruleKey(op, key))
}

// Count returns how many times op was called
func (f *Fake) Count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[op]
}

// Seed stores tasks as if they had been created earlier. Missing IDs and
// timestamps are filled in.
func (f *Fake) Seed(tasks ...models.Task) []models.Task {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		t = t.Clone()
		if t.ID == "" {
			t.ID = f.nextID("srv")
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = time.Date(2024, 1, 1, 0, 0, f.seq, 0, time.UTC)
			t.UpdatedAt = t.CreatedAt
		}
		if t.Tags == nil {
			t.Tags = []string{}
		}
		if t.Attachments == nil {
			t.Attachments = []string{}
		}
		f.tasks = slices.Insert(f.tasks, 0, t)
		out = append(out, t.Clone())
	}
	return out
}

// Tasks returns the stored tasks, newest first
func (f *Fake) Tasks() []models.Task {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]models.Task, len(f.tasks))
	for i, t := range f.tasks {
		out[i] = t.Clone()
	}
	return out
}

// Attachments returns every stored attachment
func (f *Fake) Attachments() []models.Attachment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.attachments)
}

func ruleKey(op, key string) string {
	if key == "" {
		return op
	}
	return op + ":" + key
}

// enter records the call, waits at the op's gate and returns the
// programmed failure, if any
func (f *Fake) enter(ctx context.Context, op, key string) error {
	f.mu.Lock()
	f.counts[op]++
	g := f.gates[op]
	f.mu.Unlock()

	if g != nil {
		g.entered <- struct{}{}
		select {
		case <-g.release:
		case <-ctx.Done():
			return gateway.NewError(op, gateway.KindTimeout, "request timed out")
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fails[ruleKey(op, key)]; ok {
		return err
	}
	if err, ok := f.fails[op]; ok {
		return err
	}
	return nil
}

func (f *Fake) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func notFound(op string) error {
	return gateway.NewError(op, gateway.KindNotFound, "record not found")
}

func (f *Fake) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	if err := f.enter(ctx, "CreateTask", t.Title); err != nil {
		return models.Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	t = t.Clone()
	t.ID = f.nextID("srv")
	t.CreatedAt = time.Date(2024, 1, 1, 0, 0, f.seq, 0, time.UTC)
	t.UpdatedAt = t.CreatedAt
	if t.Tags == nil {
		t.Tags = []string{}
	}
	t.Attachments = []string{}
	f.tasks = slices.Insert(f.tasks, 0, t)
	return t.Clone(), nil
}

func (f *Fake) ListTasks(ctx context.Context) ([]models.Task, error) {
	if err := f.enter(ctx, "ListTasks", ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]models.Task, len(f.tasks))
	for i, t := range f.tasks {
		out[i] = t.Clone()
	}
	return out, nil
}

func (f *Fake) GetTask(ctx context.Context, id string) (models.Task, error) {
	if err := f.enter(ctx, "GetTask", id); err != nil {
		return models.Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if i := slices.IndexFunc(f.tasks, func(t models.Task) bool { return t.ID == id }); i >= 0 {
		return f.tasks[i].Clone(), nil
	}
	return models.Task{}, notFound("GetTask")
}

func (f *Fake) UpdateTask(ctx context.Context, t models.Task) (models.Task, error) {
	if err := f.enter(ctx, "UpdateTask", t.ID); err != nil {
		return models.Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	i := slices.IndexFunc(f.tasks, func(x models.Task) bool { return x.ID == t.ID })
	if i < 0 {
		return models.Task{}, notFound("UpdateTask")
	}
	stored := f.tasks[i]
	t = t.Clone()
	t.CreatedBy = stored.CreatedBy
	t.CreatedAt = stored.CreatedAt
	t.UpdatedAt = stored.UpdatedAt.Add(time.Minute)
	t.Attachments = stored.Attachments
	f.tasks[i] = t
	return t.Clone(), nil
}

func (f *Fake) DeleteTask(ctx context.Context, id string) error {
	if err := f.enter(ctx, "DeleteTask", id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.tasks)
	f.tasks = slices.DeleteFunc(f.tasks, func(t models.Task) bool { return t.ID == id })
	if len(f.tasks) == n {
		return notFound("DeleteTask")
	}
	return nil
}

func (f *Fake) CreateComment(ctx context.Context, c models.Comment) (models.Comment, error) {
	if err := f.enter(ctx, "CreateComment", c.TaskID); err != nil {
		return models.Comment{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	c.ID = f.nextID("cmt")
	f.comments = slices.Insert(f.comments, 0, c)
	return c, nil
}

func (f *Fake) ListComments(ctx context.Context, taskID string) ([]models.Comment, error) {
	if err := f.enter(ctx, "ListComments", taskID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Comment
	for _, c := range f.comments {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *Fake) DeleteComment(ctx context.Context, id, authorID string) error {
	if err := f.enter(ctx, "DeleteComment", id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.comments)
	f.comments = slices.DeleteFunc(f.comments, func(c models.Comment) bool { return c.ID == id && c.UserID == authorID })
	if len(f.comments) == n {
		return notFound("DeleteComment")
	}
	return nil
}

func (f *Fake) UploadAttachment(ctx context.Context, u gateway.Upload) (models.Attachment, error) {
	if err := f.enter(ctx, "UploadAttachment", u.Name); err != nil {
		return models.Attachment{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	a := models.Attachment{
		ID:          f.nextID("att"),
		TaskID:      u.TaskID,
		Name:        u.Name,
		Size:        int64(len(u.Data)),
		ContentType: u.ContentType,
		UserID:      u.UserID,
	}
	a.Path = "task-attachments/" + u.UserID + "/" + a.ID
	a.URL = "file:///files/" + a.Path
	f.attachments = append(f.attachments, a)
	if u.TaskID != "" {
		f.linkLocked(a.ID, u.TaskID)
	}
	return a, nil
}

func (f *Fake) linkLocked(id, taskID string) {
	if i := slices.IndexFunc(f.tasks, func(t models.Task) bool { return t.ID == taskID }); i >= 0 {
		f.tasks[i].Attachments = append(f.tasks[i].Attachments, id)
	}
}

func (f *Fake) ListAttachments(ctx context.Context, taskID string) ([]models.Attachment, error) {
	if err := f.enter(ctx, "ListAttachments", taskID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Attachment
	for _, a := range f.attachments {
		if a.TaskID == taskID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *Fake) AssociateAttachment(ctx context.Context, id, taskID string) (models.Attachment, error) {
	if err := f.enter(ctx, "AssociateAttachment", id); err != nil {
		return models.Attachment{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	i := slices.IndexFunc(f.attachments, func(a models.Attachment) bool { return a.ID == id })
	if i < 0 {
		return models.Attachment{}, notFound("AssociateAttachment")
	}
	f.attachments[i].TaskID = taskID
	f.linkLocked(id, taskID)
	return f.attachments[i], nil
}

func (f *Fake) DeleteAttachment(ctx context.Context, id string) error {
	if err := f.enter(ctx, "DeleteAttachment", id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.attachments)
	f.attachments = slices.DeleteFunc(f.attachments, func(a models.Attachment) bool { return a.ID == id })
	if len(f.attachments) == n {
		return notFound("DeleteAttachment")
	}
	return nil
}

func (f *Fake) ScheduleCall(ctx context.Context, c models.Call) (models.Call, error) {
	if err := f.enter(ctx, "ScheduleCall", c.ContactName); err != nil {
		return models.Call{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	c = c.Clone()
	c.ID = f.nextID("call")
	f.calls = append(f.calls, c)
	return c.Clone(), nil
}

func (f *Fake) ListCalls(ctx context.Context) ([]models.Call, error) {
	if err := f.enter(ctx, "ListCalls", ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]models.Call, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Clone()
	}
	return out, nil
}

func (f *Fake) UpdateCall(ctx context.Context, c models.Call) (models.Call, error) {
	if err := f.enter(ctx, "UpdateCall", c.ID); err != nil {
		return models.Call{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	i := slices.IndexFunc(f.calls, func(x models.Call) bool { return x.ID == c.ID })
	if i < 0 {
		return models.Call{}, notFound("UpdateCall")
	}
	f.calls[i] = c.Clone()
	return c.Clone(), nil
}
