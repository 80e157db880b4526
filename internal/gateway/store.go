package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/tgienger/taskboard/internal/db"
	"github.com/tgienger/taskboard/internal/models"
)

// DefaultTimeout bounds a single store call when none is configured
const DefaultTimeout = 10 * time.Second

// Store is the Gateway backed by the local SQLite database
type Store struct {
	db      *db.DB
	timeout time.Duration
	log     *slog.Logger
}

var _ Gateway = (*Store)(nil)

// NewStore wraps database in the gateway contract
func NewStore(database *db.DB, timeout time.Duration, log *slog.Logger) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{db: database, timeout: timeout, log: log.With("component", "gateway")}
}

// call runs fn under the store timeout and normalizes its error
func (s *Store) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := classify(op, fn(ctx))
	if err != nil {
		s.log.Debug("store call failed", "op", op, "kind", KindOf(err), "duration", time.Since(start), "error", err)
		return err
	}
	s.log.Debug("store call", "op", op, "duration", time.Since(start))
	return nil
}

func (s *Store) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	var out models.Task
	err := s.call(ctx, "create task", func(ctx context.Context) error {
		created, err := s.db.CreateTask(ctx, t)
		if err != nil {
			return err
		}
		out = *created
		return nil
	})
	return out, err
}

func (s *Store) ListTasks(ctx context.Context) ([]models.Task, error) {
	var out []models.Task
	err := s.call(ctx, "list tasks", func(ctx context.Context) (err error) {
		out, err = s.db.ListTasks(ctx)
		return err
	})
	return out, err
}

func (s *Store) GetTask(ctx context.Context, id string) (models.Task, error) {
	var out models.Task
	err := s.call(ctx, "get task", func(ctx context.Context) error {
		t, err := s.db.GetTask(ctx, id)
		if err != nil {
			return err
		}
		out = *t
		return nil
	})
	return out, err
}

func (s *Store) UpdateTask(ctx context.Context, t models.Task) (models.Task, error) {
	var out models.Task
	err := s.call(ctx, "update task", func(ctx context.Context) error {
		updated, err := s.db.UpdateTask(ctx, t)
		if err != nil {
			return err
		}
		out = *updated
		return nil
	})
	return out, err
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	return s.call(ctx, "delete task", func(ctx context.Context) error {
		return s.db.DeleteTask(ctx, id)
	})
}

func (s *Store) CreateComment(ctx context.Context, c models.Comment) (models.Comment, error) {
	var out models.Comment
	err := s.call(ctx, "create comment", func(ctx context.Context) error {
		created, err := s.db.CreateComment(ctx, c)
		if err != nil {
			return err
		}
		out = *created
		return nil
	})
	return out, err
}

func (s *Store) ListComments(ctx context.Context, taskID string) ([]models.Comment, error) {
	var out []models.Comment
	err := s.call(ctx, "list comments", func(ctx context.Context) (err error) {
		out, err = s.db.ListComments(ctx, taskID)
		return err
	})
	return out, err
}

func (s *Store) DeleteComment(ctx context.Context, id, authorID string) error {
	return s.call(ctx, "delete comment", func(ctx context.Context) error {
		return s.db.DeleteComment(ctx, id, authorID)
	})
}

// UploadAttachment stores the bytes and records the metadata. An empty
// content type is sniffed from the data.
func (s *Store) UploadAttachment(ctx context.Context, u Upload) (models.Attachment, error) {
	contentType := u.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(u.Data)
	}

	var out models.Attachment
	err := s.call(ctx, "upload attachment", func(ctx context.Context) error {
		created, err := s.db.CreateAttachment(ctx, db.NewAttachment{
			TaskID:      u.TaskID,
			UserID:      u.UserID,
			Name:        u.Name,
			ContentType: contentType,
			Data:        u.Data,
		})
		if err != nil {
			return err
		}
		out = *created
		return nil
	})
	return out, err
}

func (s *Store) ListAttachments(ctx context.Context, taskID string) ([]models.Attachment, error) {
	var out []models.Attachment
	err := s.call(ctx, "list attachments", func(ctx context.Context) (err error) {
		out, err = s.db.ListAttachments(ctx, taskID)
		return err
	})
	return out, err
}

func (s *Store) AssociateAttachment(ctx context.Context, id, taskID string) (models.Attachment, error) {
	var out models.Attachment
	err := s.call(ctx, "associate attachment", func(ctx context.Context) error {
		a, err := s.db.AssociateAttachment(ctx, id, taskID)
		if err != nil {
			return err
		}
		out = *a
		return nil
	})
	return out, err
}

func (s *Store) DeleteAttachment(ctx context.Context, id string) error {
	return s.call(ctx, "delete attachment", func(ctx context.Context) error {
		return s.db.DeleteAttachment(ctx, id)
	})
}

func (s *Store) ScheduleCall(ctx context.Context, c models.Call) (models.Call, error) {
	var out models.Call
	err := s.call(ctx, "schedule call", func(ctx context.Context) error {
		created, err := s.db.CreateCall(ctx, c)
		if err != nil {
			return err
		}
		out = *created
		return nil
	})
	return out, err
}

func (s *Store) ListCalls(ctx context.Context) ([]models.Call, error) {
	var out []models.Call
	err := s.call(ctx, "list calls", func(ctx context.Context) (err error) {
		out, err = s.db.ListCalls(ctx)
		return err
	})
	return out, err
}

func (s *Store) UpdateCall(ctx context.Context, c models.Call) (models.Call, error) {
	var out models.Call
	err := s.call(ctx, "update call", func(ctx context.Context) error {
		updated, err := s.db.UpdateCall(ctx, c)
		if err != nil {
			return err
		}
		out = *updated
		return nil
	})
	return out, err
}
