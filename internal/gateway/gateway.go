// Package gateway wraps the remote persistence service behind one uniform
// contract. Each call is a single round trip: no retries, no caching. Every
// failure comes back as an *Error carrying a Kind.
package gateway

import (
	"context"
	"mime"
	"os"
	"path/filepath"

	"github.com/tgienger/taskboard/internal/models"
)

// Tasks is the task half of the remote store
type Tasks interface {
	CreateTask(ctx context.Context, t models.Task) (models.Task, error)
	ListTasks(ctx context.Context) ([]models.Task, error)
	GetTask(ctx context.Context, id string) (models.Task, error)
	UpdateTask(ctx context.Context, t models.Task) (models.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// Comments is the comment half of the remote store
type Comments interface {
	CreateComment(ctx context.Context, c models.Comment) (models.Comment, error)
	ListComments(ctx context.Context, taskID string) ([]models.Comment, error)
	// DeleteComment only deletes the comment if authorID wrote it
	DeleteComment(ctx context.Context, id, authorID string) error
}

// Upload is a file on its way to the store
type Upload struct {
	TaskID      string // optional; empty uploads stay unassociated
	UserID      string
	Name        string
	ContentType string
	Data        []byte
}

// UploadFromFile reads a file from disk into an Upload. The content type
// comes from the extension; the store sniffs it when the extension is
// unknown.
func UploadFromFile(path string) (Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Upload{}, err
	}
	return Upload{
		Name:        filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Data:        data,
	}, nil
}

// Attachments covers file uploads and their association with tasks
type Attachments interface {
	UploadAttachment(ctx context.Context, u Upload) (models.Attachment, error)
	ListAttachments(ctx context.Context, taskID string) ([]models.Attachment, error)
	AssociateAttachment(ctx context.Context, id, taskID string) (models.Attachment, error)
	DeleteAttachment(ctx context.Context, id string) error
}

// Calls covers scheduled calls
type Calls interface {
	ScheduleCall(ctx context.Context, c models.Call) (models.Call, error)
	ListCalls(ctx context.Context) ([]models.Call, error)
	UpdateCall(ctx context.Context, c models.Call) (models.Call, error)
}

// Gateway is the full remote store contract the core depends on
type Gateway interface {
	Tasks
	Comments
	Attachments
	Calls
}
