package db

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/tgienger/taskboard/internal/models"
)

const attachmentColumns = `id, task_id, name, size, content_type, path, user_id, created_at`

// NewAttachment describes a file being uploaded
type NewAttachment struct {
	TaskID      string // optional
	UserID      string
	Name        string
	ContentType string
	Data        []byte
}

// storagePath builds a unique path for an upload: task-attachments/<user>/<uuid>.<ext>
func storagePath(userID, name string) string {
	return path.Join("task-attachments", userID, uuid.NewString()+strings.ToLower(filepath.Ext(name)))
}

// CreateAttachment stores the file bytes and records the attachment. The
// storage path is assigned here, before any task association exists.
func (db *DB) CreateAttachment(ctx context.Context, a NewAttachment) (*models.Attachment, error) {
	id := uuid.NewString()
	p := storagePath(a.UserID, a.Name)

	blob := db.blobPath(p)
	if err := os.MkdirAll(filepath.Dir(blob), 0755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(blob, a.Data, 0644); err != nil {
		return nil, err
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO attachments (`+attachmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, nullString(a.TaskID), a.Name, len(a.Data), a.ContentType, p, a.UserID, now())
	if err != nil {
		os.Remove(blob)
		return nil, err
	}

	return db.GetAttachment(ctx, id)
}

// GetAttachment retrieves an attachment by ID
func (db *DB) GetAttachment(ctx context.Context, id string) (*models.Attachment, error) {
	row := db.QueryRowContext(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE id = ?`, id)
	a, err := db.scanAttachment(row)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAttachments returns the attachments owned by a task, oldest first
func (db *DB) ListAttachments(ctx context.Context, taskID string) ([]models.Attachment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+attachmentColumns+`
		FROM attachments
		WHERE task_id = ?
		ORDER BY created_at ASC, id ASC
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attachments []models.Attachment
	for rows.Next() {
		a, err := db.scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

// AssociateAttachment links an uploaded attachment to a task
func (db *DB) AssociateAttachment(ctx context.Context, id, taskID string) (*models.Attachment, error) {
	result, err := db.ExecContext(ctx, "UPDATE attachments SET task_id = ? WHERE id = ?", taskID, id)
	if err != nil {
		return nil, err
	}
	if err := affected(result); err != nil {
		return nil, err
	}
	return db.GetAttachment(ctx, id)
}

// DeleteAttachment removes the stored bytes first, then the record
func (db *DB) DeleteAttachment(ctx context.Context, id string) error {
	var p string
	if err := db.QueryRowContext(ctx, "SELECT path FROM attachments WHERE id = ?", id).Scan(&p); err != nil {
		return err
	}

	if err := os.Remove(db.blobPath(p)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	result, err := db.ExecContext(ctx, "DELETE FROM attachments WHERE id = ?", id)
	if err != nil {
		return err
	}
	return affected(result)
}

func (db *DB) attachmentIDs(ctx context.Context, taskID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id FROM attachments WHERE task_id = ? ORDER BY created_at ASC, id ASC
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (db *DB) attachmentPaths(ctx context.Context, taskID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT path FROM attachments WHERE task_id = ?", taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

func (db *DB) scanAttachment(s scanner) (models.Attachment, error) {
	var a models.Attachment
	var taskID sql.NullString
	err := s.Scan(&a.ID, &taskID, &a.Name, &a.Size, &a.ContentType, &a.Path, &a.UserID, &a.CreatedAt)
	if err != nil {
		return models.Attachment{}, err
	}
	a.TaskID = taskID.String
	a.URL = db.FileURL(a.Path)
	return a, nil
}
