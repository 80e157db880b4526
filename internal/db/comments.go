package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/tgienger/taskboard/internal/models"
)

// CreateComment creates a new comment on a task
func (db *DB) CreateComment(ctx context.Context, c models.Comment) (*models.Comment, error) {
	id := uuid.NewString()
	_, err := db.ExecContext(ctx, `
		INSERT INTO comments (id, task_id, user_id, text, created_at) VALUES (?, ?, ?, ?, ?)
	`, id, c.TaskID, c.UserID, c.Text, now())
	if err != nil {
		return nil, err
	}

	return db.GetComment(ctx, id)
}

// GetComment retrieves a comment by ID
func (db *DB) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	c := &models.Comment{}
	err := db.QueryRowContext(ctx, `
		SELECT id, task_id, user_id, text, created_at
		FROM comments WHERE id = ?
	`, id).Scan(&c.ID, &c.TaskID, &c.UserID, &c.Text, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListComments retrieves all comments for a task, newest first
func (db *DB) ListComments(ctx context.Context, taskID string) ([]models.Comment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, task_id, user_id, text, created_at
		FROM comments
		WHERE task_id = ?
		ORDER BY created_at DESC, id ASC
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.UserID, &c.Text, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// DeleteComment deletes a comment. Only the author's own comments match.
func (db *DB) DeleteComment(ctx context.Context, id, userID string) error {
	result, err := db.ExecContext(ctx, "DELETE FROM comments WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	return affected(result)
}
