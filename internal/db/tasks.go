package db

import (
	"context"
	"database/sql"
	"os"

	"github.com/google/uuid"
	"github.com/tgienger/taskboard/internal/models"
)

const taskColumns = `id, title, description, status, priority, due_date, created_by, created_at, updated_at`

// CreateTask inserts a new task with its tags and returns the stored record.
// The store assigns the ID and both timestamps.
func (db *DB) CreateTask(ctx context.Context, t models.Task) (*models.Task, error) {
	id := uuid.NewString()
	ts := now()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, t.Title, t.Description, t.Status, t.Priority, nullTime(t.DueDate), t.CreatedBy, ts, ts)
	if err != nil {
		return nil, err
	}

	if err := setTaskTags(ctx, tx, id, t.Tags); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return db.GetTask(ctx, id)
}

// GetTask retrieves a task by ID with its tags and attachment IDs
func (db *DB) GetTask(ctx context.Context, id string) (*models.Task, error) {
	row := db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err != nil {
		return nil, err
	}
	if err := db.expandTask(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTasks returns all tasks, newest first
func (db *DB) ListTasks(ctx context.Context) ([]models.Task, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		ORDER BY created_at DESC, id ASC
	`)
	if err != nil {
		return nil, err
	}

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Release the connection before loading the expansions
	rows.Close()

	for i := range tasks {
		if err := db.expandTask(ctx, &tasks[i]); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}

// UpdateTask overwrites the editable fields of a task and returns the stored
// record. Ownership and creation time are never changed.
func (db *DB) UpdateTask(ctx context.Context, t models.Task) (*models.Task, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, due_date = ?, updated_at = ?
		WHERE id = ?
	`, t.Title, t.Description, t.Status, t.Priority, nullTime(t.DueDate), now(), t.ID)
	if err != nil {
		return nil, err
	}
	if err := affected(result); err != nil {
		return nil, err
	}

	if err := setTaskTags(ctx, tx, t.ID, t.Tags); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return db.GetTask(ctx, t.ID)
}

// DeleteTask deletes a task together with its comments, tags and attachments
func (db *DB) DeleteTask(ctx context.Context, id string) error {
	paths, err := db.attachmentPaths(ctx, id)
	if err != nil {
		return err
	}

	result, err := db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return err
	}
	if err := affected(result); err != nil {
		return err
	}

	// Rows are gone through the cascade; the bytes have to be removed by hand
	for _, p := range paths {
		os.Remove(db.blobPath(p))
	}
	return nil
}

func (db *DB) expandTask(ctx context.Context, t *models.Task) error {
	tags, err := getTaskTags(ctx, db, t.ID)
	if err != nil {
		return err
	}
	t.Tags = tags

	ids, err := db.attachmentIDs(ctx, t.ID)
	if err != nil {
		return err
	}
	t.Attachments = ids
	return nil
}

func scanTask(s scanner) (models.Task, error) {
	var (
		t   models.Task
		due sql.NullTime
	)
	err := s.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &due, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return models.Task{}, err
	}
	t.DueDate = timePtr(due)
	return t, nil
}
