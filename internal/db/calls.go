package db

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/tgienger/taskboard/internal/models"
)

const callColumns = `id, task_id, contact_name, contact_phone, scheduled_at, completed_at, status, reason, notes, created_at`

// CreateCall schedules a new call
func (db *DB) CreateCall(ctx context.Context, c models.Call) (*models.Call, error) {
	id := uuid.NewString()
	status := c.Status
	if status == "" {
		status = models.CallScheduled
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO calls (`+callColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, nullString(c.TaskID), c.ContactName, c.ContactPhone, c.ScheduledAt.UTC(), nullTime(c.CompletedAt),
		status, c.Reason, c.Notes, now())
	if err != nil {
		return nil, err
	}

	return db.GetCall(ctx, id)
}

// GetCall retrieves a call by ID
func (db *DB) GetCall(ctx context.Context, id string) (*models.Call, error) {
	row := db.QueryRowContext(ctx, `SELECT `+callColumns+` FROM calls WHERE id = ?`, id)
	c, err := scanCall(row)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCalls returns all calls, soonest first
func (db *DB) ListCalls(ctx context.Context) ([]models.Call, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+callColumns+`
		FROM calls ORDER BY scheduled_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calls []models.Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// UpdateCall updates the schedule, outcome and notes of a call
func (db *DB) UpdateCall(ctx context.Context, c models.Call) (*models.Call, error) {
	result, err := db.ExecContext(ctx, `
		UPDATE calls SET task_id = ?, contact_name = ?, contact_phone = ?, scheduled_at = ?,
			completed_at = ?, status = ?, reason = ?, notes = ?
		WHERE id = ?
	`, nullString(c.TaskID), c.ContactName, c.ContactPhone, c.ScheduledAt.UTC(), nullTime(c.CompletedAt),
		c.Status, c.Reason, c.Notes, c.ID)
	if err != nil {
		return nil, err
	}
	if err := affected(result); err != nil {
		return nil, err
	}
	return db.GetCall(ctx, c.ID)
}

// DeleteCall deletes a call
func (db *DB) DeleteCall(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, "DELETE FROM calls WHERE id = ?", id)
	if err != nil {
		return err
	}
	return affected(result)
}

func scanCall(s scanner) (models.Call, error) {
	var (
		c      models.Call
		taskID sql.NullString
		done   sql.NullTime
	)
	err := s.Scan(&c.ID, &taskID, &c.ContactName, &c.ContactPhone, &c.ScheduledAt, &done,
		&c.Status, &c.Reason, &c.Notes, &c.CreatedAt)
	if err != nil {
		return models.Call{}, err
	}
	c.TaskID = taskID.String
	c.CompletedAt = timePtr(done)
	return c, nil
}
