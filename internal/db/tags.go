package db

import (
	"context"
)

// getTaskTags returns the tags of a task in the order they were entered
func getTaskTags(ctx context.Context, q querier, taskID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT tag FROM task_tags
		WHERE task_id = ?
		ORDER BY position
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// setTaskTags replaces the tags of a task. Duplicates are ignored so a tag
// appears at most once per task.
func setTaskTags(ctx context.Context, q querier, taskID string, tags []string) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM task_tags WHERE task_id = ?", taskID); err != nil {
		return err
	}

	for i, tag := range tags {
		_, err := q.ExecContext(ctx, `
			INSERT OR IGNORE INTO task_tags (task_id, position, tag) VALUES (?, ?, ?)
		`, taskID, i, tag)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListTags returns every distinct tag in use, alphabetically
func (db *DB) ListTags(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT DISTINCT tag FROM task_tags ORDER BY tag")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}
