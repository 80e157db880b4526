package coordinator

import (
	"context"
	"strings"

	"github.com/tgienger/taskboard/internal/models"
)

// LoadComments replaces the working set's comments for one task
func (c *Coordinator) LoadComments(ctx context.Context, taskID string) ([]models.Comment, error) {
	comments, err := c.gw.ListComments(ctx, taskID)
	if err != nil {
		c.notifier.Failed("Failed to load comments: " + describe(err))
		return nil, err
	}

	c.repo.Batch(func() {
		for _, cm := range c.repo.Comments.Filter(func(cm models.Comment) bool {
			return cm.TaskID == taskID && !IsProvisional(cm.ID)
		}) {
			c.repo.Comments.Remove(cm.ID)
		}
		for _, cm := range comments {
			c.repo.Comments.Upsert(cm)
		}
	})
	return comments, nil
}

// Comments returns the working set's comments on a task, newest first
func (c *Coordinator) Comments(taskID string) []models.Comment {
	return c.repo.Comments.Filter(func(cm models.Comment) bool { return cm.TaskID == taskID })
}

// AddComment posts a comment on a confirmed task
func (c *Coordinator) AddComment(ctx context.Context, taskID, text string) (models.Comment, error) {
	user, err := c.actor()
	if err != nil {
		return models.Comment{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Comment{}, ErrTextRequired
	}
	if IsProvisional(taskID) {
		return models.Comment{}, ErrPendingCreate
	}
	if _, ok := c.repo.Tasks.Get(taskID); !ok {
		return models.Comment{}, ErrNotFound
	}

	comment := models.Comment{
		ID:        newProvisionalID(),
		TaskID:    taskID,
		UserID:    user,
		Text:      text,
		CreatedAt: now(),
	}
	c.repo.Comments.InsertAt(0, comment)
	c.setState(comment.ID, StatePending)

	saved, err := c.gw.CreateComment(ctx, comment)
	if err != nil {
		c.repo.Comments.Remove(comment.ID)
		c.fail(comment.ID, "add comment", err)
		return models.Comment{}, err
	}

	if !c.repo.Comments.Replace(comment.ID, saved) {
		c.dropped(comment.ID, "add comment")
		return saved, nil
	}
	c.setState(comment.ID, StateConfirmed)
	c.setState(saved.ID, StateConfirmed)
	c.notifier.Succeeded("Comment added")
	return saved, nil
}

// DeleteComment removes one of the current actor's own comments
func (c *Coordinator) DeleteComment(ctx context.Context, id string) error {
	user, err := c.actor()
	if err != nil {
		return err
	}
	if IsProvisional(id) {
		return ErrPendingCreate
	}
	comment, ok := c.repo.Comments.Get(id)
	if !ok {
		return ErrNotFound
	}
	if comment.UserID != user {
		return ErrNotAuthor
	}

	removed, position, ok := c.repo.Comments.Remove(id)
	if !ok {
		return ErrNotFound
	}
	c.setState(id, StatePending)

	if err := c.gw.DeleteComment(ctx, id, user); err != nil {
		c.repo.Comments.InsertAt(position, removed)
		c.fail(id, "delete comment", err)
		return err
	}
	c.setState(id, StateConfirmed)
	c.notifier.Succeeded("Comment deleted")
	return nil
}
