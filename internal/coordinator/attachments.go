package coordinator

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/tgienger/taskboard/internal/gateway"
	"github.com/tgienger/taskboard/internal/models"
)

// LoadAttachments replaces the working set's attachments for one task and
// refreshes the task's attachment list
func (c *Coordinator) LoadAttachments(ctx context.Context, taskID string) ([]models.Attachment, error) {
	attachments, err := c.gw.ListAttachments(ctx, taskID)
	if err != nil {
		c.notifier.Failed("Failed to load attachments: " + describe(err))
		return nil, err
	}

	ids := make([]string, len(attachments))
	for i, a := range attachments {
		ids[i] = a.ID
	}

	c.repo.Batch(func() {
		for _, a := range c.repo.Attachments.Filter(func(a models.Attachment) bool { return a.TaskID == taskID }) {
			c.repo.Attachments.Remove(a.ID)
		}
		for _, a := range attachments {
			c.repo.Attachments.Upsert(a)
		}
		c.repo.Tasks.Update(taskID, func(t models.Task) models.Task {
			t.Attachments = ids
			return t
		})
	})
	return attachments, nil
}

// Attachments returns the working set's attachments on a task
func (c *Coordinator) Attachments(taskID string) []models.Attachment {
	return c.repo.Attachments.Filter(func(a models.Attachment) bool { return a.TaskID == taskID })
}

// UploadAttachment stores a file. With an empty taskID the attachment stays
// unassociated until AssociateAttachment links it. Uploads have no
// provisional record: the store returns the identifier.
func (c *Coordinator) UploadAttachment(ctx context.Context, taskID string, u gateway.Upload) (models.Attachment, error) {
	user, err := c.actor()
	if err != nil {
		return models.Attachment{}, err
	}
	if strings.TrimSpace(u.Name) == "" {
		return models.Attachment{}, ErrNameRequired
	}
	if taskID != "" {
		if IsProvisional(taskID) {
			return models.Attachment{}, ErrPendingCreate
		}
		if _, ok := c.repo.Tasks.Get(taskID); !ok {
			return models.Attachment{}, ErrNotFound
		}
	}

	u.TaskID = taskID
	u.UserID = user
	saved, err := c.gw.UploadAttachment(ctx, u)
	if err != nil {
		c.log.Warn("upload failed", "name", u.Name, "error", err)
		c.notifier.Failed("Failed to upload " + u.Name + ": " + describe(err))
		return models.Attachment{}, err
	}

	c.repo.Batch(func() {
		c.repo.Attachments.Upsert(saved)
		if taskID != "" {
			c.repo.Tasks.Update(taskID, func(t models.Task) models.Task {
				if !t.HasAttachment(saved.ID) {
					t.Attachments = append(t.Attachments, saved.ID)
				}
				return t
			})
		}
	})
	c.setState(saved.ID, StateConfirmed)
	return saved, nil
}

// AssociateAttachment links an uploaded attachment to a confirmed task. The
// id is added to the task's attachment list first and taken out again if
// the store refuses.
func (c *Coordinator) AssociateAttachment(ctx context.Context, id, taskID string) (models.Attachment, error) {
	if _, err := c.actor(); err != nil {
		return models.Attachment{}, err
	}
	if IsProvisional(taskID) {
		return models.Attachment{}, ErrPendingCreate
	}

	_, ok := c.repo.Tasks.Update(taskID, func(t models.Task) models.Task {
		if !t.HasAttachment(id) {
			t.Attachments = append(t.Attachments, id)
		}
		return t
	})
	if !ok {
		return models.Attachment{}, ErrNotFound
	}
	c.setState(id, StatePending)

	saved, err := c.gw.AssociateAttachment(ctx, id, taskID)
	if err != nil {
		// Other associations may have landed meanwhile; only take this one out
		if _, ok := c.repo.Tasks.Update(taskID, func(t models.Task) models.Task {
			t.Attachments = slices.DeleteFunc(t.Attachments, func(a string) bool { return a == id })
			return t
		}); !ok {
			c.dropped(id, "attach file")
			return models.Attachment{}, nil
		}
		c.fail(id, "attach file", err)
		return models.Attachment{}, err
	}

	// A task update confirmed meanwhile carries the store's list from before
	// this association
	if _, ok := c.repo.Tasks.Update(taskID, func(t models.Task) models.Task {
		if !t.HasAttachment(id) {
			t.Attachments = append(t.Attachments, id)
		}
		return t
	}); !ok {
		c.dropped(id, "attach file")
		return saved, nil
	}
	c.repo.Attachments.Upsert(saved)
	c.setState(id, StateConfirmed)
	return saved, nil
}

// DeleteAttachment removes an attachment from the working set and from its
// task's list, putting both back if the store refuses
func (c *Coordinator) DeleteAttachment(ctx context.Context, id string) error {
	if _, err := c.actor(); err != nil {
		return err
	}
	if err := c.deleteAttachment(ctx, id); err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.notifier.Failed("Failed to delete attachment: " + describe(err))
		}
		return err
	}
	c.notifier.Succeeded("Attachment deleted")
	return nil
}

// DiscardAttachment deletes an attachment left behind by a workflow that
// did not complete. Nothing is announced to the user.
func (c *Coordinator) DiscardAttachment(ctx context.Context, id string) error {
	err := c.deleteAttachment(ctx, id)
	if errors.Is(err, ErrNotFound) {
		// Not in the working set, but the store may still hold it
		return c.gw.DeleteAttachment(ctx, id)
	}
	return err
}

func (c *Coordinator) deleteAttachment(ctx context.Context, id string) error {
	var (
		removed  models.Attachment
		position int
		ok       bool
		slot     = -1
	)
	c.repo.Batch(func() {
		removed, position, ok = c.repo.Attachments.Remove(id)
		if !ok || removed.TaskID == "" {
			return
		}
		c.repo.Tasks.Update(removed.TaskID, func(t models.Task) models.Task {
			slot = slices.Index(t.Attachments, id)
			if slot >= 0 {
				t.Attachments = slices.Delete(t.Attachments, slot, slot+1)
			}
			return t
		})
	})
	if !ok {
		return ErrNotFound
	}
	c.setState(id, StatePending)

	if err := c.gw.DeleteAttachment(ctx, id); err != nil {
		c.repo.Batch(func() {
			c.repo.Attachments.InsertAt(position, removed)
			if slot >= 0 {
				c.repo.Tasks.Update(removed.TaskID, func(t models.Task) models.Task {
					if !t.HasAttachment(id) {
						t.Attachments = slices.Insert(t.Attachments, min(slot, len(t.Attachments)), id)
					}
					return t
				})
			}
		})
		c.setState(id, StateRolledBack)
		c.log.Warn("mutation rolled back", "op", "delete attachment", "id", id, "error", err)
		return err
	}

	c.setState(id, StateConfirmed)
	return nil
}
