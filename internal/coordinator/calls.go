package coordinator

import (
	"context"
	"strings"
	"time"

	"github.com/tgienger/taskboard/internal/models"
)

// LoadCalls replaces the working set's calls with the store's
func (c *Coordinator) LoadCalls(ctx context.Context) error {
	calls, err := c.gw.ListCalls(ctx)
	if err != nil {
		c.notifier.Failed("Failed to load calls: " + describe(err))
		return err
	}
	pending := c.repo.Calls.Filter(func(call models.Call) bool { return IsProvisional(call.ID) })
	c.repo.Calls.Reset(append(pending, calls...))
	return nil
}

// ScheduleCall books a call with a contact, optionally about a task
func (c *Coordinator) ScheduleCall(ctx context.Context, call models.Call) (models.Call, error) {
	if _, err := c.actor(); err != nil {
		return models.Call{}, err
	}
	call.ContactName = strings.TrimSpace(call.ContactName)
	if call.ContactName == "" {
		return models.Call{}, ErrContactRequired
	}
	if call.ScheduledAt.IsZero() {
		return models.Call{}, ErrScheduleRequired
	}
	if IsProvisional(call.TaskID) {
		return models.Call{}, ErrPendingCreate
	}

	call.ID = newProvisionalID()
	call.Status = models.CallScheduled
	call.CompletedAt = nil
	call.CreatedAt = now()
	c.repo.Calls.Upsert(call)
	c.setState(call.ID, StatePending)

	pending := call
	pending.ID = ""
	saved, err := c.gw.ScheduleCall(ctx, pending)
	if err != nil {
		c.repo.Calls.Remove(call.ID)
		c.fail(call.ID, "schedule call", err)
		return models.Call{}, err
	}

	if !c.repo.Calls.Replace(call.ID, saved) {
		c.dropped(call.ID, "schedule call")
		return saved, nil
	}
	c.setState(call.ID, StateConfirmed)
	c.setState(saved.ID, StateConfirmed)
	c.notifier.Succeeded("Call scheduled")
	return saved, nil
}

// CompleteCall marks a call as done, keeping the notes taken during it
func (c *Coordinator) CompleteCall(ctx context.Context, id, notes string) (models.Call, error) {
	return c.updateCall(ctx, id, "complete call", "Call completed", func(call models.Call) models.Call {
		done := now()
		call.Status = models.CallCompleted
		call.CompletedAt = &done
		call.Notes = strings.TrimSpace(notes)
		return call
	})
}

// RescheduleCall moves a call to a new time, keeping the notes taken when
// it was put off
func (c *Coordinator) RescheduleCall(ctx context.Context, id string, at time.Time, notes string) (models.Call, error) {
	if at.IsZero() {
		return models.Call{}, ErrScheduleRequired
	}
	return c.updateCall(ctx, id, "reschedule call", "Call rescheduled", func(call models.Call) models.Call {
		call.Status = models.CallRescheduled
		call.ScheduledAt = at.UTC()
		call.CompletedAt = nil
		call.Notes = strings.TrimSpace(notes)
		return call
	})
}

func (c *Coordinator) updateCall(ctx context.Context, id, what, success string, change func(models.Call) models.Call) (models.Call, error) {
	if _, err := c.actor(); err != nil {
		return models.Call{}, err
	}
	if IsProvisional(id) {
		return models.Call{}, ErrPendingCreate
	}

	var next models.Call
	prev, ok := c.repo.Calls.Update(id, func(call models.Call) models.Call {
		next = change(call)
		return next
	})
	if !ok {
		return models.Call{}, ErrNotFound
	}
	c.setState(id, StatePending)

	saved, err := c.gw.UpdateCall(ctx, next)
	if err != nil {
		if !revert(c.repo.Calls, id, prev) {
			c.dropped(id, what)
			return models.Call{}, nil
		}
		c.fail(id, what, err)
		return models.Call{}, err
	}

	if !confirm(c.repo.Calls, id, saved) {
		c.dropped(id, what)
		return saved, nil
	}
	c.setState(id, StateConfirmed)
	c.notifier.Succeeded(success)
	return saved, nil
}
