package views

import (
	"github.com/tgienger/taskboard/internal/coordinator"
	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/projection"
)

// Views never call the core themselves. They emit these messages and the
// app runs the matching operation in a command.

// OpenTask asks for the detail view of a task
type OpenTask struct{ ID string }

// NewTask asks for an empty task form
type NewTask struct{ Status models.Status }

// EditTask asks for the form prefilled with a task
type EditTask struct{ ID string }

// SubmitTask carries a filled form. ID is empty for a new task.
type SubmitTask struct {
	ID     string
	Fields coordinator.TaskFields
	Attach []string // file paths
}

// MoveTask asks to change a task's status
type MoveTask struct {
	ID     string
	Status models.Status
}

// DeleteTask asks to delete a task once the user has confirmed
type DeleteTask struct{ ID string }

// ChangeCriteria asks to re-project with new criteria
type ChangeCriteria struct{ Criteria projection.Criteria }

// AddComment posts a comment on a task
type AddComment struct {
	TaskID string
	Text   string
}

// DeleteComment removes one of the actor's comments
type DeleteComment struct{ ID string }

// AttachFiles uploads files onto a confirmed task
type AttachFiles struct {
	TaskID string
	Paths  []string
}

// DeleteAttachment removes a file from a task
type DeleteAttachment struct{ ID string }

// Close returns from the form or detail view to the last list
type Close struct{}

// SwitchLayout toggles between the board and the flat list
type SwitchLayout struct{}
