// Package coordinator applies user mutations to the working set.
//
// Every mutation is written to the repository first (optimistic), then sent
// to the gateway, then reconciled: confirmed with the store's record or
// reverted to a copy captured before the write. Results are applied in
// completion order. A result whose entity has meanwhile been removed locally
// is dropped without error.
package coordinator

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tgienger/taskboard/internal/gateway"
	"github.com/tgienger/taskboard/internal/identity"
	"github.com/tgienger/taskboard/internal/notify"
	"github.com/tgienger/taskboard/internal/repository"
)

// Validation errors. None of them touch the repository.
var (
	ErrUnauthenticated  = errors.New("not signed in")
	ErrTitleRequired    = errors.New("title is required")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidPriority  = errors.New("invalid priority")
	ErrTextRequired     = errors.New("comment text is required")
	ErrNameRequired     = errors.New("file name is required")
	ErrContactRequired  = errors.New("contact name is required")
	ErrScheduleRequired = errors.New("scheduled time is required")
	ErrNotFound         = errors.New("not found")
	ErrPendingCreate    = errors.New("still being created")
	ErrNotAuthor        = errors.New("only the author can delete a comment")
)

// State is where a mutation on one identifier stands
type State string

const (
	StateIdle       State = "idle"
	StatePending    State = "pending"
	StateConfirmed  State = "confirmed"
	StateRolledBack State = "rolled-back"
)

const provisionalPrefix = "tmp-"

// IsProvisional reports whether id is a locally generated placeholder that
// the store has not confirmed yet
func IsProvisional(id string) bool {
	return strings.HasPrefix(id, provisionalPrefix)
}

func newProvisionalID() string {
	return provisionalPrefix + uuid.Must(uuid.NewV7()).String()
}

// Coordinator owns every write to the repository
type Coordinator struct {
	repo     *repository.Repository
	gw       gateway.Gateway
	identity identity.Provider
	notifier notify.Notifier
	log      *slog.Logger

	mu     sync.Mutex
	states map[string]State
}

// New creates a coordinator. A nil notifier discards notifications and a
// nil logger uses slog's default.
func New(repo *repository.Repository, gw gateway.Gateway, id identity.Provider, notifier notify.Notifier, log *slog.Logger) *Coordinator {
	if notifier == nil {
		notifier = notify.Discard
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		repo:     repo,
		gw:       gw,
		identity: id,
		notifier: notifier,
		log:      log.With("component", "coordinator"),
		states:   make(map[string]State),
	}
}

// Repository returns the working set the coordinator writes to
func (c *Coordinator) Repository() *repository.Repository {
	return c.repo
}

// State returns the state of the last mutation on id
func (c *Coordinator) State(id string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.states[id]; ok {
		return s
	}
	return StateIdle
}

func (c *Coordinator) setState(id string, s State) {
	c.mu.Lock()
	c.states[id] = s
	c.mu.Unlock()
}

// actor reads the current actor once per operation
func (c *Coordinator) actor() (string, error) {
	user, ok := c.identity.CurrentActor()
	if !ok {
		return "", ErrUnauthenticated
	}
	return user, nil
}

// fail records a rollback and tells the user
func (c *Coordinator) fail(id, what string, err error) {
	c.setState(id, StateRolledBack)
	c.log.Warn("mutation rolled back", "op", what, "id", id, "kind", gateway.KindOf(err), "error", err)
	c.notifier.Failed("Failed to " + what + ": " + describe(err))
}

// dropped logs a reconciliation whose entity is gone locally
func (c *Coordinator) dropped(id, what string) {
	c.setState(id, StateIdle)
	c.log.Debug("reconciliation dropped", "op", what, "id", id)
}

func describe(err error) string {
	var ge *gateway.Error
	if errors.As(err, &ge) && ge.Message != "" {
		return ge.Message
	}
	return err.Error()
}

// confirm writes saved over the local record. It reports false when the
// record is gone locally.
func confirm[T repository.Entity[T]](col *repository.Collection[T], id string, saved T) bool {
	_, ok := col.Update(id, func(T) T { return saved })
	return ok
}

// revert restores the copy taken before an optimistic write, unless the
// record is gone locally
func revert[T repository.Entity[T]](col *repository.Collection[T], id string, prev T) bool {
	_, ok := col.Update(id, func(T) T { return prev })
	return ok
}

func now() time.Time {
	return time.Now().UTC()
}
