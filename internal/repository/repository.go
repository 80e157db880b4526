// Package repository holds the client-side working set: one ordered,
// keyed collection per entity kind. It is the single owner of canonical
// records; everything handed out is a copy.
//
// Every mutation notifies the registered listeners synchronously, after the
// change is applied and the lock is released, so listeners may read
// snapshots. Use Batch to collapse several mutations into one notification.
package repository

import (
	"sync"

	"github.com/tgienger/taskboard/internal/models"
)

// Kind names an entity collection
type Kind string

const (
	KindTask       Kind = "task"
	KindComment    Kind = "comment"
	KindAttachment Kind = "attachment"
	KindCall       Kind = "call"
)

// Op is the kind of mutation a Change reports
type Op string

const (
	OpUpsert  Op = "upsert"
	OpRemove  Op = "remove"
	OpReplace Op = "replace"
	OpReset   Op = "reset"
	OpBatch   Op = "batch"
)

// Change describes one applied mutation. ID is empty for resets and batches.
type Change struct {
	Kind Kind
	Op   Op
	ID   string
}

// Listener is invoked synchronously after every mutation
type Listener func(Change)

// Repository is the normalized in-memory store of the working set
type Repository struct {
	mu sync.Mutex

	listeners map[int]Listener
	nextSub   int

	batchDepth int
	batchDirty bool

	Tasks       *Collection[models.Task]
	Comments    *Collection[models.Comment]
	Attachments *Collection[models.Attachment]
	Calls       *Collection[models.Call]
}

// New creates an empty repository
func New() *Repository {
	r := &Repository{listeners: make(map[int]Listener)}
	r.Tasks = newCollection[models.Task](r, KindTask)
	r.Comments = newCollection[models.Comment](r, KindComment)
	r.Attachments = newCollection[models.Attachment](r, KindAttachment)
	r.Calls = newCollection[models.Call](r, KindCall)
	return r
}

// Subscribe registers a listener and returns a function that removes it
func (r *Repository) Subscribe(fn Listener) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.listeners[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// Batch runs fn with per-mutation notifications suppressed and emits a
// single OpBatch change afterwards if anything changed. Batches nest.
func (r *Repository) Batch(fn func()) {
	r.mu.Lock()
	r.batchDepth++
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.batchDepth--
		fire := r.batchDepth == 0 && r.batchDirty
		if fire {
			r.batchDirty = false
		}
		listeners := r.listenersLocked()
		r.mu.Unlock()

		if fire {
			for _, l := range listeners {
				l(Change{Op: OpBatch})
			}
		}
	}()

	fn()
}

// commit is called with r.mu held after a collection changed. It returns the
// listeners to invoke once the lock is released, or nil while batching.
func (r *Repository) commit() []Listener {
	if r.batchDepth > 0 {
		r.batchDirty = true
		return nil
	}
	return r.listenersLocked()
}

func (r *Repository) listenersLocked() []Listener {
	// Subscription order keeps notification order stable
	out := make([]Listener, 0, len(r.listeners))
	for id := 0; id < r.nextSub; id++ {
		if l, ok := r.listeners[id]; ok {
			out = append(out, l)
		}
	}
	return out
}

func notify(listeners []Listener, c Change) {
	for _, l := range listeners {
		l(c)
	}
}
