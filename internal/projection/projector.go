package projection

import (
	"sync"

	"github.com/tgienger/taskboard/internal/repository"
)

// Projector keeps a View current. It regenerates the whole view after every
// task change in the repository and after every criteria change, then hands
// it to its subscribers.
type Projector struct {
	repo        *repository.Repository
	unsubscribe func()

	mu       sync.Mutex
	criteria Criteria
	view     View
	seq      uint64 // bumped for every regenerated view
	subs     map[int]func(View)
	nextSub  int

	// deliverMu orders deliveries; delivered is the seq last handed out
	deliverMu sync.Mutex
	delivered uint64
}

// NewProjector projects repo with criteria and follows its changes until
// Close is called
func NewProjector(repo *repository.Repository, criteria Criteria) *Projector {
	p := &Projector{
		repo:     repo,
		criteria: criteria,
		subs:     make(map[int]func(View)),
	}
	p.view = Project(repo.Tasks.Snapshot(), criteria)
	p.unsubscribe = repo.Subscribe(func(c repository.Change) {
		if c.Kind == repository.KindTask || c.Op == repository.OpBatch {
			p.refresh()
		}
	})
	return p
}

// View returns the current view
func (p *Projector) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

// Criteria returns the criteria the view is projected with
func (p *Projector) Criteria() Criteria {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.criteria
}

// SetCriteria re-projects the working set with c
func (p *Projector) SetCriteria(c Criteria) error {
	if err := c.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	p.criteria = c
	p.mu.Unlock()

	p.refresh()
	return nil
}

// Subscribe registers fn to receive regenerated views, newest last. A view
// that was overtaken by a newer one before delivery is skipped. fn must not
// call SetCriteria.
func (p *Projector) Subscribe(fn func(View)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// Close stops following the repository
func (p *Projector) Close() {
	p.unsubscribe()
}

func (p *Projector) refresh() {
	p.mu.Lock()
	view := Project(p.repo.Tasks.Snapshot(), p.criteria)
	p.view = view
	p.seq++
	seq := p.seq
	subs := make([]func(View), 0, len(p.subs))
	for id := 0; id < p.nextSub; id++ {
		if fn, ok := p.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	p.mu.Unlock()

	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()
	if seq < p.delivered {
		return
	}
	p.delivered = seq
	for _, fn := range subs {
		fn(view)
	}
}
