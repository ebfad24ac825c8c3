package hooks

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/gobbs/gobbs/models"
)

// Name identifies an extension point in the post lifecycle.
type Name string

const (
	// FilterPostCreate runs before the canonical post record is written.
	FilterPostCreate Name = "filter:post.create"
	// FilterPostGet runs after all fan-out side effects have settled,
	// immediately before the post view is returned.
	FilterPostGet Name = "filter:post.get"
	// ActionPostSave fires once the pipeline has committed to a result.
	ActionPostSave Name = "action:post.save"
)

// Payload is the container handed to extensions. Filters receive a pointer
// and may transform it in place; actions receive a copy so mutation cannot
// leak back into the pipeline's return value.
type Payload struct {
	Post   *models.Post
	UID    int64
	IsMain bool
}

// Clone returns a deep copy of the payload.
func (p Payload) Clone() Payload {
	out := p
	if p.Post != nil {
		post := *p.Post
		out.Post = &post
	}
	return out
}

// Filter transforms an in-flight payload. A filter error aborts the chain and
// propagates to the pipeline.
type Filter func(ctx context.Context, p *Payload) error

// Action observes a committed payload. Action errors are logged and swallowed.
type Action func(ctx context.Context, p Payload) error

// Registry holds ordered extension chains per named point.
type Registry struct {
	mu      sync.RWMutex
	filters map[Name][]Filter
	actions map[Name][]Action
	log     *zap.SugaredLogger
}

// New creates an empty registry. A nil logger disables action error logging.
func New(log *zap.SugaredLogger) *Registry {
	return &Registry{
		filters: map[Name][]Filter{},
		actions: map[Name][]Action{},
		log:     log,
	}
}

// RegisterFilter appends a filter to the chain for the named point.
func (r *Registry) RegisterFilter(name Name, f Filter) {
	r.mu.Lock()
	r.filters[name] = append(r.filters[name], f)
	r.mu.Unlock()
}

// RegisterAction appends an action to the chain for the named point.
func (r *Registry) RegisterAction(name Name, a Action) {
	r.mu.Lock()
	r.actions[name] = append(r.actions[name], a)
	r.mu.Unlock()
}

// ApplyFilters runs the registered filters in order, each consuming the
// previous output. With no filters registered it is the identity transform.
func (r *Registry) ApplyFilters(ctx context.Context, name Name, p *Payload) error {
	r.mu.RLock()
	chain := r.filters[name]
	r.mu.RUnlock()

	for _, f := range chain {
		if err := f(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// FireActions invokes the registered actions with a copy of the payload.
// Errors and panics are isolated: they are logged and never propagated, so a
// misbehaving extension cannot fail the operation that fired it.
func (r *Registry) FireActions(ctx context.Context, name Name, p Payload) {
	r.mu.RLock()
	chain := r.actions[name]
	r.mu.RUnlock()

	for _, a := range chain {
		r.fire(ctx, name, a, p.Clone())
	}
}

func (r *Registry) fire(ctx context.Context, name Name, a Action, p Payload) {
	defer func() {
		if rec := recover(); rec != nil && r.log != nil {
			r.log.Errorf("action hook %s panicked: %v", name, rec)
		}
	}()
	if err := a(ctx, p); err != nil && r.log != nil {
		r.log.Warnf("action hook %s failed: %v", name, err)
	}
}
