package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrUnknownEntity is returned when the entity to mutate does not exist.
var ErrUnknownEntity = errors.New("unknown entity")

// Target is the canonical state a Controller edits.
type Target[V any] interface {
	// Get returns the current value and whether the entity exists.
	Get(id string) (V, bool)

	// Set overwrites the value. It returns false, writing nothing, when the
	// entity no longer exists.
	Set(id string, v V) bool
}

// Request performs the durable counterpart of an edit.
type Request func(ctx context.Context) error

// edit is one entry of an entity's log.
type edit[V any] struct {
	pending  *Pending
	previous V
}

// Controller serializes optimistic edits for one kind of value.
type Controller[V any] struct {
	target Target[V]
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	logs map[string][]*edit[V] // Oldest first
	wg   sync.WaitGroup
}

// NewController creates a controller editing target.
func NewController[V any](target Target[V], logger *slog.Logger) *Controller[V] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller[V]{
		target: target,
		logger: logger.With("component", "mutation"),
		now:    time.Now,
		logs:   make(map[string][]*edit[V]),
	}
}

// Mutate applies compute to the entity's current value, then runs request in
// the background. The returned Pending settles once request returns and any
// rollback is done.
//
// request runs with a context detached from ctx's cancellation: an edit
// always runs to settlement.
func (c *Controller[V]) Mutate(ctx context.Context, id string, compute func(V) V, request Request) (*Pending, error) {
	c.mu.Lock()

	prev, ok := c.target.Get(id)
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}

	now := c.now()
	p := newPending(ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()), id, now)

	if !c.target.Set(id, compute(prev)) {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}

	c.logs[id] = append(c.logs[id], &edit[V]{pending: p, previous: prev})
	c.wg.Add(1)
	c.mu.Unlock()

	c.logger.Debug("edit applied", "edit", p.ID, "entity", id)

	go c.run(context.WithoutCancel(ctx), p, request)
	return p, nil
}

func (c *Controller[V]) run(ctx context.Context, p *Pending, request Request) {
	defer c.wg.Done()
	c.settle(p, call(ctx, request))
}

// call runs request, turning a panic into an error.
func call(ctx context.Context, request Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("request panicked: %v", r)
		}
	}()
	return request(ctx)
}

// settle applies the log rules for p's outcome.
func (c *Controller[V]) settle(p *Pending, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	log := c.logs[p.EntityID]
	idx := -1
	for i, e := range log {
		if e.pending == p {
			idx = i
			break
		}
	}

	if idx < 0 {
		// Dropped from the log by a newer edit's success.
		p.finish(err, OutcomeSuperseded)
		c.logger.Debug("edit superseded", "edit", p.ID, "entity", p.EntityID, "error", err)
		return
	}

	e := log[idx]
	var outcome Outcome

	switch {
	case err == nil:
		// Older edits can no longer restore anything meaningful.
		log = log[idx+1:]
		outcome = OutcomeCommitted

	case idx == len(log)-1:
		log = log[:idx]
		if c.target.Set(p.EntityID, e.previous) {
			outcome = OutcomeRolledBack
		} else {
			outcome = OutcomeEntityGone
		}

	default:
		log[idx+1].previous = e.previous
		log = append(log[:idx], log[idx+1:]...)
		outcome = OutcomeHandedOff
	}

	if len(log) == 0 {
		delete(c.logs, p.EntityID)
	} else {
		c.logs[p.EntityID] = log
	}

	p.finish(err, outcome)

	if err != nil {
		c.logger.Warn("edit failed",
			"edit", p.ID,
			"entity", p.EntityID,
			"outcome", outcome,
			"error", err,
		)
		return
	}
	c.logger.Debug("edit committed", "edit", p.ID, "entity", p.EntityID)
}

// Inflight returns the number of unsettled edits recorded for id.
func (c *Controller[V]) Inflight(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.logs[id])
}

// Drain waits for every in-flight request to settle, or for ctx.
func (c *Controller[V]) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
