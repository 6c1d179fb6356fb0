package mutation

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Outcome describes what settlement did to canonical state.
type Outcome int

const (
	OutcomeInflight Outcome = iota

	// OutcomeCommitted: the request succeeded and the applied value stands.
	OutcomeCommitted

	// OutcomeRolledBack: the request failed and Previous was restored.
	OutcomeRolledBack

	// OutcomeHandedOff: the request failed under a newer edit, which
	// inherited Previous. Nothing was written.
	OutcomeHandedOff

	// OutcomeSuperseded: a newer edit succeeded first. Nothing was written.
	OutcomeSuperseded

	// OutcomeEntityGone: the request failed but the entity had been removed.
	OutcomeEntityGone
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCommitted:
		return "committed"
	case OutcomeRolledBack:
		return "rolled_back"
	case OutcomeHandedOff:
		return "handed_off"
	case OutcomeSuperseded:
		return "superseded"
	case OutcomeEntityGone:
		return "entity_gone"
	default:
		return "inflight"
	}
}

// Pending is the handle for an applied edit whose request is in flight.
type Pending struct {
	ID        ulid.ULID
	EntityID  string
	AppliedAt time.Time

	done    chan struct{}
	once    sync.Once
	err     error
	outcome Outcome
}

func newPending(id ulid.ULID, entityID string, appliedAt time.Time) *Pending {
	return &Pending{
		ID:        id,
		EntityID:  entityID,
		AppliedAt: appliedAt,
		done:      make(chan struct{}),
	}
}

func (p *Pending) finish(err error, outcome Outcome) {
	p.once.Do(func() {
		p.err = err
		p.outcome = outcome
		close(p.done)
	})
}

// Done is closed once the request has settled.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Err returns the request error after settlement, nil before.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Outcome returns the settlement outcome, OutcomeInflight before.
func (p *Pending) Outcome() Outcome {
	select {
	case <-p.done:
		return p.outcome
	default:
		return OutcomeInflight
	}
}

// Wait blocks until settlement and returns the request error.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
