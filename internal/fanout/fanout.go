// Package fanout is the dispatch event channel. Lifecycle services
// emit domain events here after the entity state has committed;
// delivery is best-effort and failures never propagate back into the
// entity mutation.
package fanout

import (
	"context"
	"sync"

	"github.com/resqlabs/resq/internal/models"
)

// Publisher is a one-way sink for domain events. key identifies the
// entity the event belongs to, so ordered transports can keep one
// entity's events in sequence.
type Publisher interface {
	Publish(ctx context.Context, key string, ev models.Event) error
	// PublishSector scopes the event to one sector channel.
	PublishSector(ctx context.Context, sector, key string, ev models.Event) error
}

// Nop discards everything. Used when no fan-out is configured.
type Nop struct{}

func (Nop) Publish(ctx context.Context, key string, ev models.Event) error { return nil }
func (Nop) PublishSector(ctx context.Context, sector, key string, ev models.Event) error {
	return nil
}

// Recorded is one captured emission.
type Recorded struct {
	Sector string
	Key    string
	Event  models.Event
}

// Recorder captures emissions for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Publish(ctx context.Context, key string, ev models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Key: key, Event: ev})
	return nil
}

func (r *Recorder) PublishSector(ctx context.Context, sector, key string, ev models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Sector: sector, Key: key, Event: ev})
	return nil
}

// Events returns a copy of everything captured so far.
func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.events...)
}

// Named returns captured events matching the given event name.
func (r *Recorder) Named(name string) []Recorded {
	var out []Recorded
	for _, e := range r.Events() {
		if e.Event.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Multi tees every emission to each wrapped publisher. The first error
// is returned after all publishers have been tried.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, key string, ev models.Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, key, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) PublishSector(ctx context.Context, sector, key string, ev models.Event) error {
	var first error
	for _, p := range m {
		if err := p.PublishSector(ctx, sector, key, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
