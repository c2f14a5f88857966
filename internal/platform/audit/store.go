package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrDuplicate is returned when an event with the same ID already exists.
	ErrDuplicate = errors.New("audit event already recorded")
	// ErrNotQueryable is returned by query paths on write-only sinks.
	ErrNotQueryable = errors.New("audit store is not queryable")
	// ErrNotFound is returned by Get when no event has the ID.
	ErrNotFound = errors.New("audit event not found")
)

// DefaultQueryLimit and MaxQueryLimit bound List queries.
const (
	DefaultQueryLimit = 100
	MaxQueryLimit     = 1000
)

// Store appends events. Implementations never update or delete.
type Store interface {
	Append(ctx context.Context, ev Event) error
}

// Querier reads events newest first, skipping the first offset matches.
type Querier interface {
	ListByActor(ctx context.Context, actorID string, offset, limit int) ([]Event, error)
	ListByResource(ctx context.Context, resource string, offset, limit int) ([]Event, error)
}

// QueryStore is a Store that can also be queried.
type QueryStore interface {
	Store
	Querier
}

// Getter looks up a single event by ID.
type Getter interface {
	Get(ctx context.Context, id uuid.UUID) (Event, error)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}

func clampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

// FanoutStore writes to a primary store and then to every secondary sink.
// Queries go to the primary.
type FanoutStore struct {
	Primary     Store
	Secondaries []Store
}

// NewFanoutStore returns primary alone when there are no secondaries.
func NewFanoutStore(primary Store, secondaries ...Store) Store {
	var sinks []Store
	for _, s := range secondaries {
		if s != nil {
			sinks = append(sinks, s)
		}
	}
	if len(sinks) == 0 {
		return primary
	}
	return &FanoutStore{Primary: primary, Secondaries: sinks}
}

func (f *FanoutStore) Append(ctx context.Context, ev Event) error {
	var errs []error
	if err := f.Primary.Append(ctx, ev); err != nil {
		errs = append(errs, fmt.Errorf("primary: %w", err))
	}
	for i, s := range f.Secondaries {
		if err := s.Append(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (f *FanoutStore) ListByActor(ctx context.Context, actorID string, offset, limit int) ([]Event, error) {
	q, ok := f.Primary.(Querier)
	if !ok {
		return nil, ErrNotQueryable
	}
	return q.ListByActor(ctx, actorID, offset, limit)
}

func (f *FanoutStore) ListByResource(ctx context.Context, resource string, offset, limit int) ([]Event, error) {
	q, ok := f.Primary.(Querier)
	if !ok {
		return nil, ErrNotQueryable
	}
	return q.ListByResource(ctx, resource, offset, limit)
}

func (f *FanoutStore) Get(ctx context.Context, id uuid.UUID) (Event, error) {
	g, ok := f.Primary.(Getter)
	if !ok {
		return Event{}, ErrNotQueryable
	}
	return g.Get(ctx, id)
}

// AsQuerier returns s as a Querier, or ErrNotQueryable.
func AsQuerier(s Store) (Querier, error) {
	if q, ok := s.(Querier); ok {
		return q, nil
	}
	return nil, ErrNotQueryable
}
