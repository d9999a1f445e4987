// Package store defines persistence for crawled events.
// Implementations must provide identical semantics across backends:
// (SourceID, SourceEventID) is unique and rows are never updated.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/wilhg/locale/pkg/source"
)

var (
	// ErrNotFound is returned when no event matches a lookup.
	ErrNotFound = errors.New("store: event not found")
	// ErrDuplicate is returned by InsertEvent when the idempotency key already exists.
	ErrDuplicate = errors.New("store: duplicate event")
)

// EventRecord is the persisted representation of an event.
type EventRecord struct {
	ID            int64
	Name          string
	Start         time.Time
	End           time.Time
	URL           string
	SourceID      source.SystemID
	SourceEventID int64
	CreatedAt     time.Time
}

// FromSource maps an external event onto a new record for system.
func FromSource(system source.SystemID, e source.Event) EventRecord {
	return EventRecord{
		Name:          e.Name,
		Start:         e.Start.UTC(),
		End:           e.End.UTC(),
		URL:           e.URL,
		SourceID:      system,
		SourceEventID: e.ID,
	}
}

// EventStore persists and looks up events.
type EventStore interface {
	// LatestSourceEventID returns the highest source event id stored for system.
	// ok is false when the store holds no events for system.
	LatestSourceEventID(ctx context.Context, system source.SystemID) (id int64, ok bool, err error)
	EventExists(ctx context.Context, system source.SystemID, sourceEventID int64) (bool, error)
	// InsertEvent stores e in its own transaction and returns the surrogate id.
	InsertEvent(ctx context.Context, e EventRecord) (int64, error)
	GetEvent(ctx context.Context, system source.SystemID, sourceEventID int64) (EventRecord, error)
	// ListEvents returns events ordered by source event id, after the given id.
	ListEvents(ctx context.Context, system source.SystemID, afterSourceEventID int64, limit int) ([]EventRecord, error)
	Close() error
}
