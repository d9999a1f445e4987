package crawl

import (
	"context"
	"errors"
	"iter"

	"github.com/rs/zerolog"

	"github.com/wilhg/locale/pkg/errmodel"
	"github.com/wilhg/locale/pkg/source"
	"github.com/wilhg/locale/pkg/store"
)

// EventWriter is the subset of store.EventStore used by Persist.
type EventWriter interface {
	EventExists(ctx context.Context, system source.SystemID, sourceEventID int64) (bool, error)
	InsertEvent(ctx context.Context, e store.EventRecord) (int64, error)
}

// WriteStats counts what Persist did with the events it saw.
type WriteStats struct {
	Seen     int
	Inserted int
	Skipped  int
}

// Persist inserts every event whose idempotency key is absent and skips the
// rest. Existing rows are never updated. Each insert commits on its own, so a
// store error stops the loop but keeps earlier inserts.
func Persist(ctx context.Context, st EventWriter, system source.SystemID, events iter.Seq[source.Event]) (WriteStats, error) {
	log := zerolog.Ctx(ctx)
	var stats WriteStats
	for ev := range events {
		stats.Seen++
		exists, err := st.EventExists(ctx, system, ev.ID)
		if err != nil {
			return stats, persistErr("exists_failed", system, ev.ID, err)
		}
		if exists {
			stats.Skipped++
			log.Debug().Int64("source_event_id", ev.ID).Msg("event already stored")
			continue
		}
		id, err := st.InsertEvent(ctx, store.FromSource(system, ev))
		if errors.Is(err, store.ErrDuplicate) {
			stats.Skipped++
			log.Debug().Int64("source_event_id", ev.ID).Msg("event stored concurrently")
			continue
		}
		if err != nil {
			return stats, persistErr("insert_failed", system, ev.ID, err)
		}
		stats.Inserted++
		log.Debug().Int64("source_event_id", ev.ID).Int64("id", id).Msg("event created")
	}
	return stats, nil
}

func persistErr(code string, system source.SystemID, id int64, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errmodel.Persistence(code, "cannot persist event", map[string]any{
		"source":          system.String(),
		"source_event_id": id,
	}, err)
}
