// Package storetest holds a behavioural suite every store.EventStore must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wilhg/locale/pkg/source"
	"github.com/wilhg/locale/pkg/store"
)

// Record builds a test record for sourceEventID.
func Record(system source.SystemID, sourceEventID int64, name string) store.EventRecord {
	start := time.Date(2015, 9, 1, 16, 0, 0, 0, time.UTC).Add(time.Duration(sourceEventID%100) * time.Hour)
	return store.EventRecord{
		Name:          name,
		Start:         start,
		End:           start.Add(2 * time.Hour),
		URL:           "https://www.eventbrite.com/e/" + name,
		SourceID:      system,
		SourceEventID: sourceEventID,
	}
}

// Run exercises st, which must be empty.
func Run(t *testing.T, st store.EventStore) {
	t.Helper()
	ctx := context.Background()
	const other source.SystemID = 99

	if _, ok, err := st.LatestSourceEventID(ctx, source.Eventbrite); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	// Numeric maximum, not lexicographic: 900 < 18397574642.
	for _, id := range []int64{900, 18397574642, 18397574641} {
		if _, err := st.InsertEvent(ctx, Record(source.Eventbrite, id, "e")); err != nil {
			t.Fatalf("insert %d: %v", id, err)
		}
	}
	if _, err := st.InsertEvent(ctx, Record(other, 99999999999, "other")); err != nil {
		t.Fatal(err)
	}

	latest, ok, err := st.LatestSourceEventID(ctx, source.Eventbrite)
	if err != nil || !ok || latest != 18397574642 {
		t.Fatalf("latest=%d ok=%v err=%v", latest, ok, err)
	}

	exists, err := st.EventExists(ctx, source.Eventbrite, 900)
	if err != nil || !exists {
		t.Fatalf("exists(900)=%v err=%v", exists, err)
	}
	exists, err = st.EventExists(ctx, source.Eventbrite, 901)
	if err != nil || exists {
		t.Fatalf("exists(901)=%v err=%v", exists, err)
	}
	exists, err = st.EventExists(ctx, other, 900)
	if err != nil || exists {
		t.Fatalf("exists(other,900)=%v err=%v", exists, err)
	}

	// Duplicate key is rejected and the original row is untouched.
	dup := Record(source.Eventbrite, 900, "changed")
	dup.URL = "https://example.com/changed"
	if _, err := st.InsertEvent(ctx, dup); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("duplicate insert err=%v want ErrDuplicate", err)
	}
	got, err := st.GetEvent(ctx, source.Eventbrite, 900)
	if err != nil {
		t.Fatal(err)
	}
	want := Record(source.Eventbrite, 900, "e")
	if got.Name != want.Name || got.URL != want.URL || !got.Start.Equal(want.Start) || !got.End.Equal(want.End) {
		t.Fatalf("row changed: got %+v want %+v", got, want)
	}
	if got.ID == 0 || got.SourceID != source.Eventbrite || got.CreatedAt.IsZero() {
		t.Fatalf("row metadata: %+v", got)
	}

	if _, err := st.GetEvent(ctx, source.Eventbrite, 12345); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing get err=%v want ErrNotFound", err)
	}

	list, err := st.ListEvents(ctx, source.Eventbrite, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 || list[0].SourceEventID != 900 || list[2].SourceEventID != 18397574642 {
		t.Fatalf("list=%+v", list)
	}
	list, err = st.ListEvents(ctx, source.Eventbrite, 900, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].SourceEventID != 18397574641 {
		t.Fatalf("paged list=%+v", list)
	}
}
