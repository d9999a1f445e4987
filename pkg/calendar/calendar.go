// Package calendar renders persisted events as an iCalendar feed.
package calendar

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/wilhg/locale/pkg/store"
)

const productID = "-//locale//events//EN"

// Build returns a PUBLISH calendar holding one VEVENT per record.
// UIDs are derived from the idempotency key so they are stable across renders.
func Build(name string, events []store.EventRecord, now time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetName(name)
		cal.SetXWRCalName(name)
	}
	for _, e := range events {
		ve := cal.AddEvent(UID(e))
		ve.SetDtStampTime(now.UTC())
		if !e.CreatedAt.IsZero() {
			ve.SetCreatedTime(e.CreatedAt.UTC())
		}
		ve.SetStartAt(e.Start.UTC())
		ve.SetEndAt(e.End.UTC())
		ve.SetSummary(e.Name)
		if e.URL != "" {
			ve.SetURL(e.URL)
		}
	}
	return cal
}

// Write serializes events to w.
func Write(w io.Writer, name string, events []store.EventRecord, now time.Time) error {
	return Build(name, events, now).SerializeTo(w)
}

// UID is the VEVENT identifier for e.
func UID(e store.EventRecord) string {
	return fmt.Sprintf("%s-%d@locale", e.SourceID, e.SourceEventID)
}
