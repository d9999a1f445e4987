package calendar

import (
	"bytes"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/wilhg/locale/pkg/source"
	"github.com/wilhg/locale/pkg/store"
)

func TestWrite_RoundTrip(t *testing.T) {
	start := time.Date(2015, 9, 1, 16, 0, 0, 0, time.UTC)
	events := []store.EventRecord{
		{Name: "Go meetup", Start: start, End: start.Add(2 * time.Hour), URL: "https://www.eventbrite.com/e/18397574642", SourceID: source.Eventbrite, SourceEventID: 18397574642},
		{Name: "Second", Start: start.Add(24 * time.Hour), End: start.Add(26 * time.Hour), SourceID: source.Eventbrite, SourceEventID: 18397574650},
	}
	var buf bytes.Buffer
	if err := Write(&buf, "locale", events, start); err != nil {
		t.Fatal(err)
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("parse: %v\n%s", err, buf.String())
	}
	got := cal.Events()
	if len(got) != 2 {
		t.Fatalf("events=%d", len(got))
	}
	ve := got[0]
	if ve.Id() != "eventbrite-18397574642@locale" {
		t.Fatalf("uid=%q", ve.Id())
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p == nil || p.Value != "Go meetup" {
		t.Fatalf("summary=%+v", p)
	}
	at, err := ve.GetStartAt()
	if err != nil || !at.Equal(start) {
		t.Fatalf("start=%v err=%v", at, err)
	}
	if p := got[1].GetProperty(ical.ComponentPropertyUrl); p != nil {
		t.Fatalf("unexpected url %+v", p)
	}
}

func TestWrite_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, "", nil, time.Now()); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("BEGIN:VCALENDAR")) || bytes.Contains(buf.Bytes(), []byte("BEGIN:VEVENT")) {
		t.Fatalf("cal=%s", buf.String())
	}
}
