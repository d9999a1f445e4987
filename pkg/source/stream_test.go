package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wilhg/locale/pkg/errmodel"
)

// fakePages serves canned pages and records which pages were requested.
type fakePages struct {
	pages     map[int][]Event
	pageCount int
	fail      map[int][]error
	requested []int
}

func (f *fakePages) fetch(ctx context.Context, since int64, page int) (Page, error) {
	f.requested = append(f.requested, page)
	if errs := f.fail[page]; len(errs) > 0 {
		err := errs[0]
		f.fail[page] = errs[1:]
		if err != nil {
			return Page{}, err
		}
	}
	return Page{Events: f.pages[page], PageCount: f.pageCount}, nil
}

func threePages() *fakePages {
	return &fakePages{
		pageCount: 3,
		pages: map[int][]Event{
			1: {{ID: 11}, {ID: 12}},
			2: {{ID: 21}},
			3: {{ID: 31}, {ID: 32}, {ID: 33}},
		},
		fail: map[int][]error{},
	}
}

func collectIDs(s *Stream) []int64 {
	var ids []int64
	for ev := range s.Events() {
		ids = append(ids, ev.ID)
	}
	return ids
}

func equalInts[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestStream_AllPagesInOrder(t *testing.T) {
	f := threePages()
	s := NewStream(context.Background(), "test", 100, f.fetch)

	got := collectIDs(s)
	want := []int64{11, 12, 21, 31, 32, 33}
	if !equalInts(got, want) {
		t.Fatalf("ids=%v want %v", got, want)
	}
	if !equalInts(f.requested, []int{1, 2, 3}) {
		t.Fatalf("requested=%v want [1 2 3]", f.requested)
	}
	if s.Err() != nil {
		t.Fatalf("unexpected err: %v", s.Err())
	}
	if s.Pages() != 3 {
		t.Fatalf("pages=%d want 3", s.Pages())
	}
}

func TestStream_FailureTruncates(t *testing.T) {
	f := threePages()
	f.fail[2] = []error{&StatusError{StatusCode: 500, Body: "oops"}}
	s := NewStream(context.Background(), "test", 100, f.fetch)

	got := collectIDs(s)
	if !equalInts(got, []int64{11, 12}) {
		t.Fatalf("ids=%v want [11 12]", got)
	}
	if !equalInts(f.requested, []int{1, 2}) {
		t.Fatalf("page 3 must not be requested, got %v", f.requested)
	}
	if s.Err() == nil || !errmodel.IsCategory(s.Err(), errmodel.CategoryNetwork) {
		t.Fatalf("want network error, got %v", s.Err())
	}
	if !s.Truncated() {
		t.Fatal("stream should report truncation")
	}
}

func TestStream_AbortPolicyIsNotTruncation(t *testing.T) {
	f := threePages()
	f.fail[1] = []error{errors.New("connection reset")}
	s := NewStream(context.Background(), "test", 0, f.fetch, WithFailurePolicy(FailurePolicy{OnExhausted: Abort}))
	if got := collectIDs(s); len(got) != 0 {
		t.Fatalf("ids=%v want none", got)
	}
	if s.Err() == nil || s.Truncated() {
		t.Fatalf("err=%v truncated=%v", s.Err(), s.Truncated())
	}
}

func TestStream_RetriesTransientFailures(t *testing.T) {
	f := threePages()
	f.fail[2] = []error{&StatusError{StatusCode: 503}, &StatusError{StatusCode: 429}}
	s := NewStream(context.Background(), "test", 0, f.fetch, WithFailurePolicy(FailurePolicy{
		Retries:    2,
		Backoff:    time.Millisecond,
		MaxBackoff: 2 * time.Millisecond,
	}))
	got := collectIDs(s)
	if len(got) != 6 {
		t.Fatalf("ids=%v want 6 events", got)
	}
	if !equalInts(f.requested, []int{1, 2, 2, 2, 3}) {
		t.Fatalf("requested=%v", f.requested)
	}
}

func TestStream_ClientErrorsAreNotRetried(t *testing.T) {
	f := threePages()
	f.fail[1] = []error{&StatusError{StatusCode: 401}}
	s := NewStream(context.Background(), "test", 0, f.fetch, WithFailurePolicy(FailurePolicy{Retries: 5, Backoff: time.Millisecond}))
	_ = collectIDs(s)
	if !equalInts(f.requested, []int{1}) {
		t.Fatalf("requested=%v want [1]", f.requested)
	}
	var se *StatusError
	if !errors.As(s.Err(), &se) || se.StatusCode != 401 {
		t.Fatalf("err=%v want status 401", s.Err())
	}
}

func TestStream_ConsumerBreakStopsFetching(t *testing.T) {
	f := threePages()
	s := NewStream(context.Background(), "test", 0, f.fetch)
	for ev := range s.Events() {
		if ev.ID == 12 {
			break
		}
	}
	if !equalInts(f.requested, []int{1}) {
		t.Fatalf("requested=%v want [1]", f.requested)
	}
	if s.Err() != nil {
		t.Fatalf("err=%v", s.Err())
	}
}

func TestStream_SingleUse(t *testing.T) {
	f := threePages()
	s := NewStream(context.Background(), "test", 0, f.fetch)
	_ = collectIDs(s)
	if again := collectIDs(s); len(again) != 0 {
		t.Fatalf("second iteration yielded %v", again)
	}
}

func TestStream_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := threePages()
	s := NewStream(ctx, "test", 0, f.fetch)
	_ = collectIDs(s)
	if !errors.Is(s.Err(), context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", s.Err())
	}
	if len(f.requested) != 0 {
		t.Fatalf("requested=%v want none", f.requested)
	}
	if s.Truncated() {
		t.Fatal("cancellation is not truncation")
	}
}

func TestStream_ObserverSeesEveryPage(t *testing.T) {
	f := threePages()
	var seen []PageResult
	s := NewStream(context.Background(), "test", 0, f.fetch, WithPageObserver(func(r PageResult) { seen = append(seen, r) }))
	_ = collectIDs(s)
	if len(seen) != 3 || seen[2].Events != 3 || seen[0].PageCount != 3 {
		t.Fatalf("observer saw %+v", seen)
	}
}

func TestParseExhaustion(t *testing.T) {
	if e, err := ParseExhaustion(""); err != nil || e != Truncate {
		t.Fatalf("empty: %v %v", e, err)
	}
	if e, err := ParseExhaustion("ABORT"); err != nil || e != Abort {
		t.Fatalf("abort: %v %v", e, err)
	}
	if _, err := ParseExhaustion("retry-forever"); err == nil {
		t.Fatal("expected error")
	}
}
