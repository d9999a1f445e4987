package source

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/wilhg/locale/pkg/errmodel"
)

// Exhaustion decides what a crawl does once a page has failed every attempt.
type Exhaustion int

const (
	// Truncate ends the stream early; the run is reported as truncated but succeeds.
	Truncate Exhaustion = iota
	// Abort ends the stream early and the run fails.
	Abort
)

func (e Exhaustion) String() string {
	if e == Abort {
		return "abort"
	}
	return "truncate"
}

// ParseExhaustion parses "truncate" or "abort". Empty means Truncate.
func ParseExhaustion(s string) (Exhaustion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "truncate":
		return Truncate, nil
	case "abort":
		return Abort, nil
	default:
		return Truncate, fmt.Errorf("source: unknown failure mode %q", s)
	}
}

// FailurePolicy controls how page fetch failures are handled.
// The zero value issues exactly one request per page and truncates on failure.
type FailurePolicy struct {
	Retries     int
	Backoff     time.Duration
	MaxBackoff  time.Duration
	OnExhausted Exhaustion
}

// Page is one decoded page of a paginated response.
type Page struct {
	Events    []Event
	PageCount int
}

// PageFunc fetches one 1-based page of events newer than since.
type PageFunc func(ctx context.Context, since int64, page int) (Page, error)

// StatusError reports a non-success HTTP status from a source API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// PayloadError reports a response body that could not be decoded or validated.
type PayloadError struct {
	Err error
}

func (e *PayloadError) Error() string { return "invalid payload: " + e.Err.Error() }
func (e *PayloadError) Unwrap() error { return e.Err }

// Retryable reports whether a page fetch error is worth another attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	var pe *PayloadError
	return !errors.As(err, &pe)
}

// PageResult is reported to a page observer after every page attempt sequence.
type PageResult struct {
	Page      int
	PageCount int
	Events    int
	Err       error
	Elapsed   time.Duration
}

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithPageObserver registers fn to be called once per page.
func WithPageObserver(fn func(PageResult)) StreamOption {
	return func(s *Stream) { s.observe = fn }
}

// WithFailurePolicy overrides the stream's failure policy.
func WithFailurePolicy(p FailurePolicy) StreamOption {
	return func(s *Stream) { s.policy = p }
}

// Stream is a forward-only, finite sequence of events backed by server-driven
// pagination. It can be iterated once; a fresh crawl needs a fresh Stream.
type Stream struct {
	ctx     context.Context
	name    string
	since   int64
	fetch   PageFunc
	policy  FailurePolicy
	observe func(PageResult)

	started bool
	pages   int
	err     error
}

// NewStream returns a stream over fetch starting at page 1.
func NewStream(ctx context.Context, name string, since int64, fetch PageFunc, opts ...StreamOption) *Stream {
	s := &Stream{ctx: ctx, name: name, since: since, fetch: fetch}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Events yields every event of every page in page order, then list order.
// Pagination continues while the requested page is below the reported page count.
func (s *Stream) Events() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		if s.started {
			return
		}
		s.started = true
		for page := 1; ; page++ {
			if err := s.ctx.Err(); err != nil {
				s.err = err
				return
			}
			start := time.Now()
			p, err := s.fetchPage(page)
			if s.observe != nil {
				s.observe(PageResult{Page: page, PageCount: p.PageCount, Events: len(p.Events), Err: err, Elapsed: time.Since(start)})
			}
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					s.err = err
					return
				}
				s.err = errmodel.Network("fetch_failed", "page fetch failed", map[string]any{
					"source": s.name,
					"page":   page,
					"since":  s.since,
				}, err)
				return
			}
			s.pages++
			for _, ev := range p.Events {
				if !yield(ev) {
					return
				}
			}
			if page >= p.PageCount {
				return
			}
		}
	}
}

func (s *Stream) fetchPage(page int) (Page, error) {
	if s.policy.Retries <= 0 {
		return s.fetch(s.ctx, s.since, page)
	}
	b := backoff.NewExponentialBackOff()
	if s.policy.Backoff > 0 {
		b.InitialInterval = s.policy.Backoff
	}
	if s.policy.MaxBackoff > 0 {
		b.MaxInterval = s.policy.MaxBackoff
	}
	return backoff.Retry(s.ctx, func() (Page, error) {
		p, err := s.fetch(s.ctx, s.since, page)
		if err != nil && !Retryable(err) {
			return Page{}, backoff.Permanent(err)
		}
		return p, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(s.policy.Retries+1)))
}

// Err returns the error that ended the stream early, or nil if it ran to completion.
func (s *Stream) Err() error { return s.err }

// Pages returns the number of pages fetched successfully.
func (s *Stream) Pages() int { return s.pages }

// Truncated reports whether a fetch failure ended the stream under the Truncate policy.
func (s *Stream) Truncated() bool {
	return s.err != nil && s.policy.OnExhausted == Truncate && errmodel.IsCategory(s.err, errmodel.CategoryNetwork)
}

// Policy returns the stream's failure policy.
func (s *Stream) Policy() FailurePolicy { return s.policy }
