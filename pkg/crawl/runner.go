// Package crawl runs one incremental crawl: resolve the cursor, stream pages
// from the source and persist unseen events.
package crawl

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wilhg/locale/pkg/errmodel"
	"github.com/wilhg/locale/pkg/metrics"
	"github.com/wilhg/locale/pkg/notify"
	"github.com/wilhg/locale/pkg/source"
)

// Store is what a run needs from persistence.
type Store interface {
	CursorReader
	EventWriter
}

// Report describes a finished run.
type Report struct {
	RunID  string
	Source source.SystemID
	Since  int64
	Pages  int
	Stats  WriteStats
	// Truncated is set when a fetch failure ended the crawl early under the
	// truncate policy. Err then holds that failure and the run still succeeds.
	Truncated bool
	Err       error
	Duration  time.Duration
}

// Outcome is the metrics label for r.
func (r Report) Outcome() string {
	switch {
	case r.Truncated:
		return metrics.OutcomeTruncated
	case r.Err != nil:
		return metrics.OutcomeFailed
	default:
		return metrics.OutcomeOK
	}
}

// Runner executes crawl runs. Runs are strictly sequential: the cursor is
// resolved, then pages are fetched and written one event at a time.
type Runner struct {
	store    Store
	src      source.Source
	log      zerolog.Logger
	metrics  *metrics.Metrics
	notifier notify.Notifier
	now      func() time.Time
}

// RunnerOption configures the Runner at construction time.
type RunnerOption func(*Runner)

// WithLogger sets the run logger.
func WithLogger(l zerolog.Logger) RunnerOption {
	return func(r *Runner) { r.log = l }
}

// WithMetrics records every run in m.
func WithMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithNotifier alerts n when a run is truncated or fails.
func WithNotifier(n notify.Notifier) RunnerOption {
	return func(r *Runner) { r.notifier = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// NewRunner constructs a Runner for src persisting into st.
func NewRunner(st Store, src source.Source, opts ...RunnerOption) *Runner {
	r := &Runner{store: st, src: src, log: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs one crawl. The returned error is non-nil when the run failed;
// a truncated run returns a nil error and a Report with Truncated set.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	started := r.now()
	system := r.src.System()
	rep := Report{RunID: uuid.NewString(), Source: system}

	log := r.log.With().Str("run_id", rep.RunID).Str("source", system.String()).Logger()
	ctx = log.WithContext(ctx)
	ctx, span := otel.Tracer("locale/crawl").Start(ctx, "crawl.Run", trace.WithAttributes(
		attribute.String("run.id", rep.RunID),
		attribute.String("source", system.String()),
	))
	defer span.End()

	err := r.run(ctx, log, &rep)
	rep.Duration = r.now().Sub(started)
	if err != nil {
		rep.Err = err
	}

	span.SetAttributes(
		attribute.Int64("since_event_id", rep.Since),
		attribute.Int("pages", rep.Pages),
		attribute.Int("events.inserted", rep.Stats.Inserted),
		attribute.Int("events.skipped", rep.Stats.Skipped),
		attribute.Bool("truncated", rep.Truncated),
	)
	if rep.Err != nil {
		span.RecordError(rep.Err)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}

	r.metrics.ObserveRun(metrics.Run{
		Source:   system.String(),
		Outcome:  rep.Outcome(),
		Since:    rep.Since,
		Pages:    rep.Pages,
		Inserted: rep.Stats.Inserted,
		Skipped:  rep.Stats.Skipped,
		Duration: rep.Duration,
		Finished: r.now(),
	})

	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err)
	} else if rep.Truncated {
		ev = log.Warn().Err(rep.Err)
	}
	ev.Int64("since_event_id", rep.Since).
		Int("pages", rep.Pages).
		Int("seen", rep.Stats.Seen).
		Int("inserted", rep.Stats.Inserted).
		Int("skipped", rep.Stats.Skipped).
		Bool("truncated", rep.Truncated).
		Dur("duration", rep.Duration).
		Msg("crawl finished")

	if rep.Err != nil {
		r.alert(ctx, log, rep)
	}
	return rep, err
}

func (r *Runner) run(ctx context.Context, log zerolog.Logger, rep *Report) error {
	since, err := LatestCursor(ctx, r.store, rep.Source)
	if err != nil {
		return err
	}
	rep.Since = since
	log.Info().Int64("since_event_id", since).Msg("cursor resolved")

	stream := r.src.Fetch(ctx, since, source.WithPageObserver(func(p source.PageResult) {
		if p.Err != nil {
			log.Warn().Err(p.Err).Int("page", p.Page).Dur("elapsed", p.Elapsed).Msg("page fetch failed")
			return
		}
		log.Debug().Int("page", p.Page).Int("page_count", p.PageCount).Int("events", p.Events).Dur("elapsed", p.Elapsed).Msg("page fetched")
	}))
	stats, err := Persist(ctx, r.store, rep.Source, stream.Events())
	rep.Stats = stats
	rep.Pages = stream.Pages()
	if err != nil {
		return err
	}
	if serr := stream.Err(); serr != nil {
		if stream.Truncated() {
			rep.Truncated = true
			rep.Err = serr
			return nil
		}
		return serr
	}
	return nil
}

func (r *Runner) alert(ctx context.Context, log zerolog.Logger, rep Report) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Notify(context.WithoutCancel(ctx), alertText(rep)); err != nil {
		log.Error().Err(err).Msg("notification failed")
	}
}

func alertText(rep Report) string {
	state := "failed"
	if rep.Truncated {
		state = "truncated"
	}
	code := "error"
	if ce := errmodel.From(rep.Err); ce != nil && ce.Code != "" {
		code = ce.Code
	}
	return fmt.Sprintf("locale %s crawl %s (%s): since %d, %d pages, %d new", rep.Source, state, code, rep.Since, rep.Pages, rep.Stats.Inserted)
}
