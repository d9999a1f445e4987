package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wilhg/locale/pkg/calendar"
	"github.com/wilhg/locale/pkg/errmodel"
	"github.com/wilhg/locale/pkg/logging"
	"github.com/wilhg/locale/pkg/metrics"
	"github.com/wilhg/locale/pkg/source"
	"github.com/wilhg/locale/pkg/store"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

var serveCmd = cli.Command{
	Name:  "serve",
	Usage: "Crawl on a schedule and serve stored events over HTTP",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "listen",
			Usage: "http listen address (default from config)",
		},
		cli.StringFlag{
			Name:  "schedule",
			Usage: "cron expression for crawl runs (default from config)",
		},
		cli.BoolFlag{
			Name:  "run-now",
			Usage: "start one crawl immediately",
		},
	},
	Action: runServe,
}

func runServe(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	listen := c.String("listen")
	if listen == "" {
		listen = getEnv("LOCALE_ADDR", e.cfg.Serve.Listen)
	}
	schedule := c.String("schedule")
	if schedule == "" {
		schedule = e.cfg.Serve.Schedule
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer e.initTracing(ctx, c.App.ErrWriter)()

	m := metrics.New(true)
	runner, st, err := e.newRunner(ctx, source.Eventbrite.String(), m)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	cl := logging.CronLogger(e.log)
	sched := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	id, err := sched.AddFunc(schedule, func() {
		// Errors are logged and recorded by the runner.
		_, _ = runner.Run(ctx)
	})
	if err != nil {
		return errmodel.New(errmodel.CategoryConfig, "invalid_schedule", "cannot parse cron schedule", map[string]any{"schedule": schedule}, err)
	}
	sched.Start()
	if c.Bool("run-now") {
		// Goes through the job chain so it never overlaps a scheduled run.
		go sched.Entry(id).WrappedJob.Run()
	}

	srv := &http.Server{
		Addr:              listen,
		Handler:           buildMux(st, m),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	e.log.Info().Str("addr", listen).Str("schedule", schedule).Msg("serving")

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			<-sched.Stop().Done()
			return errmodel.System("server_failed", "http server stopped", map[string]any{"addr": listen}, err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	select {
	case <-sched.Stop().Done():
	case <-shutdownCtx.Done():
	}
	e.log.Info().Msg("stopped")
	return nil
}

// buildMux serves health, metrics and read-only views of stored events.
func buildMux(st store.EventStore, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if m != nil {
		mux.Handle("/metrics", m.Handler())
	}
	mux.HandleFunc("/api/events", func(w http.ResponseWriter, r *http.Request) {
		events, q, err := listFromRequest(r, st)
		if err != nil {
			errmodel.WriteHTTP(w, r, err)
			return
		}
		out := make([]eventJSON, 0, len(events))
		for _, e := range events {
			out = append(out, toJSON(e))
		}
		resp := map[string]any{"events": out, "source": q.system.String()}
		if len(events) > 0 {
			resp["next_after"] = events[len(events)-1].SourceEventID
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/events.ics", func(w http.ResponseWriter, r *http.Request) {
		events, _, err := listFromRequest(r, st)
		if err != nil {
			errmodel.WriteHTTP(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		_ = calendar.Write(w, "locale", events, time.Now())
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		errmodel.WriteHTTP(w, r, errmodel.Validation("not_found", "no such endpoint", map[string]any{"path": r.URL.Path}))
	})
	return otelhttp.NewHandler(mux, "locale")
}

type listQuery struct {
	system source.SystemID
	after  int64
	limit  int
}

func listFromRequest(r *http.Request, st store.EventStore) ([]store.EventRecord, listQuery, error) {
	q := listQuery{system: source.Eventbrite, limit: defaultListLimit}
	if r.Method != http.MethodGet {
		return nil, q, errmodel.Validation("method_not_allowed", "only GET is supported", map[string]any{"method": r.Method})
	}
	v := r.URL.Query()
	if s := v.Get("source"); s != "" {
		sys, err := source.ParseSystem(s)
		if err != nil {
			return nil, q, errmodel.Validation("invalid_source", "unknown source", map[string]any{"source": s})
		}
		q.system = sys
	}
	if s := v.Get("after"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			return nil, q, errmodel.Validation("invalid_after", "after must be a non-negative integer", map[string]any{"after": s})
		}
		q.after = n
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxListLimit {
			return nil, q, errmodel.Validation("invalid_limit", "limit must be between 1 and 1000", map[string]any{"limit": s})
		}
		q.limit = n
	}
	events, err := st.ListEvents(r.Context(), q.system, q.after, q.limit)
	if err != nil {
		return nil, q, errmodel.Persistence("list_failed", "cannot list events", map[string]any{"source": q.system.String()}, err)
	}
	return events, q, nil
}

type eventJSON struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Start         time.Time `json:"dt_start"`
	End           time.Time `json:"dt_end"`
	URL           string    `json:"url"`
	Source        string    `json:"source"`
	SourceEventID int64     `json:"source_event_id"`
	CreatedAt     time.Time `json:"created_at"`
}

func toJSON(e store.EventRecord) eventJSON {
	return eventJSON{
		ID:            e.ID,
		Name:          e.Name,
		Start:         e.Start,
		End:           e.End,
		URL:           e.URL,
		Source:        e.SourceID.String(),
		SourceEventID: e.SourceEventID,
		CreatedAt:     e.CreatedAt,
	}
}
