package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli"

	"github.com/wilhg/locale/pkg/config"
	"github.com/wilhg/locale/pkg/crawl"
	"github.com/wilhg/locale/pkg/errmodel"
	"github.com/wilhg/locale/pkg/logging"
	"github.com/wilhg/locale/pkg/metrics"
	"github.com/wilhg/locale/pkg/notify"
	lotel "github.com/wilhg/locale/pkg/otel"
	"github.com/wilhg/locale/pkg/source"
	_ "github.com/wilhg/locale/pkg/source/eventbrite"
	"github.com/wilhg/locale/pkg/store"
	"github.com/wilhg/locale/pkg/variations"
)

// defaultAlphabet is the substitution set used by expand when none is given.
const defaultAlphabet = "!@#$%^&*"

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "locale"
	app.Usage = "incremental event crawler"
	app.Version = version
	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config",
			Usage:  "path to a YAML config file",
			EnvVar: "LOCALE_CONFIG",
		},
	}
	app.Commands = []cli.Command{
		crawlCmd,
		serveCmd,
		migrateCmd,
		expandCmd,
		notifyCmd,
		versionCmd,
	}
	return app
}

var crawlCmd = cli.Command{
	Name:  "crawl",
	Usage: "Fetch events newer than the latest stored one and persist them",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "source",
			Usage: "source system to crawl",
			Value: source.Eventbrite.String(),
		},
		cli.StringFlag{
			Name:  "metrics-textfile",
			Usage: "write Prometheus metrics to this file after the run",
		},
	},
	Action: runCrawl,
}

var migrateCmd = cli.Command{
	Name:   "migrate",
	Usage:  "Create the events schema",
	Action: runMigrate,
}

var expandCmd = cli.Command{
	Name:      "expand",
	Usage:     "Print every substitution of '*' in the given templates",
	ArgsUsage: "TEMPLATE...",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "alphabet",
			Usage: "characters substituted for '*'",
			Value: defaultAlphabet,
		},
	},
	Action: runExpand,
}

var notifyCmd = cli.Command{
	Name:      "notify",
	Usage:     "Send a text message through the SMS gateway",
	ArgsUsage: "MESSAGE",
	Action:    runNotify,
}

var versionCmd = cli.Command{
	Name:  "version",
	Usage: "Print version information",
	Action: func(c *cli.Context) error {
		_, err := fmt.Fprintf(c.App.Writer, "locale %s (commit=%s, date=%s)\n", version, commit, date)
		return err
	},
}

// env wraps everything a command needs after configuration is loaded.
type env struct {
	cfg *config.Config
	log zerolog.Logger
}

func setup(c *cli.Context) (*env, error) {
	cfg, err := config.Load(c.GlobalString("config"), os.Getenv)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(c.App.ErrWriter, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log}, nil
}

func (e *env) newRunner(ctx context.Context, name string, m *metrics.Metrics) (*crawl.Runner, store.EventStore, error) {
	if err := e.cfg.ValidateCrawl(); err != nil {
		e.log.Warn().Err(err).Msgf("%s or %s not set; set them in the environment", config.EnvDatabaseURL, config.EnvToken)
		return nil, nil, err
	}
	factory, ok := source.Resolve(name)
	if !ok {
		var known []string
		source.Range(func(n string, _ source.Factory) { known = append(known, n) })
		sort.Strings(known)
		return nil, nil, errmodel.Config("unknown_source", "no source registered under this name", map[string]any{"source": name, "known": known})
	}
	src, err := factory(ctx, map[string]any{
		"token":          e.cfg.Eventbrite.Token,
		"base_url":       e.cfg.Eventbrite.BaseURL,
		"timeout":        e.cfg.Eventbrite.Timeout,
		"failure_policy": e.cfg.FailurePolicy(),
	})
	if err != nil {
		return nil, nil, err
	}
	st, err := openStore(ctx, e.cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	opts := []crawl.RunnerOption{crawl.WithLogger(e.log), crawl.WithMetrics(m)}
	if e.cfg.NotifyEnabled() {
		n, err := e.notifier()
		if err != nil {
			_ = st.Close()
			return nil, nil, err
		}
		opts = append(opts, crawl.WithNotifier(n))
	}
	return crawl.NewRunner(st, src, opts...), st, nil
}

func (e *env) notifier() (*notify.SMSGateway, error) {
	n := e.cfg.Notify
	return notify.New(notify.Config{
		Addr:     n.SMTPAddr,
		Username: n.Username,
		Password: n.Password,
		Phone:    n.Phone,
		Gateway:  n.Gateway,
	})
}

func (e *env) initTracing(ctx context.Context, w io.Writer) func() {
	shutdown, err := lotel.Init(ctx, lotel.Config{ServiceVersion: version, UseStdout: e.cfg.TraceStdout, Output: w})
	if err != nil {
		e.log.Warn().Err(err).Msg("tracing disabled")
		return func() {}
	}
	return func() { _ = shutdown(context.Background()) }
}

func runCrawl(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer e.initTracing(ctx, c.App.ErrWriter)()

	m := metrics.New(false)
	runner, st, err := e.newRunner(ctx, c.String("source"), m)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	_, runErr := runner.Run(ctx)
	if path := c.String("metrics-textfile"); path != "" {
		if err := m.WriteTextfile(path); err != nil {
			e.log.Error().Err(err).Str("path", path).Msg("cannot write metrics textfile")
		}
	}
	return runErr
}

func runMigrate(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if strings.TrimSpace(e.cfg.DatabaseURL) == "" {
		err := configMissing(config.EnvDatabaseURL)
		e.log.Warn().Err(err).Msgf("%s not set; set it in the environment", config.EnvDatabaseURL)
		return err
	}
	if err := migrate(ctx, e.cfg.DatabaseURL); err != nil {
		return err
	}
	e.log.Info().Msg("schema ready")
	return nil
}

func runExpand(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.ShowCommandHelp(c, c.Command.Name)
	}
	for _, v := range variations.ExpandAll(c.Args(), c.String("alphabet")) {
		if _, err := fmt.Fprintln(c.App.Writer, v); err != nil {
			return err
		}
	}
	return nil
}

func runNotify(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	msg := strings.TrimSpace(strings.Join(c.Args(), " "))
	if msg == "" {
		return cli.ShowCommandHelp(c, c.Command.Name)
	}
	if err := e.cfg.ValidateNotify(); err != nil {
		return err
	}
	n, err := e.notifier()
	if err != nil {
		return err
	}
	if err := n.Notify(context.Background(), msg); err != nil {
		return err
	}
	e.log.Info().Str("to", n.Recipient()).Msg("notification sent")
	return nil
}
