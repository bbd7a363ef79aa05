package cli

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/coder/quartz"
	"github.com/coder/retry"
	"github.com/coder/serpent"
	"github.com/hashicorp/go-multierror"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"

	"github.com/tenderd/tenderd/cli/clilog"
	"github.com/tenderd/tenderd/tenderd"
	"github.com/tenderd/tenderd/tenderd/audit"
	"github.com/tenderd/tenderd/tenderd/audit/backends"
	"github.com/tenderd/tenderd/tenderd/database"
	"github.com/tenderd/tenderd/tenderd/database/dbmem"
	"github.com/tenderd/tenderd/tenderd/database/dbpurge"
	"github.com/tenderd/tenderd/tenderd/database/migrations"
	"github.com/tenderd/tenderd/tenderd/tenant"
	"github.com/tenderd/tenderd/tenderd/tenant/redisstore"
	"github.com/tenderd/tenderd/tenderd/tracing"
)

// connectAttempts bounds startup retries against Postgres and Redis.
const connectAttempts = 10

const (
	sessionStoreDatabase = "database"
	sessionStoreRedis    = "redis"
)

type serverOptions struct {
	httpAddress          string
	postgresURL          string
	sessionStore         string
	redisURL             string
	sessionDuration      time.Duration
	logHuman             string
	logJSON              string
	logFilter            []string
	verbose              bool
	prometheusAddress    string
	trace                bool
	traceExporter        string
	rateLimit            int64
	redirectToOnboarding string
	corsAllowOrigins     []string
}

func (o *serverOptions) optionSet() serpent.OptionSet {
	return serpent.OptionSet{
		{
			Flag:        "http-address",
			Env:         envPrefix + "HTTP_ADDRESS",
			Description: "HTTP bind address of the server.",
			Default:     "127.0.0.1:3000",
			Value:       serpent.StringOf(&o.httpAddress),
		},
		{
			Flag:        "postgres-url",
			Env:         envPrefix + "PG_CONNECTION_URL",
			Description: "URL of a PostgreSQL database. If empty, an in-memory store is used and all data is lost on exit.",
			Value:       serpent.StringOf(&o.postgresURL),
		},
		{
			Flag:        "session-store",
			Env:         envPrefix + "SESSION_STORE",
			Description: "Where sessions are kept.",
			Default:     sessionStoreDatabase,
			Value:       serpent.EnumOf(&o.sessionStore, sessionStoreDatabase, sessionStoreRedis),
		},
		{
			Flag:        "redis-url",
			Env:         envPrefix + "REDIS_URL",
			Description: "URL of the Redis server used when --session-store=redis.",
			Value:       serpent.StringOf(&o.redisURL),
		},
		{
			Flag:        "session-duration",
			Env:         envPrefix + "SESSION_DURATION",
			Description: "How long an issued session stays valid.",
			Default:     tenant.DefaultSessionDuration.String(),
			Value:       serpent.DurationOf(&o.sessionDuration),
		},
		{
			Flag:        "log-human",
			Env:         envPrefix + "LOGGING_HUMAN",
			Description: "Output human-readable logs to a given file.",
			Default:     "/dev/stderr",
			Value:       serpent.StringOf(&o.logHuman),
		},
		{
			Flag:        "log-json",
			Env:         envPrefix + "LOGGING_JSON",
			Description: "Output JSON logs to a given file.",
			Value:       serpent.StringOf(&o.logJSON),
		},
		{
			Flag:        "log-filter",
			Env:         envPrefix + "LOG_FILTER",
			Description: "Filter debug logs by matching against a given regex. Use .* to match all debug logs.",
			Value:       serpent.StringArrayOf(&o.logFilter),
		},
		{
			Flag:          "verbose",
			FlagShorthand: "v",
			Env:           envPrefix + "VERBOSE",
			Description:   "Output debug-level logs.",
			Value:         serpent.BoolOf(&o.verbose),
		},
		{
			Flag:        "prometheus-address",
			Env:         envPrefix + "PROMETHEUS_ADDRESS",
			Description: "The bind address to serve prometheus metrics. Empty disables the endpoint.",
			Value:       serpent.StringOf(&o.prometheusAddress),
		},
		{
			Flag:        "trace",
			Env:         envPrefix + "TRACE_ENABLE",
			Description: "Export traces to the OTLP endpoint configured by the standard OTEL_EXPORTER_OTLP_* variables.",
			Value:       serpent.BoolOf(&o.trace),
		},
		{
			Flag:        "trace-exporter",
			Env:         envPrefix + "TRACE_EXPORTER",
			Description: "OTLP transport used when --trace is set.",
			Default:     tracing.ExporterGRPC,
			Value:       serpent.EnumOf(&o.traceExporter, tracing.ExporterGRPC, tracing.ExporterHTTP),
		},
		{
			Flag:        "rate-limit",
			Env:         envPrefix + "API_RATE_LIMIT",
			Description: "Maximum API requests per minute for each session. Zero disables the limit.",
			Default:     "512",
			Value:       serpent.Int64Of(&o.rateLimit),
		},
		{
			Flag:        "redirect-to-onboarding",
			Env:         envPrefix + "REDIRECT_TO_ONBOARDING",
			Description: "URL that requests without an active organization are redirected to. If empty, they get a 409.",
			Value:       serpent.StringOf(&o.redirectToOnboarding),
		},
		{
			Flag:        "cors-allow-origins",
			Env:         envPrefix + "CORS_ALLOW_ORIGINS",
			Description: "Origins allowed to call the API from a browser. Empty disables CORS.",
			Value:       serpent.StringArrayOf(&o.corsAllowOrigins),
		},
	}
}

func (*RootCmd) Server() *serpent.Command {
	var opts serverOptions
	return &serpent.Command{
		Use:     "server",
		Short:   "Start the tenderd API server",
		Options: opts.optionSet(),
		Handler: func(inv *serpent.Invocation) error {
			return runServer(inv, opts)
		},
	}
}

func runServer(inv *serpent.Invocation, opts serverOptions) (err error) {
	logOpts := []clilog.Option{
		clilog.WithHuman(opts.logHuman),
		clilog.WithJSON(opts.logJSON),
		clilog.WithFilter(opts.logFilter...),
	}
	if opts.verbose {
		logOpts = append(logOpts, clilog.WithVerbose())
	}
	if opts.trace {
		logOpts = append(logOpts, clilog.WithTrace())
	}
	logger, closeLog, err := clilog.New(logOpts...).Build(inv.Stdout, inv.Stderr)
	if err != nil {
		return xerrors.Errorf("make logger: %w", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(inv.Context(), os.Interrupt)
	defer stop()

	var closers []func() error
	defer func() {
		var merr error
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i](); cerr != nil {
				merr = multierror.Append(merr, cerr)
			}
		}
		if merr != nil {
			logger.Error(context.Background(), "shut down", slog.Error(merr))
			if err == nil {
				err = merr
			}
		}
	}()

	var tracerProvider trace.TracerProvider
	if opts.trace {
		provider, closeTracing, err := tracing.TracerProvider(ctx, "tenderd", tracing.TracerOpts{Exporter: opts.traceExporter})
		if err != nil {
			logger.Warn(ctx, "start telemetry exporter", slog.Error(err))
		} else {
			tracerProvider = provider
			closers = append(closers, func() error {
				// Traces still flush after the command context is canceled.
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return closeTracing(shutdownCtx)
			})
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	db, closeDB, err := connectDatabase(ctx, logger, opts.postgresURL)
	if err != nil {
		return err
	}
	closers = append(closers, closeDB)

	clock := quartz.NewReal()
	var sessions tenant.SessionStore = db
	switch opts.sessionStore {
	case sessionStoreRedis:
		if opts.redisURL == "" {
			return xerrors.New("--redis-url is required when --session-store=redis")
		}
		var client *redis.Client
		err = connectWithRetry(ctx, logger, "redis", func(ctx context.Context) error {
			c, derr := redisstore.Dial(ctx, opts.redisURL)
			client = c
			return derr
		})
		if err != nil {
			return xerrors.Errorf("connect to redis: %w", err)
		}
		closers = append(closers, client.Close)
		sessions = redisstore.New(client, clock)
		logger.Info(ctx, "storing sessions in redis")
	case sessionStoreDatabase, "":
	default:
		return xerrors.Errorf("unknown session store %q", opts.sessionStore)
	}

	api := tenderd.New(&tenderd.Options{
		Logger:             logger.Named("tenderd"),
		Database:           db,
		Sessions:           sessions,
		Auditor:            audit.NewAuditor(registry, backends.NewSlog(logger.Named("audit"))),
		PrometheusRegistry: registry,
		TracerProvider:     tracerProvider,
		Clock:              clock,
		SessionDuration:    opts.sessionDuration,
		APIRateLimit:       int(opts.rateLimit),
		OnboardingURL:      opts.redirectToOnboarding,
		CORSAllowedOrigins: opts.corsAllowOrigins,
	})
	if opts.sessionStore != sessionStoreRedis {
		closers = append(closers, dbpurge.New(ctx, logger.Named("dbpurge"), api.Database, clock).Close)
	}

	if opts.prometheusAddress != "" {
		closers = append(closers, serveHandler(ctx, logger, promhttp.InstrumentMetricHandler(
			registry, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		), opts.prometheusAddress, "prometheus"))
	}

	listener, err := net.Listen("tcp", opts.httpAddress)
	if err != nil {
		return xerrors.Errorf("listen %q: %w", opts.httpAddress, err)
	}
	srv := &http.Server{
		Handler:           api.RootHandler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()
	_, _ = fmt.Fprintf(inv.Stdout, "Started HTTP listener at http://%s\n", listener.Addr())

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !xerrors.Is(err, http.ErrServerClosed) {
			return xerrors.Errorf("serve http: %w", err)
		}
	}

	_, _ = fmt.Fprintln(inv.Stdout, "Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return xerrors.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// connectDatabase opens and migrates Postgres, or falls back to the
// in-memory store when no URL is set.
func connectDatabase(ctx context.Context, logger slog.Logger, postgresURL string) (database.Store, func() error, error) {
	if postgresURL == "" {
		logger.Warn(ctx, "no postgres url given, using the in-memory database; all data is lost on exit")
		return dbmem.New(), func() error { return nil }, nil
	}

	sqlDB, err := sql.Open("postgres", postgresURL)
	if err != nil {
		return nil, nil, xerrors.Errorf("open postgres: %w", err)
	}
	err = connectWithRetry(ctx, logger, "postgres", func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return sqlDB.PingContext(pingCtx)
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, xerrors.Errorf("ping postgres: %w", err)
	}
	if err := migrations.Up(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, nil, xerrors.Errorf("migrate up: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	return database.New(sqlDB), sqlDB.Close, nil
}

// connectWithRetry calls connect with backoff until it succeeds, ctx ends,
// or connectAttempts is reached. Dependencies often start alongside the
// server.
func connectWithRetry(ctx context.Context, logger slog.Logger, name string, connect func(context.Context) error) error {
	var (
		err      error
		attempts int
	)
	for r := retry.New(time.Second, 5*time.Second); r.Wait(ctx); {
		attempts++
		err = connect(ctx)
		if err == nil {
			return nil
		}
		logger.Warn(ctx, "connect failed", slog.F("name", name), slog.F("attempt", attempts), slog.Error(err))
		if attempts >= connectAttempts {
			return err
		}
	}
	if err == nil {
		err = ctx.Err()
	}
	return err
}

func serveHandler(ctx context.Context, logger slog.Logger, handler http.Handler, addr, name string) (closeFunc func() error) {
	logger.Debug(ctx, "http server listening", slog.F("addr", addr), slog.F("name", name))

	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !xerrors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http server listen", slog.F("name", name), slog.Error(err))
		}
	}()

	return srv.Close
}
