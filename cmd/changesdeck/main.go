package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/waabox/changesdeck/internal/config"
	"github.com/waabox/changesdeck/internal/domain"
	"github.com/waabox/changesdeck/internal/fetch"
	"github.com/waabox/changesdeck/internal/git"
	"github.com/waabox/changesdeck/internal/observability"
	"github.com/waabox/changesdeck/internal/pipeline"
	"github.com/waabox/changesdeck/internal/provider"
	"github.com/waabox/changesdeck/internal/provider/changes"
	"github.com/waabox/changesdeck/internal/snapshot"
	"github.com/waabox/changesdeck/internal/tui"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

const snapshotPoll = 100 * time.Millisecond

type options struct {
	project    string
	source     string
	diff       string
	once       bool
	format     string
	timeout    time.Duration
	configPath string
	strict     bool
	writeCfg   bool
}

func main() {
	var opts options
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.StringVar(&opts.project, "project", "", "project slug (defaults to config, then the origin remote's repository name)")
	flag.StringVar(&opts.source, "source", "", "source id of the commit to show")
	flag.StringVar(&opts.diff, "diff", "", "code review diff id to show instead of a commit")
	flag.BoolVar(&opts.once, "once", false, "print a report once the page has loaded and exit")
	flag.StringVar(&opts.format, "format", "yaml", "report format for -once: yaml or json")
	flag.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "how long -once waits for the page to load")
	flag.StringVar(&opts.configPath, "config", config.DefaultConfigPath(), "path to the TOML config file")
	flag.BoolVar(&opts.strict, "strict", false, "panic on fetch contract violations")
	flag.BoolVar(&opts.writeCfg, "write-config", false, "write the effective configuration to -config and exit")
	flag.Parse()
	if *versionFlag {
		fmt.Println("changesdeck", version)
		os.Exit(0)
	}

	code, err := run(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "changesdeck: %v\n", err)
	}
	os.Exit(code)
}

func run(opts options) (int, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return 1, err
	}
	cfg, err := config.LoadFrom(opts.configPath)
	if err != nil {
		return 1, fmt.Errorf("loading config: %w", err)
	}
	if opts.writeCfg {
		if err := config.Save(opts.configPath, cfg); err != nil {
			return 1, fmt.Errorf("writing config: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Configuration written to %s\n", opts.configPath)
		return 0, nil
	}

	anchor, err := resolveAnchor(opts, cfg)
	if err != nil {
		return 2, err
	}

	logOut, closeLog, err := logOutput(opts.once, cfg.Dashboard.LogFile)
	if err != nil {
		return 1, err
	}
	defer closeLog()
	logger := observability.NewLogger("changesdeck", logOut, cfg.Dashboard.LogLevel)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	if addr := cfg.Dashboard.MetricsAddr; addr != "" {
		srv := serveMetrics(addr, registry, logger)
		defer srv.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend := provider.NewInstrumentedProvider(
		changes.NewAdapter(cfg.Changes.Token, cfg.Changes.URL),
		observability.NewLogger("provider", logOut, cfg.Dashboard.LogLevel),
		metrics,
	)
	cacheOpts := []fetch.Option{
		fetch.WithLogger(logger),
		fetch.WithMetrics(metrics),
		fetch.WithStrict(opts.strict || cfg.Dashboard.Strict),
	}
	logger.Info("starting", "anchor", anchor.Key(), "once", opts.once, "version", version)

	if opts.once {
		return runOnce(ctx, opts, anchor, backend, cacheOpts)
	}
	if err := tui.Run(ctx, backend, anchor, cfg.PollIntervalOrDefault(), cacheOpts...); err != nil {
		return 1, err
	}
	return 0, nil
}

// runOnce drives one page to a terminal outcome and prints the report.
// The exit code is 1 when part of the page failed to load.
func runOnce(ctx context.Context, opts options, anchor domain.Anchor, p domain.CIProvider, cacheOpts []fetch.Option) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	w := pipeline.ForProvider(fetch.NewCache(ctx, cacheOpts...), anchor, p)
	defer w.Close()

	res, waitErr := snapshot.Wait(ctx, w, snapshotPoll)
	if err := snapshot.Render(os.Stdout, opts.format, snapshot.Build(anchor, res)); err != nil {
		return 1, err
	}
	if waitErr != nil {
		return 1, waitErr
	}
	if res.Outcome == pipeline.PartialFailure {
		return 1, nil
	}
	return 0, nil
}

func resolveAnchor(opts options, cfg config.Config) (domain.Anchor, error) {
	if opts.diff != "" {
		return domain.DiffAnchor(opts.diff), nil
	}
	project := opts.project
	if project == "" {
		project = cfg.Dashboard.Project
	}
	if project == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return domain.Anchor{}, fmt.Errorf("getting current directory: %w", err)
		}
		if project, err = git.DefaultProject(cwd); err != nil {
			return domain.Anchor{}, fmt.Errorf("detecting project from git remote: %w", err)
		}
	}
	anchor := domain.CommitAnchor(project, opts.source)
	if err := anchor.Validate(); err != nil {
		return domain.Anchor{}, fmt.Errorf("%w (use -source or -diff)", err)
	}
	return anchor, nil
}

// logOutput picks where logs go. The dashboard owns the terminal, so it
// only logs to a file; the report mode logs to stderr.
func logOutput(once bool, logFile string) (io.Writer, func(), error) {
	if logFile == "" {
		if once {
			return os.Stderr, func() {}, nil
		}
		return io.Discard, func() {}, nil
	}
	f, err := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func serveMetrics(addr string, gatherer prometheus.Gatherer, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler(gatherer))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return srv
}
