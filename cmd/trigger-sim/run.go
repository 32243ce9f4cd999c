package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/pkg/profile"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/uber-go/tally/v4"
	"github.com/uber-go/tally/v4/prometheus"
	"go.uber.org/multierr"

	"github.com/RuiFG/streaming-trigger/common/safe"
	"github.com/RuiFG/streaming-trigger/config"
	"github.com/RuiFG/streaming-trigger/host"
	"github.com/RuiFG/streaming-trigger/log"
)

var runOptions struct {
	config  string
	follow  string
	poll    bool
	output  string
	profile string
}

func init() {
	runCommand := &cobra.Command{
		Use:   "run [event log]",
		Short: "run the configured trigger over an event log",
		Long: `run the configured trigger over an event log, stdin when no file is given.
Every emitted pane is written as one json line.`,
		Args: cobra.MaximumNArgs(1),
		RunE: run,
	}
	flags := runCommand.Flags()
	flags.StringVarP(&runOptions.config, "config", "c", "trigger", "config name, or path of a yml config file")
	flags.StringVarP(&runOptions.follow, "follow", "f", "", "follow the event log at this path instead of replaying")
	flags.BoolVar(&runOptions.poll, "poll", false, "poll the followed file instead of using inotify")
	flags.StringVarP(&runOptions.output, "output", "o", "", "write panes to this file instead of stdout")
	flags.StringVar(&runOptions.profile, "profile", "", "write a cpu, mem or trace profile to the current dir")
	Command.AddCommand(runCommand)
}

func loadConfig() (*config.Application, func(func(*config.Application, error)), error) {
	v := config.New("trigger", runOptions.config)
	if ext := filepath.Ext(runOptions.config); ext == ".yml" || ext == ".yaml" {
		v.SetConfigFile(runOptions.config)
	}
	application, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}
	return application, func(onChange func(*config.Application, error)) { config.Watch(v, onChange) }, nil
}

func startProfile() interface{ Stop() } {
	mode := map[string]func(*profile.Profile){
		"cpu":   profile.CPUProfile,
		"mem":   profile.MemProfile,
		"trace": profile.TraceProfile,
	}[runOptions.profile]
	if mode == nil {
		return nil
	}
	return profile.Start(mode, profile.ProfilePath("."), profile.NoShutdownHook)
}

// newScope reports engine metrics to prometheus, served on listen.
func newScope(metrics config.Metrics, logger log.Logger) (tally.Scope, func() error) {
	if metrics.Listen == "" {
		return tally.NoopScope, func() error { return nil }
	}
	registry := prom.NewRegistry()
	registry.MustRegister(prom.NewGoCollector(), prom.NewProcessCollector(prom.ProcessCollectorOpts{}))
	reporter := prometheus.NewReporter(prometheus.Options{
		Registerer:               registry,
		Gatherer:                 registry,
		DefaultTimerType:         prometheus.HistogramTimerType,
		DefaultHistogramBuckets:  prometheus.DefaultHistogramBuckets(),
		DefaultSummaryObjectives: prometheus.DefaultSummaryObjectives(),
		OnRegisterError: func(err error) {
			logger.Warnw("failed to register metric", "err", err)
		},
	})
	interval := metrics.Interval
	if interval <= 0 {
		interval = time.Second
	}
	scope, closer := tally.NewRootScope(tally.ScopeOptions{
		Prefix:         "trigger_sim",
		CachedReporter: reporter,
		Separator:      prometheus.DefaultSeparator,
	}, interval)

	mux := http.NewServeMux()
	mux.Handle("/metrics", reporter.HTTPHandler())
	server := &http.Server{Addr: metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	served := safe.Go(func() error {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	logger.Infow("serving metrics", "listen", metrics.Listen)
	return scope, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return multierr.Combine(server.Shutdown(ctx), <-served, closer.Close())
	}
}

func run(cmd *cobra.Command, args []string) (err error) {
	application, watch, err := loadConfig()
	if err != nil {
		return err
	}
	log.Setup(log.DefaultOptions().
		WithOutputEncoder(application.LogEncoder()).
		WithLevel(application.LogLevel()).
		WithStdOutput(false).
		WithWriter(os.Stderr))
	logger := log.Global().Named("trigger-sim")
	defer func() { _ = logger.Sync() }()
	watch(func(application *config.Application, err error) {
		if err != nil {
			logger.Warnw("ignore invalid config change", "err", err)
			return
		}
		log.SetLevel(application.LogLevel())
		logger.Infow("log level changed", "level", application.LogLevel().String())
	})

	if p := startProfile(); p != nil {
		defer p.Stop()
	}

	scope, closeScope := newScope(application.Metrics, logger)
	defer func() { err = multierr.Append(err, closeScope()) }()

	var output io.Writer = os.Stdout
	if runOptions.output != "" {
		file, err := os.Create(runOptions.output)
		if err != nil {
			return errors.WithMessagef(err, "can't create %s", runOptions.output)
		}
		defer func() { _ = file.Close() }()
		output = file
	}

	runner, err := host.New(application,
		host.WithCollector(host.NewJSONCollector(output, logger.Named("output"))),
		host.WithLogger(log.Global().Named("host")),
		host.WithMetrics(scope))
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, runner.Close()) }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.Infow("trigger started", "trigger", application.Trigger.Kind, "window", application.Window.Kind)
	switch {
	case runOptions.follow != "":
		return runner.Follow(ctx, runOptions.follow, runOptions.poll)
	case len(args) == 1:
		file, err := os.Open(args[0])
		if err != nil {
			return errors.WithMessagef(err, "can't open %s", args[0])
		}
		defer func() { _ = file.Close() }()
		return runner.Replay(ctx, file)
	default:
		return runner.Replay(ctx, os.Stdin)
	}
}
