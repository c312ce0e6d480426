package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/buttond/buttond/pkg/config"
	"github.com/buttond/buttond/pkg/engine"
	"github.com/buttond/buttond/pkg/hal"
	"github.com/buttond/buttond/pkg/handler"
	"github.com/buttond/buttond/pkg/notify"
	"github.com/buttond/buttond/pkg/telemetry"
)

func newRunCommand() *cobra.Command {
	var (
		logLevel      string
		logFormat     string
		metricsListen string
		noWatch       bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the trigger daemon in the foreground",
		Long: `Run enumerates devices via the selected backend, starts one polling
worker per device and serves triggers until interrupted.

Signals: SIGHUP reloads the configuration, SIGUSR1 stops all polling
workers, SIGUSR2 starts them again, SIGINT/SIGTERM shut down.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), runOptions{
				logLevel:      logLevel,
				logFormat:     logFormat,
				metricsListen: metricsListen,
				noWatch:       noWatch,
			})
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	cmd.Flags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "address for the Prometheus /metrics endpoint (disabled when empty)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "disable config file change watching")

	return cmd
}

type runOptions struct {
	logLevel      string
	logFormat     string
	metricsListen string
	noWatch       bool
}

func runDaemon(ctx context.Context, opts runOptions) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := telemetry.NewLogger(telemetry.LoggingConfig{
		Level:  opts.logLevel,
		Format: opts.logFormat,
		Output: "stderr",
	})
	if err != nil {
		return err
	}

	metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{
		Enabled:   opts.metricsListen != "",
		Namespace: "buttond",
		Listen:    opts.metricsListen,
	})
	if err != nil {
		return err
	}
	if opts.metricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		server := &http.Server{Addr: opts.metricsListen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Error("metrics endpoint failed")
			}
		}()
		defer server.Close()
		logger.Infof("serving metrics on %s", opts.metricsListen)
	}

	backend, err := hal.New(backendName)
	if err != nil {
		return err
	}

	cred, err := handler.LookupCredential(cfg.Global.User, cfg.Global.Group)
	if err != nil {
		// The daemon can still run; handlers inherit its credentials.
		logger.WithError(err).Warn("can't resolve handler credentials")
	}

	registry := engine.NewRegistry(backend, cfg, engine.Options{
		Logger:    logger,
		Metrics:   metrics,
		Sink:      notify.NewLogSink(logger),
		Runner:    &handler.ExecRunner{Credential: cred},
		ScriptDir: filepath.Dir(configPath),
	})

	if err := registry.RefreshDevices(ctx); err != nil {
		return err
	}
	registry.StartAll()
	defer registry.StopAll()

	var watchCh <-chan struct{}
	if !opts.noWatch {
		watcher, err := config.NewWatcher(configPath, logger)
		if err != nil {
			logger.WithError(err).Warn("config watching disabled")
		} else {
			defer watcher.Close()
			watchCh = watcher.Changes()
		}
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigs)

	reload := func() {
		next, err := loader.Load(configPath)
		if err != nil {
			logger.WithError(err).Error("reload failed, keeping previous configuration")
			return
		}
		registry.Reload(next)
	}

	logger.Infof("buttond running, polling %d device(s)", len(registry.Devices()))
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case sig := <-sigs:
			switch sig {
			case syscall.SIGHUP:
				logger.Info("SIGHUP received, reloading configuration")
				reload()
			case syscall.SIGUSR1:
				logger.Info("SIGUSR1 received, stopping all workers")
				registry.StopAll()
			case syscall.SIGUSR2:
				logger.Info("SIGUSR2 received, starting all workers")
				registry.StartAll()
			}
		case <-watchCh:
			logger.Info("config file changed, reloading")
			reload()
		}
	}
}
