// fluestern is the toggle controller: bind it to a hotkey and each
// invocation either starts a recording or stops it and types the formatted
// transcript into the focused window.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fluesterlabs/fluestern/internal/bus"
	"github.com/fluesterlabs/fluestern/internal/capture"
	"github.com/fluesterlabs/fluestern/internal/config"
	"github.com/fluesterlabs/fluestern/internal/controller"
	"github.com/fluesterlabs/fluestern/internal/encode"
	"github.com/fluesterlabs/fluestern/internal/history"
	"github.com/fluesterlabs/fluestern/internal/inject"
	"github.com/fluesterlabs/fluestern/internal/llm"
	"github.com/fluesterlabs/fluestern/internal/notify"
	"github.com/fluesterlabs/fluestern/internal/session"
	"github.com/fluesterlabs/fluestern/internal/status"
	"github.com/fluesterlabs/fluestern/internal/stt"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file (defaults and env vars apply when empty)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, logClose, err := newLogger(cfg.Telemetry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logClose()

	if err := run(cfg, logger); err != nil {
		logger.Error("toggle failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	capturer, err := capture.NewExecCapturer(cfg.Audio)
	if err != nil {
		return err
	}
	encoder, err := encode.NewExecEncoder(cfg.Audio)
	if err != nil {
		return err
	}
	injector, err := inject.NewExecInjector(cfg.Inject)
	if err != nil {
		return err
	}
	notifier, err := notify.NewExecNotifier(cfg.Notify)
	if err != nil {
		return err
	}
	hist, err := history.Open(ctx, cfg.History, logger)
	if err != nil {
		return err
	}
	defer hist.Close()

	// The daemon may be down; the controller then runs standalone and the
	// tray catches up from the icon-state file.
	busClient, err := bus.Connect(ctx, cfg.Bus, logger)
	if err != nil {
		logger.Debug("bus unavailable", slog.String("error", err.Error()))
		busClient = nil
	}
	defer busClient.Close()

	ctrl := controller.New(cfg, logger, controller.Deps{
		Sessions:    session.NewStore(cfg.Controller.SessionMarker),
		Capturer:    capturer,
		Encoder:     encoder,
		Transcriber: stt.NewGroqTranscriber(cfg.API),
		Formatter:   llm.NewGroqFormatter(cfg.API),
		Injector:    injector,
		History:     hist,
		Notifier:    notifier,
		Reporter:    status.NewReporter(cfg.Controller.IconState, busClient, logger),
	})

	return ctrl.Toggle(ctx)
}

// newLogger writes JSON logs to the configured file (append) so the debug
// log survives across the short-lived invocations, or to stderr when no
// file is configured.
func newLogger(cfg config.TelemetryConfig) (*slog.Logger, func(), error) {
	out := os.Stderr
	closeFn := func() {}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		out = f
		closeFn = func() { f.Close() }
	}

	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
	return logger, closeFn, nil
}
