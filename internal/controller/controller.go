// Package controller implements the toggle cycle: one invocation starts a
// capture, the next stops it and runs the pipeline that compresses,
// transcribes, formats, injects and persists the result.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fluesterlabs/fluestern/internal/audio"
	"github.com/fluesterlabs/fluestern/internal/capture"
	"github.com/fluesterlabs/fluestern/internal/config"
	"github.com/fluesterlabs/fluestern/internal/encode"
	"github.com/fluesterlabs/fluestern/internal/history"
	"github.com/fluesterlabs/fluestern/internal/inject"
	"github.com/fluesterlabs/fluestern/internal/llm"
	"github.com/fluesterlabs/fluestern/internal/notify"
	"github.com/fluesterlabs/fluestern/internal/protocol"
	"github.com/fluesterlabs/fluestern/internal/session"
	"github.com/fluesterlabs/fluestern/internal/status"
	"github.com/fluesterlabs/fluestern/internal/stt"
)

const notifyTitle = "Voice Input"

// Deps bundles the capabilities the controller orchestrates.
type Deps struct {
	Sessions    *session.Store
	Capturer    capture.Capturer
	Encoder     encode.Encoder
	Transcriber stt.Transcriber
	Formatter   llm.Formatter
	Injector    inject.Injector
	History     *history.Store
	Notifier    notify.Notifier
	Reporter    status.Reporter
}

// Controller drives one toggle cycle per invocation. It is deliberately
// sequential: network calls block for their full duration, there are no
// retries, and the only cancellable phase is the recording itself (cancelled
// by the next invocation).
type Controller struct {
	cfg   config.Config
	log   *slog.Logger
	deps  Deps
	clock func() time.Time
}

func New(cfg config.Config, log *slog.Logger, deps Deps) *Controller {
	return &Controller{
		cfg:   cfg,
		log:   log.With(slog.String("component", "controller")),
		deps:  deps,
		clock: time.Now,
	}
}

// Toggle inspects the session marker and either starts a capture or stops
// the current one and runs the pipeline.
func (c *Controller) Toggle(ctx context.Context) error {
	sess, err := c.deps.Sessions.Current()
	if err != nil {
		// A corrupt marker would otherwise wedge the toggle forever.
		c.log.Warn("clearing unreadable session marker", slogError(err))
		if err := c.deps.Sessions.Release(); err != nil {
			return err
		}
		sess = nil
	}
	if sess == nil {
		return c.start(ctx)
	}
	return c.stop(ctx, *sess)
}

func (c *Controller) start(ctx context.Context) error {
	audioPath := filepath.Join(c.cfg.Controller.StateDir, "capture.wav")
	if err := os.MkdirAll(c.cfg.Controller.StateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	// Stale artifact from a previous cycle must not masquerade as audio.
	_ = os.Remove(audioPath)

	pid, err := c.deps.Capturer.Start(ctx, c.cfg.Audio.Source, audioPath)
	if err != nil {
		c.notify(ctx, "Recording failed: "+err.Error())
		c.deps.Reporter.Report(protocol.StateIdle, "spawn failed")
		return fmt.Errorf("start capture: %w", err)
	}

	err = c.deps.Sessions.Acquire(session.Session{
		PID:       pid,
		AudioPath: audioPath,
		StartedAt: c.clock(),
	})
	if err != nil {
		// Lost a race against a concurrent trigger; ours is the duplicate.
		_ = c.deps.Capturer.Stop(pid)
		if errors.Is(err, session.ErrActive) {
			c.log.Warn("session already active, duplicate trigger ignored")
			return nil
		}
		return fmt.Errorf("acquire session: %w", err)
	}

	c.deps.Reporter.Report(protocol.StateRecording, "")
	c.notify(ctx, "Recording... speak now")
	c.log.Info("recording started", slog.Int("pid", pid), slog.String("audio", audioPath))
	return nil
}

func (c *Controller) stop(ctx context.Context, sess session.Session) error {
	// Clear the marker first so the system stays triggerable no matter what
	// the pipeline does.
	if err := c.deps.Sessions.Release(); err != nil {
		return fmt.Errorf("release session: %w", err)
	}
	if err := c.deps.Capturer.Stop(sess.PID); err != nil {
		c.log.Warn("failed to stop recorder", slogError(err), slog.Int("pid", sess.PID))
	}
	c.deps.Reporter.Report(protocol.StateProcessing, "")

	rec := history.Recording{Timestamp: c.clock().UTC()}
	finish := func() {
		rec.TotalDurationMS = c.clock().Sub(sess.StartedAt).Milliseconds()
		if _, err := c.deps.History.Insert(ctx, rec); err != nil {
			c.log.Warn("failed to persist history record", slogError(err))
		}
		c.deps.Reporter.Report(protocol.StateIdle, "")
	}

	info, err := audio.Probe(sess.AudioPath)
	if err != nil {
		c.notify(ctx, "No audio recorded")
		rec.Success = false
		rec.ErrorMessage = "no audio recorded"
		rec.AudioDurationMS = c.clock().Sub(sess.StartedAt).Milliseconds()
		finish()
		return fmt.Errorf("validate capture: %w", err)
	}
	if info.Duration > 0 {
		rec.AudioDurationMS = info.Duration.Milliseconds()
	} else {
		rec.AudioDurationMS = c.clock().Sub(sess.StartedAt).Milliseconds()
	}

	compressed, err := c.deps.Encoder.Encode(ctx, sess.AudioPath)
	if err != nil {
		c.notify(ctx, "Processing failed: "+err.Error())
		rec.Success = false
		rec.ErrorMessage = "encode failed: " + err.Error()
		finish()
		return fmt.Errorf("encode capture: %w", err)
	}

	transcribeStart := c.clock()
	result, err := c.deps.Transcriber.Transcribe(ctx, compressed, c.cfg.API.Language)
	rec.WhisperDurationMS = c.clock().Sub(transcribeStart).Milliseconds()
	if err != nil {
		c.notify(ctx, "Transcription failed: "+err.Error())
		rec.Success = false
		rec.ErrorMessage = "transcription failed: " + err.Error()
		finish()
		return fmt.Errorf("transcribe: %w", err)
	}
	rec.RawTranscript = result.Text

	correctionsContext, err := c.deps.History.CorrectionsPromptContext(ctx, c.cfg.History.CorrectionsLimit)
	if err != nil {
		c.log.Warn("failed to load corrections context", slogError(err))
		correctionsContext = ""
	}

	formatStart := c.clock()
	formatted, err := c.deps.Formatter.Format(ctx, result.Text, correctionsContext)
	rec.LLMDurationMS = c.clock().Sub(formatStart).Milliseconds()
	if err != nil {
		// Recoverable degradation: the raw transcript is still worth typing.
		c.log.Warn("formatting failed, falling back to raw transcript", slogError(err))
		formatted = result.Text
	}
	rec.FormattedTranscript = formatted

	if err := c.deps.Injector.Inject(ctx, formatted); err != nil {
		c.log.Warn("injection failed", slogError(err))
	}

	rec.Success = true
	finish()
	c.notify(ctx, "Done: "+preview(formatted))
	c.log.Info("cycle complete",
		slog.Int64("audio_ms", rec.AudioDurationMS),
		slog.Int64("whisper_ms", rec.WhisperDurationMS),
		slog.Int64("llm_ms", rec.LLMDurationMS),
		slog.Int64("total_ms", rec.TotalDurationMS))
	return nil
}

func (c *Controller) notify(ctx context.Context, body string) {
	if err := c.deps.Notifier.Notify(ctx, notifyTitle, body); err != nil {
		c.log.Warn("notification failed", slogError(err))
	}
}

func preview(text string) string {
	const max = 60
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
