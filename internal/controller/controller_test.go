package controller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/fluesterlabs/fluestern/internal/capture"
	"github.com/fluesterlabs/fluestern/internal/config"
	"github.com/fluesterlabs/fluestern/internal/encode"
	"github.com/fluesterlabs/fluestern/internal/groq"
	"github.com/fluesterlabs/fluestern/internal/history"
	"github.com/fluesterlabs/fluestern/internal/inject"
	"github.com/fluesterlabs/fluestern/internal/llm"
	"github.com/fluesterlabs/fluestern/internal/notify"
	"github.com/fluesterlabs/fluestern/internal/protocol"
	"github.com/fluesterlabs/fluestern/internal/session"
	"github.com/fluesterlabs/fluestern/internal/status"
	"github.com/fluesterlabs/fluestern/internal/stt"
)

// fakeClock advances on every read so stage durations come out positive
// without sleeping in tests.
type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

type fixture struct {
	ctrl        *Controller
	cfg         config.Config
	sessions    *session.Store
	capturer    *capture.MockCapturer
	encoder     *encode.MockEncoder
	transcriber *stt.MockTranscriber
	formatter   *llm.MockFormatter
	injector    *inject.MockInjector
	notifier    *notify.MockNotifier
	reporter    *status.MockReporter
	hist        *history.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Controller.StateDir = dir
	cfg.Controller.SessionMarker = filepath.Join(dir, "session.json")
	cfg.Controller.IconState = filepath.Join(dir, "icon-state")
	cfg.History.Path = filepath.Join(dir, "history.db")

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	hist, err := history.Open(context.Background(), cfg.History, log)
	if err != nil {
		t.Fatalf("open history store: %v", err)
	}
	t.Cleanup(func() { hist.Close() })

	f := &fixture{
		cfg:         cfg,
		sessions:    session.NewStore(cfg.Controller.SessionMarker),
		capturer:    capture.NewMockCapturer(),
		encoder:     &encode.MockEncoder{},
		transcriber: &stt.MockTranscriber{Text: "hallo das ist ein test"},
		formatter:   &llm.MockFormatter{Text: "Hallo, das ist ein Test."},
		injector:    &inject.MockInjector{},
		notifier:    &notify.MockNotifier{},
		reporter:    &status.MockReporter{},
		hist:        hist,
	}
	f.ctrl = New(cfg, log, Deps{
		Sessions:    f.sessions,
		Capturer:    f.capturer,
		Encoder:     f.encoder,
		Transcriber: f.transcriber,
		Formatter:   f.formatter,
		Injector:    f.injector,
		History:     f.hist,
		Notifier:    f.notifier,
		Reporter:    f.reporter,
	})
	f.ctrl.clock = (&fakeClock{now: time.Unix(1700000000, 0), step: 50 * time.Millisecond}).Now
	return f
}

func (f *fixture) audioPath() string {
	return filepath.Join(f.cfg.Controller.StateDir, "capture.wav")
}

// writeCapturedWav fakes what the recorder would have written: one second of
// mono 16 kHz audio.
func writeCapturedWav(t *testing.T, path string) {
	t.Helper()
	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer out.Close()

	buf := &gaudio.IntBuffer{
		Format: &gaudio.Format{NumChannels: 1, SampleRate: 16000},
		Data:   make([]int, 16000),
	}
	enc := wav.NewEncoder(out, 16000, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav encoder: %v", err)
	}
}

func (f *fixture) lastRecording(t *testing.T) history.Recording {
	t.Helper()
	recs, err := f.hist.Recent(context.Background(), 1)
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected one history row, got %d", len(recs))
	}
	return recs[0]
}

func TestToggleFullCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.ctrl.Toggle(ctx); err != nil {
		t.Fatalf("start toggle: %v", err)
	}
	sess, err := f.sessions.Current()
	if err != nil || sess == nil {
		t.Fatalf("expected active session, got %v, %v", sess, err)
	}
	if sess.PID != f.capturer.NextPID {
		t.Fatalf("expected recorded pid %d, got %d", f.capturer.NextPID, sess.PID)
	}

	writeCapturedWav(t, f.audioPath())

	if err := f.ctrl.Toggle(ctx); err != nil {
		t.Fatalf("stop toggle: %v", err)
	}

	if got := f.injector.Injected; len(got) != 1 || got[0] != "Hallo, das ist ein Test." {
		t.Fatalf("unexpected injected text: %v", got)
	}
	if f.capturer.Stopped[0] != f.capturer.NextPID {
		t.Fatalf("stopped wrong pid: %v", f.capturer.Stopped)
	}

	rec := f.lastRecording(t)
	if !rec.Success {
		t.Fatalf("expected success row, got error %q", rec.ErrorMessage)
	}
	if rec.RawTranscript != "hallo das ist ein test" {
		t.Fatalf("unexpected raw transcript %q", rec.RawTranscript)
	}
	if rec.FormattedTranscript != "Hallo, das ist ein Test." {
		t.Fatalf("unexpected formatted transcript %q", rec.FormattedTranscript)
	}
	if rec.AudioDurationMS != 1000 {
		t.Fatalf("expected 1000ms audio duration, got %d", rec.AudioDurationMS)
	}
	if rec.WhisperDurationMS <= 0 || rec.LLMDurationMS <= 0 || rec.TotalDurationMS <= 0 {
		t.Fatalf("expected positive stage durations, got %d/%d/%d",
			rec.WhisperDurationMS, rec.LLMDurationMS, rec.TotalDurationMS)
	}

	if sess, _ := f.sessions.Current(); sess != nil {
		t.Fatal("session marker should be gone after stop")
	}
	want := []protocol.State{protocol.StateRecording, protocol.StateProcessing, protocol.StateIdle}
	if len(f.reporter.States) != len(want) {
		t.Fatalf("unexpected state sequence: %v", f.reporter.States)
	}
	for i, s := range want {
		if f.reporter.States[i] != s {
			t.Fatalf("state %d: expected %q, got %q", i, s, f.reporter.States[i])
		}
	}
}

func TestToggleFormattingFallsBackToRaw(t *testing.T) {
	f := newFixture(t)
	f.formatter.Err = llm.ErrEmptyCompletion
	ctx := context.Background()

	if err := f.ctrl.Toggle(ctx); err != nil {
		t.Fatalf("start toggle: %v", err)
	}
	writeCapturedWav(t, f.audioPath())
	if err := f.ctrl.Toggle(ctx); err != nil {
		t.Fatalf("stop toggle should succeed despite formatting failure: %v", err)
	}

	if got := f.injector.Injected; len(got) != 1 || got[0] != "hallo das ist ein test" {
		t.Fatalf("expected raw transcript injected, got %v", got)
	}
	rec := f.lastRecording(t)
	if !rec.Success {
		t.Fatalf("formatting fallback must still count as success, got error %q", rec.ErrorMessage)
	}
	if rec.FormattedTranscript != "hallo das ist ein test" {
		t.Fatalf("expected fallback transcript stored, got %q", rec.FormattedTranscript)
	}
}

func TestToggleEmptyCapture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.ctrl.Toggle(ctx); err != nil {
		t.Fatalf("start toggle: %v", err)
	}
	// No audio file gets written: the recorder produced nothing.
	if err := f.ctrl.Toggle(ctx); err == nil {
		t.Fatal("expected error for empty capture")
	}

	if len(f.transcriber.Calls) != 0 {
		t.Fatalf("transcription should not be attempted, got calls %v", f.transcriber.Calls)
	}
	if len(f.injector.Injected) != 0 {
		t.Fatalf("nothing should be injected, got %v", f.injector.Injected)
	}
	rec := f.lastRecording(t)
	if rec.Success {
		t.Fatal("expected failure row")
	}
	if rec.ErrorMessage == "" {
		t.Fatal("expected non-empty error message")
	}
	if sess, _ := f.sessions.Current(); sess != nil {
		t.Fatal("session marker should be gone after failed cycle")
	}

	found := false
	for _, msg := range f.notifier.Messages {
		if strings.Contains(msg, "No audio recorded") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected empty-audio notification, got %v", f.notifier.Messages)
	}
}

func TestToggleTranscriptionFailure(t *testing.T) {
	f := newFixture(t)
	f.transcriber.Err = &groq.Error{Message: "invalid_api_key"}
	ctx := context.Background()

	if err := f.ctrl.Toggle(ctx); err != nil {
		t.Fatalf("start toggle: %v", err)
	}
	writeCapturedWav(t, f.audioPath())

	err := f.ctrl.Toggle(ctx)
	if err == nil {
		t.Fatal("expected error when transcription fails")
	}
	var apiErr *groq.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected wrapped API error, got %v", err)
	}

	if len(f.injector.Injected) != 0 {
		t.Fatalf("nothing should be injected, got %v", f.injector.Injected)
	}
	rec := f.lastRecording(t)
	if rec.Success {
		t.Fatal("expected failure row")
	}
	if !strings.Contains(rec.ErrorMessage, "invalid_api_key") {
		t.Fatalf("expected API error in history, got %q", rec.ErrorMessage)
	}
	if rec.WhisperDurationMS <= 0 {
		t.Fatal("transcription latency should be recorded even on failure")
	}
}

func TestToggleSpawnFailureLeavesNoSession(t *testing.T) {
	f := newFixture(t)
	f.capturer.StartErr = errors.New("pw-record: no such device")
	ctx := context.Background()

	if err := f.ctrl.Toggle(ctx); err == nil {
		t.Fatal("expected error when the recorder cannot start")
	}
	if sess, _ := f.sessions.Current(); sess != nil {
		t.Fatal("no session marker may remain after a failed spawn")
	}
}

func TestToggleClearsCorruptMarker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := os.WriteFile(f.cfg.Controller.SessionMarker, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	// The corrupt marker is cleared and a fresh capture starts.
	if err := f.ctrl.Toggle(ctx); err != nil {
		t.Fatalf("toggle with corrupt marker: %v", err)
	}
	sess, err := f.sessions.Current()
	if err != nil || sess == nil {
		t.Fatalf("expected fresh session, got %v, %v", sess, err)
	}
	if len(f.capturer.Started) != 1 {
		t.Fatalf("expected one capture start, got %v", f.capturer.Started)
	}
}

func TestCorrectionsContextReachesFormatter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.hist.Insert(ctx, history.Recording{
		Timestamp:     time.Now().UTC(),
		RawTranscript: "fluster",
		Success:       true,
	})
	if err != nil {
		t.Fatalf("seed history: %v", err)
	}
	if err := f.hist.SaveCorrection(ctx, id, "Flüstern"); err != nil {
		t.Fatalf("save correction: %v", err)
	}

	if err := f.ctrl.Toggle(ctx); err != nil {
		t.Fatalf("start toggle: %v", err)
	}
	writeCapturedWav(t, f.audioPath())
	if err := f.ctrl.Toggle(ctx); err != nil {
		t.Fatalf("stop toggle: %v", err)
	}

	if len(f.formatter.Contexts) != 1 {
		t.Fatalf("expected one format call, got %d", len(f.formatter.Contexts))
	}
	got := f.formatter.Contexts[0]
	if !strings.Contains(got, `"fluster"`) || !strings.Contains(got, `"Flüstern"`) {
		t.Fatalf("corrections context missing pattern pair: %q", got)
	}
}
