package encode

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fluesterlabs/fluestern/internal/config"
)

func TestNewExecEncoderRejectsEmptyCommand(t *testing.T) {
	if _, err := NewExecEncoder(config.AudioConfig{}); err == nil {
		t.Fatal("expected error for empty encode command")
	}
}

func TestOutputPath(t *testing.T) {
	cases := map[string]string{
		"/tmp/fluestern/capture.wav": "/tmp/fluestern/capture.ogg",
		"/tmp/raw":                   "/tmp/raw.ogg",
	}
	for in, want := range cases {
		if got := outputPath(in); got != want {
			t.Fatalf("outputPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEncodeFailsWhenOutputMissing(t *testing.T) {
	// "true" exits 0 without producing a file, exercising the missing-output
	// failure signal.
	enc, err := NewExecEncoder(config.AudioConfig{
		SampleRate: 16000, Channels: 1, Bitrate: "32k", EncodeCmd: "true", CaptureCmd: "x",
	})
	if err != nil {
		t.Fatalf("new encoder: %v", err)
	}
	raw := filepath.Join(t.TempDir(), "capture.wav")
	if err := os.WriteFile(raw, []byte("pcm"), 0o644); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	if _, err := enc.Encode(context.Background(), raw); err == nil {
		t.Fatal("expected error when encoder produced no output")
	}
}
