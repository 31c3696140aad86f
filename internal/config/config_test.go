package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.API.TranscriptionModel != "whisper-large-v3-turbo" {
		t.Fatalf("expected default transcription model, got %q", cfg.API.TranscriptionModel)
	}
	if cfg.API.Language != "" {
		t.Fatalf("expected auto-detect language by default, got %q", cfg.API.Language)
	}
	if cfg.History.CorrectionsLimit != 20 {
		t.Fatalf("expected corrections limit 20, got %d", cfg.History.CorrectionsLimit)
	}
	if cfg.API.SystemPrompt != DefaultSystemPrompt {
		t.Fatal("expected default system prompt")
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4299" {
		t.Fatalf("expected default bus server, got %v", cfg.Bus.Servers)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fluestern.yaml")
	data := []byte(`
api:
  key: test-key
  language: de
audio:
  source: "alsa_input.usb-mic"
inject:
  mode: type
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.API.Key != "test-key" {
		t.Fatalf("expected api key from file, got %q", cfg.API.Key)
	}
	if cfg.API.Language != "de" {
		t.Fatalf("expected language de, got %q", cfg.API.Language)
	}
	if cfg.Audio.Source != "alsa_input.usb-mic" {
		t.Fatalf("expected mic source override, got %q", cfg.Audio.Source)
	}
	if cfg.Inject.Mode != "type" {
		t.Fatalf("expected inject mode type, got %q", cfg.Inject.Mode)
	}
	// Untouched sections keep defaults.
	if cfg.Audio.SampleRate != 16000 {
		t.Fatalf("expected default sample rate, got %d", cfg.Audio.SampleRate)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FLUESTERN_API_KEY", "env-key")
	t.Setenv("FLUESTERN_API_LANGUAGE", "en")
	t.Setenv("FLUESTERN_API_TEMPERATURE", "0.3")
	t.Setenv("FLUESTERN_AUDIO_SOURCE", "pipewire-default")
	t.Setenv("FLUESTERN_NOTIFY_ENABLED", "false")
	t.Setenv("FLUESTERN_HISTORY_PATH", "./tmp.db")
	t.Setenv("FLUESTERN_BUS_SERVERS", "nats://one:4299, nats://two:4299")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.API.Key != "env-key" {
		t.Fatalf("expected api key override, got %q", cfg.API.Key)
	}
	if cfg.API.Language != "en" {
		t.Fatalf("expected language override, got %q", cfg.API.Language)
	}
	if cfg.API.Temperature != 0.3 {
		t.Fatalf("expected temperature override, got %v", cfg.API.Temperature)
	}
	if cfg.Audio.Source != "pipewire-default" {
		t.Fatalf("expected audio source override, got %q", cfg.Audio.Source)
	}
	if cfg.Notify.Enabled {
		t.Fatal("expected notifications disabled")
	}
	if cfg.History.Path != "./tmp.db" {
		t.Fatalf("expected history path override, got %q", cfg.History.Path)
	}
	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 bus servers, got %v", cfg.Bus.Servers)
	}
}

func TestLegacyEnvKeys(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "legacy-key")
	t.Setenv("MIC_SOURCE", "legacy-mic")
	t.Setenv("LANGUAGE", "de")
	t.Setenv("NOTIFICATIONS", "false")
	t.Setenv("TRAY_ICON", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.API.Key != "legacy-key" {
		t.Fatalf("expected legacy api key, got %q", cfg.API.Key)
	}
	if cfg.Audio.Source != "legacy-mic" {
		t.Fatalf("expected legacy mic source, got %q", cfg.Audio.Source)
	}
	if cfg.API.Language != "de" {
		t.Fatalf("expected legacy language, got %q", cfg.API.Language)
	}
	if cfg.Notify.Enabled || cfg.Tray.Enabled {
		t.Fatal("expected legacy toggles to disable notifications and tray")
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("FLUESTERN_INJECT_MODE", "telepathy")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for unknown inject mode")
	}
}
