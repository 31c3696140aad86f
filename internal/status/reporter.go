// Package status propagates controller phase changes to the tray daemon.
package status

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fluesterlabs/fluestern/internal/bus"
	"github.com/fluesterlabs/fluestern/internal/protocol"
)

// Reporter signals phase changes. Implementations are best-effort: a
// reporting failure must never fail the cycle.
type Reporter interface {
	Report(state protocol.State, detail string)
}

type reporter struct {
	iconPath string
	bus      *bus.Client
	log      *slog.Logger
	clock    func() time.Time
}

// NewReporter writes the icon-state marker file and, when the bus client is
// non-nil, pushes the status message so the daemon refreshes immediately
// instead of on its next poll.
func NewReporter(iconPath string, busClient *bus.Client, log *slog.Logger) Reporter {
	return &reporter{iconPath: iconPath, bus: busClient, log: log, clock: time.Now}
}

func (r *reporter) Report(state protocol.State, detail string) {
	if err := WriteIconState(r.iconPath, state); err != nil {
		r.log.Warn("failed to write icon state", slog.String("error", err.Error()))
	}

	if r.bus == nil || !r.bus.Healthy() {
		return
	}
	msg := protocol.Status{State: state, Detail: detail, Timestamp: r.clock().UTC()}
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Warn("failed to marshal status", slog.String("error", err.Error()))
		return
	}
	if err := r.bus.Conn().Publish(protocol.SubjectStatus, data); err != nil {
		r.log.Warn("failed to publish status", slog.String("error", err.Error()))
	}
}

// WriteIconState replaces the icon-state marker atomically so the tray never
// reads a half-written value.
func WriteIconState(path string, state protocol.State) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(state), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadIconState returns the current marker value, defaulting to idle.
func ReadIconState(path string) protocol.State {
	data, err := os.ReadFile(path)
	if err != nil {
		return protocol.StateIdle
	}
	switch protocol.State(data) {
	case protocol.StateRecording, protocol.StateProcessing, protocol.StateIdle:
		return protocol.State(data)
	default:
		return protocol.StateIdle
	}
}

// MockReporter records reported states for tests.
type MockReporter struct {
	States []protocol.State
}

func (m *MockReporter) Report(state protocol.State, _ string) {
	m.States = append(m.States, state)
}
