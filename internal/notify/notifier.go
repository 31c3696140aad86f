// Package notify surfaces short status messages to the user.
package notify

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/fluesterlabs/fluestern/internal/config"
	"github.com/mattn/go-shellwords"
)

// Notifier sends a desktop notification. Best-effort.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

type execNotifier struct {
	cmd     []string
	enabled bool
}

// NewExecNotifier wraps the configured command, notify-send by default.
// A disabled notifier silently drops messages.
func NewExecNotifier(cfg config.NotifyConfig) (Notifier, error) {
	if !cfg.Enabled {
		return &execNotifier{enabled: false}, nil
	}
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse notify command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("notify command is empty")
	}
	return &execNotifier{cmd: args, enabled: true}, nil
}

func (n *execNotifier) Notify(ctx context.Context, title, body string) error {
	if !n.enabled {
		return nil
	}
	args := append(append([]string{}, n.cmd[1:]...), title, body)
	if err := exec.CommandContext(ctx, n.cmd[0], args...).Run(); err != nil {
		return fmt.Errorf("notify command failed: %w", err)
	}
	return nil
}

// MockNotifier records notifications for tests.
type MockNotifier struct {
	Messages []string
}

func (m *MockNotifier) Notify(_ context.Context, title, body string) error {
	m.Messages = append(m.Messages, title+": "+body)
	return nil
}
