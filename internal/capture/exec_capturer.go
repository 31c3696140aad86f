package capture

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/fluesterlabs/fluestern/internal/config"
	"github.com/mattn/go-shellwords"
)

type execCapturer struct {
	cmd []string
	cfg config.AudioConfig
}

// NewExecCapturer builds a Capturer around the configured recorder command
// (pw-record by default).
func NewExecCapturer(cfg config.AudioConfig) (Capturer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.CaptureCmd)
	if err != nil {
		return nil, fmt.Errorf("parse capture command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("capture command is empty")
	}
	return &execCapturer{cmd: args, cfg: cfg}, nil
}

func (c *execCapturer) Start(_ context.Context, source, destPath string) (int, error) {
	args := append([]string{}, c.cmd[1:]...)
	args = append(args,
		"--rate", strconv.Itoa(c.cfg.SampleRate),
		"--channels", strconv.Itoa(c.cfg.Channels),
	)
	if source != "" {
		args = append(args, "--target", source)
	}
	args = append(args, destPath)

	// Deliberately not CommandContext: the recorder must keep running after
	// this invocation exits and is only stopped by the next toggle.
	cmd := exec.Command(c.cmd[0], args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("spawn recorder: %w", err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("detach recorder: %w", err)
	}
	return pid, nil
}

func (c *execCapturer) Stop(pid int) error {
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		if err == syscall.ESRCH {
			return nil
		}
		return fmt.Errorf("signal recorder: %w", err)
	}

	timeout := time.Duration(c.cfg.StopTimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := syscall.Kill(pid, 0); err == syscall.ESRCH {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}

	// Recorder ignored SIGTERM; force it so the marker never sticks.
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("kill recorder: %w", err)
	}
	return nil
}
