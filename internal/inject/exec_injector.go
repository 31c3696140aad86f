package inject

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/fluesterlabs/fluestern/internal/config"
	"github.com/mattn/go-shellwords"
)

type execInjector struct {
	cfg     config.InjectConfig
	copy    []string
	primary []string
	paste   []string
	typing  []string
	sleep   func(time.Duration)
}

// NewExecInjector builds an Injector around the configured toolchain.
// Clipboard mode copies to both the clipboard and the primary selection and
// fires a paste keystroke; type mode simulates keystroke-by-keystroke typing
// with the text piped on stdin.
func NewExecInjector(cfg config.InjectConfig) (Injector, error) {
	parser := shellwords.NewParser()
	parse := func(name, raw string) ([]string, error) {
		if strings.TrimSpace(raw) == "" {
			return nil, nil
		}
		args, err := parser.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s command: %w", name, err)
		}
		return args, nil
	}

	inj := &execInjector{cfg: cfg, sleep: time.Sleep}
	var err error
	if inj.copy, err = parse("copy", cfg.CopyCmd); err != nil {
		return nil, err
	}
	if inj.primary, err = parse("primary", cfg.PrimaryCmd); err != nil {
		return nil, err
	}
	if inj.paste, err = parse("paste", cfg.PasteCmd); err != nil {
		return nil, err
	}
	if inj.typing, err = parse("type", cfg.TypeCmd); err != nil {
		return nil, err
	}

	switch cfg.Mode {
	case "clipboard":
		if len(inj.copy) == 0 || len(inj.paste) == 0 {
			return nil, fmt.Errorf("clipboard mode requires copy and paste commands")
		}
	case "type":
		if len(inj.typing) == 0 {
			return nil, fmt.Errorf("type mode requires a type command")
		}
	default:
		return nil, fmt.Errorf("unknown inject mode %q", cfg.Mode)
	}
	return inj, nil
}

func (i *execInjector) Inject(ctx context.Context, text string) error {
	// Let window focus settle after any preceding UI interaction before
	// firing synthetic input.
	if delay := time.Duration(i.cfg.SettleDelayMS) * time.Millisecond; delay > 0 {
		i.sleep(delay)
	}

	if i.cfg.Mode == "type" {
		return i.runWithStdin(ctx, i.typing, text)
	}

	if err := i.runWithStdin(ctx, i.copy, text); err != nil {
		return err
	}
	if len(i.primary) > 0 {
		if err := i.runWithStdin(ctx, i.primary, text); err != nil {
			return err
		}
	}
	return i.run(ctx, i.paste)
}

func (i *execInjector) runWithStdin(ctx context.Context, args []string, text string) error {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w", args[0], err)
	}
	return nil
}

func (i *execInjector) run(ctx context.Context, args []string) error {
	if err := exec.CommandContext(ctx, args[0], args[1:]...).Run(); err != nil {
		return fmt.Errorf("%s failed: %w", args[0], err)
	}
	return nil
}
