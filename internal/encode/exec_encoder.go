package encode

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"os/exec"

	"github.com/fluesterlabs/fluestern/internal/config"
	"github.com/mattn/go-shellwords"
)

type execEncoder struct {
	cmd []string
	cfg config.AudioConfig
}

// NewExecEncoder builds an Encoder around the configured command, ffmpeg by
// default: resample to the configured rate and channel count, Opus-in-OGG at
// the fixed low bitrate.
func NewExecEncoder(cfg config.AudioConfig) (Encoder, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.EncodeCmd)
	if err != nil {
		return nil, fmt.Errorf("parse encode command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("encode command is empty")
	}
	return &execEncoder{cmd: args, cfg: cfg}, nil
}

func (e *execEncoder) Encode(ctx context.Context, rawPath string) (string, error) {
	outPath := outputPath(rawPath)

	args := append([]string{}, e.cmd[1:]...)
	args = append(args,
		"-y",
		"-i", rawPath,
		"-ar", strconv.Itoa(e.cfg.SampleRate),
		"-ac", strconv.Itoa(e.cfg.Channels),
		"-c:a", "libopus",
		"-b:a", e.cfg.Bitrate,
		outPath,
	)

	cmd := exec.CommandContext(ctx, e.cmd[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("encode command failed: %w: %s", err, lastLine(stderr.String()))
	}

	stat, err := os.Stat(outPath)
	if err != nil {
		return "", fmt.Errorf("encoded file missing: %w", err)
	}
	if stat.Size() == 0 {
		return "", fmt.Errorf("encoded file is empty: %s", outPath)
	}
	return outPath, nil
}

func outputPath(rawPath string) string {
	if i := strings.LastIndex(rawPath, "."); i > 0 {
		return rawPath[:i] + ".ogg"
	}
	return rawPath + ".ogg"
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
