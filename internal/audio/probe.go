// Package audio validates captured waveform artifacts.
package audio

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-audio/wav"
)

// ErrEmpty indicates the capture produced no usable audio.
var ErrEmpty = errors.New("no audio recorded")

// Info summarizes a captured artifact.
type Info struct {
	SizeBytes int64
	Duration  time.Duration
}

// Probe checks that the artifact at path is present and non-empty and, for
// WAV files, derives the recorded duration from the header. Non-WAV or
// truncated files fall back to size-only validation with zero duration; the
// caller substitutes wall-clock elapsed time in that case.
func Probe(path string) (Info, error) {
	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Info{}, ErrEmpty
		}
		return Info{}, fmt.Errorf("stat audio file: %w", err)
	}
	if stat.Size() == 0 {
		return Info{}, ErrEmpty
	}
	info := Info{SizeBytes: stat.Size()}

	if !strings.HasSuffix(strings.ToLower(path), ".wav") {
		return info, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return info, nil
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dur, err := dec.Duration()
	if err != nil {
		// A header-only file (recorder killed before writing samples) counts
		// as empty even though its size is non-zero.
		return info, nil
	}
	if dur <= 0 {
		return Info{SizeBytes: stat.Size()}, ErrEmpty
	}
	info.Duration = dur
	return info, nil
}
