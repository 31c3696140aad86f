// Package capture starts and stops the background microphone recorder.
package capture

import "context"

// Capturer abstracts the platform recording toolchain. Start spawns a
// recorder writing a mono 16kHz waveform to destPath and returns its process
// id; the process must outlive the calling invocation. Stop must be
// idempotent: stopping a process that already exited is not an error.
type Capturer interface {
	Start(ctx context.Context, source, destPath string) (pid int, err error)
	Stop(pid int) error
}
