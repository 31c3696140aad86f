// Package encode compresses captured waveforms for upload.
package encode

import "context"

// Encoder turns a raw capture into a compact lossy-encoded file and returns
// its path. Absence or emptiness of the output is the failure signal checked
// by the caller.
type Encoder interface {
	Encode(ctx context.Context, rawPath string) (string, error)
}
