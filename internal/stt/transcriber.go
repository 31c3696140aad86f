// Package stt sends compressed audio to the remote speech-to-text endpoint.
package stt

import (
	"context"
	"errors"
)

// ErrEmptyTranscript indicates a well-formed response without usable text.
// The service heard nothing; callers treat the cycle as failed but do not
// surface it as an API error.
var ErrEmptyTranscript = errors.New("transcription returned no text")

// Result captures recognizer output.
type Result struct {
	Text string
}

// Transcriber abstracts speech-to-text backends.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (Result, error)
}
