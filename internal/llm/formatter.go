// Package llm normalizes raw transcripts through the remote chat endpoint.
//
// Spoken formatting commands ("Absatz", "Komma", ...) are substitutions the
// model applies because the system prompt tells it to. There is no local
// parsing and no deterministic fallback when the model ignores the prompt;
// the controller compensates only for hard failures, by falling back to the
// raw transcript.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyCompletion indicates a well-formed response without content.
var ErrEmptyCompletion = errors.New("formatting returned no content")

// Formatter abstracts chat-completion backends used for transcript cleanup.
type Formatter interface {
	Format(ctx context.Context, raw, correctionsContext string) (string, error)
}
