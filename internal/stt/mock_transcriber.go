package stt

import "context"

// MockTranscriber returns canned results for tests.
type MockTranscriber struct {
	Text string
	Err  error

	Calls []string // audio paths
}

func (m *MockTranscriber) Transcribe(_ context.Context, audioPath, _ string) (Result, error) {
	m.Calls = append(m.Calls, audioPath)
	if m.Err != nil {
		return Result{}, m.Err
	}
	return Result{Text: m.Text}, nil
}
