package capture

import (
	"context"
	"sync"
)

// MockCapturer records calls for tests instead of spawning processes.
type MockCapturer struct {
	mu       sync.Mutex
	NextPID  int
	StartErr error
	StopErr  error

	Started []string // destination paths
	Stopped []int
}

func NewMockCapturer() *MockCapturer {
	return &MockCapturer{NextPID: 12345}
}

func (m *MockCapturer) Start(_ context.Context, _, destPath string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartErr != nil {
		return 0, m.StartErr
	}
	m.Started = append(m.Started, destPath)
	return m.NextPID, nil
}

func (m *MockCapturer) Stop(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StopErr != nil {
		return m.StopErr
	}
	m.Stopped = append(m.Stopped, pid)
	return nil
}
