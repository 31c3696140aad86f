package inject

import "context"

// MockInjector records injected text for tests.
type MockInjector struct {
	Err      error
	Injected []string
}

func (m *MockInjector) Inject(_ context.Context, text string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Injected = append(m.Injected, text)
	return nil
}
