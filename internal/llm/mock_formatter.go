package llm

import "context"

// MockFormatter returns canned output for tests.
type MockFormatter struct {
	Text string
	Err  error

	Inputs   []string
	Contexts []string
}

func (m *MockFormatter) Format(_ context.Context, raw, correctionsContext string) (string, error) {
	m.Inputs = append(m.Inputs, raw)
	m.Contexts = append(m.Contexts, correctionsContext)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Text, nil
}
