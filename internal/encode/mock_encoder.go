package encode

import "context"

// MockEncoder returns a fixed path for tests.
type MockEncoder struct {
	Path string
	Err  error

	Encoded []string
}

func (m *MockEncoder) Encode(_ context.Context, rawPath string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	m.Encoded = append(m.Encoded, rawPath)
	if m.Path != "" {
		return m.Path, nil
	}
	return rawPath, nil
}
