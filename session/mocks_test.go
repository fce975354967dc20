package session

import (
	"errors"
	"time"
)

// mockTimeProvider provides deterministic time for testing.
type mockTimeProvider struct {
	currentTime time.Time
}

func (m *mockTimeProvider) Now() time.Time {
	return m.currentTime
}

func (m *mockTimeProvider) Since(t time.Time) time.Duration {
	return m.currentTime.Sub(t)
}

func (m *mockTimeProvider) advance(d time.Duration) {
	m.currentTime = m.currentTime.Add(d)
}

func newMockTimeProvider() *mockTimeProvider {
	return &mockTimeProvider{
		currentTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

var errLinkDown = errors.New("link down")

// mockLink records frames handed to the transport.
type mockLink struct {
	frames [][]byte
	fail   bool
}

func (m *mockLink) Send(frame []byte) error {
	if m.fail {
		return errLinkDown
	}
	m.frames = append(m.frames, append([]byte(nil), frame...))
	return nil
}

func (m *mockLink) last() []byte {
	if len(m.frames) == 0 {
		return nil
	}
	return m.frames[len(m.frames)-1]
}
