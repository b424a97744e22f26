package detector

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/strokerehab/internal/pose"
)

// MockDetector is a test implementation of the Detector interface. It
// returns the landmarks of the configured frames in order, then nothing.
type MockDetector struct {
	mu     sync.Mutex
	frames []pose.Frame
	calls  int
	err    error
}

// NewMockDetector creates a MockDetector that replays frames.
func NewMockDetector(frames []pose.Frame) *MockDetector {
	return &MockDetector{frames: frames}
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect ran.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockDetector) Detect(img *gocv.Mat) ([]pose.Landmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	i := m.calls - 1
	if i >= len(m.frames) {
		return nil, nil
	}
	return m.frames[i].Landmarks, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}
