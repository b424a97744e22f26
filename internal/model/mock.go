package model

import (
	"context"
	"sync"

	"github.com/ayusman/strokerehab/internal/features"
)

// MockPredictor is a test Predictor with a preset result.
type MockPredictor struct {
	mu         sync.Mutex
	prediction Prediction
	err        error
	panicValue any
	calls      []features.Vector
}

// NewMockPredictor creates a MockPredictor that returns the given prediction.
func NewMockPredictor(score float64, label string) *MockPredictor {
	return &MockPredictor{
		prediction: Prediction{Score: score, Label: label, Model: "mock@0"},
	}
}

// SetError sets the error that will be returned by Predict.
func (m *MockPredictor) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetPanic makes Predict panic with v.
func (m *MockPredictor) SetPanic(v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicValue = v
}

// Predict records the call and returns the preset prediction or error.
func (m *MockPredictor) Predict(ctx context.Context, v features.Vector) (Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, v)
	if m.panicValue != nil {
		panic(m.panicValue)
	}
	if m.err != nil {
		return Prediction{}, m.err
	}
	return m.prediction, nil
}

// Calls returns the vectors passed to Predict so far.
func (m *MockPredictor) Calls() []features.Vector {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]features.Vector, len(m.calls))
	copy(out, m.calls)
	return out
}
