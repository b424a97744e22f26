// Package model runs externally trained recovery models against aggregated
// feature vectors.
package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayusman/strokerehab/internal/features"
)

// ManifestFile is the name of the manifest in each model directory.
const ManifestFile = "model.json"

var (
	// ErrModelNotFound is returned when a requested model cannot be found.
	ErrModelNotFound = errors.New("model not found")

	// ErrPredictionFailed is returned when a model cannot produce a prediction.
	ErrPredictionFailed = errors.New("prediction failed")
)

// Manifest describes a model's metadata and the feature schema it was trained on.
type Manifest struct {
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	Description   string   `json:"description"`
	Executable    string   `json:"executable"`
	SchemaVersion string   `json:"schema_version"`
	FeatureCount  int      `json:"feature_count"`
	Labels        []string `json:"labels,omitempty"`
}

// Validate checks that the manifest can be used with this build's features.
func (m Manifest) Validate() error {
	if m.Name == "" {
		return errors.New("manifest has no name")
	}
	if m.Executable == "" {
		return fmt.Errorf("manifest %s has no executable", m.Name)
	}
	return features.ValidateVersion(m.SchemaVersion, m.FeatureCount)
}

// Request is written to a model's stdin.
type Request struct {
	SchemaVersion string    `json:"schema_version"`
	Features      []float64 `json:"features"`
}

// Response is read from a model's stdout.
type Response struct {
	Success bool    `json:"success"`
	Score   float64 `json:"score"`
	Label   string  `json:"label"`
	Error   string  `json:"error,omitempty"`
}

// Model is a discovered model with its manifest and location.
type Model struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// ID returns name@version.
func (m *Model) ID() string {
	return m.Manifest.Name + "@" + m.Manifest.Version
}

// Prediction is a model's output for one attempt.
type Prediction struct {
	Score float64 `json:"score"`
	Label string  `json:"label"`
	Model string  `json:"model"`
}

// Predictor scores an aggregated feature vector.
type Predictor interface {
	Predict(ctx context.Context, v features.Vector) (Prediction, error)
}
