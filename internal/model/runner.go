package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"time"

	"github.com/ayusman/strokerehab/internal/features"
)

// DefaultTimeout bounds a single prediction.
const DefaultTimeout = 10 * time.Second

// Runner executes a model process for each prediction.
type Runner struct {
	model   *Model
	timeout time.Duration
}

// NewRunner creates a Runner for the given model. A non-positive timeout
// selects DefaultTimeout.
func NewRunner(m *Model, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{
		model:   m,
		timeout: timeout,
	}
}

// Model returns the model this runner executes.
func (r *Runner) Model() *Model {
	return r.model
}

// Predict sends the vector to the model process on stdin and parses its
// stdout as a Response. All failures wrap ErrPredictionFailed.
func (r *Runner) Predict(ctx context.Context, v features.Vector) (Prediction, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.model.Executable)
	cmd.Dir = r.model.Path
	cmd.WaitDelay = time.Second

	reqJSON, err := json.Marshal(Request{
		SchemaVersion: features.SchemaVersion,
		Features:      v.Slice(),
	})
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: marshal request: %v", ErrPredictionFailed, err)
	}
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Prediction{}, fmt.Errorf("%w: %s timed out after %s", ErrPredictionFailed, r.model.ID(), r.timeout)
	}
	if err != nil {
		if s := stderr.String(); s != "" {
			return Prediction{}, fmt.Errorf("%w: %s: %v, stderr: %s", ErrPredictionFailed, r.model.ID(), err, s)
		}
		return Prediction{}, fmt.Errorf("%w: %s: %v", ErrPredictionFailed, r.model.ID(), err)
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return Prediction{}, fmt.Errorf("%w: parse response: %v, stdout: %s", ErrPredictionFailed, err, stdout.String())
	}
	if !resp.Success {
		return Prediction{}, fmt.Errorf("%w: %s: %s", ErrPredictionFailed, r.model.ID(), resp.Error)
	}
	if math.IsNaN(resp.Score) || math.IsInf(resp.Score, 0) {
		return Prediction{}, fmt.Errorf("%w: %s returned non-finite score", ErrPredictionFailed, r.model.ID())
	}

	return Prediction{
		Score: resp.Score,
		Label: resp.Label,
		Model: r.model.ID(),
	}, nil
}
