// Package main is the reference recovery model. It reads one request from
// stdin and writes one response to stdout, the protocol every model
// executable speaks. Build it next to its manifest:
//
//	go build -o models/baseline/baseline ./models/baseline
package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/ayusman/strokerehab/internal/features"
)

// Request represents the input from the model runner.
type Request struct {
	SchemaVersion string    `json:"schema_version"`
	Features      []float64 `json:"features"`
}

// Response represents the output to the model runner.
type Response struct {
	Success bool    `json:"success"`
	Score   float64 `json:"score"`
	Label   string  `json:"label"`
	Error   string  `json:"error,omitempty"`
}

// Component weights; they sum to 1.
const (
	weightROM        = 0.5
	weightSymmetry   = 0.3
	weightSmoothness = 0.2
)

// fullROM is the elbow range of motion, in degrees, that earns the full
// range-of-motion component.
const fullROM = 120.0

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(Response{Error: fmt.Sprintf("failed to decode request: %v", err)})
		return
	}

	if err := features.ValidateVersion(req.SchemaVersion, len(req.Features)); err != nil {
		writeResponse(Response{Error: err.Error()})
		return
	}
	v, err := features.FromSlice(req.Features)
	if err != nil {
		writeResponse(Response{Error: err.Error()})
		return
	}

	s := score(v)
	writeResponse(Response{Success: true, Score: s, Label: label(s)})
}

// score rates recovery from 0 to 100. The weaker arm's elbow range of motion
// dominates, followed by how closely the arms match and how smooth the
// weaker arm moved.
func score(v features.Vector) float64 {
	get := func(name string) float64 {
		x, _ := v.Get(name)
		return x
	}

	left, right := get("L_elbow_rom"), get("R_elbow_rom")
	weak, strong := math.Min(left, right), math.Max(left, right)

	rom := clamp(weak / fullROM)

	// Arms that did not move earn no symmetry credit
	symmetry := 0.0
	if strong > 1 {
		symmetry = clamp(weak / strong)
	}

	// SPARC is -ln(mean jerk): about -5 for jerky motion, 5 and above for smooth.
	sparc := math.Min(get("L_sparc_smoothness"), get("R_sparc_smoothness"))
	smoothness := clamp((sparc + 5) / 10)

	total := 100 * (weightROM*rom + weightSymmetry*symmetry + weightSmoothness*smoothness)
	return math.Round(total*100) / 100
}

func label(score float64) string {
	switch {
	case score >= 70:
		return "mild"
	case score >= 40:
		return "moderate"
	default:
		return "severe"
	}
}

func clamp(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Max(0, math.Min(1, x))
}

// writeResponse writes a response to stdout.
func writeResponse(resp Response) {
	json.NewEncoder(os.Stdout).Encode(resp)
}
