// Command rehab-replay scores recorded attempts offline. Each argument is a
// JSON file holding either a frame array or an attempt object with
// username, exercise and landmark_data.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/cheggaaa/pb/v3"

	"github.com/ayusman/strokerehab/internal/app"
	"github.com/ayusman/strokerehab/internal/biomech"
	"github.com/ayusman/strokerehab/internal/features"
	"github.com/ayusman/strokerehab/internal/model"
	"github.com/ayusman/strokerehab/internal/pose"
)

const progressTemplate = `{{ string . "prefix" }} {{counters . "%s/%s" "%s/?"}} {{bar . }} {{percent . "%.01f%%" "?"}} {{etime . "%s elapsed"}}`

type attemptFile struct {
	Username     string       `json:"username"`
	Exercise     string       `json:"exercise"`
	LandmarkData []pose.Frame `json:"landmark_data"`
}

type report struct {
	File       string             `json:"file"`
	Frames     int                `json:"frames"`
	Features   map[string]float64 `json:"features,omitempty"`
	Score      *float64           `json:"score,omitempty"`
	Label      string             `json:"label,omitempty"`
	Model      string             `json:"model,omitempty"`
	NoResult   string             `json:"no_result,omitempty"`
	ElapsedSec float64            `json:"elapsed_s"`
}

func main() {
	alpha := flag.Float64("alpha", biomech.DefaultAlpha, "EMA smoothing factor in (0, 1]")
	modelsDir := flag.String("models", "models", "models directory")
	modelName := flag.String("model", "", "model to score with; empty only extracts features")
	timeout := flag.Duration("timeout", model.DefaultTimeout, "prediction timeout")
	asJSON := flag.Bool("json", false, "print JSON reports")
	quiet := flag.Bool("q", false, "hide progress bars")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: rehab-replay [flags] attempt.json...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	cfg := app.Config{Alpha: *alpha}
	if *modelName != "" {
		registry := model.NewRegistry(*modelsDir)
		if err := registry.Discover(); err != nil {
			fatal(err)
		}
		runner, err := registry.Runner(*modelName, *timeout)
		if err != nil {
			fatal(fmt.Errorf("model %s in %s: %w", *modelName, *modelsDir, err))
		}
		cfg.Predictor = runner
	}
	scorer, err := app.NewScorer(cfg)
	if err != nil {
		fatal(err)
	}

	failed := false
	for _, path := range flag.Args() {
		r, err := replay(context.Background(), scorer, path, cfg.Predictor != nil, !*quiet)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
			continue
		}
		if *asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.Encode(r)
		} else {
			printReport(os.Stdout, r)
		}
	}
	if failed {
		os.Exit(1)
	}
}

// loadFrames reads a frame array or an attempt object.
func loadFrames(path string) (app.Meta, []pose.Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return app.Meta{}, nil, err
	}

	var frames []pose.Frame
	if err := json.Unmarshal(data, &frames); err == nil {
		return app.Meta{Username: "replay"}, frames, nil
	}

	var f attemptFile
	if err := json.Unmarshal(data, &f); err != nil {
		return app.Meta{}, nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if f.LandmarkData == nil {
		return app.Meta{}, nil, errors.New("no landmark_data")
	}
	if f.Username == "" {
		f.Username = "replay"
	}
	return app.Meta{Username: f.Username, Exercise: f.Exercise}, f.LandmarkData, nil
}

// replay feeds the file's frames through a live attempt one at a time.
func replay(ctx context.Context, scorer *app.Scorer, path string, predict, progress bool) (*report, error) {
	meta, frames, err := loadFrames(path)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	live, err := scorer.NewLiveAttempt(ctx, meta)
	if err != nil {
		return nil, err
	}
	defer live.Close(ctx)

	var bar *pb.ProgressBar
	if progress {
		bar = pb.ProgressBarTemplate(progressTemplate).Start(len(frames))
		bar.Set("prefix", filepath.Base(path))
	}

	records := make([]biomech.FrameRecord, 0, len(frames))
	for i, f := range frames {
		rec, err := live.Add(f)
		if err != nil {
			if bar != nil {
				bar.Finish()
			}
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		records = append(records, rec)
		if bar != nil {
			bar.Increment()
		}
	}
	if bar != nil {
		bar.Finish()
	}

	r := &report{File: path, Frames: len(frames)}
	v, err := features.Aggregate(records)
	if err != nil {
		r.NoResult = string(app.ReasonInsufficientData)
		r.ElapsedSec = time.Since(start).Seconds()
		return r, nil
	}
	r.Features = v.Named()

	if predict {
		res, err := live.Finish(ctx)
		if err != nil {
			reason, _ := app.ReasonOf(err)
			r.NoResult = string(reason)
		} else {
			score := res.Prediction.Score
			r.Score, r.Label, r.Model = &score, res.Prediction.Label, res.Prediction.Model
		}
	}
	r.ElapsedSec = time.Since(start).Seconds()
	return r, nil
}

func printReport(w io.Writer, r *report) {
	fmt.Fprintf(w, "%s: %d frames in %.3fs\n", r.File, r.Frames, r.ElapsedSec)
	if r.Score != nil {
		fmt.Fprintf(w, "score %.2f (%s) by %s\n", *r.Score, r.Label, r.Model)
	}
	if r.NoResult != "" {
		fmt.Fprintf(w, "no result: %s\n", r.NoResult)
	}
	if r.Features == nil {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range features.Names() {
		fmt.Fprintf(tw, "  %s\t%.6g\n", name, r.Features[name])
	}
	tw.Flush()
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "rehab-replay: %v\n", err)
	os.Exit(1)
}
