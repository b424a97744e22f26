// Command rehab-capture records one exercise attempt from a local webcam,
// estimates the arm pose in every image and scores the attempt.
//
// Recording stops on Ctrl-C, after capture.max_duration_s, or once the
// patient has moved and then held still for capture.idle_timeout_s.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ayusman/strokerehab/internal/app"
	"github.com/ayusman/strokerehab/internal/capture"
	"github.com/ayusman/strokerehab/internal/config"
	"github.com/ayusman/strokerehab/internal/detector"
	"github.com/ayusman/strokerehab/internal/model"
	"github.com/ayusman/strokerehab/internal/pose"
	"github.com/ayusman/strokerehab/internal/server/api"
	"github.com/ayusman/strokerehab/internal/store"
)

// attemptFile is the recording format read back by rehab-replay.
type attemptFile struct {
	Username     string       `json:"username"`
	Exercise     string       `json:"exercise"`
	LandmarkData []pose.Frame `json:"landmark_data"`
}

func main() {
	configPath := flag.String("config", "", "path to YAML config (default $"+config.EnvPath+")")
	device := flag.Int("device", -1, "video device, overrides capture.device")
	username := flag.String("user", "", "patient username (required)")
	exercise := flag.String("exercise", "elbow_flexion", "exercise name")
	out := flag.String("out", "", "also write the recorded frames to this JSON file")
	save := flag.Bool("save", false, "store the scored attempt in store.path")
	flag.Parse()

	if *username == "" {
		fmt.Fprintln(os.Stderr, "usage: rehab-capture -user NAME [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rehab-capture: %v\n", err)
		os.Exit(1)
	}
	if *device >= 0 {
		cfg.Capture.Device = *device
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	meta := app.Meta{Username: *username, Exercise: *exercise}
	if err := run(cfg, meta, *out, *save); err != nil {
		slog.Error("rehab-capture failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, meta app.Meta, out string, save bool) error {
	scorerCfg := app.Config{Alpha: cfg.Extractor.Alpha, Logger: slog.Default()}

	registry := model.NewRegistry(cfg.Model.Dir)
	if err := registry.Discover(); err != nil {
		slog.Warn("failed to scan models directory", "dir", cfg.Model.Dir, "error", err)
	}
	if runner, err := registry.Runner(cfg.Model.Active, cfg.Model.Timeout()); err != nil {
		slog.Warn("no scoring model, only features will be extracted", "model", cfg.Model.Active, "error", err)
	} else {
		scorerCfg.Predictor = runner
	}

	if save {
		st, err := store.New(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("initialize store: %w", err)
		}
		defer st.Close()
		scorerCfg.Store = st
	}

	scorer, err := app.NewScorer(scorerCfg)
	if err != nil {
		return err
	}

	det, err := detector.NewProcessDetector(detector.Config{
		Command:       cfg.Capture.Estimator,
		MinVisibility: cfg.Capture.MinVisibility,
		IdleTimeout:   detector.DefaultConfig().IdleTimeout,
	})
	if err != nil {
		return err
	}
	defer det.Close()

	rec := capture.NewRecorder(capture.NewCamera(cfg.Capture.Device, cfg.Capture.FPS), det, capture.Options{
		MaxDuration:     cfg.Capture.MaxDuration(),
		IdleTimeout:     cfg.Capture.IdleTimeout(),
		MotionThreshold: cfg.Capture.MotionThreshold,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("recording, press Ctrl-C to stop", "device", cfg.Capture.Device, "user", meta.Username, "exercise", meta.Exercise)
	live, frames, stats, err := record(ctx, scorer, rec, meta)
	if err != nil {
		return err
	}
	stop()

	if out != "" {
		if err := writeAttempt(out, meta, frames); err != nil {
			return err
		}
		slog.Info("frames written", "path", out, "frames", len(frames))
	}

	// Recording may have ended on Ctrl-C; scoring gets a fresh context.
	scoreCtx, cancel := context.WithTimeout(context.Background(), cfg.Model.Timeout()+5*time.Second)
	defer cancel()

	res, err := live.Finish(scoreCtx)
	printResult(stats, res, err)

	var nr *app.NoResultError
	if errors.As(err, &nr) {
		return nil
	}
	return err
}

// record feeds every captured pose into a live attempt.
func record(ctx context.Context, scorer *app.Scorer, rec *capture.Recorder, meta app.Meta) (*app.LiveAttempt, []pose.Frame, capture.Stats, error) {
	live, err := scorer.NewLiveAttempt(ctx, meta)
	if err != nil {
		return nil, nil, capture.Stats{}, err
	}

	var frames []pose.Frame
	stats, err := rec.Record(ctx, func(f pose.Frame) error {
		if _, err := live.Add(f); err != nil {
			return err
		}
		frames = append(frames, f)
		return nil
	})
	if err != nil {
		live.Close(ctx)
		return nil, nil, stats, err
	}
	return live, frames, stats, nil
}

func writeAttempt(path string, meta app.Meta, frames []pose.Frame) error {
	data, err := json.MarshalIndent(attemptFile{
		Username:     meta.Username,
		Exercise:     meta.Exercise,
		LandmarkData: frames,
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func printResult(stats capture.Stats, res *app.Result, err error) {
	fmt.Printf("recorded %d frames (%d with a pose) in %s, stopped: %s\n",
		stats.Frames, stats.Detected, stats.Duration.Round(time.Millisecond), stats.StopReason)

	if err != nil {
		fmt.Printf("no score: %v\n", err)
		return
	}
	fmt.Printf("score %.2f (%s), label %s, model %s\n",
		res.Prediction.Score, api.Category(res.Prediction.Score), res.Prediction.Label, res.Prediction.Model)
	fmt.Printf("attempt %s\n", res.AttemptID)
}
