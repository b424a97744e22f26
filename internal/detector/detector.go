// Package detector estimates body pose landmarks from camera images.
//
// ProcessDetector delegates to an external pose estimator, typically a
// MediaPipe Pose script. The estimator reads images from stdin, each a
// 4-byte big-endian length followed by JPEG bytes, and answers each image
// with one JSON line:
//
//	{"landmarks": [{"x": 0.51, "y": 0.32, "z": -0.1, "visibility": 0.99}, ...]}
//
// An empty list means nobody is in view. A non-empty "error" field fails
// the detection.
package detector

import (
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/strokerehab/internal/pose"
)

// Detector estimates the pose in one image.
type Detector interface {
	// Detect returns the pose landmarks in the image, or none when nobody
	// usable is in view.
	Detect(img *gocv.Mat) ([]pose.Landmark, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds pose estimation options.
type Config struct {
	// Command starts the estimator, program first.
	Command []string

	// MinVisibility is the visibility every arm landmark needs for the pose
	// to count as detected. Zero accepts any visibility.
	MinVisibility float64

	// IdleTimeout stops the estimator process after this long without use.
	// It is restarted on the next detection.
	IdleTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Command:       []string{"python3", "scripts/pose_service.py"},
		MinVisibility: 0.5,
		IdleTimeout:   30 * time.Second,
	}
}

var armLandmarks = [...]int{
	pose.LeftShoulder, pose.RightShoulder,
	pose.LeftElbow, pose.RightElbow,
	pose.LeftWrist, pose.RightWrist,
}

// usable drops poses that lack an arm landmark or see one poorly.
func usable(landmarks []pose.Landmark, minVisibility float64) []pose.Landmark {
	if len(landmarks) < pose.MinLandmarks {
		return nil
	}
	for _, i := range armLandmarks {
		if landmarks[i].Visibility < minVisibility {
			return nil
		}
	}
	return landmarks
}
