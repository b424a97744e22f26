// Package capture records pose sequences from a local webcam.
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings. Arm motion needs a higher rate than the
// 5 fps that is enough for static poses.
const (
	DefaultFPS    = 15
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when reading from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrEndOfStream is returned by cameras that play back a finite sequence.
	ErrEndOfStream = errors.New("end of stream")
)

// Camera is a source of BGR images.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame returns the next image. The caller closes it.
	ReadFrame() (*gocv.Mat, error)
	FPS() int
	IsOpen() bool
}

// DeviceCamera reads from a video device through GoCV.
type DeviceCamera struct {
	deviceID int
	fps      int

	mu      sync.Mutex
	capture *gocv.VideoCapture
}

// NewCamera returns a camera for the given device. fps <= 0 selects DefaultFPS.
func NewCamera(deviceID, fps int) *DeviceCamera {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &DeviceCamera{deviceID: deviceID, fps: fps}
}

// Open starts capturing at 640x480.
func (c *DeviceCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture != nil {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return fmt.Errorf("open device %d: %w", c.deviceID, err)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
	vc.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
	vc.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = vc
	return nil
}

// Close releases the device. Closing a closed camera is a no-op.
func (c *DeviceCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	return err
}

func (c *DeviceCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, fmt.Errorf("read from device %d failed", c.deviceID)
	}
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("device %d returned an empty image", c.deviceID)
	}
	return &mat, nil
}

func (c *DeviceCamera) FPS() int {
	return c.fps
}

func (c *DeviceCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capture != nil
}
