package capture

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockCamera plays back a fixed image sequence once, then returns ErrEndOfStream.
type MockCamera struct {
	images []*gocv.Mat
	fps    int

	mu    sync.Mutex
	index int
	open  bool
}

func NewMockCamera(images []*gocv.Mat, fps int) *MockCamera {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &MockCamera{images: images, fps: fps}
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	c.index = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

func (c *MockCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil, ErrCameraNotOpen
	}
	if c.index >= len(c.images) {
		return nil, ErrEndOfStream
	}

	img := c.images[c.index].Clone()
	c.index++
	return &img, nil
}

func (c *MockCamera) FPS() int { return c.fps }

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}
