package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

const (
	// blurKernel is the Gaussian kernel size applied before differencing.
	blurKernel = 21
	// pixelDelta is the grey-level difference counted as a changed pixel.
	pixelDelta = 25
)

// ActivityMeter measures how much of the image changed since the previous
// call. It tells a recorder when the patient starts and stops moving.
type ActivityMeter struct {
	threshold float64

	mu   sync.Mutex
	prev gocv.Mat
	seen bool
}

// NewActivityMeter returns a meter that reports movement when more than
// threshold percent of the pixels change between consecutive images.
func NewActivityMeter(threshold float64) *ActivityMeter {
	return &ActivityMeter{threshold: threshold, prev: gocv.NewMat()}
}

// Measure returns whether the image differs from the previous one by more
// than the threshold, and the changed-pixel percentage. The first image only
// sets the baseline.
func (m *ActivityMeter) Measure(img *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if img == nil || img.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if img.Channels() > 1 {
		gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)
	} else {
		img.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: blurKernel, Y: blurKernel}, 0, 0, gocv.BorderDefault)

	if !m.seen {
		blurred.CopyTo(&m.prev)
		m.seen = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prev, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, pixelDelta, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(mask)) / float64(mask.Rows()*mask.Cols()) * 100

	blurred.CopyTo(&m.prev)
	return changed > m.threshold, changed
}

// Reset forgets the baseline image.
func (m *ActivityMeter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

// Close releases the baseline image. The meter can still be used afterwards.
func (m *ActivityMeter) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

func (m *ActivityMeter) release() {
	if !m.prev.Empty() {
		m.prev.Close()
		m.prev = gocv.NewMat()
	}
	m.seen = false
}
