// Package render draws the smoothed arm trajectories of an attempt.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/strokerehab/internal/biomech"
	"github.com/ayusman/strokerehab/internal/pose"
)

// Default image size in pixels.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

// ErrNothingToDraw is returned when no frame carries landmarks.
var ErrNothingToDraw = errors.New("no landmarks to draw")

var (
	background = color.RGBA{R: 255, G: 255, B: 255}
	leftColor  = color.RGBA{R: 30, G: 90, B: 220}
	rightColor = color.RGBA{R: 220, G: 50, B: 40}
	textColor  = color.RGBA{R: 40, G: 40, B: 40}
)

// Options control the trace image.
type Options struct {
	Width  int
	Height int
	Alpha  float64 // EMA smoothing factor; 0 selects biomech.DefaultAlpha
	Title  string
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Alpha == 0 {
		o.Alpha = biomech.DefaultAlpha
	}
	return o
}

// Path is the smoothed positions of one arm over an attempt.
type Path struct {
	Side biomech.Side
	Arms []biomech.Arm
}

// Paths replays frames through a fresh extractor and collects the smoothed
// arm positions after every frame with landmarks.
func Paths(frames []pose.Frame, alpha float64) ([2]Path, error) {
	paths := [2]Path{{Side: biomech.Left}, {Side: biomech.Right}}

	state, err := biomech.NewState(alpha)
	if err != nil {
		return paths, err
	}
	for i, f := range frames {
		state, _, err = state.Step(f)
		if err != nil {
			return paths, fmt.Errorf("frame %d: %w", i, err)
		}
		if f.Empty() {
			continue
		}
		for s := range paths {
			paths[s].Arms = append(paths[s].Arms, state.Smoothed(paths[s].Side))
		}
	}
	return paths, nil
}

// Trace renders the smoothed shoulder, elbow and wrist paths of both arms
// and returns the image encoded as PNG. The final pose is drawn as a
// skeleton on top of the paths.
func Trace(frames []pose.Frame, opts Options) ([]byte, error) {
	opts = opts.withDefaults()

	paths, err := Paths(frames, opts.Alpha)
	if err != nil {
		return nil, err
	}
	if len(paths[0].Arms) == 0 {
		return nil, ErrNothingToDraw
	}

	img := gocv.NewMatWithSize(opts.Height, opts.Width, gocv.MatTypeCV8UC3)
	defer img.Close()
	img.SetTo(gocv.NewScalar(float64(background.B), float64(background.G), float64(background.R), 0))

	c := canvas{img: &img, width: opts.Width, height: opts.Height}
	for _, p := range paths {
		c.drawPath(p)
	}

	if opts.Title != "" {
		gocv.PutText(&img, opts.Title, image.Pt(10, 24), gocv.FontHersheySimplex, 0.6, textColor, 1)
	}
	gocv.PutText(&img, fmt.Sprintf("%d frames", len(paths[0].Arms)),
		image.Pt(10, opts.Height-12), gocv.FontHersheySimplex, 0.5, textColor, 1)

	buf, err := gocv.IMEncode(gocv.PNGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("encode trace: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

type canvas struct {
	img           *gocv.Mat
	width, height int
}

// point maps normalized image coordinates to pixels.
func (c canvas) point(v biomech.Vec2) image.Point {
	return image.Pt(int(v.X*float64(c.width)), int(v.Y*float64(c.height)))
}

func (c canvas) drawPath(p Path) {
	col := leftColor
	if p.Side == biomech.Right {
		col = rightColor
	}
	faded := color.RGBA{
		R: uint8((int(col.R) + 2*int(background.R)) / 3),
		G: uint8((int(col.G) + 2*int(background.G)) / 3),
		B: uint8((int(col.B) + 2*int(background.B)) / 3),
	}

	for i := 1; i < len(p.Arms); i++ {
		prev, cur := p.Arms[i-1], p.Arms[i]
		gocv.Line(c.img, c.point(prev.Elbow), c.point(cur.Elbow), faded, 1)
		gocv.Line(c.img, c.point(prev.Wrist), c.point(cur.Wrist), col, 2)
	}

	last := p.Arms[len(p.Arms)-1]
	gocv.Line(c.img, c.point(last.Shoulder), c.point(last.Elbow), col, 3)
	gocv.Line(c.img, c.point(last.Elbow), c.point(last.Wrist), col, 3)
	for _, j := range []biomech.Vec2{last.Shoulder, last.Elbow, last.Wrist} {
		gocv.Circle(c.img, c.point(j), 5, col, -1)
	}
}
