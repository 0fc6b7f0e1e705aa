// Package software implements the tracking contract in pure Go on top of
// image.Image, using pkg/colorhist and pkg/camshift.
package software

import (
	"fmt"
	"image"
	"image/color"
	"io"

	api "github.com/etesami/camshift-tracker/api"
	"github.com/etesami/camshift-tracker/pkg/camshift"
	"github.com/etesami/camshift-tracker/pkg/colorhist"

	"golang.org/x/image/colornames"
	"golang.org/x/image/draw"
)

// Model is a normalized hue/saturation histogram.
type Model struct {
	Hist *colorhist.Hist2D
}

func (m *Model) Close() error { return nil }

type Tracker[F image.Image] struct {
	Bins     [2]int
	Ranges   [2][2]float64
	Criteria camshift.TermCriteria
}

func NewTracker[F image.Image](bins [2]int, criteria camshift.TermCriteria) *Tracker[F] {
	return &Tracker[F]{
		Bins:     bins,
		Ranges:   colorhist.DefaultRanges,
		Criteria: criteria,
	}
}

// BuildModel computes the histogram of roi on snapshot, normalized to [0, 255].
func (t *Tracker[F]) BuildModel(snapshot F, roi image.Rectangle) (io.Closer, error) {
	hsv := colorhist.ToHSV(snapshot)
	hist, err := colorhist.Compute(hsv, roi, t.Bins, t.Ranges)
	if err != nil {
		return nil, err
	}
	if hist.Total() == 0 {
		return nil, fmt.Errorf("empty histogram for ROI [%v]", roi)
	}
	hist.Normalize(0, 255)
	return &Model{Hist: hist}, nil
}

// Track back-projects model onto frame and runs CamShift from window.
func (t *Tracker[F]) Track(frame F, model io.Closer, window image.Rectangle) (api.Region, image.Rectangle, error) {
	m, ok := model.(*Model)
	if !ok || m == nil || m.Hist == nil {
		return api.Region{}, window, fmt.Errorf("unexpected model %T", model)
	}
	prob := m.Hist.BackProject(colorhist.ToHSV(frame))
	region, next := camshift.CamShift(prob, window, t.Criteria)
	return region, next, nil
}

// Canvas draws on *image.RGBA frames.
type Canvas struct {
	Color color.RGBA
}

func NewCanvas() Canvas {
	return Canvas{Color: colornames.Lime}
}

func (c Canvas) Clone(frame *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(frame.Bounds())
	draw.Copy(dst, frame.Bounds().Min, frame, frame.Bounds(), draw.Src, nil)
	return dst
}

func (c Canvas) Release(*image.RGBA) {}

func (c Canvas) Bounds(frame *image.RGBA) image.Rectangle { return frame.Bounds() }

// DrawMarker draws a ring of radius 4 and thickness 2 centred on at.
func (c Canvas) DrawMarker(frame *image.RGBA, at image.Point) {
	const radius, thickness = 4, 2
	inner, outer := (radius-thickness/2)*(radius-thickness/2), (radius+thickness/2)*(radius+thickness/2)
	for dy := -radius - 1; dy <= radius+1; dy++ {
		for dx := -radius - 1; dx <= radius+1; dx++ {
			d := dx*dx + dy*dy
			if d >= inner && d <= outer {
				c.set(frame, at.X+dx, at.Y+dy)
			}
		}
	}
}

// DrawPolygon draws the closed outline through pts.
func (c Canvas) DrawPolygon(frame *image.RGBA, pts []image.Point) {
	for i := range pts {
		c.line(frame, pts[i], pts[(i+1)%len(pts)])
	}
}

// line is Bresenham's algorithm.
func (c Canvas) line(frame *image.RGBA, a, b image.Point) {
	dx, dy := abs(b.X-a.X), -abs(b.Y-a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	err := dx + dy
	for {
		c.set(frame, a.X, a.Y)
		if a == b {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			a.X += sx
		}
		if e2 <= dx {
			err += dx
			a.Y += sy
		}
	}
}

func (c Canvas) set(frame *image.RGBA, x, y int) {
	if (image.Point{x, y}).In(frame.Bounds()) {
		frame.SetRGBA(x, y, c.Color)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
