// Package colorhist builds hue/saturation histograms and back-projections
// on plain Go images. Conversions and binning follow OpenCV's 8-bit
// conventions so results line up with the gocv backend.
package colorhist

import (
	"fmt"
	"image"
	"math"
)

const (
	HueRange = 180
	SatRange = 256
)

// HSV is an 8-bit HSV image with interleaved H, S, V samples.
// Hue is in [0, 180), saturation and value in [0, 255].
type HSV struct {
	Pix    []uint8
	Stride int
	Rect   image.Rectangle
}

func NewHSV(r image.Rectangle) *HSV {
	return &HSV{
		Pix:    make([]uint8, 3*r.Dx()*r.Dy()),
		Stride: 3 * r.Dx(),
		Rect:   r,
	}
}

func (h *HSV) Bounds() image.Rectangle { return h.Rect }

func (h *HSV) PixOffset(x, y int) int {
	return (y-h.Rect.Min.Y)*h.Stride + (x-h.Rect.Min.X)*3
}

// At returns the H, S, V samples at (x, y), zero outside the image.
func (h *HSV) At(x, y int) (uint8, uint8, uint8) {
	if !(image.Point{x, y}.In(h.Rect)) {
		return 0, 0, 0
	}
	i := h.PixOffset(x, y)
	return h.Pix[i], h.Pix[i+1], h.Pix[i+2]
}

// ToHSV converts img to HSV the way cv::cvtColor(COLOR_BGR2HSV) does for 8-bit input.
func ToHSV(img image.Image) *HSV {
	b := img.Bounds()
	dst := NewHSV(b)
	if rgba, ok := img.(*image.RGBA); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			src := rgba.Pix[rgba.PixOffset(b.Min.X, y):]
			out := dst.Pix[dst.PixOffset(b.Min.X, y):]
			for x := 0; x < b.Dx(); x++ {
				out[3*x], out[3*x+1], out[3*x+2] = RGBToHSV(src[4*x], src[4*x+1], src[4*x+2])
			}
		}
		return dst
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			i := dst.PixOffset(x, y)
			dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2] = RGBToHSV(uint8(r>>8), uint8(g>>8), uint8(bl>>8))
		}
	}
	return dst
}

// RGBToHSV converts one 8-bit sample. Rounding is half-up, matching the
// fixed-point tables OpenCV uses.
func RGBToHSV(r, g, b uint8) (uint8, uint8, uint8) {
	ri, gi, bi := int(r), int(g), int(b)
	v := max(ri, gi, bi)
	diff := v - min(ri, gi, bi)

	var s, h int
	if v > 0 {
		s = int(math.Floor(255*float64(diff)/float64(v) + 0.5))
	}
	if diff > 0 {
		var num int
		switch v {
		case ri:
			num = gi - bi
		case gi:
			num = bi - ri + 2*diff
		default:
			num = ri - gi + 4*diff
		}
		h = int(math.Floor(30*float64(num)/float64(diff) + 0.5))
		if h < 0 {
			h += HueRange
		}
	}
	return uint8(h), uint8(s), uint8(v)
}

// Hist2D is a dense two-dimensional histogram over channels 0 (hue) and 1
// (saturation). Values are stored row-major: Values[i*Bins[1]+j].
type Hist2D struct {
	Bins   [2]int
	Ranges [2][2]float64
	Values []float64
}

// DefaultBins and DefaultRanges describe the 16x16 hue/saturation model.
var (
	DefaultBins   = [2]int{16, 16}
	DefaultRanges = [2][2]float64{{0, HueRange}, {0, SatRange}}
)

func NewHist2D(bins [2]int, ranges [2][2]float64) (*Hist2D, error) {
	if bins[0] <= 0 || bins[1] <= 0 {
		return nil, fmt.Errorf("invalid bin count [%d, %d]", bins[0], bins[1])
	}
	for c, r := range ranges {
		if r[1] <= r[0] {
			return nil, fmt.Errorf("invalid range for channel [%d]: [%v, %v)", c, r[0], r[1])
		}
	}
	return &Hist2D{
		Bins:   bins,
		Ranges: ranges,
		Values: make([]float64, bins[0]*bins[1]),
	}, nil
}

// Compute counts the HSV pixels inside rect (clipped to the image) into a new histogram.
func Compute(hsv *HSV, rect image.Rectangle, bins [2]int, ranges [2][2]float64) (*Hist2D, error) {
	h, err := NewHist2D(bins, ranges)
	if err != nil {
		return nil, err
	}
	rect = rect.Intersect(hsv.Rect)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			hue, sat, _ := hsv.At(x, y)
			if i, ok := h.index(hue, sat); ok {
				h.Values[i]++
			}
		}
	}
	return h, nil
}

func (h *Hist2D) At(i, j int) float64 {
	return h.Values[i*h.Bins[1]+j]
}

// Total is the sum of all bin values.
func (h *Hist2D) Total() float64 {
	var sum float64
	for _, v := range h.Values {
		sum += v
	}
	return sum
}

func (h *Hist2D) Clone() *Hist2D {
	c := *h
	c.Values = append([]float64(nil), h.Values...)
	return &c
}

// Normalize rescales the bins linearly so the smallest becomes lo and the
// largest becomes hi (NORM_MINMAX). A flat histogram collapses to lo.
func (h *Hist2D) Normalize(lo, hi float64) {
	if len(h.Values) == 0 {
		return
	}
	smin, smax := h.Values[0], h.Values[0]
	for _, v := range h.Values[1:] {
		smin = min(smin, v)
		smax = max(smax, v)
	}
	span := smax - smin
	for i, v := range h.Values {
		switch {
		case span <= math.SmallestNonzeroFloat64 || v == smin:
			h.Values[i] = lo
		case v == smax:
			h.Values[i] = hi
		default:
			h.Values[i] = lo + (v-smin)*(hi-lo)/span
		}
	}
}

// BackProject scores every pixel of hsv with the value of its histogram bin,
// saturated to [0, 255]. Pixels outside the configured ranges score 0.
func (h *Hist2D) BackProject(hsv *HSV) *image.Gray {
	out := image.NewGray(hsv.Rect)
	for y := hsv.Rect.Min.Y; y < hsv.Rect.Max.Y; y++ {
		for x := hsv.Rect.Min.X; x < hsv.Rect.Max.X; x++ {
			hue, sat, _ := hsv.At(x, y)
			i, ok := h.index(hue, sat)
			if !ok {
				continue
			}
			out.Pix[out.PixOffset(x, y)] = saturate(h.Values[i])
		}
	}
	return out
}

func (h *Hist2D) index(c0, c1 uint8) (int, bool) {
	i, ok := bin(float64(c0), h.Bins[0], h.Ranges[0])
	if !ok {
		return 0, false
	}
	j, ok := bin(float64(c1), h.Bins[1], h.Ranges[1])
	if !ok {
		return 0, false
	}
	return i*h.Bins[1] + j, true
}

func bin(v float64, bins int, r [2]float64) (int, bool) {
	a := float64(bins) / (r[1] - r[0])
	idx := int(math.Floor(v*a - r[0]*a))
	if idx < 0 || idx >= bins {
		return 0, false
	}
	return idx, true
}

func saturate(v float64) uint8 {
	r := math.RoundToEven(v)
	switch {
	case r <= 0:
		return 0
	case r >= 255:
		return 255
	}
	return uint8(r)
}
