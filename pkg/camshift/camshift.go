// Package camshift implements mean-shift and CamShift over a back-projection
// stored as an *image.Gray, mirroring cv::meanShift and cv::CamShift.
package camshift

import (
	"image"
	"math"

	api "github.com/etesami/camshift-tracker/api"
)

// tolerance is how far CamShift grows the converged window before
// measuring the object's second moments.
const tolerance = 10

// TermCriteria stops the search after MaxCount iterations or once the window
// moves less than Epsilon pixels. A non-positive field disables that rule.
type TermCriteria struct {
	MaxCount int
	Epsilon  float64
}

// DefaultCriteria is max 10 iterations or movement under one pixel.
var DefaultCriteria = TermCriteria{MaxCount: 10, Epsilon: 1}

type moments struct {
	m00, m10, m01, m20, m11, m02 float64
}

func (m moments) central() (mu20, mu11, mu02 float64) {
	cx, cy := m.m10/m.m00, m.m01/m.m00
	return m.m20 - cx*m.m10, m.m11 - cx*m.m01, m.m02 - cy*m.m01
}

// spatialMoments uses coordinates relative to r.Min, as cv::moments does on an ROI.
func spatialMoments(prob *image.Gray, r image.Rectangle) moments {
	var m moments
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := prob.Pix[prob.PixOffset(r.Min.X, y):]
		fy := float64(y - r.Min.Y)
		for x := 0; x < r.Dx(); x++ {
			v := float64(row[x])
			if v == 0 {
				continue
			}
			fx := float64(x)
			m.m00 += v
			m.m10 += fx * v
			m.m01 += fy * v
			m.m20 += fx * fx * v
			m.m11 += fx * fy * v
			m.m02 += fy * fy * v
		}
	}
	return m
}

// MeanShift moves window to the local centroid of prob until the criteria are
// met. It returns the final window and the number of iterations run.
func MeanShift(prob *image.Gray, window image.Rectangle, crit TermCriteria) (image.Rectangle, int) {
	bounds := prob.Bounds()
	size := bounds.Size()
	halfW, halfH := float64(window.Dx())*0.5, float64(window.Dy())*0.5

	eps := 1.0
	if crit.Epsilon > 0 {
		eps = math.RoundToEven(crit.Epsilon * crit.Epsilon)
	}
	niters := 100
	if crit.MaxCount > 0 {
		niters = crit.MaxCount
	}

	cur := window.Intersect(bounds)
	i := 0
	for ; i < niters; i++ {
		cur = cur.Intersect(bounds)
		if cur.Empty() {
			cur = image.Rect(size.X/2, size.Y/2, size.X/2, size.Y/2)
		}
		if cur.Dx() < 1 {
			cur.Max.X = cur.Min.X + 1
		}
		if cur.Dy() < 1 {
			cur.Max.Y = cur.Min.Y + 1
		}

		m := spatialMoments(prob, cur)
		if math.Abs(m.m00) < math.SmallestNonzeroFloat64 {
			break
		}
		dx := int(math.RoundToEven(m.m10/m.m00 - halfW))
		dy := int(math.RoundToEven(m.m01/m.m00 - halfH))

		nx := min(max(cur.Min.X+dx, bounds.Min.X), bounds.Max.X-cur.Dx())
		ny := min(max(cur.Min.Y+dy, bounds.Min.Y), bounds.Max.Y-cur.Dy())
		dx, dy = nx-cur.Min.X, ny-cur.Min.Y
		cur = cur.Add(image.Pt(dx, dy))

		if float64(dx*dx+dy*dy) < eps {
			break
		}
	}
	return cur, i
}

// CamShift runs MeanShift and then fits an oriented box to the object using
// the second moments of the back-projection around the converged window.
// It returns the rotated region and the window to seed the next frame with.
// A window holding no probability mass yields a zero Region.
func CamShift(prob *image.Gray, window image.Rectangle, crit TermCriteria) (api.Region, image.Rectangle) {
	bounds := prob.Bounds()
	window, _ = MeanShift(prob, window, crit)

	grown := image.Rect(
		window.Min.X-tolerance, window.Min.Y-tolerance,
		window.Max.X+tolerance, window.Max.Y+tolerance,
	).Intersect(bounds)

	m := spatialMoments(prob, grown)
	if math.Abs(m.m00) < math.SmallestNonzeroFloat64 {
		return api.Region{}, window
	}
	mu20, mu11, mu02 := m.central()

	inv := 1 / m.m00
	xc := int(math.RoundToEven(m.m10*inv + float64(grown.Min.X)))
	yc := int(math.RoundToEven(m.m01*inv + float64(grown.Min.Y)))

	a, b, c := mu20*inv, mu11*inv, mu02*inv
	square := math.Sqrt(4*b*b + (a-c)*(a-c))
	theta := math.Atan2(2*b, a-c+square)

	cs, sn := math.Cos(theta), math.Sin(theta)
	rotateA := max(0, cs*cs*mu20+2*cs*sn*mu11+sn*sn*mu02)
	rotateC := max(0, sn*sn*mu20-2*cs*sn*mu11+cs*cs*mu02)
	length := math.Sqrt(rotateA*inv) * 4
	width := math.Sqrt(rotateC*inv) * 4

	if length < width {
		length, width = width, length
		cs, sn = sn, cs
		theta = math.Pi*0.5 - theta
	}

	w := max(roundInt(math.Abs(length*cs)), roundInt(math.Abs(width*sn))) + 2
	w = min(w, (bounds.Max.X-xc)*2)
	h := max(roundInt(math.Abs(length*sn)), roundInt(math.Abs(width*cs))) + 2
	h = min(h, (bounds.Max.Y-yc)*2)

	x := max(bounds.Min.X, xc-w/2)
	y := max(bounds.Min.Y, yc-h/2)
	w = min(bounds.Max.X-x, w)
	h = min(bounds.Max.Y-y, h)
	next := image.Rect(x, y, x+w, y+h)

	angle := (math.Pi*0.5 + theta) * 180 / math.Pi
	for angle < 0 {
		angle += 360
	}
	for angle >= 360 {
		angle -= 360
	}
	if angle >= 180 {
		angle -= 180
	}

	region := api.Region{
		CenterX: float64(x) + float64(w)*0.5,
		CenterY: float64(y) + float64(h)*0.5,
		Width:   width,
		Height:  length,
		Angle:   angle,
	}
	region.Corners = BoxPoints(region)
	return region, next
}

// BoxPoints returns the four corners of r, truncated to integer pixels.
func BoxPoints(r api.Region) []image.Point {
	rad := r.Angle * math.Pi / 180
	b := math.Cos(rad) * 0.5
	a := math.Sin(rad) * 0.5

	p0x := r.CenterX - a*r.Height - b*r.Width
	p0y := r.CenterY + b*r.Height - a*r.Width
	p1x := r.CenterX + a*r.Height - b*r.Width
	p1y := r.CenterY - b*r.Height - a*r.Width

	return []image.Point{
		{int(p0x), int(p0y)},
		{int(p1x), int(p1y)},
		{int(2*r.CenterX - p0x), int(2*r.CenterY - p0y)},
		{int(2*r.CenterX - p1x), int(2*r.CenterY - p1y)},
	}
}

func roundInt(v float64) int {
	return int(math.RoundToEven(v))
}
