package session

import "image"

// MaxPoints is the number of clicks that define an ROI.
const MaxPoints = 4

// Points accumulates the ROI corners clicked during selection.
// Duplicates are accepted; only the count is bounded.
type Points struct {
	pts []image.Point
}

// Add appends pt and reports whether it was accepted.
func (p *Points) Add(pt image.Point) bool {
	if p.Full() {
		return false
	}
	p.pts = append(p.pts, pt)
	return true
}

func (p *Points) Len() int { return len(p.pts) }

func (p *Points) Full() bool { return len(p.pts) >= MaxPoints }

func (p *Points) Reset() { p.pts = p.pts[:0] }

func (p *Points) List() []image.Point {
	return append([]image.Point(nil), p.pts...)
}

// Corners returns the point with the smallest x+y as top-left and the one
// with the largest x+y as bottom-right. Ties keep the earlier click.
func Corners(pts []image.Point) (tl, br image.Point) {
	if len(pts) == 0 {
		return image.Point{}, image.Point{}
	}
	tl, br = pts[0], pts[0]
	for _, pt := range pts[1:] {
		if pt.X+pt.Y < tl.X+tl.Y {
			tl = pt
		}
		if pt.X+pt.Y > br.X+br.Y {
			br = pt
		}
	}
	return tl, br
}

// ROI is the half-open rectangle [tl, br) spanned by pts. It is empty when
// tl is not strictly above and left of br.
func ROI(pts []image.Point) image.Rectangle {
	tl, br := Corners(pts)
	r := image.Rectangle{Min: tl, Max: br}
	if r.Empty() {
		return image.Rectangle{}
	}
	return r
}
