package camshift

import (
	"image"
	"math"
	"testing"

	api "github.com/etesami/camshift-tracker/api"
)

func probWithBlob(w, h int, blob image.Rectangle) *image.Gray {
	prob := image.NewGray(image.Rect(0, 0, w, h))
	for y := blob.Min.Y; y < blob.Max.Y; y++ {
		for x := blob.Min.X; x < blob.Max.X; x++ {
			prob.Pix[prob.PixOffset(x, y)] = 255
		}
	}
	return prob
}

func TestCamShiftStaticSquare(t *testing.T) {
	blob := image.Rect(60, 60, 100, 100)
	prob := probWithBlob(200, 200, blob)

	region, next := CamShift(prob, blob, DefaultCriteria)
	if region.Degenerate() {
		t.Fatalf("unexpected degenerate region: %+v", region)
	}
	if math.Abs(region.CenterX-80) > 1 || math.Abs(region.CenterY-80) > 1 {
		t.Errorf("center: (%.1f, %.1f), expected: (80, 80)", region.CenterX, region.CenterY)
	}
	if want := image.Rect(56, 56, 104, 104); next != want {
		t.Errorf("next window: %v, expected: %v", next, want)
	}

	// Seeding with the result must be a fixed point.
	_, again := CamShift(prob, next, DefaultCriteria)
	if again != next {
		t.Errorf("window drifted: %v, expected: %v", again, next)
	}
	for _, p := range region.Corners {
		if !p.In(image.Rect(55, 55, 105, 105)) {
			t.Errorf("corner %v outside expected box", p)
		}
	}
}

func TestCamShiftFollowsOffsetBlob(t *testing.T) {
	prob := probWithBlob(200, 200, image.Rect(60, 60, 100, 100))
	region, next := CamShift(prob, image.Rect(40, 40, 80, 80), DefaultCriteria)
	if math.Abs(region.CenterX-80) > 1 || math.Abs(region.CenterY-80) > 1 {
		t.Errorf("center: (%.1f, %.1f), expected: (80, 80)", region.CenterX, region.CenterY)
	}
	if want := image.Rect(56, 56, 104, 104); next != want {
		t.Errorf("next window: %v, expected: %v", next, want)
	}
}

func TestCamShiftEmptyProbability(t *testing.T) {
	prob := image.NewGray(image.Rect(0, 0, 50, 50))
	region, _ := CamShift(prob, image.Rect(10, 10, 20, 20), DefaultCriteria)
	if !region.Degenerate() {
		t.Errorf("expected degenerate region, got %+v", region)
	}
}

func TestCamShiftElongatedBlob(t *testing.T) {
	prob := probWithBlob(200, 200, image.Rect(40, 90, 120, 110))
	region, _ := CamShift(prob, image.Rect(40, 90, 120, 110), DefaultCriteria)
	if region.Height <= region.Width {
		t.Errorf("length %.2f should exceed width %.2f", region.Height, region.Width)
	}
	if math.Abs(region.Angle-90) > 1e-6 {
		t.Errorf("angle: %.2f, expected: 90", region.Angle)
	}
}

func TestMeanShiftIterationLimit(t *testing.T) {
	prob := probWithBlob(200, 200, image.Rect(60, 60, 100, 100))
	window, iters := MeanShift(prob, image.Rect(40, 40, 80, 80), TermCriteria{MaxCount: 1, Epsilon: 1})
	if iters != 1 {
		t.Errorf("iterations: %d, expected: 1", iters)
	}
	if want := image.Rect(50, 50, 90, 90); window != want {
		t.Errorf("window: %v, expected: %v", window, want)
	}
}

func TestMeanShiftStaysInsideImage(t *testing.T) {
	prob := probWithBlob(100, 100, image.Rect(90, 90, 100, 100))
	window, _ := MeanShift(prob, image.Rect(70, 70, 100, 100), DefaultCriteria)
	if !window.In(prob.Bounds()) {
		t.Errorf("window %v left the image", window)
	}
}

func TestBoxPointsAxisAligned(t *testing.T) {
	pts := BoxPoints(api.Region{CenterX: 10, CenterY: 10, Width: 4, Height: 6, Angle: 0})
	want := []image.Point{{8, 13}, {8, 7}, {12, 7}, {12, 13}}
	for i := range want {
		if pts[i] != want[i] {
			t.Errorf("corner %d: %v, expected: %v", i, pts[i], want[i])
		}
	}
}
