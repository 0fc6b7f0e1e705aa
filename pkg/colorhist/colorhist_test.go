package colorhist

import (
	"image"
	"image/color"
	"testing"
)

func TestRGBToHSV(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		h, s, v uint8
	}{
		{"black", 0, 0, 0, 0, 0, 0},
		{"white", 255, 255, 255, 0, 0, 255},
		{"red", 255, 0, 0, 0, 255, 255},
		{"green", 0, 255, 0, 60, 255, 255},
		{"blue", 0, 0, 255, 120, 255, 255},
		{"magenta", 255, 0, 255, 150, 255, 255},
		{"dark gray", 64, 64, 64, 0, 0, 64},
		{"half red", 128, 64, 64, 0, 128, 128},
	}
	for _, tt := range tests {
		h, s, v := RGBToHSV(tt.r, tt.g, tt.b)
		if h != tt.h || s != tt.s || v != tt.v {
			t.Errorf("%s: got (%d, %d, %d), expected (%d, %d, %d)", tt.name, h, s, v, tt.h, tt.s, tt.v)
		}
	}
}

func TestToHSVMatchesGenericPath(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 8, 8))
	nrgba := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			c := color.RGBA{uint8(x * 30), uint8(y * 30), uint8((x + y) * 15), 255}
			rgba.Set(x, y, c)
			nrgba.Set(x, y, c)
		}
	}
	a, b := ToHSV(rgba), ToHSV(nrgba)
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			t.Fatalf("sample %d differs: %d vs %d", i, a.Pix[i], b.Pix[i])
		}
	}
}

func twoColorImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			if x < 10 {
				img.Set(x, y, color.RGBA{255, 0, 0, 255})
			} else {
				img.Set(x, y, color.RGBA{0, 0, 255, 255})
			}
		}
	}
	return img
}

func TestComputeOnlyCountsPixelsInsideRect(t *testing.T) {
	hsv := ToHSV(twoColorImage())
	// [2,2)-(10,10) touches only red pixels; column 10 is excluded.
	h, err := Compute(hsv, image.Rect(2, 2, 10, 10), DefaultBins, DefaultRanges)
	if err != nil {
		t.Fatal(err)
	}
	if total := h.Total(); total != 64 {
		t.Fatalf("total count: %v, expected: 64", total)
	}
	if v := h.At(0, 15); v != 64 {
		t.Errorf("red bin: %v, expected: 64", v)
	}
	// blue: hue 120 -> bin 10, saturation 255 -> bin 15
	if v := h.At(10, 15); v != 0 {
		t.Errorf("blue bin: %v, expected: 0", v)
	}
}

func TestComputeClipsToImage(t *testing.T) {
	hsv := ToHSV(twoColorImage())
	h, err := Compute(hsv, image.Rect(-5, -5, 100, 100), DefaultBins, DefaultRanges)
	if err != nil {
		t.Fatal(err)
	}
	if total := h.Total(); total != 400 {
		t.Errorf("total count: %v, expected: 400", total)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	hsv := ToHSV(twoColorImage())
	rect := image.Rect(5, 3, 15, 17)
	a, _ := Compute(hsv, rect, DefaultBins, DefaultRanges)
	b, _ := Compute(hsv, rect, DefaultBins, DefaultRanges)
	a.Normalize(0, 255)
	b.Normalize(0, 255)
	for i := range a.Values {
		if a.Values[i] != b.Values[i] {
			t.Fatalf("bin %d differs: %v vs %v", i, a.Values[i], b.Values[i])
		}
	}
}

func TestNewHist2DValidates(t *testing.T) {
	if _, err := NewHist2D([2]int{0, 16}, DefaultRanges); err == nil {
		t.Errorf("expected error for zero bins")
	}
	if _, err := NewHist2D(DefaultBins, [2][2]float64{{0, 0}, {0, 256}}); err == nil {
		t.Errorf("expected error for empty range")
	}
}

func TestNormalizeMinMax(t *testing.T) {
	h, _ := NewHist2D([2]int{2, 3}, DefaultRanges)
	copy(h.Values, []float64{4, 10, 6, 2, 8, 2})
	before := h.Clone()
	h.Normalize(0, 255)

	if len(h.Values) != len(before.Values) {
		t.Fatalf("bin count changed: %d, expected: %d", len(h.Values), len(before.Values))
	}
	if h.Values[1] != 255 {
		t.Errorf("max bin: %v, expected: 255", h.Values[1])
	}
	if h.Values[3] != 0 || h.Values[5] != 0 {
		t.Errorf("min bins: %v, %v, expected: 0", h.Values[3], h.Values[5])
	}
	for i := range h.Values {
		for j := range h.Values {
			if (before.Values[i] < before.Values[j]) != (h.Values[i] < h.Values[j]) {
				t.Fatalf("order of bins %d and %d not preserved", i, j)
			}
		}
	}
}

func TestNormalizeHitsBoundsExactly(t *testing.T) {
	for _, mx := range []float64{3, 7, 49, 1600, 1681} {
		h, _ := NewHist2D([2]int{1, 3}, DefaultRanges)
		copy(h.Values, []float64{0, mx, mx / 2})
		h.Normalize(0, 255)
		if h.Values[0] != 0 || h.Values[1] != 255 {
			t.Errorf("max %v: bins %v, expected min 0 and max 255", mx, h.Values)
		}
		if h.Values[2] <= 0 || h.Values[2] >= 255 {
			t.Errorf("max %v: middle bin %v out of range", mx, h.Values[2])
		}
	}
}

func TestNormalizeFlatHistogram(t *testing.T) {
	h, _ := NewHist2D([2]int{2, 2}, DefaultRanges)
	for i := range h.Values {
		h.Values[i] = 7
	}
	h.Normalize(0, 255)
	for i, v := range h.Values {
		if v != 0 {
			t.Errorf("bin %d: %v, expected: 0", i, v)
		}
	}
}

func TestBackProject(t *testing.T) {
	hsv := ToHSV(twoColorImage())
	h, _ := Compute(hsv, image.Rect(0, 0, 10, 20), DefaultBins, DefaultRanges)
	h.Normalize(0, 255)
	prob := h.BackProject(hsv)
	if v := prob.GrayAt(3, 3).Y; v != 255 {
		t.Errorf("red pixel score: %d, expected: 255", v)
	}
	if v := prob.GrayAt(15, 3).Y; v != 0 {
		t.Errorf("blue pixel score: %d, expected: 0", v)
	}
}
