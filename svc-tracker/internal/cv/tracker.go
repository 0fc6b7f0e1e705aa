package cv

import (
	"image"
	"image/color"
	"io"
	"log"

	api "github.com/etesami/camshift-tracker/api"
	"github.com/etesami/camshift-tracker/pkg/camshift"
	"github.com/etesami/camshift-tracker/svc-tracker/internal/software"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"golang.org/x/image/colornames"
)

// Canvas draws on BGR Mats.
type Canvas struct {
	Color     color.RGBA
	Thickness int
}

func NewCanvas() Canvas {
	return Canvas{Color: colornames.Lime, Thickness: 2}
}

func (c Canvas) Clone(frame gocv.Mat) gocv.Mat { return frame.Clone() }

func (c Canvas) Release(frame gocv.Mat) {
	if err := frame.Close(); err != nil {
		log.Printf("Error releasing frame: %v", err)
	}
}

func (c Canvas) Bounds(frame gocv.Mat) image.Rectangle {
	return image.Rect(0, 0, frame.Cols(), frame.Rows())
}

func (c Canvas) DrawMarker(frame gocv.Mat, at image.Point) {
	if err := gocv.Circle(&frame, at, 4, c.Color, c.Thickness); err != nil {
		log.Printf("Error drawing marker at [%v]: %v", at, err)
	}
}

func (c Canvas) DrawPolygon(frame gocv.Mat, pts []image.Point) {
	if len(pts) < 2 {
		return
	}
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
	defer pv.Close()
	if err := gocv.Polylines(&frame, pv, true, c.Color, c.Thickness); err != nil {
		log.Printf("Error drawing region %v: %v", pts, err)
	}
}

// histModel holds the normalized hue/saturation histogram of an ROI.
type histModel struct {
	hist gocv.Mat
}

func (m *histModel) Close() error { return m.hist.Close() }

// CamShiftTracker builds the histogram and back-projection with OpenCV and
// runs the window search from pkg/camshift on the result.
type CamShiftTracker struct {
	channels []int
	bins     []int
	ranges   []float64
	criteria camshift.TermCriteria
}

func NewCamShiftTracker(bins [2]int, crit camshift.TermCriteria) *CamShiftTracker {
	return &CamShiftTracker{
		channels: []int{0, 1},
		bins:     []int{bins[0], bins[1]},
		ranges:   []float64{0, 180, 0, 256},
		criteria: crit,
	}
}

func (t *CamShiftTracker) BuildModel(snapshot gocv.Mat, roi image.Rectangle) (io.Closer, error) {
	region := snapshot.Region(roi)
	defer region.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	if err := gocv.CvtColor(region, &hsv, gocv.ColorBGRToHSV); err != nil {
		return nil, errors.Wrapf(err, "error converting ROI [%v] to HSV", roi)
	}

	mask := gocv.NewMat()
	defer mask.Close()
	hist := gocv.NewMat()
	if err := gocv.CalcHist([]gocv.Mat{hsv}, t.channels, mask, &hist, t.bins, t.ranges, false); err != nil {
		hist.Close()
		return nil, errors.Wrapf(err, "error computing histogram for ROI [%v]", roi)
	}
	if hist.Empty() {
		hist.Close()
		return nil, errors.Errorf("empty histogram for ROI [%v]", roi)
	}
	if err := gocv.Normalize(hist, &hist, 0, 255, gocv.NormMinMax); err != nil {
		hist.Close()
		return nil, errors.Wrap(err, "error normalizing histogram")
	}
	return &histModel{hist: hist}, nil
}

func (t *CamShiftTracker) Track(frame gocv.Mat, model io.Closer, window image.Rectangle) (api.Region, image.Rectangle, error) {
	m, ok := model.(*histModel)
	if !ok || m == nil {
		return api.Region{}, window, errors.Errorf("unexpected model %T", model)
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	if err := gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV); err != nil {
		return api.Region{}, window, errors.Wrap(err, "error converting frame to HSV")
	}

	backProj := gocv.NewMat()
	defer backProj.Close()
	if err := gocv.CalcBackProject([]gocv.Mat{hsv}, t.channels, m.hist, &backProj, t.ranges, false); err != nil {
		return api.Region{}, window, errors.Wrap(err, "error back-projecting histogram")
	}

	img, err := backProj.ToImage()
	if err != nil {
		return api.Region{}, window, errors.Wrap(err, "error converting back-projection")
	}
	prob, ok := img.(*image.Gray)
	if !ok {
		return api.Region{}, window, errors.Errorf("unexpected back-projection image %T", img)
	}
	region, next := camshift.CamShift(prob, window, t.criteria)
	return region, next, nil
}

// SoftwareTracker runs the pure Go backend on frames converted from Mats.
type SoftwareTracker struct {
	tracker *software.Tracker[image.Image]
}

func NewSoftwareTracker(bins [2]int, crit camshift.TermCriteria) *SoftwareTracker {
	return &SoftwareTracker{tracker: software.NewTracker[image.Image](bins, crit)}
}

func (t *SoftwareTracker) BuildModel(snapshot gocv.Mat, roi image.Rectangle) (io.Closer, error) {
	img, err := snapshot.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "error converting snapshot")
	}
	return t.tracker.BuildModel(img, roi)
}

func (t *SoftwareTracker) Track(frame gocv.Mat, model io.Closer, window image.Rectangle) (api.Region, image.Rectangle, error) {
	img, err := frame.ToImage()
	if err != nil {
		return api.Region{}, window, errors.Wrap(err, "error converting frame")
	}
	return t.tracker.Track(img, model, window)
}
