// Package session drives the interactive tracker: it reads frames, lets the
// user click an ROI, and follows the selected object with a Tracker.
//
// The session owns every piece of mutable state the loop and the click
// handler share. The handler is invoked by the Display from inside WaitKey,
// on the same goroutine as Step, so no locking is needed.
package session

import (
	"context"
	"fmt"
	"image"
	"io"
	"log"
	"time"

	api "github.com/etesami/camshift-tracker/api"
	mt "github.com/etesami/camshift-tracker/pkg/metric"
	"github.com/etesami/camshift-tracker/pkg/utils"
	"github.com/google/uuid"
)

// MouseEvent is the event kind reported by the display. Values follow highgui.
type MouseEvent int

const (
	MouseMove           MouseEvent = 0
	MouseLeftButtonDown MouseEvent = 1
)

// Source yields frames until the stream is exhausted.
type Source[F any] interface {
	Read() (F, bool)
	Close() error
}

// Display shows frames and reports user input. WaitKey returns -1 when no key
// was pressed; a delay of 0 blocks until one is.
type Display[F any] interface {
	Show(frame F) error
	IsOpen() bool
	WaitKey(delay int) int
	SetMouseHandler(handler func(event MouseEvent, x, y int))
	Close() error
}

// Canvas owns the frame-level operations the session needs besides tracking.
type Canvas[F any] interface {
	Clone(frame F) F
	Release(frame F)
	Bounds(frame F) image.Rectangle
	DrawMarker(frame F, at image.Point)
	DrawPolygon(frame F, pts []image.Point)
}

// Model is a colour model built from an ROI. It stays fixed until the next selection.
type Model = io.Closer

// Tracker wraps the vision library. Track back-projects model onto frame and
// runs the mode-seeking search from window; it returns the rotated region and
// the window to use on the next frame.
type Tracker[F any] interface {
	BuildModel(snapshot F, roi image.Rectangle) (Model, error)
	Track(frame F, model Model, window image.Rectangle) (api.Region, image.Rectangle, error)
}

// Publisher receives track events. Implementations must not block.
type Publisher interface {
	Publish(ev api.TrackEvent)
}

type State int

const (
	StateIdle State = iota
	StateSelecting
)

func (s State) String() string {
	if s == StateSelecting {
		return "selecting"
	}
	return "idle"
}

type Config struct {
	SourceId string
	// SelectKey enters ROI selection, QuitKey stops the loop.
	SelectKey int
	QuitKey   int
	// TrackDelay and SelectDelay are the WaitKey timeouts in milliseconds
	// while tracking and while collecting clicks.
	TrackDelay  int
	SelectDelay int

	Metric    *mt.Metric
	Publisher Publisher
}

func DefaultConfig() Config {
	return Config{
		SourceId:    "camera",
		SelectKey:   'i',
		QuitKey:     'q',
		TrackDelay:  1,
		SelectDelay: 30,
	}
}

type Session[F any] struct {
	cfg     Config
	source  Source[F]
	display Display[F]
	canvas  Canvas[F]
	tracker Tracker[F]

	state    State
	frame    F
	hasFrame bool
	snapshot F
	points   Points

	model     Model
	window    image.Rectangle
	tracking  bool
	sessionId string
	frameId   int64
	released  bool
}

func New[F any](cfg Config, source Source[F], display Display[F], canvas Canvas[F], tracker Tracker[F]) *Session[F] {
	def := DefaultConfig()
	if cfg.SelectKey == 0 {
		cfg.SelectKey = def.SelectKey
	}
	if cfg.QuitKey == 0 {
		cfg.QuitKey = def.QuitKey
	}
	if cfg.TrackDelay <= 0 {
		cfg.TrackDelay = def.TrackDelay
	}
	if cfg.SelectDelay < 0 {
		cfg.SelectDelay = def.SelectDelay
	}
	s := &Session[F]{
		cfg:     cfg,
		source:  source,
		display: display,
		canvas:  canvas,
		tracker: tracker,
	}
	display.SetMouseHandler(s.OnMouse)
	return s
}

// Run steps the session until the stream ends, the user quits or closes the
// window, or ctx is cancelled. Those are all normal stops and return nil;
// errors from the tracker are returned as is. The source, display and any
// held frames are released on every path.
func (s *Session[F]) Run(ctx context.Context) error {
	defer s.Release()
	for {
		select {
		case <-ctx.Done():
			log.Printf("Stopping tracker: %v", ctx.Err())
			return nil
		default:
		}
		done, err := s.Step()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// Step runs one iteration of the current state and reports whether the loop should stop.
func (s *Session[F]) Step() (bool, error) {
	if s.state == StateSelecting {
		return s.stepSelecting()
	}
	return s.stepTracking()
}

func (s *Session[F]) stepTracking() (bool, error) {
	frame, ok := s.source.Read()
	if !ok {
		log.Printf("End of video stream after [%d] frames", s.frameId)
		return true, nil
	}
	st := time.Now()
	s.replaceFrame(frame)
	s.frameId++

	status := "idle"
	if s.tracking {
		var err error
		if status, err = s.track(); err != nil {
			return true, err
		}
	}
	s.cfg.Metric.AddFrameCount(status, 1)
	s.cfg.Metric.AddProcessingTime(float64(time.Since(st).Microseconds()) / 1000.0)

	if err := s.display.Show(s.frame); err != nil {
		return true, fmt.Errorf("error showing frame [%d]: %v", s.frameId, err)
	}
	if !s.display.IsOpen() {
		log.Printf("Window closed at frame [%d]", s.frameId)
		return true, nil
	}

	key := s.display.WaitKey(s.cfg.TrackDelay)
	if key < 0 {
		return false, nil
	}
	switch key & 0xFF {
	case s.cfg.SelectKey:
		if s.points.Len() < MaxPoints {
			s.beginSelection()
		}
	case s.cfg.QuitKey:
		log.Printf("Quit requested at frame [%d]", s.frameId)
		return true, nil
	}
	return false, nil
}

// track runs the search on the current frame and returns the frame status.
func (s *Session[F]) track() (string, error) {
	region, next, err := s.tracker.Track(s.frame, s.model, s.window)
	if err != nil {
		return "", fmt.Errorf("error tracking frame [%d]: %v", s.frameId, err)
	}
	if region.Degenerate() {
		log.Printf("Object lost at frame [%d]: region [%.2fx%.2f]", s.frameId, region.Width, region.Height)
		s.cfg.Metric.AddTargetLost()
		s.publish(api.StateLost, s.window, region)
		s.clearTarget()
		return "lost", nil
	}

	s.cfg.Metric.SetWindowIoU(utils.GetIoU(s.window, next))
	s.window = next
	s.canvas.DrawPolygon(s.frame, region.Corners)
	s.publish(api.StateTracking, next, region)
	return "tracked", nil
}

func (s *Session[F]) beginSelection() {
	s.points.Reset()
	s.snapshot = s.canvas.Clone(s.frame)
	s.state = StateSelecting
	log.Printf("Entering ROI selection at frame [%d]: click %d points", s.frameId, MaxPoints)
}

func (s *Session[F]) stepSelecting() (bool, error) {
	if s.points.Full() {
		return false, s.finishSelection()
	}
	if err := s.display.Show(s.frame); err != nil {
		return true, fmt.Errorf("error showing frame [%d]: %v", s.frameId, err)
	}
	if !s.display.IsOpen() {
		log.Printf("Window closed during ROI selection")
		return true, nil
	}
	key := s.display.WaitKey(s.cfg.SelectDelay)
	if key >= 0 && key&0xFF == s.cfg.QuitKey {
		log.Printf("Quit requested during ROI selection")
		return true, nil
	}
	if s.points.Full() {
		return false, s.finishSelection()
	}
	return false, nil
}

// OnMouse is the display's click callback. Primary clicks add a corner while
// a selection is in progress; everything else is ignored.
func (s *Session[F]) OnMouse(event MouseEvent, x, y int) {
	if s.state != StateSelecting || event != MouseLeftButtonDown || s.points.Full() {
		return
	}
	pt := image.Pt(x, y)
	s.points.Add(pt)
	s.canvas.DrawMarker(s.frame, pt)
	if err := s.display.Show(s.frame); err != nil {
		log.Printf("Error showing ROI point: %v", err)
	}
}

func (s *Session[F]) finishSelection() error {
	pts := s.points.List()
	s.points.Reset()
	s.state = StateIdle
	defer s.releaseSnapshot()

	roi := ROI(pts).Intersect(s.canvas.Bounds(s.snapshot))
	if roi.Empty() {
		log.Printf("Invalid ROI from points %v, selection discarded", pts)
		s.cfg.Metric.AddSelection("rejected")
		return nil
	}

	model, err := s.tracker.BuildModel(s.snapshot, roi)
	if err != nil {
		return fmt.Errorf("error building model for ROI [%v]: %v", roi, err)
	}
	s.clearTarget()
	s.model = model
	s.window = roi
	s.tracking = true
	s.sessionId = uuid.NewString()

	log.Printf("Tracking ROI [%v] from frame [%d], session [%s]", roi, s.frameId, s.sessionId)
	s.cfg.Metric.AddSelection("accepted")
	s.publish(api.StateSelected, roi, api.Region{})
	return nil
}

func (s *Session[F]) publish(state api.TrackState, window image.Rectangle, region api.Region) {
	if s.cfg.Publisher == nil {
		return
	}
	s.cfg.Publisher.Publish(api.TrackEvent{
		Timestamp: time.Now(),
		SourceId:  s.cfg.SourceId,
		SessionId: s.sessionId,
		FrameId:   s.frameId,
		State:     state,
		Window:    window,
		Region:    region,
	})
}

func (s *Session[F]) clearTarget() {
	if s.model != nil {
		if err := s.model.Close(); err != nil {
			log.Printf("Error releasing model: %v", err)
		}
		s.model = nil
	}
	s.window = image.Rectangle{}
	s.tracking = false
}

func (s *Session[F]) replaceFrame(frame F) {
	if s.hasFrame {
		s.canvas.Release(s.frame)
	}
	s.frame = frame
	s.hasFrame = true
}

func (s *Session[F]) releaseSnapshot() {
	s.canvas.Release(s.snapshot)
	var zero F
	s.snapshot = zero
}

// Release frees the frames, the model, the source and the display. It is
// safe to call more than once.
func (s *Session[F]) Release() {
	if s.released {
		return
	}
	s.released = true
	if s.state == StateSelecting {
		s.releaseSnapshot()
		s.state = StateIdle
	}
	if s.hasFrame {
		s.canvas.Release(s.frame)
		s.hasFrame = false
	}
	s.clearTarget()
	if err := s.source.Close(); err != nil {
		log.Printf("Error closing video source: %v", err)
	}
	if err := s.display.Close(); err != nil {
		log.Printf("Error closing display: %v", err)
	}
}

func (s *Session[F]) State() State { return s.state }

// Window returns the current tracking window and whether a target is tracked.
func (s *Session[F]) Window() (image.Rectangle, bool) { return s.window, s.tracking }

func (s *Session[F]) Points() []image.Point { return s.points.List() }

func (s *Session[F]) FrameId() int64 { return s.frameId }
